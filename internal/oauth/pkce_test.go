// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPKCE_RoundTrip(t *testing.T) {
	for i := 0; i < 50; i++ {
		pkce, err := NewPKCE()
		require.NoError(t, err)

		assert.Len(t, pkce.CodeVerifier, 64, "32 random bytes hex encoded")
		assert.Regexp(t, "^[0-9a-f]+$", pkce.CodeVerifier)

		sum := sha256.Sum256([]byte(pkce.CodeVerifier))
		want := base64.URLEncoding.EncodeToString(sum[:])
		want = strings.TrimRight(want, "=")

		assert.Equal(t, want, pkce.CodeChallenge)
		assert.NotContains(t, pkce.CodeChallenge, "+")
		assert.NotContains(t, pkce.CodeChallenge, "/")
		assert.False(t, strings.HasSuffix(pkce.CodeChallenge, "="))
	}
}

func TestNewPKCE_Unique(t *testing.T) {
	a, err := NewPKCE()
	require.NoError(t, err)
	b, err := NewPKCE()
	require.NoError(t, err)

	assert.NotEqual(t, a.CodeVerifier, b.CodeVerifier)
}

func TestChallengeFor_KnownVector(t *testing.T) {
	// RFC 7636 appendix B.
	assert.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		ChallengeFor("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"),
	)
}

func TestPKCEState_Verifier(t *testing.T) {
	var nilState *PKCEState
	assert.Equal(t, "", nilState.Verifier())
	assert.Equal(t, "abc", (&PKCEState{CodeVerifier: "abc"}).Verifier())
}
