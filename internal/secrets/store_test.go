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

package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/tombee/connectkit/internal/oauth"
	pkgerrors "github.com/tombee/connectkit/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	keyring.MockInit()
	return NewStore(NewKeychain("connectkit-test"))
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	obtained := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	creds := &oauth.Credentials{
		AccessToken:  "xoxb-1",
		RefreshToken: "r-1",
		TokenType:    "bot",
		ExpiresIn:    43200,
		Scope:        "chat:write,channels:read",
		ObtainedAt:   obtained,
		ProviderFields: map[string]any{
			"team": map[string]any{"id": "T1", "name": "Acme"},
		},
	}
	require.NoError(t, s.Save(ctx, "slack", creds))

	got, err := s.Load(ctx, "slack")
	require.NoError(t, err)
	assert.Equal(t, "xoxb-1", got.AccessToken)
	assert.Equal(t, "r-1", got.RefreshToken)
	assert.Equal(t, int64(43200), got.ExpiresIn)
	assert.True(t, obtained.Equal(got.ObtainedAt))
	assert.Equal(t, map[string]any{"id": "T1", "name": "Acme"}, got.ProviderFields["team"])

	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"slack"}, names)
}

func TestStore_SaveRejectsEmptyToken(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(context.Background(), "slack", &oauth.Credentials{})

	var authErr *pkgerrors.AuthError
	assert.ErrorAs(t, err, &authErr)
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load(context.Background(), "jira")

	var authErr *pkgerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Reason, "jira")
	assert.True(t, errors.Is(err, ErrSecretNotFound))
}

func TestStore_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"slack", "jira"} {
		require.NoError(t, s.Save(ctx, name, &oauth.Credentials{AccessToken: "t-" + name}))
	}
	names, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jira", "slack"}, names)

	require.NoError(t, s.Delete(ctx, "slack"))
	require.NoError(t, s.Delete(ctx, "slack"), "second delete is a no-op")

	names, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"jira"}, names)

	_, err = s.Load(ctx, "slack")
	assert.Error(t, err)
}

func TestStore_Pending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := Pending{
		State:        "state-1",
		CodeVerifier: "verifier-1",
		RedirectURI:  "http://localhost:8765/callback",
		CreatedAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SavePending(ctx, "jira", p))

	got, err := s.TakePending(ctx, "jira")
	require.NoError(t, err)
	assert.Equal(t, "state-1", got.State)
	assert.Equal(t, "verifier-1", got.CodeVerifier)

	_, err = s.TakePending(ctx, "jira")
	var nf *pkgerrors.NotFoundError
	assert.ErrorAs(t, err, &nf, "pending authorization is consumed")
}

func TestStore_CorruptEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, keyring.Set("connectkit-test", "connector/slack", "{not json"))
	_, err := s.Load(ctx, "slack")
	assert.ErrorContains(t, err, "corrupt")
}

func TestKeychain_Unavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: connection refused"))
	t.Cleanup(keyring.MockInit)

	kc := NewKeychain("")
	assert.False(t, kc.Available())

	_, err := kc.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrBackendUnavailable)

	err = kc.Set(context.Background(), "k", "v")
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestKeychain_OtherErrors(t *testing.T) {
	keyring.MockInitWithError(errors.New("boom"))
	t.Cleanup(keyring.MockInit)

	err := NewKeychain("").Delete(context.Background(), "k")
	assert.ErrorContains(t, err, "keychain error: boom")
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
}
