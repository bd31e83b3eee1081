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
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tombee/connectkit/internal/oauth"
	pkgerrors "github.com/tombee/connectkit/pkg/errors"
)

const indexKey = "index"

// Pending is an authorization started by "auth url" and not yet exchanged.
type Pending struct {
	State        string    `json:"state"`
	CodeVerifier string    `json:"code_verifier,omitempty"`
	RedirectURI  string    `json:"redirect_uri"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists credential bundles per connector.
type Store struct {
	kc *Keychain
	mu sync.Mutex
}

// NewStore creates a store over kc.
func NewStore(kc *Keychain) *Store {
	if kc == nil {
		kc = NewKeychain(DefaultService)
	}
	return &Store{kc: kc}
}

// Save stores creds for connector. The bundle is validated first so an
// unusable token is never persisted.
func (s *Store) Save(ctx context.Context, connector string, creds *oauth.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kc.Set(ctx, credentialKey(connector), string(data)); err != nil {
		return err
	}
	return s.updateIndex(ctx, func(names map[string]bool) { names[connector] = true })
}

// Load returns the stored bundle. A missing bundle is a *errors.AuthError so
// callers can report "run connectkit auth" uniformly.
func (s *Store) Load(ctx context.Context, connector string) (*oauth.Credentials, error) {
	raw, err := s.kc.Get(ctx, credentialKey(connector))
	if err != nil {
		if pkgerrors.Is(err, ErrSecretNotFound) {
			return nil, &pkgerrors.AuthError{
				Reason: fmt.Sprintf("no stored credentials for %s", connector),
				Cause:  err,
			}
		}
		return nil, err
	}

	var creds oauth.Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		return nil, fmt.Errorf("stored credentials for %s are corrupt: %w", connector, err)
	}
	return &creds, nil
}

// Delete removes the stored bundle and any pending authorization. Deleting
// a connector with nothing stored is not an error.
func (s *Store) Delete(ctx context.Context, connector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{credentialKey(connector), pendingKey(connector)} {
		if err := s.kc.Delete(ctx, key); err != nil && !pkgerrors.Is(err, ErrSecretNotFound) {
			return err
		}
	}
	return s.updateIndex(ctx, func(names map[string]bool) { delete(names, connector) })
}

// List returns the connectors with stored credentials, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.readIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// SavePending records an in-flight authorization for connector.
func (s *Store) SavePending(ctx context.Context, connector string, p Pending) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pending authorization: %w", err)
	}
	return s.kc.Set(ctx, pendingKey(connector), string(data))
}

// TakePending returns and removes the in-flight authorization for connector.
func (s *Store) TakePending(ctx context.Context, connector string) (*Pending, error) {
	raw, err := s.kc.Get(ctx, pendingKey(connector))
	if err != nil {
		if pkgerrors.Is(err, ErrSecretNotFound) {
			return nil, &pkgerrors.NotFoundError{Resource: "pending authorization", ID: connector}
		}
		return nil, err
	}
	if err := s.kc.Delete(ctx, pendingKey(connector)); err != nil && !pkgerrors.Is(err, ErrSecretNotFound) {
		return nil, err
	}

	var p Pending
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("pending authorization for %s is corrupt: %w", connector, err)
	}
	return &p, nil
}

func (s *Store) readIndex(ctx context.Context) (map[string]bool, error) {
	raw, err := s.kc.Get(ctx, indexKey)
	if err != nil {
		if pkgerrors.Is(err, ErrSecretNotFound) {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("credential index is corrupt: %w", err)
	}
	names := make(map[string]bool, len(list))
	for _, n := range list {
		names[n] = true
	}
	return names, nil
}

func (s *Store) updateIndex(ctx context.Context, mutate func(map[string]bool)) error {
	names, err := s.readIndex(ctx)
	if err != nil {
		return err
	}
	mutate(names)

	list := make([]string, 0, len(names))
	for n := range names {
		list = append(list, n)
	}
	sort.Strings(list)
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return s.kc.Set(ctx, indexKey, string(data))
}

func credentialKey(connector string) string { return "connector/" + connector }
func pendingKey(connector string) string    { return "pending/" + connector }
