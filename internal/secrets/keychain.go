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
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// DefaultService is the keychain service name for connectkit entries.
const DefaultService = "connectkit"

var (
	// ErrSecretNotFound is returned when no entry exists for a key.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrBackendUnavailable is returned when the keychain is locked or missing.
	ErrBackendUnavailable = errors.New("keychain unavailable")
)

// Keychain reads and writes raw strings in the system keychain.
type Keychain struct {
	service string
}

// NewKeychain returns a keychain scoped to service.
func NewKeychain(service string) *Keychain {
	if service == "" {
		service = DefaultService
	}
	return &Keychain{service: service}
}

// Get retrieves a value.
func (k *Keychain) Get(ctx context.Context, key string) (string, error) {
	value, err := keyring.Get(k.service, key)
	if err != nil {
		return "", k.mapError(key, err)
	}
	return value, nil
}

// Set stores a value, replacing any existing one.
func (k *Keychain) Set(ctx context.Context, key, value string) error {
	if err := keyring.Set(k.service, key, value); err != nil {
		return k.mapError(key, err)
	}
	return nil
}

// Delete removes a value.
func (k *Keychain) Delete(ctx context.Context, key string) error {
	if err := keyring.Delete(k.service, key); err != nil {
		return k.mapError(key, err)
	}
	return nil
}

// Available reports whether the keychain answers a lookup.
func (k *Keychain) Available() bool {
	_, err := keyring.Get(k.service, "__connectkit_availability_test__")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

func (k *Keychain) mapError(key string, err error) error {
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	case isKeychainUnavailableError(err):
		return fmt.Errorf("%w: %s", ErrBackendUnavailable, err.Error())
	default:
		return fmt.Errorf("keychain error: %w", err)
	}
}

// isKeychainUnavailableError matches the platform messages for a locked or
// inaccessible keychain.
func isKeychainUnavailableError(err error) bool {
	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"locked",
		"cannot access",
		"permission denied",
		"failed to unlock",
		"user interaction required",
		"secret service",
		"dbus",
		"user canceled",
	} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
