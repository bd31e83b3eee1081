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

/*
Package secrets keeps connector credential bundles in the OS keychain.

The auth commands write a bundle after a successful exchange or refresh;
the MCP server reads it when a tool call needs credentials. Entries live
under the "connectkit" service:

	connector/<name>   JSON-encoded oauth.Credentials
	pending/<name>     state and PKCE verifier between "auth url" and "auth exchange"
	index              JSON list of connectors with stored credentials

go-keyring cannot enumerate entries, so the index is maintained alongside.

Supported keychains:

  - macOS: Keychain Access
  - Linux: Secret Service API (GNOME Keyring, KWallet)
  - Windows: Credential Manager

Tests call keyring.MockInit() to use an in-memory keyring.
*/
package secrets
