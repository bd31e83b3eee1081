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

// Package httpclient builds the *http.Client connectkit uses for vendor APIs
// and OAuth token endpoints.
//
// Clients make exactly one attempt per request. Connection setup is bounded
// by dial and TLS handshake timeouts, but there is no overall request
// timeout: callers cancel through the request context. Each request
// carries the W3C trace context of its span and is logged at debug level
// with sensitive query parameters redacted.
package httpclient
