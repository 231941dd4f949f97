/*
 * Copyright 2026 ThingDB.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

// Representation declares how a credential secret is encoded. Each backend
// variant expects exactly one representation; handing a pre-derived key to
// a backend that derives its own key from a raw passphrase yields a
// credential that always fails association.
type Representation string

const (
	// RepresentationRawPassphrase is the human-entered WPA passphrase.
	RepresentationRawPassphrase Representation = "raw_passphrase"
	// RepresentationDerivedKey is the 64-hex-digit PBKDF2 PSK.
	RepresentationDerivedKey Representation = "derived_key"
)

// CredentialPayload carries one set of WiFi credentials from the gateway to
// the backend adapter. It exists only transiently: the gateway zeroes it
// after handoff and never persists it.
type CredentialPayload struct {
	SSID           string
	Secret         string
	Representation Representation
	Hidden         bool
}

// Open reports whether the payload describes an open (passwordless) network.
func (c *CredentialPayload) Open() bool {
	return c.Secret == ""
}

// Wipe overwrites the secret material in place.
func (c *CredentialPayload) Wipe() {
	c.SSID = ""
	c.Secret = ""
	c.Representation = ""
	c.Hidden = false
}
