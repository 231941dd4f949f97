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

package gateway

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"
)

// DefaultPairingSecretPath holds the out-of-band pairing secret, readable
// only by the gateway process.
const DefaultPairingSecretPath = "/etc/netprov/pairing.secret"

// PairingSecretStore verifies the shared secret a peer must present before
// any provisioning write is accepted.
type PairingSecretStore struct {
	path string
}

// NewPairingSecretStore creates a store reading from path.
func NewPairingSecretStore(path string) *PairingSecretStore {
	if path == "" {
		path = DefaultPairingSecretPath
	}

	return &PairingSecretStore{path: path}
}

// Verify compares candidate against the stored secret in constant time.
// The file is re-read on every attempt so rotating it invalidates all
// previously-known pairing codes immediately.
func (s *PairingSecretStore) Verify(candidate string) (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, fmt.Errorf("failed to read pairing secret: %w", err)
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return false, fmt.Errorf("pairing secret at %s is empty", s.path)
	}

	return subtle.ConstantTimeCompare([]byte(secret), []byte(candidate)) == 1, nil
}
