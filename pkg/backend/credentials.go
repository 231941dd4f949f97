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

package backend

import (
	"crypto/sha1" //nolint:gosec // WPA2 PSK derivation is defined over SHA-1
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/thingdb/netprov/pkg/models"
)

const (
	pskIterations = 4096
	pskKeyLen     = 32

	minPassphraseLen = 8
	maxPassphraseLen = 63
)

// DerivePSK computes the WPA2 pre-shared key for a passphrase and SSID:
// PBKDF2-SHA1, 4096 rounds, 32 bytes, hex encoded.
func DerivePSK(ssid, passphrase string) string {
	key := pbkdf2.Key([]byte(passphrase), []byte(ssid), pskIterations, pskKeyLen, sha1.New)
	return hex.EncodeToString(key)
}

// EncodeSecret re-encodes a credential into the representation the active
// backend expects. It is total over its inputs: identity conversions pass
// through, raw→derived runs the PSK derivation, and derived→raw fails with
// ErrIrreversibleRepresentation. Open networks pass through unchanged in
// every direction.
func EncodeSecret(cred *models.CredentialPayload, want models.Representation) (*models.CredentialPayload, error) {
	if cred.SSID == "" {
		return nil, errEmptySSID
	}

	out := *cred

	if cred.Open() {
		out.Representation = want
		return &out, nil
	}

	switch {
	case cred.Representation == want:
		return &out, nil

	case cred.Representation == models.RepresentationRawPassphrase &&
		want == models.RepresentationDerivedKey:
		if len(cred.Secret) < minPassphraseLen || len(cred.Secret) > maxPassphraseLen {
			return nil, fmt.Errorf("%w: passphrase length %d outside [%d,%d]",
				ErrAuthFailure, len(cred.Secret), minPassphraseLen, maxPassphraseLen)
		}

		out.Secret = DerivePSK(cred.SSID, cred.Secret)
		out.Representation = models.RepresentationDerivedKey

		return &out, nil

	case cred.Representation == models.RepresentationDerivedKey &&
		want == models.RepresentationRawPassphrase:
		return nil, ErrIrreversibleRepresentation

	default:
		return nil, fmt.Errorf("unknown credential representation %q", cred.Representation)
	}
}
