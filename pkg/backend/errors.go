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

import "errors"

var (
	// ErrNoSuchNetwork means the SSID was not present in the last scan.
	ErrNoSuchNetwork = errors.New("no such network")

	// ErrAuthFailure means association was rejected by the access point.
	ErrAuthFailure = errors.New("authentication failure")

	// ErrTimeout means the connect did not complete within the bound.
	ErrTimeout = errors.New("connect timed out")

	// ErrDriverError means the interface is unavailable or the radio is blocked.
	ErrDriverError = errors.New("driver error")

	// ErrNoBackend means probing found no active network-management daemon.
	ErrNoBackend = errors.New("no active network management daemon found")

	// ErrIrreversibleRepresentation means a derived key was offered to a
	// backend that derives its own key from a raw passphrase. The
	// derivation cannot be reversed, and passing the key through verbatim
	// would produce a credential that always fails association.
	ErrIrreversibleRepresentation = errors.New("cannot recover raw passphrase from derived key")

	errEmptySSID = errors.New("ssid must not be empty")
)
