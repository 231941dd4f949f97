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

//go:generate mockgen -destination=mock_backend.go -package=backend github.com/thingdb/netprov/pkg/backend Backend

// Package backend adapts WiFi credentials onto whichever network-management
// daemon owns the wireless interface. Exactly one variant is selected by
// probing at process start and stays fixed until restart.
package backend

import (
	"context"

	"github.com/thingdb/netprov/pkg/models"
)

// Backend is the capability surface of one network-management strategy.
//
// Connect is synchronous and may block for several seconds (association
// plus address assignment); callers must not invoke it from a goroutine
// that also services time-sensitive I/O.
type Backend interface {
	// Variant identifies the strategy this backend drives.
	Variant() models.BackendVariant

	// Representation declares the secret encoding this backend expects.
	// Connect re-encodes the payload to this representation before use.
	Representation() models.Representation

	// Scan returns the networks currently visible on the wireless interface.
	Scan(ctx context.Context) ([]models.NetworkDescriptor, error)

	// Connect associates with the given network. Errors are one of
	// ErrNoSuchNetwork, ErrAuthFailure, ErrTimeout or ErrDriverError.
	Connect(ctx context.Context, cred *models.CredentialPayload) error

	// Status reports the current connection state.
	Status(ctx context.Context) (*models.BackendState, error)
}
