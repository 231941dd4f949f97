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

package orchestrator

import (
	"context"

	"github.com/thingdb/netprov/pkg/models"
)

// SystemdClient is the subset of the service manager API the orchestrator
// needs. All operations are idempotent at this level: starting an active
// unit or masking a masked one is a no-op.
type SystemdClient interface {
	StartUnit(ctx context.Context, unit string) error
	StopUnit(ctx context.Context, unit string) error
	EnableUnit(ctx context.Context, unit string) error
	DisableUnit(ctx context.Context, unit string) error
	MaskUnit(ctx context.Context, unit string) error
	UnmaskUnit(ctx context.Context, unit string) error
	ActiveState(ctx context.Context, unit string) (string, error)
	Close()
}

// LinkManager samples and administers network links.
type LinkManager interface {
	// List returns records for all non-loopback links.
	List() ([]models.InterfaceRecord, error)

	// SetUp administratively brings a link up.
	SetUp(name string) error

	// RouteCount returns the number of IPv4 routes installed.
	RouteCount() (int, error)
}
