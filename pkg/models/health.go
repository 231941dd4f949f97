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

import "time"

// HealthSnapshot is one sample of the device's network health. Snapshots
// are immutable once produced and are appended to the diagnostic journal.
type HealthSnapshot struct {
	Timestamp         time.Time         `json:"timestamp"`
	OwnerDaemonActive bool              `json:"owner_daemon_active"`
	Interfaces        []InterfaceRecord `json:"interfaces"`
	RouteCount        int               `json:"route_count"`
	UptimeSeconds     uint64            `json:"uptime_seconds"`
	Load1             float64           `json:"load1"`
}

// Healthy classifies a snapshot. A device is healthy iff the primary
// manager daemon is active, the routing table is non-empty, and no
// interface is administratively down.
func (h *HealthSnapshot) Healthy() bool {
	if !h.OwnerDaemonActive || h.RouteCount == 0 {
		return false
	}

	for i := range h.Interfaces {
		if !h.Interfaces[i].AdminUp {
			return false
		}
	}

	return true
}
