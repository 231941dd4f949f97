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

// SessionState tracks a provisioning session through its lifecycle.
type SessionState string

const (
	SessionConnected     SessionState = "connected"
	SessionAuthenticated SessionState = "authenticated"
	SessionStaging       SessionState = "staging"
	SessionApplying      SessionState = "applying"
	SessionApplied       SessionState = "applied"
	SessionFailed        SessionState = "failed"
	SessionDisconnected  SessionState = "disconnected"
)

// ProvisioningSession is the per-connection state of the BLE gateway. It is
// created on connect and destroyed on disconnect; authentication never
// outlives the underlying connection, and a reconnecting peer always gets a
// fresh session.
type ProvisioningSession struct {
	ID            string
	Peer          string
	Authenticated bool
	State         SessionState
	Staged        *CredentialPayload
	DeviceName    string
	StartedAt     time.Time
}
