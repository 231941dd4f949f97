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

// SecurityWindow bounds how long the BLE radio stays discoverable. It is
// armed when the gateway process starts; each successful authentication
// pushes the deadline forward, and expiry with no authenticated session
// disables the radio until reboot or an out-of-band re-enable.
type SecurityWindow struct {
	ArmedAt  time.Time `json:"armed_at"`
	Deadline time.Time `json:"deadline"`
	Active   bool      `json:"active"`
}

// Remaining reports the time left before the window closes.
func (w *SecurityWindow) Remaining(now time.Time) time.Duration {
	if !w.Active {
		return 0
	}

	d := w.Deadline.Sub(now)
	if d < 0 {
		return 0
	}

	return d
}
