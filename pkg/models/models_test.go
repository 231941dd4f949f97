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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthSnapshotHealthy(t *testing.T) {
	tests := []struct {
		name string
		snap HealthSnapshot
		want bool
	}{
		{
			name: "all conditions met",
			snap: HealthSnapshot{
				OwnerDaemonActive: true,
				RouteCount:        2,
				Interfaces:        []InterfaceRecord{{Name: "wlan0", AdminUp: true}},
			},
			want: true,
		},
		{
			name: "owner daemon down",
			snap: HealthSnapshot{
				OwnerDaemonActive: false,
				RouteCount:        2,
				Interfaces:        []InterfaceRecord{{Name: "wlan0", AdminUp: true}},
			},
			want: false,
		},
		{
			name: "empty routing table",
			snap: HealthSnapshot{
				OwnerDaemonActive: true,
				RouteCount:        0,
				Interfaces:        []InterfaceRecord{{Name: "wlan0", AdminUp: true}},
			},
			want: false,
		},
		{
			name: "interface admin down",
			snap: HealthSnapshot{
				OwnerDaemonActive: true,
				RouteCount:        2,
				Interfaces: []InterfaceRecord{
					{Name: "eth0", AdminUp: true},
					{Name: "wlan0", AdminUp: false},
				},
			},
			want: false,
		},
		{
			name: "operationally dormant is still healthy",
			snap: HealthSnapshot{
				OwnerDaemonActive: true,
				RouteCount:        1,
				Interfaces: []InterfaceRecord{
					{Name: "wlan0", AdminUp: true, OperState: OperDormant},
				},
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.Healthy())
		})
	}
}

func TestCredentialPayloadOpen(t *testing.T) {
	open := CredentialPayload{SSID: "cafe"}
	assert.True(t, open.Open())

	secured := CredentialPayload{SSID: "home", Secret: "passphrase"}
	assert.False(t, secured.Open())
}

func TestCredentialPayloadWipe(t *testing.T) {
	cred := CredentialPayload{
		SSID:           "home",
		Secret:         "passphrase",
		Representation: RepresentationRawPassphrase,
		Hidden:         true,
	}

	cred.Wipe()

	assert.Equal(t, CredentialPayload{}, cred)
}

func TestSecurityWindowRemaining(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	w := SecurityWindow{
		ArmedAt:  now,
		Deadline: now.Add(10 * time.Minute),
		Active:   true,
	}

	assert.Equal(t, 10*time.Minute, w.Remaining(now))
	assert.Equal(t, time.Minute, w.Remaining(now.Add(9*time.Minute)))
	assert.Equal(t, time.Duration(0), w.Remaining(now.Add(11*time.Minute)))

	w.Active = false
	assert.Equal(t, time.Duration(0), w.Remaining(now))
}
