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

import "context"

// Characteristic names the writable GATT characteristics of the
// provisioning profile.
type Characteristic string

const (
	CharSSID       Characteristic = "ssid"
	CharPassword   Characteristic = "password"
	CharDeviceName Characteristic = "device-name"
	CharCommand    Characteristic = "command"
)

// EventType classifies transport events.
type EventType int

const (
	EventPeerConnected EventType = iota
	EventPeerDisconnected
	EventWrite
)

// Event is one BLE occurrence delivered to the gateway's event loop.
type Event struct {
	Type  EventType
	Peer  string
	Char  Characteristic
	Value []byte
}

// Transport is the radio surface the gateway core runs on. The real
// implementation is BlueZ-backed BLE; tests drive the core through a fake.
type Transport interface {
	// Start enables the radio, registers the GATT profile, begins
	// advertising and returns the event stream. The stream closes when
	// the transport shuts down.
	Start(ctx context.Context) (<-chan Event, error)

	// Notify pushes a status token to the subscribed peer, if any.
	Notify(value []byte) error

	// StopAdvertising stops advertising but leaves the radio usable for
	// the connected peer.
	StopAdvertising() error

	// PowerOff disables the radio entirely. Used when the security
	// window expires.
	PowerOff() error

	// Close releases transport resources.
	Close() error
}
