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

// Package models holds the shared types exchanged between the orchestrator,
// the stability monitor and the BLE provisioning gateway.
package models

import "time"

// InterfaceKind distinguishes wired from wireless links.
type InterfaceKind string

const (
	InterfaceWired    InterfaceKind = "wired"
	InterfaceWireless InterfaceKind = "wireless"
)

// OperState mirrors the kernel operational state of a link.
type OperState string

const (
	OperDown    OperState = "down"
	OperDormant OperState = "dormant"
	OperUp      OperState = "up"
)

// InterfaceRecord describes one network interface as sampled from the OS.
// Records are created at boot and mutated only by the orchestrator and the
// monitor; the gateway never creates or modifies them.
type InterfaceRecord struct {
	Name        string        `json:"name"`
	Kind        InterfaceKind `json:"kind"`
	OperState   OperState     `json:"oper_state"`
	AdminUp     bool          `json:"admin_up"`
	IPAddress   string        `json:"ip_address,omitempty"`
	OwnerDaemon *string       `json:"owner_daemon,omitempty"`
}

// OwnershipAssignment records which daemon owns an interface. At most one
// assignment exists per interface at any time.
type OwnershipAssignment struct {
	Interface     string    `json:"interface"`
	DaemonID      string    `json:"daemon_id"`
	EstablishedAt time.Time `json:"established_at"`
}

// NetworkDescriptor is one entry from a wireless scan.
type NetworkDescriptor struct {
	SSID     string `json:"ssid"`
	Signal   int    `json:"signal"`
	Security string `json:"security,omitempty"`
}

// BackendVariant identifies which network-management strategy is active on
// the host.
type BackendVariant string

const (
	VariantNetworkManager BackendVariant = "networkmanager"
	VariantWPASupplicant  BackendVariant = "wpa_supplicant"
)

// BackendState is the adapter's view of the active connection.
type BackendState struct {
	Variant   BackendVariant `json:"variant"`
	Connected bool           `json:"connected"`
	SSID      string         `json:"ssid,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
}
