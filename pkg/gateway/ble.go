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

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/netexec"
)

// GATT profile UUIDs. Fixed: the companion mobile app discovers the
// service and characteristics by these values.
const (
	serviceUUIDStr    = "a1a1a1a1-0000-1000-8000-00805f9b34fb"
	ssidCharUUIDStr   = "a1a1a1a1-0001-1000-8000-00805f9b34fb"
	passCharUUIDStr   = "a1a1a1a1-0002-1000-8000-00805f9b34fb"
	nameCharUUIDStr   = "a1a1a1a1-0003-1000-8000-00805f9b34fb"
	statusCharUUIDStr = "a1a1a1a1-0004-1000-8000-00805f9b34fb"
	cmdCharUUIDStr    = "a1a1a1a1-0005-1000-8000-00805f9b34fb"
)

const eventBuffer = 16

func mustUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("invalid UUID %q: %v", s, err))
	}

	return u
}

// BLETransport implements Transport over the BlueZ stack. The peripheral
// serves one central at a time; writes are attributed to the most recently
// connected peer.
type BLETransport struct {
	localName string
	adapter   *bluetooth.Adapter
	adv       *bluetooth.Advertisement
	runner    netexec.Runner
	logger    logger.Logger

	statusChar bluetooth.Characteristic

	mu          sync.Mutex
	currentPeer string
	events      chan Event
	closed      bool
}

// NewBLETransport creates the BlueZ transport. The runner is used to block
// the radio at rfkill level on PowerOff.
func NewBLETransport(localName string, runner netexec.Runner, log logger.Logger) *BLETransport {
	return &BLETransport{
		localName: localName,
		adapter:   bluetooth.DefaultAdapter,
		runner:    runner,
		logger:    log,
		events:    make(chan Event, eventBuffer),
	}
}

// Start enables the adapter, registers the provisioning service and starts
// advertising.
func (t *BLETransport) Start(_ context.Context) (<-chan Event, error) {
	if err := t.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	t.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		peer := device.Address.String()

		t.mu.Lock()
		if connected {
			t.currentPeer = peer
		} else if t.currentPeer == peer {
			t.currentPeer = ""
		}
		t.mu.Unlock()

		if connected {
			t.emit(Event{Type: EventPeerConnected, Peer: peer})
		} else {
			t.emit(Event{Type: EventPeerDisconnected, Peer: peer})
		}
	})

	service := &bluetooth.Service{
		UUID: mustUUID(serviceUUIDStr),
		Characteristics: []bluetooth.CharacteristicConfig{
			t.writeCharacteristic(ssidCharUUIDStr, CharSSID),
			t.writeCharacteristic(passCharUUIDStr, CharPassword),
			t.writeCharacteristic(nameCharUUIDStr, CharDeviceName),
			t.writeCharacteristic(cmdCharUUIDStr, CharCommand),
			{
				Handle: &t.statusChar,
				UUID:   mustUUID(statusCharUUIDStr),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			},
		},
	}

	if err := t.adapter.AddService(service); err != nil {
		return nil, fmt.Errorf("failed to register GATT service: %w", err)
	}

	t.adv = t.adapter.DefaultAdvertisement()

	err := t.adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    t.localName,
		ServiceUUIDs: []bluetooth.UUID{mustUUID(serviceUUIDStr)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure advertisement: %w", err)
	}

	if err := t.adv.Start(); err != nil {
		return nil, fmt.Errorf("failed to start advertising: %w", err)
	}

	t.logger.Info().Str("local_name", t.localName).Msg("BLE advertising started")

	return t.events, nil
}

func (t *BLETransport) writeCharacteristic(uuidStr string, char Characteristic) bluetooth.CharacteristicConfig {
	return bluetooth.CharacteristicConfig{
		UUID: mustUUID(uuidStr),
		Flags: bluetooth.CharacteristicWritePermission |
			bluetooth.CharacteristicWriteWithoutResponsePermission,
		WriteEvent: func(_ bluetooth.Connection, _ int, value []byte) {
			t.mu.Lock()
			peer := t.currentPeer
			t.mu.Unlock()

			data := make([]byte, len(value))
			copy(data, value)

			t.emit(Event{Type: EventWrite, Peer: peer, Char: char, Value: data})
		},
	}
}

func (t *BLETransport) emit(ev Event) {
	// The send stays under the lock so Close cannot close the channel
	// between the closed check and the send. The send never blocks.
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	select {
	case t.events <- ev:
	default:
		t.logger.Warn().Str("peer", ev.Peer).Msg("Event buffer full, dropping BLE event")
	}
}

// Notify writes the status characteristic, pushing a notification to the
// subscribed peer.
func (t *BLETransport) Notify(value []byte) error {
	if _, err := t.statusChar.Write(value); err != nil {
		return fmt.Errorf("failed to notify status: %w", err)
	}

	return nil
}

// StopAdvertising stops the advertisement.
func (t *BLETransport) StopAdvertising() error {
	if t.adv == nil {
		return nil
	}

	if err := t.adv.Stop(); err != nil {
		return fmt.Errorf("failed to stop advertising: %w", err)
	}

	return nil
}

// PowerOff blocks the bluetooth radio at rfkill level. Recovery requires a
// reboot or an explicit out-of-band unblock.
func (t *BLETransport) PowerOff() error {
	out, err := t.runner.Run(context.Background(), "rfkill", "block", "bluetooth")
	if err != nil {
		return fmt.Errorf("failed to block bluetooth radio: %w (%s)", err, out)
	}

	return nil
}

// Close stops advertising and closes the event stream.
func (t *BLETransport) Close() error {
	err := t.StopAdvertising()

	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.events)
	}
	t.mu.Unlock()

	return err
}
