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

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/models"
	"github.com/thingdb/netprov/pkg/netexec"
)

const (
	nmcliBin = "nmcli"

	// nmcli terse scan output carries SIGNAL and SECURITY as the last two fields.
	nmScanTrailingFields = 2
)

// NetworkManagerBackend drives NetworkManager through nmcli. NetworkManager
// derives the WPA key itself, so this variant expects the raw passphrase.
type NetworkManagerBackend struct {
	runner  netexec.Runner
	iface   string
	timeout time.Duration
	logger  logger.Logger

	mu       sync.Mutex
	lastScan []models.NetworkDescriptor
}

// NewNetworkManagerBackend creates the nmcli-driven backend for iface.
func NewNetworkManagerBackend(runner netexec.Runner, iface string, timeout time.Duration, log logger.Logger) *NetworkManagerBackend {
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	return &NetworkManagerBackend{
		runner:  runner,
		iface:   iface,
		timeout: timeout,
		logger:  log,
	}
}

func (*NetworkManagerBackend) Variant() models.BackendVariant {
	return models.VariantNetworkManager
}

func (*NetworkManagerBackend) Representation() models.Representation {
	return models.RepresentationRawPassphrase
}

// Scan lists visible networks, forcing a fresh radio scan.
func (b *NetworkManagerBackend) Scan(ctx context.Context) ([]models.NetworkDescriptor, error) {
	out, err := b.runner.Run(ctx, nmcliBin,
		"-t", "-f", "SSID,SIGNAL,SECURITY", "dev", "wifi", "list",
		"ifname", b.iface, "--rescan", "yes")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDriverError, firstLine(out))
	}

	networks := parseNmcliScan(out)

	b.mu.Lock()
	b.lastScan = networks
	b.mu.Unlock()

	b.logger.Debug().Int("networks", len(networks)).Msg("WiFi scan completed")

	return networks, nil
}

// Connect associates with the network. Reconnecting to the SSID the device
// is already connected to is a no-op so credentials can be re-applied
// without an interface down/up flicker.
func (b *NetworkManagerBackend) Connect(ctx context.Context, cred *models.CredentialPayload) error {
	encoded, err := EncodeSecret(cred, b.Representation())
	if err != nil {
		return err
	}

	if state, statusErr := b.Status(ctx); statusErr == nil &&
		state.Connected && state.SSID == encoded.SSID {
		b.logger.Info().Str("ssid", encoded.SSID).Msg("Already connected, skipping reconnect")
		return nil
	}

	if err := b.ensureVisible(ctx, encoded.SSID, encoded.Hidden); err != nil {
		return err
	}

	args := []string{"dev", "wifi", "connect", encoded.SSID}
	if !encoded.Open() {
		args = append(args, "password", encoded.Secret)
	}

	args = append(args, "ifname", b.iface)

	if encoded.Hidden {
		args = append(args, "hidden", "yes")
	}

	connectCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	out, err := b.runner.Run(connectCtx, nmcliBin, args...)
	if err != nil {
		return mapNmcliError(connectCtx, out, err)
	}

	b.logger.Info().Str("ssid", encoded.SSID).Msg("Connected")

	return nil
}

// Status reports the device connection state from nmcli.
func (b *NetworkManagerBackend) Status(ctx context.Context) (*models.BackendState, error) {
	out, err := b.runner.Run(ctx, nmcliBin,
		"-t", "-f", "GENERAL.STATE,GENERAL.CONNECTION,IP4.ADDRESS", "dev", "show", b.iface)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDriverError, firstLine(out))
	}

	state := &models.BackendState{Variant: models.VariantNetworkManager}

	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch {
		case key == "GENERAL.STATE":
			state.Connected = strings.Contains(value, "(connected)")
		case key == "GENERAL.CONNECTION":
			state.SSID = value
		case strings.HasPrefix(key, "IP4.ADDRESS") && state.IPAddress == "":
			addr, _, _ := strings.Cut(value, "/")
			state.IPAddress = addr
		}
	}

	return state, nil
}

// ensureVisible checks the SSID against the last scan, rescanning when the
// cache is empty. Hidden networks cannot appear in scans and skip the check.
func (b *NetworkManagerBackend) ensureVisible(ctx context.Context, ssid string, hidden bool) error {
	if hidden {
		return nil
	}

	b.mu.Lock()
	cached := b.lastScan
	b.mu.Unlock()

	if len(cached) == 0 {
		var err error

		cached, err = b.Scan(ctx)
		if err != nil {
			return err
		}
	}

	for i := range cached {
		if cached[i].SSID == ssid {
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrNoSuchNetwork, ssid)
}

func parseNmcliScan(out string) []models.NetworkDescriptor {
	var networks []models.NetworkDescriptor

	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) < nmScanTrailingFields+1 {
			continue
		}

		// SSIDs may contain colons; SIGNAL and SECURITY never do.
		ssid := strings.Join(fields[:len(fields)-nmScanTrailingFields], ":")
		if ssid == "" {
			continue
		}

		signal, _ := strconv.Atoi(fields[len(fields)-2])

		networks = append(networks, models.NetworkDescriptor{
			SSID:     ssid,
			Signal:   signal,
			Security: fields[len(fields)-1],
		})
	}

	return networks
}

func mapNmcliError(ctx context.Context, out string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}

	switch {
	case strings.Contains(out, "Secrets were required"),
		strings.Contains(out, "secrets were required"),
		strings.Contains(out, "802-11-wireless-security.psk"):
		return fmt.Errorf("%w: %s", ErrAuthFailure, firstLine(out))
	case strings.Contains(out, "No network with SSID"):
		return fmt.Errorf("%w: %s", ErrNoSuchNetwork, firstLine(out))
	default:
		return fmt.Errorf("%w: %s: %w", ErrDriverError, firstLine(out), err)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
