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
	"encoding/hex"
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
	wpaCliBin = "wpa_cli"

	wpaStatePollInterval = time.Second

	// scan_results fields: bssid, frequency, signal, flags, ssid.
	wpaScanFields = 5
)

// WPASupplicantBackend drives a system-wide wpa_supplicant through wpa_cli.
// The supplicant is handed a pre-derived PSK, never a raw passphrase; this
// matches the wpa_passphrase-based flow the mobile clients were built
// against and keeps the secret out of the control socket in clear form.
type WPASupplicantBackend struct {
	runner  netexec.Runner
	iface   string
	timeout time.Duration
	logger  logger.Logger

	mu       sync.Mutex
	lastScan []models.NetworkDescriptor
}

// NewWPASupplicantBackend creates the wpa_cli-driven backend for iface.
func NewWPASupplicantBackend(runner netexec.Runner, iface string, timeout time.Duration, log logger.Logger) *WPASupplicantBackend {
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}

	return &WPASupplicantBackend{
		runner:  runner,
		iface:   iface,
		timeout: timeout,
		logger:  log,
	}
}

func (*WPASupplicantBackend) Variant() models.BackendVariant {
	return models.VariantWPASupplicant
}

func (*WPASupplicantBackend) Representation() models.Representation {
	return models.RepresentationDerivedKey
}

func (b *WPASupplicantBackend) wpaCli(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-i", b.iface}, args...)

	out, err := b.runner.Run(ctx, wpaCliBin, full...)
	if err != nil {
		return out, fmt.Errorf("%w: %s", ErrDriverError, firstLine(out))
	}

	if strings.HasPrefix(out, "FAIL") {
		return out, fmt.Errorf("%w: wpa_cli %s: %s", ErrDriverError, args[0], firstLine(out))
	}

	return out, nil
}

// Scan triggers a radio scan and returns the parsed results.
func (b *WPASupplicantBackend) Scan(ctx context.Context) ([]models.NetworkDescriptor, error) {
	if _, err := b.wpaCli(ctx, "scan"); err != nil {
		return nil, err
	}

	// The supplicant needs a moment to populate results after the trigger.
	select {
	case <-time.After(2 * time.Second):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	out, err := b.wpaCli(ctx, "scan_results")
	if err != nil {
		return nil, err
	}

	networks := parseWpaScanResults(out)

	b.mu.Lock()
	b.lastScan = networks
	b.mu.Unlock()

	b.logger.Debug().Int("networks", len(networks)).Msg("WiFi scan completed")

	return networks, nil
}

// Connect configures a network block for the SSID (reusing an existing one
// rather than appending duplicates), enables it and waits for association.
func (b *WPASupplicantBackend) Connect(ctx context.Context, cred *models.CredentialPayload) error {
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

	id, err := b.findOrAddNetwork(ctx, encoded.SSID)
	if err != nil {
		return err
	}

	if err := b.configureNetwork(ctx, id, encoded); err != nil {
		return err
	}

	if _, err := b.wpaCli(ctx, "select_network", id); err != nil {
		return err
	}

	if _, err := b.wpaCli(ctx, "save_config"); err != nil {
		b.logger.Warn().Err(err).Msg("save_config failed, network will not survive supplicant restart")
	}

	return b.waitForCompleted(ctx, encoded.SSID)
}

// Status parses `wpa_cli status` key=value output.
func (b *WPASupplicantBackend) Status(ctx context.Context) (*models.BackendState, error) {
	out, err := b.wpaCli(ctx, "status")
	if err != nil {
		return nil, err
	}

	state := &models.BackendState{Variant: models.VariantWPASupplicant}

	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		switch key {
		case "wpa_state":
			state.Connected = value == "COMPLETED"
		case "ssid":
			state.SSID = value
		case "ip_address":
			state.IPAddress = value
		}
	}

	return state, nil
}

func (b *WPASupplicantBackend) ensureVisible(ctx context.Context, ssid string, hidden bool) error {
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

// findOrAddNetwork returns the id of the existing network block for ssid,
// or adds a new one.
func (b *WPASupplicantBackend) findOrAddNetwork(ctx context.Context, ssid string) (string, error) {
	out, err := b.wpaCli(ctx, "list_networks")
	if err != nil {
		return "", err
	}

	for _, line := range strings.Split(out, "\n")[1:] { // first line is the header
		fields := strings.Split(line, "\t")
		if len(fields) >= 2 && fields[1] == ssid {
			return fields[0], nil
		}
	}

	id, err := b.wpaCli(ctx, "add_network")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(id), nil
}

func (b *WPASupplicantBackend) configureNetwork(ctx context.Context, id string, cred *models.CredentialPayload) error {
	// The ssid is passed hex-encoded so quoting and UTF-8 survive wpa_cli.
	ssidHex := hex.EncodeToString([]byte(cred.SSID))
	if _, err := b.wpaCli(ctx, "set_network", id, "ssid", ssidHex); err != nil {
		return err
	}

	if cred.Open() {
		if _, err := b.wpaCli(ctx, "set_network", id, "key_mgmt", "NONE"); err != nil {
			return err
		}
	} else {
		if _, err := b.wpaCli(ctx, "set_network", id, "key_mgmt", "WPA-PSK"); err != nil {
			return err
		}

		// A 64-hex PSK goes unquoted; quoting would make the supplicant
		// treat it as a passphrase and re-derive, failing association.
		if _, err := b.wpaCli(ctx, "set_network", id, "psk", cred.Secret); err != nil {
			return err
		}
	}

	if cred.Hidden {
		if _, err := b.wpaCli(ctx, "set_network", id, "scan_ssid", "1"); err != nil {
			return err
		}
	}

	if _, err := b.wpaCli(ctx, "enable_network", id); err != nil {
		return err
	}

	return nil
}

// waitForCompleted polls supplicant state until COMPLETED or the timeout.
// Seeing the 4-way handshake start but never complete is reported as an
// auth failure rather than a generic timeout.
func (b *WPASupplicantBackend) waitForCompleted(ctx context.Context, ssid string) error {
	deadline := time.NewTimer(b.timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(wpaStatePollInterval)
	defer ticker.Stop()

	sawHandshake := false

	for {
		select {
		case <-ctx.Done():
			return ErrTimeout
		case <-deadline.C:
			if sawHandshake {
				return fmt.Errorf("%w: handshake with %q never completed", ErrAuthFailure, ssid)
			}

			return ErrTimeout
		case <-ticker.C:
			out, err := b.wpaCli(ctx, "status")
			if err != nil {
				return err
			}

			switch wpaStateOf(out) {
			case "COMPLETED":
				b.logger.Info().Str("ssid", ssid).Msg("Connected")
				return nil
			case "4WAY_HANDSHAKE", "GROUP_HANDSHAKE":
				sawHandshake = true
			}
		}
	}
}

func wpaStateOf(statusOut string) string {
	for _, line := range strings.Split(statusOut, "\n") {
		if v, ok := strings.CutPrefix(line, "wpa_state="); ok {
			return v
		}
	}

	return ""
}

func parseWpaScanResults(out string) []models.NetworkDescriptor {
	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		return nil
	}

	var networks []models.NetworkDescriptor

	for _, line := range lines[1:] { // first line is the header
		fields := strings.Split(line, "\t")
		if len(fields) < wpaScanFields {
			continue
		}

		ssid := fields[4]
		if ssid == "" {
			continue
		}

		signal, _ := strconv.Atoi(fields[2])

		networks = append(networks, models.NetworkDescriptor{
			SSID:     ssid,
			Signal:   signal,
			Security: fields[3],
		})
	}

	return networks
}
