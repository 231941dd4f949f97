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
	"time"

	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/netexec"
)

const (
	defaultConnectTimeout = 20 * time.Second

	defaultWirelessInterface = "wlan0"

	networkManagerUnit = "NetworkManager.service"
	wpaSupplicantUnit  = "wpa_supplicant.service"
)

// ProbeConfig controls backend selection.
type ProbeConfig struct {
	Interface      string        `json:"interface"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

func (c *ProbeConfig) withDefaults() ProbeConfig {
	out := *c

	if out.Interface == "" {
		out.Interface = defaultWirelessInterface
	}

	if out.ConnectTimeout == 0 {
		out.ConnectTimeout = defaultConnectTimeout
	}

	return out
}

// Probe selects the backend variant by asking which manager daemon is
// active. The result is fixed for the lifetime of the process; a daemon
// switch requires a restart to be picked up.
func Probe(ctx context.Context, runner netexec.Runner, cfg *ProbeConfig, log logger.Logger) (Backend, error) {
	c := cfg.withDefaults()

	if unitActive(ctx, runner, networkManagerUnit) {
		log.Info().Str("variant", "networkmanager").Str("interface", c.Interface).Msg("Backend selected")
		return NewNetworkManagerBackend(runner, c.Interface, c.ConnectTimeout, log), nil
	}

	// The supplicant may also be running outside its unit (manual start,
	// non-systemd image); a responding control socket counts.
	if unitActive(ctx, runner, wpaSupplicantUnit) || wpaCliAnswers(ctx, runner, c.Interface) {
		log.Info().Str("variant", "wpa_supplicant").Str("interface", c.Interface).Msg("Backend selected")
		return NewWPASupplicantBackend(runner, c.Interface, c.ConnectTimeout, log), nil
	}

	return nil, ErrNoBackend
}

func wpaCliAnswers(ctx context.Context, runner netexec.Runner, iface string) bool {
	_, err := runner.Run(ctx, wpaCliBin, "-i", iface, "status")
	return err == nil
}

func unitActive(ctx context.Context, runner netexec.Runner, unit string) bool {
	out, err := runner.Run(ctx, "systemctl", "is-active", unit)
	return err == nil && out == "active"
}
