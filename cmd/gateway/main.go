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

// The gateway exposes the BLE provisioning service. It refuses to start
// until the primary manager daemon is active: applying credentials against
// an interface nobody owns races the ownership sequence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/thingdb/netprov/pkg/backend"
	"github.com/thingdb/netprov/pkg/config"
	"github.com/thingdb/netprov/pkg/gateway"
	"github.com/thingdb/netprov/pkg/lifecycle"
	"github.com/thingdb/netprov/pkg/netexec"
	"github.com/thingdb/netprov/pkg/orchestrator"
)

const (
	defaultPrimaryUnit = "NetworkManager.service"
	primaryWait        = 60 * time.Second
	primaryPoll        = time.Second
)

type gatewayConfig struct {
	gateway.Config

	// PrimaryUnit is waited on before the radio goes up.
	PrimaryUnit string `json:"primary_unit"`
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/netprov/gateway.json", "Path to gateway config file")
	flag.Parse()

	ctx := context.Background()

	var cfg gatewayConfig

	cfgLoader := config.NewConfig(nil)
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.PrimaryUnit == "" {
		cfg.PrimaryUnit = defaultPrimaryUnit
	}

	if cfg.LocalName == "" {
		cfg.LocalName = gateway.DefaultLocalName
	}

	gwLogger, err := lifecycle.CreateComponentLogger("gateway", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	runner := netexec.NewExecRunner(gwLogger)

	if err := waitForUnit(ctx, runner, cfg.PrimaryUnit); err != nil {
		return err
	}

	b, err := backend.Probe(ctx, runner, &cfg.Backend, gwLogger)
	if err != nil {
		return fmt.Errorf("backend probe failed: %w", err)
	}

	systemd, err := orchestrator.NewSystemdClient(ctx)
	if err != nil {
		gwLogger.Warn().Err(err).Msg("Service manager unavailable, window expiry will not mask the unit")
		systemd = nil
	} else {
		defer systemd.Close()
	}

	transport := gateway.NewBLETransport(cfg.LocalName, runner, gwLogger)
	secrets := gateway.NewPairingSecretStore(cfg.PairingSecretPath)

	gw := gateway.New(&cfg.Config, transport, b, secrets, runner, systemd, gwLogger)

	return lifecycle.RunService(ctx, &lifecycle.ServiceOptions{
		Name:    "gateway",
		Service: gw,
		Logger:  gwLogger,
	})
}

// waitForUnit polls the unit's active state. The orchestrator unit runs
// before this one; the poll covers slow daemon settles and manual starts.
func waitForUnit(ctx context.Context, runner netexec.Runner, unit string) error {
	waitCtx, cancel := context.WithTimeout(ctx, primaryWait)
	defer cancel()

	ticker := time.NewTicker(primaryPoll)
	defer ticker.Stop()

	for {
		if out, err := runner.Run(waitCtx, "systemctl", "is-active", unit); err == nil && out == "active" {
			return nil
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("unit %s never became active: %w", unit, waitCtx.Err())
		case <-ticker.C:
		}
	}
}
