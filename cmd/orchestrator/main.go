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

// The orchestrator runs the interface-ownership sequence once at boot. It
// is a oneshot: the gateway and monitor units order themselves after it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/thingdb/netprov/pkg/config"
	"github.com/thingdb/netprov/pkg/diag"
	"github.com/thingdb/netprov/pkg/lifecycle"
	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/netexec"
	"github.com/thingdb/netprov/pkg/orchestrator"
)

type orchestratorConfig struct {
	orchestrator.Config

	JournalPath string         `json:"journal_path"`
	Logging     *logger.Config `json:"logging"`
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/netprov/orchestrator.json", "Path to orchestrator config file")
	flag.Parse()

	ctx := context.Background()

	var cfg orchestratorConfig

	cfgLoader := config.NewConfig(nil)
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	orchLogger, err := lifecycle.CreateComponentLogger("orchestrator", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	systemd, err := orchestrator.NewSystemdClient(ctx)
	if err != nil {
		return err
	}
	defer systemd.Close()

	orch := orchestrator.New(&cfg.Config, systemd, orchestrator.NewLinkManager(),
		netexec.NewExecRunner(orchLogger), orchLogger)

	assignments, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("ownership sequence failed: %w", err)
	}

	for _, a := range assignments {
		orchLogger.Info().
			Str("interface", a.Interface).
			Str("daemon", a.DaemonID).
			Msg("Interface ownership established")
	}

	journal, err := diag.Open(cfg.JournalPath)
	if err != nil {
		orchLogger.Warn().Err(err).Msg("Diagnostic journal unavailable")
		return nil
	}
	defer func() { _ = journal.Close() }()

	if err := journal.AppendRecovery("boot ownership sequence completed"); err != nil {
		orchLogger.Warn().Err(err).Msg("Failed to journal boot completion")
	}

	return nil
}
