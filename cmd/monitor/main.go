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

// The monitor keeps the device reachable: it samples network health every
// interval and re-runs the orchestrator sequence on regression.
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
	"github.com/thingdb/netprov/pkg/monitor"
	"github.com/thingdb/netprov/pkg/netexec"
	"github.com/thingdb/netprov/pkg/orchestrator"
)

type monitorConfig struct {
	monitor.Config

	Orchestrator orchestrator.Config `json:"orchestrator"`
	Logging      *logger.Config      `json:"logging"`
}

func (c *monitorConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}

	return c.Orchestrator.Validate()
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/netprov/monitor.json", "Path to monitor config file")
	flag.Parse()

	ctx := context.Background()

	var cfg monitorConfig

	cfgLoader := config.NewConfig(nil)
	if err := cfgLoader.LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	monLogger, err := lifecycle.CreateComponentLogger("monitor", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	systemd, err := orchestrator.NewSystemdClient(ctx)
	if err != nil {
		return err
	}
	defer systemd.Close()

	journal, err := diag.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("failed to open diagnostic journal: %w", err)
	}
	defer func() { _ = journal.Close() }()

	links := orchestrator.NewLinkManager()
	orch := orchestrator.New(&cfg.Orchestrator, systemd, links,
		netexec.NewExecRunner(monLogger), monLogger)

	mon := monitor.New(&cfg.Config, orch, links, journal, monLogger)

	return lifecycle.RunService(ctx, &lifecycle.ServiceOptions{
		Name:    "monitor",
		Service: mon,
		Logger:  monLogger,
	})
}
