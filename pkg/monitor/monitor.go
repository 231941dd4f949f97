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

// Package monitor samples network health on a fixed interval and re-runs
// the orchestrator's ownership sequence when the device regresses.
// Recovery never patches state ad hoc: it is the boot sequence or nothing,
// so startup and recovery logic cannot diverge.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/models"
	"github.com/thingdb/netprov/pkg/orchestrator"
)

const (
	defaultInterval       = 30 * time.Second
	defaultBudgetAttempts = 3
	defaultBudgetWindow   = 10 * time.Minute
)

var errIntervalTooShort = errors.New("monitor interval must be at least one second")

// Config controls the reconciliation loop.
type Config struct {
	Interval       time.Duration `json:"interval"`
	BudgetAttempts int           `json:"budget_attempts"`
	BudgetWindow   time.Duration `json:"budget_window"`
	JournalPath    string        `json:"journal_path"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.Interval != 0 && c.Interval < time.Second {
		return errIntervalTooShort
	}

	return nil
}

func (c *Config) withDefaults() Config {
	out := *c

	if out.Interval == 0 {
		out.Interval = defaultInterval
	}

	if out.BudgetAttempts == 0 {
		out.BudgetAttempts = defaultBudgetAttempts
	}

	if out.BudgetWindow == 0 {
		out.BudgetWindow = defaultBudgetWindow
	}

	return out
}

// Recoverer is the orchestrator surface the monitor drives.
type Recoverer interface {
	Run(ctx context.Context) ([]models.OwnershipAssignment, error)
	PrimaryActive(ctx context.Context) bool
	ManagedInterfaces() []string
	Assignments() []models.OwnershipAssignment
}

// Journal receives every snapshot and recovery action.
type Journal interface {
	AppendSnapshot(snap *models.HealthSnapshot) error
	AppendRecovery(message string) error
	AppendCritical(message string) error
}

// Monitor is the periodic reconciler.
type Monitor struct {
	config    Config
	recoverer Recoverer
	links     orchestrator.LinkManager
	journal   Journal
	logger    logger.Logger

	budget *recoveryBudget

	// injectable for tests
	now       func() time.Time
	hostStats func(ctx context.Context) (uptime uint64, load1 float64)

	mu        sync.Mutex
	exhausted bool
	done      chan struct{}
	stopped   chan struct{}
}

// New creates a Monitor.
func New(cfg *Config, rec Recoverer, links orchestrator.LinkManager, journal Journal, log logger.Logger) *Monitor {
	c := cfg.withDefaults()

	return &Monitor{
		config:    c,
		recoverer: rec,
		links:     links,
		journal:   journal,
		logger:    log,
		budget:    newRecoveryBudget(c.BudgetAttempts, c.BudgetWindow),
		now:       time.Now,
		hostStats: sampleHostStats,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start runs the reconciliation loop until the context is canceled or Stop
// is called. The first sample happens after one full interval so the boot
// sequence has settled.
func (m *Monitor) Start(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.config.Interval).Msg("Stability monitor started")

	defer close(m.stopped)

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return nil
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// Stop terminates the loop.
func (m *Monitor) Stop(ctx context.Context) error {
	close(m.done)

	select {
	case <-m.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// tick samples one snapshot, journals it, and recovers if unhealthy.
func (m *Monitor) tick(ctx context.Context) {
	snap, err := m.Sample(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Health sample failed")
		return
	}

	if err := m.journal.AppendSnapshot(snap); err != nil {
		m.logger.Error().Err(err).Msg("Failed to journal snapshot")
	}

	if snap.Healthy() {
		return
	}

	m.logger.Warn().
		Bool("owner_active", snap.OwnerDaemonActive).
		Int("routes", snap.RouteCount).
		Msg("Unhealthy snapshot")

	m.recover(ctx)
}

// Sample produces one HealthSnapshot limited to the managed interfaces.
func (m *Monitor) Sample(ctx context.Context) (*models.HealthSnapshot, error) {
	records, err := m.links.List()
	if err != nil {
		return nil, err
	}

	managed := make(map[string]bool, len(m.recoverer.ManagedInterfaces()))
	for _, name := range m.recoverer.ManagedInterfaces() {
		managed[name] = true
	}

	owners := make(map[string]string)
	for _, a := range m.recoverer.Assignments() {
		owners[a.Interface] = a.DaemonID
	}

	var interfaces []models.InterfaceRecord

	for i := range records {
		if !managed[records[i].Name] {
			continue
		}

		rec := records[i]

		if daemon, ok := owners[rec.Name]; ok {
			rec.OwnerDaemon = &daemon
		}

		interfaces = append(interfaces, rec)
	}

	routes, err := m.links.RouteCount()
	if err != nil {
		return nil, err
	}

	uptime, load1 := m.hostStats(ctx)

	return &models.HealthSnapshot{
		Timestamp:         m.now().UTC(),
		OwnerDaemonActive: m.recoverer.PrimaryActive(ctx),
		Interfaces:        interfaces,
		RouteCount:        routes,
		UptimeSeconds:     uptime,
		Load1:             load1,
	}, nil
}

// recover re-runs the full ownership sequence within the rolling budget.
// Once the budget is exhausted a single CRITICAL entry is journaled and
// automated recovery stops until the next boot: past that point blind
// retries are more likely to worsen a broken state than fix it.
func (m *Monitor) recover(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.exhausted {
		return
	}

	if !m.budget.allow(m.now()) {
		m.exhausted = true

		m.logger.Error().Msg("Recovery budget exhausted, stopping automated recovery until reboot")

		if err := m.journal.AppendCritical("recovery budget exhausted, automated recovery disabled until reboot"); err != nil {
			m.logger.Error().Err(err).Msg("Failed to journal critical entry")
		}

		return
	}

	if err := m.journal.AppendRecovery("re-running ownership sequence"); err != nil {
		m.logger.Error().Err(err).Msg("Failed to journal recovery action")
	}

	if _, err := m.recoverer.Run(ctx); err != nil {
		m.logger.Error().Err(err).Msg("Recovery run failed")
		return
	}

	m.logger.Info().Msg("Recovery run completed")
}

func sampleHostStats(ctx context.Context) (uint64, float64) {
	var uptime uint64

	if u, err := host.UptimeWithContext(ctx); err == nil {
		uptime = u
	}

	var load1 float64

	if avg, err := load.AvgWithContext(ctx); err == nil {
		load1 = avg.Load1
	}

	return uptime, load1
}
