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

// Package orchestrator sequences network daemon ownership so exactly one
// manager owns each interface. The sequence runs once at boot and is
// re-invoked verbatim by the stability monitor as its recovery action;
// every step is idempotent so the two callers cannot diverge.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/models"
	"github.com/thingdb/netprov/pkg/netexec"
)

const (
	defaultPrimaryUnit    = "NetworkManager.service"
	defaultSupplicantUnit = "wpa_supplicant.service"

	primaryActivePollInterval = time.Second
	defaultPrimaryWait        = 30 * time.Second
)

var (
	errNoManagedInterfaces = errors.New("at least one managed interface is required")

	// ErrPrimaryNotActive means the primary manager daemon did not report
	// active within the wait bound after being started.
	ErrPrimaryNotActive = errors.New("primary manager daemon did not become active")
)

// Config declares which daemons compete for interfaces and which one wins.
type Config struct {
	// PrimaryUnit is the declarative multi-interface manager that ends up
	// owning every interface.
	PrimaryUnit string `json:"primary_unit"`

	// SupplicantUnit is the system-wide supplicant the primary manager
	// uses as a library. Distinct from the interface-scoped units below.
	SupplicantUnit string `json:"supplicant_unit"`

	// InterfaceSupplicantUnits are interface-scoped supplicants that
	// compete for the wireless interface and get masked.
	InterfaceSupplicantUnits []string `json:"interface_supplicant_units"`

	// LegacyUnits are DHCP-client and link-configuration daemons whose
	// restart timers would re-claim interfaces unless they are masked.
	LegacyUnits []string `json:"legacy_units"`

	// ManagedInterfaces are the interfaces the primary daemon will own.
	ManagedInterfaces []string `json:"managed_interfaces"`

	// PrimaryWait bounds how long Run waits for the primary daemon to
	// report active after starting it.
	PrimaryWait time.Duration `json:"primary_wait"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if len(c.ManagedInterfaces) == 0 {
		return errNoManagedInterfaces
	}

	return nil
}

func (c *Config) withDefaults() Config {
	out := *c

	if out.PrimaryUnit == "" {
		out.PrimaryUnit = defaultPrimaryUnit
	}

	if out.SupplicantUnit == "" {
		out.SupplicantUnit = defaultSupplicantUnit
	}

	if out.InterfaceSupplicantUnits == nil {
		out.InterfaceSupplicantUnits = []string{"wpa_supplicant@wlan0.service"}
	}

	if out.LegacyUnits == nil {
		out.LegacyUnits = []string{"dhcpcd.service", "ifplugd.service"}
	}

	if out.PrimaryWait == 0 {
		out.PrimaryWait = defaultPrimaryWait
	}

	return out
}

// Orchestrator owns the boot/recovery sequencing of network daemons.
type Orchestrator struct {
	config  Config
	systemd SystemdClient
	links   LinkManager
	runner  netexec.Runner
	logger  logger.Logger

	mu          sync.Mutex
	assignments map[string]models.OwnershipAssignment
}

// New creates an Orchestrator.
func New(cfg *Config, systemd SystemdClient, links LinkManager, runner netexec.Runner, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		config:      cfg.withDefaults(),
		systemd:     systemd,
		links:       links,
		runner:      runner,
		logger:      log,
		assignments: make(map[string]models.OwnershipAssignment),
	}
}

// Run executes the full ownership sequence. It is safe to call from boot
// and from monitor recovery concurrently; invocations serialize and an
// already-converged system passes through without state changes.
func (o *Orchestrator) Run(ctx context.Context) ([]models.OwnershipAssignment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.logger.Info().Msg("Running ownership sequence")

	if err := o.silenceCompetitors(ctx); err != nil {
		return nil, err
	}

	if err := o.lockOutLegacyDaemons(ctx); err != nil {
		return nil, err
	}

	if err := o.raiseInterfaces(ctx); err != nil {
		return nil, err
	}

	if err := o.startPrimary(ctx); err != nil {
		return nil, err
	}

	if err := o.markManaged(ctx); err != nil {
		return nil, err
	}

	o.logger.Info().Int("interfaces", len(o.assignments)).Msg("Ownership sequence complete")

	return o.assignmentsLocked(), nil
}

// Step 1: stop and mask interface-scoped supplicants.
func (o *Orchestrator) silenceCompetitors(ctx context.Context) error {
	for _, unit := range o.config.InterfaceSupplicantUnits {
		if err := o.stopAndMask(ctx, unit); err != nil {
			return err
		}
	}

	return nil
}

// Step 2: disable and mask legacy DHCP/link daemons so their own restart
// timers cannot re-claim an interface.
func (o *Orchestrator) lockOutLegacyDaemons(ctx context.Context) error {
	for _, unit := range o.config.LegacyUnits {
		if err := o.systemd.DisableUnit(ctx, unit); err != nil {
			o.logger.Debug().Err(err).Str("unit", unit).Msg("Disable failed, unit may not exist")
		}

		if err := o.stopAndMask(ctx, unit); err != nil {
			return err
		}
	}

	return nil
}

// Step 3: clear the radio kill switch and bring interfaces up.
func (o *Orchestrator) raiseInterfaces(ctx context.Context) error {
	if out, err := o.runner.Run(ctx, "rfkill", "unblock", "wifi"); err != nil {
		o.logger.Warn().Err(err).Str("output", out).Msg("rfkill unblock failed")
	}

	for _, iface := range o.config.ManagedInterfaces {
		if err := o.links.SetUp(iface); err != nil {
			return fmt.Errorf("failed to raise %s: %w", iface, err)
		}
	}

	return nil
}

// Step 4: start and enable the primary manager and its supplicant
// dependency, then wait for the primary to report active.
func (o *Orchestrator) startPrimary(ctx context.Context) error {
	for _, unit := range []string{o.config.SupplicantUnit, o.config.PrimaryUnit} {
		if err := o.systemd.UnmaskUnit(ctx, unit); err != nil {
			o.logger.Debug().Err(err).Str("unit", unit).Msg("Unmask failed, unit may not be masked")
		}

		if err := o.systemd.EnableUnit(ctx, unit); err != nil {
			return err
		}

		state, err := o.systemd.ActiveState(ctx, unit)
		if err != nil {
			return err
		}

		if state != "active" {
			if err := o.systemd.StartUnit(ctx, unit); err != nil {
				return err
			}
		}
	}

	return o.waitPrimaryActive(ctx)
}

// Step 5: hand each interface to the primary daemon and record ownership.
func (o *Orchestrator) markManaged(ctx context.Context) error {
	now := time.Now().UTC()

	for _, iface := range o.config.ManagedInterfaces {
		if o.config.PrimaryUnit == defaultPrimaryUnit {
			if out, err := o.runner.Run(ctx, "nmcli", "dev", "set", iface, "managed", "yes"); err != nil {
				return fmt.Errorf("failed to mark %s managed: %w (%s)", iface, err, out)
			}
		}

		// One assignment per interface: the map key enforces the
		// at-most-one-owner invariant.
		o.assignments[iface] = models.OwnershipAssignment{
			Interface:     iface,
			DaemonID:      o.config.PrimaryUnit,
			EstablishedAt: now,
		}
	}

	return nil
}

func (o *Orchestrator) stopAndMask(ctx context.Context, unit string) error {
	state, err := o.systemd.ActiveState(ctx, unit)
	if err != nil {
		return err
	}

	if state == "active" || state == "activating" {
		if err := o.systemd.StopUnit(ctx, unit); err != nil {
			return err
		}
	}

	if err := o.systemd.MaskUnit(ctx, unit); err != nil {
		return err
	}

	return nil
}

func (o *Orchestrator) waitPrimaryActive(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, o.config.PrimaryWait)
	defer cancel()

	ticker := time.NewTicker(primaryActivePollInterval)
	defer ticker.Stop()

	for {
		state, err := o.systemd.ActiveState(waitCtx, o.config.PrimaryUnit)
		if err == nil && state == "active" {
			return nil
		}

		select {
		case <-waitCtx.Done():
			return fmt.Errorf("%w: %s", ErrPrimaryNotActive, o.config.PrimaryUnit)
		case <-ticker.C:
		}
	}
}

// PrimaryActive reports whether the primary manager daemon is active.
func (o *Orchestrator) PrimaryActive(ctx context.Context) bool {
	state, err := o.systemd.ActiveState(ctx, o.config.PrimaryUnit)
	return err == nil && state == "active"
}

// ManagedInterfaces returns the configured interface list.
func (o *Orchestrator) ManagedInterfaces() []string {
	return o.config.ManagedInterfaces
}

// Assignments returns the current ownership assignments, one per managed
// interface, sorted by interface name.
func (o *Orchestrator) Assignments() []models.OwnershipAssignment {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.assignmentsLocked()
}

func (o *Orchestrator) assignmentsLocked() []models.OwnershipAssignment {
	out := make([]models.OwnershipAssignment, 0, len(o.assignments))
	for _, a := range o.assignments {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Interface < out[j].Interface })

	return out
}
