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

package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/models"
	"github.com/thingdb/netprov/pkg/netexec"
)

// fakeSystemd tracks unit state transitions in memory.
type fakeSystemd struct {
	mu       sync.Mutex
	active   map[string]bool
	masked   map[string]bool
	enabled  map[string]bool
	disabled map[string]bool
}

func newFakeSystemd(activeUnits ...string) *fakeSystemd {
	f := &fakeSystemd{
		active:   make(map[string]bool),
		masked:   make(map[string]bool),
		enabled:  make(map[string]bool),
		disabled: make(map[string]bool),
	}

	for _, u := range activeUnits {
		f.active[u] = true
	}

	return f
}

func (f *fakeSystemd) StartUnit(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[unit] = true

	return nil
}

func (f *fakeSystemd) StopUnit(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active[unit] = false

	return nil
}

func (f *fakeSystemd) EnableUnit(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled[unit] = true

	return nil
}

func (f *fakeSystemd) DisableUnit(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled[unit] = true

	return nil
}

func (f *fakeSystemd) MaskUnit(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masked[unit] = true

	return nil
}

func (f *fakeSystemd) UnmaskUnit(_ context.Context, unit string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.masked[unit] = false

	return nil
}

func (f *fakeSystemd) ActiveState(_ context.Context, unit string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active[unit] {
		return "active", nil
	}

	return "inactive", nil
}

func (*fakeSystemd) Close() {}

func (f *fakeSystemd) isMasked(unit string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.masked[unit]
}

func (f *fakeSystemd) isActive(unit string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.active[unit]
}

// fakeLinks records SetUp calls and serves a static link table.
type fakeLinks struct {
	mu      sync.Mutex
	records []models.InterfaceRecord
	routes  int
	raised  []string
}

func (f *fakeLinks) List() ([]models.InterfaceRecord, error) { return f.records, nil }

func (f *fakeLinks) SetUp(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raised = append(f.raised, name)

	return nil
}

func (f *fakeLinks) RouteCount() (int, error) { return f.routes, nil }

func testConfig() *Config {
	return &Config{
		PrimaryUnit:              "NetworkManager.service",
		SupplicantUnit:           "wpa_supplicant.service",
		InterfaceSupplicantUnits: []string{"wpa_supplicant@wlan0.service"},
		LegacyUnits:              []string{"dhcpcd.service"},
		ManagedInterfaces:        []string{"eth0", "wlan0"},
		PrimaryWait:              5 * time.Second,
	}
}

func newTestOrchestrator(t *testing.T, cfg *Config, systemd SystemdClient, links LinkManager) (*Orchestrator, *netexec.MockRunner) {
	t.Helper()

	ctrl := gomock.NewController(t)
	runner := netexec.NewMockRunner(ctrl)

	return New(cfg, systemd, links, runner, logger.NewTestLogger()), runner
}

func TestRunEstablishesSingleOwnership(t *testing.T) {
	systemd := newFakeSystemd("wpa_supplicant@wlan0.service", "dhcpcd.service")
	links := &fakeLinks{}

	orch, runner := newTestOrchestrator(t, testConfig(), systemd, links)

	runner.EXPECT().Run(gomock.Any(), "rfkill", "unblock", "wifi").Return("", nil)
	runner.EXPECT().Run(gomock.Any(), "nmcli", "dev", "set", "eth0", "managed", "yes").Return("", nil)
	runner.EXPECT().Run(gomock.Any(), "nmcli", "dev", "set", "wlan0", "managed", "yes").Return("", nil)

	assignments, err := orch.Run(context.Background())
	require.NoError(t, err)

	// Competitors silenced and locked out.
	assert.False(t, systemd.isActive("wpa_supplicant@wlan0.service"))
	assert.True(t, systemd.isMasked("wpa_supplicant@wlan0.service"))
	assert.False(t, systemd.isActive("dhcpcd.service"))
	assert.True(t, systemd.isMasked("dhcpcd.service"))

	// Primary stack raised.
	assert.True(t, systemd.isActive("NetworkManager.service"))
	assert.True(t, systemd.isActive("wpa_supplicant.service"))
	assert.Equal(t, []string{"eth0", "wlan0"}, links.raised)

	// Exactly one assignment per managed interface, all owned by the
	// primary daemon, sorted by interface name.
	require.Len(t, assignments, 2)
	assert.Equal(t, "eth0", assignments[0].Interface)
	assert.Equal(t, "wlan0", assignments[1].Interface)

	for _, a := range assignments {
		assert.Equal(t, "NetworkManager.service", a.DaemonID)
		assert.False(t, a.EstablishedAt.IsZero())
	}
}

func TestRunIsIdempotent(t *testing.T) {
	systemd := newFakeSystemd()
	links := &fakeLinks{}

	orch, runner := newTestOrchestrator(t, testConfig(), systemd, links)

	runner.EXPECT().Run(gomock.Any(), "rfkill", "unblock", "wifi").Return("", nil).Times(2)
	runner.EXPECT().Run(gomock.Any(), "nmcli", "dev", "set", gomock.Any(), "managed", "yes").
		Return("", nil).Times(4)

	_, err := orch.Run(context.Background())
	require.NoError(t, err)

	assignments, err := orch.Run(context.Background())
	require.NoError(t, err)

	// Still one owner per interface after a second pass.
	assert.Len(t, assignments, 2)
	assert.Len(t, orch.Assignments(), 2)
}

func TestRunNonDefaultPrimarySkipsNmcli(t *testing.T) {
	cfg := testConfig()
	cfg.PrimaryUnit = "systemd-networkd.service"

	systemd := newFakeSystemd()
	links := &fakeLinks{}

	orch, runner := newTestOrchestrator(t, cfg, systemd, links)

	// Only the rfkill call: marking devices managed is NetworkManager-specific.
	runner.EXPECT().Run(gomock.Any(), "rfkill", "unblock", "wifi").Return("", nil)

	assignments, err := orch.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, assignments, 2)
	assert.Equal(t, "systemd-networkd.service", assignments[0].DaemonID)
}

func TestRunPrimaryNeverActivates(t *testing.T) {
	cfg := testConfig()
	cfg.PrimaryWait = 50 * time.Millisecond

	systemd := &neverActiveSystemd{fakeSystemd: newFakeSystemd()}

	orch, runner := newTestOrchestrator(t, cfg, systemd, &fakeLinks{})

	runner.EXPECT().Run(gomock.Any(), "rfkill", "unblock", "wifi").Return("", nil)

	_, err := orch.Run(context.Background())
	assert.ErrorIs(t, err, ErrPrimaryNotActive)
}

// neverActiveSystemd reports every unit inactive regardless of starts.
type neverActiveSystemd struct {
	*fakeSystemd
}

func (*neverActiveSystemd) ActiveState(_ context.Context, _ string) (string, error) {
	return "inactive", nil
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.ManagedInterfaces = []string{"wlan0"}
	assert.NoError(t, cfg.Validate())
}

func TestConfigDefaults(t *testing.T) {
	c := (&Config{ManagedInterfaces: []string{"wlan0"}}).withDefaults()

	assert.Equal(t, "NetworkManager.service", c.PrimaryUnit)
	assert.Equal(t, "wpa_supplicant.service", c.SupplicantUnit)
	assert.Equal(t, []string{"wpa_supplicant@wlan0.service"}, c.InterfaceSupplicantUnits)
	assert.Equal(t, []string{"dhcpcd.service", "ifplugd.service"}, c.LegacyUnits)
	assert.Equal(t, defaultPrimaryWait, c.PrimaryWait)
}

func TestPrimaryActive(t *testing.T) {
	systemd := newFakeSystemd("NetworkManager.service")

	orch, _ := newTestOrchestrator(t, testConfig(), systemd, &fakeLinks{})

	assert.True(t, orch.PrimaryActive(context.Background()))

	require.NoError(t, systemd.StopUnit(context.Background(), "NetworkManager.service"))
	assert.False(t, orch.PrimaryActive(context.Background()))
}
