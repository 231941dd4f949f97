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
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingdb/netprov/pkg/backend"
	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/models"
)

const testSecret = "123456"

// fakeTransport drives the gateway event loop from tests and records every
// status notification.
type fakeTransport struct {
	events   chan Event
	statuses chan string

	mu         sync.Mutex
	advStopped bool
	poweredOff bool
	closed     bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		events:   make(chan Event, 16),
		statuses: make(chan string, 32),
	}
}

func (f *fakeTransport) Start(_ context.Context) (<-chan Event, error) { return f.events, nil }

func (f *fakeTransport) Notify(value []byte) error {
	f.statuses <- string(value)
	return nil
}

func (f *fakeTransport) StopAdvertising() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advStopped = true

	return nil
}

func (f *fakeTransport) PowerOff() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.poweredOff = true

	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		close(f.events)
	}

	return nil
}

func (f *fakeTransport) connect(peer string) {
	f.events <- Event{Type: EventPeerConnected, Peer: peer}
}

func (f *fakeTransport) disconnect(peer string) {
	f.events <- Event{Type: EventPeerDisconnected, Peer: peer}
}

func (f *fakeTransport) write(peer string, char Characteristic, value string) {
	f.events <- Event{Type: EventWrite, Peer: peer, Char: char, Value: []byte(value)}
}

// fakeBackend lets tests control apply outcomes, including holding an apply
// in flight until released.
type fakeBackend struct {
	mu       sync.Mutex
	connects []models.CredentialPayload
	err      error
	block    chan struct{}
}

func (*fakeBackend) Variant() models.BackendVariant { return models.VariantNetworkManager }

func (*fakeBackend) Representation() models.Representation {
	return models.RepresentationRawPassphrase
}

func (*fakeBackend) Scan(_ context.Context) ([]models.NetworkDescriptor, error) { return nil, nil }

func (f *fakeBackend) Connect(_ context.Context, cred *models.CredentialPayload) error {
	f.mu.Lock()
	f.connects = append(f.connects, *cred)
	block := f.block
	err := f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	return err
}

func (*fakeBackend) Status(_ context.Context) (*models.BackendState, error) {
	return &models.BackendState{}, nil
}

func (f *fakeBackend) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.connects)
}

type fakeRunner struct {
	mu       sync.Mutex
	commands [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, append([]string{name}, args...))

	return "", nil
}

func writeSecretFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pairing.secret")
	require.NoError(t, os.WriteFile(path, []byte(testSecret+"\n"), 0o600))

	return path
}

type gatewayHarness struct {
	gw        *Gateway
	transport *fakeTransport
	backend   *fakeBackend
	runner    *fakeRunner
	errCh     chan error
}

func startGateway(t *testing.T, b *fakeBackend) *gatewayHarness {
	t.Helper()

	transport := newFakeTransport()
	runner := &fakeRunner{}

	cfg := &Config{
		PairingSecretPath: writeSecretFile(t),
		WindowDuration:    time.Hour,
		RebootGrace:       time.Millisecond,
	}

	gw := New(cfg, transport, b, NewPairingSecretStore(cfg.PairingSecretPath),
		runner, nil, logger.NewTestLogger())

	h := &gatewayHarness{
		gw:        gw,
		transport: transport,
		backend:   b,
		runner:    runner,
		errCh:     make(chan error, 1),
	}

	go func() { h.errCh <- gw.Start(context.Background()) }()

	// The ready notification marks the loop as running.
	h.expectStatus(t, StatusReady)

	t.Cleanup(func() {
		require.NoError(t, gw.Stop(context.Background()))

		select {
		case err := <-h.errCh:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("gateway did not stop")
		}
	})

	return h
}

func (h *gatewayHarness) expectStatus(t *testing.T, want string) {
	t.Helper()

	select {
	case got := <-h.transport.statuses:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for status %q", want)
	}
}

func (h *gatewayHarness) expectNoStatus(t *testing.T) {
	t.Helper()

	select {
	case got := <-h.transport.statuses:
		t.Fatalf("unexpected status %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func (h *gatewayHarness) authenticate(t *testing.T, peer string) {
	t.Helper()

	h.transport.connect(peer)
	h.transport.write(peer, CharCommand, "auth:"+testSecret)
	h.expectStatus(t, StatusAuthenticated)
}

func TestUnauthenticatedWritesRejected(t *testing.T) {
	h := startGateway(t, &fakeBackend{})

	h.transport.connect("peer-1")
	h.transport.write("peer-1", CharSSID, "home")
	h.expectStatus(t, StatusUnauthorized)

	h.transport.write("peer-1", CharCommand, "apply_wifi")
	h.expectStatus(t, StatusUnauthorized)

	// Nothing reached the backend.
	assert.Zero(t, h.backend.connectCount())
}

func TestWrongPairingSecretRejected(t *testing.T) {
	h := startGateway(t, &fakeBackend{})

	h.transport.connect("peer-1")
	h.transport.write("peer-1", CharCommand, "auth:999999")
	h.expectStatus(t, StatusUnauthorized)

	h.transport.write("peer-1", CharSSID, "home")
	h.expectStatus(t, StatusUnauthorized)
}

func TestProvisioningHappyPath(t *testing.T) {
	b := &fakeBackend{}
	h := startGateway(t, b)

	h.authenticate(t, "peer-1")

	h.transport.write("peer-1", CharSSID, "home")
	h.expectStatus(t, StatusSSIDReceived)

	h.transport.write("peer-1", CharPassword, "passphrase")
	h.expectStatus(t, StatusPasswordReceived)

	h.transport.write("peer-1", CharDeviceName, "kitchen-hub")
	h.expectStatus(t, StatusNameReceived)

	h.transport.write("peer-1", CharCommand, "apply_wifi")
	h.expectStatus(t, StatusConnecting)
	h.expectStatus(t, StatusSuccess)

	require.Equal(t, 1, b.connectCount())
	assert.Equal(t, "home", b.connects[0].SSID)
	assert.Equal(t, "passphrase", b.connects[0].Secret)
	assert.Equal(t, models.RepresentationRawPassphrase, b.connects[0].Representation)

	// The device name went to the host, not the backend.
	require.NotEmpty(t, h.runner.commands)
	assert.Equal(t, []string{"hostnamectl", "set-hostname", "kitchen-hub"}, h.runner.commands[0])
}

func TestApplyAuthFailureNotified(t *testing.T) {
	b := &fakeBackend{err: backend.ErrAuthFailure}
	h := startGateway(t, b)

	h.authenticate(t, "peer-1")

	h.transport.write("peer-1", CharSSID, "home")
	h.expectStatus(t, StatusSSIDReceived)
	h.transport.write("peer-1", CharPassword, "wrongpass")
	h.expectStatus(t, StatusPasswordReceived)

	h.transport.write("peer-1", CharCommand, "apply_wifi")
	h.expectStatus(t, StatusConnecting)
	h.expectStatus(t, StatusFailedAuth)
}

func TestApplyWithoutSSIDRejected(t *testing.T) {
	h := startGateway(t, &fakeBackend{})

	h.authenticate(t, "peer-1")

	h.transport.write("peer-1", CharCommand, "apply_wifi")
	h.expectStatus(t, StatusFailedNoSSID)

	assert.Zero(t, h.backend.connectCount())
}

func TestConcurrentApplyRejectedBusy(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{block: release}

	h := startGateway(t, b)

	h.authenticate(t, "peer-1")

	h.transport.write("peer-1", CharSSID, "home")
	h.expectStatus(t, StatusSSIDReceived)
	h.transport.write("peer-1", CharPassword, "passphrase")
	h.expectStatus(t, StatusPasswordReceived)

	h.transport.write("peer-1", CharCommand, "apply_wifi")
	h.expectStatus(t, StatusConnecting)

	// A second apply while the first holds the slot is rejected, never
	// queued.
	h.transport.write("peer-1", CharSSID, "other")
	h.expectStatus(t, StatusSSIDReceived)
	h.transport.write("peer-1", CharCommand, "apply_wifi")
	h.expectStatus(t, StatusBusy)

	close(release)
	h.expectStatus(t, StatusSuccess)

	assert.Equal(t, 1, b.connectCount())
}

func TestDisconnectMidApplySuppressesOutcome(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{block: release}

	h := startGateway(t, b)

	h.authenticate(t, "peer-1")

	h.transport.write("peer-1", CharSSID, "home")
	h.expectStatus(t, StatusSSIDReceived)
	h.transport.write("peer-1", CharPassword, "passphrase")
	h.expectStatus(t, StatusPasswordReceived)

	h.transport.write("peer-1", CharCommand, "apply_wifi")
	h.expectStatus(t, StatusConnecting)

	h.transport.disconnect("peer-1")

	close(release)

	// The apply ran to completion but its outcome is not delivered to a
	// dead session.
	require.Eventually(t, func() bool { return b.connectCount() == 1 },
		time.Second, 10*time.Millisecond)
	h.expectNoStatus(t)
}

func TestReconnectStartsFreshSession(t *testing.T) {
	h := startGateway(t, &fakeBackend{})

	h.authenticate(t, "peer-1")

	h.transport.disconnect("peer-1")
	h.transport.connect("peer-1")

	// Prior authentication does not survive the reconnect.
	h.transport.write("peer-1", CharSSID, "home")
	h.expectStatus(t, StatusUnauthorized)
}

func TestForgetWifiClearsStagedCredentials(t *testing.T) {
	h := startGateway(t, &fakeBackend{})

	h.authenticate(t, "peer-1")

	h.transport.write("peer-1", CharSSID, "home")
	h.expectStatus(t, StatusSSIDReceived)

	h.transport.write("peer-1", CharCommand, "forget_wifi")
	h.expectStatus(t, StatusCleared)

	h.transport.write("peer-1", CharCommand, "apply_wifi")
	h.expectStatus(t, StatusFailedNoSSID)
}

func TestUnknownCommand(t *testing.T) {
	h := startGateway(t, &fakeBackend{})

	h.authenticate(t, "peer-1")

	h.transport.write("peer-1", CharCommand, "format_disk")
	h.expectStatus(t, StatusUnknownCommand)
}

func TestRebootCommand(t *testing.T) {
	h := startGateway(t, &fakeBackend{})

	h.authenticate(t, "peer-1")

	h.transport.write("peer-1", CharCommand, "reboot")
	h.expectStatus(t, StatusRebooting)

	// The grace period is one millisecond in tests.
	require.Eventually(t, func() bool {
		h.runner.mu.Lock()
		defer h.runner.mu.Unlock()

		for _, cmd := range h.runner.commands {
			if len(cmd) == 2 && cmd[0] == "systemctl" && cmd[1] == "reboot" {
				return true
			}
		}

		return false
	}, time.Second, 10*time.Millisecond)
}

func TestWindowExpiryDisablesRadio(t *testing.T) {
	transport := newFakeTransport()

	cfg := &Config{
		PairingSecretPath: writeSecretFile(t),
		WindowDuration:    30 * time.Millisecond,
	}

	gw := New(cfg, transport, &fakeBackend{}, NewPairingSecretStore(cfg.PairingSecretPath),
		&fakeRunner{}, nil, logger.NewTestLogger())

	errCh := make(chan error, 1)
	go func() { errCh <- gw.Start(context.Background()) }()

	<-transport.statuses // ready

	// No session authenticates; the deadline passes and the radio goes
	// dark.
	require.Eventually(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()

		return transport.advStopped && transport.poweredOff
	}, time.Second, 5*time.Millisecond)

	assert.False(t, gw.Window().Active)

	require.NoError(t, gw.Stop(context.Background()))
	require.NoError(t, <-errCh)
}

func TestAuthenticationVisibleToWindowCheck(t *testing.T) {
	h := startGateway(t, &fakeBackend{})

	// The window timer inspects sessions from its own goroutine; keep that
	// check spinning while the loop processes the authentication write.
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			select {
			case <-stop:
				return
			default:
				h.gw.hasAuthenticatedSession()
			}
		}
	}()

	h.authenticate(t, "peer-1")

	close(stop)
	<-done

	assert.True(t, h.gw.hasAuthenticatedSession())
}

func TestStartPublishesServiceStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notify.sock")

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	require.NoError(t, err)

	defer conn.Close()

	t.Setenv("NOTIFY_SOCKET", path)

	startGateway(t, &fakeBackend{})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "STATUS=advertising", string(buf[:n]))
}

func TestWriteFromUnknownPeerIgnored(t *testing.T) {
	h := startGateway(t, &fakeBackend{})

	// No connect event for this peer; the write is dropped silently.
	h.transport.write("ghost", CharSSID, "home")
	h.expectNoStatus(t)
}
