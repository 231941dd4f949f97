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

// Package gateway exposes the BLE provisioning service: a paired mobile
// client authenticates with a shared secret, stages WiFi credentials over
// GATT writes, and applies them through the backend adapter. One event
// loop services all BLE I/O; credential application runs on a worker so
// the loop never blocks on the network stack.
package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thingdb/netprov/pkg/backend"
	"github.com/thingdb/netprov/pkg/lifecycle"
	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/models"
	"github.com/thingdb/netprov/pkg/netexec"
	"github.com/thingdb/netprov/pkg/orchestrator"
)

// Status tokens notified on the status characteristic. Terminal apply
// outcomes are typed so a client can tell a rejected password apart from a
// dropped link.
const (
	StatusReady            = "ready"
	StatusAuthenticated    = "authenticated"
	StatusUnauthorized     = "unauthorized"
	StatusSSIDReceived     = "ssid-received"
	StatusPasswordReceived = "password-received"
	StatusNameReceived     = "name-received"
	StatusCleared          = "cleared"
	StatusConnecting       = "connecting"
	StatusSuccess          = "success"
	StatusFailedAuth       = "failed:auth"
	StatusFailedNotFound   = "failed:not-found"
	StatusFailedTimeout    = "failed:timeout"
	StatusFailedDriver     = "failed:driver"
	StatusFailedNoSSID     = "failed:no-ssid"
	StatusBusy             = "busy"
	StatusRebooting        = "rebooting"
	StatusUnknownCommand   = "error:unknown-command"
)

// Commands accepted on the command characteristic.
const (
	cmdApplyWifi  = "apply_wifi"
	cmdReboot     = "reboot"
	cmdForgetWifi = "forget_wifi"

	authPrefix = "auth:"
)

// DefaultLocalName is the advertised BLE device name the companion app
// searches for.
const DefaultLocalName = "ThingDB Setup"

const defaultRebootGrace = 2 * time.Second

var errTransportClosed = errors.New("transport event stream closed")

// Config configures the gateway service.
type Config struct {
	LocalName         string              `json:"local_name"`
	PairingSecretPath string              `json:"pairing_secret_path"`
	WindowDuration    time.Duration       `json:"window_duration"`
	RebootGrace       time.Duration       `json:"reboot_grace"`
	GatewayUnit       string              `json:"gateway_unit"`
	Backend           backend.ProbeConfig `json:"backend"`
	Logging           *logger.Config      `json:"logging"`
}

func (c *Config) withDefaults() Config {
	out := *c

	if out.LocalName == "" {
		out.LocalName = DefaultLocalName
	}

	if out.RebootGrace == 0 {
		out.RebootGrace = defaultRebootGrace
	}

	return out
}

type applyResult struct {
	peer      string
	sessionID string
	err       error
}

// Gateway runs the provisioning service.
type Gateway struct {
	config    Config
	transport Transport
	backend   backend.Backend
	secrets   *PairingSecretStore
	runner    netexec.Runner
	systemd   orchestrator.SystemdClient
	window    *WindowController
	logger    logger.Logger

	// applySlot is the process-wide single apply slot: exactly one
	// credential payload may be in flight through the adapter at a time.
	applySlot chan struct{}
	applyDone chan applyResult

	mu       sync.Mutex
	sessions map[string]*models.ProvisioningSession

	done    chan struct{}
	stopped chan struct{}
}

// New creates a Gateway. systemd may be nil; window expiry then only
// powers off the radio without masking the unit.
func New(cfg *Config, transport Transport, b backend.Backend, secrets *PairingSecretStore,
	runner netexec.Runner, systemd orchestrator.SystemdClient, log logger.Logger) *Gateway {
	g := &Gateway{
		config:    cfg.withDefaults(),
		transport: transport,
		backend:   b,
		secrets:   secrets,
		runner:    runner,
		systemd:   systemd,
		logger:    log,
		applySlot: make(chan struct{}, 1),
		applyDone: make(chan applyResult, 1),
		sessions:  make(map[string]*models.ProvisioningSession),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}

	g.window = NewWindowController(g.config.WindowDuration, g.hasAuthenticatedSession, g.expireWindow, log)

	return g
}

// Window exposes the security window state for observability.
func (g *Gateway) Window() models.SecurityWindow {
	return g.window.Window()
}

// Start advertises the GATT service and runs the event loop until the
// context is canceled or Stop is called.
func (g *Gateway) Start(ctx context.Context) error {
	events, err := g.transport.Start(ctx)
	if err != nil {
		return err
	}

	g.window.Arm()
	g.notify(StatusReady)
	lifecycle.NotifyStatus(g.logger, "advertising")

	g.logger.Info().Str("local_name", g.config.LocalName).Msg("Provisioning gateway advertising")

	defer close(g.stopped)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.done:
			return nil
		case ev, ok := <-events:
			if !ok {
				return errTransportClosed
			}

			g.handleEvent(ev)
		case res := <-g.applyDone:
			g.finishApply(res)
		}
	}
}

// Stop shuts the gateway down. An in-flight apply keeps running to its end
// state; only notification delivery stops.
func (g *Gateway) Stop(_ context.Context) error {
	close(g.done)
	g.window.Disarm()

	<-g.stopped

	return g.transport.Close()
}

func (g *Gateway) handleEvent(ev Event) {
	switch ev.Type {
	case EventPeerConnected:
		g.addSession(ev.Peer)
	case EventPeerDisconnected:
		g.dropSession(ev.Peer)
	case EventWrite:
		g.handleWrite(ev)
	}
}

// addSession starts a fresh unauthenticated session. A reconnecting peer
// never resumes prior state.
func (g *Gateway) addSession(peer string) {
	sess := &models.ProvisioningSession{
		ID:        uuid.NewString(),
		Peer:      peer,
		State:     models.SessionConnected,
		StartedAt: time.Now().UTC(),
	}

	g.mu.Lock()
	g.sessions[peer] = sess
	g.mu.Unlock()

	g.logger.Info().Str("peer", peer).Str("session", sess.ID).Msg("Peer connected")
}

func (g *Gateway) dropSession(peer string) {
	g.mu.Lock()
	sess := g.sessions[peer]
	delete(g.sessions, peer)
	g.mu.Unlock()

	if sess == nil {
		return
	}

	if sess.Staged != nil {
		sess.Staged.Wipe()
	}

	if sess.State == models.SessionApplying {
		g.logger.Info().Str("peer", peer).
			Msg("Peer disconnected mid-apply, connect continues; outcome notification dropped")
	}

	sess.State = models.SessionDisconnected

	g.logger.Info().Str("peer", peer).Str("session", sess.ID).Msg("Peer disconnected")
}

func (g *Gateway) session(peer string) *models.ProvisioningSession {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.sessions[peer]
}

func (g *Gateway) handleWrite(ev Event) {
	sess := g.session(ev.Peer)
	if sess == nil {
		g.logger.Warn().Str("peer", ev.Peer).Msg("Write from peer with no session, ignored")
		return
	}

	value := string(ev.Value)

	// Authentication is the only write accepted before authentication.
	if ev.Char == CharCommand && strings.HasPrefix(value, authPrefix) {
		g.authenticate(sess, strings.TrimPrefix(value, authPrefix))
		return
	}

	if !sess.Authenticated {
		g.logger.Warn().Str("peer", ev.Peer).Str("char", string(ev.Char)).
			Msg("Unauthenticated write rejected")
		g.notify(StatusUnauthorized)

		return
	}

	switch ev.Char {
	case CharSSID:
		g.stage(sess).SSID = value
		sess.State = models.SessionStaging
		g.notify(StatusSSIDReceived)
	case CharPassword:
		g.stage(sess).Secret = value
		sess.State = models.SessionStaging
		g.notify(StatusPasswordReceived)
	case CharDeviceName:
		sess.DeviceName = value
		g.notify(StatusNameReceived)
	case CharCommand:
		g.handleCommand(sess, value)
	}
}

func (g *Gateway) authenticate(sess *models.ProvisioningSession, candidate string) {
	ok, err := g.secrets.Verify(candidate)
	if err != nil {
		g.logger.Error().Err(err).Msg("Pairing secret verification failed")
		g.notify(StatusUnauthorized)

		return
	}

	if !ok {
		g.logger.Warn().Str("peer", sess.Peer).Msg("Pairing secret rejected")
		g.notify(StatusUnauthorized)

		return
	}

	// Authenticated is read by the window timer goroutine through
	// hasAuthenticatedSession; the write must happen under the same lock.
	g.mu.Lock()
	sess.Authenticated = true
	sess.State = models.SessionAuthenticated
	g.mu.Unlock()

	// An authenticated peer mid-flow must never be cut off by the window.
	g.window.Reset()

	g.logger.Info().Str("peer", sess.Peer).Str("session", sess.ID).Msg("Peer authenticated")
	g.notify(StatusAuthenticated)
}

func (g *Gateway) stage(sess *models.ProvisioningSession) *models.CredentialPayload {
	if sess.Staged == nil {
		sess.Staged = &models.CredentialPayload{
			Representation: models.RepresentationRawPassphrase,
		}
	}

	return sess.Staged
}

func (g *Gateway) handleCommand(sess *models.ProvisioningSession, command string) {
	switch command {
	case cmdApplyWifi:
		g.startApply(sess)
	case cmdForgetWifi:
		if sess.Staged != nil {
			sess.Staged.Wipe()
			sess.Staged = nil
		}

		sess.State = models.SessionAuthenticated
		g.notify(StatusCleared)
	case cmdReboot:
		g.reboot()
	default:
		g.logger.Warn().Str("command", command).Msg("Unknown command")
		g.notify(StatusUnknownCommand)
	}
}

// startApply hands the staged credential to the backend on a worker
// goroutine. A second apply while one is outstanding is rejected with
// busy, never queued.
func (g *Gateway) startApply(sess *models.ProvisioningSession) {
	if sess.Staged == nil || sess.Staged.SSID == "" {
		g.notify(StatusFailedNoSSID)
		return
	}

	select {
	case g.applySlot <- struct{}{}:
	default:
		g.logger.Warn().Str("peer", sess.Peer).Msg("Apply rejected, another apply in flight")
		g.notify(StatusBusy)

		return
	}

	payload := *sess.Staged
	deviceName := sess.DeviceName

	// The gateway never holds credentials past the handoff.
	sess.Staged.Wipe()
	sess.Staged = nil
	sess.State = models.SessionApplying

	g.notify(StatusConnecting)

	res := applyResult{peer: sess.Peer, sessionID: sess.ID}

	go func() {
		// Detached from the loop context: a BLE disconnect must not
		// cancel a half-applied network change.
		res.err = g.apply(context.Background(), &payload, deviceName)
		payload.Wipe()

		<-g.applySlot

		select {
		case g.applyDone <- res:
		case <-g.done:
		}
	}()
}

func (g *Gateway) apply(ctx context.Context, payload *models.CredentialPayload, deviceName string) error {
	if deviceName != "" {
		if out, err := g.runner.Run(ctx, "hostnamectl", "set-hostname", deviceName); err != nil {
			g.logger.Error().Err(err).Str("output", out).Msg("Failed to set hostname")
		} else {
			g.logger.Info().Str("hostname", deviceName).Msg("Hostname set")
		}
	}

	return g.backend.Connect(ctx, payload)
}

// finishApply runs on the event loop with the worker's outcome. If the
// peer is gone the terminal status is logged but not delivered; a
// reconnecting peer starts fresh and never observes it.
func (g *Gateway) finishApply(res applyResult) {
	status := StatusSuccess

	switch {
	case res.err == nil:
	case errors.Is(res.err, backend.ErrAuthFailure):
		status = StatusFailedAuth
	case errors.Is(res.err, backend.ErrNoSuchNetwork):
		status = StatusFailedNotFound
	case errors.Is(res.err, backend.ErrTimeout):
		status = StatusFailedTimeout
	default:
		status = StatusFailedDriver
	}

	g.logger.Info().Str("peer", res.peer).Str("status", status).Msg("Apply finished")

	sess := g.session(res.peer)
	if sess == nil || sess.ID != res.sessionID {
		return
	}

	if res.err == nil {
		sess.State = models.SessionApplied
	} else {
		sess.State = models.SessionFailed
	}

	g.notify(status)
}

// reboot acknowledges, lets the acknowledgment flush over the link, then
// asks the service manager to restart the device.
func (g *Gateway) reboot() {
	g.notify(StatusRebooting)

	grace := g.config.RebootGrace

	g.logger.Info().Dur("grace", grace).Msg("Reboot requested")

	time.AfterFunc(grace, func() {
		if out, err := g.runner.Run(context.Background(), "systemctl", "reboot"); err != nil {
			g.logger.Error().Err(err).Str("output", out).Msg("Reboot request failed")
		}
	})
}

func (g *Gateway) hasAuthenticatedSession() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, sess := range g.sessions {
		if sess.Authenticated {
			return true
		}
	}

	return false
}

// expireWindow disables the radio and its auto-restart. Re-exposing the
// gateway afterwards takes a reboot or an explicit out-of-band unmask.
func (g *Gateway) expireWindow() {
	if err := g.transport.StopAdvertising(); err != nil {
		g.logger.Error().Err(err).Msg("Failed to stop advertising")
	}

	if err := g.transport.PowerOff(); err != nil {
		g.logger.Error().Err(err).Msg("Failed to power radio off")
	}

	if g.systemd != nil && g.config.GatewayUnit != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := g.systemd.MaskUnit(ctx, g.config.GatewayUnit); err != nil {
			g.logger.Error().Err(err).Str("unit", g.config.GatewayUnit).Msg("Failed to mask gateway unit")
		}
	}

	lifecycle.NotifyStatus(g.logger, "security window expired, radio disabled")
}

func (g *Gateway) notify(status string) {
	if err := g.transport.Notify([]byte(status)); err != nil {
		g.logger.Debug().Err(err).Str("status", status).Msg("Status notification not delivered")
	}
}
