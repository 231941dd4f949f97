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

// Package lifecycle runs long-lived services under signal handling and
// reports their state to the host service manager.
package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/thingdb/netprov/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Service is a long-running component with explicit start/stop.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ServiceOptions configures RunService.
type ServiceOptions struct {
	Name            string
	Service         Service
	Logger          logger.Logger
	ShutdownTimeout time.Duration
}

// RunService starts the service, notifies the service manager once it is
// up, and blocks until the service fails or a termination signal arrives.
// External tooling reads the sd_notify state to distinguish "provisioning
// currently possible" from "device online".
func RunService(ctx context.Context, opts *ServiceOptions) error {
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- opts.Service.Start(ctx)
	}()

	NotifyReady(log, opts.Name)

	var runErr error

	select {
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("service %s failed: %w", opts.Name, err)
		}
	case <-ctx.Done():
		log.Info().Str("service", opts.Name).Msg("Shutdown signal received")
	}

	NotifyStopping(log)

	timeout := opts.ShutdownTimeout
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := opts.Service.Stop(stopCtx); err != nil {
		log.Error().Err(err).Str("service", opts.Name).Msg("Service stop failed")

		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}

// NotifyReady tells the service manager the unit is up. Failure to notify
// is logged and ignored: the services also run outside systemd in tests.
func NotifyReady(log logger.Logger, name string) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Warn().Err(err).Msg("sd_notify READY failed")
		return
	}

	if sent {
		log.Debug().Str("service", name).Msg("Notified service manager: ready")
	}
}

// NotifyStatus publishes a human-readable status line to the service
// manager.
func NotifyStatus(log logger.Logger, status string) {
	if _, err := daemon.SdNotify(false, "STATUS="+status); err != nil {
		log.Warn().Err(err).Msg("sd_notify STATUS failed")
	}
}

// NotifyStopping tells the service manager the unit is shutting down.
func NotifyStopping(log logger.Logger) {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Warn().Err(err).Msg("sd_notify STOPPING failed")
	}
}
