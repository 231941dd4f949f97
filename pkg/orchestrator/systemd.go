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
	"fmt"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
)

// dbusSystemd implements SystemdClient over the systemd D-Bus API.
type dbusSystemd struct {
	conn *sddbus.Conn
}

// NewSystemdClient connects to the system bus.
func NewSystemdClient(ctx context.Context) (SystemdClient, error) {
	conn, err := sddbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to systemd: %w", err)
	}

	return &dbusSystemd{conn: conn}, nil
}

func (c *dbusSystemd) StartUnit(ctx context.Context, unit string) error {
	return c.runJob(ctx, unit, "start", c.conn.StartUnitContext)
}

func (c *dbusSystemd) StopUnit(ctx context.Context, unit string) error {
	return c.runJob(ctx, unit, "stop", c.conn.StopUnitContext)
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

// runJob queues a unit job and waits for its result. "done" is success;
// stopping an already-stopped unit also reports "done".
func (*dbusSystemd) runJob(ctx context.Context, unit, verb string, fn jobFunc) error {
	ch := make(chan string, 1)

	if _, err := fn(ctx, unit, "replace", ch); err != nil {
		return fmt.Errorf("failed to %s %s: %w", verb, unit, err)
	}

	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("%s job for %s finished with %q", verb, unit, result)
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *dbusSystemd) EnableUnit(ctx context.Context, unit string) error {
	if _, _, err := c.conn.EnableUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
		return fmt.Errorf("failed to enable %s: %w", unit, err)
	}

	return nil
}

func (c *dbusSystemd) DisableUnit(ctx context.Context, unit string) error {
	if _, err := c.conn.DisableUnitFilesContext(ctx, []string{unit}, false); err != nil {
		return fmt.Errorf("failed to disable %s: %w", unit, err)
	}

	return nil
}

func (c *dbusSystemd) MaskUnit(ctx context.Context, unit string) error {
	if _, err := c.conn.MaskUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
		return fmt.Errorf("failed to mask %s: %w", unit, err)
	}

	return nil
}

func (c *dbusSystemd) UnmaskUnit(ctx context.Context, unit string) error {
	if _, err := c.conn.UnmaskUnitFilesContext(ctx, []string{unit}, false); err != nil {
		return fmt.Errorf("failed to unmask %s: %w", unit, err)
	}

	return nil
}

func (c *dbusSystemd) ActiveState(ctx context.Context, unit string) (string, error) {
	statuses, err := c.conn.ListUnitsByNamesContext(ctx, []string{unit})
	if err != nil {
		return "", fmt.Errorf("failed to query %s: %w", unit, err)
	}

	if len(statuses) == 0 {
		return "inactive", nil
	}

	return statuses[0].ActiveState, nil
}

func (c *dbusSystemd) Close() {
	c.conn.Close()
}
