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

//go:generate mockgen -destination=mock_runner.go -package=netexec github.com/thingdb/netprov/pkg/netexec Runner

// Package netexec shells out to the host network tooling (nmcli, wpa_cli,
// rfkill, hostnamectl) behind a mockable interface.
package netexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/thingdb/netprov/pkg/logger"
)

const maxCommandNameLength = 64

var (
	// validCommandName keeps command names to plain tool names, no paths or shell metacharacters.
	validCommandName = regexp.MustCompile(`^[a-zA-Z0-9\-_.]+$`)

	errInvalidCommandName = errors.New("invalid command name")
)

// Runner executes a host command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands through os/exec. Arguments are passed as an
// argv vector, never through a shell.
type ExecRunner struct {
	logger logger.Logger
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(log logger.Logger) *ExecRunner {
	return &ExecRunner{logger: log}
}

// Run executes name with args and returns trimmed combined output. A
// non-zero exit returns the output alongside the error so callers can map
// tool-specific failure text onto typed errors.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if err := validateCommandName(name); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, name, args...)

	r.logger.Debug().Str("command", name).Strs("args", args).Msg("Running command")

	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))

	if err != nil {
		return output, fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}

	return output, nil
}

func validateCommandName(name string) error {
	if len(name) == 0 || len(name) > maxCommandNameLength {
		return fmt.Errorf("%w: %q", errInvalidCommandName, name)
	}

	if !validCommandName.MatchString(name) {
		return fmt.Errorf("%w: %q", errInvalidCommandName, name)
	}

	return nil
}
