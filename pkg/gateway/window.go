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
	"sync"
	"time"

	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/models"
)

// DefaultWindowDuration bounds how long the radio stays discoverable.
const DefaultWindowDuration = 10 * time.Minute

// WindowController bounds BLE discoverability. Armed when the gateway
// starts; every successful authentication pushes the deadline forward so a
// pairing in progress is never cut off mid-flow. Expiry with no
// authenticated session fires onExpire exactly once.
type WindowController struct {
	duration time.Duration
	hasAuth  func() bool
	onExpire func()
	logger   logger.Logger

	now func() time.Time

	mu     sync.Mutex
	window models.SecurityWindow
	timer  *time.Timer
}

// NewWindowController creates a controller. hasAuth reports whether an
// authenticated session is currently live; onExpire disables the radio.
func NewWindowController(duration time.Duration, hasAuth func() bool, onExpire func(), log logger.Logger) *WindowController {
	if duration == 0 {
		duration = DefaultWindowDuration
	}

	return &WindowController{
		duration: duration,
		hasAuth:  hasAuth,
		onExpire: onExpire,
		logger:   log,
		now:      time.Now,
	}
}

// Arm starts the deadline timer.
func (w *WindowController) Arm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.window = models.SecurityWindow{
		ArmedAt:  now,
		Deadline: now.Add(w.duration),
		Active:   true,
	}

	w.timer = time.AfterFunc(w.duration, w.check)

	w.logger.Info().Time("deadline", w.window.Deadline).Msg("Security window armed")
}

// Reset pushes the deadline forward by the full window duration. Called on
// every transition into the authenticated state.
func (w *WindowController) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.window.Active {
		return
	}

	w.window.Deadline = w.now().Add(w.duration)

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.duration, w.check)

	w.logger.Debug().Time("deadline", w.window.Deadline).Msg("Security window reset")
}

// Disarm stops the timer without firing onExpire.
func (w *WindowController) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.window.Active = false

	if w.timer != nil {
		w.timer.Stop()
	}
}

// Window returns a copy of the current window state.
func (w *WindowController) Window() models.SecurityWindow {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.window
}

// check runs at the deadline. An authenticated session in flight extends
// the window instead of closing it.
func (w *WindowController) check() {
	if w.hasAuth() {
		w.logger.Debug().Msg("Authenticated session in flight, extending security window")
		w.Reset()

		return
	}

	w.mu.Lock()

	if !w.window.Active {
		w.mu.Unlock()
		return
	}

	w.window.Active = false
	w.mu.Unlock()

	w.logger.Info().Msg("Security window expired, disabling radio")

	w.onExpire()
}
