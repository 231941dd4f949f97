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

package monitor

import "time"

// recoveryBudget rate-limits recovery attempts to at most maxAttempts per
// rolling window.
type recoveryBudget struct {
	maxAttempts int
	window      time.Duration
	attempts    []time.Time
}

func newRecoveryBudget(maxAttempts int, window time.Duration) *recoveryBudget {
	return &recoveryBudget{
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// allow records an attempt at now if the budget permits one and reports
// whether it did.
func (b *recoveryBudget) allow(now time.Time) bool {
	cutoff := now.Add(-b.window)

	kept := b.attempts[:0]

	for _, t := range b.attempts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	b.attempts = kept

	if len(b.attempts) >= b.maxAttempts {
		return false
	}

	b.attempts = append(b.attempts, now)

	return true
}
