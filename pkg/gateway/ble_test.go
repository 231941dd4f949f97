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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thingdb/netprov/pkg/logger"
)

func TestEmitConcurrentWithClose(t *testing.T) {
	tr := NewBLETransport(DefaultLocalName, nil, logger.NewTestLogger())

	// BlueZ write callbacks keep firing while the service shuts the
	// transport down; none of them may reach a closed channel.
	var wg sync.WaitGroup

	for i := 0; i < 4; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for j := 0; j < 500; j++ {
				tr.emit(Event{Type: EventWrite, Peer: "peer-1"})
			}
		}()
	}

	require.NoError(t, tr.Close())
	wg.Wait()

	// Emits after close are dropped silently.
	tr.emit(Event{Type: EventPeerDisconnected, Peer: "peer-1"})
}
