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

package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/thingdb/netprov/pkg/logger"
	"github.com/thingdb/netprov/pkg/models"
	"github.com/thingdb/netprov/pkg/netexec"
)

func TestProbeSelectsNetworkManager(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := netexec.NewMockRunner(ctrl)

	runner.EXPECT().
		Run(gomock.Any(), "systemctl", "is-active", "NetworkManager.service").
		Return("active", nil)

	b, err := Probe(context.Background(), runner, &ProbeConfig{}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, models.VariantNetworkManager, b.Variant())
}

func TestProbeFallsBackToWPASupplicant(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := netexec.NewMockRunner(ctrl)

	gomock.InOrder(
		runner.EXPECT().
			Run(gomock.Any(), "systemctl", "is-active", "NetworkManager.service").
			Return("inactive", errors.New("exit status 3")),
		runner.EXPECT().
			Run(gomock.Any(), "systemctl", "is-active", "wpa_supplicant.service").
			Return("active", nil),
	)

	b, err := Probe(context.Background(), runner, &ProbeConfig{}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, models.VariantWPASupplicant, b.Variant())
}

func TestProbeSelectsWPASupplicantByControlSocket(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := netexec.NewMockRunner(ctrl)

	// Unit inactive but the supplicant answers on its control socket.
	gomock.InOrder(
		runner.EXPECT().
			Run(gomock.Any(), "systemctl", "is-active", "NetworkManager.service").
			Return("inactive", errors.New("exit status 3")),
		runner.EXPECT().
			Run(gomock.Any(), "systemctl", "is-active", "wpa_supplicant.service").
			Return("inactive", errors.New("exit status 3")),
		runner.EXPECT().
			Run(gomock.Any(), "wpa_cli", "-i", "wlan0", "status").
			Return("wpa_state=DISCONNECTED", nil),
	)

	b, err := Probe(context.Background(), runner, &ProbeConfig{}, logger.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, models.VariantWPASupplicant, b.Variant())
}

func TestProbeNoBackend(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := netexec.NewMockRunner(ctrl)

	gomock.InOrder(
		runner.EXPECT().
			Run(gomock.Any(), "systemctl", "is-active", "NetworkManager.service").
			Return("inactive", errors.New("exit status 3")),
		runner.EXPECT().
			Run(gomock.Any(), "systemctl", "is-active", "wpa_supplicant.service").
			Return("inactive", errors.New("exit status 3")),
		runner.EXPECT().
			Run(gomock.Any(), "wpa_cli", "-i", "wlan0", "status").
			Return("", errors.New("exit status 255")),
	)

	_, err := Probe(context.Background(), runner, &ProbeConfig{}, logger.NewTestLogger())
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestProbeConfigDefaults(t *testing.T) {
	c := (&ProbeConfig{}).withDefaults()

	assert.Equal(t, "wlan0", c.Interface)
	assert.Equal(t, defaultConnectTimeout, c.ConnectTimeout)
}
