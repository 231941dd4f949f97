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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thingdb/netprov/pkg/logger"
)

type testServiceConfig struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	Interfaces []string      `json:"interfaces"`
	Nested     nestedConfig  `json:"nested"`
}

type nestedConfig struct {
	Enabled bool `json:"enabled"`
	Count   int  `json:"count"`
}

var errNameRequired = errors.New("name is required")

type validatedConfig struct {
	Name string `json:"name"`
}

func (c *validatedConfig) Validate() error {
	if c.Name == "" {
		return errNameRequired
	}

	return nil
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadAndValidateFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"name": "gateway",
		"interval": 30000000000,
		"interfaces": ["wlan0", "eth0"],
		"nested": {"enabled": true, "count": 3}
	}`)

	var cfg testServiceConfig

	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "gateway", cfg.Name)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, []string{"wlan0", "eth0"}, cfg.Interfaces)
	assert.True(t, cfg.Nested.Enabled)
	assert.Equal(t, 3, cfg.Nested.Count)
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	var cfg testServiceConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(),
		filepath.Join(t.TempDir(), "absent.json"), &cfg)
	assert.Error(t, err)
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	path := writeConfigFile(t, `{}`)

	var cfg validatedConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	assert.ErrorIs(t, err, errNameRequired)
}

func TestLoadAndValidateInvalidSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "consul")

	var cfg testServiceConfig

	err := NewConfig(nil).LoadAndValidate(context.Background(), "ignored", &cfg)
	assert.ErrorIs(t, err, errInvalidConfigSource)
}

func TestEnvLoaderFlatAndNestedFields(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("NETPROV_NAME", "monitor")
	t.Setenv("NETPROV_INTERVAL", "45s")
	t.Setenv("NETPROV_INTERFACES", "wlan0, eth0")
	t.Setenv("NETPROV_NESTED_ENABLED", "true")
	t.Setenv("NETPROV_NESTED_COUNT", "7")

	var cfg testServiceConfig

	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "monitor", cfg.Name)
	assert.Equal(t, 45*time.Second, cfg.Interval)
	assert.Equal(t, []string{"wlan0", "eth0"}, cfg.Interfaces)
	assert.True(t, cfg.Nested.Enabled)
	assert.Equal(t, 7, cfg.Nested.Count)
}

func TestEnvLoaderConfigJSONOverride(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("NETPROV_CONFIG_JSON", `{"name": "from-json", "nested": {"count": 2}}`)
	t.Setenv("NETPROV_NAME", "ignored")

	var cfg testServiceConfig

	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "from-json", cfg.Name)
	assert.Equal(t, 2, cfg.Nested.Count)
}

func TestEnvLoaderCustomPrefix(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "GW_")
	t.Setenv("GW_NAME", "prefixed")

	var cfg testServiceConfig

	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))
	assert.Equal(t, "prefixed", cfg.Name)
}

func TestEnvLoaderRejectsNonPointer(t *testing.T) {
	loader := NewEnvLoader(logger.NewTestLogger(), "NETPROV_")

	err := loader.Load(context.Background(), "", testServiceConfig{})
	assert.ErrorIs(t, err, ErrDstMustBeNonNilPointer)

	var s string

	err = loader.Load(context.Background(), "", &s)
	assert.ErrorIs(t, err, ErrDstMustBePointerToStruct)
}
