/*
 * Copyright 2025 Carver Automation Corporation.
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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ssm/pkg/logger"
	"github.com/carverauto/ssm/pkg/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadJSONFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeFile(t, "ssm.json", `{"listen_addr": ":9000", "cycle_timeout": "45s", "scheduler": {"concurrency": 2}}`)

	var cfg models.ServiceConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 45*time.Second, cfg.CycleTimeout.Std())
	assert.Equal(t, 2, cfg.Scheduler.Concurrency)
	assert.Equal(t, time.Minute, cfg.Scheduler.CheckInterval.Std())
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeFile(t, "ssm.yaml", `
listen_addr: ":9100"
store: memory
cycle_timeout: 1m
rate_limit:
  max_per_window: 5
  window_minutes: 10
google:
  scopes:
    - https://www.googleapis.com/auth/gmail.modify
`)

	var cfg models.ServiceConfig
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, time.Minute, cfg.CycleTimeout.Std())
	assert.Equal(t, 5, cfg.RateLimit.MaxPerWindow)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/gmail.modify"}, cfg.Google.Scopes)
}

func TestLoadRejectsUnknownSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	var cfg models.ServiceConfig
	err := NewConfig(nil).LoadAndValidate(context.Background(), "unused", &cfg)
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestEnvLoaderFields(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("SSM_LISTEN_ADDR", ":7000")
	t.Setenv("SSM_CYCLE_TIMEOUT", "30s")
	t.Setenv("SSM_SCHEDULER_ENABLED", "true")
	t.Setenv("SSM_DATABASE_HOST", "db.internal")
	t.Setenv("SSM_DATABASE_PORT", "6543")
	t.Setenv("SSM_GOOGLE_SCOPES", "a, b")

	var cfg models.ServiceConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.CycleTimeout.Std())
	assert.True(t, cfg.Scheduler.Enabled)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, models.BackendPostgres, cfg.Store)
	assert.Equal(t, []string{"a", "b"}, cfg.Google.Scopes)
	assert.Nil(t, cfg.NATS)
}

func TestEnvLoaderJSONBlob(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("SSM_CONFIG_JSON", `{"listen_addr": ":7100", "api_key": "k"}`)

	var cfg models.ServiceConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, ":7100", cfg.ListenAddr)
	assert.Equal(t, "k", cfg.APIKey)
}

func TestEnvLoaderRejectsNonPointer(t *testing.T) {
	err := NewEnvConfigLoader(logger.NewTestLogger(), "SSM_").Load(context.Background(), "", models.ServiceConfig{})
	require.ErrorIs(t, err, ErrDstMustBeNonNilPointer)
}
