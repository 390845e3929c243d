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

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ssm/cmd/ssm/app"
	"github.com/carverauto/ssm/pkg/models"
)

func writeConfig(t *testing.T) string {
	t.Helper()

	t.Setenv("CONFIG_SOURCE", "")
	t.Setenv("SSM_CONFIG_KEY", strings.Repeat("cd", 32))

	path := filepath.Join(t.TempDir(), "ssm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: memory\nlogging:\n  level: disabled\n"), 0o600))

	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}

func TestNodesRegister(t *testing.T) {
	path := writeConfig(t)

	_, err := execute(t, "", "--config", path, "nodes", "register", "node-1")
	require.ErrorIs(t, err, errOwnerRequired)

	out, err := execute(t, "", "--config", path, "nodes", "register", "node-1", "--owner", "user-1", "--canvas", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "Registered node node-1\n", out)
}

func TestTokensImport(t *testing.T) {
	path := writeConfig(t)

	_, err := execute(t, `{"access_token":"a"}`, "--config", path, "tokens", "import", "user-1", "gws-1")
	require.ErrorIs(t, err, errRefreshRequired)

	_, err = execute(t, `not json`, "--config", path, "tokens", "import", "user-1", "gws-1")
	require.Error(t, err)

	out, err := execute(t, `{"access_token":"a","refresh_token":"r"}`, "--config", path, "tokens", "import", "user-1", "gws-1")
	require.NoError(t, err)
	assert.Equal(t, "Stored token for connection gws-1\n", out)
	assert.NotContains(t, out, `"r"`)
}

func TestRunOnceUnknownNode(t *testing.T) {
	path := writeConfig(t)

	out, err := execute(t, "", "--config", path, "run-once", "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Contains(t, out, `"state": "aborted"`)
	assert.Contains(t, out, `"load: not_found"`)
}

func TestMigrateRequiresDatabase(t *testing.T) {
	path := writeConfig(t)

	_, err := execute(t, "", "--config", path, "migrate")
	require.ErrorIs(t, err, app.ErrDatabaseBackendRequired)
}

func TestMissingConfig(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	_, err := execute(t, "", "--config", filepath.Join(t.TempDir(), "nope.json"), "migrate")
	require.Error(t, err)
}
