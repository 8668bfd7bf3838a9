// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_DefaultsSessionTimeout(t *testing.T) {
	path := writeConfig(t, "sso:\n  enabled: false\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3600, cfg.Session.TimeoutSeconds)
}

func TestLoadConfig_SSOEnabledRequiresOIDCFields(t *testing.T) {
	path := writeConfig(t, "sso:\n  enabled: true\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_SSOEnabledWithFieldsSucceeds(t *testing.T) {
	path := writeConfig(t, `
sso:
  enabled: true
  oidc:
    issuer: https://idp.example.com
    client_id: abc
    redirect_uri: https://app.example.com/auth/callback
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.SSO.Enabled)
}

func TestLoadConfig_EnvOverridesSessionTimeout(t *testing.T) {
	path := writeConfig(t, "sso:\n  enabled: false\n")
	t.Setenv("CENECA_SESSION_TIMEOUT", "10m")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 600, cfg.Session.TimeoutSeconds)
	assert.Equal(t, 600*1e9, float64(cfg.SessionTimeout()))
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
