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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the orchestrator's top-level YAML configuration, following the
// connectors/config package's Load(path)+environment-override pattern.
type Config struct {
	SSO           SSOConfig         `yaml:"sso"`
	RoleMappings  map[string]string `yaml:"role_mappings"`
	Session       SessionConfig     `yaml:"session"`
	Scheduler     SchedulerConfig   `yaml:"scheduler"`
	Registry      RegistryConfig    `yaml:"registry"`
	DevMode       bool              `yaml:"dev_mode"`
}

type SSOConfig struct {
	Enabled         bool     `yaml:"enabled"`
	DefaultProtocol string   `yaml:"default_protocol"`
	OIDC            OIDCYAML `yaml:"oidc"`
}

type OIDCYAML struct {
	Provider     string            `yaml:"provider"`
	ClientID     string            `yaml:"client_id"`
	ClientSecret string            `yaml:"client_secret"`
	Issuer       string            `yaml:"issuer"`
	DiscoveryURL string            `yaml:"discovery_url"`
	RedirectURI  string            `yaml:"redirect_uri"`
	Scopes       []string          `yaml:"scopes"`
	Claims       ClaimsYAML        `yaml:"claims_mapping"`
}

type ClaimsYAML struct {
	Email  string `yaml:"email"`
	Name   string `yaml:"name"`
	Groups string `yaml:"groups"`
}

// SessionConfig controls the Session Store's TTL and signing secret.
// CENECA_SESSION_TIMEOUT / CENECA_SESSION_SECRET override the file values.
type SessionConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Secret         string `yaml:"secret"`
}

// SchedulerConfig overrides the Execution Scheduler's §4.12 defaults.
type SchedulerConfig struct {
	SourceLimits map[string]int `yaml:"source_limits"`
	WeightCap    int            `yaml:"weight_cap"`
	GlobalCap    int            `yaml:"global_cap"`
}

// RegistryConfig names the Schema Registry's backing store.
type RegistryConfig struct {
	DSN string `yaml:"dsn"`
}

// LoadConfig reads path, applies environment overrides, and validates the
// OIDC block when SSO is enabled, per spec.md §6's startup-failure contract.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: read config %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("orchestrator: parse config %q: %w", path, err)
	}

	if v := os.Getenv("CENECA_SESSION_TIMEOUT"); v != "" {
		if secs, err := time.ParseDuration(v); err == nil {
			cfg.Session.TimeoutSeconds = int(secs.Seconds())
		}
	}
	if v := os.Getenv("CENECA_SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}

	if cfg.SSO.Enabled {
		if cfg.SSO.OIDC.Issuer == "" || cfg.SSO.OIDC.ClientID == "" || cfg.SSO.OIDC.RedirectURI == "" {
			return nil, fmt.Errorf("orchestrator: sso.enabled requires oidc.issuer, oidc.client_id, oidc.redirect_uri")
		}
	}
	if cfg.Session.TimeoutSeconds <= 0 {
		cfg.Session.TimeoutSeconds = 3600
	}

	return &cfg, nil
}

// SessionTimeout returns the configured session TTL as a time.Duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutSeconds) * time.Second
}
