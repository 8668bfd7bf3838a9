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

package llm

import "context"

// LicenseTier identifies the minimum license tier a provider type requires.
type LicenseTier string

const (
	// LicenseTierCommunity covers every provider this module ships a
	// concrete factory for: Anthropic, OpenAI, Ollama, Gemini, Azure
	// OpenAI and Bedrock.
	LicenseTierCommunity LicenseTier = "community"

	// LicenseTierEnterprise covers provider types this module does not
	// implement a vetted client for, currently just ProviderTypeCustom:
	// an arbitrary self-hosted endpoint needs a support contract before
	// it is safe to route production traffic through it.
	LicenseTierEnterprise LicenseTier = "enterprise"
)

// LicenseValidator gates which provider types a Registry may register.
// Registry.Register consults it before accepting a new provider config.
type LicenseValidator interface {
	// IsProviderAllowed reports whether the current license permits
	// registering a provider of the given type.
	IsProviderAllowed(ctx context.Context, providerType ProviderType) bool

	// GetCurrentTier returns the active license tier, used for error
	// messages when a provider type is rejected.
	GetCurrentTier(ctx context.Context) LicenseTier
}

// providerTierRequirement maps each provider type to the minimum tier
// required to register it.
var providerTierRequirement = map[ProviderType]LicenseTier{
	ProviderTypeAnthropic:   LicenseTierCommunity,
	ProviderTypeOpenAI:      LicenseTierCommunity,
	ProviderTypeOllama:      LicenseTierCommunity,
	ProviderTypeGemini:      LicenseTierCommunity,
	ProviderTypeAzureOpenAI: LicenseTierCommunity,
	ProviderTypeBedrock:     LicenseTierCommunity,
	ProviderTypeCustom:      LicenseTierEnterprise,
}

// GetTierForProvider returns the minimum license tier required to register
// a provider of the given type. Provider types with no explicit entry
// default to LicenseTierEnterprise.
func GetTierForProvider(providerType ProviderType) LicenseTier {
	if tier, ok := providerTierRequirement[providerType]; ok {
		return tier
	}
	return LicenseTierEnterprise
}

// ossLicenseValidator allows every Community-tier provider type and
// rejects anything requiring a higher tier.
type ossLicenseValidator struct{}

// NewOSSLicenseValidator returns the license validator used by the
// Community edition's default registry.
func NewOSSLicenseValidator() LicenseValidator {
	return &ossLicenseValidator{}
}

func (ossLicenseValidator) IsProviderAllowed(_ context.Context, providerType ProviderType) bool {
	return GetTierForProvider(providerType) == LicenseTierCommunity
}

func (ossLicenseValidator) GetCurrentTier(_ context.Context) LicenseTier {
	return LicenseTierCommunity
}

// DefaultValidator is the LicenseValidator a Registry uses when none is
// supplied via WithLicenseValidator.
var DefaultValidator LicenseValidator = NewOSSLicenseValidator()
