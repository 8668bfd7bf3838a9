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

import (
	"context"
	"fmt"
	"time"

	"axonflow/platform/orchestrator/llm/azure"
	"axonflow/platform/orchestrator/llm/bedrock"
	"axonflow/platform/orchestrator/llm/gemini"
)

// init registers the Gemini, Azure OpenAI and Bedrock factories alongside
// the factories.go built-ins, so BootstrapFromEnv's gemini/azure-openai/
// bedrock entries resolve to a working provider instead of failing
// registry.Register with "no factory registered".
func init() {
	RegisterFactory(ProviderTypeGemini, NewGeminiProviderFactory)
	RegisterFactory(ProviderTypeAzureOpenAI, NewAzureOpenAIProviderFactory)
	RegisterFactory(ProviderTypeBedrock, NewBedrockProviderFactory)
}

// NewGeminiProviderFactory creates a Gemini provider from configuration.
func NewGeminiProviderFactory(config ProviderConfig) (Provider, error) {
	if config.APIKey == "" && config.APIKeySecretARN == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeGemini,
			Code:         ErrFactoryInvalidConfig,
			Message:      "API key is required for Gemini provider",
		}
	}

	model := config.Model
	if model == "" {
		model = gemini.DefaultModel
	}

	timeout := 120 * time.Second
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = gemini.DefaultBaseURL
	}

	provider, err := gemini.NewProvider(gemini.Config{
		APIKey:  config.APIKey,
		BaseURL: endpoint,
		Model:   model,
		Timeout: timeout,
	})
	if err != nil {
		return nil, &FactoryError{
			ProviderType: ProviderTypeGemini,
			Code:         ErrFactoryCreationFailed,
			Message:      fmt.Sprintf("failed to create Gemini provider: %v", err),
			Cause:        err,
		}
	}

	return &GeminiProviderAdapter{
		provider: provider,
		name:     config.Name,
		config:   config,
	}, nil
}

// GeminiProviderAdapter adapts the gemini.Provider to the unified Provider interface.
type GeminiProviderAdapter struct {
	provider *gemini.Provider
	name     string
	config   ProviderConfig
}

// Name returns the provider instance name.
func (a *GeminiProviderAdapter) Name() string {
	return a.name
}

// Type returns the provider type.
func (a *GeminiProviderAdapter) Type() ProviderType {
	return ProviderTypeGemini
}

// Complete generates a completion for the given request.
func (a *GeminiProviderAdapter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	geminiReq := gemini.CompletionRequest{
		Prompt:        req.Prompt,
		SystemPrompt:  req.SystemPrompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		Model:         req.Model,
		StopSequences: req.StopSequences,
		Stream:        req.Stream,
	}

	resp, err := a.provider.Complete(ctx, geminiReq)
	if err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content: resp.Content,
		Model:   resp.Model,
		Usage: UsageStats{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency:      resp.Latency,
		FinishReason: resp.StopReason,
		Metadata: map[string]any{
			"provider": "gemini",
		},
	}, nil
}

// CompleteStream generates a streaming completion for the given request.
func (a *GeminiProviderAdapter) CompleteStream(ctx context.Context, req CompletionRequest, handler StreamHandler) (*CompletionResponse, error) {
	geminiReq := gemini.CompletionRequest{
		Prompt:        req.Prompt,
		SystemPrompt:  req.SystemPrompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		TopK:          req.TopK,
		Model:         req.Model,
		StopSequences: req.StopSequences,
		Stream:        true,
	}

	resp, err := a.provider.CompleteStream(ctx, geminiReq, func(chunk gemini.StreamChunk) error {
		if handler == nil {
			return nil
		}
		return handler(StreamChunk{
			Type:    chunk.Type,
			Content: chunk.Content,
			Done:    chunk.Done,
		})
	})
	if err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content: resp.Content,
		Model:   resp.Model,
		Usage: UsageStats{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency:      resp.Latency,
		FinishReason: resp.StopReason,
		Metadata: map[string]any{
			"provider": "gemini",
			"streamed": true,
		},
	}, nil
}

// HealthCheck verifies the provider is operational.
func (a *GeminiProviderAdapter) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	start := time.Now()
	healthy := a.provider.IsHealthy()

	status := HealthStatusUnhealthy
	message := "provider reports unhealthy"
	if healthy {
		status = HealthStatusHealthy
		message = "provider is operational"
	}

	return &HealthCheckResult{
		Status:      status,
		Latency:     time.Since(start),
		Message:     message,
		LastChecked: time.Now(),
	}, nil
}

// Capabilities returns the list of features this provider supports.
func (a *GeminiProviderAdapter) Capabilities() []Capability {
	return []Capability{
		CapabilityChat,
		CapabilityCompletion,
		CapabilityStreaming,
		CapabilityVision,
		CapabilityCodeGeneration,
		CapabilityLongContext,
	}
}

// SupportsStreaming indicates if the provider supports streaming responses.
func (a *GeminiProviderAdapter) SupportsStreaming() bool {
	return a.provider.SupportsStreaming()
}

// EstimateCost provides a cost estimate for a given request.
func (a *GeminiProviderAdapter) EstimateCost(req CompletionRequest) *CostEstimate {
	estimatedInputTokens, estimatedOutputTokens := estimateTokens(req)
	totalEstimate := calculateCost(estimatedInputTokens, estimatedOutputTokens,
		geminiInputCostPer1K, geminiOutputCostPer1K)

	return &CostEstimate{
		InputCostPer1K:        geminiInputCostPer1K,
		OutputCostPer1K:       geminiOutputCostPer1K,
		EstimatedInputTokens:  estimatedInputTokens,
		EstimatedOutputTokens: estimatedOutputTokens,
		TotalEstimate:         totalEstimate,
		Currency:              "USD",
	}
}

// Gemini 2.0 Flash pricing per 1K tokens.
const (
	geminiInputCostPer1K  = 0.0001
	geminiOutputCostPer1K = 0.0004
)

// Verify interface compliance at compile time.
var _ Provider = (*GeminiProviderAdapter)(nil)
var _ StreamingProvider = (*GeminiProviderAdapter)(nil)

// NewAzureOpenAIProviderFactory creates an Azure OpenAI provider from configuration.
func NewAzureOpenAIProviderFactory(config ProviderConfig) (Provider, error) {
	if config.Endpoint == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAzureOpenAI,
			Code:         ErrFactoryInvalidConfig,
			Message:      "endpoint is required for Azure OpenAI provider",
		}
	}
	if config.APIKey == "" && config.APIKeySecretARN == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAzureOpenAI,
			Code:         ErrFactoryInvalidConfig,
			Message:      "API key is required for Azure OpenAI provider",
		}
	}
	if config.Model == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAzureOpenAI,
			Code:         ErrFactoryInvalidConfig,
			Message:      "deployment name (Model) is required for Azure OpenAI provider",
		}
	}

	timeout := 120 * time.Second
	if config.TimeoutSeconds > 0 {
		timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	apiVersion := ""
	if config.Settings != nil {
		if v, ok := config.Settings["api_version"].(string); ok {
			apiVersion = v
		}
	}

	provider, err := azure.NewProvider(azure.Config{
		Endpoint:       config.Endpoint,
		APIKey:         config.APIKey,
		DeploymentName: config.Model,
		APIVersion:     apiVersion,
		Timeout:        timeout,
	})
	if err != nil {
		return nil, &FactoryError{
			ProviderType: ProviderTypeAzureOpenAI,
			Code:         ErrFactoryCreationFailed,
			Message:      fmt.Sprintf("failed to create Azure OpenAI provider: %v", err),
			Cause:        err,
		}
	}

	return &AzureOpenAIProviderAdapter{
		provider: provider,
		name:     config.Name,
		config:   config,
	}, nil
}

// AzureOpenAIProviderAdapter adapts the azure.Provider to the unified Provider interface.
type AzureOpenAIProviderAdapter struct {
	provider *azure.Provider
	name     string
	config   ProviderConfig
}

// Name returns the provider instance name.
func (a *AzureOpenAIProviderAdapter) Name() string {
	return a.name
}

// Type returns the provider type.
func (a *AzureOpenAIProviderAdapter) Type() ProviderType {
	return ProviderTypeAzureOpenAI
}

// Complete generates a completion for the given request.
func (a *AzureOpenAIProviderAdapter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	azureReq := azure.CompletionRequest{
		Prompt:        req.Prompt,
		SystemPrompt:  req.SystemPrompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Model:         req.Model,
		StopSequences: req.StopSequences,
		Stream:        req.Stream,
	}

	resp, err := a.provider.Complete(ctx, azureReq)
	if err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content: resp.Content,
		Model:   resp.Model,
		Usage: UsageStats{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency:      resp.Latency,
		FinishReason: resp.StopReason,
		Metadata: map[string]any{
			"provider": "azure-openai",
		},
	}, nil
}

// CompleteStream generates a streaming completion for the given request.
func (a *AzureOpenAIProviderAdapter) CompleteStream(ctx context.Context, req CompletionRequest, handler StreamHandler) (*CompletionResponse, error) {
	azureReq := azure.CompletionRequest{
		Prompt:        req.Prompt,
		SystemPrompt:  req.SystemPrompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Model:         req.Model,
		StopSequences: req.StopSequences,
		Stream:        true,
	}

	resp, err := a.provider.CompleteStream(ctx, azureReq, func(chunk azure.StreamChunk) error {
		if handler == nil {
			return nil
		}
		return handler(StreamChunk{
			Type:    chunk.Type,
			Content: chunk.Content,
			Done:    chunk.Done,
		})
	})
	if err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content: resp.Content,
		Model:   resp.Model,
		Usage: UsageStats{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency:      resp.Latency,
		FinishReason: resp.StopReason,
		Metadata: map[string]any{
			"provider": "azure-openai",
			"streamed": true,
		},
	}, nil
}

// HealthCheck verifies the provider is operational.
func (a *AzureOpenAIProviderAdapter) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	start := time.Now()
	healthy := a.provider.IsHealthy()

	status := HealthStatusUnhealthy
	message := "provider reports unhealthy"
	if healthy {
		status = HealthStatusHealthy
		message = "provider is operational"
	}

	return &HealthCheckResult{
		Status:      status,
		Latency:     time.Since(start),
		Message:     message,
		LastChecked: time.Now(),
	}, nil
}

// Capabilities returns the list of features this provider supports.
func (a *AzureOpenAIProviderAdapter) Capabilities() []Capability {
	return []Capability{
		CapabilityChat,
		CapabilityCompletion,
		CapabilityStreaming,
		CapabilityFunctionCalling,
		CapabilityCodeGeneration,
	}
}

// SupportsStreaming indicates if the provider supports streaming responses.
func (a *AzureOpenAIProviderAdapter) SupportsStreaming() bool {
	return a.provider.SupportsStreaming()
}

// EstimateCost provides a cost estimate for a given request.
func (a *AzureOpenAIProviderAdapter) EstimateCost(req CompletionRequest) *CostEstimate {
	estimatedInputTokens, estimatedOutputTokens := estimateTokens(req)
	totalEstimate := calculateCost(estimatedInputTokens, estimatedOutputTokens,
		azureOpenAIInputCostPer1K, azureOpenAIOutputCostPer1K)

	return &CostEstimate{
		InputCostPer1K:        azureOpenAIInputCostPer1K,
		OutputCostPer1K:       azureOpenAIOutputCostPer1K,
		EstimatedInputTokens:  estimatedInputTokens,
		EstimatedOutputTokens: estimatedOutputTokens,
		TotalEstimate:         totalEstimate,
		Currency:              "USD",
	}
}

// Azure OpenAI GPT-4o-mini pricing per 1K tokens.
const (
	azureOpenAIInputCostPer1K  = 0.00015
	azureOpenAIOutputCostPer1K = 0.0006
)

// Verify interface compliance at compile time.
var _ Provider = (*AzureOpenAIProviderAdapter)(nil)
var _ StreamingProvider = (*AzureOpenAIProviderAdapter)(nil)

// NewBedrockProviderFactory creates an AWS Bedrock provider from configuration.
// Unlike the other factories, credentials are resolved through the AWS SDK's
// default chain (env vars, shared config, instance/task role) rather than a
// single API key; config.APIKey/APIKeySecretARN are not used here.
func NewBedrockProviderFactory(config ProviderConfig) (Provider, error) {
	if config.Region == "" {
		return nil, &FactoryError{
			ProviderType: ProviderTypeBedrock,
			Code:         ErrFactoryInvalidConfig,
			Message:      "region is required for Bedrock provider",
		}
	}

	accessKeyID := ""
	secretAccessKey := ""
	sessionToken := ""
	if config.Settings != nil {
		if v, ok := config.Settings["access_key_id"].(string); ok {
			accessKeyID = v
		}
		if v, ok := config.Settings["secret_access_key"].(string); ok {
			secretAccessKey = v
		}
		if v, ok := config.Settings["session_token"].(string); ok {
			sessionToken = v
		}
	}

	provider, err := bedrock.NewProvider(context.Background(), bedrock.Config{
		Region:          config.Region,
		Model:           config.Model,
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		SessionToken:    sessionToken,
	})
	if err != nil {
		return nil, &FactoryError{
			ProviderType: ProviderTypeBedrock,
			Code:         ErrFactoryCreationFailed,
			Message:      fmt.Sprintf("failed to create Bedrock provider: %v", err),
			Cause:        err,
		}
	}

	return &BedrockProviderAdapter{
		provider: provider,
		name:     config.Name,
		config:   config,
	}, nil
}

// BedrockProviderAdapter adapts the bedrock.Provider to the unified Provider interface.
type BedrockProviderAdapter struct {
	provider *bedrock.Provider
	name     string
	config   ProviderConfig
}

// Name returns the provider instance name.
func (a *BedrockProviderAdapter) Name() string {
	return a.name
}

// Type returns the provider type.
func (a *BedrockProviderAdapter) Type() ProviderType {
	return ProviderTypeBedrock
}

// Complete generates a completion for the given request.
func (a *BedrockProviderAdapter) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	bedrockReq := bedrock.CompletionRequest{
		Prompt:        req.Prompt,
		SystemPrompt:  req.SystemPrompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		Model:         req.Model,
		StopSequences: req.StopSequences,
	}

	resp, err := a.provider.Complete(ctx, bedrockReq)
	if err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content: resp.Content,
		Model:   resp.Model,
		Usage: UsageStats{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Latency:      resp.Latency,
		FinishReason: resp.StopReason,
		Metadata: map[string]any{
			"provider": "bedrock",
		},
	}, nil
}

// HealthCheck verifies the provider is operational.
func (a *BedrockProviderAdapter) HealthCheck(ctx context.Context) (*HealthCheckResult, error) {
	start := time.Now()
	healthy := a.provider.IsHealthy()

	status := HealthStatusUnhealthy
	message := "provider reports unhealthy"
	if healthy {
		status = HealthStatusHealthy
		message = "provider is operational"
	}

	return &HealthCheckResult{
		Status:      status,
		Latency:     time.Since(start),
		Message:     message,
		LastChecked: time.Now(),
	}, nil
}

// Capabilities returns the list of features this provider supports.
func (a *BedrockProviderAdapter) Capabilities() []Capability {
	return []Capability{
		CapabilityChat,
		CapabilityCompletion,
		CapabilityCodeGeneration,
		CapabilityLongContext,
	}
}

// SupportsStreaming indicates if the provider supports streaming responses.
func (a *BedrockProviderAdapter) SupportsStreaming() bool {
	return a.provider.SupportsStreaming()
}

// EstimateCost provides a cost estimate for a given request.
func (a *BedrockProviderAdapter) EstimateCost(req CompletionRequest) *CostEstimate {
	estimatedInputTokens, estimatedOutputTokens := estimateTokens(req)
	totalEstimate := calculateCost(estimatedInputTokens, estimatedOutputTokens,
		bedrockInputCostPer1K, bedrockOutputCostPer1K)

	return &CostEstimate{
		InputCostPer1K:        bedrockInputCostPer1K,
		OutputCostPer1K:       bedrockOutputCostPer1K,
		EstimatedInputTokens:  estimatedInputTokens,
		EstimatedOutputTokens: estimatedOutputTokens,
		TotalEstimate:         totalEstimate,
		Currency:              "USD",
	}
}

// Claude 3.5 Sonnet v2 on Bedrock pricing per 1K tokens.
const (
	bedrockInputCostPer1K  = 0.003
	bedrockOutputCostPer1K = 0.015
)

// Verify interface compliance at compile time.
var _ Provider = (*BedrockProviderAdapter)(nil)
