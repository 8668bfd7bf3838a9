// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"axonflow/platform/orchestrator/llm"
)

// init registers ProviderTypeCustom's factory with the llm package's global
// registry, the way doc.go's package example describes. Importing this
// package for its side effect (see orchestrator/run.go) is what turns a
// "custom" provider config into a working llm.Provider: a generic JSON/HTTP
// completion call built from NewProviderBuilder, the auth/rate-limit/retry
// helpers in this package.
func init() {
	llm.RegisterFactory(llm.ProviderTypeCustom, NewCustomProviderFactory)
}

// NewCustomProviderFactory builds a Provider for ProviderTypeCustom out of
// the generic ProviderBuilder. It expects config.Endpoint to accept a JSON
// body shaped like customRequestBody and to respond with customResponseBody;
// operators pointing at a bespoke completion endpoint configure auth and
// rate limiting through config.APIKey/config.RateLimit/config.Settings.
func NewCustomProviderFactory(config llm.ProviderConfig) (llm.Provider, error) {
	if config.Endpoint == "" {
		return nil, &llm.FactoryError{
			ProviderType: llm.ProviderTypeCustom,
			Code:         llm.ErrFactoryInvalidConfig,
			Message:      "custom provider requires an endpoint",
		}
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	if config.TimeoutSeconds > 0 {
		httpClient.Timeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	auth := resolveCustomAuth(config)

	builder := NewProviderBuilder(config.Name, llm.ProviderTypeCustom).
		WithModel(config.Model).
		WithEndpoint(config.Endpoint).
		WithAuth(auth).
		WithHTTPClient(httpClient).
		WithRetry(DefaultRetryConfig()).
		WithCompleteFunc(customHTTPComplete(config.Endpoint, httpClient, auth))

	if config.RateLimit > 0 {
		rate := float64(config.RateLimit) / 60.0
		burst := rate
		if b, ok := config.Settings["rate_limit_burst"].(float64); ok && b > 0 {
			burst = b
		}
		builder = builder.WithRateLimiter(NewRateLimiter(rate, burst))
	}

	return builder.Build(), nil
}

// resolveCustomAuth picks an AuthProvider from config.Settings["auth_type"]
// ("bearer", "basic", "none") and config.APIKey, defaulting to API-key
// authentication in the Authorization header when an API key is present.
func resolveCustomAuth(config llm.ProviderConfig) AuthProvider {
	authType, _ := config.Settings["auth_type"].(string)
	switch authType {
	case "bearer":
		return NewBearerTokenAuth(config.APIKey)
	case "basic":
		username, _ := config.Settings["username"].(string)
		return NewBasicAuth(username, config.APIKey)
	case "none":
		return NewNoAuth()
	default:
		if config.APIKey == "" {
			return NewNoAuth()
		}
		return NewAPIKeyAuth(config.APIKey)
	}
}

// customRequestBody is the generic JSON request shape posted to a custom
// provider's endpoint.
type customRequestBody struct {
	Model     string  `json:"model,omitempty"`
	Prompt    string  `json:"prompt"`
	System    string  `json:"system,omitempty"`
	MaxTokens int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// customResponseBody is the generic JSON response shape expected back from
// a custom provider's endpoint.
type customResponseBody struct {
	Content    string `json:"content"`
	Model      string `json:"model,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
	Usage      struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// customHTTPComplete returns the CompleteFunc a custom provider's
// CustomProvider.Complete calls after applying rate limiting and, when
// configured, RetryWithBackoff.
func customHTTPComplete(endpoint string, client *http.Client, auth AuthProvider) CompleteFunc {
	return func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		body, err := json.Marshal(customRequestBody{
			Model:       req.Model,
			Prompt:      req.Prompt,
			System:      req.SystemPrompt,
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("custom provider: marshal request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("custom provider: build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if err := auth.Apply(httpReq); err != nil {
			return nil, fmt.Errorf("custom provider: apply auth: %w", err)
		}

		start := time.Now()
		httpResp, err := client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("custom provider: request failed: %w", err)
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 400 {
			raw, _ := io.ReadAll(httpResp.Body)
			return nil, &APIError{StatusCode: httpResp.StatusCode, Message: string(raw), Type: "http_error"}
		}

		var resp customResponseBody
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return nil, fmt.Errorf("custom provider: decode response: %w", err)
		}

		return &llm.CompletionResponse{
			Content:      resp.Content,
			Model:        resp.Model,
			FinishReason: resp.StopReason,
			Usage: llm.UsageStats{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
			},
			Latency: time.Since(start),
		}, nil
	}
}
