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

package orchestrator

import (
	"context"
	"time"

	"axonflow/platform/orchestrator/llm"
)

// fakeCompletionProvider is a hand-rolled llm.Provider stand-in for tests
// that need a router which actually completes instead of falling back.
type fakeCompletionProvider struct {
	name    string
	content string
}

func (p *fakeCompletionProvider) Name() string            { return p.name }
func (p *fakeCompletionProvider) Type() llm.ProviderType   { return llm.ProviderTypeCustom }
func (p *fakeCompletionProvider) Capabilities() []llm.Capability {
	return []llm.Capability{llm.CapabilityChat, llm.CapabilityCompletion}
}
func (p *fakeCompletionProvider) SupportsStreaming() bool { return false }
func (p *fakeCompletionProvider) EstimateCost(req llm.CompletionRequest) *llm.CostEstimate {
	return nil
}

func (p *fakeCompletionProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return &llm.CompletionResponse{
		Content:      p.content,
		Model:        "fake-model",
		FinishReason: "stop",
		Usage:        llm.UsageStats{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}, nil
}

func (p *fakeCompletionProvider) HealthCheck(ctx context.Context) (*llm.HealthCheckResult, error) {
	return &llm.HealthCheckResult{Status: llm.HealthStatusHealthy, LastChecked: time.Now()}, nil
}

// newTestLLMRouter wires a fakeCompletionProvider through the real
// registry/router/unified-router chain, the way production code does,
// so tests exercise the actual routing path instead of the fallback path.
func newTestLLMRouter(name, content string) *LLMRouter {
	registry := llm.NewRegistry()
	_ = registry.RegisterProvider(name, &fakeCompletionProvider{name: name, content: content}, &llm.ProviderConfig{
		Name:    name,
		Type:    llm.ProviderTypeCustom,
		Enabled: true,
	})

	registry.HealthCheck(context.Background())

	unified := llm.NewUnifiedRouter(llm.UnifiedRouterConfig{
		Registry: registry,
		RoutingConfig: llm.RoutingConfig{
			Strategy:        llm.RoutingStrategyWeighted,
			ProviderWeights: map[string]float64{name: 1.0},
			DefaultProvider: name,
		},
	})

	return NewLLMRouter(unified)
}
