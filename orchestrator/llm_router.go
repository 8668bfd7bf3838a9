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
	"context"
	"fmt"
	"time"

	"axonflow/platform/orchestrator/llm"
)

// LLMRouter is the orchestrator-package entry point onto the completion
// service. It sits on top of llm.UnifiedRouter, the bridge the completion
// service itself ships for callers still shaped around the legacy
// OrchestratorRequest/ProviderInfo calling convention used by
// LLMCallProcessor, PlanningEngine, and ResultAggregator.
type LLMRouter struct {
	unified *llm.UnifiedRouter
	metrics *MetricsCollector
}

// NewLLMRouter wraps an already-constructed *llm.UnifiedRouter.
func NewLLMRouter(unified *llm.UnifiedRouter) *LLMRouter {
	return &LLMRouter{unified: unified}
}

// WithMetrics attaches a MetricsCollector that RouteRequest reports
// per-provider usage and errors to.
func (r *LLMRouter) WithMetrics(m *MetricsCollector) *LLMRouter {
	r.metrics = m
	return r
}

// NewLLMRouterFromEnv bootstraps the completion service's provider registry
// from environment variables and wraps it for orchestrator use.
func NewLLMRouterFromEnv() (*LLMRouter, error) {
	router, err := llm.QuickBootstrap()
	if err != nil {
		return nil, err
	}
	return NewLLMRouter(llm.NewUnifiedRouter(llm.UnifiedRouterConfig{
		Registry: router.Registry(),
	})), nil
}

// LLMResponse is the minimal response shape the legacy call sites read.
type LLMResponse struct {
	Content    string
	TokensUsed int
}

// RouteRequest translates an OrchestratorRequest into the completion
// service's RequestContext, dispatches it, and reports back in the shape
// workflow_engine.go / planning_engine.go / result_aggregator.go expect.
func (r *LLMRouter) RouteRequest(ctx context.Context, req OrchestratorRequest) (*LLMResponse, *ProviderInfo, error) {
	if r == nil || r.unified == nil {
		return nil, nil, fmt.Errorf("llm router not configured")
	}

	reqCtx := llm.RequestContext{
		Query:       req.Query,
		RequestType: req.RequestType,
		UserRole:    req.User.Role,
		ClientID:    req.Client.ID,
		OrgID:       req.Client.OrgID,
		TenantID:    req.Client.TenantID,
	}
	if provider, ok := req.Context["provider"].(string); ok {
		reqCtx.Provider = provider
	}
	if model, ok := req.Context["model"].(string); ok {
		reqCtx.Model = model
	}
	if maxTokens, ok := req.Context["max_tokens"].(int); ok {
		reqCtx.MaxTokens = maxTokens
	}

	resp, info, err := r.unified.RouteRequest(ctx, reqCtx)
	if err != nil {
		if r.metrics != nil && info != nil {
			r.metrics.RecordProviderError(info.Provider)
		}
		return nil, nil, err
	}

	providerInfo := &ProviderInfo{
		Provider:       info.Provider,
		Model:          info.Model,
		ResponseTimeMs: info.ResponseTimeMs,
		TokensUsed:     info.TokensUsed,
		Cost:           info.Cost,
	}

	if r.metrics != nil {
		r.metrics.RecordRequest(req.RequestType, info.Provider, time.Duration(info.ResponseTimeMs)*time.Millisecond)
		r.metrics.RecordProviderUsage(info.Provider, info.TokensUsed, info.Cost)
	}

	return &LLMResponse{Content: resp.Content, TokensUsed: resp.TokensUsed}, providerInfo, nil
}

// IsHealthy reports whether the underlying completion service has at least
// one healthy provider.
func (r *LLMRouter) IsHealthy() bool {
	return r != nil && r.unified != nil && r.unified.IsHealthy()
}
