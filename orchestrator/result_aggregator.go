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
	"strings"
	"time"

	"axonflow/platform/shared/logger"
)

// ResultAggregator synthesizes the per-source query outputs a workflow
// collects (one StepExecution per connector operation) into the single
// natural-language answer returned to the caller, per spec.md §4.13's
// "final synthesis" phase.
type ResultAggregator struct {
	llmRouter *LLMRouter
	log       *logger.Logger
}

// NewResultAggregator creates a new result aggregator instance
func NewResultAggregator(router *LLMRouter) *ResultAggregator {
	return &ResultAggregator{
		llmRouter: router,
		log:       logger.New("orchestrator.result_aggregator"),
	}
}

// AggregateResults combines the outputs of a workflow's connector operations
// into a final answer to the original query.
func (a *ResultAggregator) AggregateResults(ctx context.Context, opResults []StepExecution, originalQuery string, user UserContext) (string, error) {
	startTime := time.Now()

	a.log.Debug(user.TenantID, "", "aggregating operation results", map[string]interface{}{
		"operation_count": len(opResults),
	})

	successfulResults := a.filterSuccessfulResults(opResults)
	if len(successfulResults) == 0 {
		return "", fmt.Errorf("no successful connector operations to aggregate")
	}

	a.log.Debug(user.TenantID, "", "successful operations out of total", map[string]interface{}{
		"successful": len(successfulResults),
		"total":      len(opResults),
	})

	prompt := a.buildSynthesisPrompt(originalQuery, successfulResults)

	req := OrchestratorRequest{
		RequestID:   fmt.Sprintf("synthesis-%d", time.Now().Unix()),
		Query:       prompt,
		RequestType: "final-synthesis",
		User:        user,
	}

	response, _, err := a.llmRouter.RouteRequest(ctx, req)
	if err != nil {
		a.log.Warn(user.TenantID, "", "synthesis LLM call failed, falling back to concatenation", map[string]interface{}{
			"error": err.Error(),
		})
		return a.simpleConcatenation(successfulResults, originalQuery), nil
	}

	finalResult, err := a.extractSynthesizedResult(response)
	if err != nil {
		a.log.Warn(user.TenantID, "", "failed to extract synthesized result, falling back to concatenation", map[string]interface{}{
			"error": err.Error(),
		})
		return a.simpleConcatenation(successfulResults, originalQuery), nil
	}

	a.log.InfoWithDuration(user.TenantID, "", "synthesis completed", float64(time.Since(startTime).Milliseconds()), nil)

	return finalResult, nil
}

// filterSuccessfulResults keeps only the operations that produced output.
func (a *ResultAggregator) filterSuccessfulResults(results []StepExecution) []StepExecution {
	successful := make([]StepExecution, 0, len(results))

	for _, result := range results {
		if result.Status == "completed" && result.Output != nil {
			successful = append(successful, result)
		}
	}

	return successful
}

// buildSynthesisPrompt builds the prompt the completion service turns the
// raw per-source rows/answers into one coherent response for.
func (a *ResultAggregator) buildSynthesisPrompt(originalQuery string, results []StepExecution) string {
	var promptBuilder strings.Builder

	promptBuilder.WriteString("You are a query synthesis assistant for a cross-data-source orchestration agent. ")
	promptBuilder.WriteString("Combine the following per-source query results into a single, coherent answer.\n\n")
	promptBuilder.WriteString(fmt.Sprintf("Original Query: %s\n\n", originalQuery))
	promptBuilder.WriteString("Source Results:\n\n")

	for i, result := range results {
		promptBuilder.WriteString(fmt.Sprintf("Source %d: %s\n", i+1, result.Name))
		promptBuilder.WriteString(fmt.Sprintf("Status: %s\n", result.Status))
		promptBuilder.WriteString(fmt.Sprintf("Time: %s\n", result.ProcessTime))
		promptBuilder.WriteString(fmt.Sprintf("Data: %s\n", formatStepOutput(result.Output)))
		promptBuilder.WriteString("\n")
	}

	promptBuilder.WriteString("\nInstructions:\n")
	promptBuilder.WriteString("1. Synthesize all source results into a single, coherent response\n")
	promptBuilder.WriteString("2. Ensure the answer directly addresses the original query\n")
	promptBuilder.WriteString("3. Organize information logically (tables, lists, or prose as appropriate)\n")
	promptBuilder.WriteString("4. If sources provide conflicting data, reconcile or note the conflict\n")
	promptBuilder.WriteString("5. Be concise but comprehensive\n\n")
	promptBuilder.WriteString("Provide your synthesized response:")

	return promptBuilder.String()
}

// formatStepOutput extracts the most useful representation of a connector
// operation's output for inclusion in a synthesis prompt.
func formatStepOutput(output map[string]interface{}) string {
	if output == nil {
		return "<no data>"
	}
	if resp, ok := output["response"]; ok {
		if llmResp, ok := resp.(*LLMResponse); ok {
			return llmResp.Content
		}
		if str, ok := resp.(string); ok {
			return str
		}
		return fmt.Sprintf("%v", resp)
	}
	if data, ok := output["data"]; ok {
		return fmt.Sprintf("%v", data)
	}
	return fmt.Sprintf("%v", output)
}

// extractSynthesizedResult reads the completion service's response content.
func (a *ResultAggregator) extractSynthesizedResult(response interface{}) (string, error) {
	if llmResp, ok := response.(*LLMResponse); ok {
		return llmResp.Content, nil
	}
	if str, ok := response.(string); ok {
		return str, nil
	}
	return "", fmt.Errorf("unexpected synthesis response type: %T", response)
}

// simpleConcatenation is the degraded-mode fallback used when the
// completion service is unavailable: it lists each source's raw output
// rather than synthesizing prose.
func (a *ResultAggregator) simpleConcatenation(results []StepExecution, originalQuery string) string {
	var output strings.Builder

	output.WriteString(fmt.Sprintf("Results for: %s\n\n", originalQuery))

	for i, result := range results {
		output.WriteString(fmt.Sprintf("%d. %s (completed in %s)\n", i+1, result.Name, result.ProcessTime))
		output.WriteString(fmt.Sprintf("   %s\n\n", formatStepOutput(result.Output)))
	}

	output.WriteString("---\n")
	output.WriteString("Note: results aggregated without LLM synthesis (simple concatenation)\n")

	return output.String()
}

// AggregateWithCustomPrompt lets a caller supply its own synthesis prompt,
// e.g. for workflow-specific answer formats.
func (a *ResultAggregator) AggregateWithCustomPrompt(ctx context.Context, opResults []StepExecution, customPrompt string, user UserContext) (string, error) {
	successfulResults := a.filterSuccessfulResults(opResults)
	if len(successfulResults) == 0 {
		return "", fmt.Errorf("no successful connector operations to aggregate")
	}

	req := OrchestratorRequest{
		RequestID:   fmt.Sprintf("synthesis-custom-%d", time.Now().Unix()),
		Query:       customPrompt,
		RequestType: "custom-synthesis",
		User:        user,
	}

	response, _, err := a.llmRouter.RouteRequest(ctx, req)
	if err != nil {
		return a.simpleConcatenation(successfulResults, "custom synthesis"), nil
	}

	return a.extractSynthesizedResult(response)
}

// IsHealthy reports whether the aggregator's completion service has at
// least one healthy provider.
func (a *ResultAggregator) IsHealthy() bool {
	return a.llmRouter != nil && a.llmRouter.IsHealthy()
}

// GetAggregationStats summarizes a batch of operation results: success rate
// feeds spec.md §4.9's unified-result success criterion
// (tool-success-rate >= 0.5).
func (a *ResultAggregator) GetAggregationStats(results []StepExecution) AggregationStats {
	stats := AggregationStats{
		TotalTasks: len(results),
	}

	for _, result := range results {
		switch result.Status {
		case "completed":
			stats.SuccessfulTasks++
		case "failed":
			stats.FailedTasks++
		}

		if duration, err := time.ParseDuration(result.ProcessTime); err == nil {
			stats.TotalTimeMs += int64(duration.Milliseconds())
		}
	}

	if stats.TotalTasks > 0 {
		stats.SuccessRate = float64(stats.SuccessfulTasks) / float64(stats.TotalTasks) * 100
	}

	return stats
}

// AggregationStats holds statistics about a batch of connector operations.
type AggregationStats struct {
	TotalTasks      int     `json:"total_tasks"`
	SuccessfulTasks int     `json:"successful_tasks"`
	FailedTasks     int     `json:"failed_tasks"`
	SuccessRate     float64 `json:"success_rate"`
	TotalTimeMs     int64   `json:"total_time_ms"`
}
