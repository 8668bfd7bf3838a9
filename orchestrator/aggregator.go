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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"axonflow/platform/shared/logger"
)

// OutputKind is the Output Aggregator's capture-variant union (C9).
type OutputKind string

const (
	OutputRawData           OutputKind = "raw_data"
	OutputExecutionPlan     OutputKind = "execution_plan"
	OutputToolExecution     OutputKind = "tool_execution"
	OutputFinalSynthesis    OutputKind = "final_synthesis"
	OutputPerformanceMetric OutputKind = "performance_metrics"
	OutputStreamingEvent    OutputKind = "streaming_event"
)

// CapturedOutput is one captured artifact.
type CapturedOutput struct {
	ID        string                 `json:"id"`
	Kind      OutputKind             `json:"kind"`
	CapturedAt time.Time             `json:"captured_at"`
	Data      map[string]interface{} `json:"data"`
}

// TimelineEntry is one step of get_workflow_timeline, the ordered view of
// every capture in a session.
type TimelineEntry struct {
	OutputID   string     `json:"output_id"`
	Kind       OutputKind `json:"kind"`
	CapturedAt time.Time  `json:"captured_at"`
}

// UnifiedResult is create_unified_result's composed response, per spec.md
// §4.9: every capture kind folded into one shape, plus the success
// criterion ("≥1 row captured AND tool success rate ≥ 0.5").
type UnifiedResult struct {
	SessionID          string                   `json:"session_id"`
	Success            bool                     `json:"success"`
	Rows               []map[string]interface{} `json:"rows"`
	SQL                string                   `json:"sql"`
	Analysis           string                   `json:"analysis"`
	WorkflowMetadata   WorkflowMetadata         `json:"workflow_metadata"`
	ExecutionDetails   []map[string]interface{} `json:"execution_details"`
	PerformanceMetrics []map[string]interface{} `json:"performance_metrics"`
	QualityIndicators  AggregationStats         `json:"quality_indicators"`
	WorkflowTimeline   []TimelineEntry          `json:"workflow_timeline"`
	PlanInfo           []map[string]interface{} `json:"plan_info"`
	OperationResults   []StepExecution          `json:"operation_results"`
	RowCount           int                      `json:"row_count"`
	FinalText          string                   `json:"final_text"`
}

// APIResponse is the thin, client-facing projection of a UnifiedResult.
type APIResponse struct {
	SessionID string `json:"session_id"`
	Success   bool   `json:"success"`
	Result    string `json:"result"`
	RowCount  int    `json:"row_count"`
}

// Aggregator captures every output artifact of one session and persists it
// to disk immediately on each capture (C9). Grounded conceptually on
// orchestrator/replay's snapshot idea and result_aggregator.go's
// AggregationStats success-rate computation, but the file itself is new:
// the teacher has no per-session on-disk artifact store.
type Aggregator struct {
	mu               sync.Mutex
	sessionID        string
	dir              string
	outputs          []CapturedOutput
	finalized        bool
	nextID           int
	startTime        time.Time
	workflowMetadata WorkflowMetadata
	log              *logger.Logger
}

// NewAggregator creates an Aggregator for sessionID, persisting artifacts
// under dir/<sessionID>_aggregator.json. startTime is recorded immediately
// so the persisted file's start_time reflects session creation, not the
// first capture.
func NewAggregator(sessionID, dir string) *Aggregator {
	return &Aggregator{
		sessionID: sessionID,
		dir:       dir,
		startTime: time.Now().UTC(),
		log:       logger.New("orchestrator.aggregator"),
	}
}

// SetWorkflowMetadata attaches the workflow's metadata so it's persisted
// alongside the session's captures and surfaced by CreateUnifiedResult.
func (a *Aggregator) SetWorkflowMetadata(wm WorkflowMetadata) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.workflowMetadata = wm
}

func (a *Aggregator) path() string {
	return filepath.Join(a.dir, fmt.Sprintf("%s_aggregator.json", a.sessionID))
}

func (a *Aggregator) capture(kind OutputKind, data map[string]interface{}) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finalized {
		return "", fmt.Errorf("orchestrator: aggregator for session %q is finalized", a.sessionID)
	}

	a.nextID++
	id := fmt.Sprintf("%s-out-%d", a.sessionID, a.nextID)
	a.outputs = append(a.outputs, CapturedOutput{
		ID:         id,
		Kind:       kind,
		CapturedAt: time.Now().UTC(),
		Data:       data,
	})

	if err := a.saveLocked(); err != nil {
		return "", err
	}
	return id, nil
}

// CaptureRawData records a raw_data output.
func (a *Aggregator) CaptureRawData(data map[string]interface{}) (string, error) {
	return a.capture(OutputRawData, data)
}

// CaptureExecutionPlan records an execution_plan output.
func (a *Aggregator) CaptureExecutionPlan(data map[string]interface{}) (string, error) {
	return a.capture(OutputExecutionPlan, data)
}

// CaptureToolExecution records a tool_execution output.
func (a *Aggregator) CaptureToolExecution(data map[string]interface{}) (string, error) {
	return a.capture(OutputToolExecution, data)
}

// CaptureFinalSynthesis records a final_synthesis output.
func (a *Aggregator) CaptureFinalSynthesis(data map[string]interface{}) (string, error) {
	return a.capture(OutputFinalSynthesis, data)
}

// CapturePerformanceMetrics records a performance_metrics output.
func (a *Aggregator) CapturePerformanceMetrics(data map[string]interface{}) (string, error) {
	return a.capture(OutputPerformanceMetric, data)
}

// CaptureStreamingEvent records a streaming_event output.
func (a *Aggregator) CaptureStreamingEvent(data map[string]interface{}) (string, error) {
	return a.capture(OutputStreamingEvent, data)
}

// ByKind returns every captured output of the given kind, in capture order.
func (a *Aggregator) ByKind(kind OutputKind) []CapturedOutput {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []CapturedOutput
	for _, o := range a.outputs {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

// Finalize marks the aggregator immutable and performs one last save.
func (a *Aggregator) Finalize() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = true
	return a.saveLocked()
}

// Cleanup removes the on-disk artifact file. It must be called explicitly;
// Finalize never deletes state on its own.
func (a *Aggregator) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	err := os.Remove(a.path())
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

func (a *Aggregator) saveLocked() error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: create aggregator dir: %w", err)
	}
	b, err := json.MarshalIndent(struct {
		SessionID        string           `json:"session_id"`
		WorkflowMetadata WorkflowMetadata `json:"workflow_metadata"`
		StartTime        time.Time        `json:"start_time"`
		Finalized        bool             `json:"finalized"`
		Outputs          []CapturedOutput `json:"outputs"`
		SavedAt          time.Time        `json:"saved_at"`
	}{a.sessionID, a.workflowMetadata, a.startTime, a.finalized, a.outputs, time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: marshal aggregator state: %w", err)
	}
	if err := os.WriteFile(a.path(), b, 0o644); err != nil {
		return fmt.Errorf("orchestrator: write aggregator state: %w", err)
	}
	return nil
}

// CreateUnifiedResult composes every capture kind into the single response
// shape spec.md §4.9 names (rows, sql, analysis, workflow_metadata,
// execution_details, quality_indicators, workflow_timeline, plan_info,
// operation_results). Success requires at least one captured row of raw
// data AND a tool-execution success rate of at least 0.5.
func (a *Aggregator) CreateUnifiedResult(toolSteps []StepExecution) UnifiedResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := (&ResultAggregator{}).GetAggregationStats(toolSteps)

	rowCount := 0
	var rows []map[string]interface{}
	sql := ""
	for _, o := range a.outputs {
		if o.Kind != OutputRawData {
			continue
		}
		if rs, ok := o.Data["rows"].([]map[string]interface{}); ok {
			rows = append(rows, rs...)
		}
		if n, ok := o.Data["row_count"].(int); ok {
			rowCount += n
		} else {
			rowCount++
		}
		if s, ok := o.Data["sql"].(string); ok && s != "" {
			sql = s
		}
	}

	finalText := ""
	for _, o := range a.outputs {
		if o.Kind == OutputFinalSynthesis {
			if t, ok := o.Data["text"].(string); ok {
				finalText = t
			}
		}
	}

	success := rowCount >= 1 && (stats.TotalTasks == 0 || stats.SuccessRate/100.0 >= 0.5)

	return UnifiedResult{
		SessionID:          a.sessionID,
		Success:            success,
		Rows:               rows,
		SQL:                sql,
		Analysis:           finalText,
		WorkflowMetadata:   a.workflowMetadata,
		ExecutionDetails:   a.dataByKind(OutputToolExecution),
		PerformanceMetrics: a.dataByKind(OutputPerformanceMetric),
		QualityIndicators:  stats,
		WorkflowTimeline:   a.timelineLocked(),
		PlanInfo:           a.dataByKind(OutputExecutionPlan),
		OperationResults:   toolSteps,
		RowCount:           rowCount,
		FinalText:          finalText,
	}
}

// dataByKind returns the .Data payload of every capture of the given kind,
// in capture order. Callers must hold a.mu.
func (a *Aggregator) dataByKind(kind OutputKind) []map[string]interface{} {
	var out []map[string]interface{}
	for _, o := range a.outputs {
		if o.Kind == kind {
			out = append(out, o.Data)
		}
	}
	return out
}

// timelineLocked returns get_workflow_timeline's ordered view of every
// capture. Callers must hold a.mu.
func (a *Aggregator) timelineLocked() []TimelineEntry {
	timeline := make([]TimelineEntry, 0, len(a.outputs))
	for _, o := range a.outputs {
		timeline = append(timeline, TimelineEntry{OutputID: o.ID, Kind: o.Kind, CapturedAt: o.CapturedAt})
	}
	return timeline
}

// GetAllRawData is get_all_raw_data: every raw_data capture, in order.
func (a *Aggregator) GetAllRawData() []CapturedOutput {
	return a.ByKind(OutputRawData)
}

// GetAllExecutionPlans is get_all_execution_plans: every execution_plan
// capture, in order.
func (a *Aggregator) GetAllExecutionPlans() []CapturedOutput {
	return a.ByKind(OutputExecutionPlan)
}

// GetAllToolExecutions is get_all_tool_executions: every tool_execution
// capture, in order.
func (a *Aggregator) GetAllToolExecutions() []CapturedOutput {
	return a.ByKind(OutputToolExecution)
}

// GetFinalSynthesis is get_final_synthesis: the most recent final_synthesis
// capture, or nil if none was recorded.
func (a *Aggregator) GetFinalSynthesis() *CapturedOutput {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.outputs) - 1; i >= 0; i-- {
		if a.outputs[i].Kind == OutputFinalSynthesis {
			out := a.outputs[i]
			return &out
		}
	}
	return nil
}

// GetPerformanceSummary is get_performance_summary: every performance_metrics
// capture, in order.
func (a *Aggregator) GetPerformanceSummary() []CapturedOutput {
	return a.ByKind(OutputPerformanceMetric)
}

// GetWorkflowTimeline is get_workflow_timeline: every capture across all
// kinds, ordered by capture time.
func (a *Aggregator) GetWorkflowTimeline() []TimelineEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timelineLocked()
}

// CreateAPIResponse projects a UnifiedResult down to the thin client-facing
// shape.
func CreateAPIResponse(ur UnifiedResult) APIResponse {
	return APIResponse{
		SessionID: ur.SessionID,
		Success:   ur.Success,
		Result:    ur.FinalText,
		RowCount:  ur.RowCount,
	}
}
