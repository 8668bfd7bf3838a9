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
	"sync"
	"time"

	"axonflow/platform/scheduler"
	"axonflow/platform/shared/logger"
)

// maxStreamingEvents bounds the per-session streaming buffer; older events
// are dropped head-first once the cap is reached, per spec.md §4.8.
const maxStreamingEvents = 100

// UserPreferences are the caller-tunable knobs carried on every Workflow
// State (spec.md §3).
type UserPreferences struct {
	ParallelismCap int
	StreamingFlag  bool
	AutoOptimize   bool
}

// QualityThresholds gate whether a result is considered acceptable.
type QualityThresholds struct {
	Completeness float64
	Confidence   float64
	Performance  float64
}

// TimeoutSettings bound individual operations, the whole workflow, and
// streaming idle time.
type TimeoutSettings struct {
	PerOperation time.Duration
	Total        time.Duration
	Streaming    time.Duration
}

// StreamEvent is one entry of the bounded streaming buffer.
type StreamEvent struct {
	Type      string
	Timestamp time.Time
	NodeID    string
	Payload   map[string]interface{}
}

// ErrorEntry is one entry of the per-session error history.
type ErrorEntry struct {
	Timestamp time.Time
	NodeID    string
	Message   string
}

// WorkflowState is the full per-in-flight-request record described in
// spec.md §3. It is created at request start, mutated by every phase node
// through State.Update's single-writer protocol, and destroyed or archived
// when the request completes or the session ends.
type WorkflowState struct {
	SessionID       string
	LegacySessionID string
	Question        string
	WorkflowKind    string

	IdentifiedSources []string
	AvailableTables   []string
	SchemaBundle      map[string]interface{}
	ExecutionPlan     *scheduler.Plan

	StepHistory      []StepExecution
	OperationResults []*scheduler.OpResult
	PartialResults   map[string]interface{}
	FinalResult      map[string]interface{}

	StreamingBuffer []StreamEvent
	ErrorHistory    []ErrorEntry
	RetryCount      int

	SelectedTools         []string
	ToolExecutionHistory  []StepExecution
	PerformanceMetrics    map[string]interface{}

	Preferences UserPreferences
	Quality     QualityThresholds
	Timeouts    TimeoutSettings

	CreatedAt        time.Time
	LastUpdateTime   time.Time
}

// Patch is a partial update applied to a WorkflowState by Store.Update.
// Every field is a pointer/slice-or-nil so "unset" is distinguishable from
// "set to zero value".
type Patch struct {
	WorkflowKind      *string
	IdentifiedSources []string
	AvailableTables   []string
	SchemaBundle      map[string]interface{}
	ExecutionPlan     *scheduler.Plan
	AppendStepHistory []StepExecution
	PartialResults    map[string]interface{}
	FinalResult       map[string]interface{}
	IncrementRetry    bool
}

// Store is the Workflow State & Bridge contract (C8): session lifecycle
// plus a bidirectional bridge to a legacy session id, grounded on
// workflow_engine.go's mutex-guarded in-memory storage style.
type Store struct {
	mu   sync.RWMutex
	byID map[string]*WorkflowState

	bridgeMu    sync.RWMutex
	legacyToNew map[string]string
	newToLegacy map[string]string

	log *logger.Logger
}

// NewStore creates an empty in-memory Workflow State store.
func NewStore() *Store {
	return &Store{
		byID:        make(map[string]*WorkflowState),
		legacyToNew: make(map[string]string),
		newToLegacy: make(map[string]string),
		log:         logger.New("orchestrator.state"),
	}
}

// CreateGraphSession creates a new Workflow State for question, optionally
// bridged to legacySessionID (pass "" for no bridge).
func (s *Store) CreateGraphSession(sessionID, legacySessionID, question, kind string) *WorkflowState {
	now := time.Now().UTC()
	ws := &WorkflowState{
		SessionID:          sessionID,
		LegacySessionID:    legacySessionID,
		Question:           question,
		WorkflowKind:       kind,
		PartialResults:     make(map[string]interface{}),
		PerformanceMetrics: make(map[string]interface{}),
		CreatedAt:          now,
		LastUpdateTime:     now,
	}

	s.mu.Lock()
	s.byID[sessionID] = ws
	s.mu.Unlock()

	if legacySessionID != "" {
		s.bridgeMu.Lock()
		s.legacyToNew[legacySessionID] = sessionID
		s.newToLegacy[sessionID] = legacySessionID
		s.bridgeMu.Unlock()
	}

	return ws
}

// Get accepts either the graph session id or the bridged legacy session id.
func (s *Store) Get(id string) (*WorkflowState, bool) {
	resolved := s.resolve(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.byID[resolved]
	return ws, ok
}

func (s *Store) resolve(id string) string {
	s.bridgeMu.RLock()
	defer s.bridgeMu.RUnlock()
	if newID, ok := s.legacyToNew[id]; ok {
		return newID
	}
	return id
}

// Update applies patch to the session named by id (either id flavor),
// refreshing LastUpdateTime. When syncLegacy is true and a legacy bridge
// exists, the final result and tool execution history are also mirrored
// into the legacy-facing view (exposed via LegacySessionID on the same
// record, since this tree has one record per bridge, not two).
func (s *Store) Update(id string, patch Patch, syncLegacy bool) error {
	resolved := s.resolve(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.byID[resolved]
	if !ok {
		return fmt.Errorf("orchestrator: no workflow state for session %q", id)
	}

	if patch.WorkflowKind != nil {
		ws.WorkflowKind = *patch.WorkflowKind
	}
	if patch.IdentifiedSources != nil {
		ws.IdentifiedSources = patch.IdentifiedSources
	}
	if patch.AvailableTables != nil {
		ws.AvailableTables = patch.AvailableTables
	}
	if patch.SchemaBundle != nil {
		ws.SchemaBundle = patch.SchemaBundle
	}
	if patch.ExecutionPlan != nil {
		ws.ExecutionPlan = patch.ExecutionPlan
	}
	if len(patch.AppendStepHistory) > 0 {
		ws.StepHistory = append(ws.StepHistory, patch.AppendStepHistory...)
		if syncLegacy {
			ws.ToolExecutionHistory = append(ws.ToolExecutionHistory, patch.AppendStepHistory...)
		}
	}
	if patch.PartialResults != nil {
		for k, v := range patch.PartialResults {
			ws.PartialResults[k] = v
		}
	}
	if patch.FinalResult != nil {
		ws.FinalResult = patch.FinalResult
	}
	if patch.IncrementRetry {
		ws.RetryCount++
	}

	ws.LastUpdateTime = time.Now().UTC()
	return nil
}

// AddStreamingEvent appends an event to id's streaming buffer, dropping the
// oldest entry first once the buffer reaches maxStreamingEvents.
func (s *Store) AddStreamingEvent(id string, ev StreamEvent) error {
	resolved := s.resolve(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.byID[resolved]
	if !ok {
		return fmt.Errorf("orchestrator: no workflow state for session %q", id)
	}
	ws.StreamingBuffer = append(ws.StreamingBuffer, ev)
	if len(ws.StreamingBuffer) > maxStreamingEvents {
		ws.StreamingBuffer = ws.StreamingBuffer[len(ws.StreamingBuffer)-maxStreamingEvents:]
	}
	ws.LastUpdateTime = time.Now().UTC()
	return nil
}

// AddOperationResult appends a scheduler operation result to id's state.
func (s *Store) AddOperationResult(id string, res *scheduler.OpResult) error {
	resolved := s.resolve(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.byID[resolved]
	if !ok {
		return fmt.Errorf("orchestrator: no workflow state for session %q", id)
	}
	ws.OperationResults = append(ws.OperationResults, res)
	ws.LastUpdateTime = time.Now().UTC()
	return nil
}

// RecordError appends an entry to id's error history.
func (s *Store) RecordError(id, nodeID, message string) error {
	resolved := s.resolve(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.byID[resolved]
	if !ok {
		return fmt.Errorf("orchestrator: no workflow state for session %q", id)
	}
	ws.ErrorHistory = append(ws.ErrorHistory, ErrorEntry{Timestamp: time.Now().UTC(), NodeID: nodeID, Message: message})
	ws.LastUpdateTime = time.Now().UTC()
	return nil
}

// Delete removes id's state and any bridge entry pointing at it.
func (s *Store) Delete(id string) {
	resolved := s.resolve(id)

	s.mu.Lock()
	delete(s.byID, resolved)
	s.mu.Unlock()

	s.bridgeMu.Lock()
	if legacy, ok := s.newToLegacy[resolved]; ok {
		delete(s.legacyToNew, legacy)
		delete(s.newToLegacy, resolved)
	}
	s.bridgeMu.Unlock()
}
