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
	"time"
)

// StreamEventType is the canonical event-type union from spec.md §4.6/§4.10.
type StreamEventType string

const (
	EventStatus          StreamEventType = "status"
	EventPartialContent  StreamEventType = "partial_content"
	EventContentComplete StreamEventType = "content_complete"
	EventProgress        StreamEventType = "progress"
	EventAnalysisChunk   StreamEventType = "analysis_chunk"
	EventError           StreamEventType = "error"
	EventRoutingDecision StreamEventType = "routing_decision"
	EventNodeStart       StreamEventType = "node_start"
	EventNodeComplete    StreamEventType = "node_complete"
	EventNodeError       StreamEventType = "node_error"
	EventWorkflowStart   StreamEventType = "workflow_start"
	EventWorkflowComplete StreamEventType = "workflow_complete"
	EventWorkflowError   StreamEventType = "workflow_error"
)

// Event is one item on a session's stream.
type Event struct {
	Type      StreamEventType        `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"session_id"`
	NodeID    string                 `json:"node_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
	ChunkIdx  int                    `json:"chunk_index,omitempty"`
	IsFinal   bool                   `json:"is_final,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Runner is the unit of work the Streaming Coordinator wraps: it pushes
// events onto emit as it progresses and returns when the workflow
// finishes (or fails).
type Runner func(ctx context.Context, emit func(Event)) error

// Coordinator is the Streaming Coordinator (C10): one unbounded
// producer-consumer channel per session, grounded on workflow_engine.go's
// executeStepsParallel goroutine+channel+WaitGroup fan-in, generalized into
// a long-lived stream instead of a single barrier-synchronized fan-in.
type Coordinator struct {
	state *Store
}

// NewCoordinator builds a Streaming Coordinator backed by a Workflow State
// store, used to record errors into session history.
func NewCoordinator(state *Store) *Coordinator {
	return &Coordinator{state: state}
}

// StreamExecution runs runner as a concurrent task and returns a channel of
// events: an initial workflow_start, every event runner emits, then a
// terminal workflow_complete or workflow_error. The channel is closed once
// the terminal event has been sent.
func (c *Coordinator) StreamExecution(ctx context.Context, sessionID string, runner Runner) <-chan Event {
	out := make(chan Event)

	go func() {
		defer close(out)

		send := func(ev Event) {
			ev.SessionID = sessionID
			ev.Timestamp = time.Now().UTC()
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}

		send(Event{Type: EventWorkflowStart})

		raw := make(chan Event)
		done := make(chan error, 1)
		go func() {
			done <- runner(ctx, func(ev Event) {
				select {
				case raw <- ev:
				case <-ctx.Done():
				}
			})
			close(raw)
		}()

		for ev := range raw {
			send(ev)
		}

		if err := <-done; err != nil {
			if c.state != nil {
				_ = c.state.RecordError(sessionID, "", err.Error())
			}
			send(Event{Type: EventWorkflowError, Content: err.Error(), IsFinal: true})
			return
		}
		send(Event{Type: EventWorkflowComplete, IsFinal: true})
	}()

	return out
}

// NodeRunner is a single Phase Node's body: it receives state, streams
// chunks (only meaningful when nativeStreaming is true), and returns its
// result preview plus an error.
type NodeRunner func(ctx context.Context, ws *WorkflowState, onChunk func(content string, idx int)) (resultPreview map[string]interface{}, err error)

// WrapNode emits node_start (with a redacted state snapshot), runs node,
// and emits either node_complete or node_error, in that strict order.
// Native-streaming nodes forward each chunk verbatim between node_start and
// node_complete; non-streaming nodes run to completion and then emit a
// single node_complete carrying a result preview.
func (c *Coordinator) WrapNode(ctx context.Context, ws *WorkflowState, nodeID string, nativeStreaming bool, node NodeRunner, emit func(Event)) error {
	emit(Event{
		Type:   EventNodeStart,
		NodeID: nodeID,
		Data:   redactedSnapshot(ws),
	})

	chunkIdx := 0
	onChunk := func(content string, idx int) {
		if !nativeStreaming {
			return
		}
		chunkIdx = idx
		emit(Event{Type: EventPartialContent, NodeID: nodeID, Content: content, ChunkIdx: idx})
	}

	preview, err := node(ctx, ws, onChunk)
	if err != nil {
		if c.state != nil {
			_ = c.state.RecordError(ws.SessionID, nodeID, err.Error())
		}
		emit(Event{Type: EventNodeError, NodeID: nodeID, Content: err.Error()})
		return err
	}

	emit(Event{
		Type:     EventNodeComplete,
		NodeID:   nodeID,
		ChunkIdx: chunkIdx,
		IsFinal:  true,
		Data:     preview,
	})
	return nil
}

// redactedSnapshot produces the small, redacted state view node_start
// events carry: question and the counts a progress UI needs, never raw
// rows, schema content, or credentials.
func redactedSnapshot(ws *WorkflowState) map[string]interface{} {
	if ws == nil {
		return nil
	}
	return map[string]interface{}{
		"session_id":         ws.SessionID,
		"workflow_kind":      ws.WorkflowKind,
		"identified_sources": len(ws.IdentifiedSources),
		"retry_count":        ws.RetryCount,
	}
}
