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

package nodes

import (
	"context"
	"fmt"

	"axonflow/platform/connectors/base"
	"axonflow/platform/scheduler"
)

// ExecutionNode delegates Operation dispatch to the Execution Scheduler
// (C12), resolving each operation's adapter from its SourceID and running
// a default targeted query built from the operation's metadata. See
// spec.md §4.12 for the scheduler's own batching and retry semantics.
type ExecutionNode struct {
	adapters  map[string]base.Adapter // source id -> adapter
	scheduler *scheduler.Scheduler
}

// NewExecutionNode builds an Execution Node over the given source adapters
// and scheduler.
func NewExecutionNode(adapters map[string]base.Adapter, sched *scheduler.Scheduler) *ExecutionNode {
	return &ExecutionNode{adapters: adapters, scheduler: sched}
}

// Run executes plan and returns one scheduler.OpResult per operation.
func (n *ExecutionNode) Run(ctx context.Context, plan *scheduler.Plan, statement string, emit func(scheduler.Event)) ([]*scheduler.OpResult, error) {
	call := func(ctx context.Context, op *scheduler.Operation) (interface{}, error) {
		adapter, ok := n.adapters[op.SourceID]
		if !ok {
			return nil, fmt.Errorf("nodes: no adapter registered for source %q", op.SourceID)
		}
		return adapter.RunTargeted(ctx, &base.Query{Statement: statement}, 0)
	}

	if emit == nil {
		emit = func(scheduler.Event) {}
	}
	return n.scheduler.Execute(ctx, plan, call, emit)
}
