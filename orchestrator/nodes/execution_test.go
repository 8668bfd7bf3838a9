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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/platform/connectors/base"
	"axonflow/platform/scheduler"
)

func TestExecutionNode_RunDispatchesThroughScheduler(t *testing.T) {
	pg1 := &fakeAdapter{name: "pg1"}
	sched := scheduler.New()
	n := NewExecutionNode(map[string]base.Adapter{"pg1": pg1}, sched)

	plan := &scheduler.Plan{Operations: []*scheduler.Operation{
		{ID: "op-1", SourceID: "pg1", SourceKind: "relational", Complexity: scheduler.ComplexitySimpleSelect},
	}}

	results, err := n.Run(context.Background(), plan, "select * from orders", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, scheduler.OpSucceeded, results[0].Status)
}

func TestExecutionNode_UnknownAdapterFails(t *testing.T) {
	sched := scheduler.New()
	n := NewExecutionNode(map[string]base.Adapter{}, sched)

	plan := &scheduler.Plan{Operations: []*scheduler.Operation{
		{ID: "op-1", SourceID: "missing", SourceKind: "relational", Complexity: scheduler.ComplexitySimpleSelect},
	}}

	results, err := n.Run(context.Background(), plan, "select 1", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, scheduler.OpFailed, results[0].Status)
}
