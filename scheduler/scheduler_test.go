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

package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axonflow/platform/connectors/base"
)

func TestBuildBatches_EmptyPlan(t *testing.T) {
	s := New()
	_, err := s.BuildBatches(&Plan{})
	require.Error(t, err)
	var pe *PlanError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "empty_plan", pe.Reason)
}

func TestBuildBatches_UnknownDependency(t *testing.T) {
	s := New()
	plan := &Plan{Operations: []*Operation{
		{ID: "a", SourceKind: "relational", DependsOn: []string{"ghost"}},
	}}
	_, err := s.BuildBatches(plan)
	require.Error(t, err)
	var pe *PlanError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "unknown_dependency", pe.Reason)
}

func TestBuildBatches_Cycle(t *testing.T) {
	s := New()
	plan := &Plan{Operations: []*Operation{
		{ID: "a", SourceKind: "relational", DependsOn: []string{"b"}},
		{ID: "b", SourceKind: "relational", DependsOn: []string{"a"}},
	}}
	_, err := s.BuildBatches(plan)
	require.Error(t, err)
	var pe *PlanError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "cycle", pe.Reason)
}

func TestBuildBatches_DependencyOrdering(t *testing.T) {
	s := New()
	plan := &Plan{Operations: []*Operation{
		{ID: "a", SourceKind: "relational"},
		{ID: "b", SourceKind: "relational", DependsOn: []string{"a"}},
	}}
	batches, err := s.BuildBatches(plan)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "a", batches[0][0].ID)
	assert.Equal(t, "b", batches[1][0].ID)
}

func TestBuildBatches_RespectsPerSourceLimitAndWeightCap(t *testing.T) {
	s := New(WithSourceLimit("relational", 8), WithWeightCap(20), WithGlobalCap(16))
	ops := make([]*Operation, 0, 20)
	for i := 0; i < 20; i++ {
		ops = append(ops, &Operation{ID: string(rune('a' + i)), SourceKind: "relational", Complexity: ComplexitySimpleSelect})
	}
	batches, err := s.BuildBatches(&Plan{Operations: ops})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(batches), 3) // 20 ops / 8-per-batch limit -> at least 3 batches
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 8)
	}
}

func TestBuildBatches_ProgressGuaranteeForOversizedOp(t *testing.T) {
	s := New(WithWeightCap(1))
	plan := &Plan{Operations: []*Operation{
		{ID: "a", SourceKind: "relational", Complexity: ComplexityComplexAnalytics}, // weight 5 > cap 1
	}}
	batches, err := s.BuildBatches(plan)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 1)
}

func TestExecute_ConcurrencyNeverExceedsSourceLimit(t *testing.T) {
	s := New(WithSourceLimit("relational", 3), WithGlobalCap(16))
	ops := make([]*Operation, 0, 20)
	for i := 0; i < 20; i++ {
		ops = append(ops, &Operation{ID: string(rune('a' + i)), SourceKind: "relational"})
	}

	var current int32
	var peak int32
	var mu sync.Mutex

	call := func(ctx context.Context, op *Operation) (interface{}, error) {
		n := atomic.AddInt32(&current, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return nil, nil
	}

	results, err := s.Execute(context.Background(), &Plan{Operations: ops}, call, nil)
	require.NoError(t, err)
	assert.Len(t, results, 20)
	assert.LessOrEqual(t, int(peak), 3)
}

func TestExecute_NonRetryableFailureSkipsDependents(t *testing.T) {
	s := New()
	plan := &Plan{Operations: []*Operation{
		{ID: "a", SourceKind: "relational"},
		{ID: "b", SourceKind: "relational", DependsOn: []string{"a"}},
		{ID: "c", SourceKind: "relational", DependsOn: []string{"b"}},
	}}

	call := func(ctx context.Context, op *Operation) (interface{}, error) {
		if op.ID == "a" {
			return nil, base.NewAdapterError("pg", "Query", base.AdapterErrBadRequest, "bad query", nil)
		}
		return "ok", nil
	}

	results, err := s.Execute(context.Background(), plan, call, nil)
	require.NoError(t, err)

	byID := make(map[string]*OpResult, len(results))
	for _, r := range results {
		byID[r.OperationID] = r
	}
	assert.Equal(t, OpFailed, byID["a"].Status)
	assert.Equal(t, OpSkippedDueToDependency, byID["b"].Status)
	assert.Equal(t, OpSkippedDueToDependency, byID["c"].Status)
}

func TestExecute_RetryableFailureIsRetriedThenSucceeds(t *testing.T) {
	s := New()
	plan := &Plan{Operations: []*Operation{{ID: "a", SourceKind: "relational"}}}

	var attempts int32
	call := func(ctx context.Context, op *Operation) (interface{}, error) {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return nil, base.NewAdapterError("pg", "Query", base.AdapterErrTimeout, "timed out", nil)
		}
		return "ok", nil
	}

	results, err := s.Execute(context.Background(), plan, call, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, OpSucceeded, results[0].Status)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(2))
}

func TestComplexity_Weight(t *testing.T) {
	assert.Equal(t, 1, ComplexitySimpleSelect.Weight())
	assert.Equal(t, 5, ComplexityComplexAnalytics.Weight())
	assert.Equal(t, 1, Complexity("unknown").Weight())
}
