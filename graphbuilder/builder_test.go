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

package graphbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SingleSourceSelectsSimpleQuery(t *testing.T) {
	b := New()
	g := b.Build(Request{Question: "what is the current inventory count", Sources: []string{"pg1"}})
	assert.Equal(t, "simple_query", g.Template)
	assert.Len(t, g.Nodes, 5)
}

func TestBuild_MultipleSourcesSelectsParallelExecution(t *testing.T) {
	b := New()
	g := b.Build(Request{Question: "show orders and reviews", Sources: []string{"pg1", "mongo1"}})
	assert.Equal(t, "parallel_execution", g.Template)

	var execCount int
	var mergeCount int
	for _, n := range g.Nodes {
		if n.Kind == NodeExecution {
			execCount++
		}
		if n.Kind == NodeMerge {
			mergeCount++
		}
	}
	assert.Equal(t, 2, execCount)
	assert.Equal(t, 1, mergeCount)
}

func TestBuild_ComplexKeywordSelectsComplexAnalysis(t *testing.T) {
	b := New()
	g := b.Build(Request{Question: "compare revenue trends across regions", Sources: []string{"pg1"}})
	assert.Equal(t, "complex_analysis", g.Template)
}

func TestBuild_NoSourcesFallsBackToCustom(t *testing.T) {
	b := New()
	g := b.Build(Request{Question: "hello"})
	assert.Equal(t, "custom", g.Template)
	require.NotEmpty(t, g.Nodes)
}

func TestBuild_StreamingAttachedToEveryNodeLast(t *testing.T) {
	b := New()
	g := b.Build(Request{
		Question:        "compare inventory across sources",
		Sources:         []string{"pg1", "mongo1"},
		PerformanceReqs: PerformanceRequirements{StreamingFlag: true},
	})
	for _, n := range g.Nodes {
		assert.True(t, n.StreamingEnabled, n.ID)
	}
}

func TestBuild_ReduceMemoryHintOnExecutionNodesOnly(t *testing.T) {
	b := New()
	g := b.Build(Request{
		Question:        "fetch rows",
		Sources:         []string{"pg1"},
		PerformanceReqs: PerformanceRequirements{ReduceMemory: true},
	})
	for _, n := range g.Nodes {
		if n.Kind == NodeExecution {
			assert.True(t, n.ReduceMemoryHint)
		} else {
			assert.False(t, n.ReduceMemoryHint)
		}
	}
}

func TestBuild_ParallelSplitOptimizationSplitsSingleExecutionNode(t *testing.T) {
	b := New()
	g := b.Build(Request{
		Question:        "analyze this single table in depth",
		Sources:         []string{"pg1"},
		PerformanceReqs: PerformanceRequirements{ParallelismCap: 3},
	})
	// complex_analysis is selected (keyword "analyze", exactly one source),
	// starting with one execution node, then split into 3 siblings + a merge
	// by the parallel-split optimization pass.
	var execCount, mergeCount int
	for _, n := range g.Nodes {
		if n.Kind == NodeExecution {
			execCount++
		}
		if n.Kind == NodeMerge {
			mergeCount++
		}
	}
	assert.Equal(t, 3, execCount)
	assert.Equal(t, 1, mergeCount)
}

func TestBuild_NodesDependOnValidIDs(t *testing.T) {
	b := New()
	g := b.Build(Request{Question: "compare things", Sources: []string{"a", "b", "c"}})
	ids := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	for _, n := range g.Nodes {
		for _, dep := range n.DependsOn {
			assert.True(t, ids[dep], "node %s depends on unknown id %s", n.ID, dep)
		}
	}
}
