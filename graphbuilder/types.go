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

// NodeKind names a phase node type, matching the five Phase Nodes (C11).
type NodeKind string

const (
	NodeClassification NodeKind = "classification"
	NodeMetadata       NodeKind = "metadata"
	NodePlanning       NodeKind = "planning"
	NodeExecution      NodeKind = "execution"
	NodeVisualization  NodeKind = "visualization"
	NodeMerge          NodeKind = "merge"
)

// Node is one node of the assembled execution graph.
type Node struct {
	ID                string
	Kind              NodeKind
	DependsOn         []string
	ReduceMemoryHint  bool
	StreamingEnabled  bool
}

// Graph is the assembled, optimized, streaming-tagged execution graph
// handed to the orchestrator for the phase-node walk.
type Graph struct {
	Template string // simple_query | complex_analysis | parallel_execution | custom
	Nodes    []*Node
}

// Request carries everything the builder needs to select or synthesize a
// graph, per spec.md §4.14's (question, sources, context, perf_reqs) input.
type Request struct {
	Question         string
	Sources          []string
	Context          map[string]interface{}
	PerformanceReqs  PerformanceRequirements
}

// PerformanceRequirements names the optimization hints a caller may set,
// analogous to Workflow State's "user preferences" (parallelism cap,
// streaming flag, auto-optimize flag) from spec.md §3.
type PerformanceRequirements struct {
	ParallelismCap int
	StreamingFlag  bool
	ReduceMemory   bool
}
