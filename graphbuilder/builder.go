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
	"strconv"
	"strings"
)

// complexAnalysisMarkers are substrings in the question that suggest a
// multi-hop or cross-source analysis rather than a single lookup, mirroring
// the keyword-driven heuristic fallback used throughout this tree when no
// LLM call is warranted (see orchestrator's trivial classifier).
var complexAnalysisMarkers = []string{"compare", "analyze", "correlation", "trend", "why", "across"}

// Builder assembles a Graph for a Request: select or synthesize a template,
// run optimization passes, then attach streaming last.
type Builder struct{}

// New creates a Dynamic Graph Builder. It is stateless; templates are
// package-level since they depend only on the request, never on prior state.
func New() *Builder { return &Builder{} }

// Build selects a template (or synthesizes a custom shape), applies
// optimization passes, and attaches the streaming-enabled flag to every
// node last, per spec.md §4.14.
func (b *Builder) Build(req Request) *Graph {
	name, nodes := b.selectTemplate(req)
	g := &Graph{Template: name, Nodes: nodes}

	b.optimizeParallelSplit(g, req)
	b.optimizeReduceMemory(g, req)
	b.attachStreaming(g, req)

	return g
}

// selectTemplate picks simple_query, complex_analysis, or parallel_execution
// by source count and question content; no combination of those signals
// synthesizes a one-off custom graph from the same node vocabulary.
func (b *Builder) selectTemplate(req Request) (string, []*Node) {
	switch {
	case len(req.Sources) > 1:
		return "parallel_execution", templates["parallel_execution"].Build(req)
	case looksComplex(req.Question):
		return "complex_analysis", templates["complex_analysis"].Build(req)
	case len(req.Sources) == 1:
		return "simple_query", templates["simple_query"].Build(req)
	default:
		return "custom", synthesizeCustomGraph(req)
	}
}

func looksComplex(question string) bool {
	lower := strings.ToLower(question)
	for _, marker := range complexAnalysisMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// synthesizeCustomGraph handles the no-sources-identified-yet case: the
// graph still needs a classification+metadata pass to discover sources
// before planning can run, so it falls back to the simple_query shape.
func synthesizeCustomGraph(req Request) []*Node {
	return templates["simple_query"].Build(req)
}

// optimizeParallelSplit splits a single execution node into parallel
// siblings plus a merge node when the caller raised the parallelism cap
// above 1 but the selected template produced only one execution node
// (e.g. complex_analysis over what turns out to be several tables).
func (b *Builder) optimizeParallelSplit(g *Graph, req Request) {
	if req.PerformanceReqs.ParallelismCap <= 1 {
		return
	}

	var execNodes []*Node
	var execIdx []int
	for i, n := range g.Nodes {
		if n.Kind == NodeExecution {
			execNodes = append(execNodes, n)
			execIdx = append(execIdx, i)
		}
	}
	if len(execNodes) != 1 {
		return
	}

	original := execNodes[0]
	splitN := req.PerformanceReqs.ParallelismCap
	if splitN < 2 {
		return
	}

	siblings := make([]*Node, 0, splitN)
	for i := 0; i < splitN; i++ {
		siblings = append(siblings, &Node{
			ID:        original.ID + "_split_" + strconv.Itoa(i),
			Kind:      NodeExecution,
			DependsOn: append([]string(nil), original.DependsOn...),
		})
	}
	merge := &Node{ID: original.ID + "_merge", Kind: NodeMerge, DependsOn: siblingIDs(siblings)}

	// Replace the original execution node with siblings + merge, rewiring
	// whatever depended on it to depend on the merge node instead.
	newNodes := make([]*Node, 0, len(g.Nodes)+cap)
	for i, n := range g.Nodes {
		if i == execIdx[0] {
			newNodes = append(newNodes, siblings...)
			newNodes = append(newNodes, merge)
			continue
		}
		newNodes = append(newNodes, n)
	}
	for _, n := range newNodes {
		for i, dep := range n.DependsOn {
			if dep == original.ID {
				n.DependsOn[i] = merge.ID
			}
		}
	}
	g.Nodes = newNodes
}

// optimizeReduceMemory attaches a "reduce memory" hint to every execution
// node when the caller asked for it, so the scheduler can favor smaller
// batch weight caps or streaming-through-disk over in-memory aggregation.
func (b *Builder) optimizeReduceMemory(g *Graph, req Request) {
	if !req.PerformanceReqs.ReduceMemory {
		return
	}
	for _, n := range g.Nodes {
		if n.Kind == NodeExecution {
			n.ReduceMemoryHint = true
		}
	}
}

// attachStreaming is always the last pass: every node inherits the
// request's streaming flag, per spec.md §4.14.
func (b *Builder) attachStreaming(g *Graph, req Request) {
	for _, n := range g.Nodes {
		n.StreamingEnabled = req.PerformanceReqs.StreamingFlag
	}
}

func siblingIDs(nodes []*Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
