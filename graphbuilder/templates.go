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

// template names a named graph shape and how to build its base Nodes before
// any optimization pass runs. Modeled on planning_engine.go's
// DomainTemplate-keyed map: a name, hints for when it applies, and a fixed
// task list — here, a fixed node list instead of a task list.
type template struct {
	Name  string
	Hints string
	Build func(req Request) []*Node
}

var templates = map[string]*template{
	"simple_query": {
		Name:  "simple_query",
		Hints: "A single source, single-hop question: classify, fetch metadata, plan one operation, execute, done.",
		Build: func(req Request) []*Node {
			return []*Node{
				{ID: "classify", Kind: NodeClassification},
				{ID: "metadata", Kind: NodeMetadata, DependsOn: []string{"classify"}},
				{ID: "plan", Kind: NodePlanning, DependsOn: []string{"metadata"}},
				{ID: "execute", Kind: NodeExecution, DependsOn: []string{"plan"}},
				{ID: "visualize", Kind: NodeVisualization, DependsOn: []string{"execute"}},
			}
		},
	},
	"complex_analysis": {
		Name:  "complex_analysis",
		Hints: "Cross-source or multi-hop analysis: same linear shape as simple_query, but the planning and execution nodes are expected to carry a larger operation DAG.",
		Build: func(req Request) []*Node {
			return []*Node{
				{ID: "classify", Kind: NodeClassification},
				{ID: "metadata", Kind: NodeMetadata, DependsOn: []string{"classify"}},
				{ID: "plan", Kind: NodePlanning, DependsOn: []string{"metadata"}},
				{ID: "execute", Kind: NodeExecution, DependsOn: []string{"plan"}},
				{ID: "visualize", Kind: NodeVisualization, DependsOn: []string{"execute"}},
			}
		},
	},
	"parallel_execution": {
		Name:  "parallel_execution",
		Hints: "Independent research across multiple sources that can run concurrently, then merge before visualization (the travel/finance shape in planning_engine.go's domain templates).",
		Build: func(req Request) []*Node {
			nodes := []*Node{
				{ID: "classify", Kind: NodeClassification},
				{ID: "metadata", Kind: NodeMetadata, DependsOn: []string{"classify"}},
				{ID: "plan", Kind: NodePlanning, DependsOn: []string{"metadata"}},
			}
			for i, source := range req.Sources {
				id := "execute_" + source
				if source == "" {
					id = "execute_" + string(rune('a'+i))
				}
				nodes = append(nodes, &Node{ID: id, Kind: NodeExecution, DependsOn: []string{"plan"}})
			}
			mergeDeps := make([]string, 0, len(req.Sources))
			for _, n := range nodes[3:] {
				mergeDeps = append(mergeDeps, n.ID)
			}
			nodes = append(nodes, &Node{ID: "merge", Kind: NodeMerge, DependsOn: mergeDeps})
			nodes = append(nodes, &Node{ID: "visualize", Kind: NodeVisualization, DependsOn: []string{"merge"}})
			return nodes
		},
	},
}
