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

// ChartSpec is the Visualization Node's optional output.
type ChartSpec struct {
	Kind   string   `json:"kind"`
	XAxis  string   `json:"x_axis"`
	YAxis  string   `json:"y_axis"`
	Series []string `json:"series,omitempty"`
}

// VisualizationNode decides whether a chart is meaningful for a result set
// and, if so, emits a chart specification. Skipping this node never
// affects correctness (spec.md §4.11).
type VisualizationNode struct{}

// NewVisualizationNode builds a Visualization Node.
func NewVisualizationNode() *VisualizationNode { return &VisualizationNode{} }

// Build inspects rows and returns a ChartSpec when at least two rows share
// a common numeric-looking column alongside a categorical one; otherwise it
// returns nil, meaning "no chart".
func (n *VisualizationNode) Build(rows []map[string]interface{}) *ChartSpec {
	if len(rows) < 2 {
		return nil
	}

	var categorical, numeric string
	for key, val := range rows[0] {
		switch val.(type) {
		case float64, float32, int, int64:
			if numeric == "" {
				numeric = key
			}
		default:
			if categorical == "" {
				categorical = key
			}
		}
	}

	if categorical == "" || numeric == "" {
		return nil
	}

	return &ChartSpec{
		Kind:  "bar",
		XAxis: categorical,
		YAxis: numeric,
	}
}
