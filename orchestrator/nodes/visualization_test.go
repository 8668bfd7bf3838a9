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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisualizationNode_BuildsBarChartForCategoricalAndNumeric(t *testing.T) {
	n := NewVisualizationNode()
	rows := []map[string]interface{}{
		{"region": "west", "revenue": 100.0},
		{"region": "east", "revenue": 200.0},
	}
	spec := n.Build(rows)
	require.NotNil(t, spec)
	assert.Equal(t, "bar", spec.Kind)
	assert.Equal(t, "region", spec.XAxis)
	assert.Equal(t, "revenue", spec.YAxis)
}

func TestVisualizationNode_SkipsWithFewerThanTwoRows(t *testing.T) {
	n := NewVisualizationNode()
	assert.Nil(t, n.Build([]map[string]interface{}{{"region": "west", "revenue": 100.0}}))
	assert.Nil(t, n.Build(nil))
}

func TestVisualizationNode_SkipsWithoutNumericColumn(t *testing.T) {
	n := NewVisualizationNode()
	rows := []map[string]interface{}{
		{"region": "west", "status": "ok"},
		{"region": "east", "status": "ok"},
	}
	assert.Nil(t, n.Build(rows))
}
