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

	"axonflow/platform/scheduler"
)

func TestSelectPlanStrategy_MultipleKindsForcesCrossDatabase(t *testing.T) {
	got := SelectPlanStrategy("show orders and reviews", map[string]string{"pg1": "relational", "mongo1": "document"})
	assert.Equal(t, PlanCrossDatabase, got)
}

func TestSelectPlanStrategy_DecomposableSingleKindGoesParallel(t *testing.T) {
	got := SelectPlanStrategy("show orders and also show refunds", map[string]string{"pg1": "relational"})
	assert.Equal(t, PlanParallel, got)
}

func TestSelectPlanStrategy_DefaultsToSimple(t *testing.T) {
	got := SelectPlanStrategy("show orders", map[string]string{"pg1": "relational"})
	assert.Equal(t, PlanSimple, got)
}

func TestPlanningNode_CrossDatabaseInsertsKeyTablePreStep(t *testing.T) {
	n := NewPlanningNode()
	bundle := &MetadataBundle{Common: CommonPatterns{CommonTableNames: []string{"customers"}}}

	plan, strategy := n.Plan("join orders and reviews", map[string]string{"pg1": "relational", "mongo1": "document"}, bundle)
	assert.Equal(t, PlanCrossDatabase, strategy)

	var preStep *scheduler.Operation
	var dependents int
	for _, op := range plan.Operations {
		if op.ID == "keytable-prestep" {
			preStep = op
			continue
		}
		require.Contains(t, op.DependsOn, "keytable-prestep")
		dependents++
	}
	require.NotNil(t, preStep)
	assert.Equal(t, 2, dependents)
}

func TestPlanningNode_SimpleStrategyHasNoDependencies(t *testing.T) {
	n := NewPlanningNode()
	plan, strategy := n.Plan("show orders", map[string]string{"pg1": "relational"}, nil)
	assert.Equal(t, PlanSimple, strategy)
	require.Len(t, plan.Operations, 1)
	assert.Empty(t, plan.Operations[0].DependsOn)
}

func TestComplexityFor_AggregateKeywordPicksAggregation(t *testing.T) {
	c := complexityFor("aggregate revenue by month", PlanSimple)
	assert.Equal(t, scheduler.ComplexityAggregation, c)
}
