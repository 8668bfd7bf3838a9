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
	"fmt"
	"regexp"
	"strings"

	"axonflow/platform/scheduler"
)

// PlanStrategy is one of the three planning strategies spec.md §4.11 names.
type PlanStrategy string

const (
	PlanSimple        PlanStrategy = "simple"
	PlanParallel      PlanStrategy = "parallel"
	PlanCrossDatabase PlanStrategy = "cross_database"
)

var decomposableQuestionPattern = regexp.MustCompile(`(?i)\b(and also|as well as|plus|in addition)\b`)

// SelectPlanStrategy applies spec.md §4.11's rule: more than one distinct
// source kind forces cross_database; a single kind with an
// independently-decomposable question goes parallel; otherwise simple.
func SelectPlanStrategy(question string, sourceKinds map[string]string) PlanStrategy {
	distinctKinds := make(map[string]struct{}, len(sourceKinds))
	for _, kind := range sourceKinds {
		distinctKinds[kind] = struct{}{}
	}
	if len(distinctKinds) > 1 {
		return PlanCrossDatabase
	}
	if decomposableQuestionPattern.MatchString(question) {
		return PlanParallel
	}
	return PlanSimple
}

// PlanningNode turns identified sources plus a metadata bundle into an
// Operation DAG for the Execution Scheduler. The DAG shape itself (a
// depends_on adjacency, as opposed to a fixed step list) has no direct
// teacher analog; it exists because scheduler.Plan requires it.
type PlanningNode struct{}

// NewPlanningNode builds a Planning Node.
func NewPlanningNode() *PlanningNode { return &PlanningNode{} }

// Plan builds a scheduler.Plan for question over sourceKinds (source id ->
// kind). When the chosen strategy is cross_database and bundle names a
// common table, a single key-table pre-step operation is inserted that
// every per-source operation depends on, per spec.md §4.11's "optimizations
// may add a key-table pre-step".
func (n *PlanningNode) Plan(question string, sourceKinds map[string]string, bundle *MetadataBundle) (*scheduler.Plan, PlanStrategy) {
	strategy := SelectPlanStrategy(question, sourceKinds)
	complexity := complexityFor(question, strategy)

	var ops []*scheduler.Operation
	var preStepID string

	if strategy == PlanCrossDatabase && bundle != nil && len(bundle.Common.CommonTableNames) > 0 {
		preStepID = "keytable-prestep"
		ops = append(ops, &scheduler.Operation{
			ID:         preStepID,
			SourceKind: "relational",
			Complexity: scheduler.ComplexitySimpleSelect,
		})
	}

	i := 0
	for sourceID, kind := range sourceKinds {
		i++
		op := &scheduler.Operation{
			ID:         fmt.Sprintf("op-%d-%s", i, sourceID),
			SourceID:   sourceID,
			SourceKind: kind,
			Complexity: complexity,
		}
		if preStepID != "" {
			op.DependsOn = []string{preStepID}
		}
		ops = append(ops, op)
	}

	return &scheduler.Plan{Operations: ops}, strategy
}

func complexityFor(question string, strategy PlanStrategy) scheduler.Complexity {
	lowerQ := strings.ToLower(question)
	switch {
	case strategy == PlanCrossDatabase:
		return scheduler.ComplexityCrossJoin
	case strings.Contains(lowerQ, "aggregate") || strings.Contains(lowerQ, "sum") || strings.Contains(lowerQ, "average"):
		return scheduler.ComplexityAggregation
	case strings.Contains(lowerQ, "similar") || strings.Contains(lowerQ, "vector") || strings.Contains(lowerQ, "embedding"):
		return scheduler.ComplexityVectorSearch
	default:
		return scheduler.ComplexitySimpleSelect
	}
}
