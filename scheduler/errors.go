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

import "fmt"

// PlanError is raised before any adapter call is made: a cycle in the
// dependency graph, a reference to an unknown operation, or an empty plan
// (spec.md §7).
type PlanError struct {
	Reason string
	Detail string
}

func (e *PlanError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("scheduler: plan error (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("scheduler: plan error: %s", e.Reason)
}

func newPlanError(reason, detail string) *PlanError {
	return &PlanError{Reason: reason, Detail: detail}
}
