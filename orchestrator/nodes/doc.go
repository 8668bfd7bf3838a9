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

// Package nodes implements the five Phase Nodes (C11): Classification,
// Metadata, Planning, Execution, and Visualization. Each node receives a
// *orchestrator.WorkflowState and produces an updated one; none may leave
// partial mutations behind on error.
package nodes
