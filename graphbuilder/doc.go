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

// Package graphbuilder implements the Dynamic Graph Builder (C14): given a
// question, its identified sources, and performance requirements, it
// selects a named template or synthesizes a custom execution graph, then
// runs optimization passes (parallel splitting, memory-reduction hints)
// before attaching the streaming-enabled flag every node inherits.
package graphbuilder
