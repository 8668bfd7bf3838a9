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

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndGetBySessionID(t *testing.T) {
	s := NewStore()
	ws := s.CreateGraphSession("sess-1", "", "how many orders today", "data_analysis")
	require.NotNil(t, ws)

	got, ok := s.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "how many orders today", got.Question)
}

func TestStore_GetByLegacySessionIDBridges(t *testing.T) {
	s := NewStore()
	s.CreateGraphSession("sess-1", "legacy-9", "q", "data_analysis")

	got, ok := s.Get("legacy-9")
	require.True(t, ok)
	assert.Equal(t, "sess-1", got.SessionID)
}

func TestStore_GetUnknownReturnsFalse(t *testing.T) {
	s := NewStore()
	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestStore_UpdateAppliesPatchAndRefreshesTimestamp(t *testing.T) {
	s := NewStore()
	ws := s.CreateGraphSession("sess-1", "", "q", "data_analysis")
	before := ws.LastUpdateTime

	kind := "hybrid"
	err := s.Update("sess-1", Patch{
		WorkflowKind:      &kind,
		IdentifiedSources: []string{"pg1", "mongo1"},
		PartialResults:    map[string]interface{}{"rows": 5},
	}, true)
	require.NoError(t, err)

	got, _ := s.Get("sess-1")
	assert.Equal(t, "hybrid", got.WorkflowKind)
	assert.Equal(t, []string{"pg1", "mongo1"}, got.IdentifiedSources)
	assert.Equal(t, 5, got.PartialResults["rows"])
	assert.True(t, !got.LastUpdateTime.Before(before))
}

func TestStore_UpdateUnknownSessionErrors(t *testing.T) {
	s := NewStore()
	err := s.Update("missing", Patch{}, true)
	assert.Error(t, err)
}

func TestStore_UpdateSyncsLegacyStepHistory(t *testing.T) {
	s := NewStore()
	s.CreateGraphSession("sess-1", "legacy-9", "q", "data_analysis")

	err := s.Update("sess-1", Patch{
		AppendStepHistory: []StepExecution{{Name: "plan", Status: "completed"}},
	}, true)
	require.NoError(t, err)

	got, _ := s.Get("legacy-9")
	require.Len(t, got.StepHistory, 1)
	require.Len(t, got.ToolExecutionHistory, 1)
	assert.Equal(t, "plan", got.StepHistory[0].Name)
}

func TestStore_StreamingBufferDropsOldestBeyondCap(t *testing.T) {
	s := NewStore()
	s.CreateGraphSession("sess-1", "", "q", "data_analysis")

	for i := 0; i < maxStreamingEvents+10; i++ {
		require.NoError(t, s.AddStreamingEvent("sess-1", StreamEvent{Type: "node_start", NodeID: "n"}))
	}

	got, _ := s.Get("sess-1")
	assert.Len(t, got.StreamingBuffer, maxStreamingEvents)
}

func TestStore_RecordErrorAppendsEntry(t *testing.T) {
	s := NewStore()
	s.CreateGraphSession("sess-1", "", "q", "data_analysis")

	require.NoError(t, s.RecordError("sess-1", "execution", "adapter timeout"))

	got, _ := s.Get("sess-1")
	require.Len(t, got.ErrorHistory, 1)
	assert.Equal(t, "adapter timeout", got.ErrorHistory[0].Message)
}

func TestStore_DeleteRemovesStateAndBridge(t *testing.T) {
	s := NewStore()
	s.CreateGraphSession("sess-1", "legacy-9", "q", "data_analysis")

	s.Delete("sess-1")

	_, ok := s.Get("sess-1")
	assert.False(t, ok)
	_, ok = s.Get("legacy-9")
	assert.False(t, ok)
}
