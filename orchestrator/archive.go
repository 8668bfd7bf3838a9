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
	"context"
	"encoding/json"
	"fmt"

	"axonflow/platform/connectors/base"
)

// Archiver uploads a finalized session's aggregator artifact to durable
// blob storage (spec.md §11). It is implemented by wrapping any of the
// existing blob-store connectors (S3, GCS, Azure Blob) behind the same
// base.Connector contract every data-source adapter already uses.
type Archiver struct {
	connector base.Connector
	bucket    string
}

// NewArchiver builds an Archiver around an already-Connect()-ed blob-store
// connector (s3.S3Connector, gcs.GCSConnector, or azureblob's equivalent).
func NewArchiver(connector base.Connector, bucket string) *Archiver {
	return &Archiver{connector: connector, bucket: bucket}
}

// ArchiveSession marshals ur to JSON and uploads it as
// "<sessionID>/aggregator.json" via the underlying connector's put_object
// command, matching the action dispatch every blob-store connector's
// Execute already implements.
func (a *Archiver) ArchiveSession(ctx context.Context, sessionID string, ur UnifiedResult) (*base.CommandResult, error) {
	body, err := json.Marshal(ur)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: marshal unified result for archive: %w", err)
	}

	key := fmt.Sprintf("%s/aggregator.json", sessionID)
	result, err := a.connector.Execute(ctx, &base.Command{
		Action: "put_object",
		Parameters: map[string]interface{}{
			"bucket":       a.bucket,
			"key":          key,
			"content":      string(body),
			"content_type": "application/json",
			"metadata": map[string]interface{}{
				"session_id": sessionID,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: archive session %q: %w", sessionID, err)
	}
	return result, nil
}
