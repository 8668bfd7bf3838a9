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

package registry

import (
	"context"
	"time"
)

// DataSource is a registered, addressable data source (spec.md §4.1, §6).
type DataSource struct {
	ID        string    `json:"id"`
	URI       string    `json:"uri"`
	Kind      string    `json:"kind"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableMeta is a single table/collection's schema within a DataSource.
type TableMeta struct {
	SourceID   string          `json:"source_id"`
	TableName  string          `json:"table_name"`
	SchemaJSON map[string]interface{} `json:"schema_json"`
	Version    int             `json:"version"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// OntologyMapping records which tables (possibly across sources) back a
// named business entity, e.g. "customer" -> ["pg1.customers", "mongo1.users"].
type OntologyMapping struct {
	EntityName    string   `json:"entity_name"`
	SourceTables  []string `json:"source_tables"`
}

// Registry is the Schema Registry contract (C1). Every method fails with a
// *StorageError on backing-store failure and otherwise reports not-found
// via a nil result with a nil error, matching the rest of this tree's
// get-returns-nil-on-miss convention (see auth.Store).
type Registry interface {
	ListSources(ctx context.Context) ([]*DataSource, error)
	GetSource(ctx context.Context, id string) (*DataSource, error)
	UpsertSource(ctx context.Context, id, uri, kind string, version int) (*DataSource, error)
	DeleteSource(ctx context.Context, id string) (bool, error)

	ListTables(ctx context.Context, sourceID string) ([]*TableMeta, error)
	UpsertTable(ctx context.Context, sourceID, name string, schema map[string]interface{}, version int) (*TableMeta, error)
	GetTable(ctx context.Context, sourceID, name string) (*TableMeta, error)
	DeleteTable(ctx context.Context, sourceID, name string) (bool, error)

	SetOntology(ctx context.Context, entity string, tables []string) (*OntologyMapping, error)
	GetOntology(ctx context.Context, entity string) (*OntologyMapping, error)

	SearchTablesByName(ctx context.Context, pattern string) ([]*TableMeta, error)
	SearchSchemaContent(ctx context.Context, pattern string) ([]*TableMeta, error)

	Close() error
}
