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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistry_UpsertGetSource(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	ds, err := r.UpsertSource(ctx, "pg1", "postgres://host/db", "relational", 1)
	require.NoError(t, err)
	require.NotNil(t, ds)

	got, err := r.GetSource(ctx, "pg1")
	require.NoError(t, err)
	assert.Equal(t, ds.URI, got.URI)
	assert.Equal(t, "relational", got.Kind)
}

func TestMemoryRegistry_UpsertSourceIsConflictOnKey(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	_, err := r.UpsertSource(ctx, "pg1", "postgres://old", "relational", 1)
	require.NoError(t, err)
	_, err = r.UpsertSource(ctx, "pg1", "postgres://new", "relational", 2)
	require.NoError(t, err)

	got, err := r.GetSource(ctx, "pg1")
	require.NoError(t, err)
	assert.Equal(t, "postgres://new", got.URI)
	assert.Equal(t, 2, got.Version)
}

func TestMemoryRegistry_GetSourceMissingReturnsNilNil(t *testing.T) {
	r := NewMemoryRegistry()
	got, err := r.GetSource(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryRegistry_DeleteSourceCascadesTables(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	_, err := r.UpsertSource(ctx, "pg1", "postgres://host/db", "relational", 1)
	require.NoError(t, err)
	_, err = r.UpsertTable(ctx, "pg1", "customers", map[string]interface{}{"id": "int"}, 1)
	require.NoError(t, err)

	ok, err := r.DeleteSource(ctx, "pg1")
	require.NoError(t, err)
	assert.True(t, ok)

	tables, err := r.ListTables(ctx, "pg1")
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestMemoryRegistry_ListTablesOrderedByName(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	_, _ = r.UpsertSource(ctx, "pg1", "postgres://host", "relational", 1)
	_, _ = r.UpsertTable(ctx, "pg1", "zeta", nil, 1)
	_, _ = r.UpsertTable(ctx, "pg1", "alpha", nil, 1)

	tables, err := r.ListTables(ctx, "pg1")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "alpha", tables[0].TableName)
	assert.Equal(t, "zeta", tables[1].TableName)
}

func TestMemoryRegistry_SetGetOntology(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()

	om, err := r.SetOntology(ctx, "customer", []string{"pg1.customers", "mongo1.users"})
	require.NoError(t, err)
	require.NotNil(t, om)

	got, err := r.GetOntology(ctx, "customer")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pg1.customers", "mongo1.users"}, got.SourceTables)
}

func TestMemoryRegistry_SearchTablesByNameCaseInsensitiveSubstring(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	_, _ = r.UpsertSource(ctx, "pg1", "postgres://host", "relational", 1)
	_, _ = r.UpsertTable(ctx, "pg1", "Customer_Orders", nil, 1)
	_, _ = r.UpsertTable(ctx, "pg1", "invoices", nil, 1)

	results, err := r.SearchTablesByName(ctx, "order")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Customer_Orders", results[0].TableName)
}

func TestMemoryRegistry_SearchSchemaContent(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	_, _ = r.UpsertSource(ctx, "pg1", "postgres://host", "relational", 1)
	_, _ = r.UpsertTable(ctx, "pg1", "customers", map[string]interface{}{
		"columns": []interface{}{"id", "email_address"},
	}, 1)
	_, _ = r.UpsertTable(ctx, "pg1", "products", map[string]interface{}{
		"columns": []interface{}{"sku", "price"},
	}, 1)

	results, err := r.SearchSchemaContent(ctx, "email")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "customers", results[0].TableName)
}

func TestMemoryRegistry_DeleteTable(t *testing.T) {
	r := NewMemoryRegistry()
	ctx := context.Background()
	_, _ = r.UpsertSource(ctx, "pg1", "postgres://host", "relational", 1)
	_, _ = r.UpsertTable(ctx, "pg1", "customers", nil, 1)

	ok, err := r.DeleteTable(ctx, "pg1", "customers")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.DeleteTable(ctx, "pg1", "customers")
	require.NoError(t, err)
	assert.False(t, ok)
}
