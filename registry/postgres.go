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
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRegistry is the relational Schema Registry backend. Connection
// setup retries with backoff the same way connectors/registry's storage
// does, since both sit behind the same Docker-DNS-initialization window at
// process start.
type PostgresRegistry struct {
	db     *sql.DB
	logger *log.Logger
}

// NewPostgresRegistry opens (and retries opening) a connection to dbURL and
// ensures the registry schema exists.
func NewPostgresRegistry(dbURL string) (*PostgresRegistry, error) {
	maxRetries := 5
	var db *sql.DB
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("postgres", dbURL)
		if err == nil {
			if err = db.Ping(); err == nil {
				log.Printf("[SchemaRegistry] connected to database (attempt %d/%d)", attempt, maxRetries)
				break
			}
		}

		if attempt < maxRetries {
			backoff := time.Duration(attempt*2) * time.Second
			log.Printf("[SchemaRegistry] database connection failed (attempt %d/%d): %v", attempt, maxRetries, err)
			log.Printf("[SchemaRegistry] retrying in %v", backoff)
			time.Sleep(backoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("registry: connect to database after %d attempts: %w", maxRetries, err)
	}

	r := &PostgresRegistry{
		db:     db,
		logger: log.New(log.Writer(), "[SchemaRegistry] ", log.LstdFlags),
	}
	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("registry: init schema: %w", err)
	}
	r.logger.Println("schema registry initialized")
	return r, nil
}

func (r *PostgresRegistry) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS data_sources (
		id VARCHAR(255) PRIMARY KEY,
		uri TEXT NOT NULL,
		kind VARCHAR(64) NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS table_meta (
		source_id VARCHAR(255) NOT NULL REFERENCES data_sources(id) ON DELETE CASCADE,
		table_name VARCHAR(255) NOT NULL,
		schema_json JSONB NOT NULL DEFAULT '{}'::jsonb,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		PRIMARY KEY (source_id, table_name)
	);

	CREATE TABLE IF NOT EXISTS ontology_mapping (
		entity_name VARCHAR(255) PRIMARY KEY,
		source_tables_json JSONB NOT NULL DEFAULT '[]'::jsonb
	);

	CREATE INDEX IF NOT EXISTS idx_table_meta_name ON table_meta(table_name);
	CREATE INDEX IF NOT EXISTS idx_data_sources_kind ON data_sources(kind);
	`
	_, err := r.db.Exec(query)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ListSources returns every registered data source, ordered by id.
func (r *PostgresRegistry) ListSources(ctx context.Context) ([]*DataSource, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, uri, kind, version, updated_at FROM data_sources ORDER BY id`)
	if err != nil {
		return nil, newStorageError("ListSources", "query failed", err)
	}
	defer rows.Close()

	var out []*DataSource
	for rows.Next() {
		ds := &DataSource{}
		if err := rows.Scan(&ds.ID, &ds.URI, &ds.Kind, &ds.Version, &ds.UpdatedAt); err != nil {
			return nil, newStorageError("ListSources", "scan failed", err)
		}
		out = append(out, ds)
	}
	return out, nil
}

// GetSource returns the source with id, or (nil, nil) if not found.
func (r *PostgresRegistry) GetSource(ctx context.Context, id string) (*DataSource, error) {
	ds := &DataSource{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, uri, kind, version, updated_at FROM data_sources WHERE id = $1`, id,
	).Scan(&ds.ID, &ds.URI, &ds.Kind, &ds.Version, &ds.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageError("GetSource", "query failed", err)
	}
	return ds, nil
}

// UpsertSource inserts or updates (conflict-on-id) a data source.
func (r *PostgresRegistry) UpsertSource(ctx context.Context, id, uri, kind string, version int) (*DataSource, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO data_sources (id, uri, kind, version, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			uri = EXCLUDED.uri,
			kind = EXCLUDED.kind,
			version = EXCLUDED.version,
			updated_at = NOW()
	`, id, uri, kind, version)
	if err != nil {
		return nil, newStorageError("UpsertSource", "upsert failed", err)
	}
	return r.GetSource(ctx, id)
}

// DeleteSource removes a source and cascades to its table_meta rows.
func (r *PostgresRegistry) DeleteSource(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM data_sources WHERE id = $1`, id)
	if err != nil {
		return false, newStorageError("DeleteSource", "delete failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, newStorageError("DeleteSource", "rows affected failed", err)
	}
	return n > 0, nil
}

// ListTables returns every table registered under sourceID, ordered by name.
func (r *PostgresRegistry) ListTables(ctx context.Context, sourceID string) ([]*TableMeta, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT source_id, table_name, schema_json, version, updated_at FROM table_meta WHERE source_id = $1 ORDER BY table_name`,
		sourceID,
	)
	if err != nil {
		return nil, newStorageError("ListTables", "query failed", err)
	}
	defer rows.Close()
	return scanTableMetaRows(rows)
}

// UpsertTable inserts or updates (conflict-on-key) a table's schema.
func (r *PostgresRegistry) UpsertTable(ctx context.Context, sourceID, name string, schema map[string]interface{}, version int) (*TableMeta, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return nil, newStorageError("UpsertTable", "marshal schema failed", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO table_meta (source_id, table_name, schema_json, version, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (source_id, table_name) DO UPDATE SET
			schema_json = EXCLUDED.schema_json,
			version = EXCLUDED.version,
			updated_at = NOW()
	`, sourceID, name, schemaJSON, version)
	if err != nil {
		return nil, newStorageError("UpsertTable", "upsert failed", err)
	}
	return r.GetTable(ctx, sourceID, name)
}

// GetTable returns the table with (sourceID, name), or (nil, nil) if absent.
func (r *PostgresRegistry) GetTable(ctx context.Context, sourceID, name string) (*TableMeta, error) {
	var tm TableMeta
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT source_id, table_name, schema_json, version, updated_at FROM table_meta WHERE source_id = $1 AND table_name = $2`,
		sourceID, name,
	).Scan(&tm.SourceID, &tm.TableName, &raw, &tm.Version, &tm.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageError("GetTable", "query failed", err)
	}
	if err := json.Unmarshal(raw, &tm.SchemaJSON); err != nil {
		return nil, newStorageError("GetTable", "unmarshal schema failed", err)
	}
	return &tm, nil
}

// DeleteTable removes a single table entry.
func (r *PostgresRegistry) DeleteTable(ctx context.Context, sourceID, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM table_meta WHERE source_id = $1 AND table_name = $2`, sourceID, name)
	if err != nil {
		return false, newStorageError("DeleteTable", "delete failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, newStorageError("DeleteTable", "rows affected failed", err)
	}
	return n > 0, nil
}

// SetOntology replaces the table list backing entity.
func (r *PostgresRegistry) SetOntology(ctx context.Context, entity string, tables []string) (*OntologyMapping, error) {
	tablesJSON, err := json.Marshal(tables)
	if err != nil {
		return nil, newStorageError("SetOntology", "marshal tables failed", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ontology_mapping (entity_name, source_tables_json)
		VALUES ($1, $2)
		ON CONFLICT (entity_name) DO UPDATE SET source_tables_json = EXCLUDED.source_tables_json
	`, entity, tablesJSON)
	if err != nil {
		return nil, newStorageError("SetOntology", "upsert failed", err)
	}
	return r.GetOntology(ctx, entity)
}

// GetOntology returns the mapping for entity, or (nil, nil) if absent.
func (r *PostgresRegistry) GetOntology(ctx context.Context, entity string) (*OntologyMapping, error) {
	var om OntologyMapping
	var raw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT entity_name, source_tables_json FROM ontology_mapping WHERE entity_name = $1`, entity,
	).Scan(&om.EntityName, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, newStorageError("GetOntology", "query failed", err)
	}
	if err := json.Unmarshal(raw, &om.SourceTables); err != nil {
		return nil, newStorageError("GetOntology", "unmarshal tables failed", err)
	}
	return &om, nil
}

// SearchTablesByName does a case-insensitive substring search over table
// names, ordered by (source_id, table_name) for determinism.
func (r *PostgresRegistry) SearchTablesByName(ctx context.Context, pattern string) ([]*TableMeta, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_id, table_name, schema_json, version, updated_at
		FROM table_meta
		WHERE table_name ILIKE '%' || $1 || '%'
		ORDER BY source_id, table_name
	`, pattern)
	if err != nil {
		return nil, newStorageError("SearchTablesByName", "query failed", err)
	}
	defer rows.Close()
	return scanTableMetaRows(rows)
}

// SearchSchemaContent does a case-insensitive substring search over the raw
// schema JSON text, ordered by (source_id, table_name) for determinism.
func (r *PostgresRegistry) SearchSchemaContent(ctx context.Context, pattern string) ([]*TableMeta, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_id, table_name, schema_json, version, updated_at
		FROM table_meta
		WHERE schema_json::text ILIKE '%' || $1 || '%'
		ORDER BY source_id, table_name
	`, pattern)
	if err != nil {
		return nil, newStorageError("SearchSchemaContent", "query failed", err)
	}
	defer rows.Close()
	return scanTableMetaRows(rows)
}

// Close releases the underlying database connection pool.
func (r *PostgresRegistry) Close() error {
	return r.db.Close()
}

func scanTableMetaRows(rows *sql.Rows) ([]*TableMeta, error) {
	var out []*TableMeta
	for rows.Next() {
		var tm TableMeta
		var raw []byte
		if err := rows.Scan(&tm.SourceID, &tm.TableName, &raw, &tm.Version, &tm.UpdatedAt); err != nil {
			return nil, newStorageError("scan", "scan failed", err)
		}
		if err := json.Unmarshal(raw, &tm.SchemaJSON); err != nil {
			return nil, newStorageError("scan", "unmarshal schema failed", err)
		}
		out = append(out, &tm)
	}
	return out, nil
}
