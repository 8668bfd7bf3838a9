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
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRegistry is an in-process Registry used for tests and for running
// without a configured database. It implements the same substring-search,
// cascade-on-delete, and deterministic-ordering semantics as PostgresRegistry.
type MemoryRegistry struct {
	mu        sync.RWMutex
	sources   map[string]*DataSource
	tables    map[string]map[string]*TableMeta // source id -> table name -> meta
	ontology  map[string]*OntologyMapping
}

// NewMemoryRegistry creates an empty in-memory Schema Registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sources:  make(map[string]*DataSource),
		tables:   make(map[string]map[string]*TableMeta),
		ontology: make(map[string]*OntologyMapping),
	}
}

func (m *MemoryRegistry) ListSources(_ context.Context) ([]*DataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*DataSource, 0, len(m.sources))
	for _, ds := range m.sources {
		cp := *ds
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRegistry) GetSource(_ context.Context, id string) (*DataSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.sources[id]
	if !ok {
		return nil, nil
	}
	cp := *ds
	return &cp, nil
}

func (m *MemoryRegistry) UpsertSource(_ context.Context, id, uri, kind string, version int) (*DataSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds := &DataSource{ID: id, URI: uri, Kind: kind, Version: version, UpdatedAt: time.Now().UTC()}
	m.sources[id] = ds
	if _, ok := m.tables[id]; !ok {
		m.tables[id] = make(map[string]*TableMeta)
	}
	cp := *ds
	return &cp, nil
}

func (m *MemoryRegistry) DeleteSource(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sources[id]; !ok {
		return false, nil
	}
	delete(m.sources, id)
	delete(m.tables, id) // cascade
	return true, nil
}

func (m *MemoryRegistry) ListTables(_ context.Context, sourceID string) ([]*TableMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*TableMeta
	for _, tm := range m.tables[sourceID] {
		cp := *tm
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out, nil
}

func (m *MemoryRegistry) UpsertTable(_ context.Context, sourceID, name string, schema map[string]interface{}, version int) (*TableMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[sourceID]; !ok {
		m.tables[sourceID] = make(map[string]*TableMeta)
	}
	tm := &TableMeta{SourceID: sourceID, TableName: name, SchemaJSON: schema, Version: version, UpdatedAt: time.Now().UTC()}
	m.tables[sourceID][name] = tm
	cp := *tm
	return &cp, nil
}

func (m *MemoryRegistry) GetTable(_ context.Context, sourceID, name string) (*TableMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tbls, ok := m.tables[sourceID]
	if !ok {
		return nil, nil
	}
	tm, ok := tbls[name]
	if !ok {
		return nil, nil
	}
	cp := *tm
	return &cp, nil
}

func (m *MemoryRegistry) DeleteTable(_ context.Context, sourceID, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tbls, ok := m.tables[sourceID]
	if !ok {
		return false, nil
	}
	if _, ok := tbls[name]; !ok {
		return false, nil
	}
	delete(tbls, name)
	return true, nil
}

func (m *MemoryRegistry) SetOntology(_ context.Context, entity string, tables []string) (*OntologyMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	om := &OntologyMapping{EntityName: entity, SourceTables: tables}
	m.ontology[entity] = om
	cp := *om
	return &cp, nil
}

func (m *MemoryRegistry) GetOntology(_ context.Context, entity string) (*OntologyMapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	om, ok := m.ontology[entity]
	if !ok {
		return nil, nil
	}
	cp := *om
	return &cp, nil
}

func (m *MemoryRegistry) SearchTablesByName(_ context.Context, pattern string) ([]*TableMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(pattern)
	var out []*TableMeta
	for _, tbls := range m.tables {
		for _, tm := range tbls {
			if strings.Contains(strings.ToLower(tm.TableName), needle) {
				cp := *tm
				out = append(out, &cp)
			}
		}
	}
	sortTableMetas(out)
	return out, nil
}

func (m *MemoryRegistry) SearchSchemaContent(_ context.Context, pattern string) ([]*TableMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(pattern)
	var out []*TableMeta
	for _, tbls := range m.tables {
		for _, tm := range tbls {
			if schemaContains(tm.SchemaJSON, needle) {
				cp := *tm
				out = append(out, &cp)
			}
		}
	}
	sortTableMetas(out)
	return out, nil
}

func (m *MemoryRegistry) Close() error { return nil }

func sortTableMetas(tms []*TableMeta) {
	sort.Slice(tms, func(i, j int) bool {
		if tms[i].SourceID != tms[j].SourceID {
			return tms[i].SourceID < tms[j].SourceID
		}
		return tms[i].TableName < tms[j].TableName
	})
}

// schemaContains walks a decoded JSON schema looking for needle in any
// string key or value, matching the substring semantics SearchSchemaContent
// gets "for free" from Postgres's schema_json::text ILIKE comparison.
func schemaContains(v interface{}, needle string) bool {
	switch t := v.(type) {
	case string:
		return strings.Contains(strings.ToLower(t), needle)
	case map[string]interface{}:
		for k, val := range t {
			if strings.Contains(strings.ToLower(k), needle) || schemaContains(val, needle) {
				return true
			}
		}
	case []interface{}:
		for _, item := range t {
			if schemaContains(item, needle) {
				return true
			}
		}
	}
	return false
}
