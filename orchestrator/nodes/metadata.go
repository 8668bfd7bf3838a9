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
	"context"
	"fmt"
	"sync"

	"axonflow/platform/connectors/base"
)

// MetadataStrategy is one of the four adaptive fan-out strategies spec.md
// §4.11 names for the Metadata Node.
type MetadataStrategy string

const (
	StrategyFocused      MetadataStrategy = "focused"
	StrategyBalanced     MetadataStrategy = "balanced"
	StrategyBroadParallel MetadataStrategy = "broad_parallel"
	StrategyExploratory  MetadataStrategy = "exploratory"
)

// SelectMetadataStrategy picks a strategy from classification confidence
// and the number of identified sources. A single source always gets full
// depth (focused); low confidence widens the fan-out bound (exploratory)
// since the Classification Node itself was unsure which sources matter;
// otherwise the fan-out scales with the target count (balanced vs
// broad-parallel).
func SelectMetadataStrategy(confidence float64, targetCount int) MetadataStrategy {
	switch {
	case targetCount <= 1:
		return StrategyFocused
	case confidence < 0.8:
		return StrategyExploratory
	case targetCount <= 3:
		return StrategyBalanced
	default:
		return StrategyBroadParallel
	}
}

// fanOutBound returns the maximum concurrent GetMetadata calls for a
// strategy.
func (s MetadataStrategy) fanOutBound() int {
	switch s {
	case StrategyFocused:
		return 1
	case StrategyBalanced:
		return 3
	case StrategyBroadParallel:
		return 6
	case StrategyExploratory:
		return 4
	default:
		return 2
	}
}

// DatabaseMetadata is one source's entry in the unified metadata bundle.
type DatabaseMetadata struct {
	Status              string   `json:"status"`
	KeyTables           []string `json:"key_tables"`
	ColumnTypeHistogram map[string]int `json:"column_type_histogram"`
	IndexingInfo        []string `json:"indexing_info"`
}

// CommonPatterns summarizes cross-source naming/relationship overlap.
type CommonPatterns struct {
	CommonTableNames          []string `json:"common_table_names"`
	CrossDatabaseRelationships []string `json:"cross_database_relationships"`
}

// MetadataBundle is the Metadata Node's unified output (spec.md §4.11).
type MetadataBundle struct {
	Databases    map[string]DatabaseMetadata `json:"databases"`
	GlobalTables []string                    `json:"global_tables"`
	Common       CommonPatterns              `json:"common_patterns"`
}

// MetadataNode fans out GetMetadata calls across the identified sources'
// adapters, bounded by the selected strategy. Grounded on
// workflow_engine.go's executeStepsParallel goroutine+WaitGroup fan-out,
// generalized with a semaphore so the bound varies by strategy instead of
// always matching the step count.
type MetadataNode struct {
	adapters map[string]base.Adapter // source id -> adapter
}

// NewMetadataNode builds a Metadata Node over the given source-id-to-adapter
// map.
func NewMetadataNode(adapters map[string]base.Adapter) *MetadataNode {
	return &MetadataNode{adapters: adapters}
}

// Gather calls GetMetadata for every id in sourceIDs, bounded by strategy's
// fan-out limit, and merges the results into a MetadataBundle. A single
// adapter failure is recorded as a degraded database entry rather than
// aborting the whole gather, since a partial bundle is still useful to the
// Planning Node.
func (n *MetadataNode) Gather(ctx context.Context, sourceIDs []string, strategy MetadataStrategy) (*MetadataBundle, error) {
	bound := strategy.fanOutBound()
	sem := make(chan struct{}, bound)

	var mu sync.Mutex
	var wg sync.WaitGroup
	bundle := &MetadataBundle{Databases: make(map[string]DatabaseMetadata)}
	tableNameCounts := make(map[string]int)

	for _, id := range sourceIDs {
		adapter, ok := n.adapters[id]
		if !ok {
			mu.Lock()
			bundle.Databases[id] = DatabaseMetadata{Status: "unavailable"}
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(sourceID string, a base.Adapter) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			meta, err := a.GetMetadata(ctx, nil)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				bundle.Databases[sourceID] = DatabaseMetadata{Status: "error"}
				return
			}

			dbMeta := DatabaseMetadata{Status: "ok", ColumnTypeHistogram: make(map[string]int)}
			for _, tbl := range meta.Tables {
				dbMeta.KeyTables = append(dbMeta.KeyTables, tbl.Name)
				bundle.GlobalTables = append(bundle.GlobalTables, tbl.Name)
				tableNameCounts[tbl.Name]++
				for _, colType := range tbl.ColumnsRaw {
					dbMeta.ColumnTypeHistogram[colType]++
				}
				dbMeta.IndexingInfo = append(dbMeta.IndexingInfo, tbl.Indexes...)
			}
			bundle.Databases[sourceID] = dbMeta
		}(id, adapter)
	}

	wg.Wait()

	for name, count := range tableNameCounts {
		if count > 1 {
			bundle.Common.CommonTableNames = append(bundle.Common.CommonTableNames, name)
		}
	}

	if ctx.Err() != nil {
		return bundle, fmt.Errorf("nodes: metadata gather cancelled: %w", ctx.Err())
	}
	return bundle, nil
}
