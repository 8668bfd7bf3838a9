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

package base

import (
	"context"
	"time"
)

// Connector defines the interface that all MCP connectors must implement
// This follows the Model Context Protocol pattern for Resources and Tools
type Connector interface {
	// Lifecycle Management
	Connect(ctx context.Context, config *ConnectorConfig) error
	Disconnect(ctx context.Context) error
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Data Operations (MCP Resources - read-only)
	Query(ctx context.Context, query *Query) (*QueryResult, error)

	// Action Operations (MCP Tools - write operations)
	Execute(ctx context.Context, cmd *Command) (*CommandResult, error)

	// Metadata
	Name() string        // Unique connector instance name
	Type() string        // Connector type (postgres, cassandra, http_api)
	Version() string     // Connector version
	Capabilities() []string // List of capabilities (query, execute, transactions)
}

// ConnectorConfig holds the configuration for a connector instance
type ConnectorConfig struct {
	Name          string                 `json:"name"`           // Unique name for this connector
	Type          string                 `json:"type"`           // Type: postgres, cassandra, http_api
	ConnectionURL string                 `json:"connection_url"` // Connection string (DSN)
	Credentials   map[string]string      `json:"credentials"`    // Username, password, API keys
	Options       map[string]interface{} `json:"options"`        // Connector-specific options
	Timeout       time.Duration          `json:"timeout"`        // Operation timeout (default: 5s)
	MaxRetries    int                    `json:"max_retries"`    // Retry count for transient failures
	TenantID      string                 `json:"tenant_id"`      // For multi-tenancy isolation
}

// Query represents a read operation (MCP Resource pattern)
type Query struct {
	Statement  string                 `json:"statement"`  // SQL, CQL, or API path
	Parameters map[string]interface{} `json:"parameters"` // Query parameters
	Timeout    time.Duration          `json:"timeout"`    // Override default timeout
	Limit      int                    `json:"limit"`      // Result limit (optional)
}

// QueryResult contains the results of a Query operation
type QueryResult struct {
	Rows      []map[string]interface{} `json:"rows"`       // Result rows (key-value maps)
	RowCount  int                      `json:"row_count"`  // Number of rows returned
	Duration  time.Duration            `json:"duration"`   // Query execution time
	Cached    bool                     `json:"cached"`     // Was result served from cache?
	Connector string                   `json:"connector"`  // Connector name that executed query
	Metadata  map[string]interface{}   `json:"metadata,omitempty"` // Additional metadata
}

// Command represents a write operation (MCP Tool pattern)
type Command struct {
	Action     string                 `json:"action"`     // INSERT, UPDATE, DELETE, etc.
	Statement  string                 `json:"statement"`  // SQL, CQL, or API endpoint
	Parameters map[string]interface{} `json:"parameters"` // Command parameters
	Timeout    time.Duration          `json:"timeout"`    // Override default timeout
}

// CommandResult contains the results of a Command execution
type CommandResult struct {
	Success      bool                   `json:"success"`       // Was command successful?
	RowsAffected int                    `json:"rows_affected"` // Number of rows affected
	Duration     time.Duration          `json:"duration"`      // Execution time
	Message      string                 `json:"message"`       // Status message
	Connector    string                 `json:"connector"`     // Connector name
	Metadata     map[string]interface{} `json:"metadata,omitempty"` // Additional metadata
}

// HealthStatus represents the health of a connector
type HealthStatus struct {
	Healthy   bool              `json:"healthy"`   // Overall health status
	Latency   time.Duration     `json:"latency"`   // Connection latency
	Details   map[string]string `json:"details"`   // Additional diagnostic info
	Timestamp time.Time         `json:"timestamp"` // When health check was performed
	Error     string            `json:"error"`     // Error message if unhealthy
}

// ConnectorError represents errors specific to connector operations
type ConnectorError struct {
	ConnectorName string
	Operation     string
	Message       string
	Cause         error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.ConnectorName + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.ConnectorName + "." + e.Operation + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a new ConnectorError
func NewConnectorError(connectorName, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		ConnectorName: connectorName,
		Operation:     operation,
		Message:       message,
		Cause:         cause,
	}
}

// Adapter is the uniform contract every data-source driver implements on
// top of the base Connector lifecycle. It is the "adapter contract" the
// orchestrator core consumes: a source kind registers one implementation
// at startup and the scheduler dispatches operations against it without
// knowing which concrete driver is underneath.
type Adapter interface {
	Connector

	// GetMetadata returns a schema bundle for the named tables/collections,
	// or for all known tables when names is empty.
	GetMetadata(ctx context.Context, tables []string) (*MetadataBundle, error)

	// RunSummary returns basic statistics for a table/collection, optionally
	// scoped to a subset of columns/fields.
	RunSummary(ctx context.Context, table string, columns []string) (*SummaryResult, error)

	// RunTargeted executes a single targeted query and returns its rows,
	// honoring the deadline carried by ctx.
	RunTargeted(ctx context.Context, query *Query, timeout time.Duration) (*QueryResult, error)

	// SampleData draws up to n rows from query using the given method.
	SampleData(ctx context.Context, query *Query, n int, method SampleMethod) (*QueryResult, error)

	// GenerateInsights derives insights of the requested kind from rows
	// already retrieved by the caller (no additional round-trip to the
	// source is implied).
	GenerateInsights(ctx context.Context, rows []map[string]interface{}, kind InsightKind) (*InsightResult, error)
}

// SampleMethod selects how SampleData draws rows.
type SampleMethod string

const (
	SampleRandom     SampleMethod = "random"
	SampleFirst      SampleMethod = "first"
	SampleStratified SampleMethod = "stratified"
)

// InsightKind selects the kind of analysis GenerateInsights performs.
type InsightKind string

const (
	InsightOutliers     InsightKind = "outliers"
	InsightTrends       InsightKind = "trends"
	InsightClusters     InsightKind = "clusters"
	InsightCorrelations InsightKind = "correlations"
)

// MetadataBundle is the schema description returned by GetMetadata. Column
// and field shape is driver-defined; the core treats FieldsJSON as opaque
// except for full-text search over it.
type MetadataBundle struct {
	SourceName string                 `json:"source_name"`
	Tables     []TableSchema          `json:"tables"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// TableSchema describes one table/collection within a MetadataBundle.
type TableSchema struct {
	Name       string                 `json:"name"`
	ColumnsRaw map[string]string      `json:"columns"` // column/field name -> driver type string
	RowCount   int64                  `json:"row_count,omitempty"`
	Indexes    []string               `json:"indexes,omitempty"`
	Extra      map[string]interface{} `json:"extra,omitempty"`
}

// SummaryResult is the statistics payload returned by RunSummary.
type SummaryResult struct {
	Table      string                 `json:"table"`
	RowCount   int64                  `json:"row_count"`
	ColumnStat map[string]ColumnStats `json:"column_stats,omitempty"`
}

// ColumnStats holds per-column summary statistics (as applicable to the
// column's type; drivers populate what they can compute cheaply).
type ColumnStats struct {
	DistinctCount int64   `json:"distinct_count,omitempty"`
	NullCount     int64   `json:"null_count,omitempty"`
	Min           string  `json:"min,omitempty"`
	Max           string  `json:"max,omitempty"`
	Mean          float64 `json:"mean,omitempty"`
}

// InsightResult is the payload returned by GenerateInsights.
type InsightResult struct {
	Kind    InsightKind              `json:"kind"`
	Items   []map[string]interface{} `json:"items"`
	Summary string                   `json:"summary,omitempty"`
}

// AdapterErrorKind enumerates the retryable/non-retryable error kinds an
// Adapter may surface, per the adapter contract.
type AdapterErrorKind string

const (
	AdapterErrTimeout     AdapterErrorKind = "timeout"
	AdapterErrConnect     AdapterErrorKind = "connect"
	AdapterErrAuth        AdapterErrorKind = "auth"
	AdapterErrBadRequest  AdapterErrorKind = "bad_request"
	AdapterErrNotFound    AdapterErrorKind = "not_found"
	AdapterErrRateLimited AdapterErrorKind = "rate_limited"
	AdapterErrInternal    AdapterErrorKind = "internal"
)

// AdapterError is the uniform error type every Adapter method must surface.
type AdapterError struct {
	Source    string
	Operation string
	Kind      AdapterErrorKind
	Detail    string
	Cause     error
}

func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return e.Source + "." + e.Operation + " [" + string(e.Kind) + "]: " + e.Detail + " (cause: " + e.Cause.Error() + ")"
	}
	return e.Source + "." + e.Operation + " [" + string(e.Kind) + "]: " + e.Detail
}

func (e *AdapterError) Unwrap() error { return e.Cause }

// Retryable reports whether the operation that produced this error is
// safe to retry with backoff, per the adapter contract's error policy.
func (e *AdapterError) Retryable() bool {
	switch e.Kind {
	case AdapterErrTimeout, AdapterErrConnect, AdapterErrRateLimited:
		return true
	default:
		return false
	}
}

// NewAdapterError builds an AdapterError, deriving retryability from kind.
func NewAdapterError(source, operation string, kind AdapterErrorKind, detail string, cause error) *AdapterError {
	return &AdapterError{Source: source, Operation: operation, Kind: kind, Detail: detail, Cause: cause}
}

// DefaultAdapter supplies generic, Query-based implementations of the
// Adapter contract's five metadata/analysis methods. Concrete connectors
// embed it and override only the methods where a driver-specific
// implementation is worth the code (e.g. GetMetadata via
// information_schema for SQL stores). Connectors that do not override
// still satisfy Adapter fully — the contract's surface matters to the
// core, not each driver's internal sophistication (out of scope per the
// core spec: "Individual data-source drivers... only the adapter contract
// matters").
type DefaultAdapter struct {
	// Query is supplied by the embedding connector so DefaultAdapter can
	// reuse the connector's own Query implementation.
	Query func(ctx context.Context, query *Query) (*QueryResult, error)
	// SourceName identifies the connector for error messages.
	SourceName string
}

func (d *DefaultAdapter) GetMetadata(ctx context.Context, tables []string) (*MetadataBundle, error) {
	return &MetadataBundle{SourceName: d.SourceName, Tables: nil}, nil
}

func (d *DefaultAdapter) RunSummary(ctx context.Context, table string, columns []string) (*SummaryResult, error) {
	if d.Query == nil {
		return nil, NewAdapterError(d.SourceName, "RunSummary", AdapterErrInternal, "no query function configured", nil)
	}
	result, err := d.Query(ctx, &Query{Statement: table})
	if err != nil {
		return nil, NewAdapterError(d.SourceName, "RunSummary", AdapterErrInternal, err.Error(), err)
	}
	return &SummaryResult{Table: table, RowCount: int64(result.RowCount)}, nil
}

func (d *DefaultAdapter) RunTargeted(ctx context.Context, query *Query, timeout time.Duration) (*QueryResult, error) {
	if d.Query == nil {
		return nil, NewAdapterError(d.SourceName, "RunTargeted", AdapterErrInternal, "no query function configured", nil)
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	result, err := d.Query(runCtx, query)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, NewAdapterError(d.SourceName, "RunTargeted", AdapterErrTimeout, "deadline exceeded", err)
		}
		return nil, NewAdapterError(d.SourceName, "RunTargeted", AdapterErrInternal, err.Error(), err)
	}
	return result, nil
}

func (d *DefaultAdapter) SampleData(ctx context.Context, query *Query, n int, method SampleMethod) (*QueryResult, error) {
	if d.Query == nil {
		return nil, NewAdapterError(d.SourceName, "SampleData", AdapterErrInternal, "no query function configured", nil)
	}
	sampleQuery := *query
	sampleQuery.Limit = n
	result, err := d.Query(ctx, &sampleQuery)
	if err != nil {
		return nil, NewAdapterError(d.SourceName, "SampleData", AdapterErrInternal, err.Error(), err)
	}
	if method == SampleFirst && len(result.Rows) > n {
		result.Rows = result.Rows[:n]
	}
	return result, nil
}

func (d *DefaultAdapter) GenerateInsights(ctx context.Context, rows []map[string]interface{}, kind InsightKind) (*InsightResult, error) {
	return &InsightResult{Kind: kind, Items: nil, Summary: "insight generation not implemented by this driver"}, nil
}
