// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
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
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"axonflow/platform/auth"
	"axonflow/platform/connectors/base"
	"axonflow/platform/connectors/config"
	"axonflow/platform/connectors/mongodb"
	"axonflow/platform/connectors/postgres"
	"axonflow/platform/connectors/redis"
	"axonflow/platform/graphbuilder"
	"axonflow/platform/orchestrator/nodes"
	"axonflow/platform/scheduler"
)

// newAdapterForKind builds the concrete connector for a configured data
// source kind, following connectors/config.LoadFromEnv's env-driven
// loading convention (C2's "adapters register themselves at startup").
func newAdapterForKind(kind string) (base.Adapter, error) {
	cfg, err := config.LoadFromEnv(kind, kind)
	if err != nil {
		return nil, err
	}
	adapter := newAdapterInstance(kind)
	if adapter == nil {
		return nil, nil
	}
	if err := adapter.Connect(context.Background(), cfg); err != nil {
		return nil, err
	}
	return adapter, nil
}

// newAdapterInstance maps a configured source kind to the one of the
// full Adapter-contract connectors (postgres, mongodb, redis) able to
// serve it. Connector-only drivers (mysql, cassandra, s3, gcs, azureblob,
// http) speak an older Query/Execute or archival-only contract and are
// wired through the Output Aggregator's Archiver instead — see DESIGN.md.
func newAdapterInstance(kind string) base.Adapter {
	switch kind {
	case "postgres", "relational":
		return postgres.NewPostgresConnector()
	case "mongodb", "document":
		return mongodb.NewMongoDBConnector()
	case "redis", "vector", "cache":
		return redis.NewRedisConnector()
	default:
		return nil
	}
}

// --- query route: complexity(1..10) classification (spec.md §4.13 step 2) ---

// queryComplexity estimates a question's complexity in [1,10] and whether
// it touches more than one data source, per spec.md §4.13's routing input.
func queryComplexity(question string, sources []string) (score int, crossSource bool) {
	score = 3
	wc := len([]rune(question)) / 8
	if wc > score {
		score = wc
	}
	if score > 10 {
		score = 10
	}
	crossSource = len(sources) > 1
	if crossSource && score < 6 {
		score = 6
	}
	return score, crossSource
}

// Route names the three execution paths spec.md §4.13 chooses between.
type Route string

const (
	RouteTraditional Route = "traditional"
	RouteHybrid      Route = "hybrid"
	RouteLangGraph   Route = "langgraph"
)

// RouteOptions carries operator-controlled routing knobs. DevMode is
// config-only (never caller-settable): in production a failed hybrid graph
// run always falls back to traditional, per SPEC_FULL.md's Open Question
// decision on hybrid's debug fallthrough.
type RouteOptions struct {
	ForceHeavyPath bool
	DevMode        bool
}

// decideRoute implements spec.md §4.13's three-way routing rule.
func decideRoute(complexity int, crossSource bool, parallelismHigh bool, opts RouteOptions) Route {
	if opts.ForceHeavyPath {
		return RouteLangGraph
	}
	const threshold = 5
	if complexity >= 8 || parallelismHigh {
		return RouteLangGraph
	}
	if complexity <= threshold && !crossSource {
		return RouteTraditional
	}
	return RouteHybrid
}

// QueryRequest is the orchestrator's query-processing entry point body.
type QueryRequest struct {
	Query          string                 `json:"query"`
	Sources        []string               `json:"sources"`
	Context        map[string]interface{} `json:"context"`
	ForceHeavyPath bool                   `json:"force_heavy_path"`
}

// QueryResponse is returned from every route, carrying the chosen route so
// callers and tests can assert on it.
type QueryResponse struct {
	RequestID string `json:"request_id"`
	Route     Route  `json:"route"`
	Answer    string `json:"answer"`
	Error     string `json:"error,omitempty"`
}

func (o *Orchestrator) queryHandler(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	requestID := uuid.NewString()
	user := UserContext{}
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		user = UserContext{ID: 0, Email: sess.Email, Role: firstRole(sess.Roles), TenantID: ""}
	}

	resp := o.runQuery(r.Context(), requestID, req, user)
	status := http.StatusOK
	if resp.Error != "" {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

func firstRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	return roles[0]
}

// runQuery performs the §4.13 routing decision and dispatches to the
// chosen route, recording performance samples for optimize_future_queries.
func (o *Orchestrator) runQuery(ctx context.Context, requestID string, req QueryRequest, user UserContext) QueryResponse {
	started := time.Now()

	complexity, crossSource := queryComplexity(req.Query, req.Sources)
	parallelismHigh := len(req.Sources) >= 4

	route := decideRoute(complexity, crossSource, parallelismHigh, RouteOptions{
		ForceHeavyPath: req.ForceHeavyPath,
		DevMode:        o.cfg != nil && o.cfg.DevMode,
	})

	var answer string
	var err error

	switch route {
	case RouteLangGraph:
		answer, err = o.runLangGraphRoute(ctx, requestID, req, user)
	case RouteHybrid:
		answer, err = o.runHybridRoute(ctx, requestID, req, user)
	default:
		answer, err = o.runTraditionalRoute(ctx, requestID, req, user)
	}

	success := err == nil
	o.perf.record(route, success, time.Since(started))

	resp := QueryResponse{RequestID: requestID, Route: route, Answer: answer}
	auditReq := OrchestratorRequest{RequestID: requestID, Query: req.Query, User: user}
	if err != nil {
		resp.Error = err.Error()
		o.auditLogger.LogFailedRequest(ctx, auditReq, err)
	} else {
		o.auditLogger.LogSuccessfulRequest(ctx, auditReq, answer, nil, nil)
	}
	return resp
}

// runTraditionalRoute delegates to the legacy planning+implementation pair
// (PlanningEngine + WorkflowEngine + ResultAggregator), preserving prior
// behavior per spec.md §4.13.
func (o *Orchestrator) runTraditionalRoute(ctx context.Context, requestID string, req QueryRequest, user UserContext) (string, error) {
	workflow, err := o.planningEngine.GeneratePlan(ctx, PlanGenerationRequest{
		Query:     req.Query,
		RequestID: requestID,
		Context:   req.Context,
	})
	if err != nil {
		return "", err
	}

	execution, err := o.workflowEngine.ExecuteWorkflow(ctx, *workflow, map[string]interface{}{"query": req.Query}, user)
	if err != nil {
		return "", err
	}

	return o.resultAggregator.AggregateResults(ctx, execution.Steps, req.Query, user)
}

// runLangGraphRoute runs the full iterative workflow: C11 phases, the C12
// scheduler, and the C9 aggregator, per spec.md §4.13.
func (o *Orchestrator) runLangGraphRoute(ctx context.Context, requestID string, req QueryRequest, user UserContext) (string, error) {
	classification := o.classifier.Classify(ctx, req.Query)
	if classification.Tier == TierTrivial {
		return o.runTraditionalRoute(ctx, requestID, req, user)
	}

	graph := o.graphBuilder.Build(graphbuilder.Request{
		Question: req.Query,
		Sources:  req.Sources,
		Context:  req.Context,
		PerformanceReqs: graphbuilder.PerformanceRequirements{
			StreamingFlag: true,
		},
	})

	cls, err := o.classificationNode.Classify(ctx, requestID, req.Query)
	if err != nil {
		return "", err
	}

	strategy := nodes.SelectMetadataStrategy(cls.Confidence, len(cls.IdentifiedSources))
	if _, err := o.metadataNode.Gather(ctx, cls.IdentifiedSources, strategy); err != nil {
		return "", err
	}

	plan := o.planFromSources(cls.IdentifiedSources)
	execStart := time.Now()
	results, err := o.executionNode.Run(ctx, plan, req.Query, func(scheduler.Event) {})
	o.recordConnectorMetrics(plan, results, time.Since(execStart))
	if err != nil {
		return "", err
	}

	steps := stepExecutionsFromResults(results)
	answer, err := o.resultAggregator.AggregateResults(ctx, steps, req.Query, user)
	if err != nil {
		return "", err
	}
	_ = graph
	return answer, nil
}

// runHybridRoute runs classification + metadata via graph nodes, uses the
// legacy planner, and executes via the graph-based scheduler; on graph
// failure it falls back to traditional unless DevMode suppresses the
// fallback (spec.md §4.13, SPEC_FULL.md Open Question #3).
func (o *Orchestrator) runHybridRoute(ctx context.Context, requestID string, req QueryRequest, user UserContext) (string, error) {
	cls, err := o.classificationNode.Classify(ctx, requestID, req.Query)
	if err != nil {
		return o.fallbackOrErr(ctx, requestID, req, user, err)
	}

	strategy := nodes.SelectMetadataStrategy(cls.Confidence, len(cls.IdentifiedSources))
	if _, err := o.metadataNode.Gather(ctx, cls.IdentifiedSources, strategy); err != nil {
		return o.fallbackOrErr(ctx, requestID, req, user, err)
	}

	workflow, err := o.planningEngine.GeneratePlan(ctx, PlanGenerationRequest{
		Query:     req.Query,
		RequestID: requestID,
		Context:   req.Context,
	})
	if err != nil {
		return o.fallbackOrErr(ctx, requestID, req, user, err)
	}
	_ = workflow

	plan := o.planFromSources(cls.IdentifiedSources)
	execStart := time.Now()
	results, err := o.executionNode.Run(ctx, plan, req.Query, func(scheduler.Event) {})
	o.recordConnectorMetrics(plan, results, time.Since(execStart))
	if err != nil {
		return o.fallbackOrErr(ctx, requestID, req, user, err)
	}

	steps := stepExecutionsFromResults(results)
	return o.resultAggregator.AggregateResults(ctx, steps, req.Query, user)
}

func (o *Orchestrator) fallbackOrErr(ctx context.Context, requestID string, req QueryRequest, user UserContext, graphErr error) (string, error) {
	if o.metricsCollector != nil {
		o.metricsCollector.RecordRouteFallback("hybrid")
	}
	if o.cfg != nil && o.cfg.DevMode {
		return "", graphErr
	}
	return o.runTraditionalRoute(ctx, requestID, req, user)
}

// recordConnectorMetrics reports each operation's outcome to the
// MetricsCollector, keyed by the data-source kind planFromSources resolved
// for it. The scheduler doesn't track per-operation duration, so elapsed is
// spread evenly across the batch.
func (o *Orchestrator) recordConnectorMetrics(plan *scheduler.Plan, results []*scheduler.OpResult, elapsed time.Duration) {
	if o.metricsCollector == nil || len(results) == 0 {
		return
	}
	kindByID := make(map[string]string, len(plan.Operations))
	for _, op := range plan.Operations {
		kindByID[op.ID] = op.SourceKind
	}
	perOp := elapsed / time.Duration(len(results))
	for _, res := range results {
		kind := kindByID[res.OperationID]
		if kind == "" {
			kind = "default"
		}
		o.metricsCollector.RecordConnectorOperation(kind, res.Status == scheduler.OpSucceeded, perOp)
	}
}

// planFromSources turns a set of identified source ids into a
// scheduler.Plan: one simple-select operation per source, no declared
// dependencies, matching the Execution Node's default targeted-query mode.
func (o *Orchestrator) planFromSources(sourceIDs []string) *scheduler.Plan {
	ops := make([]*scheduler.Operation, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		kind := "default"
		if adapter, ok := o.adapters[id]; ok {
			if ds, err := o.registry.GetSource(context.Background(), id); err == nil {
				kind = ds.Kind
			}
			_ = adapter
		}
		ops = append(ops, &scheduler.Operation{
			ID:         id,
			SourceID:   id,
			SourceKind: kind,
			Complexity: scheduler.ComplexitySimpleSelect,
		})
	}
	return &scheduler.Plan{Operations: ops}
}

func stepExecutionsFromResults(results []*scheduler.OpResult) []StepExecution {
	steps := make([]StepExecution, 0, len(results))
	for _, res := range results {
		step := StepExecution{Name: res.OperationID}
		if res.Status == scheduler.OpSucceeded {
			step.Status = "completed"
			step.Output = map[string]interface{}{"data": res.Data}
		} else {
			step.Status = "failed"
			if res.Err != nil {
				step.Error = res.Err.Error()
			}
		}
		steps = append(steps, step)
	}
	return steps
}

// --- C13 performance tracking: last-100 samples per route ---

type routeSample struct {
	success bool
	elapsed time.Duration
}

// routePerformanceTracker keeps the last 100 performance samples per route,
// per spec.md §4.13, feeding optimize_future_queries.
type routePerformanceTracker struct {
	mu      sync.Mutex
	samples map[Route][]routeSample
}

func newRoutePerformanceTracker() *routePerformanceTracker {
	return &routePerformanceTracker{samples: make(map[Route][]routeSample)}
}

const maxPerformanceSamples = 100

func (t *routePerformanceTracker) record(route Route, success bool, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := append(t.samples[route], routeSample{success: success, elapsed: elapsed})
	if len(s) > maxPerformanceSamples {
		s = s[len(s)-maxPerformanceSamples:]
	}
	t.samples[route] = s
}

// RouteStats summarizes a route's recent performance for
// optimize_future_queries.
type RouteStats struct {
	Route             Route         `json:"route"`
	SampleCount       int           `json:"sample_count"`
	SuccessRate       float64       `json:"success_rate"`
	MeanTime          time.Duration `json:"mean_time_ns"`
	MigrationReady    bool          `json:"migration_ready"`
}

// report computes RouteStats for every route seen so far. A route is
// "migration ready" once it has at least 20 samples and a success rate at
// or above 95%, mirroring how the traditional route would be judged safe
// to retire in favor of langgraph/hybrid.
func (t *routePerformanceTracker) report() []RouteStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	routes := make([]string, 0, len(t.samples))
	for r := range t.samples {
		routes = append(routes, string(r))
	}
	sort.Strings(routes)

	out := make([]RouteStats, 0, len(routes))
	for _, rs := range routes {
		route := Route(rs)
		samples := t.samples[route]
		var succeeded int
		var total time.Duration
		for _, s := range samples {
			if s.success {
				succeeded++
			}
			total += s.elapsed
		}
		var mean time.Duration
		var rate float64
		if len(samples) > 0 {
			mean = total / time.Duration(len(samples))
			rate = float64(succeeded) / float64(len(samples))
		}
		out = append(out, RouteStats{
			Route:          route,
			SampleCount:    len(samples),
			SuccessRate:    rate,
			MeanTime:       mean,
			MigrationReady: len(samples) >= 20 && rate >= 0.95,
		})
	}
	return out
}
