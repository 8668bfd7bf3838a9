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
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq" // PostgreSQL driver, registry + audit backing store
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"axonflow/platform/auth"
	"axonflow/platform/connectors/base"
	"axonflow/platform/graphbuilder"
	"axonflow/platform/orchestrator/llm"
	_ "axonflow/platform/orchestrator/llm/sdk" // registers the "custom" provider factory
	"axonflow/platform/orchestrator/nodes"
	"axonflow/platform/registry"
	"axonflow/platform/scheduler"
	"axonflow/platform/shared/logger"
)

// OrchestratorRequest is the internal request shape threaded through the
// completion service, the audit logger, and every route implementation.
type OrchestratorRequest struct {
	RequestID   string                 `json:"request_id"`
	Query       string                 `json:"query"`
	RequestType string                 `json:"request_type"`
	User        UserContext            `json:"user"`
	Client      ClientContext          `json:"client"`
	Context     map[string]interface{} `json:"context"`
	Timestamp   time.Time              `json:"timestamp"`
}

// UserContext identifies the caller driving a request, derived from the
// session (C4/C5) when one is present.
type UserContext struct {
	ID          int      `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	TenantID    string   `json:"tenant_id"`
}

// ClientContext identifies the calling application/tenant for usage
// tracking, independent of the end user.
type ClientContext struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OrgID    string `json:"org_id"`
	TenantID string `json:"tenant_id"`
}

// PolicyEvaluationResult records the Request Auth Gate's (C5) decision on a
// request, surfaced into the audit trail alongside the completion-service
// response.
type PolicyEvaluationResult struct {
	Allowed          bool     `json:"allowed"`
	AppliedPolicies  []string `json:"applied_policies"`
	RiskScore        float64  `json:"risk_score"`
	RequiredActions  []string `json:"required_actions"`
	ProcessingTimeMs int64    `json:"processing_time_ms"`
	DatabaseAccessed bool     `json:"database_accessed,omitempty"`
}

// ProviderInfo reports which completion-service provider served a request
// and at what cost, surfaced back through StepExecution.Output.
type ProviderInfo struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	ResponseTimeMs int64   `json:"response_time_ms"`
	TokensUsed     int     `json:"tokens_used,omitempty"`
	Cost           float64 `json:"cost,omitempty"`
}

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyUser      contextKey = "user"
	ctxKeyClient    contextKey = "client"
)

// Orchestrator is the Integration Orchestrator (C13): the single entry
// point that wires every other component (C1 Schema Registry, C5 Request
// Auth Gate, C7 Trivial Classifier, C8 Workflow State, C9 Output
// Aggregator, C10 Streaming Coordinator, C11 Phase Nodes, C12 Execution
// Scheduler, C14 Dynamic Graph Builder) together and picks a route for
// every inbound question.
type Orchestrator struct {
	cfg *Config
	log *logger.Logger

	registry registry.Registry
	sessions auth.Store
	gate     *auth.Gate
	oidc     *auth.Handler

	adapters map[string]base.Adapter

	state        *Store
	aggregatorDir string
	archiver     *Archiver
	coordinator  *Coordinator

	classifier         *Classifier
	graphBuilder       *graphbuilder.Builder
	classificationNode *nodes.ClassificationNode
	metadataNode       *nodes.MetadataNode
	planningNode       *nodes.PlanningNode
	executionNode      *nodes.ExecutionNode
	visualizationNode  *nodes.VisualizationNode
	scheduler          *scheduler.Scheduler

	llmRouter        *LLMRouter
	workflowEngine   *WorkflowEngine
	planningEngine   *PlanningEngine
	resultAggregator *ResultAggregator
	auditLogger      *AuditLogger
	metricsCollector *MetricsCollector

	perf *routePerformanceTracker
}

// New assembles an Orchestrator from already-constructed dependencies. Run
// is the process entry point that builds these from environment/config and
// calls New; tests construct an Orchestrator directly with fakes.
func New(cfg *Config, reg registry.Registry, sessions auth.Store, adapters map[string]base.Adapter, router *LLMRouter) *Orchestrator {
	if adapters == nil {
		adapters = make(map[string]base.Adapter)
	}

	var rawRouter *llm.Router
	if router != nil && router.unified != nil {
		rawRouter = router.unified.Router()
	}

	sched := scheduler.New(schedulerOptions(cfg)...)

	o := &Orchestrator{
		cfg:                cfg,
		log:                logger.New("orchestrator"),
		registry:           reg,
		sessions:           sessions,
		gate:               auth.NewGate(sessions, auth.ModeOptional, cfg != nil && cfg.SSO.Enabled),
		adapters:           adapters,
		state:              NewStore(),
		aggregatorDir:      "./data/aggregator",
		classifier:         NewClassifier(rawRouter),
		graphBuilder:       graphbuilder.New(),
		classificationNode: nodes.NewClassificationNode(reg),
		metadataNode:       nodes.NewMetadataNode(adapters),
		planningNode:       nodes.NewPlanningNode(),
		executionNode:      nodes.NewExecutionNode(adapters, sched),
		visualizationNode:  nodes.NewVisualizationNode(),
		scheduler:          sched,
		llmRouter:          router,
		workflowEngine:     NewWorkflowEngine(),
		planningEngine:     NewPlanningEngine(router),
		resultAggregator:   NewResultAggregator(router),
		auditLogger:        NewAuditLogger(os.Getenv("DATABASE_URL")),
		metricsCollector:   NewMetricsCollector(),
		perf:               newRoutePerformanceTracker(),
	}
	o.coordinator = NewCoordinator(o.state)
	o.workflowEngine.InitializeWithDependencies(router)
	if router != nil {
		router.WithMetrics(o.metricsCollector)
	}
	if err := InitConnectorRegistry(os.Getenv("DATABASE_URL")); err != nil {
		o.log.Error("", "", "connector registry storage init failed", map[string]interface{}{"error": err.Error()})
	}

	if cfg != nil && cfg.SSO.Enabled {
		handler, err := auth.NewHandler(context.Background(), auth.Config{
			Provider:     cfg.SSO.OIDC.Provider,
			ClientID:     cfg.SSO.OIDC.ClientID,
			ClientSecret: cfg.SSO.OIDC.ClientSecret,
			Issuer:       cfg.SSO.OIDC.Issuer,
			DiscoveryURL: cfg.SSO.OIDC.DiscoveryURL,
			RedirectURI:  cfg.SSO.OIDC.RedirectURI,
			Scopes:       cfg.SSO.OIDC.Scopes,
			Claims: auth.ClaimsMapping{
				Email:  cfg.SSO.OIDC.Claims.Email,
				Name:   cfg.SSO.OIDC.Claims.Name,
				Groups: cfg.SSO.OIDC.Claims.Groups,
			},
			RoleMappings: cfg.RoleMappings,
			PendingTTL:   10 * time.Minute,
		}, sessions)
		if err != nil {
			o.log.Error("", "", "oidc handler initialization failed", map[string]interface{}{"error": err.Error()})
		} else {
			o.oidc = handler
		}
	}

	return o
}

func schedulerOptions(cfg *Config) []scheduler.Option {
	if cfg == nil {
		return nil
	}
	var opts []scheduler.Option
	for kind, limit := range cfg.Scheduler.SourceLimits {
		opts = append(opts, scheduler.WithSourceLimit(kind, limit))
	}
	if cfg.Scheduler.GlobalCap > 0 {
		opts = append(opts, scheduler.WithGlobalCap(cfg.Scheduler.GlobalCap))
	}
	if cfg.Scheduler.WeightCap > 0 {
		opts = append(opts, scheduler.WithWeightCap(cfg.Scheduler.WeightCap))
	}
	return opts
}

// newSessionStore builds the Session Store backend named by the
// SESSION_BACKEND environment variable ("redis" or "memory", default
// "memory"). The Redis backend signs session reference tokens with
// cfg.Session.Secret and refuses to start without one.
func newSessionStore(cfg *Config) auth.Store {
	ttl := cfg.SessionTimeout()

	if strings.ToLower(os.Getenv("SESSION_BACKEND")) != "redis" {
		return auth.NewMemoryStore(ttl)
	}

	if cfg.Session.Secret == "" {
		log.Fatal("orchestrator: session.secret (or CENECA_SESSION_SECRET) is required when SESSION_BACKEND=redis")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	return auth.NewRedisStore(client, ttl, []byte(cfg.Session.Secret))
}

// Run is the exported process entry point for the orchestrator service. It
// loads configuration, bootstraps the completion service and the registry,
// wires the HTTP surface, and blocks serving until the process exits.
func Run() {
	log.Println("Starting orchestrator...")

	configPath := os.Getenv("ORCHESTRATOR_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("orchestrator: config: %v", err)
	}

	reg, err := registry.NewPostgresRegistry(cfg.Registry.DSN)
	if err != nil {
		log.Fatalf("orchestrator: registry: %v", err)
	}

	sessions := newSessionStore(cfg)

	router, err := NewLLMRouterFromEnv()
	if err != nil {
		log.Printf("orchestrator: completion service unavailable, falling back to heuristics: %v", err)
		router = nil
	}

	adapters, err := loadConfiguredAdapters(context.Background())
	if err != nil {
		log.Printf("orchestrator: adapter wiring incomplete: %v", err)
	}

	o := New(cfg, reg, sessions, adapters, router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      o.buildRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	log.Printf("orchestrator listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("orchestrator: server: %v", err)
	}
}

// loadConfiguredAdapters reads DATA_SOURCE_IDS (comma-separated) and, for
// each id, DATA_SOURCE_<ID>_TYPE to decide which connector to build,
// following connectors/config's env-driven loader convention.
func loadConfiguredAdapters(ctx context.Context) (map[string]base.Adapter, error) {
	adapters := make(map[string]base.Adapter)
	ids := splitNonEmpty(os.Getenv("DATA_SOURCE_IDS"), ",")
	for _, id := range ids {
		kind := os.Getenv(fmt.Sprintf("DATA_SOURCE_%s_TYPE", id))
		adapter, err := newAdapterForKind(kind)
		if err != nil {
			return adapters, fmt.Errorf("orchestrator: data source %q: %w", id, err)
		}
		if adapter == nil {
			continue
		}
		adapters[id] = adapter
	}
	return adapters, nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// buildRouter assembles the HTTP surface: auth endpoints (§6), the query
// entry point, session-admin endpoints, and observability endpoints.
func (o *Orchestrator) buildRouter() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", o.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/auth/login", o.loginHandler).Methods(http.MethodPost)
	r.HandleFunc("/auth/callback", o.callbackHandler).Methods(http.MethodGet)
	r.HandleFunc("/auth/user", o.currentUserHandler).Methods(http.MethodGet)
	r.HandleFunc("/auth/logout", o.logoutHandler).Methods(http.MethodPost)
	r.HandleFunc("/auth/health", o.authHealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/auth/sessions", o.listSessionsHandler).Methods(http.MethodGet)
	r.HandleFunc("/auth/sessions/cleanup", o.cleanupSessionsHandler).Methods(http.MethodPost)

	r.HandleFunc("/query", o.queryHandler).Methods(http.MethodPost)
	r.HandleFunc("/workflows/{session_id}", o.getWorkflowStateHandler).Methods(http.MethodGet)
	r.HandleFunc("/optimize", o.optimizeFutureQueriesHandler).Methods(http.MethodGet)
	r.HandleFunc("/admin/metrics", o.adminMetricsHandler).Methods(http.MethodGet)
	r.HandleFunc("/audit/search", o.auditSearchHandler).Methods(http.MethodGet)

	r.Use(o.gate.Middleware)

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(r)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (o *Orchestrator) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"workflow_engine":   o.workflowEngine.IsHealthy(),
		"completion_router": o.llmRouter.IsHealthy(),
	})
}

// --- Auth handlers (spec.md §6) ---

func (o *Orchestrator) loginHandler(w http.ResponseWriter, r *http.Request) {
	if o.oidc == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sso not configured"})
		return
	}
	result, err := o.oidc.Login(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (o *Orchestrator) callbackHandler(w http.ResponseWriter, r *http.Request) {
	if o.oidc == nil {
		http.Redirect(w, r, "/?auth_error=sso_not_configured", http.StatusFound)
		return
	}

	q := r.URL.Query()
	if errMsg := q.Get("error"); errMsg != "" {
		http.Redirect(w, r, "/?auth_error="+errMsg, http.StatusFound)
		return
	}

	sess, err := o.oidc.Callback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		http.Redirect(w, r, "/?auth_error="+err.Error(), http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "ceneca_session",
		Value:    sess.SessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !o.cfg.DevMode,
		Expires:  sess.ExpiresAt,
	})
	http.Redirect(w, r, "/", http.StatusFound)
}

func (o *Orchestrator) currentUserHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (o *Orchestrator) logoutHandler(w http.ResponseWriter, r *http.Request) {
	id := auth.ExtractSessionID(r)
	if id != "" {
		_, _ = o.sessions.Delete(r.Context(), id)
	}
	http.SetCookie(w, &http.Cookie{Name: "ceneca_session", Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (o *Orchestrator) authHealthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	if o.cfg.SSO.Enabled && o.oidc == nil {
		status = "error"
	} else if !o.cfg.SSO.Enabled {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":           status,
		"sso_enabled":      o.cfg.SSO.Enabled,
		"provider":         o.cfg.SSO.OIDC.Provider,
		"session_manager":  o.sessions.Health(r.Context()),
		"oidc_handler":     o.oidc != nil,
		"mode":             "enterprise",
	})
}

func (o *Orchestrator) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := o.sessions.CountActive(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"active_count": n, "storage": o.sessions.Health(r.Context()).Backend})
}

func (o *Orchestrator) cleanupSessionsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := o.sessions.CleanupExpired(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleaned": n})
}

func (o *Orchestrator) auditSearchHandler(w http.ResponseWriter, r *http.Request) {
	criteria := struct {
		UserEmail   string
		ClientID    string
		StartTime   time.Time
		EndTime     time.Time
		RequestType string
		Limit       int
	}{
		ClientID: r.URL.Query().Get("client_id"),
		Limit:    100,
	}
	entries, err := o.auditLogger.SearchAuditLogs(criteria)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (o *Orchestrator) getWorkflowStateHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["session_id"]
	ws, ok := o.state.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown session"})
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (o *Orchestrator) optimizeFutureQueriesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, o.perf.report())
}

func (o *Orchestrator) adminMetricsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, o.metricsCollector.GetMetrics())
}
