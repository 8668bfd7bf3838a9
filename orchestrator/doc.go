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

/*
Package orchestrator provides the AxonFlow query orchestration agent - the
service that turns a natural-language question into results pulled from one
or more underlying data sources.

# Overview

The Orchestrator receives an authenticated question, decides how much
machinery the question actually needs, and routes it accordingly:

  - Trivial classification short-circuits simple lookups before any
    planning or LLM call happens.
  - A traditional single-pass route handles low-complexity, single-source
    queries directly against an adapter.
  - A LangGraph-style route plans a multi-step workflow across adapters for
    complex or cross-source queries, executing steps through the scheduler
    and aggregating their results.
  - A hybrid route attempts the graph path and falls back to the
    traditional path on failure, unless the deployment is running in
    DevMode.

# Architecture

A request moves through:

	Session/OIDC → Request Auth Gate → Route Decision → Execution → Audit

Route decision is driven by query complexity, cross-source fan-out, and
parallelization potential (see decideRoute in query.go). Execution is either
a direct adapter call or a scheduled workflow; both paths report through the
same audit trail.

# LLM Router

LLMRouter wraps the llm package's provider registry and unified router to
give the planning engine, the workflow engine's LLM-backed steps, and the
result aggregator a single entry point for completions:

  - Multi-provider routing with health-aware provider selection
  - Graceful fallback to heuristic analysis or simple concatenation when no
    provider is configured or a call fails
  - Cost and latency reporting via ProviderInfo

Example:

	router, err := NewLLMRouterFromEnv()
	response, providerInfo, err := router.RouteRequest(ctx, request)

# Request Auth Gate

Every request is evaluated against the configured role mappings and session
before it reaches a route. The audit trail's PolicyEvaluationResult shape
(allowed, applied policies, a risk score, required follow-up actions) is
carried for a future policy layer; today every completed request logs with
policyResult nil, which LogSuccessfulRequest treats as unconditionally
allowed.

# Multi-Step Planning

The PlanningEngine decomposes a query into an executable Workflow when the
route decision calls for it:

  - Analyzes the query via the LLM router, falling back to heuristic
    decomposition when no provider answers
  - Builds a graph of steps with dependencies
  - Executes steps through the WorkflowEngine against the scheduler
  - Aggregates step outputs using the ResultAggregator

# Data Source Adapters

Adapters implement a common contract over heterogeneous backends -
PostgreSQL, MongoDB, and Redis are built in. newAdapterInstance resolves a
configured source kind to its adapter; unrecognized kinds are rejected at
startup rather than silently ignored.

# Usage

	// Start the Orchestrator service
	orchestrator.Run()

	// The Orchestrator reads configuration from environment variables:
	// PORT            - HTTP server port
	// DATABASE_URL    - session/audit store connection string
	// OPENAI_API_KEY  - OpenAI API key (optional)
	// ANTHROPIC_API_KEY - Anthropic API key (optional)
	// BEDROCK_REGION  - AWS Bedrock region (optional)
	// OLLAMA_ENDPOINT - Ollama endpoint URL (optional)

# Thread Safety

All exported functions and types in this package are safe for concurrent
use. The Orchestrator handles multiple simultaneous requests using
goroutines with proper synchronization via sync.RWMutex.

# Metrics

MCP connector calls are instrumented with Prometheus:

  - axonflow_connector_calls_total - Connector calls by connector/status
  - axonflow_connector_duration_milliseconds - Connector call latency
  - axonflow_connector_errors_total - Connector errors by connector/reason
*/
package orchestrator
