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

package scheduler

import (
	"context"
	"sync"
	"time"

	"axonflow/platform/connectors/base"
	"axonflow/platform/shared/logger"
)

// maxAdapterRetries bounds the exponential-backoff retry policy applied to
// retryable AdapterError kinds (timeout, connect, rate_limited) per spec.md
// §7's "retry with exponential backoff up to policy cap".
const maxAdapterRetries = 3

// AdapterCall executes one Operation against its source and returns a
// result or an error. Implementations are expected to return *base.AdapterError
// so the scheduler can tell retryable failures from dependents-skipping ones;
// any other error is treated as non-retryable.
type AdapterCall func(ctx context.Context, op *Operation) (interface{}, error)

// Scheduler is the Execution Scheduler (C12): per-source-kind semaphores,
// a global parallelism cap, and the intelligent batching algorithm from
// spec.md §4.12. Safe for concurrent use by multiple in-flight workflows —
// semaphores are process-wide, matching the "no global serialization across
// requests except at the session store" scheduling model.
type Scheduler struct {
	sourceLimits map[string]int
	globalCap    int
	weightCap    int

	mu         sync.Mutex
	semaphores map[string]chan struct{}
	global     chan struct{}

	log *logger.Logger
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithSourceLimit overrides the default semaphore size for a source kind.
func WithSourceLimit(kind string, limit int) Option {
	return func(s *Scheduler) { s.sourceLimits[kind] = limit }
}

// WithGlobalCap overrides the default global parallelism cap.
func WithGlobalCap(n int) Option {
	return func(s *Scheduler) { s.globalCap = n }
}

// WithWeightCap overrides the default per-batch complexity weight cap.
func WithWeightCap(n int) Option {
	return func(s *Scheduler) { s.weightCap = n }
}

// New builds a Scheduler with the fixed defaults from spec.md §4.12, applying
// any overrides.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		sourceLimits: make(map[string]int, len(defaultSourceLimits)),
		globalCap:    DefaultGlobalCap,
		weightCap:    DefaultWeightCap,
		semaphores:   make(map[string]chan struct{}),
		log:          logger.New("scheduler"),
	}
	for kind, limit := range defaultSourceLimits {
		s.sourceLimits[kind] = limit
	}
	for _, opt := range opts {
		opt(s)
	}
	s.global = make(chan struct{}, s.globalCap)
	return s
}

func (s *Scheduler) limitFor(kind string) int {
	if limit, ok := s.sourceLimits[kind]; ok {
		return limit
	}
	return defaultSourceLimit
}

// semaphoreFor returns the (lazily created) buffered channel acting as kind's
// semaphore. Mirrors the double-checked-locking lazy-map pattern used by
// connectors/sdk's MultiTenantRateLimiter.getLimiter.
func (s *Scheduler) semaphoreFor(kind string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sem, ok := s.semaphores[kind]; ok {
		return sem
	}
	sem := make(chan struct{}, s.limitFor(kind))
	s.semaphores[kind] = sem
	return sem
}

// BuildBatches runs the intelligent batching algorithm from spec.md §4.12,
// returning dependency-ordered, per-source-limited, weight-capped batches.
// An unsatisfiable dependency (cycle, or a dependency naming an operation
// absent from the plan) is reported as a *PlanError before any batch runs.
func (s *Scheduler) BuildBatches(plan *Plan) ([][]*Operation, error) {
	if plan == nil || len(plan.Operations) == 0 {
		return nil, newPlanError("empty_plan", "plan has no operations")
	}

	byID := make(map[string]*Operation, len(plan.Operations))
	for _, op := range plan.Operations {
		byID[op.ID] = op
	}
	for _, op := range plan.Operations {
		for _, dep := range op.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, newPlanError("unknown_dependency", op.ID+" depends on unregistered operation "+dep)
			}
		}
	}

	remaining := make(map[string]*Operation, len(plan.Operations))
	for id, op := range byID {
		remaining[id] = op
	}
	completed := make(map[string]bool, len(plan.Operations))

	var batches [][]*Operation
	for len(remaining) > 0 {
		ready := make([]*Operation, 0)
		for id, op := range remaining {
			if dependenciesSatisfied(op, completed) {
				ready = append(ready, op)
				_ = id
			}
		}
		if len(ready) == 0 {
			return nil, newPlanError("cycle", "unsatisfied dependencies remain with no ready operation")
		}

		byKind := groupBySourceKind(ready)

		batch := make([]*Operation, 0)
		usedPerKind := make(map[string]int)
		weightUsed := 0

		for _, kind := range sortedKinds(byKind) {
			for _, op := range byKind[kind] {
				if len(batch) >= s.globalCap {
					break
				}
				if usedPerKind[kind] >= s.limitFor(kind) {
					continue
				}
				w := op.Complexity.Weight()
				if weightUsed+w > s.weightCap {
					continue
				}
				batch = append(batch, op)
				usedPerKind[kind]++
				weightUsed += w
			}
		}

		if len(batch) == 0 {
			// Progress guarantee: force-add the first ready op even if it
			// alone exceeds the weight cap, so the plan never stalls.
			batch = append(batch, ready[0])
		}

		for _, op := range batch {
			completed[op.ID] = true
			delete(remaining, op.ID)
		}
		batches = append(batches, batch)
	}

	return batches, nil
}

func dependenciesSatisfied(op *Operation, completed map[string]bool) bool {
	for _, dep := range op.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

func groupBySourceKind(ops []*Operation) map[string][]*Operation {
	out := make(map[string][]*Operation)
	for _, op := range ops {
		out[op.SourceKind] = append(out[op.SourceKind], op)
	}
	return out
}

func sortedKinds(byKind map[string][]*Operation) []string {
	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	// Deterministic ordering keeps batch composition stable across runs with
	// identical input, which matters for tests and for audit reproducibility.
	for i := 1; i < len(kinds); i++ {
		for j := i; j > 0 && kinds[j] < kinds[j-1]; j-- {
			kinds[j], kinds[j-1] = kinds[j-1], kinds[j]
		}
	}
	return kinds
}

// Execute runs plan to completion: BuildBatches, then for each batch in
// order, dispatches every operation concurrently under its source's
// semaphore and the global cap, emitting an Event per operation as it
// completes. A non-retryable failure marks every not-yet-run dependent
// op as skipped_due_to_dependency without calling its adapter.
func (s *Scheduler) Execute(ctx context.Context, plan *Plan, call AdapterCall, emit func(Event)) ([]*OpResult, error) {
	batches, err := s.BuildBatches(plan)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*OpResult, len(plan.Operations))
	skipped := make(map[string]bool)

	dependents := make(map[string][]string)
	for _, op := range plan.Operations {
		for _, dep := range op.DependsOn {
			dependents[dep] = append(dependents[dep], op.ID)
		}
	}

	for _, batch := range batches {
		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, op := range batch {
			if skipped[op.ID] {
				mu.Lock()
				results[op.ID] = &OpResult{OperationID: op.ID, Status: OpSkippedDueToDependency}
				mu.Unlock()
				continue
			}

			wg.Add(1)
			go func(op *Operation) {
				defer wg.Done()

				sem := s.semaphoreFor(op.SourceKind)
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					mu.Lock()
					results[op.ID] = &OpResult{OperationID: op.ID, Status: OpFailed, Err: ctx.Err()}
					mu.Unlock()
					return
				}
				select {
				case s.global <- struct{}{}:
				case <-ctx.Done():
					<-sem
					mu.Lock()
					results[op.ID] = &OpResult{OperationID: op.ID, Status: OpFailed, Err: ctx.Err()}
					mu.Unlock()
					return
				}
				defer func() { <-s.global; <-sem }()

				data, callErr := callWithRetry(ctx, call, op)

				mu.Lock()
				defer mu.Unlock()
				if callErr != nil {
					results[op.ID] = &OpResult{OperationID: op.ID, Status: OpFailed, Err: callErr}
					if !isRetryable(callErr) {
						markDependentsSkipped(op.ID, dependents, skipped)
					}
					if emit != nil {
						emit(Event{OperationID: op.ID, Status: OpFailed, Err: callErr})
					}
					return
				}
				results[op.ID] = &OpResult{OperationID: op.ID, Status: OpSucceeded, Data: data}
				if emit != nil {
					emit(Event{OperationID: op.ID, Status: OpSucceeded})
				}
			}(op)
		}

		wg.Wait()
	}

	out := make([]*OpResult, 0, len(plan.Operations))
	for _, op := range plan.Operations {
		if r, ok := results[op.ID]; ok {
			out = append(out, r)
		} else {
			out = append(out, &OpResult{OperationID: op.ID, Status: OpSkippedDueToDependency})
		}
	}
	return out, nil
}

// callWithRetry retries call up to maxAdapterRetries times, with exponential
// backoff, as long as the returned error is a retryable *base.AdapterError.
func callWithRetry(ctx context.Context, call AdapterCall, op *Operation) (interface{}, error) {
	var data interface{}
	var err error
	for attempt := 0; attempt <= maxAdapterRetries; attempt++ {
		data, err = call(ctx, op)
		if err == nil || !isRetryable(err) {
			return data, err
		}
		if attempt == maxAdapterRetries {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return data, err
}

func isRetryable(err error) bool {
	if ae, ok := err.(*base.AdapterError); ok {
		return ae.Retryable()
	}
	return false
}

// markDependentsSkipped transitively marks every downstream operation of a
// failed op as skipped, matching "dependents are skipped and reported as
// skipped_due_to_dependency" without re-visiting an already-skipped op.
func markDependentsSkipped(failedID string, dependents map[string][]string, skipped map[string]bool) {
	queue := append([]string(nil), dependents[failedID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if skipped[id] {
			continue
		}
		skipped[id] = true
		queue = append(queue, dependents[id]...)
	}
}
