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

package llm

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// ErrCircuitOpen is returned by Call when the breaker is open and the call
// was short-circuited without reaching the provider.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker gates calls to a single provider, tripping open after a
// run of failures and allowing a single probe call after a recovery
// window before closing again.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold float64 // fraction of recent calls that may fail before opening, in (0,1]
	resetTimeout     time.Duration

	state        CircuitState
	openedAt     time.Time
	totalCalls   int64
	failedCalls  int64
	halfOpenUsed bool
}

// NewCircuitBreaker creates a circuit breaker for the named provider.
// failureThreshold is the failure rate (0.0-1.0) within the current window
// that trips the breaker open; resetTimeout is how long it stays open
// before allowing a half-open probe.
func NewCircuitBreaker(name string, failureThreshold float64, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            CircuitClosed,
	}
}

// Call runs fn if the breaker allows it, and records the outcome.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.recordResult(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.openedAt) >= cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenUsed = false
		} else {
			return false
		}
		fallthrough
	case CircuitHalfOpen:
		if cb.halfOpenUsed {
			return false
		}
		cb.halfOpenUsed = true
		return true
	}
	return false
}

func (cb *CircuitBreaker) recordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		if success {
			cb.state = CircuitClosed
			cb.totalCalls = 0
			cb.failedCalls = 0
		} else {
			cb.state = CircuitOpen
			cb.openedAt = time.Now()
		}
		return
	}

	cb.totalCalls++
	if !success {
		cb.failedCalls++
	}
	if cb.totalCalls >= 10 && cb.GetFailureRateLocked() >= cb.failureThreshold {
		cb.state = CircuitOpen
		cb.openedAt = time.Now()
	}
}

// GetState returns the breaker's current state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetName returns the provider name this breaker guards.
func (cb *CircuitBreaker) GetName() string { return cb.name }

// GetFailureThreshold returns the configured failure-rate threshold.
func (cb *CircuitBreaker) GetFailureThreshold() float64 { return cb.failureThreshold }

// GetResetTimeout returns the configured open-state recovery window.
func (cb *CircuitBreaker) GetResetTimeout() time.Duration { return cb.resetTimeout }

// GetFailureRate returns the failure rate observed in the current window.
func (cb *CircuitBreaker) GetFailureRate() float64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.GetFailureRateLocked()
}

// GetFailureRateLocked computes the failure rate; caller must hold cb.mu.
func (cb *CircuitBreaker) GetFailureRateLocked() float64 {
	if cb.totalCalls == 0 {
		return 0
	}
	return float64(cb.failedCalls) / float64(cb.totalCalls)
}

// Reset forces the breaker back to closed, clearing counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.totalCalls = 0
	cb.failedCalls = 0
	cb.halfOpenUsed = false
}

// CircuitBreakerRegistry holds one breaker per provider name.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	defaultThreshold float64
	defaultReset     time.Duration
}

// NewCircuitBreakerRegistry creates a registry using the given defaults for
// breakers created on first use.
func NewCircuitBreakerRegistry(defaultThreshold float64, defaultReset time.Duration) *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{
		breakers:         make(map[string]*CircuitBreaker),
		defaultThreshold: defaultThreshold,
		defaultReset:     defaultReset,
	}
}

// Get returns the breaker for name, creating one with the registry's
// defaults on first access.
func (r *CircuitBreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, r.defaultThreshold, r.defaultReset)
	r.breakers[name] = cb
	return cb
}
