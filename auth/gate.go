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

package auth

import (
	"context"
	"net/http"
	"strings"
)

const sessionCookieName = "ceneca_session"

var publicExact = map[string]bool{
	"/health":          true,
	"/auth/login":      true,
	"/auth/callback":   true,
	"/auth/health":     true,
	"/docs":            true,
	"/openapi.json":    true,
	"/favicon.ico":     true,
}

var publicPrefixes = []string{"/auth/", "/static/", "/assets/"}

// IsPublicRoute reports whether path is reachable without a session.
func IsPublicRoute(path string) bool {
	if publicExact[path] {
		return true
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Mode selects the Request Auth Gate's enforcement posture.
type Mode string

const (
	ModeStrict   Mode = "strict"
	ModeOptional Mode = "optional"
)

// Gate validates the session attached to an inbound request (C5).
type Gate struct {
	sessions    Store
	mode        Mode
	initialized bool
	enabled     bool
}

// NewGate builds a Request Auth Gate over the given session store.
// enabled/initialized model the two ways strict mode can refuse outright:
// auth turned off entirely, or the gate constructed before its
// dependencies (e.g. the session store) were ready.
func NewGate(sessions Store, mode Mode, enabled bool) *Gate {
	return &Gate{sessions: sessions, mode: mode, initialized: sessions != nil, enabled: enabled}
}

// ExtractSessionID reads the session id from the cookie first, falling
// back to the Authorization bearer header, per spec.md §4.5.
func ExtractSessionID(r *http.Request) string {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// Authenticate validates the request's session. In ModeOptional it never
// raises: it returns (nil, nil) wherever strict mode would fail. In
// ModeStrict it returns a typed *Error for every failure path.
func (g *Gate) Authenticate(r *http.Request) (*Session, *Error) {
	if IsPublicRoute(r.URL.Path) {
		return nil, nil
	}

	strict := g.mode == ModeStrict

	if !g.enabled {
		if strict {
			return nil, ServiceUnavailable("authentication is disabled")
		}
		return nil, nil
	}
	if !g.initialized {
		if strict {
			return nil, ServiceUnavailable("authentication is not initialized")
		}
		return nil, nil
	}

	sessionID := ExtractSessionID(r)
	if sessionID == "" {
		if strict {
			return nil, Unauthorized("no session presented")
		}
		return nil, nil
	}

	sess, err := g.sessions.Get(r.Context(), sessionID)
	if err != nil {
		if strict {
			return nil, Unauthorized("session lookup failed")
		}
		return nil, nil
	}
	if sess == nil {
		_, _ = g.sessions.Delete(r.Context(), sessionID)
		if strict {
			return nil, Unauthorized("session missing or expired")
		}
		return nil, nil
	}

	return sess, nil
}

// RequireRole passes iff any of roles intersects the session's own roles.
func RequireRole(sess *Session, roles ...string) bool {
	if sess == nil {
		return false
	}
	return sess.HasRole(roles...)
}

// RequireAdmin is RequireRole(sess, "admin").
func RequireAdmin(sess *Session) bool {
	return RequireRole(sess, "admin")
}

// contextKey avoids collisions with other packages' context keys.
type contextKey string

const sessionContextKey contextKey = "auth.session"

// WithSession attaches a validated session to ctx for downstream handlers.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionFromContext retrieves a session attached by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(*Session)
	return sess, ok
}

// Middleware wraps an http.Handler with the Request Auth Gate, rejecting
// strict-mode failures before the handler runs and attaching the session
// (if any) to the request context otherwise.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, authErr := g.Authenticate(r)
		if authErr != nil {
			status := http.StatusUnauthorized
			if authErr.Kind == KindServiceUnavailable {
				status = http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":"` + string(authErr.Kind) + `","message":"` + authErr.Message + `","recoverable":false,"login_url":"` + authErr.LoginURL + `"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}
