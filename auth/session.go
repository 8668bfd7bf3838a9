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
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"axonflow/platform/shared/logger"
)

// Session is the server-side record created once an OIDC flow completes.
// expires_at > created_at is an invariant enforced at creation; a session
// is valid iff now < ExpiresAt.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Groups       []string  `json:"groups"`
	Roles        []string  `json:"roles"`
	Provider     string    `json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the session has not yet expired.
func (s *Session) Valid() bool {
	return time.Now().Before(s.ExpiresAt)
}

// HasRole reports whether the session carries any of the given roles.
func (s *Session) HasRole(roles ...string) bool {
	for _, want := range roles {
		for _, have := range s.Roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HealthReport is returned by Store.Health.
type HealthReport struct {
	Backend      string `json:"backend"`
	Healthy      bool   `json:"healthy"`
	ActiveCount  int    `json:"active_count"`
	Detail       string `json:"detail,omitempty"`
}

// Store is the Session Store contract (C3). Switching backends must not
// change the observable behavior of any method.
type Store interface {
	Create(ctx context.Context, userID, email, name string, groups, roles []string, provider string) (string, error)
	Get(ctx context.Context, sessionID string) (*Session, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
	Extend(ctx context.Context, sessionID string, extra time.Duration) (bool, error)
	CountActive(ctx context.Context) (int, error)
	CleanupExpired(ctx context.Context) (int, error)
	Health(ctx context.Context) HealthReport
}

// MemoryStore is the default, in-memory Session Store backend. Safe for
// concurrent use; reads take the read lock, and Get's re-persist-on-access
// path upgrades to the write lock only when it has work to do.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	log      *logger.Logger
}

// NewMemoryStore creates an in-memory session store with the given TTL
// applied to every session created through it.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		log:      logger.New("auth.session.memory"),
	}
}

func (m *MemoryStore) Create(_ context.Context, userID, email, name string, groups, roles []string, provider string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	sess := &Session{
		SessionID:    id,
		UserID:       userID,
		Email:        email,
		DisplayName:  name,
		Groups:       groups,
		Roles:        roles,
		Provider:     provider,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.log.Info("", "", "session created", map[string]interface{}{"session_id": id, "user_id": userID})
	return id, nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if !sess.Valid() {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()
		return nil, nil
	}

	m.mu.Lock()
	sess.LastAccessed = time.Now().UTC()
	m.mu.Unlock()

	cp := *sess
	return &cp, nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(m.sessions, sessionID)
	return true, nil
}

func (m *MemoryStore) Extend(_ context.Context, sessionID string, extra time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[sessionID]
	if !ok || !sess.Valid() {
		return false, nil
	}
	if extra <= 0 {
		extra = m.ttl
	}
	sess.ExpiresAt = sess.ExpiresAt.Add(extra)
	return true, nil
}

func (m *MemoryStore) CountActive(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sess := range m.sessions {
		if sess.Valid() {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.sessions {
		if !sess.Valid() {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) Health(ctx context.Context) HealthReport {
	n, _ := m.CountActive(ctx)
	return HealthReport{Backend: "memory", Healthy: true, ActiveCount: n}
}

// RedisStore is the remote-KV backend. Each session is stored under its
// own key with a per-key TTL slightly longer than the session TTL itself,
// so a session that is merely slow to be read does not vanish mid-request
// while still bounding memory in Redis without an explicit sweep.
//
// The value handed back to the caller (and ultimately set as the session
// cookie / bearer token) is not the bare Redis key: it is a compact HS256
// JWT carrying the key as its "sid" claim and the session's expiry as its
// "exp" claim, signed with signingKey. This lets the Request Auth Gate and
// any other service reject a tampered or expired reference before ever
// touching Redis, instead of trusting whatever opaque string a client
// presents.
type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	keyPrefix  string
	signingKey []byte
	log        *logger.Logger
}

const redisTTLSlack = 60 * time.Second

// sessionClaims is the JWT payload for a Redis-backed session reference.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewRedisStore creates a Redis-backed session store. signingKey must be
// non-empty; it is the HMAC secret used to sign and verify session
// reference tokens (SessionConfig.Secret in the orchestrator's config).
func NewRedisStore(client *redis.Client, ttl time.Duration, signingKey []byte) *RedisStore {
	return &RedisStore{
		client:     client,
		ttl:        ttl,
		keyPrefix:  "axonflow:session:",
		signingKey: signingKey,
		log:        logger.New("auth.session.redis"),
	}
}

func (r *RedisStore) key(id string) string { return r.keyPrefix + id }

// signToken produces the signed reference token for a Redis session key.
func (r *RedisStore) signToken(sessionID string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.signingKey)
}

// parseToken verifies a reference token's signature and expiry and
// returns the Redis key it carries.
func (r *RedisStore) parseToken(tokenString string) (string, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid || claims.SessionID == "" {
		return "", fmt.Errorf("invalid session token")
	}
	return claims.SessionID, nil
}

func (r *RedisStore) Create(ctx context.Context, userID, email, name string, groups, roles []string, provider string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	expiresAt := now.Add(r.ttl)
	sess := &Session{
		SessionID:    id,
		UserID:       userID,
		Email:        email,
		DisplayName:  name,
		Groups:       groups,
		Roles:        roles,
		Provider:     provider,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    expiresAt,
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(id), payload, r.ttl+redisTTLSlack).Err(); err != nil {
		return "", fmt.Errorf("redis set: %w", err)
	}

	token, err := r.signToken(id, expiresAt)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	r.log.Info("", "", "session created", map[string]interface{}{"session_id": id, "user_id": userID})
	return token, nil
}

func (r *RedisStore) Get(ctx context.Context, sessionToken string) (*Session, error) {
	sessionID, err := r.parseToken(sessionToken)
	if err != nil {
		return nil, nil
	}

	payload, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if !sess.Valid() {
		_ = r.client.Del(ctx, r.key(sessionID)).Err()
		return nil, nil
	}

	sess.LastAccessed = time.Now().UTC()
	updated, err := json.Marshal(&sess)
	if err == nil {
		remaining := time.Until(sess.ExpiresAt) + redisTTLSlack
		_ = r.client.Set(ctx, r.key(sessionID), updated, remaining).Err()
	}

	return &sess, nil
}

func (r *RedisStore) Delete(ctx context.Context, sessionToken string) (bool, error) {
	sessionID, err := r.parseToken(sessionToken)
	if err != nil {
		return false, nil
	}
	n, err := r.client.Del(ctx, r.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

func (r *RedisStore) Extend(ctx context.Context, sessionToken string, extra time.Duration) (bool, error) {
	sessionID, err := r.parseToken(sessionToken)
	if err != nil {
		return false, nil
	}
	sess, err := r.Get(ctx, sessionToken)
	if err != nil || sess == nil {
		return false, err
	}
	if extra <= 0 {
		extra = r.ttl
	}
	sess.ExpiresAt = sess.ExpiresAt.Add(extra)
	payload, err := json.Marshal(sess)
	if err != nil {
		return false, fmt.Errorf("marshal session: %w", err)
	}
	remaining := time.Until(sess.ExpiresAt) + redisTTLSlack
	if err := r.client.Set(ctx, r.key(sessionID), payload, remaining).Err(); err != nil {
		return false, fmt.Errorf("redis set: %w", err)
	}
	return true, nil
}

func (r *RedisStore) CountActive(ctx context.Context) (int, error) {
	var cursor uint64
	count := 0
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.keyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

// CleanupExpired is a no-op on Redis: key-level TTL already reclaims
// expired sessions. It is kept to satisfy Store's contract uniformly.
func (r *RedisStore) CleanupExpired(_ context.Context) (int, error) { return 0, nil }

func (r *RedisStore) Health(ctx context.Context) HealthReport {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return HealthReport{Backend: "redis", Healthy: false, Detail: err.Error()}
	}
	n, _ := r.CountActive(ctx)
	return HealthReport{Backend: "redis", Healthy: true, ActiveCount: n}
}
