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
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"axonflow/platform/shared/logger"
)

// FlowState names a position in the OIDC state machine (spec.md §4.4).
type FlowState string

const (
	FlowInit        FlowState = "init"
	FlowPending     FlowState = "pending"
	FlowExchanging  FlowState = "exchanging"
	FlowValidating  FlowState = "validating"
	FlowProvisioning FlowState = "provisioning"
	FlowDone        FlowState = "done"
)

// ClaimsMapping names which ID-token/userinfo claims carry identity fields.
type ClaimsMapping struct {
	Email  string
	Name   string
	Groups string
}

// Config configures the OIDC Handler.
type Config struct {
	Provider      string
	ClientID      string
	ClientSecret  string
	Issuer        string
	DiscoveryURL  string
	RedirectURI   string
	Scopes        []string
	Claims        ClaimsMapping
	RoleMappings  map[string]string // group -> role
	PendingTTL    time.Duration     // how long an Init state survives unclaimed
}

// pendingFlow is what Init stores until Exchanging claims it; single-use.
type pendingFlow struct {
	verifier  string
	nonce     string
	createdAt time.Time
}

// Handler drives the authorization-code + PKCE flow end to end: Init,
// Exchanging, Validating, Provisioning, Done. Discovery document and JWKS
// are fetched once and cached for the process lifetime, per spec.md §4.4.
type Handler struct {
	cfg      Config
	provider *oidc.Provider
	verifier *oidc.IDTokenVerifier
	oauth2   *oauth2.Config
	sessions Store

	mu      sync.Mutex
	pending map[string]*pendingFlow

	log *logger.Logger
}

// NewHandler discovers the provider's configuration (issuer metadata +
// JWKS) once, ahead of serving any request, matching the cache-for-process
// -lifetime contract in spec.md §4.4.
func NewHandler(ctx context.Context, cfg Config, sessions Store) (*Handler, error) {
	if cfg.Issuer == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("auth: issuer and client_id are required")
	}
	discoveryURL := cfg.DiscoveryURL
	if discoveryURL == "" {
		discoveryURL = cfg.Issuer
	}

	provider, err := oidc.NewProvider(ctx, discoveryURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discover OIDC provider: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	h := &Handler{
		cfg:      cfg,
		provider: provider,
		verifier: verifier,
		sessions: sessions,
		pending:  make(map[string]*pendingFlow),
		log:      logger.New("auth.oidc"),
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
	}
	return h, nil
}

// LoginResult is the response to POST /auth/login.
type LoginResult struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	Message          string `json:"message"`
}

// Login performs the Init step: generates state, PKCE verifier/challenge,
// and nonce; stores (state -> verifier) in the pending map; returns the
// authorization URL to redirect the user to.
func (h *Handler) Login(_ context.Context) (*LoginResult, error) {
	state, err := newState()
	if err != nil {
		return nil, fmt.Errorf("auth: generate state: %w", err)
	}
	verifier, err := newCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("auth: generate code verifier: %w", err)
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("auth: generate nonce: %w", err)
	}
	challenge := codeChallengeS256(verifier)

	h.mu.Lock()
	h.pending[state] = &pendingFlow{verifier: verifier, nonce: nonce, createdAt: time.Now()}
	h.mu.Unlock()

	authURL := h.oauth2.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("nonce", nonce),
	)

	return &LoginResult{AuthorizationURL: authURL, State: state, Message: "redirect to authorization_url to continue"}, nil
}

// claimPending removes and returns the pending flow for state, enforcing
// single-use: a second call with the same state finds nothing and the
// callback fails as a replay.
func (h *Handler) claimPending(state string) (*pendingFlow, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pf, ok := h.pending[state]
	if ok {
		delete(h.pending, state)
	}
	return pf, ok
}

// sweepExpiredPending drops pending flows nobody ever completed. Not
// required for correctness (claimPending already enforces single-use) but
// bounds memory for abandoned logins.
func (h *Handler) sweepExpiredPending() {
	ttl := h.cfg.PendingTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	cutoff := time.Now().Add(-ttl)
	h.mu.Lock()
	defer h.mu.Unlock()
	for state, pf := range h.pending {
		if pf.createdAt.Before(cutoff) {
			delete(h.pending, state)
		}
	}
}

// Callback completes Exchanging -> Validating -> Provisioning -> Done. No
// partial session is created on any failure path.
func (h *Handler) Callback(ctx context.Context, code, state string) (*Session, error) {
	h.sweepExpiredPending()

	pf, ok := h.claimPending(state)
	if !ok {
		return nil, CallbackError("unknown or already-used state", nil)
	}

	// Exchanging.
	oauth2Token, err := h.oauth2.Exchange(ctx, code,
		oauth2.SetAuthURLParam("code_verifier", pf.verifier))
	if err != nil {
		return nil, TokenExchangeError("token exchange failed", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, TokenValidationError("token response did not include id_token", nil)
	}

	// Validating: exp/nbf/iss/aud plus RS256/ES256 signature verification
	// against the cached JWKS (resolving spec.md's flagged open item).
	idToken, err := h.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, TokenValidationError("id token failed verification", err)
	}
	if idToken.Nonce != "" && idToken.Nonce != pf.nonce {
		return nil, TokenValidationError("nonce mismatch", nil)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, TokenValidationError("failed to parse id token claims", err)
	}

	sub, _ := claims["sub"].(string)
	email := stringClaim(claims, h.claimName("email"))
	if sub == "" || email == "" {
		return nil, IdentityError("id token missing required sub/email claims")
	}

	// Provisioning: userinfo is best-effort; failure does not abort.
	name := stringClaim(claims, h.claimName("name"))
	groups := stringSliceClaim(claims, h.claimName("groups"))

	if userInfo, err := h.provider.UserInfo(ctx, oauth2.StaticTokenSource(oauth2Token)); err == nil {
		var extra map[string]interface{}
		if err := userInfo.Claims(&extra); err == nil {
			if n := stringClaim(extra, h.claimName("name")); n != "" {
				name = n
			}
			if g := stringSliceClaim(extra, h.claimName("groups")); len(g) > 0 {
				groups = g
			}
		}
	} else {
		h.log.Warn("", "", "userinfo fetch failed, continuing with id token claims only", map[string]interface{}{"error": err.Error()})
	}

	roles := h.mapRoles(groups)

	sessionID, err := h.sessions.Create(ctx, sub, email, name, groups, roles, h.cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("auth: create session: %w", err)
	}
	sess, err := h.sessions.Get(ctx, sessionID)
	if err != nil || sess == nil {
		return nil, fmt.Errorf("auth: re-read freshly created session: %w", err)
	}

	h.log.Info("", "", "oidc flow complete", map[string]interface{}{"user_id": sub, "session_id": sessionID})
	return sess, nil
}

func (h *Handler) claimName(field string) string {
	switch field {
	case "email":
		if h.cfg.Claims.Email != "" {
			return h.cfg.Claims.Email
		}
	case "name":
		if h.cfg.Claims.Name != "" {
			return h.cfg.Claims.Name
		}
	case "groups":
		if h.cfg.Claims.Groups != "" {
			return h.cfg.Claims.Groups
		}
	}
	return field
}

func (h *Handler) mapRoles(groups []string) []string {
	if len(h.cfg.RoleMappings) == 0 {
		return []string{"user"}
	}
	seen := make(map[string]bool)
	var roles []string
	for _, g := range groups {
		if role, ok := h.cfg.RoleMappings[g]; ok && !seen[role] {
			seen[role] = true
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return []string{"user"}
	}
	return roles
}

func stringClaim(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}

func stringSliceClaim(claims map[string]interface{}, key string) []string {
	raw, ok := claims[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}
