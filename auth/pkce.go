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
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCE generation has no third-party analog among the examples (crypto/rand
// + base64url is how every pack repo that touches secrets does it); kept on
// the standard library per DESIGN.md.

const (
	stateBytes    = 32 // 256 bits
	verifierBytes = 96 // ≥96 bytes per spec.md §4.4
)

func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// newState generates a ≥256-bit URL-safe CSRF state token.
func newState() (string, error) { return randomURLSafe(stateBytes) }

// newCodeVerifier generates a ≥96-byte URL-safe PKCE code verifier.
func newCodeVerifier() (string, error) { return randomURLSafe(verifierBytes) }

// newNonce generates an OIDC nonce value.
func newNonce() (string, error) { return randomURLSafe(stateBytes) }

// codeChallengeS256 derives the PKCE code_challenge for method S256.
func codeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
