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

package orchestrator

import (
	"context"
	"regexp"
	"strings"
	"time"

	"axonflow/platform/orchestrator/llm"
	"axonflow/platform/shared/logger"
)

// Tier is the Trivial Classifier's two-way output (C7).
type Tier string

const (
	TierTrivial      Tier = "TRIVIAL"
	TierDataAnalysis Tier = "DATA_ANALYSIS"
)

// Classification is the Trivial Classifier's full result.
type Classification struct {
	Tier             Tier    `json:"tier"`
	Confidence       float64 `json:"confidence"`
	Reasoning        string  `json:"reasoning"`
	EstimatedTimeMs  int     `json:"estimated_time_ms"`
	OperationType    string  `json:"operation_type"`
}

// heuristicPattern matches the keyword vocabulary spec.md §4.7 names
// (analyze|chart|database|join|aggregate) plus the synonyms
// workflow_engine.go's own synthesis-step detector already uses
// (synthesize|combine|final|summary|aggregate|merge), so the fallback
// recognizes the same "this needs real work" signal from either direction.
var heuristicPattern = regexp.MustCompile(`(?i)\b(analyze|analysis|chart|database|join|aggregate|aggregation|synthesize|combine|summary|merge|correlate|trend|compare|visualiz)\w*\b`)

// Classifier is the Trivial Classifier (C7): a single-token completion call
// with a regex-heuristic fallback that must keep working even when every
// completion provider is down.
type Classifier struct {
	router *llm.Router
	log    *logger.Logger
}

// NewClassifier builds a Trivial Classifier. router may be nil, in which
// case every call uses the heuristic fallback directly.
func NewClassifier(router *llm.Router) *Classifier {
	return &Classifier{router: router, log: logger.New("orchestrator.classifier")}
}

const classifierPrompt = `Classify the following user question as exactly one word: TRIVIAL or DATA_ANALYSIS.
TRIVIAL means a simple conversational question needing no data lookup.
DATA_ANALYSIS means the question requires querying, joining, aggregating, or visualizing data.
Respond with exactly one word.

Question: %s`

// Classify returns a Classification for question. It never returns an
// error: a provider failure or an ambiguous/empty model response both fall
// back to the regex heuristic, per spec.md §4.7's "independent of provider"
// requirement.
func (c *Classifier) Classify(ctx context.Context, question string) *Classification {
	start := time.Now()

	if c.router != nil {
		if tier, ok := c.classifyViaModel(ctx, question); ok {
			return &Classification{
				Tier:            tier,
				Confidence:      0.9,
				Reasoning:       "single-token model classification",
				EstimatedTimeMs: int(time.Since(start).Milliseconds()),
				OperationType:   string(tier),
			}
		}
	}

	tier := c.heuristicClassify(question)
	return &Classification{
		Tier:            tier,
		Confidence:      0.6,
		Reasoning:       "regex heuristic fallback",
		EstimatedTimeMs: int(time.Since(start).Milliseconds()),
		OperationType:   string(tier),
	}
}

func (c *Classifier) classifyViaModel(ctx context.Context, question string) (Tier, bool) {
	resp, _, err := c.router.RouteRequest(ctx, llm.CompletionRequest{
		Prompt:      strings.Replace(classifierPrompt, "%s", question, 1),
		MaxTokens:   4,
		Temperature: 0,
	})
	if err != nil {
		c.log.Warn("", "", "trivial classifier model call failed, using heuristic", map[string]interface{}{"error": err.Error()})
		return "", false
	}

	token := strings.ToUpper(strings.TrimSpace(resp.Content))
	switch token {
	case string(TierTrivial):
		return TierTrivial, true
	case string(TierDataAnalysis):
		return TierDataAnalysis, true
	default:
		return "", false
	}
}

// heuristicClassify is the provider-independent fallback path.
func (c *Classifier) heuristicClassify(question string) Tier {
	if heuristicPattern.MatchString(question) {
		return TierDataAnalysis
	}
	return TierTrivial
}
