// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package bedrock provides an LLM provider implementation backed by the AWS
// Bedrock Converse API, the model-agnostic chat completion surface Bedrock
// exposes in front of Anthropic, Amazon Nova, Meta, and other hosted models.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
)

const (
	// DefaultModel is the default Bedrock model ID.
	DefaultModel = "anthropic.claude-3-5-sonnet-20241022-v2:0"

	// DefaultMaxTokens is the default max output tokens for completions.
	DefaultMaxTokens = 4096
)

// bedrockClient is the subset of *bedrockruntime.Client this package calls,
// narrowed to an interface so tests can substitute a fake.
type bedrockClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Provider implements the LLM provider interface for AWS Bedrock using the
// Converse API.
type Provider struct {
	client  bedrockClient
	region  string
	model   string
	healthy bool
	mu      sync.RWMutex
}

// Config contains configuration for the Bedrock provider.
type Config struct {
	Region          string // Required: AWS region hosting the Bedrock endpoint
	Model           string // Optional: Bedrock model ID (default: Claude 3.5 Sonnet v2)
	AccessKeyID     string // Optional: explicit static credentials
	SecretAccessKey string
	SessionToken    string
}

// CompletionRequest represents a completion request to Bedrock.
type CompletionRequest struct {
	Prompt        string
	SystemPrompt  string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	Model         string
	StopSequences []string
}

// CompletionResponse represents a completion response from Bedrock.
type CompletionResponse struct {
	Content    string
	Model      string
	StopReason string
	Usage      UsageStats
	Latency    time.Duration
}

// UsageStats contains token usage statistics.
type UsageStats struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// NewProvider creates a new Bedrock provider instance, loading AWS
// credentials through the same default-chain-or-static-override pattern
// used by connectors/s3 and connectors/secretsmanager.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("bedrock region is required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	optFns := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		optFns = append(optFns, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Provider{
		client:  bedrockruntime.NewFromConfig(awsCfg),
		region:  cfg.Region,
		model:   model,
		healthy: true,
	}, nil
}

// Name returns a stable identifier for logging.
func (p *Provider) Name() string {
	return "bedrock"
}

// SupportsStreaming indicates if the provider supports streaming responses.
// Bedrock also exposes ConverseStream, but only the synchronous Converse
// path is wired here.
func (p *Provider) SupportsStreaming() bool {
	return false
}

// IsHealthy reports whether the last call to Bedrock succeeded.
func (p *Provider) IsHealthy() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.healthy
}

func (p *Provider) setHealthy(healthy bool) {
	p.mu.Lock()
	p.healthy = healthy
	p.mu.Unlock()
}

// Complete generates a completion by invoking the configured Bedrock model
// through the Converse API, translating the single-turn prompt and optional
// system prompt into Bedrock's Message/SystemContentBlock shapes.
func (p *Provider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = p.model
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		Messages: []brtypes.Message{
			{
				Role: brtypes.ConversationRoleUser,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
	}

	if req.SystemPrompt != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}

	if cfg := p.inferenceConfig(req); cfg != nil {
		input.InferenceConfig = cfg
	}

	out, err := p.client.Converse(ctx, input)
	if err != nil {
		p.setHealthy(false)
		if isRateLimited(err) {
			return nil, fmt.Errorf("bedrock converse rate limited: %w", err)
		}
		return nil, fmt.Errorf("bedrock converse error: %w", err)
	}
	p.setHealthy(true)

	return translateOutput(out, model, start), nil
}

func (p *Provider) inferenceConfig(req CompletionRequest) *brtypes.InferenceConfiguration {
	var cfg brtypes.InferenceConfiguration

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	cfg.MaxTokens = aws.Int32(int32(maxTokens)) //nolint:gosec // Bedrock requires int32

	if req.Temperature > 0 {
		cfg.Temperature = aws.Float32(float32(req.Temperature))
	}
	if req.TopP > 0 {
		cfg.TopP = aws.Float32(float32(req.TopP))
	}
	if len(req.StopSequences) > 0 {
		cfg.StopSequences = req.StopSequences
	}

	return &cfg
}

func translateOutput(out *bedrockruntime.ConverseOutput, model string, start time.Time) *CompletionResponse {
	resp := &CompletionResponse{
		Model:      model,
		StopReason: string(out.StopReason),
		Latency:    time.Since(start),
	}

	if msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if text, ok := block.(*brtypes.ContentBlockMemberText); ok {
				resp.Content += text.Value
			}
		}
	}

	if usage := out.Usage; usage != nil {
		resp.Usage = UsageStats{
			InputTokens:  int(aws.ToInt32(usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(usage.TotalTokens)),
		}
	}

	return resp
}

// isRateLimited reports whether err represents a Bedrock throttling response.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	return false
}
