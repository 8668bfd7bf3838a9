// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	output   *bedrockruntime.ConverseOutput
	err      error
	captured *bedrockruntime.ConverseInput
}

func (f *fakeRuntime) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.captured = params
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

func newTestProvider(rt bedrockClient) *Provider {
	return &Provider{client: rt, region: "us-east-1", model: DefaultModel, healthy: true}
}

func TestProvider_Complete(t *testing.T) {
	fake := &fakeRuntime{
		output: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
				Role: brtypes.ConversationRoleAssistant,
				Content: []brtypes.ContentBlock{
					&brtypes.ContentBlockMemberText{Value: "hello there"},
				},
			}},
			Usage: &brtypes.TokenUsage{
				InputTokens:  aws.Int32(12),
				OutputTokens: aws.Int32(4),
				TotalTokens:  aws.Int32(16),
			},
			StopReason: brtypes.StopReasonEndTurn,
		},
	}
	p := newTestProvider(fake)

	resp, err := p.Complete(context.Background(), CompletionRequest{
		Prompt:       "hi",
		SystemPrompt: "be nice",
		MaxTokens:    256,
		Temperature:  0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 12, resp.Usage.InputTokens)
	assert.Equal(t, 4, resp.Usage.OutputTokens)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
	assert.True(t, p.IsHealthy())

	require.NotNil(t, fake.captured)
	assert.Equal(t, DefaultModel, *fake.captured.ModelId)
	require.Len(t, fake.captured.Messages, 1)
	assert.Equal(t, brtypes.ConversationRoleUser, fake.captured.Messages[0].Role)
	textBlock, ok := fake.captured.Messages[0].Content[0].(*brtypes.ContentBlockMemberText)
	require.True(t, ok)
	assert.Equal(t, "hi", textBlock.Value)
	require.Len(t, fake.captured.System, 1)
	require.NotNil(t, fake.captured.InferenceConfig)
	assert.Equal(t, int32(256), *fake.captured.InferenceConfig.MaxTokens)
}

func TestProvider_CompleteUsesDefaultMaxTokens(t *testing.T) {
	fake := &fakeRuntime{output: &bedrockruntime.ConverseOutput{StopReason: brtypes.StopReasonEndTurn}}
	p := newTestProvider(fake)

	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.NotNil(t, fake.captured.InferenceConfig)
	assert.Equal(t, int32(DefaultMaxTokens), *fake.captured.InferenceConfig.MaxTokens)
	assert.Empty(t, fake.captured.System, "no system prompt should mean no System blocks")
}

func TestProvider_CompleteErrorMarksUnhealthy(t *testing.T) {
	p := newTestProvider(&fakeRuntime{err: errors.New("boom")})

	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.False(t, p.IsHealthy())
}

type throttleErr struct{}

func (throttleErr) Error() string        { return "throttled" }
func (throttleErr) ErrorCode() string    { return "ThrottlingException" }
func (throttleErr) ErrorMessage() string { return "rate limited" }
func (throttleErr) ErrorFault() smithy.ErrorFault {
	return smithy.FaultUnknown
}

func TestProvider_CompleteRateLimited(t *testing.T) {
	p := newTestProvider(&fakeRuntime{err: throttleErr{}})

	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}
