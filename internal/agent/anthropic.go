package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "goalwise/internal/errors"
)

// AnthropicRuntime is a Runtime backed by the Anthropic Messages API.
type AnthropicRuntime struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicRuntime creates a runtime for model. Extra request options
// are passed to the client, e.g. option.WithBaseURL in tests.
func NewAnthropicRuntime(apiKey, model string, maxTokens int64, opts ...option.RequestOption) *AnthropicRuntime {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicRuntime{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}
}

// Step streams one message. Text deltas go to onText; tool calls are read
// from the accumulated message once the stream ends.
func (r *AnthropicRuntime) Step(ctx context.Context, req StepRequest, onText func(string)) (*StepResponse, error) {
	params := anthropic.MessageNewParams{
		Model:     r.model,
		MaxTokens: r.maxTokens,
		Messages:  toMessageParams(req.Turns),
		Tools:     toToolParams(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.CallerID != "" {
		params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(req.CallerID)}
	}
	if !req.AllowTools && len(params.Tools) > 0 {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	}

	stream := r.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrAssistantUnavailable, err)
		}
		if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
				onText(delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrAssistantUnavailable, err)
	}

	resp := &StepResponse{}
	var text strings.Builder
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: b.ID, Name: b.Name, Arguments: b.Input})
		}
	}
	resp.Text = text.String()
	return resp, nil
}

func toMessageParams(turns []Turn) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		var blocks []anthropic.ContentBlockParamUnion
		if t.Text != "" {
			blocks = append(blocks, anthropic.NewTextBlock(t.Text))
		}
		for _, c := range t.ToolCalls {
			input := c.Arguments
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, input, c.Name))
		}
		for _, res := range t.ToolResults {
			blocks = append(blocks, anthropic.NewToolResultBlock(res.CallID, res.Content, res.IsError))
		}
		if len(blocks) == 0 {
			continue
		}
		if t.Role == RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func toToolParams(specs []ToolSpec) []anthropic.ToolUnionParam {
	if len(specs) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anthropic.String(s.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: s.Schema.Properties,
					Required:   s.Schema.Required,
				},
			},
		})
	}
	return out
}
