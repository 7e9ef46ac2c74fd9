package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/rs/zerolog/log"

	"rot/message"
	"rot/tool"
)

const AnthropicDefaultModel = "claude-opus-4-5"
const AnthropicAPIKeySecretName = "ANTHROPIC_API_KEY"

var anthropicModels = []string{
	"claude-opus-4-5",
	"claude-sonnet-4-5",
	"claude-haiku-4-5",
}

// AnthropicProvider streams anthropic-sdk-go's typed content_block_* events
// through anthropicDecoder into the normalized StreamEvent alphabet,
// generalized from sidekick's llm.AnthropicToolChat (which fed the same SDK
// events into the old flat ChatMessageDelta shape).
type AnthropicProvider struct {
	Secrets SecretManager
	model   string
}

func NewAnthropicProvider(secrets SecretManager) *AnthropicProvider {
	return &AnthropicProvider{Secrets: secrets, model: AnthropicDefaultModel}
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) Models() []string      { return anthropicModels }
func (p *AnthropicProvider) CurrentModel() string  { return p.model }

func (p *AnthropicProvider) SetModel(model string) error {
	for _, m := range anthropicModels {
		if m == model {
			p.model = model
			return nil
		}
	}
	return fmt.Errorf("anthropic: unknown model %q", model)
}

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (CompleteResponse, error) {
	s, err := p.Stream(ctx, req)
	if err != nil {
		return CompleteResponse{}, err
	}
	return Drain(ctx, s)
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (*Stream, error) {
	token, err := p.Secrets.GetSecret(AnthropicAPIKeySecretName)
	if err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	client := anthropic.NewClient(
		option.WithAPIKey(token),
		option.WithHTTPClient(&http.Client{Timeout: 20 * time.Minute}),
	)

	messages, err := anthropicMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(16000)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
		Tools:     anthropicTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Thinking != nil {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.Thinking.BudgetTokens))
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Opt(float64(*req.Temperature))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events := make(chan StreamEvent, 16)

	go func() {
		defer close(events)
		defer cancel()

		stream := client.Messages.NewStreaming(streamCtx, params)
		decoder := newAnthropicDecoder()
		var finalMessage anthropic.Message

		emit := func(ev StreamEvent) {
			select {
			case events <- ev:
			case <-streamCtx.Done():
			}
		}

		for stream.Next() {
			event := stream.Current()
			if err := finalMessage.Accumulate(event); err != nil {
				emit(Error(fmt.Errorf("anthropic: accumulate: %w", err)))
				return
			}

			switch e := event.AsAny().(type) {
			case anthropic.ContentBlockStartEvent:
				for _, ev := range decoder.decodeStart(e.Index, e.ContentBlock) {
					emit(ev)
				}
			case anthropic.ContentBlockDeltaEvent:
				ev := decoder.decodeDelta(e.Index, e.Delta)
				if ev.Kind != "" {
					emit(ev)
				}
			case anthropic.ContentBlockStopEvent:
				ev := decoder.decodeStop(e.Index)
				if ev.Kind != "" {
					emit(ev)
				}
			}
		}

		if err := stream.Err(); err != nil {
			log.Error().Err(err).Msg("anthropic stream error")
			emit(Error(fmt.Errorf("anthropic: stream: %w", err)))
			return
		}

		emit(UsageEvent(anthropicUsage(finalMessage.Usage)))
		emit(Done(anthropicStopReason(finalMessage.StopReason)))
	}()

	return &Stream{Events: events, cancel: cancel}, nil
}

func anthropicMessages(msgs []RequestMessage) ([]anthropic.MessageParam, error) {
	var out []anthropic.MessageParam
	for _, m := range msgs {
		var blocks []anthropic.ContentBlockParamUnion
		for _, b := range m.Content {
			switch b.Type {
			case "text":
				if b.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(b.Text))
				}
			case "tool_call":
				args := map[string]any{}
				if err := json.Unmarshal([]byte(message.RepairJSON(string(b.ToolCallArguments))), &args); err != nil {
					args["invalid_json_stringified"] = string(b.ToolCallArguments)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolCallID, args, b.ToolCallName))
			case "tool_result":
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolCallID, b.ToolResultContent, b.ToolResultIsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		out = append(out, anthropic.MessageParam{
			Role:    anthropicRole(m.Role),
			Content: blocks,
		})
	}

	// Anthropic rejects consecutive same-role messages; merge them.
	var merged []anthropic.MessageParam
	for _, m := range out {
		if len(merged) > 0 && merged[len(merged)-1].Role == m.Role {
			merged[len(merged)-1].Content = append(merged[len(merged)-1].Content, m.Content...)
			continue
		}
		merged = append(merged, m)
	}
	return merged, nil
}

func anthropicRole(role string) anthropic.MessageParamRole {
	switch role {
	case "assistant":
		return anthropic.MessageParamRoleAssistant
	default:
		return anthropic.MessageParamRoleUser
	}
}

func anthropicTools(tools []tool.Spec) []anthropic.ToolUnionParam {
	var out []anthropic.ToolUnionParam
	for _, t := range tools {
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.Opt(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       constant.Object(t.Parameters.Type),
					Properties: t.Parameters.Properties,
					Required:   t.Parameters.Required,
				},
			},
		})
	}
	return out
}
