package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"rot/tool"
)

const OpenAIDefaultModel = "gpt-5-2025-08-07"
const OpenAIAPIKeySecretName = "OPENAI_API_KEY"

var openaiModels = []string{
	"gpt-5-2025-08-07",
	"gpt-5-mini-2025-08-07",
	"o3-2025-04-16",
}

// OpenAIProvider streams go-openai's choices[].delta frames through
// openaiDecoder into the normalized StreamEvent alphabet, generalized from
// sidekick's llm.OpenaiToolChat (which stitched deltas into the old flat
// ChatMessage shape instead of emitting normalized events incrementally).
type OpenAIProvider struct {
	Secrets SecretManager
	BaseURL string
	model   string
}

func NewOpenAIProvider(secrets SecretManager) *OpenAIProvider {
	return &OpenAIProvider{Secrets: secrets, model: OpenAIDefaultModel}
}

func (p *OpenAIProvider) Name() string        { return "openai" }
func (p *OpenAIProvider) Models() []string     { return openaiModels }
func (p *OpenAIProvider) CurrentModel() string { return p.model }

func (p *OpenAIProvider) SetModel(model string) error {
	for _, m := range openaiModels {
		if m == model {
			p.model = model
			return nil
		}
	}
	return fmt.Errorf("openai: unknown model %q", model)
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (CompleteResponse, error) {
	s, err := p.Stream(ctx, req)
	if err != nil {
		return CompleteResponse{}, err
	}
	return Drain(ctx, s)
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (*Stream, error) {
	token, err := p.Secrets.GetSecret(OpenAIAPIKeySecretName)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	config := openai.DefaultConfig(token)
	if p.BaseURL != "" {
		config.BaseURL = p.BaseURL
	}
	client := openai.NewClientWithConfig(config)

	model := req.Model
	if model == "" {
		model = p.model
	}

	ccReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: openaiMessages(req.Messages),
		Tools:    openaiTools(req.Tools),
		Stream:   true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if req.Temperature != nil {
		ccReq.Temperature = *req.Temperature
	}
	if len(ccReq.Tools) > 0 {
		ccReq.ToolChoice = "auto"
	}

	streamCtx, cancel := context.WithCancel(ctx)
	events := make(chan StreamEvent, 16)

	go func() {
		defer close(events)
		defer cancel()

		stream, err := client.CreateChatCompletionStream(streamCtx, ccReq)
		if err != nil {
			select {
			case events <- Error(fmt.Errorf("openai: %w", err)):
			case <-streamCtx.Done():
			}
			return
		}
		defer stream.Close()

		decoder := newOpenAIDecoder()
		var finishReason openai.FinishReason
		var usage *openai.Usage

		emit := func(ev StreamEvent) {
			select {
			case events <- ev:
			case <-streamCtx.Done():
			}
		}

		for {
			res, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				emit(Error(fmt.Errorf("openai: stream: %w", err)))
				return
			}
			if len(res.Choices) == 0 {
				usage = res.Usage
				continue
			}
			choice := res.Choices[0]
			if choice.FinishReason != "" {
				finishReason = choice.FinishReason
			}
			for _, ev := range decoder.decodeChoice(choice.Delta) {
				emit(ev)
			}
		}

		emit(UsageEvent(openaiUsage(usage)))
		emit(Done(openaiStopReason(finishReason)))
	}()

	return &Stream{Events: events, cancel: cancel}, nil
}

func openaiMessages(msgs []RequestMessage) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	for _, m := range msgs {
		var text string
		var toolCalls []openai.ToolCall
		var toolCallID string
		role := m.Role

		for _, b := range m.Content {
			switch b.Type {
			case "text":
				text += b.Text
			case "tool_call":
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   b.ToolCallID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.ToolCallName,
						Arguments: string(b.ToolCallArguments),
					},
				})
			case "tool_result":
				role = "tool"
				toolCallID = b.ToolCallID
				text += b.ToolResultContent
			}
		}

		out = append(out, openai.ChatCompletionMessage{
			Role:       role,
			Content:    text,
			ToolCalls:  toolCalls,
			ToolCallID: toolCallID,
		})
	}
	return out
}

func openaiTools(tools []tool.Spec) []openai.Tool {
	var out []openai.Tool
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
