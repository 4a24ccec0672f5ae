package llm

import (
	"context"

	"github.com/venture-kit/plan-proxy/pkg/anthropic"
	"github.com/venture-kit/plan-proxy/pkg/groq"
)

// groqCompleter adapts pkg/groq to the Completer interface.
type groqCompleter struct {
	client groq.Client
}

// NewGroqCompleter wraps a Groq client.
func NewGroqCompleter(client groq.Client) Completer {
	return &groqCompleter{client: client}
}

func (g *groqCompleter) Complete(ctx context.Context, model string, messages []Message) (*Result, error) {
	msgs := make([]groq.Message, len(messages))
	for i, m := range messages {
		msgs[i] = groq.Message{Role: m.Role, Content: m.Content}
	}

	temp := completionTemperature
	resp, err := g.client.ChatCompletion(ctx, groq.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	content := "{}"
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		content = resp.Choices[0].Message.Content
	}

	return &Result{
		Content: content,
		Usage: &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// anthropicCompleter adapts pkg/anthropic to the Completer interface. System
// messages are lifted into the Messages API system field.
type anthropicCompleter struct {
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicCompleter wraps an Anthropic client.
func NewAnthropicCompleter(client anthropic.Client) Completer {
	return &anthropicCompleter{client: client, maxTokens: 4096}
}

func (a *anthropicCompleter) Complete(ctx context.Context, model string, messages []Message) (*Result, error) {
	var system string
	msgs := make([]anthropic.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		msgs = append(msgs, anthropic.Message{Role: m.Role, Content: m.Content})
	}

	temp := completionTemperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       model,
		MaxTokens:   a.maxTokens,
		System:      system,
		Messages:    msgs,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	content := resp.Text
	if content == "" {
		content = "{}"
	}

	return &Result{
		Content: content,
		Usage: &Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}
