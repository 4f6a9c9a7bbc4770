package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docpipe/internal/resilience"
	"github.com/sells-group/docpipe/pkg/anthropic"
	"github.com/sells-group/docpipe/pkg/llmhttp"
)

// anthropicCaller adapts the Anthropic messages API to the Caller interface.
// It is the only family that accepts page images.
type anthropicCaller struct {
	client anthropic.Client
}

// NewAnthropicCaller wraps an Anthropic client as a provider family caller.
func NewAnthropicCaller(client anthropic.Client) Caller {
	return &anthropicCaller{client: client}
}

func (c *anthropicCaller) Complete(ctx context.Context, req Request) (string, error) {
	mreq := anthropic.MessageRequest{
		Model:     req.Model,
		MaxTokens: int64(req.MaxTokens),
		System:    req.System,
		Prompt:    req.Prompt,
	}
	for _, img := range req.Images {
		mreq.Images = append(mreq.Images, anthropic.Image{MediaType: img.MediaType, Data: img.Data})
	}

	resp, err := c.client.CreateMessage(ctx, mreq)
	if err != nil {
		return "", eris.Wrap(err, "anthropic caller")
	}
	resp.Usage.LogCost(resp.Model)

	return resp.Text, nil
}

// chatCaller adapts an OpenAI-compatible chat-completions client to the
// Caller interface. Image requests are rejected; route vision tasks to a
// family that supports them via capability tags.
type chatCaller struct {
	client llmhttp.Client
}

// NewChatCaller wraps a chat-completions client as a provider family caller.
func NewChatCaller(client llmhttp.Client) Caller {
	return &chatCaller{client: client}
}

func (c *chatCaller) Complete(ctx context.Context, req Request) (string, error) {
	if len(req.Images) > 0 {
		return "", eris.New("chat caller: images not supported by this family")
	}

	messages := make([]llmhttp.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, llmhttp.Message{Role: "system", Content: req.System})
	}
	messages = append(messages, llmhttp.Message{Role: "user", Content: req.Prompt})

	creq := llmhttp.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		creq.MaxTokens = &req.MaxTokens
	}

	resp, err := c.client.ChatCompletion(ctx, creq)
	if err != nil {
		var se *llmhttp.StatusError
		if eris.As(err, &se) && resilience.RetryableStatus(se.Code) {
			return "", resilience.Transient(err, se.Code)
		}
		return "", eris.Wrap(err, "chat caller")
	}

	return resp.Text(), nil
}
