// Package generation wraps a single blocking or streamed call to a
// text-generation provider and normalizes failures into typed errors.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/felixgeelhaar/mentora/internal/domain"
	"github.com/felixgeelhaar/mentora/internal/llm"
)

// Call describes one generation request: a system instruction plus either a
// single prompt, a conversation history, or both (the prompt is appended as
// the final user turn).
type Call struct {
	System      string
	Prompt      string
	History     []domain.Message
	MaxTokens   int
	Temperature float64
}

func (c Call) messages() []llm.Message {
	msgs := make([]llm.Message, 0, len(c.History)+1)
	for _, m := range c.History {
		role := llm.RoleUser
		if m.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	if c.Prompt != "" {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: c.Prompt})
	}
	return msgs
}

// Generator is the capability consumed by the grader, the lesson service and
// the orchestrators.
type Generator interface {
	Complete(ctx context.Context, call Call) (string, error)
	Stream(ctx context.Context, call Call) (*Stream, error)
}

var _ Generator = (*Client)(nil)

// Client issues generation calls against one provider.
type Client struct {
	provider llm.Provider
	logger   *slog.Logger
}

// NewClient creates a client for the given provider.
func NewClient(provider llm.Provider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{provider: provider, logger: logger}
}

func (c *Client) request(call Call) (*llm.Request, error) {
	msgs := call.messages()
	if len(msgs) == 0 {
		return nil, &Error{Kind: KindInvalidInput, Err: fmt.Errorf("%w: prompt or history is required", domain.ErrInvalidInput)}
	}
	return &llm.Request{
		System:      call.System,
		Messages:    msgs,
		MaxTokens:   call.MaxTokens,
		Temperature: call.Temperature,
	}, nil
}

// Complete performs a blocking call and returns the full text.
func (c *Client) Complete(ctx context.Context, call Call) (string, error) {
	req, err := c.request(call)
	if err != nil {
		return "", err
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		c.logger.Warn("generation failed", "provider", c.provider.Name(), "error", err)
		return "", classify(err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", &Error{Kind: KindEmpty, Err: ErrEmptyResponse}
	}

	c.logger.Debug("generation complete",
		"provider", c.provider.Name(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return resp.Content, nil
}

// Stream starts a streamed call. The returned Stream must be drained or
// closed; either releases the producer.
func (c *Client) Stream(ctx context.Context, call Call) (*Stream, error) {
	req, err := c.request(call)
	if err != nil {
		return nil, err
	}

	if !c.provider.SupportsStreaming() {
		text, err := c.Complete(ctx, call)
		if err != nil {
			return nil, err
		}
		return single(text), nil
	}

	ctx, cancel := context.WithCancel(ctx)
	ch, err := c.provider.GenerateStream(ctx, req)
	if err != nil {
		cancel()
		c.logger.Warn("stream failed to start", "provider", c.provider.Name(), "error", err)
		return nil, classify(err)
	}
	return &Stream{ctx: ctx, ch: ch, cancel: cancel}, nil
}
