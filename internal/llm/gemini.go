package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider implements Provider with the Google Gen AI SDK
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// GeminiConfig holds configuration for the Gemini provider
type GeminiConfig struct {
	APIKey string
	Model  string // default: gemini-2.5-flash
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiProvider{client: client, model: cfg.Model}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) SupportsStreaming() bool {
	return true
}

func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	result, err := p.client.Models.GenerateContent(ctx, p.modelFor(req), geminiContents(req.Messages), geminiConfig(req))
	if err != nil {
		return nil, p.mapError(err)
	}

	resp := &Response{Content: result.Text()}
	if len(result.Candidates) > 0 {
		resp.FinishReason = string(result.Candidates[0].FinishReason)
	}
	if result.UsageMetadata != nil {
		resp.Usage = Usage{
			InputTokens:  int(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
		}
	}
	return resp, nil
}

func (p *GeminiProvider) GenerateStream(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	ch := make(chan StreamChunk, streamBuffer)
	seq := p.client.Models.GenerateContentStream(ctx, p.modelFor(req), geminiContents(req.Messages), geminiConfig(req))

	go func() {
		defer close(ch)
		for result, err := range seq {
			if err != nil {
				emit(ctx, ch, StreamChunk{Error: p.mapError(err)})
				return
			}
			if text := result.Text(); text != "" {
				if !emit(ctx, ch, StreamChunk{Content: text}) {
					return
				}
			}
		}
		emit(ctx, ch, StreamChunk{Done: true})
	}()

	return ch, nil
}

func (p *GeminiProvider) modelFor(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return p.model
}

func geminiConfig(req *Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens(req)),
		StopSequences:   req.StopSeqs,
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		config.Temperature = &temp
	}
	if req.System != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	return config
}

// geminiContents maps assistant turns to the "model" role. A conversation may
// not open with a model turn, so a leading assistant greeting is dropped.
func geminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		if len(out) == 0 && role == "model" {
			continue
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}

func (p *GeminiProvider) mapError(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: p.Name(), Code: apiErr.Code, Body: apiErr.Message, Err: err}
	}
	return err
}
