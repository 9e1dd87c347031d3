package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	genai "google.golang.org/genai"
)

const (
	defaultGeminiModel = "gemini-2.5-flash"
	geminiAttempts     = 3
)

// Gemini is a thin wrapper around the official genai client.
type Gemini struct {
	cli   *genai.Client
	model string
}

type GeminiOptions struct {
	// APIKey is kept for a consistent factory signature; the genai client
	// reads GEMINI_API_KEY from the environment.
	APIKey string
	Model  string
}

func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &Gemini{cli: cli, model: model}, nil
}

func (g *Gemini) Name() string { return "Gemini:" + g.model }
func (g *Gemini) Close() error { return nil }

// GenerateText sends the prompt and returns the first candidate's text.
// Transient failures are retried with exponential backoff.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < geminiAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(300*(1<<(attempt-1))) * time.Millisecond):
			}
		}
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			nil,
		)
		if err != nil {
			lastErr = err
			logrus.Warnf("llm: %s attempt %d/%d failed: %v", g.model, attempt+1, geminiAttempts, err)
			continue
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrEmptyResponse
			continue
		}
		txt := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
		if txt == "" {
			lastErr = ErrEmptyResponse
			continue
		}
		return txt, nil
	}
	return "", lastErr
}
