package answer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"

	"pdfchat/internal/config"
)

// Local model limits. The context is cut from the end so the question and
// the answer marker always fit.
const (
	localMaxInputTokens = 512
	localMaxNewTokens   = 512
	localContextWindow  = 2048
	localRepeatLastN    = 2
	localRepeatPenalty  = 1.5
)

// LocalGenerator answers through a model served by a local Ollama instance.
type LocalGenerator struct {
	client *ollama.Client
	model  string
}

func NewLocalGenerator(cfg config.LocalConfig, httpClient *http.Client) (*LocalGenerator, error) {
	if cfg.Model == "" {
		return nil, errors.New("local model is not configured")
	}
	host := cfg.Host
	if host == "" {
		host = "http://localhost:11434"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &LocalGenerator{client: ollama.NewClient(u, httpClient), model: cfg.Model}, nil
}

func (g *LocalGenerator) Answer(ctx context.Context, question, docContext string) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  g.model,
		Prompt: truncatePrompt(question, docContext, localMaxInputTokens),
		Stream: &stream,
		Options: map[string]any{
			"num_predict":    localMaxNewTokens,
			"num_ctx":        localContextWindow,
			"temperature":    0,
			"repeat_last_n":  localRepeatLastN,
			"repeat_penalty": localRepeatPenalty,
		},
	}

	var out strings.Builder
	err := g.client.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &GenerationError{Err: err}
	}
	return stripToAnswer(out.String()), nil
}

// truncatePrompt builds the prompt within limit whitespace-separated tokens,
// dropping context tokens from the end first.
func truncatePrompt(question, docContext string, limit int) string {
	fixed := len(strings.Fields(BuildPrompt(question, "")))
	words := strings.Fields(docContext)
	budget := limit - fixed
	if budget < 0 {
		budget = 0
	}
	if len(words) > budget {
		words = words[:budget]
		docContext = strings.Join(words, " ")
	}
	return BuildPrompt(question, docContext)
}
