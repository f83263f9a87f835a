package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"pdfchat/internal/config"
)

const (
	systemPrompt      = "You are a helpful assistant."
	remoteTemperature = float32(0.5)
	remoteMaxTokens   = 300
)

// RemoteGenerator answers through a hosted chat-completion model.
type RemoteGenerator struct {
	chatModel model.BaseChatModel
}

func NewRemoteGenerator(chatModel model.BaseChatModel) *RemoteGenerator {
	return &RemoteGenerator{chatModel: chatModel}
}

// NewChatModel builds the eino chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg config.GeneratorConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("generator api key is not configured")
	}
	temperature := remoteTemperature
	maxTokens := remoteMaxTokens

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init openai model: %w", err)
		}
		return chatModel, nil
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       cfg.Model,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini model: %w", err)
		}
		return chatModel, nil
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			BaseURL:     baseURLPtr,
			MaxTokens:   maxTokens,
			Temperature: &temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("init claude model: %w", err)
		}
		return chatModel, nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
}

func (g *RemoteGenerator) Answer(ctx context.Context, question, docContext string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(BuildPrompt(question, docContext)),
	}
	resp, err := g.chatModel.Generate(ctx, messages,
		model.WithTemperature(remoteTemperature),
		model.WithMaxTokens(remoteMaxTokens),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &GenerationError{Err: err}
	}
	if resp == nil {
		return "", &GenerationError{Err: errors.New("empty completion")}
	}
	return strings.TrimSpace(resp.Content), nil
}
