package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pearcircuitmike/replicate-codex/internal/config"
	"github.com/pearcircuitmike/replicate-codex/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Service holds one chat model per configured provider. Models are built once
// at process start and shared across requests.
type Service struct {
	chatModels map[string]model.ToolCallingChatModel
	log        *zap.SugaredLogger
}

// NewService constructs chat models for every provider in the config.
func NewService(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*Service, error) {
	chatModels := make(map[string]model.ToolCallingChatModel, len(cfg.Providers))
	for provider, provCfg := range cfg.Providers {
		if provCfg.APIKey == "" {
			log.Warnw("provider has no api key, skipping", "provider", provider)
			continue
		}
		chatModel, err := buildChatModel(ctx, provider, provCfg)
		if err != nil {
			return nil, fmt.Errorf("init %s chat model: %w", provider, err)
		}
		chatModels[provider] = chatModel
	}
	if len(chatModels) == 0 {
		return nil, errors.New("no chat providers configured")
	}
	return &Service{chatModels: chatModels, log: log}, nil
}

func buildChatModel(ctx context.Context, provider string, provCfg config.ProviderConfig) (model.ToolCallingChatModel, error) {
	switch provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// StreamChat streams a completion for the given history, invoking onDelta for
// every text fragment as it arrives. The requested model name routes to a
// provider ("claude-*" and "gemini-*" prefixes; anything else is openai).
func (s *Service) StreamChat(ctx context.Context, modelName string, history []*schema.Message, onDelta func(string) error) error {
	if len(history) == 0 {
		return errors.New("history cannot be empty")
	}
	provider := providerFor(modelName)
	chatModel, ok := s.chatModels[provider]
	if !ok {
		return fmt.Errorf("provider %s not configured", provider)
	}

	streamReader, err := chatModel.Stream(ctx, history)
	if err != nil {
		return fmt.Errorf("open completion stream: %w", err)
	}
	defer streamReader.Close()
	for {
		chunk, err := streamReader.Recv()
		if err != nil {
			// stream finished
			break
		}
		if chunk.Content == "" {
			continue
		}
		if onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				return err
			}
		}
	}
	return nil
}

func providerFor(modelName string) string {
	switch {
	case strings.HasPrefix(modelName, "claude"):
		return "claude"
	case strings.HasPrefix(modelName, "gemini"):
		return "gemini"
	default:
		return "openai"
	}
}

// ConvertMessages maps stored transcript rows to the schema the chat models accept.
func ConvertMessages(history []models.Message) []*schema.Message {
	converted := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		converted = append(converted, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return converted
}
