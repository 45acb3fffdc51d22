package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultLLMModel = openai.GPT3Dot5Turbo

// LLMConfig configures the chat-completion translator.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// LLMProvider translates through an OpenAI-compatible chat completion API.
type LLMProvider struct {
	client *openai.Client
	model  string
}

func NewLLMProvider(cfg LLMConfig) *LLMProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultLLMModel
	}
	return &LLMProvider{client: openai.NewClientWithConfig(clientCfg), model: model}
}

func (p *LLMProvider) Kind() Kind { return KindLLM }

func (p *LLMProvider) Translate(ctx context.Context, req Request) Result {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmSystemPrompt(req.TargetName)},
			{Role: openai.ChatMessageRoleUser, Content: req.Text},
		},
	})
	if err != nil {
		return failure(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return failure(errors.New("chat completion returned no choices"))
	}
	return success(strings.TrimSpace(resp.Choices[0].Message.Content))
}

func llmSystemPrompt(languageName string) string {
	return fmt.Sprintf(
		"You are a professional meeting interpreter. Translate the user's text into %s. "+
			"Keep tokens of the form __GLOSSARY_<n>__ exactly as written. "+
			"Reply with the translation only.",
		languageName,
	)
}
