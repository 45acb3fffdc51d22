// Package summary condenses a meeting transcript with a chat-completion model.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var ErrMissingAPIKey = errors.New("OpenAI API key is not configured")

const (
	defaultModel       = openai.GPT3Dot5Turbo
	defaultMaxTokens   = 500
	defaultTemperature = 0.7
)

// Config controls the summarizer.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Summarizer produces meeting summaries in a requested language.
type Summarizer struct {
	client *openai.Client
	model  string
}

func NewSummarizer(cfg Config) *Summarizer {
	s := &Summarizer{model: strings.TrimSpace(cfg.Model)}
	if s.model == "" {
		s.model = defaultModel
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return s
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	s.client = openai.NewClientWithConfig(clientCfg)
	return s
}

// Configured reports whether an API key was supplied.
func (s *Summarizer) Configured() bool {
	return s.client != nil
}

// Summarize returns a summary of transcript written in language. A blank
// transcript yields an empty summary.
func (s *Summarizer) Summarize(ctx context.Context, transcript string, language string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", nil
	}
	if s.client == nil {
		return "", ErrMissingAPIKey
	}
	if strings.TrimSpace(language) == "" {
		language = "Chinese"
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("You are a professional meeting summarizer. Generate concise summaries in %s.", language),
			},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(transcript, language)},
		},
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("summary completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summary completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// SummarizeSegments summarizes several transcript pieces as one meeting,
// joined line by line. Blank pieces are skipped.
func (s *Summarizer) SummarizeSegments(ctx context.Context, segments []string, language string) (string, error) {
	return s.Summarize(ctx, joinSegments(segments), language)
}

func joinSegments(segments []string) string {
	kept := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment = strings.TrimSpace(segment); segment != "" {
			kept = append(kept, segment)
		}
	}
	return strings.Join(kept, "\n")
}

func userPrompt(transcript string, language string) string {
	return fmt.Sprintf(`Please summarize the following meeting transcript in %s.
Focus on key points, decisions, and action items.

Transcript:
%s

Summary in %s:`, language, transcript, language)
}
