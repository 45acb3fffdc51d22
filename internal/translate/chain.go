// Package translate turns recognized speech into the target language by
// trying an ordered list of backends until one answers.
package translate

import (
	"context"
	"log"
	"strings"

	"confagent/internal/glossary"
)

// Chain tries providers in fixed priority order for every request.
type Chain struct {
	providers []Provider
	glossary  glossary.Glossary
	source    string
	target    string
	logger    *log.Logger
}

// Option customizes a Chain.
type Option func(*Chain)

// WithGlossary masks glossary terms before translation.
func WithGlossary(g glossary.Glossary) Option {
	return func(c *Chain) { c.glossary = g }
}

// WithSourceLanguage sets the source language code passed to providers.
func WithSourceLanguage(code string) Option {
	return func(c *Chain) {
		if strings.TrimSpace(code) != "" {
			c.source = code
		}
	}
}

// WithLogger overrides the logger used for provider failures.
func WithLogger(logger *log.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewChain builds a chain for the target language code. The provider slice
// order is the fallback order.
func NewChain(target string, providers []Provider, opts ...Option) *Chain {
	if strings.TrimSpace(target) == "" {
		target = "zh-CN"
	}
	c := &Chain{
		providers: append([]Provider(nil), providers...),
		source:    "auto",
		target:    target,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Translate returns the translation of text. Blank input yields "". When no
// provider succeeds the original text is returned unchanged.
func (c *Chain) Translate(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	masked, placeholders := c.glossary.Mask(text)
	req := Request{
		Text:       masked,
		Source:     c.source,
		Target:     c.target,
		TargetName: LanguageName(c.target),
	}

	for _, provider := range c.providers {
		result := c.call(ctx, provider, req)
		if !result.OK() {
			c.logger.Printf("[TRANSLATE]: %s provider failed: %v", provider.Kind(), result.Reason())
			continue
		}
		return placeholders.Restore(strings.TrimSpace(result.Text))
	}

	if len(c.providers) > 0 {
		c.logger.Printf("[TRANSLATE]: all %d providers failed, keeping original text", len(c.providers))
	}
	return text
}

// TranslateBatch translates each text independently.
func (c *Chain) TranslateBatch(ctx context.Context, texts []string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		out[i] = c.Translate(ctx, text)
	}
	return out
}

// Providers lists the configured providers in fallback order.
func (c *Chain) Providers() []Kind {
	kinds := make([]Kind, len(c.providers))
	for i, provider := range c.providers {
		kinds[i] = provider.Kind()
	}
	return kinds
}

// Target returns the target language code.
func (c *Chain) Target() string {
	return c.target
}

func (c *Chain) call(ctx context.Context, provider Provider, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = failuref("provider panicked: %v", r)
		}
	}()
	return provider.Translate(ctx, req)
}
