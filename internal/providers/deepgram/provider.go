package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"confagent/internal/ports"
)

const (
	defaultAPIBase           = "https://api.deepgram.com/v1"
	defaultModel             = "nova-2"
	defaultMultilingualModel = "nova-3"
	multilingual             = "multi"
)

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	SmartFormat bool
	// Languages the meeting may contain. More than one switches the
	// recognizer into code-switching mode.
	Languages []string
	// KeepAlive is how often an idle socket is pinged. Zero disables it.
	KeepAlive time.Duration
}

// Provider implements ports.TranscriptionProvider for Deepgram.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = defaultAPIBase
	}
	cfg.Languages = cleanLanguages(cfg.Languages)
	if cfg.Model == "" {
		cfg.Model = defaultModel
		if len(cfg.Languages) > 1 {
			cfg.Model = defaultMultilingualModel
		}
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("DEEPGRAM_API_KEY is not configured")
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to Deepgram websocket (http %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	session := newStreamingSession(conn, p.defaultLanguage(), p.cfg.KeepAlive)
	session.start(ctx)
	return session, nil
}

// defaultLanguage tags events when the recognizer does not report one.
func (p *Provider) defaultLanguage() string {
	if len(p.cfg.Languages) == 1 {
		return p.cfg.Languages[0]
	}
	return ""
}

func cleanLanguages(languages []string) []string {
	out := make([]string, 0, len(languages))
	seen := map[string]bool{}
	for _, lang := range languages {
		lang = strings.TrimSpace(lang)
		if lang == "" || seen[strings.ToLower(lang)] {
			continue
		}
		seen[strings.ToLower(lang)] = true
		out = append(out, lang)
	}
	return out
}

func listenLanguage(languages []string) string {
	switch len(languages) {
	case 0:
		return ""
	case 1:
		return languages[0]
	default:
		return multilingual
	}
}

func websocketBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = defaultAPIBase
	}
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return strings.TrimRight(base, "/")
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	listenURL, err := url.Parse(websocketBase(providerCfg.APIBaseURL) + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", fmt.Sprintf("%d", streamCfg.SampleRate))
	query.Set("channels", fmt.Sprintf("%d", streamCfg.Channels))
	query.Set("interim_results", fmt.Sprintf("%t", streamCfg.InterimResults))
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	query.Set("punctuate", "true")
	if lang := listenLanguage(providerCfg.Languages); lang != "" {
		query.Set("language", lang)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

var _ ports.TranscriptionProvider = (*Provider)(nil)
var _ ports.StreamingSession = (*streamingSession)(nil)
