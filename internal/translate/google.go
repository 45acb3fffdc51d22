package translate

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

const (
	defaultGoogleBaseURL = "https://translate.googleapis.com"
	googleMaxChars       = 5000
)

// GoogleProvider uses the keyless Google web translation endpoint.
type GoogleProvider struct {
	cfg WebConfig
}

func NewGoogleProvider(cfg WebConfig) *GoogleProvider {
	return &GoogleProvider{cfg: cfg}
}

func (p *GoogleProvider) Kind() Kind { return KindGoogle }

func (p *GoogleProvider) Translate(ctx context.Context, req Request) Result {
	if len([]rune(req.Text)) > googleMaxChars {
		return failuref("text exceeds %d characters", googleMaxChars)
	}

	source := req.Source
	if source == "" {
		source = "auto"
	}
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", source)
	query.Set("tl", req.Target)
	query.Set("dt", "t")
	query.Set("q", req.Text)

	var payload []any
	endpoint := p.cfg.baseURL(defaultGoogleBaseURL) + "/translate_a/single?" + query.Encode()
	if err := getJSON(ctx, p.cfg.client(), endpoint, &payload); err != nil {
		return failure(err)
	}

	text, err := joinGoogleSentences(payload)
	if err != nil {
		return failure(err)
	}
	return success(text)
}

// The response is a positional array whose first element lists
// [translated, original, ...] sentence pairs.
func joinGoogleSentences(payload []any) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("unexpected response shape: empty payload")
	}
	sentences, ok := payload[0].([]any)
	if !ok {
		return "", errors.New("unexpected response shape: missing sentences")
	}

	var builder strings.Builder
	for _, raw := range sentences {
		sentence, ok := raw.([]any)
		if !ok || len(sentence) == 0 {
			continue
		}
		if fragment, ok := sentence[0].(string); ok {
			builder.WriteString(fragment)
		}
	}
	return builder.String(), nil
}
