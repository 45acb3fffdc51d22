package translate

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	defaultMyMemoryBaseURL = "https://api.mymemory.translated.net"
	myMemoryMaxBytes       = 500
)

// MyMemoryProvider uses the free MyMemory translation API.
type MyMemoryProvider struct {
	cfg WebConfig
}

func NewMyMemoryProvider(cfg WebConfig) *MyMemoryProvider {
	return &MyMemoryProvider{cfg: cfg}
}

func (p *MyMemoryProvider) Kind() Kind { return KindMyMemory }

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	ResponseStatus  any    `json:"responseStatus"`
	ResponseDetails string `json:"responseDetails"`
}

func (p *MyMemoryProvider) Translate(ctx context.Context, req Request) Result {
	if len(req.Text) > myMemoryMaxBytes {
		return failuref("text exceeds %d bytes", myMemoryMaxBytes)
	}

	source := req.Source
	if source == "" || strings.EqualFold(source, "auto") {
		source = "autodetect"
	}
	query := url.Values{}
	query.Set("q", req.Text)
	query.Set("langpair", source+"|"+req.Target)

	var resp myMemoryResponse
	endpoint := p.cfg.baseURL(defaultMyMemoryBaseURL) + "/get?" + query.Encode()
	if err := getJSON(ctx, p.cfg.client(), endpoint, &resp); err != nil {
		return failure(err)
	}

	if status := fmt.Sprint(resp.ResponseStatus); status != "200" {
		return failuref("mymemory status %s: %s", status, resp.ResponseDetails)
	}
	text := resp.ResponseData.TranslatedText
	if strings.HasPrefix(text, "MYMEMORY WARNING") {
		return failuref("mymemory quota: %s", text)
	}
	return success(text)
}
