package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a translation backend variant.
type Kind string

const (
	KindLLM      Kind = "llm"
	KindGoogle   Kind = "google"
	KindMyMemory Kind = "mymemory"
)

// Request is one translation call handed to a provider.
type Request struct {
	Text string
	// Source is a language code or "auto".
	Source string
	// Target is the target language code, TargetName its display name.
	Target     string
	TargetName string
}

// Result is the outcome of a single provider call: translated text on
// success, or the reason the provider produced nothing usable.
type Result struct {
	Text string
	Err  error
}

var errEmptyTranslation = errors.New("provider returned an empty translation")

func success(text string) Result {
	return Result{Text: text}
}

func failure(err error) Result {
	if err == nil {
		err = errEmptyTranslation
	}
	return Result{Err: err}
}

func failuref(format string, args ...any) Result {
	return Result{Err: fmt.Errorf(format, args...)}
}

// OK reports whether the result carries a usable translation.
func (r Result) OK() bool {
	return r.Err == nil && strings.TrimSpace(r.Text) != ""
}

// Reason describes why the result is unusable.
func (r Result) Reason() error {
	if r.Err != nil {
		return r.Err
	}
	if strings.TrimSpace(r.Text) == "" {
		return errEmptyTranslation
	}
	return nil
}

// Provider is a translation backend. Implementations report every failure
// through Result rather than panicking or returning partial text.
type Provider interface {
	Kind() Kind
	Translate(ctx context.Context, req Request) Result
}
