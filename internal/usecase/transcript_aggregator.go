package usecase

import (
	"context"
	"strings"
	"sync"

	"confagent/internal/domain"
	"confagent/internal/ports"
)

type transcriptAggregator struct {
	mu              sync.Mutex
	segments        []domain.Segment
	language        string
	defaultLanguage string
}

func newTranscriptAggregator(defaultLanguage string) *transcriptAggregator {
	return &transcriptAggregator{defaultLanguage: defaultLanguage}
}

// addSegment appends a recognized utterance and reports whether the
// detected language changed. Unlabeled segments keep the last language.
func (a *transcriptAggregator) addSegment(text string, language string) (index int, changed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if language == "" {
		language = a.language
	}
	if language == "" {
		language = a.defaultLanguage
	}
	changed = language != "" && language != a.language
	if language != "" {
		a.language = language
	}
	a.segments = append(a.segments, domain.Segment{Text: text, Language: language})
	return len(a.segments) - 1, changed
}

func (a *transcriptAggregator) setTranslation(index int, translation string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index >= 0 && index < len(a.segments) {
		a.segments[index].Translation = translation
	}
}

func (a *transcriptAggregator) Transcript() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return joinSegments(a.segments, func(s domain.Segment) string { return s.Text })
}

func (a *transcriptAggregator) Translation() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return joinSegments(a.segments, func(s domain.Segment) string { return s.Translation })
}

// Language is the last detected language, or the default when nothing was
// recognized.
func (a *transcriptAggregator) Language() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.language == "" {
		return a.defaultLanguage
	}
	return a.language
}

func joinSegments(segments []domain.Segment, field func(domain.Segment) string) string {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		if text := strings.TrimSpace(field(segment)); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// consumeTranscriptionEvents handles recognizer output in arrival order.
// Each final segment is translated before the next event is read.
func consumeTranscriptionEvents(
	ctx context.Context,
	session ports.StreamingSession,
	aggregator *transcriptAggregator,
	translator ports.Translator,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	for event := range session.Events() {
		text := strings.TrimSpace(event.Text)
		if text == "" {
			continue
		}
		if event.Kind == domain.TranscriptKindPartial {
			events.PartialTranscript(text)
			continue
		}

		index, changed := aggregator.addSegment(text, event.Language)
		language := aggregator.Language()
		if changed {
			events.LanguageDetected(language)
		}
		events.SegmentRecognized(text)

		translation := text
		if translator != nil {
			translation = translator.Translate(ctx, text)
		}
		aggregator.setTranslation(index, translation)
		events.SegmentTranslated(domain.Segment{Text: text, Translation: translation, Language: language})
	}
}
