package usecase

import (
	"testing"
)

func TestTranscriptAggregatorJoinsSegmentsAndTranslations(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator("en-US")
	first, changed := agg.addSegment("bonjour", "fr")
	if !changed {
		t.Fatalf("first labeled segment should change the language")
	}
	second, changed := agg.addSegment("merci", "")
	if changed {
		t.Fatalf("unlabeled segment should keep the language")
	}
	agg.setTranslation(second, "thanks")
	agg.setTranslation(first, "hello")
	agg.setTranslation(7, "ignored")

	if got := agg.Transcript(); got != "bonjour\nmerci" {
		t.Fatalf("unexpected transcript: %q", got)
	}
	if got := agg.Translation(); got != "hello\nthanks" {
		t.Fatalf("unexpected translation: %q", got)
	}
	if got := agg.Language(); got != "fr" {
		t.Fatalf("unexpected language: %q", got)
	}
}

func TestTranscriptAggregatorDefaults(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator("en-US")
	if agg.Transcript() != "" || agg.Translation() != "" {
		t.Fatalf("expected empty aggregator")
	}
	if agg.Language() != "en-US" {
		t.Fatalf("expected default language, got %q", agg.Language())
	}

	_, changed := agg.addSegment("hi", "")
	if !changed || agg.Language() != "en-US" {
		t.Fatalf("unlabeled first segment should adopt the default language")
	}
}
