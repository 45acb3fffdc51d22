package history

import (
	"fmt"
	"time"
)

const (
	indexFileName       = "history.json"
	audioFileName       = "audio.wav"
	transcriptFileName  = "transcript.txt"
	translationFileName = "translation.txt"
	summaryFileName     = "summary.txt"

	idPrefix        = "recording_"
	timestampLayout = "20060102_150405"
)

// Record is one saved session as it appears in the history index.
type Record struct {
	ID              string         `json:"id"`
	Timestamp       string         `json:"timestamp"`
	AudioFile       string         `json:"audio_file"`
	TranscriptFile  string         `json:"transcript_file"`
	TranslationFile string         `json:"translation_file"`
	SummaryFile     string         `json:"summary_file"`
	Metadata        map[string]any `json:"metadata"`
}

// Meta returns a metadata value rendered as text, or "" when absent.
func (r Record) Meta(key string) string {
	value, ok := r.Metadata[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

// Content is the text stored alongside a record.
type Content struct {
	Transcript  string `json:"transcript"`
	Translation string `json:"translation"`
	Summary     string `json:"summary"`
}

// Update selects which text files to overwrite. Nil fields are left alone.
type Update struct {
	Transcript  *string
	Translation *string
	Summary     *string
}

// Clock abstracts time so session ids are deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func newSessionID(now time.Time) (id string, timestamp string) {
	timestamp = now.Format(timestampLayout)
	return idPrefix + timestamp, timestamp
}
