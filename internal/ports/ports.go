package ports

import (
	"context"
	"io"

	"confagent/internal/domain"
	"confagent/internal/history"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string

	// MonitorDevice, when set, is a second source of the same format (the
	// speakers' monitor) mixed in so remote participants are recorded too.
	MonitorDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// AudioSink receives a copy of captured PCM and turns it into a file.
type AudioSink interface {
	io.Writer
	// Close finalizes the file and returns its path.
	Close() (string, error)
	// Discard closes and removes the file.
	Discard() error
}

// AudioRecorder creates an AudioSink for each recording.
type AudioRecorder interface {
	Create(cfg AudioConfig) (AudioSink, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// Translator converts text into the configured target language. It never
// fails; on total failure it returns its input.
type Translator interface {
	Translate(ctx context.Context, text string) string
}

// Summarizer condenses a transcript into a summary in the named language.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, language string) (string, error)
}

// HistoryStore persists finished sessions.
type HistoryStore interface {
	Save(audioSource, transcript, translation, summary string, metadata map[string]any) (string, error)
	Load() []history.Record
	Get(id string) (history.Record, bool)
	Delete(id string) bool
	Update(id string, update history.Update) bool
	Read(id string) (history.Content, error)
	Search(ctx context.Context, query string) ([]history.Record, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(text string)
	SegmentRecognized(text string)
	SegmentTranslated(segment domain.Segment)
	LanguageDetected(language string)
	TranslationReplaced(translation string)
	SummaryReady(summary string)
	SessionError(code domain.ErrorCode, detail string)
}
