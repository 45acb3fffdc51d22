package domain

// SessionState models the recording lifecycle.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRecording SessionState = "recording"
	SessionStateStopping  SessionState = "stopping"
	SessionStateStopped   SessionState = "stopped"
	SessionStateError     SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady               SessionStateReason = "ready"
	SessionReasonRecordingStarted    SessionStateReason = "recording_started"
	SessionReasonRecordingRestarted  SessionStateReason = "recording_restarted"
	SessionReasonStopping            SessionStateReason = "stopping"
	SessionReasonStopped             SessionStateReason = "stopped"
	SessionReasonSummarizing         SessionStateReason = "summarizing"
	SessionReasonSummaryReady        SessionStateReason = "summary_ready"
	SessionReasonSummaryFailed       SessionStateReason = "summary_failed"
	SessionReasonRegenerating        SessionStateReason = "regenerating"
	SessionReasonRecordingDiscarded  SessionStateReason = "recording_discarded"
	SessionReasonNoTranscript        SessionStateReason = "no_transcript"
	SessionReasonTranscriptionFailed SessionStateReason = "transcription_failed"
	SessionReasonCleared             SessionStateReason = "cleared"
	SessionReasonSaved               SessionStateReason = "saved"
	SessionReasonLoaded              SessionStateReason = "loaded"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeSummary       ErrorCode = "summary"
	ErrorCodeHistory       ErrorCode = "history"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent is incremental recognition output from a provider. Language
// is the tag the recognizer attached to the utterance, if any.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	Language      string         `json:"language,omitempty"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// Segment is one recognized utterance with its translation.
type Segment struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
	Language    string `json:"language"`
}

// StopResult is returned once recording is stopped.
type StopResult struct {
	Transcript  string `json:"transcript"`
	Translation string `json:"translation"`
	Language    string `json:"language"`
	AudioPath   string `json:"audioPath"`

	// DurationSeconds is the length of the captured audio.
	DurationSeconds float64 `json:"durationSeconds"`
}

// SessionContent is the editable text of a session.
type SessionContent struct {
	ID          string `json:"id,omitempty"`
	Transcript  string `json:"transcript"`
	Translation string `json:"translation"`
	Summary     string `json:"summary"`
	Language    string `json:"language"`
	AudioPath   string `json:"audioPath"`
}

// HistoryEntry is the list view of a saved session.
type HistoryEntry struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Language string `json:"language"`
}

// Status summarizes the current runtime status.
type Status struct {
	State    SessionState `json:"state"`
	Active   bool         `json:"active"`
	Language string       `json:"language,omitempty"`
	Message  string       `json:"message,omitempty"`
}
