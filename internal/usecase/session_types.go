package usecase

import (
	"sync"
	"time"

	"confagent/internal/domain"
	"confagent/internal/ports"
)

type activeSession struct {
	cancel func()
	audio  ports.AudioSession
	stream ports.StreamingSession
	sink   ports.AudioSink

	stateMu sync.Mutex
	state   domain.SessionState

	aggregator *transcriptAggregator
	pump       *audioPump
	eventsDone chan struct{}
}

func (s *activeSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *activeSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// discardAudio drops the WAV file of a recording that will not be kept.
func (s *activeSession) discardAudio() {
	if s.sink != nil {
		_ = s.sink.Discard()
	}
}

// draft is the text of the most recent recording or loaded session. The UI
// edits it before saving.
type draft struct {
	// generation changes whenever the draft is replaced so that late
	// background results for an older draft are dropped.
	generation  int
	transcript  string
	translation string
	summary     string
	language    string
	audioPath   string
	duration    time.Duration
}

func (d draft) content() domain.SessionContent {
	return domain.SessionContent{
		Transcript:  d.transcript,
		Translation: d.translation,
		Summary:     d.summary,
		Language:    d.language,
		AudioPath:   d.audioPath,
	}
}

// SaveRequest carries the edited text to persist. A zero request saves the
// current draft unchanged.
type SaveRequest struct {
	Transcript  string
	Translation string
	Summary     string
}
