package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"confagent/internal/domain"
	"confagent/internal/history"
	"confagent/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active recording session")
	ErrSessionActive   = errors.New("a recording is in progress")
	ErrNothingToSave   = errors.New("no content to save")
	ErrNoAudio         = errors.New("no audio file available")
	ErrEmptyTranscript = errors.New("no transcript to summarize")
)

const metadataDateLayout = "2006-01-02 15:04:05"

// Config controls recording behavior.
type Config struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
	// DefaultLanguage tags segments the recognizer did not label.
	DefaultLanguage string
	// SummaryLanguage is the full language name summaries are written in.
	SummaryLanguage string
}

// Dependencies are the ports a SessionController drives. Recorder,
// Translator, Summarizer and History may be nil; the matching features are
// then skipped.
type Dependencies struct {
	Audio      ports.AudioCapture
	Recorder   ports.AudioRecorder
	Provider   ports.TranscriptionProvider
	Translator ports.Translator
	Summarizer ports.Summarizer
	History    ports.HistoryStore
	Events     ports.EventSink
	Logger     *log.Logger
}

// SessionController orchestrates recording, live translation, summaries and
// history for a single user.
type SessionController struct {
	deps  Dependencies
	cfg   Config
	tasks *taskRunner
	now   func() time.Time

	mu      sync.Mutex
	current *activeSession
	draft   draft
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en-US"
	}
	if cfg.SummaryLanguage == "" {
		cfg.SummaryLanguage = "Chinese"
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &SessionController{
		deps:  deps,
		cfg:   cfg,
		tasks: newTaskRunner(deps.Logger),
		now:   time.Now,
	}
}

// Start begins a new capture/transcription session. A session that is
// already recording is discarded first.
func (c *SessionController) Start(ctx context.Context) error {
	c.mu.Lock()
	previous := c.current
	c.current = nil
	c.mu.Unlock()

	if previous != nil {
		c.stopSession(previous)
		previous.discardAudio()
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := c.deps.Provider.StartStreaming(sessionCtx, c.cfg.Streaming)
	if err != nil {
		cancel()
		c.deps.Events.SessionError(domain.ErrorCodeStartup, err.Error())
		return err
	}

	audioSession, err := c.deps.Audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		c.deps.Events.SessionError(domain.ErrorCodeStartup, err.Error())
		return err
	}

	var sink ports.AudioSink
	if c.deps.Recorder != nil {
		sink, err = c.deps.Recorder.Create(c.cfg.Audio)
		if err != nil {
			_ = audioSession.Stop()
			_ = stream.Close()
			cancel()
			c.deps.Events.SessionError(domain.ErrorCodeStartup, err.Error())
			return fmt.Errorf("create recording file: %w", err)
		}
	}

	active := &activeSession{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		sink:       sink,
		state:      domain.SessionStateRecording,
		aggregator: newTranscriptAggregator(c.cfg.DefaultLanguage),
		pump:       newAudioPump(audioSession, stream, sink, c.cfg.ChunkSize, c.deps.Events),
		eventsDone: make(chan struct{}),
	}

	c.mu.Lock()
	c.current = active
	c.draft = draft{generation: c.draft.generation + 1}
	c.mu.Unlock()

	go consumeTranscriptionEvents(sessionCtx, active.stream, active.aggregator, c.deps.Translator, c.deps.Events, active.eventsDone)
	go active.pump.run()

	reason := domain.SessionReasonRecordingStarted
	if previous != nil {
		reason = domain.SessionReasonRecordingRestarted
	}
	c.deps.Logger.Printf("[SESSION]: recording started (%s)", reason)
	c.deps.Events.SessionStateChanged(domain.SessionStateRecording, reason)
	return nil
}

// Stop ends the active session, waits for the remaining segments to be
// translated and returns the collected text. The summary is produced in the
// background and delivered through the event sink.
func (c *SessionController) Stop(ctx context.Context) (domain.StopResult, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.StopResult{}, err
	}

	active.setState(domain.SessionStateStopping)
	c.deps.Events.SessionStateChanged(domain.SessionStateStopping, domain.SessionReasonStopping)

	if err := active.audio.Stop(); err != nil {
		c.deps.Events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	if c.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(c.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, 4*time.Second)
	<-active.eventsDone
	active.pump.wait()

	audioPath := ""
	if active.sink != nil {
		path, closeErr := active.sink.Close()
		if closeErr != nil {
			c.deps.Events.SessionError(domain.ErrorCodeAudioStop, closeErr.Error())
			active.discardAudio()
		} else {
			audioPath = path
		}
	}

	result := domain.StopResult{
		Transcript:  active.aggregator.Transcript(),
		Translation: active.aggregator.Translation(),
		Language:    active.aggregator.Language(),
		AudioPath:   audioPath,

		DurationSeconds: active.pump.recorded(c.cfg.Audio).Seconds(),
	}

	if result.Transcript == "" && streamErr != nil {
		c.deps.Events.SessionError(domain.ErrorCodeTranscription, streamErr.Error())
		active.discardAudio()
		c.finishSession(active, domain.SessionStateError, domain.SessionReasonTranscriptionFailed)
		return domain.StopResult{}, streamErr
	}

	generation := c.setDraft(draft{
		transcript:  result.Transcript,
		translation: result.Translation,
		language:    result.Language,
		audioPath:   result.AudioPath,
		duration:    active.pump.recorded(c.cfg.Audio),
	})

	if result.Transcript == "" {
		c.finishSession(active, domain.SessionStateStopped, domain.SessionReasonNoTranscript)
		return result, nil
	}

	if c.deps.Summarizer == nil {
		c.finishSession(active, domain.SessionStateStopped, domain.SessionReasonStopped)
		return result, nil
	}

	c.finishSession(active, domain.SessionStateStopped, domain.SessionReasonSummarizing)
	c.tasks.Go("summary", func(ctx context.Context) {
		c.summarize(ctx, generation, result.Transcript)
	})
	return result, nil
}

// Abort cancels and discards an active session without summarizing it.
func (c *SessionController) Abort() error {
	active, err := c.getCurrent()
	if err != nil {
		return err
	}

	c.stopSession(active)
	active.discardAudio()
	c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
	return nil
}

// Regenerate retranslates an edited transcript as a whole and summarizes it
// again. Both results arrive through the event sink.
func (c *SessionController) Regenerate(_ context.Context, transcript string) error {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return ErrEmptyTranscript
	}
	if c.isRecording() {
		return ErrSessionActive
	}

	c.mu.Lock()
	c.draft.transcript = transcript
	c.draft.generation++
	generation := c.draft.generation
	c.mu.Unlock()

	c.deps.Events.SessionStateChanged(domain.SessionStateStopped, domain.SessionReasonRegenerating)
	c.tasks.Go("regenerate", func(ctx context.Context) {
		if c.deps.Translator != nil {
			translation := c.deps.Translator.Translate(ctx, transcript)
			if c.updateDraft(generation, func(d *draft) { d.translation = translation }) {
				c.deps.Events.TranslationReplaced(translation)
			}
		}
		if c.deps.Summarizer != nil {
			c.summarize(ctx, generation, transcript)
		}
	})
	return nil
}

// Clear forgets the current draft.
func (c *SessionController) Clear() error {
	if c.isRecording() {
		return ErrSessionActive
	}
	c.setDraft(draft{})
	c.deps.Events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonCleared)
	return nil
}

// Save persists the draft, with the edited text from req, into history.
func (c *SessionController) Save(ctx context.Context, req SaveRequest) (string, error) {
	if c.deps.History == nil {
		return "", errors.New("history is not configured")
	}
	if c.isRecording() {
		return "", ErrSessionActive
	}

	current := c.Current()
	if strings.TrimSpace(current.Transcript) == "" && strings.TrimSpace(req.Transcript) == "" {
		return "", ErrNothingToSave
	}
	if req == (SaveRequest{}) {
		req = SaveRequest{Transcript: current.Transcript, Translation: current.Translation, Summary: current.Summary}
	}
	if current.AudioPath == "" {
		return "", ErrNoAudio
	}
	if _, err := os.Stat(current.AudioPath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNoAudio, current.AudioPath)
	}

	metadata := map[string]any{
		"language": current.Language,
		"date":     c.now().Format(metadataDateLayout),
	}
	if duration := c.draftDuration(); duration > 0 {
		metadata["duration_seconds"] = math.Round(duration.Seconds())
	}
	id, err := c.deps.History.Save(current.AudioPath, req.Transcript, req.Translation, req.Summary, metadata)
	if err != nil {
		c.deps.Events.SessionError(domain.ErrorCodeHistory, err.Error())
		return "", fmt.Errorf("save to history: %w", err)
	}

	c.deps.Logger.Printf("[SESSION]: saved %s", id)
	c.deps.Events.SessionStateChanged(domain.SessionStateStopped, domain.SessionReasonSaved)
	return id, nil
}

// LoadSession makes a saved session the current draft.
func (c *SessionController) LoadSession(id string) (domain.SessionContent, error) {
	if c.deps.History == nil {
		return domain.SessionContent{}, errors.New("history is not configured")
	}
	if c.isRecording() {
		return domain.SessionContent{}, ErrSessionActive
	}

	record, ok := c.deps.History.Get(id)
	if !ok {
		return domain.SessionContent{}, history.ErrNotFound
	}
	content, err := c.deps.History.Read(id)
	if err != nil {
		c.deps.Events.SessionError(domain.ErrorCodeHistory, err.Error())
		return domain.SessionContent{}, err
	}

	d := draft{
		transcript:  content.Transcript,
		translation: content.Translation,
		summary:     content.Summary,
		language:    record.Meta("language"),
		audioPath:   record.AudioFile,
	}
	c.setDraft(d)
	c.deps.Events.SessionStateChanged(domain.SessionStateStopped, domain.SessionReasonLoaded)

	loaded := d.content()
	loaded.ID = id
	return loaded, nil
}

// Current returns the draft as the UI should display it.
func (c *SessionController) Current() domain.SessionContent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.content()
}

// Status returns the current backend status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		state := domain.SessionStateIdle
		if c.draft.transcript != "" || c.draft.audioPath != "" {
			state = domain.SessionStateStopped
		}
		return domain.Status{State: state, Language: c.draft.language}
	}
	state := c.current.getState()
	return domain.Status{
		State:    state,
		Active:   state == domain.SessionStateRecording || state == domain.SessionStateStopping,
		Language: c.current.aggregator.Language(),
	}
}

// Wait blocks until background summaries and retranslations finish.
func (c *SessionController) Wait() {
	c.tasks.Wait()
}

// Shutdown discards any active recording and cancels background work.
func (c *SessionController) Shutdown() {
	if err := c.Abort(); err != nil && !errors.Is(err, ErrNoActiveSession) {
		c.deps.Logger.Printf("[SESSION]: abort on shutdown: %v", err)
	}
	c.tasks.Close()
}

func (c *SessionController) summarize(ctx context.Context, generation int, transcript string) {
	summary, err := c.deps.Summarizer.Summarize(ctx, transcript, c.cfg.SummaryLanguage)
	if err != nil {
		c.deps.Logger.Printf("[SESSION]: summary failed: %v", err)
		if !c.updateDraft(generation, func(*draft) {}) {
			return
		}
		c.deps.Events.SessionError(domain.ErrorCodeSummary, err.Error())
		c.deps.Events.SessionStateChanged(domain.SessionStateStopped, domain.SessionReasonSummaryFailed)
		return
	}
	if !c.updateDraft(generation, func(d *draft) { d.summary = summary }) {
		return
	}
	c.deps.Events.SummaryReady(summary)
	c.deps.Events.SessionStateChanged(domain.SessionStateStopped, domain.SessionReasonSummaryReady)
}

func (c *SessionController) setDraft(d draft) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	d.generation = c.draft.generation + 1
	c.draft = d
	return d.generation
}

// updateDraft applies fn only while the draft is still the one a task
// started from.
func (c *SessionController) updateDraft(generation int, fn func(*draft)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft.generation != generation {
		return false
	}
	fn(&c.draft)
	return true
}

func (c *SessionController) draftDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.duration
}

func (c *SessionController) isRecording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *SessionController) getCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

func (c *SessionController) stopSession(active *activeSession) {
	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.eventsDone
	active.pump.wait()
	if active.sink != nil {
		_, _ = active.sink.Close()
	}
}

func (c *SessionController) finishSession(active *activeSession, state domain.SessionState, reason domain.SessionStateReason) {
	active.cancel()
	active.setState(state)

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	c.deps.Events.SessionStateChanged(state, reason)
}
