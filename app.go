package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"confagent/internal/bootstrap"
	"confagent/internal/domain"
	"confagent/internal/history"
	"confagent/internal/usecase"
)

const (
	eventSession             = "confagent:session"
	eventPartial             = "confagent:partial"
	eventSegment             = "confagent:segment"
	eventTranslation         = "confagent:translation"
	eventTranslationReplaced = "confagent:translation-replaced"
	eventSummary             = "confagent:summary"
	eventLanguage            = "confagent:language"
	eventError               = "confagent:error"
)

// App is the Wails application root.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})

	services   bootstrap.Services
	controller *usecase.SessionController
	history    *history.Store
	bootErr    error
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, log.Default())
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.controller = services.Controller
	a.history = services.History
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(_ context.Context) {
	if a.controller == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		log.Printf("[APP]: shutdown: %v", err)
	}
}

// StartRecording starts capturing and transcribing the meeting.
func (a *App) StartRecording() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.controller.Start(a.ctx); err != nil {
		return domain.Status{}, err
	}
	return a.controller.Status(), nil
}

// StopRecording stops capture and returns the transcript and translation.
// The summary follows as a confagent:summary event.
func (a *App) StopRecording() (domain.StopResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.StopResult{}, err
	}
	return a.controller.Stop(a.ctx)
}

// AbortRecording discards an in-progress recording.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		return err
	}
	return nil
}

// RegenerateSummary retranslates and resummarizes an edited transcript.
func (a *App) RegenerateSummary(transcript string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Regenerate(a.ctx, transcript)
}

func (a *App) Clear() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Clear()
}

// SaveToHistory stores the current recording with the edited text.
func (a *App) SaveToHistory(transcript string, translation string, summary string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.controller.Save(a.ctx, usecase.SaveRequest{
		Transcript:  transcript,
		Translation: translation,
		Summary:     summary,
	})
}

// ListHistory returns saved sessions, newest first.
func (a *App) ListHistory() ([]domain.HistoryEntry, error) {
	if err := a.requireHistory(); err != nil {
		return nil, err
	}
	return historyEntries(a.history.Load()), nil
}

func (a *App) LoadFromHistory(id string) (domain.SessionContent, error) {
	if err := a.requireReady(); err != nil {
		return domain.SessionContent{}, err
	}
	return a.controller.LoadSession(id)
}

func (a *App) DeleteFromHistory(id string) error {
	if err := a.requireHistory(); err != nil {
		return err
	}
	if !a.history.Delete(id) {
		a.SessionError(domain.ErrorCodeHistory, fmt.Sprintf("failed to delete %s", id))
		return fmt.Errorf("failed to delete %s", id)
	}
	return nil
}

// UpdateHistory overwrites the three text files of a saved session.
func (a *App) UpdateHistory(id string, transcript string, translation string, summary string) error {
	if err := a.requireHistory(); err != nil {
		return err
	}
	ok := a.history.Update(id, history.Update{
		Transcript:  &transcript,
		Translation: &translation,
		Summary:     &summary,
	})
	if !ok {
		a.SessionError(domain.ErrorCodeHistory, fmt.Sprintf("failed to update %s", id))
		return fmt.Errorf("failed to update %s", id)
	}
	return nil
}

// SearchHistory finds sessions whose text contains query.
func (a *App) SearchHistory(query string) ([]domain.HistoryEntry, error) {
	if err := a.requireHistory(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return historyEntries(a.history.Load()), nil
	}
	records, err := a.history.Search(a.ctx, query)
	if err != nil {
		return nil, err
	}
	return historyEntries(records), nil
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if a.controller == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.controller == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	translators := make([]string, 0, 3)
	for _, kind := range a.services.Translator.Providers() {
		translators = append(translators, string(kind))
	}
	return map[string]string{
		"provider":          "Deepgram",
		"model":             cfg.Deepgram.Model,
		"languages":         strings.Join(cfg.Translation.Languages, ","),
		"targetLanguage":    cfg.Translation.Target,
		"translators":       strings.Join(translators, ","),
		"glossaryTerms":     strconv.Itoa(a.services.Glossary.Len()),
		"summaryModel":      cfg.OpenAI.SummaryModel,
		"summaryConfigured": strconv.FormatBool(a.services.Summarizer.Configured()),
		"historyDir":        a.history.Root(),
		"audioInput":        cfg.Audio.InputDevice,
		"audioInputFormat":  cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) requireHistory() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.history == nil {
		return fmt.Errorf("history is not initialized")
	}
	return nil
}

// historyEntries converts index records to list rows, newest first.
func historyEntries(records []history.Record) []domain.HistoryEntry {
	entries := make([]domain.HistoryEntry, 0, len(records))
	for _, record := range records {
		date := record.Meta("date")
		if date == "" {
			date = record.Timestamp
		}
		entries = append(entries, domain.HistoryEntry{
			ID:       record.ID,
			Date:     date,
			Language: record.Meta("language"),
		})
	}
	// ids embed the save time, so they sort chronologically.
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries
}

func (a *App) send(name string, data interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, data)
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.send(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// PartialTranscript emits live partial transcript text.
func (a *App) PartialTranscript(text string) {
	a.send(eventPartial, map[string]string{"text": text})
}

func (a *App) SegmentRecognized(text string) {
	a.send(eventSegment, map[string]string{"text": text})
}

func (a *App) SegmentTranslated(segment domain.Segment) {
	a.send(eventTranslation, segment)
}

func (a *App) LanguageDetected(language string) {
	a.send(eventLanguage, map[string]string{"language": language})
}

func (a *App) TranslationReplaced(translation string) {
	a.send(eventTranslationReplaced, map[string]string{"translation": translation})
}

func (a *App) SummaryReady(summary string) {
	a.send(eventSummary, map[string]string{"summary": summary})
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	a.send(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Recording..."
	case domain.SessionReasonRecordingRestarted:
		return "Recording restarted; previous capture discarded"
	case domain.SessionReasonStopping:
		return "Stopping..."
	case domain.SessionReasonStopped:
		return "Stopped"
	case domain.SessionReasonSummarizing:
		return "Generating summary..."
	case domain.SessionReasonSummaryReady:
		return "Summary generated"
	case domain.SessionReasonSummaryFailed:
		return "Summary generation failed"
	case domain.SessionReasonRegenerating:
		return "Regenerating summary..."
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonNoTranscript:
		return "No transcript captured"
	case domain.SessionReasonTranscriptionFailed:
		return "Transcription failed"
	case domain.SessionReasonCleared:
		return "Cleared"
	case domain.SessionReasonSaved:
		return "Saved to history"
	case domain.SessionReasonLoaded:
		return "Loaded from history"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeSummary:
		return "Summary generation failed"
	case domain.ErrorCodeHistory:
		return "History error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
