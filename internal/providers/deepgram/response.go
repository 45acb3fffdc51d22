package deepgram

import (
	"strings"

	"confagent/internal/domain"
)

type alternative struct {
	Transcript string   `json:"transcript"`
	Languages  []string `json:"languages"`
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []alternative `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (r listenResponse) best() (alternative, bool) {
	if len(r.Channel.Alternatives) > 0 && strings.TrimSpace(r.Channel.Alternatives[0].Transcript) != "" {
		return r.Channel.Alternatives[0], true
	}
	if len(r.Results.Channels) > 0 && len(r.Results.Channels[0].Alternatives) > 0 {
		alt := r.Results.Channels[0].Alternatives[0]
		return alt, strings.TrimSpace(alt.Transcript) != ""
	}
	return alternative{}, false
}

// event converts a listen response into a transcript event. Responses without
// text are skipped.
func (r listenResponse) event(fallbackLanguage string) (domain.TranscriptEvent, bool) {
	alt, ok := r.best()
	if !ok {
		return domain.TranscriptEvent{}, false
	}

	event := domain.TranscriptEvent{
		Text:          strings.TrimSpace(alt.Transcript),
		Language:      fallbackLanguage,
		IsSpeechFinal: r.SpeechFinal,
		Kind:          domain.TranscriptKindPartial,
	}
	if len(alt.Languages) > 0 && strings.TrimSpace(alt.Languages[0]) != "" {
		event.Language = strings.TrimSpace(alt.Languages[0])
	}
	if r.IsFinal || r.SpeechFinal {
		event.Kind = domain.TranscriptKindFinal
	}
	return event, true
}
