package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"confagent/internal/domain"
	"confagent/internal/ports"
)

const minChunkSize = 256

// audioPump moves captured PCM to the recognizer and tees it into the
// recording sink. A failing sink is reported once and then skipped so live
// transcription continues.
type audioPump struct {
	audio     ports.AudioSession
	stream    ports.StreamingSession
	sink      io.Writer
	chunkSize int
	events    ports.EventSink

	done chan struct{}

	// captured is only read after done is closed.
	captured int64
}

func newAudioPump(audio ports.AudioSession, stream ports.StreamingSession, sink io.Writer, chunkSize int, events ports.EventSink) *audioPump {
	if chunkSize < minChunkSize {
		chunkSize = 4096
	}
	return &audioPump{
		audio:     audio,
		stream:    stream,
		sink:      sink,
		chunkSize: chunkSize,
		events:    events,
		done:      make(chan struct{}),
	}
}

func (p *audioPump) run() {
	defer close(p.done)

	buf := make([]byte, p.chunkSize)
	for {
		n, err := p.audio.Read(buf)
		if n > 0 {
			p.captured += int64(n)
			p.record(buf[:n])
			if sendErr := p.stream.SendAudio(buf[:n]); sendErr != nil {
				p.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				p.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

func (p *audioPump) record(chunk []byte) {
	if p.sink == nil {
		return
	}
	if _, err := p.sink.Write(chunk); err != nil {
		p.events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to record audio: %v", err))
		p.sink = nil
	}
}

// wait blocks until the capture loop has finished.
func (p *audioPump) wait() {
	<-p.done
}

// recorded converts the captured byte count into meeting time for 16-bit PCM
// in the given layout. Call it after wait.
func (p *audioPump) recorded(cfg ports.AudioConfig) time.Duration {
	rate, channels := cfg.SampleRate, cfg.Channels
	if rate <= 0 {
		rate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	bytesPerSecond := int64(rate * channels * 2)
	return time.Duration(p.captured * int64(time.Second) / bytesPerSecond)
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}
