package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"confagent/internal/ports"
)

const pcmBitDepth = 16

// WAVRecorder writes captured PCM into temporary WAV files.
type WAVRecorder struct {
	dir string
	now func() time.Time
}

// NewWAVRecorder stores recordings in dir, or the system temp dir when empty.
func NewWAVRecorder(dir string) *WAVRecorder {
	if dir == "" {
		dir = os.TempDir()
	}
	return &WAVRecorder{dir: dir, now: time.Now}
}

func (r *WAVRecorder) Create(cfg ports.AudioConfig) (ports.AudioSink, error) {
	cfg = withCaptureDefaults(cfg)
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}

	name := fmt.Sprintf("recording_%s_%s.wav", r.now().Format("20060102_150405"), uuid.NewString()[:8])
	path := filepath.Join(r.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}

	return &wavSink{
		path:    path,
		file:    file,
		encoder: wav.NewEncoder(file, cfg.SampleRate, pcmBitDepth, cfg.Channels, 1),
		format:  &goaudio.Format{NumChannels: cfg.Channels, SampleRate: cfg.SampleRate},
	}, nil
}

type wavSink struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	encoder *wav.Encoder
	format  *goaudio.Format
	// carry holds an odd trailing byte until its sample is complete.
	carry  []byte
	closed bool
}

func (s *wavSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("wav sink is closed")
	}

	data := append(s.carry, p...)
	whole := len(data) &^ 1
	samples := make([]int, whole/2)
	for i := range samples {
		samples[i] = int(int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8))
	}
	s.carry = append([]byte(nil), data[whole:]...)

	if len(samples) == 0 {
		return len(p), nil
	}
	buf := &goaudio.IntBuffer{Format: s.format, Data: samples, SourceBitDepth: pcmBitDepth}
	if err := s.encoder.Write(buf); err != nil {
		return 0, fmt.Errorf("encode wav: %w", err)
	}
	return len(p), nil
}

func (s *wavSink) Close() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.path, nil
	}
	s.closed = true

	encErr := s.encoder.Close()
	fileErr := s.file.Close()
	if encErr != nil {
		return s.path, fmt.Errorf("finalize wav: %w", encErr)
	}
	if fileErr != nil {
		return s.path, fmt.Errorf("close wav: %w", fileErr)
	}
	return s.path, nil
}

func (s *wavSink) Discard() error {
	_, _ = s.Close()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
