// Package history persists finished sessions as one directory per session
// plus a JSON index listing every session in save order.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("session not found")

// Projector mirrors history into a secondary index. The JSON index stays
// authoritative; projector failures are logged only.
type Projector interface {
	Upsert(ctx context.Context, record Record, content Content) error
	Remove(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

// Store reads and writes the history directory. Every mutation rewrites the
// whole index file; there is no cross-process locking.
type Store struct {
	root      string
	indexPath string
	clock     Clock
	logger    *log.Logger
	projector Projector

	mu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithProjector(projector Projector) Option {
	return func(s *Store) { s.projector = projector }
}

// Open prepares the history root, creating it when missing.
func Open(root string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		root = "recordings_history"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve history dir %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir %q: %w", abs, err)
	}

	s := &Store{
		root:      abs,
		indexPath: filepath.Join(abs, indexFileName),
		clock:     systemClock{},
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute history directory.
func (s *Store) Root() string {
	return s.root
}

// Save writes a new session directory and appends it to the index. All
// three text files are written even when empty. Ids have one-second
// resolution; a save that lands on an existing session directory fails with
// an error wrapping os.ErrExist.
func (s *Store) Save(audioSource, transcript, translation, summary string, metadata map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, timestamp := newSessionID(s.clock.Now())
	dir := filepath.Join(s.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("create session dir %s: %w", id, err)
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	record := Record{
		ID:              id,
		Timestamp:       timestamp,
		AudioFile:       filepath.Join(dir, audioFileName),
		TranscriptFile:  filepath.Join(dir, transcriptFileName),
		TranslationFile: filepath.Join(dir, translationFileName),
		SummaryFile:     filepath.Join(dir, summaryFileName),
		Metadata:        metadata,
	}

	if err := copyAudio(audioSource, record.AudioFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("copy audio: %w", err)
		}
		s.logger.Printf("[HISTORY]: audio source %q missing, saving %s without audio", audioSource, id)
	}

	content := Content{Transcript: transcript, Translation: translation, Summary: summary}
	files := []struct {
		path, text string
	}{
		{record.TranscriptFile, content.Transcript},
		{record.TranslationFile, content.Translation},
		{record.SummaryFile, content.Summary},
	}
	for _, file := range files {
		if err := os.WriteFile(file.path, []byte(file.text), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", filepath.Base(file.path), err)
		}
	}

	records := s.load()
	records = append(records, record)
	if err := s.writeIndex(records); err != nil {
		return "", err
	}

	s.project(func(ctx context.Context, p Projector) error { return p.Upsert(ctx, record, content) })
	return id, nil
}

// Load returns every indexed record in save order. A missing or unreadable
// index yields an empty list.
func (s *Store) Load() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get finds a record by exact id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

// Delete removes the session directory, then rewrites the index without the
// entry. The two steps are not transactional.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(id); !ok {
		return false
	}
	dir, err := s.sessionDir(id)
	if err != nil {
		s.logger.Printf("[HISTORY]: refusing to delete %q: %v", id, err)
		return false
	}
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Printf("[HISTORY]: failed to remove %s: %v", dir, err)
		return false
	}

	records := s.load()
	kept := make([]Record, 0, len(records))
	for _, record := range records {
		if record.ID != id {
			kept = append(kept, record)
		}
	}
	if err := s.writeIndex(kept); err != nil {
		s.logger.Printf("[HISTORY]: removed %s but failed to rewrite index: %v", id, err)
		return false
	}

	s.project(func(ctx context.Context, p Projector) error { return p.Remove(ctx, id) })
	return true
}

// Update overwrites the selected text files of an existing session. The
// index entry is not modified.
func (s *Store) Update(id string, update Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.get(id)
	if !ok {
		return false
	}

	writes := []struct {
		path string
		text *string
	}{
		{record.TranscriptFile, update.Transcript},
		{record.TranslationFile, update.Translation},
		{record.SummaryFile, update.Summary},
	}
	for _, w := range writes {
		if w.text == nil {
			continue
		}
		if err := os.WriteFile(w.path, []byte(*w.text), 0o644); err != nil {
			s.logger.Printf("[HISTORY]: failed to update %s: %v", w.path, err)
			return false
		}
	}

	if s.projector != nil {
		if content, err := readContent(record); err == nil {
			s.project(func(ctx context.Context, p Projector) error { return p.Upsert(ctx, record, content) })
		}
	}
	return true
}

// Read loads the text files of a session.
func (s *Store) Read(id string) (Content, error) {
	s.mu.Lock()
	record, ok := s.get(id)
	s.mu.Unlock()
	if !ok {
		return Content{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return readContent(record)
}

// Reindex rebuilds the projection from the JSON index and reports how many
// sessions were projected.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	if s.projector == nil {
		return 0, errors.New("no search index configured")
	}
	records := s.Load()
	if err := s.projector.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset search index: %w", err)
	}

	count := 0
	for _, record := range records {
		content, err := readContent(record)
		if err != nil {
			s.logger.Printf("[HISTORY]: skipping %s during reindex: %v", record.ID, err)
			continue
		}
		if err := s.projector.Upsert(ctx, record, content); err != nil {
			return count, fmt.Errorf("project %s: %w", record.ID, err)
		}
		count++
	}
	return count, nil
}

func (s *Store) load() []Record {
	contents, err := os.ReadFile(s.indexPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Printf("[HISTORY]: failed to read index: %v", err)
		}
		return []Record{}
	}

	var records []Record
	if err := json.Unmarshal(contents, &records); err != nil {
		s.logger.Printf("[HISTORY]: failed to parse index: %v", err)
		return []Record{}
	}
	if records == nil {
		records = []Record{}
	}
	return records
}

func (s *Store) get(id string) (Record, bool) {
	for _, record := range s.load() {
		if record.ID == id {
			return record, true
		}
	}
	return Record{}, false
}

func (s *Store) writeIndex(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	if err := os.WriteFile(s.indexPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

func (s *Store) sessionDir(id string) (string, error) {
	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(s.root, id), nil
}

func (s *Store) project(fn func(ctx context.Context, p Projector) error) {
	if s.projector == nil {
		return
	}
	if err := fn(context.Background(), s.projector); err != nil {
		s.logger.Printf("[HISTORY]: search index update failed: %v", err)
	}
}

func readContent(record Record) (Content, error) {
	var content Content
	reads := []struct {
		path string
		dst  *string
	}{
		{record.TranscriptFile, &content.Transcript},
		{record.TranslationFile, &content.Translation},
		{record.SummaryFile, &content.Summary},
	}
	for _, r := range reads {
		data, err := os.ReadFile(r.path)
		if err != nil {
			return Content{}, fmt.Errorf("read %s: %w", filepath.Base(r.path), err)
		}
		*r.dst = string(data)
	}
	return content, nil
}

func copyAudio(source, dest string) error {
	if strings.TrimSpace(source) == "" {
		return os.ErrNotExist
	}
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}
