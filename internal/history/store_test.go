package history

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	now := c.now
	c.now = c.now.Add(time.Second)
	return now
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	base := []Option{
		WithLogger(log.New(io.Discard, "", 0)),
		WithClock(&fixedClock{now: time.Date(2024, 3, 5, 14, 30, 0, 0, time.Local)}),
	}
	store, err := Open(filepath.Join(t.TempDir(), "recordings_history"), append(base, opts...)...)
	require.NoError(t, err)
	return store
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVE"), 0o600))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSaveThenGetReadsBackExactContent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	audio := writeAudio(t)

	id, err := store.Save(audio, "This is about IP law", "这是关于知识产权法的", "摘要", map[string]any{"language": "en-US"})
	require.NoError(t, err)
	assert.Equal(t, "recording_20240305_143000", id)

	record, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "20240305_143000", record.Timestamp)
	assert.Equal(t, "en-US", record.Meta("language"))
	assert.Equal(t, "RIFF....WAVE", readFile(t, record.AudioFile))
	assert.Equal(t, "This is about IP law", readFile(t, record.TranscriptFile))
	assert.Equal(t, "这是关于知识产权法的", readFile(t, record.TranslationFile))
	assert.Equal(t, "摘要", readFile(t, record.SummaryFile))

	dir := filepath.Join(store.Root(), id)
	assert.Equal(t, filepath.Join(dir, "audio.wav"), record.AudioFile)
	assert.Equal(t, filepath.Join(dir, "transcript.txt"), record.TranscriptFile)
}

func TestSaveWritesEmptyFiles(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	id, err := store.Save(writeAudio(t), "", "", "", nil)
	require.NoError(t, err)

	record, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "", readFile(t, record.TranscriptFile))
	assert.Equal(t, "", readFile(t, record.TranslationFile))
	assert.Equal(t, "", readFile(t, record.SummaryFile))
	assert.NotNil(t, record.Metadata)
}

func TestSaveWithoutAudioSourceStillIndexes(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	id, err := store.Save(filepath.Join(t.TempDir(), "gone.wav"), "text", "", "", nil)
	require.NoError(t, err)

	record, ok := store.Get(id)
	require.True(t, ok)
	_, statErr := os.Stat(record.AudioFile)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestSaveAppendsInOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	first, err := store.Save(writeAudio(t), "one", "", "", nil)
	require.NoError(t, err)
	second, err := store.Save(writeAudio(t), "two", "", "", nil)
	require.NoError(t, err)

	records := store.Load()
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0].ID)
	assert.Equal(t, second, records[1].ID)
}

type stoppedClock struct {
	now time.Time
}

func (c stoppedClock) Now() time.Time {
	return c.now
}

func TestSaveInSameSecondKeepsFirstSession(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, WithClock(stoppedClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)}))
	first, err := store.Save("", "first", "", "", nil)
	require.NoError(t, err)

	_, err = store.Save("", "second", "", "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrExist), "got %v", err)

	records := store.Load()
	require.Len(t, records, 1)
	content, err := store.Read(first)
	require.NoError(t, err)
	assert.Equal(t, "first", content.Transcript)
}

func TestIndexFileFormat(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Save(writeAudio(t), "t", "译文", "s", map[string]any{"date": "2024-03-05 14:30:00"})
	require.NoError(t, err)

	index := readFile(t, filepath.Join(store.Root(), "history.json"))
	assert.Contains(t, index, "\n  {\n    \"id\": \"recording_20240305_143000\"")
	assert.Contains(t, index, `"transcript_file"`)
	assert.Contains(t, index, `"date": "2024-03-05 14:30:00"`)
}

func TestLoadMissingOrCorruptIndex(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	assert.Empty(t, store.Load())

	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "history.json"), []byte("{not json"), 0o644))
	records := store.Load()
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestGetUnknownID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, ok := store.Get("recording_19700101_000000")
	assert.False(t, ok)
}

func TestDeleteRemovesDirectoryAndEntry(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	keep, err := store.Save(writeAudio(t), "keep", "", "", nil)
	require.NoError(t, err)
	drop, err := store.Save(writeAudio(t), "drop", "", "", nil)
	require.NoError(t, err)

	assert.True(t, store.Delete(drop))

	_, ok := store.Get(drop)
	assert.False(t, ok)
	_, statErr := os.Stat(filepath.Join(store.Root(), drop))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	records := store.Load()
	require.Len(t, records, 1)
	assert.Equal(t, keep, records[0].ID)
}

func TestDeleteUnknownID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	assert.False(t, store.Delete("recording_missing"))
}

func TestDeleteRejectsPathLikeIDs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(store.Root(), "history.json"),
		[]byte(`[{"id": "../escape", "metadata": {}}]`),
		0o644,
	))

	assert.False(t, store.Delete("../escape"))
	assert.Len(t, store.Load(), 1)
}

func TestUpdateOverwritesOnlySelectedFiles(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	id, err := store.Save(writeAudio(t), "transcript", "translation", "summary", nil)
	require.NoError(t, err)
	before, ok := store.Get(id)
	require.True(t, ok)

	edited := "edited summary"
	empty := ""
	assert.True(t, store.Update(id, Update{Summary: &edited, Translation: &empty}))

	after, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, before, after)

	content, err := store.Read(id)
	require.NoError(t, err)
	assert.Equal(t, Content{Transcript: "transcript", Translation: "", Summary: "edited summary"}, content)
}

func TestUpdateUnknownID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	text := "x"
	assert.False(t, store.Update("recording_missing", Update{Transcript: &text}))
}

func TestReadUnknownID(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Read("recording_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadMissingFileIsLoadFailure(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	id, err := store.Save(writeAudio(t), "a", "b", "c", nil)
	require.NoError(t, err)
	record, _ := store.Get(id)
	require.NoError(t, os.Remove(record.SummaryFile))

	_, err = store.Read(id)
	assert.Error(t, err)
}

func TestSearchWithoutProjectionScansFiles(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	older, err := store.Save(writeAudio(t), "Patent filing deadlines", "", "", nil)
	require.NoError(t, err)
	_, err = store.Save(writeAudio(t), "Budget review", "", "", nil)
	require.NoError(t, err)
	newer, err := store.Save(writeAudio(t), "", "", "next PATENT steps", nil)
	require.NoError(t, err)

	hits, err := store.Search(context.Background(), "patent")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, newer, hits[0].ID)
	assert.Equal(t, older, hits[1].ID)
}

func TestReindexRequiresProjection(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.Reindex(context.Background())
	assert.Error(t, err)
}

func TestProjectorFailuresDoNotFailOperations(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, WithProjector(failingProjector{}))
	id, err := store.Save(writeAudio(t), "a", "", "", nil)
	require.NoError(t, err)

	text := "b"
	assert.True(t, store.Update(id, Update{Transcript: &text}))
	assert.True(t, store.Delete(id))
}

type failingProjector struct{}

func (failingProjector) Upsert(context.Context, Record, Content) error { return errors.New("down") }
func (failingProjector) Remove(context.Context, string) error          { return errors.New("down") }
func (failingProjector) Reset(context.Context) error                   { return errors.New("down") }
