package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confagent/internal/history"
	"confagent/internal/summary"
)

// isolate gives each test its own HOME and working directory and blanks the
// variables that could reach real services.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{
		"CONFAGENT_CONFIG", "CONFAGENT_GLOSSARY_FILE", "CONFAGENT_HISTORY_DIR",
		"CONFAGENT_LANGUAGES", "CONFAGENT_TARGET_LANGUAGE", "OPENAI_API_KEY",
		"OPENAI_BASE_URL", "DEEPGRAM_API_KEY",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("CONFAGENT_DISABLE_WEB_TRANSLATE", "true")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(home))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return home
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seed(t *testing.T, dir string, transcript string) string {
	t.Helper()
	store, err := history.Open(dir, history.WithLogger(log.New(io.Discard, "", 0)))
	require.NoError(t, err)

	id, err := store.Save("", transcript, "translation "+transcript, "summary "+transcript,
		map[string]any{"language": "en", "date": "2024-01-01 10:00:00"})
	require.NoError(t, err)
	return id
}

func TestHistoryCommands(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, "history")
	id := seed(t, dir, "quarterly budget review")

	out, err := run(t, "", "history", "list", "--history-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "2024-01-01 10:00:00")

	out, err = run(t, "", "history", "show", id, "--history-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "## Transcript\nquarterly budget review")
	assert.Contains(t, out, "## Summary\nsummary quarterly budget review")

	// The session was saved without the search index; startup catches it up.
	out, err = run(t, "", "history", "search", "BUDGET", "--history-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, err = run(t, "", "history", "reindex", "--history-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "indexed 1 sessions\n", out)

	out, err = run(t, "", "history", "search", "nothing-like-this", "--history-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no sessions")

	edited := filepath.Join(home, "summary.txt")
	require.NoError(t, os.WriteFile(edited, []byte("new summary"), 0o600))
	_, err = run(t, "", "history", "edit", id, "--summary", edited, "--history-dir", dir)
	require.NoError(t, err)
	out, err = run(t, "", "history", "search", "new summary", "--history-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	_, err = run(t, "", "history", "edit", id, "--history-dir", dir)
	assert.Error(t, err)

	_, err = run(t, "", "history", "delete", id, "--history-dir", dir)
	require.NoError(t, err)
	_, err = run(t, "", "history", "show", id, "--history-dir", dir)
	assert.True(t, errors.Is(err, history.ErrNotFound))
	_, err = run(t, "", "history", "delete", id, "--history-dir", dir)
	assert.Error(t, err)
}

func TestTranslateWithoutProvidersEchoesInput(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, "history")

	out, err := run(t, "", "translate", "hello", "world", "--history-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "hello world\n", out)

	out, err = run(t, "from stdin", "translate", "--history-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", out)

	out, err = run(t, "   ", "translate", "--history-dir", dir)
	require.NoError(t, err)
	assert.Equal(t, "\n", out)
}

func TestProvidersCommand(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, "history")

	out, err := run(t, "", "providers", "--history-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "no translation providers configured")
	assert.Contains(t, out, "target: zh-CN (Simplified Chinese)")

	t.Setenv("CONFAGENT_DISABLE_WEB_TRANSLATE", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	out, err = run(t, "", "providers", "--history-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1. llm\n2. google\n3. mymemory\n")
}

func TestSummarizeRequiresAPIKey(t *testing.T) {
	home := isolate(t)
	transcript := filepath.Join(home, "transcript.txt")
	require.NoError(t, os.WriteFile(transcript, []byte("we agreed to ship on friday"), 0o600))

	_, err := run(t, "", "summarize", transcript, "--history-dir", filepath.Join(home, "history"))
	assert.True(t, errors.Is(err, summary.ErrMissingAPIKey), "got %v", err)
}

func TestSummarizeJoinsTranscriptFiles(t *testing.T) {
	home := isolate(t)
	prompts := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if len(body.Messages) == 2 {
			prompts <- body.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"决定周五发布"}}]}`))
	}))
	defer server.Close()
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_BASE_URL", server.URL)

	first := filepath.Join(home, "part1.txt")
	second := filepath.Join(home, "part2.txt")
	require.NoError(t, os.WriteFile(first, []byte("we agreed to ship\n"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("on friday"), 0o600))

	out, err := run(t, "", "summarize", first, second, "--history-dir", filepath.Join(home, "history"))
	require.NoError(t, err)
	assert.Equal(t, "决定周五发布\n", out)
	assert.Contains(t, <-prompts, "we agreed to ship\non friday")
}
