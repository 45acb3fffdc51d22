package history

import (
	"context"
	"strings"
)

// Searcher is implemented by projections that can answer text queries with
// matching session ids, most recent first.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// Counter is implemented by projections that can report how many sessions
// they hold.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// SyncProjection rebuilds the projection when its size differs from the JSON
// index, which happens for history written without it. It reports whether a
// rebuild ran.
func (s *Store) SyncProjection(ctx context.Context) (bool, error) {
	counter, ok := s.projector.(Counter)
	if !ok {
		return false, nil
	}
	projected, err := counter.Count(ctx)
	if err != nil {
		return false, err
	}
	if projected == len(s.Load()) {
		return false, nil
	}
	if _, err := s.Reindex(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Search returns sessions whose transcript, translation or summary contains
// query, ignoring case. It uses the projection when one is configured and
// scans the session files otherwise.
func (s *Store) Search(ctx context.Context, query string) ([]Record, error) {
	records := s.Load()
	query = strings.TrimSpace(query)

	if searcher, ok := s.projector.(Searcher); ok {
		ids, err := searcher.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]Record, len(records))
		for _, record := range records {
			byID[record.ID] = record
		}
		hits := make([]Record, 0, len(ids))
		for _, id := range ids {
			if record, ok := byID[id]; ok {
				hits = append(hits, record)
			}
		}
		return hits, nil
	}

	needle := fold(query)
	hits := make([]Record, 0)
	for i := len(records) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		content, err := readContent(records[i])
		if err != nil {
			continue
		}
		if contentMatches(content, needle) {
			hits = append(hits, records[i])
		}
	}
	return hits, nil
}

func contentMatches(content Content, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range []string{content.Transcript, content.Translation, content.Summary} {
		if strings.Contains(fold(field), needle) {
			return true
		}
	}
	return false
}

// fold is the case folding shared by the file scan and the SQLite projection,
// whose built-in lower() only handles ASCII.
func fold(text string) string {
	return strings.ToLower(text)
}
