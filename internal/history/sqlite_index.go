package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteIndex is a searchable projection of the history kept in SQLite.
type SQLiteIndex struct {
	db *sql.DB
}

// DefaultIndexPath returns the projection location inside a history root.
func DefaultIndexPath(root string) string {
	return filepath.Join(root, ".index", "search.db")
}

func OpenSQLiteIndex(path string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	index := &SQLiteIndex{db: db}
	if err := index.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return index, nil
}

func (x *SQLiteIndex) Close() error {
	return x.db.Close()
}

// schemaVersion is bumped whenever the sessions table changes shape. The
// table only mirrors the JSON index, so an outdated one is dropped and
// rebuilt by Reindex.
const schemaVersion = 2

func (x *SQLiteIndex) ensureSchema(ctx context.Context) error {
	var version int
	if err := x.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		if _, err := x.db.ExecContext(ctx, `DROP TABLE IF EXISTS sessions`); err != nil {
			return fmt.Errorf("drop sessions table: %w", err)
		}
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  timestamp TEXT NOT NULL,
  date TEXT,
  language TEXT,
  transcript TEXT NOT NULL,
  translation TEXT NOT NULL,
  summary TEXT NOT NULL,
  transcript_folded TEXT NOT NULL,
  translation_folded TEXT NOT NULL,
  summary_folded TEXT NOT NULL
);
`
	if _, err := x.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	if _, err := x.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return nil
}

func (x *SQLiteIndex) Reset(ctx context.Context) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
		return fmt.Errorf("reset sessions: %w", err)
	}
	return nil
}

// Count reports how many sessions the projection holds.
func (x *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (x *SQLiteIndex) Upsert(ctx context.Context, record Record, content Content) error {
	const stmt = `
INSERT INTO sessions (id, timestamp, date, language, transcript, translation, summary,
  transcript_folded, translation_folded, summary_folded)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  timestamp=excluded.timestamp,
  date=excluded.date,
  language=excluded.language,
  transcript=excluded.transcript,
  translation=excluded.translation,
  summary=excluded.summary,
  transcript_folded=excluded.transcript_folded,
  translation_folded=excluded.translation_folded,
  summary_folded=excluded.summary_folded;
`
	_, err := x.db.ExecContext(ctx, stmt,
		record.ID,
		record.Timestamp,
		record.Meta("date"),
		record.Meta("language"),
		content.Transcript,
		content.Translation,
		content.Summary,
		fold(content.Transcript),
		fold(content.Translation),
		fold(content.Summary),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (x *SQLiteIndex) Remove(ctx context.Context, id string) error {
	if _, err := x.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Search matches query as a case-insensitive substring of any stored text.
// Folding happens in Go so non-ASCII text matches the same way as the file
// scan.
func (x *SQLiteIndex) Search(ctx context.Context, query string) ([]string, error) {
	needle := fold(query)
	rows, err := x.db.QueryContext(ctx, `
SELECT id FROM sessions
WHERE ? = ''
   OR instr(transcript_folded, ?) > 0
   OR instr(translation_folded, ?) > 0
   OR instr(summary_folded, ?) > 0
ORDER BY timestamp DESC, id DESC
`, needle, needle, needle, needle)
	if err != nil {
		return nil, fmt.Errorf("search sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
