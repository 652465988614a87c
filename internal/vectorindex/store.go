package vectorindex

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id        TEXT PRIMARY KEY,
	path      TEXT NOT NULL,
	chunk     INTEGER NOT NULL,
	text      TEXT NOT NULL,
	embedding BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_path ON records(path);
`

// Record is one embedded chunk of a file.
type Record struct {
	ID        string
	Path      string
	Chunk     int
	Text      string
	Embedding []float32
}

// Match is a record scored against a query.
type Match struct {
	Record
	Score float64
}

// Store persists records in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// DefaultPath returns the index location for a repository.
func DefaultPath(root string) string {
	return filepath.Join(root, ".vibecheck", "vectors.db")
}

// Open opens or creates the store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing index: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Upsert inserts rec or replaces the record with the same ID.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if len(rec.Embedding) == 0 {
		return errors.New("record has no embedding")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, path, chunk, text, embedding) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET path = excluded.path, chunk = excluded.chunk,
			text = excluded.text, embedding = excluded.embedding`,
		rec.ID, rec.Path, rec.Chunk, rec.Text, encodeVector(rec.Embedding))
	if err != nil {
		return fmt.Errorf("upserting %s: %w", rec.ID, err)
	}
	return nil
}

// DeletePath removes every chunk of path.
func (s *Store) DeletePath(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE path = ?`, path); err != nil {
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Search returns the k records most similar to query by cosine similarity,
// best first. Records of a different dimension are skipped.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, chunk, text, embedding FROM records`)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			rec  Record
			blob []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Chunk, &rec.Text, &blob); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rec.Embedding = decodeVector(blob)
		if len(rec.Embedding) != len(query) {
			continue
		}
		matches = append(matches, Match{Record: rec, Score: cosine(query, rec.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosine(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

// encodeVector stores a vector as little-endian float32s.
func encodeVector(vec []float32) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, vec)
	return buf.Bytes()
}

func decodeVector(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, vec); err != nil {
		return nil
	}
	return vec
}
