package contentstore

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"
)

const (
	schemaVersion  = 1
	schemaChecksum = "cs-v1-content-blobs"

	timeLayout = "2006-01-02 15:04:05"
)

// ErrNotFound is returned by Get when a reference id has no stored bytes
// (never stored, or already dropped by retention).
var ErrNotFound = errors.New("content not found")

// Config holds store tunables.
type Config struct {
	Path           string // SQLite file path; ":memory:" for tests
	ThresholdBytes int    // externalization cutoff; default DefaultThresholdBytes
	PreviewChars   int    // preview length; default DefaultPreviewChars
}

// Store is a content-addressed blob store backed by SQLite. Payloads are
// keyed by their blake3 digest and zstd-compressed at rest, so storing the
// same bytes twice yields the same reference. Safe for use from multiple
// sessions: SQLite serializes the bookkeeping.
type Store struct {
	db           *sql.DB
	threshold    int
	previewChars int
	logger       *slog.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New opens (creating if needed) the store at cfg.Path.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ThresholdBytes <= 0 {
		cfg.ThresholdBytes = DefaultThresholdBytes
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultPreviewChars
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open content store: %w", err)
	}
	// A single connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY under concurrent sessions.
	db.SetMaxOpenConns(1)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}

	s := &Store{
		db:           db,
		threshold:    cfg.ThresholdBytes,
		previewChars: cfg.PreviewChars,
		logger:       logger,
		enc:          enc,
		dec:          dec,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_info (
			version INTEGER NOT NULL,
			checksum TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS content_blobs (
			id TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			size_bytes INTEGER NOT NULL,
			kind TEXT NOT NULL,
			media_type TEXT NOT NULL DEFAULT '',
			file_name TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			preview TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			last_accessed TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blobs_last_accessed ON content_blobs(last_accessed)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_info`).Scan(&count); err != nil {
		return fmt.Errorf("read schema info: %w", err)
	}
	if count == 0 {
		if _, err := s.db.Exec(`INSERT INTO schema_info (version, checksum) VALUES (?, ?)`, schemaVersion, schemaChecksum); err != nil {
			return fmt.Errorf("write schema info: %w", err)
		}
	}
	return nil
}

// Close releases the database and compression resources.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

// ShouldExternalize reports whether content of the given size belongs in
// the store rather than inline in the conversation.
func (s *Store) ShouldExternalize(sizeBytes int) bool {
	return sizeBytes >= s.threshold
}

// Put stores data and returns its reference. The id is the blake3 digest of
// the payload, so identical content dedupes to one row (the metadata of the
// first write wins; last_accessed is refreshed). Declines empty payloads.
func (s *Store) Put(ctx context.Context, data []byte, meta Metadata) (*Reference, error) {
	if len(data) == 0 {
		return nil, errors.New("refusing to store empty content")
	}

	digest := blake3.Sum256(data)
	id := hex.EncodeToString(digest[:])
	preview := makePreview(data, meta, s.previewChars)
	compressed := s.enc.EncodeAll(data, nil)

	tags, err := json.Marshal(meta.Tags)
	if err != nil {
		tags = []byte("[]")
	}

	now := time.Now().UTC()
	stmt := `
		INSERT INTO content_blobs
			(id, data, size_bytes, kind, media_type, file_name, source, tool_name, preview, tags, created_at, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_accessed = excluded.last_accessed
	`
	_, err = s.db.ExecContext(ctx, stmt,
		id, compressed, len(data), meta.Kind, meta.MediaType, meta.FileName,
		meta.Source, meta.ToolQualifiedName, preview, string(tags),
		now.Format(timeLayout), now.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}

	s.logger.Debug("content externalized",
		"id", id[:12], "size_bytes", len(data), "kind", meta.Kind, "tool", meta.ToolQualifiedName)

	// Read the row back: on a dedupe conflict the first write's metadata is
	// kept, and the returned reference must match what Get and List report.
	ref := &Reference{ID: id, SizeBytes: len(data)}
	var created string
	err = s.db.QueryRowContext(ctx, `
		SELECT kind, media_type, file_name, source, preview, created_at
		FROM content_blobs WHERE id = ?`, id).
		Scan(&ref.Kind, &ref.MediaType, &ref.FileName, &ref.Source, &ref.Preview, &created)
	if err != nil {
		return nil, fmt.Errorf("read back content: %w", err)
	}
	ref.CreatedAt, _ = time.Parse(timeLayout, created)
	return ref, nil
}

// Get returns the original bytes for a reference id and refreshes its
// last-accessed time. Returns ErrNotFound when retention already dropped it.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM content_blobs WHERE id = ?`, id).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}

	data, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress content %s: %w", id, err)
	}

	now := time.Now().UTC().Format(timeLayout)
	if _, err := s.db.ExecContext(ctx, `UPDATE content_blobs SET last_accessed = ? WHERE id = ?`, now, id); err != nil {
		s.logger.Warn("failed to touch content", "id", id, "error", err)
	}
	return data, nil
}

// IsLive reports whether a reference id still has stored bytes.
func (s *Store) IsLive(ctx context.Context, id string) bool {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM content_blobs WHERE id = ?`, id).Scan(&one)
	return err == nil
}

// List returns the most recently created references, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Reference, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, preview, size_bytes, kind, media_type, file_name, source, created_at
		FROM content_blobs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var refs []Reference
	for rows.Next() {
		var r Reference
		var created string
		if err := rows.Scan(&r.ID, &r.Preview, &r.SizeBytes, &r.Kind, &r.MediaType, &r.FileName, &r.Source, &created); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(timeLayout, created)
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// DeleteExpired removes blobs whose last access is older than maxAge.
// Returns the number of rows dropped.
func (s *Store) DeleteExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(timeLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_blobs WHERE last_accessed < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired content: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("retention sweep dropped content", "count", n, "max_age", maxAge)
	}
	return int(n), nil
}

// Stats summarizes store occupancy.
type Stats struct {
	Count      int
	TotalBytes int64
}

// GetStats returns row count and total uncompressed bytes.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM content_blobs`).Scan(&st.Count, &st.TotalBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("store stats: %w", err)
	}
	return st, nil
}
