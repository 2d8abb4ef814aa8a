// Package store persists buffers, chunks, embeddings, and a small
// key-value variable namespace in SQLite. It is the only component that
// touches durable state; every other package sees only the transient views
// this package hands back.
//
// The store runs SQLite in WAL mode with a busy timeout, a single dedicated
// writer connection guarded by a mutex, and an unbounded pool of read-only
// reader connections, so reads never block behind a write transaction.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ariadne-eng/queryengine/internal/enginerr"
	"github.com/ariadne-eng/queryengine/internal/telemetry"
	"github.com/ariadne-eng/queryengine/model"
	"go.uber.org/zap"
)

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS buffers (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	name         TEXT NOT NULL UNIQUE,
	content      TEXT NOT NULL,
	source_path  TEXT NOT NULL DEFAULT '',
	byte_size    INTEGER NOT NULL DEFAULT 0,
	line_count   INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	chunk_count  INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	updated_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
);

CREATE TABLE IF NOT EXISTS chunks (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	buffer_id    INTEGER NOT NULL REFERENCES buffers(id) ON DELETE CASCADE,
	idx          INTEGER NOT NULL,
	start_byte   INTEGER NOT NULL,
	end_byte     INTEGER NOT NULL,
	text         TEXT NOT NULL,
	strategy     TEXT NOT NULL DEFAULT '',
	token_count  INTEGER NOT NULL DEFAULT 0,
	overlap      INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL DEFAULT '',
	UNIQUE(buffer_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_chunks_buffer ON chunks(buffer_id);

CREATE TABLE IF NOT EXISTS embeddings (
	chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	model    TEXT NOT NULL,
	vector   BLOB NOT NULL,
	PRIMARY KEY (chunk_id, model)
);

CREATE TABLE IF NOT EXISTS variables (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is the chunk store (C1): SQLite-backed persistence for buffers,
// chunks, embeddings, and session variables.
type Store struct {
	writeMu sync.Mutex
	writeDB *sql.DB
	readDB  *sql.DB
	path    string
}

// Open opens or creates a SQLite-backed store at path, applying schema
// migrations as needed.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, enginerr.NewIoError("mkdir", err)
			}
		}
	}

	writeDSN := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	writeDB, err := sql.Open("sqlite3", writeDSN)
	if err != nil {
		return nil, enginerr.NewIoError("open writer", err)
	}
	writeDB.SetMaxOpenConns(1)

	var readDB *sql.DB
	if path == ":memory:" {
		// A private in-memory writer connection has nothing for a second
		// (read-only) connection to see, so readers share the writer's
		// connection when the store lives entirely in memory. This is only
		// exercised by tests.
		readDB = writeDB
	} else {
		readDSN := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&mode=ro", path)
		readDB, err = sql.Open("sqlite3", readDSN)
		if err != nil {
			writeDB.Close()
			return nil, enginerr.NewIoError("open reader pool", err)
		}
	}

	s := &Store{writeDB: writeDB, readDB: readDB, path: path}
	if err := s.Init(ctx); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory opens an ephemeral store, used by tests.
func OpenInMemory(ctx context.Context) (*Store, error) {
	return Open(ctx, ":memory:")
}

// Close releases both connections.
func (s *Store) Close() error {
	err1 := s.writeDB.Close()
	err2 := s.readDB.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Init creates the schema if missing and records the schema version. A
// migration that changes embedding dimensions would clear all embeddings;
// there is only one schema version so far, so this is a no-op path beyond
// initial creation.
func (s *Store) Init(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writeDB.ExecContext(ctx, schemaDDL); err != nil {
		return enginerr.NewSchemaError("create schema", err)
	}

	var current string
	err := s.writeDB.QueryRowContext(ctx, "SELECT value FROM schema_meta WHERE key = 'version'").Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.writeDB.ExecContext(ctx,
			"INSERT INTO schema_meta (key, value) VALUES ('version', ?)", fmt.Sprint(schemaVersion))
		if err != nil {
			return enginerr.NewSchemaError("record schema version", err)
		}
		telemetry.Named("store").Info("schema initialized", zap.Int("version", schemaVersion))
		return nil
	}
	if err != nil {
		return enginerr.NewSchemaError("read schema version", err)
	}
	// Future migrations that bump schemaVersion and change embedding shape
	// would clear the embeddings table here before updating schema_meta.
	return nil
}

// IsInitialized reports whether the schema has been created.
func (s *Store) IsInitialized(ctx context.Context) (bool, error) {
	var name string
	err := s.readDB.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='schema_meta'").Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, enginerr.NewIoError("is_initialized", err)
	}
	return true, nil
}

// Reset drops every table and recreates an empty schema.
func (s *Store) Reset(ctx context.Context) error {
	s.writeMu.Lock()
	tables := []string{"embeddings", "chunks", "buffers", "variables", "schema_meta"}
	for _, t := range tables {
		if _, err := s.writeDB.ExecContext(ctx, "DROP TABLE IF EXISTS "+t); err != nil {
			s.writeMu.Unlock()
			return enginerr.NewSchemaError("reset: drop "+t, err)
		}
	}
	s.writeMu.Unlock()
	return s.Init(ctx)
}

// PutBuffer inserts a new buffer and returns its id. A name collision
// returns a Conflict error.
func (s *Store) PutBuffer(ctx context.Context, b model.Buffer) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.writeDB.ExecContext(ctx, `
		INSERT INTO buffers (name, content, source_path, byte_size, line_count, content_hash, content_type, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.Content, b.SourcePath, b.ByteSize, b.LineCount, b.ContentHash, b.ContentType, b.ChunkCount, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, enginerr.NewConflict("buffer", b.Name)
		}
		return 0, enginerr.NewIoError("put_buffer", err)
	}
	return res.LastInsertId()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanBuffer(row interface{ Scan(...interface{}) error }) (*model.Buffer, error) {
	var b model.Buffer
	var created, updated string
	err := row.Scan(&b.ID, &b.Name, &b.Content, &b.SourcePath, &b.ByteSize, &b.LineCount,
		&b.ContentHash, &b.ContentType, &b.ChunkCount, &created, &updated)
	if err != nil {
		return nil, err
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &b, nil
}

const bufferCols = "id, name, content, source_path, byte_size, line_count, content_hash, content_type, chunk_count, created_at, updated_at"

// GetBufferByID looks up a buffer by id. Returns nil, nil if absent.
func (s *Store) GetBufferByID(ctx context.Context, id int64) (*model.Buffer, error) {
	row := s.readDB.QueryRowContext(ctx, "SELECT "+bufferCols+" FROM buffers WHERE id = ?", id)
	b, err := scanBuffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, enginerr.NewIoError("get_buffer", err)
	}
	return b, nil
}

// GetBufferByName looks up a buffer by name. Returns nil, nil if absent.
func (s *Store) GetBufferByName(ctx context.Context, name string) (*model.Buffer, error) {
	row := s.readDB.QueryRowContext(ctx, "SELECT "+bufferCols+" FROM buffers WHERE name = ?", name)
	b, err := scanBuffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, enginerr.NewIoError("get_buffer", err)
	}
	return b, nil
}

// ListBuffers returns every buffer, most recently updated first.
func (s *Store) ListBuffers(ctx context.Context) ([]model.Buffer, error) {
	rows, err := s.readDB.QueryContext(ctx, "SELECT "+bufferCols+" FROM buffers ORDER BY updated_at DESC")
	if err != nil {
		return nil, enginerr.NewIoError("list_buffers", err)
	}
	defer rows.Close()

	buffers := []model.Buffer{}
	for rows.Next() {
		b, err := scanBuffer(rows)
		if err != nil {
			return nil, enginerr.NewIoError("list_buffers scan", err)
		}
		buffers = append(buffers, *b)
	}
	return buffers, rows.Err()
}

// DeleteBuffer removes a buffer, cascading to its chunks and embeddings via
// the foreign key ON DELETE CASCADE.
func (s *Store) DeleteBuffer(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.writeDB.ExecContext(ctx, "DELETE FROM buffers WHERE id = ?", id)
	if err != nil {
		return enginerr.NewIoError("delete_buffer", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return enginerr.NewNotFound("buffer", fmt.Sprint(id))
	}
	return nil
}

// UpdateBuffer atomically replaces a buffer's content and its full chunk set.
func (s *Store) UpdateBuffer(ctx context.Context, id int64, newContent string, newChunks []model.Chunk) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return enginerr.NewIoError("update_buffer: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx, `
		UPDATE buffers SET content = ?, byte_size = ?, line_count = ?, chunk_count = ?, updated_at = ?
		WHERE id = ?`,
		newContent, len(newContent), strings.Count(newContent, "\n")+1, len(newChunks), now, id)
	if err != nil {
		return enginerr.NewIoError("update_buffer: update", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return enginerr.NewNotFound("buffer", fmt.Sprint(id))
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE buffer_id = ?", id); err != nil {
		return enginerr.NewIoError("update_buffer: clear chunks", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (buffer_id, idx, start_byte, end_byte, text, strategy, token_count, overlap, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return enginerr.NewIoError("update_buffer: prepare", err)
	}
	defer stmt.Close()

	for _, c := range newChunks {
		if _, err := stmt.ExecContext(ctx, id, c.Index, c.Start, c.End, c.Text, c.Strategy, c.TokenCount, boolToInt(c.Overlap), c.ContentHash); err != nil {
			return enginerr.NewIoError("update_buffer: insert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return enginerr.NewIoError("update_buffer: commit", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PutChunks inserts chunks for a buffer. Chunk.ID and Chunk.BufferID are
// populated on the passed-in slice as a side effect.
func (s *Store) PutChunks(ctx context.Context, bufferID int64, chunks []model.Chunk) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return enginerr.NewIoError("put_chunks: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (buffer_id, idx, start_byte, end_byte, text, strategy, token_count, overlap, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return enginerr.NewIoError("put_chunks: prepare", err)
	}
	defer stmt.Close()

	for i := range chunks {
		res, err := stmt.ExecContext(ctx, bufferID, chunks[i].Index, chunks[i].Start, chunks[i].End,
			chunks[i].Text, chunks[i].Strategy, chunks[i].TokenCount, boolToInt(chunks[i].Overlap), chunks[i].ContentHash)
		if err != nil {
			return enginerr.NewIoError("put_chunks: insert", err)
		}
		id, _ := res.LastInsertId()
		chunks[i].ID = id
		chunks[i].BufferID = bufferID
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE buffers SET chunk_count = (SELECT COUNT(*) FROM chunks WHERE buffer_id = ?) WHERE id = ?",
		bufferID, bufferID); err != nil {
		return enginerr.NewIoError("put_chunks: update chunk_count", err)
	}

	if err := tx.Commit(); err != nil {
		return enginerr.NewIoError("put_chunks: commit", err)
	}
	return nil
}

func scanChunk(row interface{ Scan(...interface{}) error }) (*model.Chunk, error) {
	var c model.Chunk
	var overlap int
	err := row.Scan(&c.ID, &c.BufferID, &c.Index, &c.Start, &c.End, &c.Text, &c.Strategy, &c.TokenCount, &overlap, &c.ContentHash)
	if err != nil {
		return nil, err
	}
	c.Overlap = overlap != 0
	return &c, nil
}

const chunkCols = "id, buffer_id, idx, start_byte, end_byte, text, strategy, token_count, overlap, content_hash"

// GetChunk looks up a single chunk by id. Returns nil, nil if absent.
func (s *Store) GetChunk(ctx context.Context, id int64) (*model.Chunk, error) {
	row := s.readDB.QueryRowContext(ctx, "SELECT "+chunkCols+" FROM chunks WHERE id = ?", id)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, enginerr.NewIoError("get_chunk", err)
	}
	return c, nil
}

// GetChunksByIDs returns chunks aligned to ids; a missing id yields a nil
// slot rather than shrinking the result.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []int64) ([]*model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found := make(map[int64]*model.Chunk, len(ids))
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := "SELECT " + chunkCols + " FROM chunks WHERE id IN (" + strings.Join(placeholders, ",") + ")"
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, enginerr.NewIoError("get_chunks_by_ids", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, enginerr.NewIoError("get_chunks_by_ids scan", err)
		}
		found[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, enginerr.NewIoError("get_chunks_by_ids iterate", err)
	}

	out := make([]*model.Chunk, len(ids))
	for i, id := range ids {
		out[i] = found[id]
	}
	return out, nil
}

// GetChunkMetadataBatch is a bulk-safe, single-round-trip lookup of chunk
// positions without their text.
func (s *Store) GetChunkMetadataBatch(ctx context.Context, ids []int64) ([]*model.ChunkRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found := make(map[int64]*model.ChunkRef, len(ids))
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := "SELECT id, buffer_id, idx, start_byte, end_byte FROM chunks WHERE id IN (" + strings.Join(placeholders, ",") + ")"
	rows, err := s.readDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, enginerr.NewIoError("get_chunk_metadata_batch", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r model.ChunkRef
		if err := rows.Scan(&r.ID, &r.BufferID, &r.Index, &r.Start, &r.End); err != nil {
			return nil, enginerr.NewIoError("get_chunk_metadata_batch scan", err)
		}
		found[r.ID] = &r
	}
	if err := rows.Err(); err != nil {
		return nil, enginerr.NewIoError("get_chunk_metadata_batch iterate", err)
	}

	out := make([]*model.ChunkRef, len(ids))
	for i, id := range ids {
		out[i] = found[id]
	}
	return out, nil
}

// ListChunks returns every chunk of a buffer, ordered by index.
func (s *Store) ListChunks(ctx context.Context, bufferID int64) ([]model.Chunk, error) {
	rows, err := s.readDB.QueryContext(ctx, "SELECT "+chunkCols+" FROM chunks WHERE buffer_id = ? ORDER BY idx ASC", bufferID)
	if err != nil {
		return nil, enginerr.NewIoError("list_chunks", err)
	}
	defer rows.Close()

	chunks := []model.Chunk{}
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, enginerr.NewIoError("list_chunks scan", err)
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

// DeleteChunks removes every chunk belonging to a buffer (and, via cascade,
// their embeddings) without deleting the buffer itself.
func (s *Store) DeleteChunks(ctx context.Context, bufferID int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writeDB.ExecContext(ctx, "DELETE FROM chunks WHERE buffer_id = ?", bufferID); err != nil {
		return enginerr.NewIoError("delete_chunks", err)
	}
	if _, err := s.writeDB.ExecContext(ctx, "UPDATE buffers SET chunk_count = 0 WHERE id = ?", bufferID); err != nil {
		return enginerr.NewIoError("delete_chunks: reset count", err)
	}
	return nil
}

// PutEmbedding stores (or replaces) the embedding for a chunk under a model
// identifier.
func (s *Store) PutEmbedding(ctx context.Context, chunkID int64, modelName string, vec []float32) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.writeDB.ExecContext(ctx,
		"INSERT OR REPLACE INTO embeddings (chunk_id, model, vector) VALUES (?, ?, ?)",
		chunkID, modelName, encodeVector(vec))
	if err != nil {
		return enginerr.NewIoError("put_embedding", err)
	}
	return nil
}

// GetEmbedding looks up an embedding. Returns nil, nil if absent.
func (s *Store) GetEmbedding(ctx context.Context, chunkID int64, modelName string) (*model.Embedding, error) {
	var blob []byte
	err := s.readDB.QueryRowContext(ctx,
		"SELECT vector FROM embeddings WHERE chunk_id = ? AND model = ?", chunkID, modelName).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, enginerr.NewIoError("get_embedding", err)
	}
	return &model.Embedding{ChunkID: chunkID, Model: modelName, Vector: decodeVector(blob)}, nil
}

// MissingEmbeddings returns the chunk ids of a buffer that have no embedding
// under the given model.
func (s *Store) MissingEmbeddings(ctx context.Context, bufferID int64, modelName string) ([]int64, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT c.id FROM chunks c
		WHERE c.buffer_id = ?
		AND NOT EXISTS (SELECT 1 FROM embeddings e WHERE e.chunk_id = c.id AND e.model = ?)
		ORDER BY c.idx ASC`, bufferID, modelName)
	if err != nil {
		return nil, enginerr.NewIoError("missing_embeddings", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, enginerr.NewIoError("missing_embeddings scan", err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, rows.Err()
}

// Stats summarizes the store's contents.
func (s *Store) Stats(ctx context.Context) (model.StorageStats, error) {
	var stats model.StorageStats
	if err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM buffers").Scan(&stats.Buffers); err != nil {
		return stats, enginerr.NewIoError("stats: buffers", err)
	}
	if err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&stats.Chunks); err != nil {
		return stats, enginerr.NewIoError("stats: chunks", err)
	}
	if err := s.readDB.QueryRowContext(ctx, "SELECT COALESCE(SUM(byte_size),0) FROM buffers").Scan(&stats.Bytes); err != nil {
		return stats, enginerr.NewIoError("stats: bytes", err)
	}
	if err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(DISTINCT chunk_id) FROM embeddings").Scan(&stats.EmbeddedChunks); err != nil {
		return stats, enginerr.NewIoError("stats: embedded_chunks", err)
	}
	return stats, nil
}

// SetVariable stores a session-scoped key/value pair.
func (s *Store) SetVariable(ctx context.Context, key, value string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.writeDB.ExecContext(ctx, "INSERT OR REPLACE INTO variables (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return enginerr.NewIoError("set_variable", err)
	}
	return nil
}

// GetVariable looks up a session-scoped value. Returns "", false if absent.
func (s *Store) GetVariable(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.readDB.QueryRowContext(ctx, "SELECT value FROM variables WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, enginerr.NewIoError("get_variable", err)
	}
	return value, true, nil
}

// encodeVector packs a float32 slice as a little-endian byte blob. No repo
// in the pack ships a vector-native SQLite extension, so embeddings
// round-trip through a plain BLOB column instead.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
