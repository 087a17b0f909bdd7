package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/voxellab/veldt/grid"
	"github.com/voxellab/veldt/world"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists zstd-compressed chunk blobs in a single SQLite
// database keyed by chunk coordinates.
type SQLiteStore struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.New("creating database directory failed").Wrap(err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New("opening chunk database failed").
			WithTag("path", path).
			Wrap(err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, errors.New("creating zstd encoder failed").Wrap(err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, errors.New("creating zstd decoder failed").Wrap(err)
	}

	return &SQLiteStore{db: db, enc: enc, dec: dec}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the write-through chunk workload.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return errors.New("applying pragma failed").
				WithTag("pragma", p).
				Wrap(err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS chunks (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL,
		data BLOB NOT NULL,
		PRIMARY KEY (x, y, z)
	);`)
	if err != nil {
		return errors.New("creating chunk table failed").Wrap(err)
	}
	return nil
}

func (s *SQLiteStore) LoadChunk(ctx context.Context, pos grid.ChunkPos) (*world.Chunk, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM chunks WHERE x = ? AND y = ? AND z = ?",
		pos.X, pos.Y, pos.Z,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New("loading chunk failed").
			WithTag("chunk", pos).
			Wrap(err)
	}

	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, false, errors.New("decompressing chunk failed").
			WithTag("chunk", pos).
			Wrap(err)
	}

	c, err := world.DecodeChunk(raw)
	if err != nil {
		return nil, false, errors.New("decoding chunk failed").
			WithTag("chunk", pos).
			Wrap(err)
	}
	return c, true, nil
}

func (s *SQLiteStore) SaveChunk(ctx context.Context, pos grid.ChunkPos, c *world.Chunk) error {
	blob := s.enc.EncodeAll(world.EncodeChunk(c), nil)

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO chunks (x, y, z, data) VALUES (?, ?, ?, ?)",
		pos.X, pos.Y, pos.Z, blob,
	)
	if err != nil {
		return errors.New("saving chunk failed").
			WithTag("chunk", pos).
			Wrap(err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}
