// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logarchive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/dockhand/lib/sqlitepool"
)

// indexSchema holds one row per archived log, keyed by content
// digest. The insert path uses ON CONFLICT DO NOTHING, so two
// concurrent archivals of the same content leave exactly one row.
const indexSchema = `
	CREATE TABLE IF NOT EXISTS archives (
		digest      TEXT PRIMARY KEY,
		project     TEXT NOT NULL,
		log_file    TEXT NOT NULL,
		raw_size    INTEGER NOT NULL,
		stored_size INTEGER NOT NULL,
		compression TEXT NOT NULL,
		timed_out   INTEGER NOT NULL,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_archives_created ON archives(created_at);
	CREATE INDEX IF NOT EXISTS idx_archives_project ON archives(project, created_at);
`

// openIndexPool opens the SQLite index, applying the schema on every
// new connection (CREATE IF NOT EXISTS, so repeats are free).
func openIndexPool(path string, poolSize int, logger *slog.Logger) (*sqlitepool.Pool, error) {
	if poolSize <= 0 {
		poolSize = 4
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, indexSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("log archive: opening index: %w", err)
	}
	return pool, nil
}

// insertRecord adds a record to the index. A digest that is already
// present is left untouched: the first archival owns the metadata.
func (a *Archive) insertRecord(ctx context.Context, record ArchiveRecord) error {
	conn, err := a.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("log archive: index insert: %w", err)
	}
	defer a.pool.Put(conn)

	timedOut := 0
	if record.TimedOut {
		timedOut = 1
	}

	err = sqlitex.Execute(conn, `INSERT INTO archives
		(digest, project, log_file, raw_size, stored_size, compression, timed_out, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(digest) DO NOTHING`, &sqlitex.ExecOptions{
		Args: []any{
			record.Digest,
			record.Project,
			record.LogFile,
			record.RawSize,
			record.StoredSize,
			record.Compression,
			timedOut,
			record.CreatedAt.Unix(),
		},
	})
	if err != nil {
		return fmt.Errorf("log archive: index insert: %w", err)
	}
	return nil
}

// getRecord fetches a single record by digest. The second return
// value reports whether the digest is indexed.
func (a *Archive) getRecord(ctx context.Context, digest string) (ArchiveRecord, bool, error) {
	conn, err := a.pool.Take(ctx)
	if err != nil {
		return ArchiveRecord{}, false, fmt.Errorf("log archive: index lookup: %w", err)
	}
	defer a.pool.Put(conn)

	var record ArchiveRecord
	found := false

	err = sqlitex.Execute(conn, `SELECT digest, project, log_file, raw_size,
		stored_size, compression, timed_out, created_at
		FROM archives WHERE digest = ?`, &sqlitex.ExecOptions{
		Args: []any{digest},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record = scanArchiveRecord(stmt)
			found = true
			return nil
		},
	})
	if err != nil {
		return ArchiveRecord{}, false, fmt.Errorf("log archive: index lookup: %w", err)
	}
	return record, found, nil
}

// listRecords returns records ordered newest first. Digest breaks
// ties so that pagination over same-second archivals is stable.
func (a *Archive) listRecords(ctx context.Context, limit int) ([]ArchiveRecord, error) {
	conn, err := a.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("log archive: index list: %w", err)
	}
	defer a.pool.Put(conn)

	var records []ArchiveRecord
	err = sqlitex.Execute(conn, `SELECT digest, project, log_file, raw_size,
		stored_size, compression, timed_out, created_at
		FROM archives ORDER BY created_at DESC, digest LIMIT ?`, &sqlitex.ExecOptions{
		Args: []any{limit},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			records = append(records, scanArchiveRecord(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("log archive: index list: %w", err)
	}
	return records, nil
}

// scanArchiveRecord reads one row in the column order used by the
// SELECT statements above.
func scanArchiveRecord(stmt *sqlite.Stmt) ArchiveRecord {
	return ArchiveRecord{
		Digest:      stmt.ColumnText(0),
		Project:     stmt.ColumnText(1),
		LogFile:     stmt.ColumnText(2),
		RawSize:     stmt.ColumnInt64(3),
		StoredSize:  stmt.ColumnInt64(4),
		Compression: stmt.ColumnText(5),
		TimedOut:    stmt.ColumnInt(6) != 0,
		CreatedAt:   time.Unix(stmt.ColumnInt64(7), 0).UTC(),
	}
}
