package msgchain

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Import SQLite driver for database/sql
)

type sqliteStore struct{ db *sql.DB }

// OpenSQLiteStore opens/creates a SQLite DB and ensures schema + PRAGMAs.
func OpenSQLiteStore(dsn string) (Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	st := &sqliteStore{db: db}
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}
	schema := `
CREATE TABLE IF NOT EXISTS entries (
  pos       INTEGER PRIMARY KEY AUTOINCREMENT,  -- storage position, append order
  thread    TEXT    NOT NULL,
  seq       INTEGER NOT NULL,
  identity  BLOB    NOT NULL,
  content   BLOB    NOT NULL,
  prev_hash BLOB    NOT NULL,
  signature BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS entries_thread ON entries(thread, pos);
CREATE TABLE IF NOT EXISTS threads (
  name       TEXT PRIMARY KEY,
  created_at INTEGER NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// Append stores an entry at the end of the thread's chain and registers
// the thread on first use, in one transaction. No uniqueness is imposed
// on seq: the store keeps whatever list it is given, auditing is the
// validator's job.
func (s *sqliteStore) Append(thread string, e SignedEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO threads(name, created_at) VALUES(?, ?) ON CONFLICT(name) DO NOTHING`,
		thread, time.Now().Unix()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entries(thread, seq, identity, content, prev_hash, signature) VALUES(?, ?, ?, ?, ?, ?)`,
		thread, int64(e.Seq), e.Identity, e.Message.Content, e.Message.PrevHash[:], e.Signature); err != nil {
		return err
	}

	return tx.Commit()
}

// GetTail returns the entry at the highest storage position of thread.
func (s *sqliteStore) GetTail(thread string) (SignedEntry, bool, error) {
	row := s.db.QueryRow(
		`SELECT seq, identity, content, prev_hash, signature FROM entries
		 WHERE thread=? ORDER BY pos DESC LIMIT 1`, thread)
	e, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return SignedEntry{}, false, nil
	}
	if err != nil {
		return SignedEntry{}, false, err
	}
	return e, true, nil
}

// ListAll returns the thread's entries in storage order.
func (s *sqliteStore) ListAll(thread string) ([]SignedEntry, error) {
	rows, err := s.db.Query(
		`SELECT seq, identity, content, prev_hash, signature FROM entries
		 WHERE thread=? ORDER BY pos ASC`, thread)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SignedEntry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(scan func(dest ...any) error) (SignedEntry, error) {
	var e SignedEntry
	var seq int64
	var prevHash []byte
	if err := scan(&seq, &e.Identity, &e.Message.Content, &prevHash, &e.Signature); err != nil {
		return e, err
	}
	if len(prevHash) != DigestSize {
		return e, fmt.Errorf("invalid prev hash size: expected %d, got %d", DigestSize, len(prevHash))
	}
	e.Seq = uint64(seq)
	copy(e.Message.PrevHash[:], prevHash)
	return e, nil
}

// Threads returns all registered threads in registration order.
func (s *sqliteStore) Threads() ([]ThreadInfo, error) {
	rows, err := s.db.Query(`SELECT name, created_at FROM threads ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ThreadInfo
	for rows.Next() {
		var info ThreadInfo
		if err := rows.Scan(&info.Name, &info.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}
