package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for resolution indexes.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  hash            TEXT,
  line_count      INTEGER DEFAULT 0,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS scopes (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  parent_scope_id INTEGER REFERENCES scopes(id),
  label           TEXT NOT NULL,
  depth           INTEGER NOT NULL,
  hoist           BOOLEAN DEFAULT FALSE,
  opaque          BOOLEAN DEFAULT FALSE,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS declarations (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  scope_id        INTEGER NOT NULL REFERENCES scopes(id),
  name            TEXT NOT NULL,
  tag             TEXT,
  visibility      TEXT NOT NULL,
  point           INTEGER NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS references_ (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  scope_id        INTEGER NOT NULL REFERENCES scopes(id),
  declaration_id  INTEGER REFERENCES declarations(id),
  name            TEXT NOT NULL,
  class           TEXT NOT NULL,
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER
);

CREATE TABLE IF NOT EXISTS diagnostics (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  kind            TEXT NOT NULL,
  message         TEXT,
  line            INTEGER,
  col             INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_language ON files(language);
CREATE INDEX IF NOT EXISTS idx_scopes_file ON scopes(file_id);
CREATE INDEX IF NOT EXISTS idx_scopes_parent ON scopes(parent_scope_id);
CREATE INDEX IF NOT EXISTS idx_declarations_file ON declarations(file_id, start_line);
CREATE INDEX IF NOT EXISTS idx_declarations_scope ON declarations(scope_id);
CREATE INDEX IF NOT EXISTS idx_declarations_name ON declarations(name);
CREATE INDEX IF NOT EXISTS idx_references_file ON references_(file_id, start_line);
CREATE INDEX IF NOT EXISTS idx_references_declaration ON references_(declaration_id);
CREATE INDEX IF NOT EXISTS idx_references_name ON references_(name);
CREATE INDEX IF NOT EXISTS idx_diagnostics_file ON diagnostics(file_id);
`

// DeleteFileData transactionally removes the resolution data of a file.
// Deletes in reverse-dependency order to respect FK constraints.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, fileID); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteFile removes a file record together with its resolution data.
func (s *Store) DeleteFile(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileDataTx(tx, fileID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE id = ?", fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	return tx.Commit()
}

func deleteFileDataTx(tx *sql.Tx, fileID int64) error {
	for _, q := range []string{
		"DELETE FROM diagnostics WHERE file_id = ?",
		"DELETE FROM references_ WHERE file_id = ?",
		"DELETE FROM declarations WHERE file_id = ?",
		"DELETE FROM scopes WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}
	return nil
}

// GetMetadata returns the value stored under key, or "" if absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}
