package thumbstore

import (
	"database/sql"
	"fmt"
	"time"
)

const currentSchemaVersion = 2

type migration struct {
	from, to int
	fn       func(tx *sql.Tx) error
}

var migrations = []migration{
	{from: 1, to: 2, fn: migrateV1ToV2},
}

// migrateV1ToV2 adds the thumbnails table to the pre-thumbnail-store
// schema (favorites/settings only, user_version=1).
func migrateV1ToV2(tx *sql.Tx) error {
	_, err := tx.Exec(`
	CREATE TABLE IF NOT EXISTS thumbnails (
		path       TEXT PRIMARY KEY,
		mtime      INTEGER NOT NULL,
		size       INTEGER NOT NULL,
		orig_w     INTEGER NOT NULL,
		orig_h     INTEGER NOT NULL,
		thumb_w    INTEGER NOT NULL,
		thumb_h    INTEGER NOT NULL,
		png_bytes  BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	`)
	return err
}

// migrateSchema brings db from its current user_version up to
// currentSchemaVersion, running every pending migration inside its own
// transaction. It refuses to proceed if the database is newer than
// this binary knows how to handle.
func (s *Store) migrateSchema() error {
	version, err := s.readUserVersion()
	if err != nil {
		return newErr(KindCorrupt, err)
	}
	if version > currentSchemaVersion {
		return newErr(KindSchemaTooNew, fmt.Errorf("database user_version=%d, known up to %d", version, currentSchemaVersion))
	}

	for _, m := range migrations {
		if version != m.from {
			continue
		}
		start := time.Now()
		if err := s.runMigration(m); err != nil {
			s.recordMigration(m.from, m.to, start, "failed")
			return newErr(KindCorrupt, err)
		}
		s.recordMigration(m.from, m.to, start, "ok")
		version = m.to
	}
	return nil
}

func (s *Store) runMigration(m migration) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	if err := m.fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := s.writeUserVersionTx(tx, m.to); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) readUserVersion() (int, error) {
	row := s.conn.QueryRow(`SELECT value FROM meta WHERE key = 'user_version'`)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return 1, nil // pre-thumbnail-store schema, implicitly v1
		}
		return 0, err
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return 0, err
	}
	return v, nil
}

func (s *Store) writeUserVersionTx(tx *sql.Tx, version int) error {
	_, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('user_version', ?)`, fmt.Sprintf("%d", version))
	return err
}
