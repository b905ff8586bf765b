package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ad/go-telegram-levelquiz/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY,
    first_name TEXT,
    last_name TEXT,
    username TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS progress (
    identity INTEGER PRIMARY KEY,
    level INTEGER NOT NULL DEFAULT 1,
    question_index INTEGER NOT NULL DEFAULT 0,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    contact_info TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_progress_completed ON progress(completed);

CREATE TABLE IF NOT EXISTS polls (
    poll_id TEXT PRIMARY KEY,
    identity INTEGER NOT NULL,
    level INTEGER NOT NULL,
    question_index INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_polls_identity ON polls(identity);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Columns added after the first release. Applying one twice fails with "duplicate column", which is ignored.
var migrations = []string{
	`ALTER TABLE progress ADD COLUMN contact_info TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE progress ADD COLUMN version INTEGER NOT NULL DEFAULT 1`,
}

func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil && !strings.Contains(err.Error(), "duplicate column") {
			return fmt.Errorf("migrate %q: %w", m, err)
		}
	}

	for key, value := range models.DefaultTexts {
		if _, err := db.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("seed setting %s: %w", key, err)
		}
	}

	return nil
}
