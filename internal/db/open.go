package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens the SQLite file in WAL mode and makes sure the schema is current.
func Open(path string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := InitSchema(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return sqlDB, nil
}
