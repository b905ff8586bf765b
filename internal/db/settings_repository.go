package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ad/go-telegram-levelquiz/internal/models"
)

type SettingsRepository struct {
	queue *DBQueue
}

func NewSettingsRepository(queue *DBQueue) *SettingsRepository {
	return &SettingsRepository{queue: queue}
}

func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		var value string
		err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
		return value, err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultTexts[key], nil
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	if !models.IsTextKey(key) {
		return fmt.Errorf("unknown text key %q", key)
	}
	_, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value)
		return nil, err
	})
	return err
}

// GetTexts returns every stored template; keys missing from the table fall back to defaults on lookup.
func (r *SettingsRepository) GetTexts(ctx context.Context) (models.Texts, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		rows, err := db.QueryContext(ctx, `SELECT key, value FROM settings`)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		texts := models.Texts{}
		for rows.Next() {
			var key, value string
			if err := rows.Scan(&key, &value); err != nil {
				return nil, err
			}
			if models.IsTextKey(key) {
				texts[key] = value
			}
		}
		return texts, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.(models.Texts), nil
}
