package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ad/go-telegram-levelquiz/internal/models"
)

type ProgressRepository struct {
	queue *DBQueue
}

func NewProgressRepository(queue *DBQueue) *ProgressRepository {
	return &ProgressRepository{queue: queue}
}

const progressColumns = `identity, level, question_index, completed, contact_info, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProgress(row rowScanner) (models.Progress, error) {
	var p models.Progress
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&p.Identity, &p.Level, &p.QuestionIndex, &p.Completed, &p.ContactInfo, &p.Version, &createdAt, &updatedAt)
	if err != nil {
		return models.Progress{}, err
	}
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return p, nil
}

func (r *ProgressRepository) Get(ctx context.Context, identity int64) (models.Progress, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		p, err := scanProgress(db.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM progress WHERE identity = ?`, identity))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProgressNotFound
		}
		return p, err
	})
	if err != nil {
		return models.Progress{}, err
	}
	return result.(models.Progress), nil
}

// Create inserts p unless a row for the identity exists, and returns the stored row.
// created is false when another writer got there first.
func (r *ProgressRepository) Create(ctx context.Context, p models.Progress) (models.Progress, bool, error) {
	type createResult struct {
		progress models.Progress
		created  bool
	}

	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		res, err := db.ExecContext(ctx, `
			INSERT OR IGNORE INTO progress (identity, level, question_index, completed, contact_info, version)
			VALUES (?, ?, ?, ?, ?, 1)
		`, p.Identity, p.Level, p.QuestionIndex, p.Completed, p.ContactInfo)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}

		stored, err := scanProgress(db.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM progress WHERE identity = ?`, p.Identity))
		if err != nil {
			return nil, err
		}
		return createResult{progress: stored, created: affected > 0}, nil
	})
	if err != nil {
		return models.Progress{}, false, err
	}
	cr := result.(createResult)
	return cr.progress, cr.created, nil
}

// Save writes p if the stored version still equals p.Version and returns p with the new version.
func (r *ProgressRepository) Save(ctx context.Context, p models.Progress) (models.Progress, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		res, err := db.ExecContext(ctx, `
			UPDATE progress
			SET level = ?, question_index = ?, completed = ?, contact_info = ?,
			    version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE identity = ? AND version = ?
		`, p.Level, p.QuestionIndex, p.Completed, p.ContactInfo, p.Identity, p.Version)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			var exists int
			err := db.QueryRowContext(ctx, `SELECT 1 FROM progress WHERE identity = ?`, p.Identity).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, models.ErrProgressNotFound
			}
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: identity %d version %d", models.ErrStoreConflict, p.Identity, p.Version)
		}

		return scanProgress(db.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM progress WHERE identity = ?`, p.Identity))
	})
	if err != nil {
		return models.Progress{}, err
	}
	return result.(models.Progress), nil
}

func (r *ProgressRepository) ListAll(ctx context.Context) ([]models.UserProgress, error) {
	return r.list(ctx, "", nil)
}

func (r *ProgressRepository) ListByCompleted(ctx context.Context, completed bool) ([]models.UserProgress, error) {
	return r.list(ctx, "WHERE p.completed = ?", []any{completed})
}

func (r *ProgressRepository) list(ctx context.Context, where string, args []any) ([]models.UserProgress, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		rows, err := db.QueryContext(ctx, `
			SELECT p.identity, p.level, p.question_index, p.completed, p.contact_info, p.version, p.created_at, p.updated_at,
			       u.first_name, u.last_name, u.username, u.created_at
			FROM progress p
			LEFT JOIN users u ON u.id = p.identity
			`+where+`
			ORDER BY p.created_at, p.identity
		`, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var list []models.UserProgress
		for rows.Next() {
			var up models.UserProgress
			var createdAt, updatedAt, joinedAt sql.NullTime
			var firstName, lastName, username sql.NullString
			p := &up.Progress
			if err := rows.Scan(&p.Identity, &p.Level, &p.QuestionIndex, &p.Completed, &p.ContactInfo, &p.Version,
				&createdAt, &updatedAt, &firstName, &lastName, &username, &joinedAt); err != nil {
				return nil, err
			}
			p.CreatedAt = createdAt.Time
			p.UpdatedAt = updatedAt.Time

			up.User = models.User{
				ID:        p.Identity,
				FirstName: firstName.String,
				LastName:  lastName.String,
				Username:  username.String,
				CreatedAt: joinedAt.Time,
			}
			if !joinedAt.Valid {
				up.User.CreatedAt = p.CreatedAt
			}
			list = append(list, up)
		}
		return list, rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.UserProgress), nil
}

// Delete removes the identity's progress together with its polls and profile.
func (r *ProgressRepository) Delete(ctx context.Context, identity int64) error {
	_, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `DELETE FROM progress WHERE identity = ?`, identity)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, models.ErrProgressNotFound
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM polls WHERE identity = ?`, identity); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, identity); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}
