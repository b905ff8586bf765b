package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ad/go-telegram-levelquiz/internal/models"
)

type UserRepository struct {
	queue *DBQueue
}

func NewUserRepository(queue *DBQueue) *UserRepository {
	return &UserRepository{queue: queue}
}

func (r *UserRepository) CreateOrUpdate(ctx context.Context, user *models.User) error {
	_, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO users (id, first_name, last_name, username)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				username = excluded.username
		`, user.ID, user.FirstName, user.LastName, user.Username)
		return nil, err
	})
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		row := db.QueryRowContext(ctx, `
			SELECT id, first_name, last_name, username, created_at
			FROM users WHERE id = ?
		`, id)

		var user models.User
		var firstName, lastName, username sql.NullString
		err := row.Scan(&user.ID, &firstName, &lastName, &username, &user.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		if err != nil {
			return nil, err
		}
		user.FirstName = firstName.String
		user.LastName = lastName.String
		user.Username = username.String
		return &user, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}
