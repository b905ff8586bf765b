package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ad/go-telegram-levelquiz/internal/models"
)

// PollRepository remembers which question each sent quiz poll asked.
type PollRepository struct {
	queue *DBQueue
}

func NewPollRepository(queue *DBQueue) *PollRepository {
	return &PollRepository{queue: queue}
}

func (r *PollRepository) Save(ctx context.Context, poll *models.Poll) error {
	_, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO polls (poll_id, identity, level, question_index)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(poll_id) DO UPDATE SET
				identity = excluded.identity,
				level = excluded.level,
				question_index = excluded.question_index
		`, poll.PollID, poll.Identity, poll.Level, poll.QuestionIndex)
		return nil, err
	})
	return err
}

func (r *PollRepository) Get(ctx context.Context, pollID string) (*models.Poll, error) {
	result, err := r.queue.ExecuteContext(ctx, func(db *sql.DB) (interface{}, error) {
		row := db.QueryRowContext(ctx, `
			SELECT poll_id, identity, level, question_index, created_at
			FROM polls WHERE poll_id = ?
		`, pollID)

		var poll models.Poll
		var createdAt sql.NullTime
		err := row.Scan(&poll.PollID, &poll.Identity, &poll.Level, &poll.QuestionIndex, &createdAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrPollNotFound
		}
		if err != nil {
			return nil, err
		}
		poll.CreatedAt = createdAt.Time
		return &poll, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Poll), nil
}
