package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ad/go-telegram-levelquiz/internal/models"
)

type DBTask struct {
	Ctx  context.Context
	Exec func(*sql.DB) (interface{}, error)
	Resp chan DBResult
}

type DBResult struct {
	Data interface{}
	Err  error
}

// DBQueue funnels every statement through one worker so SQLite never sees concurrent writers.
type DBQueue struct {
	tasks      chan DBTask
	db         *sql.DB
	maxRetry   int
	retryDelay time.Duration
	testMode   bool
}

func NewDBQueue(db *sql.DB) *DBQueue {
	q := &DBQueue{
		tasks:      make(chan DBTask, 100),
		db:         db,
		maxRetry:   3,
		retryDelay: 100 * time.Millisecond,
		testMode:   false,
	}
	go q.worker()
	return q
}

func NewDBQueueForTest(db *sql.DB) *DBQueue {
	q := &DBQueue{
		tasks:      make(chan DBTask, 100),
		db:         db,
		maxRetry:   3,
		retryDelay: 1 * time.Millisecond,
		testMode:   true,
	}
	go q.worker()
	return q
}

func (q *DBQueue) Execute(task func(*sql.DB) (interface{}, error)) (interface{}, error) {
	return q.ExecuteContext(context.Background(), task)
}

// ExecuteContext queues task and waits for its result or for ctx to end, whichever comes first.
// A task still waiting in the queue when ctx ends is skipped by the worker.
func (q *DBQueue) ExecuteContext(ctx context.Context, task func(*sql.DB) (interface{}, error)) (interface{}, error) {
	resp := make(chan DBResult, 1)
	select {
	case q.tasks <- DBTask{Ctx: ctx, Exec: task, Resp: resp}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case result := <-resp:
		return result.Data, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *DBQueue) worker() {
	for task := range q.tasks {
		result := q.executeWithRetry(task)
		task.Resp <- result
	}
}

func (q *DBQueue) executeWithRetry(task DBTask) DBResult {
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr error
	for attempt := 0; attempt < q.maxRetry; attempt++ {
		if err := ctx.Err(); err != nil {
			return DBResult{Err: err}
		}
		data, err := task.Exec(q.db)
		if err == nil {
			return DBResult{Data: data, Err: nil}
		}
		lastErr = err
		if permanent(err) {
			break
		}
		if attempt < q.maxRetry-1 {
			delay := time.Duration(attempt+1) * q.retryDelay
			if q.testMode {
				delay = q.retryDelay
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return DBResult{Err: ctx.Err()}
			}
		}
	}
	return DBResult{Err: lastErr}
}

// permanent errors describe data, not a busy database, so retrying cannot change the outcome.
func permanent(err error) bool {
	return errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, models.ErrProgressNotFound) ||
		errors.Is(err, models.ErrStoreConflict) ||
		errors.Is(err, models.ErrUserNotFound) ||
		errors.Is(err, models.ErrPollNotFound)
}

func (q *DBQueue) Close() {
	close(q.tasks)
}

func (q *DBQueue) DB() *sql.DB {
	return q.db
}
