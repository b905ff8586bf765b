package models

import "time"

type Poll struct {
	PollID        string
	Identity      int64
	Level         int
	QuestionIndex int
	CreatedAt     time.Time
}
