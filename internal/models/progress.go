package models

import "time"

// Progress is the durable per-identity position in the quiz.
type Progress struct {
	Identity      int64
	Level         int
	QuestionIndex int
	Completed     bool
	ContactInfo   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
}

func NewProgress(identity int64, firstLevel int) Progress {
	return Progress{
		Identity:      identity,
		Level:         firstLevel,
		QuestionIndex: 0,
	}
}

func (p Progress) HasContactInfo() bool {
	return p.ContactInfo != ""
}

// DisplayLevel is the level number shown to users. Levels are numbered from zero in every outbound text.
func DisplayLevel(level int) int {
	return level - 1
}

// SameState reports whether two snapshots differ only in bookkeeping fields.
func (p Progress) SameState(other Progress) bool {
	return p.Identity == other.Identity &&
		p.Level == other.Level &&
		p.QuestionIndex == other.QuestionIndex &&
		p.Completed == other.Completed &&
		p.ContactInfo == other.ContactInfo
}
