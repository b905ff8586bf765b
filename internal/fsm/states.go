// Package fsm is the progress state machine. It turns a progress snapshot and an inbound event
// into the next snapshot plus the outbound actions to perform. It does no I/O.
package fsm

import (
	"github.com/ad/go-telegram-levelquiz/internal/catalog"
	"github.com/ad/go-telegram-levelquiz/internal/models"
)

type Phase string

const (
	PhaseOnboarding          Phase = "onboarding"
	PhaseAwaitingAnswer      Phase = "awaiting_answer"
	PhaseAwaitingLevelChoice Phase = "awaiting_level_choice"
	PhaseCompleted           Phase = "completed"
)

// Catalog is the read-only view of quiz content the engine needs.
type Catalog interface {
	HasLevel(id int) bool
	QuestionCount(id int) int
	Question(levelID, index int) (catalog.Question, bool)
	Intro(id int) (catalog.IntroMedia, bool)
	Next(id int) (int, bool)
	LevelIDs() []int
}

// PhaseOf derives the explicit phase from the stored position.
func PhaseOf(p models.Progress, c Catalog) Phase {
	if p.QuestionIndex >= c.QuestionCount(p.Level) {
		if _, hasNext := c.Next(p.Level); !hasNext && p.Completed {
			return PhaseCompleted
		}
		return PhaseAwaitingLevelChoice
	}
	if !p.HasContactInfo() {
		return PhaseOnboarding
	}
	return PhaseAwaitingAnswer
}

func (ph Phase) AcceptsAnswers() bool {
	return ph == PhaseOnboarding || ph == PhaseAwaitingAnswer
}
