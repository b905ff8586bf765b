package fsm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ad/go-telegram-levelquiz/internal/models"
)

var ErrInvalidTarget = errors.New("level is not defined in the catalog")

// Transition computes the next progress snapshot and the actions to dispatch.
// On error the returned progress equals p and no actions are returned.
func Transition(p models.Progress, c Catalog, ev Event) (models.Progress, []Action, error) {
	switch e := ev.(type) {
	case SessionStart:
		next, actions := onSessionStart(p, c, e)
		return next, actions, nil
	case AnswerSubmitted:
		next, actions := onAnswer(p, c, e)
		return next, actions, nil
	case LevelChangeRequested:
		return onLevelChange(p, c, e)
	case LevelMenuRequested:
		return p, []Action{{Kind: ActionOfferLevelMenu, Levels: c.LevelIDs()}}, nil
	case ContactInfoProvided:
		next, actions := onContactInfo(p, e)
		return next, actions, nil
	default:
		return p, nil, fmt.Errorf("fsm: unsupported event %T", ev)
	}
}

func onSessionStart(p models.Progress, c Catalog, e SessionStart) (models.Progress, []Action) {
	if e.New {
		next, entry := enterLevel(p, c, EntryStart)
		return next, append([]Action{{Kind: ActionRequestContactInfo}}, entry...)
	}

	// Finished users get the final message again; nothing is replayed.
	if PhaseOf(p, c) == PhaseCompleted {
		return p, []Action{{Kind: ActionOfferFinalCompletion}}
	}

	return enterLevel(p, c, EntryResume)
}

func onAnswer(p models.Progress, c Catalog, e AnswerSubmitted) (models.Progress, []Action) {
	if !PhaseOf(p, c).AcceptsAnswers() {
		return p, nil
	}
	if e.Ref != nil && (e.Ref.Level != p.Level || e.Ref.QuestionIndex != p.QuestionIndex) {
		return p, nil
	}

	q, ok := c.Question(p.Level, p.QuestionIndex)
	if !ok || e.Option != q.Correct {
		return p, nil
	}

	p.QuestionIndex++
	return positionActions(p, c)
}

func onLevelChange(p models.Progress, c Catalog, e LevelChangeRequested) (models.Progress, []Action, error) {
	if !c.HasLevel(e.Target) {
		return p, nil, fmt.Errorf("%w: %d", ErrInvalidTarget, e.Target)
	}

	reason := e.Reason
	if reason == "" {
		reason = EntrySwitch
	}

	p.Level = e.Target
	p.QuestionIndex = 0
	next, actions := enterLevel(p, c, reason)
	return next, actions, nil
}

func onContactInfo(p models.Progress, e ContactInfoProvided) (models.Progress, []Action) {
	text := strings.TrimSpace(e.Text)
	if p.HasContactInfo() || text == "" {
		return p, nil
	}
	p.ContactInfo = text
	return p, []Action{{Kind: ActionThankYou}}
}

// enterLevel announces p.Level, shows its intro and continues from the stored position.
func enterLevel(p models.Progress, c Catalog, reason EntryReason) (models.Progress, []Action) {
	actions := []Action{{Kind: ActionEnterLevel, Level: p.Level, Reason: reason}}

	_, hasIntro := c.Intro(p.Level)
	if hasIntro {
		actions = append(actions, Action{Kind: ActionShowIntroMedia, Level: p.Level})
	}

	next, follow := positionActions(p, c)
	if hasIntro && len(follow) > 0 {
		follow[0].Deferred = true
	}
	return next, append(actions, follow...)
}

// positionActions asks the current question or, when the level is exhausted, offers what comes next.
func positionActions(p models.Progress, c Catalog) (models.Progress, []Action) {
	if p.QuestionIndex < c.QuestionCount(p.Level) {
		return p, []Action{{Kind: ActionAskQuestion, Level: p.Level, QuestionIndex: p.QuestionIndex}}
	}

	if next, ok := c.Next(p.Level); ok {
		return p, []Action{{Kind: ActionOfferLevelTransition, Level: p.Level, NextLevel: next}}
	}

	p.Completed = true
	return p, []Action{{Kind: ActionOfferFinalCompletion, Level: p.Level}}
}
