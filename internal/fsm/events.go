package fsm

// Event is an inbound trigger for a transition.
type Event interface {
	eventName() string
}

// SessionStart is sent on /start. New is set by the controller when the progress row was just created.
type SessionStart struct {
	New bool
}

// PollRef pins an answer to the question it was given for.
type PollRef struct {
	Level         int
	QuestionIndex int
}

type AnswerSubmitted struct {
	Option int
	// Ref is nil when the poll is unknown; the answer is then graded against the current question.
	Ref *PollRef
}

type LevelChangeRequested struct {
	Target int
	Reason EntryReason
}

type LevelMenuRequested struct{}

type ContactInfoProvided struct {
	Text string
}

func (SessionStart) eventName() string         { return "session_start" }
func (AnswerSubmitted) eventName() string      { return "answer_submitted" }
func (LevelChangeRequested) eventName() string { return "level_change_requested" }
func (LevelMenuRequested) eventName() string   { return "level_menu_requested" }
func (ContactInfoProvided) eventName() string  { return "contact_info_provided" }

// Name returns a stable label for logging.
func Name(ev Event) string {
	if ev == nil {
		return "nil"
	}
	return ev.eventName()
}
