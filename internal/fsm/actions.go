package fsm

type ActionKind string

const (
	ActionRequestContactInfo   ActionKind = "request_contact_info"
	ActionEnterLevel           ActionKind = "enter_level"
	ActionShowIntroMedia       ActionKind = "show_intro_media"
	ActionAskQuestion          ActionKind = "ask_question"
	ActionOfferLevelTransition ActionKind = "offer_level_transition"
	ActionOfferFinalCompletion ActionKind = "offer_final_completion"
	ActionOfferLevelMenu       ActionKind = "offer_level_menu"
	ActionThankYou             ActionKind = "thank_you"
)

// EntryReason tells the transport how a level was entered.
type EntryReason string

const (
	EntryStart    EntryReason = "start"
	EntryResume   EntryReason = "resume"
	EntryContinue EntryReason = "continue"
	EntrySwitch   EntryReason = "switch"
)

// Action is an outbound instruction. Only the fields relevant to Kind are set.
type Action struct {
	Kind          ActionKind
	Level         int
	NextLevel     int
	QuestionIndex int
	Reason        EntryReason
	Levels        []int
	// Deferred actions are dispatched after the configured delay instead of inline.
	Deferred bool
}

func (a Action) String() string {
	s := string(a.Kind)
	if a.Deferred {
		s += "(deferred)"
	}
	return s
}
