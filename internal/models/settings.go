package models

import "strings"

// Text template keys stored in the settings table.
const (
	TextContactRequest    = "contact_request"
	TextContactSaved      = "contact_saved"
	TextWelcomeBack       = "welcome_back"
	TextLevelStarting     = "level_starting"
	TextLevelSwitched     = "level_switched"
	TextIntroCaption      = "intro_caption"
	TextWatchVideoButton  = "watch_video_button"
	TextLevelCompleted    = "level_completed"
	TextNextLevelButton   = "next_level_button"
	TextChangeLevelButton = "change_level_button"
	TextLevelMenu         = "level_menu"
	TextLevelButton       = "level_button"
	TextFinalMessage      = "final_message"
	TextStartFirst        = "start_first"
	TextLevelUnavailable  = "level_unavailable"
	TextError             = "error_message"
)

var DefaultTexts = map[string]string{
	TextContactRequest:    "Welcome to the quiz! Please provide your mobile number:",
	TextContactSaved:      "Thank you! Your mobile number has been saved.",
	TextWelcomeBack:       "Welcome back! Resuming Level {level}.",
	TextLevelStarting:     "🎯 Starting Level {level}!",
	TextLevelSwitched:     "🔄 Switched to Level {level}!",
	TextIntroCaption:      "📹 Watch this video carefully, then the quiz will start. Level {level}",
	TextWatchVideoButton:  "Watch Video",
	TextLevelCompleted:    "🎉 Level {level} completed!",
	TextNextLevelButton:   "Next Level",
	TextChangeLevelButton: "Change Level",
	TextLevelMenu:         "Select a level to change to:",
	TextLevelButton:       "Level {level}",
	TextFinalMessage:      "That's all the levels for now 😜. A new level is coming soon.\n\nWant a notification when it is uploaded? Click 👇\n\n{channel}\n\nOnce the level is uploaded, send the /start command.",
	TextStartFirst:        "Please start the bot first using /start.",
	TextLevelUnavailable:  "⚠ Level {level} is not available.",
	TextError:             "An error occurred.",
}

// Texts is a snapshot of the text templates with defaults filled in.
type Texts map[string]string

func (t Texts) Get(key string) string {
	if v, ok := t[key]; ok && v != "" {
		return v
	}
	return DefaultTexts[key]
}

func (t Texts) Render(key string, vars map[string]string) string {
	return RenderTemplate(t.Get(key), vars)
}

// RenderTemplate substitutes {name} placeholders.
func RenderTemplate(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func IsTextKey(key string) bool {
	_, ok := DefaultTexts[key]
	return ok
}
