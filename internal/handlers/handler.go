package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode"

	"github.com/ad/go-telegram-levelquiz/internal/fsm"
	"github.com/ad/go-telegram-levelquiz/internal/models"
	"github.com/ad/go-telegram-levelquiz/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// Sender is the part of *bot.Bot the handlers reply through.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type SessionHandler interface {
	Handle(ctx context.Context, identity int64, ev fsm.Event) error
}

type ProfileStore interface {
	CreateOrUpdate(ctx context.Context, user *models.User) error
}

type PollLookup interface {
	Get(ctx context.Context, pollID string) (*models.Poll, error)
}

type ErrorReporter interface {
	NotifyAdmin(ctx context.Context, panicValue interface{}, update *tgmodels.Update)
	ReportDeliveryFailure(ctx context.Context, identity int64, err error)
}

type BotHandler struct {
	sender       Sender
	adminID      int64
	sessions     SessionHandler
	users        ProfileStore
	polls        PollLookup
	texts        *services.TextStore
	errorManager ErrorReporter
	adminHandler *AdminHandler
}

func NewBotHandler(
	sender Sender,
	adminID int64,
	sessions SessionHandler,
	users ProfileStore,
	polls PollLookup,
	texts *services.TextStore,
	errorManager ErrorReporter,
	adminHandler *AdminHandler,
) *BotHandler {
	return &BotHandler{
		sender:       sender,
		adminID:      adminID,
		sessions:     sessions,
		users:        users,
		polls:        polls,
		texts:        texts,
		errorManager: errorManager,
		adminHandler: adminHandler,
	}
}

func (h *BotHandler) HandleUpdate(ctx context.Context, _ *bot.Bot, update *tgmodels.Update) {
	defer h.recoverPanic(ctx, update)

	switch {
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.PollAnswer != nil:
		h.handlePollAnswer(ctx, update.PollAnswer)
	}
}

func (h *BotHandler) recoverPanic(ctx context.Context, update *tgmodels.Update) {
	if r := recover(); r != nil {
		log.Printf("[PANIC] %v", r)
		h.errorManager.NotifyAdmin(ctx, r, update)
	}
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	if msg.From == nil {
		return
	}

	command, _ := splitCommand(msg.Text)
	switch {
	case command == "/start":
		h.handleStart(ctx, msg)
		return
	case strings.HasPrefix(command, "/"):
		h.adminHandler.HandleCommand(ctx, msg)
		return
	}

	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	ev := fsm.ContactInfoProvided{Text: msg.Text}
	h.handleError(ctx, msg.Chat.ID, msg.From.ID, ev, h.sessions.Handle(ctx, msg.From.ID, ev))
}

func (h *BotHandler) handleStart(ctx context.Context, msg *tgmodels.Message) {
	user := &models.User{
		ID:        msg.From.ID,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Username:  msg.From.Username,
	}
	if err := h.users.CreateOrUpdate(ctx, user); err != nil {
		log.Printf("[SESSION] save profile for user %d: %v", user.ID, err)
	}

	ev := fsm.SessionStart{}
	h.handleError(ctx, msg.Chat.ID, msg.From.ID, ev, h.sessions.Handle(ctx, msg.From.ID, ev))
}

func (h *BotHandler) handleCallback(ctx context.Context, callback *tgmodels.CallbackQuery) {
	h.sender.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
	})

	ev, ok := parseCallback(callback.Data)
	if !ok {
		log.Printf("[CALLBACK] unknown data %q from %d", callback.Data, callback.From.ID)
		return
	}

	chatID := callback.From.ID
	if callback.Message.Message != nil {
		chatID = callback.Message.Message.Chat.ID
	}

	h.handleError(ctx, chatID, callback.From.ID, ev, h.sessions.Handle(ctx, callback.From.ID, ev))
}

func parseCallback(data string) (fsm.Event, bool) {
	switch {
	case data == services.CallbackChangeLevel:
		return fsm.LevelMenuRequested{}, true
	case strings.HasPrefix(data, services.CallbackContinuePrefix):
		level, err := strconv.Atoi(strings.TrimPrefix(data, services.CallbackContinuePrefix))
		if err != nil {
			return nil, false
		}
		return fsm.LevelChangeRequested{Target: level, Reason: fsm.EntryContinue}, true
	case strings.HasPrefix(data, services.CallbackChangeToPrefix):
		level, err := strconv.Atoi(strings.TrimPrefix(data, services.CallbackChangeToPrefix))
		if err != nil {
			return nil, false
		}
		return fsm.LevelChangeRequested{Target: level, Reason: fsm.EntrySwitch}, true
	}
	return nil, false
}

func (h *BotHandler) handlePollAnswer(ctx context.Context, answer *tgmodels.PollAnswer) {
	if answer.User == nil || len(answer.OptionIDs) == 0 {
		return
	}
	identity := answer.User.ID

	ev := fsm.AnswerSubmitted{Option: answer.OptionIDs[0]}
	poll, err := h.polls.Get(ctx, answer.PollID)
	switch {
	case err == nil:
		if poll.Identity != identity {
			log.Printf("[POLL] poll %s belongs to %d, answered by %d", answer.PollID, poll.Identity, identity)
			return
		}
		ev.Ref = &fsm.PollRef{Level: poll.Level, QuestionIndex: poll.QuestionIndex}
	case errors.Is(err, models.ErrPollNotFound):
	default:
		log.Printf("[POLL] lookup %s: %v", answer.PollID, err)
	}

	log.Printf("[POLL] user %d answered %s with option %d", identity, answer.PollID, ev.Option)
	h.handleError(ctx, identity, identity, ev, h.sessions.Handle(ctx, identity, ev))
}

func (h *BotHandler) handleError(ctx context.Context, chatID, identity int64, ev fsm.Event, err error) {
	if err == nil {
		return
	}

	texts := h.texts.Texts()
	var terr *services.TransportError

	switch {
	case errors.Is(err, models.ErrProgressNotFound):
		h.reply(ctx, chatID, texts.Get(models.TextStartFirst))
	case errors.Is(err, fsm.ErrInvalidTarget):
		level := "?"
		if lc, ok := ev.(fsm.LevelChangeRequested); ok {
			level = strconv.Itoa(models.DisplayLevel(lc.Target))
		}
		h.reply(ctx, chatID, texts.Render(models.TextLevelUnavailable, map[string]string{"level": level}))
	case errors.As(err, &terr):
		log.Printf("[TRANSPORT] %v", err)
		h.errorManager.ReportDeliveryFailure(ctx, identity, err)
	default:
		log.Printf("[SESSION] user %d: %v", identity, err)
		h.reply(ctx, chatID, texts.Get(models.TextError))
	}
}

func (h *BotHandler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.Printf("[MSG] reply to %d: %v", chatID, err)
	}
}

// splitCommand returns the command without any @botname suffix and the remaining text.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	command, rest := cutWord(text)
	command, _, _ = strings.Cut(command, "@")
	return strings.ToLower(command), rest
}

// cutWord splits off the first whitespace-delimited word. Line breaks inside rest are kept.
func cutWord(text string) (string, string) {
	text = strings.TrimSpace(text)
	end := strings.IndexFunc(text, unicode.IsSpace)
	if end < 0 {
		return text, ""
	}
	return text[:end], strings.TrimSpace(text[end:])
}

func formatUser(u tgmodels.User) string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if u.Username != "" {
		name += " @" + u.Username
	}
	return fmt.Sprintf("%s [%d]", name, u.ID)
}

// LogMiddleware logs every inbound update before it is handled.
func LogMiddleware(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
		switch {
		case update.Message != nil && update.Message.From != nil:
			log.Printf("[MSG] from=%s text=%q", formatUser(*update.Message.From), update.Message.Text)
		case update.CallbackQuery != nil:
			log.Printf("[CALLBACK] from=%s data=%q", formatUser(update.CallbackQuery.From), update.CallbackQuery.Data)
		case update.PollAnswer != nil && update.PollAnswer.User != nil:
			log.Printf("[POLL] from=%s poll=%s options=%v", formatUser(*update.PollAnswer.User), update.PollAnswer.PollID, update.PollAnswer.OptionIDs)
		}
		next(ctx, b, update)
	}
}
