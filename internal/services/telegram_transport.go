package services

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/ad/go-telegram-levelquiz/internal/catalog"
	"github.com/ad/go-telegram-levelquiz/internal/db"
	"github.com/ad/go-telegram-levelquiz/internal/fsm"
	"github.com/ad/go-telegram-levelquiz/internal/models"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// Transport delivers engine actions to a user.
type Transport interface {
	Deliver(ctx context.Context, identity int64, action fsm.Action) error
}

// BotAPI is the subset of *bot.Bot the transport sends through.
type BotAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*tgmodels.Message, error)
	SendPoll(ctx context.Context, params *bot.SendPollParams) (*tgmodels.Message, error)
}

// FailureNotifier is told about sends that failed after every retry.
type FailureNotifier interface {
	NotifyAdminWithCurl(ctx context.Context, chatID int64, request interface{}, err error)
}

const (
	CallbackContinuePrefix = "continue_"
	CallbackChangeLevel    = "change_level"
	CallbackChangeToPrefix = "change_to_"
)

type TelegramTransport struct {
	bot        BotAPI
	catalog    *catalog.Catalog
	texts      *TextStore
	pollRepo   *db.PollRepository
	notifier   FailureNotifier
	channelURL string
	maxRetry   int
}

func NewTelegramTransport(b BotAPI, c *catalog.Catalog, texts *TextStore, pollRepo *db.PollRepository, notifier FailureNotifier, channelURL string) *TelegramTransport {
	return &TelegramTransport{
		bot:        b,
		catalog:    c,
		texts:      texts,
		pollRepo:   pollRepo,
		notifier:   notifier,
		channelURL: channelURL,
		maxRetry:   2,
	}
}

func levelVars(level int) map[string]string {
	return map[string]string{"level": strconv.Itoa(models.DisplayLevel(level))}
}

func (t *TelegramTransport) Deliver(ctx context.Context, identity int64, a fsm.Action) error {
	texts := t.texts.Texts()

	switch a.Kind {
	case fsm.ActionRequestContactInfo:
		return t.sendText(ctx, identity, texts.Get(models.TextContactRequest), nil)

	case fsm.ActionEnterLevel:
		key := models.TextLevelStarting
		switch a.Reason {
		case fsm.EntryResume:
			key = models.TextWelcomeBack
		case fsm.EntrySwitch:
			key = models.TextLevelSwitched
		}
		return t.sendText(ctx, identity, texts.Render(key, levelVars(a.Level)), nil)

	case fsm.ActionShowIntroMedia:
		return t.sendIntro(ctx, identity, a.Level, texts)

	case fsm.ActionAskQuestion:
		return t.sendQuestion(ctx, identity, a.Level, a.QuestionIndex)

	case fsm.ActionOfferLevelTransition:
		keyboard := &tgmodels.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgmodels.InlineKeyboardButton{{
				{Text: texts.Get(models.TextNextLevelButton), CallbackData: fmt.Sprintf("%s%d", CallbackContinuePrefix, a.NextLevel)},
				{Text: texts.Get(models.TextChangeLevelButton), CallbackData: CallbackChangeLevel},
			}},
		}
		return t.sendText(ctx, identity, texts.Render(models.TextLevelCompleted, levelVars(a.Level)), keyboard)

	case fsm.ActionOfferFinalCompletion:
		text := texts.Render(models.TextFinalMessage, map[string]string{"channel": t.channelURL})
		return t.sendText(ctx, identity, text, nil)

	case fsm.ActionOfferLevelMenu:
		row := make([]tgmodels.InlineKeyboardButton, 0, len(a.Levels))
		for _, id := range a.Levels {
			row = append(row, tgmodels.InlineKeyboardButton{
				Text:         texts.Render(models.TextLevelButton, levelVars(id)),
				CallbackData: fmt.Sprintf("%s%d", CallbackChangeToPrefix, id),
			})
		}
		keyboard := &tgmodels.InlineKeyboardMarkup{InlineKeyboard: [][]tgmodels.InlineKeyboardButton{row}}
		return t.sendText(ctx, identity, texts.Get(models.TextLevelMenu), keyboard)

	case fsm.ActionThankYou:
		return t.sendText(ctx, identity, texts.Get(models.TextContactSaved), nil)
	}

	return fmt.Errorf("unknown action %q", a.Kind)
}

func (t *TelegramTransport) sendIntro(ctx context.Context, identity int64, level int, texts models.Texts) error {
	intro, ok := t.catalog.Intro(level)
	if !ok {
		return nil
	}

	caption := texts.Render(models.TextIntroCaption, levelVars(level))
	if intro.Caption != "" {
		caption = models.RenderTemplate(intro.Caption, levelVars(level))
	}

	_, err := t.SendPhotoWithRetry(ctx, &bot.SendPhotoParams{
		ChatID:  identity,
		Photo:   &tgmodels.InputFileString{Data: intro.ThumbnailURL},
		Caption: caption,
		ReplyMarkup: &tgmodels.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgmodels.InlineKeyboardButton{{
				{Text: texts.Get(models.TextWatchVideoButton), URL: intro.VideoURL},
			}},
		},
	})
	return err
}

func (t *TelegramTransport) sendQuestion(ctx context.Context, identity int64, level, index int) error {
	q, ok := t.catalog.Question(level, index)
	if !ok {
		return fmt.Errorf("no question %d on level %d", index, level)
	}

	options := make([]tgmodels.InputPollOption, len(q.Options))
	for i, o := range q.Options {
		options[i] = tgmodels.InputPollOption{Text: o}
	}
	isAnonymous := false

	msg, err := t.SendPollWithRetry(ctx, &bot.SendPollParams{
		ChatID:          identity,
		Question:        q.Prompt,
		Options:         options,
		IsAnonymous:     &isAnonymous,
		Type:            "quiz",
		CorrectOptionID: q.Correct,
	})
	if err != nil {
		return err
	}

	if msg != nil && msg.Poll != nil {
		poll := &models.Poll{PollID: msg.Poll.ID, Identity: identity, Level: level, QuestionIndex: index}
		if err := t.pollRepo.Save(ctx, poll); err != nil {
			// Unregistered polls are still graded against the current question.
			log.Printf("[POLL] register poll %s for user %d: %v", msg.Poll.ID, identity, err)
		}
	}
	return nil
}

func (t *TelegramTransport) sendText(ctx context.Context, identity int64, text string, keyboard *tgmodels.InlineKeyboardMarkup) error {
	params := &bot.SendMessageParams{ChatID: identity, Text: text}
	if keyboard != nil {
		params.ReplyMarkup = keyboard
	}
	_, err := t.SendWithRetry(ctx, params)
	return err
}

func (t *TelegramTransport) SendWithRetry(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	var lastErr error
	for attempt := 0; attempt < t.maxRetry; attempt++ {
		msg, err := t.bot.SendMessage(ctx, params)
		if err == nil {
			return msg, nil
		}
		lastErr = err
	}
	t.notifyFailure(ctx, params.ChatID, params, lastErr)
	return nil, lastErr
}

func (t *TelegramTransport) SendPhotoWithRetry(ctx context.Context, params *bot.SendPhotoParams) (*tgmodels.Message, error) {
	var lastErr error
	for attempt := 0; attempt < t.maxRetry; attempt++ {
		msg, err := t.bot.SendPhoto(ctx, params)
		if err == nil {
			return msg, nil
		}
		lastErr = err
	}
	t.notifyFailure(ctx, params.ChatID, params, lastErr)
	return nil, lastErr
}

func (t *TelegramTransport) SendPollWithRetry(ctx context.Context, params *bot.SendPollParams) (*tgmodels.Message, error) {
	var lastErr error
	for attempt := 0; attempt < t.maxRetry; attempt++ {
		msg, err := t.bot.SendPoll(ctx, params)
		if err == nil {
			return msg, nil
		}
		lastErr = err
	}
	t.notifyFailure(ctx, params.ChatID, params, lastErr)
	return nil, lastErr
}

func (t *TelegramTransport) notifyFailure(ctx context.Context, chatID any, request interface{}, err error) {
	if t.notifier == nil {
		return
	}
	id, _ := chatID.(int64)
	t.notifier.NotifyAdminWithCurl(ctx, id, request, err)
}
