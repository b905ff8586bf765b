package services

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// ErrorManager reports failures to the admin chat.
type ErrorManager struct {
	bot     MessageSender
	adminID int64
}

func NewErrorManager(b MessageSender, adminID int64) *ErrorManager {
	return &ErrorManager{
		bot:     b,
		adminID: adminID,
	}
}

func describeSender(update *models.Update) string {
	if update == nil {
		return "unknown"
	}

	var u *models.User
	switch {
	case update.Message != nil && update.Message.From != nil:
		u = update.Message.From
	case update.CallbackQuery != nil && update.CallbackQuery.From.ID != 0:
		u = &update.CallbackQuery.From
	case update.PollAnswer != nil && update.PollAnswer.User != nil:
		u = update.PollAnswer.User
	default:
		return "unknown"
	}

	info := fmt.Sprintf("[%d]", u.ID)
	if u.FirstName != "" {
		info = u.FirstName + " " + info
	}
	if u.Username != "" {
		info = info + " @" + u.Username
	}
	return info
}

func (e *ErrorManager) NotifyAdmin(ctx context.Context, panicValue interface{}, update *models.Update) {
	msg := fmt.Sprintf("🚨 Panic in handler\nUser: %s\nError: %v\n\nStack trace:\n%s",
		describeSender(update), panicValue, string(debug.Stack()))
	e.send(ctx, msg)
}

func (e *ErrorManager) NotifyAdminWithCurl(ctx context.Context, chatID int64, request interface{}, err error) {
	msg := fmt.Sprintf("❌ Failed to send message\nUser: [%d]\nError: %v\n\nCurl:\n%s",
		chatID, err, buildCurlCommand(request))
	e.send(ctx, msg)
}

// ReportDeliveryFailure tells the admin that a user's progress was saved but a reply was lost.
func (e *ErrorManager) ReportDeliveryFailure(ctx context.Context, identity int64, err error) {
	e.send(ctx, fmt.Sprintf("⚠️ Delivery failed\nUser: [%d]\nError: %v", identity, err))
}

func (e *ErrorManager) send(ctx context.Context, msg string) {
	if e.adminID == 0 {
		return
	}
	if runes := []rune(msg); len(runes) > 4000 {
		msg = string(runes[:4000]) + "\n... (truncated)"
	}
	_, _ = e.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: e.adminID,
		Text:   msg,
	})
}

func buildCurlCommand(request interface{}) string {
	method := "sendMessage"
	switch request.(type) {
	case *bot.SendPhotoParams:
		method = "sendPhoto"
	case *bot.SendPollParams:
		method = "sendPoll"
	}

	jsonData, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return fmt.Sprintf("# Failed to serialize request: %v", err)
	}

	return fmt.Sprintf("curl -X POST 'https://api.telegram.org/bot[BOT_TOKEN]/%s' \\\n  -H 'Content-Type: application/json' \\\n  -d '%s'",
		method, string(jsonData))
}
