package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/ad/go-telegram-levelquiz/internal/models"
	"github.com/ad/go-telegram-levelquiz/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

const (
	unauthorizedText   = "You are not authorized to view the statistics."
	deleteUserUsage    = "⚠ Please provide a Telegram ID. Example: /deleteuser 123456789"
	setTextUsage       = "⚠ Usage: /settext <key> <text>. Send /texts to see the keys."
	statisticsFailText = "An error occurred while fetching the statistics: %v"
)

type ReportBuilder interface {
	Build(ctx context.Context, filter services.Filter) (*services.Report, error)
}

type UserDeleter interface {
	DeleteUser(ctx context.Context, identity int64) error
}

// AdminHandler serves the operator commands. Every command is refused for other senders.
type AdminHandler struct {
	sender      Sender
	adminID     int64
	stats       ReportBuilder
	userManager UserDeleter
	texts       *services.TextStore
}

func NewAdminHandler(sender Sender, adminID int64, stats ReportBuilder, userManager UserDeleter, texts *services.TextStore) *AdminHandler {
	return &AdminHandler{
		sender:      sender,
		adminID:     adminID,
		stats:       stats,
		userManager: userManager,
		texts:       texts,
	}
}

// HandleCommand reports whether msg was an admin command.
func (h *AdminHandler) HandleCommand(ctx context.Context, msg *tgmodels.Message) bool {
	command, args := splitCommand(msg.Text)

	switch command {
	case "/statistics", "/deleteuser", "/settext", "/texts":
	default:
		return false
	}

	if msg.From == nil || msg.From.ID != h.adminID {
		h.send(ctx, msg.Chat.ID, unauthorizedText)
		return true
	}

	log.Printf("[ADMIN] %s %q", command, args)

	switch command {
	case "/statistics":
		h.handleStatistics(ctx, msg.Chat.ID, args)
	case "/deleteuser":
		h.handleDeleteUser(ctx, msg.Chat.ID, args)
	case "/settext":
		h.handleSetText(ctx, msg.Chat.ID, args)
	case "/texts":
		h.handleListTexts(ctx, msg.Chat.ID)
	}
	return true
}

func (h *AdminHandler) handleStatistics(ctx context.Context, chatID int64, args string) {
	filter, err := services.ParseFilter(args)
	if err != nil {
		h.send(ctx, chatID, "⚠ "+err.Error())
		return
	}

	report, err := h.stats.Build(ctx, filter)
	if err != nil {
		log.Printf("[ADMIN] statistics: %v", err)
		h.send(ctx, chatID, fmt.Sprintf(statisticsFailText, err))
		return
	}

	for _, chunk := range services.SplitMessage(services.FormatReport(report), services.MaxMessageLength) {
		h.send(ctx, chatID, chunk)
	}
}

func (h *AdminHandler) handleDeleteUser(ctx context.Context, chatID int64, args string) {
	idText, _ := cutWord(args)
	if idText == "" {
		h.send(ctx, chatID, deleteUserUsage)
		return
	}
	identity, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		h.send(ctx, chatID, deleteUserUsage)
		return
	}

	err = h.userManager.DeleteUser(ctx, identity)
	switch {
	case err == nil:
		h.send(ctx, chatID, fmt.Sprintf("✅ User with Telegram ID %d has been deleted.", identity))
	case errors.Is(err, models.ErrProgressNotFound):
		h.send(ctx, chatID, fmt.Sprintf("⚠ No user found with Telegram ID %d.", identity))
	default:
		log.Printf("[ADMIN] delete user %d: %v", identity, err)
		h.send(ctx, chatID, fmt.Sprintf("❌ Failed to delete user %d: %v", identity, err))
	}
}

func (h *AdminHandler) handleSetText(ctx context.Context, chatID int64, args string) {
	key, value := cutWord(args)
	if key == "" || value == "" {
		h.send(ctx, chatID, setTextUsage)
		return
	}
	if !models.IsTextKey(key) {
		h.send(ctx, chatID, fmt.Sprintf("⚠ Unknown key %q.\n\nKeys: %s", key, strings.Join(services.TextKeys(), ", ")))
		return
	}

	if err := h.texts.Set(ctx, key, value); err != nil {
		log.Printf("[ADMIN] set text %s: %v", key, err)
		h.send(ctx, chatID, fmt.Sprintf("❌ Failed to update %s: %v", key, err))
		return
	}
	h.send(ctx, chatID, fmt.Sprintf("✅ Text %s updated.", key))
}

func (h *AdminHandler) handleListTexts(ctx context.Context, chatID int64) {
	texts := h.texts.Texts()

	var sb strings.Builder
	sb.WriteString("Text templates:\n")
	for _, key := range services.TextKeys() {
		fmt.Fprintf(&sb, "\n%s:\n%s\n", key, texts.Get(key))
	}
	for _, chunk := range services.SplitMessage(sb.String(), services.MaxMessageLength) {
		h.send(ctx, chatID, chunk)
	}
}

func (h *AdminHandler) send(ctx context.Context, chatID int64, text string) {
	if _, err := h.sender.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		log.Printf("[ADMIN] reply to %d: %v", chatID, err)
	}
}
