package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

func TestErrorManager_NotifyAdmin(t *testing.T) {
	fb := &fakeBot{}
	em := NewErrorManager(fb, 1)

	update := &tgmodels.Update{PollAnswer: &tgmodels.PollAnswer{User: &tgmodels.User{ID: 77, FirstName: "Ann", Username: "ann"}}}
	em.NotifyAdmin(context.Background(), "boom", update)

	if len(fb.messages) != 1 {
		t.Fatalf("expected one admin message, got %d", len(fb.messages))
	}
	msg := fb.messages[0]
	if msg.ChatID != int64(1) {
		t.Errorf("sent to %v, want admin", msg.ChatID)
	}
	if !strings.Contains(msg.Text, "Ann [77] @ann") || !strings.Contains(msg.Text, "boom") {
		t.Errorf("text = %q", msg.Text)
	}
	if utf8.RuneCountInString(msg.Text) > 4000+len("\n... (truncated)") {
		t.Errorf("message not truncated")
	}
}

func TestErrorManager_CurlNamesMethod(t *testing.T) {
	fb := &fakeBot{}
	em := NewErrorManager(fb, 1)

	em.NotifyAdminWithCurl(context.Background(), 5, &bot.SendPollParams{ChatID: int64(5), Question: "q"}, errors.New("bad request"))
	if !strings.Contains(fb.messages[0].Text, "/sendPoll") {
		t.Errorf("curl does not target sendPoll: %q", fb.messages[0].Text)
	}
}

func TestErrorManager_NoAdminConfigured(t *testing.T) {
	fb := &fakeBot{}
	em := NewErrorManager(fb, 0)
	em.ReportDeliveryFailure(context.Background(), 5, errors.New("x"))
	if len(fb.messages) != 0 {
		t.Errorf("message sent without an admin id")
	}
}
