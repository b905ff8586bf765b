package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ad/go-telegram-levelquiz/internal/db"
	"github.com/ad/go-telegram-levelquiz/internal/fsm"
	"github.com/ad/go-telegram-levelquiz/internal/models"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"pgregory.net/rapid"
)

type fakeBot struct {
	mu       sync.Mutex
	messages []*bot.SendMessageParams
	photos   []*bot.SendPhotoParams
	polls    []*bot.SendPollParams
	failN    int
	err      error
}

func (f *fakeBot) shouldFail() bool {
	if f.failN > 0 {
		f.failN--
		return true
	}
	return false
}

func (f *fakeBot) SendMessage(_ context.Context, p *bot.SendMessageParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail() {
		return nil, f.err
	}
	f.messages = append(f.messages, p)
	return &tgmodels.Message{ID: len(f.messages)}, nil
}

func (f *fakeBot) SendPhoto(_ context.Context, p *bot.SendPhotoParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail() {
		return nil, f.err
	}
	f.photos = append(f.photos, p)
	return &tgmodels.Message{ID: 100 + len(f.photos)}, nil
}

func (f *fakeBot) SendPoll(_ context.Context, p *bot.SendPollParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.shouldFail() {
		return nil, f.err
	}
	f.polls = append(f.polls, p)
	id := "poll-" + string(rune('a'+len(f.polls)-1))
	return &tgmodels.Message{ID: 200 + len(f.polls), Poll: &tgmodels.Poll{ID: id}}, nil
}

type curlRecorder struct {
	calls int
}

func (c *curlRecorder) NotifyAdminWithCurl(context.Context, int64, interface{}, error) {
	c.calls++
}

type transportFixture struct {
	transport *TelegramTransport
	bot       *fakeBot
	polls     *db.PollRepository
	texts     *TextStore
	notifier  *curlRecorder
}

func newTransportFixture(t *testing.T) *transportFixture {
	t.Helper()
	queue := setupTestDB(t)
	texts := NewTextStore(db.NewSettingsRepository(queue))
	if err := texts.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	f := &transportFixture{
		bot:      &fakeBot{},
		polls:    db.NewPollRepository(queue),
		texts:    texts,
		notifier: &curlRecorder{},
	}
	f.transport = NewTelegramTransport(f.bot, testCatalog(t), texts, f.polls, f.notifier, "https://t.me/updates")
	return f
}

func TestTelegramTransport_EnterLevelTexts(t *testing.T) {
	f := newTransportFixture(t)
	ctx := context.Background()

	cases := []struct {
		reason fsm.EntryReason
		want   string
	}{
		{fsm.EntryStart, "🎯 Starting Level 1!"},
		{fsm.EntryContinue, "🎯 Starting Level 1!"},
		{fsm.EntryResume, "Welcome back! Resuming Level 1."},
		{fsm.EntrySwitch, "🔄 Switched to Level 1!"},
	}
	for i, tc := range cases {
		if err := f.transport.Deliver(ctx, 5, fsm.Action{Kind: fsm.ActionEnterLevel, Level: 2, Reason: tc.reason}); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
		if got := f.bot.messages[i].Text; got != tc.want {
			t.Errorf("%s: text = %q, want %q", tc.reason, got, tc.want)
		}
	}
}

func TestTelegramTransport_IntroMedia(t *testing.T) {
	f := newTransportFixture(t)

	if err := f.transport.Deliver(context.Background(), 5, fsm.Action{Kind: fsm.ActionShowIntroMedia, Level: 1}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(f.bot.photos) != 1 {
		t.Fatalf("expected one photo, got %d", len(f.bot.photos))
	}
	photo := f.bot.photos[0]
	if file, ok := photo.Photo.(*tgmodels.InputFileString); !ok || file.Data != "https://t/1.jpg" {
		t.Errorf("photo = %#v", photo.Photo)
	}
	if !strings.HasSuffix(photo.Caption, "Level 0") {
		t.Errorf("caption = %q", photo.Caption)
	}
	markup := photo.ReplyMarkup.(*tgmodels.InlineKeyboardMarkup)
	if btn := markup.InlineKeyboard[0][0]; btn.URL != "https://v/1" || btn.Text != "Watch Video" {
		t.Errorf("button = %+v", btn)
	}

	// Levels without intro send nothing.
	if err := f.transport.Deliver(context.Background(), 5, fsm.Action{Kind: fsm.ActionShowIntroMedia, Level: 2}); err != nil {
		t.Fatal(err)
	}
	if len(f.bot.photos) != 1 {
		t.Errorf("unexpected photo for level without intro")
	}
}

func TestTelegramTransport_AskQuestionRegistersPoll(t *testing.T) {
	f := newTransportFixture(t)
	ctx := context.Background()

	if err := f.transport.Deliver(ctx, 9, fsm.Action{Kind: fsm.ActionAskQuestion, Level: 1, QuestionIndex: 1}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(f.bot.polls) != 1 {
		t.Fatalf("expected one poll, got %d", len(f.bot.polls))
	}
	p := f.bot.polls[0]
	if p.Type != "quiz" || p.IsAnonymous == nil || *p.IsAnonymous || p.CorrectOptionID != 0 || len(p.Options) != 3 {
		t.Errorf("unexpected poll params: %+v", p)
	}

	poll, err := f.polls.Get(ctx, "poll-a")
	if err != nil {
		t.Fatalf("poll not registered: %v", err)
	}
	if poll.Identity != 9 || poll.Level != 1 || poll.QuestionIndex != 1 {
		t.Errorf("registered poll = %+v", poll)
	}
}

func TestTelegramTransport_Offers(t *testing.T) {
	f := newTransportFixture(t)
	ctx := context.Background()

	if err := f.transport.Deliver(ctx, 1, fsm.Action{Kind: fsm.ActionOfferLevelTransition, Level: 1, NextLevel: 2}); err != nil {
		t.Fatal(err)
	}
	msg := f.bot.messages[0]
	if msg.Text != "🎉 Level 0 completed!" {
		t.Errorf("text = %q", msg.Text)
	}
	row := msg.ReplyMarkup.(*tgmodels.InlineKeyboardMarkup).InlineKeyboard[0]
	if row[0].CallbackData != "continue_2" || row[1].CallbackData != "change_level" {
		t.Errorf("buttons = %+v", row)
	}

	if err := f.transport.Deliver(ctx, 1, fsm.Action{Kind: fsm.ActionOfferLevelMenu, Levels: []int{1, 2}}); err != nil {
		t.Fatal(err)
	}
	menu := f.bot.messages[1].ReplyMarkup.(*tgmodels.InlineKeyboardMarkup).InlineKeyboard[0]
	if len(menu) != 2 || menu[0].Text != "Level 0" || menu[1].CallbackData != "change_to_2" {
		t.Errorf("menu = %+v", menu)
	}

	if err := f.transport.Deliver(ctx, 1, fsm.Action{Kind: fsm.ActionOfferFinalCompletion}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(f.bot.messages[2].Text, "https://t.me/updates") {
		t.Errorf("final message lacks channel link: %q", f.bot.messages[2].Text)
	}
}

func TestTelegramTransport_EditedTextIsUsed(t *testing.T) {
	f := newTransportFixture(t)
	ctx := context.Background()

	if err := f.texts.Set(ctx, models.TextContactSaved, "Got it!"); err != nil {
		t.Fatal(err)
	}
	if err := f.transport.Deliver(ctx, 1, fsm.Action{Kind: fsm.ActionThankYou}); err != nil {
		t.Fatal(err)
	}
	if f.bot.messages[0].Text != "Got it!" {
		t.Errorf("text = %q", f.bot.messages[0].Text)
	}
}

func TestTelegramTransport_UnknownAction(t *testing.T) {
	f := newTransportFixture(t)
	if err := f.transport.Deliver(context.Background(), 1, fsm.Action{Kind: "dance"}); err == nil {
		t.Errorf("expected error for unknown action")
	}
}

func TestTelegramTransport_SendRetry_Property(t *testing.T) {
	f := newTransportFixture(t)

	rapid.Check(t, func(rt *rapid.T) {
		failCount := rapid.IntRange(0, 3).Draw(rt, "failCount")
		f.bot.failN = failCount
		f.bot.err = errors.New("network error")
		f.bot.messages = nil
		f.notifier.calls = 0

		_, err := f.transport.SendWithRetry(context.Background(), &bot.SendMessageParams{ChatID: int64(1), Text: "hi"})

		if failCount < 2 {
			if err != nil {
				rt.Fatalf("expected success after %d failures, got %v", failCount, err)
			}
			if f.notifier.calls != 0 {
				rt.Fatalf("admin notified on success")
			}
			return
		}
		if err == nil {
			rt.Fatalf("expected failure after %d failures", failCount)
		}
		if f.notifier.calls != 1 {
			rt.Fatalf("admin notified %d times, want 1", f.notifier.calls)
		}
		f.bot.failN = 0
	})
}
