package services

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ad/go-telegram-levelquiz/internal/db"
	"github.com/ad/go-telegram-levelquiz/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
	"pgregory.net/rapid"
)

func setupTestDB(t *testing.T) *db.DBQueue {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.InitSchema(sqlDB))
	queue := db.NewDBQueueForTest(sqlDB)
	t.Cleanup(queue.Close)
	return queue
}

func seedProgress(t *testing.T, queue *db.DBQueue, id int64, level int, completed bool, contact string) {
	t.Helper()
	ctx := context.Background()
	users := db.NewUserRepository(queue)
	progress := db.NewProgressRepository(queue)

	require.NoError(t, users.CreateOrUpdate(ctx, &models.User{ID: id, FirstName: "User", LastName: "Test", Username: "user"}))
	p, _, err := progress.Create(ctx, models.NewProgress(id, 1))
	require.NoError(t, err)
	p.Level, p.Completed, p.ContactInfo = level, completed, contact
	_, err = progress.Save(ctx, p)
	require.NoError(t, err)
}

func TestParseFilter(t *testing.T) {
	for in, want := range map[string]Filter{"": FilterAll, "all": FilterAll, "Completed": FilterCompleted, " active ": FilterActive} {
		got, err := ParseFilter(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFilter("finished")
	assert.Error(t, err)
}

func TestStatisticsService_Build(t *testing.T) {
	queue := setupTestDB(t)
	seedProgress(t, queue, 1, 3, true, "+111")
	seedProgress(t, queue, 2, 2, false, "")
	seedProgress(t, queue, 3, 1, false, "@three")

	svc := NewStatisticsService(db.NewProgressRepository(queue))
	ctx := context.Background()

	all, err := svc.Build(ctx, FilterAll)
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalUsers)
	assert.Equal(t, 1, all.CompletedUsers)
	assert.Len(t, all.Entries, 3)

	active, err := svc.Build(ctx, FilterActive)
	require.NoError(t, err)
	assert.Equal(t, 3, active.TotalUsers, "totals always cover every user")
	assert.Len(t, active.Entries, 2)

	text := FormatReport(all)
	assert.Contains(t, text, "Total Users: 3")
	assert.Contains(t, text, "Total Levels Completed: 1")
	assert.Contains(t, text, "Contact: Not provided")
	assert.Contains(t, text, "Contact: +111")
	assert.Contains(t, text, "Levels Completed: 2 ✅")
	assert.Contains(t, text, "Username: @user")
}

func TestFormatReport_Empty(t *testing.T) {
	assert.Equal(t, "No users are registered yet.", FormatReport(&Report{}))
}

func TestSplitMessage_PrefersLineBreaks(t *testing.T) {
	text := strings.Repeat("line of text\n", 10)
	chunks := SplitMessage(text, 30)
	require.NotEmpty(t, chunks)
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, "\n"), "chunk %q should end at a line break", c)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitMessage_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[a-zé😀\n ]{0,400}`).Draw(rt, "text")
		limit := rapid.IntRange(1, 64).Draw(rt, "limit")

		chunks := SplitMessage(text, limit)
		if strings.Join(chunks, "") != text {
			rt.Fatalf("chunks do not reassemble the text")
		}
		for _, c := range chunks {
			if c == "" {
				rt.Fatalf("empty chunk")
			}
			if n := utf8.RuneCountInString(c); n > limit {
				rt.Fatalf("chunk has %d runes, limit %d", n, limit)
			}
			if !utf8.ValidString(c) {
				rt.Fatalf("chunk split a multi-byte character")
			}
		}
	})
}
