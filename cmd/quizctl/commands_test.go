package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ad/go-telegram-levelquiz/internal/db"
	"github.com/ad/go-telegram-levelquiz/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quest.db")
	sqlDB, err := db.Open(path)
	require.NoError(t, err)
	defer sqlDB.Close()

	queue := db.NewDBQueue(sqlDB)
	defer queue.Close()

	ctx := context.Background()
	users := db.NewUserRepository(queue)
	progress := db.NewProgressRepository(queue)
	for _, u := range []struct {
		id        int64
		completed bool
	}{{100, true}, {200, false}} {
		require.NoError(t, users.CreateOrUpdate(ctx, &models.User{ID: u.id, FirstName: "Ravi"}))
		p, _, err := progress.Create(ctx, models.NewProgress(u.id, 1))
		require.NoError(t, err)
		p.Level, p.Completed = 2, u.completed
		_, err = progress.Save(ctx, p)
		require.NoError(t, err)
	}
	return path
}

func TestStats(t *testing.T) {
	path := seedDatabase(t)

	out, err := run(t, "--db", path, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Users: 2")
	assert.Contains(t, out, "Telegram ID: 100")
	assert.Contains(t, out, "Telegram ID: 200")

	out, err = run(t, "--db", path, "stats", "--filter", "completed")
	require.NoError(t, err)
	assert.Contains(t, out, "Telegram ID: 100")
	assert.NotContains(t, out, "Telegram ID: 200")

	_, err = run(t, "--db", path, "stats", "--filter", "bogus")
	assert.Error(t, err)
}

func TestDeleteUser(t *testing.T) {
	path := seedDatabase(t)

	out, err := run(t, "--db", path, "--redis", "", "delete-user", "100")
	require.NoError(t, err)
	assert.Equal(t, "deleted user 100\n", out)

	_, err = run(t, "--db", path, "--redis", "", "delete-user", "100")
	assert.ErrorContains(t, err, "no user found")

	_, err = run(t, "--db", path, "delete-user", "abc")
	assert.Error(t, err)
}

func TestDeleteUser_WithRedisLock(t *testing.T) {
	path := seedDatabase(t)
	mr := miniredis.RunT(t)

	_, err := run(t, "--db", path, "--redis", mr.Addr(), "delete-user", "200")
	require.NoError(t, err)
	assert.Empty(t, mr.Keys())

	out, err := run(t, "--db", path, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Users: 1")
}

func TestValidateCatalog(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
levels:
  - id: 1
    questions:
      - prompt: "Pick one"
        options: ["a", "b"]
        correct: 0
`), 0o644))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
levels:
  - id: 1
    questions:
      - prompt: "Pick one"
        options: ["a", "b"]
        correct: 5
`), 0o644))

	out, err := run(t, "validate-catalog", good)
	require.NoError(t, err)
	assert.Contains(t, out, "1 level(s)")
	assert.Contains(t, out, "level 1 (shown as Level 0): 1 question(s), no intro")

	_, err = run(t, "--catalog", bad, "validate-catalog")
	assert.Error(t, err)
}

func TestValidateCatalog_Shipped(t *testing.T) {
	_, err := run(t, "validate-catalog", filepath.Join("..", "..", "catalog.yaml"))
	assert.NoError(t, err)
}

func TestMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")

	out, err := run(t, "--db", path, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	_, err = os.Stat(path)
	assert.NoError(t, err)
}
