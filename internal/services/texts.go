package services

import (
	"context"
	"sort"
	"sync"

	"github.com/ad/go-telegram-levelquiz/internal/db"
	"github.com/ad/go-telegram-levelquiz/internal/models"
)

// TextStore caches the text templates and writes edits through to the settings table.
type TextStore struct {
	repo  *db.SettingsRepository
	mu    sync.RWMutex
	texts models.Texts
}

func NewTextStore(repo *db.SettingsRepository) *TextStore {
	return &TextStore{repo: repo, texts: models.Texts{}}
}

func (s *TextStore) Load(ctx context.Context) error {
	texts, err := s.repo.GetTexts(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.texts = texts
	s.mu.Unlock()
	return nil
}

// Texts returns a snapshot safe to read without locking.
func (s *TextStore) Texts() models.Texts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(models.Texts, len(s.texts))
	for k, v := range s.texts {
		out[k] = v
	}
	return out
}

func (s *TextStore) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.texts[key] = value
	s.mu.Unlock()
	return nil
}

func TextKeys() []string {
	keys := make([]string, 0, len(models.DefaultTexts))
	for k := range models.DefaultTexts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
