package services

import (
	"context"
	"fmt"
	"log"
)

type ProgressDeleter interface {
	Delete(ctx context.Context, identity int64) error
}

// UserManager performs admin operations on a single identity.
type UserManager struct {
	repo   ProgressDeleter
	locker Locker
}

func NewUserManager(repo ProgressDeleter, locker Locker) *UserManager {
	return &UserManager{repo: repo, locker: locker}
}

// DeleteUser removes the identity's progress, polls and profile. It waits for any in-flight
// update of that identity to finish first.
func (m *UserManager) DeleteUser(ctx context.Context, identity int64) error {
	unlock, err := m.locker.Lock(ctx, progressLockKey(identity))
	if err != nil {
		return fmt.Errorf("lock identity %d: %w", identity, err)
	}
	defer unlock()

	if err := m.repo.Delete(ctx, identity); err != nil {
		return err
	}
	log.Printf("[ADMIN] deleted user %d", identity)
	return nil
}
