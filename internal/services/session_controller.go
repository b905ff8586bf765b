package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ad/go-telegram-levelquiz/internal/fsm"
	"github.com/ad/go-telegram-levelquiz/internal/models"
)

// ProgressStore is the durable record the controller reads and writes.
type ProgressStore interface {
	Get(ctx context.Context, identity int64) (models.Progress, error)
	Create(ctx context.Context, p models.Progress) (models.Progress, bool, error)
	Save(ctx context.Context, p models.Progress) (models.Progress, error)
}

// DeliveryReporter hears about failures that happen after the caller has returned.
type DeliveryReporter interface {
	ReportDeliveryFailure(ctx context.Context, identity int64, err error)
}

// FirstLevelCatalog is the engine catalog plus the entry level for new identities.
type FirstLevelCatalog interface {
	fsm.Catalog
	First() int
}

// TransportError wraps a delivery failure. The state change that produced the action is kept.
type TransportError struct {
	Identity int64
	Action   fsm.ActionKind
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("deliver %s to %d: %v", e.Action, e.Identity, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type ControllerConfig struct {
	QuestionDelay      time.Duration
	StoreTimeout       time.Duration
	SendTimeout        time.Duration
	MaxConflictRetries int
}

type SessionController struct {
	store     ProgressStore
	catalog   FirstLevelCatalog
	locker    Locker
	transport Transport
	scheduler *Scheduler
	reporter  DeliveryReporter
	cfg       ControllerConfig
}

func NewSessionController(store ProgressStore, c FirstLevelCatalog, locker Locker, transport Transport, scheduler *Scheduler, reporter DeliveryReporter, cfg ControllerConfig) *SessionController {
	if cfg.MaxConflictRetries < 1 {
		cfg.MaxConflictRetries = 1
	}
	return &SessionController{
		store:     store,
		catalog:   c,
		locker:    locker,
		transport: transport,
		scheduler: scheduler,
		reporter:  reporter,
		cfg:       cfg,
	}
}

// Handle applies ev to the identity's progress and delivers the resulting actions.
// At most one Handle per identity runs at a time.
func (c *SessionController) Handle(ctx context.Context, identity int64, ev fsm.Event) error {
	unlock, err := c.locker.Lock(ctx, progressLockKey(identity))
	if err != nil {
		return fmt.Errorf("lock identity %d: %w", identity, err)
	}
	defer unlock()

	actions, err := c.apply(ctx, identity, ev)
	if err != nil {
		return err
	}

	return c.dispatch(ctx, identity, actions)
}

func (c *SessionController) apply(ctx context.Context, identity int64, ev fsm.Event) ([]fsm.Action, error) {
	for attempt := 1; ; attempt++ {
		current, loaded, err := c.load(ctx, identity, ev)
		if err != nil {
			return nil, err
		}

		next, actions, err := fsm.Transition(current, c.catalog, loaded)
		if err != nil {
			return nil, err
		}
		if next.SameState(current) {
			return actions, nil
		}

		err = c.save(ctx, next)
		if err == nil {
			return actions, nil
		}
		if !errors.Is(err, models.ErrStoreConflict) || attempt >= c.cfg.MaxConflictRetries {
			return nil, err
		}
		log.Printf("[SESSION] conflict saving user %d (attempt %d/%d), retrying", identity, attempt, c.cfg.MaxConflictRetries)
	}
}

// load returns the stored progress. SessionStart creates a missing record and is marked New when it did.
func (c *SessionController) load(ctx context.Context, identity int64, ev fsm.Event) (models.Progress, fsm.Event, error) {
	storeCtx, cancel := c.storeContext(ctx)
	defer cancel()

	p, err := c.store.Get(storeCtx, identity)
	if err == nil {
		if start, ok := ev.(fsm.SessionStart); ok {
			start.New = false
			ev = start
		}
		return p, ev, nil
	}

	start, isStart := ev.(fsm.SessionStart)
	if !errors.Is(err, models.ErrProgressNotFound) || !isStart {
		return models.Progress{}, ev, err
	}

	p, created, err := c.store.Create(storeCtx, models.NewProgress(identity, c.catalog.First()))
	if err != nil {
		return models.Progress{}, ev, err
	}
	if created {
		log.Printf("[SESSION] new progress for user %d at level %d", identity, p.Level)
	}
	start.New = created
	return p, start, nil
}

func (c *SessionController) save(ctx context.Context, p models.Progress) error {
	storeCtx, cancel := c.storeContext(ctx)
	defer cancel()
	_, err := c.store.Save(storeCtx, p)
	return err
}

func (c *SessionController) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.StoreTimeout)
}

// dispatch delivers actions in order. From the first deferred action on, the rest of the
// list is handed to the scheduler as one batch so ordering is kept.
func (c *SessionController) dispatch(ctx context.Context, identity int64, actions []fsm.Action) error {
	for i, a := range actions {
		if a.Deferred && c.scheduler != nil {
			batch := append([]fsm.Action(nil), actions[i:]...)
			if c.scheduler.Schedule(c.cfg.QuestionDelay, func(ctx context.Context) {
				c.dispatchDeferred(ctx, identity, batch)
			}) {
				return nil
			}
		}
		if err := c.deliver(ctx, identity, a); err != nil {
			return err
		}
	}
	return nil
}

func (c *SessionController) dispatchDeferred(ctx context.Context, identity int64, batch []fsm.Action) {
	unlock, err := c.locker.Lock(ctx, progressLockKey(identity))
	if err != nil {
		log.Printf("[SESSION] deferred dispatch for user %d: %v", identity, err)
		return
	}
	defer unlock()

	storeCtx, cancel := c.storeContext(ctx)
	p, err := c.store.Get(storeCtx, identity)
	cancel()
	if err != nil {
		log.Printf("[SESSION] deferred dispatch for user %d: %v", identity, err)
		return
	}
	if !stillCurrent(p, c.catalog, batch[0]) {
		log.Printf("[SESSION] dropping stale deferred %s for user %d", batch[0].Kind, identity)
		return
	}

	for _, a := range batch {
		if err := c.deliver(ctx, identity, a); err != nil {
			log.Printf("[TRANSPORT] %v", err)
			if c.reporter != nil {
				c.reporter.ReportDeliveryFailure(ctx, identity, err)
			}
			return
		}
	}
}

// stillCurrent reports whether a deferred action still matches the stored position.
func stillCurrent(p models.Progress, cat fsm.Catalog, a fsm.Action) bool {
	switch a.Kind {
	case fsm.ActionAskQuestion:
		return p.Level == a.Level && p.QuestionIndex == a.QuestionIndex
	case fsm.ActionOfferLevelTransition, fsm.ActionOfferFinalCompletion:
		return p.Level == a.Level && p.QuestionIndex >= cat.QuestionCount(p.Level)
	}
	return true
}

func (c *SessionController) deliver(ctx context.Context, identity int64, a fsm.Action) error {
	sendCtx := ctx
	if c.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, c.cfg.SendTimeout)
		defer cancel()
	}

	if err := c.transport.Deliver(sendCtx, identity, a); err != nil {
		return &TransportError{Identity: identity, Action: a.Kind, Err: err}
	}
	return nil
}
