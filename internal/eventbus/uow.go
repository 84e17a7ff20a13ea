package eventbus

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sportsync/internal/repository"
)

// Op is one deferred write executed inside the unit of work's transaction.
type Op func(ctx context.Context, tx *gorm.DB) error

// UnitOfWork ties writes, the event log and the bus together: queued ops and
// registered events commit atomically, and the bus only sees events whose
// transaction actually committed.
type UnitOfWork struct {
	Repo   repository.CatalogRepository
	Store  *Store
	Bus    Bus
	Logger *zap.Logger
}

func NewUnitOfWork(repo repository.CatalogRepository, store *Store, bus Bus, logger *zap.Logger) *UnitOfWork {
	return &UnitOfWork{Repo: repo, Store: store, Bus: bus, Logger: logger}
}

// Work is one open unit. Not safe for concurrent use.
type Work struct {
	uow    *UnitOfWork
	ops    []Op
	events []Event
	done   bool
}

func (u *UnitOfWork) Begin() *Work {
	return &Work{uow: u}
}

func (w *Work) RegisterOp(op Op) {
	if w == nil || w.done || op == nil {
		return
	}
	w.ops = append(w.ops, op)
}

func (w *Work) RegisterEvents(events ...Event) {
	if w == nil || w.done {
		return
	}
	w.events = append(w.events, events...)
}

// Commit runs every queued op and the event-log append in one transaction,
// then dispatches the registered events. A dispatch failure is logged, not
// returned: the write is already durable and the log can be replayed.
func (w *Work) Commit(ctx context.Context) error {
	if w == nil || w.done {
		return nil
	}
	w.done = true

	err := w.uow.Repo.InTx(ctx, func(tx *gorm.DB) error {
		for _, op := range w.ops {
			if err := op(ctx, tx); err != nil {
				return err
			}
		}
		return w.uow.Store.AppendTx(ctx, tx, w.events)
	})
	if err != nil {
		return err
	}

	if w.uow.Bus != nil && len(w.events) > 0 {
		if err := w.uow.Bus.PublishAll(ctx, w.events); err != nil && w.uow.Logger != nil {
			w.uow.Logger.Error("post-commit event dispatch failed",
				zap.Int("events", len(w.events)),
				zap.Error(err))
		}
	}
	return nil
}

// Rollback discards the queued ops and events without touching the store.
func (w *Work) Rollback() {
	if w == nil {
		return
	}
	w.done = true
	w.ops = nil
	w.events = nil
}
