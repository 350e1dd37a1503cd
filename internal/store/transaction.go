package store

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey int

const (
	transactionKey contextKey = iota
)

var (
	errTxDone = errors.New("transaction already finished")
	txSeq     atomic.Int64
)

// Tx is the transaction carried by a context. Stores pick it up through FromContext,
// so every store call made with that context joins the same transaction.
type Tx struct {
	id      int64
	tx      *gorm.DB
	started time.Time
	log     *zap.SugaredLogger
}

func Commit(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(transactionKey).(*Tx)
	if !ok {
		return ctx, nil
	}
	return context.WithValue(ctx, transactionKey, nil), tx.Commit()
}

func Rollback(ctx context.Context) (context.Context, error) {
	tx, ok := ctx.Value(transactionKey).(*Tx)
	if !ok {
		return ctx, nil
	}
	return context.WithValue(ctx, transactionKey, nil), tx.Rollback()
}

// FromContext returns the open transaction of ctx, or nil.
func FromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(transactionKey).(*Tx); ok && tx.tx != nil {
		return tx.tx
	}
	return nil
}

// InTransaction reports whether ctx carries an open transaction.
func InTransaction(ctx context.Context) bool {
	return FromContext(ctx) != nil
}

// newTransactionContext joins the transaction already in ctx, if any.
func newTransactionContext(ctx context.Context, db *gorm.DB) (context.Context, error) {
	if InTransaction(ctx) {
		return ctx, nil
	}

	tx := db.Session(&gorm.Session{Context: ctx}).Begin()
	if tx.Error != nil {
		return ctx, tx.Error
	}

	t := &Tx{
		id:      txSeq.Add(1),
		tx:      tx,
		started: time.Now(),
		log:     zap.S().Named("transaction"),
	}
	return context.WithValue(ctx, transactionKey, t), nil
}

func (t *Tx) Commit() error {
	if t.tx == nil {
		return errTxDone
	}

	if err := t.tx.Commit().Error; err != nil {
		t.log.Errorw("failed to commit transaction", "tx_id", t.id, "error", err)
		return err
	}
	t.tx = nil
	t.log.Debugw("transaction committed", "tx_id", t.id, "duration", time.Since(t.started))
	return nil
}

func (t *Tx) Rollback() error {
	if t.tx == nil {
		return errTxDone
	}

	if err := t.tx.Rollback().Error; err != nil {
		t.log.Errorw("failed to rollback transaction", "tx_id", t.id, "error", err)
		return err
	}
	t.tx = nil
	t.log.Debugw("transaction rolled back", "tx_id", t.id, "duration", time.Since(t.started))
	return nil
}
