package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/paperlane/paperlane/internal/store"
	"go.uber.org/zap"
)

const maxStaleRetries = 3

// withStaleRetry runs fn until it stops failing with store.ErrStaleState, at most maxStaleRetries times.
// fn must re-read and re-validate everything it writes.
func withStaleRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= maxStaleRetries; attempt++ {
		err = fn(ctx)
		if !errors.Is(err, store.ErrStaleState) {
			return err
		}
		zap.S().Named("service").Debugw("stale state, retrying", "operation", operation, "attempt", attempt)
	}
	return &ErrConcurrentUpdate{fmt.Errorf("%w: %s gave up after %d attempts", ErrStaleState, operation, maxStaleRetries)}
}

// inTransaction runs fn inside a fresh transaction and commits when fn succeeds.
func inTransaction(ctx context.Context, s store.Store, fn func(ctx context.Context) error) error {
	ctx, err := s.NewTransactionContext(ctx)
	if err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		_, _ = store.Rollback(ctx)
		return err
	}

	_, err = store.Commit(ctx)
	return err
}
