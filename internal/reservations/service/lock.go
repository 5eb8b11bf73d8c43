package service

import (
	"context"
	"errors"
	"roombook/internal/reservations/repository"
	"roombook/pkg/clock"
	apperrors "roombook/pkg/errors"
	"roombook/pkg/logger"
	"roombook/pkg/model"
	"time"

	"github.com/google/uuid"
)

const lockIDPrefix = "resource_lock_"

// ResourceLocker serializes admission per resource with an advisory lock row.
type ResourceLocker struct {
	repo  repository.ResourceLockRepository
	clock clock.Clock
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
	log   *logger.Logger
}

func NewResourceLocker(repo repository.ResourceLockRepository, clk clock.Clock, ttl, wait, retry time.Duration, log *logger.Logger) *ResourceLocker {
	return &ResourceLocker{
		repo:  repo,
		clock: clk,
		ttl:   ttl,
		wait:  wait,
		retry: retry,
		log:   log,
	}
}

// ErrLeaseLost is the cancellation cause of fn's context when the lock was
// taken over while fn was still running.
var ErrLeaseLost = errors.New("resource lock lease lost")

type leaseKey struct{}

type lease struct {
	lockID string
	owner  string
}

// WithLock runs fn while holding the lock for resourceID. It gives up with a
// TIMEOUT error when the lock cannot be taken within the wait budget.
//
// The lease is renewed every ttl/3 while fn runs. If a renewal finds the lock
// gone or owned by someone else, fn's context is cancelled with ErrLeaseLost.
// Writes that must not outlive the lease call Confirm inside their transaction.
func (l *ResourceLocker) WithLock(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error {
	lockID := lockIDPrefix + resourceID
	owner := uuid.NewString()

	if err := l.acquire(ctx, lockID, owner); err != nil {
		return err
	}
	defer func() {
		// Release even when ctx was cancelled mid-operation.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.ttl)
		defer cancel()
		if err := l.repo.Release(releaseCtx, lockID, owner); err != nil {
			l.log.Warn("Failed to release resource lock", "lock_id", lockID, "error", err)
		}
	}()

	leaseCtx, cancel := context.WithCancelCause(context.WithValue(ctx, leaseKey{}, lease{lockID: lockID, owner: owner}))
	defer cancel(nil)

	done := make(chan struct{})
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		l.keepAlive(leaseCtx, lockID, owner, done, cancel)
	}()

	err := fn(leaseCtx)
	close(done)
	<-renewed

	if err != nil && errors.Is(context.Cause(leaseCtx), ErrLeaseLost) {
		return apperrors.Timeout("Resource lock lease lost, please retry")
	}
	return err
}

func (l *ResourceLocker) keepAlive(ctx context.Context, lockID, owner string, done <-chan struct{}, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		renewCtx, stop := context.WithTimeout(ctx, l.ttl/3)
		held, err := l.repo.Renew(renewCtx, lockID, owner, l.clock.Now().Add(l.ttl))
		stop()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// A failed write does not mean the lease is gone; Confirm fences
			// the commit if it was.
			l.log.Warn("Failed to renew resource lock", "lock_id", lockID, "error", err)
			continue
		}
		if !held {
			l.log.Error("Resource lock taken over while held", "lock_id", lockID)
			cancel(ErrLeaseLost)
			return
		}
	}
}

// Confirm extends the lease held by ctx and fails when it was lost. Called with
// a transaction context, the check commits or aborts together with the writes
// it guards.
func (l *ResourceLocker) Confirm(ctx context.Context) error {
	held, ok := ctx.Value(leaseKey{}).(lease)
	if !ok {
		return apperrors.Internal("Resource lock not held", nil)
	}
	renewed, err := l.repo.Renew(ctx, held.lockID, held.owner, l.clock.Now().Add(l.ttl))
	if err != nil {
		return apperrors.Internal("Failed to confirm resource lock", err)
	}
	if !renewed {
		l.log.Error("Resource lock lost before commit", "lock_id", held.lockID)
		return apperrors.Timeout("Resource lock lease lost, please retry")
	}
	return nil
}

func (l *ResourceLocker) acquire(ctx context.Context, lockID, owner string) error {
	deadline := time.Now().Add(l.wait)
	for {
		now := l.clock.Now()
		acquired, err := l.repo.TryAcquire(ctx, &model.ResourceLock{
			ID:        lockID,
			Owner:     owner,
			ExpiresAt: now.Add(l.ttl),
			CreatedAt: now,
		})
		if err != nil {
			return apperrors.Internal("Failed to acquire resource lock", err)
		}
		if acquired {
			return nil
		}

		if time.Now().Add(l.retry).After(deadline) {
			l.log.Warn("Resource lock wait exceeded", "lock_id", lockID, "wait", l.wait)
			return apperrors.Timeout("Resource is busy, please retry")
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return apperrors.Timeout("Request cancelled while waiting for resource lock")
		case <-timer.C:
		}
	}
}
