package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/collab-room-api/internal/observability"
)

var (
	// ErrNotFound is returned when no active record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrConflict signals a duplicate natural key or an exhausted optimistic retry budget.
	ErrConflict = errors.New("conflicting update")
	// ErrUnavailable is returned when an operation exceeds the hard deadline.
	ErrUnavailable = errors.New("store unavailable")

	errStaleRevision = errors.New("stale revision")
)

const (
	defaultSoftDeadline = 5 * time.Second
	defaultHardDeadline = 10 * time.Second
)

// RetryPolicy describes the optimistic concurrency backoff schedule.
type RetryPolicy struct {
	Backoff []time.Duration
}

// DefaultRetryPolicy retries three times after 100ms, 200ms and 400ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}}
}

// Options tunes the gateway shared by the stores.
type Options struct {
	Retry        RetryPolicy
	SoftDeadline time.Duration
	HardDeadline time.Duration
	Logger       zerolog.Logger
}

type gateway struct {
	db     *gorm.DB
	retry  RetryPolicy
	soft   time.Duration
	hard   time.Duration
	logger zerolog.Logger
}

func newGateway(db *gorm.DB, opts Options, component string) gateway {
	if opts.Retry.Backoff == nil {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.SoftDeadline <= 0 {
		opts.SoftDeadline = defaultSoftDeadline
	}
	if opts.HardDeadline <= 0 {
		opts.HardDeadline = defaultHardDeadline
	}

	return gateway{
		db:     db,
		retry:  opts.Retry,
		soft:   opts.SoftDeadline,
		hard:   opts.HardDeadline,
		logger: opts.Logger.With().Str("component", component).Logger(),
	}
}

// run executes fn under the hard deadline and reports slow operations.
func (g gateway) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opCtx, cancel := context.WithTimeout(ctx, g.hard)
	defer cancel()

	start := time.Now()
	err := fn(opCtx)
	elapsed := time.Since(start)
	if elapsed > g.soft {
		g.logger.Warn().Str("op", op).Dur("elapsed", elapsed).Msg("slow store operation")
	}

	if err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	return err
}

// withRetry repeats attempt while it reports a stale revision.
func (g gateway) withRetry(ctx context.Context, op string, attempt func(ctx context.Context) error) error {
	for i := 0; ; i++ {
		err := g.run(ctx, op, attempt)
		if !errors.Is(err, errStaleRevision) {
			return err
		}

		observability.GatewayConflicts().WithLabelValues(op).Inc()
		if i >= len(g.retry.Backoff) {
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}

		timer := time.NewTimer(g.retry.Backoff[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}
