package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/collab-room-api/internal/observability"
)

// Janitor thresholds.
const (
	RoomIdleThreshold   = 30 * time.Minute
	UserUnseenThreshold = 24 * time.Hour
)

// JanitorConfig controls the sweep cadence.
type JanitorConfig struct {
	RoomInterval time.Duration
	UserInterval time.Duration
}

// SweepReport summarises one janitor tick.
type SweepReport struct {
	RoomsDeactivated int64 `json:"roomsDeactivated"`
	UsersDeactivated int64 `json:"usersDeactivated"`
	PresencesPruned  int   `json:"presencesPruned"`
	UserSweepRan     bool  `json:"userSweepRan"`
}

// LifecycleJanitor periodically expires idle rooms, unseen users and stale presences.
type LifecycleJanitor struct {
	rooms  RoomService
	users  IdentityService
	cfg    JanitorConfig
	logger zerolog.Logger
	now    func() time.Time

	mu            sync.Mutex
	lastUserSweep time.Time
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewLifecycleJanitor constructs a janitor. Zero intervals default to five minutes.
func NewLifecycleJanitor(rooms RoomService, users IdentityService, cfg JanitorConfig, logger zerolog.Logger) *LifecycleJanitor {
	if cfg.RoomInterval <= 0 {
		cfg.RoomInterval = 5 * time.Minute
	}
	if cfg.UserInterval <= 0 {
		cfg.UserInterval = 5 * time.Minute
	}
	return &LifecycleJanitor{
		rooms:  rooms,
		users:  users,
		cfg:    cfg,
		logger: logger.With().Str("component", "lifecycle_janitor").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the ticker loop. It is a no-op when already running.
func (j *LifecycleJanitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.cancel != nil {
		j.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.mu.Unlock()

	// Cancelling the loop stops future ticks only; a sweep already running finishes on its own context.
	sweepCtx := context.WithoutCancel(loopCtx)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.cfg.RoomInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if _, err := j.RunOnce(sweepCtx); err != nil {
					j.logger.Error().Err(err).Msg("janitor sweep failed")
				}
			}
		}
	}()

	j.logger.Info().
		Dur("room_interval", j.cfg.RoomInterval).
		Dur("user_interval", j.cfg.UserInterval).
		Msg("janitor started")
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (j *LifecycleJanitor) Stop() {
	j.mu.Lock()
	cancel := j.cancel
	j.cancel = nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	j.wg.Wait()
	j.logger.Info().Msg("janitor stopped")
}

// RunOnce performs one tick: idle rooms, then unseen users when due, then presence pruning.
// A failing step is logged and the remaining steps still run.
func (j *LifecycleJanitor) RunOnce(ctx context.Context) (SweepReport, error) {
	var (
		report SweepReport
		errs   []error
	)
	now := j.now()

	rooms, err := j.rooms.SweepInactive(ctx, now.Add(-RoomIdleThreshold))
	if err != nil {
		errs = append(errs, err)
		j.logger.Warn().Err(err).Msg("room sweep failed")
	}
	report.RoomsDeactivated = rooms

	if j.userSweepDue(now) {
		users, err := j.users.SweepInactive(ctx, now.Add(-UserUnseenThreshold))
		if err != nil {
			errs = append(errs, err)
			j.logger.Warn().Err(err).Msg("user sweep failed")
		} else {
			j.markUserSweep(now)
		}
		report.UsersDeactivated = users
		report.UserSweepRan = true
	}

	roomIDs, err := j.rooms.ListLiveRoomIDs(ctx)
	if err != nil {
		errs = append(errs, err)
		j.logger.Warn().Err(err).Msg("listing live rooms failed")
	}
	cutoff := now.Add(-PresenceRetention)
	for _, roomID := range roomIDs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		removed, err := j.rooms.PruneParticipants(ctx, roomID, cutoff)
		if err != nil {
			if !errors.Is(err, ErrRoomNotFound) {
				j.logger.Warn().Err(err).Str("room_id", roomID).Msg("presence prune failed")
			}
			continue
		}
		report.PresencesPruned += removed
	}

	observability.JanitorSwept().WithLabelValues("rooms").Add(float64(report.RoomsDeactivated))
	observability.JanitorSwept().WithLabelValues("users").Add(float64(report.UsersDeactivated))
	observability.JanitorSwept().WithLabelValues("presences").Add(float64(report.PresencesPruned))

	joined := errors.Join(errs...)
	result := "ok"
	if joined != nil {
		result = "error"
	}
	observability.JanitorRuns().WithLabelValues(result).Inc()

	j.logger.Debug().
		Int64("rooms", report.RoomsDeactivated).
		Int64("users", report.UsersDeactivated).
		Int("presences", report.PresencesPruned).
		Msg("janitor sweep complete")

	return report, joined
}

func (j *LifecycleJanitor) userSweepDue(now time.Time) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastUserSweep.IsZero() || now.Sub(j.lastUserSweep) >= j.cfg.UserInterval
}

func (j *LifecycleJanitor) markUserSweep(now time.Time) {
	j.mu.Lock()
	j.lastUserSweep = now
	j.mu.Unlock()
}
