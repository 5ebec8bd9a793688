// AngelaMos | 2026
// sweep.go

package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

// ErrLockHeld means another replica is running the job right now.
var ErrLockHeld = errors.New("sweep lock held elsewhere")

type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), err error)
}

type RedisLocker struct {
	rs     *redsync.Redsync
	logger *slog.Logger
}

func NewRedisLocker(rs *redsync.Redsync, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{rs: rs, logger: logger}
}

// Acquire tries the lock once. A busy lock is ErrLockHeld, not a failure.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	mutex := l.rs.NewMutex("sweep:"+name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("acquire %s: %w", name, ctxErr)
		}
		// redsync reports a taken lock and an unreachable node alike.
		return nil, fmt.Errorf("acquire %s: %w: %v", name, ErrLockHeld, err)
	}

	return func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			l.logger.Warn("sweep unlock failed", "job", name, "error", err)
		}
	}, nil
}

// Job is one periodic cleanup. Run returns how many rows it touched.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) (int, error)
}

type Runner struct {
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger
}

func NewRunner(locker Locker, lockTTL time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		locker:  locker,
		lockTTL: lockTTL,
		logger:  logger,
	}
}

// Execute runs job once under its distributed lock and records the outcome.
func (r *Runner) Execute(ctx context.Context, job Job) error {
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	release, err := r.locker.Acquire(ctx, job.Name, r.lockTTL)
	if errors.Is(err, ErrLockHeld) {
		core.SweepRunsTotal.WithLabelValues(job.Name, "skipped").Inc()
		r.logger.Debug("sweep skipped, lock held", "job", job.Name)
		return nil
	}
	if err != nil {
		core.SweepRunsTotal.WithLabelValues(job.Name, "error").Inc()
		return err
	}
	defer release()

	start := time.Now()
	n, err := job.Run(ctx)
	if err != nil {
		core.SweepRunsTotal.WithLabelValues(job.Name, "error").Inc()
		r.logger.Error("sweep failed", "job", job.Name, "error", err)
		return err
	}

	core.SweepRunsTotal.WithLabelValues(job.Name, "ok").Inc()
	r.logger.Info("sweep finished",
		"job", job.Name,
		"affected", n,
		"duration", time.Since(start),
	)
	return nil
}

// Schedule registers every job on a seconds-resolution cron.
func (r *Runner) Schedule(ctx context.Context, jobs ...Job) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	for _, job := range jobs {
		if _, err := c.AddFunc(job.Schedule, func() {
			_ = r.Execute(ctx, job) //nolint:errcheck // logged inside
		}); err != nil {
			return nil, fmt.Errorf("schedule %s %q: %w", job.Name, job.Schedule, err)
		}
	}
	return c, nil
}
