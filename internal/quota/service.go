// AngelaMos | 2026
// service.go

package quota

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/settings"
)

const defaultDailyLimit = 2

type SettingsReader interface {
	Current(ctx context.Context) (settings.Snapshot, error)
}

type Service struct {
	repo     Repository
	tx       core.Transactor
	settings SettingsReader
	minLimit int
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(
	repo Repository,
	tx core.Transactor,
	reader SettingsReader,
	minLimit int,
	logger *slog.Logger,
) *Service {
	if minLimit < 1 {
		minLimit = defaultDailyLimit
	}
	return &Service{
		repo:     repo,
		tx:       tx,
		settings: reader,
		minLimit: minLimit,
		logger:   logger,
		now:      time.Now,
	}
}

// DailyLimit never drops below the configured floor, whatever admins set.
func (s *Service) DailyLimit(ctx context.Context) (int, error) {
	snap, err := s.settings.Current(ctx)
	if err != nil {
		return 0, fmt.Errorf("daily limit: %w", err)
	}
	return max(snap.FreePreviewsPerDay, s.minLimit), nil
}

// Check reports where the user stands today without consuming anything.
func (s *Service) Check(ctx context.Context, userID, sessionID string) (*Decision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("preview check: user id: %w", core.ErrInvalidInput)
	}

	limit, err := s.DailyLimit(ctx)
	if err != nil {
		return nil, err
	}

	day := DayKey(s.now())
	records, err := s.repo.ForDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	used, seen := Tally(records, strings.TrimSpace(sessionID))
	d := newDecision(used, limit, day)
	d.AlreadyWatched = seen
	d.Allowed = seen || used < limit

	core.PreviewDecisionsTotal.WithLabelValues("check").Inc()
	return d, nil
}

// Consume spends one slot for a new session. A session that already holds
// a slot today is answered as a repeat; when the limit is reached nothing
// is written. The response that spends the last slot is already locked.
// The tally and the insert run under a per user and day lock, so
// concurrent sessions cannot all see the same count.
func (s *Service) Consume(ctx context.Context, userID, sessionID, contentID string) (*Decision, error) {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" {
		return nil, fmt.Errorf("preview consume: user id: %w", core.ErrInvalidInput)
	}

	limit, err := s.DailyLimit(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	day := DayKey(now)

	var decision *Decision
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.LockDay(ctx, userID, day); err != nil {
			return err
		}

		d, err := s.consume(ctx, userID, sessionID, contentID, limit, now)
		if err != nil {
			return err
		}
		decision = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	return decision, nil
}

func (s *Service) consume(
	ctx context.Context,
	userID, sessionID, contentID string,
	limit int,
	now time.Time,
) (*Decision, error) {
	day := DayKey(now)

	records, err := s.repo.ForDay(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	used, seen := Tally(records, sessionID)
	if seen {
		return s.repeat(used, limit, day), nil
	}

	if used >= limit {
		d := newDecision(used, limit, day)
		core.PreviewDecisionsTotal.WithLabelValues("denied").Inc()
		s.logger.Debug("preview denied",
			"user_id", userID,
			"used", used,
			"daily_limit", limit,
		)
		return d, nil
	}

	var rec UsageRecord = LegacyUsage{UserID: userID, ContentID: contentID, DayKey: day, CreatedAt: now}
	if sessionID != "" {
		rec = KeyedUsage{UserID: userID, SessionID: sessionID, ContentID: contentID, DayKey: day, CreatedAt: now}
	}

	inserted, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// The session was recorded by a request that held no lock.
		records, err = s.repo.ForDay(ctx, userID, day)
		if err != nil {
			return nil, err
		}
		used, _ = Tally(records, sessionID)
		return s.repeat(used, limit, day), nil
	}

	d := newDecision(used+1, limit, day)
	d.Allowed = true
	core.PreviewDecisionsTotal.WithLabelValues("allowed").Inc()
	return d, nil
}

func (s *Service) repeat(used, limit int, day string) *Decision {
	d := newDecision(used, limit, day)
	d.Allowed = true
	d.AlreadyWatched = true
	core.PreviewDecisionsTotal.WithLabelValues("repeat").Inc()
	return d
}
