// AngelaMos | 2026
// merge.go

package merge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

// Step moves one class of user-owned records from one identity to another.
// A step must be safe to run again after it has already completed.
type Step interface {
	Name() string
	MoveFrom(ctx context.Context, fromUserID, toUserID string) (int, error)
}

type Report struct {
	FromUserID string         `json:"fromUserId"`
	ToUserID   string         `json:"toUserId"`
	Merged     bool           `json:"merged"`
	Moved      map[string]int `json:"moved"`
	Duration   time.Duration  `json:"-"`
}

func (r Report) Total() int {
	total := 0
	for _, n := range r.Moved {
		total += n
	}
	return total
}

type Service struct {
	tx     core.Transactor
	steps  []Step
	logger *slog.Logger
}

func NewService(tx core.Transactor, logger *slog.Logger, steps ...Step) *Service {
	return &Service{
		tx:     tx,
		steps:  steps,
		logger: logger,
	}
}

func (s *Service) Steps() []string {
	names := make([]string, 0, len(s.steps))
	for _, st := range s.steps {
		names = append(names, st.Name())
	}
	return names
}

// MergeIdentity runs every step in order, each in its own transaction.
// A failed step stops the run; rerunning picks up where it left off since
// drained sources are simply empty.
func (s *Service) MergeIdentity(
	ctx context.Context,
	fromUserID, toUserID string,
) (Report, error) {
	fromUserID = strings.TrimSpace(fromUserID)
	toUserID = strings.TrimSpace(toUserID)

	report := Report{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Moved:      make(map[string]int, len(s.steps)),
	}

	if fromUserID == "" || toUserID == "" || fromUserID == toUserID {
		core.MergesTotal.WithLabelValues("noop").Inc()
		return report, nil
	}

	ctx, span := core.StartSpan(ctx, "merge.identity",
		attribute.String("merge.from", fromUserID),
		attribute.String("merge.to", toUserID),
	)
	defer span.End()

	start := time.Now()

	for _, step := range s.steps {
		var moved int
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			n, err := step.MoveFrom(ctx, fromUserID, toUserID)
			moved = n
			return err
		})
		if err != nil {
			core.MergesTotal.WithLabelValues("failed").Inc()
			core.SetSpanError(ctx, err)
			s.logger.Error("identity merge step failed",
				"step", step.Name(),
				"from_user_id", fromUserID,
				"to_user_id", toUserID,
				"error", err,
			)
			return report, fmt.Errorf("merge %s: %w", step.Name(), err)
		}

		report.Moved[step.Name()] = moved
		if moved > 0 {
			core.MergedRecordsTotal.WithLabelValues(step.Name()).Add(float64(moved))
		}
	}

	report.Merged = true
	report.Duration = time.Since(start)
	core.MergesTotal.WithLabelValues("merged").Inc()

	s.logger.Info("identity merged",
		"from_user_id", fromUserID,
		"to_user_id", toUserID,
		"moved", report.Moved,
		"duration", report.Duration,
	)

	return report, nil
}
