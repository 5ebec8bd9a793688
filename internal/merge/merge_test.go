// AngelaMos | 2026
// merge_test.go

package merge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlement-engine/internal/core/coretest"
)

// ownerStep moves every record it owns from one user to another.
type ownerStep struct {
	name   string
	owners map[string]string
	fail   bool
}

func (s *ownerStep) Name() string { return s.name }

func (s *ownerStep) MoveFrom(_ context.Context, from, to string) (int, error) {
	if s.fail {
		return 0, errors.New("boom")
	}
	n := 0
	for id, owner := range s.owners {
		if owner == from {
			s.owners[id] = to
			n++
		}
	}
	return n, nil
}

func newTestService(steps ...Step) (*Service, *coretest.Transactor) {
	tx := &coretest.Transactor{Serialize: true}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(tx, logger, steps...), tx
}

func TestMergeIdentityNoop(t *testing.T) {
	step := &ownerStep{name: "payments", owners: map[string]string{"p1": "a"}}
	svc, tx := newTestService(step)

	for _, pair := range [][2]string{{"", "b"}, {"a", ""}, {"a", "a"}, {" a ", "a"}} {
		report, err := svc.MergeIdentity(context.Background(), pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, report.Merged)
	}

	assert.Zero(t, tx.Calls)
	assert.Equal(t, "a", step.owners["p1"])
}

func TestMergeIdentityRunsEachStepInItsOwnTx(t *testing.T) {
	payments := &ownerStep{name: "payments", owners: map[string]string{"p1": "guest", "p2": "guest", "p3": "other"}}
	codes := &ownerStep{name: "redemptions", owners: map[string]string{"c1": "guest"}}
	svc, tx := newTestService(payments, codes)

	report, err := svc.MergeIdentity(context.Background(), "guest", "account")
	require.NoError(t, err)

	assert.True(t, report.Merged)
	assert.Equal(t, 2, report.Moved["payments"])
	assert.Equal(t, 1, report.Moved["redemptions"])
	assert.Equal(t, 3, report.Total())
	assert.Equal(t, 2, tx.Calls)
	assert.Equal(t, []string{"payments", "redemptions"}, svc.Steps())
}

func TestMergeIdentityTwiceEqualsOnce(t *testing.T) {
	payments := &ownerStep{name: "payments", owners: map[string]string{"p1": "guest", "p2": "account"}}
	svc, _ := newTestService(payments)

	_, err := svc.MergeIdentity(context.Background(), "guest", "account")
	require.NoError(t, err)
	once := map[string]string{}
	for k, v := range payments.owners {
		once[k] = v
	}

	second, err := svc.MergeIdentity(context.Background(), "guest", "account")
	require.NoError(t, err)
	assert.True(t, second.Merged)
	assert.Zero(t, second.Total())
	assert.Equal(t, once, payments.owners)
}

func TestMergeIdentityStopsOnFailedStep(t *testing.T) {
	first := &ownerStep{name: "list_entries", owners: map[string]string{"l1": "guest"}}
	broken := &ownerStep{name: "watch_progress", fail: true}
	last := &ownerStep{name: "payments", owners: map[string]string{"p1": "guest"}}
	svc, _ := newTestService(first, broken, last)

	report, err := svc.MergeIdentity(context.Background(), "guest", "account")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch_progress")
	assert.False(t, report.Merged)
	assert.Equal(t, 1, report.Moved["list_entries"])
	assert.Equal(t, "guest", last.owners["p1"])
}
