// AngelaMos | 2026
// plan.go

package subscription

import (
	"fmt"
	"strings"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Plan string

const (
	PlanMatch   Plan = "match"
	PlanWeekly  Plan = "weekly"
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
)

const (
	MaxBonusDays     = 7
	DefaultOfferCode = "MONTHLY_EXIT_7D"
)

// PlanSpec is the server-side source of truth for what a plan grants.
// Durations sent by clients are never read.
type PlanSpec struct {
	Plan         Plan
	DurationDays int
	MaxDevices   int
}

var plans = map[Plan]PlanSpec{
	PlanMatch:   {Plan: PlanMatch, DurationDays: 1, MaxDevices: 1},
	PlanWeekly:  {Plan: PlanWeekly, DurationDays: 7, MaxDevices: 2},
	PlanMonthly: {Plan: PlanMonthly, DurationDays: 30, MaxDevices: 3},
	PlanYearly:  {Plan: PlanYearly, DurationDays: 365, MaxDevices: 5},
}

func LookupPlan(name string) (PlanSpec, error) {
	spec, ok := plans[Plan(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return PlanSpec{}, fmt.Errorf("unknown plan %q: %w", name, core.ErrInvalidInput)
	}
	return spec, nil
}

func Plans() []PlanSpec {
	return []PlanSpec{
		plans[PlanMatch],
		plans[PlanWeekly],
		plans[PlanMonthly],
		plans[PlanYearly],
	}
}

// ClampBonusDays limits promotional extra days. Only monthly purchases
// carry a bonus.
func ClampBonusDays(plan Plan, days int) int {
	if plan != PlanMonthly || days <= 0 {
		return 0
	}
	return min(days, MaxBonusDays)
}

// OfferCode returns the offer recorded with a purchase.
func OfferCode(requested string, bonusDays int) string {
	if bonusDays <= 0 {
		return ""
	}
	if code := strings.TrimSpace(requested); code != "" {
		return strings.ToUpper(code)
	}
	return DefaultOfferCode
}
