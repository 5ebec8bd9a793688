// AngelaMos | 2026
// entity.go

package quota

import (
	"time"
)

// UsageRecord is one consumed preview slot. A KeyedUsage carries the
// playback session that consumed it; a LegacyUsage predates session ids
// and can only be counted, never matched.
type UsageRecord interface {
	usage()
	Day() string
}

type KeyedUsage struct {
	UserID    string
	SessionID string
	ContentID string
	DayKey    string
	CreatedAt time.Time
}

type LegacyUsage struct {
	UserID    string
	ContentID string
	DayKey    string
	CreatedAt time.Time
}

func (KeyedUsage) usage()  {}
func (LegacyUsage) usage() {}

func (k KeyedUsage) Day() string  { return k.DayKey }
func (l LegacyUsage) Day() string { return l.DayKey }

type usageRow struct {
	UserID    string    `db:"user_id"`
	SessionID *string   `db:"session_id"`
	ContentID string    `db:"content_id"`
	DayKey    string    `db:"day_key"`
	CreatedAt time.Time `db:"created_at"`
}

func (r usageRow) record() UsageRecord {
	if r.SessionID == nil || *r.SessionID == "" {
		return LegacyUsage{
			UserID:    r.UserID,
			ContentID: r.ContentID,
			DayKey:    r.DayKey,
			CreatedAt: r.CreatedAt,
		}
	}
	return KeyedUsage{
		UserID:    r.UserID,
		SessionID: *r.SessionID,
		ContentID: r.ContentID,
		DayKey:    r.DayKey,
		CreatedAt: r.CreatedAt,
	}
}

// Tally counts a day's usage: each distinct session once, each legacy
// record individually. seen reports whether sessionID is among them.
func Tally(records []UsageRecord, sessionID string) (used int, seen bool) {
	sessions := make(map[string]struct{}, len(records))
	for _, rec := range records {
		switch u := rec.(type) {
		case KeyedUsage:
			if _, ok := sessions[u.SessionID]; ok {
				continue
			}
			sessions[u.SessionID] = struct{}{}
			used++
			if sessionID != "" && u.SessionID == sessionID {
				seen = true
			}
		case LegacyUsage:
			used++
		}
	}
	return used, seen
}

// DayKey is the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

type Decision struct {
	Allowed        bool   `json:"allowed"`
	AlreadyWatched bool   `json:"alreadyWatched"`
	Used           int    `json:"used"`
	Remaining      int    `json:"remaining"`
	DailyLimit     int    `json:"dailyLimit"`
	Locked         bool   `json:"locked"`
	DateKey        string `json:"dateKey"`
}

func newDecision(used, limit int, dayKey string) *Decision {
	return &Decision{
		Used:       used,
		Remaining:  max(limit-used, 0),
		DailyLimit: limit,
		Locked:     used >= limit,
		DateKey:    dayKey,
	}
}
