// AngelaMos | 2026
// entity.go

package library

import (
	"strings"
	"time"
)

const (
	ListMyList     = "mylist"
	ListFavourites = "favourites"
	ListWatchLater = "watch_later"
)

type ListEntry struct {
	UserID      string    `db:"user_id"`
	ContentType string    `db:"content_type"`
	ContentID   string    `db:"content_id"`
	ListType    string    `db:"list_type"`
	AddedAt     time.Time `db:"added_at"`
}

type Progress struct {
	UserID          string    `db:"user_id"`
	ContentType     string    `db:"content_type"`
	ContentID       string    `db:"content_id"`
	SeriesID        string    `db:"series_id"`
	ProgressSeconds float64   `db:"progress_seconds"`
	DurationSeconds float64   `db:"duration_seconds"`
	IsFinished      bool      `db:"is_finished"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// NormalizeListType folds the spellings older clients sent. Anything
// unrecognised, including empty, is the default list.
func NormalizeListType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "favourites", "favourite", "favorites", "favorite":
		return ListFavourites
	case "watch_later", "watchlater", "watch-later", "later":
		return ListWatchLater
	default:
		return ListMyList
	}
}

// CombineProgress folds src into dst: furthest position, longest known
// duration, finished if either is, newest timestamp.
func CombineProgress(dst, src Progress) Progress {
	out := dst
	out.ProgressSeconds = max(dst.ProgressSeconds, src.ProgressSeconds)
	out.DurationSeconds = max(dst.DurationSeconds, src.DurationSeconds)
	out.IsFinished = dst.IsFinished || src.IsFinished
	if src.UpdatedAt.After(dst.UpdatedAt) {
		out.UpdatedAt = src.UpdatedAt
	}
	if out.SeriesID == "" {
		out.SeriesID = src.SeriesID
	}
	return out
}
