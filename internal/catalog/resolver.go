// AngelaMos | 2026
// resolver.go

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Movie struct {
	ID    string `db:"id"`
	Slug  string `db:"slug"`
	Title string `db:"title"`
}

type Resolution struct {
	ContentID string
	Title     string
	Aliases   []string
}

type Repository interface {
	FindByKeys(ctx context.Context, keys []string) (*Movie, error)
	FindByTitle(ctx context.Context, title string) (*Movie, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) FindByKeys(ctx context.Context, keys []string) (*Movie, error) {
	query := `
		SELECT id, slug, title
		FROM movies
		WHERE slug = ANY($1) OR id = ANY($1)
		LIMIT 1`

	return r.findOne(ctx, query, keys)
}

func (r *repository) FindByTitle(ctx context.Context, title string) (*Movie, error) {
	query := `
		SELECT id, slug, title
		FROM movies
		WHERE LOWER(title) = LOWER($1)
		LIMIT 1`

	return r.findOne(ctx, query, title)
}

func (r *repository) findOne(ctx context.Context, query string, arg any) (*Movie, error) {
	var m Movie
	err := core.Conn(ctx, r.db).GetContext(ctx, &m, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find movie: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find movie: %w", err)
	}
	return &m, nil
}

const maxTitleCandidates = 4

// Resolver maps whatever identifies a title on the client side to the
// catalog's canonical id plus the alias set a trial grant is matched by.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve never fails on an unknown title; the normalized input becomes
// the canonical id.
func (r *Resolver) Resolve(ctx context.Context, input string) (Resolution, error) {
	raw := strings.TrimSpace(input)
	normalized := NormalizeToken(raw)
	slug := SlugLike(raw)

	set := newAliasSet()
	set.add(Aliases(raw)...)

	movie, err := r.lookup(ctx, raw, normalized, slug, set.values)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{}
	if movie != nil {
		set.add(Aliases(movie.ID)...)
		set.add(Aliases(movie.Slug)...)
		set.add(Aliases(movie.Title)...)
		res.Title = movie.Title
	}

	switch {
	case movie != nil && movie.Slug != "":
		res.ContentID = movie.Slug
	case normalized != "":
		res.ContentID = normalized
	case slug != "":
		res.ContentID = slug
	default:
		res.ContentID = raw
	}
	res.Aliases = set.values

	return res, nil
}

func (r *Resolver) lookup(
	ctx context.Context,
	raw, normalized, slug string,
	aliases []string,
) (*Movie, error) {
	keys := newAliasSet()
	keys.add(normalized, slug)
	keys.add(aliases...)

	if len(keys.values) > 0 {
		movie, err := r.repo.FindByKeys(ctx, keys.values)
		if err == nil {
			return movie, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
	}

	titles := newAliasSet()
	for _, v := range []string{raw, normalized, slug} {
		titles.add(strings.TrimSpace(strings.ReplaceAll(v, "-", " ")))
	}

	for i, title := range titles.values {
		if i == maxTitleCandidates {
			break
		}
		movie, err := r.repo.FindByTitle(ctx, title)
		if err == nil {
			return movie, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
	}

	return nil, nil
}
