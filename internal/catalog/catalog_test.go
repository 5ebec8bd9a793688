// AngelaMos | 2026
// catalog_test.go

package catalog

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

func TestNormalizeToken(t *testing.T) {
	cases := map[string]string{
		"":                                       "",
		"  The-Matrix ":                          "the-matrix",
		"https://example.com/movies/the-matrix":  "the-matrix",
		"/tv/movies/The-Matrix/play":             "the-matrix",
		"movies/the-matrix?ref=home#top":         "the-matrix",
		"the-matrix/watch":                       "the-matrix",
		"The%20Matrix":                           "the matrix",
		"The+Matrix":                             "the matrix",
		"64f1a2b3c4d5e6f7a8b9c0d1":               "64f1a2b3c4d5e6f7a8b9c0d1",
		"https://example.com/series/abc/episode": "series",
	}

	for in, want := range cases {
		assert.Equal(t, want, NormalizeToken(in), "input %q", in)
	}
}

func TestSlugLike(t *testing.T) {
	assert.Equal(t, "the-matrix", SlugLike("The Matrix"))
	assert.Equal(t, "amelie-2001", SlugLike("  Amelie (2001) "))
	assert.Equal(t, "", SlugLike("   "))
}

func TestAliases(t *testing.T) {
	assert.Equal(t,
		[]string{"/movies/the-matrix/play", "the-matrix", "the matrix"},
		Aliases("/movies/The-Matrix/play"),
	)
	assert.Equal(t, []string{"the matrix", "the-matrix"}, Aliases("The Matrix"))
	assert.Nil(t, Aliases(""))
}

func TestMatches(t *testing.T) {
	aliases := Aliases("the-matrix")

	assert.True(t, Matches(aliases, "The Matrix"))
	assert.True(t, Matches(aliases, "https://example.com/movies/the-matrix/watch"))
	assert.False(t, Matches(aliases, "the-matrix-reloaded"))
	assert.False(t, Matches(aliases, ""))
}

type memMovies struct {
	movies []Movie
}

func (m *memMovies) FindByKeys(_ context.Context, keys []string) (*Movie, error) {
	for _, mv := range m.movies {
		for _, k := range keys {
			if mv.Slug == k || mv.ID == k {
				return &mv, nil
			}
		}
	}
	return nil, fmt.Errorf("find movie: %w", core.ErrNotFound)
}

func (m *memMovies) FindByTitle(_ context.Context, title string) (*Movie, error) {
	for _, mv := range m.movies {
		if strings.EqualFold(mv.Title, title) {
			return &mv, nil
		}
	}
	return nil, fmt.Errorf("find movie: %w", core.ErrNotFound)
}

func TestResolverPrefersCatalogSlug(t *testing.T) {
	repo := &memMovies{movies: []Movie{
		{ID: "64f1a2b3c4d5e6f7a8b9c0d1", Slug: "the-matrix", Title: "The Matrix"},
	}}
	r := NewResolver(repo)

	byID, err := r.Resolve(context.Background(), "64f1a2b3c4d5e6f7a8b9c0d1")
	require.NoError(t, err)
	assert.Equal(t, "the-matrix", byID.ContentID)
	assert.Contains(t, byID.Aliases, "the matrix")
	assert.Contains(t, byID.Aliases, "64f1a2b3c4d5e6f7a8b9c0d1")

	byTitle, err := r.Resolve(context.Background(), "THE MATRIX")
	require.NoError(t, err)
	assert.Equal(t, "the-matrix", byTitle.ContentID)
	assert.Equal(t, "The Matrix", byTitle.Title)
}

func TestResolverFallsBackToToken(t *testing.T) {
	r := NewResolver(&memMovies{})

	res, err := r.Resolve(context.Background(), "/movies/Unknown-Film/play")
	require.NoError(t, err)
	assert.Equal(t, "unknown-film", res.ContentID)
	assert.True(t, Matches(res.Aliases, "unknown film"))
}
