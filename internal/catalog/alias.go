// AngelaMos | 2026
// alias.go

package catalog

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	hostPrefix   = regexp.MustCompile(`(?i)^https?://[^/]+`)
	moviePath    = regexp.MustCompile(`(?i)(?:^|/)(?:tv/)?movies/([^/]+)`)
	moviePrefix  = regexp.MustCompile(`(?i)^(?:tv/)?movies/`)
	actionSuffix = regexp.MustCompile(`(?i)/(?:play|watch)$`)
	nonSlug      = regexp.MustCompile(`[^a-z0-9]+`)
)

func decode(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeToken reduces an id, slug, title or watch URL to a single
// lower-case token: host, query and the movies/ prefix are dropped along
// with a trailing play or watch segment.
func NormalizeToken(input string) string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return ""
	}

	token := strings.TrimSpace(strings.ReplaceAll(decode(raw), "+", " "))
	if token == "" {
		return ""
	}

	token = hostPrefix.ReplaceAllString(token, "")
	if i := strings.IndexAny(token, "?#"); i > 0 {
		token = token[:i]
	}
	token = strings.Trim(token, "/")

	if m := moviePath.FindStringSubmatch(token); m != nil && m[1] != "" {
		token = m[1]
	}

	token = moviePrefix.ReplaceAllString(token, "")
	token = actionSuffix.ReplaceAllString(token, "")
	token = strings.Trim(token, "/")

	if token == "" {
		return ""
	}
	if i := strings.Index(token, "/"); i > 0 {
		token = token[:i]
	}

	return strings.ToLower(strings.TrimSpace(token))
}

func SlugLike(input string) string {
	normalized := NormalizeToken(input)
	if normalized == "" {
		return ""
	}
	return strings.Trim(nonSlug.ReplaceAllString(normalized, "-"), "-")
}

// Aliases returns every spelling a client might use for the same title,
// in a stable order without duplicates.
func Aliases(input string) []string {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return nil
	}

	set := newAliasSet()
	set.add(strings.ToLower(strings.TrimSpace(decode(raw))))

	normalized := NormalizeToken(raw)
	set.add(normalized)
	set.add(SlugLike(raw))

	if strings.Contains(normalized, "-") {
		set.add(strings.TrimSpace(strings.ReplaceAll(normalized, "-", " ")))
	}

	return set.values
}

type aliasSet struct {
	seen   map[string]struct{}
	values []string
}

func newAliasSet() *aliasSet {
	return &aliasSet{seen: make(map[string]struct{})}
}

func (s *aliasSet) add(values ...string) {
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.values = append(s.values, v)
	}
}

// Matches reports whether any spelling of contentID is in aliases.
func Matches(aliases []string, contentID string) bool {
	candidates := Aliases(contentID)
	if len(candidates) == 0 {
		return false
	}

	known := make(map[string]struct{}, len(aliases))
	for _, a := range aliases {
		known[strings.ToLower(a)] = struct{}{}
	}

	for _, c := range candidates {
		if _, ok := known[c]; ok {
			return true
		}
	}
	return false
}
