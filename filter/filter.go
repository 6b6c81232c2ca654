// Package filter decides which branches are excluded from watching based on
// configured glob patterns. Patterns apply either globally or to a single
// repository when prefixed with "owner/name:".
package filter

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// ErrMalformedEntry indicates a blacklist entry that could not be parsed.
var ErrMalformedEntry = fmt.Errorf("malformed blacklist entry")

type pattern struct {
	raw string
	g   glob.Glob
}

// Blacklist holds the compiled branch exclusion patterns.
type Blacklist struct {
	global []pattern
	byRepo map[string][]pattern
}

// ParseBlacklist compiles a set of blacklist entries. An entry is either a
// bare glob pattern applied to every repository, or "owner/name:pattern"
// applied only to that repository. Empty entries are ignored.
func ParseBlacklist(entries []string) (*Blacklist, error) {
	bl := &Blacklist{byRepo: make(map[string][]pattern)}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		repoKey := ""
		raw := entry
		if i := strings.Index(entry, ":"); i >= 0 {
			repoKey = entry[:i]
			raw = entry[i+1:]
			if !strings.Contains(repoKey, "/") {
				return nil, fmt.Errorf("%w: %q: repository scope must be owner/name", ErrMalformedEntry, entry)
			}
			if raw == "" {
				return nil, fmt.Errorf("%w: %q: empty pattern", ErrMalformedEntry, entry)
			}
		}

		g, err := glob.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedEntry, entry, err)
		}

		p := pattern{raw: raw, g: g}
		if repoKey == "" {
			bl.global = append(bl.global, p)
		} else {
			bl.byRepo[repoKey] = append(bl.byRepo[repoKey], p)
		}
	}
	return bl, nil
}

// Excluded reports whether a branch of the given repository matches any
// blacklist pattern. Global patterns are checked before repository-scoped ones.
func (b *Blacklist) Excluded(repoKey, branch string) bool {
	if b == nil {
		return false
	}
	for _, p := range b.global {
		if p.g.Match(branch) {
			return true
		}
	}
	for _, p := range b.byRepo[repoKey] {
		if p.g.Match(branch) {
			return true
		}
	}
	return false
}

// Size returns the number of compiled patterns, used for startup logging.
func (b *Blacklist) Size() int {
	if b == nil {
		return 0
	}
	n := len(b.global)
	for _, ps := range b.byRepo {
		n += len(ps)
	}
	return n
}
