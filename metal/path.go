package metal

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// parsedPath is a dotted path split once and reused.
type parsedPath struct {
	raw      string
	segments []string
	global   bool
}

func (p *parsedPath) isPath() bool { return len(p.segments) > 1 }

// pathCache keeps the first limit distinct paths it sees, keyed by their
// xxhash. Entries are never evicted; paths beyond the limit are parsed on
// every call.
type pathCache struct {
	limit   int
	entries map[uint64]*parsedPath
	hits    int
	misses  int
}

func newPathCache(limit int) *pathCache {
	return &pathCache{
		limit:   limit,
		entries: make(map[uint64]*parsedPath),
	}
}

func (c *pathCache) get(path string) *parsedPath {
	h := xxhash.Sum64String(path)
	if p, ok := c.entries[h]; ok && p.raw == path {
		c.hits++
		return p
	}
	c.misses++
	p := &parsedPath{
		raw:      path,
		segments: strings.Split(path, "."),
		global:   IsGlobalPath(path),
	}
	if _, taken := c.entries[h]; !taken && len(c.entries) < c.limit {
		c.entries[h] = p
	}
	return p
}

func (s *System) path(path string) *parsedPath {
	return s.paths.get(path)
}

// IsPath reports whether path has more than one segment.
func IsPath(path string) bool {
	return strings.IndexByte(path, '.') >= 0
}

// IsGlobal reports whether path starts like a global name (an upper case
// letter or '$').
func IsGlobal(path string) bool {
	r, _ := utf8.DecodeRuneInString(path)
	return r == '$' || unicode.IsUpper(r)
}

// IsGlobalPath reports whether path is a global name followed by more
// segments, such as "App.settings".
func IsGlobalPath(path string) bool {
	return IsGlobal(path) && IsPath(path)
}

func FirstKey(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// TailPath is everything after the first segment, or "".
func TailPath(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return ""
}
