package metal

import (
	"fmt"
	"strings"
)

// ExpandProperties expands brace groups in a property pattern:
//
//	"a.{b,c}"          => a.b, a.c
//	"{a,b}.{c,d}"      => a.c, a.d, b.c, b.d
//	"user.{first,last}Name" => user.firstName, user.lastName
//
// Nested braces and whitespace are rejected.
func ExpandProperties(pattern string) ([]string, error) {
	if strings.ContainsAny(pattern, " \t\n\r") {
		return nil, fmt.Errorf("%w: property pattern %q contains whitespace", ErrInvalidDescriptor, pattern)
	}

	// alternatives per part, literal parts have one entry
	var parts [][]string
	rest := pattern
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		closeIdx := strings.IndexByte(rest, '}')
		if open < 0 {
			if closeIdx >= 0 {
				return nil, fmt.Errorf("%w: unbalanced '}' in %q", ErrInvalidDescriptor, pattern)
			}
			parts = append(parts, []string{rest})
			break
		}
		if closeIdx >= 0 && closeIdx < open {
			return nil, fmt.Errorf("%w: unbalanced '}' in %q", ErrInvalidDescriptor, pattern)
		}
		if open > 0 {
			parts = append(parts, []string{rest[:open]})
		}
		rest = rest[open+1:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unbalanced '{' in %q", ErrInvalidDescriptor, pattern)
		}
		group := rest[:end]
		if strings.IndexByte(group, '{') >= 0 {
			return nil, fmt.Errorf("%w: nested braces in %q", ErrInvalidDescriptor, pattern)
		}
		parts = append(parts, strings.Split(group, ","))
		rest = rest[end+1:]
	}

	out := []string{""}
	for _, alts := range parts {
		next := make([]string, 0, len(out)*len(alts))
		for _, prefix := range out {
			for _, alt := range alts {
				next = append(next, prefix+alt)
			}
		}
		out = next
	}
	return out, nil
}
