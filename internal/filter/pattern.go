package filter

import (
	"strings"
)

// segment is one '/'-delimited component of a compiled pattern.
//
// A plain segment is a run of literals separated by '*' wildcards; parts
// holds the literals, so "a*b*c" is {"a", "b", "c"} and "*" is {"", ""}.
// A globstar segment is a bare "**" and matches zero or more whole path
// segments.
type segment struct {
	globstar bool
	parts    []string
}

func (s segment) wild() bool { return len(s.parts) > 1 }

// compiledPattern matches relative, slash-separated paths segment by segment.
type compiledPattern struct {
	segs       []segment
	ignoreCase bool
	hidden     bool // wildcards may match a leading '.'
}

// splitEscaped splits a pattern in escaped form on unescaped '/' and drops
// empty components, collapsing repeated separators.
func splitEscaped(p string) []string {
	var (
		out []string
		b   strings.Builder
	)
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case c == '\\' && i+1 < len(p):
			b.WriteByte(c)
			b.WriteByte(p[i+1])
			i++
		case c == '/':
			if b.Len() > 0 {
				out = append(out, b.String())
			}
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// compileSegment parses one escaped-form segment.
func compileSegment(text string, ignoreCase bool) segment {
	if text == "**" {
		return segment{globstar: true}
	}
	var (
		parts []string
		b     strings.Builder
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\\' && i+1 < len(text):
			i++
			b.WriteByte(text[i])
		case c == '*':
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	parts = append(parts, b.String())
	if ignoreCase {
		for i := range parts {
			parts[i] = strings.ToLower(parts[i])
		}
	}
	return segment{parts: parts}
}

func compilePattern(segs []string, opts Options) *compiledPattern {
	cp := &compiledPattern{
		segs:       make([]segment, len(segs)),
		ignoreCase: opts.IgnoreCase,
		hidden:     !opts.IgnoreHidden,
	}
	for i, s := range segs {
		cp.segs[i] = compileSegment(s, opts.IgnoreCase)
	}
	return cp
}

// matchName matches a single path component against a plain segment.
// Wildcards are only '*', so a leftmost-first scan of the literals is exact
// and runs in linear time.
func (cp *compiledPattern) matchName(s segment, name string) bool {
	if cp.ignoreCase {
		name = strings.ToLower(name)
	}
	if !s.wild() {
		return name == s.parts[0]
	}
	if !cp.hidden && s.parts[0] == "" && strings.HasPrefix(name, ".") {
		return false
	}

	first, last := s.parts[0], s.parts[len(s.parts)-1]
	if len(name) < len(first)+len(last) {
		return false
	}
	if !strings.HasPrefix(name, first) || !strings.HasSuffix(name, last) {
		return false
	}
	rest := name[len(first) : len(name)-len(last)]
	for _, mid := range s.parts[1 : len(s.parts)-1] {
		idx := strings.Index(rest, mid)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(mid):]
	}
	return true
}

// match reports whether relPath matches the whole pattern. It is a
// dynamic program over (pattern segment, path segment) pairs, so globstars
// never cause exponential backtracking.
func (cp *compiledPattern) match(relPath string) bool {
	names := strings.Split(relPath, "/")
	m, n := len(cp.segs), len(names)

	// memo[i][j]: 0 unknown, 1 match, 2 no match.
	memo := make([][]uint8, m+1)
	for i := range memo {
		memo[i] = make([]uint8, n+1)
	}

	var solve func(i, j int) bool
	solve = func(i, j int) bool {
		if i == m {
			return j == n
		}
		if v := memo[i][j]; v != 0 {
			return v == 1
		}
		var ok bool
		seg := cp.segs[i]
		if seg.globstar {
			ok = solve(i+1, j) ||
				(j < n && (cp.hidden || !strings.HasPrefix(names[j], ".")) && solve(i, j+1))
		} else {
			ok = j < n && cp.matchName(seg, names[j]) && solve(i+1, j+1)
		}
		if ok {
			memo[i][j] = 1
		} else {
			memo[i][j] = 2
		}
		return ok
	}
	return solve(0, 0)
}
