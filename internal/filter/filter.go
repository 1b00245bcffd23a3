package filter

import (
	"strings"
)

// Verdict is the outcome of matching a path, and also the sign of a rule.
type Verdict int

const (
	Unmatched Verdict = iota
	Include
	Exclude
)

func (v Verdict) String() string {
	switch v {
	case Include:
		return "include"
	case Exclude:
		return "exclude"
	default:
		return "unmatched"
	}
}

// Target says which kinds of entry a rule can match.
type Target int

const (
	File Target = iota
	Dir
	Both
)

// Options adjusts how patterns match.
type Options struct {
	// IgnoreCase matches patterns case-insensitively.
	IgnoreCase bool
	// IgnoreHidden stops wildcards from matching a leading '.' in a path
	// component. Literal dots in a pattern still match.
	IgnoreHidden bool
}

// Rule is a single compiled include or exclude rule.
type Rule struct {
	Sign      Verdict
	Pattern   string // escaped form, trailing '/' for Dir rules
	AppliesTo Target
	// Implicit marks rules synthesized by the compiler: parent directories
	// of nested includes and expansions of "./" patterns.
	Implicit bool

	cp *compiledPattern
}

func (r Rule) covers(isDir bool) bool {
	switch r.AppliesTo {
	case Both:
		return true
	case Dir:
		return isDir
	default:
		return !isDir
	}
}

// Rules is an ordered, compiled filter. First match wins.
type Rules struct {
	rules []Rule
	opts  Options
}

// Rules returns a copy of the compiled rule list.
func (r *Rules) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of compiled rules.
func (r *Rules) Len() int { return len(r.rules) }

// Match evaluates relPath (slash-separated, relative to the tree root)
// against the rules in order. Rules that do not apply to the entry's kind
// are skipped.
func (r *Rules) Match(relPath string, isDir bool) Verdict {
	if r == nil {
		return Unmatched
	}
	for _, rule := range r.rules {
		if !rule.covers(isDir) {
			continue
		}
		if rule.cp.match(relPath) {
			return rule.Sign
		}
	}
	return Unmatched
}

// String renders the compiled rules back into filter syntax. Synthesized
// rules are written out explicitly, so the result compiles to an
// equivalent filter.
func (r *Rules) String() string {
	var b strings.Builder
	cur := Unmatched
	for i, rule := range r.rules {
		if i > 0 {
			b.WriteByte(' ')
		}
		if rule.Sign != cur {
			if rule.Sign == Include {
				b.WriteString("+ ")
			} else {
				b.WriteString("- ")
			}
			cur = rule.Sign
		}
		b.WriteString(quotePattern(rule.Pattern))
	}
	return b.String()
}

// quotePattern escapes characters the tokenizer would otherwise treat as
// syntax. The pattern is already in escaped form for '*' and '\'.
func quotePattern(p string) string {
	if p == "+" || p == "-" {
		return "'" + p + "'"
	}
	var b strings.Builder
	for _, c := range p {
		switch c {
		case ' ', '\t', '\n', '\'', '"':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
