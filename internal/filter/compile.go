package filter

import (
	"strings"
)

// DefaultFilter includes every file and descends into every directory.
const DefaultFilter = "**"

// Compile parses a filter string into an ordered rule list.
//
// The string is a sequence of patterns, each preceded optionally by a bare
// "+" (include) or "-" (exclude) that sets the sign for the patterns
// after it; the initial sign is include. A pattern ending in '/' applies to
// directories only, the bare pattern "**" applies to everything, and any
// other pattern applies to files only.
//
// Including a nested pattern also includes each of its parent directory
// patterns so the enumerator descends to it. A pattern starting with "./"
// inside an include group is joined onto every explicit directory pattern
// earlier in that group, or taken relative to the root if there is none.
func Compile(s string, opts Options) (*Rules, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}

	c := &compiler{
		out:     &Rules{opts: opts},
		sign:    Include,
		allowed: make(map[string]bool),
	}
	for i, tok := range toks {
		if tok.isSig {
			if i+1 == len(toks) || toks[i+1].isSig {
				return nil, &SyntaxError{Token: tok.raw, Pos: tok.pos, Msg: "sign has no following pattern"}
			}
			if tok.sign != c.sign {
				c.sign = tok.sign
				c.group = c.group[:0]
				c.allowed = make(map[string]bool)
			}
			continue
		}
		if err := c.add(tok); err != nil {
			return nil, err
		}
	}
	return c.out, nil
}

// MustCompile is like Compile but panics on error. Intended for constants
// in tests and defaults.
func MustCompile(s string, opts Options) *Rules {
	r, err := Compile(s, opts)
	if err != nil {
		panic(err)
	}
	return r
}

type compiler struct {
	out  *Rules
	sign Verdict
	// group holds the explicit directory patterns of the current include
	// group, in order, for "./" expansion.
	group []string
	// allowed holds every pattern already emitted in the current include
	// group so synthesized parents are not repeated.
	allowed map[string]bool
}

// parsed is a validated pattern split into escaped-form segments.
type parsed struct {
	segs     []string
	dir      bool
	relative bool
}

func (p parsed) text() string {
	t := strings.Join(p.segs, "/")
	if p.dir {
		t += "/"
	}
	return t
}

func (p parsed) target() Target {
	switch {
	case p.dir:
		return Dir
	case len(p.segs) == 1 && p.segs[0] == "**":
		return Both
	default:
		return File
	}
}

func parsePattern(tok token) (parsed, error) {
	var p parsed
	text := tok.text
	if strings.HasPrefix(text, "./") {
		p.relative = true
		text = strings.TrimLeft(text[2:], "/")
	} else if strings.HasPrefix(text, "/") {
		return p, &SyntaxError{Token: tok.raw, Pos: tok.pos, Msg: "absolute paths are not supported"}
	}
	p.dir = strings.HasSuffix(text, "/")
	p.segs = splitEscaped(text)
	if len(p.segs) == 0 {
		return p, &SyntaxError{Token: tok.raw, Pos: tok.pos, Msg: "empty pattern"}
	}
	for _, s := range p.segs {
		if s == "." || s == ".." {
			return p, &SyntaxError{Token: tok.raw, Pos: tok.pos, Msg: `"." and ".." components are not supported`}
		}
	}
	return p, nil
}

func (c *compiler) add(tok token) error {
	p, err := parsePattern(tok)
	if err != nil {
		return err
	}

	if !p.relative {
		c.emit(p, false)
		if p.dir && c.sign == Include {
			c.group = append(c.group, p.text())
		}
		return nil
	}

	if c.sign != Include {
		return &SyntaxError{Token: tok.raw, Pos: tok.pos, Msg: `"./" patterns are only allowed after "+"`}
	}
	if len(c.group) == 0 {
		c.emit(p, true)
		return nil
	}
	for _, parent := range c.group {
		joined := parsed{
			segs: append(splitEscaped(parent), p.segs...),
			dir:  p.dir,
		}
		c.emit(joined, true)
	}
	return nil
}

// emit appends p, preceded in an include group by its not yet emitted
// parent directories. A file pattern ending in "**" reaches files at any
// depth below its prefix, so "prefix/**/" is a parent too.
func (c *compiler) emit(p parsed, implicit bool) {
	if c.sign == Include {
		n := len(p.segs)
		if !p.dir && n > 1 && p.segs[n-1] == "**" {
			n++
		}
		for i := 1; i < n; i++ {
			parent := parsed{segs: p.segs[:i], dir: true}
			if c.allowed[parent.text()] {
				continue
			}
			c.allowed[parent.text()] = true
			c.append(parent, true)
		}
		c.allowed[p.text()] = true
	}
	c.append(p, implicit)
}

func (c *compiler) append(p parsed, implicit bool) {
	c.out.rules = append(c.out.rules, Rule{
		Sign:      c.sign,
		Pattern:   p.text(),
		AppliesTo: p.target(),
		Implicit:  implicit,
		cp:        compilePattern(p.segs, c.out.opts),
	})
}
