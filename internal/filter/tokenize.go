package filter

import (
	"fmt"
	"strings"
	"unicode"
)

// SyntaxError reports a malformed filter string. Pos is the byte offset of
// the offending token within the original string.
type SyntaxError struct {
	Token string
	Pos   int
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("filter syntax error at offset %d: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("filter syntax error at offset %d (%q): %s", e.Pos, e.Token, e.Msg)
}

// token is one whitespace-delimited word of a filter string.
//
// text is in escaped form: a backslash followed by '*' or '\' stands for
// that character literally, every other rune is itself. sign is set for
// an unquoted, unescaped "+" or "-".
type token struct {
	text  string
	raw   string
	pos   int
	sign  Verdict
	isSig bool
}

// tokenize splits s the way a POSIX shell would split a word list, with
// the difference that glob stars survive quoting as escaped literals.
//
// Single quotes make everything literal. Double quotes make whitespace and
// single quotes literal; a backslash inside double quotes only escapes '"',
// '\' and '*'. Outside quotes a backslash escapes the next character, and a
// backslash before an ordinary character is kept.
//
//nolint:gocyclo,revive // cognitive-complexity: character-by-character state machine
func tokenize(s string) ([]token, error) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return nil, &SyntaxError{Pos: i, Msg: "NUL character in filter string"}
	}

	var (
		toks     []token
		b        strings.Builder
		inToken  bool
		quoted   bool // any quote or escape touched this token
		escape   bool
		sQuote   bool
		dQuote   bool
		start    int
		quoteAt  int
		escapeAt int
	)

	flush := func(end int) {
		if !inToken {
			return
		}
		t := token{text: b.String(), raw: s[start:end], pos: start}
		if !quoted && (t.text == "+" || t.text == "-") {
			t.isSig = true
			t.sign = Include
			if t.text == "-" {
				t.sign = Exclude
			}
		}
		if t.text != "" || t.isSig {
			toks = append(toks, t)
		}
		b.Reset()
		inToken, quoted = false, false
	}
	begin := func(i int) {
		if !inToken {
			inToken = true
			start = i
		}
	}

	for i, r := range s {
		switch {
		case escape:
			escape = false
			switch {
			case r == '*' || r == '\\':
				b.WriteByte('\\')
				b.WriteRune(r)
			case dQuote && r != '"':
				// Inside double quotes only a few escapes are recognised.
				b.WriteString(`\\`)
				b.WriteRune(r)
			case !dQuote && !unicode.IsSpace(r) && r != '\'' && r != '"':
				b.WriteString(`\\`)
				b.WriteRune(r)
			default:
				b.WriteRune(r)
			}
		case sQuote:
			switch r {
			case '\'':
				sQuote = false
			case '*', '\\':
				b.WriteByte('\\')
				b.WriteRune(r)
			default:
				b.WriteRune(r)
			}
		case r == '\\':
			begin(i)
			quoted = true
			escape = true
			escapeAt = i
		case dQuote:
			if r == '"' {
				dQuote = false
				continue
			}
			b.WriteRune(r)
		case r == '\'':
			begin(i)
			quoted = true
			sQuote = true
			quoteAt = i
		case r == '"':
			begin(i)
			quoted = true
			dQuote = true
			quoteAt = i
		case unicode.IsSpace(r):
			flush(i)
		default:
			begin(i)
			b.WriteRune(r)
		}
	}

	switch {
	case escape:
		return nil, &SyntaxError{Token: s[start:], Pos: escapeAt, Msg: "unterminated escape sequence"}
	case sQuote, dQuote:
		return nil, &SyntaxError{Token: s[start:], Pos: quoteAt, Msg: "unclosed quote"}
	}
	flush(len(s))
	return toks, nil
}
