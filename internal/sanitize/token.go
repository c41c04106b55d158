package sanitize

import "strings"

// attr is one parsed attribute. Value keeps the raw (still entity-encoded)
// text so that re-serialization is a fixed point.
type attr struct {
	Name  string
	Value string
	Bare  bool // attribute had no value (e.g. hidden)
}

// tag is one parsed markup tag.
type tag struct {
	Name        string // lowercase
	Attrs       []attr
	Closing     bool
	SelfClosing bool
}

// token is either a text run (Text non-nil semantics via Tag==nil) or a tag.
type token struct {
	Text string
	Tag  *tag
}

func textToken(s string) token { return token{Text: s} }
func tagToken(t *tag) token    { return token{Tag: t} }

// tokenize splits s into text and tag tokens. It is deliberately lenient:
// a "<" that does not start a plausible tag is literal text, comments are
// consumed silently, and a truncated tag at end of input is dropped (under
// token-by-token delivery a trailing "<stro" is a cut-off tag, not prose).
func tokenize(s string) []token {
	var out []token
	i := 0
	for i < len(s) {
		j := strings.IndexByte(s[i:], '<')
		if j < 0 {
			out = append(out, textToken(s[i:]))
			break
		}
		j += i
		if j > i {
			out = append(out, textToken(s[i:j]))
		}

		// Comments and declarations are consumed, never emitted.
		if strings.HasPrefix(s[j:], "<!--") {
			end := strings.Index(s[j+4:], "-->")
			if end < 0 {
				break // unterminated comment swallows the rest
			}
			i = j + 4 + end + 3
			continue
		}
		if j+1 < len(s) && s[j+1] == '!' {
			end := strings.IndexByte(s[j:], '>')
			if end < 0 {
				break
			}
			i = j + end + 1
			continue
		}

		if !plausibleTagStart(s, j) {
			out = append(out, textToken("<"))
			i = j + 1
			continue
		}

		end, ok := findTagEnd(s, j)
		if !ok {
			break // truncated tag at end of input: dropped
		}
		if t := parseTag(s[j+1 : end]); t != nil {
			out = append(out, tagToken(t))
		}
		i = end + 1
	}
	return out
}

// plausibleTagStart reports whether s[j] == '<' begins a tag: the next rune
// must be a letter or a '/' followed by a letter.
func plausibleTagStart(s string, j int) bool {
	k := j + 1
	if k < len(s) && s[k] == '/' {
		k++
	}
	return k < len(s) && isAlpha(s[k])
}

// findTagEnd locates the '>' closing the tag at s[j], honoring quoted
// attribute values.
func findTagEnd(s string, j int) (int, bool) {
	var quote byte
	for k := j + 1; k < len(s); k++ {
		c := s[k]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return k, true
		}
	}
	return 0, false
}

// parseTag parses the text between '<' and '>'. Returns nil for garbage
// that has no usable element name.
func parseTag(inner string) *tag {
	t := &tag{}
	if strings.HasPrefix(inner, "/") {
		t.Closing = true
		inner = inner[1:]
	}
	if strings.HasSuffix(inner, "/") {
		t.SelfClosing = true
		inner = inner[:len(inner)-1]
	}

	i := 0
	for i < len(inner) && isNameByte(inner[i]) {
		i++
	}
	if i == 0 {
		return nil
	}
	t.Name = strings.ToLower(inner[:i])
	if t.Closing {
		return t // attributes on closing tags are discarded
	}

	rest := inner[i:]
	for {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			break
		}
		var a attr
		n := 0
		for n < len(rest) && !isAttrDelim(rest[n]) {
			n++
		}
		if n == 0 {
			rest = rest[1:]
			continue
		}
		a.Name = strings.ToLower(rest[:n])
		rest = strings.TrimLeft(rest[n:], " \t\r\n")

		if !strings.HasPrefix(rest, "=") {
			a.Bare = true
			t.Attrs = append(t.Attrs, a)
			continue
		}
		rest = strings.TrimLeft(rest[1:], " \t\r\n")
		switch {
		case strings.HasPrefix(rest, `"`):
			end := strings.IndexByte(rest[1:], '"')
			if end < 0 {
				a.Value = rest[1:]
				rest = ""
			} else {
				a.Value = rest[1 : 1+end]
				rest = rest[end+2:]
			}
		case strings.HasPrefix(rest, `'`):
			end := strings.IndexByte(rest[1:], '\'')
			if end < 0 {
				a.Value = rest[1:]
				rest = ""
			} else {
				a.Value = rest[1 : 1+end]
				rest = rest[end+2:]
			}
		default:
			n = 0
			for n < len(rest) && !isSpaceByte(rest[n]) {
				n++
			}
			a.Value = rest[:n]
			rest = rest[n:]
		}
		t.Attrs = append(t.Attrs, a)
	}
	return t
}

// render serializes tokens back to markup in canonical form: lowercase
// names, double-quoted values. Canonical form is what makes the pipeline
// idempotent: parsing rendered output reproduces the same tokens.
func render(tokens []token) string {
	var b strings.Builder
	for _, tok := range tokens {
		if tok.Tag == nil {
			b.WriteString(tok.Text)
			continue
		}
		t := tok.Tag
		b.WriteByte('<')
		if t.Closing {
			b.WriteByte('/')
		}
		b.WriteString(t.Name)
		for _, a := range t.Attrs {
			b.WriteByte(' ')
			b.WriteString(a.Name)
			if !a.Bare {
				b.WriteString(`="`)
				b.WriteString(strings.ReplaceAll(a.Value, `"`, "&quot;"))
				b.WriteByte('"')
			}
		}
		if t.SelfClosing {
			b.WriteByte('/')
		}
		b.WriteByte('>')
	}
	return b.String()
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isAlpha(c) || (c >= '0' && c <= '9') || c == '-' || c == ':'
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isAttrDelim(c byte) bool {
	return isSpaceByte(c) || c == '=' || c == '/' || c == '>'
}
