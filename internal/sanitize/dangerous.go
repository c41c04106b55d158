package sanitize

import (
	"html"
	"strings"
)

// neutralizedURL replaces a dangerous URL value. The element is kept; only
// the value is defused.
const neutralizedURL = "#"

// stripDangerous removes executable constructs: script and style elements
// including their content, inline event-handler attributes, and dangerous
// URL scheme values (neutralized, not deleted).
func stripDangerous(tokens []token) []token {
	out := tokens[:0:0]
	skipUntil := "" // inside a script/style element, drop everything
	for _, tok := range tokens {
		if skipUntil != "" {
			if tok.Tag != nil && tok.Tag.Closing && tok.Tag.Name == skipUntil {
				skipUntil = ""
			}
			continue
		}
		if tok.Tag == nil {
			out = append(out, tok)
			continue
		}
		t := tok.Tag
		if t.Name == "script" || t.Name == "style" {
			if !t.Closing && !t.SelfClosing {
				// A truncated script with no closing tag swallows the rest
				// of the input; that beats leaking half a payload.
				skipUntil = t.Name
			}
			continue
		}
		out = append(out, tagToken(scrubAttrs(t)))
	}
	return out
}

// scrubAttrs drops event handlers and defuses dangerous URL values in place.
func scrubAttrs(t *tag) *tag {
	if len(t.Attrs) == 0 {
		return t
	}
	kept := t.Attrs[:0:0]
	for _, a := range t.Attrs {
		if strings.HasPrefix(a.Name, "on") {
			continue
		}
		if urlAttrs[a.Name] && dangerousURL(a.Value) {
			a.Value = neutralizedURL
			a.Bare = false
		}
		kept = append(kept, a)
	}
	t.Attrs = kept
	return t
}

// dangerousURL reports whether a raw attribute value resolves to an
// executable scheme. The value is entity-decoded and stripped of whitespace
// and control bytes first, since "jav&#x09;ascript:" tricks are routine.
func dangerousURL(raw string) bool {
	decoded := html.UnescapeString(raw)
	var b strings.Builder
	for _, r := range decoded {
		if r <= ' ' || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	v := strings.ToLower(b.String())

	for _, scheme := range []string{"javascript:", "vbscript:", "livescript:"} {
		if strings.HasPrefix(v, scheme) {
			return true
		}
	}
	// data: URLs smuggle documents; images are the one tolerated use.
	if strings.HasPrefix(v, "data:") && !strings.HasPrefix(v, "data:image/") {
		return true
	}
	return false
}
