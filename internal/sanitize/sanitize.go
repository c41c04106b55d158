package sanitize

import (
	"html"
	"regexp"
	"strings"
)

// Sanitizer applies the full formatting pipeline to frozen stream output.
// All stages are idempotent: sanitizing already-sanitized output returns a
// byte-identical string.
type Sanitizer struct {
	policy Policy
	// isDiagram reports whether a markup-free input must be left unwrapped
	// for the recovery pass. The predicate has to guarantee recovery will
	// succeed; anything else takes the prose path so bare text can never
	// leak through both stages. May be nil.
	isDiagram func(string) bool
}

// NewSanitizer builds a Sanitizer with an explicit policy. The predicate
// decouples this package from diagram grammar knowledge.
func NewSanitizer(policy Policy, isDiagram func(string) bool) *Sanitizer {
	return &Sanitizer{policy: policy, isDiagram: isDiagram}
}

// Sanitize transforms raw accumulated text into a constrained safe fragment.
// It never fails; the worst case on hostile input is an empty string.
func (s *Sanitizer) Sanitize(input string) string {
	doc := input
	if s.policy.Wrap {
		doc = s.unwrap(doc)
	}
	if strings.TrimSpace(doc) == "" {
		return ""
	}

	if !containsTag(doc) {
		if s.isDiagram != nil && s.isDiagram(doc) {
			// Whole input matches the diagram grammar: left unwrapped so the
			// recovery pass sees the raw text intact.
			return doc
		}
		doc = promote(doc)
	}

	doc = dedupParagraphs(doc)

	toks := tokenize(doc)
	toks = stripDangerous(toks)
	toks = repairBalance(toks)
	toks = repairParagraphs(toks)
	toks = s.enforceAllowlist(toks)
	toks = normalizeWhitespace(toks)
	if s.policy.InjectClasses {
		toks = s.injectClasses(toks)
	}

	doc = strings.TrimRight(render(toks), "\n")
	if doc == "" {
		return ""
	}
	if s.policy.Wrap {
		doc = s.wrapPrefix() + doc + "</div>"
	}
	return doc
}

func (s *Sanitizer) wrapPrefix() string {
	return `<div class="` + s.policy.WrapperClass + `">`
}

// unwrap strips an existing top-level container so repeated sanitization
// never nests wrappers.
func (s *Sanitizer) unwrap(doc string) string {
	prefix := s.wrapPrefix()
	if strings.HasPrefix(doc, prefix) && strings.HasSuffix(doc, "</div>") {
		return doc[len(prefix) : len(doc)-len("</div>")]
	}
	return doc
}

// containsTag reports whether tokenize would find at least one real tag.
func containsTag(doc string) bool {
	for _, tok := range tokenize(doc) {
		if tok.Tag != nil {
			return true
		}
	}
	return false
}

// promote paragraph-wraps markup-free input: blank-line boundaries split
// paragraphs, single newlines become explicit breaks.
func promote(text string) string {
	var b strings.Builder
	for _, para := range blankLineSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(para, "\n", "<br/>"))
		b.WriteString("</p>")
	}
	return b.String()
}

var (
	blankLineSplit = regexp.MustCompile(`\n[ \t]*\n`)
	paragraphSpan  = regexp.MustCompile(`(?s)<p(?:\s[^>]*)?>.*?</p>`)
	anyTag         = regexp.MustCompile(`<[^>]*>`)
	wsRun          = regexp.MustCompile(`\s+`)
)

// dedupParagraphs drops any paragraph whose tag-stripped text exactly
// repeats an earlier paragraph, protecting against streaming re-transmission
// artifacts. Only well-formed <p>...</p> spans participate.
func dedupParagraphs(doc string) string {
	seen := make(map[string]bool)
	var b strings.Builder
	last := 0
	for _, span := range paragraphSpan.FindAllStringIndex(doc, -1) {
		key := paragraphKey(doc[span[0]:span[1]])
		b.WriteString(doc[last:span[0]])
		// Empty paragraphs are structural, not repeated content.
		if key == "" || !seen[key] {
			seen[key] = true
			b.WriteString(doc[span[0]:span[1]])
		}
		last = span[1]
	}
	b.WriteString(doc[last:])
	return b.String()
}

func paragraphKey(span string) string {
	text := anyTag.ReplaceAllString(span, "")
	text = html.UnescapeString(text)
	return strings.TrimSpace(wsRun.ReplaceAllString(text, " "))
}

// enforceAllowlist removes elements outside the allowed set (content is
// unwrapped, not deleted) and drops attributes outside the tag's allowed set.
func (s *Sanitizer) enforceAllowlist(tokens []token) []token {
	out := tokens[:0:0]
	for _, tok := range tokens {
		if tok.Tag == nil {
			out = append(out, tok)
			continue
		}
		t := tok.Tag
		if !s.policy.AllowedTags[t.Name] {
			continue
		}
		if t.Closing || len(t.Attrs) == 0 {
			out = append(out, tok)
			continue
		}
		allowed := s.policy.AllowedAttrs[t.Name]
		kept := t.Attrs[:0:0]
		for _, a := range t.Attrs {
			if globalAttrs[a.Name] || allowed[a.Name] {
				kept = append(kept, a)
			}
		}
		t.Attrs = kept
		out = append(out, tok)
	}
	return out
}

// normalizeWhitespace collapses whitespace runs, removes whitespace-only
// text at block boundaries, and inserts one line break after each
// block-level closing tag. Text inside <pre> is left untouched so recovered
// diagram sources keep their line structure.
func normalizeWhitespace(tokens []token) []token {
	var out []token
	preDepth := 0
	pendingBreak := false

	for i, tok := range tokens {
		if tok.Tag != nil {
			t := tok.Tag
			if t.Name == "pre" && !t.SelfClosing {
				if t.Closing {
					if preDepth > 0 {
						preDepth--
					}
				} else {
					preDepth++
				}
			}
			out = append(out, tok)
			pendingBreak = false
			if preDepth == 0 && t.Closing && blockTags[t.Name] {
				out = append(out, textToken("\n"))
				pendingBreak = true
			}
			continue
		}

		if preDepth > 0 {
			out = append(out, tok)
			continue
		}

		text := wsRun.ReplaceAllString(tok.Text, " ")
		if pendingBreak {
			text = strings.TrimLeft(text, " ")
		}
		if i == 0 {
			text = strings.TrimLeft(text, " ")
		}
		if i == len(tokens)-1 {
			text = strings.TrimRight(text, " ")
		}
		if text == " " && atBlockBoundary(tokens, i) {
			text = ""
		}
		if text != "" {
			out = append(out, textToken(text))
			pendingBreak = false
		}
	}
	return out
}

// atBlockBoundary reports whether the whitespace-only text at index i sits
// against a block-level tag (or document edge), where it carries no meaning.
func atBlockBoundary(tokens []token, i int) bool {
	boundary := func(j int) bool {
		if j < 0 || j >= len(tokens) {
			return true
		}
		t := tokens[j].Tag
		return t != nil && (blockTags[t.Name] || t.Name == "br" || t.Name == "hr")
	}
	return boundary(i-1) || boundary(i+1)
}

// injectClasses adds the configured presentational class to elements that
// carry no class of their own.
func (s *Sanitizer) injectClasses(tokens []token) []token {
	for _, tok := range tokens {
		t := tok.Tag
		if t == nil || t.Closing {
			continue
		}
		class, ok := s.policy.ClassMap[t.Name]
		if !ok {
			continue
		}
		hasClass := false
		for _, a := range t.Attrs {
			if a.Name == "class" {
				hasClass = true
				break
			}
		}
		if !hasClass {
			t.Attrs = append(t.Attrs, attr{Name: "class", Value: class})
		}
	}
	return tokens
}
