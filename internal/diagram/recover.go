package diagram

import (
	"html"
	"regexp"
	"strings"
)

// Config controls how recovered diagram source is re-embedded.
type Config struct {
	ContainerClass string // class on the <figure> container
	SourceClass    string // class on the <pre> holding clean source
	HideSource     bool   // add the "hidden" class so the raw source is not displayed
	WrapperClass   string // sanitizer's outer wrapper class
	Wrap           bool   // wrap a whole-document replacement in the outer container
}

// DefaultConfig matches the sanitizer's default policy.
func DefaultConfig() Config {
	return Config{
		ContainerClass: "diagram-figure",
		SourceClass:    "diagram-source",
		HideSource:     true,
		WrapperClass:   "generated-content",
		Wrap:           true,
	}
}

// Recoverable reports whether s matches the candidate heuristic and also
// yields a complete diagram. It is the predicate the sanitizer should use
// when deciding to leave a markup-free document unwrapped: only text the
// recovery pass is guaranteed to replace may bypass prose promotion.
func Recoverable(s string) bool {
	if !IsCandidate(s) {
		return false
	}
	_, ok := Recover(html.UnescapeString(s))
	return ok
}

// Recoverer substitutes recovered diagram descriptions into sanitized
// documents. It runs after sanitization (it needs the tag-free view) and is
// a no-op when a recovery container is already present.
type Recoverer struct {
	cfg Config
}

// NewRecoverer builds a Recoverer with an explicit config.
func NewRecoverer(cfg Config) *Recoverer {
	return &Recoverer{cfg: cfg}
}

var blockSpan = regexp.MustCompile(`(?s)<(p|pre)(\s[^>]*)?>.*?</(p|pre)>`)

// Process scans doc for diagram candidates, replaces each with a
// non-displayed container holding the cleaned source, and returns the new
// document plus the recovered sources for the downstream renderer. A
// candidate that cannot be fully recovered is left untouched.
func (r *Recoverer) Process(doc string) (string, []string) {
	if doc == "" {
		return doc, nil
	}
	// Idempotence: a document that already carries a recovery container has
	// been through this pass.
	if strings.Contains(doc, `class="`+r.cfg.ContainerClass+`"`) {
		return doc, nil
	}

	// Markup-free document: the sanitizer left a whole-input candidate
	// unwrapped for this pass.
	if !containsMarkup(doc) {
		if !IsCandidate(doc) {
			return doc, nil
		}
		c, ok := Recover(html.UnescapeString(doc))
		if !ok {
			return doc, nil
		}
		source := Serialize(c)
		replaced := r.renderContainer(source)
		if r.cfg.Wrap {
			replaced = `<div class="` + r.cfg.WrapperClass + `">` + replaced + `</div>`
		}
		return replaced, []string{source}
	}

	// Otherwise candidates hide inside block elements.
	var sources []string
	out := blockSpan.ReplaceAllStringFunc(doc, func(span string) string {
		stripped := StripMarkup(span)
		if !IsCandidate(stripped) {
			return span
		}
		c, ok := Recover(stripped)
		if !ok {
			return span
		}
		source := Serialize(c)
		sources = append(sources, source)
		return r.renderContainer(source)
	})
	return out, sources
}

// renderContainer emits the substitute markup in the sanitizer's canonical
// form (line breaks after block closes) so a later sanitize pass reproduces
// it byte-identically.
func (r *Recoverer) renderContainer(source string) string {
	preClass := r.cfg.SourceClass
	if r.cfg.HideSource {
		preClass += " hidden"
	}
	var b strings.Builder
	b.WriteString(`<figure class="` + r.cfg.ContainerClass + `">`)
	b.WriteString(`<pre class="` + preClass + `">`)
	b.WriteString(html.EscapeString(source))
	b.WriteString("</pre>\n")
	b.WriteString("<figcaption>Diagram</figcaption>\n")
	b.WriteString("</figure>")
	return b.String()
}
