// Package sanitize turns raw accumulated model output into balanced,
// allowlisted markup. It is built for tolerance: input may be truncated
// mid-tag, duplicated by transport redelivery, or adversarial, and the
// pipeline repairs rather than rejects. Sanitize never panics; the worst
// case is an empty fragment.
package sanitize

// Policy is the sanitizer configuration. It is an explicit value passed at
// construction so call sites with different style policies coexist safely.
type Policy struct {
	// AllowedTags is the element allowlist. Elements outside it are removed
	// but their content is preserved (unwrapped).
	AllowedTags map[string]bool
	// AllowedAttrs maps tag name to the attributes permitted on it.
	// "class" is always permitted on allowed tags; see globalAttrs.
	AllowedAttrs map[string]map[string]bool
	// ClassMap maps tag name to a presentational class injected when the
	// element carries no class of its own.
	ClassMap map[string]string
	// InjectClasses enables ClassMap application.
	InjectClasses bool
	// Wrap encloses the fragment in one top-level container.
	Wrap bool
	// WrapperClass is the class of the top-level container.
	WrapperClass string
}

// DefaultPolicy returns the policy used by the content pipeline.
func DefaultPolicy() Policy {
	return Policy{
		AllowedTags: setOf(
			"p", "br", "hr", "strong", "em", "b", "i", "u", "s", "code",
			"pre", "ul", "ol", "li", "h1", "h2", "h3", "h4", "blockquote",
			"a", "span", "div", "table", "thead", "tbody", "tr", "th", "td",
			"figure", "figcaption", "img",
		),
		AllowedAttrs: map[string]map[string]bool{
			"a":   setOf("href", "title"),
			"img": setOf("src", "alt", "title"),
			"th":  setOf("colspan", "rowspan"),
			"td":  setOf("colspan", "rowspan"),
		},
		ClassMap: map[string]string{
			"p":          "content-paragraph",
			"h1":         "content-heading",
			"h2":         "content-heading",
			"h3":         "content-heading",
			"h4":         "content-heading",
			"ul":         "content-list",
			"ol":         "content-list",
			"blockquote": "content-quote",
			"table":      "content-table",
		},
		InjectClasses: true,
		Wrap:          true,
		WrapperClass:  "generated-content",
	}
}

// globalAttrs are permitted on every allowed tag. Keeping "class" here is
// what lets injected classes and diagram containers survive re-sanitization.
var globalAttrs = setOf("class")

// voidTags never enter the repair stack and take no closing tag.
var voidTags = setOf(
	"area", "base", "br", "col", "embed", "hr", "img", "input",
	"link", "meta", "param", "source", "track", "wbr",
)

// blockTags receive a trailing line break after their closing tag.
var blockTags = setOf(
	"p", "div", "section", "article", "ul", "ol", "li",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"blockquote", "pre", "table", "thead", "tbody", "tr",
	"figure", "figcaption",
)

// urlAttrs are attributes whose values are checked for dangerous schemes.
var urlAttrs = setOf("href", "src", "action", "formaction", "xlink:href")

func setOf(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
