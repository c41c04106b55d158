package sanitize

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// maxNestingDepth is the advisory cap on element nesting. The repair stage
// cannot produce deeper nesting than the input carried, so anything past
// this is a signal worth logging.
const maxNestingDepth = 32

// FindingKind classifies an advisory safety finding.
type FindingKind string

const (
	FindingScript       FindingKind = "script_tag"
	FindingEventHandler FindingKind = "event_handler"
	FindingDangerousURL FindingKind = "dangerous_url"
	FindingDeepNesting  FindingKind = "deep_nesting"
)

// Finding is one advisory result from the final safety scan.
type Finding struct {
	Kind   FindingKind
	Detail string
}

// Validate is the read-only defense-in-depth pass over a sanitized document.
// It never mutates and never fails; findings are advisory, since the
// sanitizer is expected to have removed true positives already. The scan is
// built on the x/net/html tokenizer rather than this package's own scanner
// so the two implementations cannot share a blind spot.
func Validate(doc string) []Finding {
	var findings []Finding
	depth := 0
	peak := 0

	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			if peak > maxNestingDepth {
				findings = append(findings, Finding{
					Kind:   FindingDeepNesting,
					Detail: fmt.Sprintf("nesting depth %d exceeds %d", peak, maxNestingDepth),
				})
			}
			return findings
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data == "script" {
				findings = append(findings, Finding{Kind: FindingScript, Detail: "<script> present"})
			}
			for _, a := range tok.Attr {
				if strings.HasPrefix(strings.ToLower(a.Key), "on") {
					findings = append(findings, Finding{
						Kind:   FindingEventHandler,
						Detail: fmt.Sprintf("%s on <%s>", a.Key, tok.Data),
					})
				}
				if urlAttrs[strings.ToLower(a.Key)] && dangerousURL(a.Val) {
					findings = append(findings, Finding{
						Kind:   FindingDangerousURL,
						Detail: fmt.Sprintf("%s=%q on <%s>", a.Key, a.Val, tok.Data),
					})
				}
			}
			if tok.Type == html.StartTagToken && !voidTags[tok.Data] {
				depth++
				if depth > peak {
					peak = depth
				}
			}
		case html.EndTagToken:
			if depth > 0 {
				depth--
			}
		}
	}
}
