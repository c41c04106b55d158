// Package diagram detects and reconstructs diagram-description fragments
// (mermaid-style graph source) from generated content, even when the
// fragment arrives truncated or interleaved with markup noise. Recovery is
// all-or-nothing: a candidate with no usable nodes or edges is discarded,
// never emitted partially.
package diagram

import (
	"html"
	"regexp"
	"strings"

	"mentorstream/internal/domain"
)

// Extraction bounds. Inputs past these are treated as prose; greedy pattern
// scanning on unbounded hostile input is not worth the risk.
const (
	maxCandidateLen = 4096
	maxNodes        = 256
	maxEdges        = 512
)

// typeKeywords start a diagram declaration. Longer alternatives first so
// "stateDiagram-v2" wins over "stateDiagram".
var typeKeywords = []string{
	"flowchart", "sequenceDiagram", "classDiagram", "stateDiagram-v2",
	"stateDiagram", "erDiagram", "gantt", "journey", "mindmap", "graph", "pie",
}

// familyKeywords are diagram-body words accepted as secondary evidence.
// Direction tokens like TD are deliberately absent: "graph TD" alone is not
// enough, ordinary prose mentions graphs too.
var familyKeywords = []string{
	"subgraph", "flowchart", "sequenceDiagram", "classDiagram",
	"stateDiagram", "erDiagram",
}

var (
	typeDecl       = regexp.MustCompile(`^(graph|flowchart)[ \t]+(TD|TB|BT|LR|RL)\b`)
	completeNode   = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_]*)\[([^\[\]]*)\]`)
	incompleteNode = regexp.MustCompile(`(?m)([A-Za-z][A-Za-z0-9_]*)\[([^\[\]"'<>\n]*)(?:$|["'<])`)
	nodeBracket    = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_]*\[`)
	connectorRe    = regexp.MustCompile(`-\.->|-->|---|==>|->`)
	edgeRe         = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_]*)(?:\[[^\[\]]*\]?)?[ \t]*(-\.->|-->|---|==>|->)[ \t]*([A-Za-z][A-Za-z0-9_]*)`)
	brTag          = regexp.MustCompile(`(?i)<br[ \t]*/?>`)
	anyTag         = regexp.MustCompile(`<[^<>]*>`)
	tagStart       = regexp.MustCompile(`</?[A-Za-z]`)
)

// IsCandidate reports whether a tag-free span looks like a diagram
// description. Two conditions are required: the span must begin with a
// recognized diagram-type keyword, and it must additionally show a node
// bracket, a connector token, or a diagram-family keyword. The second test
// keeps ordinary prose that merely opens with "graph" out.
func IsCandidate(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) > maxCandidateLen {
		return false
	}
	if !beginsWithTypeKeyword(trimmed) {
		return false
	}
	if nodeBracket.MatchString(trimmed) || connectorRe.MatchString(trimmed) {
		return true
	}
	rest := trimmed[typeKeywordLen(trimmed):]
	for _, kw := range familyKeywords {
		if containsWord(rest, kw) {
			return true
		}
	}
	return false
}

func beginsWithTypeKeyword(s string) bool { return typeKeywordLen(s) > 0 }

func typeKeywordLen(s string) int {
	for _, kw := range typeKeywords {
		if strings.HasPrefix(s, kw) {
			end := len(kw)
			if end == len(s) || !isWordByte(s[end]) {
				return end
			}
		}
	}
	return 0
}

func containsWord(s, word string) bool {
	for idx := 0; ; {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(s[i-1])
		afterIdx := i + len(word)
		after := afterIdx == len(s) || !isWordByte(s[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(word)
	}
}

func isWordByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-'
}

// Recover reconstructs a clean diagram description from a tag-free span.
// Returns false when the span yields no nodes or no edges; the caller must
// then leave the text alone (invariant: no partial diagram is ever emitted).
func Recover(text string) (*domain.DiagramCandidate, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) > maxCandidateLen {
		return nil, false
	}

	c := &domain.DiagramCandidate{Nodes: make(map[string]string)}
	c.Type = extractType(trimmed)
	if c.Type == "" {
		return nil, false
	}

	addNode := func(id, label string) {
		if _, ok := c.Nodes[id]; ok {
			return
		}
		if len(c.NodeOrder) >= maxNodes {
			return
		}
		c.Nodes[id] = label
		c.NodeOrder = append(c.NodeOrder, id)
	}

	body := trimmed[typeKeywordLen(trimmed):]
	for _, m := range completeNode.FindAllStringSubmatch(body, -1) {
		id, label := m[1], strings.TrimSpace(m[2])
		if label == "" {
			label = id
		}
		addNode(id, label)
	}
	// Incomplete declarations: an unterminated bracket at fragment end (or
	// cut off by a quote/tag boundary). The partial label is used as-is; if
	// truncation left nothing, the id itself. Never a fabricated label.
	for _, m := range incompleteNode.FindAllStringSubmatch(body, -1) {
		id, label := m[1], strings.TrimSpace(m[2])
		if label == "" {
			label = id
		}
		addNode(id, label)
	}

	for _, m := range edgeRe.FindAllStringSubmatch(body, -1) {
		if len(c.Edges) >= maxEdges {
			break
		}
		from, conn, to := m[1], m[2], m[3]
		// A node referenced only via an edge falls back to its id as label.
		addNode(from, from)
		addNode(to, to)
		c.Edges = append(c.Edges, domain.DiagramEdge{From: from, Connector: conn, To: to})
	}

	if len(c.NodeOrder) == 0 || len(c.Edges) == 0 {
		return nil, false
	}
	return c, true
}

// extractType pulls the diagram-type declaration from the span head.
func extractType(s string) string {
	if m := typeDecl.FindString(s); m != "" {
		return strings.Join(strings.Fields(m), " ")
	}
	if n := typeKeywordLen(s); n > 0 {
		return s[:n]
	}
	return ""
}

// Serialize renders clean diagram source: type line, one node line per node
// in first-seen order, one edge line per edge in first-seen order.
func Serialize(c *domain.DiagramCandidate) string {
	var b strings.Builder
	b.WriteString(c.Type)
	b.WriteByte('\n')
	for _, id := range c.NodeOrder {
		b.WriteString("  ")
		b.WriteString(id)
		b.WriteByte('[')
		b.WriteString(c.Nodes[id])
		b.WriteString("]\n")
	}
	for _, e := range c.Edges {
		b.WriteString("  ")
		b.WriteString(e.From)
		b.WriteByte(' ')
		b.WriteString(e.Connector)
		b.WriteByte(' ')
		b.WriteString(e.To)
		b.WriteByte('\n')
	}
	return b.String()
}

// StripMarkup yields the tag-free view of a span: explicit breaks become
// newlines, remaining tags vanish, entities are decoded.
func StripMarkup(s string) string {
	s = brTag.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	return html.UnescapeString(s)
}

func containsMarkup(s string) bool { return tagStart.MatchString(s) }
