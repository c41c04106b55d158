package domain

// DiagramEdge is one connection in a recovered diagram description.
type DiagramEdge struct {
	From      string
	Connector string
	To        string
}

// DiagramCandidate is a fully recovered diagram description. It is only
// ever constructed with at least one node and one edge; partial recoveries
// are discarded, never emitted.
type DiagramCandidate struct {
	Type      string            // declaration line, e.g. "graph TD"
	Nodes     map[string]string // id -> label
	NodeOrder []string          // ids in first-seen order
	Edges     []DiagramEdge     // in first-seen order
}
