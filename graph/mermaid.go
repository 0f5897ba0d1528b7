package graph

import (
	"fmt"
	"strings"
)

// mermaidWriter serialises the execution graph as a Mermaid flowchart.
type mermaidWriter struct {
	b   strings.Builder
	ids map[Node]int
}

// Mermaid renders the graph reachable from root as a top-to-bottom
// flowchart, one subgraph per thread.
func Mermaid(root Node) string {
	w := &mermaidWriter{ids: map[Node]int{}}
	w.b.WriteString("flowchart TB\n")
	w.visit(root)
	return w.b.String()
}

func (w *mermaidWriter) id(n Node) int {
	if id, ok := w.ids[n]; ok {
		return id
	}
	id := len(w.ids)
	w.ids[n] = id
	return id
}

func (w *mermaidWriter) node(n Node, label, shape string) {
	fmt.Fprintf(&w.b, "\tn%d", w.id(n))
	if shape != "" {
		fmt.Fprintf(&w.b, "@{ shape: %s, label: \"%s\" }", shape, label)
	} else {
		fmt.Fprintf(&w.b, "(%s)", label)
	}
	w.b.WriteString("\n")
}

func (w *mermaidWriter) edge(from, to Node, style string) {
	if from == nil || to == nil {
		return
	}
	fmt.Fprintf(&w.b, "\tn%d", w.id(from))
	if style != "" {
		fmt.Fprintf(&w.b, " -.%s.-> ", style)
	} else {
		w.b.WriteString(" --> ")
	}
	fmt.Fprintf(&w.b, "n%d\n", w.id(to))
}

func (w *mermaidWriter) conflict(n Node, c *Conflict) {
	fmt.Fprintf(&w.b, "\tstyle n%d fill:red\n", w.id(n))
	w.edge(n, c.Sources[0], "")
	w.edge(n, c.Sources[1], "")
}

func (w *mermaidWriter) next(n Node) {
	if next := n.NextNode(); next != nil {
		w.edge(n, next, "")
		w.visit(next)
	} else {
		w.b.WriteString("end\n")
	}
}

func (w *mermaidWriter) visit(n Node) {
	switch n := n.(type) {
	case *Start:
		fmt.Fprintf(&w.b, "subgraph Thread %d\n", n.TID)
		w.b.WriteString("\tdirection TB\n")
		w.node(n, "start", "circle")
		w.next(n)

	case *End:
		w.node(n, "end", "dbl-circ")
		w.b.WriteString("end\n")

	case *Write:
		w.node(n, fmt.Sprintf("write %s = %d : #%d", n.Var, n.Value, n.Commit), "")
		w.next(n)

	case *Read:
		w.node(n, fmt.Sprintf("read %s = %d : #%d", n.Var, n.Value, n.Commit), "")
		w.next(n)
		w.edge(n, n.Source, "rf")

	case *Spawn:
		w.node(n, fmt.Sprintf("spawn %d", n.TID), "")
		w.next(n)
		if n.Spawned != nil {
			w.edge(n, n.Spawned, "")
			w.visit(n.Spawned)
		}

	case *Join:
		w.node(n, fmt.Sprintf("join Thread %d", n.TID), "")
		w.next(n)
		w.edge(n.Joinee, n, "")
		if n.Conflict != nil {
			w.conflict(n, n.Conflict)
		}

	case *Lock:
		w.node(n, "lock "+n.Var, "")
		w.next(n)
		w.edge(n.OrderedAfter, n, "")
		if n.Conflict != nil {
			w.conflict(n, n.Conflict)
		}

	case *Unlock:
		w.node(n, "unlock "+n.Var, "")
		w.next(n)

	case *AssertionFailure:
		w.node(n, "assertion failed: "+mermaidEscape(n.Cond), "")
		fmt.Fprintf(&w.b, "\tstyle n%d fill:red\n", w.id(n))
		w.next(n)

	case *Pending:
		w.node(n, mermaidEscape(n.Statement), "")
		w.b.WriteString("end\n")
	}
}

func mermaidEscape(s string) string {
	s = strings.ReplaceAll(s, `"`, "'")
	return strings.ReplaceAll(s, "\n", " ")
}
