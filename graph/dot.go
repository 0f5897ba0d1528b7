package graph

import (
	"fmt"
	"strings"
)

// dotWriter serialises the execution graph to Graphviz DOT. Node names are
// small integers assigned in visit order, so output is deterministic for a
// deterministic execution.
type dotWriter struct {
	b   strings.Builder
	ids map[Node]int
}

// Dot renders the graph reachable from root (the Start node of thread 0)
// as a DOT digraph.
func Dot(root Node) string {
	w := &dotWriter{ids: map[Node]int{}}
	w.b.WriteString("digraph G {\n")
	w.visit(root)
	w.b.WriteString("}\n")
	return w.b.String()
}

func (w *dotWriter) id(n Node) int {
	if id, ok := w.ids[n]; ok {
		return id
	}
	id := len(w.ids)
	w.ids[n] = id
	return id
}

func (w *dotWriter) node(n Node, label, style string) {
	fmt.Fprintf(&w.b, "\tn%d[label=\"%s\", shape=rectangle, style=\"rounded,filled\", ", w.id(n), label)
	w.b.WriteString(style)
	w.b.WriteString("];\n")
}

func (w *dotWriter) edge(from, to Node, label, style string) {
	if from == nil || to == nil {
		return
	}
	fmt.Fprintf(&w.b, "\tn%d -> n%d", w.id(from), w.id(to))
	if style != "" || label != "" {
		w.b.WriteString("[")
		w.b.WriteString(style)
		if label != "" {
			fmt.Fprintf(&w.b, " label=\"%s\"", label)
		}
		w.b.WriteString("]")
	}
	w.b.WriteString(";\n")
}

func (w *dotWriter) programOrderEdge(from, to Node) {
	w.edge(from, to, "", "")
}

func (w *dotWriter) readsFromEdge(from, to Node) {
	w.edge(from, to, "rf", "style=dashed, constraint=false")
}

func (w *dotWriter) syncEdge(from, to Node) {
	w.edge(from, to, "sync", "style=bold, constraint=false")
}

func (w *dotWriter) conflict(n Node, c *Conflict) {
	fmt.Fprintf(&w.b, "\tn%d[fillcolor = red];\n", w.id(n))
	w.edge(n, c.Sources[0], "race", "style=dashed, color=red, constraint=false")
	w.edge(n, c.Sources[1], "race", "style=dashed, color=red, constraint=false")
}

// next continues along the program order, closing the thread's cluster
// when the chain runs out.
func (w *dotWriter) next(n Node) {
	if next := n.NextNode(); next != nil {
		w.programOrderEdge(n, next)
		w.visit(next)
	} else {
		w.b.WriteString("}\n")
	}
}

func (w *dotWriter) visit(n Node) {
	switch n := n.(type) {
	case *Start:
		fmt.Fprintf(&w.b, "subgraph cluster_Thread_%d{\n", n.TID)
		fmt.Fprintf(&w.b, "\tlabel = \"Thread #%d\";\n", n.TID)
		w.b.WriteString("\tcolor=black;\n")
		w.node(n, "", "shape=circle width=.3 style=filled color=black")
		w.next(n)

	case *End:
		w.node(n, "", "shape=doublecircle width=.2 style=empty")
		w.b.WriteString("}\n")

	case *Write:
		w.node(n, fmt.Sprintf("W%s = %d", n.Var, n.Value), "")
		w.next(n)

	case *Read:
		w.node(n, fmt.Sprintf("R%s = %d", n.Var, n.Value), "")
		w.next(n)
		w.readsFromEdge(n, n.Source)

	case *Spawn:
		w.node(n, fmt.Sprintf("Spawn %d", n.TID), "")
		w.next(n)
		if n.Spawned != nil {
			w.syncEdge(n, n.Spawned)
			w.visit(n.Spawned)
		}

	case *Join:
		w.node(n, fmt.Sprintf("Join %d", n.TID), "")
		w.next(n)
		w.syncEdge(n.Joinee, n)
		if n.Conflict != nil {
			w.conflict(n, n.Conflict)
		}

	case *Lock:
		w.node(n, "lock "+n.Var, "")
		w.next(n)
		w.syncEdge(n.OrderedAfter, n)
		if n.Conflict != nil {
			w.conflict(n, n.Conflict)
		}

	case *Unlock:
		w.node(n, "unlock "+n.Var, "")
		w.next(n)

	case *AssertionFailure:
		w.node(n, "assert failed: "+escape(n.Cond), "fillcolor=red")
		w.next(n)

	case *Pending:
		w.node(n, escape(n.Statement), "style=dashed")
		w.b.WriteString("}\n")
	}
}

// escape makes multi-line statement text safe inside a quoted label.
func escape(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\l   `)
}
