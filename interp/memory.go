// Package interp is the gitmem execution engine: the versioned memory
// algebra, the statement stepper, the cooperative scheduler and the
// interactive debugger.
//
// Threads do not share memory. Each thread (and each lock) holds a private
// view of the global variables it has encountered, and every view tracks a
// per-variable history of commit ids. Synchronising actions (join, lock,
// unlock) reconcile views by fast-forwarding one history against another;
// two histories where neither is a prefix of the other are a data race.
package interp

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// Commit identifies one global-variable write. Ids are drawn from a single
// engine-wide counter, so no two writes share one.
type Commit uint64

// Global is one thread's (or lock's) view of a versioned global variable:
// the current value, the pending commit id of a write that has not reached
// a sync point yet, and the linearised history of committed writes.
type Global struct {
	Val     int
	Commit  *Commit
	History []Commit
}

func (g *Global) clone() *Global {
	c := &Global{Val: g.Val, History: append([]Commit(nil), g.History...)}
	if g.Commit != nil {
		pending := *g.Commit
		c.Commit = &pending
	}
	return c
}

// Globals is a view: a mapping from variable name to its versioned state.
type Globals map[string]*Global

func (gs Globals) clone() Globals {
	c := make(Globals, len(gs))
	for name, g := range gs {
		c[name] = g.clone()
	}
	return c
}

// names returns the variable names in sorted order. Views are maps, but
// everything that iterates a view walks it in sorted order so runs are
// reproducible.
func (gs Globals) names() []string {
	names := make([]string, 0, len(gs))
	for name := range gs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// commit promotes every pending write in the view into its variable's
// history. Idempotent on views without pending commits. Invoked at every
// outgoing sync point.
func (gs Globals) commit() {
	for _, name := range gs.names() {
		g := gs[name]
		if g.Commit != nil {
			g.History = append(g.History, *g.Commit)
			log.Debugf("Committed global '%s' with id %d", name, *g.Commit)
			g.Commit = nil
		}
	}
}

// hasConflict reports the first position where two histories diverge. Two
// histories are compatible iff one is a prefix of the other.
func hasConflict(h1, h2 []Commit) (Commit, Commit, bool) {
	length := len(h1)
	if len(h2) < length {
		length = len(h2)
	}
	for i := 0; i < length; i++ {
		if h1[i] != h2[i] {
			return h1[i], h2[i], true
		}
	}
	return 0, 0, false
}

// Conflict is a data-race witness: the variable and the two commits at the
// first diverging history position.
type Conflict struct {
	Var    string
	C1, C2 Commit
}

// pull merges src into dst. Variables unknown to dst are copied; known
// variables fast-forward to the longer compatible history. The merge stops
// at the first conflicting variable, leaving dst unchanged for it, and
// returns the witness.
func pull(dst, src Globals) *Conflict {
	for _, name := range src.names() {
		srcVar := src[name]
		dstVar, ok := dst[name]
		if !ok {
			dst[name] = srcVar.clone()
			continue
		}
		if c1, c2, conflict := hasConflict(srcVar.History, dstVar.History); conflict {
			log.Debugf("A data race on '%s' was detected from commits %d and %d", name, c1, c2)
			return &Conflict{Var: name, C1: c1, C2: c2}
		}
		if len(srcVar.History) > len(dstVar.History) {
			log.Debugf("Fast-forward '%s' to value %d", name, srcVar.Val)
			dstVar.Val = srcVar.Val
			dstVar.History = append([]Commit(nil), srcVar.History...)
		}
	}
	return nil
}
