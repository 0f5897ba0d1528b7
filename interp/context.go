package interp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fxpl/gitmem/graph"
	"github.com/fxpl/gitmem/lang"
)

// Termination classifies how a thread stopped. The zero value means the
// thread is still running.
type Termination int

const (
	TermNone Termination = iota
	TermCompleted
	TermDataRace
	TermUnlock
	TermAssertFailure
	TermUninitRead
)

func (t Termination) String() string {
	switch t {
	case TermNone:
		return "running"
	case TermCompleted:
		return "completed"
	case TermDataRace:
		return "datarace-exception"
	case TermUnlock:
		return "unlock-exception"
	case TermAssertFailure:
		return "assert-failure-exception"
	case TermUninitRead:
		return "unassigned-variable-read-exception"
	}
	return "unknown"
}

// IsError reports whether the termination is exceptional. TermNone is not
// an error: the thread has not terminated at all.
func (t Termination) IsError() bool {
	return t != TermNone && t != TermCompleted
}

// Progress is the transient outcome of one scheduling slice. It is kept
// distinct from Termination: a completed thread is a persistent state, not
// a step outcome.
type Progress bool

const (
	NoProgress Progress = false
	Progressed Progress = true
)

// Thread is a logical coroutine: a private view, the statement block it
// executes, an explicit program counter, and its position in the
// execution graph.
type Thread struct {
	Locals     map[string]int
	Globals    Globals
	Block      *lang.Block
	PC         int
	Terminated Termination
	cursor     *graph.Cursor
}

// sameState compares two threads for terminal-state equality. Histories
// and commit ids are ignored so that schedules differing only in commit
// order collapse to one state.
func (t *Thread) sameState(other *Thread) bool {
	if len(t.Globals) != len(other.Globals) {
		return false
	}
	for name, g := range t.Globals {
		og, ok := other.Globals[name]
		if !ok || g.Val != og.Val {
			return false
		}
	}
	if len(t.Locals) != len(other.Locals) {
		return false
	}
	for name, v := range t.Locals {
		ov, ok := other.Locals[name]
		if !ok || v != ov {
			return false
		}
	}
	return t.Block == other.Block && t.PC == other.PC && t.Terminated == other.Terminated
}

// Lock is a named lock: an optional owner and a copy of the view the most
// recent unlocker published. Last is the unlocker's Unlock node, so the
// next acquirer's Lock node can be ordered after it.
type Lock struct {
	Globals Globals
	Owner   *int
	Last    graph.Node
}

// GlobalContext is the whole process state: all threads (indexable by id),
// all locks, the join-target cache, the commit counter, and the execution
// graph recorder.
type GlobalContext struct {
	Threads []*Thread
	Locks   map[string]*Lock

	rec   *graph.Recorder
	cache map[lang.Expr]int
	uuid  Commit
}

// New creates the root thread (id 0) over the given block. All state is
// rebuilt from scratch: restarting the engine means calling New again.
func New(block *lang.Block) *GlobalContext {
	g := &GlobalContext{
		Locks: map[string]*Lock{},
		rec:   graph.NewRecorder(),
		cache: map[lang.Expr]int{},
	}
	g.Threads = []*Thread{{
		Locals:  map[string]int{},
		Globals: Globals{},
		Block:   block,
		cursor:  g.rec.StartThread(0),
	}}
	return g
}

// nextCommit draws a fresh commit id. The counter is the only source of
// ids, which keeps runs deterministic.
func (g *GlobalContext) nextCommit() Commit {
	id := g.uuid
	g.uuid++
	return id
}

func (g *GlobalContext) lock(name string) *Lock {
	l, ok := g.Locks[name]
	if !ok {
		l = &Lock{Globals: Globals{}}
		g.Locks[name] = l
	}
	return l
}

// Root returns the head of the execution graph: thread 0's Start node.
func (g *GlobalContext) Root() graph.Node {
	return g.Threads[0].cursor.Head()
}

// Equal compares terminal states. Threads are matched by the identity of
// the block they execute rather than by id, because two schedules may
// spawn the same threads in different orders.
func (g *GlobalContext) Equal(other *GlobalContext) bool {
	if len(g.Threads) != len(other.Threads) || len(g.Locks) != len(other.Locks) {
		return false
	}
	for _, t := range g.Threads {
		var match *Thread
		for _, ot := range other.Threads {
			if ot.Block == t.Block {
				match = ot
				break
			}
		}
		if match == nil || !t.sameState(match) {
			return false
		}
	}
	for name, l := range g.Locks {
		ol, ok := other.Locks[name]
		if !ok {
			return false
		}
		switch {
		case l.Owner == nil && ol.Owner == nil:
		case l.Owner != nil && ol.Owner != nil && *l.Owner == *ol.Owner:
		default:
			return false
		}
	}
	return true
}

// Rendering for the interactive driver. Maps print in sorted order so
// transcripts are stable.

func showGlobal(b *strings.Builder, name string, g *Global) {
	pending := "_"
	if g.Commit != nil {
		pending = fmt.Sprintf("%d", *g.Commit)
	}
	history := make([]string, len(g.History))
	for i, c := range g.History {
		history[i] = fmt.Sprintf("%d", c)
	}
	fmt.Fprintf(b, "%s = %d [%s; %s]\n", name, g.Val, pending, strings.Join(history, ", "))
}

func (t *Thread) show(b *strings.Builder, tid int) {
	fmt.Fprintf(b, "---- Thread %d\n", tid)
	if len(t.Locals) > 0 {
		regs := make([]string, 0, len(t.Locals))
		for name := range t.Locals {
			regs = append(regs, name)
		}
		sort.Strings(regs)
		for _, name := range regs {
			fmt.Fprintf(b, "$%s = %d\n", name, t.Locals[name])
		}
		b.WriteString("--\n")
	}
	if len(t.Globals) > 0 {
		for _, name := range t.Globals.names() {
			showGlobal(b, name, t.Globals[name])
		}
		b.WriteString("--\n")
	}
	for i, stmt := range t.Block.Stmts {
		marker := "   "
		if i == t.PC {
			marker = "-> "
		}
		text := strings.ReplaceAll(stmt.String(), "\n", "\n   ")
		fmt.Fprintf(b, "%s%s;\n", marker, text)
	}
	if t.PC == len(t.Block.Stmts) {
		b.WriteString("-> \n")
	}
}

func (l *Lock) show(b *strings.Builder, name string) {
	fmt.Fprintf(b, "%s: ", name)
	if l.Owner != nil {
		fmt.Fprintf(b, "held by thread %d", *l.Owner)
	} else {
		b.WriteString("<free>")
	}
	b.WriteString("\n")
	for _, v := range l.Globals.names() {
		showGlobal(b, v, l.Globals[v])
	}
}

// Show renders locks and non-completed threads; with all set, completed
// threads too.
func (g *GlobalContext) Show(all bool) string {
	var b strings.Builder
	showedAny := false
	for i, t := range g.Threads {
		if all || t.Terminated != TermCompleted {
			t.show(&b, i)
			b.WriteString("\n")
			showedAny = true
		}
	}
	if showedAny && len(g.Locks) > 0 {
		b.WriteString("---- Locks\n")
		names := make([]string, 0, len(g.Locks))
		for name := range g.Locks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			g.Locks[name].show(&b, name)
		}
		b.WriteString("--\n")
	}
	return b.String()
}
