// Package graph records the execution DAG the engine produces as a side
// effect of running a program. Every thread contributes a chain of event
// nodes linked by program-order Next edges; spawn, join and lock nodes add
// cross-thread synchronisation references, reads point back at the write
// they observed, and a detected race adds conflict references to the two
// divergent writes.
package graph

// Node is one event in the execution graph.
type Node interface {
	// NextNode returns the program-order successor within the same thread,
	// or nil for the last node of a thread.
	NextNode() Node
	setNext(Node)
}

// base carries the program-order edge shared by all node kinds.
type base struct {
	next Node
}

func (b *base) NextNode() Node { return b.next }
func (b *base) setNext(n Node) { b.next = n }

// Conflict names the variable of a detected race and references the two
// divergent writes.
type Conflict struct {
	Var     string
	Sources [2]Node
}

// Start heads each thread's chain.
type Start struct {
	base
	TID int
}

// End terminates a thread's chain, whether it completed or crashed.
type End struct {
	base
}

// Write is a global-variable write together with its commit id.
type Write struct {
	base
	Var    string
	Value  int
	Commit uint64
}

// Read observes a global variable. Source is the Write whose commit the
// read saw.
type Read struct {
	base
	Var    string
	Value  int
	Commit uint64
	Source Node
}

// Spawn references the Start node of the spawned thread.
type Spawn struct {
	base
	TID     int
	Spawned Node
}

// Join references the tail of the joined thread. A non-nil Conflict marks
// the join as the point where a race surfaced.
type Join struct {
	base
	TID      int
	Joinee   Node
	Conflict *Conflict
}

// Lock references the Unlock it is ordered after, if any.
type Lock struct {
	base
	Var          string
	OrderedAfter Node
	Conflict     *Conflict
}

type Unlock struct {
	base
	Var string
}

// AssertionFailure records the failing condition text.
type AssertionFailure struct {
	base
	Cond string
}

// Pending is a transient placeholder for the next statement of a live
// thread. It hangs off the current tail without becoming the tail, so it is
// discarded as soon as the thread advances.
type Pending struct {
	base
	Statement string
}
