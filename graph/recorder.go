package graph

// Recorder builds per-thread event chains and maintains the map from
// commit id to the Write node that produced it, so reads and conflicts can
// reference their source writes.
type Recorder struct {
	commits map[uint64]*Write
}

func NewRecorder() *Recorder {
	return &Recorder{commits: map[uint64]*Write{}}
}

// Cursor is a thread's position in the graph: the Start node heading its
// chain and the current tail.
type Cursor struct {
	head *Start
	tail Node
}

// StartThread creates the Start node for a new thread and returns its
// cursor.
func (r *Recorder) StartThread(tid int) *Cursor {
	start := &Start{TID: tid}
	return &Cursor{head: start, tail: start}
}

// Head returns the thread's Start node.
func (c *Cursor) Head() *Start { return c.head }

// Tail returns the last recorded node. Pending placeholders are not tails.
func (c *Cursor) Tail() Node { return c.tail }

// Append links n after the current tail and advances the tail.
func (r *Recorder) Append(c *Cursor, n Node) {
	c.tail.setNext(n)
	c.tail = n
}

// Pending parks a transient placeholder for the thread's next statement
// after the tail without advancing it; the next Append overwrites it.
func (r *Recorder) Pending(c *Cursor, statement string) {
	c.tail.setNext(&Pending{Statement: statement})
}

// SourceOf returns the Write node registered for a commit id, or nil.
func (r *Recorder) SourceOf(commit uint64) Node {
	if w, ok := r.commits[commit]; ok {
		return w
	}
	return nil
}

func (r *Recorder) RecordWrite(c *Cursor, name string, value int, commit uint64) {
	w := &Write{Var: name, Value: value, Commit: commit}
	r.Append(c, w)
	r.commits[commit] = w
}

func (r *Recorder) RecordRead(c *Cursor, name string, value int, commit uint64) {
	r.Append(c, &Read{Var: name, Value: value, Commit: commit, Source: r.SourceOf(commit)})
}

func (r *Recorder) RecordSpawn(c *Cursor, tid int, spawned *Cursor) {
	r.Append(c, &Spawn{TID: tid, Spawned: spawned.Head()})
}

func (r *Recorder) RecordJoin(c *Cursor, tid int, joinee Node, conflict *Conflict) {
	r.Append(c, &Join{TID: tid, Joinee: joinee, Conflict: conflict})
}

func (r *Recorder) RecordLock(c *Cursor, name string, after Node, conflict *Conflict) {
	r.Append(c, &Lock{Var: name, OrderedAfter: after, Conflict: conflict})
}

// RecordUnlock appends the Unlock node and returns it so the lock can
// remember its last unlocker.
func (r *Recorder) RecordUnlock(c *Cursor, name string) Node {
	u := &Unlock{Var: name}
	r.Append(c, u)
	return u
}

func (r *Recorder) RecordAssertionFailure(c *Cursor, cond string) {
	r.Append(c, &AssertionFailure{Cond: cond})
}

func (r *Recorder) RecordEnd(c *Cursor) {
	r.Append(c, &End{})
}

// ConflictBetween builds a Conflict referencing the writes behind the two
// divergent commit ids.
func (r *Recorder) ConflictBetween(name string, c1, c2 uint64) *Conflict {
	return &Conflict{Var: name, Sources: [2]Node{r.SourceOf(c1), r.SourceOf(c2)}}
}
