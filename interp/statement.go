package interp

import (
	log "github.com/sirupsen/logrus"

	"github.com/fxpl/gitmem/lang"
)

// JoinErroredBlocks selects the policy for joining a thread that
// terminated with an error. When true (the default) the joiner keeps
// waiting and the scheduler eventually classifies the schedule as stuck;
// when false the joinee's termination propagates to the joiner.
var JoinErroredBlocks = true

// runStatement executes one statement for thread tid. It returns the
// program-counter delta: positive to advance, zero when the statement is
// blocked waiting for another thread. A non-TermNone termination ends the
// thread.
func (g *GlobalContext) runStatement(stmt lang.Stmt, t *Thread, tid int) (int, Termination) {
	switch s := stmt.(type) {
	case *lang.Nop:
		log.Debug("Nop")
		return 1, TermNone

	case *lang.Jump:
		return s.Delta, TermNone

	case *lang.Cond:
		val, status := g.evalExpr(s.Test, t)
		if status != TermNone {
			return 0, status
		}
		if val != 0 {
			return 1, TermNone
		}
		return s.Delta, TermNone

	case *lang.Assign:
		val, status := g.evalExpr(s.RHS, t)
		if status != TermNone {
			return 0, status
		}
		switch lhs := s.LHS.(type) {
		case *lang.Reg:
			// Registers are thread-local and freely reassignable.
			log.Debugf("Set register '$%s' to %d", lhs.Name, val)
			t.Locals[lhs.Name] = val
		case *lang.Var:
			// A global write gets a fresh commit id; the id stays pending
			// until the next sync point promotes it into the history.
			global, ok := t.Globals[lhs.Name]
			if !ok {
				global = &Global{}
				t.Globals[lhs.Name] = global
			}
			commit := g.nextCommit()
			global.Val = val
			global.Commit = &commit
			log.Debugf("Set global '%s' to %d with id %d", lhs.Name, val, commit)
			g.rec.RecordWrite(t.cursor, lhs.Name, val, uint64(commit))
		}
		return 1, TermNone

	case *lang.Join:
		return g.runJoin(s, t)

	case *lang.Lock:
		return g.runLock(s.Name, t, tid)

	case *lang.Unlock:
		return g.runUnlock(s.Name, t, tid)

	case *lang.Assert:
		val, status := g.evalExpr(s.Cond, t)
		if status != TermNone {
			return 0, status
		}
		if val == 0 {
			log.Debugf("Assertion failed: %s", s.Cond)
			g.rec.RecordAssertionFailure(t.cursor, s.Cond.String())
			return 0, TermAssertFailure
		}
		log.Debugf("Assertion passed: %s", s.Cond)
		return 1, TermNone
	}
	panic("unknown statement")
}

// runJoin waits for the target thread to complete, then commits both views
// and pulls the joinee's view into the joiner. The target expression is
// evaluated once per program run: it may contain a spawn, and the joiner
// is re-entered every time the scheduler tries the blocked thread.
func (g *GlobalContext) runJoin(s *lang.Join, t *Thread) (int, Termination) {
	tid, ok := g.cache[s.Target]
	if !ok {
		val, status := g.evalExpr(s.Target, t)
		if status != TermNone {
			return 0, status
		}
		g.cache[s.Target] = val
		tid = val
	}

	if tid < 0 || tid >= len(g.Threads) {
		// Joining a thread that does not exist waits forever; the
		// scheduler reports the deadlock.
		log.Debugf("Waiting on nonexistent thread %d", tid)
		return 0, TermNone
	}

	joinee := g.Threads[tid]
	if joinee.Terminated == TermNone {
		log.Debugf("Waiting on thread %d", tid)
		return 0, TermNone
	}
	if joinee.Terminated != TermCompleted {
		if JoinErroredBlocks {
			log.Debugf("Waiting on errored thread %d", tid)
			return 0, TermNone
		}
		return 0, joinee.Terminated
	}

	t.Globals.commit()
	joinee.Globals.commit()
	log.Debugf("Pulling from thread %d", tid)
	if conflict := pull(t.Globals, joinee.Globals); conflict != nil {
		gc := g.rec.ConflictBetween(conflict.Var, uint64(conflict.C1), uint64(conflict.C2))
		g.rec.RecordJoin(t.cursor, tid, joinee.cursor.Tail(), gc)
		return 0, TermDataRace
	}
	g.rec.RecordJoin(t.cursor, tid, joinee.cursor.Tail(), nil)
	return 1, TermNone
}

// runLock acquires a lock, creating it on first use, and pulls the last
// unlocker's published view into the caller.
func (g *GlobalContext) runLock(name string, t *Thread, tid int) (int, Termination) {
	l := g.lock(name)
	if l.Owner != nil {
		log.Debugf("Waiting for lock %s owned by %d", name, *l.Owner)
		return 0, TermNone
	}

	owner := tid
	l.Owner = &owner
	t.Globals.commit()
	if conflict := pull(t.Globals, l.Globals); conflict != nil {
		gc := g.rec.ConflictBetween(conflict.Var, uint64(conflict.C1), uint64(conflict.C2))
		g.rec.RecordLock(t.cursor, name, l.Last, gc)
		return 0, TermDataRace
	}
	g.rec.RecordLock(t.cursor, name, l.Last, nil)
	log.Debugf("Locked %s", name)
	return 1, TermNone
}

// runUnlock publishes the caller's committed view into the lock and
// releases it. Nobody can have changed the lock's view since the caller
// acquired it, so the copy replaces it wholesale.
func (g *GlobalContext) runUnlock(name string, t *Thread, tid int) (int, Termination) {
	t.Globals.commit()
	l := g.lock(name)
	if l.Owner == nil || *l.Owner != tid {
		return 0, TermUnlock
	}

	l.Globals = t.Globals.clone()
	l.Owner = nil
	l.Last = g.rec.RecordUnlock(t.cursor, name)
	log.Debugf("Unlocked %s", name)
	return 1, TermNone
}
