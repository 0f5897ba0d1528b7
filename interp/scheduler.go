package interp

import (
	log "github.com/sirupsen/logrus"

	"github.com/fxpl/gitmem/lang"
)

// atSync reports whether a live thread is parked on a sync statement.
func (t *Thread) atSync() bool {
	return t.Terminated == TermNone && t.PC < len(t.Block.Stmts) && lang.IsSyncing(t.Block.Stmts[t.PC])
}

// runThreadToSync executes statements from the thread's current pc until
// it reaches a sync point, blocks, or terminates. A sync statement that is
// not the first statement of this slice suspends the thread before
// executing.
func (g *GlobalContext) runThreadToSync(tid int) (Progress, Termination) {
	t := g.Threads[tid]
	if t.Terminated != TermNone {
		return NoProgress, t.Terminated
	}

	first := true
	for t.PC < len(t.Block.Stmts) {
		stmt := t.Block.Stmts[t.PC]

		if !first && lang.IsSyncing(stmt) {
			g.rec.Pending(t.cursor, stmt.String())
			return Progressed, TermNone
		}

		delta, term := g.runStatement(stmt, t, tid)
		if term != TermNone {
			t.Terminated = term
			g.rec.RecordEnd(t.cursor)
			return NoProgress, term
		}

		if delta == 0 {
			g.rec.Pending(t.cursor, stmt.String())
			if first {
				return NoProgress, TermNone
			}
			return Progressed, TermNone
		}

		t.PC += delta
		first = false
	}

	t.Terminated = TermCompleted
	g.rec.RecordEnd(t.cursor)
	return NoProgress, TermCompleted
}

// ProgressThread runs a thread to its next sync point, then advances any
// threads it spawned to their first sync points as well, so a burst of
// spawns all become schedulable in one turn. Progress is ORed across the
// burst.
func (g *GlobalContext) ProgressThread(tid int) (Progress, Termination) {
	before := len(g.Threads)
	prog, term := g.runThreadToSync(tid)

	anyProgress := term == TermNone && prog == Progressed
	for i := before; i < len(g.Threads); i++ {
		anyProgress = true
		if !g.Threads[i].atSync() && g.Threads[i].Terminated == TermNone {
			log.Debugf("==== Thread %d (spawn) ====", i)
			g.ProgressThread(i)
		}
	}

	if term != TermNone {
		return prog, term
	}
	if anyProgress {
		return Progressed, TermNone
	}
	return NoProgress, TermNone
}

// RunThreadsToSync runs one scheduler round: every live thread, in id
// order, advances to its next sync point. It reports whether any thread
// progressed and whether every thread has now terminated. Threads spawned
// during the round are picked up before it ends, because spawns always
// append.
func (g *GlobalContext) RunThreadsToSync() (Progress, bool) {
	log.Debug("-----------------------")
	allTerminated := true
	anyProgress := NoProgress
	for i := 0; i < len(g.Threads); i++ {
		t := g.Threads[i]
		if t.Terminated != TermNone {
			continue
		}
		log.Debugf("==== t%d ====", i)
		prog, term := g.runThreadToSync(i)
		if term != TermNone || prog == Progressed {
			anyProgress = Progressed
		}
		if t.Terminated == TermNone {
			allTerminated = false
		}
	}
	return anyProgress, allTerminated
}

// Run drives all threads until every one has terminated or no thread can
// make progress (deadlock), then reports one summary line per thread.
// Returns the process exit code: non-zero if any thread misbehaved or is
// stuck.
func (g *GlobalContext) Run() int {
	for {
		prog, done := g.RunThreadsToSync()
		if done {
			break
		}
		if prog == NoProgress {
			break
		}
	}
	log.Debug("----------- execution complete -----------")

	exceptionDetected := false
	for i, t := range g.Threads {
		switch t.Terminated {
		case TermCompleted:
			log.Infof("Thread %d terminated normally", i)
		case TermUnlock:
			log.Infof("Thread %d unlocked a lock it does not own", i)
			exceptionDetected = true
		case TermDataRace:
			log.Infof("Thread %d encountered a data-race", i)
			exceptionDetected = true
		case TermAssertFailure:
			log.Infof("Thread %d failed an assertion", i)
			exceptionDetected = true
		case TermUninitRead:
			log.Infof("Thread %d read an uninitialised value", i)
			exceptionDetected = true
		case TermNone:
			exceptionDetected = true
			g.rec.RecordEnd(t.cursor)
			log.Infof("Thread %d is stuck", i)
		}
	}

	if exceptionDetected {
		return 1
	}
	return 0
}
