package interp

import (
	log "github.com/sirupsen/logrus"

	"github.com/fxpl/gitmem/lang"
)

// evalExpr evaluates an expression against a thread's view. Reads and
// spawns have side effects: a global read records a Read event sourced
// from the commit it observed, and a spawn appends a new thread.
func (g *GlobalContext) evalExpr(e lang.Expr, t *Thread) (int, Termination) {
	switch e := e.(type) {
	case *lang.Reg:
		val, ok := t.Locals[e.Name]
		if !ok {
			return 0, TermUninitRead
		}
		return val, TermNone

	case *lang.Var:
		global, ok := t.Globals[e.Name]
		if !ok {
			return 0, TermUninitRead
		}
		// The read observes the pending commit if there is one, otherwise
		// the last committed write.
		var observed Commit
		if global.Commit != nil {
			observed = *global.Commit
		} else {
			observed = global.History[len(global.History)-1]
		}
		g.rec.RecordRead(t.cursor, e.Name, global.Val, uint64(observed))
		return global.Val, TermNone

	case *lang.Const:
		return e.Value, TermNone

	case *lang.Add:
		sum := 0
		for _, term := range e.Terms {
			val, status := g.evalExpr(term, t)
			if status != TermNone {
				return 0, status
			}
			sum += val
		}
		return sum, TermNone

	case *lang.Eq:
		return g.evalComparison(e.LHS, e.RHS, false, t)

	case *lang.Neq:
		return g.evalComparison(e.LHS, e.RHS, true, t)

	case *lang.Spawn:
		// Spawning is a sync point: commit the caller's pending writes and
		// hand the child a snapshot of the caller's view.
		t.Globals.commit()
		tid := len(g.Threads)
		cursor := g.rec.StartThread(tid)
		g.Threads = append(g.Threads, &Thread{
			Locals:  map[string]int{},
			Globals: t.Globals.clone(),
			Block:   e.Body,
			cursor:  cursor,
		})
		g.rec.RecordSpawn(t.cursor, tid, cursor)
		log.Debugf("Spawned thread %d", tid)
		return tid, TermNone
	}
	panic("unknown expression")
}

// evalComparison evaluates both sides left to right and returns 1 or 0.
// Inequality is negated integer equality.
func (g *GlobalContext) evalComparison(lhs, rhs lang.Expr, negate bool, t *Thread) (int, Termination) {
	lv, status := g.evalExpr(lhs, t)
	if status != TermNone {
		return 0, status
	}
	rv, status := g.evalExpr(rhs, t)
	if status != TermNone {
		return 0, status
	}
	if (lv == rv) != negate {
		return 1, TermNone
	}
	return 0, TermNone
}
