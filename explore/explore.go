// Package explore enumerates every scheduling of a program and collects
// the distinct terminal states. The space of schedulings is a tree: a path
// from the root is a trace, with each node naming the thread scheduled at
// that step. Exploration is depth-first with replay; the engine carries no
// undo, so backing out of a branch means rebuilding the state from scratch
// and re-running the surviving prefix.
package explore

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/fxpl/gitmem/interp"
	"github.com/fxpl/gitmem/lang"
)

// traceNode is one point in the scheduling tree. complete means this
// branch and every sibling ordering under it has been exhausted, so later
// passes will not walk into it again.
type traceNode struct {
	tid      int
	complete bool
	children []*traceNode
}

func (n *traceNode) extend(tid int) *traceNode {
	child := &traceNode{tid: tid}
	n.children = append(n.children, child)
	return child
}

func (n *traceNode) isLeaf() bool {
	return len(n.children) == 0
}

// result is one distinct terminal state: the engine state at the end of
// the trace and the trace that produced it.
type result struct {
	state *interp.GlobalContext
	trace []int
}

// explore walks the whole scheduling tree. Children are extended smallest
// untried thread id first; replay follows the last child while it is not
// complete. Terminal states are deduplicated with interp's terminal-state
// equality, which ignores commit histories and matches threads by block.
func explore(block *lang.Block) (finals, failing, deadlocked []result) {
	seen := func(g *interp.GlobalContext) bool {
		for _, r := range finals {
			if r.state.Equal(g) {
				return true
			}
		}
		return false
	}

	root := &traceNode{tid: 0}
	cursor := root
	gctx := interp.New(block)
	trace := []int{0}
	log.Debugf("==== Thread %d ====", cursor.tid)
	gctx.ProgressThread(cursor.tid)

	for !root.complete {
		// Replay the current path: follow the last child while it has
		// unexplored orderings left.
		for len(cursor.children) > 0 && !cursor.children[len(cursor.children)-1].complete {
			cursor = cursor.children[len(cursor.children)-1]
			trace = append(trace, cursor.tid)
			log.Debugf("==== Thread %d (replay) ====", cursor.tid)
			gctx.ProgressThread(cursor.tid)
		}

		// Extend the frontier with the smallest untried thread id that
		// terminates or makes progress.
		startIdx := 0
		if len(cursor.children) > 0 {
			startIdx = cursor.children[len(cursor.children)-1].tid + 1
		}
		madeProgress := false
		for i := startIdx; i < len(gctx.Threads) && !madeProgress; i++ {
			if gctx.Threads[i].Terminated != interp.TermNone {
				continue
			}
			log.Debugf("==== Thread %d ====", i)
			prog, term := gctx.ProgressThread(i)
			if term != interp.TermNone {
				madeProgress = true
				cursor = cursor.extend(i)
				trace = append(trace, i)
				if term != interp.TermCompleted {
					// An errored thread ends the trace; no ordering that
					// follows it can change the outcome.
					log.Debugf("Thread %d terminated with an error", i)
					cursor.complete = true
				}
			} else if prog == interp.Progressed {
				madeProgress = true
				cursor = cursor.extend(i)
				trace = append(trace, i)
			}
		}

		if !madeProgress {
			cursor.complete = true
		}

		allCompleted := true
		anyCrashed := false
		for _, t := range gctx.Threads {
			if t.Terminated != interp.TermCompleted {
				allCompleted = false
			}
			if t.Terminated.IsError() {
				anyCrashed = true
			}
		}
		isDeadlock := !allCompleted && !madeProgress && cursor.isLeaf()

		if allCompleted || anyCrashed || isDeadlock {
			if !seen(gctx) {
				r := result{state: gctx, trace: append([]int(nil), trace...)}
				finals = append(finals, r)
				if anyCrashed {
					failing = append(failing, r)
				} else if isDeadlock {
					deadlocked = append(deadlocked, r)
				}
			}
			cursor.complete = true
		}

		if cursor.complete && !root.complete {
			// Back out and replay the remaining prefix from a fresh state.
			log.Debug("Restarting trace...")
			gctx = interp.New(block)
			cursor = root
			trace = trace[:0]
			trace = append(trace, 0)
			log.Debugf("==== Thread %d (replay) ====", cursor.tid)
			gctx.ProgressThread(cursor.tid)
		}
	}

	return finals, failing, deadlocked
}

// Run explores all schedulings of block. Failing and deadlocked traces
// print to stdout, each with its execution graph written under an indexed
// variant of out. Returns the process exit code: non-zero if any trace
// fails or deadlocks.
func Run(block *lang.Block, out interp.GraphOutput, stdout io.Writer) int {
	finals, failing, deadlocked := explore(block)

	log.Debugf("Found a total of %d trace(s) with distinct final states:", len(finals))
	for _, r := range finals {
		log.Debug(formatTrace(r.trace))
	}

	idx := 0
	writeGraphs := func(results []result) {
		for _, r := range results {
			if err := out.WithIndex(idx).Write(r.state); err != nil {
				log.Errorf("%v", err)
			}
			idx++
		}
	}

	if len(failing) > 0 {
		fmt.Fprintf(stdout, "Found %d trace(s) with errors:\n", len(failing))
		for _, r := range failing {
			fmt.Fprintln(stdout, formatTrace(r.trace))
		}
		writeGraphs(failing)
	}

	if len(deadlocked) > 0 {
		fmt.Fprintf(stdout, "Found %d trace(s) leading to deadlock:\n", len(deadlocked))
		for _, r := range deadlocked {
			fmt.Fprintln(stdout, formatTrace(r.trace))
		}
		writeGraphs(deadlocked)
	}

	if len(failing) == 0 && len(deadlocked) == 0 {
		return 0
	}
	return 1
}

func formatTrace(trace []int) string {
	parts := make([]string, len(trace))
	for i, tid := range trace {
		parts[i] = fmt.Sprintf("%d", tid)
	}
	return strings.Join(parts, " ")
}
