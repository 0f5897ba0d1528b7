package explore

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxpl/gitmem/interp"
	"github.com/fxpl/gitmem/lang"
	"github.com/fxpl/gitmem/parser"
)

func mustParse(t *testing.T, src string) *lang.Block {
	t.Helper()
	block, err := parser.Parse(src)
	require.NoError(t, err)
	return block
}

// terminalValues collects the distinct values a global takes in the root
// thread across all recorded terminal states.
func terminalValues(results []result, name string) []int {
	var vals []int
	for _, r := range results {
		if g, ok := r.state.Threads[0].Globals[name]; ok {
			found := false
			for _, v := range vals {
				if v == g.Val {
					found = true
				}
			}
			if !found {
				vals = append(vals, g.Val)
			}
		}
	}
	sort.Ints(vals)
	return vals
}

func TestSequentialProgramHasOneFinalState(t *testing.T) {
	finals, failing, deadlocked := explore(mustParse(t, "$r = 1; x = $r; assert x == 1;"))

	assert.Len(t, finals, 1)
	assert.Empty(t, failing)
	assert.Empty(t, deadlocked)
}

func TestLockMediatedWritesYieldBothOrders(t *testing.T) {
	finals, failing, deadlocked := explore(mustParse(t, `
		$t = spawn { lock m; x = 1; unlock m; };
		lock m;
		x = 2;
		unlock m;
		join $t;
	`))

	assert.Empty(t, failing)
	assert.Empty(t, deadlocked)
	assert.Equal(t, []int{1, 2}, terminalValues(finals, "x"))
}

func TestRacingWritesFail(t *testing.T) {
	_, failing, _ := explore(mustParse(t, "$t = spawn { x = 1; }; x = 2; join $t;"))

	require.NotEmpty(t, failing)
	race := false
	for _, r := range failing {
		for _, thread := range r.state.Threads {
			if thread.Terminated == interp.TermDataRace {
				race = true
			}
		}
	}
	assert.True(t, race)
}

func TestCrossedLocksDeadlock(t *testing.T) {
	_, _, deadlocked := explore(mustParse(t, `
		$t = spawn { lock a; lock b; unlock b; unlock a; };
		lock b;
		lock a;
		unlock a;
		unlock b;
		join $t;
	`))

	assert.NotEmpty(t, deadlocked)
}

func TestWellOrderedLocksDoNotDeadlock(t *testing.T) {
	_, failing, deadlocked := explore(mustParse(t, `
		$t = spawn { lock a; lock b; unlock b; unlock a; };
		lock a;
		lock b;
		unlock b;
		unlock a;
		join $t;
	`))

	assert.Empty(t, failing)
	assert.Empty(t, deadlocked)
}

func TestTracesStartWithRootThread(t *testing.T) {
	finals, _, _ := explore(mustParse(t, "$t = spawn { nop; }; join $t;"))

	require.NotEmpty(t, finals)
	for _, r := range finals {
		require.NotEmpty(t, r.trace)
		assert.Equal(t, 0, r.trace[0])
	}
}

func TestStateDedupCollapsesCommitOrder(t *testing.T) {
	// Both lock orders leave x = 1 in every thread that saw it, so the
	// schedules collapse to a single terminal state.
	finals, failing, deadlocked := explore(mustParse(t, `
		$t = spawn { lock m; x = 1; unlock m; };
		lock m;
		unlock m;
		join $t;
	`))

	assert.Empty(t, failing)
	assert.Empty(t, deadlocked)
	assert.Len(t, finals, 1)
	assert.Equal(t, []int{1}, terminalValues(finals, "x"))
}

func TestRunReportsFailuresAndWritesGraphs(t *testing.T) {
	dir := t.TempDir()
	out := interp.GraphOutput{Path: filepath.Join(dir, "race.dot"), Format: interp.FormatDot}
	var stdout bytes.Buffer

	code := Run(mustParse(t, "$t = spawn { x = 1; }; x = 2; join $t;"), out, &stdout)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "trace(s) with errors")

	written, err := os.ReadFile(filepath.Join(dir, "race_000.dot"))
	require.NoError(t, err)
	assert.Contains(t, string(written), "digraph G {")
}

func TestRunSucceedsOnCleanProgram(t *testing.T) {
	dir := t.TempDir()
	out := interp.GraphOutput{Path: filepath.Join(dir, "ok.dot"), Format: interp.FormatDot}
	var stdout bytes.Buffer

	code := Run(mustParse(t, "x = 1; assert x == 1;"), out, &stdout)

	assert.Equal(t, 0, code)
	assert.Empty(t, stdout.String())
}

func TestRunReportsDeadlocks(t *testing.T) {
	dir := t.TempDir()
	out := interp.GraphOutput{Path: filepath.Join(dir, "dl.dot"), Format: interp.FormatDot}
	var stdout bytes.Buffer

	code := Run(mustParse(t, `
		$t = spawn { lock a; lock b; unlock b; unlock a; };
		lock b;
		lock a;
		unlock a;
		unlock b;
		join $t;
	`), out, &stdout)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "leading to deadlock")
}
