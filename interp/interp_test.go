package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxpl/gitmem/lang"
	"github.com/fxpl/gitmem/parser"
)

func mustParse(t *testing.T, src string) *lang.Block {
	t.Helper()
	block, err := parser.Parse(src)
	require.NoError(t, err)
	return block
}

func TestSequentialAssignmentCompletes(t *testing.T) {
	g := New(mustParse(t, "$r = 1; x = $r; assert x == 1;"))

	assert.Equal(t, 0, g.Run())
	require.Len(t, g.Threads, 1)
	assert.Equal(t, TermCompleted, g.Threads[0].Terminated)
	assert.Equal(t, 1, g.Threads[0].Globals["x"].Val)
}

func TestRacingWritesAreDetected(t *testing.T) {
	g := New(mustParse(t, "$t = spawn { x = 1; }; x = 2; join $t;"))

	assert.Equal(t, 1, g.Run())
	require.Len(t, g.Threads, 2)
	assert.Equal(t, TermDataRace, g.Threads[0].Terminated)
	assert.Equal(t, TermCompleted, g.Threads[1].Terminated)
}

func TestLockMediatedWritesDoNotRace(t *testing.T) {
	g := New(mustParse(t, `
		$t = spawn { lock m; x = 1; unlock m; };
		lock m;
		x = 2;
		unlock m;
		join $t;
	`))

	assert.Equal(t, 0, g.Run())
	for tid, thread := range g.Threads {
		assert.Equal(t, TermCompleted, thread.Terminated, "thread %d", tid)
	}
}

func TestUninitialisedGlobalRead(t *testing.T) {
	g := New(mustParse(t, "assert y == 0;"))

	assert.Equal(t, 1, g.Run())
	assert.Equal(t, TermUninitRead, g.Threads[0].Terminated)
}

func TestUninitialisedGlobalReadInAssignment(t *testing.T) {
	g := New(mustParse(t, "$r = y;"))

	assert.Equal(t, 1, g.Run())
	assert.Equal(t, TermUninitRead, g.Threads[0].Terminated)
}

func TestAssertionFailure(t *testing.T) {
	g := New(mustParse(t, "$r = 1; assert $r == 2;"))

	assert.Equal(t, 1, g.Run())
	assert.Equal(t, TermAssertFailure, g.Threads[0].Terminated)
}

func TestInequalityEvaluates(t *testing.T) {
	g := New(mustParse(t, "$r = 1; assert $r != 2;"))
	assert.Equal(t, 0, g.Run())

	g = New(mustParse(t, "$r = 3; assert $r != 3;"))
	assert.Equal(t, 1, g.Run())
	assert.Equal(t, TermAssertFailure, g.Threads[0].Terminated)
}

func TestAdditionSumsLeftToRight(t *testing.T) {
	g := New(mustParse(t, "$a = 1 + 2 + 3; assert $a == 6;"))

	assert.Equal(t, 0, g.Run())
}

func TestIfElseTakesBranches(t *testing.T) {
	g := New(mustParse(t, `
		$c = 1;
		if ($c == 1) { x = 10; } else { x = 20; }
		assert x == 10;
		if ($c == 2) { y = 1; } else { y = 2; }
		assert y == 2;
	`))

	assert.Equal(t, 0, g.Run())
}

func TestUnlockOfUnheldLock(t *testing.T) {
	g := New(mustParse(t, "unlock m;"))

	assert.Equal(t, 1, g.Run())
	assert.Equal(t, TermUnlock, g.Threads[0].Terminated)
}

func TestUnlockOfLockHeldByOther(t *testing.T) {
	// Thread 1 tries to unlock a lock thread 0 holds.
	g := New(mustParse(t, `
		lock m;
		$t = spawn { unlock m; };
		join $t;
	`))

	g.Run()
	assert.Equal(t, TermUnlock, g.Threads[1].Terminated)
}

func TestLockUnlockPreservesView(t *testing.T) {
	g := New(mustParse(t, "x = 7; lock m; unlock m; assert x == 7;"))

	assert.Equal(t, 0, g.Run())
	assert.Equal(t, 7, g.Threads[0].Globals["x"].Val)
}

func TestJoinPullsJoineeView(t *testing.T) {
	g := New(mustParse(t, "$t = spawn { x = 1; }; join $t; assert x == 1;"))

	assert.Equal(t, 0, g.Run())
	assert.Equal(t, 1, g.Threads[0].Globals["x"].Val)
}

func TestSpawnedViewIsASnapshot(t *testing.T) {
	// The child starts with a copy of the parent's committed x, and the
	// ordering through join keeps histories compatible.
	g := New(mustParse(t, `
		x = 1;
		$t = spawn { assert x == 1; };
		join $t;
	`))

	assert.Equal(t, 0, g.Run())
}

func TestThreadIdsAreContiguous(t *testing.T) {
	g := New(mustParse(t, `
		$a = spawn { nop; };
		$b = spawn { nop; };
		join $a;
		join $b;
		assert $a == 1;
		assert $b == 2;
	`))

	assert.Equal(t, 0, g.Run())
	assert.Len(t, g.Threads, 3)
}

func TestJoinTargetEvaluatesOnce(t *testing.T) {
	// The join target contains a spawn; re-entering the blocked join must
	// not spawn again.
	g := New(mustParse(t, "join spawn { lock m; unlock m; };"))

	assert.Equal(t, 0, g.Run())
	assert.Len(t, g.Threads, 2)
}

func TestJoinOnMissingThreadDeadlocks(t *testing.T) {
	g := New(mustParse(t, "join 5;"))

	assert.Equal(t, 1, g.Run())
	assert.Equal(t, TermNone, g.Threads[0].Terminated)
}

func TestJoinOnErroredThreadBlocks(t *testing.T) {
	g := New(mustParse(t, `
		$t = spawn { assert 1 == 2; };
		join $t;
	`))

	assert.Equal(t, 1, g.Run())
	assert.Equal(t, TermAssertFailure, g.Threads[1].Terminated)
	// the joiner is stuck, not terminated
	assert.Equal(t, TermNone, g.Threads[0].Terminated)
}

func TestJoinOnErroredThreadPropagatesWhenConfigured(t *testing.T) {
	JoinErroredBlocks = false
	defer func() { JoinErroredBlocks = true }()

	g := New(mustParse(t, `
		$t = spawn { assert 1 == 2; };
		join $t;
	`))

	assert.Equal(t, 1, g.Run())
	assert.Equal(t, TermAssertFailure, g.Threads[0].Terminated)
}

func TestDeadlockOnCrossedLocks(t *testing.T) {
	// With round-robin scheduling, thread 0 takes b and thread 1 takes a,
	// then each waits on the other.
	g := New(mustParse(t, `
		$t = spawn { lock a; lock b; unlock b; unlock a; };
		lock b;
		lock a;
		unlock a;
		unlock b;
		join $t;
	`))

	assert.Equal(t, 1, g.Run())
	assert.Equal(t, TermNone, g.Threads[0].Terminated)
	assert.Equal(t, TermNone, g.Threads[1].Terminated)
}

func TestCommitIdsStrictlyIncrease(t *testing.T) {
	g := New(mustParse(t, "x = 1; y = 2; lock m; x = 3; unlock m;"))

	assert.Equal(t, 0, g.Run())
	gx := g.Threads[0].Globals["x"]
	gy := g.Threads[0].Globals["y"]
	require.Equal(t, []Commit{0, 2}, gx.History)
	require.Equal(t, []Commit{1}, gy.History)
}

func TestHistoriesHoldNoDuplicates(t *testing.T) {
	g := New(mustParse(t, `
		$t = spawn { lock m; x = 1; unlock m; };
		lock m;
		x = 2;
		unlock m;
		join $t;
	`))

	require.Equal(t, 0, g.Run())
	for _, thread := range g.Threads {
		for name, global := range thread.Globals {
			seen := map[Commit]bool{}
			for _, c := range global.History {
				assert.False(t, seen[c], "duplicate commit %d in history of %s", c, name)
				seen[c] = true
			}
		}
	}
}

func TestTerminalStateEquality(t *testing.T) {
	block := mustParse(t, "x = 1; $r = 2;")

	a := New(block)
	b := New(block)
	require.Equal(t, 0, a.Run())
	require.Equal(t, 0, b.Run())
	assert.True(t, a.Equal(b))

	// A different program over the same shape is a different state.
	c := New(mustParse(t, "x = 2; $r = 2;"))
	require.Equal(t, 0, c.Run())
	assert.False(t, a.Equal(c))
}

func TestRestartResetsAllState(t *testing.T) {
	block := mustParse(t, "$t = spawn { nop; }; join $t;")

	g := New(block)
	require.Equal(t, 0, g.Run())
	require.Len(t, g.Threads, 2)

	g = New(block)
	assert.Len(t, g.Threads, 1)
	assert.Equal(t, 0, g.Run())
}
