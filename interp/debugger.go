package interp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/fxpl/gitmem/lang"
)

// The interactive driver lets the user pick which thread to schedule at
// each sync point. Every command maps to exactly one scheduler transition.

type commandKind int

const (
	cmdStep    commandKind = iota // run a chosen thread to its next sync point
	cmdFinish                     // run the rest of the program
	cmdRestart                    // start over from the beginning
	cmdList                       // list all threads, completed included
	cmdPrint                      // write the execution graph now
	cmdGraph                      // toggle writing the graph after each step
	cmdQuit                       // leave the interpreter
	cmdInfo                       // show available commands
	cmdSkip                       // no-op, used for invalid input
)

type command struct {
	kind commandKind
	arg  int
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseCommand(input string, out io.Writer) command {
	cmd := strings.TrimSpace(input)
	switch {
	case allDigits(cmd):
		tid, _ := strconv.Atoi(cmd)
		return command{kind: cmdStep, arg: tid}

	case strings.HasPrefix(cmd, "s") && (len(cmd) == 1 || !unicode.IsLetter(rune(cmd[1]))):
		arg := strings.TrimSpace(cmd[1:])
		if allDigits(arg) {
			tid, _ := strconv.Atoi(arg)
			return command{kind: cmdStep, arg: tid}
		}
		fmt.Fprintln(out, "Expected thread id")
		return command{kind: cmdSkip}

	case cmd == "q":
		return command{kind: cmdQuit}
	case cmd == "r":
		return command{kind: cmdRestart}
	case cmd == "f":
		return command{kind: cmdFinish}
	case cmd == "l":
		return command{kind: cmdList}
	case cmd == "g":
		return command{kind: cmdGraph}
	case cmd == "p":
		return command{kind: cmdPrint}
	case cmd == "?":
		return command{kind: cmdInfo}
	}
	fmt.Fprintf(out, "Unknown command: %s\n", input)
	return command{kind: cmdSkip}
}

// stepThread performs the Step command. The returned message describes
// what happened; the bool reports whether the thread views should print
// afterwards. Uninitialised reads and bad unlocks are fatal here, to keep
// the interactive loop predictable.
func (g *GlobalContext) stepThread(tid int) (string, bool, error) {
	if tid < 0 || tid >= len(g.Threads) {
		return fmt.Sprintf("Invalid thread id: %d", tid), false, nil
	}

	t := g.Threads[tid]
	if t.Terminated != TermNone {
		if t.Terminated == TermCompleted {
			return fmt.Sprintf("Thread %d has terminated normally", tid), false, nil
		}
		return fmt.Sprintf("Thread %d has terminated with an error", tid), false, nil
	}

	prog, term := g.ProgressThread(tid)
	if term == TermNone {
		if prog == NoProgress {
			stmt := t.Block.Stmts[t.PC]
			return fmt.Sprintf("Thread %d is blocking on '%s'", tid, stmt), false, nil
		}
		return "", true, nil
	}

	switch term {
	case TermCompleted:
		return fmt.Sprintf("Thread %d terminated normally", tid), true, nil
	case TermDataRace:
		return fmt.Sprintf("Thread %d encountered a data race and was terminated", tid), false, nil
	case TermAssertFailure:
		cond := ""
		if a, ok := t.Block.Stmts[t.PC].(*lang.Assert); ok {
			cond = a.Cond.String()
		}
		return fmt.Sprintf("Thread %d failed assertion '%s' and was terminated", tid, cond), false, nil
	case TermUninitRead:
		return "", false, errors.Errorf("Thread %d read an uninitialised variable", tid)
	case TermUnlock:
		return "", false, errors.Errorf("Thread %d unlocked an unlocked lock", tid)
	}
	return "", false, errors.Errorf("Thread %d has an unhandled termination state", tid)
}

// Interactive reads scheduling commands from in until quit. The execution
// graph is rewritten after each effective step unless toggled off.
func Interactive(block *lang.Block, out GraphOutput, in io.Reader, stdout io.Writer) error {
	g := New(block)

	scanner := bufio.NewScanner(in)
	prevThreads := 1
	cmd := command{kind: cmdList}
	msg := ""
	printGraphs := true
	if err := out.Write(g); err != nil {
		return err
	}

	writeGraph := func() error {
		if !printGraphs {
			return nil
		}
		if err := out.Write(g); err != nil {
			return err
		}
		log.Debugf("Execution graph written to %s", out.Path)
		return nil
	}

	for cmd.kind != cmdQuit {
		if cmd.kind != cmdSkip || prevThreads != len(g.Threads) {
			fmt.Fprint(stdout, g.Show(cmd.kind == cmdList))
		}
		prevThreads = len(g.Threads)

		if msg != "" {
			fmt.Fprintln(stdout, msg)
			msg = ""
		}

		fmt.Fprint(stdout, "> ")
		if !scanner.Scan() {
			break
		}
		if input := scanner.Text(); strings.TrimSpace(input) != "" {
			cmd = parseCommand(input, stdout)
		}

		switch cmd.kind {
		case cmdStep:
			stepMsg, show, err := g.stepThread(cmd.arg)
			if err != nil {
				return err
			}
			msg = stepMsg
			if !show {
				cmd = command{kind: cmdSkip}
			}
			if err := writeGraph(); err != nil {
				return err
			}

		case cmdFinish:
			if g.Run() == 0 {
				msg = "Program finished successfully"
			} else {
				msg = "Program terminated with an error"
			}
			if err := writeGraph(); err != nil {
				return err
			}

		case cmdRestart:
			g = New(block)
			cmd = command{kind: cmdList}
			if err := writeGraph(); err != nil {
				return err
			}

		case cmdGraph:
			printGraphs = !printGraphs
			verb := "won't"
			if printGraphs {
				verb = "will"
			}
			fmt.Fprintf(stdout, "graphs %s print automatically\n", verb)
			cmd = command{kind: cmdSkip}

		case cmdPrint:
			if err := out.Write(g); err != nil {
				return err
			}
			log.Debugf("Execution graph written to %s", out.Path)
			cmd = command{kind: cmdSkip}

		case cmdInfo:
			fmt.Fprintln(stdout, "Commands:")
			fmt.Fprintln(stdout, "s [tid] - Step to next sync point in thread")
			fmt.Fprintln(stdout, "[tid] - Step to next sync point in thread")
			fmt.Fprintln(stdout, "f - Finish the program")
			fmt.Fprintln(stdout, "r - Restart the program")
			fmt.Fprintln(stdout, "l - List all threads")
			fmt.Fprintln(stdout, "g - Toggle printing the execution graph at sync points")
			fmt.Fprintln(stdout, "p - Print the execution graph at the current sync point")
			fmt.Fprintln(stdout, "q - Quit the interpreter")
			fmt.Fprintln(stdout, "? - Display this help message")
			cmd = command{kind: cmdSkip}

		case cmdList, cmdSkip, cmdQuit:
			// no scheduler transition
		}
	}

	return scanner.Err()
}
