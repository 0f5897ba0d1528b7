package parser

import (
	"fmt"

	"github.com/fxpl/gitmem/lang"
)

// ifStmt is the structured conditional as parsed. It only exists between
// parsing and lowering; the interpreter steps the flattened cond/jump form.
type ifStmt struct {
	lang.Nop
	cond lang.Expr
	then *lang.Block
	els  *lang.Block
}

func (s *ifStmt) String() string {
	return fmt.Sprintf("if (%s) { ... } else { ... }", s.cond.String())
}

// lower flattens every if/else into the enclosing statement list:
//
//	cond e, |then|+2    // on zero, jump over then and the trailing jump
//	then...
//	jump |else|+1
//	else...
//
// Spawn bodies are lowered in place; the Block pointers of spawn bodies are
// preserved so block identity survives lowering.
func lower(block *lang.Block) *lang.Block {
	var stmts []lang.Stmt
	for _, s := range block.Stmts {
		stmts = append(stmts, lowerStmt(s)...)
	}
	block.Stmts = stmts
	return block
}

func lowerStmt(s lang.Stmt) []lang.Stmt {
	switch s := s.(type) {
	case *ifStmt:
		then := lower(s.then).Stmts
		els := lower(s.els).Stmts
		out := []lang.Stmt{&lang.Cond{Test: lowerExpr(s.cond), Delta: len(then) + 2}}
		out = append(out, then...)
		out = append(out, &lang.Jump{Delta: len(els) + 1})
		out = append(out, els...)
		return out
	case *lang.Assign:
		s.RHS = lowerExpr(s.RHS)
	case *lang.Join:
		s.Target = lowerExpr(s.Target)
	case *lang.Assert:
		s.Cond = lowerExpr(s.Cond)
	}
	return []lang.Stmt{s}
}

func lowerExpr(e lang.Expr) lang.Expr {
	switch e := e.(type) {
	case *lang.Spawn:
		lower(e.Body)
	case *lang.Eq:
		e.LHS = lowerExpr(e.LHS)
		e.RHS = lowerExpr(e.RHS)
	case *lang.Neq:
		e.LHS = lowerExpr(e.LHS)
		e.RHS = lowerExpr(e.RHS)
	case *lang.Add:
		for i, t := range e.Terms {
			e.Terms[i] = lowerExpr(t)
		}
	}
	return e
}
