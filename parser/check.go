package parser

import (
	"github.com/pkg/errors"

	"github.com/fxpl/gitmem/lang"
)

// scope tracks the registers assigned so far in a block and its enclosing
// blocks. Registers must be assigned before use.
type scope struct {
	assigned map[string]bool
	parent   *scope
}

func (s *scope) defined(name string) bool {
	for sc := s; sc != nil; sc = sc.parent {
		if sc.assigned[name] {
			return true
		}
	}
	return false
}

// checkRefs rejects reads of registers with no preceding assignment. This
// runs on the structured tree, before lowering. Globals are not checked:
// reading an unwritten global is a runtime error because another thread
// may have published it.
func checkRefs(block *lang.Block, parent *scope) error {
	sc := &scope{assigned: map[string]bool{}, parent: parent}
	for _, stmt := range block.Stmts {
		switch s := stmt.(type) {
		case *lang.Assign:
			if err := checkExpr(s.RHS, sc); err != nil {
				return err
			}
			if reg, ok := s.LHS.(*lang.Reg); ok {
				sc.assigned[reg.Name] = true
			}
		case *lang.Join:
			if err := checkExpr(s.Target, sc); err != nil {
				return err
			}
		case *lang.Assert:
			if err := checkExpr(s.Cond, sc); err != nil {
				return err
			}
		case *ifStmt:
			if err := checkExpr(s.cond, sc); err != nil {
				return err
			}
			if err := checkRefs(s.then, sc); err != nil {
				return err
			}
			if err := checkRefs(s.els, sc); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkExpr(e lang.Expr, sc *scope) error {
	switch e := e.(type) {
	case *lang.Reg:
		if !sc.defined(e.Name) {
			return errors.Errorf("register $%s has not been assigned", e.Name)
		}
	case *lang.Spawn:
		return checkRefs(e.Body, sc)
	case *lang.Eq:
		if err := checkExpr(e.LHS, sc); err != nil {
			return err
		}
		return checkExpr(e.RHS, sc)
	case *lang.Neq:
		if err := checkExpr(e.LHS, sc); err != nil {
			return err
		}
		return checkExpr(e.RHS, sc)
	case *lang.Add:
		for _, t := range e.Terms {
			if err := checkExpr(t, sc); err != nil {
				return err
			}
		}
	}
	return nil
}
