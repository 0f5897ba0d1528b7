// Package parser turns gitmem source text into the statement tree defined
// by package lang. Parsing runs in four stages: lexing, recursive-descent
// parsing, a register reference check, and a lowering pass that flattens
// structured if/else into cond/jump so the interpreter can index statements
// by program counter.
package parser

import (
	"os"

	"github.com/pkg/errors"

	"github.com/fxpl/gitmem/lang"
)

// Parse parses a whole program and runs all front-end passes.
func Parse(src string) (*lang.Block, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	block, err := p.parseBlock(tokEOF)
	if err != nil {
		return nil, err
	}
	if err := checkRefs(block, nil); err != nil {
		return nil, err
	}
	return lower(block), nil
}

// ParseFile reads and parses the program at path.
func ParseFile(path string) (*lang.Block, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	block, err := Parse(string(src))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return block, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(kind tokenKind) bool {
	if p.peek().kind == kind {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, errors.Errorf("%d:%d: expected %s, found %s", t.line, t.col, kind, t)
	}
	return p.next(), nil
}

func (p *parser) errorAt(t token, msg string) error {
	return errors.Errorf("%d:%d: %s", t.line, t.col, msg)
}

// keyword reports whether an identifier token is a reserved word.
func keyword(t token) bool {
	if t.kind != tokIdent {
		return false
	}
	switch t.text {
	case "nop", "spawn", "join", "lock", "unlock", "assert", "if", "else":
		return true
	}
	return false
}

// parseBlock parses statements until the given closing token. A block must
// contain at least one statement. Statements are terminated by ';', except
// that the ';' after an if/else is optional.
func (p *parser) parseBlock(until tokenKind) (*lang.Block, error) {
	block := &lang.Block{}
	for p.peek().kind != until {
		if p.peek().kind == tokEOF {
			return nil, p.errorAt(p.peek(), "expected "+until.String())
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, stmt)

		if _, braced := stmt.(*ifStmt); braced {
			// trailing ';' after '}' is allowed but not required
			p.accept(tokSemi)
			continue
		}
		if p.peek().kind == until {
			return nil, p.errorAt(p.peek(), "expected ';' after statement")
		}
		if _, err := p.expect(tokSemi); err != nil {
			return nil, err
		}
	}
	if len(block.Stmts) == 0 {
		return nil, p.errorAt(p.peek(), "expected statement")
	}
	p.next()
	return block, nil
}

func (p *parser) parseStmt() (lang.Stmt, error) {
	t := p.peek()
	switch {
	case t.kind == tokIdent && t.text == "nop":
		p.next()
		return &lang.Nop{}, nil

	case t.kind == tokIdent && t.text == "join":
		p.next()
		target, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		return &lang.Join{Target: target}, nil

	case t.kind == tokIdent && t.text == "lock":
		p.next()
		name, err := p.parseVarName()
		if err != nil {
			return nil, err
		}
		return &lang.Lock{Name: name}, nil

	case t.kind == tokIdent && t.text == "unlock":
		p.next()
		name, err := p.parseVarName()
		if err != nil {
			return nil, err
		}
		return &lang.Unlock{Name: name}, nil

	case t.kind == tokIdent && t.text == "assert":
		p.next()
		cond, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		return &lang.Assert{Cond: cond}, nil

	case t.kind == tokIdent && t.text == "if":
		return p.parseIf()

	case t.kind == tokReg || (t.kind == tokIdent && !keyword(t)):
		return p.parseAssign()
	}
	return nil, p.errorAt(t, "expected statement, found "+t.String())
}

func (p *parser) parseVarName() (string, error) {
	t := p.peek()
	if t.kind != tokIdent || keyword(t) {
		return "", p.errorAt(t, "expected lock name, found "+t.String())
	}
	p.next()
	return t.text, nil
}

func (p *parser) parseAssign() (lang.Stmt, error) {
	t := p.next()
	var lhs lang.Expr
	if t.kind == tokReg {
		lhs = &lang.Reg{Name: t.text}
	} else {
		lhs = &lang.Var{Name: t.text}
	}
	if _, err := p.expect(tokAssign); err != nil {
		return nil, err
	}
	rhs, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return &lang.Assign{LHS: lhs, RHS: rhs}, nil
}

func (p *parser) parseIf() (lang.Stmt, error) {
	p.next() // if
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	then, err := p.parseBlock(tokRBrace)
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind != tokIdent || t.text != "else" {
		return nil, p.errorAt(t, "expected 'else', found "+t.String())
	}
	p.next()
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	els, err := p.parseBlock(tokRBrace)
	if err != nil {
		return nil, err
	}
	return &ifStmt{cond: cond, then: then, els: els}, nil
}

// parseCondition parses an assert or if condition, which must be an
// equality or inequality.
func (p *parser) parseCondition() (lang.Expr, error) {
	t := p.peek()
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	switch expr.(type) {
	case *lang.Eq, *lang.Neq:
		return expr, nil
	}
	return nil, p.errorAt(t, "expected condition")
}

// parseExpr parses a comparison-level expression.
func (p *parser) parseExpr() (lang.Expr, error) {
	lhs, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	switch p.peek().kind {
	case tokEq:
		p.next()
		rhs, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		return &lang.Eq{LHS: lhs, RHS: rhs}, nil
	case tokNeq:
		p.next()
		rhs, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		return &lang.Neq{LHS: lhs, RHS: rhs}, nil
	}
	return lhs, nil
}

func (p *parser) parseSum() (lang.Expr, error) {
	first, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	terms := []lang.Expr{first}
	for p.accept(tokPlus) {
		next, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		terms = append(terms, next)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return &lang.Add{Terms: terms}, nil
}

func (p *parser) parseAtom() (lang.Expr, error) {
	t := p.peek()
	switch {
	case t.kind == tokReg:
		p.next()
		return &lang.Reg{Name: t.text}, nil

	case t.kind == tokConst:
		p.next()
		v := 0
		for _, r := range t.text {
			v = v*10 + int(r-'0')
		}
		return &lang.Const{Value: v}, nil

	case t.kind == tokIdent && t.text == "spawn":
		p.next()
		if _, err := p.expect(tokLBrace); err != nil {
			return nil, err
		}
		body, err := p.parseBlock(tokRBrace)
		if err != nil {
			return nil, err
		}
		return &lang.Spawn{Body: body}, nil

	case t.kind == tokIdent && !keyword(t):
		p.next()
		return &lang.Var{Name: t.text}, nil

	case t.kind == tokLParen:
		p.next()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return expr, nil
	}
	return nil, p.errorAt(t, "expected expression, found "+t.String())
}
