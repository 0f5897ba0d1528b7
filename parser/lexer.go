package parser

import (
	"fmt"
	"unicode"

	"github.com/pkg/errors"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokReg
	tokConst
	tokSemi
	tokAssign
	tokEq
	tokNeq
	tokPlus
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokReg:
		return "register"
	case tokConst:
		return "constant"
	case tokSemi:
		return "';'"
	case tokAssign:
		return "'='"
	case tokEq:
		return "'=='"
	case tokNeq:
		return "'!='"
	case tokPlus:
		return "'+'"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	}
	return "unknown token"
}

type token struct {
	kind tokenKind
	text string // identifier or constant text; registers exclude the '$'
	line int
	col  int
}

func (t token) String() string {
	switch t.kind {
	case tokIdent, tokConst:
		return fmt.Sprintf("'%s'", t.text)
	case tokReg:
		return fmt.Sprintf("'$%s'", t.text)
	}
	return t.kind.String()
}

// lex splits the source into tokens. Whitespace separates tokens and '//'
// starts a comment running to end of line.
func lex(src string) ([]token, error) {
	var toks []token
	line, col := 1, 1
	runes := []rune(src)

	advance := func(i int) int {
		if runes[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		return i + 1
	}

	add := func(kind tokenKind, text string, startCol int) {
		toks = append(toks, token{kind: kind, text: text, line: line, col: startCol})
	}

	isIdentStart := func(r rune) bool { return r == '_' || unicode.IsLetter(r) }
	isIdentPart := func(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

	i := 0
	for i < len(runes) {
		r := runes[i]
		startLine, startCol := line, col
		switch {
		case unicode.IsSpace(r):
			i = advance(i)

		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i = advance(i)
			}

		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j = advance(j)
			}
			add(tokConst, string(runes[i:j]), startCol)
			i = j

		case r == '$':
			i = advance(i)
			if i >= len(runes) || !isIdentStart(runes[i]) {
				return nil, errors.Errorf("%d:%d: expected register name after '$'", startLine, startCol)
			}
			j := i
			for j < len(runes) && isIdentPart(runes[j]) {
				j = advance(j)
			}
			toks = append(toks, token{kind: tokReg, text: string(runes[i:j]), line: startLine, col: startCol})
			i = j

		case isIdentStart(r):
			j := i
			for j < len(runes) && isIdentPart(runes[j]) {
				j = advance(j)
			}
			add(tokIdent, string(runes[i:j]), startCol)
			i = j

		case r == ';':
			add(tokSemi, "", startCol)
			i = advance(i)

		case r == '=':
			if i+1 < len(runes) && runes[i+1] == '=' {
				add(tokEq, "", startCol)
				i = advance(advance(i))
			} else {
				add(tokAssign, "", startCol)
				i = advance(i)
			}

		case r == '!':
			if i+1 < len(runes) && runes[i+1] == '=' {
				add(tokNeq, "", startCol)
				i = advance(advance(i))
			} else {
				return nil, errors.Errorf("%d:%d: unexpected character '!'", startLine, startCol)
			}

		case r == '+':
			add(tokPlus, "", startCol)
			i = advance(i)

		case r == '{':
			add(tokLBrace, "", startCol)
			i = advance(i)

		case r == '}':
			add(tokRBrace, "", startCol)
			i = advance(i)

		case r == '(':
			add(tokLParen, "", startCol)
			i = advance(i)

		case r == ')':
			add(tokRParen, "", startCol)
			i = advance(i)

		default:
			return nil, errors.Errorf("%d:%d: unexpected character %q", startLine, startCol, r)
		}
	}

	toks = append(toks, token{kind: tokEOF, line: line, col: col})
	return toks, nil
}
