package parse

import (
	"fmt"
	"strconv"

	"github.com/slowlang/jmm/compiler/ast"
)

type (
	tkind int

	token struct {
		kind tkind
		text string
		pos  ast.Pos
	}

	SyntaxError struct {
		Pos ast.Pos
		Msg string
	}
)

const (
	tEOF tkind = iota
	tIdent
	tInt
	tKeyword
	tPunct
)

var keywords = map[string]bool{
	"import":  true,
	"class":   true,
	"extends": true,
	"public":  true,
	"static":  true,
	"void":    true,
	"return":  true,
	"int":     true,
	"boolean": true,
	"if":      true,
	"else":    true,
	"while":   true,
	"true":    true,
	"false":   true,
	"this":    true,
	"new":     true,
}

func scan(b []byte) (toks []token, err error) {
	line, col := 1, 1

	adv := func(n int) { col += n }

	i := 0
	for i < len(b) {
		c := b[i]

		switch {
		case c == '\n':
			line++
			col = 1
			i++
			continue
		case c == ' ' || c == '\t' || c == '\r':
			i++
			adv(1)
			continue
		case c == '/' && i+1 < len(b) && b[i+1] == '/':
			for i < len(b) && b[i] != '\n' {
				i++
			}

			continue
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			st := ast.Pos{Line: line, Col: col}
			i += 2
			adv(2)

			for {
				if i+1 >= len(b) {
					return nil, SyntaxError{Pos: st, Msg: "unterminated comment"}
				}

				if b[i] == '*' && b[i+1] == '/' {
					i += 2
					adv(2)
					break
				}

				if b[i] == '\n' {
					line++
					col = 1
				} else {
					adv(1)
				}

				i++
			}

			continue
		}

		pos := ast.Pos{Line: line, Col: col}
		st := i

		switch {
		case isLetter(c):
			i++
			for i < len(b) && (isLetter(b[i]) || isDigit(b[i])) {
				i++
			}

			text := string(b[st:i])
			kind := tIdent

			if keywords[text] {
				kind = tKeyword
			}

			toks = append(toks, token{kind: kind, text: text, pos: pos})
		case isDigit(c):
			i++
			for i < len(b) && isDigit(b[i]) {
				i++
			}

			toks = append(toks, token{kind: tInt, text: string(b[st:i]), pos: pos})
		case c == '&':
			if i+1 >= len(b) || b[i+1] != '&' {
				return nil, SyntaxError{Pos: pos, Msg: "unexpected character '&'"}
			}

			i += 2
			toks = append(toks, token{kind: tPunct, text: "&&", pos: pos})
		case isPunct(c):
			i++
			toks = append(toks, token{kind: tPunct, text: string(c), pos: pos})
		default:
			return nil, SyntaxError{Pos: pos, Msg: fmt.Sprintf("unexpected character %q", c)}
		}

		adv(i - st)
	}

	toks = append(toks, token{kind: tEOF, pos: ast.Pos{Line: line, Col: col}})

	return toks, nil
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isPunct(c byte) bool {
	switch c {
	case '{', '}', '(', ')', '[', ']', ';', ',', '.', '=', '<', '+', '-', '*', '/', '!':
		return true
	}

	return false
}

func (t token) String() string {
	switch t.kind {
	case tEOF:
		return "end of file"
	case tInt:
		return "integer " + t.text
	case tIdent:
		return "identifier " + strconv.Quote(t.text)
	default:
		return strconv.Quote(t.text)
	}
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Col, e.Msg)
}
