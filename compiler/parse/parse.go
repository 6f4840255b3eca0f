package parse

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jmm/compiler/ast"
	"github.com/slowlang/jmm/compiler/report"
)

type (
	State struct {
		toks []token
		i    int
	}
)

func ParseFile(ctx context.Context, name string) (*ast.File, report.List, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read file")
	}

	x, rep := Parse(ctx, data)

	return x, rep, nil
}

// Parse stops at the first syntax error and reports it.
func Parse(ctx context.Context, text []byte) (x *ast.File, rep report.List) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "parse", "size", len(text))
	defer func() {
		tr.Finish("reports", len(rep))
	}()

	toks, err := scan(text)
	if err == nil {
		s := &State{toks: toks}

		x, err = s.file()
	}

	var se SyntaxError
	if errors.As(err, &se) {
		rep.Errorf(report.Syntactic, se.Pos.Line, se.Pos.Col, "%s", se.Msg)

		return nil, rep
	}

	if err != nil {
		rep.Errorf(report.Syntactic, 0, 0, "%v", err)

		return nil, rep
	}

	return x, rep
}

func (s *State) file() (f *ast.File, err error) {
	f = &ast.File{Base: s.base()}

	for s.is("import") {
		imp, err := s.imp()
		if err != nil {
			return nil, err
		}

		f.Imports = append(f.Imports, imp)
	}

	f.Class, err = s.class()
	if err != nil {
		return nil, err
	}

	if s.peek().kind != tEOF {
		return nil, s.unexpected("end of file")
	}

	return f, nil
}

func (s *State) imp() (_ *ast.Import, err error) {
	imp := &ast.Import{Base: s.base()}
	s.next()

	for {
		id, err := s.ident()
		if err != nil {
			return nil, err
		}

		imp.Path = append(imp.Path, id)

		if !s.accept(".") {
			break
		}
	}

	if err = s.expect(";"); err != nil {
		return nil, err
	}

	return imp, nil
}

func (s *State) class() (_ *ast.Class, err error) {
	c := &ast.Class{Base: s.base()}

	if err = s.expect("class"); err != nil {
		return nil, err
	}

	if c.Name, err = s.ident(); err != nil {
		return nil, err
	}

	if s.accept("extends") {
		if c.Extends, err = s.ident(); err != nil {
			return nil, err
		}
	}

	if err = s.expect("{"); err != nil {
		return nil, err
	}

	for s.isVarDecl() {
		d, err := s.varDecl()
		if err != nil {
			return nil, err
		}

		c.Fields = append(c.Fields, d)
	}

	for s.is("public") {
		m, err := s.method()
		if err != nil {
			return nil, err
		}

		c.Methods = append(c.Methods, m)
	}

	if err = s.expect("}"); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *State) method() (m *ast.Method, err error) {
	m = &ast.Method{Base: s.base()}
	s.next() // public

	if s.accept("static") {
		m.Static = true
		m.Return = &ast.TypeExpr{Base: s.base(), Name: "void"}

		if err = s.expect("void"); err != nil {
			return nil, err
		}

		if m.Name, err = s.ident(); err != nil {
			return nil, err
		}

		if m.Name != "main" {
			return nil, SyntaxError{Pos: m.Pos, Msg: fmt.Sprintf("static method must be main, got %v", m.Name)}
		}

		if err = s.expect("("); err != nil {
			return nil, err
		}

		p := &ast.VarDecl{Base: s.base()}

		if p.Type, err = s.typ(); err != nil {
			return nil, err
		}

		if p.Type.Name != "String" || !p.Type.Array {
			return nil, SyntaxError{Pos: p.Pos, Msg: "main parameter must be String[]"}
		}

		if p.Name, err = s.ident(); err != nil {
			return nil, err
		}

		m.Params = append(m.Params, p)

		if err = s.expect(")"); err != nil {
			return nil, err
		}
	} else {
		if m.Return, err = s.typ(); err != nil {
			return nil, err
		}

		if m.Name, err = s.ident(); err != nil {
			return nil, err
		}

		if err = s.expect("("); err != nil {
			return nil, err
		}

		for !s.is(")") {
			if len(m.Params) != 0 {
				if err = s.expect(","); err != nil {
					return nil, err
				}
			}

			p := &ast.VarDecl{Base: s.base()}

			if p.Type, err = s.typ(); err != nil {
				return nil, err
			}

			if p.Name, err = s.ident(); err != nil {
				return nil, err
			}

			m.Params = append(m.Params, p)
		}

		s.next()
	}

	if err = s.expect("{"); err != nil {
		return nil, err
	}

	for s.isVarDecl() {
		d, err := s.varDecl()
		if err != nil {
			return nil, err
		}

		m.Locals = append(m.Locals, d)
	}

	for !s.is("}") && !s.is("return") {
		st, err := s.stmt()
		if err != nil {
			return nil, err
		}

		m.Body = append(m.Body, st)
	}

	if s.accept("return") {
		if !s.is(";") {
			if m.Result, err = s.expr(); err != nil {
				return nil, err
			}
		}

		if err = s.expect(";"); err != nil {
			return nil, err
		}
	}

	if err = s.expect("}"); err != nil {
		return nil, err
	}

	return m, nil
}

func (s *State) isVarDecl() bool {
	t := s.peek()

	switch {
	case t.kind == tKeyword && (t.text == "int" || t.text == "boolean"):
		return true
	case t.kind == tIdent:
		n := s.peekAt(1)

		return n.kind == tIdent || t.text == "String" && n.text == "["
	}

	return false
}

func (s *State) varDecl() (d *ast.VarDecl, err error) {
	d = &ast.VarDecl{Base: s.base()}

	if d.Type, err = s.typ(); err != nil {
		return nil, err
	}

	if d.Name, err = s.ident(); err != nil {
		return nil, err
	}

	if err = s.expect(";"); err != nil {
		return nil, err
	}

	return d, nil
}

func (s *State) typ() (*ast.TypeExpr, error) {
	t := s.peek()
	x := &ast.TypeExpr{Base: s.base(), Name: t.text}

	switch {
	case t.kind == tKeyword && (t.text == "int" || t.text == "boolean" || t.text == "void"):
	case t.kind == tIdent:
	default:
		return nil, s.unexpected("type")
	}

	s.next()

	if (x.Name == "int" || x.Name == "String") && s.accept("[") {
		if err := s.expect("]"); err != nil {
			return nil, err
		}

		x.Array = true
	}

	return x, nil
}

func (s *State) stmt() (_ ast.Stmt, err error) {
	b := s.base()
	t := s.peek()

	switch {
	case t.text == "{" && t.kind == tPunct:
		s.next()

		x := &ast.Block{Base: b}

		for !s.is("}") {
			st, err := s.stmt()
			if err != nil {
				return nil, err
			}

			x.Stmts = append(x.Stmts, st)
		}

		s.next()

		return x, nil
	case s.is("if"):
		s.next()

		x := &ast.If{Base: b}

		if x.Cond, err = s.paren(); err != nil {
			return nil, err
		}

		if x.Then, err = s.stmt(); err != nil {
			return nil, err
		}

		if err = s.expect("else"); err != nil {
			return nil, err
		}

		if x.Else, err = s.stmt(); err != nil {
			return nil, err
		}

		return x, nil
	case s.is("while"):
		s.next()

		x := &ast.While{Base: b}

		if x.Cond, err = s.paren(); err != nil {
			return nil, err
		}

		if x.Body, err = s.stmt(); err != nil {
			return nil, err
		}

		return x, nil
	case t.kind == tIdent && s.peekAt(1).text == "=":
		id := &ast.Ident{Base: b, Name: t.text}
		s.next()
		s.next()

		x := &ast.Assign{Base: b, Target: id}

		if x.Value, err = s.expr(); err != nil {
			return nil, err
		}

		if err = s.expect(";"); err != nil {
			return nil, err
		}

		return x, nil
	case t.kind == tIdent && s.peekAt(1).text == "[":
		save := s.i

		x, ok := s.arrayAssign()
		if ok {
			return x, nil
		}

		s.i = save
	}

	x := &ast.ExprStmt{Base: b}

	if x.X, err = s.expr(); err != nil {
		return nil, err
	}

	if err = s.expect(";"); err != nil {
		return nil, err
	}

	return x, nil
}

func (s *State) arrayAssign() (_ *ast.ArrayAssign, ok bool) {
	b := s.base()
	x := &ast.ArrayAssign{Base: b, Target: &ast.Ident{Base: b, Name: s.next().text}}
	s.next()

	var err error

	if x.Index, err = s.expr(); err != nil {
		return nil, false
	}

	if !s.accept("]") || !s.accept("=") {
		return nil, false
	}

	if x.Value, err = s.expr(); err != nil {
		return nil, false
	}

	if !s.accept(";") {
		return nil, false
	}

	return x, true
}

func (s *State) paren() (x ast.Expr, err error) {
	if err = s.expect("("); err != nil {
		return nil, err
	}

	if x, err = s.expr(); err != nil {
		return nil, err
	}

	if err = s.expect(")"); err != nil {
		return nil, err
	}

	return x, nil
}

var prec = map[string]int{
	"&&": 1,
	"<":  2,
	"+":  3,
	"-":  3,
	"*":  4,
	"/":  4,
}

func (s *State) expr() (ast.Expr, error) {
	return s.binary(1)
}

func (s *State) binary(min int) (x ast.Expr, err error) {
	if x, err = s.unary(); err != nil {
		return nil, err
	}

	for {
		t := s.peek()

		p, ok := prec[t.text]
		if !ok || t.kind != tPunct || p < min {
			return x, nil
		}

		s.next()

		r, err := s.binary(p + 1)
		if err != nil {
			return nil, err
		}

		x = &ast.Binary{Base: ast.Base{Pos: t.pos}, Op: ast.Op(t.text), Left: x, Right: r}
	}
}

func (s *State) unary() (x ast.Expr, err error) {
	if s.is("!") {
		b := s.base()
		s.next()

		if x, err = s.unary(); err != nil {
			return nil, err
		}

		return &ast.Not{Base: b, X: x}, nil
	}

	if x, err = s.primary(); err != nil {
		return nil, err
	}

	return s.postfix(x)
}

func (s *State) postfix(x ast.Expr) (_ ast.Expr, err error) {
	for {
		b := s.base()

		switch {
		case s.accept("["):
			ix := &ast.Index{Base: b, X: x}

			if ix.Index, err = s.expr(); err != nil {
				return nil, err
			}

			if err = s.expect("]"); err != nil {
				return nil, err
			}

			x = ix
		case s.accept("."):
			name, err := s.ident()
			if err != nil {
				return nil, err
			}

			if name == "length" && !s.is("(") {
				x = &ast.Length{Base: b, X: x}
				continue
			}

			c := &ast.Call{Base: b, Recv: x, Method: name}

			if err = s.expect("("); err != nil {
				return nil, err
			}

			for !s.is(")") {
				if len(c.Args) != 0 {
					if err = s.expect(","); err != nil {
						return nil, err
					}
				}

				a, err := s.expr()
				if err != nil {
					return nil, err
				}

				c.Args = append(c.Args, a)
			}

			s.next()

			x = c
		default:
			return x, nil
		}
	}
}

func (s *State) primary() (x ast.Expr, err error) {
	b := s.base()
	t := s.peek()

	switch {
	case t.kind == tInt:
		s.next()

		v, err := strconv.ParseInt(t.text, 10, 32)
		if err != nil {
			return nil, SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("integer literal out of range: %v", t.text)}
		}

		return &ast.IntLit{Base: b, Value: int32(v)}, nil
	case s.is("true"), s.is("false"):
		s.next()

		return &ast.BoolLit{Base: b, Value: t.text == "true"}, nil
	case s.is("this"):
		s.next()

		return &ast.This{Base: b}, nil
	case t.kind == tIdent:
		s.next()

		return &ast.Ident{Base: b, Name: t.text}, nil
	case s.is("("):
		return s.paren()
	case s.is("new"):
		s.next()

		if s.accept("int") {
			if err = s.expect("["); err != nil {
				return nil, err
			}

			x := &ast.NewArray{Base: b}

			if x.Len, err = s.expr(); err != nil {
				return nil, err
			}

			if err = s.expect("]"); err != nil {
				return nil, err
			}

			return x, nil
		}

		name, err := s.ident()
		if err != nil {
			return nil, err
		}

		if err = s.expect("("); err != nil {
			return nil, err
		}

		if err = s.expect(")"); err != nil {
			return nil, err
		}

		return &ast.NewObject{Base: b, Class: name}, nil
	}

	return nil, s.unexpected("expression")
}

func (s *State) peek() token { return s.toks[s.i] }

func (s *State) peekAt(d int) token {
	if s.i+d >= len(s.toks) {
		return s.toks[len(s.toks)-1]
	}

	return s.toks[s.i+d]
}

func (s *State) next() token {
	t := s.toks[s.i]

	if t.kind != tEOF {
		s.i++
	}

	return t
}

func (s *State) base() ast.Base {
	return ast.Base{Pos: s.peek().pos}
}

func (s *State) is(text string) bool {
	t := s.peek()

	return (t.kind == tKeyword || t.kind == tPunct) && t.text == text
}

func (s *State) accept(text string) bool {
	if !s.is(text) {
		return false
	}

	s.next()

	return true
}

func (s *State) expect(text string) error {
	if s.accept(text) {
		return nil
	}

	return s.unexpected(strconv.Quote(text))
}

func (s *State) ident() (string, error) {
	t := s.peek()
	if t.kind != tIdent {
		return "", s.unexpected("identifier")
	}

	s.next()

	return t.text, nil
}

func (s *State) unexpected(want string) error {
	t := s.peek()

	return SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected %v, got %v", want, t)}
}
