package analyze

import (
	"context"
	"fmt"

	"tlog.app/go/tlog"

	"github.com/slowlang/jmm/compiler/ast"
	"github.com/slowlang/jmm/compiler/report"
	"github.com/slowlang/jmm/compiler/sym"
	"github.com/slowlang/jmm/compiler/tp"
)

type (
	RefKind  int
	CallKind int

	Ref struct {
		Kind  RefKind
		Type  tp.Type
		Class string // for ClassRef
	}

	Call struct {
		Kind  CallKind
		Owner string // simple class name, "" if the receiver type is unknown

		Method *sym.Method // nil if assumed through an import
		Return tp.Type
	}

	// Info annotates the syntax tree without modifying it.
	Info struct {
		Types map[ast.Expr]tp.Type
		Hints map[ast.Expr]tp.Type
		Refs  map[*ast.Ident]Ref
		Calls map[*ast.Call]*Call
	}

	Result struct {
		File  *ast.File
		Table *sym.Table
		Info  *Info
	}

	checker struct {
		t    *sym.Table
		m    *sym.Method
		info *Info

		rep report.List
	}
)

const (
	Local RefKind = iota
	Param
	Field
	ClassRef
	Assumed
)

const (
	Static CallKind = iota
	Virtual
)

func Analyze(ctx context.Context, f *ast.File, t *sym.Table) (_ *Result, rep report.List) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "analyze")
	defer func() {
		tr.Finish("reports", len(rep), "errors", len(rep.Errors()))
	}()

	if f == nil || f.Class == nil || t == nil {
		rep.Errorf(report.Semantic, 0, 0, "malformed compilation unit")
		return nil, rep
	}

	c := &checker{
		t: t,
		info: &Info{
			Types: map[ast.Expr]tp.Type{},
			Hints: map[ast.Expr]tp.Type{},
			Refs:  map[*ast.Ident]Ref{},
			Calls: map[*ast.Call]*Call{},
		},
	}

	c.class(f.Class)

	if tr.If("dump_types") {
		for x, typ := range c.info.Types {
			tr.Printw("expr type", "line", x.Position().Line, "col", x.Position().Col, "node", fmt.Sprintf("%T", x), "type", typ)
		}
	}

	return &Result{File: f, Table: t, Info: c.info}, c.rep
}

func (c *checker) class(x *ast.Class) {
	if c.t.IsImported(x.Name) {
		c.errorf(x, "class %v conflicts with an imported class", x.Name)
	}

	switch {
	case x.Extends == "":
	case x.Extends == x.Name:
		c.errorf(x, "class %v cannot extend itself", x.Name)
	case !c.t.IsImported(x.Extends):
		c.errorf(x, "superclass %v is not imported", x.Extends)
	}

	for _, d := range x.Fields {
		c.declType(d.Type, false)
	}

	for _, d := range x.Methods {
		var m *sym.Method

		for _, cand := range c.t.MethodsNamed(d.Name) {
			if cand.Decl == d {
				m = cand
			}
		}

		if m == nil { // duplicate, reported by the table builder
			continue
		}

		c.method(m)
	}
}

func (c *checker) method(m *sym.Method) {
	c.m = m
	d := m.Decl

	c.declType(d.Return, true)

	for _, v := range append(d.Params[:len(d.Params):len(d.Params)], d.Locals...) {
		c.declType(v.Type, false)

		if _, ok := c.t.Field(v.Name); ok && !m.Static {
			c.rep.Warnf(report.Semantic, v.Pos.Line, v.Pos.Col, "%v shadows field %v", v.Name, v.Name)
		}
	}

	for _, s := range d.Body {
		c.stmt(s)
	}

	switch {
	case m.Return.IsVoid() && d.Result != nil:
		c.errorf(d.Result, "void method %v cannot return a value", m.Name)
		c.expr(d.Result)
	case !m.Return.IsVoid() && d.Result == nil:
		c.errorf(d, "missing return in method %v", m.Name)
	case d.Result != nil:
		rt := c.expr(d.Result)
		c.hint(d.Result, m.Return)

		if !c.assignable(m.Return, rt) {
			c.errorf(d.Result, "cannot return %v from method %v returning %v", rt, m.Name, m.Return)
		}
	}

	c.m = nil
}

func (c *checker) declType(x *ast.TypeExpr, ret bool) {
	t := tp.Named(x.Name, x.Array)

	switch {
	case t.IsVoid() && !ret:
		c.errorf(x, "variable cannot have type void")
	case t.Kind == tp.Class && !c.t.KnownClass(t.Class):
		c.errorf(x, "unknown type %v", t.Class)
	}
}

func (c *checker) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Block:
		for _, s := range s.Stmts {
			c.stmt(s)
		}
	case *ast.If:
		c.cond(s.Cond, "if")
		c.stmt(s.Then)
		c.stmt(s.Else)
	case *ast.While:
		c.cond(s.Cond, "while")
		c.stmt(s.Body)
	case *ast.Assign:
		lt := c.target(s.Target)
		rt := c.expr(s.Value)
		c.hint(s.Value, lt)

		if !c.assignable(lt, rt) {
			c.errorf(s, "cannot assign %v to %v of type %v", rt, s.Target.Name, lt)
		}
	case *ast.ArrayAssign:
		lt := c.target(s.Target)

		switch {
		case lt.IsUnknown():
			lt = tp.IntArray
			c.info.Hints[s.Target] = lt
		case !lt.IsArray():
			c.errorf(s, "%v of type %v is not an array", s.Target.Name, lt)
			lt = tp.UnknownType.ArrayOf()
		}

		c.index(s.Index)

		rt := c.expr(s.Value)
		c.hint(s.Value, lt.Elem())

		if !c.assignable(lt.Elem(), rt) {
			c.errorf(s, "cannot assign %v to element of %v", rt, lt)
		}
	case *ast.ExprStmt:
		c.expr(s.X)

		switch s.X.(type) {
		case *ast.Call, *ast.NewObject:
		default:
			c.rep.Warnf(report.Semantic, s.Pos.Line, s.Pos.Col, "expression result is not used")
		}
	default:
		c.errorf(s, "unsupported statement %T", s)
	}
}

func (c *checker) cond(x ast.Expr, what string) {
	t := c.expr(x)
	c.hint(x, tp.BoolType)

	if !t.IsUnknown() && t != tp.BoolType {
		c.errorf(x, "%v condition must be boolean, got %v", what, t)
	}
}

func (c *checker) index(x ast.Expr) {
	t := c.expr(x)
	c.hint(x, tp.IntType)

	if !t.IsUnknown() && t != tp.IntType {
		c.errorf(x, "array index must be int, got %v", t)
	}
}

// target resolves the left-hand side of an assignment.
func (c *checker) target(id *ast.Ident) tp.Type {
	r, ok := c.lookup(id)
	if !ok {
		c.errorf(id, "undeclared variable %v", id.Name)
		return tp.UnknownType
	}

	c.info.Refs[id] = r
	c.info.Types[id] = r.Type

	return r.Type
}

func (c *checker) lookup(id *ast.Ident) (Ref, bool) {
	m := c.m

	if v, ok := m.Var(id.Name); ok {
		k := Local
		if m.IsParam(id.Name) {
			k = Param
		}

		return Ref{Kind: k, Type: v.Type}, true
	}

	if f, ok := c.t.Field(id.Name); ok {
		if m.Static {
			c.errorf(id, "field %v cannot be referenced from static method %v", id.Name, m.Name)
		}

		return Ref{Kind: Field, Type: f.Type}, true
	}

	if c.t.SuperImported() && !m.Static {
		return Ref{Kind: Assumed, Type: tp.UnknownType}, true
	}

	return Ref{}, false
}

func (c *checker) expr(x ast.Expr) (t tp.Type) {
	defer func() {
		c.info.Types[x] = t
	}()

	switch x := x.(type) {
	case *ast.IntLit:
		return tp.IntType
	case *ast.BoolLit:
		return tp.BoolType
	case *ast.This:
		if c.m.Static {
			c.errorf(x, "this cannot be used in static method %v", c.m.Name)
		}

		return tp.ClassType(c.t.Class)
	case *ast.Ident:
		r, ok := c.lookup(x)
		if !ok {
			if c.t.KnownClass(x.Name) {
				c.errorf(x, "class %v used as a value", x.Name)
			} else {
				c.errorf(x, "undeclared identifier %v", x.Name)
			}

			return tp.UnknownType
		}

		c.info.Refs[x] = r

		return r.Type
	case *ast.Binary:
		return c.binary(x)
	case *ast.Not:
		t := c.expr(x.X)
		c.hint(x.X, tp.BoolType)

		if !t.IsUnknown() && t != tp.BoolType {
			c.errorf(x, "operator ! requires boolean, got %v", t)
		}

		return tp.BoolType
	case *ast.Index:
		t := c.expr(x.X)

		switch {
		case t.IsUnknown():
			c.hint(x.X, tp.IntArray)
			t = tp.IntArray
		case !t.IsArray():
			c.errorf(x, "cannot index %v", t)
			t = tp.UnknownType.ArrayOf()
		}

		c.index(x.Index)

		return t.Elem()
	case *ast.Length:
		t := c.expr(x.X)
		c.hint(x.X, tp.IntArray)

		if !t.IsUnknown() && !t.IsArray() {
			c.errorf(x, "length of non-array type %v", t)
		}

		return tp.IntType
	case *ast.NewArray:
		t := c.expr(x.Len)
		c.hint(x.Len, tp.IntType)

		if !t.IsUnknown() && t != tp.IntType {
			c.errorf(x, "array size must be int, got %v", t)
		}

		return tp.IntArray
	case *ast.NewObject:
		if !c.t.KnownClass(x.Class) {
			c.errorf(x, "unknown class %v", x.Class)
		}

		return tp.ClassType(x.Class)
	case *ast.Call:
		return c.call(x)
	default:
		c.errorf(x, "unsupported expression %T", x)
		return tp.UnknownType
	}
}

func (c *checker) binary(x *ast.Binary) tp.Type {
	var operand, result tp.Type

	switch x.Op {
	case ast.Add, ast.Sub, ast.Mul, ast.Div:
		operand, result = tp.IntType, tp.IntType
	case ast.Lt:
		operand, result = tp.IntType, tp.BoolType
	case ast.And:
		operand, result = tp.BoolType, tp.BoolType
	default:
		c.errorf(x, "unsupported operator %v", x.Op)
		return tp.UnknownType
	}

	l := c.expr(x.Left)
	r := c.expr(x.Right)

	c.hint(x.Left, operand)
	c.hint(x.Right, operand)

	if (!l.IsUnknown() && l != operand) || (!r.IsUnknown() && r != operand) {
		c.errorf(x, "operator %v requires %v operands, got %v and %v", x.Op, operand, l, r)
	}

	return result
}

func (c *checker) call(x *ast.Call) tp.Type {
	var recv tp.Type
	static := false

	if id, ok := x.Recv.(*ast.Ident); ok && c.t.KnownClass(id.Name) {
		if _, isVar := c.lookupQuiet(id.Name); !isVar {
			static = true
			recv = tp.ClassType(id.Name)

			c.info.Refs[id] = Ref{Kind: ClassRef, Type: recv, Class: id.Name}
			c.info.Types[id] = recv
		}
	}

	if !static {
		recv = c.expr(x.Recv)
	}

	args := make([]tp.Type, len(x.Args))
	for i, a := range x.Args {
		args[i] = c.expr(a)

		if args[i].IsVoid() {
			c.errorf(a, "void value used as an argument")
		}
	}

	assume := func(kind CallKind, owner string) tp.Type {
		c.info.Calls[x] = &Call{Kind: kind, Owner: owner, Return: tp.UnknownType}

		return tp.UnknownType
	}

	switch {
	case static && recv.Class != c.t.Class:
		return assume(Static, recv.Class)
	case recv.IsUnknown():
		return assume(Virtual, "")
	case !recv.IsClass():
		c.errorf(x, "cannot call method %v on %v", x.Method, recv)
		return tp.UnknownType
	case recv.Class != c.t.Class:
		return assume(Virtual, recv.Class)
	}

	m, ambiguous := c.resolve(x.Method, args)

	switch {
	case ambiguous:
		c.errorf(x, "ambiguous call %v", sym.Signature(x.Method, args))
		return tp.UnknownType
	case m == nil && c.t.SuperImported() && !static:
		return assume(Virtual, c.t.Class)
	case m == nil:
		c.errorf(x, "no applicable method %v in class %v", sym.Signature(x.Method, args), c.t.Class)
		return tp.UnknownType
	case static && !m.Static:
		c.errorf(x, "non-static method %v cannot be called on class %v", m.Signature(), c.t.Class)
	case !static && m.Static:
		c.errorf(x, "static method %v cannot be called on an instance", m.Signature())
	}

	kind := Virtual
	if m.Static {
		kind = Static
	}

	for i, a := range x.Args {
		c.hint(a, m.Params[i].Type)
	}

	c.info.Calls[x] = &Call{Kind: kind, Owner: c.t.Class, Method: m, Return: m.Return}

	return m.Return
}

func (c *checker) lookupQuiet(name string) (sym.Symbol, bool) {
	if v, ok := c.m.Var(name); ok {
		return v, true
	}

	return c.t.Field(name)
}

// resolve selects the overload of name applicable to args.
func (c *checker) resolve(name string, args []tp.Type) (m *sym.Method, ambiguous bool) {
	var exact, ok []*sym.Method

candidates:
	for _, cand := range c.t.MethodsNamed(name) {
		if len(cand.Params) != len(args) {
			continue
		}

		same := true

		for i, p := range cand.Params {
			if !c.assignable(p.Type, args[i]) {
				continue candidates
			}

			same = same && p.Type == args[i]
		}

		ok = append(ok, cand)

		if same {
			exact = append(exact, cand)
		}
	}

	switch {
	case len(exact) == 1:
		return exact[0], false
	case len(ok) == 1:
		return ok[0], false
	case len(ok) > 1:
		return nil, true
	}

	return nil, false
}

func (c *checker) assignable(dst, src tp.Type) bool {
	switch {
	case dst == src, dst.IsUnknown(), src.IsUnknown():
		return true
	case dst.IsClass() && src.IsClass():
		return c.t.Extends(src.Class, dst.Class)
	}

	return false
}

// hint records the type the context expects from an expression
// whose own type could not be resolved.
func (c *checker) hint(x ast.Expr, want tp.Type) {
	if want.IsUnknown() {
		return
	}

	if t, ok := c.info.Types[x]; ok && !t.IsUnknown() {
		return
	}

	c.info.Hints[x] = want
}

func (c *checker) errorf(n ast.Node, format string, args ...any) {
	p := n.Position()
	c.rep.Errorf(report.Semantic, p.Line, p.Col, format, args...)
}

// TypeOf returns the type lowering should use for x:
// the resolved type, or the context hint for unknown expressions.
func (in *Info) TypeOf(x ast.Expr) (tp.Type, bool) {
	t := in.Types[x]
	if !t.IsUnknown() {
		return t, true
	}

	h, ok := in.Hints[x]

	return h, ok
}
