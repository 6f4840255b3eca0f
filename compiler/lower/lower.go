package lower

import (
	"context"
	"fmt"

	"tlog.app/go/tlog"

	"github.com/slowlang/jmm/compiler/analyze"
	"github.com/slowlang/jmm/compiler/ast"
	"github.com/slowlang/jmm/compiler/ollir"
	"github.com/slowlang/jmm/compiler/report"
	"github.com/slowlang/jmm/compiler/sym"
	"github.com/slowlang/jmm/compiler/tp"
)

type (
	lowerer struct {
		info *analyze.Info
		t    *sym.Table

		m    *ollir.Method
		used map[string]struct{}

		temps  int
		labels int

		rep report.List
	}
)

func Lower(ctx context.Context, res *analyze.Result) (cls *ollir.Class, rep report.List) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "lower")
	defer func() {
		tr.Finish("reports", len(rep))
	}()

	if res == nil || res.Table == nil || res.Info == nil {
		rep.Errorf(report.Generation, 0, 0, "nothing to lower")
		return nil, rep
	}

	t := res.Table

	cls = &ollir.Class{
		Name:    t.Class,
		Super:   t.Super,
		Imports: t.Imports,
	}

	for _, f := range t.Fields {
		cls.Fields = append(cls.Fields, ollir.Field{Name: f.Name, Type: f.Type})
	}

	cls.Methods = append(cls.Methods, constructor(cls))

	for _, sm := range t.Methods {
		l := &lowerer{info: res.Info, t: t}

		m := l.method(sm)
		cls.Methods = append(cls.Methods, m)

		rep = append(rep, l.rep...)

		if tr.If("dump_ollir") {
			tr.Printw("method", "name", m.Name, "ollir", ollir.FormatMethod(nil, m))
		}
	}

	return cls, rep
}

func constructor(cls *ollir.Class) *ollir.Method {
	this := ollir.Reg{Name: "this", Type: tp.ClassType(cls.Name)}

	return &ollir.Method{
		Name:        cls.Name,
		Constructor: true,
		Return:      tp.VoidType,
		Vars:        []ollir.Var{{Name: this.Name, Type: this.Type, Kind: ollir.This}},
		Code: []ollir.Inst{
			ollir.Call{Kind: ollir.Special, Owner: cls.Super, Recv: this, Method: "<init>", Ret: tp.VoidType},
			ollir.ReturnVoid{},
		},
	}
}

func (l *lowerer) method(sm *sym.Method) *ollir.Method {
	m := &ollir.Method{
		Name:   sm.Name,
		Line:   sm.Line,
		Static: sm.Static,
		Return: sm.Return,
	}

	l.m = m
	l.used = map[string]struct{}{}

	if !sm.Static {
		l.declare("this", tp.ClassType(l.t.Class), ollir.This)
	}

	for _, p := range sm.Params {
		v := l.declare(p.Name, p.Type, ollir.Param)
		m.Params = append(m.Params, v)
	}

	for _, v := range sm.Locals {
		l.declare(v.Name, v.Type, ollir.Local)
	}

	d := sm.Decl

	for _, s := range d.Body {
		l.stmt(s)
	}

	switch {
	case d.Result != nil && !sm.Return.IsVoid():
		x := l.expr(d.Result, nil)
		l.emit(ollir.Return{X: x})
	default:
		l.emit(ollir.ReturnVoid{})
	}

	return m
}

func (l *lowerer) declare(name string, t tp.Type, k ollir.VarKind) ollir.Var {
	v := ollir.Var{Name: name, Type: t, Kind: k}

	l.m.Vars = append(l.m.Vars, v)
	l.used[name] = struct{}{}

	return v
}

func (l *lowerer) temp(t tp.Type) ollir.Reg {
	for {
		name := fmt.Sprintf("t%d", l.temps)
		l.temps++

		if _, ok := l.used[name]; ok {
			continue
		}

		l.declare(name, t, ollir.Temp)

		return ollir.Reg{Name: name, Type: t}
	}
}

func (l *lowerer) label(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, l.labels)
}

func (l *lowerer) emit(in ...ollir.Inst) {
	l.m.Code = append(l.m.Code, in...)
}

func (l *lowerer) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Block:
		for _, s := range s.Stmts {
			l.stmt(s)
		}
	case *ast.If:
		then, end := l.label("if_then"), l.label("if_end")
		l.labels++

		c := l.expr(s.Cond, nil)
		l.emit(ollir.CondBranch{Cond: c, Target: then})

		l.stmt(s.Else)
		l.emit(ollir.Goto{Target: end}, ollir.Label{Name: then})

		l.stmt(s.Then)
		l.emit(ollir.Label{Name: end})
	case *ast.While:
		cond, body := l.label("while_cond"), l.label("while_body")
		l.labels++

		l.emit(ollir.Goto{Target: cond}, ollir.Label{Name: body})
		l.stmt(s.Body)
		l.emit(ollir.Label{Name: cond})

		c := l.expr(s.Cond, nil)
		l.emit(ollir.CondBranch{Cond: c, Target: body})
	case *ast.Assign:
		r := l.info.Refs[s.Target]

		switch r.Kind {
		case analyze.Local, analyze.Param:
			dst := ollir.Reg{Name: s.Target.Name, Type: r.Type}
			l.expr(s.Value, &dst)
		default:
			v := l.expr(s.Value, nil)
			l.emit(ollir.PutField{Field: s.Target.Name, Src: v})
		}
	case *ast.ArrayAssign:
		arr := l.ident(s.Target, nil)
		idx := l.expr(s.Index, nil)
		v := l.expr(s.Value, nil)

		l.emit(ollir.ArrayStore{Array: arr, Index: idx, Src: v})
	case *ast.ExprStmt:
		if c, ok := s.X.(*ast.Call); ok {
			l.call(c, nil, true)
			return
		}

		l.expr(s.X, nil)
	default:
		l.errorf(s, "unsupported statement %T", s)
	}
}

// expr lowers x and returns its operand.
// If dst is set the value is stored into it.
func (l *lowerer) expr(x ast.Expr, dst *ollir.Reg) ollir.Value {
	var v ollir.Value

	switch x := x.(type) {
	case *ast.IntLit:
		v = ollir.Int(x.Value)
	case *ast.BoolLit:
		v = ollir.Bool(x.Value)
	case *ast.This:
		v = ollir.Reg{Name: "this", Type: tp.ClassType(l.t.Class)}
	case *ast.Ident:
		return l.ident(x, dst)
	case *ast.Binary:
		if x.Op == ast.And {
			return l.and(x, dst)
		}

		a := l.expr(x.Left, nil)
		b := l.expr(x.Right, nil)

		d := l.dst(x, dst)
		l.emit(ollir.BinOp{Dst: d, Op: ollir.Op(x.Op), L: a, R: b})

		return d
	case *ast.Not:
		a := l.expr(x.X, nil)

		d := l.dst(x, dst)
		l.emit(ollir.UnOp{Dst: d, Op: ollir.Not, X: a})

		return d
	case *ast.Index:
		arr := l.expr(x.X, nil)
		idx := l.expr(x.Index, nil)

		d := l.dst(x, dst)
		l.emit(ollir.ArrayLoad{Dst: d, Array: arr, Index: idx})

		return d
	case *ast.Length:
		arr := l.expr(x.X, nil)

		d := l.dst(x, dst)
		l.emit(ollir.ArrayLength{Dst: d, Array: arr})

		return d
	case *ast.NewArray:
		n := l.expr(x.Len, nil)

		d := l.dst(x, dst)
		l.emit(ollir.NewArray{Dst: d, Len: n})

		return d
	case *ast.NewObject:
		d := l.dst(x, dst)

		l.emit(
			ollir.New{Dst: d, Class: x.Class},
			ollir.Call{Kind: ollir.Special, Owner: x.Class, Recv: d, Method: "<init>", Ret: tp.VoidType},
		)

		return d
	case *ast.Call:
		return l.call(x, dst, false)
	default:
		l.errorf(x, "unsupported expression %T", x)
		return ollir.Int(0)
	}

	if dst != nil {
		l.emit(ollir.Assign{Dst: *dst, Src: v})
		return *dst
	}

	return v
}

func (l *lowerer) ident(x *ast.Ident, dst *ollir.Reg) ollir.Value {
	r := l.info.Refs[x]

	switch r.Kind {
	case analyze.Local, analyze.Param:
		v := ollir.Reg{Name: x.Name, Type: r.Type}

		if dst != nil {
			l.emit(ollir.Assign{Dst: *dst, Src: v})
			return *dst
		}

		return v
	case analyze.Field, analyze.Assumed:
		d := l.dst(x, dst)
		l.emit(ollir.GetField{Dst: d, Field: x.Name})

		return d
	default:
		l.errorf(x, "unresolved identifier %v", x.Name)
		return ollir.Int(0)
	}
}

// and lowers a && b so that b is evaluated only if a is true.
func (l *lowerer) and(x *ast.Binary, dst *ollir.Reg) ollir.Value {
	rhs, end := l.label("and_rhs"), l.label("and_end")
	l.labels++

	d := l.temp(tp.BoolType)

	l.expr(x.Left, &d)
	l.emit(
		ollir.CondBranch{Cond: d, Target: rhs},
		ollir.Goto{Target: end},
		ollir.Label{Name: rhs},
	)

	l.expr(x.Right, &d)
	l.emit(ollir.Label{Name: end})

	if dst != nil {
		l.emit(ollir.Assign{Dst: *dst, Src: d})
		return *dst
	}

	return d
}

func (l *lowerer) call(x *ast.Call, dst *ollir.Reg, stmt bool) ollir.Value {
	c := l.info.Calls[x]
	if c == nil {
		l.errorf(x, "unresolved call %v", x.Method)
		return ollir.Int(0)
	}

	in := ollir.Call{
		Kind:   ollir.Virtual,
		Owner:  c.Owner,
		Method: x.Method,
	}

	if c.Kind == analyze.Static {
		in.Kind = ollir.Static
	} else {
		in.Recv = l.expr(x.Recv, nil)
	}

	for _, a := range x.Args {
		in.Args = append(in.Args, l.expr(a, nil))
	}

	switch {
	case c.Method != nil:
		in.Params = c.Method.ParamTypes()
	default:
		for _, a := range in.Args {
			in.Params = append(in.Params, a.Typ())
		}
	}

	in.Ret = l.typeOf(x, stmt)

	if c.Method != nil {
		in.Ret = c.Method.Return
	}

	if stmt {
		l.emit(in)
		return nil
	}

	if in.Ret.IsVoid() {
		l.errorf(x, "void call %v used as a value", x.Method)
		return ollir.Int(0)
	}

	d := l.dst(x, dst)
	in.Dst = &d

	l.emit(in)

	return d
}

func (l *lowerer) dst(x ast.Expr, dst *ollir.Reg) ollir.Reg {
	if dst != nil {
		return *dst
	}

	return l.temp(l.typeOf(x, false))
}

func (l *lowerer) typeOf(x ast.Expr, stmt bool) tp.Type {
	if t, ok := l.info.TypeOf(x); ok {
		return t
	}

	if stmt {
		return tp.VoidType
	}

	return tp.IntType
}

func (l *lowerer) errorf(n ast.Node, format string, args ...any) {
	p := n.Position()
	l.rep.Errorf(report.Generation, p.Line, p.Col, format, args...)
}
