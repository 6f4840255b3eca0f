package analyze

import (
	"encoding/json"
	"strconv"

	"tlog.app/go/errors"

	"github.com/slowlang/jmm/compiler/ast"
	"github.com/slowlang/jmm/compiler/tp"
)

type jnode struct {
	Kind  string `json:"kind"`
	Line  int    `json:"line"`
	Col   int    `json:"col"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
	Type  string `json:"type,omitempty"`
	Ref   string `json:"ref,omitempty"`

	Children []*jnode `json:"children,omitempty"`
}

// Dump renders the annotated tree as indented JSON.
func Dump(r *Result) ([]byte, error) {
	if r == nil || r.File == nil {
		return nil, errors.New("nothing to dump")
	}

	d := dumper{info: r.Info}

	data, err := json.MarshalIndent(d.node(r.File), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal")
	}

	return append(data, '\n'), nil
}

type dumper struct {
	info *Info
}

func (d dumper) node(n ast.Node) *jnode {
	if n == nil {
		return nil
	}

	p := n.Position()
	j := &jnode{Line: p.Line, Col: p.Col}

	add := func(ns ...ast.Node) {
		for _, c := range ns {
			if c := d.node(c); c != nil {
				j.Children = append(j.Children, c)
			}
		}
	}

	switch n := n.(type) {
	case *ast.File:
		j.Kind = "Program"

		for _, imp := range n.Imports {
			add(imp)
		}

		add(n.Class)
	case *ast.Import:
		j.Kind = "Import"
		j.Name = joinPath(n.Path)
	case *ast.Class:
		j.Kind = "Class"
		j.Name = n.Name
		j.Value = n.Extends

		for _, f := range n.Fields {
			add(f)
		}

		for _, m := range n.Methods {
			add(m)
		}
	case *ast.VarDecl:
		j.Kind = "Var"
		j.Name = n.Name
		j.Type = tp.Named(n.Type.Name, n.Type.Array).String()
	case *ast.Method:
		j.Kind = "Method"
		j.Name = n.Name
		j.Type = tp.Named(n.Return.Name, n.Return.Array).String()

		if n.Static {
			j.Value = "static"
		}

		for _, p := range n.Params {
			c := d.node(p)
			c.Kind = "Param"
			j.Children = append(j.Children, c)
		}

		for _, l := range n.Locals {
			add(l)
		}

		for _, s := range n.Body {
			add(s)
		}

		if n.Result != nil {
			r := &jnode{Kind: "Return", Line: n.Result.Position().Line, Col: n.Result.Position().Col}
			r.Children = append(r.Children, d.node(n.Result))
			j.Children = append(j.Children, r)
		}
	case *ast.Block:
		j.Kind = "Block"

		for _, s := range n.Stmts {
			add(s)
		}
	case *ast.If:
		j.Kind = "If"
		add(n.Cond, n.Then, n.Else)
	case *ast.While:
		j.Kind = "While"
		add(n.Cond, n.Body)
	case *ast.Assign:
		j.Kind = "Assign"
		add(n.Target, n.Value)
	case *ast.ArrayAssign:
		j.Kind = "ArrayAssign"
		add(n.Target, n.Index, n.Value)
	case *ast.ExprStmt:
		j.Kind = "ExprStmt"
		add(n.X)
	case ast.Expr:
		d.expr(j, n)
	}

	return j
}

func (d dumper) expr(j *jnode, x ast.Expr) {
	if d.info != nil {
		if t, ok := d.info.TypeOf(x); ok {
			j.Type = t.String()
		}
	}

	switch x := x.(type) {
	case *ast.Binary:
		j.Kind = "Binary"
		j.Value = string(x.Op)
		j.Children = []*jnode{d.node(x.Left), d.node(x.Right)}
	case *ast.Not:
		j.Kind = "Not"
		j.Children = []*jnode{d.node(x.X)}
	case *ast.Index:
		j.Kind = "Index"
		j.Children = []*jnode{d.node(x.X), d.node(x.Index)}
	case *ast.Length:
		j.Kind = "Length"
		j.Children = []*jnode{d.node(x.X)}
	case *ast.Call:
		j.Kind = "Call"
		j.Name = x.Method
		j.Children = append(j.Children, d.node(x.Recv))

		for _, a := range x.Args {
			j.Children = append(j.Children, d.node(a))
		}
	case *ast.IntLit:
		j.Kind = "Int"
		j.Value = strconv.Itoa(int(x.Value))
	case *ast.BoolLit:
		j.Kind = "Bool"
		j.Value = strconv.FormatBool(x.Value)
	case *ast.Ident:
		j.Kind = "Ident"
		j.Name = x.Name

		if d.info != nil {
			if r, ok := d.info.Refs[x]; ok {
				j.Ref = r.Kind.String()
			}
		}
	case *ast.This:
		j.Kind = "This"
	case *ast.NewArray:
		j.Kind = "NewArray"
		j.Children = []*jnode{d.node(x.Len)}
	case *ast.NewObject:
		j.Kind = "NewObject"
		j.Name = x.Class
	}
}

func joinPath(p []string) (s string) {
	for i, e := range p {
		if i != 0 {
			s += "."
		}

		s += e
	}

	return s
}

func (k RefKind) String() string {
	switch k {
	case Local:
		return "local"
	case Param:
		return "param"
	case Field:
		return "field"
	case ClassRef:
		return "class"
	case Assumed:
		return "assumed"
	default:
		return "RefKind(" + strconv.Itoa(int(k)) + ")"
	}
}

func (k CallKind) String() string {
	if k == Static {
		return "static"
	}

	return "virtual"
}
