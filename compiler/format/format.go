package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/slowlang/jmm/compiler/ast"
)

func Format(ctx context.Context, b []byte, x ast.Node) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x ast.Node, d int) ([]byte, error) {
	switch x := x.(type) {
	case *ast.File:
		return formatFile(ctx, b, x, d)
	case *ast.Method:
		return formatMethod(ctx, b, x, d)
	case ast.Stmt:
		return formatStmt(ctx, b, x, d)
	case ast.Expr:
		return formatExpr(ctx, b, x, 0)
	default:
		return nil, errors.New("unsupported node: %T", x)
	}
}

func formatFile(ctx context.Context, b []byte, x *ast.File, d int) (_ []byte, err error) {
	for _, imp := range x.Imports {
		b = app(b, d, "import ")

		for i, p := range imp.Path {
			if i != 0 {
				b = append(b, '.')
			}

			b = append(b, p...)
		}

		b = append(b, ";\n"...)
	}

	if len(x.Imports) != 0 {
		b = append(b, '\n')
	}

	c := x.Class

	b = app(b, d, "class %v", c.Name)

	if c.Extends != "" {
		b = app(b, 0, " extends %v", c.Extends)
	}

	b = append(b, " {\n"...)

	for _, f := range c.Fields {
		b = app(b, d+1, "%v %v;\n", typeName(f.Type), f.Name)
	}

	for i, m := range c.Methods {
		if i != 0 || len(c.Fields) != 0 {
			b = append(b, '\n')
		}

		b, err = formatMethod(ctx, b, m, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "method %v", m.Name)
		}
	}

	b = app(b, d, "}\n")

	return b, nil
}

func formatMethod(ctx context.Context, b []byte, x *ast.Method, d int) (_ []byte, err error) {
	b = app(b, d, "public ")

	if x.Static {
		b = append(b, "static "...)
	}

	b = app(b, 0, "%v %v(", typeName(x.Return), x.Name)

	for i, p := range x.Params {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = app(b, 0, "%v %v", typeName(p.Type), p.Name)
	}

	b = append(b, ") {\n"...)

	for _, l := range x.Locals {
		b = app(b, d+1, "%v %v;\n", typeName(l.Type), l.Name)
	}

	for _, s := range x.Body {
		b, err = formatStmt(ctx, b, s, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "body")
		}
	}

	if x.Result != nil {
		b = app(b, d+1, "return ")

		b, err = formatExpr(ctx, b, x.Result, 0)
		if err != nil {
			return nil, errors.Wrap(err, "return")
		}

		b = append(b, ";\n"...)
	}

	b = app(b, d, "}\n")

	return b, nil
}

func formatStmt(ctx context.Context, b []byte, x ast.Stmt, d int) (_ []byte, err error) {
	switch s := x.(type) {
	case *ast.Block:
		b = app(b, d, "{\n")

		for _, s := range s.Stmts {
			b, err = formatStmt(ctx, b, s, d+1)
			if err != nil {
				return nil, err
			}
		}

		b = app(b, d, "}\n")
	case *ast.If:
		b = app(b, d, "if (")

		b, err = formatExpr(ctx, b, s.Cond, 0)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		b = append(b, ")\n"...)

		b, err = formatStmt(ctx, b, s.Then, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		b = app(b, d, "else\n")

		b, err = formatStmt(ctx, b, s.Else, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}
	case *ast.While:
		b = app(b, d, "while (")

		b, err = formatExpr(ctx, b, s.Cond, 0)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		b = append(b, ")\n"...)

		b, err = formatStmt(ctx, b, s.Body, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "body")
		}
	case *ast.Assign:
		b = app(b, d, "%v = ", s.Target.Name)

		b, err = formatExpr(ctx, b, s.Value, 0)
		if err != nil {
			return nil, errors.Wrap(err, "rhs")
		}

		b = append(b, ";\n"...)
	case *ast.ArrayAssign:
		b = app(b, d, "%v[", s.Target.Name)

		b, err = formatExpr(ctx, b, s.Index, 0)
		if err != nil {
			return nil, errors.Wrap(err, "index")
		}

		b = append(b, "] = "...)

		b, err = formatExpr(ctx, b, s.Value, 0)
		if err != nil {
			return nil, errors.Wrap(err, "rhs")
		}

		b = append(b, ";\n"...)
	case *ast.ExprStmt:
		b = app(b, d, "")

		b, err = formatExpr(ctx, b, s.X, 0)
		if err != nil {
			return nil, err
		}

		b = append(b, ";\n"...)
	default:
		return nil, errors.New("unsupported stmt: %T", s)
	}

	return b, nil
}

var prec = map[ast.Op]int{
	ast.And: 1,
	ast.Lt:  2,
	ast.Add: 3,
	ast.Sub: 3,
	ast.Mul: 4,
	ast.Div: 4,
}

// formatExpr parenthesizes x when its precedence is below outer.
func formatExpr(ctx context.Context, b []byte, x ast.Expr, outer int) (_ []byte, err error) {
	switch x := x.(type) {
	case *ast.Binary:
		p := prec[x.Op]

		if p < outer {
			b = append(b, '(')
		}

		b, err = formatExpr(ctx, b, x.Left, p)
		if err != nil {
			return nil, errors.Wrap(err, "left")
		}

		b = app(b, 0, " %v ", x.Op)

		b, err = formatExpr(ctx, b, x.Right, p+1)
		if err != nil {
			return nil, errors.Wrap(err, "right")
		}

		if p < outer {
			b = append(b, ')')
		}
	case *ast.Not:
		if outer > 5 {
			b = append(b, '(')
		}

		b = append(b, '!')

		b, err = formatExpr(ctx, b, x.X, 5)
		if err != nil {
			return nil, err
		}

		if outer > 5 {
			b = append(b, ')')
		}
	case *ast.Index:
		b, err = formatExpr(ctx, b, x.X, 6)
		if err != nil {
			return nil, err
		}

		b = append(b, '[')

		b, err = formatExpr(ctx, b, x.Index, 0)
		if err != nil {
			return nil, errors.Wrap(err, "index")
		}

		b = append(b, ']')
	case *ast.Length:
		b, err = formatExpr(ctx, b, x.X, 6)
		if err != nil {
			return nil, err
		}

		b = append(b, ".length"...)
	case *ast.Call:
		b, err = formatExpr(ctx, b, x.Recv, 6)
		if err != nil {
			return nil, errors.Wrap(err, "receiver")
		}

		b = app(b, 0, ".%v(", x.Method)

		for i, a := range x.Args {
			if i != 0 {
				b = append(b, ", "...)
			}

			b, err = formatExpr(ctx, b, a, 0)
			if err != nil {
				return nil, errors.Wrap(err, "arg %d", i)
			}
		}

		b = append(b, ')')
	case *ast.IntLit:
		b = hfmt.Appendf(b, "%d", x.Value)
	case *ast.BoolLit:
		b = hfmt.Appendf(b, "%v", x.Value)
	case *ast.Ident:
		b = append(b, x.Name...)
	case *ast.This:
		b = append(b, "this"...)
	case *ast.NewArray:
		b = append(b, "new int["...)

		b, err = formatExpr(ctx, b, x.Len, 0)
		if err != nil {
			return nil, errors.Wrap(err, "len")
		}

		b = append(b, ']')
	case *ast.NewObject:
		b = app(b, 0, "new %v()", x.Class)
	default:
		return nil, errors.New("unsupported expr: %T", x)
	}

	return b, nil
}

func typeName(t *ast.TypeExpr) string {
	if t.Array {
		return t.Name + "[]"
	}

	return t.Name
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
