package ollir

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/slowlang/jmm/compiler/tp"
)

// Format renders c in OLLIR text form.
func Format(c *Class) []byte {
	var b []byte

	for _, imp := range c.Imports {
		b = hfmt.Appendf(b, "import %v;\n", imp)
	}

	if len(c.Imports) != 0 {
		b = append(b, '\n')
	}

	b = hfmt.Appendf(b, "%v", c.Name)

	if c.Super != "" {
		b = hfmt.Appendf(b, " extends %v", c.Super)
	}

	b = append(b, " {\n"...)

	for _, f := range c.Fields {
		b = hfmt.Appendf(b, "\t.field private %v%v;\n", f.Name, Suffix(f.Type))
	}

	for _, m := range c.Methods {
		b = append(b, '\n')
		b = FormatMethod(b, m)
	}

	b = append(b, "}\n"...)

	return b
}

func FormatMethod(b []byte, m *Method) []byte {
	if m.Constructor {
		b = append(b, "\t.construct "...)
	} else {
		b = append(b, "\t.method public "...)

		if m.Static {
			b = append(b, "static "...)
		}
	}

	b = hfmt.Appendf(b, "%v(", m.Name)

	for i, p := range m.Params {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = hfmt.Appendf(b, "%v%v", p.Name, Suffix(p.Type))
	}

	b = hfmt.Appendf(b, ")%v {\n", Suffix(m.Return))

	for _, in := range m.Code {
		if l, ok := in.(Label); ok {
			b = hfmt.Appendf(b, "\t%v:\n", l.Name)
			continue
		}

		b = append(b, "\t\t"...)
		b = FormatInst(b, in)
		b = append(b, ";\n"...)
	}

	b = append(b, "\t}\n"...)

	return b
}

func FormatInst(b []byte, in Inst) []byte {
	switch in := in.(type) {
	case Assign:
		b = dst(b, in.Dst)
		b = operand(b, in.Src)
	case BinOp:
		b = dst(b, in.Dst)
		b = operand(b, in.L)
		b = hfmt.Appendf(b, " %v%v ", in.Op, Suffix(in.Dst.Type))
		b = operand(b, in.R)
	case UnOp:
		b = dst(b, in.Dst)
		b = hfmt.Appendf(b, "%v%v ", in.Op, Suffix(in.Dst.Type))
		b = operand(b, in.X)
	case GetField:
		b = dst(b, in.Dst)
		b = hfmt.Appendf(b, "getfield(this, %v%v)%v", in.Field, Suffix(in.Dst.Type), Suffix(in.Dst.Type))
	case PutField:
		b = hfmt.Appendf(b, "putfield(this, %v%v, ", in.Field, Suffix(in.Src.Typ()))
		b = operand(b, in.Src)
		b = append(b, ").V"...)
	case ArrayLoad:
		b = dst(b, in.Dst)
		b = operand(b, in.Array)
		b = append(b, '[')
		b = operand(b, in.Index)
		b = hfmt.Appendf(b, "]%v", Suffix(in.Dst.Type))
	case ArrayStore:
		b = operand(b, in.Array)
		b = append(b, '[')
		b = operand(b, in.Index)
		b = hfmt.Appendf(b, "]%v :=%v ", Suffix(in.Src.Typ()), Suffix(in.Src.Typ()))
		b = operand(b, in.Src)
	case ArrayLength:
		b = dst(b, in.Dst)
		b = append(b, "arraylength("...)
		b = operand(b, in.Array)
		b = append(b, ").i32"...)
	case Call:
		if in.Dst != nil {
			b = dst(b, *in.Dst)
		}

		b = hfmt.Appendf(b, "%v(", in.Kind)

		if in.Recv != nil {
			b = operand(b, in.Recv)
		} else {
			b = append(b, in.Owner...)
		}

		b = hfmt.Appendf(b, ", %q", in.Method)

		for _, a := range in.Args {
			b = append(b, ", "...)
			b = operand(b, a)
		}

		b = hfmt.Appendf(b, ")%v", Suffix(in.Ret))
	case New:
		b = dst(b, in.Dst)
		b = hfmt.Appendf(b, "new(%v)%v", in.Class, Suffix(in.Dst.Type))
	case NewArray:
		b = dst(b, in.Dst)
		b = append(b, "new(array, "...)
		b = operand(b, in.Len)
		b = append(b, ").array.i32"...)
	case CondBranch:
		b = append(b, "if ("...)
		b = operand(b, in.Cond)
		b = hfmt.Appendf(b, ") goto %v", in.Target)
	case Goto:
		b = hfmt.Appendf(b, "goto %v", in.Target)
	case Label:
		b = hfmt.Appendf(b, "%v:", in.Name)
	case Return:
		b = hfmt.Appendf(b, "ret%v ", Suffix(in.X.Typ()))
		b = operand(b, in.X)
	case ReturnVoid:
		b = append(b, "ret.V"...)
	default:
		b = hfmt.Appendf(b, "<unsupported %T>", in)
	}

	return b
}

func dst(b []byte, r Reg) []byte {
	return hfmt.Appendf(b, "%v%v :=%v ", r.Name, Suffix(r.Type), Suffix(r.Type))
}

func operand(b []byte, v Value) []byte {
	switch v := v.(type) {
	case Reg:
		return hfmt.Appendf(b, "%v%v", v.Name, Suffix(v.Type))
	case Imm:
		return hfmt.Appendf(b, "%d%v", v.Value, Suffix(v.Type))
	default:
		return append(b, "<nil>"...)
	}
}

// Suffix is the OLLIR type annotation of t, including the leading dot.
func Suffix(t tp.Type) string {
	var s string

	switch t.Kind {
	case tp.Int:
		s = ".i32"
	case tp.Bool:
		s = ".bool"
	case tp.String:
		s = ".String"
	case tp.Void:
		s = ".V"
	case tp.Class:
		s = "." + t.Class
	default:
		s = ".?"
	}

	if t.Array {
		s = ".array" + s
	}

	return s
}
