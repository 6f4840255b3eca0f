package back

import (
	"context"
	"fmt"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jmm/compiler/ollir"
	"github.com/slowlang/jmm/compiler/tp"
)

type (
	Compiler struct{}

	// frame is the per-method code generation state.
	frame struct {
		cls *ollir.Class
		m   *ollir.Method

		b []byte

		depth, max int
		labels     map[string]int

		cmp int
	}
)

func New() *Compiler { return &Compiler{} }

// CompileClass appends Jasmin assembly for cls to b.
// Every method must have its registers allocated.
func (c *Compiler) CompileClass(ctx context.Context, b []byte, cls *ollir.Class) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back", "class", cls.Name)
	defer tr.Finish("err", &err)

	b = hfmt.Appendf(b, ".class public %v\n", cls.Name)
	b = hfmt.Appendf(b, ".super %v\n", cls.Qualify(cls.Super))

	if len(cls.Fields) != 0 {
		b = append(b, '\n')
	}

	for _, f := range cls.Fields {
		b = hfmt.Appendf(b, ".field private %v %v\n", f.Name, Descriptor(cls, f.Type))
	}

	for _, m := range cls.Methods {
		b = append(b, '\n')

		b, err = c.compileMethod(ctx, b, cls, m)
		if err != nil {
			return nil, errors.Wrap(err, "method %v", m.Name)
		}
	}

	return b, nil
}

func (c *Compiler) compileMethod(ctx context.Context, b []byte, cls *ollir.Class, m *ollir.Method) (_ []byte, err error) {
	if m.Slots == nil {
		return nil, errors.New("registers are not allocated")
	}

	f := &frame{
		cls:    cls,
		m:      m,
		labels: map[string]int{},
	}

	for _, in := range m.Code {
		err = f.inst(in)
		if err != nil {
			return nil, errors.Wrap(err, "%s", ollir.FormatInst(nil, in))
		}
	}

	if tr := tlog.SpanFromContext(ctx); tr.If("dump_stack") {
		tr.Printw("method", "name", m.Name, "stack", f.max, "locals", m.Locals)
	}

	switch {
	case m.Constructor:
		b = append(b, ".method public <init>()V\n"...)
	case m.Static:
		b = hfmt.Appendf(b, ".method public static %v%v\n", m.Name, methodDescriptor(cls, m))
	default:
		b = hfmt.Appendf(b, ".method public %v%v\n", m.Name, methodDescriptor(cls, m))
	}

	b = hfmt.Appendf(b, "\t.limit stack %d\n", f.max)
	b = hfmt.Appendf(b, "\t.limit locals %d\n", m.Locals)
	b = append(b, f.b...)
	b = append(b, ".end method\n"...)

	return b, nil
}

func (f *frame) inst(in ollir.Inst) (err error) {
	switch in := in.(type) {
	case ollir.Assign:
		if err = f.load(in.Src); err != nil {
			return err
		}

		return f.store(in.Dst)
	case ollir.BinOp:
		if ok, err := f.iinc(in); ok || err != nil {
			return err
		}

		if err = f.load(in.L); err != nil {
			return err
		}

		if err = f.load(in.R); err != nil {
			return err
		}

		switch in.Op {
		case ollir.Add:
			f.op(-1, "iadd")
		case ollir.Sub:
			f.op(-1, "isub")
		case ollir.Mul:
			f.op(-1, "imul")
		case ollir.Div:
			f.op(-1, "idiv")
		case ollir.And:
			f.op(-1, "iand")
		case ollir.Lt:
			f.compare("if_icmplt")
		default:
			return errors.New("unsupported operator %v", in.Op)
		}

		return f.store(in.Dst)
	case ollir.UnOp:
		if in.Op != ollir.Not {
			return errors.New("unsupported operator %v", in.Op)
		}

		if err = f.load(in.X); err != nil {
			return err
		}

		f.op(1, "iconst_1")
		f.op(-1, "ixor")

		return f.store(in.Dst)
	case ollir.GetField:
		f.op(1, "aload_0")
		f.op(0, "getfield %v/%v %v", f.cls.Name, in.Field, f.fieldDescriptor(in.Field, in.Dst.Type))

		return f.store(in.Dst)
	case ollir.PutField:
		f.op(1, "aload_0")

		if err = f.load(in.Src); err != nil {
			return err
		}

		f.op(-2, "putfield %v/%v %v", f.cls.Name, in.Field, f.fieldDescriptor(in.Field, in.Src.Typ()))
	case ollir.ArrayLoad:
		if err = f.loads(in.Array, in.Index); err != nil {
			return err
		}

		f.op(-1, "%saload", typePrefix(in.Array.Typ().Elem()))

		return f.store(in.Dst)
	case ollir.ArrayStore:
		if err = f.loads(in.Array, in.Index, in.Src); err != nil {
			return err
		}

		f.op(-3, "%sastore", typePrefix(in.Array.Typ().Elem()))
	case ollir.ArrayLength:
		if err = f.load(in.Array); err != nil {
			return err
		}

		f.op(0, "arraylength")

		return f.store(in.Dst)
	case ollir.Call:
		return f.call(in)
	case ollir.New:
		f.op(1, "new %v", f.cls.Qualify(in.Class))

		return f.store(in.Dst)
	case ollir.NewArray:
		if err = f.load(in.Len); err != nil {
			return err
		}

		if in.Dst.Type.Kind == tp.Int {
			f.op(0, "newarray int")
		} else {
			f.op(0, "anewarray %v", elemClass(f.cls, in.Dst.Type.Elem()))
		}

		return f.store(in.Dst)
	case ollir.CondBranch:
		if err = f.load(in.Cond); err != nil {
			return err
		}

		f.op(-1, "ifne %v", in.Target)
		f.jump(in.Target)
	case ollir.Goto:
		f.op(0, "goto %v", in.Target)
		f.jump(in.Target)
	case ollir.Label:
		f.label(in.Name)
	case ollir.Return:
		if err = f.load(in.X); err != nil {
			return err
		}

		f.op(-1, "%sreturn", typePrefix(in.X.Typ()))
	case ollir.ReturnVoid:
		f.op(0, "return")
	default:
		return errors.New("unsupported instruction %T", in)
	}

	return nil
}

// iinc handles x := x + c and x := x - c for small constants.
func (f *frame) iinc(in ollir.BinOp) (bool, error) {
	if in.Op != ollir.Add && in.Op != ollir.Sub {
		return false, nil
	}

	var c ollir.Imm

	switch l, r := in.L, in.R; {
	case isReg(l, in.Dst.Name) && isImm(r):
		c = r.(ollir.Imm)
	case in.Op == ollir.Add && isImm(l) && isReg(r, in.Dst.Name):
		c = l.(ollir.Imm)
	default:
		return false, nil
	}

	v := int64(c.Value)
	if in.Op == ollir.Sub {
		v = -v
	}

	if v < -128 || v > 127 {
		return false, nil
	}

	s, err := f.slot(in.Dst)
	if err != nil {
		return false, err
	}

	f.op(0, "iinc %d %d", s, v)

	return true, nil
}

func (f *frame) call(in ollir.Call) (err error) {
	var desc []byte
	desc = append(desc, '(')

	for _, p := range in.Params {
		desc = append(desc, Descriptor(f.cls, p)...)
	}

	desc = append(desc, ')')
	desc = append(desc, Descriptor(f.cls, in.Ret)...)

	pop := len(in.Args)

	if in.Kind != ollir.Static {
		if in.Recv == nil {
			return errors.New("%v without receiver", in.Kind)
		}

		if err = f.load(in.Recv); err != nil {
			return err
		}

		pop++
	}

	if err = f.loads(in.Args...); err != nil {
		return err
	}

	push := 0
	if !in.Ret.IsVoid() {
		push = 1
	}

	f.op(push-pop, "%v %v/%v%s", in.Kind, f.cls.Qualify(in.Owner), in.Method, desc)

	switch {
	case in.Dst != nil:
		return f.store(*in.Dst)
	case push != 0:
		f.op(-1, "pop")
	}

	return nil
}

// compare leaves 1 on the stack if the jump condition holds, 0 otherwise.
func (f *frame) compare(jump string) {
	yes := fmt.Sprintf("cmp_true_%d", f.cmp)
	end := fmt.Sprintf("cmp_end_%d", f.cmp)
	f.cmp++

	f.op(-2, "%v %v", jump, yes)
	f.jump(yes)

	f.op(1, "iconst_0")
	f.op(0, "goto %v", end)
	f.jump(end)

	f.label(yes)
	f.op(1, "iconst_1")
	f.label(end)
}

func (f *frame) loads(vs ...ollir.Value) error {
	for _, v := range vs {
		if err := f.load(v); err != nil {
			return err
		}
	}

	return nil
}

func (f *frame) load(v ollir.Value) error {
	switch v := v.(type) {
	case ollir.Imm:
		f.constant(v.Value)
	case ollir.Reg:
		s, err := f.slot(v)
		if err != nil {
			return err
		}

		f.op(1, "%sload%s", typePrefix(v.Type), slotSuffix(s))
	default:
		return errors.New("bad operand %T", v)
	}

	return nil
}

func (f *frame) store(r ollir.Reg) error {
	s, err := f.slot(r)
	if err != nil {
		return err
	}

	f.op(-1, "%sstore%s", typePrefix(r.Type), slotSuffix(s))

	return nil
}

func (f *frame) slot(r ollir.Reg) (int, error) {
	s, ok := f.m.Slots[r.Name]
	if !ok {
		return 0, errors.New("no slot for register %v", r.Name)
	}

	return s, nil
}

func (f *frame) constant(v int32) {
	switch {
	case v == -1:
		f.op(1, "iconst_m1")
	case v >= 0 && v <= 5:
		f.op(1, "iconst_%d", v)
	case v >= -128 && v <= 127:
		f.op(1, "bipush %d", v)
	case v >= -32768 && v <= 32767:
		f.op(1, "sipush %d", v)
	default:
		f.op(1, "ldc %d", v)
	}
}

// op appends an instruction changing the stack depth by d.
func (f *frame) op(d int, format string, args ...any) {
	f.b = append(f.b, '\t')
	f.b = hfmt.Appendf(f.b, format, args...)
	f.b = append(f.b, '\n')

	f.depth += d

	if f.depth > f.max {
		f.max = f.depth
	}
}

func (f *frame) jump(label string) {
	f.labels[label] = f.depth
}

func (f *frame) label(name string) {
	f.b = hfmt.Appendf(f.b, "%v:\n", name)

	if d, ok := f.labels[name]; ok {
		f.depth = d
	}
}

func (f *frame) fieldDescriptor(name string, t tp.Type) string {
	if fd, ok := f.cls.Field(name); ok {
		t = fd.Type
	}

	return Descriptor(f.cls, t)
}

func methodDescriptor(cls *ollir.Class, m *ollir.Method) string {
	b := []byte{'('}

	for _, p := range m.Params {
		b = append(b, Descriptor(cls, p.Type)...)
	}

	b = append(b, ')')
	b = append(b, Descriptor(cls, m.Return)...)

	return string(b)
}

// Descriptor is the JVM type descriptor of t.
func Descriptor(cls *ollir.Class, t tp.Type) string {
	var s string

	switch t.Kind {
	case tp.Int:
		s = "I"
	case tp.Bool:
		s = "Z"
	case tp.String:
		s = "Ljava/lang/String;"
	case tp.Void:
		s = "V"
	case tp.Class:
		s = "L" + cls.Qualify(t.Class) + ";"
	default:
		s = "I"
	}

	if t.Array {
		s = "[" + s
	}

	return s
}

func elemClass(cls *ollir.Class, t tp.Type) string {
	switch t.Kind {
	case tp.String:
		return "java/lang/String"
	case tp.Class:
		return cls.Qualify(t.Class)
	default:
		return Descriptor(cls, t)
	}
}

func typePrefix(t tp.Type) string {
	if t.IsRef() {
		return "a"
	}

	return "i"
}

func slotSuffix(s int) string {
	if s <= 3 {
		return fmt.Sprintf("_%d", s)
	}

	return fmt.Sprintf(" %d", s)
}

func isReg(v ollir.Value, name string) bool {
	r, ok := v.(ollir.Reg)
	return ok && r.Name == name
}

func isImm(v ollir.Value) bool {
	_, ok := v.(ollir.Imm)
	return ok
}
