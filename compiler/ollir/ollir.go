package ollir

import (
	"strings"

	"github.com/slowlang/jmm/compiler/tp"
)

type (
	VarKind  int
	CallKind int
	Op       string

	Class struct {
		Name    string
		Super   string // simple name, "" for java/lang/Object
		Imports []string

		Fields  []Field
		Methods []*Method
	}

	Field struct {
		Name string
		Type tp.Type
	}

	Method struct {
		Name        string
		Line        int
		Static      bool
		Constructor bool

		Params []Var
		Return tp.Type

		Vars []Var
		Code []Inst

		// Set by register allocation.
		Slots  map[string]int
		Locals int
	}

	Var struct {
		Name string
		Type tp.Type
		Kind VarKind
	}

	Value interface {
		Typ() tp.Type
		value()
	}

	Reg struct {
		Name string
		Type tp.Type
	}

	Imm struct {
		Value int32
		Type  tp.Type
	}

	Inst interface {
		inst()
	}

	Assign struct {
		Dst Reg
		Src Value
	}

	BinOp struct {
		Dst  Reg
		Op   Op
		L, R Value
	}

	UnOp struct {
		Dst Reg
		Op  Op
		X   Value
	}

	// GetField and PutField always address a field of this.
	GetField struct {
		Dst   Reg
		Field string
	}

	PutField struct {
		Field string
		Src   Value
	}

	ArrayLoad struct {
		Dst   Reg
		Array Value
		Index Value
	}

	ArrayStore struct {
		Array Value
		Index Value
		Src   Value
	}

	ArrayLength struct {
		Dst   Reg
		Array Value
	}

	Call struct {
		Kind CallKind
		Dst  *Reg // nil if the result is void or dropped

		Owner  string // simple or qualified class name, "" for java/lang/Object
		Recv   Value  // nil for static calls
		Method string
		Args   []Value
		Params []tp.Type
		Ret    tp.Type
	}

	New struct {
		Dst   Reg
		Class string
	}

	NewArray struct {
		Dst Reg
		Len Value
	}

	// CondBranch jumps to Target if Cond is true.
	CondBranch struct {
		Cond   Value
		Target string
	}

	Goto struct {
		Target string
	}

	Label struct {
		Name string
	}

	Return struct {
		X Value
	}

	ReturnVoid struct{}
)

const (
	This VarKind = iota
	Param
	Local
	Temp
)

const (
	Static CallKind = iota
	Virtual
	Special
)

const (
	Add Op = "+"
	Sub Op = "-"
	Mul Op = "*"
	Div Op = "/"
	Lt  Op = "<"
	And Op = "&&"
	Not Op = "!"
)

const ObjectClass = "java/lang/Object"

func (r Reg) Typ() tp.Type { return r.Type }
func (i Imm) Typ() tp.Type { return i.Type }

func (Reg) value() {}
func (Imm) value() {}

func (Assign) inst()      {}
func (BinOp) inst()       {}
func (UnOp) inst()        {}
func (GetField) inst()    {}
func (PutField) inst()    {}
func (ArrayLoad) inst()   {}
func (ArrayStore) inst()  {}
func (ArrayLength) inst() {}
func (Call) inst()        {}
func (New) inst()         {}
func (NewArray) inst()    {}
func (CondBranch) inst()  {}
func (Goto) inst()        {}
func (Label) inst()       {}
func (Return) inst()      {}
func (ReturnVoid) inst()  {}

func Int(v int32) Imm { return Imm{Value: v, Type: tp.IntType} }

func Bool(v bool) Imm {
	if v {
		return Imm{Value: 1, Type: tp.BoolType}
	}

	return Imm{Value: 0, Type: tp.BoolType}
}

// Defs returns the register written by in.
func Defs(in Inst) (Reg, bool) {
	switch in := in.(type) {
	case Assign:
		return in.Dst, true
	case BinOp:
		return in.Dst, true
	case UnOp:
		return in.Dst, true
	case GetField:
		return in.Dst, true
	case ArrayLoad:
		return in.Dst, true
	case ArrayLength:
		return in.Dst, true
	case Call:
		if in.Dst != nil {
			return *in.Dst, true
		}
	case New:
		return in.Dst, true
	case NewArray:
		return in.Dst, true
	}

	return Reg{}, false
}

// Uses returns the registers read by in, in operand order.
func Uses(in Inst) (r []Reg) {
	add := func(vs ...Value) {
		for _, v := range vs {
			if reg, ok := v.(Reg); ok {
				r = append(r, reg)
			}
		}
	}

	switch in := in.(type) {
	case Assign:
		add(in.Src)
	case BinOp:
		add(in.L, in.R)
	case UnOp:
		add(in.X)
	case PutField:
		add(in.Src)
	case ArrayLoad:
		add(in.Array, in.Index)
	case ArrayStore:
		add(in.Array, in.Index, in.Src)
	case ArrayLength:
		add(in.Array)
	case Call:
		add(in.Recv)
		add(in.Args...)
	case NewArray:
		add(in.Len)
	case CondBranch:
		add(in.Cond)
	case Return:
		add(in.X)
	}

	return r
}

// MapOperands returns in with every operand replaced by f(operand).
// Destinations are left untouched.
func MapOperands(in Inst, f func(Value) Value) Inst {
	m := func(v Value) Value {
		if v == nil {
			return nil
		}

		return f(v)
	}

	switch x := in.(type) {
	case Assign:
		x.Src = m(x.Src)
		return x
	case BinOp:
		x.L, x.R = m(x.L), m(x.R)
		return x
	case UnOp:
		x.X = m(x.X)
		return x
	case PutField:
		x.Src = m(x.Src)
		return x
	case ArrayLoad:
		x.Array, x.Index = m(x.Array), m(x.Index)
		return x
	case ArrayStore:
		x.Array, x.Index, x.Src = m(x.Array), m(x.Index), m(x.Src)
		return x
	case ArrayLength:
		x.Array = m(x.Array)
		return x
	case Call:
		x = cloneCall(x)
		x.Recv = m(x.Recv)

		for i, a := range x.Args {
			x.Args[i] = m(a)
		}

		return x
	case NewArray:
		x.Len = m(x.Len)
		return x
	case CondBranch:
		x.Cond = m(x.Cond)
		return x
	case Return:
		x.X = m(x.X)
		return x
	}

	return in
}

func cloneCall(x Call) Call {
	if x.Dst != nil {
		d := *x.Dst
		x.Dst = &d
	}

	x.Args = append([]Value(nil), x.Args...)
	x.Params = append([]tp.Type(nil), x.Params...)

	return x
}

func (m *Method) Clone() *Method {
	c := *m

	c.Params = append([]Var(nil), m.Params...)
	c.Vars = append([]Var(nil), m.Vars...)
	c.Code = make([]Inst, len(m.Code))

	for i, in := range m.Code {
		if call, ok := in.(Call); ok {
			in = cloneCall(call)
		}

		c.Code[i] = in
	}

	if m.Slots != nil {
		c.Slots = make(map[string]int, len(m.Slots))

		for k, v := range m.Slots {
			c.Slots[k] = v
		}
	}

	return &c
}

func (c *Class) Clone() *Class {
	r := *c

	r.Imports = append([]string(nil), c.Imports...)
	r.Fields = append([]Field(nil), c.Fields...)
	r.Methods = make([]*Method, len(c.Methods))

	for i, m := range c.Methods {
		r.Methods[i] = m.Clone()
	}

	return &r
}

func (m *Method) Var(name string) (Var, bool) {
	for _, v := range m.Vars {
		if v.Name == name {
			return v, true
		}
	}

	return Var{}, false
}

func (c *Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}

	return Field{}, false
}

// Qualify maps a class name to its JVM internal name
// using the import list.
func (c *Class) Qualify(name string) string {
	switch {
	case name == "":
		return ObjectClass
	case name == c.Name, strings.Contains(name, "/"):
		return name
	}

	for _, q := range c.Imports {
		if q == name || strings.HasSuffix(q, "."+name) {
			return strings.ReplaceAll(q, ".", "/")
		}
	}

	return name
}

func (k VarKind) String() string {
	switch k {
	case This:
		return "this"
	case Param:
		return "param"
	case Local:
		return "local"
	case Temp:
		return "temp"
	default:
		return "VarKind(?)"
	}
}

func (k CallKind) String() string {
	switch k {
	case Static:
		return "invokestatic"
	case Virtual:
		return "invokevirtual"
	case Special:
		return "invokespecial"
	default:
		return "invoke?"
	}
}
