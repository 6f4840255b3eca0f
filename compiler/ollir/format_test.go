package ollir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slowlang/jmm/compiler/tp"
)

func TestFormat(t *testing.T) {
	x := Reg{Name: "x", Type: tp.IntType}
	t0 := Reg{Name: "t0", Type: tp.BoolType}
	this := Reg{Name: "this", Type: tp.ClassType("A")}

	cls := &Class{
		Name:    "A",
		Super:   "B",
		Imports: []string{"B", "io"},
		Fields:  []Field{{Name: "n", Type: tp.IntArray}},
		Methods: []*Method{{
			Name:   "f",
			Params: []Var{{Name: "x", Type: tp.IntType, Kind: Param}},
			Return: tp.IntType,
			Code: []Inst{
				BinOp{Dst: x, Op: Add, L: x, R: Int(1)},
				BinOp{Dst: t0, Op: Lt, L: x, R: Int(10)},
				CondBranch{Cond: t0, Target: "if_then_0"},
				Call{Kind: Static, Owner: "io", Method: "println", Args: []Value{x}, Params: []tp.Type{tp.IntType}, Ret: tp.VoidType},
				Label{Name: "if_then_0"},
				Call{Kind: Virtual, Dst: &x, Recv: this, Method: "g", Ret: tp.IntType},
				Return{X: x},
			},
		}},
	}

	assert.Equal(t, `import B;
import io;

A extends B {
	.field private n.array.i32;

	.method public f(x.i32).i32 {
		x.i32 :=.i32 x.i32 +.i32 1.i32;
		t0.bool :=.bool x.i32 <.bool 10.i32;
		if (t0.bool) goto if_then_0;
		invokestatic(io, "println", x.i32).V;
	if_then_0:
		x.i32 :=.i32 invokevirtual(this.A, "g").i32;
		ret.i32 x.i32;
	}
}
`, string(Format(cls)))
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, ".i32", Suffix(tp.IntType))
	assert.Equal(t, ".array.String", Suffix(tp.StringArray))
	assert.Equal(t, ".Foo", Suffix(tp.ClassType("Foo")))
	assert.Equal(t, ".?", Suffix(tp.UnknownType))
}
