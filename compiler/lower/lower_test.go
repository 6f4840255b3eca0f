package lower

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/jmm/compiler/analyze"
	"github.com/slowlang/jmm/compiler/ollir"
	"github.com/slowlang/jmm/compiler/parse"
	"github.com/slowlang/jmm/compiler/sym"
	"github.com/slowlang/jmm/compiler/tp"
)

func lower(t *testing.T, src string) *ollir.Class {
	t.Helper()

	ctx := context.Background()

	f, rep := parse.Parse(ctx, []byte(src))
	require.Empty(t, rep)

	tab, rep := sym.Build(ctx, f)
	require.Empty(t, rep)

	res, rep := analyze.Analyze(ctx, f, tab)
	require.False(t, rep.HasErrors(), "%v", rep)

	cls, rep := Lower(ctx, res)
	require.Empty(t, rep)

	t.Logf("ollir:\n%s", ollir.Format(cls))

	return cls
}

func method(t *testing.T, cls *ollir.Class, name string) *ollir.Method {
	t.Helper()

	for _, m := range cls.Methods {
		if m.Name == name && !m.Constructor {
			return m
		}
	}

	t.Fatalf("no method %v", name)

	return nil
}

func count[T ollir.Inst](code []ollir.Inst) (n int) {
	for _, in := range code {
		if _, ok := in.(T); ok {
			n++
		}
	}

	return n
}

func TestLowerSquare(t *testing.T) {
	cls := lower(t, `class A { public int square(int x) { return x * x; } }`)

	require.Len(t, cls.Methods, 2)

	ctor := cls.Methods[0]
	assert.True(t, ctor.Constructor)
	assert.Equal(t, "A", ctor.Name)
	require.Len(t, ctor.Code, 2)

	init, ok := ctor.Code[0].(ollir.Call)
	require.True(t, ok)
	assert.Equal(t, ollir.Special, init.Kind)
	assert.Equal(t, "<init>", init.Method)
	assert.Equal(t, "", init.Owner)

	m := method(t, cls, "square")
	assert.Equal(t, 1, count[ollir.Return](m.Code))

	mul, ok := m.Code[0].(ollir.BinOp)
	require.True(t, ok)
	assert.Equal(t, ollir.Mul, mul.Op)
	assert.Equal(t, ollir.Reg{Name: "x", Type: tp.IntType}, mul.L)

	ret := m.Code[1].(ollir.Return)
	assert.Equal(t, mul.Dst, ret.X)

	text := string(ollir.Format(cls))
	assert.Contains(t, text, ".method public square(x.i32).i32 {")
	assert.Contains(t, text, "t0.i32 :=.i32 x.i32 *.i32 x.i32;")
	assert.Contains(t, text, "ret.i32 t0.i32;")
	assert.Contains(t, text, ".construct A().V {")
}

func TestLowerTempNames(t *testing.T) {
	cls := lower(t, `class A { public int f(int t0) { int t1; t1 = t0 + 1; return t1 * 2 + t0; } }`)

	m := method(t, cls, "f")

	var names []string
	for _, v := range m.Vars {
		if v.Kind == ollir.Temp {
			names = append(names, v.Name)
		}
	}

	assert.Equal(t, []string{"t2", "t3"}, names)

	// assignment to a local is written in place
	add := m.Code[0].(ollir.BinOp)
	assert.Equal(t, "t1", add.Dst.Name)
}

func TestLowerControlFlow(t *testing.T) {
	cls := lower(t, `class A {
	public int f(int n) {
		int i;
		boolean b;
		i = 0;
		while (i < n) {
			if (i < 5 && !(n < 3)) i = i + 2; else i = i + 1;
		}
		b = i < n && true;
		return i;
	}
}`)

	m := method(t, cls, "f")

	var labels []string
	for _, in := range m.Code {
		if l, ok := in.(ollir.Label); ok {
			labels = append(labels, l.Name)
		}
	}

	assert.Equal(t, []string{
		"while_body_0",
		"and_rhs_2", "and_end_2",
		"if_then_1", "if_end_1",
		"while_cond_0",
		"and_rhs_3", "and_end_3",
	}, labels)

	assert.Equal(t, 4, count[ollir.CondBranch](m.Code))

	seen := map[string]bool{}
	for _, v := range m.Vars {
		assert.False(t, seen[v.Name], "duplicate var %v", v.Name)
		seen[v.Name] = true
	}

	for _, in := range m.Code {
		if d, ok := ollir.Defs(in); ok {
			assert.True(t, seen[d.Name], "undeclared %v", d.Name)
		}

		for _, u := range ollir.Uses(in) {
			assert.True(t, seen[u.Name], "undeclared %v", u.Name)
		}
	}
}

func TestLowerCalls(t *testing.T) {
	cls := lower(t, `import io;
import Base;
class A extends Base {
	int[] arr;
	public int g(int x, boolean y) { return x; }
	public int f() {
		A a;
		int r;
		a = new A();
		r = a.g(1, true);
		io.println(r);
		r = this.unknown(r) + inherited;
		this.unknown(2);
		arr = new int[r];
		arr[0] = arr.length;
		return r;
	}
}`)

	m := method(t, cls, "f")

	var calls []ollir.Call
	for _, in := range m.Code {
		if c, ok := in.(ollir.Call); ok {
			calls = append(calls, c)
		}
	}

	require.Len(t, calls, 5)

	assert.Equal(t, ollir.Special, calls[0].Kind)
	assert.Equal(t, "A", calls[0].Owner)

	assert.Equal(t, ollir.Virtual, calls[1].Kind)
	assert.Equal(t, []tp.Type{tp.IntType, tp.BoolType}, calls[1].Params)
	assert.Equal(t, "r", calls[1].Dst.Name)

	assert.Equal(t, ollir.Static, calls[2].Kind)
	assert.Equal(t, "io", calls[2].Owner)
	assert.Nil(t, calls[2].Recv)
	assert.Equal(t, tp.VoidType, calls[2].Ret)
	assert.Nil(t, calls[2].Dst)

	assert.Equal(t, tp.IntType, calls[3].Ret, "hinted by arithmetic")
	assert.Equal(t, "A", calls[3].Owner)
	assert.Equal(t, tp.VoidType, calls[4].Ret, "unknown call statement")

	assert.Equal(t, 1, count[ollir.New](m.Code))
	assert.Equal(t, 1, count[ollir.NewArray](m.Code))
	assert.Equal(t, 1, count[ollir.ArrayStore](m.Code))
	assert.Equal(t, 1, count[ollir.ArrayLength](m.Code))
	assert.Equal(t, 1, count[ollir.PutField](m.Code))

	var gets []ollir.GetField
	for _, in := range m.Code {
		if g, ok := in.(ollir.GetField); ok {
			gets = append(gets, g)
		}
	}

	require.Len(t, gets, 3)
	assert.Equal(t, "inherited", gets[0].Field)
	assert.Equal(t, tp.IntType, gets[0].Dst.Type)
	assert.Equal(t, tp.IntArray, gets[1].Dst.Type)
}

func TestLowerMain(t *testing.T) {
	cls := lower(t, `class A { public static void main(String[] args) { } }`)

	m := method(t, cls, "main")
	assert.True(t, m.Static)
	require.Len(t, m.Params, 1)
	assert.Equal(t, tp.StringArray, m.Params[0].Type)
	assert.Equal(t, []ollir.Inst{ollir.ReturnVoid{}}, m.Code)

	_, ok := m.Var("this")
	assert.False(t, ok)
}
