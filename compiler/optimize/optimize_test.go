package optimize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/jmm/compiler/analyze"
	"github.com/slowlang/jmm/compiler/lower"
	"github.com/slowlang/jmm/compiler/ollir"
	"github.com/slowlang/jmm/compiler/parse"
	"github.com/slowlang/jmm/compiler/report"
	"github.com/slowlang/jmm/compiler/sym"
	"github.com/slowlang/jmm/compiler/tp"
)

func compile(t *testing.T, src string) *ollir.Class {
	t.Helper()

	ctx := context.Background()

	f, rep := parse.Parse(ctx, []byte(src))
	require.Empty(t, rep)

	tab, rep := sym.Build(ctx, f)
	require.Empty(t, rep)

	res, rep := analyze.Analyze(ctx, f, tab)
	require.False(t, rep.HasErrors(), "%v", rep)

	cls, rep := lower.Lower(ctx, res)
	require.Empty(t, rep)

	return cls
}

func body(t *testing.T, stmts string) *ollir.Method {
	t.Helper()

	cls := compile(t, `class A { public int f(int p) { int x; int y; int i; boolean b; `+stmts+` } }`)

	return cls.Methods[1]
}

func TestFoldConstant(t *testing.T) {
	m := Fold(body(t, `x = 2 + 3; return x;`))

	assert.Equal(t, []ollir.Inst{ollir.Return{X: ollir.Int(5)}}, m.Code)

	for _, v := range m.Vars {
		assert.NotEqual(t, ollir.Local, v.Kind, "%v not pruned", v.Name)
		assert.NotEqual(t, ollir.Temp, v.Kind, "%v not pruned", v.Name)
	}
}

func TestFoldChain(t *testing.T) {
	m := Fold(body(t, `x = 10; y = x * 3 - 4 / 2; b = x < y && !false; if (b) i = y; else i = 0; return i + p;`))

	require.Len(t, m.Code, 2)

	add, ok := m.Code[0].(ollir.BinOp)
	require.True(t, ok)
	assert.Equal(t, ollir.Int(28), add.L)
	assert.Equal(t, ollir.Reg{Name: "p", Type: tp.IntType}, add.R)

	t.Logf("folded:\n%s", ollir.FormatMethod(nil, m))
}

func TestFoldWraparound(t *testing.T) {
	m := Fold(body(t, `x = 2147483647; return x + 1;`))
	assert.Equal(t, []ollir.Inst{ollir.Return{X: ollir.Int(-2147483648)}}, m.Code)

	m = Fold(body(t, `x = 0 - 2147483647 - 1; return x / (0 - 1);`))
	assert.Equal(t, []ollir.Inst{ollir.Return{X: ollir.Int(-2147483648)}}, m.Code)
}

func TestFoldDivZero(t *testing.T) {
	m := Fold(body(t, `x = 0; return 1 / x;`))

	require.Len(t, m.Code, 2)

	div, ok := m.Code[0].(ollir.BinOp)
	require.True(t, ok)
	assert.Equal(t, ollir.Div, div.Op)
	assert.Equal(t, ollir.Int(0), div.R)
}

func TestFoldDeadBranch(t *testing.T) {
	m := Fold(body(t, `while (false) { x = p; } if (1 < 2) y = 1; else y = p; return y;`))

	assert.Equal(t, []ollir.Inst{ollir.Return{X: ollir.Int(1)}}, m.Code)
}

func TestFoldKeepsLoops(t *testing.T) {
	m := Fold(body(t, `i = 0; x = 5; while (i < p) { i = i + x; } return i;`))

	assert.Equal(t, 1, countCond(m.Code))

	var inc ollir.BinOp
	for _, in := range m.Code {
		if b, ok := in.(ollir.BinOp); ok && b.Op == ollir.Add {
			inc = b
		}
	}

	assert.Equal(t, ollir.Int(5), inc.R, "x propagated into the loop")
}

func TestFoldIdempotent(t *testing.T) {
	for _, src := range []string{
		`i = 0; x = 5; while (i < p) { i = i + x; } return i;`,
		`x = 1; if (p < x && true) y = x; else { y = 2; x = 3; } return x + y;`,
		`b = true; while (b) { b = i < p; i = i + 1; } return i;`,
		`return p;`,
	} {
		once := Fold(body(t, src))
		twice := Fold(once)

		assert.Equal(t, string(ollir.FormatMethod(nil, once)), string(ollir.FormatMethod(nil, twice)), "%s", src)
	}
}

func TestFoldDoesNotMutate(t *testing.T) {
	m := body(t, `x = 2 + 3; return x;`)
	before := string(ollir.FormatMethod(nil, m))

	Fold(m)

	assert.Equal(t, before, string(ollir.FormatMethod(nil, m)))
}

func TestAllocateMinimal(t *testing.T) {
	m := body(t, `x = 1; y = x + 1; i = y + 1; return i;`)

	a, err := Allocate(m, 0)
	require.NoError(t, err)

	assert.Equal(t, 0, a.Slots["this"])
	assert.Equal(t, 1, a.Slots["p"])
	assert.Equal(t, 3, a.Locals)
	assert.Equal(t, 1, a.Colors)
}

func TestAllocateValid(t *testing.T) {
	for _, src := range []string{
		`x = p + 1; y = x * p; i = x + y; return i * x * y;`,
		`i = 0; x = 5; while (i < p) { y = i * x; i = i + y; x = x - 1; } return i + x;`,
		`x = 1; if (p < x && true) y = x; else { y = 2; x = 3; } return x + y;`,
	} {
		for _, opt := range []bool{false, true} {
			m := body(t, src)
			if opt {
				m = Fold(m)
			}

			a, err := Allocate(m, 0)
			require.NoError(t, err)

			checkAllocation(t, m, a)
		}
	}
}

func checkAllocation(t *testing.T, m *ollir.Method, a *Allocation) {
	t.Helper()

	lv := newFlow(m.Code).liveness(m.Vars)

	for i, in := range m.Code {
		d, ok := ollir.Defs(in)
		if !ok {
			continue
		}

		var src string
		if as, ok := in.(ollir.Assign); ok {
			if r, ok := as.Src.(ollir.Reg); ok {
				src = r.Name
			}
		}

		lv.out[i].Range(func(r int) bool {
			name := lv.names[r]
			if name != d.Name && name != src {
				assert.NotEqual(t, a.Slots[d.Name], a.Slots[name], "%v and %v share a slot at %d", d.Name, name, i)
			}

			return true
		})
	}

	for name, s := range a.Slots {
		assert.Less(t, s, a.Locals, "slot of %v", name)
	}
}

func TestRunCap(t *testing.T) {
	cls := compile(t, `class A {
	public int f(int a) {
		int b; int c; int d;
		b = a + 1; c = b + a; d = c + b;
		return d + c + b;
	}
}`)

	_, rep := Run(context.Background(), cls, Options{MaxRegisters: 2})
	require.Len(t, rep, 1)

	r := rep[0]
	assert.Equal(t, report.Optimization, r.Stage)
	assert.Equal(t, report.Error, r.Severity)
	assert.Contains(t, r.Message, "method f")

	out, rep := Run(context.Background(), cls, Options{MaxRegisters: 5})
	require.Empty(t, rep)

	m := out.Methods[1]
	assert.LessOrEqual(t, m.Locals, 5)
	checkAllocation(t, m, &Allocation{Slots: m.Slots, Locals: m.Locals})

	assert.Nil(t, cls.Methods[1].Slots, "input is not modified")
}

func TestRunOptimize(t *testing.T) {
	cls := compile(t, `class A {
	public int f(int p) { int x; x = 2 + 3; return x; }
	public static void main(String[] args) { }
}`)

	out, rep := Run(context.Background(), cls, Options{Optimize: true})
	require.Empty(t, rep)

	require.Len(t, out.Methods, 3)

	assert.Equal(t, []ollir.Inst{ollir.Return{X: ollir.Int(5)}}, out.Methods[1].Code)
	assert.Equal(t, 2, out.Methods[1].Locals)

	assert.Equal(t, 1, out.Methods[0].Locals, "constructor")
	assert.Equal(t, 1, out.Methods[2].Locals, "main")
	assert.Equal(t, 0, out.Methods[2].Slots["args"])
}

func countCond(code []ollir.Inst) (n int) {
	for _, in := range code {
		if _, ok := in.(ollir.CondBranch); ok {
			n++
		}
	}

	return n
}
