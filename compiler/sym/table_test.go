package sym

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/jmm/compiler/parse"
	"github.com/slowlang/jmm/compiler/report"
	"github.com/slowlang/jmm/compiler/tp"
)

func build(t *testing.T, src string) (*Table, report.List) {
	t.Helper()

	ctx := context.Background()

	f, rep := parse.Parse(ctx, []byte(src))
	require.Empty(t, rep)

	return Build(ctx, f)
}

func TestBuild(t *testing.T) {
	tab, rep := build(t, `import a.b.Base;
import io;
class C extends Base {
	int x;
	C self;
	public int f(int a, int[] b) { boolean c; return a; }
	public int f(boolean a) { return 1; }
	public static void main(String[] args) { }
}`)
	require.Empty(t, rep)

	assert.Equal(t, "C", tab.Class)
	assert.Equal(t, "Base", tab.Super)
	assert.Equal(t, []string{"a.b.Base", "io"}, tab.Imports)

	q, ok := tab.Import("Base")
	assert.True(t, ok)
	assert.Equal(t, "a.b.Base", q)

	assert.True(t, tab.SuperImported())
	assert.True(t, tab.KnownClass("io"))
	assert.True(t, tab.KnownClass("C"))
	assert.False(t, tab.KnownClass("D"))

	f, ok := tab.Field("self")
	require.True(t, ok)
	assert.Equal(t, tp.ClassType("C"), f.Type)

	require.Len(t, tab.MethodsNamed("f"), 2)

	m := tab.Method("f(int,int[])")
	require.NotNil(t, m)
	assert.Equal(t, tp.IntType, m.Return)
	assert.True(t, m.IsParam("b"))
	assert.False(t, m.IsParam("c"))

	v, ok := m.Var("c")
	require.True(t, ok)
	assert.Equal(t, tp.BoolType, v.Type)

	main := tab.Method("main(String[])")
	require.NotNil(t, main)
	assert.True(t, main.Static)

	assert.True(t, tab.Extends("C", "Base"))
	assert.False(t, tab.Extends("Base", "C"))

	listing := string(tab.Print(nil))
	t.Logf("table:\n%s", listing)

	assert.Contains(t, listing, "class C\nextends Base\n")
	assert.Contains(t, listing, "\nimports (2)\n\ta.b.Base\n\tio\n")
	assert.Contains(t, listing, "\tC self\n")
	assert.Contains(t, listing, "\tint f(int,int[])\n\t\tparam int a\n\t\tparam int[] b\n\t\tlocal boolean c\n")
	assert.Contains(t, listing, "\tstatic void main(String[])\n")
}

func TestBuildDuplicates(t *testing.T) {
	_, rep := build(t, `import a.X;
import b.X;
class C {
	int x;
	boolean x;
	public int f(int a, int a) { int b; int b; return 0; }
	public int f(int c) { return 0; }
}`)

	msgs := make([]string, len(rep))
	for i, r := range rep {
		assert.Equal(t, report.Semantic, r.Stage)
		assert.Equal(t, report.Error, r.Severity)

		msgs[i] = r.Message
	}

	assert.Len(t, rep, 5, "%q", msgs)
	assert.Contains(t, msgs[0], "import b.X conflicts")
	assert.Contains(t, msgs[1], "duplicate field")
	assert.Contains(t, msgs[2], "duplicate parameter a")
	assert.Contains(t, msgs[3], "duplicate variable b")
	assert.Contains(t, msgs[4], "duplicate method f(int)")
}

func TestSignature(t *testing.T) {
	assert.Equal(t, "g()", Signature("g", nil))
	assert.Equal(t, "g(int[],boolean,C)", Signature("g", []tp.Type{tp.IntArray, tp.BoolType, tp.ClassType("C")}))
}
