package back

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/jmm/compiler/analyze"
	"github.com/slowlang/jmm/compiler/lower"
	"github.com/slowlang/jmm/compiler/ollir"
	"github.com/slowlang/jmm/compiler/optimize"
	"github.com/slowlang/jmm/compiler/parse"
	"github.com/slowlang/jmm/compiler/sym"
	"github.com/slowlang/jmm/compiler/tp"
)

const program = `import io;
import Base;

class Sample extends Base {
	int[] arr;
	boolean flag;

	public int square(int x) {
		return x * x;
	}

	public int loop(int n) {
		int i;
		int sum;
		i = 0;
		sum = 0;
		while (i < n && !flag) {
			sum = sum + this.square(i) / 2;
			i = i + 1;
		}
		return sum - 1000;
	}

	public int[] fill(int n) {
		int[] a;
		a = new int[n];
		a[0] = a.length * 100000;
		arr = a;
		flag = a[0] < 0 - 1;
		return arr;
	}

	public static void main(String[] args) {
		Sample s;
		s = new Sample();
		io.println(s.loop(10));
		s.fill(3);
		io.println(args.length);
	}
}
`

func compile(t *testing.T, src string, opts optimize.Options) (*ollir.Class, string) {
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

	cls, rep = optimize.Run(ctx, cls, opts)
	require.Empty(t, rep)

	b, err := New().CompileClass(ctx, nil, cls)
	require.NoError(t, err)

	t.Logf("jasmin:\n%s", b)

	return cls, string(b)
}

func TestCompileClass(t *testing.T) {
	for _, opts := range []optimize.Options{{}, {Optimize: true}, {MaxRegisters: 6}} {
		_, text := compile(t, program, opts)

		assert.True(t, strings.HasPrefix(text, ".class public Sample\n.super Base\n"))
		assert.Contains(t, text, ".field private arr [I\n")
		assert.Contains(t, text, ".field private flag Z\n")
		assert.Contains(t, text, ".method public <init>()V\n")
		assert.Contains(t, text, "invokespecial Base/<init>()V")
		assert.Contains(t, text, ".method public static main([Ljava/lang/String;)V\n")
		assert.Contains(t, text, ".method public fill(I)[I\n")
		assert.Contains(t, text, "invokestatic io/println(I)V")
		assert.Contains(t, text, "invokevirtual Sample/loop(I)I")
		assert.Contains(t, text, "getfield Sample/flag Z")
		assert.Contains(t, text, "putfield Sample/arr [I")
		assert.Contains(t, text, "newarray int")
		assert.Contains(t, text, "new Sample")
		assert.Contains(t, text, "iinc ")
		assert.Contains(t, text, "if_icmplt")
		assert.Contains(t, text, "ixor")
		assert.Contains(t, text, "ldc 100000")
		assert.Contains(t, text, "sipush 1000")
		assert.Contains(t, text, "\tpop\n")

		checkStack(t, text)
	}
}

func TestSquare(t *testing.T) {
	_, text := compile(t, program, optimize.Options{})

	m := methodText(t, text, "square")

	assert.Equal(t, 1, strings.Count(m, "\timul\n"))
	assert.Equal(t, 1, strings.Count(m, "\tireturn\n"))
	assert.Contains(t, m, ".limit stack 2\n")
	assert.Contains(t, m, ".limit locals 3\n")
}

func TestConstants(t *testing.T) {
	cls := &ollir.Class{Name: "C"}
	m := &ollir.Method{
		Name:   "f",
		Static: true,
		Return: tp.IntType,
		Vars:   []ollir.Var{{Name: "x", Type: tp.IntType, Kind: ollir.Local}},
		Slots:  map[string]int{"x": 0},
		Locals: 1,
	}

	for _, v := range []int32{-1, 0, 5, 6, -128, 127, 128, -32768, 32767, 32768, -2147483648} {
		m.Code = append(m.Code, ollir.Assign{Dst: ollir.Reg{Name: "x", Type: tp.IntType}, Src: ollir.Int(v)})
	}

	m.Code = append(m.Code, ollir.Return{X: ollir.Int(0)})
	cls.Methods = []*ollir.Method{m}

	b, err := New().CompileClass(context.Background(), nil, cls)
	require.NoError(t, err)

	text := string(b)

	for _, want := range []string{
		"iconst_m1", "iconst_0", "iconst_5", "bipush 6", "bipush -128", "bipush 127",
		"sipush 128", "sipush -32768", "sipush 32767", "ldc 32768", "ldc -2147483648",
		".limit stack 1", "istore_0",
	} {
		assert.Contains(t, text, "\t"+want+"\n", want)
	}

	checkStack(t, text)
}

func TestMissingSlot(t *testing.T) {
	cls := &ollir.Class{Name: "C"}
	cls.Methods = []*ollir.Method{{
		Name:   "f",
		Static: true,
		Return: tp.IntType,
		Code:   []ollir.Inst{ollir.Return{X: ollir.Reg{Name: "x", Type: tp.IntType}}},
		Slots:  map[string]int{},
	}}

	_, err := New().CompileClass(context.Background(), nil, cls)
	assert.ErrorContains(t, err, "no slot for register x")

	cls.Methods[0].Slots = nil

	_, err = New().CompileClass(context.Background(), nil, cls)
	assert.ErrorContains(t, err, "registers are not allocated")
}

func methodText(t *testing.T, text, name string) string {
	t.Helper()

	st := strings.Index(text, ".method public "+name+"(")
	require.True(t, st >= 0, "method %v", name)

	end := strings.Index(text[st:], ".end method")
	require.True(t, end >= 0)

	return text[st : st+end]
}

// checkStack simulates every method symbolically and compares
// the maximum stack depth with the declared limit.
func checkStack(t *testing.T, text string) {
	t.Helper()

	for _, m := range strings.Split(text, ".method ")[1:] {
		lines := strings.Split(m, "\n")
		name := lines[0]

		var code []string
		limit := -1
		labels := map[string]int{}

		for _, l := range lines[1:] {
			l = strings.TrimSpace(l)

			switch {
			case l == "" || l == ".end method":
			case strings.HasPrefix(l, ".limit stack "):
				limit, _ = strconv.Atoi(strings.TrimPrefix(l, ".limit stack "))
			case strings.HasPrefix(l, ".limit"):
			case strings.HasSuffix(l, ":"):
				labels[strings.TrimSuffix(l, ":")] = len(code)
			default:
				code = append(code, l)
			}
		}

		max := simulate(t, name, code, labels)
		assert.Equal(t, limit, max, "method %v", name)
	}
}

func simulate(t *testing.T, name string, code []string, labels map[string]int) (max int) {
	t.Helper()

	depth := make([]int, len(code)+1)
	for i := range depth {
		depth[i] = -1
	}

	work := []int{0}
	depth[0] = 0

	visit := func(pc, d int) {
		if pc >= len(code) {
			return
		}

		if depth[pc] >= 0 {
			assert.Equal(t, depth[pc], d, "%v: inconsistent depth at %d", name, pc)
			return
		}

		depth[pc] = d
		work = append(work, pc)
	}

	for len(work) != 0 {
		pc := work[len(work)-1]
		work = work[:len(work)-1]

		op := strings.Fields(code[pc])
		d := depth[pc] + effect(t, op)

		require.GreaterOrEqual(t, d, 0, "%v: stack underflow at %q", name, code[pc])

		if d > max {
			max = d
		}

		switch {
		case op[0] == "goto":
			visit(labels[op[1]], d)
		case op[0] == "ifne" || op[0] == "if_icmplt":
			visit(labels[op[1]], d)
			visit(pc+1, d)
		case strings.HasSuffix(op[0], "return"):
		default:
			visit(pc+1, d)
		}
	}

	return max
}

func effect(t *testing.T, op []string) int {
	switch o := op[0]; {
	case strings.HasPrefix(o, "iconst"), o == "bipush", o == "sipush", o == "ldc",
		strings.HasPrefix(o, "iload"), strings.HasPrefix(o, "aload"), o == "new":
		return 1
	case strings.HasPrefix(o, "istore"), strings.HasPrefix(o, "astore"),
		o == "iadd", o == "isub", o == "imul", o == "idiv", o == "iand", o == "ixor",
		o == "iaload", o == "aaload", o == "pop", o == "ifne", o == "ireturn", o == "areturn":
		return -1
	case o == "if_icmplt", o == "putfield":
		return -2
	case o == "iastore", o == "aastore":
		return -3
	case o == "getfield", o == "arraylength", o == "newarray", o == "anewarray",
		o == "goto", o == "return", o == "iinc":
		return 0
	case strings.HasPrefix(o, "invoke"):
		desc := op[1][strings.Index(op[1], "("):]
		d := -descArgs(desc)

		if o != "invokestatic" {
			d--
		}

		if !strings.HasSuffix(desc, ")V") {
			d++
		}

		return d
	}

	t.Fatalf("unknown instruction %q", op)

	return 0
}

func descArgs(desc string) (n int) {
	args := desc[1:strings.Index(desc, ")")]

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case '[':
			continue
		case 'L':
			i += strings.Index(args[i:], ";")
		}

		n++
	}

	return n
}
