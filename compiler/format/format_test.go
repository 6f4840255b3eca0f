package format

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/jmm/compiler/parse"
)

func TestFormatRoundTrip(t *testing.T) {
	ctx := context.Background()

	src := `import io;

class A extends B {
	int[] a;

	public int f(int x, boolean y) {
		int i;
		i = (x + 1) * 2 - x / (3 - 1);
		while (i < 10 && !(y && false))
			i = i + 1;
		a[i] = a.length;
		if (!this.g(new A()).h())
			io.p(a[0]);
		else
			{
				i = 0;
			}
		return i;
	}
}
`

	f, rep := parse.Parse(ctx, []byte(src))
	require.Empty(t, rep)

	b, err := Format(ctx, nil, f)
	require.NoError(t, err)

	f2, rep := parse.Parse(ctx, b)
	require.Empty(t, rep, "%s", b)

	b2, err := Format(ctx, nil, f2)
	require.NoError(t, err)

	assert.Equal(t, string(b), string(b2))
	assert.Contains(t, string(b), "(x + 1) * 2 - x / (3 - 1)")
	assert.Contains(t, string(b), "!(y && false)")

	t.Logf("formatted:\n%s", b)
}
