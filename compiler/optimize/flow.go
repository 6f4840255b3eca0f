package optimize

import (
	"github.com/slowlang/jmm/compiler/ollir"
	"github.com/slowlang/jmm/compiler/set"
)

type (
	// flow is the control flow graph of a method at instruction granularity.
	flow struct {
		code   []ollir.Inst
		labels map[string]int
	}

	liveness struct {
		index map[string]int
		names []string

		in, out []set.Bitmap
	}
)

func newFlow(code []ollir.Inst) *flow {
	f := &flow{
		code:   code,
		labels: map[string]int{},
	}

	for i, in := range code {
		if l, ok := in.(ollir.Label); ok {
			f.labels[l.Name] = i
		}
	}

	return f
}

// succ calls yield for every possible successor of instruction i.
// cond, if set, decides statically known branches.
func (f *flow) succ(i int, cond func(ollir.Value) (bool, bool), yield func(int)) {
	next := func() {
		if i+1 < len(f.code) {
			yield(i + 1)
		}
	}

	switch in := f.code[i].(type) {
	case ollir.Return, ollir.ReturnVoid:
	case ollir.Goto:
		yield(f.labels[in.Target])
	case ollir.CondBranch:
		if cond != nil {
			if taken, ok := cond(in.Cond); ok {
				if taken {
					yield(f.labels[in.Target])
				} else {
					next()
				}

				return
			}
		}

		yield(f.labels[in.Target])
		next()
	default:
		next()
	}
}

func (f *flow) liveness(vars []ollir.Var) *liveness {
	l := &liveness{
		index: make(map[string]int, len(vars)),
		in:    make([]set.Bitmap, len(f.code)),
		out:   make([]set.Bitmap, len(f.code)),
	}

	for _, v := range vars {
		l.index[v.Name] = len(l.names)
		l.names = append(l.names, v.Name)
	}

	for i := range f.code {
		l.in[i] = set.MakeBitmap(len(vars))
		l.out[i] = set.MakeBitmap(len(vars))
	}

	for changed := true; changed; {
		changed = false

		for i := len(f.code) - 1; i >= 0; i-- {
			f.succ(i, nil, func(s int) {
				l.out[i].Or(l.in[s])
			})

			in := l.out[i].Copy()

			if d, ok := ollir.Defs(f.code[i]); ok {
				in.Clear(l.index[d.Name])
			}

			for _, u := range ollir.Uses(f.code[i]) {
				in.Set(l.index[u.Name])
			}

			if !in.Equal(l.in[i]) {
				l.in[i] = in
				changed = true
			}
		}
	}

	return l
}

func (l *liveness) liveOut(i int, name string) bool {
	return l.out[i].IsSet(l.index[name])
}
