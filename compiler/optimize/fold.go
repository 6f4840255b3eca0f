package optimize

import (
	"bytes"

	"github.com/slowlang/jmm/compiler/ollir"
)

type (
	latKind int8

	lat struct {
		kind latKind
		v    int32
	}

	// env maps registers to lattice values. Missing registers are undef.
	env map[string]lat
)

const (
	undef latKind = iota
	constant
	varying
)

// Fold runs constant propagation and cleanup passes on a copy of m
// until nothing changes.
func Fold(m *ollir.Method) *ollir.Method {
	m = m.Clone()

	for {
		prev := ollir.FormatMethod(nil, m)

		m.Code = propagate(m)
		m.Code = tidyLabels(m.Code)
		m.Code = dropDeadStores(m)

		if bytes.Equal(prev, ollir.FormatMethod(nil, m)) {
			break
		}
	}

	pruneVars(m)

	return m
}

func propagate(m *ollir.Method) []ollir.Inst {
	code := m.Code
	if len(code) == 0 {
		return code
	}

	f := newFlow(code)
	states := make([]env, len(code))

	entry := env{}
	for _, v := range m.Vars {
		entry[v.Name] = lat{kind: varying}
	}

	states[0] = entry
	work := []int{0}
	queued := make([]bool, len(code))
	queued[0] = true

	for len(work) != 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		queued[i] = false

		out := transfer(states[i], code[i])

		f.succ(i, states[i].cond, func(s int) {
			merged, changed := meet(states[s], out)
			if !changed {
				return
			}

			states[s] = merged

			if !queued[s] {
				queued[s] = true
				work = append(work, s)
			}
		})
	}

	r := make([]ollir.Inst, 0, len(code))

	for i, in := range code {
		st := states[i]

		if st == nil {
			if _, ok := in.(ollir.Label); ok {
				r = append(r, in)
			}

			continue
		}

		in = ollir.MapOperands(in, st.subst)

		switch x := in.(type) {
		case ollir.BinOp:
			if v, ok := evalBin(x.Op, x.L, x.R); ok {
				in = ollir.Assign{Dst: x.Dst, Src: ollir.Imm{Value: v, Type: x.Dst.Type}}
			}
		case ollir.UnOp:
			if v, ok := evalUn(x.Op, x.X); ok {
				in = ollir.Assign{Dst: x.Dst, Src: ollir.Imm{Value: v, Type: x.Dst.Type}}
			}
		case ollir.CondBranch:
			if c, ok := x.Cond.(ollir.Imm); ok {
				if c.Value == 0 {
					continue
				}

				in = ollir.Goto{Target: x.Target}
			}
		}

		r = append(r, in)
	}

	return r
}

func transfer(st env, in ollir.Inst) env {
	d, ok := ollir.Defs(in)
	if !ok {
		return st
	}

	v := lat{kind: varying}

	switch x := in.(type) {
	case ollir.Assign:
		v = st.value(x.Src)
	case ollir.BinOp:
		l, r := st.value(x.L), st.value(x.R)

		if l.kind == constant && r.kind == constant {
			if res, ok := fold(x.Op, l.v, r.v); ok {
				v = lat{kind: constant, v: res}
			}
		}
	case ollir.UnOp:
		if a := st.value(x.X); a.kind == constant && x.Op == ollir.Not {
			v = lat{kind: constant, v: a.v ^ 1}
		}
	}

	out := make(env, len(st))
	for k, l := range st {
		out[k] = l
	}

	out[d.Name] = v

	return out
}

// meet merges in into the state at a join point and reports whether it changed.
func meet(st, in env) (env, bool) {
	if st == nil {
		cp := make(env, len(in))
		for k, l := range in {
			cp[k] = l
		}

		return cp, true
	}

	changed := false

	for k, l := range in {
		p, ok := st[k]

		var n lat

		switch {
		case !ok || p.kind == undef:
			n = l
		case l.kind == undef:
			n = p
		case p.kind == constant && l.kind == constant && p.v == l.v:
			n = p
		default:
			n = lat{kind: varying}
		}

		if n != p {
			st[k] = n
			changed = true
		}
	}

	return st, changed
}

func (st env) value(v ollir.Value) lat {
	switch v := v.(type) {
	case ollir.Imm:
		return lat{kind: constant, v: v.Value}
	case ollir.Reg:
		return st[v.Name]
	}

	return lat{kind: varying}
}

func (st env) subst(v ollir.Value) ollir.Value {
	r, ok := v.(ollir.Reg)
	if !ok {
		return v
	}

	if l := st[r.Name]; l.kind == constant {
		return ollir.Imm{Value: l.v, Type: r.Type}
	}

	return v
}

func (st env) cond(v ollir.Value) (taken, ok bool) {
	l := st.value(v)
	if l.kind != constant {
		return false, false
	}

	return l.v != 0, true
}

func evalBin(op ollir.Op, l, r ollir.Value) (int32, bool) {
	a, ok := l.(ollir.Imm)
	if !ok {
		return 0, false
	}

	b, ok := r.(ollir.Imm)
	if !ok {
		return 0, false
	}

	return fold(op, a.Value, b.Value)
}

func evalUn(op ollir.Op, x ollir.Value) (int32, bool) {
	a, ok := x.(ollir.Imm)
	if !ok || op != ollir.Not {
		return 0, false
	}

	return a.Value ^ 1, true
}

// fold evaluates a binary operator with JVM int semantics.
func fold(op ollir.Op, a, b int32) (int32, bool) {
	switch op {
	case ollir.Add:
		return a + b, true
	case ollir.Sub:
		return a - b, true
	case ollir.Mul:
		return a * b, true
	case ollir.Div:
		if b == 0 {
			return 0, false
		}

		return a / b, true
	case ollir.Lt:
		if a < b {
			return 1, true
		}

		return 0, true
	case ollir.And:
		return a & b, true
	}

	return 0, false
}

func tidyLabels(code []ollir.Inst) []ollir.Inst {
	r := make([]ollir.Inst, 0, len(code))

next:
	for i, in := range code {
		if g, ok := in.(ollir.Goto); ok {
			for _, n := range code[i+1:] {
				l, ok := n.(ollir.Label)
				if !ok {
					break
				}

				if l.Name == g.Target {
					continue next
				}
			}
		}

		r = append(r, in)
	}

	used := map[string]bool{}

	for _, in := range r {
		switch x := in.(type) {
		case ollir.Goto:
			used[x.Target] = true
		case ollir.CondBranch:
			used[x.Target] = true
		}
	}

	code = r[:0]

	for _, in := range r {
		if l, ok := in.(ollir.Label); ok && !used[l.Name] {
			continue
		}

		code = append(code, in)
	}

	return code
}

func dropDeadStores(m *ollir.Method) []ollir.Inst {
	f := newFlow(m.Code)
	lv := f.liveness(m.Vars)

	r := make([]ollir.Inst, 0, len(m.Code))

	for i, in := range m.Code {
		if d, ok := ollir.Defs(in); ok && pure(in) && !lv.liveOut(i, d.Name) {
			continue
		}

		r = append(r, in)
	}

	return r
}

// pure reports whether in can be removed when its result is unused.
func pure(in ollir.Inst) bool {
	switch x := in.(type) {
	case ollir.Assign, ollir.UnOp, ollir.GetField:
		return true
	case ollir.BinOp:
		if x.Op != ollir.Div {
			return true
		}

		d, ok := x.R.(ollir.Imm)

		return ok && d.Value != 0
	}

	return false
}

func pruneVars(m *ollir.Method) {
	used := map[string]bool{}

	for _, in := range m.Code {
		if d, ok := ollir.Defs(in); ok {
			used[d.Name] = true
		}

		for _, u := range ollir.Uses(in) {
			used[u.Name] = true
		}
	}

	vars := m.Vars[:0]

	for _, v := range m.Vars {
		if (v.Kind == ollir.Local || v.Kind == ollir.Temp) && !used[v.Name] {
			continue
		}

		vars = append(vars, v)
	}

	m.Vars = vars
}
