package optimize

import (
	"nikand.dev/go/heap"
	"tlog.app/go/errors"

	"github.com/slowlang/jmm/compiler/ollir"
	"github.com/slowlang/jmm/compiler/set"
)

type (
	Allocation struct {
		Slots  map[string]int
		Locals int

		Colors int // slots used by registers other than this and params
	}

	graph struct {
		names []string
		adj   []set.Bitmap
	}

	satItem struct {
		node int
		sat  int
		deg  int
	}
)

// searchBudget bounds the exact coloring search per attempt.
const searchBudget = 200000

// Allocate assigns JVM local slots to the registers of m.
// max limits the total number of slots, 0 means no limit.
func Allocate(m *ollir.Method, max int) (*Allocation, error) {
	a := &Allocation{Slots: map[string]int{}}

	for _, v := range m.Vars {
		if v.Kind == ollir.This {
			a.Slots[v.Name] = 0
		}
	}

	base := len(a.Slots)

	for _, p := range m.Params {
		a.Slots[p.Name] = base
		base++
	}

	g := interference(m, a.Slots)

	colors, n := g.dsatur()

	order := g.order(colors)

	for k := n - 1; k > 0; k-- {
		c, ok := g.exact(k, order)
		if !ok {
			break
		}

		colors, n = c, k
	}

	if max > 0 && base+n > max {
		return nil, errors.New("method %v needs %d registers, at most %d allowed", m.Name, base+n, max)
	}

	for i, name := range g.names {
		a.Slots[name] = base + colors[i]
	}

	a.Locals = base + n
	a.Colors = n

	return a, nil
}

// interference builds the graph of registers other than the fixed ones.
// A register defined at an instruction interferes with everything live after it,
// except the source of a copy.
func interference(m *ollir.Method, fixed map[string]int) *graph {
	f := newFlow(m.Code)
	lv := f.liveness(m.Vars)

	g := &graph{}
	node := map[string]int{}

	add := func(r ollir.Reg) {
		if _, ok := fixed[r.Name]; ok {
			return
		}

		if _, ok := node[r.Name]; ok {
			return
		}

		node[r.Name] = len(g.names)
		g.names = append(g.names, r.Name)
		g.adj = append(g.adj, set.Bitmap{})
	}

	for _, in := range m.Code {
		if d, ok := ollir.Defs(in); ok {
			add(d)
		}

		for _, u := range ollir.Uses(in) {
			add(u)
		}
	}

	edge := func(x, y string) {
		i, ok := node[x]
		if !ok {
			return
		}

		j, ok := node[y]
		if !ok || i == j {
			return
		}

		g.adj[i].Set(j)
		g.adj[j].Set(i)
	}

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
			if name := lv.names[r]; name != src {
				edge(d.Name, name)
			}

			return true
		})
	}

	if len(m.Code) != 0 {
		entry := lv.in[0].Slice()

		for i, x := range entry {
			for _, y := range entry[i+1:] {
				edge(lv.names[x], lv.names[y])
			}
		}
	}

	return g
}

// dsatur colors g greedily, always picking the node
// with the most distinct neighbor colors.
func (g *graph) dsatur() (colors []int, n int) {
	colors = make([]int, len(g.names))
	seen := make([]set.Bitmap, len(g.names))
	deg := make([]int, len(g.names))

	h := heap.Heap[satItem]{Less: satLess}

	for i := range g.names {
		colors[i] = -1
		deg[i] = g.adj[i].Size()

		h.Push(satItem{node: i, deg: deg[i]})
	}

	for h.Len() != 0 {
		it := h.Pop()
		v := it.node

		if colors[v] >= 0 || it.sat != seen[v].Size() {
			continue
		}

		c := 0
		for seen[v].IsSet(c) {
			c++
		}

		colors[v] = c

		if c+1 > n {
			n = c + 1
		}

		g.adj[v].Range(func(u int) bool {
			if colors[u] < 0 && !seen[u].IsSet(c) {
				seen[u].Set(c)
				h.Push(satItem{node: u, sat: seen[u].Size(), deg: deg[u]})
			}

			return true
		})
	}

	return colors, n
}

func satLess(d []satItem, i, j int) bool {
	if d[i].sat != d[j].sat {
		return d[i].sat > d[j].sat
	}

	if d[i].deg != d[j].deg {
		return d[i].deg > d[j].deg
	}

	return d[i].node < d[j].node
}

// order lists nodes by greedy color, then by index.
func (g *graph) order(colors []int) []int {
	r := make([]int, 0, len(colors))

	for c := 0; len(r) < len(colors); c++ {
		for i, x := range colors {
			if x == c {
				r = append(r, i)
			}
		}
	}

	return r
}

// exact searches for a coloring with k colors.
// It gives up after searchBudget steps.
func (g *graph) exact(k int, order []int) ([]int, bool) {
	colors := make([]int, len(g.names))
	for i := range colors {
		colors[i] = -1
	}

	budget := searchBudget

	var try func(i, used int) bool

	try = func(i, used int) bool {
		if i == len(order) {
			return true
		}

		if budget == 0 {
			return false
		}

		budget--

		v := order[i]

		for c := 0; c < k && c <= used; c++ {
			ok := true

			g.adj[v].Range(func(u int) bool {
				ok = colors[u] != c
				return ok
			})

			if !ok {
				continue
			}

			colors[v] = c

			nused := used
			if c == used {
				nused++
			}

			if try(i+1, nused) {
				return true
			}

			colors[v] = -1
		}

		return false
	}

	if !try(0, 0) {
		return nil, false
	}

	return colors, true
}
