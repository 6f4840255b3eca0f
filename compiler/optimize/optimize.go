package optimize

import (
	"context"

	"tlog.app/go/tlog"

	"github.com/slowlang/jmm/compiler/ollir"
	"github.com/slowlang/jmm/compiler/report"
)

type (
	Options struct {
		Optimize     bool
		MaxRegisters int // 0 is unconstrained
	}
)

// Run optimizes a copy of cls and assigns local slots to every method.
func Run(ctx context.Context, cls *ollir.Class, opts Options) (_ *ollir.Class, rep report.List) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "optimize", "optimize", opts.Optimize, "max_registers", opts.MaxRegisters)
	defer func() {
		tr.Finish("reports", len(rep))
	}()

	out := cls.Clone()

	for i, m := range out.Methods {
		if opts.Optimize {
			m = Fold(m)
			out.Methods[i] = m
		}

		a, err := Allocate(m, opts.MaxRegisters)
		if err != nil {
			rep.Errorf(report.Optimization, m.Line, 0, "%v", err)
			continue
		}

		m.Slots = a.Slots
		m.Locals = a.Locals

		if tr.If("dump_regs") {
			tr.Printw("registers", "method", m.Name, "locals", a.Locals, "colors", a.Colors, "slots", a.Slots)
		}
	}

	return out, rep
}
