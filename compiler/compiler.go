package compiler

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/slowlang/jmm/compiler/analyze"
	"github.com/slowlang/jmm/compiler/ast"
	"github.com/slowlang/jmm/compiler/back"
	"github.com/slowlang/jmm/compiler/lower"
	"github.com/slowlang/jmm/compiler/ollir"
	"github.com/slowlang/jmm/compiler/optimize"
	"github.com/slowlang/jmm/compiler/parse"
	"github.com/slowlang/jmm/compiler/report"
	"github.com/slowlang/jmm/compiler/sym"
)

type (
	Options struct {
		Optimize     bool
		MaxRegisters int // 0 is unconstrained
	}

	// Result holds the artifacts of every stage that completed.
	Result struct {
		Name  string // source name
		Class string

		File  *ast.File
		Table *sym.Table

		AST     []byte // annotated tree, JSON
		Symbols []byte
		OLLIR   []byte

		Optimized *ollir.Class
		Jasmin    []byte
	}
)

// Validate checks options coming from the command line.
func (o Options) Validate() error {
	if o.MaxRegisters < 0 {
		return errors.New("max registers must not be negative (0 is unconstrained), got %d", o.MaxRegisters)
	}

	return nil
}

func CompileFile(ctx context.Context, name string, opts Options) (*Result, report.List, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	res, rep := Compile(ctx, name, text, opts)

	return res, rep, nil
}

// Compile runs the stages in order and stops after the first one reporting an error.
func Compile(ctx context.Context, name string, text []byte, opts Options) (res *Result, rep report.List) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "name", name, "optimize", opts.Optimize, "max_registers", opts.MaxRegisters)
	defer func() {
		tr.Finish("reports", len(rep), "errors", len(rep.Errors()))
	}()

	res = &Result{Name: name}

	ok := stage(ctx, report.Syntactic, &rep, func() (r report.List) {
		res.File, r = parse.Parse(ctx, text)
		return r
	})
	if !ok {
		return res, rep
	}

	res.Class = res.File.Class.Name

	var sem *analyze.Result

	ok = stage(ctx, report.Semantic, &rep, func() (r report.List) {
		res.Table, r = sym.Build(ctx, res.File)
		if res.Table == nil {
			return r
		}

		res.Symbols = res.Table.Print(nil)

		var r2 report.List
		sem, r2 = analyze.Analyze(ctx, res.File, res.Table)
		r = append(r, r2...)

		if sem != nil {
			var err error

			res.AST, err = analyze.Dump(sem)
			if err != nil {
				r.Errorf(report.Semantic, 0, 0, "dump tree: %v", err)
			}
		}

		return r
	})
	if !ok {
		return res, rep
	}

	var cls *ollir.Class

	ok = stage(ctx, report.Generation, &rep, func() (r report.List) {
		cls, r = lower.Lower(ctx, sem)
		if cls != nil {
			res.OLLIR = ollir.Format(cls)
		}

		return r
	})
	if !ok {
		return res, rep
	}

	ok = stage(ctx, report.Optimization, &rep, func() (r report.List) {
		res.Optimized, r = optimize.Run(ctx, cls, optimize.Options{
			Optimize:     opts.Optimize,
			MaxRegisters: opts.MaxRegisters,
		})

		if opts.Optimize && res.Optimized != nil {
			res.OLLIR = ollir.Format(res.Optimized)
		}

		return r
	})
	if !ok {
		return res, rep
	}

	stage(ctx, report.Generation, &rep, func() (r report.List) {
		b, err := back.New().CompileClass(ctx, nil, res.Optimized)
		if err != nil {
			r.Errorf(report.Generation, 0, 0, "%v", err)
			return r
		}

		res.Jasmin = b

		return r
	})

	return res, rep
}

// stage runs a compiler stage, converting a panic into an error report.
func stage(ctx context.Context, st report.Stage, rep *report.List, run func() report.List) (ok bool) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}

		tlog.SpanFromContext(ctx).Printw("stage panicked", "stage", st, "panic", p, "callers", loc.Callers(2, 8))

		rep.Errorf(st, 0, 0, "internal error: %v", p)
		ok = false
	}()

	r := run()
	rep.Append(r...)

	return !r.HasErrors()
}

// CompileBatch compiles independent files in parallel.
// Results and reports are in the order of names.
func CompileBatch(ctx context.Context, names []string, opts Options, jobs int) (_ []*Result, _ []report.List, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile batch", "files", len(names), "jobs", jobs)
	defer tr.Finish("err", &err)

	res := make([]*Result, len(names))
	reps := make([]report.List, len(names))

	g, ctx := errgroup.WithContext(ctx)

	if jobs > 0 {
		g.SetLimit(jobs)
	}

	for i, name := range names {
		i, name := i, name

		g.Go(func() (err error) {
			res[i], reps[i], err = CompileFile(ctx, name, opts)
			if err != nil {
				return errors.Wrap(err, "%v", name)
			}

			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		return nil, nil, err
	}

	return res, reps, nil
}
