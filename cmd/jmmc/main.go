package main

import (
	"context"
	"fmt"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/jmm/compiler"
	"github.com/slowlang/jmm/compiler/asm"
	"github.com/slowlang/jmm/compiler/format"
	"github.com/slowlang/jmm/compiler/parse"
	"github.com/slowlang/jmm/compiler/report"
)

func main() {
	parseCmd := &cli.Command{
		Name:        "parse",
		Description: "print the syntax tree",
		Action:      parseAct,
		Args:        cli.Args{},
	}

	fmtCmd := &cli.Command{
		Name:        "fmt",
		Description: "pretty print source files",
		Action:      fmtAct,
		Args:        cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile JMM files to Jasmin assembly",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("o", false, "enable constant propagation and folding"),
			cli.NewFlag("r", 0, "max JVM local slots per method, 0 is unconstrained"),
			cli.NewFlag("out", ".", "output directory"),
			cli.NewFlag("jasmin", "", "path to jasmin.jar, assemble if set"),
			cli.NewFlag("java", "java", "java binary"),
			cli.NewFlag("run", false, "run the assembled class"),
			cli.NewFlag("jobs,j", 4, "files compiled in parallel"),
		},
	}

	app := &cli.Command{
		Name:        "jmmc",
		Description: "jmmc compiles Java-- classes for the JVM",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("verbosity,v", "", "tlog verbosity topics"),
			cli.HelpFlag,
		},
		Commands: []*cli.Command{
			compileCmd,
			parseCmd,
			fmtCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func parseAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		x, rep, err := parse.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		if printReports(a, rep) {
			return errors.New("%v: syntax errors", a)
		}

		fmt.Printf("ast: %+v\n", x)
	}

	return nil
}

func fmtAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		x, rep, err := parse.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		if printReports(a, rep) {
			return errors.New("%v: syntax errors", a)
		}

		b, err := format.Format(ctx, nil, x)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		_, err = os.Stdout.Write(b)
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	opts := compiler.Options{
		Optimize:     c.Bool("o"),
		MaxRegisters: c.Int("r"),
	}

	if err = opts.Validate(); err != nil {
		return errors.Wrap(err, "-r")
	}

	if len(c.Args) == 0 {
		return errors.New("no input files")
	}

	out := c.String("out")

	j := asm.Jasmin{
		Jar:  c.String("jasmin"),
		Java: c.String("java"),
	}

	res, reps, err := compiler.CompileBatch(ctx, c.Args, opts, c.Int("jobs"))
	if err != nil {
		return errors.Wrap(err, "compile")
	}

	failed := 0

	for i, a := range c.Args {
		if printReports(a, reps[i]) {
			failed++
		}

		files, err := compiler.WriteArtifacts(out, res[i])
		if err != nil {
			return errors.Wrap(err, "%v: write artifacts", a)
		}

		tlog.Printw("artifacts", "file", a, "written", files)

		if reps[i].HasErrors() || j.Jar == "" {
			continue
		}

		err = j.Assemble(ctx, res[i].Class, res[i].Jasmin, out)
		if err != nil {
			return errors.Wrap(err, "%v: assemble", a)
		}

		if !c.Bool("run") {
			continue
		}

		stdout, err := j.Run(ctx, out, res[i].Class)
		if err != nil {
			return errors.Wrap(err, "%v: run", a)
		}

		_, _ = os.Stdout.Write(stdout)
	}

	if failed != 0 {
		return errors.New("%d of %d files failed", failed, len(c.Args))
	}

	return nil
}

// printReports writes rep to stderr and returns true if it has errors.
func printReports(name string, rep report.List) bool {
	for _, r := range rep {
		fmt.Fprintf(os.Stderr, "%v:%v\n", name, r)
	}

	return rep.HasErrors()
}
