package asm

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	// Jasmin drives the external Jasmin assembler and the JVM.
	Jasmin struct {
		Jar  string // path to jasmin.jar
		Java string // java binary, "java" if empty
	}
)

// Assemble writes src to dir as name.j and assembles it into dir.
func (j Jasmin) Assemble(ctx context.Context, name string, src []byte, dir string) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "jasmin: assemble", "name", name, "dir", dir)
	defer tr.Finish("err", &err)

	if j.Jar == "" {
		return errors.New("jasmin jar is not set")
	}

	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return errors.Wrap(err, "mkdir")
	}

	path := filepath.Join(dir, name+".j")

	err = os.WriteFile(path, src, 0o644)
	if err != nil {
		return errors.Wrap(err, "write source")
	}

	_, err = j.run(ctx, "-jar", j.Jar, "-d", dir, path)
	if err != nil {
		return errors.Wrap(err, "jasmin")
	}

	return nil
}

// Run executes class from dir and returns its standard output.
func (j Jasmin) Run(ctx context.Context, dir, class string) (out []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "jasmin: run", "dir", dir, "class", class)
	defer tr.Finish("err", &err)

	return j.run(ctx, "-cp", dir, class)
}

func (j Jasmin) run(ctx context.Context, args ...string) ([]byte, error) {
	java := j.Java
	if java == "" {
		java = "java"
	}

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, java, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	tlog.SpanFromContext(ctx).V("exec").Printw("exec", "cmd", cmd.Args)

	err := cmd.Run()
	if err != nil {
		return stdout.Bytes(), errors.Wrap(err, "%s: %s", java, bytes.TrimSpace(stderr.Bytes()))
	}

	return stdout.Bytes(), nil
}
