package asm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleNoJar(t *testing.T) {
	err := Jasmin{}.Assemble(context.Background(), "A", []byte(".class public A\n"), t.TempDir())
	assert.ErrorContains(t, err, "jar is not set")
}

func TestAssembleMissingJava(t *testing.T) {
	dir := t.TempDir()

	j := Jasmin{Jar: "jasmin.jar", Java: filepath.Join(dir, "no-such-java")}

	err := j.Assemble(context.Background(), "A", []byte(".class public A\n"), dir)
	require.Error(t, err)

	src, err := os.ReadFile(filepath.Join(dir, "A.j"))
	require.NoError(t, err)
	assert.Equal(t, ".class public A\n", string(src))
}
