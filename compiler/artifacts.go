package compiler

import (
	"os"
	"path/filepath"

	"tlog.app/go/errors"
)

// WriteArtifacts stores the outputs of the completed stages in dir.
// Files are named after the class: C.json, C.symbols.txt, C.ollir and C.j.
func WriteArtifacts(dir string, res *Result) (files []string, err error) {
	if res == nil || res.Class == "" {
		return nil, nil
	}

	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return nil, errors.Wrap(err, "mkdir")
	}

	for _, a := range []struct {
		ext  string
		data []byte
	}{
		{".json", res.AST},
		{".symbols.txt", res.Symbols},
		{".ollir", res.OLLIR},
		{".j", res.Jasmin},
	} {
		if a.data == nil {
			continue
		}

		name := filepath.Join(dir, res.Class+a.ext)

		err = os.WriteFile(name, a.data, 0o644)
		if err != nil {
			return files, errors.Wrap(err, "write %v", name)
		}

		files = append(files, name)
	}

	return files, nil
}
