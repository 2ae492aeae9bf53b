// Package jsondb stores bootspec documents as JSON files in a directory.
//
// Writes are atomic: a document is written to a temporary file in the same
// directory and renamed over the old one, so readers never see a partially
// written boot.json.
package jsondb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/osbuild/bootspec/pkg/bootspec"
)

type JSONDatabase struct {
	fs   afero.Fs
	dir  string
	perm os.FileMode
}

// New returns a database of the documents in dir. The directory is not
// created; a missing directory shows up on the first write.
func New(fs afero.Fs, dir string, perm os.FileMode) *JSONDatabase {
	return &JSONDatabase{fs, dir, perm}
}

// Read decodes the document called name. It returns false, without an
// error, when the document does not exist.
func (db *JSONDatabase) Read(name string) (bootspec.Generation, bool, error) {
	data, err := afero.ReadFile(db.fs, filepath.Join(db.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("cannot read %s: %w", name, err)
	}

	g, err := bootspec.Unmarshal(data)
	if err != nil {
		return nil, true, fmt.Errorf("cannot decode %s: %w", name, err)
	}
	return g, true, nil
}

// Write replaces the document called name with g. The previous document
// is left untouched if g cannot be encoded.
func (db *JSONDatabase) Write(name string, g bootspec.Generation) error {
	return writeFileAtomically(db.fs, db.dir, name, db.perm, func(f afero.File) error {
		data, err := bootspec.MarshalIndent(g, "", "  ")
		if err != nil {
			return err
		}
		_, err = f.Write(append(data, '\n'))
		return err
	})
}

func writeFileAtomically(fs afero.Fs, dir, filename string, mode os.FileMode, write func(f afero.File) error) error {
	tmpfile, err := afero.TempFile(fs, dir, filename+"-*.tmp")
	if err != nil {
		return err
	}
	tmpname := tmpfile.Name()

	// the temporary file is gone after a successful rename
	defer func() {
		_ = fs.Remove(tmpname)
	}()

	err = write(tmpfile)
	if err != nil {
		_ = tmpfile.Close()
		return err
	}

	err = tmpfile.Close()
	if err != nil {
		return err
	}

	err = fs.Chmod(tmpname, mode)
	if err != nil {
		return err
	}

	return fs.Rename(tmpname, filepath.Join(dir, filename))
}
