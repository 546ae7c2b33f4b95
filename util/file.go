package util

import (
	"errors"
	"io/fs"

	"github.com/spf13/afero"
)

// Exists reports whether filename is present. Errors other than
// "not exist" (permission problems) count as present so that callers
// go on to open the file and surface the real error.
func Exists(fsys afero.Fs, filename string) bool {
	_, err := fsys.Stat(filename)
	return !errors.Is(err, fs.ErrNotExist)
}

func FileSize(fsys afero.Fs, path string) uint64 {
	fileInfo, err := fsys.Stat(path)
	if err != nil {
		return 0
	}
	return uint64(fileInfo.Size())
}

// WriteFileAtomic writes data to a sibling temp file and renames it over
// path, so readers never observe a half written file.
func WriteFileAtomic(fsys afero.Fs, path string, data []byte, perm fs.FileMode) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(fsys, tmp, data, perm); err != nil {
		return err
	}
	if err := fsys.Rename(tmp, path); err != nil {
		fsys.Remove(tmp)
		return err
	}
	return nil
}
