package manifest

import (
	"io/fs"
	"path/filepath"

	"github.com/bmeg/datacheck/checksum"
	"github.com/spf13/afero"
)

// Builder creates an index from a directory already on disk. Each
// directory becomes a record, named by its path relative to the root
// ("." for the root itself), and each file in it becomes a logical key
// named after the file.
type Builder struct {
	Fs        afero.Fs
	Algorithm checksum.Algorithm
	// Exclude holds filepath.Match patterns tested against base names
	// and root relative paths.
	Exclude []string
}

func (b *Builder) excluded(rel string) bool {
	for _, e := range b.Exclude {
		if m, err := filepath.Match(e, filepath.Base(rel)); m && err == nil {
			return true
		}
		if m, err := filepath.Match(e, rel); m && err == nil {
			return true
		}
	}
	return false
}

func (b *Builder) Build(root string) (*Index, error) {
	recs := []*Record{}
	byID := map[string]*Record{}
	err := afero.Walk(b.Fs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if rel != "." && b.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if b.excluded(rel) {
			return nil
		}
		sum, err := checksum.File(b.Fs, path, b.Algorithm)
		if err != nil {
			return err
		}
		id := filepath.ToSlash(filepath.Dir(rel))
		rec, ok := byID[id]
		if !ok {
			rec = &Record{ID: id}
			byID[id] = rec
			recs = append(recs, rec)
		}
		relPath := rel
		rec.Files = append(rec.Files, FileEntry{Key: filepath.Base(rel), Path: &relPath, Checksum: &sum})
		return nil
	})
	if err != nil {
		return nil, err
	}
	idx := New()
	for _, r := range recs {
		if err := idx.Add(*r); err != nil {
			return nil, err
		}
	}
	return idx, nil
}
