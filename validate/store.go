package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/bmeg/datacheck/util"
	"github.com/spf13/afero"
)

const (
	ValidatedFile = "_VALIDATED"
	InvalidFile   = "_INVALID.json"
)

// Store persists the outcome of the last validation pass inside a dataset
// directory: an empty _VALIDATED sentinel after a clean pass, or the
// report in _INVALID.json after a dirty one.
//
// The check-then-write sequence in Validator.Validate is not locked. Two
// passes running against the same directory may both scan and the last
// writer wins; each marker write is atomic, so neither can observe a torn
// report.
type Store struct {
	fs   afero.Fs
	path string
}

func NewStore(fsys afero.Fs, datasetPath string) *Store {
	return &Store{fs: fsys, path: datasetPath}
}

func (s *Store) validatedPath() string {
	return filepath.Join(s.path, ValidatedFile)
}

// ReportPath is where MarkInvalid stores the failure report.
func (s *Store) ReportPath() string {
	return filepath.Join(s.path, InvalidFile)
}

func (s *Store) IsValidated() bool {
	ok, err := afero.Exists(s.fs, s.validatedPath())
	return ok && err == nil
}

// MarkValidated creates the sentinel, leaving an existing one untouched,
// and drops any stale failure report.
func (s *Store) MarkValidated() error {
	if err := s.fs.MkdirAll(s.path, 0755); err != nil {
		return err
	}
	f, err := s.fs.OpenFile(s.validatedPath(), fileCreateFlags, 0644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := s.fs.Remove(s.ReportPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// MarkInvalid writes the report, replacing any previous one.
func (s *Store) MarkInvalid(report *Report) error {
	if err := s.fs.MkdirAll(s.path, 0755); err != nil {
		return err
	}
	report.normalize()
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return util.WriteFileAtomic(s.fs, s.ReportPath(), data, 0644)
}

// ReadInvalid returns the stored failure report, or (nil, nil) when none
// has been written.
func (s *Store) ReadInvalid() (*Report, error) {
	data, err := afero.ReadFile(s.fs, s.ReportPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r := &Report{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.ReportPath(), err)
	}
	r.normalize()
	return r, nil
}

// Clear removes both markers so the next Validate rescans.
func (s *Store) Clear() error {
	for _, p := range []string{s.validatedPath(), s.ReportPath()} {
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
