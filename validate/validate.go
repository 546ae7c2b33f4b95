// Package validate checks a local dataset copy against its index and
// records the outcome inside the dataset directory.
//
// Once a dataset directory carries the _VALIDATED marker, Validate returns
// a clean report without looking at any file. A copy that is corrupted
// after it was validated is not noticed until the marker is removed, with
// Store.Clear or by purging the dataset.
package validate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/bmeg/datacheck/checksum"
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/manifest"
	"github.com/bmeg/datacheck/metrics"
	"github.com/bmeg/datacheck/paths"
	"github.com/spf13/afero"
)

const fileCreateFlags = os.O_CREATE | os.O_WRONLY

type Validator struct {
	Fs     afero.Fs
	Hasher checksum.Hasher
	// Out receives the human readable listing of offending paths.
	// A nil Out silences it.
	Out     io.Writer
	Metrics *metrics.Collector
}

func New(fsys afero.Fs, hasher checksum.Hasher) *Validator {
	return &Validator{Fs: fsys, Hasher: hasher, Metrics: metrics.Default}
}

func (v *Validator) count(result string) {
	if v.Metrics != nil {
		v.Metrics.FilesChecked.WithLabelValues(result).Inc()
	}
}

// Check scans every applicable file in idx under root. Missing files and
// checksum mismatches go into the report; a file that exists but cannot
// be read stops the scan with an error.
func (v *Validator) Check(idx *manifest.Index, root string) (*Report, error) {
	report := NewReport()
	for _, rec := range idx.Records() {
		for _, entry := range rec.Files {
			localPath, ok := paths.Resolve(root, entry.Path)
			if !ok {
				continue
			}
			if _, err := v.Fs.Stat(localPath); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					report.addMissing(rec.ID, localPath)
					v.count("missing")
					continue
				}
				return nil, err
			}
			sum, err := v.Hasher.Sum(localPath)
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", rec.ID, err)
			}
			// an entry with a path but no checksum can never verify
			if entry.Checksum == nil || !checksum.Equal(sum, *entry.Checksum) {
				report.addInvalid(rec.ID, localPath)
				v.count("invalid")
				continue
			}
			v.count("ok")
		}
	}
	return report, nil
}

// Validate runs Check unless datasetPath is already marked validated, then
// persists the result: the validated marker for a clean report, the
// report itself otherwise.
func (v *Validator) Validate(idx *manifest.Index, root string, datasetPath string) (*Report, error) {
	store := NewStore(v.Fs, datasetPath)
	if store.IsValidated() {
		logger.Debug("dataset already validated", "path", datasetPath)
		if v.Metrics != nil {
			v.Metrics.ValidationPasses.WithLabelValues("cached").Inc()
		}
		return NewReport(), nil
	}

	report, err := v.Check(idx, root)
	if err != nil {
		return nil, err
	}

	if v.Out != nil {
		report.Print(v.Out, idx)
	}

	if report.Clean() {
		if v.Metrics != nil {
			v.Metrics.ValidationPasses.WithLabelValues("clean").Inc()
		}
		if err := store.MarkValidated(); err != nil {
			return report, fmt.Errorf("writing validated marker: %w", err)
		}
		return report, nil
	}
	if v.Metrics != nil {
		v.Metrics.ValidationPasses.WithLabelValues("dirty").Inc()
	}
	logger.Debug("validation found problems", "missing", report.MissingCount(), "invalid", report.InvalidCount())
	if err := store.MarkInvalid(report); err != nil {
		return report, fmt.Errorf("writing invalid report: %w", err)
	}
	return report, nil
}

func sortedKeys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
