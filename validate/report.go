package validate

import (
	"fmt"
	"io"
	"strings"

	"github.com/bmeg/datacheck/manifest"
)

// Report is the outcome of one scan. Record ids only appear in a map when
// they have at least one offending path.
type Report struct {
	Missing          map[string][]string `json:"missing_files"`
	InvalidChecksums map[string][]string `json:"invalid_checksums"`
}

func NewReport() *Report {
	return &Report{
		Missing:          map[string][]string{},
		InvalidChecksums: map[string][]string{},
	}
}

// Clean is true when nothing is missing or corrupt.
func (r *Report) Clean() bool {
	return len(r.Missing) == 0 && len(r.InvalidChecksums) == 0
}

func (r *Report) addMissing(id, path string) {
	r.Missing[id] = append(r.Missing[id], path)
}

func (r *Report) addInvalid(id, path string) {
	r.InvalidChecksums[id] = append(r.InvalidChecksums[id], path)
}

func (r *Report) MissingCount() int {
	return countPaths(r.Missing)
}

func (r *Report) InvalidCount() int {
	return countPaths(r.InvalidChecksums)
}

func countPaths(m map[string][]string) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}

// normalize replaces nil maps from a decoded report so callers can index
// into them safely.
func (r *Report) normalize() {
	if r.Missing == nil {
		r.Missing = map[string][]string{}
	}
	if r.InvalidChecksums == nil {
		r.InvalidChecksums = map[string][]string{}
	}
}

const separator = "--------------------"

// Print lists offending paths grouped by record id, walking records in
// index order. Records the index does not know about are listed last.
func (r *Report) Print(w io.Writer, idx *manifest.Index) {
	r.printGroup(w, idx, "Files missing for", r.Missing)
	r.printGroup(w, idx, "Invalid checksums for", r.InvalidChecksums)
}

func (r *Report) printGroup(w io.Writer, idx *manifest.Index, title string, group map[string][]string) {
	seen := map[string]bool{}
	emit := func(id string) {
		paths := group[id]
		if len(paths) == 0 {
			return
		}
		seen[id] = true
		fmt.Fprintf(w, "%s %s:\n", title, id)
		fmt.Fprintf(w, "%s\n", strings.Join(paths, "\n"))
		fmt.Fprintf(w, "%s\n", separator)
	}
	if idx != nil {
		for _, rec := range idx.Records() {
			emit(rec.ID)
		}
	}
	for _, id := range sortedKeys(group) {
		if !seen[id] {
			emit(id)
		}
	}
}
