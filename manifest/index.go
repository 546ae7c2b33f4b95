// Package manifest holds dataset indexes: the declarative mapping of record
// ids to the files each record is expected to have, with their checksums.
//
// Records and the logical file keys inside each record keep the order in
// which they appear in the source document, so every walk over an Index
// is deterministic.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrDuplicateRecord = errors.New("duplicate record id")
	ErrDuplicateKey    = errors.New("duplicate file key")
)

// FileEntry is one logical file of a record. A nil Path means the file
// does not apply to the record.
type FileEntry struct {
	Key      string
	Path     *string
	Checksum *string
}

func (fe FileEntry) Applies() bool {
	return fe.Path != nil
}

// ExpectedChecksum returns the checksum, or "" when none is listed.
func (fe FileEntry) ExpectedChecksum() string {
	if fe.Checksum == nil {
		return ""
	}
	return *fe.Checksum
}

type Record struct {
	ID    string
	Files []FileEntry
}

func (r Record) File(key string) (FileEntry, bool) {
	for _, f := range r.Files {
		if f.Key == key {
			return f, true
		}
	}
	return FileEntry{}, false
}

type Index struct {
	records []Record
	ids     map[string]int
}

func New() *Index {
	return &Index{ids: map[string]int{}}
}

// Add appends a record. Record ids are unique within an index, as are file
// keys within a record.
func (idx *Index) Add(rec Record) error {
	if _, ok := idx.ids[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, rec.ID)
	}
	seen := map[string]bool{}
	for _, f := range rec.Files {
		if seen[f.Key] {
			return fmt.Errorf("%w: %s in record %s", ErrDuplicateKey, f.Key, rec.ID)
		}
		seen[f.Key] = true
	}
	idx.ids[rec.ID] = len(idx.records)
	idx.records = append(idx.records, rec)
	return nil
}

func (idx *Index) Records() []Record {
	return idx.records
}

func (idx *Index) Get(id string) (Record, bool) {
	if i, ok := idx.ids[id]; ok {
		return idx.records[i], true
	}
	return Record{}, false
}

func (idx *Index) Len() int {
	return len(idx.records)
}

// FileCount is the number of entries with a non-nil path.
func (idx *Index) FileCount() int {
	n := 0
	for _, r := range idx.records {
		for _, f := range r.Files {
			if f.Applies() {
				n++
			}
		}
	}
	return n
}

// MarshalJSON writes the index in the same nested form it is read from,
// keeping record and key order.
func (idx *Index) MarshalJSON() ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	for i, r := range idx.records {
		if i > 0 {
			buf.WriteByte(',')
		}
		id, _ := json.Marshal(r.ID)
		buf.Write(id)
		buf.WriteString(":{")
		for j, f := range r.Files {
			if j > 0 {
				buf.WriteByte(',')
			}
			key, _ := json.Marshal(f.Key)
			buf.Write(key)
			buf.WriteByte(':')
			pair, err := json.Marshal([]*string{f.Path, f.Checksum})
			if err != nil {
				return nil, err
			}
			buf.Write(pair)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
