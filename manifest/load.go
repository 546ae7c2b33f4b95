package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmeg/golib"
	"sigs.k8s.io/yaml"
)

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatJSONLines
	FormatJSONLinesGz
)

func (f Format) String() string {
	return [...]string{"json", "yaml", "jsonl", "jsonl.gz"}[f]
}

// DetectFormat picks the index format from the file name suffix. Anything
// not recognised is treated as JSON.
func DetectFormat(path string) Format {
	p := strings.ToLower(path)
	switch {
	case strings.HasSuffix(p, ".jsonl.gz") || strings.HasSuffix(p, ".ndjson.gz"):
		return FormatJSONLinesGz
	case strings.HasSuffix(p, ".jsonl") || strings.HasSuffix(p, ".ndjson"):
		return FormatJSONLines
	case strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml"):
		return FormatYAML
	}
	return FormatJSON
}

// LoadFile reads an index from disk, checking it against the index schema.
func LoadFile(relpath string) (*Index, error) {
	// Try to get absolute path. If it fails, fall back to relative path.
	path, abserr := filepath.Abs(relpath)
	if abserr != nil {
		path = relpath
	}

	format := DetectFormat(path)
	switch format {
	case FormatJSONLines, FormatJSONLinesGz:
		var reader chan []byte
		var err error
		if format == FormatJSONLinesGz {
			reader, err = golib.ReadGzipLines(path)
		} else {
			reader, err = golib.ReadFileLines(path)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read index at path %s: %w", path, err)
		}
		idx, err := readLines(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to parse index at path %s: %w", path, err)
		}
		return idx, nil
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index at path %s: %w", path, err)
	}
	idx, err := Parse(source, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index at path %s: %w", path, err)
	}
	return idx, nil
}

// Parse decodes a JSON or YAML index document. YAML documents are
// converted to JSON first, which orders keys lexically.
func Parse(data []byte, format Format) (*Index, error) {
	switch format {
	case FormatJSON:
	case FormatYAML:
		j, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, err
		}
		data = j
	default:
		return nil, fmt.Errorf("format %s can only be read from a file", format)
	}
	if err := LintDocument(data); err != nil {
		return nil, err
	}
	return decodeIndex(data)
}

type lineRecord struct {
	ID    string          `json:"id"`
	Files json.RawMessage `json:"files"`
}

// readLines consumes the whole channel even after an error so the reader
// goroutine can finish.
func readLines(lines chan []byte) (*Index, error) {
	idx := New()
	var firstErr error
	lineNum := 0
	for line := range lines {
		lineNum++
		if firstErr != nil {
			continue
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := LintRecord(line); err != nil {
			firstErr = fmt.Errorf("line %d: %w", lineNum, err)
			continue
		}
		lr := lineRecord{}
		if err := json.Unmarshal(line, &lr); err != nil {
			firstErr = fmt.Errorf("line %d: %w", lineNum, err)
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(lr.Files))
		rec, err := decodeFileSet(dec, lr.ID)
		if err == nil {
			err = idx.Add(rec)
		}
		if err != nil {
			firstErr = fmt.Errorf("line %d: %w", lineNum, err)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return idx, nil
}

func expectDelim(dec *json.Decoder, d json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if got, ok := tok.(json.Delim); !ok || got != d {
		return fmt.Errorf("expected %q, found %v", d, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, found %v", tok)
	}
	return key, nil
}

// decodeIndex walks the document token by token; decoding into a Go map
// would lose the record order.
func decodeIndex(data []byte) (*Index, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	idx := New()
	for dec.More() {
		id, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		rec, err := decodeFileSet(dec, id)
		if err != nil {
			return nil, err
		}
		if err := idx.Add(rec); err != nil {
			return nil, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after index")
	}
	return idx, nil
}

func decodeFileSet(dec *json.Decoder, id string) (Record, error) {
	rec := Record{ID: id}
	if err := expectDelim(dec, '{'); err != nil {
		return rec, fmt.Errorf("record %s: %w", id, err)
	}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return rec, fmt.Errorf("record %s: %w", id, err)
		}
		pair := []*string{}
		if err := dec.Decode(&pair); err != nil {
			return rec, fmt.Errorf("record %s key %s: %w", id, key, err)
		}
		if len(pair) != 2 {
			return rec, fmt.Errorf("record %s key %s: expected [path, checksum], found %d values", id, key, len(pair))
		}
		rec.Files = append(rec.Files, FileEntry{Key: key, Path: pair[0], Checksum: pair[1]})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return rec, fmt.Errorf("record %s: %w", id, err)
	}
	return rec, nil
}
