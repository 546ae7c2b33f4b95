package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bmeg/datacheck/checksum"
	"github.com/bmeg/datacheck/manifest"
	"github.com/bmeg/datacheck/metrics"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// stubHasher serves fixed digests and counts how often it is asked.
type stubHasher struct {
	sums  map[string]string
	err   error
	calls int
}

func (s *stubHasher) Sum(path string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.sums[path], nil
}

func mustIndex(t *testing.T, doc string) *manifest.Index {
	t.Helper()
	idx, err := manifest.Parse([]byte(doc), manifest.FormatJSON)
	require.NoError(t, err)
	return idx
}

const root = "/data/ds"

func newValidator(fsys afero.Fs, h checksum.Hasher) *Validator {
	v := New(fsys, h)
	v.Metrics = metrics.NewCollector()
	return v
}

func TestCheckScenarios(t *testing.T) {
	idx := mustIndex(t, `{"t1": {"audio": ["a.wav", "deadbeef"]}}`)
	wav := filepath.Join(root, "a.wav")

	testCases := []struct {
		name            string
		present         bool
		digest          string
		expectedMissing map[string][]string
		expectedInvalid map[string][]string
	}{
		{
			name:            "Scenario 1: file present and matching",
			present:         true,
			digest:          "deadbeef",
			expectedMissing: map[string][]string{},
			expectedInvalid: map[string][]string{},
		},
		{
			name:            "Scenario 2: file missing",
			expectedMissing: map[string][]string{"t1": {wav}},
			expectedInvalid: map[string][]string{},
		},
		{
			name:            "Scenario 3: checksum mismatch",
			present:         true,
			digest:          "beefdead",
			expectedMissing: map[string][]string{},
			expectedInvalid: map[string][]string{"t1": {wav}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			if tc.present {
				require.NoError(t, afero.WriteFile(fsys, wav, []byte("RIFF"), 0644))
			}
			v := newValidator(fsys, &stubHasher{sums: map[string]string{wav: tc.digest}})
			report, err := v.Check(idx, root)
			require.NoError(t, err)
			require.Equal(t, tc.expectedMissing, report.Missing)
			require.Equal(t, tc.expectedInvalid, report.InvalidChecksums)
			require.Equal(t, tc.present && tc.digest == "deadbeef", report.Clean())
		})
	}
}

func TestCheckRealDigests(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, root+"/x/a.txt", []byte("hello"), 0644))
	require.NoError(t, afero.WriteFile(fsys, root+"/x/b.txt", []byte("corrupt"), 0644))
	idx := mustIndex(t, `{
		"r1": {
			"a": ["x/a.txt", "5D41402ABC4B2A76B9719D911017C592"],
			"b": ["x/b.txt", "5d41402abc4b2a76b9719d911017c592"],
			"c": ["x/c.txt", "5d41402abc4b2a76b9719d911017c592"],
			"d": ["x/a.txt", null]
		},
		"r2": {"a": ["x/a.txt", "5d41402abc4b2a76b9719d911017c592"]}
	}`)
	v := newValidator(fsys, checksum.NewFileHasher(fsys, checksum.MD5))
	report, err := v.Check(idx, root)
	require.NoError(t, err)
	require.Equal(t, map[string][]string{"r1": {root + "/x/c.txt"}}, report.Missing)
	require.Equal(t, map[string][]string{"r1": {root + "/x/b.txt", root + "/x/a.txt"}}, report.InvalidChecksums)
	_, ok := report.Missing["r2"]
	require.False(t, ok)
}

func TestNullPathNeverMissing(t *testing.T) {
	idx := mustIndex(t, `{
		"t1": {"audio": [null, null], "midi": [null, "abc"]},
		"t2": {"audio": [null, null]}
	}`)
	h := &stubHasher{}
	v := newValidator(afero.NewMemMapFs(), h)
	report, err := v.Check(idx, root)
	require.NoError(t, err)
	require.True(t, report.Clean())
	require.Equal(t, 0, h.calls)
}

func TestUnreadableFilePropagates(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, root+"/a.wav", []byte("x"), 0644))
	idx := mustIndex(t, `{"t1": {"audio": ["a.wav", "deadbeef"]}}`)
	boom := errors.New("permission denied")
	v := newValidator(fsys, &stubHasher{err: boom})
	_, err := v.Check(idx, root)
	require.Error(t, err)
	require.True(t, errors.Is(err, boom))
}

func TestValidateMarksClean(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, root+"/a.wav", []byte("x"), 0644))
	idx := mustIndex(t, `{"t1": {"audio": ["a.wav", "deadbeef"]}}`)
	h := &stubHasher{sums: map[string]string{root + "/a.wav": "deadbeef"}}
	v := newValidator(fsys, h)

	first, err := v.Validate(idx, root, root)
	require.NoError(t, err)
	require.True(t, first.Clean())
	store := NewStore(fsys, root)
	require.True(t, store.IsValidated())
	info, err := fsys.Stat(root + "/" + ValidatedFile)
	require.NoError(t, err)
	require.Equal(t, int64(0), info.Size())
	require.Equal(t, 1, h.calls)

	second, err := v.Validate(idx, root, root)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, h.calls, "a validated dataset is not rescanned")
}

func TestValidateCachedIgnoresLaterCorruption(t *testing.T) {
	fsys := afero.NewMemMapFs()
	idx := mustIndex(t, `{"t1": {"audio": ["a.wav", "deadbeef"]}}`)
	require.NoError(t, NewStore(fsys, root).MarkValidated())

	h := &stubHasher{}
	v := newValidator(fsys, h)
	report, err := v.Validate(idx, root, root)
	require.NoError(t, err)
	require.True(t, report.Clean())
	require.Equal(t, 0, h.calls)
}

func TestValidateDirtyWritesReport(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, root+"/b.wav", []byte("x"), 0644))
	idx := mustIndex(t, `{
		"t1": {"audio": ["a.wav", "deadbeef"]},
		"t2": {"audio": ["b.wav", "deadbeef"]}
	}`)
	h := &stubHasher{sums: map[string]string{root + "/b.wav": "beefdead"}}
	v := newValidator(fsys, h)
	out := &bytes.Buffer{}
	v.Out = out

	first, err := v.Validate(idx, root, root)
	require.NoError(t, err)
	require.False(t, first.Clean())

	store := NewStore(fsys, root)
	require.False(t, store.IsValidated())
	data, err := afero.ReadFile(fsys, root+"/"+InvalidFile)
	require.NoError(t, err)
	doc := map[string]map[string][]string{}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, map[string][]string{"t1": {root + "/a.wav"}}, doc["missing_files"])
	require.Equal(t, map[string][]string{"t2": {root + "/b.wav"}}, doc["invalid_checksums"])

	listing := out.String()
	require.True(t, strings.Contains(listing, "Files missing for t1:\n"+root+"/a.wav\n"))
	require.True(t, strings.Contains(listing, "Invalid checksums for t2:\n"+root+"/b.wav\n"))

	// unchanged filesystem: same report, file rescanned because dirty passes are not cached
	second, err := v.Validate(idx, root, root)
	require.NoError(t, err)
	require.Equal(t, first, second)

	stored, err := store.ReadInvalid()
	require.NoError(t, err)
	require.Equal(t, first, stored)
}

func TestValidateListingOutput(t *testing.T) {
	fsys := afero.NewMemMapFs()
	idx := mustIndex(t, `{"t1": {"audio": ["a.wav", "deadbeef"]}}`)
	v := newValidator(fsys, &stubHasher{})

	// a nil Out writes nowhere, not even to stdout
	stdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	report, err := v.Validate(idx, root, root)
	os.Stdout = stdout
	require.NoError(t, w.Close())
	printed, readErr := io.ReadAll(r)
	require.NoError(t, readErr)
	require.NoError(t, err)
	require.Equal(t, 1, report.MissingCount())
	require.Empty(t, printed)

	out := &bytes.Buffer{}
	v.Out = out
	_, err = v.Validate(idx, root, root)
	require.NoError(t, err)
	require.Equal(t, "Files missing for t1:\n"+root+"/a.wav\n--------------------\n", out.String())
}
