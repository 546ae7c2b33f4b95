package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/bmeg/datacheck/metrics"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	body string
}

var datasetEntries = []entry{
	{"babyslakh_16k/", ""},
	{"babyslakh_16k/Track00001/metadata.yaml", "audio_dir: stems\n"},
	{"babyslakh_16k/Track00001/stems/S00.wav", "RIFF....WAVE"},
}

func tarBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if e.name[len(e.name)-1] == '/' {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
		}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

// linkBytes builds a tar from raw headers; regular entries carry body.
func linkBytes(t *testing.T, hdrs []*tar.Header, body string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, hdr := range hdrs {
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func compress(t *testing.T, data []byte, format Format) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	var w io.WriteCloser
	switch format {
	case TarGz:
		w = gzip.NewWriter(buf)
	case TarZst:
		enc, err := zstd.NewWriter(buf)
		require.NoError(t, err)
		w = enc
	case TarLz4:
		w = lz4.NewWriter(buf)
	default:
		return data
	}
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, entries []entry) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newExtractor(fsys afero.Fs) *Extractor {
	x := NewExtractor(fsys)
	x.Metrics = metrics.NewCollector()
	return x
}

func requireExtracted(t *testing.T, fsys afero.Fs, target string) {
	t.Helper()
	for _, e := range datasetEntries {
		if e.body == "" {
			continue
		}
		got, err := afero.ReadFile(fsys, target+"/"+e.name)
		require.NoError(t, err)
		require.Equal(t, e.body, string(got))
	}
}

func TestExtractFormats(t *testing.T) {
	testCases := []struct {
		name   string
		file   string
		format Format
		data   func(t *testing.T) []byte
	}{
		{"zip", "ds.zip", Zip, func(t *testing.T) []byte { return zipBytes(t, datasetEntries) }},
		{"tar", "ds.tar", Tar, func(t *testing.T) []byte { return tarBytes(t, datasetEntries) }},
		{"tar.gz", "ds.tar.gz", TarGz, func(t *testing.T) []byte { return compress(t, tarBytes(t, datasetEntries), TarGz) }},
		{"tar.zst", "ds.tar.zst", TarZst, func(t *testing.T) []byte { return compress(t, tarBytes(t, datasetEntries), TarZst) }},
		{"tar.lz4", "ds.tar.lz4", TarLz4, func(t *testing.T) []byte { return compress(t, tarBytes(t, datasetEntries), TarLz4) }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			archivePath := "/data/" + tc.file
			require.NoError(t, afero.WriteFile(fsys, archivePath, tc.data(t), 0644))

			format, err := Detect(fsys, archivePath)
			require.NoError(t, err)
			require.Equal(t, tc.format, format)

			require.NoError(t, newExtractor(fsys).Extract(archivePath, "/data/out", format, false))
			requireExtracted(t, fsys, "/data/out")
			exists, _ := afero.Exists(fsys, archivePath)
			require.True(t, exists)
		})
	}
}

func TestExtractCleanup(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/ds.zip", zipBytes(t, datasetEntries), 0644))
	require.NoError(t, Extract(fsys, "/data/ds.zip", "/data", Zip, true))
	requireExtracted(t, fsys, "/data")
	exists, _ := afero.Exists(fsys, "/data/ds.zip")
	require.False(t, exists)
}

func TestCorruptArchiveKept(t *testing.T) {
	good := compress(t, tarBytes(t, datasetEntries), TarGz)
	testCases := []struct {
		name   string
		file   string
		format Format
		data   []byte
	}{
		{"garbage zip", "bad.zip", Zip, []byte("this is not a zip file")},
		{"garbage gzip", "bad.tar.gz", TarGz, []byte("this is not gzip")},
		{"truncated gzip", "cut.tar.gz", TarGz, good[:len(good)/2]},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			path := "/data/" + tc.file
			require.NoError(t, afero.WriteFile(fsys, path, tc.data, 0644))
			err := newExtractor(fsys).Extract(path, "/data/out", tc.format, true)
			require.Error(t, err)
			var ae *Error
			require.True(t, errors.As(err, &ae))
			require.Equal(t, path, ae.Path)
			exists, _ := afero.Exists(fsys, path)
			require.True(t, exists, "a failed extraction leaves the archive")
		})
	}
}

func TestUnsafeEntries(t *testing.T) {
	fsys := afero.NewMemMapFs()
	evil := tarBytes(t, []entry{{"../../etc/cron.d/x", "boom"}})
	require.NoError(t, afero.WriteFile(fsys, "/data/evil.tar", evil, 0644))
	err := Extract(fsys, "/data/evil.tar", "/data/out", Tar, false)
	require.True(t, errors.Is(err, ErrUnsafePath))

	evilZip := zipBytes(t, []entry{{"../escape.txt", "boom"}})
	require.NoError(t, afero.WriteFile(fsys, "/data/evil.zip", evilZip, 0644))
	err = Extract(fsys, "/data/evil.zip", "/data/out", Zip, false)
	var ae *Error
	require.True(t, errors.As(err, &ae))
	exists, _ := afero.Exists(fsys, "/data/escape.txt")
	require.False(t, exists)

	exists, _ = afero.Exists(fsys, "/etc/cron.d/x")
	require.False(t, exists)
}

func TestSymlinkChainStaysInside(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "out")
	archivePath := filepath.Join(base, "chain.tar")
	chain := linkBytes(t, []*tar.Header{
		{Name: "d/", Typeflag: tar.TypeDir, Mode: 0755},
		{Name: "d/l", Typeflag: tar.TypeSymlink, Linkname: ".."},
		{Name: "d/l/m", Typeflag: tar.TypeSymlink, Linkname: ".."},
		{Name: "d/l/m/evil.txt", Typeflag: tar.TypeReg, Mode: 0644},
	}, "boom")
	require.NoError(t, os.WriteFile(archivePath, chain, 0644))

	err := Extract(afero.NewOsFs(), archivePath, target, Tar, false)
	require.True(t, errors.Is(err, ErrUnsafePath))
	require.NoFileExists(t, filepath.Join(base, "evil.txt"))
	require.NoFileExists(t, filepath.Join(target, "evil.txt"))
}

func TestSymlinkThroughEarlierLink(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "out")
	archivePath := filepath.Join(base, "dotdot.tar")
	data := linkBytes(t, []*tar.Header{
		{Name: "d/", Typeflag: tar.TypeDir, Mode: 0755},
		{Name: "d/l", Typeflag: tar.TypeSymlink, Linkname: ".."},
		{Name: "up", Typeflag: tar.TypeSymlink, Linkname: "d/l/.."},
	}, "")
	require.NoError(t, os.WriteFile(archivePath, data, 0644))

	err := Extract(afero.NewOsFs(), archivePath, target, Tar, false)
	require.True(t, errors.Is(err, ErrUnsafePath))
	_, err = os.Lstat(filepath.Join(target, "up"))
	require.True(t, os.IsNotExist(err))
}

func TestSymlinkInsideTarget(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "out")
	archivePath := filepath.Join(base, "ok.tar")
	data := linkBytes(t, []*tar.Header{
		{Name: "stems/S00.wav", Typeflag: tar.TypeReg, Mode: 0644},
		{Name: "mix/latest.wav", Typeflag: tar.TypeSymlink, Linkname: "../stems/S00.wav"},
	}, "RIFF")
	require.NoError(t, os.WriteFile(archivePath, data, 0644))

	require.NoError(t, Extract(afero.NewOsFs(), archivePath, target, Tar, false))
	got, err := os.ReadFile(filepath.Join(target, "mix", "latest.wav"))
	require.NoError(t, err)
	require.Equal(t, "RIFF", string(got))
}

func TestHardLinks(t *testing.T) {
	data := linkBytes(t, []*tar.Header{
		{Name: "Track00001/stems/S00.wav", Typeflag: tar.TypeReg, Mode: 0644},
		{Name: "Track00002/stems/S00.wav", Typeflag: tar.TypeLink, Linkname: "Track00001/stems/S00.wav", Mode: 0644},
	}, "RIFF....WAVE")

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/dup.tar", data, 0644))
	require.NoError(t, Extract(fsys, "/data/dup.tar", "/data/out", Tar, false))
	got, err := afero.ReadFile(fsys, "/data/out/Track00002/stems/S00.wav")
	require.NoError(t, err)
	require.Equal(t, "RIFF....WAVE", string(got))

	escape := linkBytes(t, []*tar.Header{
		{Name: "copy", Typeflag: tar.TypeLink, Linkname: "../../etc/passwd"},
	}, "")
	require.NoError(t, afero.WriteFile(fsys, "/data/escape.tar", escape, 0644))
	err = Extract(fsys, "/data/escape.tar", "/data/out", Tar, false)
	require.True(t, errors.Is(err, ErrUnsafePath))

	dangling := linkBytes(t, []*tar.Header{
		{Name: "copy", Typeflag: tar.TypeLink, Linkname: "nowhere"},
	}, "")
	require.NoError(t, afero.WriteFile(fsys, "/data/dangling.tar", dangling, 0644))
	err = Extract(fsys, "/data/dangling.tar", "/data/out", Tar, false)
	var ae *Error
	require.True(t, errors.As(err, &ae))
}

func TestUnknownFormat(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/blob", []byte("plain text"), 0644))
	_, err := Detect(fsys, "/data/blob")
	require.True(t, errors.Is(err, ErrUnknownFormat))

	err = Extract(fsys, "/data/blob", "/data/out", Unknown, true)
	require.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestSniff(t *testing.T) {
	require.Equal(t, Zip, Sniff(bytes.NewReader(zipBytes(t, datasetEntries))))
	require.Equal(t, Tar, Sniff(bytes.NewReader(tarBytes(t, datasetEntries))))
	require.Equal(t, TarGz, Sniff(bytes.NewReader(compress(t, []byte("x"), TarGz))))
	require.Equal(t, TarZst, Sniff(bytes.NewReader(compress(t, []byte("x"), TarZst))))
	require.Equal(t, TarLz4, Sniff(bytes.NewReader(compress(t, []byte("x"), TarLz4))))
	require.Equal(t, Unknown, Sniff(bytes.NewReader(nil)))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("tgz")
	require.NoError(t, err)
	require.Equal(t, TarGz, f)
	require.Equal(t, "tar.zst", TarZst.String())
	_, err = ParseFormat("rar")
	require.True(t, errors.Is(err, ErrUnknownFormat))
	require.Equal(t, TarLz4, FormatFromName("X.TAR.LZ4"))
}
