package archive

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// Format is the closed set of archive kinds the extractor understands.
// It is decided once, at the call boundary, and Extract dispatches on it.
type Format int

const (
	Unknown Format = iota
	Zip
	Tar
	TarGz
	TarZst
	TarLz4
)

var formatNames = [...]string{"unknown", "zip", "tar", "tar.gz", "tar.zst", "tar.lz4"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat accepts the names printed by String plus common aliases.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "zip":
		return Zip, nil
	case "tar":
		return Tar, nil
	case "tar.gz", "tgz", "gz":
		return TarGz, nil
	case "tar.zst", "tzst", "zst":
		return TarZst, nil
	case "tar.lz4", "lz4":
		return TarLz4, nil
	}
	return Unknown, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// FormatFromName maps a file name suffix to a Format.
func FormatFromName(name string) Format {
	n := strings.ToLower(name)
	switch {
	case strings.HasSuffix(n, ".zip"):
		return Zip
	case strings.HasSuffix(n, ".tar.gz"), strings.HasSuffix(n, ".tgz"):
		return TarGz
	case strings.HasSuffix(n, ".tar.zst"), strings.HasSuffix(n, ".tzst"):
		return TarZst
	case strings.HasSuffix(n, ".tar.lz4"):
		return TarLz4
	case strings.HasSuffix(n, ".tar"):
		return Tar
	}
	return Unknown
}

var (
	zipMagic  = []byte("PK\x03\x04")
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
	tarMagic  = []byte("ustar")
)

const tarMagicOffset = 257

// Sniff identifies an archive from its leading bytes.
func Sniff(r io.Reader) Format {
	head := make([]byte, 512)
	n, _ := io.ReadFull(r, head)
	head = head[:n]
	switch {
	case bytes.HasPrefix(head, zipMagic):
		return Zip
	case bytes.HasPrefix(head, gzipMagic):
		return TarGz
	case bytes.HasPrefix(head, zstdMagic):
		return TarZst
	case bytes.HasPrefix(head, lz4Magic):
		return TarLz4
	case len(head) >= tarMagicOffset+len(tarMagic) && bytes.Equal(head[tarMagicOffset:tarMagicOffset+len(tarMagic)], tarMagic):
		return Tar
	}
	return Unknown
}

// Detect uses the file name first and falls back to the content.
func Detect(fsys afero.Fs, path string) (Format, error) {
	if f := FormatFromName(path); f != Unknown {
		return f, nil
	}
	fh, err := fsys.Open(path)
	if err != nil {
		return Unknown, err
	}
	defer fh.Close()
	if f := Sniff(fh); f != Unknown {
		return f, nil
	}
	return Unknown, &Error{Path: path, Err: ErrUnknownFormat}
}
