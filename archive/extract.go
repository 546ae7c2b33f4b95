// Package archive unpacks downloaded dataset archives (zip and tar, plain
// or compressed with gzip, zstd or lz4) into a dataset directory.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/metrics"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"
)

var (
	ErrUnknownFormat = errors.New("unknown archive format")
	ErrUnsafePath    = errors.New("archive entry escapes target directory")
)

// Error reports an archive that could not be read or unpacked.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cannot extract %s: %s", e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Extractor struct {
	Fs      afero.Fs
	Metrics *metrics.Collector
}

func NewExtractor(fsys afero.Fs) *Extractor {
	return &Extractor{Fs: fsys, Metrics: metrics.Default}
}

// Extract unpacks archivePath into targetDir, creating the directory when
// needed. The archive is removed afterwards only if cleanup is set and
// every entry was extracted.
func (x *Extractor) Extract(archivePath, targetDir string, format Format, cleanup bool) error {
	if err := x.Fs.MkdirAll(targetDir, 0755); err != nil {
		return err
	}
	var err error
	switch format {
	case Zip:
		err = x.unzip(archivePath, targetDir)
	case Tar, TarGz, TarZst, TarLz4:
		err = x.untar(archivePath, targetDir, format)
	default:
		err = &Error{Path: archivePath, Err: ErrUnknownFormat}
	}
	if x.Metrics != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		x.Metrics.Extractions.WithLabelValues(format.String(), result).Inc()
	}
	if err != nil {
		return err
	}
	logger.Debug("Extracted archive", "archive", archivePath, "target", targetDir, "format", format)
	if cleanup {
		return x.Fs.Remove(archivePath)
	}
	return nil
}

// Extract is a convenience wrapper around Extractor.Extract.
func Extract(fsys afero.Fs, archivePath, targetDir string, format Format, cleanup bool) error {
	return NewExtractor(fsys).Extract(archivePath, targetDir, format, cleanup)
}

// safeJoin resolves an entry name under target, refusing names that climb
// out of it.
func safeJoin(target, name string) (string, error) {
	dst := filepath.Join(target, name)
	if !within(target, dst) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return dst, nil
}

// entryPath is safeJoin plus a check that no directory between targetDir
// and the entry is a symlink, so links made by earlier entries cannot
// redirect later ones.
func (x *Extractor) entryPath(targetDir, name string) (string, error) {
	dst, err := safeJoin(targetDir, name)
	if err != nil {
		return "", err
	}
	crosses, err := x.crossesLink(targetDir, filepath.Dir(dst))
	if err != nil {
		return "", err
	}
	if crosses {
		return "", fmt.Errorf("%w: %s passes through a symlink", ErrUnsafePath, name)
	}
	return dst, nil
}

// crossesLink reports whether dir, or any directory between targetDir and
// dir, is a symlink.
func (x *Extractor) crossesLink(targetDir, dir string) (bool, error) {
	rel, err := filepath.Rel(targetDir, dir)
	if err != nil {
		return false, err
	}
	if rel == "." {
		return false, nil
	}
	p := targetDir
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		p = filepath.Join(p, part)
		link, err := x.isLink(p)
		if err != nil || link {
			return link, err
		}
	}
	return false, nil
}

// isLink reports whether p is a symlink. Missing paths, and filesystems
// without Lstat, have none.
func (x *Extractor) isLink(p string) (bool, error) {
	lst, ok := x.Fs.(afero.Lstater)
	if !ok {
		return false, nil
	}
	info, lstatCalled, err := lst.LstatIfPossible(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return lstatCalled && info.Mode()&fs.ModeSymlink != 0, nil
}

// removeLink deletes dst when it is a symlink so the entry replaces the
// link instead of writing through it.
func (x *Extractor) removeLink(dst string) error {
	link, err := x.isLink(dst)
	if err != nil || !link {
		return err
	}
	return x.Fs.Remove(dst)
}

func within(base, p string) bool {
	base = filepath.Clean(base)
	p = filepath.Clean(p)
	return p == base || strings.HasPrefix(p, base+string(os.PathSeparator))
}

func (x *Extractor) writeFile(dst string, r io.Reader, mode fs.FileMode) error {
	if err := x.Fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := x.removeLink(dst); err != nil {
		return err
	}
	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}
	out, err := x.Fs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (x *Extractor) unzip(archivePath, targetDir string) error {
	f, err := x.Fs.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return &Error{Path: archivePath, Err: err}
	}
	for _, zf := range zr.File {
		dst, err := x.entryPath(targetDir, zf.Name)
		if err != nil {
			return &Error{Path: archivePath, Err: err}
		}
		if zf.FileInfo().IsDir() {
			if err := x.Fs.MkdirAll(dst, 0755); err != nil {
				return err
			}
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return &Error{Path: archivePath, Err: err}
		}
		err = x.writeFile(dst, rc, zf.Mode())
		rc.Close()
		if err != nil {
			return &Error{Path: archivePath, Err: fmt.Errorf("%s: %w", zf.Name, err)}
		}
	}
	return nil
}

func decompressor(r io.Reader, format Format) (io.ReadCloser, error) {
	switch format {
	case TarGz:
		return gzip.NewReader(r)
	case TarZst:
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return d.IOReadCloser(), nil
	case TarLz4:
		return io.NopCloser(lz4.NewReader(r)), nil
	}
	return io.NopCloser(r), nil
}

func (x *Extractor) untar(archivePath, targetDir string, format Format) error {
	f, err := x.Fs.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	stream, err := decompressor(f, format)
	if err != nil {
		return &Error{Path: archivePath, Err: err}
	}
	defer stream.Close()

	tr := tar.NewReader(stream)
	entries := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return &Error{Path: archivePath, Err: err}
		}
		entries++
		dst, err := x.entryPath(targetDir, hdr.Name)
		if err != nil {
			return &Error{Path: archivePath, Err: err}
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := x.Fs.MkdirAll(dst, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := x.writeFile(dst, tr, hdr.FileInfo().Mode()); err != nil {
				return &Error{Path: archivePath, Err: fmt.Errorf("%s: %w", hdr.Name, err)}
			}
		case tar.TypeLink:
			if err := x.hardlink(targetDir, dst, hdr.Linkname, hdr.FileInfo().Mode()); err != nil {
				return &Error{Path: archivePath, Err: err}
			}
		case tar.TypeSymlink:
			if err := x.symlink(targetDir, dst, hdr.Linkname); err != nil {
				return &Error{Path: archivePath, Err: err}
			}
		default:
			logger.Debug("Skipping archive entry", "name", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
	if entries == 0 {
		logger.Warn("Archive has no entries", "archive", archivePath)
	}
	return nil
}

// hardlink recreates a hard link entry as a copy of the file it names,
// which must already have been extracted.
func (x *Extractor) hardlink(targetDir, dst, linkname string, mode fs.FileMode) error {
	src, err := x.entryPath(targetDir, linkname)
	if err != nil {
		return err
	}
	in, err := x.Fs.Open(src)
	if err != nil {
		return fmt.Errorf("%s: link target %s: %w", dst, linkname, err)
	}
	defer in.Close()
	return x.writeFile(dst, in, mode)
}

// symlink creates dst -> linkname. The link is followed one component at
// a time from dst's directory; every step must stay under targetDir and
// no step may pass through another symlink.
func (x *Extractor) symlink(targetDir, dst, linkname string) error {
	errUnsafe := fmt.Errorf("%w: %s -> %s", ErrUnsafePath, dst, linkname)
	if filepath.IsAbs(linkname) {
		return errUnsafe
	}
	p := filepath.Dir(dst)
	for _, part := range strings.Split(filepath.ToSlash(linkname), "/") {
		link, err := x.isLink(p)
		if err != nil {
			return err
		}
		if link {
			return errUnsafe
		}
		switch part {
		case "", ".":
			continue
		case "..":
			p = filepath.Dir(p)
		default:
			p = filepath.Join(p, part)
		}
		if !within(targetDir, p) {
			return errUnsafe
		}
	}
	linker, ok := x.Fs.(afero.Linker)
	if !ok {
		logger.Debug("Filesystem cannot create symlinks, skipping", "name", dst)
		return nil
	}
	if err := x.Fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := x.removeLink(dst); err != nil {
		return err
	}
	return linker.SymlinkIfPossible(linkname, dst)
}
