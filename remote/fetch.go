// Package remote downloads dataset artifacts and enforces their expected
// checksums.
//
// Transfers are streamed to a temporary file next to the destination and
// renamed into place once complete, so an interrupted transfer never
// leaves a file that later looks fetched. Failures are reported, never
// retried.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/bmeg/datacheck/checksum"
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/metrics"
	"github.com/bmeg/datacheck/util"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/spf13/afero"
)

const DefaultChunkSize = 4096

// Doer is the HTTP client collaborator. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Progress is published once per chunk written. Total is -1 when the
// server did not announce a length.
type Progress struct {
	Filename string
	Written  int64
	Total    int64
}

type Fetcher struct {
	Fs        afero.Fs
	Client    Doer
	Algorithm checksum.Algorithm
	ChunkSize int
	// Progress, when set, receives transfer events. Sends never block:
	// events are dropped while the receiver is busy, and since each
	// carries the running total nothing is lost but granularity.
	Progress chan<- Progress
	// S3Client builds the client used for s3+http(s):// URLs.
	S3Client func(u *url.URL) (*minio.Client, error)
	Metrics  *metrics.Collector
}

func NewFetcher(fsys afero.Fs, alg checksum.Algorithm) *Fetcher {
	return &Fetcher{
		Fs:        fsys,
		Client:    http.DefaultClient,
		Algorithm: alg,
		ChunkSize: DefaultChunkSize,
		S3Client:  util.GetS3Client,
		Metrics:   metrics.Default,
	}
}

func (f *Fetcher) count(result string) {
	if f.Metrics != nil {
		f.Metrics.Fetches.WithLabelValues(result).Inc()
	}
}

// Fetch makes sure the artifact is present under root and matches its
// checksum, returning the local path. An existing file is reused unless
// force is set, but it is still checked. On a checksum mismatch the file
// is left in place and an *IntegrityError is returned.
func (f *Fetcher) Fetch(ctx context.Context, a Artifact, root string, force bool) (string, error) {
	localPath := a.LocalPath(root)

	var sum string
	if force || !util.Exists(f.Fs, localPath) {
		if err := f.Fs.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
			return "", err
		}
		logger.Info("Downloading", "file", a.Filename, "url", a.URL)
		s, err := f.download(ctx, a, localPath)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) {
				f.count("fetch_error")
			}
			return "", err
		}
		sum = s
	} else {
		logger.Info("Using existing file", "path", localPath)
		s, err := checksum.File(f.Fs, localPath, f.Algorithm)
		if err != nil {
			return "", err
		}
		sum = s
	}

	if !checksum.Equal(sum, a.Checksum) {
		f.count("integrity_error")
		return "", &IntegrityError{Path: localPath, Algorithm: f.Algorithm, Got: sum, Want: a.Checksum}
	}
	f.count("ok")
	return localPath, nil
}

// open returns the artifact body and its announced length.
func (f *Fetcher) open(ctx context.Context, a Artifact) (io.ReadCloser, int64, error) {
	if u := util.GetS3URL(a.URL); u != nil {
		return f.openS3(ctx, u)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return nil, 0, &FetchError{URL: a.URL, Err: err}
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, &FetchError{URL: a.URL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, &FetchError{URL: a.URL, StatusCode: resp.StatusCode}
	}
	return resp.Body, resp.ContentLength, nil
}

func (f *Fetcher) openS3(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	bucket, key, err := util.SplitBucket(u)
	if err != nil {
		return nil, 0, &FetchError{URL: u.String(), Err: err}
	}
	if f.S3Client == nil {
		return nil, 0, &FetchError{URL: u.String(), Err: fmt.Errorf("no s3 client configured")}
	}
	mc, err := f.S3Client(u)
	if err != nil {
		return nil, 0, &FetchError{URL: u.String(), Err: err}
	}
	obj, err := mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, &FetchError{URL: u.String(), Err: err}
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, 0, &FetchError{URL: u.String(), Err: err}
	}
	return obj, info.Size, nil
}

func (f *Fetcher) publish(p Progress) {
	if f.Progress == nil {
		return
	}
	select {
	case f.Progress <- p:
	default:
	}
}

// download streams the body into a temp file, digesting it on the way,
// and renames it to localPath when the transfer completed.
func (f *Fetcher) download(ctx context.Context, a Artifact, localPath string) (string, error) {
	body, total, err := f.open(ctx, a)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmpPath := localPath + ".part-" + uuid.NewString()
	out, err := f.Fs.Create(tmpPath)
	if err != nil {
		return "", err
	}
	success := false
	defer func() {
		if !success {
			out.Close()
			f.Fs.Remove(tmpPath)
		}
	}()

	chunk := f.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	h := f.Algorithm.New()
	buf := make([]byte, chunk)
	var written int64
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return "", err
			}
			h.Write(buf[:n])
			written += int64(n)
			if f.Metrics != nil {
				f.Metrics.BytesDownloaded.Add(float64(n))
			}
			f.publish(Progress{Filename: a.baseName(), Written: written, Total: total})
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", &FetchError{URL: a.URL, Err: rerr}
		}
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	if util.Exists(f.Fs, localPath) {
		if err := f.Fs.Remove(localPath); err != nil {
			return "", err
		}
	}
	if err := f.Fs.Rename(tmpPath, localPath); err != nil {
		return "", err
	}
	success = true
	logger.Debug("Download complete", "file", a.Filename, "size", humanize.Bytes(uint64(written)))
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
