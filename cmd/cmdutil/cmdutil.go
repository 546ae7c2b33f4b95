// Package cmdutil holds the flags and wiring shared by the subcommands.
package cmdutil

import (
	"fmt"
	"io"

	"github.com/bmeg/datacheck/checksum"
	"github.com/bmeg/datacheck/config"
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/metrics"
	"github.com/bmeg/datacheck/remote"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

var (
	ConfigPath  = ""
	EnvFile     = ""
	MetricsFile = ""
	Verbose     = false
	JSONLog     = false
)

// FS is the filesystem every command works on.
var FS afero.Fs = afero.NewOsFs()

// Setup configures logging and the environment, then loads the config.
func Setup() (*config.Config, error) {
	logger.Init(Verbose, JSONLog)
	if err := config.LoadEnv(EnvFile); err != nil {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	return config.Load(ConfigPath)
}

// Finish writes the metrics file, if requested, and prints the error
// summary.
func Finish() error {
	defer logger.Close()
	if MetricsFile == "" {
		return nil
	}
	return metrics.Default.WriteFile(MetricsFile)
}

// Hasher returns a file hasher for alg, backed by the pebble digest cache
// when cacheDir (or the config's digest_cache) is set. The returned close
// function must be called when done.
func Hasher(conf *config.Config, alg checksum.Algorithm, cacheDir string) (checksum.Hasher, func(), error) {
	fh := checksum.NewFileHasher(FS, alg)
	if cacheDir == "" {
		cacheDir = conf.DigestCache
	}
	if cacheDir == "" {
		return fh, func() {}, nil
	}
	cache, err := checksum.OpenCache(cacheDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening digest cache %s: %w", cacheDir, err)
	}
	logger.Debug("Using digest cache", "path", cacheDir)
	return &checksum.CachedHasher{FileHasher: fh, Cache: cache}, func() { cache.Close() }, nil
}

// ProgressPrinter renders fetch progress on w until the returned stop
// function is called.
func ProgressPrinter(w io.Writer) (chan remote.Progress, func()) {
	events := make(chan remote.Progress, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		printed := false
		for p := range events {
			printed = true
			if p.Total > 0 {
				fmt.Fprintf(w, "\r%s: %s / %s", p.Filename, humanize.Bytes(uint64(p.Written)), humanize.Bytes(uint64(p.Total)))
			} else {
				fmt.Fprintf(w, "\r%s: %s", p.Filename, humanize.Bytes(uint64(p.Written)))
			}
		}
		if printed {
			fmt.Fprintln(w)
		}
	}()
	return events, func() {
		close(events)
		<-done
	}
}
