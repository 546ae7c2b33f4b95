// Package dataset ties an index to the remote artifacts that populate it:
// download, unpack, validate, and reset a local dataset copy.
package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmeg/datacheck/archive"
	"github.com/bmeg/datacheck/checksum"
	"github.com/bmeg/datacheck/config"
	"github.com/bmeg/datacheck/logger"
	"github.com/bmeg/datacheck/manifest"
	"github.com/bmeg/datacheck/remote"
	"github.com/bmeg/datacheck/util"
	"github.com/bmeg/datacheck/validate"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Remote describes one artifact of a dataset.
type Remote struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Checksum string `json:"checksum"`
	// Destination is the directory, relative to the dataset home, that
	// the archive is unpacked into.
	Destination string `json:"destination"`
	Unpack      bool   `json:"unpack"`
	// Format overrides archive detection, e.g. "tar.gz".
	Format string `json:"format"`
}

type Descriptor struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Index     string   `json:"index"`
	Algorithm string   `json:"algorithm"`
	Remotes   []Remote `json:"remotes"`
}

type Dataset struct {
	Descriptor
	// Home is the dataset root: index paths resolve against it, artifacts
	// download into it and the validation markers live in it.
	Home      string
	Algorithm checksum.Algorithm
	Index     *manifest.Index
	Vars      map[string]string
}

func parseDescriptor(raw []byte) (*Descriptor, error) {
	d := &Descriptor{}
	if err := yaml.UnmarshalStrict(raw, d); err != nil {
		return nil, err
	}
	if d.Name == "" {
		return nil, fmt.Errorf("dataset name missing")
	}
	seen := map[string]bool{}
	for _, r := range d.Remotes {
		if r.Name == "" || r.Filename == "" || r.URL == "" {
			return nil, fmt.Errorf("remote %q needs name, filename and url", r.Name)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate remote %s", r.Name)
		}
		seen[r.Name] = true
	}
	return d, nil
}

// Load reads a dataset descriptor and its index. home overrides the
// dataset root; otherwise it is <data home>/<dataset name>.
func Load(path string, conf *config.Config, home string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset at path %s: %w", path, err)
	}
	desc, err := parseDescriptor(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset at path %s: %w", path, err)
	}
	if conf == nil {
		conf = &config.Config{}
	}
	algName := desc.Algorithm
	if algName == "" {
		algName = conf.Algorithm
	}
	alg, err := checksum.ParseAlgorithm(algName)
	if err != nil {
		return nil, err
	}
	if home == "" {
		home = filepath.Join(conf.Home(""), desc.Name)
	}
	ds := &Dataset{Descriptor: *desc, Home: home, Algorithm: alg, Vars: conf.Vars}
	if desc.Index != "" {
		indexPath := findIndex(desc.Index, filepath.Dir(path), conf.IndexDir)
		idx, err := manifest.LoadFile(indexPath)
		if err != nil {
			return nil, err
		}
		ds.Index = idx
	} else {
		ds.Index = manifest.New()
	}
	return ds, nil
}

func findIndex(name, descDir, indexDir string) string {
	if filepath.IsAbs(name) {
		return name
	}
	local := filepath.Join(descDir, name)
	if _, err := os.Stat(local); err == nil || indexDir == "" {
		return local
	}
	return filepath.Join(indexDir, name)
}

// Artifact returns the remote with its URL rendered from the dataset vars.
func (d *Dataset) Artifact(r Remote) (remote.Artifact, error) {
	return remote.NewArtifact(r.Filename, r.URL, r.Checksum).WithURLVars(d.Vars)
}

// SelectRemotes returns the named remotes, or all of them when names is
// empty.
func (d *Dataset) SelectRemotes(names []string) ([]Remote, error) {
	if len(names) == 0 {
		return d.Remotes, nil
	}
	out := []Remote{}
	for _, n := range names {
		found := false
		for _, r := range d.Remotes {
			if r.Name == n {
				out = append(out, r)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("dataset %s has no remote %s", d.Name, n)
		}
	}
	return out, nil
}

type DownloadOptions struct {
	Remotes []string
	Force   bool
	// Cleanup removes archives after a successful unpack.
	Cleanup bool
}

// Download fetches the selected remotes into Home and unpacks the ones
// marked for it. Any stored validation result is cleared once an artifact
// has been transferred or unpacked. The first failure stops the download.
func (d *Dataset) Download(ctx context.Context, fetcher *remote.Fetcher, extractor *archive.Extractor, opts DownloadOptions) error {
	remotes, err := d.SelectRemotes(opts.Remotes)
	if err != nil {
		return err
	}
	changed := false
	for _, r := range remotes {
		art, err := d.Artifact(r)
		if err != nil {
			return err
		}
		if opts.Force || !util.Exists(fetcher.Fs, art.LocalPath(d.Home)) {
			changed = true
		}
		localPath, err := fetcher.Fetch(ctx, art, d.Home, opts.Force)
		if err != nil {
			return err
		}
		if !r.Unpack {
			continue
		}
		format := archive.Unknown
		if r.Format != "" {
			format, err = archive.ParseFormat(r.Format)
		} else {
			format, err = archive.Detect(extractor.Fs, localPath)
		}
		if err != nil {
			return err
		}
		target := filepath.Join(d.Home, r.Destination)
		logger.Info("Unpacking", "archive", localPath, "target", target, "format", format)
		if err := extractor.Extract(localPath, target, format, opts.Cleanup); err != nil {
			return err
		}
		changed = true
	}
	if changed {
		return validate.NewStore(fetcher.Fs, d.Home).Clear()
	}
	return nil
}

// Validate checks the local copy against the index, honouring and
// updating the markers in Home.
func (d *Dataset) Validate(v *validate.Validator) (*validate.Report, error) {
	return v.Validate(d.Index, d.Home, d.Home)
}

func (d *Dataset) Store(fsys afero.Fs) *validate.Store {
	return validate.NewStore(fsys, d.Home)
}
