package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmeg/datacheck/checksum"
	"github.com/bmeg/datacheck/paths"
	"github.com/joho/godotenv"
	"sigs.k8s.io/yaml"
)

const DefaultEnvFile = ".env"

// Config holds the settings shared by all commands. A zero value is
// usable: every field falls back to a default.
type Config struct {
	// DataHome is the directory datasets are stored under, one sub
	// directory per dataset.
	DataHome string `json:"data_home"`
	// IndexDir is searched for index files that are not found next to
	// their dataset descriptor.
	IndexDir    string            `json:"index_dir"`
	Algorithm   string            `json:"algorithm"`
	DigestCache string            `json:"digest_cache"`
	ChunkSize   int               `json:"chunk_size"`
	Vars        map[string]string `json:"vars"`
}

// Load reads the YAML config at path. An empty path gives the defaults.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if path == "" {
		return conf, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config at path %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(raw, conf); err != nil {
		return nil, fmt.Errorf("failed to parse config at path %s: %w", path, err)
	}
	if conf.IndexDir != "" && !filepath.IsAbs(conf.IndexDir) {
		conf.IndexDir = filepath.Join(filepath.Dir(path), conf.IndexDir)
	}
	if _, err := conf.ChecksumAlgorithm(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return conf, nil
}

// LoadEnv adds variables from an env file to the process environment
// without overriding ones already set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Home picks the datasets root: the explicit override, then the config
// file, then paths.DefaultHome.
func (c *Config) Home(override string) string {
	if override != "" {
		return override
	}
	if c.DataHome != "" {
		return c.DataHome
	}
	return paths.DefaultHome()
}

func (c *Config) ChecksumAlgorithm() (checksum.Algorithm, error) {
	return checksum.ParseAlgorithm(c.Algorithm)
}
