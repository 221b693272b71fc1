package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configFilename = "ddb.yaml"

// defaultDataDir is used for the local store when neither ddb.yaml nor --db
// names one.
const defaultDataDir = ".ddb"

// Config holds defaults for all commands. Flags override it.
// Loaded from ddb.yaml if present.
type Config struct {
	// DataDir is where the local BadgerDB store keeps its data.
	DataDir string `yaml:"dataDir"`

	LogLevel string `yaml:"logLevel"`
	Pretty   bool   `yaml:"pretty"`

	// Region and Endpoint configure the AWS client used with --aws.
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// LoadConfig searches for ddb.yaml starting from dir and walking up to the
// filesystem root. Returns an empty config if not found. Relative data
// directories are resolved against the directory of the config file.
func LoadConfig(dir string) (Config, error) {
	var cfg Config

	path := findConfigFile(dir)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.DataDir != "" && !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(filepath.Dir(path), cfg.DataDir)
	}
	return cfg, nil
}

func findConfigFile(dir string) string {
	for {
		path := filepath.Join(dir, configFilename)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
