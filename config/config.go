// Package config resolves the run configuration: command-line flags
// layered over an optional yaml file. Flags always win over file values.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file picked up from the working directory
// when --config is not given.
const DefaultFile = "gitmem.yaml"

// Config holds the defaults a gitmem.yaml can supply.
type Config struct {
	Output  string `yaml:"output"`
	Format  string `yaml:"format"`
	Verbose bool   `yaml:"verbose"`
}

// Load reads the config file at path. With an empty path, DefaultFile is
// read if it exists and an empty config returned otherwise; an explicit
// path must exist. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}

	switch cfg.Format {
	case "", "dot", "mermaid":
	default:
		return nil, errors.Errorf("config %s: unknown format %q (want dot or mermaid)", path, cfg.Format)
	}
	return cfg, nil
}

// ResolveOutput picks the graph output path: the explicit flag, then the
// config file, then the input path with its extension swapped for ".dot".
func ResolveOutput(flag, fromFile, input string) string {
	if flag != "" {
		return flag
	}
	if fromFile != "" {
		return fromFile
	}
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".dot"
}

// ResolveFormat picks the graph format: the config file's choice, or
// otherwise an inference from the output extension (.md and .mmd mean
// Mermaid, anything else DOT).
func ResolveFormat(fromFile, output string) string {
	if fromFile != "" {
		return fromFile
	}
	switch filepath.Ext(output) {
	case ".md", ".mmd":
		return "mermaid"
	}
	return "dot"
}
