// Package config loads the optional forge.yaml ambient configuration
// file: build tunables that CLI flags may override.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"forge/internal/builderrors"
)

// File is the on-disk shape of forge.yaml.
type File struct {
	Parallelism     int                `yaml:"parallelism"`
	FailuresAllowed int                `yaml:"failures_allowed"`
	MaxLoadAverage  float64            `yaml:"max_load_average"`
	Pools           map[string]int     `yaml:"pools"`
	DepsLogPath     string             `yaml:"deps_log_path"`
	BuildLogPath    string             `yaml:"build_log_path"`
}

// Default returns a File populated with the engine's built-in defaults
// (serial, stop-on-first-failure), matching builder.DefaultConfig.
func Default() File {
	return File{
		Parallelism:     1,
		FailuresAllowed: 1,
		DepsLogPath:     ".forge_deps",
		BuildLogPath:    ".forge_log",
	}
}

// Load reads and parses path, returning Default() unmodified if path does
// not exist (forge.yaml is optional — CLI flags and built-in defaults
// suffice without one).
func Load(path string) (File, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, &builderrors.IOError{Path: path, Op: "read", Err: err}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &builderrors.ParseError{File: path, Msg: err.Error()}
	}
	return cfg, nil
}
