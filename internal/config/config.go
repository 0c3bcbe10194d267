// Package config assembles run configuration for the compress and list
// commands from parsed CLI flags, mirroring the flat, exported-struct
// configuration objects the teacher passes into its indexer/query/daemon
// constructors (IndexerConfig, QueryConfig).
package config

import (
	"fmt"

	"github.com/pxztool/pxz/internal/pipeline"
	"github.com/pxztool/pxz/internal/xzformat"
)

// CompressConfig configures one run of the compress command.
type CompressConfig struct {
	InputFile  string
	OutputFile string
	Workers    int
	Preset     int
	Check      string
	Verbose    bool
}

// Validate checks required fields and normalizes derived ones, returning
// an error describing the first problem found.
func (c CompressConfig) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("config: --input is required")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("config: --output is required")
	}
	if c.Preset < 0 || c.Preset > 9 {
		return fmt.Errorf("config: --preset must be between 0 and 9, got %d", c.Preset)
	}
	if _, err := ParseCheckKind(c.Check); err != nil {
		return err
	}
	return nil
}

// ParseCheckKind maps the --check flag's string value to a CheckKind.
func ParseCheckKind(name string) (xzformat.CheckKind, error) {
	switch name {
	case "", "crc32":
		return xzformat.CheckCRC32, nil
	case "crc64":
		return xzformat.CheckCRC64, nil
	case "sha256":
		return xzformat.CheckSHA256, nil
	case "none":
		return xzformat.CheckNone, nil
	default:
		return 0, fmt.Errorf("config: unknown --check value %q (want crc32, crc64, sha256, or none)", name)
	}
}

// PipelineConfig converts the CLI-facing configuration into the pipeline
// package's Config.
func (c CompressConfig) PipelineConfig() (pipeline.Config, error) {
	check, err := ParseCheckKind(c.Check)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Workers: c.Workers,
		Preset:  pipeline.Preset(c.Preset),
		Check:   check,
	}, nil
}

// ListConfig configures one run of the list command.
type ListConfig struct {
	InputFile string
	ShowTar   bool // -t: also print the parsed file-index entries
}

func (c ListConfig) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("config: --input is required")
	}
	return nil
}
