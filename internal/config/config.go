// Package config loads run settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/sigcmp/internal/domain"
	"github.com/dreamware/sigcmp/internal/overlap"
)

// Config holds every tunable of a run.
type Config struct {
	TmpDir         string           `yaml:"tmp_dir"`
	Workers        int              `yaml:"workers"`
	PageSize       int              `yaml:"page_size"`
	PagesPerTask   int              `yaml:"pages_per_task"`
	ShardRecords   int              `yaml:"shard_records"`
	FlushEvery     int              `yaml:"flush_every"`
	BucketSize     int              `yaml:"bucket_size"`
	Compress       bool             `yaml:"compress"`
	MinOverlap     float64          `yaml:"min_overlap"`
	MinCollocation float64          `yaml:"min_collocation"`
	Selector       SelectorConfig   `yaml:"selector"`
	Hasher         HasherConfig     `yaml:"hasher"`
	SourceRanks    domain.RankTable `yaml:"source_ranks"`
}

// SelectorConfig configures the representative domain selector
type SelectorConfig struct {
	MaxCandidates    int     `yaml:"max_candidates"`
	OverlapThreshold float64 `yaml:"overlap_threshold"`
}

// HasherConfig configures the domain architecture hasher
type HasherConfig struct {
	MaxGap int           `yaml:"max_gap"`
	Digest domain.Digest `yaml:"digest"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		TmpDir:         os.TempDir(),
		Workers:        runtime.NumCPU(),
		PageSize:       10000,
		PagesPerTask:   1,
		ShardRecords:   1000000,
		FlushEvery:     1000000,
		BucketSize:     100,
		MinOverlap:     overlap.DefaultMinOverlap,
		MinCollocation: overlap.DefaultMinCollocation,
		Selector: SelectorConfig{
			MaxCandidates:    domain.DefaultMaxCandidates,
			OverlapThreshold: domain.DefaultOverlapThreshold,
		},
		Hasher: HasherConfig{
			MaxGap: domain.DefaultMaxGap,
			Digest: domain.DigestWyhash,
		},
		SourceRanks: domain.RankTable{},
	}
}

// Load returns the defaults overridden by the YAML file at path (skipped
// when path is empty) and then by the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.TmpDir = getenv("SIGCMP_TMPDIR", c.TmpDir)

	ints := []struct {
		key string
		p   *int
	}{
		{"SIGCMP_WORKERS", &c.Workers},
		{"SIGCMP_PAGE_SIZE", &c.PageSize},
	}
	for _, e := range ints {
		v, err := strconv.Atoi(getenv(e.key, strconv.Itoa(*e.p)))
		if err != nil {
			return fmt.Errorf("%s: %w", e.key, err)
		}
		*e.p = v
	}

	v, err := strconv.ParseBool(getenv("SIGCMP_COMPRESS", strconv.FormatBool(c.Compress)))
	if err != nil {
		return fmt.Errorf("SIGCMP_COMPRESS: %w", err)
	}
	c.Compress = v
	return nil
}

// Validate rejects settings no run can work with.
func (c Config) Validate() error {
	var errs []error
	positive := []struct {
		name  string
		value int
	}{
		{"workers", c.Workers},
		{"page_size", c.PageSize},
		{"pages_per_task", c.PagesPerTask},
		{"shard_records", c.ShardRecords},
		{"flush_every", c.FlushEvery},
		{"bucket_size", c.BucketSize},
		{"selector.max_candidates", c.Selector.MaxCandidates},
	}
	for _, p := range positive {
		if p.value < 1 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.value))
		}
	}
	fractions := []struct {
		name  string
		value float64
	}{
		{"min_overlap", c.MinOverlap},
		{"min_collocation", c.MinCollocation},
		{"selector.overlap_threshold", c.Selector.OverlapThreshold},
	}
	for _, f := range fractions {
		if f.value < 0 || f.value > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %g", f.name, f.value))
		}
	}
	if c.Hasher.MaxGap < 0 {
		errs = append(errs, fmt.Errorf("hasher.max_gap must not be negative, got %d", c.Hasher.MaxGap))
	}
	switch c.Hasher.Digest {
	case domain.DigestWyhash, domain.DigestMD5:
	default:
		errs = append(errs, fmt.Errorf("unknown hasher.digest %q", c.Hasher.Digest))
	}
	return errors.Join(errs...)
}

// DomainSelector returns the configured domain selector
func (c Config) DomainSelector() domain.Selector {
	return domain.Selector{MaxCandidates: c.Selector.MaxCandidates, OverlapThreshold: c.Selector.OverlapThreshold}
}

// DomainHasher returns the configured architecture hasher
func (c Config) DomainHasher() domain.Hasher {
	return domain.Hasher{MaxGap: c.Hasher.MaxGap, Digest: c.Hasher.Digest}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
