package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	cache "github.com/vearutop/repocache"
	"github.com/vearutop/repocache/resilience"
)

// fileConfig is a YAML configuration file.
type fileConfig struct {
	Cache struct {
		Name             string        `yaml:"name"`
		DefaultTTL       time.Duration `yaml:"defaultTTL"`
		MaxSize          int64         `yaml:"maxSize"`
		MaxEntries       int           `yaml:"maxEntries"`
		CleanupInterval  time.Duration `yaml:"cleanupInterval"`
		EvictionStrategy string        `yaml:"evictionStrategy"`
		Persistent       bool          `yaml:"persistent"`
		StorageDir       string        `yaml:"storageDir"`
	} `yaml:"cache"`

	Retry struct {
		MaxRetries        int           `yaml:"maxRetries"`
		BaseDelay         time.Duration `yaml:"baseDelay"`
		MaxDelay          time.Duration `yaml:"maxDelay"`
		BackoffMultiplier float64       `yaml:"backoffMultiplier"`
		Retryable         []string      `yaml:"retryable"`
	} `yaml:"retry"`

	Objects struct {
		CheckEvery     int    `yaml:"checkEvery"`
		HeapInUseLimit uint64 `yaml:"heapInUseLimit"`
		SizeLimit      int64  `yaml:"sizeLimit"`
	} `yaml:"objects"`

	FailedLoadTTL time.Duration `yaml:"failedLoadTTL"`
}

func loadConfig(path string) (fileConfig, error) {
	if path == "" {
		return fileConfig{}, nil
	}

	f, err := os.Open(path) // nolint:gosec // Path is provided by user.
	if err != nil {
		return fileConfig{}, err
	}

	defer func() {
		_ = f.Close()
	}()

	return decodeConfig(f)
}

func decodeConfig(r io.Reader) (fileConfig, error) {
	var cfg fileConfig

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func (fc fileConfig) cacheConfig() cache.Config {
	c := fc.Cache

	return cache.Config{
		Name:             c.Name,
		DefaultTTL:       c.DefaultTTL,
		MaxSize:          c.MaxSize,
		MaxEntries:       c.MaxEntries,
		CleanupInterval:  c.CleanupInterval,
		EvictionStrategy: cache.EvictionStrategy(c.EvictionStrategy),
		Persistent:       c.Persistent,
		StorageDir:       c.StorageDir,
	}
}

func (fc fileConfig) retryConfig() resilience.Config {
	r := fc.Retry

	cfg := resilience.Config{
		MaxRetries:        r.MaxRetries,
		BaseDelay:         r.BaseDelay,
		MaxDelay:          r.MaxDelay,
		BackoffMultiplier: r.BackoffMultiplier,
	}

	for _, c := range r.Retryable {
		cfg.Retryable = append(cfg.Retryable, resilience.Category(c))
	}

	return cfg
}

func (fc fileConfig) pressureConfig() cache.PressureConfig {
	return cache.PressureConfig{
		CheckEvery:     fc.Objects.CheckEvery,
		HeapInUseLimit: fc.Objects.HeapInUseLimit,
		SizeLimit:      fc.Objects.SizeLimit,
	}
}
