package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/vearutop/repocache"
	"github.com/vearutop/repocache/resilience"
)

func TestDecodeConfig(t *testing.T) {
	fc, err := decodeConfig(strings.NewReader(`
cache:
  name: repos
  defaultTTL: 30s
  maxEntries: 10
  evictionStrategy: lfu
retry:
  maxRetries: -1
  baseDelay: 100ms
  retryable: [network, timeout]
objects:
  sizeLimit: 1024
failedLoadTTL: -1ns
`))
	require.NoError(t, err)

	cc := fc.cacheConfig()
	assert.Equal(t, "repos", cc.Name)
	assert.Equal(t, 30*time.Second, cc.DefaultTTL)
	assert.Equal(t, 10, cc.MaxEntries)
	assert.Equal(t, cache.LFU, cc.EvictionStrategy)

	rc := fc.retryConfig()
	assert.Equal(t, -1, rc.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, rc.BaseDelay)
	assert.Equal(t, []resilience.Category{resilience.CategoryNetwork, resilience.CategoryTimeout}, rc.Retryable)

	assert.Equal(t, int64(1024), fc.pressureConfig().SizeLimit)
	assert.Equal(t, time.Duration(-1), fc.FailedLoadTTL)
}

func TestDecodeConfig_empty(t *testing.T) {
	fc, err := decodeConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, fc.cacheConfig().Name)
	assert.Nil(t, fc.retryConfig().Retryable)
}

func TestDecodeConfig_unknownField(t *testing.T) {
	_, err := decodeConfig(strings.NewReader("cache:\n  ttl: 1s\n"))
	assert.Error(t, err)
}

func TestLoadConfig_missing(t *testing.T) {
	_, err := loadConfig("/non/existent/repocache.yaml")
	assert.Error(t, err)

	fc, err := loadConfig("")
	require.NoError(t, err)
	assert.Zero(t, fc.FailedLoadTTL)
}
