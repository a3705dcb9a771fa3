package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSimulateLayers(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "pair.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("script: ops.jsonl\nsymbol-x: WETH\nbatch-size: 10\n"), 0o644))

	t.Setenv("PAIR_SYMBOL_Y", "USDC")
	t.Setenv("PAIR_BATCH_SIZE", "20")

	flags := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	flags.Int("batch-size", 500, "")
	flags.String("ack-y", "bool", "")
	require.NoError(t, flags.Parse([]string{"--batch-size=30", "--ack-y=EMPTY"}))

	cfg, err := LoadSimulate(cfgFile, flags)
	require.NoError(t, err)
	assert.Equal(t, "ops.jsonl", cfg.Script)
	assert.Equal(t, "WETH", cfg.SymbolX)
	assert.Equal(t, "USDC", cfg.SymbolY)
	assert.Equal(t, 30, cfg.BatchSize)
	assert.Equal(t, "empty", cfg.AckY)
	assert.Equal(t, "bool", cfg.AckX)
	assert.Equal(t, "simulate", cfg.StateName)
}

func TestLoadQuoteDefaults(t *testing.T) {
	cfg, err := LoadQuote("", nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := LoadAggregate(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestParseWindow(t *testing.T) {
	secs, err := ParseWindow("5m")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), secs)

	for _, bad := range []string{"", "-1m", "500ms", "soon"} {
		_, err := ParseWindow(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("1700000000")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_000), ts)

	ts, err = ParseTimestamp("2023-11-14T22:13:20Z")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_000), ts)

	ts, err = ParseTimestamp("  ")
	require.NoError(t, err)
	assert.Zero(t, ts)

	_, err = ParseTimestamp("yesterday")
	require.Error(t, err)
}
