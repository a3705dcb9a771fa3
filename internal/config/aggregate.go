package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	Input         string
	Out           string
	Window        string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom string
	DecimalsX     uint8
	DecimalsY     uint8
	LogLevel      string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"batch-size": 1000,
		"log-level":  "info",
		"window":     "5m",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	cfg := AggregateConfig{
		Input:         v.GetString("in"),
		Out:           v.GetString("out"),
		Window:        v.GetString("window"),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetString("recompute-from"),
		DecimalsX:     uint8(v.GetUint("decimals-x")),
		DecimalsY:     uint8(v.GetUint("decimals-y")),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

// ParseWindow converts a duration such as "5m" into whole seconds.
func ParseWindow(input string) (uint64, error) {
	windowDuration, err := time.ParseDuration(input)
	if err != nil {
		return 0, fmt.Errorf("invalid window: %w", err)
	}
	if windowDuration <= 0 {
		return 0, fmt.Errorf("window must be positive")
	}
	windowSeconds := uint64(windowDuration.Seconds())
	if windowSeconds == 0 {
		return 0, fmt.Errorf("window must be at least 1s")
	}
	return windowSeconds, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
