package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PAIR"

// SimulateConfig holds configuration for replaying an operation script.
type SimulateConfig struct {
	Script     string
	Events     string
	Results    string
	StateFile  string
	StateName  string
	PGDSN      string
	Pool       string
	AssetX     string
	AssetY     string
	SymbolX    string
	SymbolY    string
	AckX       string
	AckY       string
	StartTime  string
	BatchSize  int
	StopOnFail bool
	LogLevel   string
}

// LoadSimulate merges config file, environment variables, and flags into SimulateConfig.
func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"events":     "./data/events.jsonl",
		"results":    "./data/results.jsonl",
		"state-name": "simulate",
		"pool":       "0x00000000000000000000000000000000000000f0",
		"asset-x":    "0x000000000000000000000000000000000000000a",
		"asset-y":    "0x000000000000000000000000000000000000000b",
		"symbol-x":   "X",
		"symbol-y":   "Y",
		"ack-x":      "bool",
		"ack-y":      "bool",
		"batch-size": 500,
		"log-level":  "info",
	})
	if err != nil {
		return SimulateConfig{}, err
	}

	cfg := SimulateConfig{
		Script:     v.GetString("script"),
		Events:     v.GetString("events"),
		Results:    v.GetString("results"),
		StateFile:  v.GetString("state-file"),
		StateName:  v.GetString("state-name"),
		PGDSN:      v.GetString("pg-dsn"),
		Pool:       v.GetString("pool"),
		AssetX:     v.GetString("asset-x"),
		AssetY:     v.GetString("asset-y"),
		SymbolX:    v.GetString("symbol-x"),
		SymbolY:    v.GetString("symbol-y"),
		AckX:       strings.ToLower(v.GetString("ack-x")),
		AckY:       strings.ToLower(v.GetString("ack-y")),
		StartTime:  v.GetString("start-time"),
		BatchSize:  v.GetInt("batch-size"),
		StopOnFail: v.GetBool("stop-on-fail"),
		LogLevel:   v.GetString("log-level"),
	}

	return cfg, nil
}

// QuoteConfig holds configuration for pricing a single exact-input trade.
type QuoteConfig struct {
	RPCURL       string
	Pair         string
	TokenIn      string
	AmountIn     string
	ReserveIn    string
	ReserveOut   string
	Block        uint64
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadQuote merges config file, environment variables, and flags into QuoteConfig.
func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := load(cfgFile, flags, map[string]interface{}{
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}

	cfg := QuoteConfig{
		RPCURL:       v.GetString("rpc"),
		Pair:         v.GetString("pair"),
		TokenIn:      v.GetString("token-in"),
		AmountIn:     v.GetString("amount-in"),
		ReserveIn:    v.GetString("reserve-in"),
		ReserveOut:   v.GetString("reserve-out"),
		Block:        v.GetUint64("block"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}

func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}
