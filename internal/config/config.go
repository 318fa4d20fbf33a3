package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tokenScope/internal/model"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RedisURL        string
	Channel         string
	CacheKey        string
	CacheTTL        time.Duration
	CronExpr        string
	Threshold       float64
	Cooldown        time.Duration
	MarkerTTL       time.Duration
	ProviderTimeout time.Duration
	RetryBase       time.Duration
	RetryCap        time.Duration
	RetryBudget     int
	RateLimitCap    int
	Listen          string
	LogLevel        string
	Tokens          []model.TokenConfig
}

// DefaultTokens is the fixed token set refreshed when no config file
// overrides it.
var DefaultTokens = []model.TokenConfig{
	{Label: "USDT (ETH)", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Platform: "ethereum"},
	{Label: "USDC (ETH)", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Platform: "ethereum"},
	{Label: "WETH (ETH)", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Platform: "ethereum"},
	{Label: "WBTC (ETH)", Address: "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", Platform: "ethereum"},
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOKENSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("redis-url", "redis://127.0.0.1:6379")
	v.SetDefault("channel", "token_updates")
	v.SetDefault("cache-key", "tokens:merged")
	v.SetDefault("cache-ttl", 45*time.Second)
	v.SetDefault("cron", "*/15 * * * * *")
	v.SetDefault("threshold", 0.02)
	v.SetDefault("cooldown", 15*time.Second)
	v.SetDefault("marker-ttl", 60*time.Second)
	v.SetDefault("provider-timeout", 8*time.Second)
	v.SetDefault("retry-base", 300*time.Millisecond)
	v.SetDefault("retry-cap", 5*time.Second)
	v.SetDefault("retry-budget", 5)
	v.SetDefault("rate-limit-cap", 0)
	v.SetDefault("listen", ":3000")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	tokens, err := loadTokens(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RedisURL:        v.GetString("redis-url"),
		Channel:         v.GetString("channel"),
		CacheKey:        v.GetString("cache-key"),
		CacheTTL:        v.GetDuration("cache-ttl"),
		CronExpr:        v.GetString("cron"),
		Threshold:       v.GetFloat64("threshold"),
		Cooldown:        v.GetDuration("cooldown"),
		MarkerTTL:       v.GetDuration("marker-ttl"),
		ProviderTimeout: v.GetDuration("provider-timeout"),
		RetryBase:       v.GetDuration("retry-base"),
		RetryCap:        v.GetDuration("retry-cap"),
		RetryBudget:     v.GetInt("retry-budget"),
		RateLimitCap:    v.GetInt("rate-limit-cap"),
		Listen:          v.GetString("listen"),
		LogLevel:        v.GetString("log-level"),
		Tokens:          tokens,
	}

	return cfg, nil
}

// loadTokens reads the configured token list, falling back to DefaultTokens.
func loadTokens(v *viper.Viper) ([]model.TokenConfig, error) {
	if !v.IsSet("tokens") {
		return DefaultTokens, nil
	}

	var tokens []model.TokenConfig
	if err := v.UnmarshalKey("tokens", &tokens); err != nil {
		return nil, fmt.Errorf("parse tokens: %w", err)
	}
	if len(tokens) == 0 {
		return DefaultTokens, nil
	}

	for i, token := range tokens {
		if token.Label == "" {
			return nil, fmt.Errorf("token %d: label is required", i)
		}
		if token.Address == "" {
			return nil, fmt.Errorf("token %q: address is required", token.Label)
		}
		if token.Platform == "" {
			tokens[i].Platform = "ethereum"
		}
	}

	return tokens, nil
}
