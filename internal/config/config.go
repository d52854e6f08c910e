// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/solkunai/LetsCook-APP-sub002/internal/curve"
	"github.com/spf13/viper"
)

// Config holds the settings of the quoting tool.
type Config struct {
	RPCList      []string `mapstructure:"rpc_list"`
	DebugLogging bool     `mapstructure:"debug_logging"`
	LogFile      string   `mapstructure:"log_file"`
	Retries      int      `mapstructure:"retries"`

	RPCDelay     time.Duration `mapstructure:"-"`
	RPCDelayMS   int           `mapstructure:"rpc_delay"`
	PriceDelay   time.Duration `mapstructure:"-"`
	PriceDelayMS int           `mapstructure:"price_delay"`
	CacheTTL     time.Duration `mapstructure:"-"`
	CacheTTLMS   int           `mapstructure:"cache_ttl"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	CurveType   string `mapstructure:"curve_type"`
	SlippageBps int    `mapstructure:"slippage_bps"`

	// MetricsAddr enables the Prometheus endpoint, e.g. ":9102".
	MetricsAddr string `mapstructure:"metrics_addr"`
}

const (
	DefaultRPCDelay    = 200
	DefaultPriceDelay  = 2000
	DefaultCacheTTL    = 1500
	DefaultRetries     = 3
	DefaultSlippageBps = 100

	envPrefix = "LETSCOOK"
)

var (
	ErrNoRPC           = errors.New("rpc_list is empty")
	ErrInvalidRPC      = errors.New("invalid RPC URL")
	ErrInvalidSlippage = errors.New("slippage_bps must be within [0, 10000]")
)

// Load reads configuration from path; LETSCOOK_* environment variables
// take precedence over the file.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}
	return decode(v)
}

// LoadEnv builds a configuration from defaults and environment only.
func LoadEnv() (*Config, error) {
	return decode(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()

	// every key needs a default, AutomaticEnv only resolves known keys
	defaults := map[string]interface{}{
		"rpc_list":       []string{"https://api.mainnet-beta.solana.com"},
		"debug_logging":  false,
		"log_file":       "",
		"retries":        DefaultRetries,
		"rpc_delay":      DefaultRPCDelay,
		"price_delay":    DefaultPriceDelay,
		"cache_ttl":      DefaultCacheTTL,
		"redis_addr":     "",
		"redis_password": "",
		"redis_db":       0,
		"curve_type":     string(curve.Linear),
		"slippage_bps":   DefaultSlippageBps,
		"metrics_addr":   "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	// env values arrive as one comma-separated string
	cfg.RPCList = splitList(strings.Join(cfg.RPCList, ","))

	cfg.RPCDelay = time.Duration(cfg.RPCDelayMS) * time.Millisecond
	cfg.PriceDelay = time.Duration(cfg.PriceDelayMS) * time.Millisecond
	cfg.CacheTTL = time.Duration(cfg.CacheTTLMS) * time.Millisecond

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.RPCList) == 0 {
		return ErrNoRPC
	}
	for _, rpcURL := range c.RPCList {
		parsed, err := url.Parse(rpcURL)
		if err != nil || !strings.HasPrefix(parsed.Scheme, "http") || parsed.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidRPC, rpcURL)
		}
	}
	if _, err := curve.ParseType(c.CurveType); err != nil {
		return err
	}
	if c.SlippageBps < 0 || c.SlippageBps > 10_000 {
		return ErrInvalidSlippage
	}
	if c.Retries <= 0 {
		c.Retries = DefaultRetries
	}
	if c.RPCDelay <= 0 {
		c.RPCDelay = DefaultRPCDelay * time.Millisecond
	}
	if c.PriceDelay <= 0 {
		c.PriceDelay = DefaultPriceDelay * time.Millisecond
	}
	if c.CacheTTL < 0 {
		c.CacheTTL = 0
	}
	return nil
}

// Curve returns the configured curve type.
func (c *Config) Curve() curve.Type {
	typ, _ := curve.ParseType(c.CurveType)
	return typ
}

// MaskedRPCList hides query strings, which usually carry API keys.
func (c *Config) MaskedRPCList() []string {
	masked := make([]string, len(c.RPCList))
	for i, rpcURL := range c.RPCList {
		parsed, err := url.Parse(rpcURL)
		if err != nil || parsed.RawQuery == "" {
			masked[i] = rpcURL
			continue
		}
		parsed.RawQuery = "***"
		masked[i] = parsed.String()
	}
	return masked
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}
