package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Scanner    ScannerConfig    `yaml:"scanner"`
	StopHigh   StopHighConfig   `yaml:"stop_high"`
	Turnaround TurnaroundConfig `yaml:"turnaround"`
	Integrator IntegratorConfig `yaml:"integrator"`
	History    HistoryConfig    `yaml:"history"`
	Cache      CacheConfig      `yaml:"cache"`
	Provider   ProviderConfig   `yaml:"provider"`
}

// ScannerConfig holds batch-scan settings
type ScannerConfig struct {
	Workers int           `yaml:"workers"`
	Timeout time.Duration `yaml:"timeout"`
}

// StopHighConfig holds thresholds for the stop-high sticking detector
type StopHighConfig struct {
	EntryTriggerRate   float64       `yaml:"entry_trigger_rate"`   // percent, default 5
	MinChangeRate      float64       `yaml:"min_change_rate"`      // percent, default 15
	StopHighLimitRate  float64       `yaml:"stop_high_limit"`      // daily limit band, percent, default 20
	StopHighReachRatio float64       `yaml:"stop_high_reach"`      // price / stop-high floor, default 0.98
	VolumeFloor        int64         `yaml:"volume_floor"`         // shares, default 20,000,000
	LowerShadowCeiling float64       `yaml:"lower_shadow_ceiling"` // 0..1, default 0.15
	SpikeRate          float64       `yaml:"spike_rate"`           // unexplained-spike bound, default 20
	ProfitTargetRate   float64       `yaml:"profit_target_rate"`   // percent, default 24
	StopLossRate       float64       `yaml:"stop_loss_rate"`       // percent, default 10
	ConsecutiveWindow  time.Duration `yaml:"consecutive_window"`   // default 72h
	ConsecutiveLimit   int           `yaml:"consecutive_limit"`    // default 2
}

// TurnaroundConfig holds thresholds for the profitability-turnaround detector
type TurnaroundConfig struct {
	MinLossQuarters    int           `yaml:"min_loss_quarters"`   // default 2
	CrossoverThreshold float64       `yaml:"crossover_threshold"` // (price-MA5)/MA5 floor, default 0.02
	MinChangeRate      float64       `yaml:"min_change_rate"`     // percent, default 1
	MaxChangeRate      float64       `yaml:"max_change_rate"`     // percent, default 8
	MinRSI             float64       `yaml:"min_rsi"`             // default 40
	MaxRSI             float64       `yaml:"max_rsi"`             // default 75
	MinVolumeRatio     float64       `yaml:"min_volume_ratio"`    // default 1.2
	MaxVolumeRatio     float64       `yaml:"max_volume_ratio"`    // default 3.0
	VolatilityBound    float64       `yaml:"volatility_bound"`    // |rate| bound, default 15
	LiquidityFloor     int64         `yaml:"liquidity_floor"`     // shares, default 5,000,000
	TaxLossMagnitude   float64       `yaml:"tax_loss_magnitude"`  // cumulative-loss bound, default 500
	TaxLossQuarters    int           `yaml:"tax_loss_quarters"`   // default 6
	ProfitTargetRate   float64       `yaml:"profit_target_rate"`  // percent, default 25
	StopLossRate       float64       `yaml:"stop_loss_rate"`      // percent, default 10
	MaxHoldDays        int           `yaml:"max_hold_days"`       // default 45
	DedupWindow        time.Duration `yaml:"dedup_window"`        // default ~6 months
}

// IntegratorConfig holds signal-integration and sizing settings
type IntegratorConfig struct {
	PortfolioValue   float64 `yaml:"portfolio_value"`
	MaxRiskPerTrade  float64 `yaml:"max_risk_per_trade"` // fraction, default 0.02
	MaxExposure      float64 `yaml:"max_exposure"`       // fraction, default 0.10
	MinRiskReward    float64 `yaml:"min_risk_reward"`    // default 1.5
	ProfitTargetRate float64 `yaml:"profit_target_rate"` // percent, default 24
	StopLossRate     float64 `yaml:"stop_loss_rate"`     // percent, default 10
}

// HistoryConfig selects the detection-history backend
type HistoryConfig struct {
	Backend  string `yaml:"backend"` // "memory" or "postgres"
	DSN      string `yaml:"dsn"`
	Capacity int    `yaml:"capacity"` // records kept per symbol, default 50
}

// CacheConfig selects the lookup-cache backend
type CacheConfig struct {
	Backend     string        `yaml:"backend"` // "memory" or "redis"
	RedisAddr   string        `yaml:"redis_addr"`
	RedisDB     int           `yaml:"redis_db"`
	RedisPass   string        `yaml:"redis_password"`
	QuoteTTL    time.Duration `yaml:"quote_ttl"`    // default 1h
	EarningsTTL time.Duration `yaml:"earnings_ttl"` // default 168h
}

// ProviderConfig holds market-data provider settings
type ProviderConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Scanner: ScannerConfig{
			Workers: 5,
			Timeout: 10 * time.Minute,
		},
		StopHigh: StopHighConfig{
			EntryTriggerRate:   5.0,
			MinChangeRate:      15.0,
			StopHighLimitRate:  20.0,
			StopHighReachRatio: 0.98,
			VolumeFloor:        20_000_000,
			LowerShadowCeiling: 0.15,
			SpikeRate:          20.0,
			ProfitTargetRate:   24.0,
			StopLossRate:       10.0,
			ConsecutiveWindow:  72 * time.Hour,
			ConsecutiveLimit:   2,
		},
		Turnaround: TurnaroundConfig{
			MinLossQuarters:    2,
			CrossoverThreshold: 0.02,
			MinChangeRate:      1.0,
			MaxChangeRate:      8.0,
			MinRSI:             40,
			MaxRSI:             75,
			MinVolumeRatio:     1.2,
			MaxVolumeRatio:     3.0,
			VolatilityBound:    15.0,
			LiquidityFloor:     5_000_000,
			TaxLossMagnitude:   500.0,
			TaxLossQuarters:    6,
			ProfitTargetRate:   25.0,
			StopLossRate:       10.0,
			MaxHoldDays:        45,
			DedupWindow:        182 * 24 * time.Hour,
		},
		Integrator: IntegratorConfig{
			PortfolioValue:   10_000_000,
			MaxRiskPerTrade:  0.02,
			MaxExposure:      0.10,
			MinRiskReward:    1.5,
			ProfitTargetRate: 24.0,
			StopLossRate:     10.0,
		},
		History: HistoryConfig{
			Backend:  "memory",
			DSN:      os.Getenv("HISTORY_DSN"),
			Capacity: 50,
		},
		Cache: CacheConfig{
			Backend:     "memory",
			RedisAddr:   "localhost:6379",
			QuoteTTL:    time.Hour,
			EarningsTTL: 7 * 24 * time.Hour,
		},
		Provider: ProviderConfig{
			RateLimit: 30,
		},
	}
}

// Load loads configuration from a YAML file with env overrides.
// A .env file in the working directory is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Credentials always win from the environment
	if dsn := os.Getenv("HISTORY_DSN"); dsn != "" {
		cfg.History.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Cache.RedisPass = pass
	}
	if key := os.Getenv("PROVIDER_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Scanner.Workers < 1 {
		return fmt.Errorf("scanner workers must be at least 1")
	}
	if c.StopHigh.MinChangeRate <= c.StopHigh.EntryTriggerRate {
		return fmt.Errorf("stop_high min_change_rate must exceed entry_trigger_rate")
	}
	if c.StopHigh.StopHighReachRatio <= 0 || c.StopHigh.StopHighReachRatio > 1 {
		return fmt.Errorf("stop_high_reach must be in (0, 1]")
	}
	if c.Turnaround.MinLossQuarters < 1 {
		return fmt.Errorf("min_loss_quarters must be at least 1")
	}
	if c.Turnaround.MinChangeRate >= c.Turnaround.MaxChangeRate {
		return fmt.Errorf("turnaround change-rate band is empty")
	}
	if c.Integrator.MaxRiskPerTrade <= 0 || c.Integrator.MaxRiskPerTrade > 1 {
		return fmt.Errorf("max_risk_per_trade must be in (0, 1]")
	}
	if c.Integrator.MaxExposure <= 0 || c.Integrator.MaxExposure > 1 {
		return fmt.Errorf("max_exposure must be in (0, 1]")
	}
	if c.History.Backend == "postgres" && c.History.DSN == "" {
		return fmt.Errorf("history backend postgres requires a DSN (HISTORY_DSN)")
	}
	if c.History.Capacity < 1 {
		return fmt.Errorf("history capacity must be at least 1")
	}
	return nil
}
