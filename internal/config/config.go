package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"CDPShield/internal/alert"
	"CDPShield/internal/model"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		// Provider is yahoo, rest or mock.
		Provider string   `yaml:"provider"`
		BaseURL  string   `yaml:"base_url"`
		APIKey   string   `yaml:"api_key"`
		Symbols  []string `yaml:"symbols"`
	} `yaml:"data_source"`
	Schedule struct {
		MarketCron  string `yaml:"market_cron"`
		ReportCron  string `yaml:"report_cron"`
		CleanupCron string `yaml:"cleanup_cron"`
		SweepCron   string `yaml:"sweep_cron"`
	} `yaml:"schedule"`
	Alert struct {
		CriticalThreshold float64       `yaml:"critical_threshold"`
		WarningThreshold  float64       `yaml:"warning_threshold"`
		CautionThreshold  float64       `yaml:"caution_threshold"`
		Cooldown          time.Duration `yaml:"cooldown"`
		Retention         time.Duration `yaml:"retention"`
		SoundEnabled      *bool         `yaml:"sound_enabled"`
		VibrationEnabled  *bool         `yaml:"vibration_enabled"`
		Language          string        `yaml:"language"`
	} `yaml:"alert"`
	Analysis struct {
		SimulatedDelay time.Duration `yaml:"simulated_delay"`
		CacheTTL       time.Duration `yaml:"cache_ttl"`
		CacheSize      int           `yaml:"cache_size"`
		UserID         string        `yaml:"user_id"`
		Revalue        bool          `yaml:"revalue"`
	} `yaml:"analysis"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	State struct {
		PositionsFile string `yaml:"positions_file"`
		SeedDemo      *bool  `yaml:"seed_demo"`
	} `yaml:"state"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads .env, then the YAML file at path, then applies environment
// variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"TELEGRAM_BOT_TOKEN": &c.Telegram.BotToken,
		"TELEGRAM_CHAT_ID":   &c.Telegram.ChatID,
		"DATA_PROVIDER":      &c.DataSource.Provider,
		"PRICE_API_BASE_URL": &c.DataSource.BaseURL,
		"PRICE_API_KEY":      &c.DataSource.APIKey,
		"HTTPS_PROXY":        &c.Proxy,
		"CRON_MARKET":        &c.Schedule.MarketCron,
		"CRON_REPORT":        &c.Schedule.ReportCron,
		"ALERT_LANGUAGE":     &c.Alert.Language,
		"SQLITE_PATH":        &c.Database.SQLitePath,
		"POSITIONS_FILE":     &c.State.PositionsFile,
		"LISTEN_ADDR":        &c.Server.Addr,
		"LOG_LEVEL":          &c.Log.Level,
	}
	for k, dst := range str {
		if v := os.Getenv(k); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("PRICE_SYMBOLS"); v != "" {
		c.DataSource.Symbols = splitList(v)
	}
	if v := os.Getenv("ALERT_COOLDOWN"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ALERT_COOLDOWN: %w", err)
		}
		c.Alert.Cooldown = d
	}
	if v := os.Getenv("ANALYSIS_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ANALYSIS_DELAY: %w", err)
		}
		c.Analysis.SimulatedDelay = d
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		c.Log.Pretty = b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
		if c.DataSource.BaseURL != "" {
			c.DataSource.Provider = "rest"
		}
	}
	if len(c.DataSource.Symbols) == 0 {
		c.DataSource.Symbols = []string{"ETH", "WETH", "USDC"}
	}
	if c.Schedule.MarketCron == "" {
		c.Schedule.MarketCron = "0 */5 * * * *"
	}
	if c.Schedule.ReportCron == "" {
		c.Schedule.ReportCron = "0 0 9 * * *"
	}
	if c.Schedule.CleanupCron == "" {
		c.Schedule.CleanupCron = "0 */10 * * * *"
	}
	if c.Schedule.SweepCron == "" {
		c.Schedule.SweepCron = "30 * * * * *"
	}

	def := alert.DefaultConfig()
	if c.Alert.CriticalThreshold == 0 {
		c.Alert.CriticalThreshold = def.CriticalThreshold
	}
	if c.Alert.WarningThreshold == 0 {
		c.Alert.WarningThreshold = def.WarningThreshold
	}
	if c.Alert.CautionThreshold == 0 {
		c.Alert.CautionThreshold = def.CautionThreshold
	}
	if c.Alert.Cooldown == 0 {
		c.Alert.Cooldown = def.Cooldown
	}
	if c.Alert.Retention == 0 {
		c.Alert.Retention = def.Retention
	}
	if c.Alert.Language == "" {
		c.Alert.Language = string(def.Language)
	}

	if c.Analysis.CacheTTL == 0 {
		c.Analysis.CacheTTL = 5 * time.Minute
	}
	if c.Analysis.CacheSize == 0 {
		c.Analysis.CacheSize = 256
	}
	if c.Analysis.UserID == "" {
		c.Analysis.UserID = "demo"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/cdpshield.db"
	}
	if c.State.PositionsFile == "" {
		c.State.PositionsFile = "data/positions.json"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}

// AlertConfig converts the alert section into a monitor configuration.
func (c *Config) AlertConfig() alert.Config {
	ac := alert.DefaultConfig()
	ac.CriticalThreshold = c.Alert.CriticalThreshold
	ac.WarningThreshold = c.Alert.WarningThreshold
	ac.CautionThreshold = c.Alert.CautionThreshold
	ac.Cooldown = c.Alert.Cooldown
	ac.Retention = c.Alert.Retention
	ac.Language = model.Language(c.Alert.Language)
	if c.Alert.SoundEnabled != nil {
		ac.SoundEnabled = *c.Alert.SoundEnabled
	}
	if c.Alert.VibrationEnabled != nil {
		ac.VibrationEnabled = *c.Alert.VibrationEnabled
	}
	return ac
}

// SeedDemo reports whether an empty position store gets the demo positions.
func (c *Config) SeedDemo() bool {
	return c.State.SeedDemo == nil || *c.State.SeedDemo
}

// Validate checks that the configuration is usable. Telegram is optional.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	switch c.DataSource.Provider {
	case "yahoo", "mock":
	case "rest":
		if c.DataSource.BaseURL == "" {
			return fmt.Errorf("data_source.base_url is required for the rest provider")
		}
	default:
		return fmt.Errorf("data_source.provider %q is not one of yahoo, rest, mock", c.DataSource.Provider)
	}
	if c.Analysis.SimulatedDelay < 0 {
		return fmt.Errorf("analysis.simulated_delay must not be negative")
	}
	if c.Analysis.CacheTTL < 0 {
		return fmt.Errorf("analysis.cache_ttl must not be negative")
	}
	return c.AlertConfig().Validate()
}
