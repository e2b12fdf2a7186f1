package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultMetainfoURL = "https://api.dapplooker.com/v1/crypto-metainfo/"
	DefaultMarketURL   = "https://api.dapplooker.com/v1/crypto-market/"
	DefaultLogFile     = "market_collector.log"
)

func defaultChains() []string {
	return []string{"base", "solana"}
}

type UploadConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Command  string `mapstructure:"command"`
	Host     string `mapstructure:"host"`
	Token    string `mapstructure:"token"`
	Wallet   string `mapstructure:"wallet"`
	AppName  string `mapstructure:"app_name"`
	Gateway  string `mapstructure:"gateway"`
	Explorer string `mapstructure:"explorer"`
	Timeout  int    `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Textfile    string `mapstructure:"textfile"`
	Pushgateway string `mapstructure:"pushgateway"`
	Job         string `mapstructure:"job"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type Config struct {
	APIKey      string   `mapstructure:"api_key"`
	MetainfoURL string   `mapstructure:"metainfo_url"`
	MarketURL   string   `mapstructure:"market_url"`
	Chains      []string `mapstructure:"chains"`

	Timeout           int    `mapstructure:"timeout"`
	IndividualTimeout int    `mapstructure:"individual_timeout"`
	Proxy             string `mapstructure:"proxy"`

	PageSize             int           `mapstructure:"page_size"`
	PageDelay            time.Duration `mapstructure:"page_delay"`
	BatchDelay           time.Duration `mapstructure:"batch_delay"`
	TokenDelay           time.Duration `mapstructure:"token_delay"`
	CleanBatchSize       int           `mapstructure:"clean_batch_size"`
	ProblematicBatchSize int           `mapstructure:"problematic_batch_size"`

	OutputDir     string `mapstructure:"output_dir"`
	LogFile       string `mapstructure:"log_file"`
	RetentionDays int    `mapstructure:"retention_days"`

	Upload   UploadConfig   `mapstructure:"upload"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`

	Debug bool `mapstructure:"debug"`
}

// LogPath returns the active log file, resolved against OutputDir when relative.
func (c *Config) LogPath() string {
	if c.LogFile == "" {
		return ""
	}
	if filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.OutputDir, c.LogFile)
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
