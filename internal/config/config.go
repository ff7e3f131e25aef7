// Package config loads application configuration from config.yaml and
// GHOST_-prefixed environment variables, and owns the global logger.
package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Sensing SensingConfig `yaml:"sensing" mapstructure:"sensing"`
	Model   ModelConfig   `yaml:"model" mapstructure:"model"`
	Impact  ImpactConfig  `yaml:"impact" mapstructure:"impact"`
	Report  ReportConfig  `yaml:"report" mapstructure:"report"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the raw inputs and the stage-boundary snapshots.
type DataConfig struct {
	RawDir      string `yaml:"raw_dir" mapstructure:"raw_dir"`
	MasterPath  string `yaml:"master_path" mapstructure:"master_path"`
	AuditedPath string `yaml:"audited_path" mapstructure:"audited_path"`
	ScoredPath  string `yaml:"scored_path" mapstructure:"scored_path"`
	IndexPath   string `yaml:"index_path" mapstructure:"index_path"`
}

// MapJSONPath is the map-ready JSON view of the final index, derived
// from IndexPath by swapping the extension.
func (d DataConfig) MapJSONPath() string {
	return strings.TrimSuffix(d.IndexPath, filepath.Ext(d.IndexPath)) + ".json"
}

// GeoJSONPath is the GeoJSON view of the final index.
func (d DataConfig) GeoJSONPath() string {
	return strings.TrimSuffix(d.IndexPath, filepath.Ext(d.IndexPath)) + ".geojson"
}

// SensingConfig configures the remote-sensing collaborator.
type SensingConfig struct {
	// Mode selects the provider: "synthetic" or "remote".
	Mode              string  `yaml:"mode" mapstructure:"mode"`
	Endpoint          string  `yaml:"endpoint" mapstructure:"endpoint"`
	StartYear         int     `yaml:"start_year" mapstructure:"start_year"`
	EndYear           int     `yaml:"end_year" mapstructure:"end_year"`
	Seed              int64   `yaml:"seed" mapstructure:"seed"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ModelConfig configures training and scoring.
type ModelConfig struct {
	Path         string  `yaml:"path" mapstructure:"path"`
	Trees        int     `yaml:"trees" mapstructure:"trees"`
	MaxDepth     int     `yaml:"max_depth" mapstructure:"max_depth"`
	TestFraction float64 `yaml:"test_fraction" mapstructure:"test_fraction"`
	Seed         int64   `yaml:"seed" mapstructure:"seed"`
}

// ImpactConfig configures the impact aggregation.
type ImpactConfig struct {
	RiskThreshold float64 `yaml:"risk_threshold" mapstructure:"risk_threshold"`
}

// ReportConfig configures HTML report generation.
type ReportConfig struct {
	TemplatePath string `yaml:"template_path" mapstructure:"template_path"`
	OutputPath   string `yaml:"output_path" mapstructure:"output_path"`
	TopN         int    `yaml:"top_n" mapstructure:"top_n"`
}

// StoreConfig configures the run-history store.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.raw_dir", "data/raw")
	v.SetDefault("data.master_path", "data/processed/master_project_data.csv")
	v.SetDefault("data.audited_path", "data/processed/audited_project_data.csv")
	v.SetDefault("data.scored_path", "data/processed/scored_project_data.csv")
	v.SetDefault("data.index_path", "reports/final_green_ghost_index.csv")
	v.SetDefault("sensing.mode", "synthetic")
	v.SetDefault("sensing.start_year", 2020)
	v.SetDefault("sensing.end_year", 2024)
	v.SetDefault("sensing.seed", 42)
	v.SetDefault("sensing.requests_per_second", 2.0)
	v.SetDefault("sensing.max_attempts", 3)
	v.SetDefault("sensing.timeout_secs", 30)
	v.SetDefault("model.path", "reports/rf_ghost_model.gob")
	v.SetDefault("model.trees", 100)
	v.SetDefault("model.max_depth", 8)
	v.SetDefault("model.test_fraction", 0.2)
	v.SetDefault("model.seed", 42)
	v.SetDefault("impact.risk_threshold", 0.8)
	v.SetDefault("report.template_path", "report_template.html")
	v.SetDefault("report.output_path", "reports/green_ghost_report.html")
	v.SetDefault("report.top_n", 5)
	v.SetDefault("store.path", "data/ghost_audit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
