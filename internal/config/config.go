package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// CurrentVersion is the config schema version written by DefaultConfig.
const CurrentVersion = 1

// DirName is the per-project directory holding config.json and the stack database.
const DirName = ".stackaudit"

// Config represents the complete stackaudit configuration
type Config struct {
	Version int `json:"version" mapstructure:"version"`

	Scoring  ScoringConfig  `json:"scoring" mapstructure:"scoring"`
	Report   ReportConfig   `json:"report" mapstructure:"report"`
	Share    ShareConfig    `json:"share" mapstructure:"share"`
	Evidence EvidenceConfig `json:"evidence" mapstructure:"evidence"`
	Storage  StorageConfig  `json:"storage" mapstructure:"storage"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging"`
}

// ScoringConfig holds the per-neighbor adjustments applied to a node's base score
type ScoringConfig struct {
	AffinityBonus   int `json:"affinityBonus" mapstructure:"affinityBonus"`
	FrictionPenalty int `json:"frictionPenalty" mapstructure:"frictionPenalty"`
	UnknownPenalty  int `json:"unknownPenalty" mapstructure:"unknownPenalty"`
}

// ReportConfig contains report builder settings
type ReportConfig struct {
	MaxSwaps    int `json:"maxSwaps" mapstructure:"maxSwaps"`
	TopFindings int `json:"topFindings" mapstructure:"topFindings"`
}

// ShareConfig contains share link settings
type ShareConfig struct {
	BaseURL string `json:"baseUrl" mapstructure:"baseUrl"`
}

// EvidenceConfig controls where evidence packs come from and how bad packs are handled
type EvidenceConfig struct {
	// Dir overrides the embedded packs when set
	Dir string `json:"dir" mapstructure:"dir"`
	// LoadPolicy is "reject" or "skip"
	LoadPolicy string `json:"loadPolicy" mapstructure:"loadPolicy"`
}

// StorageConfig contains saved-stack database settings
type StorageConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Scoring: ScoringConfig{
			AffinityBonus:   10,
			FrictionPenalty: 30,
			UnknownPenalty:  5,
		},
		Report: ReportConfig{
			MaxSwaps:    3,
			TopFindings: 5,
		},
		Share: ShareConfig{
			BaseURL: "https://stackaudit.dev",
		},
		Evidence: EvidenceConfig{
			LoadPolicy: "reject",
		},
		Storage: StorageConfig{
			Path: filepath.Join(DirName, "stacks.db"),
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "warn",
		},
	}
}

// setDefaults mirrors DefaultConfig into viper so partial files and env overrides merge onto it.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("scoring.affinityBonus", d.Scoring.AffinityBonus)
	v.SetDefault("scoring.frictionPenalty", d.Scoring.FrictionPenalty)
	v.SetDefault("scoring.unknownPenalty", d.Scoring.UnknownPenalty)
	v.SetDefault("report.maxSwaps", d.Report.MaxSwaps)
	v.SetDefault("report.topFindings", d.Report.TopFindings)
	v.SetDefault("share.baseUrl", d.Share.BaseURL)
	v.SetDefault("evidence.dir", d.Evidence.Dir)
	v.SetDefault("evidence.loadPolicy", d.Evidence.LoadPolicy)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// LoadConfig loads configuration from <root>/.stackaudit/config.json.
// STACKAUDIT_* environment variables override file values
// (e.g. STACKAUDIT_EVIDENCE_LOADPOLICY=skip).
func LoadConfig(root string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, DirName))

	v.SetEnvPrefix("STACKAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to <root>/.stackaudit/config.json
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.Scoring.AffinityBonus < 0 {
		return &ConfigError{Field: "scoring.affinityBonus", Message: "must not be negative"}
	}
	if c.Scoring.FrictionPenalty < 0 {
		return &ConfigError{Field: "scoring.frictionPenalty", Message: "must not be negative"}
	}
	if c.Scoring.UnknownPenalty < 0 {
		return &ConfigError{Field: "scoring.unknownPenalty", Message: "must not be negative"}
	}
	if c.Report.MaxSwaps < 0 {
		return &ConfigError{Field: "report.maxSwaps", Message: "must not be negative"}
	}
	switch c.Evidence.LoadPolicy {
	case "reject", "skip":
	default:
		return &ConfigError{Field: "evidence.loadPolicy", Message: "must be \"reject\" or \"skip\""}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be \"human\" or \"json\""}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
