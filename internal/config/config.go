package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Dataset   DatasetConfig   `yaml:"dataset" mapstructure:"dataset"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Matcher   MatcherConfig   `yaml:"matcher" mapstructure:"matcher"`
	Geo       GeoConfig       `yaml:"geo" mapstructure:"geo"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DatasetConfig configures where the trial registry export comes from.
type DatasetConfig struct {
	URL       string `yaml:"url" mapstructure:"url"`
	FTPURL    string `yaml:"ftp_url" mapstructure:"ftp_url"`
	RawPath   string `yaml:"raw_path" mapstructure:"raw_path"`
	CleanPath string `yaml:"clean_path" mapstructure:"clean_path"`
	Limit     int    `yaml:"limit" mapstructure:"limit"`
}

// AnthropicConfig holds Anthropic API settings for the model-backed extractor.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// MatcherConfig holds the scoring policy. Weights are configurable
// policy, not load-bearing business rules; defaults reproduce the
// reference behavior.
type MatcherConfig struct {
	ConditionWeight   float64 `yaml:"condition_weight" mapstructure:"condition_weight"`
	DemographicWeight float64 `yaml:"demographic_weight" mapstructure:"demographic_weight"`
	PhaseWeight       float64 `yaml:"phase_weight" mapstructure:"phase_weight"`
	SecondaryWeight   float64 `yaml:"secondary_weight" mapstructure:"secondary_weight"`
	TopK              int     `yaml:"top_k" mapstructure:"top_k"`
}

// GeoConfig configures location-based filtering.
type GeoConfig struct {
	MaxDistanceKm float64 `yaml:"max_distance_km" mapstructure:"max_distance_km"`
}

// NotionConfig holds Notion API credentials for the report sink.
type NotionConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	ReportDB string `yaml:"report_db" mapstructure:"report_db"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("SCREENER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "trial-screener.db")
	v.SetDefault("dataset.url",
		"https://clinicaltrials.gov/api/v2/studies?format=csv&fields=NCTId,BriefTitle,Condition,EligibilityCriteria,Sex,MinimumAge,MaximumAge,Phase,OverallStatus,StudyType,LocationCity,LocationState,LocationCountry&limit=100")
	v.SetDefault("dataset.raw_path", "clinical_trials.csv")
	v.SetDefault("dataset.clean_path", "clinical_trials_clean.csv")
	v.SetDefault("dataset.limit", 100)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("matcher.condition_weight", 3.0)
	v.SetDefault("matcher.demographic_weight", 2.0)
	v.SetDefault("matcher.phase_weight", 1.5)
	v.SetDefault("matcher.secondary_weight", 1.0)
	v.SetDefault("matcher.top_k", 20)
	v.SetDefault("geo.max_distance_km", 0) // 0 = no distance filter
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
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
