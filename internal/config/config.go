package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config aggregates all configuration settings for the service.
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	// Server holds configuration for the HTTP server.
	Server ServerConfig `mapstructure:"server"`
	// Database holds configuration for the covenant test-history store.
	Database DatabaseConfig `mapstructure:"database"`
	// Redis holds configuration for the result cache.
	Redis RedisConfig `mapstructure:"redis"`
	// Security holds configuration for admin endpoint authentication.
	Security SecurityConfig `mapstructure:"security"`
	// Telemetry holds configuration for OpenTelemetry tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	// Telegram holds configuration for contagion alert notifications.
	Telegram TelegramConfig `mapstructure:"telegram"`
	// Analytics holds the tunable knobs of the risk engine.
	Analytics AnalyticsConfig `mapstructure:"analytics"`
}

// ServerConfig defines the HTTP server settings.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig defines the PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// DatabaseURL overrides the individual fields when set.
	DatabaseURL string `mapstructure:"database_url"`
}

// RedisConfig defines the Redis connection settings.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// CacheTTL is how long computed networks and matrices stay cached.
	CacheTTL string `mapstructure:"cache_ttl"`
}

// SecurityConfig defines authentication settings for admin endpoints.
type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry string `mapstructure:"jwt_expiry"`
}

// TelemetryConfig defines OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	// StdoutExport writes spans to stdout instead of OTLP; useful in
	// development.
	StdoutExport bool `mapstructure:"stdout_export"`
}

// TelegramConfig defines settings for the contagion alert bot.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token" json:"-" yaml:"-"`
	ChatID   string `mapstructure:"chat_id"`
}

// AnalyticsConfig holds the risk engine tunables. Blending and risk
// weights live here rather than as code constants so they can be
// recalibrated against historical back-testing without code changes.
type AnalyticsConfig struct {
	// MinSampleSize is the minimum number of overlapping quarterly
	// samples required for any correlation computation.
	MinSampleSize int `mapstructure:"min_sample_size"`
	// SignificanceLevel is the two-tailed p-value threshold below which
	// a correlation is treated as significant.
	SignificanceLevel float64 `mapstructure:"significance_level"`
	// MinEdgeCoefficient is the minimum |r| for a propagation edge.
	MinEdgeCoefficient float64 `mapstructure:"min_edge_coefficient"`
	// MaxLagPeriods bounds the lead-lag search window to [-L, +L].
	MaxLagPeriods int `mapstructure:"max_lag_periods"`
	// CorrelationWorkers is the size of the pairwise worker pool.
	CorrelationWorkers int `mapstructure:"correlation_workers"`

	// CoBreachWindowPeriods is the trailing window, in periods, within
	// which a target breach counts as a co-breach of a source breach.
	CoBreachWindowPeriods int `mapstructure:"co_breach_window_periods"`
	// CorrelationWeight and CoBreachWeight blend |r| and the historical
	// co-breach rate into the propagation probability.
	CorrelationWeight float64 `mapstructure:"correlation_weight"`
	CoBreachWeight    float64 `mapstructure:"co_breach_weight"`
	// ConfidenceFullSamples is the sample count at which the blended
	// probability is trusted fully; below it the estimate is pulled
	// toward a neutral 50.
	ConfidenceFullSamples int `mapstructure:"confidence_full_samples"`
	// PropagationFloor is the probability assigned when correlation is
	// significant but no co-breach events were ever observed.
	PropagationFloor float64 `mapstructure:"propagation_floor"`

	// CentralityTolerance and CentralityMaxIterations bound the power
	// iteration used for eigenvector centrality.
	CentralityTolerance     float64 `mapstructure:"centrality_tolerance"`
	CentralityMaxIterations int     `mapstructure:"centrality_max_iterations"`

	// Risk score blending weights; should sum to 1.
	RiskStatusWeight     float64 `mapstructure:"risk_status_weight"`
	RiskHeadroomWeight   float64 `mapstructure:"risk_headroom_weight"`
	RiskCentralityWeight float64 `mapstructure:"risk_centrality_weight"`
	// TrendPeriods is the SMA window over headroom used to classify a
	// node's trajectory; TrendRiskBump is added to the risk score of
	// deteriorating nodes.
	TrendPeriods  int     `mapstructure:"trend_periods"`
	TrendRiskBump float64 `mapstructure:"trend_risk_bump"`
	// ClusterTopK is the cluster size reported when the graph has a
	// single connected component.
	ClusterTopK int `mapstructure:"cluster_top_k"`

	// MaxTraversalDepth bounds the contagion traversal in hops.
	MaxTraversalDepth int `mapstructure:"max_traversal_depth"`
	// AtRiskProbability is the compounded probability above which an
	// affected covenant counts toward the at-risk aggregates.
	AtRiskProbability float64 `mapstructure:"at_risk_probability"`
	// DefaultPropagationPeriods stands in for the horizon contribution
	// of edges with no observed co-breach timing.
	DefaultPropagationPeriods float64 `mapstructure:"default_propagation_periods"`

	// AlertCascadeThreshold is the cascade probability (0-100) above
	// which a completed contagion assessment emits a Telegram alert.
	AlertCascadeThreshold float64 `mapstructure:"alert_cascade_threshold"`
}

// Load reads configuration from configs/config.yaml, the environment,
// and an optional .env file.
func Load() (*Config, error) {
	// .env is optional; environment wins when both are present.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Environment != "development" && config.Security.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required in non-development environments")
	}
	if config.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(config.Security.JWTExpiry); err != nil {
			return nil, fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}
	if err := config.Analytics.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the engine tunables for values that would make the
// computation degenerate.
func (c AnalyticsConfig) Validate() error {
	if c.MinSampleSize < 4 {
		return fmt.Errorf("analytics.min_sample_size must be at least 4, got %d", c.MinSampleSize)
	}
	if c.SignificanceLevel <= 0 || c.SignificanceLevel >= 1 {
		return fmt.Errorf("analytics.significance_level must be in (0, 1), got %g", c.SignificanceLevel)
	}
	if c.MaxLagPeriods < 1 {
		return fmt.Errorf("analytics.max_lag_periods must be positive, got %d", c.MaxLagPeriods)
	}
	if c.MaxTraversalDepth < 1 {
		return fmt.Errorf("analytics.max_traversal_depth must be positive, got %d", c.MaxTraversalDepth)
	}
	if c.CentralityMaxIterations < 1 {
		return fmt.Errorf("analytics.centrality_max_iterations must be positive, got %d", c.CentralityMaxIterations)
	}
	if c.CorrelationWeight+c.CoBreachWeight <= 0 {
		return errors.New("analytics blending weights must not all be zero")
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "covnet")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.cache_ttl", "15m")

	viper.SetDefault("security.jwt_expiry", "24h")

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.service_name", "covnet")
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	viper.SetDefault("telemetry.stdout_export", false)

	viper.SetDefault("telegram.enabled", false)
	viper.SetDefault("telegram.chat_id", "")

	viper.SetDefault("analytics.min_sample_size", 4)
	viper.SetDefault("analytics.significance_level", 0.05)
	viper.SetDefault("analytics.min_edge_coefficient", 0.4)
	viper.SetDefault("analytics.max_lag_periods", 4)
	viper.SetDefault("analytics.correlation_workers", 4)
	viper.SetDefault("analytics.co_breach_window_periods", 2)
	viper.SetDefault("analytics.correlation_weight", 0.55)
	viper.SetDefault("analytics.co_breach_weight", 0.45)
	viper.SetDefault("analytics.confidence_full_samples", 12)
	viper.SetDefault("analytics.propagation_floor", 10.0)
	viper.SetDefault("analytics.centrality_tolerance", 1e-6)
	viper.SetDefault("analytics.centrality_max_iterations", 100)
	viper.SetDefault("analytics.risk_status_weight", 0.4)
	viper.SetDefault("analytics.risk_headroom_weight", 0.3)
	viper.SetDefault("analytics.risk_centrality_weight", 0.3)
	viper.SetDefault("analytics.trend_periods", 4)
	viper.SetDefault("analytics.trend_risk_bump", 5.0)
	viper.SetDefault("analytics.cluster_top_k", 5)
	viper.SetDefault("analytics.max_traversal_depth", 3)
	viper.SetDefault("analytics.at_risk_probability", 25.0)
	viper.SetDefault("analytics.default_propagation_periods", 1.0)
	viper.SetDefault("analytics.alert_cascade_threshold", 80.0)
}

// DefaultAnalyticsConfig returns the engine defaults; used by tests and
// callers that construct the engine without a full config load.
func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		MinSampleSize:             4,
		SignificanceLevel:         0.05,
		MinEdgeCoefficient:        0.4,
		MaxLagPeriods:             4,
		CorrelationWorkers:        4,
		CoBreachWindowPeriods:     2,
		CorrelationWeight:         0.55,
		CoBreachWeight:            0.45,
		ConfidenceFullSamples:     12,
		PropagationFloor:          10.0,
		CentralityTolerance:       1e-6,
		CentralityMaxIterations:   100,
		RiskStatusWeight:          0.4,
		RiskHeadroomWeight:        0.3,
		RiskCentralityWeight:      0.3,
		TrendPeriods:              4,
		TrendRiskBump:             5.0,
		ClusterTopK:               5,
		MaxTraversalDepth:         3,
		AtRiskProbability:         25.0,
		DefaultPropagationPeriods: 1.0,
		AlertCascadeThreshold:     80.0,
	}
}
