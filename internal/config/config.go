package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-teacher-panel/internal/normalize"
)

// Config holds runtime configuration values for the teacher panel.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseDriver        string
	DatabaseURL           string
	DatabaseSchema        string
	DatabaseAutoMigrate   bool
	DatabaseConnectWait   time.Duration
	RedisURL              string
	SchemaCacheTTL        time.Duration
	AnalyticsCacheTTL     time.Duration
	PageSizeMin           int
	PageSizeMax           int
	PageSizeDefault       int
	TrimesterTable        map[string]string
	JWTSecret             string
	NATSURL               string
	NATSSubject           string
	CloudinaryCloudName   string
	CloudinaryAPIKey      string
	CloudinaryAPISecret   string
	CloudinaryFolder      string
	ArchiveMaxBytes       int64
	MutationRateLimit     int
	MutationRateWindow    time.Duration
	DashboardRecentWindow int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PANEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Teacher Panel")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.automigrate", false)
	v.SetDefault("database.connect_wait", "30s")
	v.SetDefault("schema.cache_ttl", "0s")
	v.SetDefault("analytics.cache_ttl", "2m")
	v.SetDefault("page.min", 5)
	v.SetDefault("page.max", 50)
	v.SetDefault("page.default", 20)
	v.SetDefault("trimester.labels", "0=Fall,1=Spring,2=Summer,3=Fall")
	v.SetDefault("nats.subject", "panel.submission.checked")
	v.SetDefault("cloudinary.folder", "panel/archives")
	v.SetDefault("archive.max_bytes", 20<<20)
	v.SetDefault("rate_limit.max", 30)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("dashboard.days", 7)

	schemaTTL, err := parseDuration(v, "schema.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	analyticsTTL, err := parseDuration(v, "analytics.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	connectWait, err := parseDuration(v, "database.connect_wait")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "rate_limit.window")
	if err != nil {
		return Config{}, err
	}

	trimesters, err := normalize.ParseTrimesterTable(v.GetString("trimester.labels"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid trimester labels: %w", err)
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseDriver:        strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:           v.GetString("database.url"),
		DatabaseSchema:        v.GetString("database.schema"),
		DatabaseAutoMigrate:   v.GetBool("database.automigrate"),
		DatabaseConnectWait:   connectWait,
		RedisURL:              v.GetString("redis.url"),
		SchemaCacheTTL:        schemaTTL,
		AnalyticsCacheTTL:     analyticsTTL,
		PageSizeMin:           v.GetInt("page.min"),
		PageSizeMax:           v.GetInt("page.max"),
		PageSizeDefault:       v.GetInt("page.default"),
		TrimesterTable:        trimesters,
		JWTSecret:             v.GetString("jwt.secret"),
		NATSURL:               v.GetString("nats.url"),
		NATSSubject:           v.GetString("nats.subject"),
		CloudinaryCloudName:   v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:      v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:   v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:      v.GetString("cloudinary.folder"),
		ArchiveMaxBytes:       v.GetInt64("archive.max_bytes"),
		MutationRateLimit:     v.GetInt("rate_limit.max"),
		MutationRateWindow:    rateWindow,
		DashboardRecentWindow: v.GetInt("dashboard.days"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}
	if cfg.PageSizeMin <= 0 || cfg.PageSizeMax < cfg.PageSizeMin {
		return Config{}, fmt.Errorf("invalid page bounds %d..%d", cfg.PageSizeMin, cfg.PageSizeMax)
	}
	if cfg.ArchiveMaxBytes <= 0 {
		cfg.ArchiveMaxBytes = 20 << 20
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
