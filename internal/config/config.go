package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type EphemeralConfig struct {
	BaseDir string
}

type WarmConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	CDNBaseURL string
}

type ColdConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	PresignTTL time.Duration
}

// RetentionConfig holds the per-tier windows. All values are overridable so
// tests and staging can run with compressed timeframes.
type RetentionConfig struct {
	Ephemeral time.Duration
	Warm      time.Duration
	Cold      time.Duration
	Published time.Duration
}

// CostConfig holds per-GB-month unit prices. The ephemeral tier is local
// disk and carries no unit price.
type CostConfig struct {
	WarmPerGBMonth float64
	ColdPerGBMonth float64
}

type LifecycleConfig struct {
	Schedule  string
	BatchSize int
	LockTTL   time.Duration
}

type RecommendationConfig struct {
	EphemeralBacklog int
	WarmSizeGB       float64
	ColdShare        float64
}

type SecurityConfig struct {
	AdminJWTSecret string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Ephemeral        EphemeralConfig
	Warm             WarmConfig
	Cold             ColdConfig
	Retention        RetentionConfig
	Costs            CostConfig
	Lifecycle        LifecycleConfig
	Recommendations  RecommendationConfig
	Security         SecurityConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("STORAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ephemeral.basedir", "/var/lib/sellhub/photos")

	v.SetDefault("warm.bucket", "sellhub-photos-warm")
	v.SetDefault("warm.usessl", false)
	v.SetDefault("warm.region", "us-east-1")

	v.SetDefault("cold.bucket", "sellhub-photos-cold")
	v.SetDefault("cold.region", "us-east-1")
	v.SetDefault("cold.presignttl", "24h")

	v.SetDefault("retention.ephemeral", "48h")
	v.SetDefault("retention.warm", "2160h")     // 90 days
	v.SetDefault("retention.cold", "8760h")     // 365 days
	v.SetDefault("retention.published", "168h") // 7 days

	v.SetDefault("costs.warmpergbmonth", 0.023)
	v.SetDefault("costs.coldpergbmonth", 0.004)

	v.SetDefault("lifecycle.schedule", "0 0 0 * * *")
	v.SetDefault("lifecycle.batchsize", 200)
	v.SetDefault("lifecycle.lockttl", "30m")

	v.SetDefault("recommendations.ephemeralbacklog", 500)
	v.SetDefault("recommendations.warmsizegb", 50.0)
	v.SetDefault("recommendations.coldshare", 0.8)
}
