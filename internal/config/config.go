package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	DatabaseDSN string
	JWTSecret   string
	// ContentSecret keys the at-rest message codec; empty stores plaintext.
	ContentSecret string
	ServiceName   string
	Environment   string
	DebugRoutes   bool

	Redis    Redis
	AMQP     AMQP
	S3       S3
	Mongo    Mongo
	Realtime Realtime
	Log      Log

	OTLPEndpoint string
}

type Redis struct {
	Addr        string
	Password    string
	DB          int
	PresenceTTL time.Duration
}

type AMQP struct {
	URL             string
	Exchange        string
	AuditRoutingKey string
}

type S3 struct {
	Bucket        string
	Region        string
	Endpoint      string
	PublicBaseURL string
	MaxBytes      int64
}

type Mongo struct {
	URI      string
	Database string
}

type Realtime struct {
	EventsPerSecond float64
	Burst           int
}

type Log struct {
	Level  string
	Format string
	File   string
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8083")
	v.SetDefault("SERVICE_NAME", "messenger-service")
	v.SetDefault("ENVIRONMENT", "local")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PRESENCE_TTL", 90*time.Second)
	v.SetDefault("AMQP_EXCHANGE", "messenger.events")
	v.SetDefault("AUDIT_ROUTING_KEY", "audit.chat")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("MEDIA_MAX_BYTES", 25<<20)
	v.SetDefault("MONGO_DATABASE", "messenger")
	v.SetDefault("WS_EVENTS_PER_SECOND", 20.0)
	v.SetDefault("WS_EVENTS_BURST", 40)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DEBUG_ROUTES", false)
}

// Load reads the environment, after an optional .env file, into a Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:          v.GetString("PORT"),
		DatabaseDSN:   v.GetString("DB_DSN"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		ContentSecret: v.GetString("CONTENT_SECRET"),
		ServiceName:   v.GetString("SERVICE_NAME"),
		Environment:   v.GetString("ENVIRONMENT"),
		DebugRoutes:   v.GetBool("DEBUG_ROUTES"),
		Redis: Redis{
			Addr:        v.GetString("REDIS_ADDR"),
			Password:    v.GetString("REDIS_PASSWORD"),
			DB:          v.GetInt("REDIS_DB"),
			PresenceTTL: v.GetDuration("PRESENCE_TTL"),
		},
		AMQP: AMQP{
			URL:             v.GetString("AMQP_URL"),
			Exchange:        v.GetString("AMQP_EXCHANGE"),
			AuditRoutingKey: v.GetString("AUDIT_ROUTING_KEY"),
		},
		S3: S3{
			Bucket:        v.GetString("S3_BUCKET"),
			Region:        v.GetString("S3_REGION"),
			Endpoint:      v.GetString("S3_ENDPOINT"),
			PublicBaseURL: v.GetString("S3_PUBLIC_BASE_URL"),
			MaxBytes:      v.GetInt64("MEDIA_MAX_BYTES"),
		},
		Mongo: Mongo{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DATABASE"),
		},
		Realtime: Realtime{
			EventsPerSecond: v.GetFloat64("WS_EVENTS_PER_SECOND"),
			Burst:           v.GetInt("WS_EVENTS_BURST"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			File:   v.GetString("LOG_FILE"),
		},
		OTLPEndpoint: v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Realtime.EventsPerSecond <= 0 || c.Realtime.Burst <= 0 {
		return errors.New("WS_EVENTS_PER_SECOND and WS_EVENTS_BURST must be positive")
	}
	return nil
}
