package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/RaviShinde19/StackIt/internal/validate"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port           string `mapstructure:"port"             validate:"required,numeric"`
	PostgresDSN    string `mapstructure:"postgres_dsn"`
	MongoURI       string `mapstructure:"mongo_uri"`
	MongoDB        string `mapstructure:"mongo_db"         validate:"required"`
	RedisAddr      string `mapstructure:"redis_addr"       validate:"required,hostname_port"`
	RedisPassword  string `mapstructure:"redis_password"`
	MinioEndpoint  string `mapstructure:"minio_endpoint"   validate:"required,hostname_port"`
	MinioAccessKey string `mapstructure:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key"`
	MinioBucket    string `mapstructure:"minio_bucket"     validate:"required,min=3,max=63"`
	MinioUseSSL    bool   `mapstructure:"minio_use_ssl"`

	AccessTokenSecret  string        `mapstructure:"access_token_secret"  validate:"required"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_token_expiry"  validate:"gt=0"`
	RefreshTokenSecret string        `mapstructure:"refresh_token_secret" validate:"required"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_token_expiry" validate:"gt=0"`
	BcryptCost         int           `mapstructure:"bcrypt_cost"          validate:"gte=4,lte=31"`

	LogLevel  string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json console"`

	CORSOrigins   []string `mapstructure:"cors_origins"    validate:"dive,required"`
	AuthRateLimit float64  `mapstructure:"auth_rate_limit" validate:"gt=0"`
	AuthRateBurst int      `mapstructure:"auth_rate_burst" validate:"gte=1"`
	MaxUploadSize int64    `mapstructure:"max_upload_size" validate:"gt=0"`
	ConnectTries  uint     `mapstructure:"connect_tries"   validate:"gte=1"`
}

var defaults = map[string]any{
	"port":                 "8080",
	"mongo_db":             "stackit",
	"redis_addr":           "redis:6379",
	"minio_endpoint":       "minio:9000",
	"minio_bucket":         "profile-pictures",
	"minio_use_ssl":        false,
	"access_token_expiry":  "15m",
	"refresh_token_expiry": "240h",
	"bcrypt_cost":          10,
	"log_level":            "info",
	"log_format":           "json",
	"cors_origins":         "http://localhost:5173,http://localhost:3000",
	"auth_rate_limit":      5.0,
	"auth_rate_burst":      10,
	"max_upload_size":      5 << 20,
	"connect_tries":        5,
}

// keys without a default still have to be bound so AutomaticEnv picks them up
// during Unmarshal.
var bound = []string{
	"postgres_dsn", "mongo_uri", "redis_password",
	"minio_access_key", "minio_secret_key",
	"access_token_secret", "refresh_token_secret",
}

// Load reads configuration from the environment. Keys map to upper-case
// variables, e.g. access_token_secret -> ACCESS_TOKEN_SECRET.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	for _, k := range bound {
		if err := v.BindEnv(k); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.CORSOrigins = splitList(v.GetString("cors_origins"))
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
