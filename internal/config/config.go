package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir     string        `mapstructure:"MIGRATIONS_DIR"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	JWTTTL            time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
	AuthRateLimitRPS  float64       `mapstructure:"AUTH_RATE_LIMIT_RPS"`
	MaxUploadSize     int64         `mapstructure:"MAX_UPLOAD_SIZE"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	FanoutMode        string        `mapstructure:"FANOUT_MODE"`
	FanoutConcurrency int           `mapstructure:"FANOUT_CONCURRENCY"`
	ImageStore        string        `mapstructure:"IMAGE_STORE"`
	CloudinaryCloud   string        `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryKey     string        `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinarySecret  string        `mapstructure:"CLOUDINARY_API_SECRET"`
	S3Bucket          string        `mapstructure:"S3_BUCKET"`
	S3Region          string        `mapstructure:"S3_REGION"`
	S3PublicURL       string        `mapstructure:"S3_PUBLIC_URL"`
	GeminiAPIKey      string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel       string        `mapstructure:"GEMINI_MODEL"`
}

// devJWTSecret signs tokens in development when JWT_SECRET is unset.
const devJWTSecret = "development-only-secret-change-me-please"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 5)
	v.SetDefault("MAX_UPLOAD_SIZE", 5<<20)
	v.SetDefault("FANOUT_MODE", "inline")
	v.SetDefault("FANOUT_CONCURRENCY", 8)
	v.SetDefault("IMAGE_STORE", "memory")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")

	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
		"JWT_SECRET", "JWT_TTL", "CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"AUTH_RATE_LIMIT_RPS", "MAX_UPLOAD_SIZE", "REDIS_URL", "FANOUT_MODE",
		"FANOUT_CONCURRENCY", "IMAGE_STORE", "CLOUDINARY_CLOUD_NAME", "CLOUDINARY_API_KEY",
		"CLOUDINARY_API_SECRET", "S3_BUCKET", "S3_REGION", "S3_PUBLIC_URL",
		"GEMINI_API_KEY", "GEMINI_MODEL",
	} {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesQueue reports whether article fanout goes through the task queue.
func (c *Config) UsesQueue() bool {
	return c.FanoutMode == "queue"
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production, got %d", len(c.JWTSecret))
		}
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must be changed in production")
		}
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}

	switch c.FanoutMode {
	case "inline":
	case "queue":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when FANOUT_MODE is \"queue\"")
		}
	default:
		return fmt.Errorf("FANOUT_MODE must be \"inline\" or \"queue\", got %q", c.FanoutMode)
	}
	if c.FanoutConcurrency <= 0 {
		return fmt.Errorf("FANOUT_CONCURRENCY must be positive, got %d", c.FanoutConcurrency)
	}

	switch c.ImageStore {
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("IMAGE_STORE \"memory\" is not allowed in production")
		}
	case "cloudinary":
		if c.CloudinaryCloud == "" || c.CloudinaryKey == "" || c.CloudinarySecret == "" {
			return fmt.Errorf("CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET are required when IMAGE_STORE is \"cloudinary\"")
		}
	case "s3":
		if c.S3Bucket == "" || c.S3Region == "" {
			return fmt.Errorf("S3_BUCKET and S3_REGION are required when IMAGE_STORE is \"s3\"")
		}
	default:
		return fmt.Errorf("IMAGE_STORE must be \"memory\", \"cloudinary\", or \"s3\", got %q", c.ImageStore)
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	return nil
}
