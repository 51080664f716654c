package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values. It is loaded once in main and passed
// by pointer into every component; no package keeps a global copy.
type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Redis configuration.
	RedisAddr      string `mapstructure:"REDIS_ADDR"`
	RedisPassword  string `mapstructure:"REDIS_PASSWORD"`
	RedisSessionDB int    `mapstructure:"REDIS_SESSION_DB"`
	RedisGuardDB   int    `mapstructure:"REDIS_GUARD_DB"`

	// MongoDB (confirmed-booking history).
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`

	// Booking backend.
	BackendBaseURL string        `mapstructure:"BACKEND_BASE_URL"`
	BackendTimeout time.Duration `mapstructure:"BACKEND_TIMEOUT"`

	// Gemini interpreter.
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`

	// WhatsApp transport.
	WhatsAppVerifyToken string `mapstructure:"WHATSAPP_VERIFY_TOKEN"`
	WhatsAppAppSecret   string `mapstructure:"WHATSAPP_APP_SECRET"`
	WhatsAppToken       string `mapstructure:"WHATSAPP_TOKEN"`
	WhatsAppPhoneID     string `mapstructure:"WHATSAPP_PHONE_ID"`

	// Google service account for speech-to-text.
	GoogleServiceAccountFile string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Club identity, used by info replies and the location action.
	ClubName     string  `mapstructure:"CLUB_NAME"`
	ClubAddress  string  `mapstructure:"CLUB_ADDRESS"`
	ClubLat      float64 `mapstructure:"CLUB_LAT"`
	ClubLon      float64 `mapstructure:"CLUB_LON"`
	ClubTimezone string  `mapstructure:"CLUB_TIMEZONE"`

	// Dialogue tuning. The confidence threshold and escalation keywords are
	// empirically tuned; they are deployment parameters, not constants.
	Sports              []string `mapstructure:"SPORTS"`
	MaxDuration         int      `mapstructure:"MAX_DURATION"`
	MaxOptions          int      `mapstructure:"MAX_OPTIONS"`
	MaxToolIterations   int      `mapstructure:"MAX_TOOL_ITERATIONS"`
	ConfidenceThreshold float64  `mapstructure:"CONFIDENCE_THRESHOLD"`
	EscalationKeywords  []string `mapstructure:"ESCALATION_KEYWORDS"`
	MaxRequestsPerMin   int      `mapstructure:"MAX_REQUESTS_PER_MIN"`
}

// Load initializes viper to read config values from env, file, or defaults.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_SESSION_DB", 0)
	viper.SetDefault("REDIS_GUARD_DB", 1)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "courtside")
	viper.SetDefault("BACKEND_BASE_URL", "http://localhost:5000")
	viper.SetDefault("BACKEND_TIMEOUT", "10s")
	viper.SetDefault("GEMINI_MODEL", "models/gemini-1.5-pro")
	viper.SetDefault("CLUB_NAME", "Club Deportivo")
	viper.SetDefault("CLUB_ADDRESS", "")
	viper.SetDefault("CLUB_LAT", 0.0)
	viper.SetDefault("CLUB_LON", 0.0)
	viper.SetDefault("CLUB_TIMEZONE", "Europe/Madrid")
	viper.SetDefault("SPORTS", []string{"padel", "tenis", "futbol", "basket"})
	viper.SetDefault("MAX_DURATION", 3)
	viper.SetDefault("MAX_OPTIONS", 3)
	viper.SetDefault("MAX_TOOL_ITERATIONS", 3)
	viper.SetDefault("CONFIDENCE_THRESHOLD", 0.55)
	viper.SetDefault("ESCALATION_KEYWORDS", []string{"queja", "reclamacion", "hablar con una persona", "encargado"})
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// IsProduction checks if the environment is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
