package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DevJWTSecret is only used outside production when JWT_SECRET is missing.
const DevJWTSecret = "agroph-dev-secret-change-me"

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppEnv      string
	AppPort     string
	JWTSecret   string
	TokenTTL    time.Duration
	DatabaseURL string
	// Pool tuning
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBIdleTimeout  time.Duration
	// Upper bound on a single statement, including the wait for a pool slot; negative disables
	DBAcquireTimeout time.Duration
	// Uploads
	UploadDir     string
	MaxUploadSize int64
	// Weather
	WeatherAPIKey  string
	WeatherBaseURL string
	WeatherTTL     time.Duration
	// HTTP surface
	AllowedOrigins       []string
	SocketAllowedOrigins []string
	RateLimitPerMinute   int
	StaticDir            string
	// OAuth
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectBase  string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Redis for caching; empty host disables it
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool

	// Warnings collected while loading; logged once the logger exists.
	Warnings []string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: defaults < config/config.{json,yaml} < .env / environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to read .env: %v", err)
	}

	var c AppConfig
	if err := loadFileConfig("config", &c); err != nil {
		log.Printf("failed to read config file: %v", err)
	}
	applyDefaults(&c)
	applyEnvOverrides(&c)
	validate(&c)

	cfg = c
	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the active configuration. Used by CLI flag overrides and tests.
func Set(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// IsProduction reports whether the app runs with production safeguards.
func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// IsDevelopment reports whether internal error details may be exposed.
func (c AppConfig) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// WeatherEnabled reports whether an upstream weather key is configured.
func (c AppConfig) WeatherEnabled() bool {
	return strings.TrimSpace(c.WeatherAPIKey) != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadFileConfig reads config/config.(json|yaml|toml) if present. Missing files are not an error.
func loadFileConfig(dir string, out *AppConfig) error {
	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}

	out.AppEnv = v.GetString("app.env")
	out.AppPort = v.GetString("app.port")
	out.JWTSecret = v.GetString("app.jwt_secret")
	out.TokenTTL = v.GetDuration("app.token_ttl")
	out.RateLimitPerMinute = v.GetInt("app.rate_limit_per_minute")
	out.AllowedOrigins = v.GetStringSlice("app.allowed_origins")
	out.SocketAllowedOrigins = v.GetStringSlice("app.socket_allowed_origins")
	out.StaticDir = v.GetString("app.static_dir")

	out.DatabaseURL = v.GetString("database.url")
	out.DBMaxOpenConns = v.GetInt("database.max_open_conns")
	out.DBMaxIdleConns = v.GetInt("database.max_idle_conns")
	out.DBIdleTimeout = v.GetDuration("database.idle_timeout")
	out.DBAcquireTimeout = v.GetDuration("database.acquire_timeout")

	out.UploadDir = v.GetString("uploads.dir")
	out.MaxUploadSize = v.GetInt64("uploads.max_size")

	out.WeatherAPIKey = v.GetString("weather.api_key")
	out.WeatherBaseURL = v.GetString("weather.base_url")
	out.WeatherTTL = v.GetDuration("weather.ttl")

	out.GitHubClientID = v.GetString("oauth.github_client_id")
	out.GitHubClientSecret = v.GetString("oauth.github_client_secret")
	out.GoogleClientID = v.GetString("oauth.google_client_id")
	out.GoogleClientSecret = v.GetString("oauth.google_client_secret")
	out.OAuthRedirectBase = v.GetString("oauth.redirect_base")

	out.GinMode = v.GetString("gin.mode")
	out.GinPath = v.GetString("gin.path")

	out.RedisHost = v.GetString("redis.host")
	out.RedisPort = v.GetInt("redis.port")
	out.RedisDB = v.GetInt("redis.db")
	out.RedisPassword = v.GetString("redis.password")

	out.LogLevel = v.GetString("log.level")
	out.LogPath = v.GetString("log.path")
	out.LogMaxSizeMB = v.GetInt("log.max_size_mb")
	out.LogMaxBackups = v.GetInt("log.max_backups")
	out.LogMaxAgeDays = v.GetInt("log.max_age_days")
	out.LogCompress = v.GetBool("log.compress")
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppEnv == "" {
		c.AppEnv = "development"
	}
	if c.AppPort == "" {
		c.AppPort = "3000"
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = 7 * 24 * time.Hour
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "sqlite://agroph.db"
	}
	if c.DBMaxOpenConns == 0 {
		c.DBMaxOpenConns = 20
	}
	if c.DBMaxIdleConns == 0 {
		c.DBMaxIdleConns = 5
	}
	if c.DBIdleTimeout == 0 {
		c.DBIdleTimeout = 30 * time.Second
	}
	if c.DBAcquireTimeout == 0 {
		c.DBAcquireTimeout = 2 * time.Second
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.MaxUploadSize == 0 {
		c.MaxUploadSize = 10 << 20
	}
	if c.WeatherBaseURL == "" {
		c.WeatherBaseURL = "https://api.openweathermap.org/data/2.5"
	}
	if c.WeatherTTL == 0 {
		c.WeatherTTL = 10 * time.Minute
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 120
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if len(c.SocketAllowedOrigins) == 0 {
		c.SocketAllowedOrigins = []string{"*"}
	}
	if c.StaticDir == "" {
		c.StaticDir = "public"
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:3000"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) {
	if v := getEnv("APP_ENV", getEnv("NODE_ENV", "")); v != "" {
		c.AppEnv = v
	}
	if v := getEnv("APP_PORT", getEnv("PORT", "")); v != "" {
		c.AppPort = v
	}
	if v := getEnv("JWT_SECRET", ""); v != "" {
		c.JWTSecret = v
	}
	if v := getEnv("DATABASE_URL", ""); v != "" {
		c.DatabaseURL = v
	}
	if v := getEnv("DB_IDLE_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DBIdleTimeout = d
		}
	}
	if v := getEnv("DB_ACQUIRE_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.DBAcquireTimeout = d
		}
	}
	if v := getEnv("UPLOAD_DIR", getEnv("UPLOAD_PATH", "")); v != "" {
		c.UploadDir = v
	}
	if v := getEnv("MAX_UPLOAD_SIZE", getEnv("MAX_FILE_SIZE", "")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.MaxUploadSize = n
		}
	}
	if v := getEnv("WEATHER_API_KEY", ""); v != "" {
		c.WeatherAPIKey = v
	}
	if v := getEnv("WEATHER_BASE_URL", ""); v != "" {
		c.WeatherBaseURL = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		c.RateLimitPerMinute = mustParseInt(v)
	}
	c.AllowedOrigins = readListEnv("CORS_ORIGINS", c.AllowedOrigins)
	c.SocketAllowedOrigins = readListEnv("SOCKET_CORS_ORIGINS", c.SocketAllowedOrigins)
	if v := getEnv("STATIC_DIR", ""); v != "" {
		c.StaticDir = v
	}
	if v := getEnv("GITHUB_CLIENT_ID", ""); v != "" {
		c.GitHubClientID = v
	}
	if v := getEnv("GITHUB_CLIENT_SECRET", ""); v != "" {
		c.GitHubClientSecret = v
	}
	if v := getEnv("GOOGLE_CLIENT_ID", ""); v != "" {
		c.GoogleClientID = v
	}
	if v := getEnv("GOOGLE_CLIENT_SECRET", ""); v != "" {
		c.GoogleClientSecret = v
	}
	if v := getEnv("OAUTH_REDIRECT_BASE", ""); v != "" {
		c.OAuthRedirectBase = v
	}
	if v := getEnv("GIN_MODE", ""); v != "" {
		c.GinMode = v
	}
	if v := getEnv("GIN_PATH", ""); v != "" {
		c.GinPath = v
	}
	if v := getEnv("REDIS_HOST", ""); v != "" {
		c.RedisHost = v
	}
	if v := getEnv("REDIS_PORT", ""); v != "" {
		c.RedisPort = mustParseInt(v)
	}
	if v := getEnv("REDIS_DB", ""); v != "" {
		c.RedisDB = mustParseInt(v)
	}
	if v := getEnv("REDIS_PASSWORD", ""); v != "" {
		c.RedisPassword = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LOG_PATH", ""); v != "" {
		c.LogPath = v
	}
	if v := getEnv("LOG_COMPRESS", ""); v != "" {
		c.LogCompress = strings.EqualFold(v, "true") || v == "1"
	}
}

// validate records missing secrets. Production refuses to start without a signing secret.
func validate(c *AppConfig) {
	if strings.TrimSpace(c.JWTSecret) == "" {
		if c.IsProduction() {
			log.Fatal("JWT_SECRET must be set when APP_ENV=production")
		}
		c.JWTSecret = DevJWTSecret
		c.Warnings = append(c.Warnings, "JWT_SECRET not set; using the development secret")
	}
	if !c.WeatherEnabled() {
		c.Warnings = append(c.Warnings, "WEATHER_API_KEY not set; weather endpoints will report unavailable")
	}
}

func mustParseInt(val string) int {
	n, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return 0
	}
	return n
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
