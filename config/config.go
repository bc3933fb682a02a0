package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. WARDROBE_AI_API_KEY.
const EnvPrefix = "WARDROBE"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	AI       AIConfig       `mapstructure:"ai"`
	Weather  WeatherConfig  `mapstructure:"weather"`
	Outfit   OutfitConfig   `mapstructure:"outfit"`
}

type ServerConfig struct {
	Port          int   `mapstructure:"port"`
	Debug         bool  `mapstructure:"debug"`
	MaxUploadSize int64 `mapstructure:"max_upload_size"` // bytes accepted by /api/garments/analyze
}

type DatabaseConfig struct {
	Mode        string        `mapstructure:"mode"` // memory | sqlite | mysql | postgres
	SQLitePath  string        `mapstructure:"sqlite_path"`
	MySQLDSN    string        `mapstructure:"mysql_dsn"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLife     time.Duration `mapstructure:"max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// AIConfig configures the Gemini-backed vision, stylist and embedding clients.
type AIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	VisionModel    string        `mapstructure:"vision_model"`
	StylistModel   string        `mapstructure:"stylist_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	EmbeddingDims  int32         `mapstructure:"embedding_dims"`
	RPS            float64       `mapstructure:"rps"`
	Burst          int           `mapstructure:"burst"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Timeout        time.Duration `mapstructure:"timeout"`
	EmbedCacheSize int           `mapstructure:"embed_cache_size"`
}

type WeatherConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	DefaultLat float64       `mapstructure:"default_lat"`
	DefaultLon float64       `mapstructure:"default_lon"`
	HasDefault bool          `mapstructure:"has_default"`
}

type OutfitConfig struct {
	TopK           int           `mapstructure:"top_k"`
	DefaultWeather string        `mapstructure:"default_weather"`
	LabelLayout    string        `mapstructure:"label_layout"` // time layout used in "Outfit for <date>"
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	ConfirmLockTTL time.Duration `mapstructure:"confirm_lock_ttl"`
}

// Load reads config from the given YAML file path. A missing file is not an
// error: defaults plus WARDROBE_* environment variables (optionally from a
// .env file) are enough to boot.
func Load(path string) (*Config, error) {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.max_upload_size", 10<<20)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/wardrobe.db")
	v.SetDefault("database.mysql_dsn", "")
	v.SetDefault("database.postgres_dsn", "")
	v.SetDefault("database.max_open", 20)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.max_life", "1h")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 20)
	v.SetDefault("security.rate_limit_burst", 40)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.vision_model", "gemini-2.5-flash")
	v.SetDefault("ai.stylist_model", "gemini-2.5-flash")
	v.SetDefault("ai.embedding_model", "gemini-embedding-001")
	v.SetDefault("ai.embedding_dims", 768)
	v.SetDefault("ai.rps", 2)
	v.SetDefault("ai.burst", 4)
	v.SetDefault("ai.max_attempts", 3)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.embed_cache_size", 1024)
	v.SetDefault("weather.base_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("weather.timeout", "10s")
	v.SetDefault("weather.cache_ttl", "30m")
	v.SetDefault("weather.default_lat", 0)
	v.SetDefault("weather.default_lon", 0)
	v.SetDefault("weather.has_default", false)
	v.SetDefault("outfit.top_k", 5)
	v.SetDefault("outfit.default_weather", "Mild, 70°F")
	v.SetDefault("outfit.label_layout", "1/2/2006")
	v.SetDefault("outfit.session_idle_ttl", "2h")
	v.SetDefault("outfit.sweep_interval", "10m")
	v.SetDefault("outfit.confirm_lock_ttl", "30s")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
