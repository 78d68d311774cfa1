package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Kroger    KrogerConfig    `mapstructure:"kroger"`
	Walmart   WalmartConfig   `mapstructure:"walmart"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Search    SearchConfig    `mapstructure:"search"`
	Cart      CartConfig      `mapstructure:"cart"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	LogLevel  string          `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// OracleConfig 分類服務配置
type OracleConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// KrogerConfig Kroger 目錄與購物車 API 配置
type KrogerConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// WalmartConfig Walmart 目錄 API 配置
type WalmartConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	ConsumerID    string        `mapstructure:"consumer_id"`
	KeyVersion    string        `mapstructure:"key_version"`
	PrivateKeyPEM string        `mapstructure:"private_key_pem"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// CacheConfig 快取配置
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	OracleTTL   time.Duration `mapstructure:"oracle_ttl"`
	MatchTTL    time.Duration `mapstructure:"match_ttl"`
	LocationTTL time.Duration `mapstructure:"location_ttl"`
}

// SearchConfig 目錄搜尋配置
type SearchConfig struct {
	Limit      int `mapstructure:"limit"`
	MaxRetries int `mapstructure:"max_retries"`
}

// CartConfig 購物車同步配置
type CartConfig struct {
	ItemDelay    time.Duration `mapstructure:"item_delay"`
	ResumeSecret string        `mapstructure:"resume_secret"`
	ResumeTTL    time.Duration `mapstructure:"resume_ttl"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件
	if err := godotenv.Load(); err != nil {
		return nil, err
	}

	// 設定預設值
	setDefaults()

	// 設定環境變數前綴
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 綁定環境變量
	viper.BindEnv("oracle.api_key", "ORACLE_API_KEY")
	viper.BindEnv("oracle.model", "ORACLE_MODEL")
	viper.BindEnv("kroger.client_id", "KROGER_CLIENT_ID")
	viper.BindEnv("kroger.client_secret", "KROGER_CLIENT_SECRET")
	viper.BindEnv("walmart.consumer_id", "WALMART_CONSUMER_ID")
	viper.BindEnv("walmart.key_version", "WALMART_KEY_VERSION")
	viper.BindEnv("walmart.private_key_pem", "WALMART_PRIVATE_KEY_PEM")
	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("cache.redis_addr", "REDIS_ADDR")
	viper.BindEnv("cart.resume_secret", "CART_RESUME_SECRET")
	viper.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	viper.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	// 讀取設定檔
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 添加調試日誌（logger 尚未初始化，改用 fmt.Println）
	fmt.Println("Loading configuration",
		"oracle_api_key:", MaskAPIKey(viper.GetString("oracle.api_key")),
		"kroger_client_id:", MaskAPIKey(viper.GetString("kroger.client_id")),
		"walmart_consumer_id:", MaskAPIKey(viper.GetString("walmart.consumer_id")),
	)

	// 解析設定
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults() {
	// 應用程式設定
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.debug", true)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.name", "budget-cart")

	// 伺服器設定
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// 分類服務設定
	viper.SetDefault("oracle.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("oracle.model", "openai/gpt-4o-mini")
	viper.SetDefault("oracle.max_tokens", 1000)
	viper.SetDefault("oracle.timeout", "30s")

	// Kroger 設定
	viper.SetDefault("kroger.base_url", "https://api.kroger.com/v1")
	viper.SetDefault("kroger.timeout", "10s")

	// Walmart 設定
	viper.SetDefault("walmart.base_url", "https://developer.api.walmart.com/api-proxy/service/affil/product/v2")
	viper.SetDefault("walmart.key_version", "1")
	viper.SetDefault("walmart.timeout", "10s")

	// 快取設定
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.oracle_ttl", "720h")
	viper.SetDefault("cache.match_ttl", "720h")
	viper.SetDefault("cache.location_ttl", "168h")

	// 搜尋設定
	viper.SetDefault("search.limit", 20)
	viper.SetDefault("search.max_retries", 3)

	// 購物車設定
	viper.SetDefault("cart.item_delay", "300ms")
	viper.SetDefault("cart.resume_ttl", "1h")

	// 限流設定
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests", 100)
	viper.SetDefault("rate_limit.window", "1m")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address is required when cache is enabled")
		}
		if config.Cache.OracleTTL <= 0 || config.Cache.MatchTTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
	}

	// 驗證搜尋設定
	if config.Search.Limit < 20 {
		return fmt.Errorf("search limit must be at least 20")
	}

	// 驗證購物車設定
	if config.Cart.ItemDelay < 0 {
		return fmt.Errorf("invalid cart item delay")
	}

	return nil
}
