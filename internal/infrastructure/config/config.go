package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/groupbuy/backend/internal/domain/grouporder"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Log        LogConfig
	HTTP       HTTPConfig
	GroupOrder GroupOrderConfig
	Expiry     ExpiryConfig
	Realtime   RealtimeConfig
	Payment    PaymentConfig
	Shipping   ShippingConfig
	Storage    StorageConfig
	Swagger    SwaggerConfig
	Telemetry  TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	// MigrateOnStart applies embedded migrations (postgres) or AutoMigrate (sqlite) at boot
	MigrateOnStart bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                string
	Issuer                string
	AccessTokenExpiration time.Duration
	// AllowHeaderIdentity accepts X-User-ID without a token (development only)
	AllowHeaderIdentity bool
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRPS      float64 // sustained requests per second per client
	RateLimitBurst    int
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
	SSEHeartbeat      time.Duration
	SSEBufferSize     int
	MaxStreamsPerNode int
}

// GroupOrderConfig holds group order defaults
type GroupOrderConfig struct {
	DiscountTiers     []grouporder.DiscountTier
	DefaultMaxMembers int
	IdempotencyTTL    time.Duration
	CheckoutTimeout   time.Duration
}

// ExpiryConfig holds the deadline sweeper settings
type ExpiryConfig struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
	Workers   int
	Timeout   time.Duration
}

// RealtimeConfig holds the cross-instance relay settings
type RealtimeConfig struct {
	RelayEnabled  bool
	ChannelPrefix string
	InstanceID    string
}

// PaymentConfig selects and configures the payment provider
type PaymentConfig struct {
	Provider  string // alipay, braintree or none
	Alipay    AlipaySettings
	Braintree BraintreeSettings
}

// AlipaySettings holds Alipay page-pay credentials
type AlipaySettings struct {
	AppID          string
	PrivateKeyPEM  string
	PrivateKeyFile string
	PublicKeyPEM   string
	PublicKeyFile  string
	Sandbox        bool
	NotifyURL      string
	ReturnURL      string
}

// BraintreeSettings holds Braintree merchant credentials
type BraintreeSettings struct {
	Environment string // sandbox or production
	MerchantID  string
	PublicKey   string
	PrivateKey  string
}

// ShippingConfig holds the flat-rate shipping table
type ShippingConfig struct {
	BaseFee               int64
	PerKgFee              int64
	FreeShippingThreshold int64 // 0 disables free shipping
}

// StorageConfig holds the S3-compatible object storage used for checkout receipts
type StorageConfig struct {
	Enabled           bool
	Endpoint          string // e.g. "localhost:9000" for MinIO
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
}

// SwaggerConfig holds Swagger documentation endpoint configuration
type SwaggerConfig struct {
	Enabled     bool     // Whether to enable Swagger endpoint
	RequireAuth bool     // Require authentication to access Swagger
	AllowedIPs  []string // IP whitelist (empty = allow all)
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	LogsEnabled       bool
	ProfilingEnabled  bool
	ProfilingEndpoint string
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings
}

type tierSetting struct {
	MinMembers int   `mapstructure:"min_members"`
	Percent    int32 `mapstructure:"percent"`
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with GROUPBUY_ prefix (e.g., GROUPBUY_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper instance
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("GROUPBUY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	tiers, err := loadTiers(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			MigrateOnStart:  v.GetBool("database.migrate_on_start"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			Issuer:                v.GetString("jwt.issuer"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			AllowHeaderIdentity:   v.GetBool("jwt.allow_header_identity"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRPS:      v.GetFloat64("http.rate_limit_rps"),
			RateLimitBurst:    v.GetInt("http.rate_limit_burst"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			SSEHeartbeat:      v.GetDuration("http.sse_heartbeat"),
			SSEBufferSize:     v.GetInt("http.sse_buffer_size"),
			MaxStreamsPerNode: v.GetInt("http.max_streams"),
		},
		GroupOrder: GroupOrderConfig{
			DiscountTiers:     tiers,
			DefaultMaxMembers: v.GetInt("group_order.default_max_members"),
			IdempotencyTTL:    v.GetDuration("group_order.idempotency_ttl"),
			CheckoutTimeout:   v.GetDuration("group_order.checkout_timeout"),
		},
		Expiry: ExpiryConfig{
			Enabled:   v.GetBool("expiry.enabled"),
			Interval:  v.GetDuration("expiry.interval"),
			BatchSize: v.GetInt("expiry.batch_size"),
			Workers:   v.GetInt("expiry.workers"),
			Timeout:   v.GetDuration("expiry.timeout"),
		},
		Realtime: RealtimeConfig{
			RelayEnabled:  v.GetBool("realtime.relay_enabled"),
			ChannelPrefix: v.GetString("realtime.channel_prefix"),
			InstanceID:    v.GetString("realtime.instance_id"),
		},
		Payment: PaymentConfig{
			Provider: v.GetString("payment.provider"),
			Alipay: AlipaySettings{
				AppID:          v.GetString("payment.alipay.app_id"),
				PrivateKeyPEM:  v.GetString("payment.alipay.private_key"),
				PrivateKeyFile: v.GetString("payment.alipay.private_key_file"),
				PublicKeyPEM:   v.GetString("payment.alipay.public_key"),
				PublicKeyFile:  v.GetString("payment.alipay.public_key_file"),
				Sandbox:        v.GetBool("payment.alipay.sandbox"),
				NotifyURL:      v.GetString("payment.alipay.notify_url"),
				ReturnURL:      v.GetString("payment.alipay.return_url"),
			},
			Braintree: BraintreeSettings{
				Environment: v.GetString("payment.braintree.environment"),
				MerchantID:  v.GetString("payment.braintree.merchant_id"),
				PublicKey:   v.GetString("payment.braintree.public_key"),
				PrivateKey:  v.GetString("payment.braintree.private_key"),
			},
		},
		Shipping: ShippingConfig{
			BaseFee:               v.GetInt64("shipping.base_fee"),
			PerKgFee:              v.GetInt64("shipping.per_kg_fee"),
			FreeShippingThreshold: v.GetInt64("shipping.free_shipping_threshold"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  v.GetStringSlice("swagger.allowed_ips"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingEndpoint: v.GetString("telemetry.profiling_endpoint"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadTiers reads [[group_order.discount_tiers]] tables, or the compact
// "min:percent,min:percent" form used in environment variables
func loadTiers(v *viper.Viper) ([]grouporder.DiscountTier, error) {
	if raw := v.GetString("group_order.discount_tiers"); raw != "" {
		return ParseTiers(raw)
	}
	var settings []tierSetting
	if err := v.UnmarshalKey("group_order.discount_tiers", &settings); err != nil {
		return nil, fmt.Errorf("group_order.discount_tiers: %w", err)
	}
	tiers := make([]grouporder.DiscountTier, 0, len(settings))
	for _, s := range settings {
		tiers = append(tiers, grouporder.DiscountTier{MinMembers: s.MinMembers, Percent: s.Percent})
	}
	return tiers, nil
}

// ParseTiers parses "1:0,3:10,5:15" into discount tiers
func ParseTiers(raw string) ([]grouporder.DiscountTier, error) {
	parts := strings.Split(raw, ",")
	tiers := make([]grouporder.DiscountTier, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		minStr, pctStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("group_order.discount_tiers: %q is not min:percent", part)
		}
		minMembers, err := strconv.Atoi(strings.TrimSpace(minStr))
		if err != nil {
			return nil, fmt.Errorf("group_order.discount_tiers: bad member count %q", minStr)
		}
		pct, err := strconv.ParseInt(strings.TrimSpace(pctStr), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("group_order.discount_tiers: bad percent %q", pctStr)
		}
		tiers = append(tiers, grouporder.DiscountTier{MinMembers: minMembers, Percent: int32(pct)})
	}
	return tiers, nil
}

// DiscountPolicy returns the validated policy, falling back to the default
func (c GroupOrderConfig) DiscountPolicy() (grouporder.DiscountPolicy, error) {
	if len(c.DiscountTiers) == 0 {
		return grouporder.DefaultDiscountPolicy(), nil
	}
	return grouporder.NewDiscountPolicy(c.DiscountTiers)
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "groupbuy-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "groupbuy"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "groupbuy.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 15 * time.Minute
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "groupbuy-backend"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// streams are long lived; zero keeps the write deadline off
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRPS == 0 {
		cfg.HTTP.RateLimitRPS = 10
	}
	if cfg.HTTP.RateLimitBurst == 0 {
		cfg.HTTP.RateLimitBurst = 20
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-User-ID", "Idempotency-Key"}
	}
	if cfg.HTTP.SSEHeartbeat == 0 {
		cfg.HTTP.SSEHeartbeat = 25 * time.Second
	}
	if cfg.HTTP.SSEBufferSize == 0 {
		cfg.HTTP.SSEBufferSize = 64
	}
	if cfg.HTTP.MaxStreamsPerNode == 0 {
		cfg.HTTP.MaxStreamsPerNode = 10000
	}
	if cfg.GroupOrder.IdempotencyTTL == 0 {
		cfg.GroupOrder.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.GroupOrder.CheckoutTimeout == 0 {
		cfg.GroupOrder.CheckoutTimeout = 5 * time.Minute
	}
	if cfg.Expiry.Interval == 0 {
		cfg.Expiry.Interval = time.Minute
	}
	if cfg.Expiry.BatchSize == 0 {
		cfg.Expiry.BatchSize = 200
	}
	if cfg.Expiry.Workers == 0 {
		cfg.Expiry.Workers = 4
	}
	if cfg.Expiry.Timeout == 0 {
		cfg.Expiry.Timeout = 30 * time.Second
	}
	if cfg.Realtime.ChannelPrefix == "" {
		cfg.Realtime.ChannelPrefix = "groupbuy:group:"
	}
	if cfg.Payment.Provider == "" {
		cfg.Payment.Provider = "none"
	}
	if cfg.Payment.Braintree.Environment == "" {
		cfg.Payment.Braintree.Environment = "sandbox"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "groupbuy-receipts"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "groupbuy-backend"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if _, err := c.GroupOrder.DiscountPolicy(); err != nil {
		return fmt.Errorf("group_order.discount_tiers: %w", err)
	}
	if c.GroupOrder.DefaultMaxMembers < 0 {
		return fmt.Errorf("group_order.default_max_members cannot be negative")
	}
	if c.GroupOrder.CheckoutTimeout < 0 {
		return fmt.Errorf("group_order.checkout_timeout cannot be negative")
	}

	switch c.Payment.Provider {
	case "none", "alipay", "braintree":
	default:
		return fmt.Errorf("payment.provider must be alipay, braintree or none, got %q", c.Payment.Provider)
	}

	if c.Realtime.RelayEnabled && !c.Redis.Enabled {
		return fmt.Errorf("realtime.relay_enabled requires redis.enabled")
	}

	if c.Storage.Enabled && (c.Storage.AccessKey == "" || c.Storage.SecretKey == "") {
		return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.JWT.AllowHeaderIdentity {
			return fmt.Errorf("jwt.allow_header_identity must be false in production")
		}
		if c.Database.Driver == DriverPostgres && c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger endpoint must be disabled, require authentication, or have IP restriction in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
