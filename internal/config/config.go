package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	MySQL        MySQLConfig        `mapstructure:"mysql"`
	Redis        RedisConfig        `mapstructure:"redis"`
	RabbitMQ     RabbitMQConfig     `mapstructure:"rabbitmq"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Mpesa        MpesaConfig        `mapstructure:"mpesa"`
	Checkout     CheckoutConfig     `mapstructure:"checkout"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Admission    AdmissionConfig    `mapstructure:"admission"`
	Turnstile    TurnstileConfig    `mapstructure:"turnstile"`
	ManualVerify ManualVerifyConfig `mapstructure:"manual_verify"`
	Poll         PollConfig         `mapstructure:"poll"`
	Log          LogConfig          `mapstructure:"log"`
}

type ServerConfig struct {
	Port      string `mapstructure:"port"`
	PublicURL string `mapstructure:"public_url"`
}

type MySQLConfig struct {
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	AdminRole string `mapstructure:"admin_role"`
}

type MpesaConfig struct {
	Environment    string        `mapstructure:"environment"`
	BaseURL        string        `mapstructure:"base_url"`
	ConsumerKey    string        `mapstructure:"consumer_key"`
	ConsumerSecret string        `mapstructure:"consumer_secret"`
	Shortcode      string        `mapstructure:"shortcode"`
	Passkey        string        `mapstructure:"passkey"`
	CallbackURL    string        `mapstructure:"callback_url"`
	CountryCode    string        `mapstructure:"country_code"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

const (
	mpesaSandboxURL = "https://sandbox.safaricom.co.ke"
	mpesaLiveURL    = "https://api.safaricom.co.ke"
)

// ResolvedBaseURL prefers an explicit base URL, then the environment switch.
func (m MpesaConfig) ResolvedBaseURL() string {
	if m.BaseURL != "" {
		return strings.TrimRight(m.BaseURL, "/")
	}
	if m.Environment == "live" {
		return mpesaLiveURL
	}
	return mpesaSandboxURL
}

type CheckoutConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	SecretKey     string        `mapstructure:"secret_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Currency      string        `mapstructure:"currency"`
	SuccessURL    string        `mapstructure:"success_url"`
	CancelURL     string        `mapstructure:"cancel_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type CatalogConfig struct {
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type AdmissionConfig struct {
	InitiateLimit  int           `mapstructure:"initiate_limit"`
	InitiateWindow time.Duration `mapstructure:"initiate_window"`
	StatusRPS      float64       `mapstructure:"status_rps"`
	StatusBurst    int           `mapstructure:"status_burst"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

// TurnstileConfig enables the challenge check on initiation routes when
// SecretKey is set.
type TurnstileConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Required  bool          `mapstructure:"required"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type ManualVerifyConfig struct {
	RequiredRole string `mapstructure:"required_role"`
}

type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	APIURL      string        `mapstructure:"api_url"`
	Token       string        `mapstructure:"token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.public_url", "http://localhost:8080")

	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.host", "localhost")
	v.SetDefault("mysql.port", "3306")
	v.SetDefault("mysql.database", "orders")
	v.SetDefault("mysql.max_open_conns", 100)
	v.SetDefault("mysql.max_idle_conns", 20)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "order.exchange")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_role", "admin")

	v.SetDefault("mpesa.environment", "sandbox")
	v.SetDefault("mpesa.base_url", "")
	v.SetDefault("mpesa.consumer_key", "")
	v.SetDefault("mpesa.consumer_secret", "")
	v.SetDefault("mpesa.shortcode", "")
	v.SetDefault("mpesa.passkey", "")
	v.SetDefault("mpesa.callback_url", "")
	v.SetDefault("mpesa.country_code", "254")
	v.SetDefault("mpesa.timeout", 15*time.Second)

	v.SetDefault("checkout.base_url", "https://api.stripe.com")
	v.SetDefault("checkout.secret_key", "")
	v.SetDefault("checkout.webhook_secret", "")
	v.SetDefault("checkout.currency", "usd")
	v.SetDefault("checkout.success_url", "")
	v.SetDefault("checkout.cancel_url", "")
	v.SetDefault("checkout.timeout", 15*time.Second)

	v.SetDefault("catalog.url", "http://localhost:3001")
	v.SetDefault("catalog.timeout", 2*time.Second)
	v.SetDefault("catalog.cache_ttl", time.Minute)

	v.SetDefault("admission.initiate_limit", 5)
	v.SetDefault("admission.initiate_window", time.Minute)
	v.SetDefault("admission.status_rps", 100.0/60.0)
	v.SetDefault("admission.status_burst", 100)
	v.SetDefault("admission.sweep_interval", 10*time.Minute)

	v.SetDefault("turnstile.secret_key", "")
	v.SetDefault("turnstile.base_url", "https://challenges.cloudflare.com")
	v.SetDefault("turnstile.required", false)
	v.SetDefault("turnstile.timeout", 5*time.Second)

	v.SetDefault("manual_verify.required_role", "")

	v.SetDefault("poll.interval", time.Second)
	v.SetDefault("poll.max_attempts", 60)
	v.SetDefault("poll.api_url", "http://localhost:8080")
	v.SetDefault("poll.token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads defaults, then the optional YAML file, then the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Mpesa.CallbackURL == "" {
		cfg.Mpesa.CallbackURL = strings.TrimRight(cfg.Server.PublicURL, "/") + "/api/order/mpesa/callback"
	}
	return &cfg, nil
}
