package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the main struct that holds all configuration for the application.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Booking    BookingConfig    `mapstructure:"booking"`
	Scanner    ScannerConfig    `mapstructure:"scanner"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
}

// LoggerConfig holds logging-specific settings.
type LoggerConfig struct {
	Level string `mapstructure:"level"`
}

// HTTPConfig holds HTTP server-specific settings.
type HTTPConfig struct {
	Port    string `mapstructure:"port"`
	GinMode string `mapstructure:"gin_mode"`
}

// PostgresConfig holds all settings for the PostgreSQL connection.
type PostgresConfig struct {
	DSN  string     `mapstructure:"dsn"`
	Pool PoolConfig `mapstructure:"pool"`
}

// PoolConfig defines the connection pool settings for the database.
type PoolConfig struct {
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds all settings for the Redis connection.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RabbitMQConfig holds all settings for the RabbitMQ connection.
type RabbitMQConfig struct {
	DSN string `mapstructure:"dsn"`
}

// GatewayConfig holds settings for the outbound messaging gateway.
type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BookingConfig holds settings for the booking subsystem client.
type BookingConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxAdvanceDays bounds how far ahead a customer may reschedule.
	MaxAdvanceDays int `mapstructure:"max_advance_days"`
}

// ScannerConfig holds settings for the due-notification scanner.
type ScannerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// Grace is how long after its theoretical trigger time a
	// notification is still worth firing.
	Grace time.Duration `mapstructure:"grace"`
}

// DispatcherConfig holds settings for the dispatch worker pool.
type DispatcherConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	Workers   int           `mapstructure:"workers"`
}

// SweeperConfig holds settings for the conversation expiration sweeper.
type SweeperConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	// ReplyTimeout is how long a conversation may wait for a reply
	// before it is force-expired.
	ReplyTimeout time.Duration `mapstructure:"reply_timeout"`
}

// AlertsConfig holds configuration for operator alert channels.
type AlertsConfig struct {
	// Mode can be "log_only" or "production". In "log_only" mode all
	// reporters are replaced by the log reporter.
	Mode     string               `mapstructure:"mode"`
	Telegram AlertsTelegramConfig `mapstructure:"telegram"`
	Email    AlertsEmailConfig    `mapstructure:"email"`
}

// AlertsTelegramConfig holds settings for the Telegram operator channel.
type AlertsTelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// AlertsEmailConfig holds SMTP settings for the email operator channel.
type AlertsEmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// NewConfig parses the YAML file and environment variables to return a
// configuration struct.
func NewConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigFile("configs/config.yaml")

	v.SetDefault("logger.level", "info")
	v.SetDefault("http.port", ":8080")
	v.SetDefault("http.gin_mode", "release")
	v.SetDefault("postgres.pool.max_conns", 10)
	v.SetDefault("postgres.pool.min_conns", 2)
	v.SetDefault("postgres.pool.conn_max_lifetime", time.Hour)
	v.SetDefault("gateway.timeout", 10*time.Second)
	v.SetDefault("booking.timeout", 10*time.Second)
	v.SetDefault("booking.max_advance_days", 60)
	v.SetDefault("scanner.interval", 5*time.Minute)
	v.SetDefault("scanner.grace", 12*time.Hour)
	v.SetDefault("dispatcher.interval", time.Minute)
	v.SetDefault("dispatcher.batch_size", 50)
	v.SetDefault("dispatcher.workers", 5)
	v.SetDefault("sweeper.interval", 30*time.Minute)
	v.SetDefault("sweeper.reply_timeout", 48*time.Hour)
	v.SetDefault("alerts.mode", "log_only")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
