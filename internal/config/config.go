package config

import (
	"fmt"
	"strings"
	"time"

	"ordersync/internal/domain"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Alerts    AlertConfig     `mapstructure:"alerts"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Heartbeat HeartbeatConfig `mapstructure:"heartbeat"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type StreamConfig struct {
	// Transport is "polling" or "websocket". Polling is the default:
	// serverless hosting does not guarantee the socket upgrade.
	Transport            string        `mapstructure:"transport"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts"`
	PollTimeout          time.Duration `mapstructure:"poll_timeout"`
}

type SessionConfig struct {
	Token   string   `mapstructure:"token"`
	Roles   []string `mapstructure:"roles"`
	StoreID string   `mapstructure:"store_id"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type AlertConfig struct {
	Sound         string  `mapstructure:"sound"`
	PlayerCommand string  `mapstructure:"player_command"`
	Volume        float64 `mapstructure:"volume"`
}

type NotifyConfig struct {
	Command string `mapstructure:"command"`
	Enabled bool   `mapstructure:"enabled"`
}

type HeartbeatConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("api.base_url", "http://localhost:8080/api/v1")
	viper.SetDefault("stream.transport", "polling")
	viper.SetDefault("stream.reconnect_delay", 2*time.Second)
	viper.SetDefault("stream.max_reconnect_attempts", 5)
	viper.SetDefault("stream.poll_timeout", 25*time.Second)
	viper.SetDefault("session.token", "")
	viper.SetDefault("session.roles", []string{"customer"})
	viper.SetDefault("session.store_id", "")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("alerts.sound", "assets/new-order.wav")
	viper.SetDefault("alerts.player_command", "paplay")
	viper.SetDefault("alerts.volume", 0.8)
	viper.SetDefault("notify.command", "notify-send")
	viper.SetDefault("notify.enabled", true)
	viper.SetDefault("heartbeat.interval", 30*time.Second)

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/ordersync/")

	// Environment variable support
	viper.AutomaticEnv()

	// Environment variable mappings
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("api.base_url", "API_BASE_URL")
	viper.BindEnv("stream.transport", "STREAM_TRANSPORT")
	viper.BindEnv("stream.reconnect_delay", "STREAM_RECONNECT_DELAY")
	viper.BindEnv("stream.max_reconnect_attempts", "STREAM_MAX_RECONNECT_ATTEMPTS")
	viper.BindEnv("stream.poll_timeout", "STREAM_POLL_TIMEOUT")
	viper.BindEnv("session.token", "SESSION_TOKEN")
	viper.BindEnv("session.roles", "SESSION_ROLES")
	viper.BindEnv("session.store_id", "SESSION_STORE_ID")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("alerts.sound", "ALERTS_SOUND")
	viper.BindEnv("alerts.player_command", "ALERTS_PLAYER_COMMAND")
	viper.BindEnv("alerts.volume", "ALERTS_VOLUME")
	viper.BindEnv("notify.command", "NOTIFY_COMMAND")
	viper.BindEnv("notify.enabled", "NOTIFY_ENABLED")
	viper.BindEnv("heartbeat.interval", "HEARTBEAT_INTERVAL")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// StreamEndpoint derives the event-stream address from the base API
// address by stripping any API-path suffix.
func (c *Config) StreamEndpoint() string {
	base := strings.TrimRight(c.API.BaseURL, "/")
	if i := strings.Index(base, "/api"); i >= 0 {
		base = base[:i]
	}
	return base + "/stream"
}

// Roles returns the session's active roles, dropping anything unknown.
func (c *Config) Roles() []domain.Role {
	var roles []domain.Role
	for _, r := range c.Session.Roles {
		switch domain.Role(strings.ToLower(strings.TrimSpace(r))) {
		case domain.RoleCustomer:
			roles = append(roles, domain.RoleCustomer)
		case domain.RoleMerchant:
			roles = append(roles, domain.RoleMerchant)
		case domain.RoleOperator:
			roles = append(roles, domain.RoleOperator)
		}
	}
	return roles
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Stream: %s (%s), Redis: %s, Roles: %s",
		c.Server.Host,
		c.Server.Port,
		c.StreamEndpoint(),
		c.Stream.Transport,
		c.Redis.Address,
		strings.Join(c.Session.Roles, ","),
	)
}
