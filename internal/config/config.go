package config

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Mongo  MongoConfig
	Redis  RedisConfig
	JWT    JWTConfig
	Kafka  KafkaConfig
	SMTP   SMTPConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
}

type KafkaConfig struct {
	// Brokers empty disables event publishing.
	Brokers []string
	Topic   string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

var (
	configInstance *Config
	once           sync.Once
)

// Load reads configuration from the environment with sane defaults. It is a
// process-wide singleton.
func Load() (*Config, error) {
	once.Do(func() {
		viper.SetDefault("CHAT_HOST", "")
		viper.SetDefault("CHAT_PORT", "8080")
		viper.SetDefault("CHAT_BASE_URL", "http://localhost:8080")
		viper.SetDefault("CHAT_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHAT_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHAT_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("CHAT_JWT_SECRET", "secret")
		viper.SetDefault("CHAT_JWT_EXPIRE", "24h")
		viper.SetDefault("MONGODB_URI", "mongodb://localhost:27017")
		viper.SetDefault("MONGODB_DATABASE", "chatrelay")
		viper.SetDefault("REDIS_URL", "redis://127.0.0.1:6379/0")
		viper.SetDefault("KAFKA_BROKERS", "")
		viper.SetDefault("KAFKA_TOPIC", "chat.messages")
		viper.SetDefault("SMTP_HOST", "")
		viper.SetDefault("SMTP_PORT", "587")
		viper.SetDefault("SMTP_USERNAME", "")
		viper.SetDefault("SMTP_PASSWORD", "")
		viper.SetDefault("SMTP_FROM", "no-reply@localhost")
		viper.AutomaticEnv()

		var brokers []string
		if raw := viper.GetString("KAFKA_BROKERS"); raw != "" {
			for _, b := range strings.Split(raw, ",") {
				brokers = append(brokers, strings.TrimSpace(b))
			}
		}

		configInstance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("CHAT_HOST"),
				Port:         viper.GetString("CHAT_PORT"),
				BaseURL:      viper.GetString("CHAT_BASE_URL"),
				ReadTimeout:  viper.GetDuration("CHAT_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("CHAT_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("CHAT_IDLE_TIMEOUT"),
			},
			Mongo: MongoConfig{
				URI:      viper.GetString("MONGODB_URI"),
				Database: viper.GetString("MONGODB_DATABASE"),
			},
			Redis: RedisConfig{
				URL: viper.GetString("REDIS_URL"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("CHAT_JWT_SECRET"),
				ExpirationTime: viper.GetDuration("CHAT_JWT_EXPIRE"),
			},
			Kafka: KafkaConfig{
				Brokers: brokers,
				Topic:   viper.GetString("KAFKA_TOPIC"),
			},
			SMTP: SMTPConfig{
				Host:     viper.GetString("SMTP_HOST"),
				Port:     viper.GetString("SMTP_PORT"),
				Username: viper.GetString("SMTP_USERNAME"),
				Password: viper.GetString("SMTP_PASSWORD"),
				From:     viper.GetString("SMTP_FROM"),
			},
		}
	})
	return configInstance, nil
}
