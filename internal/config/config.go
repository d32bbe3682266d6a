package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`

	// RedisURL is optional. When set, realtime events are bridged through
	// Redis pub/sub so they reach clients connected to other instances.
	RedisURL string `mapstructure:"REDIS_URL"`

	Port string `mapstructure:"PORT"`

	// PairingExpirySeconds is how long an ACTIVE pairing request survives
	// without a keepalive ping before it stops being matchable.
	PairingExpirySeconds int `mapstructure:"PAIRING_EXPIRY_SECONDS"`
}

var AppConfig *Config

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("PAIRING_EXPIRY_SECONDS", 90)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
}
