package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	ListenAddr  string `mapstructure:"LISTEN_ADDR"`

	// Engine timings. Server-authoritative; client countdowns are advisory.
	MatchmakingIntervalSeconds int `mapstructure:"MATCHMAKING_INTERVAL_SECONDS"`
	QueueTTLSeconds            int `mapstructure:"QUEUE_TTL_SECONDS"`
	ReadyTimeoutSeconds        int `mapstructure:"READY_TIMEOUT_SECONDS"`
	BattleDurationSeconds      int `mapstructure:"BATTLE_DURATION_SECONDS"`
	VotingWindowSeconds        int `mapstructure:"VOTING_WINDOW_SECONDS"`
	RematchWindowSeconds       int `mapstructure:"REMATCH_WINDOW_SECONDS"`
	DisconnectGraceSeconds     int `mapstructure:"DISCONNECT_GRACE_SECONDS"`
}

var AppConfig *Config

// LoadConfig loads the configuration from a .env file and environment variables.
func LoadConfig() {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()

	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("MATCHMAKING_INTERVAL_SECONDS", 2)
	viper.SetDefault("QUEUE_TTL_SECONDS", 120)
	viper.SetDefault("READY_TIMEOUT_SECONDS", 30)
	viper.SetDefault("BATTLE_DURATION_SECONDS", 180)
	viper.SetDefault("VOTING_WINDOW_SECONDS", 5)
	viper.SetDefault("REMATCH_WINDOW_SECONDS", 60)
	viper.SetDefault("DISCONNECT_GRACE_SECONDS", 15)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("Warning: .env file not found, loading from environment variables")
	}

	err := viper.Unmarshal(&AppConfig)
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
}
