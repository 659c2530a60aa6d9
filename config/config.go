package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env  string
	Port string

	DBUrl     string
	TxRetries int

	JWTSecret   string
	RequireAuth bool

	RedisAddr      string
	RedisPassword  string
	LeaderboardTTL time.Duration

	BoardSize        int
	NotifyTimeout    time.Duration
	ReminderInterval time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	ArchiveBucket          string
	ArchiveEndpoint        string
	ArchiveAccessKeyID     string
	ArchiveSecretAccessKey string
	AWSRegion              string
}

func LoadConfig() Config {
	err := godotenv.Load()

	if err != nil {
		log.Println("No .env file found. Using environment variables.")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("PORT", "8080")
	v.SetDefault("TX_RETRIES", 3)
	v.SetDefault("REQUIRE_AUTH", false)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("LEADERBOARD_TTL", "30s")
	v.SetDefault("BOARD_SIZE", 10)
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
	v.SetDefault("REMINDER_INTERVAL", "1h")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("AWS_REGION", "us-east-1")

	return Config{
		Env:              v.GetString("APP_ENV"),
		Port:             v.GetString("PORT"),
		DBUrl:            v.GetString("DB_URL"),
		TxRetries:        v.GetInt("TX_RETRIES"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		RequireAuth:      v.GetBool("REQUIRE_AUTH"),
		RedisAddr:        v.GetString("REDIS_ADDR"),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		LeaderboardTTL:   v.GetDuration("LEADERBOARD_TTL"),
		BoardSize:        v.GetInt("BOARD_SIZE"),
		NotifyTimeout:    v.GetDuration("NOTIFY_TIMEOUT"),
		ReminderInterval: v.GetDuration("REMINDER_INTERVAL"),
		SMTPHost:         v.GetString("SMTP_HOST"),
		SMTPPort:         v.GetInt("SMTP_PORT"),
		SMTPUser:         v.GetString("SMTP_USER"),
		SMTPPassword:     v.GetString("SMTP_PASSWORD"),
		MailFrom:         v.GetString("MAIL_FROM"),
		ArchiveBucket:    v.GetString("ARCHIVE_BUCKET"),
		AWSRegion:        v.GetString("AWS_REGION"),

		ArchiveEndpoint:        v.GetString("ARCHIVE_ENDPOINT"),
		ArchiveAccessKeyID:     v.GetString("ARCHIVE_ACCESS_KEY_ID"),
		ArchiveSecretAccessKey: v.GetString("ARCHIVE_SECRET_ACCESS_KEY"),
	}
}

// Validate rejects settings the server cannot run safely with.
func (c Config) Validate() error {
	if c.RequireAuth && c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set when REQUIRE_AUTH is true")
	}
	return nil
}
