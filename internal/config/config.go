// Package config reads the server settings from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"ewaste-backend/internal/lifecycle"
	"ewaste-backend/internal/services"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	Firebase     services.FirebaseCredentials
	MapsAPIKey   string
	OpenAIAPIKey string
	OpenAIModel  string
	RabbitMQURL  string

	SweepSchedule      string
	QuotaResetSchedule string
	OutboxRetention    time.Duration

	Lifecycle lifecycle.Config
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:        withDefault(getenv("PORT"), "8080"),
		DatabaseURL: getenv("DATABASE_URL"),
		JWTSecret:   getenv("APP_JWT_SECRET"),
		Firebase: services.FirebaseCredentials{
			Base64:        getenv("FIREBASE_CREDENTIALS_BASE64"),
			File:          getenv("FIREBASE_CREDENTIALS_FILE"),
			StorageBucket: getenv("FIREBASE_STORAGE_BUCKET"),
		},
		MapsAPIKey:         getenv("GOOGLE_MAPS_API_KEY"),
		OpenAIAPIKey:       getenv("OPENAI_API_KEY"),
		OpenAIModel:        getenv("OPENAI_MODEL"),
		RabbitMQURL:        getenv("RABBITMQ_URL"),
		SweepSchedule:      withDefault(getenv("SWEEP_SCHEDULE"), "*/5 * * * *"),
		QuotaResetSchedule: withDefault(getenv("QUOTA_RESET_SCHEDULE"), "0 0 * * *"),
		OutboxRetention:    7 * 24 * time.Hour,
		Lifecycle:          lifecycle.DefaultConfig(),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("APP_JWT_SECRET environment variable is required")
	}

	var err error
	if v := getenv("CONFIRMATION_WINDOW"); v != "" {
		if cfg.Lifecycle.ConfirmationWindow, err = time.ParseDuration(v); err != nil || cfg.Lifecycle.ConfirmationWindow <= 0 {
			return nil, fmt.Errorf("invalid CONFIRMATION_WINDOW %q", v)
		}
	}
	if cfg.Lifecycle.Quota, err = intOr(getenv("PICKUP_QUOTA"), cfg.Lifecycle.Quota); err != nil || cfg.Lifecycle.Quota <= 0 {
		return nil, fmt.Errorf("invalid PICKUP_QUOTA: %v", getenv("PICKUP_QUOTA"))
	}

	volunteer := cfg.Lifecycle.Rewards.Volunteer
	if volunteer.Points, err = intOr(getenv("VOLUNTEER_REWARD_POINTS"), volunteer.Points); err != nil || volunteer.Points < 0 {
		return nil, fmt.Errorf("invalid VOLUNTEER_REWARD_POINTS: %v", getenv("VOLUNTEER_REWARD_POINTS"))
	}
	if volunteer.Exp, err = intOr(getenv("VOLUNTEER_REWARD_EXP"), volunteer.Exp); err != nil || volunteer.Exp < 0 {
		return nil, fmt.Errorf("invalid VOLUNTEER_REWARD_EXP: %v", getenv("VOLUNTEER_REWARD_EXP"))
	}
	cfg.Lifecycle.Rewards.Volunteer = volunteer

	if v := getenv("CLASSIFIER_MIN_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return nil, fmt.Errorf("invalid CLASSIFIER_MIN_CONFIDENCE %q", v)
		}
		cfg.Lifecycle.MinConfidence = f
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func intOr(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
