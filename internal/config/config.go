package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"quiz-night-service/internal/domain"
)

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"readTimeout"`
		WriteTimeout string `yaml:"writeTimeout"`
		// TrustProxy honors X-Forwarded-For/X-Real-IP for client addresses.
		TrustProxy bool `yaml:"trustProxy"`
	} `yaml:"server"`
	Admin struct {
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Quiz struct {
		MaxRound int `yaml:"maxRound"`
	} `yaml:"quiz"`
	Storage struct {
		// Backend is one of memory, file, redis, postgres, mongo.
		Backend string `yaml:"backend"`
		Dir     string `yaml:"dir"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rateLimit"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "3000"
	cfg.Admin.User = "admin"
	cfg.Log.Level = "info"
	cfg.Quiz.MaxRound = domain.DefaultMaxRound
	cfg.Storage.Backend = "file"
	cfg.Storage.Dir = "data"
	cfg.Redis.Prefix = "quiz:record:"
	cfg.Mongo.Database = "quiz"
	return cfg
}

// Load reads YAML config from path on top of the defaults. A missing file is not an error.
// Environment variables (optionally from a .env file) override the admin credentials.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	if cfg.Quiz.MaxRound < 1 {
		cfg.Quiz.MaxRound = domain.DefaultMaxRound
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ADMIN_USER"); v != "" {
		cfg.Admin.User = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("QUIZ_MAX_ROUND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Quiz.MaxRound = n
		}
	}
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
