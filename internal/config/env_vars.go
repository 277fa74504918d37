package config

import (
	"time"

	"github.com/rs/zerolog"
)

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetHTTPAddr() string
	GetLogLevel() zerolog.Level
	IsDev() bool
}

type StoreConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetStoreTimeout() time.Duration
	GetDatabaseURL() string
}

func (s *Settings) GetAppName() string {
	return s.AppName
}

func (s *Settings) GetEnv() string {
	if s.Env == "" {
		return "DEV"
	}
	return s.Env
}

func (s *Settings) IsDev() bool {
	return s.GetEnv() == "DEV"
}

func (s *Settings) GetHTTPAddr() string {
	return s.HTTPAddr
}

func (s *Settings) GetLogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func (s *Settings) GetRedisAddr() string {
	return s.RedisAddr
}

func (s *Settings) GetRedisPassword() string {
	return s.RedisPassword
}

func (s *Settings) GetRedisDB() int {
	return s.RedisDB
}

func (s *Settings) GetStoreTimeout() time.Duration {
	return s.StoreTimeout
}

func (s *Settings) GetDatabaseURL() string {
	return s.DatabaseURL
}
