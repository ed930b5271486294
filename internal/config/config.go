package config

import (
	"errors"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseDSN      string `env:"DATABASE_URI"`
	MigrationsDir    string `env:"MIGRATIONS_DIR"`
	RedisAddr        string `env:"REDIS_ADDR"`
	RedisPassword    string `env:"REDIS_PASSWORD"`
	RedisDB          int    `env:"REDIS_DB"`
	JWTUserSecret    string `env:"JWT_USER_SECRET"`
	OperationWorkers int    `env:"OPERATION_WORKERS"`
	ClaimBatchSize   int    `env:"CLAIM_BATCH_SIZE"`
}

func LoadConfig() (*Config, error) {
	var flagsConfig, envConfig Config

	if envParseErr := env.Parse(&envConfig); envParseErr != nil {
		return nil, fmt.Errorf("parse env config: %s", envParseErr.Error())
	}

	loadFlags(&flagsConfig)

	conf := mergeConfig(&envConfig, &flagsConfig)
	if conf.DatabaseDSN == "" {
		return nil, errors.New("database DSN is not set")
	}
	if conf.JWTUserSecret == "" {
		return nil, errors.New("JWT secret is not set")
	}
	return conf, nil
}

func MustLoadConfig() *Config {
	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return config
}

func loadFlags(flagConfig *Config) {
	flag.StringVar(&flagConfig.RunAddress, "a", "localhost:8080", "Run address in format host:port")
	flag.StringVar(&flagConfig.DatabaseDSN, "d", "", "Database DSN")
	flag.StringVar(&flagConfig.MigrationsDir, "m", "migrations", "Database migrations directory")
	flag.StringVar(&flagConfig.RedisAddr, "r", "localhost:6379", "Redis address in format host:port")
	flag.StringVar(&flagConfig.RedisPassword, "rp", "", "Redis password")
	flag.IntVar(&flagConfig.RedisDB, "rd", 0, "Redis database number")
	flag.StringVar(&flagConfig.JWTUserSecret, "j", "", "JWT secret key")
	flag.IntVar(&flagConfig.OperationWorkers, "w", 5, "Operation workers count")         //nolint:mnd
	flag.IntVar(&flagConfig.ClaimBatchSize, "b", 50, "Operations claimed per iteration") //nolint:mnd

	flag.Parse()
}

func mergeConfig(envConfig, flagsConfig *Config) *Config {
	return &Config{
		RunAddress:       defaultIfBlank(envConfig.RunAddress, flagsConfig.RunAddress),
		DatabaseDSN:      defaultIfBlank(envConfig.DatabaseDSN, flagsConfig.DatabaseDSN),
		MigrationsDir:    defaultIfBlank(envConfig.MigrationsDir, flagsConfig.MigrationsDir),
		RedisAddr:        defaultIfBlank(envConfig.RedisAddr, flagsConfig.RedisAddr),
		RedisPassword:    defaultIfBlank(envConfig.RedisPassword, flagsConfig.RedisPassword),
		RedisDB:          defaultIfZero(envConfig.RedisDB, flagsConfig.RedisDB),
		JWTUserSecret:    defaultIfBlank(envConfig.JWTUserSecret, flagsConfig.JWTUserSecret),
		OperationWorkers: defaultIfZero(envConfig.OperationWorkers, flagsConfig.OperationWorkers),
		ClaimBatchSize:   defaultIfZero(envConfig.ClaimBatchSize, flagsConfig.ClaimBatchSize),
	}
}

func defaultIfBlank(value string, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func defaultIfZero(value int, defaultValue int) int {
	if value == 0 {
		return defaultValue
	}
	return value
}
