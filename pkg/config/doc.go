// Package config loads configuration structs from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11: Load
// first merges variables from .env files into the process environment and
// then parses the environment into a struct using `env` field tags.
//
//	var cfg detection.Config
//	if err := config.Load(&cfg, config.WithPrefix("DEVICEDETECT_")); err != nil {
//		return err
//	}
//
// WithEnvFiles names the .env files to read; without it an optional .env in
// the working directory is used. WithEnvironment bypasses the process
// environment entirely, which keeps tests independent of each other.
package config
