package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Option configures Load.
type Option func(*options)

type options struct {
	envFiles []string
	prefix   string
	environ  map[string]string
}

// WithEnvFiles loads the given .env files instead of the default ./.env.
// Unlike the default file, explicitly named files must exist.
func WithEnvFiles(paths ...string) Option {
	return func(o *options) {
		o.envFiles = append(o.envFiles, paths...)
	}
}

// WithPrefix prepends prefix to every variable name read by env tags.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithEnvironment parses from m instead of the process environment.
// .env files are not consulted. Useful in tests.
func WithEnvironment(m map[string]string) Option {
	return func(o *options) {
		o.environ = m
	}
}

// Load parses environment variables into v based on its `env` and
// `envDefault` field tags.
//
// Before parsing, variables from .env files are added to the process
// environment. Variables that are already set keep their value.
//
// Example:
//
//	type Config struct {
//		DataFile string `env:"DATA_FILE"`
//		Mode     string `env:"MODE" envDefault:"memory"`
//	}
//
//	var cfg Config
//	err := config.Load(&cfg, config.WithPrefix("DEVICEDETECT_"))
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	envOpts := env.Options{Prefix: o.prefix}
	if o.environ != nil {
		envOpts.Environment = o.environ
	} else if err := loadEnvFiles(o.envFiles); err != nil {
		return err
	}

	if err := env.ParseWithOptions(v, envOpts); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("Failed to load required configuration: %v", err))
	}
}

func loadEnvFiles(paths []string) error {
	if len(paths) == 0 {
		// The default .env file is optional.
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		paths = []string{".env"}
	}
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}
