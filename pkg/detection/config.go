package detection

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dmitrymomot/devicedetect/pkg/cache"
	"github.com/dmitrymomot/devicedetect/pkg/config"
	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/logger"
	redisconn "github.com/dmitrymomot/devicedetect/pkg/redis"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "DEVICEDETECT_"

// ServiceName tags logs written by loggers from Config.Logger when an
// environment is set.
const ServiceName = "devicedetect"

// Config describes a complete detection setup. Exactly one of DataFile and
// S3.Bucket must be set.
type Config struct {
	DataFile string `env:"DATA_FILE"`
	Mode     string `env:"MODE" envDefault:"memory"`

	Cache CacheConfig `envPrefix:"CACHE_"`

	// ResultCacheSize bounds the in-process result cache. Zero disables it.
	// Ignored when Redis is configured.
	ResultCacheSize int           `env:"RESULT_CACHE_SIZE" envDefault:"10000"`
	ResultCacheTTL  time.Duration `env:"RESULT_CACHE_TTL" envDefault:"24h"`

	S3    S3Config         `envPrefix:"S3_"`
	Redis redisconn.Config `envPrefix:"REDIS_"`

	// Env selects a logger preset (development, staging or production) and
	// tags records with it. LogLevel and LogFormat override the preset; with
	// neither Env nor overrides the logger writes text at info level.
	Env       string `env:"ENV"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// CacheConfig sizes the stream-mode record caches.
type CacheConfig struct {
	Strings    int `env:"STRINGS" envDefault:"5000"`
	Values     int `env:"VALUES" envDefault:"5000"`
	Profiles   int `env:"PROFILES" envDefault:"1000"`
	Signatures int `env:"SIGNATURES" envDefault:"2000"`
	Nodes      int `env:"NODES" envDefault:"5000"`
}

func (c CacheConfig) sizes() dataset.CacheSizes {
	return dataset.CacheSizes{
		Strings:    c.Strings,
		Values:     c.Values,
		Profiles:   c.Profiles,
		Signatures: c.Signatures,
		Nodes:      c.Nodes,
	}
}

// S3Config locates a dataset object in S3 or an S3-compatible store.
type S3Config struct {
	Bucket         string `env:"BUCKET"`
	Key            string `env:"KEY"`
	Region         string `env:"REGION" envDefault:"us-east-1"`
	Endpoint       string `env:"ENDPOINT"`
	AccessKeyID    string `env:"ACCESS_KEY_ID"`
	SecretKey      string `env:"SECRET_KEY"`
	ForcePathStyle bool   `env:"FORCE_PATH_STYLE"`
}

func (c S3Config) source() dataset.S3Config {
	return dataset.S3Config{
		Bucket:         c.Bucket,
		Key:            c.Key,
		Region:         c.Region,
		AccessKeyID:    c.AccessKeyID,
		SecretKey:      c.SecretKey,
		Endpoint:       c.Endpoint,
		ForcePathStyle: c.ForcePathStyle,
	}
}

// LoadConfig reads a Config from DEVICEDETECT_* environment variables and
// an optional .env file, then validates it.
func LoadConfig(opts ...config.Option) (Config, error) {
	var cfg Config
	opts = append([]config.Option{config.WithPrefix(EnvPrefix)}, opts...)
	if err := config.Load(&cfg, opts...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first problem with c as ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.DataFile == "" && c.S3.Bucket == "":
		return fmt.Errorf("%w: either a data file or an S3 bucket is required", ErrInvalidConfig)
	case c.DataFile != "" && c.S3.Bucket != "":
		return fmt.Errorf("%w: data file and S3 bucket are mutually exclusive", ErrInvalidConfig)
	case c.S3.Bucket != "" && c.S3.Key == "":
		return fmt.Errorf("%w: S3 key is required", ErrInvalidConfig)
	case c.ResultCacheSize < 0:
		return fmt.Errorf("%w: result cache size must not be negative", ErrInvalidConfig)
	case c.ResultCacheTTL < 0:
		return fmt.Errorf("%w: result cache TTL must not be negative", ErrInvalidConfig)
	}
	if _, err := dataset.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Env != "" {
		if _, err := logger.ParseEnvironment(c.Env); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if c.LogLevel != "" {
		if _, err := logger.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	switch logger.Format(strings.ToLower(c.LogFormat)) {
	case "", logger.FormatText, logger.FormatJSON:
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}

// Logger builds the logger described by Env, LogLevel and LogFormat,
// writing to stderr. opts are applied after the configured settings.
func (c Config) Logger(opts ...logger.Option) *slog.Logger {
	base := []logger.Option{logger.WithLevel(slog.LevelInfo), logger.WithFormat(logger.FormatText)}
	if c.Env != "" {
		base = []logger.Option{logger.WithEnvironment(c.Env, ServiceName)}
	}
	if c.LogLevel != "" {
		if level, err := logger.ParseLevel(c.LogLevel); err == nil {
			base = append(base, logger.WithLevel(level))
		}
	}
	switch {
	case strings.EqualFold(c.LogFormat, string(logger.FormatJSON)):
		base = append(base, logger.WithFormat(logger.FormatJSON))
	case strings.EqualFold(c.LogFormat, string(logger.FormatText)):
		base = append(base, logger.WithFormat(logger.FormatText))
	}
	base = append(base, logger.WithOutput(os.Stderr))
	return logger.New(append(base, opts...)...)
}

// WithS3Options passes options to the S3 source New creates.
func WithS3Options(opts ...dataset.S3Option) Option {
	return func(o *options) {
		o.s3 = append(o.s3, opts...)
	}
}

// WithRedisClient makes New use client instead of connecting to cfg.Redis.
// The provider does not close it.
func WithRedisClient(client RedisClient) Option {
	return func(o *options) {
		o.redis = client
	}
}

// New loads the dataset described by cfg and returns a Provider that owns
// it. Options are applied on top of the configured setup; WithResultCache
// replaces the configured result cache.
func New(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	ds, err := openDataset(ctx, cfg, o)
	if err != nil {
		return nil, err
	}

	results, closer, err := resultCache(ctx, cfg, ds, o)
	if err != nil {
		_ = ds.Close()
		return nil, err
	}

	provOpts := []Option{
		WithLogger(o.logger),
		WithResultCache(results),
		WithCloser(ds),
	}
	if closer != nil {
		provOpts = append(provOpts, WithCloser(closer))
	}
	provOpts = append(provOpts, opts...)
	p, err := NewProvider(ds, provOpts...)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		_ = ds.Close()
		return nil, err
	}
	return p, nil
}

func openDataset(ctx context.Context, cfg Config, o options) (*dataset.Dataset, error) {
	mode, _ := dataset.ParseMode(cfg.Mode)
	dsOpts := []dataset.Option{
		dataset.WithMode(mode),
		dataset.WithCacheSizes(cfg.Cache.sizes()),
		dataset.WithLogger(o.logger),
	}
	if o.registerer != nil {
		dsOpts = append(dsOpts, dataset.WithMetrics(o.registerer))
	}

	if cfg.S3.Bucket != "" {
		src, err := dataset.NewS3Source(ctx, cfg.S3.source(), o.s3...)
		if err != nil {
			return nil, err
		}
		return dataset.Load(src, dsOpts...)
	}
	return dataset.Open(cfg.DataFile, dsOpts...)
}

// resultCache returns the configured cache and, when New opened a Redis
// connection for it, that connection.
func resultCache(ctx context.Context, cfg Config, ds *dataset.Dataset, o options) (ResultCache, io.Closer, error) {
	if o.results != nil {
		return o.results, nil, nil
	}

	if o.redis != nil {
		return NewRedisResultCache(o.redis, DatasetNamespace(ds), cfg.ResultCacheTTL), nil, nil
	}
	if cfg.Redis.Enabled() {
		client, err := redisconn.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrResultCache, err)
		}
		return NewRedisResultCache(client, DatasetNamespace(ds), cfg.ResultCacheTTL), client, nil
	}

	if cfg.ResultCacheSize == 0 {
		return nil, nil, nil
	}
	var cacheOpts []cache.Option
	if o.registerer != nil {
		m, err := cache.NewMetrics(o.registerer, metricsNamespace, "results")
		if err != nil {
			return nil, nil, fmt.Errorf("register result cache metrics: %w", err)
		}
		cacheOpts = append(cacheOpts, cache.WithMetrics(m))
	}
	return NewLRUResultCache(cfg.ResultCacheSize, cacheOpts...), nil, nil
}
