package dataset

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Mode selects how a dataset's records are held.
type Mode int

const (
	// ModeMemory decodes every record at load time. Reads never touch the
	// source again and take no locks.
	ModeMemory Mode = iota
	// ModeStream keeps only the index tables resident and decodes other
	// records on demand through bounded LRU caches.
	ModeStream
)

func (m Mode) String() string {
	switch m {
	case ModeMemory:
		return "memory"
	case ModeStream:
		return "stream"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode converts "memory" or "stream" (case-insensitive) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "memory", "":
		return ModeMemory, nil
	case "stream":
		return ModeStream, nil
	}
	return 0, fmt.Errorf("%w: unknown mode %q", ErrInvalidOption, s)
}

// CacheSizes bounds the per-kind caches used in stream mode.
type CacheSizes struct {
	Strings    int
	Values     int
	Profiles   int
	Signatures int
	Nodes      int
}

// DefaultCacheSizes returns the cache bounds used when none are given.
func DefaultCacheSizes() CacheSizes {
	return CacheSizes{
		Strings:    5000,
		Values:     5000,
		Profiles:   1000,
		Signatures: 2000,
		Nodes:      5000,
	}
}

func (c CacheSizes) validate() error {
	for name, n := range map[string]int{
		"strings":    c.Strings,
		"values":     c.Values,
		"profiles":   c.Profiles,
		"signatures": c.Signatures,
		"nodes":      c.Nodes,
	} {
		if n <= 0 {
			return fmt.Errorf("%w: %s cache size must be positive, got %d", ErrInvalidOption, name, n)
		}
	}
	return nil
}

// Option configures Load.
type Option func(*options)

type options struct {
	mode       Mode
	cacheSizes CacheSizes
	logger     *slog.Logger
	registerer prometheus.Registerer
}

func defaultOptions() options {
	return options{
		mode:       ModeMemory,
		cacheSizes: DefaultCacheSizes(),
		logger:     slog.Default(),
	}
}

// WithMode selects memory or stream mode. Memory is the default.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithCacheSizes sets the stream mode cache bounds. Ignored in memory mode.
func WithCacheSizes(s CacheSizes) Option {
	return func(o *options) {
		o.cacheSizes = s
	}
}

// WithLogger sets the logger used for load, close and lazy decode failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics exports stream mode cache counters to reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}
