package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/devicedetect/pkg/cache"
	"github.com/dmitrymomot/devicedetect/pkg/logger"
)

const metricsNamespace = "devicedetect_dataset"

// streamStore decodes records from the source on demand and keeps them in
// one bounded cache per record kind.
//
// Every read holds mu for reading and Close takes it for writing, so Close
// waits for in-flight reads and every read after it sees closed. Helpers
// suffixed Locked expect the caller to hold the read lock; RWMutex read
// locks must not be taken twice by one goroutine while a writer waits.
type streamStore struct {
	rs     *records
	src    Source
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool

	strings    *cache.LRUCache[int32, string]
	values     *cache.LRUCache[int32, *Value]
	profiles   *cache.LRUCache[int32, *Profile]
	signatures *cache.LRUCache[int32, *Signature]
	nodes      *cache.LRUCache[int32, *Node]

	offsets []profileOffset
}

func newStreamStore(rs *records, src Source, offsets []profileOffset, o options) (*streamStore, error) {
	if err := o.cacheSizes.validate(); err != nil {
		return nil, err
	}

	opts := func(name string) ([]cache.Option, error) {
		if o.registerer == nil {
			return nil, nil
		}
		m, err := cache.NewMetrics(o.registerer, metricsNamespace, name)
		if err != nil {
			return nil, fmt.Errorf("register %s cache metrics: %w", name, err)
		}
		return []cache.Option{cache.WithMetrics(m)}, nil
	}

	s := &streamStore{rs: rs, src: src, logger: o.logger, offsets: offsets}

	var err error
	var co []cache.Option
	if co, err = opts("strings"); err != nil {
		return nil, err
	}
	s.strings = cache.NewLRUCache[int32, string](o.cacheSizes.Strings, co...)
	if co, err = opts("values"); err != nil {
		return nil, err
	}
	s.values = cache.NewLRUCache[int32, *Value](o.cacheSizes.Values, co...)
	if co, err = opts("profiles"); err != nil {
		return nil, err
	}
	s.profiles = cache.NewLRUCache[int32, *Profile](o.cacheSizes.Profiles, co...)
	if co, err = opts("signatures"); err != nil {
		return nil, err
	}
	s.signatures = cache.NewLRUCache[int32, *Signature](o.cacheSizes.Signatures, co...)
	if co, err = opts("nodes"); err != nil {
		return nil, err
	}
	s.nodes = cache.NewLRUCache[int32, *Node](o.cacheSizes.Nodes, co...)

	return s, nil
}

func (s *streamStore) rlock() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	return nil
}

func (s *streamStore) warnCorrupt(kind string, i int32, err error) {
	if errors.Is(err, ErrCorrupt) {
		s.logger.Warn("corrupt dataset record",
			slog.String("kind", kind),
			slog.Int("index", int(i)),
			logger.DataFile(s.src.Name()),
			logger.Error(err),
		)
	}
}

func (s *streamStore) strLocked(off int32) (string, error) {
	if off == NoString {
		return "", nil
	}
	return s.strings.GetOrLoad(off, func() (string, error) {
		v, _, err := s.rs.rawString(off)
		if err != nil {
			s.warnCorrupt("string", off, err)
		}
		return v, err
	})
}

func (s *streamStore) str(off int32) (string, error) {
	if err := s.rlock(); err != nil {
		return "", err
	}
	defer s.mu.RUnlock()
	return s.strLocked(off)
}

func (s *streamStore) value(i int32) (*Value, error) {
	if err := s.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	return s.values.GetOrLoad(i, func() (*Value, error) {
		v, err := s.rs.value(i, s.strLocked)
		if err != nil {
			s.warnCorrupt("value", i, err)
		}
		return v, err
	})
}

func (s *streamStore) profile(i int32) (*Profile, error) {
	if err := s.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	if i < 0 || int(i) >= len(s.offsets) {
		return nil, fmt.Errorf("%w: profile index %d out of range", ErrCorrupt, i)
	}
	return s.profiles.GetOrLoad(i, func() (*Profile, error) {
		p, err := s.rs.profile(s.offsets[i])
		if err != nil {
			s.warnCorrupt("profile", i, err)
		}
		return p, err
	})
}

func (s *streamStore) signature(i int32) (*Signature, error) {
	if err := s.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	return s.signatures.GetOrLoad(i, func() (*Signature, error) {
		sig, err := s.rs.signature(i, s.strLocked)
		if err != nil {
			s.warnCorrupt("signature", i, err)
		}
		return sig, err
	})
}

func (s *streamStore) node(i int32) (*Node, error) {
	if err := s.rlock(); err != nil {
		return nil, err
	}
	defer s.mu.RUnlock()
	return s.nodes.GetOrLoad(i, func() (*Node, error) {
		n, err := s.rs.node(i, s.strLocked)
		if err != nil {
			s.warnCorrupt("node", i, err)
		}
		return n, err
	})
}

func (s *streamStore) cacheStats() map[string]cache.Snapshot {
	return map[string]cache.Snapshot{
		"strings":    s.strings.Stats(),
		"values":     s.values.Stats(),
		"profiles":   s.profiles.Stats(),
		"signatures": s.signatures.Stats(),
		"nodes":      s.nodes.Stats(),
	}
}

// close waits for in-flight reads, then releases the caches and the source.
func (s *streamStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.strings.Clear()
	s.values.Clear()
	s.profiles.Clear()
	s.signatures.Clear()
	s.nodes.Clear()

	if err := s.src.Close(); err != nil {
		return fmt.Errorf("close dataset source %s: %w", s.src.Name(), err)
	}
	return nil
}
