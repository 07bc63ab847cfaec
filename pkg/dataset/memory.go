package dataset

import (
	"fmt"
	"sync/atomic"

	"github.com/dmitrymomot/devicedetect/pkg/cache"
)

// memoryTables holds every decoded record. It is never mutated after load.
type memoryTables struct {
	strings    map[int32]string
	values     []*Value
	profiles   []*Profile
	signatures []*Signature
	nodes      []*Node
}

// memoryStore serves reads from fully decoded tables. Close swaps the
// tables out; reads already holding them finish against the old copy.
type memoryStore struct {
	tables atomic.Pointer[memoryTables]
}

// newMemoryStore decodes the whole payload. rs must be backed by memory.
func newMemoryStore(rs *records, offsets []profileOffset) (*memoryStore, error) {
	t := &memoryTables{}

	strs, err := decodeStrings(rs)
	if err != nil {
		return nil, err
	}
	t.strings = strs
	str := t.str

	t.values = make([]*Value, rs.count(SectionValues))
	for i := range t.values {
		if t.values[i], err = rs.value(int32(i), str); err != nil {
			return nil, err
		}
	}

	t.profiles = make([]*Profile, len(offsets))
	for i, po := range offsets {
		if t.profiles[i], err = rs.profile(po); err != nil {
			return nil, err
		}
	}

	t.signatures = make([]*Signature, rs.count(SectionSignatures))
	for i := range t.signatures {
		if t.signatures[i], err = rs.signature(int32(i), str); err != nil {
			return nil, err
		}
	}

	t.nodes = make([]*Node, rs.count(SectionNodes))
	for i := range t.nodes {
		if t.nodes[i], err = rs.node(int32(i), str); err != nil {
			return nil, err
		}
	}

	s := &memoryStore{}
	s.tables.Store(t)
	return s, nil
}

// decodeStrings walks the strings section from start to end.
func decodeStrings(rs *records) (map[int32]string, error) {
	count := rs.count(SectionStrings)
	length := int64(rs.h.Sections[SectionStrings].Length)
	out := make(map[int32]string, count)

	var off int64
	for n := int32(0); n < count; n++ {
		s, size, err := rs.rawString(int32(off))
		if err != nil {
			return nil, err
		}
		out[int32(off)] = s
		off += int64(size)
	}
	if off != length {
		return nil, fmt.Errorf("%w: %d strings occupy %d of %d bytes", ErrCorrupt, count, off, length)
	}
	return out, nil
}

func (t *memoryTables) str(off int32) (string, error) {
	if off == NoString {
		return "", nil
	}
	s, ok := t.strings[off]
	if !ok {
		return "", fmt.Errorf("%w: no string starts at offset %d", ErrCorrupt, off)
	}
	return s, nil
}

func (s *memoryStore) load() (*memoryTables, error) {
	t := s.tables.Load()
	if t == nil {
		return nil, ErrClosed
	}
	return t, nil
}

func (s *memoryStore) str(off int32) (string, error) {
	t, err := s.load()
	if err != nil {
		return "", err
	}
	return t.str(off)
}

func (s *memoryStore) value(i int32) (*Value, error) {
	t, err := s.load()
	if err != nil {
		return nil, err
	}
	if i < 0 || int(i) >= len(t.values) {
		return nil, fmt.Errorf("%w: value index %d out of range", ErrCorrupt, i)
	}
	return t.values[i], nil
}

func (s *memoryStore) profile(i int32) (*Profile, error) {
	t, err := s.load()
	if err != nil {
		return nil, err
	}
	if i < 0 || int(i) >= len(t.profiles) {
		return nil, fmt.Errorf("%w: profile index %d out of range", ErrCorrupt, i)
	}
	return t.profiles[i], nil
}

func (s *memoryStore) signature(i int32) (*Signature, error) {
	t, err := s.load()
	if err != nil {
		return nil, err
	}
	if i < 0 || int(i) >= len(t.signatures) {
		return nil, fmt.Errorf("%w: signature index %d out of range", ErrCorrupt, i)
	}
	return t.signatures[i], nil
}

func (s *memoryStore) node(i int32) (*Node, error) {
	t, err := s.load()
	if err != nil {
		return nil, err
	}
	if i < 0 || int(i) >= len(t.nodes) {
		return nil, fmt.Errorf("%w: node index %d out of range", ErrCorrupt, i)
	}
	return t.nodes[i], nil
}

func (s *memoryStore) cacheStats() map[string]cache.Snapshot { return nil }

func (s *memoryStore) close() error {
	s.tables.Store(nil)
	return nil
}
