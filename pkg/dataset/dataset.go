package dataset

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/devicedetect/pkg/cache"
	"github.com/dmitrymomot/devicedetect/pkg/logger"
)

// store is the record access strategy selected by Mode.
type store interface {
	str(off int32) (string, error)
	value(i int32) (*Value, error)
	// profile takes an index into the profile offset table.
	profile(i int32) (*Profile, error)
	signature(i int32) (*Signature, error)
	node(i int32) (*Node, error)
	cacheStats() map[string]cache.Snapshot
	close() error
}

// Info describes a loaded dataset.
type Info struct {
	Name       string
	Version    string
	Published  time.Time
	NextUpdate time.Time
	Mode       Mode
	Components int
	Properties int
	Values     int
	Profiles   int
	Signatures int
	Nodes      int
}

// Dataset is a loaded device detection data file. Components, properties
// and HTTP header names are decoded at load time in both modes; all other
// records are read through the mode's store.
//
// A Dataset is safe for concurrent use. After Close every record read
// returns ErrClosed.
type Dataset struct {
	info   Info
	source string
	logger *slog.Logger

	components []*Component
	properties []*Property
	byName     map[string]*Property
	headers    []string

	// offsets is sorted by (component, id); componentOf maps each entry to
	// its component.
	offsets     []profileOffset
	componentOf []int32
	keys        []int32

	store  store
	closed atomic.Bool
}

// Open loads the data file at path.
func Open(path string, opts ...Option) (*Dataset, error) {
	src, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	return Load(src, opts...)
}

// FromBytes loads a dataset held in memory.
func FromBytes(b []byte, opts ...Option) (*Dataset, error) {
	return Load(BytesSource("memory", b), opts...)
}

// Load decodes a dataset from src and takes ownership of it. In memory mode
// src is read completely and closed before Load returns; in stream mode it
// is closed by Dataset.Close. src is closed if Load fails.
func Load(src Source, opts ...Option) (ds *Dataset, err error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	name := src.Name()
	defer func() {
		if err != nil {
			_ = src.Close()
			o.logger.Error("dataset load failed",
				logger.DataFile(name),
				logger.Mode(o.mode.String()),
				logger.Error(err),
			)
		}
	}()

	var r io.ReaderAt = src
	size := src.Size()

	switch o.mode {
	case ModeMemory:
		b, err := readAll(src)
		if err != nil {
			return nil, err
		}
		if err := src.Close(); err != nil {
			return nil, fmt.Errorf("%w: close %s: %w", ErrSourceRead, name, err)
		}
		r = bytes.NewReader(b)
	case ModeStream:
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidOption, int(o.mode))
	}

	if size < int64(HeaderSize) {
		return nil, fmt.Errorf("%w: payload is %d bytes, shorter than the header", ErrCorrupt, size)
	}
	hb := make([]byte, HeaderSize)
	if _, err := r.ReadAt(hb, 0); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrSourceRead, err)
	}
	var h Header
	if err := h.UnmarshalBinary(hb); err != nil {
		return nil, err
	}
	if err := h.Validate(size); err != nil {
		return nil, err
	}

	rs := newRecords(r, &h)
	offsets, err := rs.rawProfileOffsets()
	if err != nil {
		return nil, err
	}

	ds = &Dataset{source: name, logger: o.logger, offsets: offsets}

	switch o.mode {
	case ModeMemory:
		ds.store, err = newMemoryStore(rs, offsets)
	case ModeStream:
		ds.store, err = newStreamStore(rs, src, offsets, o)
	}
	if err != nil {
		return nil, err
	}

	if err := ds.loadMetadata(rs, &h); err != nil {
		return nil, err
	}

	ds.info.Mode = o.mode
	ds.info.Version = fmt.Sprintf("%d.%d", h.Major, h.Minor)
	if h.Published != 0 {
		ds.info.Published = time.Unix(h.Published, 0).UTC()
	}
	if h.NextUpdate != 0 {
		ds.info.NextUpdate = time.Unix(h.NextUpdate, 0).UTC()
	}
	ds.info.Components = len(ds.components)
	ds.info.Properties = len(ds.properties)
	ds.info.Values = int(h.Sections[SectionValues].Count)
	ds.info.Profiles = len(offsets)
	ds.info.Signatures = int(h.Sections[SectionSignatures].Count)
	ds.info.Nodes = int(h.Sections[SectionNodes].Count)

	o.logger.Info("dataset loaded",
		logger.DataFile(name),
		logger.Mode(o.mode.String()),
		slog.String("name", ds.info.Name),
		slog.Int("signatures", ds.info.Signatures),
		slog.Int("profiles", ds.info.Profiles),
		logger.Duration(time.Since(start)),
	)
	return ds, nil
}

func (ds *Dataset) loadMetadata(rs *records, h *Header) error {
	var err error
	if ds.info.Name, err = ds.store.str(h.NameOffset); err != nil {
		return err
	}

	ds.components = make([]*Component, rs.count(SectionComponents))
	ds.componentOf = make([]int32, len(ds.offsets))
	next := int32(0)
	for i := range ds.components {
		rec, err := rs.rawComponent(int32(i))
		if err != nil {
			return err
		}
		if rec.firstProfile != next {
			return fmt.Errorf("%w: component %d profiles start at %d, expected %d", ErrCorrupt, i, rec.firstProfile, next)
		}
		name, err := ds.store.str(rec.name)
		if err != nil {
			return err
		}
		ds.components[i] = &Component{
			Index:            i,
			Name:             name,
			DefaultProfileID: rec.defaultProfileID,
			firstProfile:     rec.firstProfile,
			profileCount:     rec.profileCount,
		}
		for j := rec.firstProfile; j < rec.firstProfile+rec.profileCount; j++ {
			ds.componentOf[j] = int32(i)
			if j > rec.firstProfile && ds.offsets[j].id <= ds.offsets[j-1].id {
				return fmt.Errorf("%w: component %d profile ids are not ascending", ErrCorrupt, i)
			}
		}
		next += rec.profileCount
	}
	if int(next) != len(ds.offsets) {
		return fmt.Errorf("%w: components own %d profiles, offset table holds %d", ErrCorrupt, next, len(ds.offsets))
	}

	ds.properties = make([]*Property, rs.count(SectionProperties))
	ds.byName = make(map[string]*Property, len(ds.properties))
	for i := range ds.properties {
		rec, err := rs.rawProperty(int32(i))
		if err != nil {
			return err
		}
		p := &Property{
			Index:          i,
			Type:           rec.valueType,
			Mandatory:      rec.mandatory,
			List:           rec.list,
			ComponentIndex: int(rec.component),
			firstValue:     rec.firstValue,
			valueCount:     rec.valueCount,
		}
		if p.Name, err = ds.store.str(rec.name); err != nil {
			return err
		}
		if p.Description, err = ds.store.str(rec.description); err != nil {
			return err
		}
		if p.Category, err = ds.store.str(rec.category); err != nil {
			return err
		}
		if _, dup := ds.byName[p.Name]; dup {
			return fmt.Errorf("%w: duplicate property %q", ErrCorrupt, p.Name)
		}
		ds.properties[i] = p
		ds.byName[p.Name] = p
		c := ds.components[p.ComponentIndex]
		c.properties = append(c.properties, i)
	}

	headerRefs, err := rs.refs(SectionHTTPHeaders, 0, rs.count(SectionHTTPHeaders))
	if err != nil {
		return err
	}
	ds.headers = make([]string, len(headerRefs))
	for i, off := range headerRefs {
		if ds.headers[i], err = ds.store.str(off); err != nil {
			return err
		}
	}

	if ds.keys, err = rs.refs(SectionSignatureKeys, 0, rs.count(SectionSignatureKeys)); err != nil {
		return err
	}
	for _, k := range ds.keys {
		if k < 0 || k >= rs.count(SectionSignatures) {
			return fmt.Errorf("%w: signature key index references signature %d", ErrCorrupt, k)
		}
	}
	return nil
}

// Info returns the dataset metadata.
func (ds *Dataset) Info() Info { return ds.info }

// Name returns the name of the source the dataset was loaded from.
func (ds *Dataset) Name() string { return ds.source }

func (ds *Dataset) Mode() Mode { return ds.info.Mode }

// Components returns the components in device-id slot order.
func (ds *Dataset) Components() []*Component { return ds.components }

// Component returns the component at index i, or nil.
func (ds *Dataset) Component(i int) *Component {
	if i < 0 || i >= len(ds.components) {
		return nil
	}
	return ds.components[i]
}

func (ds *Dataset) Properties() []*Property { return ds.properties }

// Property returns the property with the given name, or nil.
func (ds *Dataset) Property(name string) *Property { return ds.byName[name] }

// HTTPHeaders returns the header names that carry detection signals, most
// significant first.
func (ds *Dataset) HTTPHeaders() []string { return ds.headers }

func (ds *Dataset) ProfileCount() int { return len(ds.offsets) }

// ProfileAt returns the i'th profile in (component, id) order.
func (ds *Dataset) ProfileAt(i int) (*Profile, error) {
	if i < 0 || i >= len(ds.offsets) {
		return nil, fmt.Errorf("profile index %d out of range [0,%d)", i, len(ds.offsets))
	}
	return ds.profileAt(int32(i))
}

func (ds *Dataset) profileAt(i int32) (*Profile, error) {
	if ds.closed.Load() {
		return nil, ErrClosed
	}
	p, err := ds.store.profile(i)
	if err != nil {
		return nil, err
	}
	if int32(p.ComponentIndex) != ds.componentOf[i] {
		return nil, fmt.Errorf("%w: profile %d stored under component %d belongs to component %d",
			ErrCorrupt, p.ID, ds.componentOf[i], p.ComponentIndex)
	}
	return p, nil
}

// FindProfile returns the profile with the given id. It returns nil and no
// error when no profile has that id.
func (ds *Dataset) FindProfile(id int32) (*Profile, error) {
	if ds.closed.Load() {
		return nil, ErrClosed
	}
	if id <= 0 {
		return nil, nil
	}
	for _, c := range ds.components {
		if i, ok := ds.searchComponent(c, id); ok {
			return ds.profileAt(i)
		}
	}
	return nil, nil
}

// FindComponentProfile looks for id among the profiles of component c only.
func (ds *Dataset) FindComponentProfile(c *Component, id int32) (*Profile, error) {
	if ds.closed.Load() {
		return nil, ErrClosed
	}
	if c == nil || id <= 0 {
		return nil, nil
	}
	if i, ok := ds.searchComponent(c, id); ok {
		return ds.profileAt(i)
	}
	return nil, nil
}

func (ds *Dataset) searchComponent(c *Component, id int32) (int32, bool) {
	lo, hi := int(c.firstProfile), int(c.firstProfile+c.profileCount)
	i, ok := slices.BinarySearchFunc(ds.offsets[lo:hi], id, func(po profileOffset, id int32) int {
		return cmp.Compare(po.id, id)
	})
	return int32(lo + i), ok
}

// ComponentProfiles returns every profile of component c in id order.
func (ds *Dataset) ComponentProfiles(c *Component) ([]*Profile, error) {
	out := make([]*Profile, 0, c.profileCount)
	for i := c.firstProfile; i < c.firstProfile+c.profileCount; i++ {
		p, err := ds.profileAt(i)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (ds *Dataset) SignatureCount() int { return ds.info.Signatures }

// Signature returns the signature at index i.
func (ds *Dataset) Signature(i int) (*Signature, error) {
	if ds.closed.Load() {
		return nil, ErrClosed
	}
	if i < 0 || i >= ds.info.Signatures {
		return nil, fmt.Errorf("signature index %d out of range [0,%d)", i, ds.info.Signatures)
	}
	return ds.store.signature(int32(i))
}

// SignatureByKey returns the signature whose key equals key, or nil.
func (ds *Dataset) SignatureByKey(key string) (*Signature, error) {
	if ds.closed.Load() {
		return nil, ErrClosed
	}
	var searchErr error
	i := sort.Search(len(ds.keys), func(i int) bool {
		if searchErr != nil {
			return true
		}
		s, err := ds.store.signature(ds.keys[i])
		if err != nil {
			searchErr = err
			return true
		}
		return s.Key >= key
	})
	if searchErr != nil {
		return nil, searchErr
	}
	if i == len(ds.keys) {
		return nil, nil
	}
	s, err := ds.store.signature(ds.keys[i])
	if err != nil {
		return nil, err
	}
	if s.Key != key {
		return nil, nil
	}
	return s, nil
}

// SignatureProfiles resolves the profile ids of s. The result has one entry
// per component; entries for unresolved components are nil.
func (ds *Dataset) SignatureProfiles(s *Signature) ([]*Profile, error) {
	out := make([]*Profile, len(ds.components))
	for c, id := range s.ProfileIDs {
		if c >= len(out) {
			break
		}
		p, err := ds.FindComponentProfile(ds.components[c], id)
		if err != nil {
			return nil, err
		}
		out[c] = p
	}
	return out, nil
}

// SignatureValues returns the values of every property the signature's
// profiles supply, sorted by property name. Properties without values are
// left out.
func (ds *Dataset) SignatureValues(s *Signature) ([]PropertyValues, error) {
	profiles, err := ds.SignatureProfiles(s)
	if err != nil {
		return nil, err
	}
	var out []PropertyValues
	for _, p := range profiles {
		if p == nil {
			continue
		}
		pv, err := ds.ProfileValues(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pv...)
	}
	slices.SortFunc(out, func(a, b PropertyValues) int {
		return cmp.Compare(a.Property, b.Property)
	})
	return out, nil
}

// Values returns the values profile p supplies for property prop. The result
// is empty, not nil, when p belongs to another component or has no value
// for prop.
func (ds *Dataset) Values(p *Profile, prop *Property) (Values, error) {
	if ds.closed.Load() {
		return nil, ErrClosed
	}
	out := Values{}
	if p == nil || prop == nil || p.ComponentIndex != prop.ComponentIndex {
		return out, nil
	}
	start, _ := slices.BinarySearch(p.ValueIndices, prop.firstValue)
	for _, vi := range p.ValueIndices[start:] {
		if !prop.owns(vi) {
			break
		}
		v, err := ds.store.value(vi)
		if err != nil {
			return nil, err
		}
		if v.PropertyIndex != prop.Index {
			return nil, fmt.Errorf("%w: value %d is in the range of property %q but names property %d",
				ErrCorrupt, vi, prop.Name, v.PropertyIndex)
		}
		out = append(out, v)
	}
	return out, nil
}

// ProfileValues returns the values of every property of p's component that
// has at least one value, in property order.
func (ds *Dataset) ProfileValues(p *Profile) ([]PropertyValues, error) {
	c := ds.Component(p.ComponentIndex)
	if c == nil {
		return nil, fmt.Errorf("%w: profile %d references component %d", ErrCorrupt, p.ID, p.ComponentIndex)
	}
	var out []PropertyValues
	for _, pi := range c.properties {
		prop := ds.properties[pi]
		vs, err := ds.Values(p, prop)
		if err != nil {
			return nil, err
		}
		if len(vs) > 0 {
			out = append(out, PropertyValues{Property: prop.Name, Values: vs.Strings()})
		}
	}
	return out, nil
}

func (ds *Dataset) NodeCount() int { return ds.info.Nodes }

// Node returns the node at index i.
func (ds *Dataset) Node(i int) (*Node, error) {
	if ds.closed.Load() {
		return nil, ErrClosed
	}
	if i < 0 || i >= ds.info.Nodes {
		return nil, fmt.Errorf("node index %d out of range [0,%d)", i, ds.info.Nodes)
	}
	return ds.store.node(int32(i))
}

// FindNode returns the node anchored at position with the given text, or nil.
func (ds *Dataset) FindNode(position int32, text string) (*Node, error) {
	if ds.closed.Load() {
		return nil, ErrClosed
	}
	var searchErr error
	i := sort.Search(ds.info.Nodes, func(i int) bool {
		if searchErr != nil {
			return true
		}
		n, err := ds.store.node(int32(i))
		if err != nil {
			searchErr = err
			return true
		}
		if n.Position != position {
			return n.Position > position
		}
		return n.Text >= text
	})
	if searchErr != nil {
		return nil, searchErr
	}
	if i == ds.info.Nodes {
		return nil, nil
	}
	n, err := ds.store.node(int32(i))
	if err != nil {
		return nil, err
	}
	if n.Position != position || n.Text != text {
		return nil, nil
	}
	return n, nil
}

// CacheStats returns per-kind cache statistics in stream mode and nil in
// memory mode.
func (ds *Dataset) CacheStats() map[string]cache.Snapshot {
	return ds.store.cacheStats()
}

func (ds *Dataset) IsClosed() bool { return ds.closed.Load() }

// Close releases the dataset. In stream mode it waits for reads already in
// progress. Close is idempotent.
func (ds *Dataset) Close() error {
	if !ds.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := ds.store.close()
	ds.logger.LogAttrs(context.Background(), slog.LevelInfo, "dataset closed",
		logger.DataFile(ds.source),
		logger.Mode(ds.info.Mode.String()),
		logger.Error(err),
	)
	return err
}
