// Package datasettest encodes small synthetic data files for tests.
//
// A Builder collects components, properties, profiles and signatures in
// memory and lays them out in the binary format read by package dataset.
// Signature keys and nodes are derived from the User-Agent passed to
// Signature using the same normalization the matcher applies.
package datasettest

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/useragent"
)

type component struct {
	name string
}

type property struct {
	name      string
	component int
	typ       dataset.ValueType
	mandatory bool
	list      bool
	values    []string
}

type profile struct {
	component int
	id        int32
	values    map[string][]string
}

type signature struct {
	key   string
	rank  int32
	ids   []int32
	nodes []useragent.Node
}

// Builder assembles a dataset. The zero value is not usable; call New.
type Builder struct {
	name       string
	published  time.Time
	nextUpdate time.Time
	headers    []string
	components []component
	properties []*property
	profiles   []profile
	signatures []signature
	err        error
}

// New returns a Builder with the User-Agent header registered.
func New() *Builder {
	return &Builder{
		name:      "test",
		published: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		headers:   []string{"User-Agent"},
	}
}

// Name sets the dataset name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Published sets the publication and next update times.
func (b *Builder) Published(published, nextUpdate time.Time) *Builder {
	b.published, b.nextUpdate = published, nextUpdate
	return b
}

// Headers replaces the list of HTTP header names, most significant first.
func (b *Builder) Headers(names ...string) *Builder {
	b.headers = names
	return b
}

// Component adds a component and returns its index.
func (b *Builder) Component(name string) int {
	b.components = append(b.components, component{name: name})
	return len(b.components) - 1
}

// Property adds a string property owned by component c.
func (b *Builder) Property(c int, name string, mandatory bool) *Builder {
	return b.TypedProperty(c, name, dataset.TypeString, mandatory, false)
}

// TypedProperty adds a property with an explicit value type.
func (b *Builder) TypedProperty(c int, name string, typ dataset.ValueType, mandatory, list bool) *Builder {
	if c < 0 || c >= len(b.components) {
		b.fail(fmt.Errorf("property %q: unknown component %d", name, c))
		return b
	}
	b.properties = append(b.properties, &property{
		name:      name,
		component: c,
		typ:       typ,
		mandatory: mandatory,
		list:      list,
	})
	return b
}

// Profile adds a profile to component c. values maps property names to the
// values the profile supplies, in order.
func (b *Builder) Profile(c int, id int32, values map[string][]string) *Builder {
	if c < 0 || c >= len(b.components) {
		b.fail(fmt.Errorf("profile %d: unknown component %d", id, c))
		return b
	}
	if id <= 0 {
		b.fail(fmt.Errorf("profile id %d must be positive", id))
		return b
	}
	b.profiles = append(b.profiles, profile{component: c, id: id, values: values})
	return b
}

// Signature adds a signature for userAgent resolving to one profile id per
// component, in component order. Missing trailing ids are treated as 0.
func (b *Builder) Signature(userAgent string, rank int32, ids ...int32) *Builder {
	key := useragent.Normalize(userAgent)
	if key == "" {
		b.fail(fmt.Errorf("signature %q normalizes to an empty key", userAgent))
		return b
	}
	b.signatures = append(b.signatures, signature{
		key:   key,
		rank:  rank,
		ids:   ids,
		nodes: useragent.Nodes(key),
	})
	return b
}

func (b *Builder) fail(err error) {
	b.err = errors.Join(b.err, err)
}

// MustBuild is Build that panics on error.
func (b *Builder) MustBuild() []byte {
	data, err := b.Build()
	if err != nil {
		panic(err)
	}
	return data
}

// WriteFile builds the dataset and writes it to name inside dir.
func (b *Builder) WriteFile(dir, name string) (string, error) {
	data, err := b.Build()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Build encodes the dataset.
func (b *Builder) Build() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.components) == 0 {
		return nil, errors.New("dataset needs at least one component")
	}

	e := newEncoder()
	var h dataset.Header
	h.Major, h.Minor = dataset.VersionMajor, dataset.VersionMinor
	h.Published = unix(b.published)
	h.NextUpdate = unix(b.nextUpdate)
	h.NameOffset = e.intern(b.name)

	props := make(map[string]int, len(b.properties))
	for i, p := range b.properties {
		if _, dup := props[p.name]; dup {
			return nil, fmt.Errorf("duplicate property %q", p.name)
		}
		props[p.name] = i
		p.values = p.values[:0]
	}

	// Profiles are stored by (component, id); values are numbered per
	// property in first-seen order.
	profiles := slices.Clone(b.profiles)
	slices.SortStableFunc(profiles, func(a, c profile) int {
		if n := cmp.Compare(a.component, c.component); n != 0 {
			return n
		}
		return cmp.Compare(a.id, c.id)
	})
	seen := make(map[int32]bool, len(profiles))
	for _, p := range profiles {
		if seen[p.id] {
			return nil, fmt.Errorf("duplicate profile id %d", p.id)
		}
		seen[p.id] = true
		for _, name := range sortedKeys(p.values) {
			pi, ok := props[name]
			if !ok {
				return nil, fmt.Errorf("profile %d: unknown property %q", p.id, name)
			}
			prop := b.properties[pi]
			if prop.component != p.component {
				return nil, fmt.Errorf("profile %d: property %q belongs to another component", p.id, name)
			}
			for _, v := range p.values[name] {
				if !slices.Contains(prop.values, v) {
					prop.values = append(prop.values, v)
				}
			}
		}
	}

	firstValue := make([]int32, len(b.properties))
	var valueCount int32
	for i, p := range b.properties {
		firstValue[i] = valueCount
		valueCount += int32(len(p.values))
	}

	sigsByProfile := make(map[int32][]int32)
	for si, s := range b.signatures {
		if len(s.ids) > len(b.components) {
			return nil, fmt.Errorf("signature %q has %d ids for %d components", s.key, len(s.ids), len(b.components))
		}
		for _, id := range s.ids {
			if id > 0 {
				sigsByProfile[id] = append(sigsByProfile[id], int32(si))
			}
		}
	}

	// Nodes are shared between signatures and stored by (position, text).
	var nodes []useragent.Node
	for _, s := range b.signatures {
		for _, n := range s.nodes {
			if !slices.Contains(nodes, n) {
				nodes = append(nodes, n)
			}
		}
	}
	slices.SortFunc(nodes, useragent.Compare)
	nodeIndex := func(n useragent.Node) int32 {
		i, _ := slices.BinarySearchFunc(nodes, n, useragent.Compare)
		return int32(i)
	}

	var sections [dataset.SectionCount]section

	// Components.
	var sec section
	next := int32(0)
	for ci, c := range b.components {
		var n, def int32
		for _, p := range profiles {
			if p.component == ci {
				if n == 0 {
					def = p.id
				}
				n++
			}
		}
		sec.put(e.intern(c.name), next, n, def)
		next += n
	}
	sections[dataset.SectionComponents] = sec

	// Properties.
	sec = section{}
	for i, p := range b.properties {
		sec.put(e.intern(p.name), dataset.NoString, dataset.NoString, int32(p.component))
		sec.bytes(byte(p.typ), boolByte(p.mandatory), boolByte(p.list), 0)
		sec.put(firstValue[i], int32(len(p.values)))
	}
	sections[dataset.SectionProperties] = sec

	// Values.
	sec = section{}
	for i, p := range b.properties {
		for _, v := range p.values {
			sec.put(int32(i), e.intern(v), 0)
		}
	}
	sections[dataset.SectionValues] = sec

	// Profiles and their offsets.
	var profSec, offSec section
	for _, p := range profiles {
		var valueIdx []int32
		for name, vs := range p.values {
			pi := props[name]
			for _, v := range vs {
				valueIdx = append(valueIdx, firstValue[pi]+int32(slices.Index(b.properties[pi].values, v)))
			}
		}
		slices.Sort(valueIdx)
		valueIdx = slices.Compact(valueIdx)
		sigs := sigsByProfile[p.id]

		offSec.put(p.id, int32(len(profSec.data)))
		profSec.put(int32(p.component), p.id, int32(len(valueIdx)), int32(len(sigs)))
		profSec.put(valueIdx...)
		profSec.put(sigs...)
	}
	sections[dataset.SectionProfiles] = profSec
	sections[dataset.SectionProfileOffsets] = offSec

	// Signatures, their node references and the key index.
	var sigSec, sigNodes section
	for _, s := range b.signatures {
		ids := make([]int32, len(b.components))
		copy(ids, s.ids)
		first := sigNodes.refs()
		for _, n := range s.nodes {
			sigNodes.put(nodeIndex(n))
		}
		sigSec.put(s.rank, e.intern(s.key), first, int32(len(s.nodes)), int32(useragent.CharCount(s.nodes)))
		sigSec.put(ids...)
	}
	sections[dataset.SectionSignatures] = sigSec
	sections[dataset.SectionSignatureNodeRefs] = sigNodes

	keys := make([]int32, len(b.signatures))
	for i := range keys {
		keys[i] = int32(i)
	}
	slices.SortFunc(keys, func(a, c int32) int {
		return cmp.Compare(b.signatures[a].key, b.signatures[c].key)
	})
	for i := 1; i < len(keys); i++ {
		if b.signatures[keys[i]].key == b.signatures[keys[i-1]].key {
			return nil, fmt.Errorf("duplicate signature key %q", b.signatures[keys[i]].key)
		}
	}
	sec = section{}
	sec.put(keys...)
	sections[dataset.SectionSignatureKeys] = sec

	// Nodes and their signature references.
	var nodeSec, nodeSigs section
	for _, n := range nodes {
		var refs []int32
		for si, s := range b.signatures {
			if slices.Contains(s.nodes, n) {
				refs = append(refs, int32(si))
			}
		}
		nodeSec.put(int32(n.Position), e.intern(n.Text), nodeSigs.refs(), int32(len(refs)))
		nodeSigs.put(refs...)
	}
	sections[dataset.SectionNodes] = nodeSec
	sections[dataset.SectionNodeSignatureRefs] = nodeSigs

	sec = section{}
	for _, name := range b.headers {
		sec.put(e.intern(name))
	}
	sections[dataset.SectionHTTPHeaders] = sec

	sizes := map[dataset.SectionID]int{
		dataset.SectionComponents:        dataset.ComponentRecordSize,
		dataset.SectionProperties:        dataset.PropertyRecordSize,
		dataset.SectionValues:            dataset.ValueRecordSize,
		dataset.SectionProfileOffsets:    dataset.ProfileOffsetRecordSize,
		dataset.SectionSignatures:        dataset.SignatureRecordSize(len(b.components)),
		dataset.SectionSignatureNodeRefs: dataset.RefRecordSize,
		dataset.SectionSignatureKeys:     dataset.RefRecordSize,
		dataset.SectionNodes:             dataset.NodeRecordSize,
		dataset.SectionNodeSignatureRefs: dataset.RefRecordSize,
		dataset.SectionHTTPHeaders:       dataset.RefRecordSize,
	}
	for id, size := range sizes {
		sections[id].count = int32(len(sections[id].data) / size)
	}
	sections[dataset.SectionProfiles].count = int32(len(profiles))
	sections[dataset.SectionStrings] = section{data: e.strings, count: e.count}

	out := make([]byte, dataset.HeaderSize)
	for id := range sections {
		h.Sections[id] = dataset.Section{
			Offset: uint32(len(out)),
			Length: uint32(len(sections[id].data)),
			Count:  uint32(sections[id].count),
		}
		out = append(out, sections[id].data...)
	}
	hb, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	copy(out, hb)
	return out, nil
}

type section struct {
	data  []byte
	count int32
}

func (s *section) put(vs ...int32) {
	for _, v := range vs {
		s.data = dataset.ByteOrder.AppendUint32(s.data, uint32(v))
	}
}

// refs returns the number of 4-byte references written so far.
func (s *section) refs() int32 {
	return int32(len(s.data) / dataset.RefRecordSize)
}

func (s *section) bytes(bs ...byte) {
	s.data = append(s.data, bs...)
}

type encoder struct {
	strings []byte
	offsets map[string]int32
	count   int32
}

func newEncoder() *encoder {
	return &encoder{offsets: make(map[string]int32)}
}

// intern returns the offset of s, appending it on first use.
func (e *encoder) intern(s string) int32 {
	if off, ok := e.offsets[s]; ok {
		return off
	}
	off := int32(len(e.strings))
	e.strings = dataset.ByteOrder.AppendUint16(e.strings, uint16(len(s)))
	e.strings = append(e.strings, s...)
	e.offsets[s] = off
	e.count++
	return off
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
