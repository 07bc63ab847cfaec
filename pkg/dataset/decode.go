package dataset

import (
	"fmt"
	"io"
)

// records decodes individual entities from a payload. It holds no state
// besides the reader and the validated header, so one instance is shared
// by every goroutine reading the dataset.
type records struct {
	r          io.ReaderAt
	h          *Header
	components int
	sigSize    int
}

func newRecords(r io.ReaderAt, h *Header) *records {
	components := int(h.Sections[SectionComponents].Count)
	return &records{
		r:          r,
		h:          h,
		components: components,
		sigSize:    SignatureRecordSize(components),
	}
}

func (rs *records) count(id SectionID) int32 {
	return int32(rs.h.Sections[id].Count)
}

// read returns n bytes starting at off within section id.
func (rs *records) read(id SectionID, off int64, n int) ([]byte, error) {
	sec := rs.h.Sections[id]
	if off < 0 || n < 0 || off+int64(n) > int64(sec.Length) {
		return nil, fmt.Errorf("%w: %s read of %d bytes at %d exceeds section length %d",
			ErrCorrupt, id, n, off, sec.Length)
	}

	buf := make([]byte, n)
	if n == 0 {
		return buf, nil
	}
	got, err := rs.r.ReadAt(buf, int64(sec.Offset)+off)
	if got == n {
		return buf, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("%w: %s at %d: %w", ErrSourceRead, id, off, err)
}

func (rs *records) record(id SectionID, i int32, size int) ([]byte, error) {
	if i < 0 || i >= rs.count(id) {
		return nil, fmt.Errorf("%w: %s index %d out of range [0,%d)", ErrCorrupt, id, i, rs.count(id))
	}
	return rs.read(id, int64(i)*int64(size), size)
}

func i32(b []byte, o int) int32 {
	return int32(ByteOrder.Uint32(b[o:]))
}

// rawString reads the string at off and returns it with its encoded size.
func (rs *records) rawString(off int32) (string, int, error) {
	if off == NoString {
		return "", 0, nil
	}
	hdr, err := rs.read(SectionStrings, int64(off), StringHeaderSize)
	if err != nil {
		return "", 0, err
	}
	n := int(ByteOrder.Uint16(hdr))
	body, err := rs.read(SectionStrings, int64(off)+StringHeaderSize, n)
	if err != nil {
		return "", 0, err
	}
	return string(body), StringHeaderSize + n, nil
}

type componentRecord struct {
	name             int32
	firstProfile     int32
	profileCount     int32
	defaultProfileID int32
}

func (rs *records) rawComponent(i int32) (componentRecord, error) {
	b, err := rs.record(SectionComponents, i, ComponentRecordSize)
	if err != nil {
		return componentRecord{}, err
	}
	rec := componentRecord{
		name:             i32(b, 0),
		firstProfile:     i32(b, 4),
		profileCount:     i32(b, 8),
		defaultProfileID: i32(b, 12),
	}
	if rec.firstProfile < 0 || rec.profileCount < 0 ||
		int64(rec.firstProfile)+int64(rec.profileCount) > int64(rs.count(SectionProfileOffsets)) {
		return componentRecord{}, fmt.Errorf("%w: component %d profile range [%d,+%d) out of bounds",
			ErrCorrupt, i, rec.firstProfile, rec.profileCount)
	}
	return rec, nil
}

type propertyRecord struct {
	name        int32
	description int32
	category    int32
	component   int32
	valueType   ValueType
	mandatory   bool
	list        bool
	firstValue  int32
	valueCount  int32
}

func (rs *records) rawProperty(i int32) (propertyRecord, error) {
	b, err := rs.record(SectionProperties, i, PropertyRecordSize)
	if err != nil {
		return propertyRecord{}, err
	}
	rec := propertyRecord{
		name:        i32(b, 0),
		description: i32(b, 4),
		category:    i32(b, 8),
		component:   i32(b, 12),
		valueType:   ValueType(b[16]),
		mandatory:   b[17] != 0,
		list:        b[18] != 0,
		firstValue:  i32(b, 20),
		valueCount:  i32(b, 24),
	}
	if rec.component < 0 || rec.component >= rs.count(SectionComponents) {
		return propertyRecord{}, fmt.Errorf("%w: property %d references component %d", ErrCorrupt, i, rec.component)
	}
	if rec.valueType > TypeFloat {
		return propertyRecord{}, fmt.Errorf("%w: property %d has unknown value type %d", ErrCorrupt, i, rec.valueType)
	}
	if rec.firstValue < 0 || rec.valueCount < 0 ||
		int64(rec.firstValue)+int64(rec.valueCount) > int64(rs.count(SectionValues)) {
		return propertyRecord{}, fmt.Errorf("%w: property %d value range [%d,+%d) out of bounds",
			ErrCorrupt, i, rec.firstValue, rec.valueCount)
	}
	return rec, nil
}

type profileOffset struct {
	id     int32
	offset int32
}

func (rs *records) rawProfileOffsets() ([]profileOffset, error) {
	n := rs.count(SectionProfileOffsets)
	b, err := rs.read(SectionProfileOffsets, 0, int(n)*ProfileOffsetRecordSize)
	if err != nil {
		return nil, err
	}
	out := make([]profileOffset, n)
	for i := range out {
		out[i] = profileOffset{
			id:     i32(b, i*ProfileOffsetRecordSize),
			offset: i32(b, i*ProfileOffsetRecordSize+4),
		}
		if out[i].id <= 0 {
			return nil, fmt.Errorf("%w: profile offset %d has invalid id %d", ErrCorrupt, i, out[i].id)
		}
	}
	return out, nil
}

// profile decodes the profile stored at po.
func (rs *records) profile(po profileOffset) (*Profile, error) {
	b, err := rs.read(SectionProfiles, int64(po.offset), ProfileHeaderSize)
	if err != nil {
		return nil, err
	}
	component, id := i32(b, 0), i32(b, 4)
	valueCount, signatureCount := i32(b, 8), i32(b, 12)
	if id != po.id {
		return nil, fmt.Errorf("%w: profile at %d has id %d, index says %d", ErrCorrupt, po.offset, id, po.id)
	}
	if component < 0 || component >= rs.count(SectionComponents) {
		return nil, fmt.Errorf("%w: profile %d references component %d", ErrCorrupt, id, component)
	}
	if valueCount < 0 || signatureCount < 0 {
		return nil, fmt.Errorf("%w: profile %d has negative counts", ErrCorrupt, id)
	}

	body, err := rs.read(SectionProfiles, int64(po.offset)+ProfileHeaderSize, int(valueCount+signatureCount)*RefRecordSize)
	if err != nil {
		return nil, err
	}
	p := &Profile{
		ID:               id,
		ComponentIndex:   int(component),
		ValueIndices:     decodeRefs(body[:valueCount*RefRecordSize]),
		SignatureIndices: decodeRefs(body[valueCount*RefRecordSize:]),
	}
	for i, v := range p.ValueIndices {
		if v < 0 || v >= rs.count(SectionValues) || (i > 0 && v <= p.ValueIndices[i-1]) {
			return nil, fmt.Errorf("%w: profile %d value list is not ascending or out of range", ErrCorrupt, id)
		}
	}
	return p, nil
}

func decodeRefs(b []byte) []int32 {
	out := make([]int32, len(b)/RefRecordSize)
	for i := range out {
		out[i] = i32(b, i*RefRecordSize)
	}
	return out
}

func (rs *records) refs(id SectionID, first, count int32) ([]int32, error) {
	if first < 0 || count < 0 || int64(first)+int64(count) > int64(rs.count(id)) {
		return nil, fmt.Errorf("%w: %s range [%d,+%d) out of bounds", ErrCorrupt, id, first, count)
	}
	b, err := rs.read(id, int64(first)*RefRecordSize, int(count)*RefRecordSize)
	if err != nil {
		return nil, err
	}
	return decodeRefs(b), nil
}

// strFunc resolves a string offset. The memory and stream stores supply
// their own so decoded entities share one string table or cache.
type strFunc func(off int32) (string, error)

func (rs *records) value(i int32, str strFunc) (*Value, error) {
	b, err := rs.record(SectionValues, i, ValueRecordSize)
	if err != nil {
		return nil, err
	}
	property := i32(b, 0)
	if property < 0 || property >= rs.count(SectionProperties) {
		return nil, fmt.Errorf("%w: value %d references property %d", ErrCorrupt, i, property)
	}
	name, err := str(i32(b, 4))
	if err != nil {
		return nil, err
	}
	return &Value{
		Index:         i,
		PropertyIndex: int(property),
		Name:          name,
		Weight:        i32(b, 8),
	}, nil
}

func (rs *records) signature(i int32, str strFunc) (*Signature, error) {
	b, err := rs.record(SectionSignatures, i, rs.sigSize)
	if err != nil {
		return nil, err
	}
	key, err := str(i32(b, 4))
	if err != nil {
		return nil, err
	}
	nodes, err := rs.refs(SectionSignatureNodeRefs, i32(b, 8), i32(b, 12))
	if err != nil {
		return nil, err
	}

	ids := make([]int32, rs.components)
	for c := range ids {
		ids[c] = i32(b, SignatureHeaderSize+c*4)
		if ids[c] < 0 {
			return nil, fmt.Errorf("%w: signature %d has negative profile id", ErrCorrupt, i)
		}
	}
	return &Signature{
		Index:       i,
		Rank:        i32(b, 0),
		Key:         key,
		NodeIndices: nodes,
		NodeChars:   i32(b, 16),
		ProfileIDs:  ids,
	}, nil
}

func (rs *records) node(i int32, str strFunc) (*Node, error) {
	b, err := rs.record(SectionNodes, i, NodeRecordSize)
	if err != nil {
		return nil, err
	}
	text, err := str(i32(b, 4))
	if err != nil {
		return nil, err
	}
	sigs, err := rs.refs(SectionNodeSignatureRefs, i32(b, 8), i32(b, 12))
	if err != nil {
		return nil, err
	}
	for _, s := range sigs {
		if s < 0 || s >= rs.count(SectionSignatures) {
			return nil, fmt.Errorf("%w: node %d references signature %d", ErrCorrupt, i, s)
		}
	}
	return &Node{
		Index:            i,
		Position:         i32(b, 0),
		Text:             text,
		SignatureIndices: sigs,
	}, nil
}
