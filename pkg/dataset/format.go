package dataset

import (
	"encoding/binary"
	"fmt"
)

// Magic identifies a device detection data file.
const Magic = "DDSF"

// Supported format version.
const (
	VersionMajor = 3
	VersionMinor = 2
)

// ByteOrder is the byte order of every integer in a data file.
var ByteOrder = binary.LittleEndian

// SectionID names one region of a data file.
type SectionID int

const (
	SectionStrings SectionID = iota
	SectionComponents
	SectionProperties
	SectionValues
	SectionProfiles
	SectionProfileOffsets
	SectionSignatures
	SectionSignatureNodeRefs
	SectionSignatureKeys
	SectionNodes
	SectionNodeSignatureRefs
	SectionHTTPHeaders

	SectionCount
)

var sectionNames = [SectionCount]string{
	"strings",
	"components",
	"properties",
	"values",
	"profiles",
	"profile offsets",
	"signatures",
	"signature node refs",
	"signature keys",
	"nodes",
	"node signature refs",
	"http headers",
}

func (s SectionID) String() string {
	if s < 0 || s >= SectionCount {
		return fmt.Sprintf("section(%d)", int(s))
	}
	return sectionNames[s]
}

// Record sizes in bytes. Profiles and strings are variable length; a
// signature record grows by four bytes per component.
const (
	ComponentRecordSize     = 16
	PropertyRecordSize      = 28
	ValueRecordSize         = 12
	ProfileHeaderSize       = 16
	ProfileOffsetRecordSize = 8
	SignatureHeaderSize     = 20
	NodeRecordSize          = 16
	RefRecordSize           = 4
	StringHeaderSize        = 2
)

// HeaderSize is the fixed size of the file header.
const HeaderSize = 32 + int(SectionCount)*12

// NoString marks an absent string reference.
const NoString int32 = -1

// SignatureRecordSize returns the size of one signature record in a
// dataset with the given number of components.
func SignatureRecordSize(components int) int {
	return SignatureHeaderSize + 4*components
}

// Section locates one region of the payload. Offset is absolute, Length is
// in bytes and Count is the number of records it holds.
type Section struct {
	Offset uint32
	Length uint32
	Count  uint32
}

// Header is the fixed-size preamble of a data file.
type Header struct {
	Major      uint16
	Minor      uint16
	Flags      uint32
	Published  int64
	NextUpdate int64
	NameOffset int32
	Sections   [SectionCount]Section
}

// MarshalBinary encodes the header in file layout.
func (h Header) MarshalBinary() ([]byte, error) {
	b := make([]byte, HeaderSize)
	copy(b[0:4], Magic)
	ByteOrder.PutUint16(b[4:], h.Major)
	ByteOrder.PutUint16(b[6:], h.Minor)
	ByteOrder.PutUint32(b[8:], h.Flags)
	ByteOrder.PutUint64(b[12:], uint64(h.Published))
	ByteOrder.PutUint64(b[20:], uint64(h.NextUpdate))
	ByteOrder.PutUint32(b[28:], uint32(h.NameOffset))
	for i, s := range h.Sections {
		o := 32 + i*12
		ByteOrder.PutUint32(b[o:], s.Offset)
		ByteOrder.PutUint32(b[o+4:], s.Length)
		ByteOrder.PutUint32(b[o+8:], s.Count)
	}
	return b, nil
}

// UnmarshalBinary decodes a header and checks the magic and version.
// Section bounds are checked separately by Validate.
func (h *Header) UnmarshalBinary(b []byte) error {
	if len(b) < HeaderSize {
		return fmt.Errorf("%w: header is %d bytes, need %d", ErrCorrupt, len(b), HeaderSize)
	}
	if string(b[0:4]) != Magic {
		return fmt.Errorf("%w: bad magic %q", ErrCorrupt, b[0:4])
	}

	h.Major = ByteOrder.Uint16(b[4:])
	h.Minor = ByteOrder.Uint16(b[6:])
	if h.Major != VersionMajor || h.Minor != VersionMinor {
		return fmt.Errorf("%w: %d.%d (supported %d.%d)", ErrUnsupportedVersion, h.Major, h.Minor, VersionMajor, VersionMinor)
	}

	h.Flags = ByteOrder.Uint32(b[8:])
	h.Published = int64(ByteOrder.Uint64(b[12:]))
	h.NextUpdate = int64(ByteOrder.Uint64(b[20:]))
	h.NameOffset = int32(ByteOrder.Uint32(b[28:]))
	for i := range h.Sections {
		o := 32 + i*12
		h.Sections[i] = Section{
			Offset: ByteOrder.Uint32(b[o:]),
			Length: ByteOrder.Uint32(b[o+4:]),
			Count:  ByteOrder.Uint32(b[o+8:]),
		}
	}
	return nil
}

// Validate checks that every section lies inside a payload of size bytes and
// that each fixed-size section holds exactly Count records.
func (h *Header) Validate(size int64) error {
	for id := SectionID(0); id < SectionCount; id++ {
		s := h.Sections[id]
		if s.Length > 0 && int64(s.Offset) < int64(HeaderSize) {
			return fmt.Errorf("%w: %s section overlaps the header", ErrCorrupt, id)
		}
		if int64(s.Offset)+int64(s.Length) > size {
			return fmt.Errorf("%w: %s section ends at %d beyond payload size %d",
				ErrCorrupt, id, int64(s.Offset)+int64(s.Length), size)
		}
	}

	components := int(h.Sections[SectionComponents].Count)
	if components == 0 {
		return fmt.Errorf("%w: dataset declares no components", ErrCorrupt)
	}

	fixed := []struct {
		id   SectionID
		size int
	}{
		{SectionComponents, ComponentRecordSize},
		{SectionProperties, PropertyRecordSize},
		{SectionValues, ValueRecordSize},
		{SectionProfileOffsets, ProfileOffsetRecordSize},
		{SectionSignatures, SignatureRecordSize(components)},
		{SectionSignatureNodeRefs, RefRecordSize},
		{SectionSignatureKeys, RefRecordSize},
		{SectionNodes, NodeRecordSize},
		{SectionNodeSignatureRefs, RefRecordSize},
		{SectionHTTPHeaders, RefRecordSize},
	}
	for _, f := range fixed {
		s := h.Sections[f.id]
		if int64(s.Length) != int64(s.Count)*int64(f.size) {
			return fmt.Errorf("%w: %s section declares %d records of %d bytes but holds %d bytes",
				ErrCorrupt, f.id, s.Count, f.size, s.Length)
		}
	}

	if h.Sections[SectionSignatureKeys].Count != h.Sections[SectionSignatures].Count {
		return fmt.Errorf("%w: signature key index holds %d entries for %d signatures",
			ErrCorrupt, h.Sections[SectionSignatureKeys].Count, h.Sections[SectionSignatures].Count)
	}
	if h.Sections[SectionProfiles].Count != h.Sections[SectionProfileOffsets].Count {
		return fmt.Errorf("%w: %d profiles but %d profile offsets",
			ErrCorrupt, h.Sections[SectionProfiles].Count, h.Sections[SectionProfileOffsets].Count)
	}
	if int64(h.Sections[SectionProfiles].Length) < int64(h.Sections[SectionProfiles].Count)*ProfileHeaderSize {
		return fmt.Errorf("%w: profiles section too short for %d profiles", ErrCorrupt, h.Sections[SectionProfiles].Count)
	}
	if int64(h.Sections[SectionStrings].Length) < int64(h.Sections[SectionStrings].Count)*StringHeaderSize {
		return fmt.Errorf("%w: strings section too short for %d strings", ErrCorrupt, h.Sections[SectionStrings].Count)
	}
	return nil
}
