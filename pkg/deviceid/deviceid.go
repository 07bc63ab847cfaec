package deviceid

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Absent is the profile id written for a component that has no profile.
// Zero is never a valid profile id, so it cannot collide with a real one.
const Absent int32 = 0

// Separator joins profile ids in the string form.
const Separator = "-"

// String encodes ids as dash-joined decimals, e.g. "10-21".
func String(ids []int32) string {
	if len(ids) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(ids) * 6)
	for i, id := range ids {
		if i > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(strconv.FormatInt(int64(id), 10))
	}
	return b.String()
}

// Bytes encodes ids as consecutive big-endian 32-bit integers.
func Bytes(ids []int32) []byte {
	out := make([]byte, len(ids)*4)
	for i, id := range ids {
		binary.BigEndian.PutUint32(out[i*4:], uint32(id))
	}
	return out
}

// Parse decodes the dash-joined form. Every element must be a non-negative
// decimal that fits in an int32.
func Parse(s string) ([]int32, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrInvalidDeviceID)
	}

	parts := strings.Split(s, Separator)
	ids := make([]int32, len(parts))
	for i, part := range parts {
		if part == "" || strings.TrimSpace(part) != part {
			return nil, fmt.Errorf("%w: element %d of %q is not a number", ErrInvalidDeviceID, i, s)
		}
		n, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d of %q: %v", ErrInvalidDeviceID, i, s, err)
		}
		ids[i] = int32(n)
	}
	return ids, nil
}

// FromBytes decodes the big-endian byte form. The length must be a non-zero
// multiple of four and no element may be negative.
func FromBytes(b []byte) ([]int32, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty byte array", ErrInvalidDeviceID)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: byte length %d is not a multiple of 4", ErrInvalidDeviceID, len(b))
	}

	ids := make([]int32, len(b)/4)
	for i := range ids {
		v := binary.BigEndian.Uint32(b[i*4:])
		if v > math.MaxInt32 {
			return nil, fmt.Errorf("%w: element %d is negative", ErrInvalidDeviceID, i)
		}
		ids[i] = int32(v)
	}
	return ids, nil
}

// Validate checks a profile-id sequence supplied directly by a caller.
func Validate(ids []int32) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no profile ids", ErrInvalidDeviceID)
	}
	for i, id := range ids {
		if id < 0 {
			return fmt.Errorf("%w: element %d is negative", ErrInvalidDeviceID, i)
		}
	}
	return nil
}
