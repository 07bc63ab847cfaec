// Package deviceid encodes and decodes device identifiers.
//
// A device-id is the ordered list of profile ids, one per dataset component,
// that identifies a matched device. It has three equivalent forms:
//
//	[]int32{10, 21}          // profile ids in component order
//	"10-21"                  // dash-joined decimals
//	[]byte{0,0,0,10,0,0,0,21} // big-endian 32-bit integers
//
// A component without a profile is written as Absent (0). The conversions
// are lossless, so String(Parse(s)) == s for every valid s and
// FromBytes(Bytes(ids)) equals ids.
//
// Decoding errors wrap ErrInvalidDeviceID.
package deviceid
