package matcher

import (
	"fmt"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
)

// Method is the phase that produced a result.
type Method int

const (
	MethodNone Method = iota
	MethodExact
	MethodClosest
	// MethodDeviceID marks matches built from an explicit device-id rather
	// than a User-Agent. The Matcher itself never returns it.
	MethodDeviceID
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodExact:
		return "exact"
	case MethodClosest:
		return "closest"
	case MethodDeviceID:
		return "deviceid"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod is the inverse of Method.String.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "none":
		return MethodNone, nil
	case "exact":
		return MethodExact, nil
	case "closest":
		return MethodClosest, nil
	case "deviceid":
		return MethodDeviceID, nil
	}
	return MethodNone, fmt.Errorf("unknown match method %q", s)
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(b []byte) error {
	parsed, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Result is the outcome of one match. Signature is nil when Method is
// MethodNone.
type Result struct {
	Method       Method
	Signature    *dataset.Signature
	Difference   int
	NodesMatched int
}

// Matched reports whether a signature was found.
func (r Result) Matched() bool { return r.Signature != nil }
