package detection

import (
	"time"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/deviceid"
	"github.com/dmitrymomot/devicedetect/pkg/matcher"
)

// Match is the immutable result of one detection. It holds one profile slot
// per dataset component; slots the match did not resolve are nil and appear
// as deviceid.Absent in the device-id encodings.
//
// Property values are read lazily from the dataset, so they fail with
// ErrClosed once the dataset is closed.
type Match struct {
	ds        *dataset.Dataset
	userAgent string
	result    matcher.Result
	profiles  []*dataset.Profile
	elapsed   time.Duration
}

func newMatch(ds *dataset.Dataset, ua string, res matcher.Result, profiles []*dataset.Profile, elapsed time.Duration) *Match {
	if profiles == nil {
		profiles = make([]*dataset.Profile, len(ds.Components()))
	}
	return &Match{
		ds:        ds,
		userAgent: ua,
		result:    res,
		profiles:  profiles,
		elapsed:   elapsed,
	}
}

// Values returns the values of the named property. An unknown property or
// an unresolved component yields empty, non-nil Values.
func (m *Match) Values(property string) (dataset.Values, error) {
	return m.PropertyValues(m.ds.Property(property))
}

// PropertyValues is Values for an already resolved property.
func (m *Match) PropertyValues(p *dataset.Property) (dataset.Values, error) {
	if m.ds.IsClosed() {
		return nil, ErrClosed
	}
	if p == nil {
		return dataset.Values{}, nil
	}
	return m.ds.Values(m.Profile(p.ComponentIndex), p)
}

// ProfileIDs returns the device-id as one profile id per component.
func (m *Match) ProfileIDs() []int32 {
	ids := make([]int32, len(m.profiles))
	for i, p := range m.profiles {
		if p != nil {
			ids[i] = p.ID
		}
	}
	return ids
}

// DeviceID returns the dash-joined device-id, e.g. "10-21".
func (m *Match) DeviceID() string { return deviceid.String(m.ProfileIDs()) }

// DeviceIDAsByteArray returns the device-id as big-endian 32-bit integers.
func (m *Match) DeviceIDAsByteArray() []byte { return deviceid.Bytes(m.ProfileIDs()) }

// Profile returns the profile resolved for component i, or nil.
func (m *Match) Profile(i int) *dataset.Profile {
	if i < 0 || i >= len(m.profiles) {
		return nil
	}
	return m.profiles[i]
}

// Profiles returns a copy of the per-component profile slots.
func (m *Match) Profiles() []*dataset.Profile {
	out := make([]*dataset.Profile, len(m.profiles))
	copy(out, m.profiles)
	return out
}

func (m *Match) Method() matcher.Method { return m.result.Method }

// Difference is zero for exact and device-id matches.
func (m *Match) Difference() int { return m.result.Difference }

func (m *Match) NodesMatched() int { return m.result.NodesMatched }

// Signature returns the matched signature, or nil for unmatched and
// device-id matches.
func (m *Match) Signature() *dataset.Signature { return m.result.Signature }

// UserAgent returns the header value the match was made from.
func (m *Match) UserAgent() string { return m.userAgent }

func (m *Match) Elapsed() time.Duration { return m.elapsed }

// IsMatched reports whether at least one component resolved to a profile.
func (m *Match) IsMatched() bool {
	for _, p := range m.profiles {
		if p != nil {
			return true
		}
	}
	return false
}

func (m *Match) DataSet() *dataset.Dataset { return m.ds }
