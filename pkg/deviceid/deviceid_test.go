package deviceid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicedetect/pkg/deviceid"
)

func TestEncode(t *testing.T) {
	ids := []int32{10, 21}

	assert.Equal(t, "10-21", deviceid.String(ids))
	assert.Equal(t, []byte{0, 0, 0, 10, 0, 0, 0, 21}, deviceid.Bytes(ids))
	assert.Equal(t, "", deviceid.String(nil))
	assert.Empty(t, deviceid.Bytes(nil))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int32
		wantErr bool
	}{
		{name: "two components", input: "10-21", want: []int32{10, 21}},
		{name: "single component", input: "15364", want: []int32{15364}},
		{name: "absent slot", input: "10-0-7", want: []int32{10, 0, 7}},
		{name: "max int32", input: "2147483647", want: []int32{2147483647}},
		{name: "empty", input: "", wantErr: true},
		{name: "trailing dash", input: "10-", wantErr: true},
		{name: "double dash", input: "10--21", wantErr: true},
		{name: "letters", input: "10-abc", wantErr: true},
		{name: "signed", input: "+10-21", wantErr: true},
		{name: "whitespace", input: "10- 21", wantErr: true},
		{name: "overflow", input: "2147483648", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := deviceid.Parse(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, deviceid.ErrInvalidDeviceID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFromBytes(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		got, err := deviceid.FromBytes([]byte{0, 0, 0, 10, 0, 0, 0, 21})
		require.NoError(t, err)
		assert.Equal(t, []int32{10, 21}, got)
	})

	t.Run("length not multiple of four", func(t *testing.T) {
		for _, n := range []int{1, 2, 3, 5, 7} {
			_, err := deviceid.FromBytes(make([]byte, n))
			assert.ErrorIs(t, err, deviceid.ErrInvalidDeviceID, "length %d", n)
		}
	})

	t.Run("empty", func(t *testing.T) {
		_, err := deviceid.FromBytes(nil)
		assert.ErrorIs(t, err, deviceid.ErrInvalidDeviceID)
	})

	t.Run("negative element", func(t *testing.T) {
		_, err := deviceid.FromBytes([]byte{0xff, 0xff, 0xff, 0xff})
		assert.ErrorIs(t, err, deviceid.ErrInvalidDeviceID)
	})
}

func TestRoundTrip(t *testing.T) {
	for _, ids := range [][]int32{
		{1},
		{10, 21},
		{15364, 21460, 17779, 18092},
		{0, 0, 0},
		{2147483647, 1},
	} {
		s := deviceid.String(ids)
		fromString, err := deviceid.Parse(s)
		require.NoError(t, err)
		assert.Equal(t, ids, fromString)

		fromBytes, err := deviceid.FromBytes(deviceid.Bytes(ids))
		require.NoError(t, err)
		assert.Equal(t, ids, fromBytes)

		assert.Equal(t, deviceid.Bytes(fromString), deviceid.Bytes(fromBytes))
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, deviceid.Validate([]int32{1, 0, 3}))
	assert.ErrorIs(t, deviceid.Validate(nil), deviceid.ErrInvalidDeviceID)
	assert.ErrorIs(t, deviceid.Validate([]int32{1, -2}), deviceid.ErrInvalidDeviceID)
}
