package deviceid

import "errors"

// ErrInvalidDeviceID is returned when a device-id cannot be decoded.
var ErrInvalidDeviceID = errors.New("invalid device id")
