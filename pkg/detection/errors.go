package detection

import (
	"errors"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/deviceid"
)

var (
	ErrInvalidConfig = errors.New("invalid detection configuration")
	ErrResultCache   = errors.New("result cache failure")
	ErrNoDataset     = errors.New("provider requires a dataset")

	// Re-exported so callers need not import the lower-level packages.
	ErrInvalidDeviceID = deviceid.ErrInvalidDeviceID
	ErrClosed          = dataset.ErrClosed
)
