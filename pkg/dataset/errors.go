package dataset

import "errors"

var (
	// Load and format errors
	ErrCorrupt            = errors.New("dataset is corrupt")
	ErrUnsupportedVersion = errors.New("unsupported dataset version")
	ErrSourceRead         = errors.New("failed to read dataset source")
	ErrInvalidOption      = errors.New("invalid dataset option")

	// Lifecycle errors
	ErrClosed = errors.New("dataset is closed")

	// Value conversion errors
	ErrNoValue      = errors.New("property has no value")
	ErrInvalidValue = errors.New("value cannot be converted")

	// S3 source errors, classified from the AWS SDK
	ErrInvalidS3Config    = errors.New("invalid s3 source configuration")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
	ErrObjectNotFound     = errors.New("dataset object not found")
	ErrBucketNotFound     = errors.New("bucket not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrRequestTimeout     = errors.New("request timed out")
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
	ErrOperationTimeout   = errors.New("operation timed out")
	ErrOperationCanceled  = errors.New("operation canceled")
)
