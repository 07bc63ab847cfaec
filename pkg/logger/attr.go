package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups multiple non-nil errors under the key "errors".
// If all errors are nil, it returns an empty Attr.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Duration records a duration under the key "duration".
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Mode records the dataset mode under the key "mode".
func Mode(mode any) slog.Attr {
	return slog.Any("mode", mode)
}

// DataFile records the dataset source name under the key "data_file".
func DataFile(name string) slog.Attr {
	return slog.String("data_file", name)
}

// UserAgent records a User-Agent under the key "user_agent".
// Empty strings produce an empty Attr.
func UserAgent(ua string) slog.Attr {
	if ua == "" {
		return slog.Attr{}
	}
	return slog.String("user_agent", ua)
}

// DeviceID records a device-id string under the key "device_id".
func DeviceID(id string) slog.Attr {
	return slog.String("device_id", id)
}

// Method records the match method under the key "method".
func Method(method any) slog.Attr {
	return slog.Any("method", method)
}

// Difference records a match difference score under the key "difference".
func Difference(d int) slog.Attr {
	return slog.Int("difference", d)
}

// Worker records a worker index under the key "worker".
func Worker(n int) slog.Attr {
	return slog.Int("worker", n)
}
