// Package dataset reads device detection data files.
//
// A data file holds strings, components, properties, values, profiles,
// signatures and the position nodes used for closest matching, each in its
// own section after a fixed header. Records reference each other by index
// or offset; the Dataset resolves those references on request.
//
// # Modes
//
// ModeMemory decodes every record while loading. Reads afterwards touch only
// immutable tables and take no locks.
//
// ModeStream decodes only components, properties, HTTP header names and the
// profile and signature indexes at load time. Values, profiles, signatures,
// nodes and strings are read from the Source on first use and kept in one
// bounded LRU cache per kind. Concurrent misses on the same record share a
// single decode.
//
// # Sources
//
// Open reads a local file. Load accepts any Source, such as BytesSource or an
// S3Source that serves reads with ranged GET requests.
//
//	ds, err := dataset.Open("devices.dat",
//	    dataset.WithMode(dataset.ModeStream),
//	    dataset.WithCacheSizes(dataset.DefaultCacheSizes()),
//	    dataset.WithMetrics(prometheus.DefaultRegisterer),
//	)
//	if err != nil {
//	    return err
//	}
//	defer ds.Close()
//
// # Lookups
//
// Lookups that can legitimately miss, such as FindProfile, SignatureByKey and
// Property, return nil without an error. Malformed records surface as
// ErrCorrupt; reads after Close return ErrClosed.
package dataset
