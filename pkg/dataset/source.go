package dataset

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Source is the random-access byte store a dataset is decoded from.
type Source interface {
	io.ReaderAt
	io.Closer
	Size() int64
	Name() string
}

// FileSource reads a dataset from a file on disk.
type FileSource struct {
	f    *os.File
	size int64
}

// OpenFile opens path as a Source.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrSourceRead, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceRead, path)
	}
	return &FileSource{f: f, size: info.Size()}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *FileSource) Close() error                            { return s.f.Close() }
func (s *FileSource) Size() int64                             { return s.size }
func (s *FileSource) Name() string                            { return s.f.Name() }

type bytesSource struct {
	*bytes.Reader
	name string
}

// BytesSource wraps an in-memory payload. Close is a no-op.
func BytesSource(name string, b []byte) Source {
	return &bytesSource{Reader: bytes.NewReader(b), name: name}
}

func (s *bytesSource) Close() error { return nil }
func (s *bytesSource) Name() string { return s.name }

// readAll copies the whole source into memory.
func readAll(src Source) ([]byte, error) {
	size := src.Size()
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrSourceRead, size)
	}
	b := make([]byte, size)
	n, err := src.ReadAt(b, 0)
	if int64(n) == size {
		return b, nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrSourceRead, src.Name(), err)
}
