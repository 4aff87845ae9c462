package veridia

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// mmapFile is a read-only memory-mapped file shared by every query-time
// reader (document store, barrels, dense offsets, cached embedding
// matrix). It is the concrete binding for the "mmapped read-only" language
// that runs through §3/§4/§5 of the specification.
type mmapFile struct {
	f    *os.File
	data mmap.MMap
}

// openMmap memory-maps path read-only. Returns ErrIoFailure wrapped with
// the underlying cause if the file cannot be opened or mapped.
func openMmap(path string) (*mmapFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w: %v", path, ErrIoFailure, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w: %v", path, ErrIoFailure, err)
	}

	// A zero-length file cannot be mapped by mmap(2); treat it as an empty
	// view rather than failing the open, since bulk-build can legitimately
	// emit empty barrels for data sets with no words hashing to them.
	if info.Size() == 0 {
		f.Close()
		return &mmapFile{data: mmap.MMap{}}, nil
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapping %s: %w: %v", path, ErrIoFailure, err)
	}

	return &mmapFile{f: f, data: data}, nil
}

// Bytes returns the mapped region.
func (m *mmapFile) Bytes() []byte {
	return m.data
}

// Len returns the mapped region's length.
func (m *mmapFile) Len() int {
	return len(m.data)
}

// Close unmaps and closes the underlying file. Safe to call once per open.
func (m *mmapFile) Close() error {
	var err error
	if len(m.data) > 0 {
		err = m.data.Unmap()
	}
	if m.f != nil {
		if cerr := m.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
