package blockdev

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// FileDevice is a block device backed by a raw image file. Blocks that lie
// past the current end of file read as zeros, so freshly created images may
// stay sparse.
type FileDevice struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFile opens an existing image file as a block device.
func OpenFile(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	return &FileDevice{f: f}, nil
}

// CreateFile creates (or truncates) an image file with room for
// totalBlocks blocks and opens it as a block device.
func CreateFile(path string, totalBlocks uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create image: %w", err)
	}
	if err := f.Truncate(int64(totalBlocks) * BlockSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("size image: %w", err)
	}
	return &FileDevice{f: f}, nil
}

// ReadBlock implements BlockDevice.
func (d *FileDevice) ReadBlock(id uint32, buf []byte) {
	if len(buf) != BlockSize {
		panic("blockdev: short read buffer")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.f.ReadAt(buf, int64(id)*BlockSize)
	if err == io.EOF || (err == nil && n == BlockSize) {
		for i := n; i < BlockSize; i++ {
			buf[i] = 0
		}
		return
	}
	if err != nil {
		panic(fmt.Sprintf("blockdev: read block %d: %v", id, err))
	}
}

// WriteBlock implements BlockDevice.
func (d *FileDevice) WriteBlock(id uint32, buf []byte) {
	if len(buf) != BlockSize {
		panic("blockdev: short write buffer")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.f.WriteAt(buf, int64(id)*BlockSize); err != nil {
		panic(fmt.Sprintf("blockdev: write block %d: %v", id, err))
	}
}

// Sync flushes the image file to stable storage.
func (d *FileDevice) Sync() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Sync()
}

// Close closes the underlying image file.
func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
