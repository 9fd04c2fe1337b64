// Package badger implements a block device that stores its blocks in a
// BadgerDB key-value store. It serves deployments where a raw image file
// is unavailable and gives the image transactional durability for free.
package badger

import (
	"encoding/binary"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/mcavallo/minos/pkg/blockdev"
)

// Device is a BlockDevice whose blocks live in Badger under big-endian
// uint32 keys. Absent keys read as zeros, mirroring a sparse image file.
type Device struct {
	db *badgerdb.DB
}

// Open opens (or creates) a Badger-backed device at dir.
func Open(dir string) (*Device, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger device: %w", err)
	}
	return &Device{db: db}, nil
}

// OpenInMemory opens a Badger-backed device with no on-disk state.
func OpenInMemory() (*Device, error) {
	opts := badgerdb.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger device: %w", err)
	}
	return &Device{db: db}, nil
}

func blockKey(id uint32) []byte {
	var key [4]byte
	binary.BigEndian.PutUint32(key[:], id)
	return key[:]
}

// ReadBlock implements blockdev.BlockDevice.
func (d *Device) ReadBlock(id uint32, buf []byte) {
	if len(buf) != blockdev.BlockSize {
		panic("blockdev: short read buffer")
	}
	err := d.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(blockKey(id))
		if err == badgerdb.ErrKeyNotFound {
			for i := range buf {
				buf[i] = 0
			}
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(buf, val)
			return nil
		})
	})
	if err != nil {
		panic(fmt.Sprintf("blockdev: badger read block %d: %v", id, err))
	}
}

// WriteBlock implements blockdev.BlockDevice.
func (d *Device) WriteBlock(id uint32, buf []byte) {
	if len(buf) != blockdev.BlockSize {
		panic("blockdev: short write buffer")
	}
	val := make([]byte, blockdev.BlockSize)
	copy(val, buf)
	err := d.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(blockKey(id), val)
	})
	if err != nil {
		panic(fmt.Sprintf("blockdev: badger write block %d: %v", id, err))
	}
}

// Close syncs and closes the underlying store.
func (d *Device) Close() error {
	return d.db.Close()
}
