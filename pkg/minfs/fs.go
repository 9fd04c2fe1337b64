// Package minfs implements a block-addressable file store with a
// bitmap-managed multi-level index, layered bottom-up: the block device
// contract (pkg/blockdev), a write-back block cache (pkg/blockcache), the
// on-disk structures (layout.go, bitmap.go), the FileSystem that owns the
// bitmaps and area offsets, and the in-memory Inode handle exposed to
// callers (inode.go).
//
// The disk is divided, in block order, into the super block, the inode
// bitmap, the inode area, the data bitmap, and the data area. All
// multi-byte integers on disk are little-endian.
package minfs

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mcavallo/minos/pkg/blockcache"
	"github.com/mcavallo/minos/pkg/blockdev"
)

// ErrBadMagic is returned by Open when block 0 is not a minfs super block.
var ErrBadMagic = errors.New("minfs: bad super block magic")

// devCache pairs the device with the cache manager so the layout code can
// reach blocks without threading two parameters everywhere.
type devCache struct {
	cache *blockcache.Manager
	dev   blockdev.BlockDevice
}

func (dc devCache) view(id uint32, fn func([]byte)) {
	dc.cache.View(dc.dev, id, fn)
}

func (dc devCache) modify(id uint32, fn func([]byte)) {
	dc.cache.Modify(dc.dev, id, fn)
}

// FileSystem owns the two bitmaps and the area offsets of one mounted
// image. All public Inode operations serialize on its mutex; correctness
// over throughput.
type FileSystem struct {
	mu    sync.Mutex
	dev   blockdev.BlockDevice
	cache *blockcache.Manager

	inodeBitmap Bitmap
	dataBitmap  Bitmap

	inodeAreaStart uint32
	dataAreaStart  uint32
}

// Create formats the device with a fresh filesystem and returns it.
//
// Layout: block 0 holds the super block; inodeBitmapBlocks blocks of
// inode bitmap give capacity for inodeBitmapBlocks*4096 inodes; the inode
// area holds that many 128-byte records; of the remainder, one bitmap
// block is set aside per 4096 data blocks (the +1 accounting for the
// bitmap block itself) and the rest is the data area. Every block is
// zeroed, the super block and root directory inode written, and the cache
// flushed.
func Create(dev blockdev.BlockDevice, cache *blockcache.Manager, totalBlocks, inodeBitmapBlocks uint32) *FileSystem {
	inodeBitmap := NewBitmap(1, inodeBitmapBlocks)
	inodeNum := inodeBitmap.Maximum()
	inodeAreaBlocks := (inodeNum*InodeSize + BlockSize - 1) / BlockSize
	inodeTotalBlocks := inodeBitmapBlocks + inodeAreaBlocks

	dataTotalBlocks := totalBlocks - 1 - inodeTotalBlocks
	dataBitmapBlocks := (dataTotalBlocks + 4096) / 4097
	dataAreaBlocks := dataTotalBlocks - dataBitmapBlocks
	dataBitmap := NewBitmap(1+inodeTotalBlocks, dataBitmapBlocks)

	fs := &FileSystem{
		dev:            dev,
		cache:          cache,
		inodeBitmap:    inodeBitmap,
		dataBitmap:     dataBitmap,
		inodeAreaStart: 1 + inodeBitmapBlocks,
		dataAreaStart:  1 + inodeTotalBlocks + dataBitmapBlocks,
	}
	dc := fs.dc()

	for i := uint32(0); i < totalBlocks; i++ {
		dc.modify(i, func(b []byte) {
			for j := range b {
				b[j] = 0
			}
		})
	}

	sb := SuperBlock{
		Magic:             Magic,
		TotalBlocks:       totalBlocks,
		InodeBitmapBlocks: inodeBitmapBlocks,
		InodeAreaBlocks:   inodeAreaBlocks,
		DataBitmapBlocks:  dataBitmapBlocks,
		DataAreaBlocks:    dataAreaBlocks,
	}
	dc.modify(0, func(b []byte) {
		sb.encode(b)
	})

	// inode 0 is the root directory
	rootID := fs.allocInode()
	if rootID != 0 {
		panic(fmt.Sprintf("minfs: root inode allocated id %d", rootID))
	}
	rootBlock, rootOffset := fs.diskInodePos(0)
	dc.modify(rootBlock, func(b []byte) {
		di := decodeDiskInode(b[rootOffset : rootOffset+InodeSize])
		di.initialize(InodeDirectory)
		di.encode(b[rootOffset : rootOffset+InodeSize])
	})
	cache.SyncAll()
	return fs
}

// Open mounts an existing filesystem from the device, validating the
// magic and reconstructing the area offsets from the super block.
func Open(dev blockdev.BlockDevice, cache *blockcache.Manager) (*FileSystem, error) {
	var sb SuperBlock
	cache.View(dev, 0, func(b []byte) {
		sb = decodeSuperBlock(b)
	})
	if !sb.Valid() {
		return nil, ErrBadMagic
	}
	inodeTotalBlocks := sb.InodeBitmapBlocks + sb.InodeAreaBlocks
	return &FileSystem{
		dev:            dev,
		cache:          cache,
		inodeBitmap:    NewBitmap(1, sb.InodeBitmapBlocks),
		dataBitmap:     NewBitmap(1+inodeTotalBlocks, sb.DataBitmapBlocks),
		inodeAreaStart: 1 + sb.InodeBitmapBlocks,
		dataAreaStart:  1 + inodeTotalBlocks + sb.DataBitmapBlocks,
	}, nil
}

func (fs *FileSystem) dc() devCache {
	return devCache{cache: fs.cache, dev: fs.dev}
}

// RootInode returns a handle to the root directory (inode id 0).
func (fs *FileSystem) RootInode() *Inode {
	blockID, offset := fs.diskInodePos(0)
	return &Inode{blockID: blockID, offset: offset, fs: fs}
}

// diskInodePos locates a DiskInode by id: the block holding it and the
// byte offset within that block.
func (fs *FileSystem) diskInodePos(inodeID uint32) (uint32, int) {
	const inodesPerBlock = BlockSize / InodeSize
	blockID := fs.inodeAreaStart + inodeID/inodesPerBlock
	return blockID, int(inodeID%inodesPerBlock) * InodeSize
}

// allocInode allocates a fresh inode id. There is no dealloc counterpart:
// unlink frees a file's data blocks but leaks the inode id, matching the
// on-disk format's lack of an inode free list.
func (fs *FileSystem) allocInode() uint32 {
	id, ok := fs.inodeBitmap.Alloc(fs.dc())
	if !ok {
		panic("minfs: out of inodes")
	}
	return id
}

// allocData allocates a data block and returns its absolute device id.
func (fs *FileSystem) allocData() uint32 {
	bit, ok := fs.dataBitmap.Alloc(fs.dc())
	if !ok {
		panic("minfs: out of data blocks")
	}
	return bit + fs.dataAreaStart
}

// deallocData zeroes the block contents, making reuse deterministic, then
// clears its bitmap bit. blockID is the absolute device id.
func (fs *FileSystem) deallocData(blockID uint32) {
	fs.dc().modify(blockID, func(b []byte) {
		for i := range b {
			b[i] = 0
		}
	})
	fs.dataBitmap.Dealloc(fs.dc(), blockID-fs.dataAreaStart)
}
