package minfs

import (
	"encoding/binary"
)

// Magic number identifying a minfs image.
const Magic uint32 = 0x3b800001

const (
	// BlockSize is the unit of device I/O in bytes.
	BlockSize = 512

	// InodeDirectCount is the number of direct block slots in a DiskInode.
	InodeDirectCount = 28

	// NameLengthLimit is the maximum directory entry name length in bytes.
	NameLengthLimit = 27

	// inodeIndirect1Count is the number of u32 entries in an indirect block.
	inodeIndirect1Count = BlockSize / 4

	// directBound and indirect1Bound are the exclusive upper bounds of the
	// logical block ranges covered by the direct and one-level index.
	directBound    = InodeDirectCount
	indirect1Bound = directBound + inodeIndirect1Count

	// InodeSize is the on-disk size of a DiskInode; four inodes per block.
	InodeSize = 128

	// DirentSize is the on-disk size of a directory entry.
	DirentSize = 32
)

// SuperBlock is block 0 of the image. It locates the four following areas
// and validates the filesystem with a magic constant.
type SuperBlock struct {
	Magic             uint32
	TotalBlocks       uint32
	InodeBitmapBlocks uint32
	InodeAreaBlocks   uint32
	DataBitmapBlocks  uint32
	DataAreaBlocks    uint32
}

// Valid reports whether the super block carries the minfs magic.
func (sb *SuperBlock) Valid() bool {
	return sb.Magic == Magic
}

func decodeSuperBlock(b []byte) SuperBlock {
	return SuperBlock{
		Magic:             binary.LittleEndian.Uint32(b[0:4]),
		TotalBlocks:       binary.LittleEndian.Uint32(b[4:8]),
		InodeBitmapBlocks: binary.LittleEndian.Uint32(b[8:12]),
		InodeAreaBlocks:   binary.LittleEndian.Uint32(b[12:16]),
		DataBitmapBlocks:  binary.LittleEndian.Uint32(b[16:20]),
		DataAreaBlocks:    binary.LittleEndian.Uint32(b[20:24]),
	}
}

func (sb *SuperBlock) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], sb.Magic)
	binary.LittleEndian.PutUint32(b[4:8], sb.TotalBlocks)
	binary.LittleEndian.PutUint32(b[8:12], sb.InodeBitmapBlocks)
	binary.LittleEndian.PutUint32(b[12:16], sb.InodeAreaBlocks)
	binary.LittleEndian.PutUint32(b[16:20], sb.DataBitmapBlocks)
	binary.LittleEndian.PutUint32(b[20:24], sb.DataAreaBlocks)
}

// DiskInodeType distinguishes files from directories on disk.
type DiskInodeType uint8

const (
	// InodeFile marks a regular file.
	InodeFile DiskInodeType = 0
	// InodeDirectory marks a directory.
	InodeDirectory DiskInodeType = 1
)

// DiskInode is the 128-byte on-disk record describing one file or
// directory: its size, the multi-level block index, its type, and the
// hard-link count. The direct slots cover 14 KiB; the one-level index a
// further 64 KiB; the two-level index a further 8 MiB.
//
// On-disk layout (little-endian): size u32, direct [28]u32, indirect1
// u32, indirect2 u32, type u8, nlink u8, 2 bytes pad. The pad keeps the
// record at exactly 128 bytes so four inodes pack per block.
type DiskInode struct {
	Size      uint32
	Direct    [InodeDirectCount]uint32
	Indirect1 uint32
	Indirect2 uint32
	Type      DiskInodeType
	Nlink     uint8
}

func decodeDiskInode(b []byte) DiskInode {
	var d DiskInode
	d.Size = binary.LittleEndian.Uint32(b[0:4])
	for i := 0; i < InodeDirectCount; i++ {
		d.Direct[i] = binary.LittleEndian.Uint32(b[4+4*i:])
	}
	d.Indirect1 = binary.LittleEndian.Uint32(b[116:120])
	d.Indirect2 = binary.LittleEndian.Uint32(b[120:124])
	d.Type = DiskInodeType(b[124])
	d.Nlink = b[125]
	return d
}

func (d *DiskInode) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], d.Size)
	for i := 0; i < InodeDirectCount; i++ {
		binary.LittleEndian.PutUint32(b[4+4*i:], d.Direct[i])
	}
	binary.LittleEndian.PutUint32(b[116:120], d.Indirect1)
	binary.LittleEndian.PutUint32(b[120:124], d.Indirect2)
	b[124] = byte(d.Type)
	b[125] = d.Nlink
	b[126] = 0
	b[127] = 0
}

// initialize resets the inode to an empty record of the given type.
// Indirect blocks are allocated only when the file grows into them.
func (d *DiskInode) initialize(t DiskInodeType) {
	*d = DiskInode{Type: t, Nlink: 1}
}

// IsDir reports whether this inode is a directory.
func (d *DiskInode) IsDir() bool { return d.Type == InodeDirectory }

// IsFile reports whether this inode is a regular file.
func (d *DiskInode) IsFile() bool { return d.Type == InodeFile }

// DataBlocks returns the number of data blocks the current size occupies.
func (d *DiskInode) DataBlocks() uint32 {
	return dataBlocksFor(d.Size)
}

func dataBlocksFor(size uint32) uint32 {
	return (size + BlockSize - 1) / BlockSize
}

// TotalBlocks returns the number of blocks a file of the given size
// occupies, index blocks included.
func TotalBlocks(size uint32) uint32 {
	dataBlocks := int(dataBlocksFor(size))
	total := dataBlocks
	if dataBlocks > InodeDirectCount {
		total++ // indirect1
	}
	if dataBlocks > indirect1Bound {
		total++ // indirect2
		total += (dataBlocks - indirect1Bound + inodeIndirect1Count - 1) / inodeIndirect1Count
	}
	return uint32(total)
}

// BlocksNeeded returns how many additional blocks (data plus index) must
// be allocated to grow the file to newSize.
func (d *DiskInode) BlocksNeeded(newSize uint32) uint32 {
	if newSize < d.Size {
		panic("minfs: shrinking is not supported")
	}
	return TotalBlocks(newSize) - TotalBlocks(d.Size)
}

func indirectEntry(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[4*i:])
}

func setIndirectEntry(b []byte, i int, v uint32) {
	binary.LittleEndian.PutUint32(b[4*i:], v)
}

// BlockID maps a logical block index within the file to a device block id.
func (d *DiskInode) BlockID(inner uint32, dc devCache) uint32 {
	id := int(inner)
	switch {
	case id < directBound:
		return d.Direct[id]
	case id < indirect1Bound:
		var out uint32
		dc.view(d.Indirect1, func(b []byte) {
			out = indirectEntry(b, id-directBound)
		})
		return out
	default:
		last := id - indirect1Bound
		var indirect1 uint32
		dc.view(d.Indirect2, func(b []byte) {
			indirect1 = indirectEntry(b, last/inodeIndirect1Count)
		})
		var out uint32
		dc.view(indirect1, func(b []byte) {
			out = indirectEntry(b, last%inodeIndirect1Count)
		})
		return out
	}
}

// IncreaseSize grows the file in place to newSize, consuming newBlocks in
// order: direct slots first, then the indirect1 block itself, its
// entries, the indirect2 block, and one first-level block per 128 further
// entries. The caller must have allocated exactly BlocksNeeded(newSize)
// block ids.
func (d *DiskInode) IncreaseSize(newSize uint32, newBlocks []uint32, dc devCache) {
	currentBlocks := d.DataBlocks()
	d.Size = newSize
	totalBlocks := d.DataBlocks()
	next := 0
	take := func() uint32 {
		id := newBlocks[next]
		next++
		return id
	}

	// fill direct
	for currentBlocks < min32(totalBlocks, InodeDirectCount) {
		d.Direct[currentBlocks] = take()
		currentBlocks++
	}
	// alloc indirect1
	if totalBlocks > InodeDirectCount {
		if currentBlocks == InodeDirectCount {
			d.Indirect1 = take()
		}
		currentBlocks -= InodeDirectCount
		totalBlocks -= InodeDirectCount
	} else {
		return
	}
	// fill indirect1
	dc.modify(d.Indirect1, func(b []byte) {
		for currentBlocks < min32(totalBlocks, inodeIndirect1Count) {
			setIndirectEntry(b, int(currentBlocks), take())
			currentBlocks++
		}
	})
	// alloc indirect2
	if totalBlocks > inodeIndirect1Count {
		if currentBlocks == inodeIndirect1Count {
			d.Indirect2 = take()
		}
		currentBlocks -= inodeIndirect1Count
		totalBlocks -= inodeIndirect1Count
	} else {
		return
	}
	// fill indirect2 from (a0, b0) to (a1, b1)
	a0 := int(currentBlocks) / inodeIndirect1Count
	b0 := int(currentBlocks) % inodeIndirect1Count
	a1 := int(totalBlocks) / inodeIndirect1Count
	b1 := int(totalBlocks) % inodeIndirect1Count
	dc.modify(d.Indirect2, func(ind2 []byte) {
		for a0 < a1 || (a0 == a1 && b0 < b1) {
			if b0 == 0 {
				setIndirectEntry(ind2, a0, take())
			}
			dc.modify(indirectEntry(ind2, a0), func(ind1 []byte) {
				setIndirectEntry(ind1, b0, take())
			})
			b0++
			if b0 == inodeIndirect1Count {
				b0 = 0
				a0++
			}
		}
	})
}

// ClearSize resets the size to zero and returns every block the file
// occupied, index blocks included, for deallocation.
func (d *DiskInode) ClearSize(dc devCache) []uint32 {
	var v []uint32
	dataBlocks := int(d.DataBlocks())
	d.Size = 0
	currentBlocks := 0
	// direct
	for currentBlocks < minInt(dataBlocks, InodeDirectCount) {
		v = append(v, d.Direct[currentBlocks])
		d.Direct[currentBlocks] = 0
		currentBlocks++
	}
	// indirect1 block
	if dataBlocks > InodeDirectCount {
		v = append(v, d.Indirect1)
		dataBlocks -= InodeDirectCount
		currentBlocks = 0
	} else {
		return v
	}
	// indirect1 entries
	dc.view(d.Indirect1, func(b []byte) {
		for currentBlocks < minInt(dataBlocks, inodeIndirect1Count) {
			v = append(v, indirectEntry(b, currentBlocks))
			currentBlocks++
		}
	})
	d.Indirect1 = 0
	// indirect2 block
	if dataBlocks > inodeIndirect1Count {
		v = append(v, d.Indirect2)
		dataBlocks -= inodeIndirect1Count
	} else {
		return v
	}
	a1 := dataBlocks / inodeIndirect1Count
	b1 := dataBlocks % inodeIndirect1Count
	dc.view(d.Indirect2, func(ind2 []byte) {
		// full first-level blocks
		for i := 0; i < a1; i++ {
			entry := indirectEntry(ind2, i)
			v = append(v, entry)
			dc.view(entry, func(ind1 []byte) {
				for j := 0; j < inodeIndirect1Count; j++ {
					v = append(v, indirectEntry(ind1, j))
				}
			})
		}
		// partially filled last block
		if b1 > 0 {
			entry := indirectEntry(ind2, a1)
			v = append(v, entry)
			dc.view(entry, func(ind1 []byte) {
				for j := 0; j < b1; j++ {
					v = append(v, indirectEntry(ind1, j))
				}
			})
		}
	})
	d.Indirect2 = 0
	return v
}

// ReadAt copies file bytes from offset into buf, clamped to the file
// size, and returns the number of bytes copied.
func (d *DiskInode) ReadAt(offset int, buf []byte, dc devCache) int {
	start := offset
	end := minInt(offset+len(buf), int(d.Size))
	if start >= end {
		return 0
	}
	startBlock := start / BlockSize
	readSize := 0
	for {
		endCurrentBlock := minInt((start/BlockSize+1)*BlockSize, end)
		blockReadSize := endCurrentBlock - start
		dst := buf[readSize : readSize+blockReadSize]
		dc.view(d.BlockID(uint32(startBlock), dc), func(b []byte) {
			copy(dst, b[start%BlockSize:start%BlockSize+blockReadSize])
		})
		readSize += blockReadSize
		if endCurrentBlock == end {
			break
		}
		startBlock++
		start = endCurrentBlock
	}
	return readSize
}

// WriteAt copies buf into the file at offset and returns the number of
// bytes written. Size must already have been increased to cover the
// write range.
func (d *DiskInode) WriteAt(offset int, buf []byte, dc devCache) int {
	start := offset
	end := minInt(offset+len(buf), int(d.Size))
	if start > end {
		panic("minfs: write past end of file")
	}
	if start == end {
		return 0
	}
	startBlock := start / BlockSize
	writeSize := 0
	for {
		endCurrentBlock := minInt((start/BlockSize+1)*BlockSize, end)
		blockWriteSize := endCurrentBlock - start
		src := buf[writeSize : writeSize+blockWriteSize]
		dc.modify(d.BlockID(uint32(startBlock), dc), func(b []byte) {
			copy(b[start%BlockSize:start%BlockSize+blockWriteSize], src)
		})
		writeSize += blockWriteSize
		if endCurrentBlock == end {
			break
		}
		startBlock++
		start = endCurrentBlock
	}
	return writeSize
}

// DirEntry is a 32-byte (name, inode id) record; directory contents are a
// sequence of these. Names are NUL-padded to 28 bytes, so the 28th byte
// is always zero.
type DirEntry struct {
	name    [NameLengthLimit + 1]byte
	inodeID uint32
}

// NewDirEntry builds an entry for name, truncated to NameLengthLimit.
func NewDirEntry(name string, inodeID uint32) DirEntry {
	var e DirEntry
	if len(name) > NameLengthLimit {
		name = name[:NameLengthLimit]
	}
	copy(e.name[:], name)
	e.inodeID = inodeID
	return e
}

// Name returns the entry name without NUL padding.
func (e *DirEntry) Name() string {
	n := 0
	for n < len(e.name) && e.name[n] != 0 {
		n++
	}
	return string(e.name[:n])
}

// InodeID returns the inode id the entry points at.
func (e *DirEntry) InodeID() uint32 { return e.inodeID }

func decodeDirEntry(b []byte) DirEntry {
	var e DirEntry
	copy(e.name[:], b[:NameLengthLimit+1])
	e.inodeID = binary.LittleEndian.Uint32(b[28:32])
	return e
}

func (e *DirEntry) encode(b []byte) {
	copy(b[:NameLengthLimit+1], e.name[:])
	binary.LittleEndian.PutUint32(b[28:32], e.inodeID)
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
