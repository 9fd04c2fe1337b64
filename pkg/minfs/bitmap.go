package minfs

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// blockBits is the number of allocation bits per bitmap block.
const blockBits = BlockSize * 8

// Bitmap manages a run of blocks whose bits index allocatable objects
// (inodes or data blocks). Bit k of the run, in LSB-first order within
// each 64-bit word, corresponds to object k of the managed area.
type Bitmap struct {
	startBlockID uint32
	blocks       uint32
}

// NewBitmap describes a bitmap area by its start block and length.
func NewBitmap(startBlockID, blocks uint32) Bitmap {
	return Bitmap{startBlockID: startBlockID, blocks: blocks}
}

// decomposition splits a bit index into (block, word, bit-in-word).
func decomposition(bit uint32) (uint32, int, uint) {
	blockPos := bit / blockBits
	bit %= blockBits
	return blockPos, int(bit / 64), uint(bit % 64)
}

// Alloc finds and sets the first clear bit, scanning blocks in order and
// words within each block for the lowest zero bit. Returns the bit index
// and true, or false when the bitmap is full.
func (bm Bitmap) Alloc(dc devCache) (uint32, bool) {
	for blockIdx := uint32(0); blockIdx < bm.blocks; blockIdx++ {
		allocated := -1
		dc.modify(bm.startBlockID+blockIdx, func(b []byte) {
			for w := 0; w < BlockSize/8; w++ {
				word := binary.LittleEndian.Uint64(b[8*w:])
				if word == ^uint64(0) {
					continue
				}
				inner := bits.TrailingZeros64(^word) // count of trailing ones
				binary.LittleEndian.PutUint64(b[8*w:], word|1<<uint(inner))
				allocated = w*64 + inner
				return
			}
		})
		if allocated >= 0 {
			return blockIdx*blockBits + uint32(allocated), true
		}
	}
	return 0, false
}

// Dealloc clears the given bit. Clearing a bit that is not set is a
// programming error and panics.
func (bm Bitmap) Dealloc(dc devCache, bit uint32) {
	blockPos, wordPos, innerPos := decomposition(bit)
	dc.modify(bm.startBlockID+blockPos, func(b []byte) {
		word := binary.LittleEndian.Uint64(b[8*wordPos:])
		if word&(1<<innerPos) == 0 {
			panic(fmt.Sprintf("minfs: double free of bitmap bit %d", bit))
		}
		binary.LittleEndian.PutUint64(b[8*wordPos:], word&^(1<<innerPos))
	})
}

// Maximum returns the number of objects the bitmap can manage.
func (bm Bitmap) Maximum() uint32 {
	return bm.blocks * blockBits
}
