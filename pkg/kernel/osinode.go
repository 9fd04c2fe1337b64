package kernel

import (
	"sync"

	"github.com/mcavallo/minos/pkg/minfs"
)

// OpenFlags is the bitfield accepted by the open syscall.
type OpenFlags uint32

const (
	// FlagRDONLY opens read-only.
	FlagRDONLY OpenFlags = 0
	// FlagWRONLY opens write-only.
	FlagWRONLY OpenFlags = 1 << 0
	// FlagRDWR opens for both directions.
	FlagRDWR OpenFlags = 1 << 1
	// FlagCREATE creates the file, truncating an existing one.
	FlagCREATE OpenFlags = 1 << 9
	// FlagTRUNC empties the file on open.
	FlagTRUNC OpenFlags = 1 << 10
)

// readWrite decodes the direction bits.
func (f OpenFlags) readWrite() (bool, bool) {
	switch {
	case f&FlagRDWR != 0:
		return true, true
	case f&FlagWRONLY != 0:
		return false, true
	default:
		return true, false
	}
}

// OSInode wraps a minfs inode as a File with a cursor.
type OSInode struct {
	readable bool
	writable bool

	mu     sync.Mutex
	offset int
	inode  *minfs.Inode
}

// openFile resolves name in the root directory per flags, returning nil
// when the file does not exist and CREATE is absent.
func openFile(root *minfs.Inode, name string, flags OpenFlags) *OSInode {
	readable, writable := flags.readWrite()
	var inode *minfs.Inode
	if flags&FlagCREATE != 0 {
		if inode = root.Find(name); inode != nil {
			inode.Clear()
		} else {
			inode = root.Create(name)
		}
	} else {
		if inode = root.Find(name); inode == nil {
			return nil
		}
		if flags&FlagTRUNC != 0 {
			inode.Clear()
		}
	}
	return &OSInode{readable: readable, writable: writable, inode: inode}
}

// Readable implements File.
func (f *OSInode) Readable() bool { return f.readable }

// Writable implements File.
func (f *OSInode) Writable() bool { return f.writable }

// Read implements File, advancing the cursor.
func (f *OSInode) Read(buf []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.inode.ReadAt(f.offset, buf)
	f.offset += n
	return n
}

// Write implements File, advancing the cursor.
func (f *OSInode) Write(buf []byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.inode.WriteAt(f.offset, buf)
	f.offset += n
	return n
}

// Stat reports the backing inode's identity.
func (f *OSInode) Stat(st *minfs.Stat) {
	f.inode.Stat(st)
}
