package minfs

// StatMode is the file-kind bits reported by Stat.
type StatMode uint32

const (
	// ModeNull marks an uninitialized Stat.
	ModeNull StatMode = 0
	// ModeDir marks a directory.
	ModeDir StatMode = 0o040000
	// ModeFile marks an ordinary regular file.
	ModeFile StatMode = 0o100000
)

// Stat describes an inode. The layout is fixed: dev and ino are u64, mode
// and nlink u32, followed by seven u64 of padding.
type Stat struct {
	Dev   uint64
	Ino   uint64
	Mode  StatMode
	Nlink uint32
	Pad   [7]uint64
}

// Inode is the in-memory handle to a DiskInode, carrying the (block,
// offset) locating it plus the owning filesystem. Multiple handles to the
// same inode may coexist; the handle's position is stable for its life.
//
// All exported operations hold the filesystem lock for their entire
// duration. Unexported helpers assume the lock is held.
type Inode struct {
	blockID uint32
	offset  int
	fs      *FileSystem
}

func (i *Inode) readDiskInode(fn func(*DiskInode)) {
	i.fs.dc().view(i.blockID, func(b []byte) {
		di := decodeDiskInode(b[i.offset : i.offset+InodeSize])
		fn(&di)
	})
}

func (i *Inode) modifyDiskInode(fn func(*DiskInode)) {
	i.fs.dc().modify(i.blockID, func(b []byte) {
		di := decodeDiskInode(b[i.offset : i.offset+InodeSize])
		fn(&di)
		di.encode(b[i.offset : i.offset+InodeSize])
	})
}

// findInodeID scans the directory's entries for name.
func (i *Inode) findInodeID(name string, di *DiskInode) (uint32, bool) {
	if !di.IsDir() {
		panic("minfs: find on a non-directory inode")
	}
	fileCount := int(di.Size) / DirentSize
	buf := make([]byte, DirentSize)
	for n := 0; n < fileCount; n++ {
		if di.ReadAt(DirentSize*n, buf, i.fs.dc()) != DirentSize {
			panic("minfs: short directory entry read")
		}
		entry := decodeDirEntry(buf)
		if entry.Name() == name {
			return entry.InodeID(), true
		}
	}
	return 0, false
}

func (i *Inode) inodeFor(inodeID uint32) *Inode {
	blockID, offset := i.fs.diskInodePos(inodeID)
	return &Inode{blockID: blockID, offset: offset, fs: i.fs}
}

// Find returns a handle to the named entry of this directory, or nil if
// no entry matches.
func (i *Inode) Find(name string) *Inode {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	var out *Inode
	i.readDiskInode(func(di *DiskInode) {
		if id, ok := i.findInodeID(name, di); ok {
			out = i.inodeFor(id)
		}
	})
	return out
}

// increaseSize grows the file to newSize, pre-allocating the data and
// index blocks the layout routine will consume.
func (i *Inode) increaseSize(newSize uint32, di *DiskInode) {
	if newSize < di.Size {
		return
	}
	needed := di.BlocksNeeded(newSize)
	blocks := make([]uint32, 0, needed)
	for n := uint32(0); n < needed; n++ {
		blocks = append(blocks, i.fs.allocData())
	}
	di.IncreaseSize(newSize, blocks, i.fs.dc())
}

// Create makes a new empty regular file in this directory and returns a
// handle to it, or nil if the name already exists.
func (i *Inode) Create(name string) *Inode {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()

	exists := false
	i.readDiskInode(func(di *DiskInode) {
		_, exists = i.findInodeID(name, di)
	})
	if exists {
		return nil
	}

	newInodeID := i.fs.allocInode()
	newBlock, newOffset := i.fs.diskInodePos(newInodeID)
	i.fs.dc().modify(newBlock, func(b []byte) {
		di := decodeDiskInode(b[newOffset : newOffset+InodeSize])
		di.initialize(InodeFile)
		di.encode(b[newOffset : newOffset+InodeSize])
	})

	i.modifyDiskInode(func(root *DiskInode) {
		fileCount := int(root.Size) / DirentSize
		i.increaseSize(uint32((fileCount+1)*DirentSize), root)
		entry := NewDirEntry(name, newInodeID)
		buf := make([]byte, DirentSize)
		entry.encode(buf)
		root.WriteAt(fileCount*DirentSize, buf, i.fs.dc())
	})

	i.fs.cache.SyncAll()
	return i.inodeFor(newInodeID)
}

// Ls returns the names of all entries in this directory.
func (i *Inode) Ls() []string {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	var names []string
	i.readDiskInode(func(di *DiskInode) {
		fileCount := int(di.Size) / DirentSize
		buf := make([]byte, DirentSize)
		for n := 0; n < fileCount; n++ {
			if di.ReadAt(n*DirentSize, buf, i.fs.dc()) != DirentSize {
				panic("minfs: short directory entry read")
			}
			entry := decodeDirEntry(buf)
			names = append(names, entry.Name())
		}
	})
	return names
}

// ReadAt copies file bytes from offset into buf and returns the count,
// clamped to the file size.
func (i *Inode) ReadAt(offset int, buf []byte) int {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	n := 0
	i.readDiskInode(func(di *DiskInode) {
		n = di.ReadAt(offset, buf, i.fs.dc())
	})
	return n
}

// WriteAt writes buf at offset, growing the file first if the write
// extends past the current size, and returns the count written.
func (i *Inode) WriteAt(offset int, buf []byte) int {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	n := 0
	i.modifyDiskInode(func(di *DiskInode) {
		i.increaseSize(uint32(offset+len(buf)), di)
		n = di.WriteAt(offset, buf, i.fs.dc())
	})
	i.fs.cache.SyncAll()
	return n
}

// Clear reclaims every block the file occupies and resets its size to
// zero.
func (i *Inode) Clear() {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	i.modifyDiskInode(func(di *DiskInode) {
		size := di.Size
		freed := di.ClearSize(i.fs.dc())
		if len(freed) != int(TotalBlocks(size)) {
			panic("minfs: clear reclaimed a wrong block count")
		}
		for _, blockID := range freed {
			i.fs.deallocData(blockID)
		}
	})
	i.fs.cache.SyncAll()
}

// Size returns the file size in bytes.
func (i *Inode) Size() uint32 {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	var size uint32
	i.readDiskInode(func(di *DiskInode) {
		size = di.Size
	})
	return size
}

// Stat fills st with this inode's identity: device 0, the block id
// locating the inode, its kind, and the hard-link count.
func (i *Inode) Stat(st *Stat) {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()
	i.readDiskInode(func(di *DiskInode) {
		st.Dev = 0
		st.Ino = uint64(i.blockID)
		if di.IsDir() {
			st.Mode = ModeDir
		} else {
			st.Mode = ModeFile
		}
		st.Nlink = uint32(di.Nlink)
		st.Pad = [7]uint64{}
	})
}

// Link adds newName as a second directory entry for oldName's inode and
// bumps its link count. Returns false if oldName does not exist.
func (i *Inode) Link(oldName, newName string) bool {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()

	var oldInodeID uint32
	found := false
	i.readDiskInode(func(root *DiskInode) {
		oldInodeID, found = i.findInodeID(oldName, root)
	})
	if !found {
		return false
	}

	blockID, offset := i.fs.diskInodePos(oldInodeID)
	i.fs.dc().modify(blockID, func(b []byte) {
		di := decodeDiskInode(b[offset : offset+InodeSize])
		di.Nlink++
		di.encode(b[offset : offset+InodeSize])
	})

	i.modifyDiskInode(func(root *DiskInode) {
		fileCount := int(root.Size) / DirentSize
		i.increaseSize(uint32((fileCount+1)*DirentSize), root)
		entry := NewDirEntry(newName, oldInodeID)
		buf := make([]byte, DirentSize)
		entry.encode(buf)
		root.WriteAt(fileCount*DirentSize, buf, i.fs.dc())
	})

	i.fs.cache.SyncAll()
	return true
}

// Unlink removes the named directory entry. When the target's link count
// drops to zero its data blocks are freed; the inode id itself stays
// allocated. Returns false if the name does not exist.
//
// There is no per-entry deletion on disk, so the directory is cleared and
// rewritten with the surviving entries.
func (i *Inode) Unlink(name string) bool {
	i.fs.mu.Lock()
	defer i.fs.mu.Unlock()

	var victimID uint32
	found := false
	var survivors []DirEntry
	i.readDiskInode(func(root *DiskInode) {
		fileCount := int(root.Size) / DirentSize
		buf := make([]byte, DirentSize)
		for n := 0; n < fileCount; n++ {
			if root.ReadAt(n*DirentSize, buf, i.fs.dc()) != DirentSize {
				panic("minfs: short directory entry read")
			}
			entry := decodeDirEntry(buf)
			if entry.Name() == name {
				victimID = entry.InodeID()
				found = true
			} else {
				survivors = append(survivors, entry)
			}
		}
	})
	if !found {
		return false
	}

	i.modifyDiskInode(func(root *DiskInode) {
		size := root.Size
		freed := root.ClearSize(i.fs.dc())
		if len(freed) != int(TotalBlocks(size)) {
			panic("minfs: unlink reclaimed a wrong block count")
		}
		for _, blockID := range freed {
			i.fs.deallocData(blockID)
		}
		i.increaseSize(uint32(len(survivors)*DirentSize), root)
		buf := make([]byte, DirentSize)
		for n := range survivors {
			survivors[n].encode(buf)
			root.WriteAt(n*DirentSize, buf, i.fs.dc())
		}
	})

	blockID, offset := i.fs.diskInodePos(victimID)
	i.fs.dc().modify(blockID, func(b []byte) {
		di := decodeDiskInode(b[offset : offset+InodeSize])
		di.Nlink--
		if di.Nlink == 0 {
			size := di.Size
			freed := di.ClearSize(i.fs.dc())
			if len(freed) != int(TotalBlocks(size)) {
				panic("minfs: unlink reclaimed a wrong block count")
			}
			for _, dataBlock := range freed {
				i.fs.deallocData(dataBlock)
			}
		}
		di.encode(b[offset : offset+InodeSize])
	})

	i.fs.cache.SyncAll()
	return true
}
