package kernel

import (
	"github.com/mcavallo/minos/pkg/minfs"
)

// Read fills buf from the capability at fd. Returns the byte count, or
// ErrnoInval for a free slot or a direction mismatch.
func (e *Env) Read(fd int, buf []byte) int {
	e.k.observeSyscall("read")
	p := e.k.currentProcess()
	p.mu.Lock()
	f := p.fileFor(fd)
	p.mu.Unlock()
	if f == nil || !f.Readable() {
		return ErrnoInval
	}
	return f.Read(buf)
}

// Write sends buf to the capability at fd. Returns the byte count, or
// ErrnoInval for a free slot or a direction mismatch.
func (e *Env) Write(fd int, buf []byte) int {
	e.k.observeSyscall("write")
	p := e.k.currentProcess()
	p.mu.Lock()
	f := p.fileFor(fd)
	p.mu.Unlock()
	if f == nil || !f.Writable() {
		return ErrnoInval
	}
	return f.Write(buf)
}

// Open opens path in the root directory per flags and returns a new fd,
// or ErrnoInval when the file is missing (without FlagCREATE) or no
// filesystem is mounted.
func (e *Env) Open(path string, flags OpenFlags) int {
	e.k.observeSyscall("open")
	if e.k.root == nil {
		return ErrnoInval
	}
	inode := openFile(e.k.root, path, flags)
	if inode == nil {
		return ErrnoInval
	}
	p := e.k.currentProcess()
	p.mu.Lock()
	defer p.mu.Unlock()
	fd := p.allocFD()
	p.fdTable[fd] = inode
	return fd
}

// Close frees the fd slot, dropping one reference to its capability.
func (e *Env) Close(fd int) int {
	e.k.observeSyscall("close")
	p := e.k.currentProcess()
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.fileFor(fd)
	if f == nil {
		return ErrnoInval
	}
	releaseFile(f)
	p.fdTable[fd] = nil
	return 0
}

// Pipe creates a 32-byte ring pipe and stores (read fd, write fd) in fds.
func (e *Env) Pipe(fds *[2]int) int {
	e.k.observeSyscall("pipe")
	p := e.k.currentProcess()
	readEnd, writeEnd := makePipe(e.k)
	p.mu.Lock()
	defer p.mu.Unlock()
	readFD := p.allocFD()
	p.fdTable[readFD] = readEnd
	writeFD := p.allocFD()
	p.fdTable[writeFD] = writeEnd
	fds[0] = readFD
	fds[1] = writeFD
	return 0
}

// Dup duplicates fd into the lowest free slot, sharing the capability.
func (e *Env) Dup(fd int) int {
	e.k.observeSyscall("dup")
	p := e.k.currentProcess()
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.fileFor(fd)
	if f == nil {
		return ErrnoInval
	}
	retainFile(f)
	newFD := p.allocFD()
	p.fdTable[newFD] = f
	return newFD
}

// Fstat fills st for the on-disk file at fd; ErrnoInval for free slots
// and capabilities without an inode behind them.
func (e *Env) Fstat(fd int, st *minfs.Stat) int {
	e.k.observeSyscall("fstat")
	p := e.k.currentProcess()
	p.mu.Lock()
	f := p.fileFor(fd)
	p.mu.Unlock()
	if f == nil {
		return ErrnoInval
	}
	osf, ok := f.(*OSInode)
	if !ok {
		return ErrnoInval
	}
	osf.Stat(st)
	return 0
}

// LinkAt adds newPath as a hard link to oldPath in the root directory.
// Linking a name to itself is refused.
func (e *Env) LinkAt(oldPath, newPath string) int {
	e.k.observeSyscall("linkat")
	if e.k.root == nil || oldPath == newPath {
		return ErrnoInval
	}
	if !e.k.root.Link(oldPath, newPath) {
		return ErrnoInval
	}
	return 0
}

// UnlinkAt removes path from the root directory.
func (e *Env) UnlinkAt(path string) int {
	e.k.observeSyscall("unlinkat")
	if e.k.root == nil {
		return ErrnoInval
	}
	if !e.k.root.Unlink(path) {
		return ErrnoInval
	}
	return 0
}
