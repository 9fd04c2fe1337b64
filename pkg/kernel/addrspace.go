package kernel

import "sync/atomic"

// AddressSpace stands in for the page-table construction and ELF loading
// the kernel boundary treats as external collaborators. The process owns
// one; it is recycled when the process exits, before the kernel stack is
// freed by the parent's reap.
type AddressSpace struct {
	token    uint64
	recycled bool
}

var addrSpaceToken atomic.Uint64

func newAddressSpace() *AddressSpace {
	return &AddressSpace{token: addrSpaceToken.Add(1)}
}

// Token identifies the address space, standing in for the page-table root.
func (a *AddressSpace) Token() uint64 { return a.token }

// Recycle releases the user frames. Further use is a programming error.
func (a *AddressSpace) Recycle() { a.recycled = true }

// TrapContext is the register state a thread traps in and out with. The
// trap entry/exit glue is out of scope; the kernel only initializes the
// slots it owns.
type TrapContext struct {
	Entry      uintptr
	UserSP     uintptr
	KernelSP   uintptr
	SpaceToken uint64
}

// appInitContext builds the initial trap context for a thread entering
// user code at entry with the given stacks.
func appInitContext(entry, userSP, kernelSP uintptr, token uint64) TrapContext {
	return TrapContext{
		Entry:      entry,
		UserSP:     userSP,
		KernelSP:   kernelSP,
		SpaceToken: token,
	}
}
