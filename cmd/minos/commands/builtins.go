package commands

import (
	"fmt"

	"github.com/mcavallo/minos/pkg/kernel"
)

// registerBuiltins installs the demo programs shipped with the kernel
// binary. They double as smoke tests for the syscall surface.
func registerBuiltins(k *kernel.Kernel) {
	k.Register("hello", hello)
	k.Register("filetest", filetest)
	k.Register("pipetest", pipetest)
}

func hello(env *kernel.Env) int {
	env.Write(1, []byte(fmt.Sprintf("hello from pid %d\n", env.GetPid())))
	return 0
}

// filetest writes a file into the image, links it, and reads it back
// through the second name.
func filetest(env *kernel.Env) int {
	fd := env.Open("filetest.txt", kernel.FlagCREATE|kernel.FlagWRONLY)
	if fd < 0 {
		return 1
	}
	payload := []byte("written by filetest")
	if env.Write(fd, payload) != len(payload) {
		return 1
	}
	env.Close(fd)

	if env.LinkAt("filetest.txt", "filetest.lnk") != 0 {
		return 1
	}
	fd = env.Open("filetest.lnk", kernel.FlagRDONLY)
	if fd < 0 {
		return 1
	}
	buf := make([]byte, len(payload))
	if env.Read(fd, buf) != len(payload) || string(buf) != string(payload) {
		return 1
	}
	env.Close(fd)
	env.UnlinkAt("filetest.lnk")
	env.Write(1, []byte("filetest ok\n"))
	return 0
}

// pipetest forks a child connected by a pipe and checks the round trip.
func pipetest(env *kernel.Env) int {
	var fds [2]int
	if env.Pipe(&fds) != 0 {
		return 1
	}
	readFD, writeFD := fds[0], fds[1]

	childPid := env.Fork(func(child *kernel.Env) int {
		child.Close(writeFD)
		buf := make([]byte, 64)
		n := child.Read(readFD, buf)
		child.Close(readFD)
		child.Write(1, append([]byte("pipetest child got: "), buf[:n]...))
		child.Write(1, []byte("\n"))
		return 0
	})

	env.Close(readFD)
	env.Write(writeFD, []byte("through the pipe"))
	env.Close(writeFD)

	var code int
	if env.WaitpidBlocking(childPid, &code) != childPid || code != 0 {
		return 1
	}
	return 0
}
