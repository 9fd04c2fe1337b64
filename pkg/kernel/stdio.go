package kernel

// Stdin reads single bytes from the console, yielding while no byte is
// pending. The console poll is the SBI getchar contract: zero means no
// character.
type Stdin struct {
	k *Kernel
}

// Readable implements File.
func (s *Stdin) Readable() bool { return true }

// Writable implements File.
func (s *Stdin) Writable() bool { return false }

// Read fills exactly one byte.
func (s *Stdin) Read(buf []byte) int {
	if len(buf) != 1 {
		panic("kernel: stdin reads one byte at a time")
	}
	for {
		c := s.k.consoleIn()
		if c == 0 {
			s.k.suspendCurrentAndRunNext()
			continue
		}
		buf[0] = byte(c)
		return 1
	}
}

// Write implements File.
func (s *Stdin) Write([]byte) int {
	panic("kernel: cannot write to stdin")
}

// Stdout writes to the console writer.
type Stdout struct {
	k *Kernel
}

// Readable implements File.
func (s *Stdout) Readable() bool { return false }

// Writable implements File.
func (s *Stdout) Writable() bool { return true }

// Read implements File.
func (s *Stdout) Read([]byte) int {
	panic("kernel: cannot read from stdout")
}

// Write implements File.
func (s *Stdout) Write(buf []byte) int {
	n, _ := s.k.consoleOut.Write(buf)
	return n
}
