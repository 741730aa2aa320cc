// Copyright © 2019 mg
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cpu86

import "fmt"

// Memory is a flat, byte-addressable address space. Reads and writes
// outside [0, Size()) fail fatally with the attempted address and size,
// per the Memory component's bounds policy.
type Memory struct {
	bytes []byte
}

// DefaultMemorySize is the 1 MiB real-mode address space used by the
// emulator. Disassembly/loading callers may size memory to just over
// the image being loaded instead.
const DefaultMemorySize = 1 << 20

// NewMemory allocates a Memory of the given size in bytes.
func NewMemory(size int) *Memory {
	return &Memory{bytes: make([]byte, size)}
}

// Reset zeroes every byte.
func (m *Memory) Reset() {
	for i := range m.bytes {
		m.bytes[i] = 0
	}
}

// Size returns the addressable size in bytes.
func (m *Memory) Size() int {
	return len(m.bytes)
}

// Read returns the byte at addr. Fatal if addr is out of range.
func (m *Memory) Read(addr uint32) byte {
	if int(addr) >= len(m.bytes) {
		fatalf("memory read out of range: addr=0x%05X size=0x%05X", addr, len(m.bytes))
	}
	return m.bytes[addr]
}

// Write stores value at addr, returning the previous value. Fatal if
// addr is out of range.
func (m *Memory) Write(addr uint32, value byte) byte {
	if int(addr) >= len(m.bytes) {
		fatalf("memory write out of range: addr=0x%05X size=0x%05X", addr, len(m.bytes))
	}
	old := m.bytes[addr]
	m.bytes[addr] = value
	return old
}

// ReadWord reads a little-endian 16-bit value starting at addr.
func (m *Memory) ReadWord(addr uint32) uint16 {
	lo := m.Read(addr)
	hi := m.Read(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// WriteWord stores a little-endian 16-bit value starting at addr.
func (m *Memory) WriteWord(addr uint32, value uint16) {
	m.Write(addr, byte(value&0xFF))
	m.Write(addr+1, byte(value>>8))
}

// Borrow returns a slice view of [addr, addr+length) for callers that
// need direct access (image loading, the display collaborator's
// framebuffer read). The slice aliases Memory's storage; callers must
// not retain it past the current step.
func (m *Memory) Borrow(addr uint32, length int) []byte {
	if int(addr)+length > len(m.bytes) {
		fatalf("memory borrow out of range: addr=0x%05X length=%d size=0x%05X", addr, length, len(m.bytes))
	}
	return m.bytes[addr : int(addr)+length]
}

// LoadImage copies data into memory starting at addr, typically 0x0100
// for a .COM image. File loading itself (reading the .com off disk) is
// an external collaborator's concern; this is the trivial memcpy the
// core performs once the bytes are in hand.
func (m *Memory) LoadImage(addr uint32, data []byte) {
	copy(m.Borrow(addr, len(data)), data)
}

func fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	warnf("fatal: %s", msg)
	panic(msg)
}
