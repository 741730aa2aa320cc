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

import (
	"fmt"
	"io"
	"runtime"
)

// InterruptHandler services INT n. IOInHandler/IOOutHandler service
// IN/OUT on a port.
type InterruptHandler func(c *CPU, n byte)
type IOInHandler func(c *CPU, port uint16) byte
type IOOutHandler func(c *CPU, port uint16, value byte)

// Hook observes the CPU immediately before fetch-and-decode of the
// instruction at its registered linear address. It may mutate
// registers and memory; it must not call Step.
type Hook func(c *CPU)

// CallFrame is one entry of the call-stack mirror: the CS:IP the
// emulator was at when a CALL pushed to it.
type CallFrame struct {
	CS, IP uint16
}

// ControlFlowEvent describes one control-transfer instruction as seen
// by a dry-run decode, for the disassembler's explore loop. HasTarget
// is false for RET/RETF/IRET and for an indirect CALL/JMP whose
// operand reads as zero (always true in dry run, since register and
// memory reads are stubbed).
type ControlFlowEvent struct {
	HasTarget bool
	Target    uint16
	IsCall    bool
	Stop      bool
}

// CPU is the 8086 interpreter core: registers, memory, the prepared
// instruction produced by decode and consumed by execute, and the
// hook/interrupt/IO surface an outer shell drives it through.
type CPU struct {
	Regs Registers
	Mem  *Memory
	Mode ExecutionMode

	prepared *PreparedInstruction

	// ControlFlow receives one event per control-transfer instruction
	// executed in ModeDryRun; nil in ModeReal. StopLine is set by that
	// event's handler and checked by the disassembler's explore loop.
	ControlFlow func(c *CPU, ev ControlFlowEvent)
	StopLine    bool

	interrupts map[byte]InterruptHandler
	ioIn       map[uint16]IOInHandler
	ioOut      map[uint16]IOOutHandler

	hooks map[uint32]Hook

	callStack   []CallFrame
	entryPoints map[uint32]bool

	debugLevel int

	// Break is a cooperative cancellation flag a host may set between
	// steps; Step does not check it itself (the host loop does), but it
	// is exposed here so hooks and the host share one place to set it.
	Break bool
}

// NewCPU creates a CPU over the given memory, in ModeReal.
func NewCPU(mem *Memory) *CPU {
	c := &CPU{
		Mem:         mem,
		interrupts:  make(map[byte]InterruptHandler),
		ioIn:        make(map[uint16]IOInHandler),
		ioOut:       make(map[uint16]IOOutHandler),
		hooks:       make(map[uint32]Hook),
		entryPoints: make(map[uint32]bool),
	}
	c.Reset()
	return c
}

// Reset sets the initial .COM program state per spec.md section 6:
// CS=DS=ES=SS=0, IP=0x100, SP=0xFFFF, flags zero.
func (c *CPU) Reset() {
	c.Regs = Registers{}
	c.Regs.SetCS(0)
	c.Regs.SetDS(0)
	c.Regs.SetES(0)
	c.Regs.SetSS(0)
	c.Regs.SetIP(0x100)
	c.Regs.SetSP(0xFFFF)
	c.prepared = nil
	c.callStack = c.callStack[:0]
}

// SetDebugLevel controls fetch tracing: 0 silent, 2 traces every
// fetched byte through Logger, matching the original's debug_level_==2
// branch.
func (c *CPU) SetDebugLevel(level int) {
	c.debugLevel = level
}

// GetLinearAddress computes (segment<<4)+offset, the 20-bit physical
// address for any segment:offset pair.
func GetLinearAddress(segment, offset uint16) uint32 {
	return uint32(segment)<<4 + uint32(offset)
}

// GetCS_IP returns the current linear fetch address.
func (c *CPU) GetCS_IP() uint32 {
	return GetLinearAddress(c.Regs.CS(), c.Regs.IP())
}

// GetSS_SP returns the current linear stack address.
func (c *CPU) GetSS_SP() uint32 {
	return GetLinearAddress(c.Regs.SS(), c.Regs.SP())
}

// check is the fatal-assertion primitive, grounded on x86.cpp's
// check()/CHECK macro: on failure it logs "file:line: text" and
// panics. The core never swallows this category of error.
func (c *CPU) check(cond bool, text string) {
	if cond {
		return
	}
	_, file, line, _ := runtime.Caller(1)
	msg := fmt.Sprintf("%s:%d: check failed: %s", file, line, text)
	warnf("%s", msg)
	panic(msg)
}

// IsExecutePending reports whether an instruction has been decoded but
// not yet executed.
func (c *CPU) IsExecutePending() bool {
	return c.prepared != nil
}

// ClearExecutionState drops the prepared instruction without executing
// it, used by a "skip" command in an outer shell.
func (c *CPU) ClearExecutionState() {
	c.prepared = nil
}

// Refetch discards the prepared instruction, rewinds IP by the bytes
// already consumed, and re-decodes. Used after an outer shell pokes
// code bytes under the about-to-execute instruction.
func (c *CPU) Refetch() {
	if c.prepared == nil {
		return
	}
	c.Regs.SetIP(c.prepared.CurrentIP)
	c.prepared = nil
	c.FetchAndDecode()
}

// GetBytesFetched returns the prepared instruction's byte length, or 0
// if none is pending.
func (c *CPU) GetBytesFetched() int {
	if c.prepared == nil {
		return 0
	}
	return c.prepared.BytesFetched
}

// CurrentOpcodeDesc returns the prepared instruction's rendered
// mnemonic text, or "" if none is pending. Used by the disassembler to
// fill a CODE fragment without exposing PreparedInstruction itself.
func (c *CPU) CurrentOpcodeDesc() string {
	if c.prepared == nil {
		return ""
	}
	return c.prepared.OpcodeDesc
}

// OutputCurrentOperation prints "CS:IP  hex-bytes  mnemonic" for the
// prepared instruction to sink.
func (c *CPU) OutputCurrentOperation(sink io.Writer) {
	p := c.prepared
	if p == nil {
		return
	}
	fmt.Fprintf(sink, "%04X:%04X  ", p.CurrentCS, p.CurrentIP)
	start := GetLinearAddress(p.CurrentCS, p.CurrentIP)
	for i := 0; i < p.BytesFetched; i++ {
		fmt.Fprintf(sink, "%02X ", c.Mem.Read(start+uint32(i)))
	}
	fmt.Fprintf(sink, " %s\n", p.OpcodeDesc)
}

// RegisterHook installs a pre-fetch hook at a linear address. At most
// one hook per address; registering a second overwrites the first.
func (c *CPU) RegisterHook(addr uint32, h Hook) {
	c.hooks[addr] = h
}

// RegisterInterruptHandler registers n's handler. Registering twice for
// the same number is a programmer error and is fatal.
func (c *CPU) RegisterInterruptHandler(n byte, h InterruptHandler) {
	if _, exists := c.interrupts[n]; exists {
		fatalf("interrupt handler for INT %02Xh already registered", n)
	}
	c.interrupts[n] = h
}

// RegisterIOInHandler/RegisterIOOutHandler register a port's handler.
func (c *CPU) RegisterIOInHandler(port uint16, h IOInHandler)   { c.ioIn[port] = h }
func (c *CPU) RegisterIOOutHandler(port uint16, h IOOutHandler) { c.ioOut[port] = h }

// GetCallStack returns the call-stack mirror, oldest frame first.
func (c *CPU) GetCallStack() []CallFrame {
	return c.callStack
}

// GetEntryPoints returns the set of linear addresses reached as a
// branch or call target during execution.
func (c *CPU) GetEntryPoints() map[uint32]bool {
	return c.entryPoints
}

func (c *CPU) recordEntryPoint(addr uint32) {
	c.entryPoints[addr] = true
}

// Step runs one hook-fetch-decode-execute cycle: hooks fire, then
// fetch-and-decode (if nothing is already prepared), then execute.
// Ordering is fixed by spec.md 4.5.
func (c *CPU) Step() {
	addr := c.GetCS_IP()
	if h, ok := c.hooks[addr]; ok {
		h(c)
	}
	if c.prepared == nil {
		c.FetchAndDecode()
	}
	c.Execute()
}

// FetchAndDecode reads one instruction starting at CS:IP without
// executing it, leaving it prepared. Used directly by breakpoints and
// by the disassembler in ModeDryRun.
func (c *CPU) FetchAndDecode() {
	c.prepared = decode(c)
	if logEnable {
		warnf("%04X:%04X %s", c.prepared.CurrentCS, c.prepared.CurrentIP, c.prepared.OpcodeDesc)
	}
}

// Execute runs the currently prepared instruction and clears it: a
// prepared instruction is one-shot. In ModeDryRun, a control-transfer
// instruction runs its DryRun handler instead of Exec, so no register
// or memory state changes beyond IP (already advanced by decode).
func (c *CPU) Execute() {
	c.check(c.prepared != nil, "Execute called with nothing prepared")
	p := c.prepared
	c.prepared = nil
	if c.Mode == ModeDryRun && p.DryRun != nil {
		p.DryRun(c, p)
		return
	}
	p.Exec(c, p)
}
