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

// RepPrefix distinguishes the string-operation repetition prefixes.
type RepPrefix int

const (
	RepNone RepPrefix = iota
	RepREP            // F3: REP, or REPE/REPZ on CMPS/SCAS
	RepREPNE          // F2: REPNE/REPNZ on CMPS/SCAS
)

// execFunc is the per-mnemonic semantic routine, grounded in Design
// Notes: a plain function taking the prepared instruction explicitly
// rather than a virtual method mutating shared base-object fields.
type execFunc func(c *CPU, p *PreparedInstruction)

// PreparedInstruction is the decoder's one-shot output, consumed
// exactly once by Execute. Field names match spec.md's Data Model.
type PreparedInstruction struct {
	Opcode   byte
	Mnemonic string

	Segment int // register index of the effective data segment (RegDS by default)
	Rep     RepPrefix

	WArg1, WArg2 Operand
	BArg1, BArg2 Operand

	BytesFetched int
	CurrentCS    uint16
	CurrentIP    uint16

	OpcodeDesc string

	// RelTarget carries a branch/call/loop's precomputed absolute
	// target IP, valid when the opcode is a control-transfer mnemonic.
	RelTarget uint16

	Exec execFunc

	// DryRun, set only for control-transfer mnemonics, runs in place of
	// Exec when the CPU is in ModeDryRun: it reports a ControlFlowEvent
	// to c.ControlFlow instead of mutating registers or memory.
	DryRun execFunc
}

// decodeCtx carries the mutable state of one decode pass: the prefix
// bytes seen, and a running byte counter.
type decodeCtx struct {
	c             *CPU
	bytesFetched  int
	segmentOver   int // register index, or -1 if no override
	rep           RepPrefix
	startCS       uint16
	startIP       uint16
}

func (d *decodeCtx) fetchByte() byte {
	addr := GetLinearAddress(d.c.Regs.CS(), d.c.Regs.IP())
	v := d.c.Mem.Read(addr)
	if d.c.debugLevel == 2 {
		warnf("%04X:%04X %02X", d.c.Regs.CS(), d.c.Regs.IP(), v)
	}
	d.c.Regs.SetIP(d.c.Regs.IP() + 1)
	d.bytesFetched++
	return v
}

func (d *decodeCtx) fetchWord() uint16 {
	lo := d.fetchByte()
	hi := d.fetchByte()
	return uint16(lo) | uint16(hi)<<8
}

// dataSegment returns the effective data segment register index,
// honoring a segment-override prefix.
func (d *decodeCtx) dataSegment(defaultSeg int) int {
	if d.segmentOver != -1 {
		return d.segmentOver
	}
	return defaultSeg
}

// decode reads prefixes, the opcode, and any operands starting at the
// CPU's current CS:IP, returning a fully prepared instruction.
func decode(c *CPU) *PreparedInstruction {
	d := &decodeCtx{c: c, segmentOver: -1, startCS: c.Regs.CS(), startIP: c.Regs.IP()}

	for {
		b := peekByte(c)
		switch b {
		case 0x2E:
			d.segmentOver = RegCS
		case 0x36:
			d.segmentOver = RegSS
		case 0x3E:
			d.segmentOver = RegDS
		case 0x26:
			d.segmentOver = RegES
		case 0xF0: // LOCK: no-op for a single-threaded core
		case 0xF2:
			d.rep = RepREPNE
		case 0xF3:
			d.rep = RepREP
		default:
			goto prefixesDone
		}
		d.fetchByte()
	}
prefixesDone:

	opcode := d.fetchByte()
	entry := opcodeTable[opcode]
	var p *PreparedInstruction
	switch {
	case entry.decode != nil:
		p = entry.decode(d, opcode)
	case entry.notImplemented != "":
		p = decodeNotImplemented(d, entry.notImplemented, entry.immBytes)
	default:
		invalidOpcode(c, opcode)
	}
	p.Opcode = opcode
	p.Rep = d.rep
	p.BytesFetched = d.bytesFetched
	p.CurrentCS = d.startCS
	p.CurrentIP = d.startIP
	return p
}

// decodeNotImplemented handles an opcode byte that names a real 8086
// mnemonic this core deliberately does not execute (see
// registerNotImplemented in optable.go). Per spec.md 4.2/§7 category 2
// this is non-fatal while disassembling: it logs and the disassembler's
// explore loop continues linearly past it. It is fatal during real
// execution, since no semantic routine exists to run. The original
// expressed this split as a virtual-method override on the disassembler
// subclass; this core has one CPU type, so the split is an explicit
// mode check instead.
func decodeNotImplemented(d *decodeCtx, name string, immBytes int) *PreparedInstruction {
	for i := 0; i < immBytes; i++ {
		d.fetchByte()
	}
	if d.c.Mode != ModeDryRun {
		d.c.check(false, fmt.Sprintf("opcode '%s' not implemented", name))
	}
	warnf("opcode '%s' not implemented, skipping", name)
	return &PreparedInstruction{Mnemonic: name, Exec: opNOP, OpcodeDesc: name}
}

// invalidOpcode reports a byte with no opcodeTable entry at all: unlike
// decodeNotImplemented this is always fatal, in either mode, per spec.md
// §7 category 1.
func invalidOpcode(c *CPU, opcode byte) {
	c.check(false, fmt.Sprintf("invalid opcode 0x%02X", opcode))
}

// peekByte reads the byte at the current CS:IP without advancing IP,
// used by the prefix loop to decide whether to consume another prefix.
func peekByte(c *CPU) byte {
	return c.Mem.Read(GetLinearAddress(c.Regs.CS(), c.Regs.IP()))
}

// --- ModR/M and effective-address decoding ---

// modRM holds the decoded fields of a ModR/M byte plus, when mod!=3,
// the resolved linear effective address.
type modRM struct {
	mod, reg, rm int
	isMem        bool
	addr         uint32
	dispOrDirect uint16 // raw displacement or direct-address value, for disassembly text
	segReg       int    // effective segment register actually used for addr
}

// decodeModRM fetches the ModR/M byte (and any displacement) and
// resolves the r/m field to either a register index or a linear
// address, per the effective-address table in spec.md 4.2.
func (d *decodeCtx) decodeModRM(defaultSeg int) modRM {
	b := d.fetchByte()
	m := modRM{mod: int(b >> 6), reg: int((b >> 3) & 7), rm: int(b & 7)}

	if m.mod == 3 {
		return m
	}
	m.isMem = true

	var base uint16
	seg := defaultSeg
	switch m.rm {
	case 0:
		base = d.c.Regs.BX() + d.c.Regs.SI()
	case 1:
		base = d.c.Regs.BX() + d.c.Regs.DI()
	case 2:
		base = d.c.Regs.BP() + d.c.Regs.SI()
		seg = RegSS
	case 3:
		base = d.c.Regs.BP() + d.c.Regs.DI()
		seg = RegSS
	case 4:
		base = d.c.Regs.SI()
	case 5:
		base = d.c.Regs.DI()
	case 6:
		if m.mod == 0 {
			base = d.fetchWord() // direct address, no base register
			seg = defaultSeg
			m.dispOrDirect = base
			m.segReg = d.dataSegment(seg)
			m.addr = GetLinearAddress(d.c.Regs.Reg16(m.segReg), base)
			return m
		}
		base = d.c.Regs.BP()
		seg = RegSS
	case 7:
		base = d.c.Regs.BX()
	}

	var disp uint16
	switch m.mod {
	case 1:
		disp = signExtend(d.fetchByte())
	case 2:
		disp = d.fetchWord()
	}
	m.dispOrDirect = disp
	offset := base + disp
	m.segReg = d.dataSegment(seg)
	m.addr = GetLinearAddress(d.c.Regs.Reg16(m.segReg), offset)
	return m
}

// rmWordOperand/rmByteOperand build the r/m operand, honoring mod==3
// (register) vs memory. Register indices arrive in 8086 wire encoding
// and must be translated via encodingToReg16 for word operands; byte
// register encoding already matches this package's RegAL..RegBH order.
func (d *decodeCtx) rmWordOperand(m modRM) Operand {
	if !m.isMem {
		return regOperand16(encodingToReg16[m.rm])
	}
	return memOperand16(m.addr)
}

func (d *decodeCtx) rmByteOperand(m modRM) Operand {
	if !m.isMem {
		return regOperand8(m.rm)
	}
	return memOperand8(m.addr)
}

// --- operand read/write, dispatching on ExecutionMode ---

// ReadWord reads a 16-bit operand. In ModeDryRun, register and memory
// reads alike always read as zero: the dry-run CPU's register and
// memory pointers reset to a scratch zero on every access, so no
// stale value from an earlier instruction in the same pass can leak
// into a later one.
func (c *CPU) ReadWord(op Operand) uint16 {
	switch op.Kind {
	case OperandReg16:
		if c.Mode == ModeDryRun {
			return 0
		}
		return c.Regs.Reg16(op.Reg)
	case OperandMem16:
		if c.Mode == ModeDryRun {
			return 0
		}
		return c.Mem.ReadWord(op.Addr)
	case OperandImm16:
		return op.Imm
	}
	c.check(false, "ReadWord on non-word operand")
	return 0
}

// WriteWord writes a 16-bit operand. In ModeDryRun the write is
// discarded and never touches the register file or memory.
func (c *CPU) WriteWord(op Operand, v uint16) {
	switch op.Kind {
	case OperandReg16:
		if c.Mode == ModeDryRun {
			return
		}
		c.Regs.SetReg16(op.Reg, v)
	case OperandMem16:
		if c.Mode == ModeDryRun {
			return
		}
		c.Mem.WriteWord(op.Addr, v)
	default:
		c.check(false, "WriteWord on non-writable operand")
	}
}

// ReadByte/WriteByte mirror ReadWord/WriteWord for 8-bit operands.
func (c *CPU) ReadByte(op Operand) byte {
	switch op.Kind {
	case OperandReg8:
		if c.Mode == ModeDryRun {
			return 0
		}
		return c.Regs.Reg8(op.Reg)
	case OperandMem8:
		if c.Mode == ModeDryRun {
			return 0
		}
		return c.Mem.Read(op.Addr)
	case OperandImm8:
		return byte(op.Imm)
	}
	c.check(false, "ReadByte on non-byte operand")
	return 0
}

func (c *CPU) WriteByte(op Operand, v byte) {
	switch op.Kind {
	case OperandReg8:
		if c.Mode == ModeDryRun {
			return
		}
		c.Regs.SetReg8(op.Reg, v)
	case OperandMem8:
		if c.Mode == ModeDryRun {
			return
		}
		c.Mem.Write(op.Addr, v)
	default:
		c.check(false, "WriteByte on non-writable operand")
	}
}
