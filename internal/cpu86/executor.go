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

// --- arithmetic/logic family, shared by the ADD/OR/ADC/SBB/AND/SUB/XOR/CMP
// opcode blocks built in optable.go ---

func opADD8(c *CPU, p *PreparedInstruction) {
	a, b := c.ReadByte(p.BArg1), c.ReadByte(p.BArg2)
	result := a + b
	adjustAdd8(&c.Regs, a, b, result, 0)
	c.WriteByte(p.BArg1, result)
}

func opADD16(c *CPU, p *PreparedInstruction) {
	a, b := c.ReadWord(p.WArg1), c.ReadWord(p.WArg2)
	result := a + b
	adjustAdd16(&c.Regs, a, b, result, 0)
	c.WriteWord(p.WArg1, result)
}

func opADC8(c *CPU, p *PreparedInstruction) {
	carry := byte(0)
	if c.Regs.GetFlag(FlagCF) {
		carry = 1
	}
	a, b := c.ReadByte(p.BArg1), c.ReadByte(p.BArg2)
	result := a + b + carry
	adjustAdd8(&c.Regs, a, b, result, carry)
	c.WriteByte(p.BArg1, result)
}

func opADC16(c *CPU, p *PreparedInstruction) {
	carry := uint16(0)
	if c.Regs.GetFlag(FlagCF) {
		carry = 1
	}
	a, b := c.ReadWord(p.WArg1), c.ReadWord(p.WArg2)
	result := a + b + carry
	adjustAdd16(&c.Regs, a, b, result, carry)
	c.WriteWord(p.WArg1, result)
}

func opOR8(c *CPU, p *PreparedInstruction) {
	result := c.ReadByte(p.BArg1) | c.ReadByte(p.BArg2)
	clearLogicFlags8(&c.Regs, result)
	c.WriteByte(p.BArg1, result)
}

func opOR16(c *CPU, p *PreparedInstruction) {
	result := c.ReadWord(p.WArg1) | c.ReadWord(p.WArg2)
	clearLogicFlags16(&c.Regs, result)
	c.WriteWord(p.WArg1, result)
}

func opAND8(c *CPU, p *PreparedInstruction) {
	result := c.ReadByte(p.BArg1) & c.ReadByte(p.BArg2)
	clearLogicFlags8(&c.Regs, result)
	c.WriteByte(p.BArg1, result)
}

func opAND16(c *CPU, p *PreparedInstruction) {
	result := c.ReadWord(p.WArg1) & c.ReadWord(p.WArg2)
	clearLogicFlags16(&c.Regs, result)
	c.WriteWord(p.WArg1, result)
}

func opXOR8(c *CPU, p *PreparedInstruction) {
	result := c.ReadByte(p.BArg1) ^ c.ReadByte(p.BArg2)
	clearLogicFlags8(&c.Regs, result)
	c.WriteByte(p.BArg1, result)
}

func opXOR16(c *CPU, p *PreparedInstruction) {
	result := c.ReadWord(p.WArg1) ^ c.ReadWord(p.WArg2)
	clearLogicFlags16(&c.Regs, result)
	c.WriteWord(p.WArg1, result)
}

func opSUB8(c *CPU, p *PreparedInstruction) {
	a, b := c.ReadByte(p.BArg1), c.ReadByte(p.BArg2)
	result := a - b
	adjustSub8(&c.Regs, a, b, result, 0)
	c.WriteByte(p.BArg1, result)
}

func opSUB16(c *CPU, p *PreparedInstruction) {
	a, b := c.ReadWord(p.WArg1), c.ReadWord(p.WArg2)
	result := a - b
	adjustSub16(&c.Regs, a, b, result, 0)
	c.WriteWord(p.WArg1, result)
}

func opSBB8(c *CPU, p *PreparedInstruction) {
	borrow := byte(0)
	if c.Regs.GetFlag(FlagCF) {
		borrow = 1
	}
	a, b := c.ReadByte(p.BArg1), c.ReadByte(p.BArg2)
	result := a - b - borrow
	adjustSub8(&c.Regs, a, b, result, borrow)
	c.WriteByte(p.BArg1, result)
}

func opSBB16(c *CPU, p *PreparedInstruction) {
	borrow := uint16(0)
	if c.Regs.GetFlag(FlagCF) {
		borrow = 1
	}
	a, b := c.ReadWord(p.WArg1), c.ReadWord(p.WArg2)
	result := a - b - borrow
	adjustSub16(&c.Regs, a, b, result, borrow)
	c.WriteWord(p.WArg1, result)
}

func opCMP8(c *CPU, p *PreparedInstruction) {
	a, b := c.ReadByte(p.BArg1), c.ReadByte(p.BArg2)
	adjustSub8(&c.Regs, a, b, a-b, 0)
}

func opCMP16(c *CPU, p *PreparedInstruction) {
	a, b := c.ReadWord(p.WArg1), c.ReadWord(p.WArg2)
	adjustSub16(&c.Regs, a, b, a-b, 0)
}

func opTEST8(c *CPU, p *PreparedInstruction) {
	clearLogicFlags8(&c.Regs, c.ReadByte(p.BArg1)&c.ReadByte(p.BArg2))
}

func opTEST16(c *CPU, p *PreparedInstruction) {
	clearLogicFlags16(&c.Regs, c.ReadWord(p.WArg1)&c.ReadWord(p.WArg2))
}

// --- data movement ---

func opMOV8(c *CPU, p *PreparedInstruction) { c.WriteByte(p.BArg1, c.ReadByte(p.BArg2)) }
func opMOV16(c *CPU, p *PreparedInstruction) { c.WriteWord(p.WArg1, c.ReadWord(p.WArg2)) }

func opXCHG8(c *CPU, p *PreparedInstruction) {
	a, b := c.ReadByte(p.BArg1), c.ReadByte(p.BArg2)
	c.WriteByte(p.BArg1, b)
	c.WriteByte(p.BArg2, a)
}

func opXCHG16(c *CPU, p *PreparedInstruction) {
	a, b := c.ReadWord(p.WArg1), c.ReadWord(p.WArg2)
	c.WriteWord(p.WArg1, b)
	c.WriteWord(p.WArg2, a)
}

func opLEA(c *CPU, p *PreparedInstruction) {
	c.check(p.WArg2.Kind == OperandMem16, "LEA requires a memory r/m operand")
	// The effective address offset was folded into a linear address at
	// decode time; recover the 16-bit offset within its segment.
	seg := c.Regs.Reg16(p.Segment)
	offset := uint16(p.WArg2.Addr - GetLinearAddress(seg, 0))
	c.WriteWord(p.WArg1, offset)
}

func opINC8(c *CPU, p *PreparedInstruction) {
	a := c.ReadByte(p.BArg1)
	result := a + 1
	cf := c.Regs.GetFlag(FlagCF)
	adjustAdd8(&c.Regs, a, 1, result, 0)
	c.Regs.SetFlag(FlagCF, cf) // INC/DEC do not touch CF
	c.WriteByte(p.BArg1, result)
}

func opINC16(c *CPU, p *PreparedInstruction) {
	a := c.ReadWord(p.WArg1)
	result := a + 1
	cf := c.Regs.GetFlag(FlagCF)
	adjustAdd16(&c.Regs, a, 1, result, 0)
	c.Regs.SetFlag(FlagCF, cf)
	c.WriteWord(p.WArg1, result)
}

func opDEC8(c *CPU, p *PreparedInstruction) {
	a := c.ReadByte(p.BArg1)
	result := a - 1
	cf := c.Regs.GetFlag(FlagCF)
	adjustSub8(&c.Regs, a, 1, result, 0)
	c.Regs.SetFlag(FlagCF, cf)
	c.WriteByte(p.BArg1, result)
}

func opDEC16(c *CPU, p *PreparedInstruction) {
	a := c.ReadWord(p.WArg1)
	result := a - 1
	cf := c.Regs.GetFlag(FlagCF)
	adjustSub16(&c.Regs, a, 1, result, 0)
	c.Regs.SetFlag(FlagCF, cf)
	c.WriteWord(p.WArg1, result)
}

func opNOT8(c *CPU, p *PreparedInstruction)  { c.WriteByte(p.BArg1, ^c.ReadByte(p.BArg1)) }
func opNOT16(c *CPU, p *PreparedInstruction) { c.WriteWord(p.WArg1, ^c.ReadWord(p.WArg1)) }

func opNEG8(c *CPU, p *PreparedInstruction) {
	a := c.ReadByte(p.BArg1)
	result := byte(0) - a
	adjustSub8(&c.Regs, 0, a, result, 0)
	c.Regs.SetFlag(FlagCF, a != 0)
	c.WriteByte(p.BArg1, result)
}

func opNEG16(c *CPU, p *PreparedInstruction) {
	a := c.ReadWord(p.WArg1)
	result := uint16(0) - a
	adjustSub16(&c.Regs, 0, a, result, 0)
	c.Regs.SetFlag(FlagCF, a != 0)
	c.WriteWord(p.WArg1, result)
}

func opMUL8(c *CPU, p *PreparedInstruction) {
	al := c.Regs.Reg8(RegAL)
	result := uint16(al) * uint16(c.ReadByte(p.BArg1))
	c.Regs.SetAX(result)
	overflow := result > 0xFF
	c.Regs.SetFlag(FlagCF, overflow)
	c.Regs.SetFlag(FlagOF, overflow)
}

func opMUL16(c *CPU, p *PreparedInstruction) {
	ax := c.Regs.AX()
	result := uint32(ax) * uint32(c.ReadWord(p.WArg1))
	c.Regs.SetAX(uint16(result))
	c.Regs.SetDX(uint16(result >> 16))
	overflow := uint16(result>>16) != 0
	c.Regs.SetFlag(FlagCF, overflow)
	c.Regs.SetFlag(FlagOF, overflow)
}

func opIMUL8(c *CPU, p *PreparedInstruction) {
	al := int8(c.Regs.Reg8(RegAL))
	operand := int8(c.ReadByte(p.BArg1))
	result := int16(al) * int16(operand)
	c.Regs.SetAX(uint16(result))
	overflow := result != int16(int8(result))
	c.Regs.SetFlag(FlagCF, overflow)
	c.Regs.SetFlag(FlagOF, overflow)
}

func opIMUL16(c *CPU, p *PreparedInstruction) {
	ax := int16(c.Regs.AX())
	operand := int16(c.ReadWord(p.WArg1))
	result := int32(ax) * int32(operand)
	c.Regs.SetAX(uint16(result))
	c.Regs.SetDX(uint16(result >> 16))
	overflow := result != int32(int16(result))
	c.Regs.SetFlag(FlagCF, overflow)
	c.Regs.SetFlag(FlagOF, overflow)
}

func opIDIV8(c *CPU, p *PreparedInstruction) {
	divisor := int8(c.ReadByte(p.BArg1))
	c.check(c.Mode == ModeDryRun || divisor != 0, "divide by zero")
	if divisor == 0 {
		return // dry run only: the operand read as zero
	}
	ax := int16(c.Regs.AX())
	c.Regs.SetReg8(RegAL, byte(ax/int16(divisor)))
	c.Regs.SetReg8(RegAH, byte(ax%int16(divisor)))
}

func opIDIV16(c *CPU, p *PreparedInstruction) {
	divisor := int16(c.ReadWord(p.WArg1))
	c.check(c.Mode == ModeDryRun || divisor != 0, "divide by zero")
	if divisor == 0 {
		return // dry run only: the operand read as zero
	}
	dividend := int32(uint32(c.Regs.DX())<<16 | uint32(c.Regs.AX()))
	c.Regs.SetAX(uint16(dividend / int32(divisor)))
	c.Regs.SetDX(uint16(dividend % int32(divisor)))
}

func opDIV8(c *CPU, p *PreparedInstruction) {
	divisor := c.ReadByte(p.BArg1)
	c.check(c.Mode == ModeDryRun || divisor != 0, "divide by zero")
	if divisor == 0 {
		return // dry run only: the operand read as zero
	}
	ax := c.Regs.AX()
	c.Regs.SetReg8(RegAL, byte(ax/uint16(divisor)))
	c.Regs.SetReg8(RegAH, byte(ax%uint16(divisor)))
}

func opDIV16(c *CPU, p *PreparedInstruction) {
	divisor := c.ReadWord(p.WArg1)
	c.check(c.Mode == ModeDryRun || divisor != 0, "divide by zero")
	if divisor == 0 {
		return // dry run only: the operand read as zero
	}
	dividend := uint32(c.Regs.DX())<<16 | uint32(c.Regs.AX())
	c.Regs.SetAX(uint16(dividend / uint32(divisor)))
	c.Regs.SetDX(uint16(dividend % uint32(divisor)))
}

// --- shifts and rotates (group D0-D3) ---

func opROL8(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadByte(p.BArg1)
	for i := byte(0); i < count; i++ {
		top := v&0x80 != 0
		v = v<<1 | boolBit(top)
		c.Regs.SetFlag(FlagCF, top)
	}
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x80 != 0) != c.Regs.GetFlag(FlagCF))
	}
	c.WriteByte(p.BArg1, v)
}

func opROL16(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadWord(p.WArg1)
	for i := byte(0); i < count; i++ {
		top := v&0x8000 != 0
		v = v<<1 | boolBit16(top)
		c.Regs.SetFlag(FlagCF, top)
	}
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x8000 != 0) != c.Regs.GetFlag(FlagCF))
	}
	c.WriteWord(p.WArg1, v)
}

func opROR8(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadByte(p.BArg1)
	for i := byte(0); i < count; i++ {
		bottom := v&1 != 0
		v = v>>1 | boolBit(bottom)<<7
		c.Regs.SetFlag(FlagCF, bottom)
	}
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x80 != 0) != (v&0x40 != 0))
	}
	c.WriteByte(p.BArg1, v)
}

func opROR16(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadWord(p.WArg1)
	for i := byte(0); i < count; i++ {
		bottom := v&1 != 0
		v = v>>1 | boolBit16(bottom)<<15
		c.Regs.SetFlag(FlagCF, bottom)
	}
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x8000 != 0) != (v&0x4000 != 0))
	}
	c.WriteWord(p.WArg1, v)
}

// opRCL8/16 rotate through carry, matching the CALL_RCL boundary
// scenario: RCL BX,1 with BX=0b0101010100110101, CF=1 produces
// BX=0b1010101001101011, CF=0.
func opRCL8(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadByte(p.BArg1)
	cf := c.Regs.GetFlag(FlagCF)
	for i := byte(0); i < count; i++ {
		newCF := v&0x80 != 0
		v = v<<1 | boolBit(cf)
		cf = newCF
	}
	c.Regs.SetFlag(FlagCF, cf)
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x80 != 0) != cf)
	}
	c.WriteByte(p.BArg1, v)
}

func opRCL16(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadWord(p.WArg1)
	cf := c.Regs.GetFlag(FlagCF)
	for i := byte(0); i < count; i++ {
		newCF := v&0x8000 != 0
		v = v<<1 | boolBit16(cf)
		cf = newCF
	}
	c.Regs.SetFlag(FlagCF, cf)
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x8000 != 0) != cf)
	}
	c.WriteWord(p.WArg1, v)
}

func opRCR8(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadByte(p.BArg1)
	cf := c.Regs.GetFlag(FlagCF)
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x80 != 0) != cf)
	}
	for i := byte(0); i < count; i++ {
		newCF := v&1 != 0
		v = v>>1 | boolBit(cf)<<7
		cf = newCF
	}
	c.Regs.SetFlag(FlagCF, cf)
	c.WriteByte(p.BArg1, v)
}

func opRCR16(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadWord(p.WArg1)
	cf := c.Regs.GetFlag(FlagCF)
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x8000 != 0) != cf)
	}
	for i := byte(0); i < count; i++ {
		newCF := v&1 != 0
		v = v>>1 | boolBit16(cf)<<15
		cf = newCF
	}
	c.Regs.SetFlag(FlagCF, cf)
	c.WriteWord(p.WArg1, v)
}

func opSHL8(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadByte(p.BArg1)
	var lastOut bool
	for i := byte(0); i < count; i++ {
		lastOut = v&0x80 != 0
		v <<= 1
	}
	if count > 0 {
		c.Regs.SetFlag(FlagCF, lastOut)
	}
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x80 != 0) != lastOut)
	}
	setZSP8(&c.Regs, v)
	c.WriteByte(p.BArg1, v)
}

func opSHL16(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadWord(p.WArg1)
	var lastOut bool
	for i := byte(0); i < count; i++ {
		lastOut = v&0x8000 != 0
		v <<= 1
	}
	if count > 0 {
		c.Regs.SetFlag(FlagCF, lastOut)
	}
	if count == 1 {
		c.Regs.SetFlag(FlagOF, (v&0x8000 != 0) != lastOut)
	}
	setZSP16(&c.Regs, v)
	c.WriteWord(p.WArg1, v)
}

func opSHR8(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadByte(p.BArg1)
	if count == 1 {
		c.Regs.SetFlag(FlagOF, v&0x80 != 0)
	}
	var lastOut bool
	for i := byte(0); i < count; i++ {
		lastOut = v&1 != 0
		v >>= 1
	}
	if count > 0 {
		c.Regs.SetFlag(FlagCF, lastOut)
	}
	setZSP8(&c.Regs, v)
	c.WriteByte(p.BArg1, v)
}

func opSHR16(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadWord(p.WArg1)
	if count == 1 {
		c.Regs.SetFlag(FlagOF, v&0x8000 != 0)
	}
	var lastOut bool
	for i := byte(0); i < count; i++ {
		lastOut = v&1 != 0
		v >>= 1
	}
	if count > 0 {
		c.Regs.SetFlag(FlagCF, lastOut)
	}
	setZSP16(&c.Regs, v)
	c.WriteWord(p.WArg1, v)
}

func opSAR8(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadByte(p.BArg1)
	if count == 1 {
		c.Regs.SetFlag(FlagOF, false)
	}
	var lastOut bool
	sv := int8(v)
	for i := byte(0); i < count; i++ {
		lastOut = sv&1 != 0
		sv >>= 1
	}
	if count > 0 {
		c.Regs.SetFlag(FlagCF, lastOut)
	}
	setZSP8(&c.Regs, byte(sv))
	c.WriteByte(p.BArg1, byte(sv))
}

func opSAR16(c *CPU, p *PreparedInstruction, count byte) {
	v := c.ReadWord(p.WArg1)
	if count == 1 {
		c.Regs.SetFlag(FlagOF, false)
	}
	var lastOut bool
	sv := int16(v)
	for i := byte(0); i < count; i++ {
		lastOut = sv&1 != 0
		sv >>= 1
	}
	if count > 0 {
		c.Regs.SetFlag(FlagCF, lastOut)
	}
	setZSP16(&c.Regs, uint16(sv))
	c.WriteWord(p.WArg1, uint16(sv))
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func boolBit16(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// --- stack ---

// push and pop leave SP and memory untouched in ModeDryRun; a dry-run
// pop reads as zero, like every other dry-run operand read.
func (c *CPU) push(v uint16) {
	if c.Mode == ModeDryRun {
		return
	}
	c.Regs.SetSP(c.Regs.SP() - 2)
	c.Mem.WriteWord(c.GetSS_SP(), v)
}

func (c *CPU) pop() uint16 {
	if c.Mode == ModeDryRun {
		return 0
	}
	v := c.Mem.ReadWord(c.GetSS_SP())
	c.Regs.SetSP(c.Regs.SP() + 2)
	return v
}

func opPUSH(c *CPU, p *PreparedInstruction) { c.push(c.ReadWord(p.WArg1)) }
func opPOP(c *CPU, p *PreparedInstruction)  { c.WriteWord(p.WArg1, c.pop()) }

// --- control transfer ---

func opCALLnear(c *CPU, p *PreparedInstruction) {
	c.push(c.Regs.IP())
	if c.Mode == ModeReal {
		c.callStack = append(c.callStack, CallFrame{CS: c.Regs.CS(), IP: p.CurrentIP})
	}
	c.recordEntryPoint(GetLinearAddress(c.Regs.CS(), p.RelTarget))
	c.Regs.SetIP(p.RelTarget)
}

// opCALLIndirect implements CALL r/m16: the target comes from the
// resolved operand rather than a decode-time-fixed relative offset.
func opCALLIndirect(c *CPU, p *PreparedInstruction) {
	target := c.ReadWord(p.WArg1)
	c.push(c.Regs.IP())
	if c.Mode == ModeReal {
		c.callStack = append(c.callStack, CallFrame{CS: c.Regs.CS(), IP: p.CurrentIP})
	}
	if target != 0 {
		c.recordEntryPoint(GetLinearAddress(c.Regs.CS(), target))
	}
	c.Regs.SetIP(target)
}

func opRETnear(c *CPU, p *PreparedInstruction) {
	c.Regs.SetIP(c.pop())
	if c.Mode == ModeReal && len(c.callStack) > 0 {
		c.callStack = c.callStack[:len(c.callStack)-1]
	}
}

func opRETnearImm(c *CPU, p *PreparedInstruction) {
	c.Regs.SetIP(c.pop())
	c.Regs.SetSP(c.Regs.SP() + c.ReadWord(p.WArg1))
	if c.Mode == ModeReal && len(c.callStack) > 0 {
		c.callStack = c.callStack[:len(c.callStack)-1]
	}
}

func opFarUnsupported(c *CPU, p *PreparedInstruction) {
	c.check(false, fmt.Sprintf("%s is unreachable in the target workload", p.Mnemonic))
}

func opJMPnear(c *CPU, p *PreparedInstruction) {
	c.recordEntryPoint(GetLinearAddress(c.Regs.CS(), p.RelTarget))
	c.Regs.SetIP(p.RelTarget)
}

// opJMPreg implements JMP r/m16 (indirect). Per Design Notes' resolved
// Open Question, a nonzero target is recorded as an entry point; a zero
// target is not, but the line always stops exploring either way.
func opJMPreg(c *CPU, p *PreparedInstruction) {
	target := c.ReadWord(p.WArg1)
	if target != 0 {
		c.recordEntryPoint(GetLinearAddress(c.Regs.CS(), target))
	}
	c.Regs.SetIP(target)
}

func makeJcc(mnemonic string, test func(r *Registers) bool) execFunc {
	return func(c *CPU, p *PreparedInstruction) {
		if test(&c.Regs) {
			c.recordEntryPoint(GetLinearAddress(c.Regs.CS(), p.RelTarget))
			c.Regs.SetIP(p.RelTarget)
		}
	}
}

func opLOOP(c *CPU, p *PreparedInstruction) {
	cx := c.Regs.CX() - 1
	c.Regs.SetCX(cx)
	if cx != 0 {
		c.recordEntryPoint(GetLinearAddress(c.Regs.CS(), p.RelTarget))
		c.Regs.SetIP(p.RelTarget)
	}
}

func opLOOPZ(c *CPU, p *PreparedInstruction) {
	cx := c.Regs.CX() - 1
	c.Regs.SetCX(cx)
	if cx != 0 && c.Regs.GetFlag(FlagZF) {
		c.recordEntryPoint(GetLinearAddress(c.Regs.CS(), p.RelTarget))
		c.Regs.SetIP(p.RelTarget)
	}
}

func opLOOPNZ(c *CPU, p *PreparedInstruction) {
	cx := c.Regs.CX() - 1
	c.Regs.SetCX(cx)
	if cx != 0 && !c.Regs.GetFlag(FlagZF) {
		c.recordEntryPoint(GetLinearAddress(c.Regs.CS(), p.RelTarget))
		c.Regs.SetIP(p.RelTarget)
	}
}

func opJCXZ(c *CPU, p *PreparedInstruction) {
	if c.Regs.CX() == 0 {
		c.recordEntryPoint(GetLinearAddress(c.Regs.CS(), p.RelTarget))
		c.Regs.SetIP(p.RelTarget)
	}
}

// --- flags ---

func opCLC(c *CPU, p *PreparedInstruction) { c.Regs.SetFlag(FlagCF, false) }
func opSTC(c *CPU, p *PreparedInstruction) { c.Regs.SetFlag(FlagCF, true) }
func opCMC(c *CPU, p *PreparedInstruction) { c.Regs.SetFlag(FlagCF, !c.Regs.GetFlag(FlagCF)) }
func opCLD(c *CPU, p *PreparedInstruction) { c.Regs.SetFlag(FlagDF, false) }
func opSTD(c *CPU, p *PreparedInstruction) { c.Regs.SetFlag(FlagDF, true) }
func opCLI(c *CPU, p *PreparedInstruction) { c.Regs.SetFlag(FlagIF, false) }
func opSTI(c *CPU, p *PreparedInstruction) { c.Regs.SetFlag(FlagIF, true) }
func opNOP(c *CPU, p *PreparedInstruction) {}

// --- interrupts and I/O ---

func opINT(c *CPU, p *PreparedInstruction) {
	n := byte(p.WArg1.Imm)
	h, ok := c.interrupts[n]
	if !ok {
		warnf("no handler registered for INT %02Xh", n)
		return
	}
	h(c, n)
}

func opIN8(c *CPU, p *PreparedInstruction) {
	port := c.ReadWord(p.WArg2)
	h, ok := c.ioIn[port]
	if !ok {
		warnf("no IN handler registered for port %04Xh", port)
		c.WriteByte(p.BArg1, 0)
		return
	}
	c.WriteByte(p.BArg1, h(c, port))
}

func opOUT8(c *CPU, p *PreparedInstruction) {
	port := c.ReadWord(p.WArg1)
	h, ok := c.ioOut[port]
	if !ok {
		warnf("no OUT handler registered for port %04Xh", port)
		return
	}
	h(c, port, c.ReadByte(p.BArg2))
}

// --- string primitives; REP looping lives in repLoop/wrapRep below ---

func stringDelta(c *CPU, word bool) uint16 {
	step := uint16(1)
	if word {
		step = 2
	}
	if c.Regs.GetFlag(FlagDF) {
		return 0 - step
	}
	return step
}

func opMOVSB(c *CPU, p *PreparedInstruction) {
	srcSeg := c.Regs.Reg16(p.Segment)
	src := GetLinearAddress(srcSeg, c.Regs.SI())
	dst := GetLinearAddress(c.Regs.ES(), c.Regs.DI())
	c.Mem.Write(dst, c.Mem.Read(src))
	d := stringDelta(c, false)
	c.Regs.SetSI(c.Regs.SI() + d)
	c.Regs.SetDI(c.Regs.DI() + d)
}

func opMOVSW(c *CPU, p *PreparedInstruction) {
	srcSeg := c.Regs.Reg16(p.Segment)
	src := GetLinearAddress(srcSeg, c.Regs.SI())
	dst := GetLinearAddress(c.Regs.ES(), c.Regs.DI())
	c.Mem.WriteWord(dst, c.Mem.ReadWord(src))
	d := stringDelta(c, true)
	c.Regs.SetSI(c.Regs.SI() + d)
	c.Regs.SetDI(c.Regs.DI() + d)
}

func opSTOSB(c *CPU, p *PreparedInstruction) {
	dst := GetLinearAddress(c.Regs.ES(), c.Regs.DI())
	c.Mem.Write(dst, c.Regs.Reg8(RegAL))
	c.Regs.SetDI(c.Regs.DI() + stringDelta(c, false))
}

func opSTOSW(c *CPU, p *PreparedInstruction) {
	dst := GetLinearAddress(c.Regs.ES(), c.Regs.DI())
	c.Mem.WriteWord(dst, c.Regs.AX())
	c.Regs.SetDI(c.Regs.DI() + stringDelta(c, true))
}

func opLODSB(c *CPU, p *PreparedInstruction) {
	srcSeg := c.Regs.Reg16(p.Segment)
	src := GetLinearAddress(srcSeg, c.Regs.SI())
	c.Regs.SetReg8(RegAL, c.Mem.Read(src))
	c.Regs.SetSI(c.Regs.SI() + stringDelta(c, false))
}

func opLODSW(c *CPU, p *PreparedInstruction) {
	srcSeg := c.Regs.Reg16(p.Segment)
	src := GetLinearAddress(srcSeg, c.Regs.SI())
	c.Regs.SetAX(c.Mem.ReadWord(src))
	c.Regs.SetSI(c.Regs.SI() + stringDelta(c, true))
}

// opCMPSB/opCMPSW compare one element and set the flags; the REP
// wrapper reads ZF from them to decide whether to keep looping.
func opCMPSB(c *CPU, p *PreparedInstruction) {
	srcSeg := c.Regs.Reg16(p.Segment)
	src := GetLinearAddress(srcSeg, c.Regs.SI())
	dst := GetLinearAddress(c.Regs.ES(), c.Regs.DI())
	a, b := c.Mem.Read(src), c.Mem.Read(dst)
	adjustSub8(&c.Regs, a, b, a-b, 0)
	d := stringDelta(c, false)
	c.Regs.SetSI(c.Regs.SI() + d)
	c.Regs.SetDI(c.Regs.DI() + d)
}

func opCMPSW(c *CPU, p *PreparedInstruction) {
	srcSeg := c.Regs.Reg16(p.Segment)
	src := GetLinearAddress(srcSeg, c.Regs.SI())
	dst := GetLinearAddress(c.Regs.ES(), c.Regs.DI())
	a, b := c.Mem.ReadWord(src), c.Mem.ReadWord(dst)
	adjustSub16(&c.Regs, a, b, a-b, 0)
	d := stringDelta(c, true)
	c.Regs.SetSI(c.Regs.SI() + d)
	c.Regs.SetDI(c.Regs.DI() + d)
}

func opSCASB(c *CPU, p *PreparedInstruction) {
	dst := GetLinearAddress(c.Regs.ES(), c.Regs.DI())
	a, b := c.Regs.Reg8(RegAL), c.Mem.Read(dst)
	adjustSub8(&c.Regs, a, b, a-b, 0)
	c.Regs.SetDI(c.Regs.DI() + stringDelta(c, false))
}

func opSCASW(c *CPU, p *PreparedInstruction) {
	dst := GetLinearAddress(c.Regs.ES(), c.Regs.DI())
	a, b := c.Regs.AX(), c.Mem.ReadWord(dst)
	adjustSub16(&c.Regs, a, b, a-b, 0)
	c.Regs.SetDI(c.Regs.DI() + stringDelta(c, true))
}

// repLoop implements the REP/REPE/REPNE prefix: it runs primitive
// repeatedly while CX != 0, decrementing CX after each iteration, and
// for compare primitives (CMPS/SCAS) additionally stopping as soon as
// ZF disagrees with the prefix's condition (REPE stops on !ZF, REPNE
// stops on ZF). A bare primitive with no REP prefix runs exactly once.
func repLoop(c *CPU, p *PreparedInstruction, primitive execFunc, isCompare bool) {
	if p.Rep == RepNone {
		primitive(c, p)
		return
	}
	for c.Regs.CX() != 0 {
		primitive(c, p)
		c.Regs.SetCX(c.Regs.CX() - 1)
		if isCompare {
			zf := c.Regs.GetFlag(FlagZF)
			if p.Rep == RepREP && !zf {
				break
			}
			if p.Rep == RepREPNE && zf {
				break
			}
		}
	}
}

// wrapRep binds a string primitive to the REP-looping wrapper at
// decode time, so Exec is a single call regardless of prefix.
func wrapRep(primitive execFunc, isCompare bool) execFunc {
	return func(c *CPU, p *PreparedInstruction) {
		repLoop(c, p, primitive, isCompare)
	}
}
