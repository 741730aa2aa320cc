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

// Register indices into Registers.regs16, in the fixed order spec.md
// mandates.
const (
	RegAX = iota
	RegBX
	RegCX
	RegDX
	RegCS
	RegDS
	RegSS
	RegES
	RegBP
	RegSP
	RegDI
	RegSI
	RegIP
	regCount
)

var reg16Names = [regCount]string{
	RegAX: "AX", RegBX: "BX", RegCX: "CX", RegDX: "DX",
	RegCS: "CS", RegDS: "DS", RegSS: "SS", RegES: "ES",
	RegBP: "BP", RegSP: "SP", RegDI: "DI", RegSI: "SI", RegIP: "IP",
}

// encodingToReg16 maps the 8086's 3-bit word-register encoding (used by
// both ModR/M's reg/rm fields and the reg-in-opcode forms 0x40-0x5F,
// 0xB8-0xBF, 0x91-0x97) to this package's fixed RegAX..RegIP order. The
// wire encoding's order (AX CX DX BX SP BP SI DI) does not match the
// spec's named register order, so every ModR/M-or-opcode-embedded
// 16-bit register index must pass through this table before indexing
// Registers.regs16.
var encodingToReg16 = [8]int{RegAX, RegCX, RegDX, RegBX, RegSP, RegBP, RegSI, RegDI}

// Byte-register indices. Only AX/BX/CX/DX have addressable halves; the
// encoding order matches the 8086 r8 field (AL CL DL BL AH CH DH BH).
const (
	RegAL = iota
	RegCL
	RegDL
	RegBL
	RegAH
	RegCH
	RegDH
	RegBH
	reg8Count
)

var reg8Names = [reg8Count]string{
	RegAL: "AL", RegCL: "CL", RegDL: "DL", RegBL: "BL",
	RegAH: "AH", RegCH: "CH", RegDH: "DH", RegBH: "BH",
}

// reg8To16 maps a byte register index to the word register it aliases.
var reg8To16 = [reg8Count]int{
	RegAL: RegAX, RegCL: RegCX, RegDL: RegDX, RegBL: RegBX,
	RegAH: RegAX, RegCH: RegCX, RegDH: RegDX, RegBH: RegBX,
}

// reg8IsHigh reports whether a byte register index addresses the high
// half of its word register.
var reg8IsHigh = [reg8Count]bool{
	RegAL: false, RegCL: false, RegDL: false, RegBL: false,
	RegAH: true, RegCH: true, RegDH: true, RegBH: true,
}

// Flag bit positions, at their canonical 8086 positions.
const (
	FlagCF = 1 << 0
	FlagPF = 1 << 2
	FlagAF = 1 << 4
	FlagZF = 1 << 6
	FlagSF = 1 << 7
	FlagTF = 1 << 8
	FlagIF = 1 << 9
	FlagDF = 1 << 10
	FlagOF = 1 << 11
)

// Registers holds the 13 word registers and the flags word. Byte
// halves of AX/BX/CX/DX are computed accessors, not separate storage,
// so writing AX and reading AL/AH never desynchronize.
type Registers struct {
	regs16 [regCount]uint16
	Flags  uint16
}

// Reg16 returns the current value of word register i.
func (r *Registers) Reg16(i int) uint16 { return r.regs16[i] }

// SetReg16 stores v into word register i.
func (r *Registers) SetReg16(i int, v uint16) { r.regs16[i] = v }

// Reg8 returns the current value of byte register i.
func (r *Registers) Reg8(i int) byte {
	v := r.regs16[reg8To16[i]]
	if reg8IsHigh[i] {
		return byte(v >> 8)
	}
	return byte(v)
}

// SetReg8 stores v into byte register i, leaving the other half of the
// aliased word register untouched.
func (r *Registers) SetReg8(i int, v byte) {
	wi := reg8To16[i]
	cur := r.regs16[wi]
	if reg8IsHigh[i] {
		r.regs16[wi] = uint16(v)<<8 | cur&0x00FF
	} else {
		r.regs16[wi] = cur&0xFF00 | uint16(v)
	}
}

func (r *Registers) GetFlag(mask uint16) bool { return r.Flags&mask != 0 }

func (r *Registers) SetFlag(mask uint16, set bool) {
	if set {
		r.Flags |= mask
	} else {
		r.Flags &^= mask
	}
}

// named word-register convenience accessors, used heavily by the
// executor and by tests grounded directly on spec.md's scenarios.
func (r *Registers) AX() uint16    { return r.regs16[RegAX] }
func (r *Registers) SetAX(v uint16) { r.regs16[RegAX] = v }
func (r *Registers) BX() uint16    { return r.regs16[RegBX] }
func (r *Registers) SetBX(v uint16) { r.regs16[RegBX] = v }
func (r *Registers) CX() uint16    { return r.regs16[RegCX] }
func (r *Registers) SetCX(v uint16) { r.regs16[RegCX] = v }
func (r *Registers) DX() uint16    { return r.regs16[RegDX] }
func (r *Registers) SetDX(v uint16) { r.regs16[RegDX] = v }
func (r *Registers) CS() uint16    { return r.regs16[RegCS] }
func (r *Registers) SetCS(v uint16) { r.regs16[RegCS] = v }
func (r *Registers) DS() uint16    { return r.regs16[RegDS] }
func (r *Registers) SetDS(v uint16) { r.regs16[RegDS] = v }
func (r *Registers) SS() uint16    { return r.regs16[RegSS] }
func (r *Registers) SetSS(v uint16) { r.regs16[RegSS] = v }
func (r *Registers) ES() uint16    { return r.regs16[RegES] }
func (r *Registers) SetES(v uint16) { r.regs16[RegES] = v }
func (r *Registers) BP() uint16    { return r.regs16[RegBP] }
func (r *Registers) SetBP(v uint16) { r.regs16[RegBP] = v }
func (r *Registers) SP() uint16    { return r.regs16[RegSP] }
func (r *Registers) SetSP(v uint16) { r.regs16[RegSP] = v }
func (r *Registers) DI() uint16    { return r.regs16[RegDI] }
func (r *Registers) SetDI(v uint16) { r.regs16[RegDI] = v }
func (r *Registers) SI() uint16    { return r.regs16[RegSI] }
func (r *Registers) SetSI(v uint16) { r.regs16[RegSI] = v }
func (r *Registers) IP() uint16    { return r.regs16[RegIP] }
func (r *Registers) SetIP(v uint16) { r.regs16[RegIP] = v }

// signExtend sign-extends an 8-bit value to 16 bits, per spec.md's
// required primitive.
func signExtend(b byte) uint16 {
	if b < 0x80 {
		return uint16(b)
	}
	return 0xFF00 | uint16(b)
}
