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

// parityTable[b] is true when b has an even number of set bits, the
// even-parity convention the 8086 PF flag uses. Precomputed once, per
// spec.md 4.3.
var parityTable [256]bool

func init() {
	for i := 0; i < 256; i++ {
		bits := 0
		for v := i; v != 0; v >>= 1 {
			bits += v & 1
		}
		parityTable[i] = bits%2 == 0
	}
}

func setZSP8(r *Registers, result byte) {
	r.SetFlag(FlagZF, result == 0)
	r.SetFlag(FlagSF, result&0x80 != 0)
	r.SetFlag(FlagPF, parityTable[result])
}

func setZSP16(r *Registers, result uint16) {
	r.SetFlag(FlagZF, result == 0)
	r.SetFlag(FlagSF, result&0x8000 != 0)
	r.SetFlag(FlagPF, parityTable[byte(result)])
}

// adjustAdd8/16 compute CF/OF/AF for ADD/ADC alongside ZSP.
func adjustAdd8(r *Registers, a, b, result byte, carryIn byte) {
	wide := uint16(a) + uint16(b) + uint16(carryIn)
	r.SetFlag(FlagCF, wide > 0xFF)
	r.SetFlag(FlagAF, (a&0x0F)+(b&0x0F)+carryIn > 0x0F)
	r.SetFlag(FlagOF, (a^result)&(b^result)&0x80 != 0)
	setZSP8(r, result)
}

func adjustAdd16(r *Registers, a, b, result uint16, carryIn uint16) {
	wide := uint32(a) + uint32(b) + uint32(carryIn)
	r.SetFlag(FlagCF, wide > 0xFFFF)
	r.SetFlag(FlagAF, (a&0x0F)+(b&0x0F)+carryIn > 0x0F)
	r.SetFlag(FlagOF, (a^result)&(b^result)&0x8000 != 0)
	setZSP16(r, result)
}

// adjustSub8/16 compute CF (borrow)/OF/AF for SUB/SBB/CMP alongside ZSP.
func adjustSub8(r *Registers, a, b, result byte, borrowIn byte) {
	r.SetFlag(FlagCF, uint16(a) < uint16(b)+uint16(borrowIn))
	r.SetFlag(FlagAF, int(a&0x0F)-int(b&0x0F)-int(borrowIn) < 0)
	r.SetFlag(FlagOF, (a^b)&(a^result)&0x80 != 0)
	setZSP8(r, result)
}

func adjustSub16(r *Registers, a, b, result uint16, borrowIn uint16) {
	r.SetFlag(FlagCF, uint32(a) < uint32(b)+uint32(borrowIn))
	r.SetFlag(FlagAF, int(a&0x0F)-int(b&0x0F)-int(borrowIn) < 0)
	r.SetFlag(FlagOF, (a^b)&(a^result)&0x8000 != 0)
	setZSP16(r, result)
}

// clearLogicFlags8/16 implement AND/OR/XOR/TEST's flag policy: CF and
// OF are always cleared, ZSP reflects the result.
func clearLogicFlags8(r *Registers, result byte) {
	r.SetFlag(FlagCF, false)
	r.SetFlag(FlagOF, false)
	setZSP8(r, result)
}

func clearLogicFlags16(r *Registers, result uint16) {
	r.SetFlag(FlagCF, false)
	r.SetFlag(FlagOF, false)
	setZSP16(r, result)
}
