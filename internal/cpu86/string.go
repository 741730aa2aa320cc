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

// rmBaseText names the r/m encoding's base expression, independent of
// displacement; used for both disassembly text and documentation of
// the effective-address table in spec.md 4.2.
var rmBaseText = [8]string{
	"BX+SI", "BX+DI", "BP+SI", "BP+DI", "SI", "DI", "BP", "BX",
}

// effAddrText renders a ModR/M memory operand the way a listing would:
// an optional segment-override prefix, brackets, and decimal-free hex
// displacement/address.
func effAddrText(d *decodeCtx, m modRM) string {
	prefix := ""
	if d.segmentOver != -1 {
		prefix = reg16Names[d.segmentOver] + ":"
	}
	if m.mod == 0 && m.rm == 6 {
		return fmt.Sprintf("%s[%Xh]", prefix, m.dispOrDirect)
	}
	base := rmBaseText[m.rm]
	switch {
	case m.mod == 1 || m.mod == 2:
		if int16(m.dispOrDirect) < 0 {
			return fmt.Sprintf("%s[%s-%Xh]", prefix, base, -int16(m.dispOrDirect))
		}
		return fmt.Sprintf("%s[%s+%Xh]", prefix, base, m.dispOrDirect)
	default:
		return fmt.Sprintf("%s[%s]", prefix, base)
	}
}

func hexImm(v uint16) string {
	return fmt.Sprintf("%Xh", v)
}

func hexImm8(v byte) string {
	return fmt.Sprintf("%Xh", v)
}

// operandText renders any Operand (register, memory, or immediate) for
// opcode_desc.
func operandText(d *decodeCtx, op Operand, m modRM) string {
	switch op.Kind {
	case OperandReg16:
		return reg16Names[op.Reg]
	case OperandReg8:
		return reg8Names[op.Reg]
	case OperandImm16:
		return hexImm(op.Imm)
	case OperandImm8:
		return hexImm8(byte(op.Imm))
	case OperandMem16, OperandMem8:
		return effAddrText(d, m)
	}
	return "?"
}
