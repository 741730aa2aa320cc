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

// OperandKind distinguishes where a decoded operand lives. This is the
// tagged-variant stand-in for the raw register/memory pointers the
// decoder would hand out in a language with pointer aliasing.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandReg16
	OperandReg8
	OperandMem16
	OperandMem8
	OperandImm16 // read-only immediate, never a write target
	OperandImm8
)

// Operand is a resolved operand location: either a register-file slot
// or a linear memory address, plus its width. Lifetimes are tied to the
// step that produced it, per spec.md's Prepared Instruction invariant.
type Operand struct {
	Kind OperandKind
	Reg  int    // valid when Kind is OperandReg16/OperandReg8
	Addr uint32 // valid when Kind is OperandMem16/OperandMem8
	Imm  uint16 // valid when Kind is OperandImm16/OperandImm8
}

func regOperand16(i int) Operand { return Operand{Kind: OperandReg16, Reg: i} }
func regOperand8(i int) Operand  { return Operand{Kind: OperandReg8, Reg: i} }
func memOperand16(addr uint32) Operand { return Operand{Kind: OperandMem16, Addr: addr} }
func memOperand8(addr uint32) Operand  { return Operand{Kind: OperandMem8, Addr: addr} }
func immOperand16(v uint16) Operand { return Operand{Kind: OperandImm16, Imm: v} }
func immOperand8(v byte) Operand    { return Operand{Kind: OperandImm8, Imm: uint16(v)} }

// ExecutionMode selects between mutating the real CPU state and the
// disassembler's dry-run probing of the decoder, per Design Notes: a
// single executor parameterized by mode instead of a parallel CPU type.
type ExecutionMode int

const (
	ModeReal ExecutionMode = iota
	ModeDryRun
)
