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

// opcodeEntry binds an opcode byte to the function that decodes its
// operands and builds a PreparedInstruction. A nil decode func with an
// empty notImplemented name marks a genuinely invalid opcode; a nil
// decode func with a notImplemented name marks a recognized mnemonic
// this core deliberately does not execute (see registerNotImplemented).
type opcodeEntry struct {
	decode func(d *decodeCtx, opcode byte) *PreparedInstruction

	notImplemented string
	immBytes       int
}

var opcodeTable [256]opcodeEntry

// aluFamily describes one ADD/OR/ADC/SBB/AND/SUB/XOR/CMP block:
// mnemonic text and the 8/16-bit executor pair.
type aluFamily struct {
	name        string
	exec8       execFunc
	exec16      execFunc
	writesBack  bool
}

func init() {
	registerALUFamilies()
	registerTEST()
	registerDataMovement()
	registerIncDecPushPop()
	registerStringOps()
	registerControlTransfer()
	registerFlagsAndMisc()
	registerIntAndIO()
	registerGroups()
	registerNotImplemented()
}

// registerALUFamilies wires the eight contiguous 6-opcode blocks
// 0x00.. 0x38 (ADD OR ADC SBB AND SUB XOR CMP), each encoding
// Eb,Gb / Ev,Gv / Gb,Eb / Gv,Ev / AL,ib / AX,iv per spec.md 4.2.
func registerALUFamilies() {
	families := []struct {
		base byte
		f    aluFamily
	}{
		{0x00, aluFamily{"ADD", opADD8, opADD16, true}},
		{0x08, aluFamily{"OR", opOR8, opOR16, true}},
		{0x10, aluFamily{"ADC", opADC8, opADC16, true}},
		{0x18, aluFamily{"SBB", opSBB8, opSBB16, true}},
		{0x20, aluFamily{"AND", opAND8, opAND16, true}},
		{0x28, aluFamily{"SUB", opSUB8, opSUB16, true}},
		{0x30, aluFamily{"XOR", opXOR8, opXOR16, true}},
		{0x38, aluFamily{"CMP", opCMP8, opCMP16, false}},
	}
	for _, e := range families {
		registerALUFamily(e.base, e.f)
	}
}

func registerALUFamily(base byte, f aluFamily) {
	// +0: Eb, Gb (r/m8 <- r/m8 op reg8)
	opcodeTable[base+0x00].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmByteOperand(m)
		src := regOperand8(m.reg)
		return &PreparedInstruction{
			Mnemonic: f.name, Segment: dataSegOrDS(m),
			BArg1: dst, BArg2: src, Exec: f.exec8,
			OpcodeDesc: fmt.Sprintf("%s %s, %s", f.name, operandText(d, dst, m), reg8Names[m.reg]),
		}
	}
	// +1: Ev, Gv
	opcodeTable[base+0x01].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmWordOperand(m)
		src := regOperand16(encodingToReg16[m.reg])
		return &PreparedInstruction{
			Mnemonic: f.name, Segment: dataSegOrDS(m),
			WArg1: dst, WArg2: src, Exec: f.exec16,
			OpcodeDesc: fmt.Sprintf("%s %s, %s", f.name, operandText(d, dst, m), reg16Names[encodingToReg16[m.reg]]),
		}
	}
	// +2: Gb, Eb
	opcodeTable[base+0x02].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := regOperand8(m.reg)
		src := d.rmByteOperand(m)
		return &PreparedInstruction{
			Mnemonic: f.name, Segment: dataSegOrDS(m),
			BArg1: dst, BArg2: src, Exec: f.exec8,
			OpcodeDesc: fmt.Sprintf("%s %s, %s", f.name, reg8Names[m.reg], operandText(d, src, m)),
		}
	}
	// +3: Gv, Ev
	opcodeTable[base+0x03].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := regOperand16(encodingToReg16[m.reg])
		src := d.rmWordOperand(m)
		return &PreparedInstruction{
			Mnemonic: f.name, Segment: dataSegOrDS(m),
			WArg1: dst, WArg2: src, Exec: f.exec16,
			OpcodeDesc: fmt.Sprintf("%s %s, %s", f.name, reg16Names[encodingToReg16[m.reg]], operandText(d, src, m)),
		}
	}
	// +4: AL, ib
	opcodeTable[base+0x04].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		imm := d.fetchByte()
		dst := regOperand8(RegAL)
		src := immOperand8(imm)
		return &PreparedInstruction{
			Mnemonic: f.name, Segment: RegDS,
			BArg1: dst, BArg2: src, Exec: f.exec8,
			OpcodeDesc: fmt.Sprintf("%s AL, %s", f.name, hexImm8(imm)),
		}
	}
	// +5: AX, iv
	opcodeTable[base+0x05].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		imm := d.fetchWord()
		dst := regOperand16(RegAX)
		src := immOperand16(imm)
		return &PreparedInstruction{
			Mnemonic: f.name, Segment: RegDS,
			WArg1: dst, WArg2: src, Exec: f.exec16,
			OpcodeDesc: fmt.Sprintf("%s AX, %s", f.name, hexImm(imm)),
		}
	}
}

// registerTEST wires TEST's two non-contiguous opcode pairs: 0x84/0x85
// (Eb,Gb / Ev,Gv, the ubiquitous "TEST reg, reg" compiler idiom) and
// 0xA8/0xA9 (AL,ib / AX,iv). TEST shares aluFamily's shape but does not
// sit in the ADD..CMP block's contiguous base+0x00..0x05 layout, so it
// gets its own registration rather than a ninth families entry.
func registerTEST() {
	opcodeTable[0x84].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmByteOperand(m)
		src := regOperand8(m.reg)
		return &PreparedInstruction{
			Mnemonic: "TEST", Segment: dataSegOrDS(m),
			BArg1: dst, BArg2: src, Exec: opTEST8,
			OpcodeDesc: fmt.Sprintf("TEST %s, %s", operandText(d, dst, m), reg8Names[m.reg]),
		}
	}
	opcodeTable[0x85].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmWordOperand(m)
		src := regOperand16(encodingToReg16[m.reg])
		return &PreparedInstruction{
			Mnemonic: "TEST", Segment: dataSegOrDS(m),
			WArg1: dst, WArg2: src, Exec: opTEST16,
			OpcodeDesc: fmt.Sprintf("TEST %s, %s", operandText(d, dst, m), reg16Names[encodingToReg16[m.reg]]),
		}
	}
	opcodeTable[0xA8].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		imm := d.fetchByte()
		dst := regOperand8(RegAL)
		return &PreparedInstruction{
			Mnemonic: "TEST", Segment: RegDS,
			BArg1: dst, BArg2: immOperand8(imm), Exec: opTEST8,
			OpcodeDesc: fmt.Sprintf("TEST AL, %s", hexImm8(imm)),
		}
	}
	opcodeTable[0xA9].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		imm := d.fetchWord()
		dst := regOperand16(RegAX)
		return &PreparedInstruction{
			Mnemonic: "TEST", Segment: RegDS,
			WArg1: dst, WArg2: immOperand16(imm), Exec: opTEST16,
			OpcodeDesc: fmt.Sprintf("TEST AX, %s", hexImm(imm)),
		}
	}
}

// registerNotImplemented marks opcode bytes that name a real 8086
// mnemonic outside this core's scope for the .COM workload (BCD
// adjust, WAIT, software flags-to-AH, XLAT, HLT): recognized, but
// deliberately not given a decode/exec routine. decoder.go's decode()
// routes these through decodeNotImplemented rather than invalidOpcode.
// AAM/AAD carry a trailing immediate byte (conventionally 0Ah) that
// must still be consumed to keep the byte stream in sync.
func registerNotImplemented() {
	entries := []struct {
		opcode   byte
		name     string
		immBytes int
	}{
		{0x27, "DAA", 0}, {0x2F, "DAS", 0},
		{0x37, "AAA", 0}, {0x3F, "AAS", 0},
		{0x98, "CBW", 0}, {0x99, "CWD", 0}, {0x9B, "WAIT", 0},
		{0x9C, "PUSHF", 0}, {0x9D, "POPF", 0},
		{0x9E, "SAHF", 0}, {0x9F, "LAHF", 0},
		{0xD4, "AAM", 1}, {0xD5, "AAD", 1}, {0xD7, "XLAT", 0},
		{0xF4, "HLT", 0},
	}
	for _, e := range entries {
		opcodeTable[e.opcode].notImplemented = e.name
		opcodeTable[e.opcode].immBytes = e.immBytes
	}
}

func dataSegOrDS(m modRM) int {
	if m.isMem {
		return m.segReg
	}
	return RegDS
}

// registerDataMovement wires MOV (modrm forms, immediate-to-register,
// immediate-to-r/m), XCHG, and LEA. The AL/AX<->direct-address MOV
// forms (A0-A3) are not registered.
func registerDataMovement() {
	opcodeTable[0x88].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmByteOperand(m)
		src := regOperand8(m.reg)
		return &PreparedInstruction{Mnemonic: "MOV", Segment: dataSegOrDS(m), BArg1: dst, BArg2: src, Exec: opMOV8,
			OpcodeDesc: fmt.Sprintf("MOV %s, %s", operandText(d, dst, m), reg8Names[m.reg])}
	}
	opcodeTable[0x89].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmWordOperand(m)
		src := regOperand16(encodingToReg16[m.reg])
		return &PreparedInstruction{Mnemonic: "MOV", Segment: dataSegOrDS(m), WArg1: dst, WArg2: src, Exec: opMOV16,
			OpcodeDesc: fmt.Sprintf("MOV %s, %s", operandText(d, dst, m), reg16Names[encodingToReg16[m.reg]])}
	}
	opcodeTable[0x8A].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := regOperand8(m.reg)
		src := d.rmByteOperand(m)
		return &PreparedInstruction{Mnemonic: "MOV", Segment: dataSegOrDS(m), BArg1: dst, BArg2: src, Exec: opMOV8,
			OpcodeDesc: fmt.Sprintf("MOV %s, %s", reg8Names[m.reg], operandText(d, src, m))}
	}
	opcodeTable[0x8B].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := regOperand16(encodingToReg16[m.reg])
		src := d.rmWordOperand(m)
		return &PreparedInstruction{Mnemonic: "MOV", Segment: dataSegOrDS(m), WArg1: dst, WArg2: src, Exec: opMOV16,
			OpcodeDesc: fmt.Sprintf("MOV %s, %s", reg16Names[encodingToReg16[m.reg]], operandText(d, src, m))}
	}
	opcodeTable[0x8D].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		d.c.check(m.isMem, "LEA requires a memory r/m operand")
		dst := regOperand16(encodingToReg16[m.reg])
		src := d.rmWordOperand(m)
		return &PreparedInstruction{Mnemonic: "LEA", Segment: m.segReg, WArg1: dst, WArg2: src, Exec: opLEA,
			OpcodeDesc: fmt.Sprintf("LEA %s, %s", reg16Names[encodingToReg16[m.reg]], operandText(d, src, m))}
	}
	opcodeTable[0x86].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		a := d.rmByteOperand(m)
		b := regOperand8(m.reg)
		return &PreparedInstruction{Mnemonic: "XCHG", Segment: dataSegOrDS(m), BArg1: a, BArg2: b, Exec: opXCHG8,
			OpcodeDesc: fmt.Sprintf("XCHG %s, %s", operandText(d, a, m), reg8Names[m.reg])}
	}
	opcodeTable[0x87].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		a := d.rmWordOperand(m)
		b := regOperand16(encodingToReg16[m.reg])
		return &PreparedInstruction{Mnemonic: "XCHG", Segment: dataSegOrDS(m), WArg1: a, WArg2: b, Exec: opXCHG16,
			OpcodeDesc: fmt.Sprintf("XCHG %s, %s", operandText(d, a, m), reg16Names[encodingToReg16[m.reg]])}
	}
	// B0-B7: MOV r8, ib; B8-BF: MOV r16, iv
	for i := 0; i < 8; i++ {
		reg := i
		opcodeTable[0xB0+byte(i)].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
			imm := d.fetchByte()
			return &PreparedInstruction{Mnemonic: "MOV", Segment: RegDS,
				BArg1: regOperand8(reg), BArg2: immOperand8(imm), Exec: opMOV8,
				OpcodeDesc: fmt.Sprintf("MOV %s, %s", reg8Names[reg], hexImm8(imm))}
		}
		opcodeTable[0xB8+byte(i)].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
			imm := d.fetchWord()
			return &PreparedInstruction{Mnemonic: "MOV", Segment: RegDS,
				WArg1: regOperand16(encodingToReg16[reg]), WArg2: immOperand16(imm), Exec: opMOV16,
				OpcodeDesc: fmt.Sprintf("MOV %s, %s", reg16Names[encodingToReg16[reg]], hexImm(imm))}
		}
	}
	// C6 /0: MOV Eb, ib ; C7 /0: MOV Ev, iv
	opcodeTable[0xC6].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmByteOperand(m)
		imm := d.fetchByte()
		return &PreparedInstruction{Mnemonic: "MOV", Segment: dataSegOrDS(m), BArg1: dst, BArg2: immOperand8(imm), Exec: opMOV8,
			OpcodeDesc: fmt.Sprintf("MOV %s, %s", operandText(d, dst, m), hexImm8(imm))}
	}
	opcodeTable[0xC7].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmWordOperand(m)
		imm := d.fetchWord()
		return &PreparedInstruction{Mnemonic: "MOV", Segment: dataSegOrDS(m), WArg1: dst, WArg2: immOperand16(imm), Exec: opMOV16,
			OpcodeDesc: fmt.Sprintf("MOV %s, %s", operandText(d, dst, m), hexImm(imm))}
	}
	// 91-97: XCHG AX, r16 (90 itself is NOP, registered in registerFlagsAndMisc)
	for i := 1; i < 8; i++ {
		reg := i
		opcodeTable[0x90+byte(i)].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
			return &PreparedInstruction{Mnemonic: "XCHG", Segment: RegDS,
				WArg1: regOperand16(RegAX), WArg2: regOperand16(encodingToReg16[reg]), Exec: opXCHG16,
				OpcodeDesc: fmt.Sprintf("XCHG AX, %s", reg16Names[encodingToReg16[reg]])}
		}
	}
}

// registerIncDecPushPop wires 0x40-0x4F (INC/DEC r16) and 0x50-0x5F
// (PUSH/POP r16).
func registerIncDecPushPop() {
	for i := 0; i < 8; i++ {
		reg := i
		opcodeTable[0x40+byte(i)].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
			return &PreparedInstruction{Mnemonic: "INC", WArg1: regOperand16(encodingToReg16[reg]), Exec: opINC16,
				OpcodeDesc: fmt.Sprintf("INC %s", reg16Names[encodingToReg16[reg]])}
		}
		opcodeTable[0x48+byte(i)].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
			return &PreparedInstruction{Mnemonic: "DEC", WArg1: regOperand16(encodingToReg16[reg]), Exec: opDEC16,
				OpcodeDesc: fmt.Sprintf("DEC %s", reg16Names[encodingToReg16[reg]])}
		}
		opcodeTable[0x50+byte(i)].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
			return &PreparedInstruction{Mnemonic: "PUSH", WArg1: regOperand16(encodingToReg16[reg]), Exec: opPUSH,
				OpcodeDesc: fmt.Sprintf("PUSH %s", reg16Names[encodingToReg16[reg]])}
		}
		opcodeTable[0x58+byte(i)].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
			return &PreparedInstruction{Mnemonic: "POP", WArg1: regOperand16(encodingToReg16[reg]), Exec: opPOP,
				OpcodeDesc: fmt.Sprintf("POP %s", reg16Names[encodingToReg16[reg]])}
		}
	}
	// 8F /0: POP r/m16
	opcodeTable[0x8F].decode = func(d *decodeCtx, opcode byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmWordOperand(m)
		return &PreparedInstruction{Mnemonic: "POP", Segment: dataSegOrDS(m), WArg1: dst, Exec: opPOP,
			OpcodeDesc: fmt.Sprintf("POP %s", operandText(d, dst, m))}
	}

	segPush := []struct {
		opcode byte
		reg    int
	}{{0x06, RegES}, {0x0E, RegCS}, {0x16, RegSS}, {0x1E, RegDS}}
	for _, e := range segPush {
		reg := e.reg
		opcodeTable[e.opcode].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
			return &PreparedInstruction{Mnemonic: "PUSH", WArg1: regOperand16(reg), Exec: opPUSH,
				OpcodeDesc: fmt.Sprintf("PUSH %s", reg16Names[reg])}
		}
	}
	segPop := []struct {
		opcode byte
		reg    int
	}{{0x07, RegES}, {0x17, RegSS}, {0x1F, RegDS}}
	for _, e := range segPop {
		reg := e.reg
		opcodeTable[e.opcode].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
			return &PreparedInstruction{Mnemonic: "POP", WArg1: regOperand16(reg), Exec: opPOP,
				OpcodeDesc: fmt.Sprintf("POP %s", reg16Names[reg])}
		}
	}
}

// registerStringOps wires A4-A7 (MOVSB/MOVSW/CMPSB/CMPSW) and AA-AF
// (STOSB/STOSW/LODSB/LODSW/SCASB/SCASW), all REP-wrapped.
func registerStringOps() {
	reg := func(name string, opcode byte, exec execFunc, isCompare bool) {
		opcodeTable[opcode].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
			return &PreparedInstruction{Mnemonic: name, Segment: d.dataSegment(RegDS), Exec: wrapRep(exec, isCompare),
				OpcodeDesc: repDesc(d, name)}
		}
	}
	reg("MOVSB", 0xA4, opMOVSB, false)
	reg("MOVSW", 0xA5, opMOVSW, false)
	reg("CMPSB", 0xA6, opCMPSB, true)
	reg("CMPSW", 0xA7, opCMPSW, true)
	reg("STOSB", 0xAA, opSTOSB, false)
	reg("STOSW", 0xAB, opSTOSW, false)
	reg("LODSB", 0xAC, opLODSB, false)
	reg("LODSW", 0xAD, opLODSW, false)
	reg("SCASB", 0xAE, opSCASB, true)
	reg("SCASW", 0xAF, opSCASW, true)
}

func repDesc(d *decodeCtx, name string) string {
	switch d.rep {
	case RepREP:
		return "REP " + name
	case RepREPNE:
		return "REPNE " + name
	}
	return name
}

// registerControlTransfer wires CALL/RET/JMP/Jcc/LOOP*/JCXZ.
func registerControlTransfer() {
	// E8: CALL near, rel16
	opcodeTable[0xE8].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		rel := d.fetchWord()
		target := d.c.Regs.IP() + rel
		return &PreparedInstruction{Mnemonic: "CALL", RelTarget: target, Exec: opCALLnear, DryRun: dryCALLnear,
			OpcodeDesc: fmt.Sprintf("CALL %Xh", target)}
	}
	opcodeTable[0xC3].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		return &PreparedInstruction{Mnemonic: "RET", Exec: opRETnear, DryRun: dryRET, OpcodeDesc: "RET"}
	}
	opcodeTable[0xC2].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		imm := d.fetchWord()
		return &PreparedInstruction{Mnemonic: "RET", WArg1: immOperand16(imm), Exec: opRETnearImm, DryRun: dryRET,
			OpcodeDesc: fmt.Sprintf("RET %s", hexImm(imm))}
	}
	opcodeTable[0xE9].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		rel := d.fetchWord()
		target := d.c.Regs.IP() + rel
		return &PreparedInstruction{Mnemonic: "JMP", RelTarget: target, Exec: opJMPnear, DryRun: dryJMPnear,
			OpcodeDesc: fmt.Sprintf("JMP %Xh", target)}
	}
	opcodeTable[0xEB].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		rel := signExtend(d.fetchByte())
		target := d.c.Regs.IP() + rel
		return &PreparedInstruction{Mnemonic: "JMP", RelTarget: target, Exec: opJMPnear, DryRun: dryJMPnear,
			OpcodeDesc: fmt.Sprintf("JMP SHORT %Xh", target)}
	}
	// 9A / EA: far CALL/JMP, unreachable in the target workload per spec.md 4.3.
	opcodeTable[0x9A].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		d.fetchWord()
		d.fetchWord()
		return &PreparedInstruction{Mnemonic: "CALL FAR", Exec: opFarUnsupported, DryRun: dryFarUnsupported, OpcodeDesc: "CALL FAR"}
	}
	opcodeTable[0xEA].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		d.fetchWord()
		d.fetchWord()
		return &PreparedInstruction{Mnemonic: "JMP FAR", Exec: opFarUnsupported, DryRun: dryFarUnsupported, OpcodeDesc: "JMP FAR"}
	}
	opcodeTable[0xCB].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		return &PreparedInstruction{Mnemonic: "RETF", Exec: opFarUnsupported, DryRun: dryFarUnsupported, OpcodeDesc: "RETF"}
	}
	opcodeTable[0xCF].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		return &PreparedInstruction{Mnemonic: "IRET", Exec: opFarUnsupported, DryRun: dryFarUnsupported, OpcodeDesc: "IRET"}
	}

	jccTable := []struct {
		opcode byte
		name   string
		test   func(r *Registers) bool
	}{
		{0x70, "JO", func(r *Registers) bool { return r.GetFlag(FlagOF) }},
		{0x71, "JNO", func(r *Registers) bool { return !r.GetFlag(FlagOF) }},
		{0x72, "JB", func(r *Registers) bool { return r.GetFlag(FlagCF) }},
		{0x73, "JNB", func(r *Registers) bool { return !r.GetFlag(FlagCF) }},
		{0x74, "JZ", func(r *Registers) bool { return r.GetFlag(FlagZF) }},
		{0x75, "JNZ", func(r *Registers) bool { return !r.GetFlag(FlagZF) }},
		{0x76, "JBE", func(r *Registers) bool { return r.GetFlag(FlagCF) || r.GetFlag(FlagZF) }},
		{0x77, "JA", func(r *Registers) bool { return !r.GetFlag(FlagCF) && !r.GetFlag(FlagZF) }},
		{0x78, "JS", func(r *Registers) bool { return r.GetFlag(FlagSF) }},
		{0x79, "JNS", func(r *Registers) bool { return !r.GetFlag(FlagSF) }},
		{0x7A, "JP", func(r *Registers) bool { return r.GetFlag(FlagPF) }},
		{0x7B, "JNP", func(r *Registers) bool { return !r.GetFlag(FlagPF) }},
		{0x7C, "JL", func(r *Registers) bool { return r.GetFlag(FlagSF) != r.GetFlag(FlagOF) }},
		{0x7D, "JGE", func(r *Registers) bool { return r.GetFlag(FlagSF) == r.GetFlag(FlagOF) }},
		{0x7E, "JLE", func(r *Registers) bool { return r.GetFlag(FlagZF) || r.GetFlag(FlagSF) != r.GetFlag(FlagOF) }},
		{0x7F, "JG", func(r *Registers) bool { return !r.GetFlag(FlagZF) && r.GetFlag(FlagSF) == r.GetFlag(FlagOF) }},
	}
	for _, e := range jccTable {
		name, test := e.name, e.test
		opcodeTable[e.opcode].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
			rel := signExtend(d.fetchByte())
			target := d.c.Regs.IP() + rel
			return &PreparedInstruction{Mnemonic: name, RelTarget: target, Exec: makeJcc(name, test), DryRun: dryJcc,
				OpcodeDesc: fmt.Sprintf("%s %Xh", name, target)}
		}
	}

	loopTable := []struct {
		opcode byte
		name   string
		exec   execFunc
	}{
		{0xE2, "LOOP", opLOOP},
		{0xE1, "LOOPZ", opLOOPZ},
		{0xE0, "LOOPNZ", opLOOPNZ},
		{0xE3, "JCXZ", opJCXZ},
	}
	for _, e := range loopTable {
		name, exec := e.name, e.exec
		opcodeTable[e.opcode].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
			rel := signExtend(d.fetchByte())
			target := d.c.Regs.IP() + rel
			return &PreparedInstruction{Mnemonic: name, RelTarget: target, Exec: exec, DryRun: dryLoopOrJCXZ,
				OpcodeDesc: fmt.Sprintf("%s %Xh", name, target)}
		}
	}
}

// registerFlagsAndMisc wires NOP and the single-byte flag-bit opcodes.
func registerFlagsAndMisc() {
	opcodeTable[0x90].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		return &PreparedInstruction{Mnemonic: "NOP", Exec: opNOP, OpcodeDesc: "NOP"}
	}
	misc := []struct {
		opcode byte
		name   string
		exec   execFunc
	}{
		{0xF8, "CLC", opCLC}, {0xF9, "STC", opSTC}, {0xF5, "CMC", opCMC},
		{0xFC, "CLD", opCLD}, {0xFD, "STD", opSTD},
		{0xFA, "CLI", opCLI}, {0xFB, "STI", opSTI},
	}
	for _, e := range misc {
		name, exec := e.name, e.exec
		opcodeTable[e.opcode].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
			return &PreparedInstruction{Mnemonic: name, Exec: exec, OpcodeDesc: name}
		}
	}
}

// registerIntAndIO wires INT3/INT imm8 and the fixed-port/DX-port IN/OUT forms.
func registerIntAndIO() {
	opcodeTable[0xCC].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		return &PreparedInstruction{Mnemonic: "INT", WArg1: immOperand16(3), Exec: opINT, OpcodeDesc: "INT 3"}
	}
	opcodeTable[0xCD].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		n := d.fetchByte()
		return &PreparedInstruction{Mnemonic: "INT", WArg1: immOperand16(uint16(n)), Exec: opINT,
			OpcodeDesc: fmt.Sprintf("INT %s", hexImm8(n))}
	}
	opcodeTable[0xE4].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		port := d.fetchByte()
		return &PreparedInstruction{Mnemonic: "IN", BArg1: regOperand8(RegAL), WArg2: immOperand16(uint16(port)), Exec: opIN8,
			OpcodeDesc: fmt.Sprintf("IN AL, %s", hexImm8(port))}
	}
	opcodeTable[0xEC].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		return &PreparedInstruction{Mnemonic: "IN", BArg1: regOperand8(RegAL), WArg2: regOperand16(RegDX), Exec: opIN8,
			OpcodeDesc: "IN AL, DX"}
	}
	opcodeTable[0xE6].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		port := d.fetchByte()
		return &PreparedInstruction{Mnemonic: "OUT", WArg1: immOperand16(uint16(port)), BArg2: regOperand8(RegAL), Exec: opOUT8,
			OpcodeDesc: fmt.Sprintf("OUT %s, AL", hexImm8(port))}
	}
	opcodeTable[0xEE].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		return &PreparedInstruction{Mnemonic: "OUT", WArg1: regOperand16(RegDX), BArg2: regOperand8(RegAL), Exec: opOUT8,
			OpcodeDesc: "OUT DX, AL"}
	}
}

// registerGroups wires the ModR/M-reg-field-dispatched group opcodes:
// 80/81/82/83 (immediate ALU), D0-D3 (shift/rotate), F6/F7 (unary).
func registerGroups() {
	group1 := [8]aluFamily{
		{"ADD", opADD8, opADD16, true}, {"OR", opOR8, opOR16, true},
		{"ADC", opADC8, opADC16, true}, {"SBB", opSBB8, opSBB16, true},
		{"AND", opAND8, opAND16, true}, {"SUB", opSUB8, opSUB16, true},
		{"XOR", opXOR8, opXOR16, true}, {"CMP", opCMP8, opCMP16, false},
	}
	// 80: Eb, ib
	opcodeTable[0x80].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmByteOperand(m)
		f := group1[m.reg]
		imm := d.fetchByte()
		return &PreparedInstruction{Mnemonic: f.name, Segment: dataSegOrDS(m), BArg1: dst, BArg2: immOperand8(imm), Exec: f.exec8,
			OpcodeDesc: fmt.Sprintf("%s %s, %s", f.name, operandText(d, dst, m), hexImm8(imm))}
	}
	// 81: Ev, iv
	opcodeTable[0x81].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmWordOperand(m)
		f := group1[m.reg]
		imm := d.fetchWord()
		return &PreparedInstruction{Mnemonic: f.name, Segment: dataSegOrDS(m), WArg1: dst, WArg2: immOperand16(imm), Exec: f.exec16,
			OpcodeDesc: fmt.Sprintf("%s %s, %s", f.name, operandText(d, dst, m), hexImm(imm))}
	}
	// 83: Ev, ib (sign-extended)
	opcodeTable[0x83].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmWordOperand(m)
		f := group1[m.reg]
		imm := d.fetchByte()
		sImm := signExtend(imm)
		return &PreparedInstruction{Mnemonic: f.name, Segment: dataSegOrDS(m), WArg1: dst, WArg2: immOperand16(sImm), Exec: f.exec16,
			OpcodeDesc: fmt.Sprintf("%s %s, %s", f.name, operandText(d, dst, m), hexImm8(imm))}
	}
	// 82 duplicates 80 on real hardware (byte immediate, no sign difference for bytes)
	opcodeTable[0x82].decode = opcodeTable[0x80].decode

	// D0-D3: shift/rotate group, reg field selects ROL/ROR/RCL/RCR/SHL/SHR/SAL/SAR
	type rotOp struct {
		name   string
		exec8  func(c *CPU, p *PreparedInstruction, count byte)
		exec16 func(c *CPU, p *PreparedInstruction, count byte)
	}
	rot := [8]rotOp{
		{"ROL", opROL8, opROL16}, {"ROR", opROR8, opROR16},
		{"RCL", opRCL8, opRCL16}, {"RCR", opRCR8, opRCR16},
		{"SHL", opSHL8, opSHL16}, {"SHR", opSHR8, opSHR16},
		{"SHL", opSHL8, opSHL16}, {"SAR", opSAR8, opSAR16},
	}
	makeRotDecode := func(byteWidth bool, countFromCL bool) func(d *decodeCtx, _ byte) *PreparedInstruction {
		return func(d *decodeCtx, _ byte) *PreparedInstruction {
			m := d.decodeModRM(RegDS)
			r := rot[m.reg]
			count := byte(1)
			if countFromCL {
				count = d.c.Regs.Reg8(RegCL)
			}
			if byteWidth {
				dst := d.rmByteOperand(m)
				exec := func(c *CPU, p *PreparedInstruction) { r.exec8(c, p, count) }
				return &PreparedInstruction{Mnemonic: r.name, Segment: dataSegOrDS(m), BArg1: dst, Exec: exec,
					OpcodeDesc: fmt.Sprintf("%s %s, %d", r.name, operandText(d, dst, m), count)}
			}
			dst := d.rmWordOperand(m)
			exec := func(c *CPU, p *PreparedInstruction) { r.exec16(c, p, count) }
			return &PreparedInstruction{Mnemonic: r.name, Segment: dataSegOrDS(m), WArg1: dst, Exec: exec,
				OpcodeDesc: fmt.Sprintf("%s %s, %d", r.name, operandText(d, dst, m), count)}
		}
	}
	opcodeTable[0xD0].decode = makeRotDecode(true, false)
	opcodeTable[0xD1].decode = makeRotDecode(false, false)
	opcodeTable[0xD2].decode = makeRotDecode(true, true)
	opcodeTable[0xD3].decode = makeRotDecode(false, true)

	// F6/F7: TEST/TEST/NOT/NEG/MUL/IMUL/DIV/IDIV
	opcodeTable[0xF6].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmByteOperand(m)
		switch m.reg {
		case 0, 1:
			imm := d.fetchByte()
			return &PreparedInstruction{Mnemonic: "TEST", Segment: dataSegOrDS(m), BArg1: dst, BArg2: immOperand8(imm), Exec: opTEST8,
				OpcodeDesc: fmt.Sprintf("TEST %s, %s", operandText(d, dst, m), hexImm8(imm))}
		case 2:
			return &PreparedInstruction{Mnemonic: "NOT", Segment: dataSegOrDS(m), BArg1: dst, Exec: opNOT8,
				OpcodeDesc: fmt.Sprintf("NOT %s", operandText(d, dst, m))}
		case 3:
			return &PreparedInstruction{Mnemonic: "NEG", Segment: dataSegOrDS(m), BArg1: dst, Exec: opNEG8,
				OpcodeDesc: fmt.Sprintf("NEG %s", operandText(d, dst, m))}
		case 4:
			return &PreparedInstruction{Mnemonic: "MUL", Segment: dataSegOrDS(m), BArg1: dst, Exec: opMUL8,
				OpcodeDesc: fmt.Sprintf("MUL %s", operandText(d, dst, m))}
		case 5:
			return &PreparedInstruction{Mnemonic: "IMUL", Segment: dataSegOrDS(m), BArg1: dst, Exec: opIMUL8,
				OpcodeDesc: fmt.Sprintf("IMUL %s", operandText(d, dst, m))}
		case 6:
			return &PreparedInstruction{Mnemonic: "DIV", Segment: dataSegOrDS(m), BArg1: dst, Exec: opDIV8,
				OpcodeDesc: fmt.Sprintf("DIV %s", operandText(d, dst, m))}
		default:
			return &PreparedInstruction{Mnemonic: "IDIV", Segment: dataSegOrDS(m), BArg1: dst, Exec: opIDIV8,
				OpcodeDesc: fmt.Sprintf("IDIV %s", operandText(d, dst, m))}
		}
	}
	opcodeTable[0xF7].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmWordOperand(m)
		switch m.reg {
		case 0, 1:
			imm := d.fetchWord()
			return &PreparedInstruction{Mnemonic: "TEST", Segment: dataSegOrDS(m), WArg1: dst, WArg2: immOperand16(imm), Exec: opTEST16,
				OpcodeDesc: fmt.Sprintf("TEST %s, %s", operandText(d, dst, m), hexImm(imm))}
		case 2:
			return &PreparedInstruction{Mnemonic: "NOT", Segment: dataSegOrDS(m), WArg1: dst, Exec: opNOT16,
				OpcodeDesc: fmt.Sprintf("NOT %s", operandText(d, dst, m))}
		case 3:
			return &PreparedInstruction{Mnemonic: "NEG", Segment: dataSegOrDS(m), WArg1: dst, Exec: opNEG16,
				OpcodeDesc: fmt.Sprintf("NEG %s", operandText(d, dst, m))}
		case 4:
			return &PreparedInstruction{Mnemonic: "MUL", Segment: dataSegOrDS(m), WArg1: dst, Exec: opMUL16,
				OpcodeDesc: fmt.Sprintf("MUL %s", operandText(d, dst, m))}
		case 5:
			return &PreparedInstruction{Mnemonic: "IMUL", Segment: dataSegOrDS(m), WArg1: dst, Exec: opIMUL16,
				OpcodeDesc: fmt.Sprintf("IMUL %s", operandText(d, dst, m))}
		case 6:
			return &PreparedInstruction{Mnemonic: "DIV", Segment: dataSegOrDS(m), WArg1: dst, Exec: opDIV16,
				OpcodeDesc: fmt.Sprintf("DIV %s", operandText(d, dst, m))}
		default:
			return &PreparedInstruction{Mnemonic: "IDIV", Segment: dataSegOrDS(m), WArg1: dst, Exec: opIDIV16,
				OpcodeDesc: fmt.Sprintf("IDIV %s", operandText(d, dst, m))}
		}
	}

	// FE: INC/DEC Eb ; FF: INC/DEC/CALL/CALL FAR/JMP/JMP FAR/PUSH Ev
	opcodeTable[0xFE].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmByteOperand(m)
		if m.reg == 0 {
			return &PreparedInstruction{Mnemonic: "INC", Segment: dataSegOrDS(m), BArg1: dst, Exec: opINC8,
				OpcodeDesc: fmt.Sprintf("INC %s", operandText(d, dst, m))}
		}
		return &PreparedInstruction{Mnemonic: "DEC", Segment: dataSegOrDS(m), BArg1: dst, Exec: opDEC8,
			OpcodeDesc: fmt.Sprintf("DEC %s", operandText(d, dst, m))}
	}
	opcodeTable[0xFF].decode = func(d *decodeCtx, _ byte) *PreparedInstruction {
		m := d.decodeModRM(RegDS)
		dst := d.rmWordOperand(m)
		switch m.reg {
		case 0:
			return &PreparedInstruction{Mnemonic: "INC", Segment: dataSegOrDS(m), WArg1: dst, Exec: opINC16,
				OpcodeDesc: fmt.Sprintf("INC %s", operandText(d, dst, m))}
		case 1:
			return &PreparedInstruction{Mnemonic: "DEC", Segment: dataSegOrDS(m), WArg1: dst, Exec: opDEC16,
				OpcodeDesc: fmt.Sprintf("DEC %s", operandText(d, dst, m))}
		case 2:
			return &PreparedInstruction{Mnemonic: "CALL", Segment: dataSegOrDS(m), WArg1: dst, Exec: opCALLIndirect, DryRun: dryCALLIndirect,
				OpcodeDesc: fmt.Sprintf("CALL %s", operandText(d, dst, m))}
		case 3:
			return &PreparedInstruction{Mnemonic: "CALL FAR", Exec: opFarUnsupported, DryRun: dryFarUnsupported, OpcodeDesc: "CALL FAR"}
		case 4:
			return &PreparedInstruction{Mnemonic: "JMP", Segment: dataSegOrDS(m), WArg1: dst, Exec: opJMPreg, DryRun: dryJMPreg,
				OpcodeDesc: fmt.Sprintf("JMP %s", operandText(d, dst, m))}
		case 5:
			return &PreparedInstruction{Mnemonic: "JMP FAR", Exec: opFarUnsupported, DryRun: dryFarUnsupported, OpcodeDesc: "JMP FAR"}
		default:
			return &PreparedInstruction{Mnemonic: "PUSH", Segment: dataSegOrDS(m), WArg1: dst, Exec: opPUSH,
				OpcodeDesc: fmt.Sprintf("PUSH %s", operandText(d, dst, m))}
		}
	}
}
