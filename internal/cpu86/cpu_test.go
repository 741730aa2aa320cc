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

import "testing"

func newTestCPU() (*CPU, *Memory) {
	mem := NewMemory(2 << 16)
	c := NewCPU(mem)
	return c, mem
}

func TestRegisters(t *testing.T) {
	var r Registers
	r.SetAX(0x1234)
	if got := r.Reg8(RegAH); got != 0x12 {
		t.Errorf("AH = %#02x, want 0x12", got)
	}
	if got := r.Reg8(RegAL); got != 0x34 {
		t.Errorf("AL = %#02x, want 0x34", got)
	}
	if got := r.Reg16(RegAX); got != 0x1234 {
		t.Errorf("regs16[RegAX] = %#04x, want 0x1234", got)
	}
}

func TestSignExtend(t *testing.T) {
	if got := signExtend(0xE8); got != 0xFFE8 {
		t.Errorf("signExtend(0xE8) = %#04x, want 0xFFE8", got)
	}
	if got := signExtend(0x08); got != 0x0008 {
		t.Errorf("signExtend(0x08) = %#04x, want 0x0008", got)
	}
}

func TestLinearAddress(t *testing.T) {
	c, _ := newTestCPU()
	c.Regs.SetSS(0x1234)
	c.Regs.SetSP(0x4567)
	want := uint32(0x1234<<4) + 0x4567
	if got := c.GetSS_SP(); got != want {
		t.Errorf("GetSS_SP() = %#05x, want %#05x", got, want)
	}
}

func TestPushDS(t *testing.T) {
	const stackTop = 0x100 + 100
	c, mem := newTestCPU()
	c.Regs.SetSS(0)
	c.Regs.SetSP(stackTop)
	c.Regs.SetDS(0x1234)
	mem.Write(0x100, 0x1E) // PUSH DS

	c.Step()

	if got := c.Regs.SP(); got != stackTop-2 {
		t.Errorf("SP = %#04x, want %#04x", got, stackTop-2)
	}
	if got := mem.Read(stackTop - 2); got != 0x34 {
		t.Errorf("mem[stackTop-2] = %#02x, want 0x34", got)
	}
	if got := mem.Read(stackTop - 1); got != 0x12 {
		t.Errorf("mem[stackTop-1] = %#02x, want 0x12", got)
	}
}

func TestSubRegReg(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetAX(0x1234)
	mem.Write(0x100, 0x29) // SUB AX, AX
	mem.Write(0x101, 0xC0)

	c.Step()

	if c.Regs.AX() != 0 {
		t.Errorf("AX = %#04x, want 0", c.Regs.AX())
	}
}

func TestFlags(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetAX(0x1234)

	off := uint32(0x100)
	mem.Write(off, 0x29) // SUB AX, AX
	mem.Write(off+1, 0xC0)
	c.Step()
	if c.Regs.AX() != 0 || !c.Regs.GetFlag(FlagZF) {
		t.Fatalf("after SUB AX,AX: AX=%#04x ZF=%v, want 0 true", c.Regs.AX(), c.Regs.GetFlag(FlagZF))
	}

	mem.Write(off+2, 0x40) // INC AX
	c.Step()
	if c.Regs.AX() != 1 || c.Regs.GetFlag(FlagZF) {
		t.Fatalf("after INC AX: AX=%#04x ZF=%v, want 1 false", c.Regs.AX(), c.Regs.GetFlag(FlagZF))
	}

	mem.Write(off+3, 0x00) // ADD AL, DH
	mem.Write(off+4, 0xF0)
	c.Regs.SetReg8(RegAL, 0xFF)
	c.Regs.SetReg8(RegDH, 0x02)
	c.Step()
	if got := c.Regs.Reg8(RegAL); got != 0x01 {
		t.Errorf("AL = %#02x, want 0x01", got)
	}
	if !c.Regs.GetFlag(FlagCF) {
		t.Error("CF not set after 0xFF+0x02 overflow")
	}
}

func TestPushAX(t *testing.T) {
	const stackTop = 0x100 + 100
	c, mem := newTestCPU()
	c.Regs.SetSS(0)
	c.Regs.SetSP(stackTop)
	c.Regs.SetAX(0x1234)
	mem.Write(0x100, 0x50) // PUSH AX

	c.Step()

	if got := c.Regs.SP(); got != stackTop-2 {
		t.Errorf("SP = %#04x, want %#04x", got, stackTop-2)
	}
	if got := mem.Read(stackTop - 2); got != 0x34 {
		t.Errorf("mem[stackTop-2] = %#02x, want 0x34", got)
	}
	if got := mem.Read(stackTop - 1); got != 0x12 {
		t.Errorf("mem[stackTop-1] = %#02x, want 0x12", got)
	}
}

func TestMovMemRegWithSegmentOverride(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetSP(0x1234)
	c.Regs.SetDS(0)

	off := uint32(0x100)
	mem.Write(off, 0x89) // MOV [0x1122], SP
	mem.Write(off+1, 0x26)
	mem.Write(off+2, 0x22)
	mem.Write(off+3, 0x11)
	c.Step()

	if got := mem.Read(0x1122); got != 0x34 {
		t.Errorf("mem[0x1122] = %#02x, want 0x34", got)
	}
	if got := mem.Read(0x1123); got != 0x12 {
		t.Errorf("mem[0x1123] = %#02x, want 0x12", got)
	}

	c.Regs.SetSP(0x5678)
	c.Regs.SetES(0x0100)
	mem.Write(off+4, 0x26) // MOV [ES:0x1122], SP
	mem.Write(off+5, 0x89)
	mem.Write(off+6, 0x26)
	mem.Write(off+7, 0x22)
	mem.Write(off+8, 0x11)
	c.Step()

	if got := mem.Read(0x1122); got != 0x34 {
		t.Errorf("mem[0x1122] changed to %#02x, want unchanged 0x34", got)
	}
	if got := mem.Read(0x2122); got != 0x78 {
		t.Errorf("mem[0x2122] = %#02x, want 0x78", got)
	}
	if got := mem.Read(0x2123); got != 0x56 {
		t.Errorf("mem[0x2123] = %#02x, want 0x56", got)
	}
}

func TestXCHG(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetSI(0x1234)
	c.Regs.SetBX(0x5678)
	mem.Write(0x100, 0x87) // XCHG SI, BX
	mem.Write(0x101, 0xF3)

	c.Step()

	if c.Regs.BX() != 0x1234 {
		t.Errorf("BX = %#04x, want 0x1234", c.Regs.BX())
	}
	if c.Regs.SI() != 0x5678 {
		t.Errorf("SI = %#04x, want 0x5678", c.Regs.SI())
	}
}

func TestCLD(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.Flags = 0xFFFF
	mem.Write(0x100, 0xFC) // CLD

	c.Step()

	if got := c.Regs.Flags; got != 0xFFFF^FlagDF {
		t.Errorf("Flags = %#04x, want %#04x", got, uint16(0xFFFF^FlagDF))
	}
}

func TestMOVSB(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetDS(0x1000)
	c.Regs.SetSI(0x0011)
	c.Regs.SetES(0x1100)
	c.Regs.SetDI(0x0022)

	mem.Write(0x100, 0xFC) // CLD
	mem.Write(0x101, 0xA4) // MOVSB
	mem.Write(GetLinearAddress(c.Regs.DS(), c.Regs.SI()), 0x12)
	mem.Write(GetLinearAddress(c.Regs.ES(), c.Regs.DI()), 0x00)

	c.Step()
	c.Step()

	if c.Regs.SI() != 0x0012 {
		t.Errorf("SI = %#04x, want 0x0012", c.Regs.SI())
	}
	if c.Regs.DI() != 0x0023 {
		t.Errorf("DI = %#04x, want 0x0023", c.Regs.DI())
	}
	if got := mem.Read(GetLinearAddress(c.Regs.ES(), c.Regs.DI()-1)); got != 0x12 {
		t.Errorf("copied byte = %#02x, want 0x12", got)
	}
}

func TestRepMOVSB(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetDS(0x1000)
	c.Regs.SetSI(0x0011)
	c.Regs.SetES(0x1100)
	c.Regs.SetDI(0x0022)
	c.Regs.SetCX(3)

	mem.Write(0x100, 0xFC) // CLD
	mem.Write(0x101, 0xF3) // REP
	mem.Write(0x102, 0xA4) // MOVSB
	mem.Write(GetLinearAddress(c.Regs.DS(), c.Regs.SI()+0), 0x11)
	mem.Write(GetLinearAddress(c.Regs.DS(), c.Regs.SI()+1), 0x22)
	mem.Write(GetLinearAddress(c.Regs.DS(), c.Regs.SI()+2), 0x33)

	c.Step()
	c.Step()

	if c.Regs.SI() != 0x0014 {
		t.Errorf("SI = %#04x, want 0x0014", c.Regs.SI())
	}
	if c.Regs.DI() != 0x0025 {
		t.Errorf("DI = %#04x, want 0x0025", c.Regs.DI())
	}
	want := []byte{0x11, 0x22, 0x33}
	for i, w := range want {
		if got := mem.Read(GetLinearAddress(c.Regs.ES(), c.Regs.DI()-3+uint16(i))); got != w {
			t.Errorf("byte %d = %#02x, want %#02x", i, got, w)
		}
	}
	if c.Regs.CX() != 0 {
		t.Errorf("CX = %d, want 0", c.Regs.CX())
	}
}

func TestCallRet(t *testing.T) {
	c, mem := newTestCPU()
	off := uint32(0x100)
	mem.Write(off, 0xE8)   // CALL $+1
	mem.Write(off+1, 0x01)
	mem.Write(off+2, 0x00)
	mem.Write(off+3, 0x90) // NOP
	mem.Write(off+4, 0x29) // SUB AX, AX
	mem.Write(off+5, 0xC0)
	mem.Write(off+6, 0xC3) // RET
	c.Regs.SetAX(0x1234)

	c.Step() // CALL
	if c.Regs.IP() != 0x0104 || c.Regs.AX() != 0x1234 {
		t.Fatalf("after CALL: IP=%#04x AX=%#04x", c.Regs.IP(), c.Regs.AX())
	}

	c.Step() // SUB AX, AX
	if c.Regs.IP() != 0x0106 || c.Regs.AX() != 0 {
		t.Fatalf("after SUB: IP=%#04x AX=%#04x", c.Regs.IP(), c.Regs.AX())
	}

	c.Step() // RET
	if c.Regs.IP() != 0x0103 {
		t.Fatalf("after RET: IP=%#04x, want 0x0103", c.Regs.IP())
	}

	c.Step() // NOP, should not panic
}

func TestRepCMPSB(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetDS(0x1000)
	c.Regs.SetSI(0x0011)
	c.Regs.SetES(0x1100)
	c.Regs.SetDI(0x0022)
	c.Regs.SetCX(3)

	mem.Write(GetLinearAddress(c.Regs.DS(), c.Regs.SI()+0), 0x11)
	mem.Write(GetLinearAddress(c.Regs.DS(), c.Regs.SI()+1), 0x22)
	mem.Write(GetLinearAddress(c.Regs.DS(), c.Regs.SI()+2), 0x33)
	mem.Write(GetLinearAddress(c.Regs.ES(), c.Regs.DI()+0), 0x11)
	mem.Write(GetLinearAddress(c.Regs.ES(), c.Regs.DI()+1), 0x00) // mismatch
	mem.Write(GetLinearAddress(c.Regs.ES(), c.Regs.DI()+2), 0x33)

	mem.Write(0x100, 0xFC) // CLD
	mem.Write(0x101, 0xF3) // REP
	mem.Write(0x102, 0xA6) // CMPSB

	c.Step() // CLD
	c.Step() // REP CMPSB

	if c.Regs.SI() != 0x0011+2 {
		t.Errorf("SI = %#04x, want %#04x", c.Regs.SI(), uint16(0x0011+2))
	}
	if c.Regs.DI() != 0x0022+2 {
		t.Errorf("DI = %#04x, want %#04x", c.Regs.DI(), uint16(0x0022+2))
	}
	if c.Regs.CX() != 1 {
		t.Errorf("CX = %d, want 1 (stopped early on mismatch)", c.Regs.CX())
	}
}

func TestMUL(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetAX(3)
	c.Regs.SetCX(5)
	c.Regs.SetDX(0x1234)
	mem.Write(0x100, 0xF7) // MUL CX
	mem.Write(0x101, 0xE1)

	c.Step()

	if c.Regs.DX() != 0 || c.Regs.AX() != 15 {
		t.Fatalf("AX=%#04x DX=%#04x, want AX=15 DX=0", c.Regs.AX(), c.Regs.DX())
	}
	if c.Regs.GetFlag(FlagCF) || c.Regs.GetFlag(FlagOF) {
		t.Error("CF/OF set for a result that fits in AX")
	}

	c.Regs.SetAX(0xAA55)
	c.Regs.SetCX(0x1234)
	c.Regs.SetDX(0xFFFF)
	mem.Write(0x102, 0xF7) // MUL CX
	mem.Write(0x103, 0xE1)
	c.Step()

	if c.Regs.DX() != 0x0C1C || c.Regs.AX() != 0x9344 {
		t.Fatalf("AX=%#04x DX=%#04x, want AX=0x9344 DX=0x0C1C", c.Regs.AX(), c.Regs.DX())
	}
	if !c.Regs.GetFlag(FlagCF) || !c.Regs.GetFlag(FlagOF) {
		t.Error("CF/OF not set for a result spilling into DX")
	}
}

func TestRCL(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetBX(0b0101010100110101)
	c.Regs.SetFlag(FlagCF, true)

	off := uint32(0x100)
	mem.Write(off, 0xD1) // RCL BX, 1
	mem.Write(off+1, 0xD3)
	c.Step()

	if c.Regs.GetFlag(FlagCF) {
		t.Error("CF set, want clear")
	}
	if got := c.Regs.BX(); got != 0b1010101001101011 {
		t.Errorf("BX = %016b, want %016b", got, 0b1010101001101011)
	}

	mem.Write(off+2, 0xD1) // RCL BX, 1
	mem.Write(off+3, 0xD3)
	c.Step()

	if !c.Regs.GetFlag(FlagCF) {
		t.Error("CF clear, want set")
	}
	if got := c.Regs.BX(); got != 0b0101010011010110 {
		t.Errorf("BX = %016b, want %016b", got, 0b0101010011010110)
	}

	c.Regs.SetReg8(RegDL, 0b10011010)
	c.Regs.SetFlag(FlagCF, true)
	mem.Write(off+4, 0xD0) // RCL DL, 1
	mem.Write(off+5, 0xD2)
	c.Step()

	if !c.Regs.GetFlag(FlagCF) {
		t.Error("CF clear, want set")
	}
	if got := c.Regs.Reg8(RegDL); got != 0b00110101 {
		t.Errorf("DL = %08b, want %08b", got, 0b00110101)
	}
}

func TestIMULOverflowSetsFlags(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetReg8(RegAL, 100)
	c.Regs.SetReg8(RegBL, 100)
	mem.Write(0x100, 0xF6) // IMUL BL
	mem.Write(0x101, 0xEB)

	c.Step()

	if !c.Regs.GetFlag(FlagOF) || !c.Regs.GetFlag(FlagCF) {
		t.Error("100*100 should overflow a signed byte result")
	}
}

func TestIDIV16(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetAX(uint16(0xFFE2)) // -30 as int16
	c.Regs.SetDX(0xFFFF)         // sign-extended high half
	c.Regs.SetCX(uint16(7))
	mem.Write(0x100, 0xF7) // IDIV CX
	mem.Write(0x101, 0xF9)

	c.Step()

	if got := int16(c.Regs.AX()); got != -4 {
		t.Errorf("quotient = %d, want -4", got)
	}
	if got := int16(c.Regs.DX()); got != -2 {
		t.Errorf("remainder = %d, want -2", got)
	}
}

func TestDryRunPushLeavesStateUntouched(t *testing.T) {
	c, mem := newTestCPU()
	c.Mode = ModeDryRun
	c.Regs.SetAX(0x1234)
	mem.Write(0x100, 0x50) // PUSH AX: would push 0x1234 in ModeReal

	c.FetchAndDecode()
	c.Execute()

	if c.Regs.AX() != 0x1234 {
		t.Errorf("dry run mutated AX to %#04x", c.Regs.AX())
	}
	if c.Regs.SP() != 0xFFFF {
		t.Errorf("dry run mutated SP to %#04x, want untouched 0xFFFF", c.Regs.SP())
	}
}

func TestDryRunDivideByZeroNeverFires(t *testing.T) {
	c, mem := newTestCPU()
	c.Mode = ModeDryRun
	mem.Write(0x100, 0xF7) // DIV CX, CX reads as 0 in dry run
	mem.Write(0x101, 0xF1)

	c.FetchAndDecode()
	c.Execute() // must not panic
}

func TestDryRunControlFlowObserver(t *testing.T) {
	c, mem := newTestCPU()
	c.Mode = ModeDryRun
	var events []ControlFlowEvent
	c.ControlFlow = func(c *CPU, ev ControlFlowEvent) {
		events = append(events, ev)
	}

	off := uint32(0x100)
	mem.Write(off, 0xE8)   // CALL $+1
	mem.Write(off+1, 0x01)
	mem.Write(off+2, 0x00)

	c.Regs.SetIP(uint16(off))
	c.FetchAndDecode()
	c.Execute()

	if len(events) != 1 {
		t.Fatalf("got %d control flow events, want 1", len(events))
	}
	ev := events[0]
	if !ev.HasTarget || ev.Target != 0x0104 || !ev.IsCall || ev.Stop {
		t.Errorf("event = %+v, want HasTarget=true Target=0x0104 IsCall=true Stop=false", ev)
	}
	if c.Regs.SP() != 0xFFFF {
		t.Errorf("dry-run CALL must not push: SP=%#04x", c.Regs.SP())
	}
}

func TestTESTRegReg(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetAX(0x1234)
	mem.Write(0x100, 0x85) // TEST AX, AX
	mem.Write(0x101, 0xC0)

	c.Step()

	if c.Regs.AX() != 0x1234 {
		t.Errorf("TEST must not write back: AX = %#04x, want unchanged 0x1234", c.Regs.AX())
	}
	if c.Regs.GetFlag(FlagZF) {
		t.Error("ZF set, want clear: AX&AX is nonzero")
	}
	if c.Regs.GetFlag(FlagCF) || c.Regs.GetFlag(FlagOF) {
		t.Error("TEST must clear CF/OF")
	}
}

func TestTESTRegMem(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetDS(0)
	c.Regs.SetBX(0x200)
	c.Regs.SetReg8(RegAL, 0x0F)
	mem.Write(0x200, 0x00) // [BX] = 0

	mem.Write(0x100, 0x84) // TEST [BX], AL
	mem.Write(0x101, 0x07)

	c.Step()

	if !c.Regs.GetFlag(FlagZF) {
		t.Error("ZF clear, want set: 0x0F & 0x00 == 0")
	}
}

func TestTESTALImm(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetReg8(RegAL, 0xFF)
	mem.Write(0x100, 0xA8) // TEST AL, 0x80
	mem.Write(0x101, 0x80)

	c.Step()

	if c.Regs.GetFlag(FlagZF) {
		t.Error("ZF set, want clear: 0xFF & 0x80 != 0")
	}
	if !c.Regs.GetFlag(FlagSF) {
		t.Error("SF clear, want set: high bit of result is 1")
	}
}

func TestTESTAXImm(t *testing.T) {
	c, mem := newTestCPU()
	c.Regs.SetAX(0x00F0)
	mem.Write(0x100, 0xA9) // TEST AX, 0x0F
	mem.Write(0x101, 0x0F)
	mem.Write(0x102, 0x00)

	c.Step()

	if !c.Regs.GetFlag(FlagZF) {
		t.Error("ZF clear, want set: 0x00F0 & 0x000F == 0")
	}
}

func TestNotImplementedOpcodeDryRunLogsAndContinues(t *testing.T) {
	c, mem := newTestCPU()
	c.Mode = ModeDryRun
	var logged []string
	SetLogger(loggerFunc(func(msg string) { logged = append(logged, msg) }))
	defer SetLogger(nil)

	mem.Write(0x100, 0x98) // CBW: recognized, not executed by this core
	mem.Write(0x101, 0x90) // NOP, must still be reachable afterwards

	c.FetchAndDecode()
	c.Execute() // must not panic in ModeDryRun
	if c.Regs.IP() != 0x101 {
		t.Fatalf("IP = %#04x, want 0x101 (CBW is one byte)", c.Regs.IP())
	}

	c.FetchAndDecode()
	c.Execute() // NOP decodes fine immediately after
	if c.Regs.IP() != 0x102 {
		t.Errorf("IP = %#04x, want 0x102 after trailing NOP", c.Regs.IP())
	}

	found := false
	for _, m := range logged {
		if m != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected a warning logged for the not-implemented opcode")
	}
}

func TestNotImplementedOpcodeFatalWhenExecuting(t *testing.T) {
	c, mem := newTestCPU()
	c.Mode = ModeReal
	mem.Write(0x100, 0x98) // CBW

	defer func() {
		if recover() == nil {
			t.Error("expected a panic decoding a not-implemented opcode in ModeReal")
		}
	}()
	c.FetchAndDecode()
}

func TestInvalidOpcodeAlwaysFatal(t *testing.T) {
	for _, mode := range []ExecutionMode{ModeReal, ModeDryRun} {
		c, mem := newTestCPU()
		c.Mode = mode
		mem.Write(0x100, 0x0F) // two-byte escape, unregistered: genuinely invalid here

		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("mode %v: expected a panic decoding an invalid opcode", mode)
				}
			}()
			c.FetchAndDecode()
		}()
	}
}

type loggerFunc func(msg string)

func (f loggerFunc) Log(msg string) { f(msg) }
