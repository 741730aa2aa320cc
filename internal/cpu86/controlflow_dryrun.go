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

// Dry-run counterparts of the control-transfer mnemonics. Unlike their
// Exec siblings, these never touch registers, memory, or the call
// stack: IP has already been advanced past the full instruction by
// decode, and the disassembler's explore loop drives its own notion of
// where control goes next from the ControlFlowEvent alone.

// emitControlFlow records StopLine for the explore loop and forwards
// the event to the installed observer, if any.
func (c *CPU) emitControlFlow(ev ControlFlowEvent) {
	c.StopLine = ev.Stop
	if c.ControlFlow != nil {
		c.ControlFlow(c, ev)
	}
}

func dryCALLnear(c *CPU, p *PreparedInstruction) {
	c.emitControlFlow(ControlFlowEvent{HasTarget: true, Target: p.RelTarget, IsCall: true})
}

// dryCALLIndirect reads the call target the same way the real handler
// does; in ModeDryRun that read always yields zero, so the call is
// recorded as having no target, matching dryJMPreg's reasoning.
func dryCALLIndirect(c *CPU, p *PreparedInstruction) {
	target := c.ReadWord(p.WArg1)
	c.emitControlFlow(ControlFlowEvent{HasTarget: target != 0, Target: target, IsCall: true})
}

func dryJMPnear(c *CPU, p *PreparedInstruction) {
	c.emitControlFlow(ControlFlowEvent{HasTarget: true, Target: p.RelTarget, Stop: true})
}

// dryJMPreg: a register/memory target always reads as zero in dry
// run, so this always stops the line without recording a target,
// preserving the source's "ignore JMP <reg>" short-circuit bit-exactly.
func dryJMPreg(c *CPU, p *PreparedInstruction) {
	target := c.ReadWord(p.WArg1)
	c.emitControlFlow(ControlFlowEvent{HasTarget: target != 0, Target: target, Stop: true})
}

func dryRET(c *CPU, p *PreparedInstruction) {
	c.emitControlFlow(ControlFlowEvent{Stop: true})
}

// dryFarUnsupported stops the line without asserting: far call/jmp/ret
// bytes still decode cleanly for a disassembly pass even though
// executing them for real is fatal.
func dryFarUnsupported(c *CPU, p *PreparedInstruction) {
	c.emitControlFlow(ControlFlowEvent{Stop: true})
}

func dryJcc(c *CPU, p *PreparedInstruction) {
	c.emitControlFlow(ControlFlowEvent{HasTarget: true, Target: p.RelTarget})
}

func dryLoopOrJCXZ(c *CPU, p *PreparedInstruction) {
	c.emitControlFlow(ControlFlowEvent{HasTarget: true, Target: p.RelTarget})
}
