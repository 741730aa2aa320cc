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

package disasm

import (
	"fmt"
	"os"
	"sort"

	"github.com/mg/dos86/internal/cpu86"
)

const comLoadOffset = 0x0100

// Disassembler partitions a .COM image's address range into CODE and
// DATA fragments by driving internal/cpu86 in ModeDryRun from a
// worklist of entry points, then filling whatever the decoder never
// reached with DATA.
type Disassembler struct {
	mem *cpu86.Memory
	cpu *cpu86.CPU

	startOffset uint32
	endOffset   uint32

	entryPoints map[uint32]*EntryPoint
	fragments   map[uint32]*Fragment

	dumpRaw bool
}

// NewDisassembler creates an empty disassembler over a fresh 1 MiB
// address space, matching the core's default memory size.
func NewDisassembler() *Disassembler {
	mem := cpu86.NewMemory(cpu86.DefaultMemorySize)
	c := cpu86.NewCPU(mem)
	c.Mode = cpu86.ModeDryRun
	d := &Disassembler{
		mem:         mem,
		cpu:         c,
		entryPoints: make(map[uint32]*EntryPoint),
		fragments:   make(map[uint32]*Fragment),
	}
	c.ControlFlow = d.onControlFlow
	return d
}

// Load reads a .COM image at linear 0x0100, seeds an entry point at
// its start, and records [startOffset, endOffset).
func (d *Disassembler) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	d.mem.LoadImage(comLoadOffset, data)
	d.startOffset = comLoadOffset
	d.endOffset = comLoadOffset + uint32(len(data))
	d.cpu.Regs.SetCS(0)
	d.cpu.Regs.SetDS(0)
	d.cpu.Regs.SetES(0)
	d.cpu.Regs.SetSS(0)
	d.cpu.Regs.SetIP(comLoadOffset)
	d.addEntryPoint(comLoadOffset, OriginManual)
	return nil
}

// ApplyConfig seeds manual entry points and output options from a
// parsed Config (see LoadConfig).
func (d *Disassembler) ApplyConfig(cfg Config) {
	d.dumpRaw = d.dumpRaw || cfg.DumpRaw
	for _, addr := range cfg.ManualEntryPoints {
		d.addEntryPoint(addr, OriginManual)
	}
}

func (d *Disassembler) addEntryPoint(addr uint32, origin EntryPointOrigin) {
	if _, exists := d.entryPoints[addr]; exists {
		return
	}
	d.entryPoints[addr] = &EntryPoint{Origin: origin}
}

// onControlFlow is the cpu86.CPU.ControlFlow observer: it turns a
// dry-run control-transfer event into a new entry point, with CALL
// targets tagged OriginCall and everything else OriginJump.
func (d *Disassembler) onControlFlow(c *cpu86.CPU, ev cpu86.ControlFlowEvent) {
	if !ev.HasTarget {
		return
	}
	origin := OriginJump
	if ev.IsCall {
		origin = OriginCall
	}
	d.addEntryPoint(cpu86.GetLinearAddress(c.Regs.CS(), ev.Target), origin)
}

// Disassemble runs the full pipeline: explore every entry point,
// cover the gaps with data, then verify the result tiles the image
// exactly.
func (d *Disassembler) Disassemble() {
	d.exploreEntryPoints()
	d.addDataFragments()
	d.verifyCoverage()
}

// exploreEntryPoints drains the entry-point worklist, exploring any
// unexplored one, until a full pass finds nothing new (an explore call
// may add further entry points, so draining is not a single loop over
// a snapshot of the map).
func (d *Disassembler) exploreEntryPoints() {
	for {
		found := false
		for addr, ep := range d.entryPoints {
			if ep.Explored {
				continue
			}
			ep.Explored = true
			found = true
			d.explore(addr)
		}
		if !found {
			break
		}
	}
}

// explore runs a dry-run fetch-decode-execute loop starting at addr
// until a control-transfer instruction's DryRun handler sets StopLine.
// Every instruction decoded along the way becomes one CODE fragment.
func (d *Disassembler) explore(addr uint32) {
	d.cpu.Regs.SetIP(uint16(addr))
	d.cpu.StopLine = false
	for {
		start := d.cpu.GetCS_IP()
		d.cpu.FetchAndDecode()
		if _, exists := d.fragments[start]; !exists {
			d.fragments[start] = &Fragment{
				Kind:     FragmentCode,
				Size:     d.cpu.GetBytesFetched(),
				CodeText: d.cpu.CurrentOpcodeDesc(),
			}
		}
		d.cpu.Execute()
		if d.cpu.StopLine {
			return
		}
	}
}

// sortedFragmentAddrs returns the fragment table's keys in ascending
// order, standing in for the original's ordered map iteration.
func (d *Disassembler) sortedFragmentAddrs() []uint32 {
	addrs := make([]uint32, 0, len(d.fragments))
	for a := range d.fragments {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// coverAddressGap inserts a DATA fragment spanning [begin, end) when
// non-empty.
func (d *Disassembler) coverAddressGap(begin, end uint32) {
	if begin == end {
		return
	}
	d.fragments[begin] = &Fragment{Kind: FragmentData, Size: int(end - begin)}
}

// addDataFragments walks the disassembly in ascending address order
// and turns every gap between fragments (and before the first/after
// the last) into a DATA fragment.
func (d *Disassembler) addDataFragments() {
	next := d.startOffset
	for _, addr := range d.sortedFragmentAddrs() {
		d.coverAddressGap(next, addr)
		next = addr + uint32(d.fragments[addr].Size)
	}
	d.coverAddressGap(next, d.endOffset)
}

// verifyCoverage asserts the fragment table exactly partitions
// [startOffset, endOffset): every address accounted for once, in
// order, with no gap or overlap. The source asserts an assignment
// here rather than an equality comparison; implemented as equality
// per the resolved Open Question in spec.md 9.
func (d *Disassembler) verifyCoverage() {
	next := d.startOffset
	for _, addr := range d.sortedFragmentAddrs() {
		if addr != next {
			panic(fmt.Sprintf("coverage violation: expected fragment at %04Xh, found one at %04Xh", next, addr))
		}
		next = addr + uint32(d.fragments[addr].Size)
	}
	if next != d.endOffset {
		panic(fmt.Sprintf("coverage violation: disassembly ends at %04Xh, expected %04Xh", next, d.endOffset))
	}
}

// DisassembleAndMerge runs Load, Disassemble, mergeComments against
// any existing listing at asmPath, then writes the result back out.
func (d *Disassembler) DisassembleAndMerge(comPath, asmPath string) error {
	if err := d.Load(comPath); err != nil {
		return err
	}
	d.Disassemble()
	if err := d.mergeComments(asmPath); err != nil {
		return err
	}
	return d.outputAsm(asmPath)
}
