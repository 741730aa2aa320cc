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
	"bufio"
	"fmt"
	"os"
)

const maxInstructionSize = 6 // for raw-byte column padding when dumpRaw is set
const dataLineSoftLimit = 77
const minPrintableRun = 4

// outputAsm writes the full listing to path in ascending address
// order: pending block comments, then the fragment's own rendering.
func (d *Disassembler) outputAsm(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, addr := range d.sortedFragmentAddrs() {
		fragment := d.fragments[addr]

		if len(fragment.BlockComments) > 0 {
			fmt.Fprintln(w)
			for _, c := range fragment.BlockComments {
				fmt.Fprintf(w, "; %s\n", c)
			}
		}

		switch fragment.Kind {
		case FragmentCode:
			d.outputCodeFragment(w, addr, fragment)
		case FragmentData:
			d.outputDataFragment(w, addr, fragment)
		}
	}
	return w.Flush()
}

func (d *Disassembler) outputCodeFragment(w *bufio.Writer, addr uint32, fragment *Fragment) {
	if ep, ok := d.entryPoints[addr]; ok && len(fragment.BlockComments) == 0 {
		fmt.Fprintln(w)
		if ep.Origin == OriginCall {
			fmt.Fprintf(w, "; %04Xh\n", addr)
		}
	}

	fmt.Fprintf(w, "%04X  ", addr)
	if d.dumpRaw {
		d.outputRawBytes(w, addr, fragment.Size)
		for i := 0; i < (maxInstructionSize-fragment.Size)*2; i++ {
			w.WriteByte(' ')
		}
		w.WriteString("  ")
	}

	w.WriteString(fragment.CodeText)
	if fragment.LineComment != "" {
		fmt.Fprintf(w, "    ; %s", fragment.LineComment)
	}
	fmt.Fprintln(w)
}

func (d *Disassembler) outputRawBytes(w *bufio.Writer, addr uint32, size int) {
	raw := d.mem.Borrow(addr, size)
	for _, b := range raw {
		fmt.Fprintf(w, "%02X", b)
	}
}

// outputDataFragment emits .DB lines for a DATA fragment: consecutive
// runs of at least minPrintableRun printable bytes become a quoted
// literal on their own line; other bytes are hex-packed up to
// dataLineSoftLimit characters per line.
func (d *Disassembler) outputDataFragment(w *bufio.Writer, addr uint32, fragment *Fragment) {
	if len(fragment.BlockComments) == 0 {
		fmt.Fprintln(w)
	}

	data := d.mem.Borrow(addr, fragment.Size)
	start := 0
	line := ""
	flush := func() {
		if line != "" {
			fmt.Fprintln(w, line)
			line = ""
		}
	}
	startLine := func(lineAddr uint32) {
		if line == "" {
			line = fmt.Sprintf("%04X  .DB ", lineAddr)
		}
	}

	for start < len(data) {
		startLine(addr + uint32(start))

		printable := isPrintable(data[start])
		end := start
		for end < len(data) && isPrintable(data[end]) == printable {
			end++
		}

		if printable && end-start > minPrintableRun-1 {
			flush()
			startLine(addr + uint32(start))
			line += fmt.Sprintf("'%s'", string(data[start:end]))
			flush()
			start = end
			continue
		}

		for start < end && len(line) < dataLineSoftLimit {
			line += fmt.Sprintf("%02Xh, ", data[start])
			start++
		}
		if start < end {
			flush()
		}
	}
	flush()
}

// isPrintable mirrors C's isprint() in the "C" locale: the printable
// ASCII range, space through tilde.
func isPrintable(b byte) bool {
	return b >= 0x20 && b < 0x7F
}
