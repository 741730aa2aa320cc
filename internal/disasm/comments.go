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
	"strconv"
	"strings"
)

// startsWithAddress reports whether line opens with a 4-digit hex
// address followed by a space, the listing's disassembly-line marker.
func startsWithAddress(line string) bool {
	if len(line) < 5 {
		return false
	}
	for i := 0; i < 4; i++ {
		if !isHexDigit(line[i]) {
			return false
		}
	}
	return line[4] == ' '
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// insertDataFragment splits the fragment covering addr in two: the
// preceding fragment shrinks to end exactly at addr, and a new DATA
// fragment is inserted running from addr up to whatever follows.
func (d *Disassembler) insertDataFragment(addr uint32) {
	next := d.endOffset
	var prevAddr uint32
	found := false
	for _, a := range d.sortedFragmentAddrs() {
		switch {
		case a < addr:
			prevAddr, found = a, true
		case a > addr && a < next:
			next = a
		}
	}
	if !found {
		panic(fmt.Sprintf("insertDataFragment: no fragment precedes %04Xh", addr))
	}

	prev := d.fragments[prevAddr]
	prev.Size = int(addr - prevAddr)
	d.fragments[addr] = &Fragment{Kind: FragmentData, Size: int(next - addr)}
}

// getFragment returns the fragment starting exactly at addr. If none
// exists and addIfNeeded is set, it splits the fragment that currently
// covers addr (inserting a DATA fragment there) and returns that.
func (d *Disassembler) getFragment(addr uint32, addIfNeeded bool) *Fragment {
	if f, ok := d.fragments[addr]; ok {
		return f
	}
	if !addIfNeeded {
		return nil
	}
	d.insertDataFragment(addr)
	return d.fragments[addr]
}

// mergeComments reads an existing listing line by line and reattaches
// its comments to the freshly computed fragment table. A run of `;`
// lines accumulates as block comments; the next disassembly-line
// address claims them, and any trailing `; ...` on that same line
// becomes its line comment. Referencing an address inside a DATA
// fragment splits it via getFragment/insertDataFragment. A missing
// file is not an error: there is simply nothing to merge.
func (d *Disassembler) mergeComments(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var blockComments []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ";") {
			blockComments = append(blockComments, strings.TrimSpace(line[1:]))
			continue
		}
		if !startsWithAddress(line) {
			continue
		}
		addr, err := strconv.ParseUint(line[:4], 16, 32)
		if err != nil {
			continue
		}

		if len(blockComments) > 0 {
			d.getFragment(uint32(addr), true).BlockComments = blockComments
			blockComments = nil
		}

		idx := strings.IndexByte(line, ';')
		if idx < 0 {
			continue
		}
		if fragment := d.getFragment(uint32(addr), false); fragment != nil {
			fragment.LineComment = strings.TrimSpace(line[idx+1:])
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	d.verifyCoverage()
	return nil
}
