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

// Package disasm implements the recursive-descent disassembler: it
// drives internal/cpu86 in ModeDryRun to discover code, and partitions
// the remainder of a loaded .COM image into data.
package disasm

// FragmentKind distinguishes a disassembled code region from raw data.
type FragmentKind int

const (
	FragmentCode FragmentKind = iota
	FragmentData
)

// Fragment is one piece of the disassembly: a contiguous run of bytes
// starting at a given address, either decoded as one instruction or
// left as data.
type Fragment struct {
	Kind FragmentKind
	Size int

	CodeText string // set for FragmentCode: the rendered mnemonic line

	BlockComments []string // whole-line comments preceding this fragment
	LineComment   string   // trailing "; ..." comment on this fragment's line
}

// EntryPointOrigin records why an entry point was added, for output's
// "blank line + address comment before a CALL target" convention.
type EntryPointOrigin int

const (
	OriginCall EntryPointOrigin = iota
	OriginJump
	OriginManual
)

// EntryPoint is a to-be-explored (or already explored) disassembly
// starting address.
type EntryPoint struct {
	Explored bool
	Origin   EntryPointOrigin
}
