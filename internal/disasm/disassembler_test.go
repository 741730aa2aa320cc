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
	"os"
	"path/filepath"
	"testing"
)

// writeCom writes data to a temp .com file under dir and returns the
// shared prefix (without extension) for NewDisassembler/Load.
func writeCom(t *testing.T, dir string, data []byte) string {
	t.Helper()
	prefix := filepath.Join(dir, "prog")
	if err := os.WriteFile(prefix+".com", data, 0644); err != nil {
		t.Fatal(err)
	}
	return prefix
}

func TestDisassembleTwoFragments(t *testing.T) {
	dir := t.TempDir()
	image := []byte{0xB8, 0x34, 0x12, 0xC3, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}
	prefix := writeCom(t, dir, image)

	d := NewDisassembler()
	if err := d.Load(prefix + ".com"); err != nil {
		t.Fatal(err)
	}
	d.Disassemble()

	mov, ok := d.fragments[0x100]
	if !ok || mov.Kind != FragmentCode || mov.Size != 3 || mov.CodeText != "MOV AX, 1234h" {
		t.Fatalf("fragment at 0x100 = %+v, want CODE size 3 \"MOV AX, 1234h\"", mov)
	}
	ret, ok := d.fragments[0x103]
	if !ok || ret.Kind != FragmentCode || ret.Size != 1 || ret.CodeText != "RET" {
		t.Fatalf("fragment at 0x103 = %+v, want CODE size 1 \"RET\"", ret)
	}
	data, ok := d.fragments[0x104]
	if !ok || data.Kind != FragmentData || data.Size != 12 {
		t.Fatalf("fragment at 0x104 = %+v, want DATA size 12", data)
	}
	if len(d.fragments) != 3 {
		t.Errorf("got %d fragments, want exactly 3", len(d.fragments))
	}
}

func TestDisassembleTESTIdiom(t *testing.T) {
	dir := t.TempDir()
	image := []byte{0x85, 0xC0, 0x74, 0x01, 0x90, 0xC3} // TEST AX,AX; JZ +1; NOP; RET
	prefix := writeCom(t, dir, image)

	d := NewDisassembler()
	if err := d.Load(prefix + ".com"); err != nil {
		t.Fatal(err)
	}
	d.Disassemble() // must not panic: 0x84/0x85/0xA8/0xA9 are registered

	test, ok := d.fragments[0x100]
	if !ok || test.Kind != FragmentCode || test.Size != 2 || test.CodeText != "TEST AX, AX" {
		t.Fatalf("fragment at 0x100 = %+v, want CODE size 2 \"TEST AX, AX\"", test)
	}
}

func TestDisassembleSkipsNotImplementedOpcode(t *testing.T) {
	dir := t.TempDir()
	image := []byte{0x98, 0xC3} // CBW (recognized, not implemented); RET
	prefix := writeCom(t, dir, image)

	d := NewDisassembler()
	if err := d.Load(prefix + ".com"); err != nil {
		t.Fatal(err)
	}
	d.Disassemble() // must not panic: notImplemented is non-fatal while decoding dry-run

	cbw, ok := d.fragments[0x100]
	if !ok || cbw.Kind != FragmentCode || cbw.Size != 1 {
		t.Fatalf("fragment at 0x100 = %+v, want CODE size 1", cbw)
	}
	ret, ok := d.fragments[0x101]
	if !ok || ret.Kind != FragmentCode || ret.CodeText != "RET" {
		t.Fatalf("fragment at 0x101 = %+v, want CODE \"RET\"", ret)
	}
}

func TestVerifyCoveragePartitionsExactly(t *testing.T) {
	dir := t.TempDir()
	image := []byte{0x90, 0x90, 0xB8, 0x00, 0x00, 0xC3, 0x90, 0x90}
	prefix := writeCom(t, dir, image)

	d := NewDisassembler()
	if err := d.Load(prefix + ".com"); err != nil {
		t.Fatal(err)
	}
	d.Disassemble() // must not panic

	next := d.startOffset
	for _, addr := range d.sortedFragmentAddrs() {
		if addr != next {
			t.Fatalf("coverage gap: expected fragment at %#x, found %#x", next, addr)
		}
		next += uint32(d.fragments[addr].Size)
	}
	if next != d.endOffset {
		t.Fatalf("coverage ends at %#x, want %#x", next, d.endOffset)
	}
}

func TestCommentMergeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	image := []byte{0xB8, 0x34, 0x12, 0xC3}
	prefix := writeCom(t, dir, image)

	existing := "; hello\n0100  MOV AX, 1234h    ; greet\n"
	if err := os.WriteFile(prefix+".asm", []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}

	d := NewDisassembler()
	if err := d.DisassembleAndMerge(prefix+".com", prefix+".asm"); err != nil {
		t.Fatal(err)
	}

	fragment := d.fragments[0x100]
	if fragment == nil {
		t.Fatal("no fragment at 0x100")
	}
	if len(fragment.BlockComments) != 1 || fragment.BlockComments[0] != "hello" {
		t.Errorf("BlockComments = %v, want [\"hello\"]", fragment.BlockComments)
	}
	if fragment.LineComment != "greet" {
		t.Errorf("LineComment = %q, want \"greet\"", fragment.LineComment)
	}

	first, err := os.ReadFile(prefix + ".asm")
	if err != nil {
		t.Fatal(err)
	}

	d2 := NewDisassembler()
	if err := d2.DisassembleAndMerge(prefix+".com", prefix+".asm"); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(prefix + ".asm")
	if err != nil {
		t.Fatal(err)
	}

	if string(first) != string(second) {
		t.Errorf("merge is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want uint16
	}{
		{"100", 100},
		{"1ff", 0x1ff},
		{"100h", 0x100},
		{"100H", 0x100},
		{"FF", 0xFF},
	}
	for _, c := range cases {
		got, err := parseNumber(c.in)
		if err != nil {
			t.Errorf("parseNumber(%q) error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseNumber(%q) = %#x, want %#x", c.in, got, c.want)
		}
	}
}

func TestLoadConfigEntryPointAndDumpRaw(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "prog.cfg")
	content := "EntryPoint 200h\nDumpRaw\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.DumpRaw {
		t.Error("DumpRaw not set")
	}
	if len(cfg.ManualEntryPoints) != 1 || cfg.ManualEntryPoints[0] != 0x200 {
		t.Errorf("ManualEntryPoints = %v, want [0x200]", cfg.ManualEntryPoints)
	}
}

func TestLoadConfigMissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.cfg"))
	if err != nil {
		t.Fatalf("missing config file should not error: %v", err)
	}
	if cfg.DumpRaw || len(cfg.ManualEntryPoints) != 0 {
		t.Errorf("expected zero Config, got %+v", cfg)
	}
}
