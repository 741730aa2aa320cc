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
	"io"
	"os"
	"strconv"
	"strings"
)

// Config is the parsed form of a ".cfg" file: manual entry points and
// output options that Disassembler.ApplyConfig applies before exploring.
type Config struct {
	ManualEntryPoints []uint32
	DumpRaw           bool
}

// LoadConfig reads a ".cfg" file: blank lines are skipped; each other
// line is a whitespace-separated command. "EntryPoint <address>" adds
// a manual entry point; "DumpRaw" enables the output raw-byte column.
// A missing file is not an error — config is optional, and LoadConfig
// returns a zero Config in that case.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return loadConfigFrom(f)
}

func loadConfigFrom(r io.Reader) (Config, error) {
	var cfg Config
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch strings.ToLower(fields[0]) {
		case "entrypoint":
			if len(fields) < 2 {
				fmt.Fprintln(os.Stderr, "Syntax: EntryPoint <address>")
				continue
			}
			addr, err := parseNumber(fields[1])
			if err != nil {
				return Config{}, fmt.Errorf("EntryPoint: %w", err)
			}
			cfg.ManualEntryPoints = append(cfg.ManualEntryPoints, uint32(addr))
		case "dumpraw":
			cfg.DumpRaw = true
		}
	}
	return cfg, scanner.Err()
}

// parseNumber accepts plain decimal, plain hex when any a-f/A-F digit
// is present, or an explicit trailing h/H, per spec.md 6.
func parseNumber(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}
	hex := false
	trimmed := s
	if last := s[len(s)-1]; last == 'h' || last == 'H' {
		hex = true
		trimmed = s[:len(s)-1]
	} else if strings.ContainsAny(s, "abcdefABCDEF") {
		hex = true
	}
	base := 10
	if hex {
		base = 16
	}
	v, err := strconv.ParseUint(trimmed, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return uint16(v), nil
}
