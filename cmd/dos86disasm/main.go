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

package main

import (
	"fmt"
	"os"

	"github.com/mg/dos86/internal/disasm"
	"gopkg.in/urfave/cli.v2"
)

func main() {
	app := &cli.App{
		Name:      "dos86disasm",
		Usage:     "recursive-descent disassembler for 8086 .COM programs",
		Version:   "v0.0.1",
		ArgsUsage: "<prefix>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				cli.ShowAppHelp(c)
				return cli.Exit("", 1)
			}
			return run(c.Args().Get(0))
		},
	}

	if err := app.Run(os.Args); err != nil {
		if ec, ok := err.(cli.ExitCoder); ok {
			os.Exit(ec.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run loads <prefix>.com and, if present, <prefix>.cfg, disassembles
// the image, merges comments out of any existing <prefix>.asm, and
// writes the result back to <prefix>.asm. A fatal check() panic from
// the core surfaces here as the one recover point the core itself
// never installs.
func run(prefix string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cli.Exit(fmt.Sprint(r), 1)
		}
	}()

	d := disasm.NewDisassembler()

	cfg, err := disasm.LoadConfig(prefix + ".cfg")
	if err != nil {
		return cli.Exit(fmt.Sprintf("%s.cfg: %s", prefix, err), 1)
	}
	d.ApplyConfig(cfg)

	if err := d.DisassembleAndMerge(prefix+".com", prefix+".asm"); err != nil {
		return cli.Exit(fmt.Sprintf("%s.com: %s", prefix, err), 1)
	}
	return nil
}
