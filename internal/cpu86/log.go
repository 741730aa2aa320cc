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

// Logger receives trace and diagnostic lines from the CPU core. The
// interface mirrors the teacher's Logger so that the core never depends
// directly on the standard log package.
type Logger interface {
	Log(msg string)
}

type defaultLogger struct{}

func (defaultLogger) Log(msg string) {}

var (
	logger    Logger = defaultLogger{}
	logEnable        = false
)

// SetLogger installs a Logger used by Step's trace line and by
// warnings emitted for missing interrupt/IO handlers and unimplemented
// opcodes decoded in dry-run mode.
func SetLogger(l Logger) {
	if l == nil {
		l = defaultLogger{}
	}
	logger = l
}

// SetLogEnable toggles the per-step trace line. Warnings (missing
// handlers, unimplemented opcodes) are always logged regardless of this
// flag.
func SetLogEnable(enable bool) {
	logEnable = enable
}

func warnf(format string, args ...interface{}) {
	logger.Log(fmt.Sprintf(format, args...))
}
