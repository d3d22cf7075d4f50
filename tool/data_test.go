// Copyright 2019 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package tool

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/hummockdb/hummock/internal/base"
	"github.com/spf13/cobra"
)

// recordingLogger buffers every message it receives.
type recordingLogger struct {
	buf strings.Builder
}

func (l *recordingLogger) Infof(format string, args ...interface{}) {
	fmt.Fprintf(&l.buf, format+"\n", args...)
}

func (l *recordingLogger) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(&l.buf, format+"\n", args...)
}

func (l *recordingLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

// runTool executes the tool with args and returns everything it wrote along
// with the exit code it requested, if any.
func runTool(t *testing.T, args ...string) (output string, exitCode int) {
	return runToolWithLogger(t, base.NoopLogger{}, args...)
}

func runToolWithLogger(
	t *testing.T, logger Logger, args ...string,
) (output string, exitCode int) {
	var buf bytes.Buffer
	stdout = &buf
	stderr = &buf
	osExit = func(code int) { exitCode = code }
	defer func() {
		stdout = os.Stdout
		stderr = os.Stderr
		osExit = os.Exit
	}()

	c := &cobra.Command{}
	c.AddCommand(New(WithLogger(logger)).Commands...)
	c.SetArgs(args)
	c.SetOutput(&buf)
	if err := c.Execute(); err != nil {
		return err.Error(), exitCode
	}
	return buf.String(), exitCode
}

// runTests runs the datadriven tool commands in path. Every argument equal to
// a key of substitutions is replaced by its value.
func runTests(t *testing.T, path string, substitutions map[string]string) {
	datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
		args := []string{d.Cmd}
		for _, arg := range d.CmdArgs {
			s := arg.String()
			if sub, ok := substitutions[s]; ok {
				s = sub
			}
			args = append(args, s)
		}
		args = append(args, strings.Fields(d.Input)...)
		out, _ := runTool(t, args...)
		return out
	})
}
