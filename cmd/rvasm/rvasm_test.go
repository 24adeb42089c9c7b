package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrampoline(t *testing.T) {
	dir := t.TempDir()
	exitCode, stdOut, stdErr := runMain(t, []string{"trampoline", "-entry=16", "-cfi", "-cachedir=" + dir, "JIJ"})
	require.Equal(t, 0, exitCode, stdErr)
	require.Contains(t, stdOut, "TEXT ·critical_native_JIJ(SB)")
	require.Contains(t, stdOut, "ld t0, 16(a0)")
	require.Contains(t, stdOut, "jalr zero, 0(t0)")
	require.Contains(t, stdOut, "// cfi: ")
	require.Contains(t, stdOut, "// key: ")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ".bin", filepath.Ext(entries[0].Name()))
}

func TestClassify(t *testing.T) {
	exitCode, stdOut, _ := runMain(t, []string{"classify", "VIJ"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "0: reference@a1/4\n1: int@a2/4\n2: long@a3/8\n", stdOut)

	exitCode, stdOut, _ = runMain(t, []string{"classify", "-critical", "ZI"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "0: int@a0/4\nframe size: 0\nout frame size: 16\n", stdOut)
}

func TestDecode(t *testing.T) {
	exitCode, stdOut, _ := runMain(t, []string{"decode", "0x00008067", "00113423"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "00008067: jalr zero, 0(ra)\n00113423: sd ra, 8(sp)\n", stdOut)
}

func TestHelp(t *testing.T) {
	exitCode, _, stdErr := runMain(t, []string{"-h"})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdErr, "rvasm CLI\n\nUsage:")
}

func TestErrors(t *testing.T) {
	for _, tc := range []struct {
		message string
		args    []string
	}{
		{message: "invalid command", args: []string{"assemble"}},
		{message: "missing shorty", args: []string{"trampoline"}},
		{message: "invalid isa", args: []string{"trampoline", "-isa=rv32i", "V"}},
		{message: "error assembling trampoline", args: []string{"trampoline", "VL"}},
		{message: "missing shorty", args: []string{"classify"}},
		{message: "invalid shorty", args: []string{"classify", "VV"}},
		{message: "missing instruction words", args: []string{"decode"}},
		{message: "invalid word", args: []string{"decode", "xyz"}},
	} {
		tc := tc
		t.Run(tc.message, func(t *testing.T) {
			exitCode, _, stdErr := runMain(t, tc.args)
			require.Equal(t, 1, exitCode)
			require.Contains(t, stdErr, tc.message)
		})
	}
}

func runMain(t *testing.T, args []string) (int, string, string) {
	t.Helper()
	oldArgs := os.Args
	t.Cleanup(func() {
		os.Args = oldArgs
	})
	os.Args = append([]string{"rvasm"}, args...)

	var exitCode int
	stdOut := &bytes.Buffer{}
	stdErr := &bytes.Buffer{}
	var exited bool
	func() {
		defer func() {
			if r := recover(); r != nil {
				exited = true
			}
		}()
		flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
		doMain(stdOut, stdErr, func(code int) {
			exitCode = code
			panic(code)
		})
	}()

	require.True(t, exited)

	return exitCode, stdOut.String(), stdErr.String()
}
