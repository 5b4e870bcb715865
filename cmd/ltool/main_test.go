package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAsm drops src into a fresh file under t's temp directory and
// returns its path, the way a user would hand ltool a saved program.
func writeAsm(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.asm")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func runCmd(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

const sumProgram = `
.locals 3
KNUM r0, 2
KNUM r1, 3
AADD r2, r0, r1
RET r2
`

func TestRunCmdExecutesArithmetic(t *testing.T) {
	path := writeAsm(t, sumProgram)
	out := runCmd(t, newRunCmd(), path)
	assert.Equal(t, "5\n", out)
}

func TestCompileCmdDumpsMIR(t *testing.T) {
	path := writeAsm(t, sumProgram)
	out := runCmd(t, newCompileCmd(), path)
	assert.Contains(t, out, "-- Block $0")
	assert.Contains(t, out, "ret")
}

func TestGCStatCmdReportsKinds(t *testing.T) {
	path := writeAsm(t, `
.locals 1
TNEW r0, 0
RET r0
`)
	out := runCmd(t, newGCStatCmd(), path)
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "table")
}

func TestRunCmdRejectsMissingFile(t *testing.T) {
	cmd := newRunCmd()
	cmd.SetArgs([]string{"/nonexistent/path.asm"})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	assert.Error(t, cmd.Execute())
}
