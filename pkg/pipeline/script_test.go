package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRun_ScriptReproducesRun executes the emitted reproduction script as a
// standalone program and checks that it replays the original run. The script
// is compiled in a scratch module that resolves this repository through a
// replace directive.
func TestRun_ScriptReproducesRun(t *testing.T) {
	if testing.Short() {
		t.Skip("compiling the reproduction script needs the go toolchain and module downloads")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available")
	}

	result, err := Run(context.Background(), testExtent, builtinSet())
	require.NoError(t, err)

	root, err := filepath.Abs("../..")
	require.NoError(t, err)

	dir := t.TempDir()
	gomod := fmt.Sprintf(
		"module reproduced\n\ngo 1.24\n\nrequire github.com/nicheflow/nicheflow v0.0.0\n\nreplace github.com/nicheflow/nicheflow => %s\n",
		root)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(gomod), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(result.Script), 0o644))

	env := append(os.Environ(), "GOWORK=off")

	tidy := exec.Command(goBin, "mod", "tidy")
	tidy.Dir = dir
	tidy.Env = env
	out, err := tidy.CombinedOutput()
	require.NoError(t, err, "go mod tidy: %s", out)

	run := exec.Command(goBin, "run", ".")
	run.Dir = dir
	run.Env = env
	out, err = run.CombinedOutput()
	require.NoError(t, err, "go run: %s", out)

	want := fmt.Sprintf("reproduced pipeline run over %s: %d sample rows",
		result.Extent, result.Samples.Len())
	assert.Contains(t, string(out), want,
		"replayed run reports the same extent and sample count")
}
