package build

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("generator tests need a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

func TestExecGenerator_PassesEnvironment(t *testing.T) {
	requireShell(t)
	out := t.TempDir()

	g := ExecGenerator{Command: []string{"sh", "-c", `printf '%s|%s' "$CURRENT_DIRECTORY" "$SITE_URL" > "$OUTPUT_DIR/env.txt"`}}
	err := g.Generate(context.Background(), Job{
		DirectoryID: "dogparks",
		OutputDir:   out,
		Env: map[string]string{
			"CURRENT_DIRECTORY": "dogparks",
			"SITE_URL":          "https://dogparks.example.com",
			"OUTPUT_DIR":        out,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "dogparks|https://dogparks.example.com", read(t, filepath.Join(out, "env.txt")))
}

func TestExecGenerator_FailureCarriesStderr(t *testing.T) {
	requireShell(t)

	g := ExecGenerator{Command: []string{"sh", "-c", "echo starting; echo 'missing layout' >&2; exit 3"}}
	err := g.Generate(context.Background(), Job{DirectoryID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing layout")
	assert.Contains(t, err.Error(), "exit status 3")

	assert.Error(t, ExecGenerator{}.Generate(context.Background(), Job{}))
}
