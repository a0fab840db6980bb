// internal/build/generator.go
//
// Static-site generator invocation.
//
// The generator (Astro by default) is an external program.  Each directory
// gets its own run with a directory-scoped environment:
//
//	CURRENT_DIRECTORY  directory id the generator should render
//	SITE_URL           canonical base URL of that directory
//	OUTPUT_DIR         where the generator must write its output
//
// Generator output is streamed to the debug log; the last lines of stderr
// are attached to the error when the process fails.

package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Job is one generator run.
type Job struct {
	DirectoryID string
	OutputDir   string
	Env         map[string]string
}

// Generator renders one directory.
type Generator interface {
	Generate(ctx context.Context, job Job) error
}

// ExecGenerator runs Command in Dir as a subprocess.
type ExecGenerator struct {
	Command []string
	Dir     string
}

// Generate implements Generator.
func (g ExecGenerator) Generate(ctx context.Context, job Job) error {
	if len(g.Command) == 0 {
		return errors.New("generator command is empty")
	}

	cmd := exec.CommandContext(ctx, g.Command[0], g.Command[1:]...)
	cmd.Dir = g.Dir
	cmd.Env = append(os.Environ(), envList(job.Env)...)

	log := zap.S().With("directory", job.DirectoryID)
	tail := &tailWriter{max: 4096}
	cmd.Stdout = &lineLogger{log: log, stream: "stdout"}
	cmd.Stderr = io.MultiWriter(tail, &lineLogger{log: log, stream: "stderr"})

	log.Infow("generator start", "cmd", strings.Join(g.Command, " "), "output", job.OutputDir)
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(tail.String()); msg != "" {
			return fmt.Errorf("generator: %w: %s", err, lastLines(msg, 5))
		}
		return fmt.Errorf("generator: %w", err)
	}
	return nil
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

// lineLogger forwards complete lines to zap at debug level.
type lineLogger struct {
	log    *zap.SugaredLogger
	stream string
	buf    bytes.Buffer
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// incomplete line stays buffered
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			l.log.Debugw(line, "stream", l.stream)
		}
	}
	return len(p), nil
}

// tailWriter keeps the last max bytes written.
type tailWriter struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailWriter) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
