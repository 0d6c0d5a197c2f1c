package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/costime/pkg/costime"
)

// DefaultWaitDelay bounds how long output is still read after the command
// exits while a background process keeps its stdout or stderr open.
const DefaultWaitDelay = time.Second

// Options controls how a command is timed
type Options struct {
	// Label names the start/end pair around the whole command
	Label string
	// Steps are substrings; each is marked with MainStep the first time a
	// line of output contains it.
	Steps []string

	Stdout io.Writer
	Stderr io.Writer

	// WaitDelay overrides DefaultWaitDelay when positive
	WaitDelay time.Duration
}

// Result describes a finished command
type Result struct {
	Session   costime.Session
	ExitCode  int
	StepsSeen []string
}

// Run executes command under a Start/End pair. The step cursor is reset at
// launch. A non-zero exit is reported in Result, not as an error; a command
// killed by a signal reports 128+signo. The run ends when the command itself
// exits, even if a process it spawned still holds its output open.
func Run(ctx context.Context, sw *costime.Stopwatch, opts Options, command string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.WaitDelay = opts.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	result := &Result{}
	result.Session = sw.Start(opts.Label)
	sw.MainStepStart()

	if err := cmd.Start(); err != nil {
		stdoutW.Close()
		stderrW.Close()
		sw.End(opts.Label, result.Session)
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}

	m := newMatcher(sw, opts.Steps)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.scan(stdoutR, writerOrDiscard(opts.Stdout))
	}()
	go func() {
		defer wg.Done()
		m.scan(stderrR, writerOrDiscard(opts.Stderr))
	}()

	// Wait returns once the command has exited and either its output is
	// drained or WaitDelay has passed.
	waitErr := cmd.Wait()
	stdoutW.Close()
	stderrW.Close()
	wg.Wait()

	sw.End(opts.Label, result.Session)
	result.StepsSeen = m.seenSteps()

	if cmd.ProcessState == nil {
		return result, fmt.Errorf("failed to wait for %s: %w", command, waitErr)
	}
	result.ExitCode = exitCode(cmd.ProcessState)
	return result, nil
}

// exitCode maps a finished process to a shell-style exit status
func exitCode(state *os.ProcessState) int {
	if code := state.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

type matcher struct {
	sw    *costime.Stopwatch
	steps []string

	mu   sync.Mutex
	seen []string
	done map[string]bool
}

func newMatcher(sw *costime.Stopwatch, steps []string) *matcher {
	return &matcher{sw: sw, steps: steps, done: make(map[string]bool, len(steps))}
}

func (m *matcher) scan(r io.Reader, w io.Writer) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(scanLinesOrCR)

	for scanner.Scan() {
		line := scanner.Text()
		fmt.Fprintln(w, line)
		m.match(line)
	}
	// drain so the child never blocks on a full pipe after a scan error
	io.Copy(io.Discard, r)
}

func (m *matcher) match(line string) {
	for _, step := range m.steps {
		if !strings.Contains(line, step) {
			continue
		}
		m.mu.Lock()
		if m.done[step] {
			m.mu.Unlock()
			continue
		}
		m.done[step] = true
		m.seen = append(m.seen, step)
		m.mu.Unlock()

		m.sw.MainStep(step)
	}
}

func (m *matcher) seenSteps() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

// scanLinesOrCR splits on \n or \r; ffmpeg rewrites its progress line with \r.
func scanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' {
			if i+1 == len(data) && !atEOF {
				return 0, nil, nil
			}
			if i+1 < len(data) && data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func writerOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
