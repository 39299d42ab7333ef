// Package installer runs the external package manager for an extracted
// project directory.
package installer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// pipeWaitDelay bounds how long Wait keeps the output pipes open after the
// install process dies. Package managers spawn child processes that inherit
// the pipes; without this, a kill would reap npm itself but Install would
// block until every descendant exits.
const pipeWaitDelay = 3 * time.Second

// LogSink receives one line of subprocess output at a time, as it arrives,
// so progress is observable before the process terminates.
type LogSink func(line string)

// InstallError reports a package manager process that exited non-zero.
type InstallError struct {
	ExitCode int
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install failed with exit code %d", e.ExitCode)
}

// Runner invokes the package manager's install command.
type Runner struct {
	command string
	args    []string
}

// New creates a Runner for the given install invocation, e.g. "npm" with
// args ["install"].
func New(command string, args ...string) *Runner {
	return &Runner{command: command, args: args}
}

// Install runs the install command with projectDir as working directory.
// Stdout and stderr are forwarded line by line to sink while the process
// runs. A nil sink discards output. Cancelling ctx kills the subprocess.
func (r *Runner) Install(ctx context.Context, projectDir string, sink LogSink) error {
	if sink == nil {
		sink = func(string) {}
	}

	cmd := exec.CommandContext(ctx, r.command, r.args...)
	cmd.Dir = projectDir
	cmd.WaitDelay = pipeWaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.command, err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	forward := func(rd io.Reader) {
		defer wg.Done()
		sc := bufio.NewScanner(rd)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			mu.Lock()
			sink(sc.Text())
			mu.Unlock()
		}
	}
	wg.Add(2)
	go forward(stdout)
	go forward(stderr)

	// Wait on the process first: once it is gone, WaitDelay closes the
	// pipes and unblocks the scanners even if orphaned children still
	// hold the write ends.
	err = cmd.Wait()
	wg.Wait()
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("install aborted: %w", ctx.Err())
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return &InstallError{ExitCode: exitErr.ExitCode()}
	}
	return fmt.Errorf("exec error: %w", err)
}
