// Package preview launches the local dev server for an acquired project
// and keeps at most one preview running at a time.
package preview

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ErrRunFailed indicates the preview process could not be started.
var ErrRunFailed = errors.New("run failed")

// LogSink receives one line of subprocess output at a time.
type LogSink func(line string)

// Manager owns the single active preview process. Starting a new
// preview stops the previous one first.
type Manager struct {
	command string
	args    []string
	port    int
	sink    LogSink

	mu       sync.Mutex
	active   *exec.Cmd
	activeID string
	done     chan struct{}
}

// NewManager creates a Manager that runs command with args in the
// project directory, serving on the given port. sink may be nil.
func NewManager(command string, args []string, port int, sink LogSink) *Manager {
	return &Manager{
		command: command,
		args:    args,
		port:    port,
		sink:    sink,
	}
}

// URL returns the address the active preview serves on.
func (m *Manager) URL() string {
	return fmt.Sprintf("http://localhost:%d/", m.port)
}

// ActiveProject returns the id of the project currently being
// previewed, or empty if nothing is running.
func (m *Manager) ActiveProject() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Start launches the preview for projectID in dir, stopping any
// previous preview first. It returns the preview URL.
func (m *Manager) Start(projectID, dir string) (string, error) {
	m.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := exec.Command(m.command, m.args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), fmt.Sprintf("PORT=%d", m.port))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRunFailed, err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRunFailed, err)
	}

	m.active = cmd
	m.activeID = projectID
	done := make(chan struct{})
	m.done = done

	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if m.sink != nil {
				m.sink(scanner.Text())
			}
		}
		cmd.Wait()

		m.mu.Lock()
		if m.active == cmd {
			m.active = nil
			m.activeID = ""
			m.done = nil
		}
		m.mu.Unlock()
		close(done)
	}()

	return m.URL(), nil
}

// Stop terminates the active preview, if any. It is safe to call when
// nothing is running.
func (m *Manager) Stop() {
	m.mu.Lock()
	cmd := m.active
	done := m.done
	m.mu.Unlock()

	if cmd == nil {
		return
	}
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}
}
