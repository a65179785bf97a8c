package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/pbaity/folio/internal/logger"
)

var errNotRunning = errors.New("watcher is not running")

// acquirePIDFile records the current process in path. A file naming a live
// process is an error; a stale one is replaced. The returned func removes the
// file and is safe to call more than once.
func acquirePIDFile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	log := logger.L()
	if pid, err := readPID(path); err == nil {
		if processAlive(pid) {
			return nil, fmt.Errorf("process with PID %d (from %s) is running; is folio already watching?", pid, path)
		}
		log.Warn("Removing stale PID file", "path", path, "pid", pid)
	}

	currentPid := os.Getpid()
	log.Info("Writing PID file", "path", path, "pid", currentPid)
	if err := os.WriteFile(path, []byte(strconv.Itoa(currentPid)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write PID file '%s': %w", path, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		log.Info("Removing PID file on exit", "path", path)
		_ = os.Remove(path)
	}, nil
}

// readPID parses the PID stored in path.
func readPID(path string) (int, error) {
	pidBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("PID file not found at '%s': %w", path, errNotRunning)
		}
		return 0, fmt.Errorf("error reading PID file '%s': %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		return 0, fmt.Errorf("error parsing PID from file '%s': %w", path, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("invalid PID %d found in file '%s'", pid, path)
	}
	return pid, nil
}

// processAlive reports whether a process with pid exists.
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

// signalWatcher sends sig to the process recorded in path.
func signalWatcher(path string, sig syscall.Signal) (int, error) {
	if path == "" {
		return 0, errors.New("PID file path not configured in application settings")
	}
	pid, err := readPID(path)
	if err != nil {
		return 0, err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("error finding process with PID %d: %w", pid, err)
	}
	if err := process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return pid, fmt.Errorf("process with PID %d already exited: %w", pid, errNotRunning)
		}
		return pid, fmt.Errorf("error sending %s to process %d: %w", sig, pid, err)
	}
	return pid, nil
}
