package server

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"
)

// ProcessName is the executable name of the daemon without extension.
const ProcessName = "sos-server"

// ErrAlreadyRunning is returned when another daemon owns the device.
var ErrAlreadyRunning = errors.New("another sos-server is already running")

// processLister returns the running processes, ps.Processes in production.
type processLister func() ([]ps.Process, error)

// ensureSingleInstance refuses to start when another sos-server process is
// alive, since two daemons would fight over the serial port.
func ensureSingleInstance(list processLister, selfPID int) error {
	processes, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processes {
		if process.Pid() == selfPID {
			continue
		}

		if executableName(process.Executable()) != ProcessName {
			continue
		}

		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, process.Pid())
	}

	return nil
}

// executableName strips the platform extension.
func executableName(executable string) string {
	if runtime.GOOS == "windows" {
		return strings.TrimSuffix(strings.ToLower(executable), ".exe")
	}

	return executable
}
