// Package desktop opens folders and launches scripts with the platform's
// native tools. The backup core never imports it.
package desktop

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Opener is the platform capability used by the CLI.
type Opener interface {
	// OpenPath reveals path in the system file manager.
	OpenPath(path string) error
	// Launch runs path in a new window.
	Launch(path string) error
}

// Native runs the platform commands.
type Native struct {
	goos  string
	start func(name string, args ...string) error
}

func New() *Native {
	return &Native{goos: runtime.GOOS, start: startDetached}
}

func (n *Native) OpenPath(path string) error {
	abs, err := existing(path)
	if err != nil {
		return err
	}
	switch n.goos {
	case "windows":
		return n.start("explorer", "/select,"+abs)
	case "darwin":
		return n.start("open", "-R", abs)
	default:
		// xdg-open cannot select a file, open its folder instead
		return n.start("xdg-open", filepath.Dir(abs))
	}
}

func (n *Native) Launch(path string) error {
	abs, err := existing(path)
	if err != nil {
		return err
	}
	switch n.goos {
	case "windows":
		return n.start("cmd", "/c", "start", "", abs)
	case "darwin":
		return n.start("open", abs)
	default:
		if err := n.start("x-terminal-emulator", "-e", abs); err == nil {
			return nil
		}
		return n.start("xdg-open", abs)
	}
}

func existing(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("file does not exist: %w", err)
	}
	return abs, nil
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", name, err)
	}
	return cmd.Process.Release()
}
