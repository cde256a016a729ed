package liveness

import (
	"path/filepath"
	"strings"
)

// Process is the subset of a process table row used for matching.
type Process struct {
	PID        int
	PPID       int
	Executable string
	CmdLine    []string
}

// target is a script path prepared for matching.
type target struct {
	abs  string
	base string
}

func newTarget(path string) target {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return target{abs: abs, base: filepath.Base(abs)}
}

// matches applies three heuristics in order: an argument that resolves to
// the script path, an executable with the script's base name, and an
// argument containing the base name ("python foo.py", "bash ./foo.sh").
func (t target) matches(p Process) bool {
	for _, arg := range p.CmdLine {
		if arg == "" {
			continue
		}
		if filepath.IsAbs(arg) && filepath.Clean(arg) == t.abs {
			return true
		}
	}

	if p.Executable != "" && strings.EqualFold(filepath.Base(p.Executable), t.base) {
		return true
	}

	for _, arg := range p.CmdLine {
		if strings.Contains(arg, t.base) {
			return true
		}
	}
	return false
}
