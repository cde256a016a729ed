package liveness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/procfs"

	"github.com/RUTUPARNk/script-db/internal/logging"
	"github.com/RUTUPARNk/script-db/internal/registry"
)

var errEnumerationTimeout = errors.New("process enumeration timed out")

// ProcChecker enumerates /proc through procfs. Each enumeration is bounded
// by Timeout; a failed or timed-out enumeration counts as "not running".
type ProcChecker struct {
	Timeout time.Duration
	log     logging.Logger
	list    func() ([]Process, error)
	self    int
}

// NewProcChecker reads the process table from the default procfs mount.
func NewProcChecker(timeout time.Duration, log logging.Logger) *ProcChecker {
	return &ProcChecker{
		Timeout: timeout,
		log:     log,
		list:    listProcs,
		self:    os.Getpid(),
	}
}

func (c *ProcChecker) IsRunning(ctx context.Context, entry registry.ScriptEntry) bool {
	procs, err := c.enumerate(ctx)
	if err != nil {
		c.log.Warn("process list unavailable, treating script as idle", "script", entry.Name, "error", err)
		return false
	}

	skip := lineage(procs, c.self)
	t := newTarget(entry.Path)
	for _, p := range procs {
		if _, ok := skip[p.PID]; ok {
			continue
		}
		if t.matches(p) {
			c.log.Debug("script is running", "script", entry.Name, "pid", p.PID)
			return true
		}
	}
	return false
}

// lineage returns self and every ancestor of self found in procs. A
// wrapper such as `sh -c "script-db add foo ./foo.sh"` carries the script
// path in its arguments without running the script.
func lineage(procs []Process, self int) map[int]struct{} {
	parent := make(map[int]int, len(procs))
	for _, p := range procs {
		parent[p.PID] = p.PPID
	}

	out := map[int]struct{}{}
	for pid := self; pid > 0; {
		if _, seen := out[pid]; seen {
			break
		}
		out[pid] = struct{}{}
		next, ok := parent[pid]
		if !ok {
			break
		}
		pid = next
	}
	return out
}

// enumerate runs the listing in its own goroutine so a stuck /proc read
// cannot stall the caller past the deadline.
func (c *ProcChecker) enumerate(ctx context.Context) ([]Process, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	type result struct {
		procs []Process
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		procs, err := c.list()
		ch <- result{procs, err}
	}()

	select {
	case r := <-ch:
		return r.procs, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errEnumerationTimeout
		}
		return nil, ctx.Err()
	}
}

// listProcs reads every process it can. Processes that vanish or deny
// access are skipped.
func listProcs() ([]Process, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, fmt.Errorf("opening procfs: %w", err)
	}
	all, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	out := make([]Process, 0, len(all))
	for _, p := range all {
		cmdline, err := p.CmdLine()
		if err != nil {
			continue
		}
		exe, err := p.Executable()
		if err != nil {
			// kernel threads and foreign users' processes hide their exe
			exe = ""
		}
		ppid := 0
		if st, err := p.Stat(); err == nil {
			ppid = st.PPID
		}
		out = append(out, Process{PID: p.PID, PPID: ppid, Executable: exe, CmdLine: cmdline})
	}
	return out, nil
}
