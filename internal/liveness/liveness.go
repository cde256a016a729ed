// Package liveness decides whether a registered script is currently running.
//
// Detection is inherently racy: a process can start or exit between the
// check and the capture that follows it. Callers accept that window.
package liveness

import (
	"context"

	"github.com/RUTUPARNk/script-db/internal/registry"
)

// Checker reports whether a process for entry is active. An unknown answer is
// reported as false.
type Checker interface {
	IsRunning(ctx context.Context, entry registry.ScriptEntry) bool
}

// Func adapts a plain function to Checker.
type Func func(ctx context.Context, entry registry.ScriptEntry) bool

func (f Func) IsRunning(ctx context.Context, entry registry.ScriptEntry) bool {
	return f(ctx, entry)
}

// Never reports every script as idle.
var Never = Func(func(context.Context, registry.ScriptEntry) bool { return false })
