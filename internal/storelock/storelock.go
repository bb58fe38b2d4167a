// Package storelock implements the exclusive-process-lock-with-fallback
// of §4.2/§5: "the core opens its persistent store lazily on first write
// and holds an exclusive process lock; a second instance on the same
// workspace falls back to an in-memory store for the duration (read-only
// to callers)."
//
// Adapted from the teacher's internal/control.Controller, which
// mmaps a fixed control block to coordinate hot-swapping arenas between
// cooperating processes. That coordination problem doesn't apply here —
// this package only needs a single boolean ("did we get exclusive
// access"), not a shared mutable block — so the mmap machinery is
// replaced with a plain advisory file lock (unix.Flock) on a sentinel
// file, using the same golang.org/x/sys/unix dependency the teacher
// reached for.
//
// Acquire only reports whether the lock was taken. The in-memory store that
// cmd wires when it was not accepts mutations like any other Coordinator;
// nothing makes it read-only.
package storelock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Lock holds an advisory exclusive lock on one workspace's store
// directory, or reports that another process already holds it.
type Lock struct {
	file   *os.File
	Locked bool // false means this process degraded to in-memory-only
}

// Acquire tries to take the exclusive lock for storeDir, per §4.2's "opens
// lazily on first write and holds an exclusive process lock". storeDir is
// created if missing. A failure to acquire (another process holds it) is
// not an error: Acquire returns a Lock with Locked=false so the caller can
// degrade to the in-memory fallback rather than failing outright.
func Acquire(storeDir string) (*Lock, error) {
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("storelock: mkdir %s: %w", storeDir, err)
	}

	path := filepath.Join(storeDir, ".lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storelock: open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return &Lock{Locked: false}, nil
		}
		return nil, fmt.Errorf("storelock: flock %s: %w", path, err)
	}

	return &Lock{file: f, Locked: true}, nil
}

// Release drops the lock, if held. Safe to call on a degraded
// (Locked=false) Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("storelock: unlock: %w", err)
	}
	return l.file.Close()
}
