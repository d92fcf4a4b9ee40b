package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"go.uber.org/zap"
)

// LockFileName is the mutual-exclusion marker guarding a workspace's soul.
const LockFileName = "soul.lock"

// ProcessProbe answers "is this execution context still active". It is the
// only platform-dependent piece of the locking protocol; everything else
// stays neutral.
type ProcessProbe interface {
	Alive(pid int) bool
}

// osProcessProbe checks liveness by sending signal 0, which probes
// existence without affecting the process.
type osProcessProbe struct{}

func (osProcessProbe) Alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// WorkspaceLock serializes soul mutation for one workspace directory.
// Exactly one of any number of concurrent Acquire attempts succeeds; a
// lock whose holder has died is discarded automatically. Release on crash
// is optional since the liveness check at the next acquisition is the real
// safety net.
type WorkspaceLock struct {
	workspace string
	path      string
	probe     ProcessProbe
	logger    *zap.Logger
	held      bool
}

func NewWorkspaceLock(workspace string, logger *zap.Logger) *WorkspaceLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkspaceLock{
		workspace: workspace,
		path:      filepath.Join(workspace, LockFileName),
		probe:     osProcessProbe{},
		logger:    logger,
	}
}

// SetProbe overrides liveness detection, mainly for tests.
func (l *WorkspaceLock) SetProbe(p ProcessProbe) {
	l.probe = p
}

// Acquire atomically creates the lock record with this process's id.
// A live competing holder yields a LockHeldError; a dead one is cleaned up
// and acquisition proceeds.
func (l *WorkspaceLock) Acquire() error {
	if err := os.MkdirAll(l.workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace %s: %w", l.workspace, err)
	}

	// Two passes: the first may find a stale lock to discard, the second
	// races only against live contenders.
	for attempt := 0; attempt < 2; attempt++ {
		if err := l.tryCreate(); err == nil {
			l.held = true
			return nil
		} else if !os.IsExist(err) {
			return fmt.Errorf("create lock %s: %w", l.path, err)
		}

		holder, err := l.readHolder()
		if err != nil {
			// Unreadable lock record: treat as stale, same as a dead holder.
			l.logger.Warn("discarding malformed lock file",
				zap.String("path", l.path),
				zap.Error(err))
			_ = os.Remove(l.path)
			continue
		}

		if l.probe.Alive(holder.PID) {
			return &LockHeldError{
				Workspace:  l.workspace,
				HolderPID:  holder.PID,
				AcquiredAt: holder.AcquiredAt,
			}
		}

		l.logger.Info("discarding stale lock from dead process",
			zap.String("workspace", l.workspace),
			zap.Int("pid", holder.PID))
		_ = os.Remove(l.path)
	}

	// Both create attempts lost the race to someone else.
	if holder, err := l.readHolder(); err == nil {
		return &LockHeldError{
			Workspace:  l.workspace,
			HolderPID:  holder.PID,
			AcquiredAt: holder.AcquiredAt,
		}
	}
	return &LockHeldError{Workspace: l.workspace}
}

// Release removes the lock record. Safe to call when the lock is not held.
func (l *WorkspaceLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}

// tryCreate publishes a fully written lock record atomically: the record
// is staged in a private temp file and linked into place, so no observer
// ever sees a half-written lock. Link fails with EEXIST when someone else
// holds the name.
func (l *WorkspaceLock) tryCreate() error {
	record := domain.Lock{
		PID:        os.Getpid(),
		AcquiredAt: time.Now(),
	}
	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("marshal lock record: %w", err)
	}

	tmp, err := os.CreateTemp(l.workspace, LockFileName+".*")
	if err != nil {
		return fmt.Errorf("stage lock record: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write lock record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close lock record: %w", err)
	}

	return os.Link(tmpPath, l.path)
}

func (l *WorkspaceLock) readHolder() (*domain.Lock, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var record domain.Lock
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	if record.PID <= 0 {
		return nil, fmt.Errorf("lock record has no pid")
	}
	return &record, nil
}
