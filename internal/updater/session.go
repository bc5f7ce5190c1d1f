// Package updater sequences a core pack update: snapshot, clean, descriptor
// download, archive download, extraction, cleanup. The whole sequence runs
// on one worker goroutine per session and reports through an event channel;
// on any failure or cancellation the target directory is rolled back to its
// pre-update contents.
package updater

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrUpdateInProgress is returned when a session is started against a target
// directory that another session currently owns.
var ErrUpdateInProgress = errors.New("an update is already running for this target")

// ErrBackupFailed is returned on the fail-closed path when the pre-update
// snapshot could not be taken.
var ErrBackupFailed = errors.New("could not back up existing cores")

// Options configures one update session.
type Options struct {
	// Version is the release being installed, in string form. Used for the
	// snapshot path and logging.
	Version string
	// TargetDir is the cores directory to update. Must be an absolute or
	// relative path; it is cleaned before locking.
	TargetDir string
	// ArchiveURL is the core pack archive to download.
	ArchiveURL string
	// BundleURL overrides the descriptor bundle location; empty selects the
	// upstream default.
	BundleURL string
	// RequireBackup makes a failed snapshot fatal before any destructive
	// step runs. The default preserves the historical fail-open behavior:
	// log a warning and continue without a safety net.
	RequireBackup bool
}

// Session is the run-state of one update. Create with Start; drain Events
// until it closes.
type Session struct {
	id     string
	opts   Options
	events chan Event

	cancel context.CancelFunc
	done   chan struct{}

	lastProgress int
}

// targetLocks serializes sessions per cleaned target path. The lock is held
// for the whole life of the worker goroutine.
var (
	targetLocksMu sync.Mutex
	targetLocks   = make(map[string]bool)
)

func lockTarget(target string) bool {
	targetLocksMu.Lock()
	defer targetLocksMu.Unlock()
	if targetLocks[target] {
		return false
	}
	targetLocks[target] = true
	return true
}

func unlockTarget(target string) {
	targetLocksMu.Lock()
	defer targetLocksMu.Unlock()
	delete(targetLocks, target)
}

// Start begins an update and returns its session. The returned session owns
// the target directory until its event channel closes; a second Start
// against the same target is rejected with ErrUpdateInProgress.
func Start(ctx context.Context, opts Options) (*Session, error) {
	if opts.TargetDir == "" {
		return nil, errors.New("target directory is required")
	}
	if opts.ArchiveURL == "" {
		return nil, errors.New("archive URL is required")
	}

	target := filepath.Clean(opts.TargetDir)
	opts.TargetDir = target

	if !lockTarget(target) {
		return nil, fmt.Errorf("%w: %s", ErrUpdateInProgress, target)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:     uuid.NewString(),
		opts:   opts,
		events: make(chan Event, 64),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer unlockTarget(target)
		defer close(s.done)
		defer close(s.events)
		s.run(ctx)
	}()

	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Events returns the session's event stream. It is closed once the worker
// has reached a safe stopping point, including after rollback on cancel.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Cancel requests cooperative cancellation. The worker honors it at step
// boundaries and between downloaded chunks; wait for the event channel to
// close (or Wait) before assuming the target is free.
func (s *Session) Cancel() {
	log.WithField("session", s.id).Debug("cancellation requested")
	s.cancel()
}

// Wait blocks until the worker has finished, or until ctx expires.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) emit(e Event) {
	s.events <- e
}

// emitProgress keeps the reported percentage monotonically non-decreasing.
func (s *Session) emitProgress(p int) {
	if p <= s.lastProgress {
		return
	}
	s.lastProgress = p
	s.emit(progressEvent(p))
}
