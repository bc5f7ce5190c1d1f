package updater

import (
	"context"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/deckforge/coreup/internal/backup"
	"github.com/deckforge/coreup/internal/coreinfo"
	"github.com/deckforge/coreup/internal/download"
	"github.com/deckforge/coreup/internal/extract"
)

// Progress milestones for the fixed step sequence. The archive download
// maps its byte progress into the span between progressMetadata and
// progressDownloaded.
const (
	progressBackup     = 10
	progressCleaned    = 20
	progressMetadata   = 40
	progressDownloaded = 70
	progressExtracted  = 90
	progressDone       = 100
)

// artifactDenylist names extraneous top-level entries the archive leaves in
// the cores directory: installer scripts, a duplicate core directory, and
// AppImage launcher leftovers.
var artifactDenylist = []string{
	"configure",
	"cores",
	"retroarch",
	"RetroArch-Linux-x86_64",
	"RetroArch-Linux-x86_64.AppImage.home",
}

// run drives the update state machine. Cancellation is observed at every
// step boundary and between downloaded chunks; it rolls back and returns
// without a finished event. Every failure path rolls back, emits exactly
// one error event and a finished(false) event, then stops.
func (s *Session) run(ctx context.Context) {
	logger := log.WithFields(log.Fields{
		"session": s.id,
		"target":  s.opts.TargetDir,
		"version": s.opts.Version,
	})
	logger.Info("starting core update")

	s.emit(statusEvent("preparing"))
	if s.cancelled(ctx) {
		s.rollback(nil, logger)
		return
	}

	// Backup. A missing target is fine; a failed copy is fatal only when
	// the caller asked for fail-closed behavior.
	s.emit(statusEvent("backing up existing cores"))
	snap, err := backup.Take(s.opts.TargetDir, s.opts.Version)
	if err != nil {
		if s.opts.RequireBackup {
			logger.WithError(err).Error("backup failed")
			s.emit(errorEvent(ErrBackupFailed.Error()))
			s.emit(finishedEvent(false))
			return
		}
		logger.WithError(err).Warn("could not back up existing cores, continuing without a safety net")
		snap = nil
	}
	s.emitProgress(progressBackup)

	if s.cancelled(ctx) {
		s.rollback(snap, logger)
		return
	}

	// Clean. Without a writable empty target nothing below can proceed.
	s.emit(statusEvent("cleaning cores directory"))
	if err := cleanTarget(s.opts.TargetDir); err != nil {
		logger.WithError(err).Error("clean failed")
		s.rollback(snap, logger)
		s.emit(errorEvent("failed to clean cores directory"))
		s.emit(finishedEvent(false))
		return
	}
	s.emitProgress(progressCleaned)

	if s.cancelled(ctx) {
		s.rollback(snap, logger)
		return
	}

	// Fetch descriptor bundle.
	s.emit(statusEvent("downloading core information"))
	fetcher := &coreinfo.Fetcher{BundleURL: s.opts.BundleURL}
	if err := fetcher.Populate(ctx, s.opts.TargetDir); err != nil {
		if s.cancelled(ctx) {
			s.rollback(snap, logger)
			return
		}
		logger.WithError(err).Error("descriptor download failed")
		s.rollback(snap, logger)
		s.emit(errorEvent("failed to download core information"))
		s.emit(finishedEvent(false))
		return
	}
	s.emitProgress(progressMetadata)

	if s.cancelled(ctx) {
		s.rollback(snap, logger)
		return
	}

	// Fetch the cores archive. Byte progress maps into 40-70; when the
	// server declares no length the callback never fires and progress
	// holds at 40 until the step completes.
	s.emit(statusEvent("downloading cores archive"))
	archivePath, err := download.ToTempWithProgress(ctx, s.opts.ArchiveURL, "cores-", func(bytesComplete, totalBytes int64, _ int) {
		span := int64(progressDownloaded - progressMetadata)
		s.emitProgress(progressMetadata + int(bytesComplete*span/totalBytes))
	})
	if err != nil {
		if s.cancelled(ctx) {
			s.rollback(snap, logger)
			return
		}
		logger.WithError(err).Error("archive download failed")
		s.rollback(snap, logger)
		s.emit(errorEvent("failed to download cores archive"))
		s.emit(finishedEvent(false))
		return
	}
	defer func() {
		if err := os.Remove(archivePath); err != nil {
			logger.WithError(err).Debug("could not remove downloaded archive")
		}
	}()
	s.emitProgress(progressDownloaded)

	if s.cancelled(ctx) {
		s.rollback(snap, logger)
		return
	}

	// Extract.
	s.emit(statusEvent("extracting cores"))
	if err := extract.Archive(ctx, archivePath, s.opts.TargetDir); err != nil {
		logger.WithError(err).Error("extraction failed")
		s.rollback(snap, logger)
		s.emit(errorEvent("failed to extract cores"))
		s.emit(finishedEvent(false))
		return
	}
	s.emitProgress(progressExtracted)

	if s.cancelled(ctx) {
		s.rollback(snap, logger)
		return
	}

	// Cleanup extraction artifacts. Best effort; failures never fail the
	// update.
	s.emit(statusEvent("finalizing installation"))
	s.removeArtifacts(logger)

	if s.cancelled(ctx) {
		s.rollback(snap, logger)
		return
	}

	// Finalize. The success path never restores; the snapshot is deleted.
	if err := backup.Discard(snap); err != nil {
		logger.WithError(err).Warn("could not remove backup")
	}
	s.emitProgress(progressDone)
	s.emit(statusEvent("completed"))
	s.emit(finishedEvent(true))
	logger.Info("core update completed")
}

func (s *Session) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}

// rollback restores the pre-update tree when a snapshot exists. When none
// does, the target's prior absence is preserved by leaving it as-is.
// Failures are logged, never raised; cancellation must not turn into an
// error event.
func (s *Session) rollback(snap *backup.Snapshot, logger *log.Entry) {
	if snap == nil {
		logger.Debug("no snapshot to restore")
		return
	}
	logger.Info("restoring previous cores")
	if err := backup.Restore(snap); err != nil {
		logger.WithError(err).Error("rollback failed")
	}
}

// cleanTarget removes the target's contents and recreates it empty.
func cleanTarget(target string) error {
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	return os.MkdirAll(target, 0o755)
}

func (s *Session) removeArtifacts(logger *log.Entry) {
	for _, name := range artifactDenylist {
		p := filepath.Join(s.opts.TargetDir, name)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			logger.WithError(err).Warnf("could not remove extraction artifact %s", name)
		}
	}
}
