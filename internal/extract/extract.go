// Package extract unpacks a downloaded core pack archive into the cores
// directory. The buildbot publishes 7z archives; extraction prefers the
// system 7z binary, falls back to a native decoder, and handles plain zip
// archives directly. A format the fallback cannot handle is an explicit
// error, never a silent no-op.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/bodgit/sevenzip"
	log "github.com/sirupsen/logrus"

	"github.com/deckforge/coreup/internal/download"
)

// subprocessTimeout bounds the external 7z invocation.
const subprocessTimeout = 120 * time.Second

// ErrUnknownFormat reports an archive that is neither 7z nor zip.
var ErrUnknownFormat = errors.New("archive is neither 7z nor zip")

// Format identifies an archive container format.
type Format int

const (
	FormatUnknown Format = iota
	Format7z
	FormatZip
)

var (
	magic7z  = []byte{0x37, 0x7a, 0xbc, 0xaf, 0x27, 0x1c}
	magicZip = []byte{0x50, 0x4b}
)

// DetectFormat sniffs the archive's magic bytes.
func DetectFormat(archivePath string) (Format, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return FormatUnknown, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(magic7z))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("failed to read archive header: %w", err)
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, magic7z):
		return Format7z, nil
	case bytes.HasPrefix(header, magicZip):
		return FormatZip, nil
	default:
		return FormatUnknown, nil
	}
}

// Archive unpacks archivePath into targetDir, dispatching on the detected
// format.
func Archive(ctx context.Context, archivePath, targetDir string) error {
	format, err := DetectFormat(archivePath)
	if err != nil {
		return err
	}

	switch format {
	case Format7z:
		return extract7z(ctx, archivePath, targetDir)
	case FormatZip:
		return extractZip(archivePath, targetDir)
	default:
		return ErrUnknownFormat
	}
}

// extract7z prefers the system 7z binary and falls back to the native
// decoder when the binary is missing or fails.
func extract7z(ctx context.Context, archivePath, targetDir string) error {
	if bin, err := exec.LookPath("7z"); err == nil {
		execErr := extract7zExec(ctx, bin, archivePath, targetDir)
		if execErr == nil {
			return nil
		}
		log.WithError(execErr).Debug("7z subprocess failed, trying native decoder")
	}
	return extract7zNative(archivePath, targetDir)
}

// extract7zExec shells out to 7z. The "e" mode flattens entries into the
// target directory, matching how the core pack is expected to land.
func extract7zExec(ctx context.Context, bin, archivePath, targetDir string) error {
	ctx, cancel := context.WithTimeout(ctx, subprocessTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, "e", archivePath, "-o"+targetDir, "-y")
	cmd.Dir = targetDir
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("7z failed: %w: %s", err, bytes.TrimSpace(output))
	}
	return nil
}

func extract7zNative(archivePath, targetDir string) error {
	reader, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open 7z archive: %w", err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := writeArchiveFile(entry.Name, targetDir, func() (io.ReadCloser, error) {
			return entry.Open()
		}); err != nil {
			return err
		}
	}
	return nil
}

func extractZip(archivePath, targetDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if err := writeArchiveFile(entry.Name, targetDir, func() (io.ReadCloser, error) {
			return entry.Open()
		}); err != nil {
			return err
		}
	}
	return nil
}

// writeArchiveFile writes one archive entry under targetDir, recreating its
// relative path and rejecting entries that escape the target.
func writeArchiveFile(name, targetDir string, open func() (io.ReadCloser, error)) error {
	destPath, err := download.ValidatePath(targetDir, filepath.Join(targetDir, filepath.FromSlash(name)))
	if err != nil {
		return fmt.Errorf("unsafe path %q in archive: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	src, err := open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return dst.Close()
}
