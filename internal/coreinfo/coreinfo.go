// Package coreinfo fetches the libretro core descriptor bundle and lays it
// out under a cores directory.
package coreinfo

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/deckforge/coreup/internal/download"
)

// DefaultBundleURL is the snapshot archive of the upstream descriptor
// repository. A snapshot download avoids carrying git history onto the
// device.
const DefaultBundleURL = "https://github.com/libretro/libretro-core-info/archive/refs/heads/master.zip"

// Fetcher downloads the descriptor bundle and extracts it into a target
// directory.
type Fetcher struct {
	// BundleURL overrides the bundle location; empty selects the default.
	BundleURL string
}

// Populate downloads the bundle and extracts its files directly under
// targetDir, stripping the repository's top-level wrapper directory from
// every entry. Returns an error on any download, archive or filesystem
// failure.
func (f *Fetcher) Populate(ctx context.Context, targetDir string) error {
	url := f.BundleURL
	if url == "" {
		url = DefaultBundleURL
	}

	bundlePath, err := download.ToTemp(ctx, url, "core-info-")
	if err != nil {
		return fmt.Errorf("failed to download descriptor bundle: %w", err)
	}
	defer func() {
		if err := os.Remove(bundlePath); err != nil {
			log.WithError(err).Debug("could not remove descriptor bundle temp file")
		}
	}()

	if err := extractStripped(bundlePath, targetDir); err != nil {
		return fmt.Errorf("failed to extract descriptor bundle: %w", err)
	}
	return nil
}

// extractStripped unpacks a zip archive into targetDir, discarding exactly
// one leading path component from every entry name. Directory entries and
// entries with no remaining path are skipped.
func extractStripped(archivePath, targetDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open bundle archive: %w", err)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		relPath := stripFirstComponent(entry.Name)
		if relPath == "" {
			continue
		}

		destPath, err := download.ValidatePath(targetDir, filepath.Join(targetDir, filepath.FromSlash(relPath)))
		if err != nil {
			return fmt.Errorf("unsafe path %q in bundle: %w", entry.Name, err)
		}

		if err := writeEntry(entry, destPath); err != nil {
			return err
		}
	}

	return nil
}

// stripFirstComponent removes the leading path component from a slash
// separated archive entry name.
func stripFirstComponent(name string) string {
	name = path.Clean(name)
	idx := strings.Index(name, "/")
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}

func writeEntry(entry *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", entry.Name, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to open bundle entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return dst.Close()
}
