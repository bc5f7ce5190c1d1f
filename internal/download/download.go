package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cavaliergopher/grab/v3"
)

var client = grab.NewClient()

// ProgressCallback is called during download with progress info. It is never
// invoked when the server does not declare a content length, so callers must
// not rely on it for completion signaling.
type ProgressCallback func(bytesComplete, totalBytes int64, percentage int)

// File downloads a file from url to the target path. Cancelling the context
// aborts the transfer between chunks; the partial file is left for the
// caller to discard.
func File(ctx context.Context, url, targetPath string) error {
	return FileWithProgress(ctx, url, targetPath, nil)
}

// FileWithProgress downloads a file with a progress callback.
func FileWithProgress(ctx context.Context, url, targetPath string, callback ProgressCallback) error {
	req, err := grab.NewRequest(targetPath, url)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.NoResume = true // Always overwrite, never resume
	req = req.WithContext(ctx)

	resp := client.Do(req)

	// Progress loop
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	lastPercentage := -1
	for {
		select {
		case <-ticker.C:
			if callback != nil && resp.Size() > 0 {
				percentage := int(resp.Progress() * 100)
				if percentage != lastPercentage {
					callback(resp.BytesComplete(), resp.Size(), percentage)
					lastPercentage = percentage
				}
			}
		case <-resp.Done:
			if err := resp.Err(); err != nil {
				return fmt.Errorf("download failed: %w", err)
			}
			if callback != nil && resp.Size() > 0 {
				callback(resp.BytesComplete(), resp.Size(), 100)
			}
			return nil
		}
	}
}

// ToTemp downloads a file to a temporary location and returns the path.
func ToTemp(ctx context.Context, url, prefix string) (string, error) {
	return ToTempWithProgress(ctx, url, prefix, nil)
}

// ToTempWithProgress downloads with progress to a temp file.
func ToTempWithProgress(ctx context.Context, url, prefix string, callback ProgressCallback) (string, error) {
	tempFile, err := os.CreateTemp("", prefix+"*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := FileWithProgress(ctx, url, tempPath, callback); err != nil {
		_ = os.Remove(tempPath) // Best effort cleanup
		return "", err
	}

	return tempPath, nil
}

// ValidatePath ensures a path doesn't escape the base directory (path traversal protection)
func ValidatePath(basePath, targetPath string) (string, error) {
	absBase, err := filepath.Abs(basePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve target path: %w", err)
	}

	if absTarget != absBase && !strings.HasPrefix(absTarget, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt detected")
	}

	return absTarget, nil
}
