package testing

import (
	"archive/zip"
	"bytes"
	"path"
	"testing"
)

// MakeZip builds an in-memory zip archive from a map of entry name to
// content. Entry names use forward slashes.
func MakeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to create zip entry %s: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write zip entry %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to finish zip: %v", err)
	}
	return buf.Bytes()
}

// MakeBundleZip builds a descriptor bundle archive: every file wrapped in
// the given top-level directory, the way a repository snapshot is laid out.
func MakeBundleZip(t *testing.T, wrapper string, files map[string]string) []byte {
	t.Helper()

	wrapped := make(map[string]string, len(files))
	for name, content := range files {
		wrapped[path.Join(wrapper, name)] = content
	}
	return MakeZip(t, wrapped)
}
