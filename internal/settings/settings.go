// Package settings persists tool state as a flat key=value file. The whole
// file is read at open and rewritten on every change.
package settings

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Well-known keys.
const (
	KeyLastVersion = "last_version"
	KeyLastPath    = "last_path"
)

// Store holds the settings loaded from one file.
type Store struct {
	path   string
	values map[string]string
}

// DefaultPath returns the per-user settings file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "coreup", "settings.conf"), nil
}

// Open loads the settings file at path. A missing or unreadable file yields
// an empty store; settings are never fatal.
func Open(path string) *Store {
	s := &Store{path: path, values: make(map[string]string)}

	f, err := os.Open(path)
	if err != nil {
		return s
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		s.values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return s
}

// Get returns the value for key, or fallback when unset.
func (s *Store) Get(key, fallback string) string {
	if v, ok := s.values[key]; ok {
		return v
	}
	return fallback
}

// Set stores a value and rewrites the whole file.
func (s *Store) Set(key, value string) error {
	s.values[key] = value
	return s.save()
}

// GetBool returns the boolean value for key, or fallback when unset.
func (s *Store) GetBool(key string, fallback bool) bool {
	v, ok := s.values[key]
	if !ok {
		return fallback
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// SetBool stores a boolean value.
func (s *Store) SetBool(key string, value bool) error {
	if value {
		return s.Set(key, "true")
	}
	return s.Set(key, "false")
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("# coreup settings\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, s.values[k])
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}
