package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenMissingFile(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "absent.conf"))
	if got := s.Get(KeyLastVersion, "fallback"); got != "fallback" {
		t.Errorf("Get() on empty store = %q, want fallback", got)
	}
}

func TestLoadSkipsCommentsAndBlanks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.conf")
	content := strings.Join([]string{
		"# RetroArch Core Updater Settings",
		"",
		"last_version=1.19.1",
		"  last_path =  /home/deck/cores  ",
		"# last_version=9.9.9",
		"malformed line without equals",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	s := Open(path)
	if got := s.Get("last_version", ""); got != "1.19.1" {
		t.Errorf("last_version = %q, want 1.19.1", got)
	}
	if got := s.Get("last_path", ""); got != "/home/deck/cores" {
		t.Errorf("last_path = %q, want trimmed path", got)
	}
}

func TestSetRewritesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "settings.conf")
	s := Open(path)

	if err := s.Set(KeyLastVersion, "1.19.1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(KeyLastPath, "/home/deck/cores"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read settings file: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "#") {
		t.Error("settings file missing comment header")
	}
	if !strings.Contains(text, "last_version=1.19.1\n") {
		t.Errorf("settings file missing last_version: %q", text)
	}
	if !strings.Contains(text, "last_path=/home/deck/cores\n") {
		t.Errorf("settings file missing last_path: %q", text)
	}

	// A fresh open sees the persisted values.
	reloaded := Open(path)
	if got := reloaded.Get(KeyLastVersion, ""); got != "1.19.1" {
		t.Errorf("reloaded last_version = %q", got)
	}
}

func TestBoolAccessors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.conf")
	s := Open(path)

	if err := s.SetBool("require_backup", true); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if !s.GetBool("require_backup", false) {
		t.Error("GetBool() = false after SetBool(true)")
	}

	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"yes", true},
		{"on", true},
		{"TRUE", true},
		{"false", false},
		{"0", false},
		{"whatever", false},
	}
	for _, tt := range tests {
		if err := s.Set("flag", tt.value); err != nil {
			t.Fatal(err)
		}
		if got := s.GetBool("flag", false); got != tt.want {
			t.Errorf("GetBool(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}

	if !s.GetBool("unset_key", true) {
		t.Error("GetBool() ignored fallback for unset key")
	}
}
