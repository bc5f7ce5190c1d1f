package buildbot_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deckforge/coreup/internal/buildbot"
	coretest "github.com/deckforge/coreup/testing"
)

func TestAvailableVersions(t *testing.T) {
	mock := coretest.NewMockBuildbot(t)
	mock.SetVersions("1.9.0", "1.19.1", "1.10.0", "1.19.1")

	client := buildbot.NewClient(mock.BaseURL(), nil)
	versions := client.AvailableVersions()

	want := []string{"1.19.1", "1.10.0", "1.9.0"}
	if len(versions) != len(want) {
		t.Fatalf("AvailableVersions() returned %d versions, want %d: %v", len(versions), len(want), versions)
	}
	for i, w := range want {
		if versions[i].String() != w {
			t.Errorf("versions[%d] = %s, want %s", i, versions[i], w)
		}
	}
}

// TestAvailableVersionsFailSoft verifies that network and server errors are
// reported as "no versions", never as a failure.
func TestAvailableVersionsFailSoft(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := buildbot.NewClient(server.URL+"/stable/", nil)
		if versions := client.AvailableVersions(); len(versions) != 0 {
			t.Errorf("expected no versions on HTTP 500, got %v", versions)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		client := buildbot.NewClient(server.URL+"/stable/", nil)
		if versions := client.AvailableVersions(); len(versions) != 0 {
			t.Errorf("expected no versions when unreachable, got %v", versions)
		}
	})

	t.Run("no version links", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html><body>nothing here</body></html>"))
		}))
		defer server.Close()

		client := buildbot.NewClient(server.URL+"/stable/", nil)
		if versions := client.AvailableVersions(); len(versions) != 0 {
			t.Errorf("expected no versions on empty listing, got %v", versions)
		}
	})
}

func TestLatest(t *testing.T) {
	mock := coretest.NewMockBuildbot(t)
	mock.SetVersions("1.18.0", "1.19.1")

	client := buildbot.NewClient(mock.BaseURL(), nil)
	latest, ok := client.Latest()
	if !ok {
		t.Fatal("Latest() found no versions")
	}
	if latest.String() != "1.19.1" {
		t.Errorf("Latest() = %s, want 1.19.1", latest)
	}
}

func TestDownloadURL(t *testing.T) {
	client := buildbot.NewClient("https://buildbot.libretro.com/stable/", nil)
	got := client.DownloadURL(buildbot.ParseVersion("1.19.1"))
	want := "https://buildbot.libretro.com/stable/1.19.1/linux/x86_64/RetroArch_cores.7z"
	if got != want {
		t.Errorf("DownloadURL() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	mock := coretest.NewMockBuildbot(t)
	mock.SetVersions("1.19.1")
	mock.SetArchive("1.19.1", []byte("payload"))

	client := buildbot.NewClient(mock.BaseURL(), nil)

	if !client.Validate(buildbot.ParseVersion("1.19.1")) {
		t.Error("Validate() = false for a published version")
	}
	if client.Validate(buildbot.ParseVersion("9.9.9")) {
		t.Error("Validate() = true for a missing version")
	}

	// Validation must be a metadata-only probe, never a body transfer.
	reqs := mock.Requests("/stable/1.19.1/linux/x86_64/RetroArch_cores.7z")
	if len(reqs) == 0 {
		t.Fatal("Validate() issued no request against the archive URL")
	}
	for _, req := range reqs {
		if req.Method != http.MethodHead {
			t.Errorf("Validate() issued a %s request, want %s", req.Method, http.MethodHead)
		}
	}
}

func TestInfo(t *testing.T) {
	mock := coretest.NewMockBuildbot(t)
	payload := strings.Repeat("x", 1234)
	mock.SetArchive("1.19.1", []byte(payload))

	client := buildbot.NewClient(mock.BaseURL(), nil)
	info := client.Info(buildbot.ParseVersion("1.19.1"))

	if !info.Available {
		t.Fatal("Info() reports unavailable for a published version")
	}
	if info.Size != int64(len(payload)) {
		t.Errorf("Info() size = %d, want %d", info.Size, len(payload))
	}
	if !strings.HasSuffix(info.URL, "/stable/1.19.1/linux/x86_64/RetroArch_cores.7z") {
		t.Errorf("Info() URL = %q", info.URL)
	}
}
