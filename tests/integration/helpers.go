package integration

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	coretest "github.com/deckforge/coreup/testing"
)

// TestEnv wires a seeded cores directory against a mock buildbot.
type TestEnv struct {
	Mock     *coretest.MockBuildbot
	Target   string
	Original map[string]string
}

// SetupTestEnv creates a cores directory with pre-update contents and a
// mock buildbot publishing version 1.19.1 with a descriptor bundle and a
// zip core pack.
func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	env := &TestEnv{
		Mock:   coretest.NewMockBuildbot(t),
		Target: filepath.Join(t.TempDir(), "cores"),
		Original: map[string]string{
			"old_snes9x_libretro.so": "previous snes core",
			"old_snes9x.info":        "previous descriptor",
			"sub/old_data.dat":       "previous data",
		},
	}
	coretest.WriteTree(t, env.Target, env.Original)

	env.Mock.SetVersions("1.19.1", "1.18.0")
	env.Mock.SetBundle(coretest.MakeBundleZip(t, "libretro-core-info-master", map[string]string{
		"snes9x_libretro.info": "display_name = \"SNES\"\n",
		"mgba_libretro.info":   "display_name = \"GBA\"\n",
	}))
	env.Mock.SetArchive("1.19.1", coretest.MakeZip(t, map[string]string{
		"snes9x_libretro.so": "new snes core",
		"mgba_libretro.so":   "new gba core",
		"configure":          "installer script",
		"retroarch":          "launcher leftover",
	}))

	return env
}

// ArchiveURL is the core pack endpoint for a published version.
func (env *TestEnv) ArchiveURL(version string) string {
	return env.Mock.URL + "/stable/" + version + "/linux/x86_64/RetroArch_cores.7z"
}

// SlowArchiveServer streams an endless sized payload in small flushed
// chunks so a test can cancel mid-download. The handler exits when the
// client goes away or the server shuts down.
func SlowArchiveServer(t *testing.T, totalSize int) *httptest.Server {
	t.Helper()

	chunk := []byte(strings.Repeat("x", 16*1024))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(totalSize))
		flusher, _ := w.(http.Flusher)
		written := 0
		for written < totalSize {
			n := len(chunk)
			if totalSize-written < n {
				n = totalSize - written
			}
			if _, err := w.Write(chunk[:n]); err != nil {
				return
			}
			written += n
			if flusher != nil {
				flusher.Flush()
			}
			select {
			case <-r.Context().Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}
