package testing

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockBuildbot serves a fake buildbot: a version listing page, per-version
// core pack archives, and a descriptor bundle.
type MockBuildbot struct {
	*httptest.Server

	mu        sync.Mutex
	versions  []string
	archives  map[string][]byte
	bundle    []byte
	bundleErr int
	requests  []MockRequest
}

// MockRequest records a request made to the mock server.
type MockRequest struct {
	Method string
	Path   string
}

// NewMockBuildbot creates a mock buildbot server. Register versions and
// payloads, then point clients at BaseURL and BundleURL.
func NewMockBuildbot(t *testing.T) *MockBuildbot {
	t.Helper()

	mock := &MockBuildbot{
		archives: make(map[string][]byte),
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	t.Cleanup(mock.Server.Close)

	return mock
}

// BaseURL is the stable listing root.
func (m *MockBuildbot) BaseURL() string {
	return m.URL + "/stable/"
}

// BundleURL is the descriptor bundle endpoint.
func (m *MockBuildbot) BundleURL() string {
	return m.URL + "/core-info/master.zip"
}

// SetVersions sets the version folders shown on the listing page.
func (m *MockBuildbot) SetVersions(versions ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions = versions
}

// SetArchive registers the core pack payload for a version.
func (m *MockBuildbot) SetArchive(version string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archives[version] = data
}

// SetBundle registers the descriptor bundle payload.
func (m *MockBuildbot) SetBundle(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundle = data
	m.bundleErr = 0
}

// FailBundle makes the bundle endpoint answer with the given status.
func (m *MockBuildbot) FailBundle(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundleErr = status
}

// RequestCount returns the number of requests recorded for a path.
func (m *MockBuildbot) RequestCount(path string) int {
	return len(m.Requests(path))
}

// Requests returns the recorded requests for a path, in arrival order.
func (m *MockBuildbot) Requests(path string) []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockRequest
	for _, req := range m.requests {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func (m *MockBuildbot) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requests = append(m.requests, MockRequest{Method: r.Method, Path: r.URL.Path})

	versions := m.versions
	bundle := m.bundle
	bundleErr := m.bundleErr
	archives := make(map[string][]byte, len(m.archives))
	for k, v := range m.archives {
		archives[k] = v
	}
	m.mu.Unlock()

	switch {
	case r.URL.Path == "/stable/" || r.URL.Path == "/stable":
		var b strings.Builder
		b.WriteString("<html><body><pre>\n")
		for _, v := range versions {
			fmt.Fprintf(&b, `<a href="/stable/%s/">%s/</a>`+"\n", v, v)
		}
		b.WriteString("</pre></body></html>\n")
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(b.String()))

	case r.URL.Path == "/core-info/master.zip":
		if bundleErr != 0 {
			w.WriteHeader(bundleErr)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(bundle)

	case strings.HasPrefix(r.URL.Path, "/stable/") && strings.HasSuffix(r.URL.Path, "/RetroArch_cores.7z"):
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		data, ok := archives[parts[1]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", fmt.Sprint(len(data)))
			return
		}
		w.Write(data)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
