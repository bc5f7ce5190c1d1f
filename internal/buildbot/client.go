package buildbot

import (
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the libretro buildbot stable release listing.
	DefaultBaseURL = "https://buildbot.libretro.com/stable/"

	// platformSegment selects the Steam Deck build of the core pack.
	platformSegment = "linux/x86_64"

	// ArchiveName is the core pack archive published for every release.
	ArchiveName = "RetroArch_cores.7z"

	userAgent = "coreup/1.0"
)

// versionPattern matches version directory links on the listing page.
var versionPattern = regexp.MustCompile(`href="[^"]*?(\d+\.\d+\.\d+)/"`)

// Client queries the buildbot for available core pack releases.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a buildbot client. An empty baseURL selects the libretro
// buildbot; a nil httpClient gets a 10 second timeout and no retries.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 10 * time.Second,
		}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// AvailableVersions fetches the release listing and returns the versions
// found on it, newest first. Any network or parse problem yields an empty
// slice; callers treat that as "no versions", not as a fatal error.
func (c *Client) AvailableVersions() []Version {
	req, err := http.NewRequest(http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithError(err).Debug("buildbot listing fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debugf("buildbot listing returned HTTP %d", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil
	}

	var versions []Version
	for _, match := range versionPattern.FindAllStringSubmatch(string(body), -1) {
		versions = append(versions, ParseVersion(match[1]))
	}

	versions = Dedup(versions)
	SortDescending(versions)
	return versions
}

// Latest returns the newest available version, if any.
func (c *Client) Latest() (Version, bool) {
	versions := c.AvailableVersions()
	if len(versions) == 0 {
		return Version{}, false
	}
	return versions[0], true
}

// DownloadURL composes the core pack archive URL for a version. Pure string
// composition; no network call.
func (c *Client) DownloadURL(v Version) string {
	return c.baseURL + v.String() + "/" + platformSegment + "/" + ArchiveName
}

// Validate issues a HEAD request against the archive URL and reports whether
// the version is actually downloadable.
func (c *Client) Validate(v Version) bool {
	info := c.Info(v)
	return info.Available
}

// VersionInfo describes a release's archive as reported by a HEAD probe.
type VersionInfo struct {
	Version   Version
	URL       string
	Size      int64
	Available bool
}

// Info probes the archive URL for a version and returns its availability and
// declared size. Size is zero when the server does not declare one.
func (c *Client) Info(v Version) VersionInfo {
	info := VersionInfo{
		Version: v,
		URL:     c.DownloadURL(v),
	}

	req, err := http.NewRequest(http.MethodHead, info.URL, nil)
	if err != nil {
		return info
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return info
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info
	}

	info.Available = true
	if resp.ContentLength > 0 {
		info.Size = resp.ContentLength
	}
	return info
}
