// Package detect locates RetroArch installations on a Steam Deck.
package detect

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Location kinds for detected installations.
const (
	LocationInternal = "internal"
	LocationSD       = "sd"
)

// Installation is one discoverable cores directory.
type Installation struct {
	Location    string
	Path        string
	DisplayName string
}

// internalCoresPath is the Steam library location on internal storage,
// relative to the home directory.
const internalCoresPath = ".local/share/Steam/steamapps/common/RetroArch"

// sdMountGlobs are the usual SD card mount points on a Steam Deck.
var sdMountGlobs = []string{
	"/run/media/mmcblk0p1/steamapps/common/RetroArch",
	"/run/media/*/steamapps/common/RetroArch",
	"/media/*/steamapps/common/RetroArch",
}

// Detector probes the filesystem for RetroArch installations.
type Detector struct {
	home    string
	sdGlobs []string
}

// NewDetector creates a detector for the current user's home directory.
func NewDetector() (*Detector, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return &Detector{home: home, sdGlobs: sdMountGlobs}, nil
}

// NewDetectorAt creates a detector rooted at an explicit home directory and
// mount globs. Used by tests.
func NewDetectorAt(home string, sdGlobs []string) *Detector {
	return &Detector{home: home, sdGlobs: sdGlobs}
}

// Installations returns every discoverable cores directory, internal
// storage first.
func (d *Detector) Installations() []Installation {
	var installations []Installation

	if p, ok := d.internal(); ok {
		installations = append(installations, Installation{
			Location:    LocationInternal,
			Path:        p,
			DisplayName: "Internal Storage",
		})
	}

	for _, p := range d.sdCards() {
		installations = append(installations, Installation{
			Location:    LocationSD,
			Path:        p,
			DisplayName: fmt.Sprintf("SD Card (%s)", filepath.Base(filepath.Dir(p))),
		})
	}

	return installations
}

// Recommended returns the preferred installation: internal storage when
// present, otherwise the first SD card hit.
func (d *Detector) Recommended() (Installation, bool) {
	installations := d.Installations()
	if len(installations) == 0 {
		return Installation{}, false
	}
	for _, inst := range installations {
		if inst.Location == LocationInternal {
			return inst, true
		}
	}
	return installations[0], true
}

func (d *Detector) internal() (string, bool) {
	installDir := filepath.Join(d.home, internalCoresPath)
	if !dirExists(installDir) {
		return "", false
	}
	cores := filepath.Join(installDir, "cores")
	if dirExists(cores) || canCreate(cores) {
		return cores, true
	}
	return "", false
}

func (d *Detector) sdCards() []string {
	var found []string
	for _, pattern := range d.sdGlobs {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		for _, installDir := range matches {
			if !dirExists(installDir) {
				continue
			}
			cores := filepath.Join(installDir, "cores")
			if dirExists(cores) || canCreate(cores) {
				found = append(found, cores)
			}
		}
	}
	return found
}

// ValidatePath reports whether a cores path sits next to a RetroArch
// install, judged by well-known sibling files.
func ValidatePath(coresPath string) bool {
	parent := filepath.Dir(filepath.Clean(coresPath))
	if !dirExists(parent) {
		return false
	}

	indicators := []string{
		"retroarch",
		"retroarch.cfg",
		"RetroArch-Linux-x86_64.AppImage",
	}
	for _, name := range indicators {
		if _, err := os.Stat(filepath.Join(parent, name)); err == nil {
			return true
		}
	}
	return false
}

// Writable reports whether the path can receive files, creating it when
// missing.
func Writable(path string) bool {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false
	}
	probe := filepath.Join(path, ".write_test")
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}

// HaveSevenZip reports whether an external 7z binary is on the PATH.
func HaveSevenZip() bool {
	for _, bin := range []string{"7z", "7za"} {
		if _, err := exec.LookPath(bin); err == nil {
			return true
		}
	}
	return false
}

func dirExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func canCreate(p string) bool {
	if err := os.MkdirAll(p, 0o755); err != nil {
		return false
	}
	return true
}
