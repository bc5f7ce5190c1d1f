package buildbot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Version is a release version published on the buildbot, parsed into its
// numeric triple. Unparseable strings keep their raw form and compare as
// 0.0.0 so they sort last in a newest-first listing.
type Version struct {
	Major int
	Minor int
	Patch int

	raw   string
	valid bool
}

// ParseVersion parses a dotted triple like "1.19.1". The raw string is
// preserved; strings that are not a canonical triple parse as the zero
// triple and report invalid.
func ParseVersion(s string) Version {
	v := Version{raw: s}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return v
	}

	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return v
		}
		nums[i] = n
	}
	if s != fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2]) {
		return v
	}

	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]
	v.valid = true
	return v
}

// String returns the numeric triple for a valid version and the original
// input otherwise, so unparseable strings survive formatting unchanged.
func (v Version) String() string {
	if v.valid {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	return v.raw
}

// IsValid reports whether the version parsed as a canonical numeric triple.
func (v Version) IsValid() bool {
	return v.valid
}

// Compare returns -1, 0 or 1 ordering v against other by numeric triple.
func (v Version) Compare(other Version) int {
	pairs := [][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Patch, other.Patch},
	}
	for _, p := range pairs {
		if p[0] < p[1] {
			return -1
		}
		if p[0] > p[1] {
			return 1
		}
	}
	return 0
}

// SortDescending orders versions newest first, numerically. Equal triples
// keep a deterministic order by raw string.
func SortDescending(versions []Version) {
	sort.SliceStable(versions, func(i, j int) bool {
		if c := versions[i].Compare(versions[j]); c != 0 {
			return c > 0
		}
		return versions[i].String() > versions[j].String()
	})
}

// Dedup collapses duplicate version strings, preserving first occurrence.
func Dedup(versions []Version) []Version {
	seen := make(map[string]struct{}, len(versions))
	out := versions[:0]
	for _, v := range versions {
		key := v.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
