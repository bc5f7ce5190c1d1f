package buildbot

import (
	"testing"
)

func TestParseVersionRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		major int
		minor int
		patch int
	}{
		{name: "simple", input: "1.2.3", major: 1, minor: 2, patch: 3},
		{name: "zero", input: "0.0.0"},
		{name: "double digit minor", input: "1.19.1", major: 1, minor: 19, patch: 1},
		{name: "large components", input: "10.20.30", major: 10, minor: 20, patch: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseVersion(tt.input)
			if v.Major != tt.major || v.Minor != tt.minor || v.Patch != tt.patch {
				t.Errorf("ParseVersion(%q) = %d.%d.%d, want %d.%d.%d",
					tt.input, v.Major, v.Minor, v.Patch, tt.major, tt.minor, tt.patch)
			}
			if got := v.String(); got != tt.input {
				t.Errorf("String() = %q, want round-trip to %q", got, tt.input)
			}
			if !v.IsValid() {
				t.Errorf("IsValid() = false for %q", tt.input)
			}
		})
	}
}

func TestParseVersionInvalid(t *testing.T) {
	tests := []string{
		"",
		"1.2",
		"1.2.3.4",
		"a.b.c",
		"1.x.3",
		"-1.2.3",
		"01.2.3",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			v := ParseVersion(input)
			if v.Major != 0 || v.Minor != 0 || v.Patch != 0 {
				t.Errorf("ParseVersion(%q) parsed to %d.%d.%d, want zero triple",
					input, v.Major, v.Minor, v.Patch)
			}
			if got := v.String(); got != input {
				t.Errorf("String() = %q, want raw form %q preserved", got, input)
			}
			if v.IsValid() {
				t.Errorf("IsValid() = true for %q", input)
			}
		})
	}
}

// TestSortDescendingNumeric verifies numeric triple ordering beats
// lexicographic string ordering: "1.9.0" sorts below "1.10.0".
func TestSortDescendingNumeric(t *testing.T) {
	versions := []Version{
		ParseVersion("1.9.0"),
		ParseVersion("1.10.0"),
	}

	SortDescending(versions)

	want := []string{"1.10.0", "1.9.0"}
	for i, w := range want {
		if versions[i].String() != w {
			t.Errorf("position %d = %s, want %s", i, versions[i], w)
		}
	}
}

func TestSortDescendingUnparseableLast(t *testing.T) {
	versions := []Version{
		ParseVersion("nightly"),
		ParseVersion("1.19.1"),
		ParseVersion("garbage.version"),
		ParseVersion("1.18.0"),
	}

	SortDescending(versions)

	if versions[0].String() != "1.19.1" || versions[1].String() != "1.18.0" {
		t.Errorf("valid versions not first: %v, %v", versions[0], versions[1])
	}
	for _, v := range versions[2:] {
		if v.IsValid() {
			t.Errorf("expected unparseable version at the end, got %v", v)
		}
	}
}

func TestDedup(t *testing.T) {
	versions := []Version{
		ParseVersion("1.19.1"),
		ParseVersion("1.18.0"),
		ParseVersion("1.19.1"),
		ParseVersion("1.19.1"),
	}

	deduped := Dedup(versions)
	if len(deduped) != 2 {
		t.Fatalf("Dedup() kept %d entries, want 2", len(deduped))
	}
	if deduped[0].String() != "1.19.1" || deduped[1].String() != "1.18.0" {
		t.Errorf("Dedup() order changed: %v", deduped)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.4", "1.2.3", 1},
		{"1.2.3", "1.2.4", -1},
		{"2.0.0", "1.99.99", 1},
		{"1.10.0", "1.9.0", 1},
	}

	for _, tt := range tests {
		got := ParseVersion(tt.a).Compare(ParseVersion(tt.b))
		if got != tt.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
