package resolve

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
)

// versionPattern finds the version embedded in a key: a hex identifier,
// "@", a major number and an optional dotted minor number.
var versionPattern = regexp.MustCompile(`[0-9a-f]+@([0-9]+)(?:\.([0-9]+))?`)

// Version is a numeric major.minor pair.
type Version struct {
	Major int
	Minor int
}

// Compare orders versions numerically, major first.
func (v Version) Compare(o Version) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}
	return cmp.Compare(v.Minor, o.Minor)
}

// ParseVersion extracts the first embedded version from key.
func ParseVersion(key string) (Version, bool) {
	m := versionPattern.FindStringSubmatch(key)
	if m == nil {
		return Version{}, false
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, false
	}
	var minor int
	if m[2] != "" {
		if minor, err = strconv.Atoi(m[2]); err != nil {
			return Version{}, false
		}
	}
	return Version{Major: major, Minor: minor}, true
}

// SortKeys returns the keys carrying a parsable version, highest version
// first. Keys without one are dropped. Ties keep listing order.
func SortKeys(keys []string) []string {
	type candidate struct {
		key     string
		version Version
	}
	candidates := make([]candidate, 0, len(keys))
	for _, k := range keys {
		if v, ok := ParseVersion(k); ok {
			candidates = append(candidates, candidate{key: k, version: v})
		}
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return b.version.Compare(a.version)
	})

	sorted := make([]string, len(candidates))
	for i, c := range candidates {
		sorted[i] = c.key
	}
	return sorted
}
