package catalog

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var versionToken = regexp.MustCompile(`v?\d+(\.\d+){1,2}([-+][0-9A-Za-z.-]+)?`)

// ParseVersion extracts the first version-looking token from probe output,
// e.g. "git version 2.47.0.windows.2" yields 2.47.0.
func ParseVersion(output string) (*semver.Version, bool) {
	for _, tok := range versionToken.FindAllString(output, -1) {
		if v, err := semver.NewVersion(strings.TrimSuffix(tok, ".")); err == nil {
			return v, true
		}
	}
	return nil, false
}

// FirstLine trims probe output down to its first non-empty line.
func FirstLine(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// BelowMinimum reports whether version is older than the tool's min_version.
// Unparseable input never counts as below minimum.
func (t ToolSpec) BelowMinimum(version string) bool {
	if t.MinVersion == "" {
		return false
	}
	minV, err := semver.NewVersion(t.MinVersion)
	if err != nil {
		return false
	}
	v, ok := ParseVersion(version)
	if !ok {
		return false
	}
	return v.LessThan(minV)
}
