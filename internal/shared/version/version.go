// Package version provides the client version and semantic version comparison.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// ClientVersion is the API version this client speaks. Endpoints declaring a
// version beyond a published breaking version higher than this one are
// refused.
const ClientVersion = "0.4.3"

// Normalize ensures version string has "v" prefix for semver compatibility.
// Examples: "1.2.3" -> "v1.2.3", "v1.2.3" -> "v1.2.3"
func Normalize(version string) string {
	if version == "" {
		return ""
	}
	version = strings.TrimSpace(version)
	if !strings.HasPrefix(version, "v") {
		return "v" + version
	}
	return version
}

// Compare compares two version strings like semver.Compare: -1 if a < b,
// 0 if equal, +1 if a > b. Invalid versions compare as equal to everything,
// which keeps unparseable server versions from tripping the update guard.
func Compare(a, b string) int {
	na, nb := Normalize(a), Normalize(b)
	if !semver.IsValid(na) || !semver.IsValid(nb) {
		return 0
	}
	return semver.Compare(na, nb)
}

// UpdateRequired reports whether an endpoint declaring serverVersion may not
// be used by a client at clientVersion, given the published list of breaking
// versions. The endpoint is refused iff some breaking version is strictly
// newer than the client AND the server is strictly newer than that breaking
// version.
func UpdateRequired(clientVersion, serverVersion string, breakingVersions []string) bool {
	for _, breaking := range breakingVersions {
		if Compare(breaking, clientVersion) > 0 && Compare(serverVersion, breaking) > 0 {
			return true
		}
	}
	return false
}
