// Package version checks the running binary against the latest published
// release. Check results are cached on disk so repeated CLI invocations do
// not hammer the GitHub API.
package version

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const releasesURL = "https://api.github.com/repos/marcus/notesync/releases/latest"

// Release is the slice of the GitHub release response the checker reads.
type Release struct {
	TagName     string    `json:"tag_name"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
}

// CheckResult holds the outcome of one update check.
type CheckResult struct {
	CurrentVersion string
	LatestVersion  string
	UpdateURL      string
	HasUpdate      bool
	Error          error
}

// Check asks GitHub for the latest release and compares it against
// currentVersion. Development builds are never checked.
func Check(currentVersion string) CheckResult {
	result := CheckResult{CurrentVersion: currentVersion}
	if IsDevelopmentVersion(currentVersion) {
		return result
	}

	release, err := fetchLatestRelease()
	if err != nil {
		result.Error = err
		return result
	}

	result.LatestVersion = release.TagName
	result.UpdateURL = release.HTMLURL
	result.HasUpdate = isNewer(release.TagName, currentVersion)
	return result
}

func fetchLatestRelease() (*Release, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(releasesURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api: %s", resp.Status)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}
	return &release, nil
}

// IsDevelopmentVersion reports whether v names an unreleased build, as
// stamped by goreleaser's snapshot mode or a plain `go build`.
func IsDevelopmentVersion(v string) bool {
	switch v {
	case "", "unknown", "dev", "devel":
		return true
	}
	return strings.HasPrefix(v, "devel+")
}

// validVersionRegex accepts a semver core with an optional alphanumeric
// prerelease suffix. Anything else is rejected so a hostile release tag
// cannot smuggle shell syntax into the suggested install command.
var validVersionRegex = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9]+([.-][a-zA-Z0-9]+)*)?$`)

// UpdateCommand returns the go install invocation for version, or an
// empty string if version does not look like a release tag.
func UpdateCommand(version string) string {
	if !validVersionRegex.MatchString(version) {
		return ""
	}
	return fmt.Sprintf(
		"go install -ldflags \"-X main.Version=%s\" github.com/marcus/notesync@%s",
		version, version,
	)
}
