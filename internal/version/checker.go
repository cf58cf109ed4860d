package version

import "time"

// CheckCached returns the update status for currentVersion, reusing a
// cached result when one is fresh and hitting GitHub otherwise. Network
// errors are reported in the result, never cached.
func CheckCached(currentVersion string) CheckResult {
	if cached, err := LoadCache(); err == nil && IsCacheValid(cached, currentVersion) {
		return CheckResult{
			CurrentVersion: currentVersion,
			LatestVersion:  cached.LatestVersion,
			HasUpdate:      cached.HasUpdate,
		}
	}

	result := Check(currentVersion)
	if result.Error == nil && !IsDevelopmentVersion(currentVersion) {
		_ = SaveCache(&CacheEntry{
			LatestVersion:  result.LatestVersion,
			CurrentVersion: currentVersion,
			CheckedAt:      time.Now(),
			HasUpdate:      result.HasUpdate,
		})
	}
	return result
}
