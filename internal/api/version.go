package api

// Build stamps, overridden with -ldflags "-X .../internal/api.EngineVersion=..."
// when release binaries are cut. The engine version is echoed on every
// response so clients can tell which rules a session was played under.
var (
	EngineVersion = "luckyloop-dev"
	GitCommit     = "unknown"
	BuildTime     = "unknown"
)

// GetVersionInfo reports the build stamps.
func GetVersionInfo() VersionInfo {
	return VersionInfo{EngineVersion: EngineVersion, GitCommit: GitCommit, BuildTime: BuildTime}
}
