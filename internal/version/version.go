/*
Package version carries build-time version information for toolvault.

The variables are overridden via ldflags at release build time; a plain
`go build` produces a "dev" binary.
*/
package version

var (
	// Version is the release tag (e.g., v0.3.0).
	Version = "dev"
	// Commit is the short git commit hash.
	Commit = "none"
	// Date is the UTC build date (YYYY-MM-DD).
	Date = "unknown"
)

// String returns the display form used by the version command and the
// root command's --version flag.
func String() string {
	if Version == "dev" {
		return Version + " (development build)"
	}
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
