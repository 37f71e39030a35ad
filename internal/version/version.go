// Package version holds build metadata injected via -ldflags. Unset
// fields fall back to development defaults.
package version

var (
	// Version is a SemVer tag like v1.2.3 for releases; empty on dev builds.
	Version = ""
	// Commit is the short git SHA the binary was built from.
	Commit = ""
	// Date is the UTC build timestamp in RFC3339 format.
	Date = ""
	// Dirty is "dirty" when the tree had uncommitted changes at build time.
	Dirty = ""
)

// String returns a compact version for display: the release tag when set,
// "dev-<sha>" (with a trailing * for dirty trees) otherwise, or "dev" when
// no metadata was injected.
func String() string {
	if Version != "" {
		return Version
	}
	if Commit != "" {
		suffix := Commit
		if Dirty == "dirty" {
			suffix += "*"
		}
		return "dev-" + suffix
	}
	return "dev"
}
