// Package version reports mive's build version, generalized from
// go-ethereum's params.VersionWithCommit to read from Go's own module build
// info instead of linker-injected globals.
package version

import "runtime/debug"

// WithCommit returns the module version augmented with the VCS revision and
// dirty-worktree marker recorded in the binary's build info, when available.
func WithCommit() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	v := info.Main.Version
	if v == "" || v == "(devel)" {
		v = "dev"
	}

	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}

	if revision != "" {
		if len(revision) > 8 {
			revision = revision[:8]
		}
		v += "-" + revision
		if dirty {
			v += "-dirty"
		}
	}
	return v
}
