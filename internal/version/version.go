package version

import (
	"runtime/debug"
	"strings"
)

// Version is the build version. Set via -ldflags for releases,
// otherwise falls back to git commit hash from VCS info.
var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	Version = fromVCS()
}

func fromVCS() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "dev"
	}

	var revision string
	var modified bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}

	if revision == "" {
		return "dev"
	}

	var b strings.Builder
	b.WriteString("dev-")
	if len(revision) > 12 {
		revision = revision[:12]
	}
	b.WriteString(revision)
	if modified {
		b.WriteString("-dirty")
	}
	return b.String()
}
