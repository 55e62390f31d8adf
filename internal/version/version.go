// Package version holds build information injected at link time, e.g.
//
//	go build -ldflags "-X github.com/bissquit/incident-relay/internal/version.Version=1.2.0"
package version

// Version is the release version.
var Version = "0.0.0"

// GitCommit is the git commit hash.
var GitCommit = "unknown"

// BuildDate is the build date.
var BuildDate = "unknown"
