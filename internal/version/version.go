// Package version holds build information stamped in with -ldflags.
package version

// Version is the release version of the console.
var Version = "0.0.0"

// GitCommit is the commit the binary was built from.
var GitCommit = "unknown"

// BuildDate is when the binary was built.
var BuildDate = "unknown"
