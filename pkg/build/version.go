// Package build holds version information set at link time, e.g.
//
//	go build -ldflags "-X github.com/storacha/proofbuddy/pkg/build.Version=v0.1.0"
package build

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
	BuiltBy = "unknown"
)
