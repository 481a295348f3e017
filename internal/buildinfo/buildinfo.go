// Package buildinfo holds values stamped at build time via -ldflags, e.g.
//
//	go build -ldflags "-X github.com/varsilias/whait/internal/buildinfo.Version=v1.2.0"
package buildinfo

var (
	Version = "dev"
	Commit  = "none"
	BuiltAt = "unknown"
)
