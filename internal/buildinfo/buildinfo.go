// Package buildinfo holds build metadata injected with -ldflags, e.g.
//
//	-X github.com/akdenizcse/akdeniz-chatbot-go/internal/buildinfo.Version=v1.2.0
package buildinfo

// Set at build time; empty in development builds.
var (
	Version   = ""
	Commit    = ""
	BuildDate = ""
)

// String returns Version, or "dev" when unset.
func String() string {
	if Version == "" {
		return "dev"
	}
	return Version
}
