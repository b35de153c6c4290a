// Package version reports the relay release.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit is set at build time with
// -ldflags "-X github.com/ShayCichocki/relay/internal/version.Commit=<sha>".
var Commit string

// Get returns the release from the VERSION file, suffixed with the short
// commit when one was stamped in.
func Get() string {
	v := strings.TrimSpace(versionContent)
	if v == "" {
		v = "dev"
	}
	if c := strings.TrimSpace(Commit); c != "" {
		if len(c) > 7 {
			c = c[:7]
		}
		v += "+" + c
	}
	return v
}
