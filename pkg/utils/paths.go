package utils

import (
	"regexp"
	"strings"
)

var unsafePathChars = regexp.MustCompile(`[^a-z0-9._-]+`)

const maxDirNameLength = 64

// StateDirName turns a site host (possibly with a port) into a directory name that is
// safe on every platform. Runs of other characters collapse into a single underscore.
func StateDirName(host string) string {
	name := unsafePathChars.ReplaceAllString(strings.ToLower(host), "_")
	name = strings.Trim(name, "_.")
	if len(name) > maxDirNameLength {
		name = strings.Trim(name[:maxDirNameLength], "_.")
	}
	if name == "" {
		return "site"
	}
	return name
}
