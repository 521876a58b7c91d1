// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package version holds the version of the running binaries. The
// values are set at link time, for example:
//
//	go build -ldflags "-X github.com/release-engineering/waiverdb/version.version=1.2.0"
package version

var (
	gitCommit = "unknown"
	version   = "dev"
)

// Version describes the current version of the code being run.
type Version struct {
	GitCommit string
	Version   string
}

// VersionInfo holds the version of the running binary.
var VersionInfo = Version{
	GitCommit: gitCommit,
	Version:   version,
}
