//go:build !cgo
// +build !cgo

package storage

// Built without CGO: the pure Go SQLite translation.
//
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver used for the catalog.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"

	busyTimeoutParam = "_pragma=busy_timeout(5000)"
)
