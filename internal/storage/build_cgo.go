//go:build cgo
// +build cgo

package storage

// Built with CGO: the C SQLite driver.
//
//   CGO_ENABLED=1 go build ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver used for the catalog.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"

	busyTimeoutParam = "_busy_timeout=5000"
)
