//go:build !cgo

package sqlite

import _ "modernc.org/sqlite"

// Pure Go driver for builds with CGO_ENABLED=0.
const driverName = "sqlite"
