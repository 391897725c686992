//go:build purego

package history

import (
	_ "modernc.org/sqlite"
)

// sqliteDriver selects the pure-Go sqlite driver for CGO-free builds.
const sqliteDriver = "sqlite"
