//go:build !purego

package history

import (
	_ "github.com/mattn/go-sqlite3"
)

// sqliteDriver selects the CGO sqlite3 driver by default.
const sqliteDriver = "sqlite3"
