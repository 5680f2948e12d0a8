// Package database opens the libSQL databases backing the fake leaderboard
// service.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

// Open connects to the SQLite database at path through libSQL.
//
// An in-memory database lives inside a single connection, so the pool is
// pinned to one connection for Memory. File databases get WAL mode and a
// busy timeout so concurrent handlers do not fail on lock contention.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{"PRAGMA foreign_keys=ON"}
	if path == Memory {
		db.SetMaxOpenConns(1)
	} else {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000")
	}

	// libSQL rejects Exec for PRAGMAs that return rows.
	for _, p := range pragmas {
		rows, err := db.QueryContext(ctx, p)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %s: %w", p, err)
		}
		rows.Close()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}
