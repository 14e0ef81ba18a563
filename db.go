package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/diamondclub/watcher/save"
	_ "modernc.org/sqlite"
)

// openDB opens the transcript database. Read only handles fail when the
// database was never created.
func openDB(readOnly bool) (*sql.DB, error) {
	path := save.DatabasePath()

	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("transcript database not available: %w", err)
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Add("_pragma", "busy_timeout(5000)")
	if readOnly {
		params.Add("mode", "ro")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	if !readOnly {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}

	return db, nil
}
