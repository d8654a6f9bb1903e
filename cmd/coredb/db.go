package main

import (
	"time"

	"github.com/corelang/store/pkg/coreconfig"
	"github.com/corelang/store/pkg/coredb"
)

// openDB wires the flags every subcommand shares into coreconfig.Options
// and opens the database, starting its background committer and GC.
func openDB() (*coredb.DB, error) {
	return coredb.Open(coreconfig.Options{
		Path:       flagPath,
		MaxSizeMB:  flagMaxSizeMB,
		CacheBytes: flagCacheBytes,
		LogLevel:   flagLogLevel,
		LogJSON:    flagLogJSON,
		GCInterval: 30 * time.Second,
	})
}
