// Package cache selects and constructs the local snapshot cache backend.
package cache

import (
	"fmt"
	"os"

	"budgetcore/internal/cache/memory"
	"budgetcore/internal/cache/sqlite"
	"budgetcore/pkg/domain"
)

// Open selects a domain.SnapshotCache implementation using environment
// variables.
//
//	BUDGETCORE_CACHE_DRIVER: sqlite|memory (default sqlite)
//	BUDGETCORE_CACHE_SQLITE_PATH: database file path when driver=sqlite
func Open() (domain.SnapshotCache, error) {
	driver := os.Getenv("BUDGETCORE_CACHE_DRIVER")
	if driver == "" {
		driver = string(domain.CacheSQLite)
	}
	switch domain.CacheDriver(driver) {
	case domain.CacheSQLite:
		return sqlite.OpenFromEnv()
	case domain.CacheMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %s", driver)
	}
}
