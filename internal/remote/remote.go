// Package remote selects and constructs the remote document store
// backend.
package remote

import (
	"context"
	"fmt"
	"os"

	"budgetcore/internal/remote/memory"
	"budgetcore/internal/remote/postgres"
	"budgetcore/internal/remote/s3"
	"budgetcore/pkg/domain"
)

// Open selects a domain.RemoteStore implementation using environment
// variables.
//
//	BUDGETCORE_REMOTE_DRIVER: memory|s3|postgres (default memory)
//	(driver specific variables documented in each driver package)
func Open(ctx context.Context) (domain.RemoteStore, error) {
	driver := os.Getenv("BUDGETCORE_REMOTE_DRIVER")
	if driver == "" {
		driver = string(domain.RemoteMemory)
	}
	switch domain.RemoteDriver(driver) {
	case domain.RemoteMemory:
		return memory.NewStore(), nil
	case domain.RemoteS3:
		return s3.OpenFromEnv(ctx)
	case domain.RemotePostgres:
		return postgres.OpenFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown remote driver %s", driver)
	}
}
