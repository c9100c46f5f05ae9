package remote

import (
	"context"
	"testing"

	"budgetcore/pkg/domain"
)

func TestOpenDefaultsToMemory(t *testing.T) {
	t.Setenv("BUDGETCORE_REMOTE_DRIVER", "")
	s, err := Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Driver() != domain.RemoteMemory {
		t.Fatalf("driver = %s, want memory", s.Driver())
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Setenv("BUDGETCORE_REMOTE_DRIVER", "carrier-pigeon")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestOpenS3RequiresBucket(t *testing.T) {
	t.Setenv("BUDGETCORE_REMOTE_DRIVER", "s3")
	t.Setenv("BUDGETCORE_REMOTE_S3_BUCKET", "")
	if _, err := Open(context.Background()); err == nil {
		t.Fatalf("expected error without a bucket")
	}
}
