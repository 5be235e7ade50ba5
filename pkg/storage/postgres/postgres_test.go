package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/storage/postgres"
	"github.com/papercomputeco/chatrelay/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("CHATRELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("CHATRELAY_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = storagetest.DescribeDriver("postgres", func() storage.Driver {
	ctx := context.Background()

	d, err := postgres.NewDriver(ctx, connStr(), true)
	Expect(err).NotTo(HaveOccurred())

	// Clean all tables before each test for isolation.
	for _, table := range []string{"messages", "conversations", "models", "ollama_endpoints", "usage_logs", "audit_logs", "profiles"} {
		_, err := d.DB().ExecContext(ctx, "DELETE FROM "+table)
		Expect(err).NotTo(HaveOccurred())
	}
	return d
})
