package redis_test

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/cache/redis"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

// redisAddr returns the address of a real redis server or skips the test.
func redisAddr() string {
	addr := os.Getenv("CHATRELAY_TEST_REDIS_ADDR")
	if addr == "" {
		Skip("CHATRELAY_TEST_REDIS_ADDR not set, skipping redis server tests")
	}
	return addr
}

var _ = Describe("Cache against a redis server", func() {
	var (
		ctx context.Context
		c   *redis.Cache[[]model]
	)

	BeforeEach(func() {
		ctx = context.Background()
		prefix := "chatrelay-test:" + uuid.NewString() + ":"

		var err error
		c, err = redis.New[[]model](ctx, redis.Config{Addr: redisAddr(), Prefix: prefix}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			c.Invalidate(ctx, "")
			Expect(c.Close()).To(Succeed())
		})
	})

	It("round-trips and clears entries under its prefix", func() {
		want := []model{{Name: "llama3:8b", Size: 4_700_000_000}}
		c.Put(ctx, "ep-1", want, time.Minute)
		c.Put(ctx, "ep-2", want, time.Minute)

		got, ok := c.Get(ctx, "ep-1")
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(want))

		c.Invalidate(ctx, "")

		_, ok = c.Get(ctx, "ep-1")
		Expect(ok).To(BeFalse())
		_, ok = c.Get(ctx, "ep-2")
		Expect(ok).To(BeFalse())
	})
})
