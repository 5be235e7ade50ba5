package memory_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatrelay/pkg/cache"
	"github.com/papercomputeco/chatrelay/pkg/cache/memory"
)

var _ = Describe("Cache", func() {
	var (
		ctx context.Context
		now time.Time
		c   *memory.Cache[[]string]
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c = memory.New(memory.WithClock[[]string](func() time.Time { return now }))
	})

	It("returns a stored value before it expires", func() {
		c.Put(ctx, "ep-1", []string{"llama3"}, time.Minute)

		v, ok := c.Get(ctx, "ep-1")
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal([]string{"llama3"}))
	})

	It("misses on an unknown key", func() {
		_, ok := c.Get(ctx, "nope")
		Expect(ok).To(BeFalse())
	})

	It("expires entries after their ttl", func() {
		c.Put(ctx, "ep-1", []string{"llama3"}, time.Minute)
		now = now.Add(time.Minute)

		_, ok := c.Get(ctx, "ep-1")
		Expect(ok).To(BeFalse())
		Expect(c.Len()).To(Equal(0))
	})

	It("uses the default ttl for non-positive durations", func() {
		c.Put(ctx, "ep-1", []string{"a"}, 0)

		now = now.Add(cache.DefaultTTL - time.Second)
		_, ok := c.Get(ctx, "ep-1")
		Expect(ok).To(BeTrue())

		now = now.Add(time.Second)
		_, ok = c.Get(ctx, "ep-1")
		Expect(ok).To(BeFalse())
	})

	It("sweeps expired entries on put", func() {
		c.Put(ctx, "old", []string{"a"}, time.Second)
		now = now.Add(2 * time.Second)
		c.Put(ctx, "new", []string{"b"}, time.Minute)

		Expect(c.Len()).To(Equal(1))
	})

	It("invalidates a single key", func() {
		c.Put(ctx, "ep-1", []string{"a"}, time.Minute)
		c.Put(ctx, "ep-2", []string{"b"}, time.Minute)

		c.Invalidate(ctx, "ep-1")

		_, ok := c.Get(ctx, "ep-1")
		Expect(ok).To(BeFalse())
		_, ok = c.Get(ctx, "ep-2")
		Expect(ok).To(BeTrue())
	})

	It("invalidates everything for an empty key", func() {
		c.Put(ctx, "ep-1", []string{"a"}, time.Minute)
		c.Put(ctx, "ep-2", []string{"b"}, time.Minute)

		c.Invalidate(ctx, "")

		Expect(c.Len()).To(Equal(0))
	})

	It("is safe for concurrent use", func() {
		live := memory.New[int]()
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				live.Put(ctx, "k", i, time.Minute)
				_, _ = live.Get(ctx, "k")
				if i%10 == 0 {
					live.Invalidate(ctx, "")
				}
			}(i)
		}
		wg.Wait()
	})
})
