package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1700000000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("Cache", func() {
	var (
		clock *testClock
		cache *Cache
		ctx   context.Context
	)

	BeforeEach(func() {
		clock = newTestClock()
		cache = New(Config{
			TTL:        5 * time.Minute,
			MaxEntries: 10,
			Now:        clock.Now,
		})
		ctx = context.Background()
	})

	vec := func(v float32) []float32 { return []float32{v, v, v} }

	It("computes on miss and serves from cache before TTL expiry", func() {
		calls := 0
		compute := func(context.Context) ([]float32, error) {
			calls++
			return vec(1), nil
		}

		got, err := cache.GetOrCompute(ctx, "hello", compute)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(vec(1)))

		got, err = cache.GetOrCompute(ctx, "hello", compute)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(vec(1)))
		Expect(calls).To(Equal(1))
	})

	It("recomputes after the TTL elapses", func() {
		calls := 0
		compute := func(context.Context) ([]float32, error) {
			calls++
			return vec(float32(calls)), nil
		}

		cache.GetOrCompute(ctx, "hello", compute)
		clock.Advance(5 * time.Minute)

		got, err := cache.GetOrCompute(ctx, "hello", compute)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(vec(2)))
		Expect(calls).To(Equal(2))
	})

	It("propagates compute errors without caching them", func() {
		boom := errors.New("embed failed")
		_, err := cache.GetOrCompute(ctx, "hello", func(context.Context) ([]float32, error) {
			return nil, boom
		})
		Expect(err).To(MatchError(boom))

		got, err := cache.GetOrCompute(ctx, "hello", func(context.Context) ([]float32, error) {
			return vec(7), nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(vec(7)))
	})

	It("computes once for concurrent callers of the same key", func() {
		var calls atomic.Int32
		gate := make(chan struct{})
		compute := func(context.Context) ([]float32, error) {
			calls.Add(1)
			<-gate
			return vec(9), nil
		}

		var wg sync.WaitGroup
		results := make([][]float32, 8)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := cache.GetOrCompute(ctx, "shared", compute)
				Expect(err).NotTo(HaveOccurred())
				results[i] = got
			}()
		}

		// Let the goroutines pile onto the flight before releasing it.
		Eventually(func() int32 { return calls.Load() }).Should(Equal(int32(1)))
		close(gate)
		wg.Wait()

		Expect(calls.Load()).To(Equal(int32(1)))
		for _, got := range results {
			Expect(got).To(Equal(vec(9)))
		}
	})

	It("serves seeded vectors without computing", func() {
		cache.Put("seeded", vec(3))

		got, err := cache.GetOrCompute(ctx, "seeded", func(context.Context) ([]float32, error) {
			return nil, errors.New("should not be called")
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(vec(3)))
	})

	It("clears all entries", func() {
		cache.Put("a", vec(1))
		cache.Put("b", vec(2))
		Expect(cache.Len()).To(Equal(2))

		cache.Clear()
		Expect(cache.Len()).To(Equal(0))
	})

	Describe("eviction", func() {
		It("removes the oldest tenth by insertion time when over capacity", func() {
			for i := range 10 {
				cache.Put(fmt.Sprintf("key-%d", i), vec(float32(i)))
				clock.Advance(time.Second)
			}
			Expect(cache.Len()).To(Equal(10))

			cache.Put("key-10", vec(10))
			Expect(cache.Len()).To(Equal(10))

			// key-0 was the oldest and must be gone.
			calls := 0
			cache.GetOrCompute(ctx, "key-0", func(context.Context) ([]float32, error) {
				calls++
				return vec(0), nil
			})
			Expect(calls).To(Equal(1))
		})

		It("never evicts newer entries ahead of older ones, regardless of reads", func() {
			for i := range 10 {
				cache.Put(fmt.Sprintf("key-%d", i), vec(float32(i)))
				clock.Advance(time.Second)
			}

			// Heavy reads on the oldest entry do not protect it: the policy
			// is insertion-time FIFO, not LRU.
			for range 50 {
				_, err := cache.GetOrCompute(ctx, "key-0", func(context.Context) ([]float32, error) {
					return nil, errors.New("unexpected compute")
				})
				Expect(err).NotTo(HaveOccurred())
			}

			cache.Put("key-10", vec(10))

			recomputed := 0
			cache.GetOrCompute(ctx, "key-0", func(context.Context) ([]float32, error) {
				recomputed++
				return vec(0), nil
			})
			Expect(recomputed).To(Equal(1))
		})
	})
})
