package breaker

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var errBoom = errors.New("boom")

// fakeClock lets specs step time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = Describe("Breaker Set", func() {
	var (
		clock *fakeClock
		set   *Set
	)

	BeforeEach(func() {
		clock = newFakeClock()
		set = NewSet(Config{
			MaxFailures: 3,
			Window:      time.Minute,
			Cooldown:    30 * time.Second,
			Now:         clock.Now,
		})
	})

	fail := func(name string) error {
		return set.Do(name, func() error { return errBoom })
	}

	succeed := func(name string) error {
		return set.Do(name, func() error { return nil })
	}

	It("passes calls through while closed", func() {
		Expect(succeed("svc")).To(Succeed())
		Expect(fail("svc")).To(MatchError(errBoom))
		Expect(set.State("svc")).To(Equal(StateClosed))
	})

	It("opens after max failures within the window", func() {
		for range 3 {
			Expect(fail("svc")).To(MatchError(errBoom))
		}
		Expect(set.State("svc")).To(Equal(StateOpen))
	})

	It("short-circuits without invoking the operation while open", func() {
		for range 3 {
			fail("svc")
		}

		invoked := false
		err := set.Do("svc", func() error {
			invoked = true
			return nil
		})
		Expect(err).To(MatchError(ErrOpen))
		Expect(invoked).To(BeFalse())
	})

	It("does not trip when failures are spread across windows", func() {
		Expect(fail("svc")).To(MatchError(errBoom))
		Expect(fail("svc")).To(MatchError(errBoom))
		clock.Advance(61 * time.Second)
		Expect(fail("svc")).To(MatchError(errBoom))
		Expect(set.State("svc")).To(Equal(StateClosed))
	})

	It("closes again after a successful probe", func() {
		for range 3 {
			fail("svc")
		}
		clock.Advance(31 * time.Second)

		Expect(succeed("svc")).To(Succeed())
		Expect(set.State("svc")).To(Equal(StateClosed))

		// Counter was cleared: it takes a full threshold to trip again.
		Expect(fail("svc")).To(MatchError(errBoom))
		Expect(set.State("svc")).To(Equal(StateClosed))
	})

	It("reopens immediately when the probe fails", func() {
		for range 3 {
			fail("svc")
		}
		clock.Advance(31 * time.Second)

		Expect(fail("svc")).To(MatchError(errBoom))
		Expect(set.State("svc")).To(Equal(StateOpen))
		Expect(succeed("svc")).To(MatchError(ErrOpen))
	})

	It("admits only one probe at a time", func() {
		for range 3 {
			fail("svc")
		}
		clock.Advance(31 * time.Second)

		started := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)

		go func() {
			done <- set.Do("svc", func() error {
				close(started)
				<-release
				return nil
			})
		}()

		<-started
		// A second call while the probe is in flight is rejected.
		Expect(succeed("svc")).To(MatchError(ErrOpen))

		close(release)
		Expect(<-done).To(Succeed())
		Expect(set.State("svc")).To(Equal(StateClosed))
	})

	It("converts a panic into an error and counts it as a failure", func() {
		err := set.Do("svc", func() error { panic("kaput") })
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("kaput"))

		for range 2 {
			fail("svc")
		}
		Expect(set.State("svc")).To(Equal(StateOpen))
	})

	It("tracks breakers independently by name", func() {
		for range 3 {
			fail("a")
		}
		Expect(set.State("a")).To(Equal(StateOpen))
		Expect(set.State("b")).To(Equal(StateClosed))
		Expect(succeed("b")).To(Succeed())
	})

	It("reports all known breakers in States", func() {
		succeed("a")
		for range 3 {
			fail("b")
		}
		states := set.States()
		Expect(states).To(HaveKeyWithValue("a", StateClosed))
		Expect(states).To(HaveKeyWithValue("b", StateOpen))
	})

	It("does not double-count under concurrent failures", func() {
		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fail("svc")
			}()
		}
		wg.Wait()
		// Two failures under a threshold of three must not trip the breaker.
		Expect(set.State("svc")).To(Equal(StateClosed))
	})
})
