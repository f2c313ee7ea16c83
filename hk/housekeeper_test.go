package hk_test

import (
	"sync/atomic"
	"time"

	"github.com/splicehq/splice/hk"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Housekeeper", func() {
	It("runs a periodic callback until it returns zero", func() {
		var calls int32
		done := make(chan struct{})
		hk.Reg("periodic", func() time.Duration {
			n := atomic.AddInt32(&calls, 1)
			if n >= 3 {
				close(done)
				return 0
			}
			return time.Millisecond
		}, time.Millisecond)

		Eventually(done, time.Second).Should(BeClosed())
		Expect(atomic.LoadInt32(&calls)).To(BeNumerically(">=", 3))
	})

	It("does not fire once unregistered", func() {
		var calls int32
		hk.Reg("cancelme", func() time.Duration {
			atomic.AddInt32(&calls, 1)
			return time.Millisecond
		}, time.Millisecond)
		hk.Unreg("cancelme")

		time.Sleep(20 * time.Millisecond)
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(0)))
	})

	It("replaces a callback registered under the same name", func() {
		first := make(chan struct{})
		second := make(chan struct{})
		hk.Reg("dup", func() time.Duration {
			close(first)
			return time.Hour
		}, time.Millisecond)
		hk.Reg("dup", func() time.Duration {
			close(second)
			return 0
		}, time.Millisecond)

		Eventually(second, time.Second).Should(BeClosed())
		Consistently(first, 20*time.Millisecond).ShouldNot(BeClosed())
	})
})
