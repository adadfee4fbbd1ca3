package tokens

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Estimate", func() {
	It("estimates empty text to zero", func() {
		Expect(Estimate("")).To(Equal(0))
	})

	It("approximates 4 characters per token with a 10% margin", func() {
		// 40 chars -> 40/4 * 1.1 = 11
		Expect(Estimate(strings.Repeat("a", 40))).To(Equal(11))
	})

	It("rounds to the nearest token", func() {
		// 2 chars -> 0.55 -> 1
		Expect(Estimate("ab")).To(Equal(1))
		// 1 char -> 0.275 -> 0
		Expect(Estimate("a")).To(Equal(0))
	})

	It("is monotonically non-decreasing in input length", func() {
		prev := 0
		for n := range 200 {
			est := Estimate(strings.Repeat("x", n))
			Expect(est).To(BeNumerically(">=", prev))
			prev = est
		}
	})

	It("counts runes rather than bytes", func() {
		ascii := Estimate(strings.Repeat("a", 8))
		multi := Estimate(strings.Repeat("é", 8))
		Expect(multi).To(Equal(ascii))
	})
})
