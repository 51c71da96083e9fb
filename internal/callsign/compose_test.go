package callsign_test

import (
	"testing"

	"github.com/averhoeven/roster-management/internal/callsign"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestCallsignCompose(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Callsign Compose Suite")
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}

var _ = Describe("Compose", func() {
	Context("when the member has a rank, identifier and team", func() {
		It("should append the identifier and wrap the team designator", func() {
			result := callsign.Compose("CPT", "PD", intPtr(101), strPtr("K9"))
			Expect(result).To(Equal("CPTPD-101(K9)"))
		})
	})

	Context("when the member has a rank and identifier but no team", func() {
		It("should append only the identifier", func() {
			result := callsign.Compose("CPT", "PD", intPtr(101), nil)
			Expect(result).To(Equal("CPTPD-101"))
		})

		It("should treat an empty team designator like no team", func() {
			result := callsign.Compose("CPT", "PD", intPtr(101), strPtr(""))
			Expect(result).To(Equal("CPTPD-101"))
		})
	})

	Context("when no identifier is assigned yet", func() {
		It("should return the placeholder form", func() {
			result := callsign.Compose("CPT", "PD", nil, nil)
			Expect(result).To(Equal("CPTPD"))
		})

		It("should ignore a team designator without an identifier", func() {
			result := callsign.Compose("CPT", "PD", nil, strPtr("K9"))
			Expect(result).To(Equal("CPTPD"))
		})
	})

	Context("when the member holds no rank", func() {
		It("should use the reserved unranked designator", func() {
			result := callsign.Compose("", "PD", intPtr(205), nil)
			Expect(result).To(Equal("0PD-205"))
		})

		It("should compose the bare placeholder for a fresh recruit", func() {
			result := callsign.Compose("", "FD", nil, nil)
			Expect(result).To(Equal("0FD"))
		})
	})

	It("should be deterministic for identical inputs", func() {
		first := callsign.Compose("SGT", "PD", intPtr(440), strPtr("SWAT"))
		second := callsign.Compose("SGT", "PD", intPtr(440), strPtr("SWAT"))
		Expect(first).To(Equal(second))
	})
})
