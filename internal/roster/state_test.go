package roster_test

import (
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
	"github.com/averhoeven/roster-management/internal/roster"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Status transitions", func() {
	Describe("CanTransition", func() {
		It("moves a trainee only to pending", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusInTraining, memberDatamodel.StatusPending)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusInTraining, memberDatamodel.StatusActive)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusInTraining, memberDatamodel.StatusSuspended)).To(BeFalse())
		})

		It("activates only a pending member", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusPending, memberDatamodel.StatusActive)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusPending, memberDatamodel.StatusInactive)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusPending, memberDatamodel.StatusSuspended)).To(BeFalse())
		})

		It("lets an active member leave, rest, or enter discipline", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusInactive)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusLeaveOfAbsence)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusWarned1)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusSuspended)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusBlacklisted)).To(BeTrue())
		})

		It("never lets an active member skip warning steps or re-enter training", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusWarned2)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusWarned3)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusInTraining)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusPending)).To(BeFalse())
		})

		It("returns resting members only to active", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusInactive, memberDatamodel.StatusActive)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusInactive, memberDatamodel.StatusWarned1)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusLeaveOfAbsence, memberDatamodel.StatusActive)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusLeaveOfAbsence, memberDatamodel.StatusInactive)).To(BeFalse())
		})

		It("escalates warnings one step at a time", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusWarned1, memberDatamodel.StatusWarned2)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusWarned2, memberDatamodel.StatusWarned3)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusWarned1, memberDatamodel.StatusWarned3)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusWarned2, memberDatamodel.StatusWarned1)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusWarned3, memberDatamodel.StatusWarned1)).To(BeFalse())
		})

		It("clears any warning straight back to active", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusWarned1, memberDatamodel.StatusActive)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusWarned2, memberDatamodel.StatusActive)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusWarned3, memberDatamodel.StatusActive)).To(BeTrue())
		})

		It("suspends or blacklists from every warning step", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusWarned1, memberDatamodel.StatusSuspended)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusWarned2, memberDatamodel.StatusBlacklisted)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusWarned3, memberDatamodel.StatusSuspended)).To(BeTrue())
		})

		It("lifts a suspension to active or hardens it to blacklist", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusSuspended, memberDatamodel.StatusActive)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusSuspended, memberDatamodel.StatusBlacklisted)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusSuspended, memberDatamodel.StatusWarned1)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusSuspended, memberDatamodel.StatusInactive)).To(BeFalse())
		})

		It("lifts a blacklist only to active", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusBlacklisted, memberDatamodel.StatusActive)).To(BeTrue())
			Expect(roster.CanTransition(memberDatamodel.StatusBlacklisted, memberDatamodel.StatusInactive)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusBlacklisted, memberDatamodel.StatusSuspended)).To(BeFalse())
		})

		It("rejects self transitions and unknown statuses", func() {
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.StatusActive)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.Status("retired"), memberDatamodel.StatusActive)).To(BeFalse())
			Expect(roster.CanTransition(memberDatamodel.StatusActive, memberDatamodel.Status("retired"))).To(BeFalse())
		})
	})
})
