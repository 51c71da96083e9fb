package roster

import (
	memberDatamodel "github.com/averhoeven/roster-management/internal/core/datamodel/member"
)

// allowedTransitions is the full status table. Anything absent here is
// rejected. The warning ladder only escalates; every side state returns to
// active through explicit reactivation, blacklisted included.
var allowedTransitions = map[memberDatamodel.Status][]memberDatamodel.Status{
	memberDatamodel.StatusInTraining: {
		memberDatamodel.StatusPending,
	},
	memberDatamodel.StatusPending: {
		memberDatamodel.StatusActive,
	},
	memberDatamodel.StatusActive: {
		memberDatamodel.StatusInactive,
		memberDatamodel.StatusLeaveOfAbsence,
		memberDatamodel.StatusWarned1,
		memberDatamodel.StatusSuspended,
		memberDatamodel.StatusBlacklisted,
	},
	memberDatamodel.StatusInactive: {
		memberDatamodel.StatusActive,
	},
	memberDatamodel.StatusLeaveOfAbsence: {
		memberDatamodel.StatusActive,
	},
	memberDatamodel.StatusWarned1: {
		memberDatamodel.StatusActive,
		memberDatamodel.StatusWarned2,
		memberDatamodel.StatusSuspended,
		memberDatamodel.StatusBlacklisted,
	},
	memberDatamodel.StatusWarned2: {
		memberDatamodel.StatusActive,
		memberDatamodel.StatusWarned3,
		memberDatamodel.StatusSuspended,
		memberDatamodel.StatusBlacklisted,
	},
	memberDatamodel.StatusWarned3: {
		memberDatamodel.StatusActive,
		memberDatamodel.StatusSuspended,
		memberDatamodel.StatusBlacklisted,
	},
	memberDatamodel.StatusSuspended: {
		memberDatamodel.StatusActive,
		memberDatamodel.StatusBlacklisted,
	},
	memberDatamodel.StatusBlacklisted: {
		memberDatamodel.StatusActive,
	},
}

// CanTransition reports whether the status table allows moving a member
// from one status to another.
func CanTransition(from, to memberDatamodel.Status) bool {
	for _, target := range allowedTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}
