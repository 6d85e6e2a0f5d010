package services

import (
	"time"

	"civicconnect-be/models"
)

// slaTable maps (priority, tier) to the hours an issue may sit before it
// becomes escalation-eligible.
var slaTable = map[models.IssuePriority]map[models.StaffTier]time.Duration{
	models.PriorityUrgent: {
		models.TierFieldStaff: 5 * time.Hour,
		models.TierSupervisor: 4 * time.Hour,
	},
	models.PriorityHigh: {
		models.TierFieldStaff: 5 * time.Hour,
		models.TierSupervisor: 4 * time.Hour,
	},
	models.PriorityMedium: {
		models.TierFieldStaff: 24 * time.Hour,
		models.TierSupervisor: 24 * time.Hour,
	},
	models.PriorityLow: {
		models.TierFieldStaff: 48 * time.Hour,
		models.TierSupervisor: 36 * time.Hour,
	},
}

// EscalationDeadline returns the absolute time by which an issue at the given
// tier must be actioned, or nil for the commissioner tier, which is terminal.
// Unknown (priority, tier) combinations fall back to a zero offset, making
// the issue immediately eligible for the escalation sweep rather than
// rejecting the assignment.
func EscalationDeadline(priority models.IssuePriority, tier models.StaffTier, now time.Time) *time.Time {
	if tier == models.TierCommissioner {
		return nil
	}
	deadline := now.Add(slaTable[priority][tier])
	return &deadline
}
