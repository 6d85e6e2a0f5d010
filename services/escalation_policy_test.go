package services

import (
	"testing"
	"time"

	"civicconnect-be/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalationDeadlineTable(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		priority models.IssuePriority
		tier     models.StaffTier
		want     time.Duration
	}{
		{"urgent at field staff", models.PriorityUrgent, models.TierFieldStaff, 5 * time.Hour},
		{"urgent at supervisor", models.PriorityUrgent, models.TierSupervisor, 4 * time.Hour},
		{"high at field staff", models.PriorityHigh, models.TierFieldStaff, 5 * time.Hour},
		{"high at supervisor", models.PriorityHigh, models.TierSupervisor, 4 * time.Hour},
		{"medium at field staff", models.PriorityMedium, models.TierFieldStaff, 24 * time.Hour},
		{"medium at supervisor", models.PriorityMedium, models.TierSupervisor, 24 * time.Hour},
		{"low at field staff", models.PriorityLow, models.TierFieldStaff, 48 * time.Hour},
		{"low at supervisor", models.PriorityLow, models.TierSupervisor, 36 * time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EscalationDeadline(tc.priority, tc.tier, now)
			require.NotNil(t, got)
			assert.Equal(t, now.Add(tc.want), *got)
		})
	}
}

func TestEscalationDeadlineCommissionerIsTerminal(t *testing.T) {
	now := time.Now()
	for _, p := range []models.IssuePriority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent} {
		assert.Nil(t, EscalationDeadline(p, models.TierCommissioner, now))
	}
}

func TestEscalationDeadlineUnknownComboIsImmediate(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	got := EscalationDeadline(models.IssuePriority("critical"), models.TierFieldStaff, now)
	require.NotNil(t, got)
	assert.Equal(t, now, *got, "unrecognized priority should make the issue immediately sweepable")
}

func TestEscalationDeadlineIsPure(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	first := EscalationDeadline(models.PriorityHigh, models.TierFieldStaff, now)
	second := EscalationDeadline(models.PriorityHigh, models.TierFieldStaff, now)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
}
