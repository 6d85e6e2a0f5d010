package services

import (
	"context"
	"testing"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newAssignmentFixture() (*AssignmentService, *repository.MemoryIssueRepository, *repository.MemoryUserRepository, *recordingNotifier) {
	issues := repository.NewMemoryIssueRepository()
	users := repository.NewMemoryUserRepository()
	notifier := &recordingNotifier{}
	return NewAssignmentService(issues, users, notifier), issues, users, notifier
}

func TestAutoAssignFansOutToEligibleEmployees(t *testing.T) {
	svc, issues, users, notifier := newAssignmentFixture()
	ctx := context.Background()

	matching := []*models.User{
		newStaffUser(users, models.RoleFieldStaff, string(models.StreetLighting)),
		newStaffUser(users, models.RoleFieldStaff, models.DepartmentAll),
		newStaffUser(users, models.RoleSupervisor, string(models.StreetLighting)),
	}
	newStaffUser(users, models.RoleFieldStaff, string(models.RoadTraffic)) // wrong department

	inactive := newStaffUser(users, models.RoleFieldStaff, string(models.StreetLighting))
	inactive.IsActive = false
	require.NoError(t, users.Insert(ctx, inactive))

	admin := newCitizen(users)
	issue := seedIssue(issues, &models.Issue{Priority: models.PriorityHigh})

	got, err := svc.Assign(ctx, issue.ID, "", admin)
	require.NoError(t, err)

	assert.Nil(t, got.AssignedTo, "department-wide assignment has no specific owner")
	require.NotNil(t, got.AssignedRole)
	assert.Equal(t, models.TierFieldStaff, *got.AssignedRole)
	require.NotNil(t, got.AssignedBy)
	assert.Equal(t, admin.ID, *got.AssignedBy)
	require.NotNil(t, got.EscalationDeadline)

	assert.Len(t, notifier.assignments, len(matching))
	for _, m := range matching {
		assert.Contains(t, notifier.assignments, m.Email)
	}
}

func TestAutoAssignDeadlineFollowsPriority(t *testing.T) {
	svc, issues, users, _ := newAssignmentFixture()
	ctx := context.Background()

	newStaffUser(users, models.RoleFieldStaff)
	admin := newCitizen(users)

	cases := []struct {
		priority models.IssuePriority
		want     time.Duration
	}{
		{models.PriorityUrgent, 5 * time.Hour},
		{models.PriorityMedium, 24 * time.Hour},
		{models.PriorityLow, 48 * time.Hour},
	}

	for _, tc := range cases {
		issue := seedIssue(issues, &models.Issue{Priority: tc.priority})
		before := time.Now()

		got, err := svc.Assign(ctx, issue.ID, "", admin)
		require.NoError(t, err)
		require.NotNil(t, got.EscalationDeadline)

		offset := got.EscalationDeadline.Sub(before)
		assert.InDelta(t, tc.want.Seconds(), offset.Seconds(), 5, "priority %s", tc.priority)
	}
}

func TestAssignToSpecificUser(t *testing.T) {
	svc, issues, users, notifier := newAssignmentFixture()
	ctx := context.Background()

	supervisor := newStaffUser(users, models.RoleSupervisor)
	admin := newCitizen(users)
	issue := seedIssue(issues, &models.Issue{Priority: models.PriorityHigh})

	got, err := svc.Assign(ctx, issue.ID, supervisor.ID.Hex(), admin)
	require.NoError(t, err)

	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, supervisor.ID, *got.AssignedTo)
	require.NotNil(t, got.AssignedRole)
	assert.Equal(t, models.TierSupervisor, *got.AssignedRole)
	require.NotNil(t, got.EscalationDeadline)

	assert.Equal(t, []string{supervisor.Email}, notifier.assignments)
}

func TestAssignToCommissionerHasNoDeadline(t *testing.T) {
	svc, issues, users, _ := newAssignmentFixture()
	ctx := context.Background()

	commissioner := newStaffUser(users, models.RoleCommissioner)
	admin := newCitizen(users)
	issue := seedIssue(issues, &models.Issue{Priority: models.PriorityUrgent})

	got, err := svc.Assign(ctx, issue.ID, commissioner.ID.Hex(), admin)
	require.NoError(t, err)

	require.NotNil(t, got.AssignedRole)
	assert.Equal(t, models.TierCommissioner, *got.AssignedRole)
	assert.Nil(t, got.EscalationDeadline, "commissioner is the terminal tier")
}

func TestAssignLegacyEmployeeRoleMapsToFieldStaff(t *testing.T) {
	svc, issues, users, _ := newAssignmentFixture()
	ctx := context.Background()

	legacy := newStaffUser(users, models.RoleEmployee)
	admin := newCitizen(users)
	issue := seedIssue(issues, &models.Issue{})

	got, err := svc.Assign(ctx, issue.ID, legacy.ID.Hex(), admin)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedRole)
	assert.Equal(t, models.TierFieldStaff, *got.AssignedRole)
}

func TestAssignRejectsIneligibleTargets(t *testing.T) {
	svc, issues, users, _ := newAssignmentFixture()
	ctx := context.Background()

	citizen := newCitizen(users)
	inactive := newStaffUser(users, models.RoleFieldStaff)
	inactive.IsActive = false
	require.NoError(t, users.Insert(ctx, inactive))

	admin := newCitizen(users)
	issue := seedIssue(issues, &models.Issue{})

	_, err := svc.Assign(ctx, issue.ID, citizen.ID.Hex(), admin)
	assert.ErrorIs(t, err, models.ErrInvalidAssignee)

	_, err = svc.Assign(ctx, issue.ID, inactive.ID.Hex(), admin)
	assert.ErrorIs(t, err, models.ErrInvalidAssignee)

	_, err = svc.Assign(ctx, issue.ID, "not-a-hex-id", admin)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	_, err = svc.Assign(ctx, issue.ID, primitive.NewObjectID().Hex(), admin)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestAutoAssignWithoutEligibleEmployees(t *testing.T) {
	svc, issues, users, _ := newAssignmentFixture()
	ctx := context.Background()

	newStaffUser(users, models.RoleFieldStaff, string(models.RoadTraffic)) // other department only
	admin := newCitizen(users)
	issue := seedIssue(issues, &models.Issue{Category: models.WaterDrainage})

	_, err := svc.Assign(ctx, issue.ID, "", admin)
	assert.ErrorIs(t, err, models.ErrNoEligibleEmployees)
}

func TestAssignRejectsSettledIssues(t *testing.T) {
	svc, issues, users, _ := newAssignmentFixture()
	ctx := context.Background()

	employee := newStaffUser(users, models.RoleFieldStaff)
	admin := newCitizen(users)

	for _, status := range []models.IssueStatus{models.StatusResolved, models.StatusClosed} {
		issue := seedIssue(issues, &models.Issue{Status: status})
		_, err := svc.Assign(ctx, issue.ID, employee.ID.Hex(), admin)
		assert.ErrorIs(t, err, models.ErrInvalidState, "status %s", status)
	}
}

func TestAssignRejectsAcceptedIssues(t *testing.T) {
	svc, issues, users, _ := newAssignmentFixture()
	ctx := context.Background()

	owner := newStaffUser(users, models.RoleFieldStaff)
	rival := newStaffUser(users, models.RoleFieldStaff)
	admin := newCitizen(users)

	issue := seedIssue(issues, &models.Issue{
		Status:       models.StatusInProgress,
		AssignedTo:   idPtr(owner.ID),
		AssignedRole: tierPtr(models.TierFieldStaff),
		AcceptedBy:   idPtr(owner.ID),
		AcceptedAt:   timePtr(time.Now()),
	})

	_, err := svc.Assign(ctx, issue.ID, rival.ID.Hex(), admin)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	unchanged, err := issues.FindByID(ctx, issue.ID)
	require.NoError(t, err)
	require.NotNil(t, unchanged.AssignedTo)
	assert.Equal(t, owner.ID, *unchanged.AssignedTo, "the accepting employee keeps the issue")
}
