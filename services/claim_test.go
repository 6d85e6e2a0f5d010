package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newClaimFixture() (*ClaimService, *repository.MemoryIssueRepository, *repository.MemoryUserRepository, *recordingNotifier) {
	issues := repository.NewMemoryIssueRepository()
	users := repository.NewMemoryUserRepository()
	notifier := &recordingNotifier{}
	return NewClaimService(issues, users, notifier), issues, users, notifier
}

func TestAcceptMovesIssueToInProgress(t *testing.T) {
	svc, issues, users, notifier := newClaimFixture()
	ctx := context.Background()

	employee := newStaffUser(users, models.RoleFieldStaff)
	admin := newStaffUser(users, models.RoleSupervisor)
	issue := seedIssue(issues, &models.Issue{
		AssignedRole: tierPtr(models.TierFieldStaff),
		AssignedBy:   idPtr(admin.ID),
		AssignedAt:   timePtr(time.Now()),
	})

	got, err := svc.Accept(ctx, issue.ID, employee.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusInProgress, got.Status)
	require.NotNil(t, got.AcceptedBy)
	assert.Equal(t, employee.ID, *got.AcceptedBy)
	require.NotNil(t, got.AssignedTo)
	assert.Equal(t, employee.ID, *got.AssignedTo)
	assert.NotNil(t, got.AcceptedAt)

	require.NotEmpty(t, got.StatusHistory)
	last := got.StatusHistory[len(got.StatusHistory)-1]
	assert.Equal(t, models.StatusReported, last.From)
	assert.Equal(t, models.StatusInProgress, last.To)
	assert.Equal(t, employee.ID, last.Actor)

	assert.Equal(t, []models.IssueStatus{models.StatusInProgress}, notifier.changes)
}

func TestAcceptBackfillsAssignmentWhenUnrouted(t *testing.T) {
	svc, issues, users, _ := newClaimFixture()
	ctx := context.Background()

	employee := newStaffUser(users, models.RoleFieldStaff)
	issue := seedIssue(issues, &models.Issue{})

	got, err := svc.Accept(ctx, issue.ID, employee.ID)
	require.NoError(t, err)

	require.NotNil(t, got.AssignedBy)
	assert.Equal(t, employee.ID, *got.AssignedBy)
	assert.NotNil(t, got.AssignedAt)
}

// lateRoutingIssues injects an assignment right after the first issue read,
// recreating a supervisor routing that lands between a claim's snapshot and
// its conditional write.
type lateRoutingIssues struct {
	repository.IssueRepository
	route func()
	once  sync.Once
}

func (r *lateRoutingIssues) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := r.IssueRepository.FindByID(ctx, id)
	if err == nil {
		r.once.Do(r.route)
	}
	return issue, err
}

func TestAcceptPreservesAssignerRoutedAfterSnapshot(t *testing.T) {
	issues := repository.NewMemoryIssueRepository()
	users := repository.NewMemoryUserRepository()
	ctx := context.Background()

	supervisor := newStaffUser(users, models.RoleSupervisor)
	employee := newStaffUser(users, models.RoleFieldStaff)
	issue := seedIssue(issues, &models.Issue{})

	routedAt := time.Now()
	wrapped := &lateRoutingIssues{IssueRepository: issues, route: func() {
		_, err := issues.SetAssignment(ctx, issue.ID, repository.Assignment{
			AssignedTo: idPtr(employee.ID),
			Role:       models.TierFieldStaff,
			AssignedBy: supervisor.ID,
			AssignedAt: routedAt,
		}, models.StatusChange{
			From:      models.StatusReported,
			To:        models.StatusReported,
			Actor:     supervisor.ID,
			Timestamp: routedAt,
		})
		require.NoError(t, err)
	}}
	svc := NewClaimService(wrapped, users, &recordingNotifier{})

	got, err := svc.Accept(ctx, issue.ID, employee.ID)
	require.NoError(t, err)

	require.NotNil(t, got.AssignedBy)
	assert.Equal(t, supervisor.ID, *got.AssignedBy, "accepting must not overwrite the routing supervisor")
	require.NotNil(t, got.AssignedAt)
	assert.WithinDuration(t, routedAt, *got.AssignedAt, time.Second)
}

func TestConcurrentAcceptHasExactlyOneWinner(t *testing.T) {
	svc, issues, users, _ := newClaimFixture()
	ctx := context.Background()

	const contenders = 8
	employees := make([]*models.User, contenders)
	for i := range employees {
		employees[i] = newStaffUser(users, models.RoleFieldStaff)
	}
	issue := seedIssue(issues, &models.Issue{
		AssignedRole: tierPtr(models.TierFieldStaff),
	})

	var wg sync.WaitGroup
	results := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Accept(ctx, issue.ID, employees[i].ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, models.ErrAlreadyAccepted)
		}
	}
	assert.Equal(t, 1, wins, "exactly one contender may win the claim")

	final, err := issues.FindByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, final.Status)
	require.NotNil(t, final.AcceptedBy)
}

func TestAcceptRejectsIssueBoundToSomeoneElse(t *testing.T) {
	svc, issues, users, _ := newClaimFixture()
	ctx := context.Background()

	owner := newStaffUser(users, models.RoleFieldStaff)
	other := newStaffUser(users, models.RoleFieldStaff)
	issue := seedIssue(issues, &models.Issue{
		AssignedRole: tierPtr(models.TierFieldStaff),
		AssignedTo:   idPtr(owner.ID),
		AssignedBy:   idPtr(owner.ID),
	})

	_, err := svc.Accept(ctx, issue.ID, other.ID)
	assert.ErrorIs(t, err, models.ErrNotAssignedToYou)
}

func TestAcceptRejectsTerminalStatuses(t *testing.T) {
	svc, issues, users, _ := newClaimFixture()
	ctx := context.Background()

	employee := newStaffUser(users, models.RoleFieldStaff)

	for _, status := range []models.IssueStatus{models.StatusInProgress, models.StatusResolved} {
		issue := seedIssue(issues, &models.Issue{Status: status})
		_, err := svc.Accept(ctx, issue.ID, employee.ID)
		assert.ErrorIs(t, err, models.ErrInvalidState, "status %s must not be claimable", status)
	}
}

func TestAcceptEscalatedIssueIsClaimable(t *testing.T) {
	svc, issues, users, _ := newClaimFixture()
	ctx := context.Background()

	supervisor := newStaffUser(users, models.RoleSupervisor)
	issue := seedIssue(issues, &models.Issue{
		Status:       models.StatusEscalated,
		AssignedRole: tierPtr(models.TierSupervisor),
	})

	got, err := svc.Accept(ctx, issue.ID, supervisor.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
}

func TestAcceptKeepsOwnerThroughEscalation(t *testing.T) {
	svc, issues, users, _ := newClaimFixture()
	ctx := context.Background()

	owner := newStaffUser(users, models.RoleSupervisor)
	rival := newStaffUser(users, models.RoleSupervisor)
	issue := seedIssue(issues, &models.Issue{
		Status:       models.StatusEscalated,
		AssignedRole: tierPtr(models.TierSupervisor),
		AcceptedBy:   idPtr(owner.ID),
		AcceptedAt:   timePtr(time.Now().Add(-2 * time.Hour)),
	})

	// A rival can never take over an issue someone already accepted.
	_, err := svc.Accept(ctx, issue.ID, rival.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyAccepted)

	// The original owner may re-accept after the escalation sweep.
	got, err := svc.Accept(ctx, issue.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	require.NotNil(t, got.AcceptedBy)
	assert.Equal(t, owner.ID, *got.AcceptedBy)
}

func TestAcceptRejectsNonEmployees(t *testing.T) {
	svc, issues, users, _ := newClaimFixture()
	ctx := context.Background()

	citizen := newCitizen(users)
	inactive := newStaffUser(users, models.RoleFieldStaff)
	inactive.IsActive = false
	require.NoError(t, users.Insert(ctx, inactive))

	issue := seedIssue(issues, &models.Issue{})

	_, err := svc.Accept(ctx, issue.ID, citizen.ID)
	assert.ErrorIs(t, err, models.ErrForbiddenTransition)

	_, err = svc.Accept(ctx, issue.ID, inactive.ID)
	assert.ErrorIs(t, err, models.ErrForbiddenTransition)
}

func TestAcceptUnknownIssue(t *testing.T) {
	svc, _, users, _ := newClaimFixture()

	employee := newStaffUser(users, models.RoleFieldStaff)
	_, err := svc.Accept(context.Background(), primitive.NewObjectID(), employee.ID)
	assert.ErrorIs(t, err, models.ErrIssueNotFound)
}
