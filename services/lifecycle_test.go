package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLifecycleFixture(qualityURL string) (*LifecycleService, *repository.MemoryIssueRepository, *repository.MemoryUserRepository, *recordingNotifier) {
	issues := repository.NewMemoryIssueRepository()
	users := repository.NewMemoryUserRepository()
	notifier := &recordingNotifier{}
	assigner := NewAssignmentService(issues, users, notifier)
	resolutions := NewResolutionService(issues, users, notifier)
	quality := NewQualityClient(qualityURL)
	return NewLifecycleService(issues, users, assigner, resolutions, notifier, quality), issues, users, notifier
}

func TestCreateAutoAssignsToDepartment(t *testing.T) {
	svc, _, users, notifier := newLifecycleFixture("")
	ctx := context.Background()

	reporter := newCitizen(users)
	staff := newStaffUser(users, models.RoleFieldStaff, string(models.WaterDrainage))

	got, err := svc.Create(ctx, reporter, CreateIssueInput{
		Title:       "Blocked storm drain",
		Description: "Water pooling at the intersection after every rain.",
		Category:    models.WaterDrainage,
		Location:    "Main St & 2nd Ave",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusReported, got.Status)
	assert.Equal(t, models.PriorityMedium, got.Priority, "priority defaults to medium")
	assert.Equal(t, reporter.ID, got.ReportedBy)
	assert.Nil(t, got.AssignedTo)
	require.NotNil(t, got.AssignedRole)
	assert.Equal(t, models.TierFieldStaff, *got.AssignedRole)
	require.NotNil(t, got.EscalationDeadline)

	require.NotEmpty(t, got.StatusHistory)
	assert.Equal(t, models.StatusReported, got.StatusHistory[0].To)
	assert.Equal(t, reporter.ID, got.StatusHistory[0].Actor)

	assert.Equal(t, []string{staff.Email}, notifier.assignments)
}

func TestCreateWithoutStaffLeavesIssueUnrouted(t *testing.T) {
	svc, issues, users, _ := newLifecycleFixture("")
	ctx := context.Background()

	reporter := newCitizen(users)

	got, err := svc.Create(ctx, reporter, CreateIssueInput{
		Title:       "Pothole near the school",
		Description: "Deep pothole in the right lane.",
		Category:    models.RoadTraffic,
		Location:    "School Rd",
		Priority:    models.PriorityHigh,
	})
	require.NoError(t, err, "an empty staff pool must not fail creation")

	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Nil(t, got.AssignedRole)
	assert.Nil(t, got.EscalationDeadline)

	stored, err := issues.FindByID(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReported, stored.Status)
}

func TestCreateAppliesQualityVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/submit", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accept":   true,
			"status":   "accepted",
			"category": string(models.RoadTraffic),
			"urgency":  "high",
		})
	}))
	defer srv.Close()

	svc, _, users, _ := newLifecycleFixture(srv.URL)
	reporter := newCitizen(users)

	got, err := svc.Create(context.Background(), reporter, CreateIssueInput{
		Title:       "Fallen tree",
		Description: "Tree blocking both lanes.",
		Category:    models.OtherCategory,
		Location:    "Hill Rd",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoadTraffic, got.Category, "validator may recategorize")
	assert.Equal(t, models.PriorityHigh, got.Priority, "validator urgency maps to priority")
}

func TestCreatePenalizesRejectedReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accept": false,
			"status": "rejected",
			"reason": "image does not match description",
		})
	}))
	defer srv.Close()

	svc, _, users, _ := newLifecycleFixture(srv.URL)
	reporter := newCitizen(users)

	_, err := svc.Create(context.Background(), reporter, CreateIssueInput{
		Title:       "Suspicious report",
		Description: "Something vague.",
		Category:    models.OtherCategory,
		Location:    "Nowhere",
	})
	require.NoError(t, err, "a rejected report is still created")

	penalized, err := users.FindByID(context.Background(), reporter.ID)
	require.NoError(t, err)
	assert.Equal(t, -5, penalized.Points)
}

func TestCreateSurvivesValidatorOutage(t *testing.T) {
	svc, _, users, _ := newLifecycleFixture("http://127.0.0.1:1")
	reporter := newCitizen(users)

	got, err := svc.Create(context.Background(), reporter, CreateIssueInput{
		Title:       "Streetlight out",
		Description: "Dark corner at night.",
		Category:    models.StreetLighting,
		Location:    "Oak St",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StreetLighting, got.Category)
}

func TestCloseRequiresReporterAndResolvedStatus(t *testing.T) {
	svc, issues, users, _ := newLifecycleFixture("")
	ctx := context.Background()

	reporter := newCitizen(users)
	stranger := newCitizen(users)

	resolved := seedIssue(issues, &models.Issue{
		Status:     models.StatusResolved,
		ReportedBy: reporter.ID,
	})

	err := svc.Close(ctx, resolved.ID, stranger)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	open := seedIssue(issues, &models.Issue{
		Status:     models.StatusInProgress,
		ReportedBy: reporter.ID,
	})
	err = svc.Close(ctx, open.ID, reporter)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	err = svc.Close(ctx, resolved.ID, reporter)
	require.NoError(t, err)

	_, err = issues.FindByID(ctx, resolved.ID)
	assert.ErrorIs(t, err, models.ErrIssueNotFound, "a closed issue is removed")
}

func TestSetPriorityRecomputesDeadline(t *testing.T) {
	svc, issues, users, _ := newLifecycleFixture("")
	ctx := context.Background()

	admin := newStaffUser(users, models.RoleAdmin, models.DepartmentAll)
	issue := seedIssue(issues, &models.Issue{
		Priority:     models.PriorityLow,
		AssignedRole: tierPtr(models.TierFieldStaff),
	})

	got, err := svc.SetPriority(ctx, issue.ID, models.PriorityUrgent, admin)
	require.NoError(t, err)

	assert.Equal(t, models.PriorityUrgent, got.Priority)
	require.NotNil(t, got.EscalationDeadline)
	assert.WithinDuration(t, got.UpdatedAt.Add(5*time.Hour), *got.EscalationDeadline, time.Second)
}
