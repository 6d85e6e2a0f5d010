package services

import (
	"context"
	"sync"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// recordingNotifier captures every notification so tests can assert on
// fan-out without redis.
type recordingNotifier struct {
	mu          sync.Mutex
	assignments []string // employee emails
	changes     []models.IssueStatus
	resolved    int
}

func (n *recordingNotifier) NotifyAssignment(issue *models.Issue, employee *models.User, actor *models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assignments = append(n.assignments, employee.Email)
}

func (n *recordingNotifier) NotifyStatusChange(issue *models.Issue, from, to models.IssueStatus, actor primitive.ObjectID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, to)
}

func (n *recordingNotifier) NotifyResolved(issue *models.Issue, actor *models.User) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved++
}

func newStaffUser(users *repository.MemoryUserRepository, role models.UserRole, departments ...string) *models.User {
	if len(departments) == 0 {
		departments = []string{models.DepartmentAll}
	}
	u := &models.User{
		ID:          primitive.NewObjectID(),
		Name:        "Staff Member",
		Email:       primitive.NewObjectID().Hex() + "@city.gov",
		Role:        role,
		Departments: departments,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	_ = users.Insert(context.Background(), u)
	return u
}

func newCitizen(users *repository.MemoryUserRepository) *models.User {
	u := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      "Citizen",
		Email:     primitive.NewObjectID().Hex() + "@example.com",
		Role:      models.RoleCitizen,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	_ = users.Insert(context.Background(), u)
	return u
}

func seedIssue(issues *repository.MemoryIssueRepository, issue *models.Issue) *models.Issue {
	now := time.Now()
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if issue.Title == "" {
		issue.Title = "Broken streetlight on 5th Avenue"
	}
	if issue.Description == "" {
		issue.Description = "The streetlight has been out for three nights."
	}
	if issue.Category == "" {
		issue.Category = models.StreetLighting
	}
	if issue.Status == "" {
		issue.Status = models.StatusReported
	}
	if issue.Priority == "" {
		issue.Priority = models.PriorityMedium
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now
	_ = issues.Insert(context.Background(), issue)
	return issue
}

func timePtr(t time.Time) *time.Time { return &t }

func tierPtr(t models.StaffTier) *models.StaffTier { return &t }

func idPtr(id primitive.ObjectID) *primitive.ObjectID { return &id }

func floatPtr(f float64) *float64 { return &f }
