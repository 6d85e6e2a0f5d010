package services

import (
	"context"
	"log"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentService routes issues either to one specific employee or
// department-wide to a tier. Assignment never advances the status: only an
// accepted claim moves an issue forward, so "who is responsible" stays
// decoupled from "has anyone started work".
type AssignmentService struct {
	issues   repository.IssueRepository
	users    repository.UserRepository
	notifier Notifier
}

func NewAssignmentService(issues repository.IssueRepository, users repository.UserRepository, notifier Notifier) *AssignmentService {
	return &AssignmentService{issues: issues, users: users, notifier: notifier}
}

// Assign routes the issue. An empty requestedUserID auto-assigns
// department-wide at the entry tier and fans a notification out to every
// eligible employee; otherwise the named user becomes the specific assignee
// at the tier their role maps to.
func (s *AssignmentService) Assign(ctx context.Context, issueID primitive.ObjectID, requestedUserID string, actor *models.User) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	// Re-routing stops once an employee accepts: assignedTo and acceptedBy
	// must never point at different people.
	if !issue.Status.Claimable() {
		return nil, models.ErrInvalidState
	}

	if requestedUserID != "" {
		return s.assignToUser(ctx, issue, requestedUserID, actor)
	}
	return s.assignToDepartment(ctx, issue, actor)
}

func (s *AssignmentService) assignToUser(ctx context.Context, issue *models.Issue, requestedUserID string, actor *models.User) (*models.Issue, error) {
	targetID, err := primitive.ObjectIDFromHex(requestedUserID)
	if err != nil {
		return nil, models.ErrUserNotFound
	}
	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	tier, ok := models.TierForRole[target.Role]
	if !ok || !target.IsActive {
		return nil, models.ErrInvalidAssignee
	}

	now := time.Now()
	a := repository.Assignment{
		AssignedTo: &target.ID,
		Role:       tier,
		AssignedBy: actor.ID,
		AssignedAt: now,
		Deadline:   EscalationDeadline(issue.Priority, tier, now),
	}
	entry := models.StatusChange{From: issue.Status, To: issue.Status, Actor: actor.ID, Timestamp: now}

	updated, err := s.issues.SetAssignment(ctx, issue.ID, a, entry)
	if err == repository.ErrPreconditionFailed {
		return nil, models.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyAssignment(updated, target, actor)
	return updated, nil
}

func (s *AssignmentService) assignToDepartment(ctx context.Context, issue *models.Issue, actor *models.User) (*models.Issue, error) {
	eligible, err := s.users.FindEligible(ctx, issue.Category)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, models.ErrNoEligibleEmployees
	}

	now := time.Now()
	a := repository.Assignment{
		AssignedTo: nil, // department-wide, claimable by any eligible employee
		Role:       models.TierFieldStaff,
		AssignedBy: actor.ID,
		AssignedAt: now,
		Deadline:   EscalationDeadline(issue.Priority, models.TierFieldStaff, now),
	}
	entry := models.StatusChange{From: issue.Status, To: issue.Status, Actor: actor.ID, Timestamp: now}

	updated, err := s.issues.SetAssignment(ctx, issue.ID, a, entry)
	if err == repository.ErrPreconditionFailed {
		return nil, models.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}

	// One notification intent per eligible employee; delivery is best effort
	// and never rolls the assignment back.
	for i := range eligible {
		s.notifier.NotifyAssignment(updated, &eligible[i], actor)
	}
	log.Printf("assignment: issue %s routed to %s department-wide, %d employees notified",
		updated.ID.Hex(), updated.Category, len(eligible))
	return updated, nil
}
