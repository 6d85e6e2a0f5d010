package services

import (
	"context"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClaimService gives exactly one employee ownership of an issue. The check
// and the mutation are a single conditional write at the store; a
// read-then-write pair would reintroduce the race this exists to close.
type ClaimService struct {
	issues   repository.IssueRepository
	users    repository.UserRepository
	notifier Notifier
}

func NewClaimService(issues repository.IssueRepository, users repository.UserRepository, notifier Notifier) *ClaimService {
	return &ClaimService{issues: issues, users: users, notifier: notifier}
}

// Accept claims the issue for the employee and moves it to in-progress.
// When the conditional write loses, the issue is re-read so the caller
// learns exactly why: another employee won (ErrAlreadyAccepted), the status
// does not allow claims (ErrInvalidState), or the issue is bound to someone
// else (ErrNotAssignedToYou).
func (s *ClaimService) Accept(ctx context.Context, issueID, employeeID primitive.ObjectID) (*models.Issue, error) {
	employee, err := s.users.FindByID(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if !employee.Role.IsEmployee() || !employee.IsActive {
		return nil, models.ErrForbiddenTransition
	}

	snapshot, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entry := models.StatusChange{
		From:      snapshot.Status,
		To:        models.StatusInProgress,
		Actor:     employeeID,
		Timestamp: now,
	}
	updated, err := s.issues.TryClaim(ctx, issueID, employeeID, now, entry)
	if err == repository.ErrPreconditionFailed {
		return nil, s.explainFailure(ctx, issueID, employeeID)
	}
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyStatusChange(updated, entry.From, models.StatusInProgress, employeeID)
	return updated, nil
}

// explainFailure re-reads the issue after a lost claim and picks the most
// specific error for the caller.
func (s *ClaimService) explainFailure(ctx context.Context, issueID, employeeID primitive.ObjectID) error {
	cur, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		return err
	}
	switch {
	case cur.AcceptedBy != nil && *cur.AcceptedBy != employeeID:
		return models.ErrAlreadyAccepted
	case !cur.Status.Claimable():
		return models.ErrInvalidState
	case cur.AssignedTo != nil && *cur.AssignedTo != employeeID:
		return models.ErrNotAssignedToYou
	}
	// The precondition held on re-read; the claim lost to a transient
	// concurrent change and is safe to retry.
	return models.ErrInvalidState
}
