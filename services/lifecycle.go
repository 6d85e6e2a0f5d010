package services

import (
	"context"
	"errors"
	"log"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreateIssueInput carries the citizen-supplied fields of a new report.
type CreateIssueInput struct {
	Title       string
	Description string
	Category    models.IssueCategory
	Location    string
	Latitude    *float64
	Longitude   *float64
	Priority    models.IssuePriority // optional; defaults to medium
	Tags        []string
	Images      []string
}

// LifecycleService owns the create and close transitions and the
// admin-facing priority/detail updates. Accept and resolve live in their own
// services; escalation in the sweep.
type LifecycleService struct {
	issues     repository.IssueRepository
	users      repository.UserRepository
	assigner   *AssignmentService
	resolution *ResolutionService
	notifier   Notifier
	quality    *QualityClient
}

func NewLifecycleService(
	issues repository.IssueRepository,
	users repository.UserRepository,
	assigner *AssignmentService,
	resolution *ResolutionService,
	notifier Notifier,
	quality *QualityClient,
) *LifecycleService {
	return &LifecycleService{
		issues:     issues,
		users:      users,
		assigner:   assigner,
		resolution: resolution,
		notifier:   notifier,
		quality:    quality,
	}
}

// Create files a new report, runs it past the quality validator (best
// effort) and auto-assigns it department-wide. A validator rejection costs
// the reporter points but never blocks creation; finding no eligible staff
// leaves the issue unrouted instead of failing it.
func (s *LifecycleService) Create(ctx context.Context, reporter *models.User, in CreateIssueInput) (*models.Issue, error) {
	now := time.Now()
	issue := &models.Issue{
		ID:          primitive.NewObjectID(),
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Location:    in.Location,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Tags:        in.Tags,
		Images:      in.Images,
		Status:      models.StatusReported,
		Priority:    models.PriorityMedium,
		ReportedBy:  reporter.ID,
		StatusHistory: []models.StatusChange{
			{To: models.StatusReported, Actor: reporter.ID, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Priority != "" {
		issue.Priority = in.Priority
	}

	s.applyQualityVerdict(ctx, issue, reporter)

	if err := s.issues.Insert(ctx, issue); err != nil {
		return nil, err
	}

	assigned, err := s.assigner.Assign(ctx, issue.ID, "", reporter)
	switch {
	case err == nil:
		return assigned, nil
	case errors.Is(err, models.ErrNoEligibleEmployees):
		log.Printf("lifecycle: issue %s has no eligible staff in %s, left unrouted", issue.ID.Hex(), issue.Category)
		return issue, nil
	default:
		log.Printf("lifecycle: auto-assign of issue %s failed: %v", issue.ID.Hex(), err)
		return issue, nil
	}
}

// applyQualityVerdict consults the external validator and folds its
// suggestions into the draft. Errors and timeouts are logged and ignored.
func (s *LifecycleService) applyQualityVerdict(ctx context.Context, issue *models.Issue, reporter *models.User) {
	if !s.quality.Enabled() {
		return
	}

	req := qualityRequest{
		ReportID:    issue.ID.Hex(),
		Description: issue.Description,
		Category:    string(issue.Category),
		UserID:      reporter.ID.Hex(),
		Latitude:    issue.Latitude,
		Longitude:   issue.Longitude,
	}
	if len(issue.Images) > 0 {
		req.ImageURL = issue.Images[0]
	}

	verdict, err := s.quality.Check(ctx, req)
	if err != nil {
		log.Printf("lifecycle: quality validator unavailable for issue %s: %v", issue.ID.Hex(), err)
		return
	}

	if !verdict.Accept {
		log.Printf("lifecycle: issue %s flagged by quality validator: %s", issue.ID.Hex(), verdict.Reason)
		s.resolution.PenalizeRejectedReport(ctx, reporter.ID)
		return
	}
	if verdict.Category != "" && models.ValidCategory(verdict.Category) {
		issue.Category = models.IssueCategory(verdict.Category)
	}
	if p := verdict.SuggestedPriority(); p != "" {
		issue.Priority = models.IssuePriority(p)
	}
}

// Close ends the lifecycle: only the reporter may close, only a resolved
// issue can be closed, and a closed issue is removed from the store.
func (s *LifecycleService) Close(ctx context.Context, issueID primitive.ObjectID, actor *models.User) error {
	issue, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		return err
	}
	if issue.ReportedBy != actor.ID {
		return models.ErrUnauthorized
	}
	if issue.Status != models.StatusResolved {
		return models.ErrInvalidState
	}

	s.notifier.NotifyStatusChange(issue, models.StatusResolved, models.StatusClosed, actor.ID)
	return s.issues.Delete(ctx, issueID)
}

// SetPriority changes the priority of an open issue and recomputes its
// escalation deadline at the current tier.
func (s *LifecycleService) SetPriority(ctx context.Context, issueID primitive.ObjectID, priority models.IssuePriority, actor *models.User) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if !issue.Status.Open() {
		return nil, models.ErrInvalidState
	}

	now := time.Now()
	var deadline *time.Time
	if issue.AssignedRole != nil {
		deadline = EscalationDeadline(priority, *issue.AssignedRole, now)
	}
	entry := models.StatusChange{From: issue.Status, To: issue.Status, Actor: actor.ID, Timestamp: now}

	updated, err := s.issues.SetPriority(ctx, issueID, priority, deadline, entry)
	if err == repository.ErrPreconditionFailed {
		return nil, models.ErrInvalidState
	}
	return updated, err
}
