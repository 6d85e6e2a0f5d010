package repository

import (
	"context"
	"errors"
	"time"

	"civicconnect-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrPreconditionFailed reports a conditional write whose precondition no
// longer held at the instant of application. Callers re-read the record to
// find out why.
var ErrPreconditionFailed = errors.New("precondition failed")

// Assignment is the full set of ownership fields rewritten by an assign
// operation. A nil AssignedTo routes the issue department-wide.
type Assignment struct {
	AssignedTo *primitive.ObjectID
	Role       models.StaffTier
	AssignedBy primitive.ObjectID
	AssignedAt time.Time
	Deadline   *time.Time
}

// IssueContentUpdate carries the citizen-editable fields; nil means leave
// unchanged.
type IssueContentUpdate struct {
	Title       *string
	Description *string
	Category    *models.IssueCategory
	Location    *string
	Latitude    *float64
	Longitude   *float64
	Tags        []string
	Images      []string
}

// IssueFilter narrows and pages an issue listing.
type IssueFilter struct {
	Category   string
	Status     string
	Search     string
	ReportedBy *primitive.ObjectID
	Sort       string // "newest" or "oldest"
	Skip       int64
	Limit      int64
}

// IssueRepository is the storage contract of the lifecycle core: lookups plus
// single atomic conditional transitions. Every method that carries a
// precondition applies the check and the mutation as one operation at the
// store and returns ErrPreconditionFailed when the check does not hold.
type IssueRepository interface {
	Insert(ctx context.Context, issue *models.Issue) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Find(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error

	// UpdateContent edits the report's content fields while no work has
	// started on it (status still reported).
	UpdateContent(ctx context.Context, id primitive.ObjectID, u IssueContentUpdate) (*models.Issue, error)

	// SetAssignment rewrites the assignment fields and deadline while the
	// issue is still claimable (no employee has accepted yet), appending
	// one status-history entry.
	SetAssignment(ctx context.Context, id primitive.ObjectID, a Assignment, entry models.StatusChange) (*models.Issue, error)

	// SetPriority changes the priority and recomputed deadline of an open
	// issue, appending one status-history entry.
	SetPriority(ctx context.Context, id primitive.ObjectID, priority models.IssuePriority, deadline *time.Time, entry models.StatusChange) (*models.Issue, error)

	// TryClaim is the exclusive-accept write. It succeeds only while the
	// status is claimable, acceptedBy is unset or already the claiming
	// employee and assignedTo is unset or already the claiming employee; on
	// success it moves the issue to in-progress, records the claim and
	// stamps any assignment fields still empty at the instant the write
	// applies.
	TryClaim(ctx context.Context, id, employee primitive.ObjectID, now time.Time, entry models.StatusChange) (*models.Issue, error)

	// MarkResolved finalizes a resolution. It succeeds only while the status
	// is exactly in-progress and points have not been awarded yet.
	MarkResolved(ctx context.Context, id primitive.ObjectID, res models.Resolution, resolvedAt time.Time, days float64, entry models.StatusChange) (*models.Issue, error)

	// ReopenForRetry compensates a resolution whose point award failed,
	// putting the issue back to in-progress with the award guard cleared.
	ReopenForRetry(ctx context.Context, id primitive.ObjectID) error

	// Promote bumps an overdue issue one tier up. It succeeds only while the
	// issue still sits at fromRole with its deadline in the past.
	Promote(ctx context.Context, id primitive.ObjectID, fromRole models.StaffTier, ev models.EscalationEvent, deadline *time.Time, entry models.StatusChange) (*models.Issue, error)

	// FindEscalatable returns all issues whose escalation deadline has passed
	// and which can still climb a tier.
	FindEscalatable(ctx context.Context, now time.Time) ([]models.Issue, error)
}

// UserRepository covers the read-mostly user records. Point balances are the
// one mutable field and move only through atomic increments.
type UserRepository interface {
	Insert(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CountByEmail(ctx context.Context, email string) (int64, error)

	// FindEligible returns the active employees whose department set covers
	// the category (directly or via the "All" sentinel).
	FindEligible(ctx context.Context, category models.IssueCategory) ([]models.User, error)

	// AdjustPoints adds delta to the user's point balance as an atomic
	// increment at the store.
	AdjustPoints(ctx context.Context, id primitive.ObjectID, delta int) error
}
