package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"civicconnect-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryIssueRepository is a mutex-guarded in-memory IssueRepository. Each
// conditional transition holds the lock across check and mutation, giving the
// same atomicity the mongo implementation gets from FindOneAndUpdate. Used by
// the service tests and for running without a database.
type MemoryIssueRepository struct {
	mu     sync.Mutex
	issues map[primitive.ObjectID]*models.Issue
}

func NewMemoryIssueRepository() *MemoryIssueRepository {
	return &MemoryIssueRepository{issues: make(map[primitive.ObjectID]*models.Issue)}
}

func copyIssue(src *models.Issue) *models.Issue {
	dst := *src
	dst.Tags = append([]string(nil), src.Tags...)
	dst.Images = append([]string(nil), src.Images...)
	dst.EscalationHistory = append([]models.EscalationEvent(nil), src.EscalationHistory...)
	dst.StatusHistory = append([]models.StatusChange(nil), src.StatusHistory...)
	if src.AssignedTo != nil {
		v := *src.AssignedTo
		dst.AssignedTo = &v
	}
	if src.AssignedRole != nil {
		v := *src.AssignedRole
		dst.AssignedRole = &v
	}
	if src.AssignedBy != nil {
		v := *src.AssignedBy
		dst.AssignedBy = &v
	}
	if src.AssignedAt != nil {
		v := *src.AssignedAt
		dst.AssignedAt = &v
	}
	if src.AcceptedBy != nil {
		v := *src.AcceptedBy
		dst.AcceptedBy = &v
	}
	if src.AcceptedAt != nil {
		v := *src.AcceptedAt
		dst.AcceptedAt = &v
	}
	if src.EscalationDeadline != nil {
		v := *src.EscalationDeadline
		dst.EscalationDeadline = &v
	}
	if src.ResolvedAt != nil {
		v := *src.ResolvedAt
		dst.ResolvedAt = &v
	}
	if src.Resolved != nil {
		v := *src.Resolved
		dst.Resolved = &v
	}
	if src.ActualResolutionTime != nil {
		v := *src.ActualResolutionTime
		dst.ActualResolutionTime = &v
	}
	return &dst
}

func (r *MemoryIssueRepository) Insert(ctx context.Context, issue *models.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	r.issues[issue.ID] = copyIssue(issue)
	return nil
}

func (r *MemoryIssueRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, models.ErrIssueNotFound
	}
	return copyIssue(issue), nil
}

func (r *MemoryIssueRepository) Find(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []models.Issue
	for _, issue := range r.issues {
		if f.Category != "" && f.Category != "all" && string(issue.Category) != f.Category {
			continue
		}
		if f.Status != "" && f.Status != "all" && string(issue.Status) != f.Status {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(issue.Title), needle) &&
				!strings.Contains(strings.ToLower(issue.Description), needle) {
				continue
			}
		}
		if f.ReportedBy != nil && issue.ReportedBy != *f.ReportedBy {
			continue
		}
		matched = append(matched, *copyIssue(issue))
	}

	sort.Slice(matched, func(i, j int) bool {
		if f.Sort == "oldest" {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if f.Skip > 0 {
		if f.Skip >= total {
			return nil, total, nil
		}
		matched = matched[f.Skip:]
	}
	if f.Limit > 0 && int64(len(matched)) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (r *MemoryIssueRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.issues[id]; !ok {
		return models.ErrIssueNotFound
	}
	delete(r.issues, id)
	return nil
}

func (r *MemoryIssueRepository) UpdateContent(ctx context.Context, id primitive.ObjectID, u IssueContentUpdate) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok || issue.Status != models.StatusReported {
		return nil, ErrPreconditionFailed
	}
	if u.Title != nil {
		issue.Title = *u.Title
	}
	if u.Description != nil {
		issue.Description = *u.Description
	}
	if u.Category != nil {
		issue.Category = *u.Category
	}
	if u.Location != nil {
		issue.Location = *u.Location
	}
	if u.Latitude != nil {
		v := *u.Latitude
		issue.Latitude = &v
	}
	if u.Longitude != nil {
		v := *u.Longitude
		issue.Longitude = &v
	}
	if u.Tags != nil {
		issue.Tags = append([]string(nil), u.Tags...)
	}
	if u.Images != nil {
		issue.Images = append([]string(nil), u.Images...)
	}
	issue.UpdatedAt = time.Now()
	return copyIssue(issue), nil
}

func (r *MemoryIssueRepository) SetAssignment(ctx context.Context, id primitive.ObjectID, a Assignment, entry models.StatusChange) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok || !issue.Status.Claimable() {
		return nil, ErrPreconditionFailed
	}
	issue.AssignedTo = nil
	if a.AssignedTo != nil {
		to := *a.AssignedTo
		issue.AssignedTo = &to
	}
	role := a.Role
	issue.AssignedRole = &role
	by := a.AssignedBy
	issue.AssignedBy = &by
	at := a.AssignedAt
	issue.AssignedAt = &at
	issue.EscalationDeadline = nil
	if a.Deadline != nil {
		dl := *a.Deadline
		issue.EscalationDeadline = &dl
	}
	issue.UpdatedAt = a.AssignedAt
	issue.StatusHistory = append(issue.StatusHistory, entry)
	return copyIssue(issue), nil
}

func (r *MemoryIssueRepository) SetPriority(ctx context.Context, id primitive.ObjectID, priority models.IssuePriority, deadline *time.Time, entry models.StatusChange) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok || !issue.Status.Open() {
		return nil, ErrPreconditionFailed
	}
	issue.Priority = priority
	issue.EscalationDeadline = nil
	if deadline != nil {
		dl := *deadline
		issue.EscalationDeadline = &dl
	}
	issue.UpdatedAt = entry.Timestamp
	issue.StatusHistory = append(issue.StatusHistory, entry)
	return copyIssue(issue), nil
}

func (r *MemoryIssueRepository) TryClaim(ctx context.Context, id, employee primitive.ObjectID, now time.Time, entry models.StatusChange) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok {
		return nil, ErrPreconditionFailed
	}
	if !issue.Status.Claimable() {
		return nil, ErrPreconditionFailed
	}
	if issue.AcceptedBy != nil && *issue.AcceptedBy != employee {
		return nil, ErrPreconditionFailed
	}
	if issue.AssignedTo != nil && *issue.AssignedTo != employee {
		return nil, ErrPreconditionFailed
	}
	emp := employee
	ts := now
	issue.Status = models.StatusInProgress
	issue.AcceptedBy = &emp
	issue.AcceptedAt = &ts
	issue.AssignedTo = &emp
	// Backfill is decided here, under the lock, so a routing that landed
	// after the caller's read keeps its real assigner.
	if issue.AssignedBy == nil {
		issue.AssignedBy = &emp
		issue.AssignedAt = &ts
	}
	issue.UpdatedAt = now
	issue.StatusHistory = append(issue.StatusHistory, entry)
	return copyIssue(issue), nil
}

func (r *MemoryIssueRepository) MarkResolved(ctx context.Context, id primitive.ObjectID, res models.Resolution, resolvedAt time.Time, days float64, entry models.StatusChange) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok || issue.Status != models.StatusInProgress || issue.PointsAwarded {
		return nil, ErrPreconditionFailed
	}
	resolution := res
	ts := resolvedAt
	d := days
	issue.Status = models.StatusResolved
	issue.Resolved = &resolution
	issue.ResolvedAt = &ts
	issue.ActualResolutionTime = &d
	issue.PointsAwarded = true
	issue.UpdatedAt = resolvedAt
	issue.StatusHistory = append(issue.StatusHistory, entry)
	return copyIssue(issue), nil
}

func (r *MemoryIssueRepository) ReopenForRetry(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok || issue.Status != models.StatusResolved || !issue.PointsAwarded {
		return ErrPreconditionFailed
	}
	issue.Status = models.StatusInProgress
	issue.PointsAwarded = false
	issue.Resolved = nil
	issue.ResolvedAt = nil
	issue.ActualResolutionTime = nil
	issue.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryIssueRepository) Promote(ctx context.Context, id primitive.ObjectID, fromRole models.StaffTier, ev models.EscalationEvent, deadline *time.Time, entry models.StatusChange) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	issue, ok := r.issues[id]
	if !ok || !issue.Status.Open() {
		return nil, ErrPreconditionFailed
	}
	if issue.AssignedRole == nil || *issue.AssignedRole != fromRole {
		return nil, ErrPreconditionFailed
	}
	if issue.EscalationDeadline == nil || issue.EscalationDeadline.After(ev.Timestamp) {
		return nil, ErrPreconditionFailed
	}
	to := ev.ToRole
	ts := ev.Timestamp
	issue.Status = models.StatusEscalated
	issue.AssignedRole = &to
	issue.AssignedAt = &ts
	issue.EscalationDeadline = nil
	if deadline != nil {
		dl := *deadline
		issue.EscalationDeadline = &dl
	}
	issue.UpdatedAt = ev.Timestamp
	issue.EscalationHistory = append(issue.EscalationHistory, ev)
	issue.StatusHistory = append(issue.StatusHistory, entry)
	return copyIssue(issue), nil
}

func (r *MemoryIssueRepository) FindEscalatable(ctx context.Context, now time.Time) ([]models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []models.Issue
	for _, issue := range r.issues {
		if !issue.Status.Open() {
			continue
		}
		if issue.AssignedRole == nil || *issue.AssignedRole == models.TierCommissioner {
			continue
		}
		if issue.EscalationDeadline == nil || issue.EscalationDeadline.After(now) {
			continue
		}
		due = append(due, *copyIssue(issue))
	}
	return due, nil
}

// MemoryUserRepository is the in-memory counterpart of MongoUserRepository.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *MemoryUserRepository) Insert(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	u := *user
	u.Departments = append([]string(nil), user.Departments...)
	r.users[user.ID] = &u
	return nil
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			u := *user
			return &u, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (r *MemoryUserRepository) CountByEmail(ctx context.Context, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, user := range r.users {
		if user.Email == email {
			n++
		}
	}
	return n, nil
}

func (r *MemoryUserRepository) FindEligible(ctx context.Context, category models.IssueCategory) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var eligible []models.User
	for _, user := range r.users {
		if !user.IsActive || !user.Role.IsEmployee() {
			continue
		}
		if user.ServesDepartment(category) {
			eligible = append(eligible, *user)
		}
	}
	return eligible, nil
}

func (r *MemoryUserRepository) AdjustPoints(ctx context.Context, id primitive.ObjectID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	user.Points += delta
	return nil
}
