package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	earthRadiusMeters    = 6371000.0
	geofenceRadiusMeters = 10.0

	resolutionPoints = 10
	rejectionPenalty = 5
)

// haversineMeters is the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// ResolutionService validates and finalizes resolutions: authorization,
// geofence, and the exactly-once point award for the reporting citizen.
type ResolutionService struct {
	issues   repository.IssueRepository
	users    repository.UserRepository
	notifier Notifier
}

func NewResolutionService(issues repository.IssueRepository, users repository.UserRepository, notifier Notifier) *ResolutionService {
	return &ResolutionService{issues: issues, users: users, notifier: notifier}
}

// Resolve moves an in-progress issue to resolved. Only the employee who
// accepted the claim (or an admin) may resolve; a supplied resolution
// location must fall within the geofence of the original report. The
// reporter is credited exactly once, guarded by the pointsAwarded flag; a
// failed credit aborts the whole resolution.
func (s *ResolutionService) Resolve(ctx context.Context, issueID primitive.ObjectID, actor *models.User, loc *models.GeoPoint, photo *string) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, issueID)
	if err != nil {
		return nil, err
	}

	if issue.AcceptedBy == nil {
		return nil, models.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin && *issue.AcceptedBy != actor.ID {
		return nil, models.ErrUnauthorized
	}
	if issue.Status != models.StatusInProgress {
		return nil, models.ErrInvalidState
	}

	// Geofence only applies when both sides have coordinates.
	if loc != nil && issue.Latitude != nil && issue.Longitude != nil {
		distance := haversineMeters(*issue.Latitude, *issue.Longitude, loc.Latitude, loc.Longitude)
		if distance > geofenceRadiusMeters {
			return nil, fmt.Errorf("%w: %.1fm from report location", models.ErrLocationMismatch, distance)
		}
	}

	now := time.Now()
	days := now.Sub(issue.CreatedAt).Hours() / 24
	res := models.Resolution{Photo: photo, Location: loc, ResolvedBy: actor.ID}
	entry := models.StatusChange{
		From:      models.StatusInProgress,
		To:        models.StatusResolved,
		Actor:     actor.ID,
		Timestamp: now,
	}

	updated, err := s.issues.MarkResolved(ctx, issueID, res, now, days, entry)
	if err == repository.ErrPreconditionFailed {
		return nil, models.ErrInvalidState
	}
	if err != nil {
		return nil, err
	}

	// The point award is the one side effect promoted to a hard failure:
	// resolving without crediting the reporter would break the exactly-once
	// bookkeeping irrecoverably, so the resolution is rolled back instead.
	if err := s.users.AdjustPoints(ctx, issue.ReportedBy, resolutionPoints); err != nil {
		if rbErr := s.issues.ReopenForRetry(ctx, issueID); rbErr != nil {
			log.Printf("resolution: compensation for issue %s failed: %v", issueID.Hex(), rbErr)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrPointsAward, err)
	}

	s.notifier.NotifyResolved(updated, actor)
	return updated, nil
}

// PenalizeRejectedReport deducts points from a reporter whose submission the
// quality validator rejected. Best effort: failures are logged, never
// surfaced, and never block report creation.
func (s *ResolutionService) PenalizeRejectedReport(ctx context.Context, reporter primitive.ObjectID) {
	if err := s.users.AdjustPoints(ctx, reporter, -rejectionPenalty); err != nil {
		log.Printf("resolution: penalty deduction for user %s failed: %v", reporter.Hex(), err)
	}
}
