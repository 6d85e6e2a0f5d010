package services

import (
	"context"
	"log"
	"time"

	"civicconnect-be/models"
	"civicconnect-be/repository"
)

const escalationActor = "system"

// EscalationService promotes overdue issues one tier up the staff ladder.
type EscalationService struct {
	issues   repository.IssueRepository
	notifier Notifier
}

func NewEscalationService(issues repository.IssueRepository, notifier Notifier) *EscalationService {
	return &EscalationService{issues: issues, notifier: notifier}
}

// Tick runs one sweep: every open issue whose deadline has passed and whose
// tier is below commissioner is promoted, gets an escalation-history entry
// and a fresh deadline for the new tier. Each promotion is an independent
// conditional write, so a concurrent sweep or a slow run can never corrupt
// state; a lost write just means another sweep already handled the issue.
func (s *EscalationService) Tick(ctx context.Context, now time.Time) (int, error) {
	due, err := s.issues.FindEscalatable(ctx, now)
	if err != nil {
		return 0, err
	}

	promoted := 0
	for i := range due {
		issue := &due[i]
		if issue.AssignedRole == nil {
			continue
		}
		fromRole := *issue.AssignedRole
		toRole, ok := fromRole.Next()
		if !ok {
			continue
		}

		ev := models.EscalationEvent{
			FromRole:  fromRole,
			ToRole:    toRole,
			Timestamp: now,
			Actor:     escalationActor,
			Reason:    "escalation deadline passed",
			Priority:  issue.Priority,
		}
		entry := models.StatusChange{
			From:      issue.Status,
			To:        models.StatusEscalated,
			Timestamp: now,
		}
		deadline := EscalationDeadline(issue.Priority, toRole, now)

		updated, err := s.issues.Promote(ctx, issue.ID, fromRole, ev, deadline, entry)
		if err == repository.ErrPreconditionFailed {
			continue
		}
		if err != nil {
			log.Printf("escalation: promoting issue %s failed: %v", issue.ID.Hex(), err)
			continue
		}

		promoted++
		s.notifier.NotifyStatusChange(updated, entry.From, models.StatusEscalated, entry.Actor)
	}
	return promoted, nil
}

// StartEscalationScheduler runs Tick on a fixed interval until the returned
// stop function is called.
func StartEscalationScheduler(svc *EscalationService, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				n, err := svc.Tick(context.Background(), time.Now())
				if err != nil {
					log.Printf("escalation: sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("escalation: sweep promoted %d issue(s)", n)
				}
			}
		}
	}()

	return func() { close(done) }
}
