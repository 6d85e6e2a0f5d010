package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"civicconnect-be/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/gomail.v2"
)

// Notifier is the fire-and-forget notification collaborator. Implementations
// must never fail the calling state transition: delivery problems are logged
// and swallowed.
type Notifier interface {
	NotifyAssignment(issue *models.Issue, employee *models.User, actor *models.User)
	NotifyStatusChange(issue *models.Issue, from, to models.IssueStatus, actor primitive.ObjectID)
	NotifyResolved(issue *models.Issue, actor *models.User)
}

// NotificationEvent is one entry of the outbound event queue. Side effects
// are recorded here and delivered asynchronously so a delivery failure stays
// observable without being conflated with the state transition that caused it.
type NotificationEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	IssueID    string    `json:"issueId"`
	IssueTitle string    `json:"issueTitle"`
	Recipient  string    `json:"recipient,omitempty"`
	FromStatus string    `json:"fromStatus,omitempty"`
	ToStatus   string    `json:"toStatus,omitempty"`
	Actor      string    `json:"actor,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

const (
	eventAssignment   = "assignment"
	eventStatusChange = "status-change"
	eventResolved     = "resolved"
)

// RedisNotifier pushes notification events onto a redis list consumed by the
// notification worker.
type RedisNotifier struct {
	client *redis.Client
	queue  string
}

func NewRedisNotifier(client *redis.Client, queue string) *RedisNotifier {
	return &RedisNotifier{client: client, queue: queue}
}

func (n *RedisNotifier) enqueue(ev NotificationEvent) {
	ev.ID = uuid.NewString()
	ev.CreatedAt = time.Now()

	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notifier: failed to encode %s event for issue %s: %v", ev.Type, ev.IssueID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := n.client.LPush(ctx, n.queue, payload).Err(); err != nil {
		log.Printf("notifier: failed to enqueue %s event for issue %s: %v", ev.Type, ev.IssueID, err)
	}
}

func (n *RedisNotifier) NotifyAssignment(issue *models.Issue, employee *models.User, actor *models.User) {
	ev := NotificationEvent{
		Type:       eventAssignment,
		IssueID:    issue.ID.Hex(),
		IssueTitle: issue.Title,
		Recipient:  employee.Email,
		Actor:      actor.ID.Hex(),
	}
	n.enqueue(ev)
}

func (n *RedisNotifier) NotifyStatusChange(issue *models.Issue, from, to models.IssueStatus, actor primitive.ObjectID) {
	ev := NotificationEvent{
		Type:       eventStatusChange,
		IssueID:    issue.ID.Hex(),
		IssueTitle: issue.Title,
		FromStatus: string(from),
		ToStatus:   string(to),
	}
	if !actor.IsZero() {
		ev.Actor = actor.Hex()
	}
	n.enqueue(ev)
}

func (n *RedisNotifier) NotifyResolved(issue *models.Issue, actor *models.User) {
	ev := NotificationEvent{
		Type:       eventResolved,
		IssueID:    issue.ID.Hex(),
		IssueTitle: issue.Title,
		FromStatus: string(models.StatusInProgress),
		ToStatus:   string(models.StatusResolved),
		Actor:      actor.ID.Hex(),
	}
	n.enqueue(ev)
}

// MailSettings configures the notification worker's SMTP delivery. A zero
// Host disables mail and the worker only logs events.
type MailSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// StartNotificationWorker drains the outbound queue: each event is logged
// and, when mail is configured and the event names a recipient, emailed.
// Returns a stop function.
func StartNotificationWorker(client *redis.Client, queue string, mail MailSettings) func() {
	done := make(chan struct{})

	var dialer *gomail.Dialer
	if mail.Host != "" {
		dialer = gomail.NewDialer(mail.Host, mail.Port, mail.User, mail.Password)
	}

	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}

			res, err := client.BRPop(context.Background(), 5*time.Second, queue).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				log.Printf("notifier: queue read failed: %v", err)
				time.Sleep(time.Second)
				continue
			}
			if len(res) < 2 {
				continue
			}

			var ev NotificationEvent
			if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
				log.Printf("notifier: dropping malformed event: %v", err)
				continue
			}

			log.Printf("notifier: %s issue=%s title=%q from=%s to=%s recipient=%s",
				ev.Type, ev.IssueID, ev.IssueTitle, ev.FromStatus, ev.ToStatus, ev.Recipient)

			if dialer != nil && ev.Recipient != "" {
				sendEventMail(dialer, mail.From, ev)
			}
		}
	}()

	return func() { close(done) }
}

// sendEventMail delivers one event by email, retrying with backoff.
func sendEventMail(dialer *gomail.Dialer, from string, ev NotificationEvent) {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", ev.Recipient)
	msg.SetHeader("Subject", "CivicConnect: update on issue "+ev.IssueTitle)
	msg.SetBody("text/plain", eventMailBody(ev))

	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if lastErr = dialer.DialAndSend(msg); lastErr == nil {
			return
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	log.Printf("notifier: mail delivery to %s failed: %v", ev.Recipient, lastErr)
}

func eventMailBody(ev NotificationEvent) string {
	switch ev.Type {
	case eventAssignment:
		return "A civic issue has been routed to your department: " + ev.IssueTitle
	case eventResolved:
		return "Issue resolved: " + ev.IssueTitle
	default:
		return "Issue " + ev.IssueTitle + " moved from " + ev.FromStatus + " to " + ev.ToStatus
	}
}
