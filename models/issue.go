package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum; a category doubles as the department the issue is routed to
type IssueCategory string

const (
	RoadTraffic       IssueCategory = "Road & Traffic"
	StreetLighting    IssueCategory = "Street Lighting"
	WaterDrainage     IssueCategory = "Water & Drainage"
	GarbageSanitation IssueCategory = "Garbage & Sanitation"
	ParksRecreation   IssueCategory = "Parks & Recreation"
	OtherCategory     IssueCategory = "Other"
)

// DepartmentAll is the sentinel department matching every category.
const DepartmentAll = "All"

var validCategories = map[IssueCategory]bool{
	RoadTraffic: true, StreetLighting: true, WaterDrainage: true,
	GarbageSanitation: true, ParksRecreation: true, OtherCategory: true,
}

func ValidCategory(c string) bool {
	return validCategories[IssueCategory(c)]
}

// IssueStatus enum
type IssueStatus string

const (
	StatusReported   IssueStatus = "reported"
	StatusInProgress IssueStatus = "in-progress"
	StatusResolved   IssueStatus = "resolved"
	StatusClosed     IssueStatus = "closed"
	StatusEscalated  IssueStatus = "escalated"
)

// IssuePriority enum
type IssuePriority string

const (
	PriorityLow    IssuePriority = "low"
	PriorityMedium IssuePriority = "medium"
	PriorityHigh   IssuePriority = "high"
	PriorityUrgent IssuePriority = "urgent"
)

func ValidPriority(p string) bool {
	switch IssuePriority(p) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// StaffTier is the escalation ladder an unresolved issue climbs.
type StaffTier string

const (
	TierFieldStaff   StaffTier = "field-staff"
	TierSupervisor   StaffTier = "supervisor"
	TierCommissioner StaffTier = "commissioner"
)

// Next returns the tier an overdue issue is promoted to. Commissioner is
// terminal and has no successor.
func (t StaffTier) Next() (StaffTier, bool) {
	switch t {
	case TierFieldStaff:
		return TierSupervisor, true
	case TierSupervisor:
		return TierCommissioner, true
	}
	return "", false
}

// GeoPoint is a latitude/longitude pair in degrees.
type GeoPoint struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// StatusChange is one entry of the append-only status audit log. A zero
// Actor means the escalation sweep, not a user.
type StatusChange struct {
	From      IssueStatus        `bson:"from,omitempty" json:"from,omitempty"`
	To        IssueStatus        `bson:"to" json:"to"`
	Actor     primitive.ObjectID `bson:"actor,omitempty" json:"actor,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// EscalationEvent records one tier promotion.
type EscalationEvent struct {
	FromRole  StaffTier     `bson:"fromRole" json:"fromRole"`
	ToRole    StaffTier     `bson:"toRole" json:"toRole"`
	Timestamp time.Time     `bson:"timestamp" json:"timestamp"`
	Actor     string        `bson:"actor" json:"actor"`
	Reason    string        `bson:"reason" json:"reason"`
	Priority  IssuePriority `bson:"priority" json:"priority"`
}

// Resolution captures what the resolving employee submitted.
type Resolution struct {
	Photo      *string            `bson:"photo,omitempty" json:"photo,omitempty"`
	Location   *GeoPoint          `bson:"location,omitempty" json:"location,omitempty"`
	ResolvedBy primitive.ObjectID `bson:"resolvedBy" json:"resolvedBy"`
}

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    IssueCategory      `bson:"category" json:"category"`
	Location    string             `bson:"location" json:"location"`
	Latitude    *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude   *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Tags        []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	Images      []string           `bson:"images,omitempty" json:"images,omitempty"`
	Status      IssueStatus        `bson:"status" json:"status"`
	Priority    IssuePriority      `bson:"priority" json:"priority"`

	ReportedBy primitive.ObjectID `bson:"reportedBy" json:"reportedBy"`

	AssignedTo   *primitive.ObjectID `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	AssignedRole *StaffTier          `bson:"assignedRole,omitempty" json:"assignedRole,omitempty"`
	AssignedBy   *primitive.ObjectID `bson:"assignedBy,omitempty" json:"assignedBy,omitempty"`
	AssignedAt   *time.Time          `bson:"assignedAt,omitempty" json:"assignedAt,omitempty"`

	AcceptedBy *primitive.ObjectID `bson:"acceptedBy,omitempty" json:"acceptedBy,omitempty"`
	AcceptedAt *time.Time          `bson:"acceptedAt,omitempty" json:"acceptedAt,omitempty"`

	EscalationDeadline *time.Time        `bson:"escalationDeadline,omitempty" json:"escalationDeadline,omitempty"`
	EscalationHistory  []EscalationEvent `bson:"escalationHistory,omitempty" json:"escalationHistory,omitempty"`

	ResolvedAt           *time.Time  `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	Resolved             *Resolution `bson:"resolved,omitempty" json:"resolved,omitempty"`
	ActualResolutionTime *float64    `bson:"actualResolutionTime,omitempty" json:"actualResolutionTime,omitempty"`
	PointsAwarded        bool        `bson:"pointsAwarded" json:"pointsAwarded"`

	StatusHistory []StatusChange `bson:"statusHistory,omitempty" json:"statusHistory,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// OwnershipKind discriminates the three ownership states of an issue.
type OwnershipKind int

const (
	// OwnershipUnclaimed means the issue has not been routed anywhere.
	OwnershipUnclaimed OwnershipKind = iota
	// OwnershipDepartment means the issue is routed to a tier without a
	// specific owner and is claimable by any matching employee.
	OwnershipDepartment
	// OwnershipEmployee means the issue is bound to one employee.
	OwnershipEmployee
)

// Ownership is the explicit view over the nullable assignment fields so
// callers do not null-check them directly.
type Ownership struct {
	Kind     OwnershipKind
	Tier     StaffTier          // set for Department and Employee
	Employee primitive.ObjectID // set for Employee
}

func (i *Issue) Ownership() Ownership {
	switch {
	case i.AssignedTo != nil:
		o := Ownership{Kind: OwnershipEmployee, Employee: *i.AssignedTo}
		if i.AssignedRole != nil {
			o.Tier = *i.AssignedRole
		}
		return o
	case i.AssignedRole != nil:
		return Ownership{Kind: OwnershipDepartment, Tier: *i.AssignedRole}
	}
	return Ownership{Kind: OwnershipUnclaimed}
}

// Claimable reports whether the status allows an employee to accept the
// issue. An escalated issue is acceptance-equivalent to a reported one.
func (s IssueStatus) Claimable() bool {
	return s == StatusReported || s == StatusEscalated
}

// Open reports whether the issue is still in flight (not resolved or closed).
func (s IssueStatus) Open() bool {
	return s != StatusResolved && s != StatusClosed
}
