package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// UserRole enum
type UserRole string

const (
	RoleCitizen      UserRole = "citizen"
	RoleEmployee     UserRole = "employee" // legacy alias for field staff
	RoleFieldStaff   UserRole = "field-staff"
	RoleSupervisor   UserRole = "supervisor"
	RoleCommissioner UserRole = "commissioner"
	RoleAdmin        UserRole = "admin"
)

// TierForRole maps employee roles to the escalation tier they serve at.
// Roles absent from the table cannot be assigned issues.
var TierForRole = map[UserRole]StaffTier{
	RoleEmployee:     TierFieldStaff,
	RoleFieldStaff:   TierFieldStaff,
	RoleSupervisor:   TierSupervisor,
	RoleCommissioner: TierCommissioner,
}

// IsEmployee reports whether the role serves on the escalation ladder.
func (r UserRole) IsEmployee() bool {
	_, ok := TierForRole[r]
	return ok
}

type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"`
	Password    string             `bson:"password,omitempty" json:"-"`
	Role        UserRole           `bson:"role" json:"role"`
	Departments []string           `bson:"departments,omitempty" json:"departments,omitempty"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	Points      int                `bson:"points" json:"points"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}

// ServesDepartment reports whether the employee's department set covers the
// given category, either directly or through the "All" sentinel.
func (u *User) ServesDepartment(category IssueCategory) bool {
	for _, d := range u.Departments {
		if d == DepartmentAll || d == string(category) {
			return true
		}
	}
	return false
}
