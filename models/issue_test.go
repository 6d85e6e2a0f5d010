package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStaffTierLadder(t *testing.T) {
	next, ok := TierFieldStaff.Next()
	require.True(t, ok)
	assert.Equal(t, TierSupervisor, next)

	next, ok = TierSupervisor.Next()
	require.True(t, ok)
	assert.Equal(t, TierCommissioner, next)

	_, ok = TierCommissioner.Next()
	assert.False(t, ok, "commissioner is the top of the ladder")
}

func TestTierForRole(t *testing.T) {
	assert.Equal(t, TierFieldStaff, TierForRole[RoleEmployee], "legacy employee role serves at field staff")
	assert.Equal(t, TierFieldStaff, TierForRole[RoleFieldStaff])
	assert.Equal(t, TierSupervisor, TierForRole[RoleSupervisor])
	assert.Equal(t, TierCommissioner, TierForRole[RoleCommissioner])

	_, ok := TierForRole[RoleCitizen]
	assert.False(t, ok)
	_, ok = TierForRole[RoleAdmin]
	assert.False(t, ok, "admins manage issues but do not serve on the ladder")
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusReported.Claimable())
	assert.True(t, StatusEscalated.Claimable())
	assert.False(t, StatusInProgress.Claimable())
	assert.False(t, StatusResolved.Claimable())
	assert.False(t, StatusClosed.Claimable())

	assert.True(t, StatusReported.Open())
	assert.True(t, StatusInProgress.Open())
	assert.True(t, StatusEscalated.Open())
	assert.False(t, StatusResolved.Open())
	assert.False(t, StatusClosed.Open())
}

func TestOwnershipView(t *testing.T) {
	employee := primitive.NewObjectID()
	tier := TierSupervisor

	unclaimed := &Issue{}
	assert.Equal(t, Ownership{Kind: OwnershipUnclaimed}, unclaimed.Ownership())

	department := &Issue{AssignedRole: &tier}
	assert.Equal(t, Ownership{Kind: OwnershipDepartment, Tier: tier}, department.Ownership())

	owned := &Issue{AssignedTo: &employee, AssignedRole: &tier}
	assert.Equal(t, Ownership{Kind: OwnershipEmployee, Tier: tier, Employee: employee}, owned.Ownership())
}

func TestServesDepartment(t *testing.T) {
	specific := &User{Departments: []string{string(WaterDrainage)}}
	assert.True(t, specific.ServesDepartment(WaterDrainage))
	assert.False(t, specific.ServesDepartment(RoadTraffic))

	all := &User{Departments: []string{DepartmentAll}}
	assert.True(t, all.ServesDepartment(RoadTraffic))
	assert.True(t, all.ServesDepartment(OtherCategory))

	none := &User{}
	assert.False(t, none.ServesDepartment(OtherCategory))
}

func TestValidCategoryAndPriority(t *testing.T) {
	assert.True(t, ValidCategory(string(GarbageSanitation)))
	assert.False(t, ValidCategory("Potholes"))
	assert.False(t, ValidCategory(DepartmentAll), "the All sentinel is a department, not a category")

	assert.True(t, ValidPriority("urgent"))
	assert.False(t, ValidPriority("critical"))
}
