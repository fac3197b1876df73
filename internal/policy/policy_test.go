package policy

import (
	"testing"

	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBookingRules(t *testing.T) {
	authz := New(nil)
	tech := "tech-1"
	booking := &models.Booking{CustomerID: "cust-1", TechnicianID: &tech}

	admin := Subject{ID: "admin-1", Role: models.RoleAdmin}
	owner := Subject{ID: "cust-1", Role: models.RoleCustomer}
	stranger := Subject{ID: "cust-2", Role: models.RoleCustomer}
	assigned := Subject{ID: "tech-1", Role: models.RoleTechnician}
	otherTech := Subject{ID: "tech-2", Role: models.RoleTechnician}

	tests := []struct {
		action  Action
		subject Subject
		want    bool
	}{
		{BookingRead, admin, true},
		{BookingRead, owner, true},
		{BookingRead, assigned, true},
		{BookingRead, stranger, false},
		{BookingRead, otherTech, false},

		{BookingCancel, owner, true},
		{BookingCancel, admin, true},
		{BookingCancel, assigned, false},
		{BookingCancel, stranger, false},

		{BookingConfirm, admin, true},
		{BookingConfirm, owner, false},
		{BookingConfirm, assigned, false},

		{BookingUpdateStatus, assigned, true},
		{BookingUpdateStatus, otherTech, false},
		{BookingUpdateStatus, owner, false},
		{BookingMarkNoShow, assigned, false},
		{BookingMarkNoShow, admin, true},

		{BookingAddNote, owner, true},
		{BookingAddInternalNote, owner, false},
		{BookingAddInternalNote, assigned, true},

		{BookingRate, owner, true},
		{BookingRate, admin, false},
	}
	for _, tt := range tests {
		got := authz.Can(tt.subject, tt.action, booking)
		assert.Equal(t, tt.want, got, "%s by %s(%s)", tt.action, tt.subject.Role, tt.subject.ID)
	}
}

func TestOwnershipNeedsResource(t *testing.T) {
	authz := New(nil)
	owner := Subject{ID: "cust-1", Role: models.RoleCustomer}
	assert.False(t, authz.Can(owner, BookingCancel, nil))
	assert.False(t, authz.Can(Subject{Role: models.RoleCustomer}, BookingCancel, &models.Booking{}))
}

func TestCustomerCannotClaimAssigneeRule(t *testing.T) {
	// A customer whose id happens to be stored as technician still gets no staff rights.
	id := "cust-1"
	b := &models.Booking{CustomerID: "cust-9", TechnicianID: &id}
	assert.False(t, New(nil).Can(Subject{ID: id, Role: models.RoleCustomer}, BookingUpdateStatus, b))
}

func TestRoleOnlyAndUnknownActions(t *testing.T) {
	authz := New(nil)
	assert.True(t, authz.RoleOnly(ServiceManage))
	assert.True(t, authz.RoleOnly(BookingConfirm))
	assert.False(t, authz.RoleOnly(BookingCancel))
	assert.False(t, authz.RoleOnly(Action("unknown")))
	assert.False(t, authz.AllowsRole(models.RoleAdmin, Action("unknown")))

	for _, action := range []Action{ServiceManage, ProjectManage, BlogManage, ContactManage, UploadManage, UserManage, StatsRead} {
		assert.True(t, authz.AllowsRole(models.RoleAdmin, action), action)
		assert.False(t, authz.AllowsRole(models.RoleTechnician, action), action)
		assert.False(t, authz.AllowsRole(models.RoleCustomer, action), action)
	}
}

func TestAuthorizeReturnsForbidden(t *testing.T) {
	authz := New(map[Action]Rule{BlogComment: {Roles: []models.Role{models.RoleAdmin}}})
	err := authz.Authorize(Subject{ID: "u", Role: models.RoleCustomer}, BlogComment, nil)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	assert.NoError(t, authz.Authorize(Subject{ID: "a", Role: models.RoleAdmin}, BlogComment, nil))
}

func TestReviewCreateIsOwnerOnly(t *testing.T) {
	authz := New(nil)
	b := &models.Booking{CustomerID: "cust-1"}
	assert.True(t, authz.Can(Subject{ID: "cust-1", Role: models.RoleCustomer}, ReviewCreate, b))
	assert.False(t, authz.Can(Subject{ID: "admin", Role: models.RoleAdmin}, ReviewCreate, b))
}
