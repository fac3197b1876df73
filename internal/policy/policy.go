// Package policy holds the authorization table: which roles may perform an
// action, and which ownership relations grant it to other callers.
package policy

import (
	"autorepair-shop-server/internal/apperror"
	"autorepair-shop-server/internal/models"
)

// Action names one protected operation, as "resource:verb".
type Action string

const (
	BookingCreate          Action = "booking:create"
	BookingList            Action = "booking:list"
	BookingListAssigned    Action = "booking:list-assigned"
	BookingRead            Action = "booking:read"
	BookingCancel          Action = "booking:cancel"
	BookingConfirm         Action = "booking:confirm"
	BookingAssign          Action = "booking:assign"
	BookingUpdateStatus    Action = "booking:update-status"
	BookingMarkNoShow      Action = "booking:mark-no-show"
	BookingAddNote         Action = "booking:add-note"
	BookingAddInternalNote Action = "booking:add-internal-note"
	BookingRate            Action = "booking:rate"

	ReviewCreate   Action = "review:create"
	ReviewModerate Action = "review:moderate"

	BlogComment Action = "blog:comment"

	ServiceManage Action = "service:manage"
	ProjectManage Action = "project:manage"
	BlogManage    Action = "blog:manage"
	ContactManage Action = "contact:manage"
	UploadManage  Action = "upload:manage"
	UserManage    Action = "user:manage"
	StatsRead     Action = "stats:read"
)

// Rule grants an action to every caller holding one of Roles, plus the
// resource owner when Owner is set and the assigned technician when Assignee is set.
type Rule struct {
	Roles    []models.Role
	Owner    bool
	Assignee bool
}

var (
	admin     = []models.Role{models.RoleAdmin}
	everyone  = []models.Role{models.RoleAdmin, models.RoleTechnician, models.RoleCustomer}
	staffOnly = []models.Role{models.RoleAdmin, models.RoleTechnician}
)

// Table is the authorization contract of the API.
var Table = map[Action]Rule{
	BookingCreate:          {Roles: everyone},
	BookingList:            {Roles: admin},
	BookingListAssigned:    {Roles: staffOnly},
	BookingRead:            {Roles: admin, Owner: true, Assignee: true},
	BookingCancel:          {Roles: admin, Owner: true},
	BookingConfirm:         {Roles: admin},
	BookingAssign:          {Roles: admin},
	BookingUpdateStatus:    {Roles: admin, Assignee: true},
	BookingMarkNoShow:      {Roles: admin},
	BookingAddNote:         {Roles: admin, Owner: true, Assignee: true},
	BookingAddInternalNote: {Roles: admin, Assignee: true},
	BookingRate:            {Owner: true},

	ReviewCreate:   {Owner: true},
	ReviewModerate: {Roles: admin},

	BlogComment: {Roles: everyone},

	ServiceManage: {Roles: admin},
	ProjectManage: {Roles: admin},
	BlogManage:    {Roles: admin},
	ContactManage: {Roles: admin},
	UploadManage:  {Roles: admin},
	UserManage:    {Roles: admin},
	StatsRead:     {Roles: admin},
}

// Subject is the authenticated caller.
type Subject struct {
	ID   string
	Role models.Role
}

// Owned is implemented by resources that belong to a customer.
type Owned interface {
	OwnerID() string
}

// Assigned is implemented by resources worked on by a technician.
type Assigned interface {
	AssigneeID() string
}

// Authorizer answers permission questions from a rule table.
type Authorizer struct {
	rules map[Action]Rule
}

// New returns an Authorizer over rules; nil means Table.
func New(rules map[Action]Rule) *Authorizer {
	if rules == nil {
		rules = Table
	}
	return &Authorizer{rules: rules}
}

// AllowsRole reports whether role alone is enough for action.
func (a *Authorizer) AllowsRole(role models.Role, action Action) bool {
	rule, ok := a.rules[action]
	if !ok {
		return false
	}
	for _, r := range rule.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleOnly reports whether the rule for action has no ownership clause, so
// it can be checked before the resource is loaded.
func (a *Authorizer) RoleOnly(action Action) bool {
	rule, ok := a.rules[action]
	return ok && !rule.Owner && !rule.Assignee
}

// Can reports whether subject may perform action on resource. resource may be nil
// for actions that do not target a single record.
func (a *Authorizer) Can(subject Subject, action Action, resource interface{}) bool {
	if a.AllowsRole(subject.Role, action) {
		return true
	}
	rule, ok := a.rules[action]
	if !ok || subject.ID == "" || resource == nil {
		return false
	}
	if rule.Owner {
		if owned, ok := resource.(Owned); ok && owned.OwnerID() == subject.ID {
			return true
		}
	}
	if rule.Assignee && subject.Role == models.RoleTechnician {
		if assigned, ok := resource.(Assigned); ok && assigned.AssigneeID() == subject.ID {
			return true
		}
	}
	return false
}

// Authorize is Can returning a Forbidden error.
func (a *Authorizer) Authorize(subject Subject, action Action, resource interface{}) error {
	if a.Can(subject, action, resource) {
		return nil
	}
	return apperror.Forbidden("You do not have permission to perform this action")
}
