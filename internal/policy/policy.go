// Package policy decides which role may perform which action on which resource.
// It is pure: callers load the resource and pass it in.
package policy

import (
	"workflow/backend/internal/model"
	apperrors "workflow/backend/pkg/errors"
)

// ErrForbidden is returned by Authorize when the actor lacks the permission.
var ErrForbidden = apperrors.New(apperrors.ErrForbidden, "permission denied")

// Action names one guarded operation.
type Action string

const (
	UserList       Action = "user.list"
	UserRead       Action = "user.read"
	UserUpdate     Action = "user.update"
	UserDelete     Action = "user.delete"
	UserAssignRole Action = "user.assign_role"

	ProfileRead   Action = "profile.read"
	ProfileUpdate Action = "profile.update"

	ProjectCreate       Action = "project.create"
	ProjectUpdate       Action = "project.update"
	ProjectDelete       Action = "project.delete"
	ProjectList         Action = "project.list"
	ProjectRead         Action = "project.read"
	ProjectSetStatus    Action = "project.set_status"
	ProjectAddMember    Action = "project.add_member"
	ProjectRemoveMember Action = "project.remove_member"
	ProjectListManaged  Action = "project.list_managed"
	ProjectListJoined   Action = "project.list_joined"
	ProjectOverview     Action = "project.overview"

	TimetableRead    Action = "timetable.read"
	TimetableReplace Action = "timetable.replace"

	StudentPool Action = "student.pool"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID uint
	Role   model.Role
}

// Resource is what an action targets. Only the fields relevant to the action
// need to be set: Project for project actions, OwnerID for profile and
// timetable actions. OwnerRole matters when a PM reads someone else's timetable.
type Resource struct {
	Project   *model.Project
	OwnerID   uint
	OwnerRole model.Role
}

// ProjectResource wraps a loaded project.
func ProjectResource(p *model.Project) Resource { return Resource{Project: p} }

// OwnedBy targets a user-owned resource such as a profile or timetable.
func OwnedBy(userID uint) Resource { return Resource{OwnerID: userID} }

// UserResource targets a loaded user's resources, carrying the owner's role.
func UserResource(u *model.User) Resource { return Resource{OwnerID: u.ID, OwnerRole: u.Role} }

// None is used for actions that do not target a specific resource.
var None = Resource{}

// CanPerform reports whether actor may perform action on res.
func CanPerform(actor Actor, action Action, res Resource) bool {
	switch actor.Role {
	case model.RoleAdmin:
		return knownAction(action)
	case model.RolePM:
		return pmCan(actor, action, res)
	case model.RoleStudent:
		return studentCan(actor, action, res)
	}
	return false
}

// Authorize is CanPerform returning ErrForbidden on denial.
func Authorize(actor Actor, action Action, res Resource) error {
	if !CanPerform(actor, action, res) {
		return ErrForbidden
	}
	return nil
}

func pmCan(actor Actor, action Action, res Resource) bool {
	switch action {
	case ProfileRead, ProfileUpdate:
		return res.OwnerID == actor.UserID
	case ProjectRead, ProjectSetStatus, ProjectAddMember, ProjectRemoveMember:
		return res.Project != nil && res.Project.IsManagedBy(actor.UserID)
	case TimetableRead:
		return res.OwnerRole == model.RoleStudent
	case ProjectListManaged, StudentPool:
		return true
	}
	return false
}

func studentCan(actor Actor, action Action, res Resource) bool {
	switch action {
	case ProfileRead, ProfileUpdate, TimetableRead, TimetableReplace:
		return res.OwnerID == actor.UserID
	case ProjectRead:
		return res.Project != nil && res.Project.HasMember(actor.UserID)
	case ProjectListJoined:
		return true
	}
	return false
}

func knownAction(a Action) bool {
	switch a {
	case UserList, UserRead, UserUpdate, UserDelete, UserAssignRole,
		ProfileRead, ProfileUpdate,
		ProjectCreate, ProjectUpdate, ProjectDelete, ProjectList, ProjectRead,
		ProjectSetStatus, ProjectAddMember, ProjectRemoveMember,
		ProjectListManaged, ProjectListJoined, ProjectOverview,
		TimetableRead, TimetableReplace, StudentPool:
		return true
	}
	return false
}
