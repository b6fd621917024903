// Package grouppolicy answers the authorization questions the group
// handlers ask. The embedded member list on the aggregate is the
// authoritative source; there is no separate membership collection.
//
// Authorization rules:
//   - System admins can manage any group
//   - Group admins (role "admin" in the member list) manage their group
//   - The creator is always a group admin and cannot be removed
//   - Members can view internals, post messages, and submit work
//   - Non-members see only the public listing fields
package grouppolicy

import (
	"net/http"

	"github.com/dalemusser/cohortdesk/internal/app/system/authz"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CanManage reports whether the request user administers the group.
func CanManage(r *http.Request, g *models.Group) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	if role == "admin" {
		return true
	}
	return g.IsAdmin(uid)
}

// CanView reports whether the request user may see group internals
// (members, announcements, resources, chat). Public groups expose their
// listing fields to everyone; internals stay member-only.
func CanView(r *http.Request, g *models.Group) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	if role == "admin" {
		return true
	}
	return g.IsMember(uid)
}

// CanSubmit reports whether the request user may submit work on the
// group's behalf. Any member can; the submission records who did.
func CanSubmit(r *http.Request, g *models.Group) bool {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	return g.IsMember(uid)
}

// CanPost reports whether the request user may post chat messages in
// the group.
func CanPost(r *http.Request, g *models.Group) bool {
	return CanSubmit(r, g)
}

// CanLeave reports whether the request user may leave the group. The
// creator cannot leave; they delete the group or wait for ownership to
// transfer.
func CanLeave(r *http.Request, g *models.Group) bool {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	return g.IsMember(uid) && g.CreatorID != uid
}

// CanRemoveMember reports whether the request user may remove target
// from the group. Group admins remove anyone but the creator; members
// remove only themselves (which is CanLeave).
func CanRemoveMember(r *http.Request, g *models.Group, target primitive.ObjectID) bool {
	if target == g.CreatorID {
		return false
	}
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	if uid == target {
		return CanLeave(r, g)
	}
	return CanManage(r, g)
}

// CanDelete reports whether the request user may delete the group
// outright: the creator or a system admin.
func CanDelete(r *http.Request, g *models.Group) bool {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		return false
	}
	return role == "admin" || g.CreatorID == uid
}
