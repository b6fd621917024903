// internal/app/system/integrity/integrity.go
//
// The store keeps no foreign keys, so deleting a user leaves dangling
// references inside group documents: stale member entries, stale join
// requests, and possibly a creator who no longer exists. This package
// heals one group at a time:
//
//  1. drop member and request entries whose user is gone, along with
//     the dropped members' chat history
//  2. if the creator is gone, transfer ownership to a surviving admin,
//     or promote the longest-standing member when no admin survives
//  3. delete the group outright when no valid member remains, cascading
//     to its submissions and chat history
//
// Repair is silent and idempotent. Writes are guarded by the version
// token read at the start: when the aggregate moved underneath us the
// repair is abandoned and the next reader heals instead.
package integrity

import (
	"context"
	"errors"

	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	messagestore "github.com/dalemusser/cohortdesk/internal/app/store/messages"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Reconciler struct {
	groups      *groupstore.Store
	users       *userstore.Store
	submissions *submissionstore.Store
	messages    *messagestore.Store
	log         *zap.Logger
}

func NewReconciler(groups *groupstore.Store, users *userstore.Store, submissions *submissionstore.Store, messages *messagestore.Store, log *zap.Logger) *Reconciler {
	return &Reconciler{
		groups:      groups,
		users:       users,
		submissions: submissions,
		messages:    messages,
		log:         log,
	}
}

// Result describes what one reconciliation pass did.
type Result struct {
	Changed         bool
	Deleted         bool
	RemovedMembers  int
	RemovedRequests int
	NewCreatorID    primitive.ObjectID // set when ownership moved
}

// ReconcileGroup heals one group and returns the repaired aggregate.
// A group that needed no repair comes back unchanged. A group that was
// deleted (no valid members left) comes back zero-valued with
// Result.Deleted set.
func (r *Reconciler) ReconcileGroup(ctx context.Context, groupID primitive.ObjectID) (models.Group, Result, error) {
	g, err := r.groups.GetByID(ctx, groupID)
	if err != nil {
		return models.Group{}, Result{}, err
	}
	return r.reconcile(ctx, g)
}

// Reconcile heals an already-loaded aggregate. The caller's copy must
// carry the version it was read with.
func (r *Reconciler) Reconcile(ctx context.Context, g models.Group) (models.Group, Result, error) {
	return r.reconcile(ctx, g)
}

func (r *Reconciler) reconcile(ctx context.Context, g models.Group) (models.Group, Result, error) {
	readVersion := g.Version

	refs := make([]primitive.ObjectID, 0, len(g.Members)+len(g.JoinRequests)+1)
	refs = append(refs, g.CreatorID)
	for _, m := range g.Members {
		refs = append(refs, m.UserID)
	}
	for _, jr := range g.JoinRequests {
		refs = append(refs, jr.UserID)
	}

	alive, err := r.users.ExistingIDs(ctx, refs)
	if err != nil {
		return models.Group{}, Result{}, err
	}

	var res Result

	var gone []primitive.ObjectID
	members := g.Members[:0:0]
	for _, m := range g.Members {
		if alive[m.UserID] {
			members = append(members, m)
		} else {
			res.RemovedMembers++
			gone = append(gone, m.UserID)
		}
	}
	requests := g.JoinRequests[:0:0]
	for _, jr := range g.JoinRequests {
		if alive[jr.UserID] {
			requests = append(requests, jr)
		} else {
			res.RemovedRequests++
		}
	}
	g.Members = members
	g.JoinRequests = requests

	// No valid member left: the group cannot function, remove it.
	if len(g.Members) == 0 {
		res.Changed = true
		res.Deleted = true
		n, err := r.groups.DeleteVersioned(ctx, g.ID, readVersion)
		if err != nil {
			return models.Group{}, Result{}, err
		}
		if n == 0 {
			// The aggregate moved; whoever changed it owns the new state.
			return models.Group{}, Result{}, nil
		}
		r.cascade(ctx, g.ID)
		r.purgeMessagesOf(ctx, gone)
		r.log.Info("removed group with no surviving members",
			zap.String("group_id", g.ID.Hex()),
			zap.String("name", g.Name))
		return models.Group{}, res, nil
	}

	// Ownership transfer when the creator is gone.
	if !alive[g.CreatorID] || !g.IsMember(g.CreatorID) {
		heir := pickHeir(g.Members)
		g.CreatorID = heir.UserID
		if m := g.Member(heir.UserID); m != nil && m.Role != models.RoleAdmin {
			m.Role = models.RoleAdmin
		}
		res.NewCreatorID = heir.UserID
		res.Changed = true
	}

	res.Changed = res.Changed || res.RemovedMembers > 0 || res.RemovedRequests > 0
	if !res.Changed {
		return g, res, nil
	}

	if err := r.groups.ReplaceVersioned(ctx, g, readVersion); err != nil {
		if errors.Is(err, groupstore.ErrNoMatch) {
			// Lost the race; hand back whatever won it.
			fresh, ferr := r.groups.GetByID(ctx, g.ID)
			if ferr != nil {
				return models.Group{}, Result{}, ferr
			}
			return fresh, Result{}, nil
		}
		return models.Group{}, Result{}, err
	}
	g.Version = readVersion + 1

	r.purgeMessagesOf(ctx, gone)

	if res.NewCreatorID != primitive.NilObjectID {
		r.log.Info("transferred group ownership",
			zap.String("group_id", g.ID.Hex()),
			zap.String("new_creator_id", res.NewCreatorID.Hex()))
	}
	return g, res, nil
}

// pickHeir chooses the new owner: a surviving admin if any, otherwise
// the longest-standing member.
func pickHeir(members []models.Membership) models.Membership {
	heir := members[0]
	for _, m := range members[1:] {
		if m.Role == models.RoleAdmin && heir.Role != models.RoleAdmin {
			heir = m
			continue
		}
		if m.Role == heir.Role && m.JoinedAt.Before(heir.JoinedAt) {
			heir = m
		}
	}
	return heir
}

// purgeMessagesOf removes the chat history of users who no longer
// exist. Best effort; a pass that misses is retried by the next
// reconciliation touching the same user.
func (r *Reconciler) purgeMessagesOf(ctx context.Context, userIDs []primitive.ObjectID) {
	for _, id := range userIDs {
		if _, err := r.messages.DeleteBySender(ctx, id); err != nil {
			r.log.Warn("failed to remove messages of deleted user",
				zap.String("user_id", id.Hex()),
				zap.Error(err))
		}
	}
}

// cascade removes the dependents of a deleted group. Failures are
// logged and swallowed; the sweep retries orphans on its next pass.
func (r *Reconciler) cascade(ctx context.Context, groupID primitive.ObjectID) {
	if _, err := r.submissions.DeleteByGroup(ctx, groupID); err != nil {
		r.log.Warn("failed to remove submissions of deleted group",
			zap.String("group_id", groupID.Hex()),
			zap.Error(err))
	}
	if _, err := r.messages.DeleteByGroup(ctx, groupID); err != nil {
		r.log.Warn("failed to remove messages of deleted group",
			zap.String("group_id", groupID.Hex()),
			zap.Error(err))
	}
}

// SweepAll reconciles every group. Used by the background sweep; each
// group is healed independently so one failure does not stop the pass.
func (r *Reconciler) SweepAll(ctx context.Context) (groupsRepaired int, err error) {
	ids, err := r.groups.AllIDs(ctx)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return groupsRepaired, ctx.Err()
		}
		_, res, rerr := r.ReconcileGroup(ctx, id)
		if rerr != nil {
			if errors.Is(rerr, mongo.ErrNoDocuments) {
				continue
			}
			r.log.Warn("group reconciliation failed",
				zap.String("group_id", id.Hex()),
				zap.Error(rerr))
			continue
		}
		if res.Changed {
			groupsRepaired++
		}
	}
	return groupsRepaired, nil
}
