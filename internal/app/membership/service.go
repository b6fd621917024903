// Package membership orchestrates the group lifecycle: creation,
// discovery, the join-request flow, member management, announcements,
// shared resources, and the group chat.
//
// Handlers decide who may call what (policy); this package decides what
// the data allows. Mutations ride the store's conditional updates, so a
// failed precondition comes back as a matched-nothing error that gets
// classified here by re-reading the aggregate.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	assignmentstore "github.com/dalemusser/cohortdesk/internal/app/store/assignments"
	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	messagestore "github.com/dalemusser/cohortdesk/internal/app/store/messages"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/cohortdesk/internal/app/system/integrity"
	"github.com/dalemusser/cohortdesk/internal/app/system/normalize"
	"github.com/dalemusser/cohortdesk/internal/app/system/txn"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const discoverLimit = 50

type Service struct {
	client      *mongo.Client
	groups      *groupstore.Store
	users       *userstore.Store
	submissions *submissionstore.Store
	messages    *messagestore.Store
	assignments *assignmentstore.Store
	reconciler  *integrity.Reconciler
	log         *zap.Logger
}

func NewService(client *mongo.Client, groups *groupstore.Store, users *userstore.Store, submissions *submissionstore.Store, messages *messagestore.Store, assignments *assignmentstore.Store, reconciler *integrity.Reconciler, log *zap.Logger) *Service {
	return &Service{
		client:      client,
		groups:      groups,
		users:       users,
		submissions: submissions,
		messages:    messages,
		assignments: assignments,
		reconciler:  reconciler,
		log:         log,
	}
}

/* ───────────────────────── group lifecycle ───────────────────────── */

// CreateGroupInput carries the caller-supplied fields for a new group.
type CreateGroupInput struct {
	Name        string
	Description string
	Category    string
	Tags        []string
	IsPublic    bool
	MaxMembers  int
}

func (in *CreateGroupInput) validate() error {
	in.Name = normalize.Name(in.Name)
	if in.Name == "" {
		return apperr.NewValidation("group name is required")
	}
	if len(in.Name) > 100 {
		return apperr.NewValidation("group name must be at most 100 characters")
	}
	if !models.ValidCategory(in.Category) {
		return apperr.NewValidation("unknown category %q", in.Category)
	}
	if in.MaxMembers == 0 {
		in.MaxMembers = models.DefaultCapacity
	}
	if in.MaxMembers < models.MinCapacity || in.MaxMembers > models.MaxCapacity {
		return apperr.NewValidation("capacity must be between %d and %d", models.MinCapacity, models.MaxCapacity)
	}
	in.Description = htmlsanitize.Sanitize(in.Description)
	in.Tags = normalize.Tags(in.Tags)
	return nil
}

// CreateGroup creates a group with the creator as its sole admin
// member.
func (s *Service) CreateGroup(ctx context.Context, creatorID primitive.ObjectID, in CreateGroupInput) (models.Group, error) {
	if err := in.validate(); err != nil {
		return models.Group{}, err
	}
	g := models.Group{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Tags:        in.Tags,
		IsPublic:    in.IsPublic,
		MaxMembers:  in.MaxMembers,
		CreatorID:   creatorID,
		Members: []models.Membership{
			{UserID: creatorID, Role: models.RoleAdmin, JoinedAt: time.Now().UTC()},
		},
		JoinRequests:  []models.JoinRequest{},
		Announcements: []models.Announcement{},
		Resources:     []models.Resource{},
	}
	created, err := s.groups.Create(ctx, g)
	if err != nil {
		return models.Group{}, apperr.NewStorage(err, "create group")
	}
	s.log.Info("group created",
		zap.String("group_id", created.ID.Hex()),
		zap.String("creator_id", creatorID.Hex()))
	return created, nil
}

// GetGroup loads one group, healing dangling references first so
// callers never act on a stale member list.
func (s *Service) GetGroup(ctx context.Context, groupID primitive.ObjectID) (models.Group, error) {
	g, res, err := s.reconciler.ReconcileGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Group{}, apperr.NewNotFound("group not found")
		}
		return models.Group{}, apperr.NewStorage(err, "load group")
	}
	if res.Deleted {
		return models.Group{}, apperr.NewNotFound("group not found")
	}
	return g, nil
}

// UpdateGroupInput carries the editable fields. Nil pointers mean
// "leave unchanged".
type UpdateGroupInput struct {
	Name        *string
	Description *string
	Category    *string
	Tags        []string
	IsPublic    *bool
	MaxMembers  *int
}

// UpdateGroup edits group settings through a version-guarded replace.
// A concurrent write surfaces as a conflict for the caller to retry.
func (s *Service) UpdateGroup(ctx context.Context, groupID primitive.ObjectID, in UpdateGroupInput) (models.Group, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return models.Group{}, err
	}

	if in.Name != nil {
		name := normalize.Name(*in.Name)
		if name == "" {
			return models.Group{}, apperr.NewValidation("group name is required")
		}
		g.Name = name
	}
	if in.Description != nil {
		g.Description = htmlsanitize.Sanitize(*in.Description)
	}
	if in.Category != nil {
		if !models.ValidCategory(*in.Category) {
			return models.Group{}, apperr.NewValidation("unknown category %q", *in.Category)
		}
		g.Category = *in.Category
	}
	if in.Tags != nil {
		g.Tags = normalize.Tags(in.Tags)
	}
	if in.IsPublic != nil {
		g.IsPublic = *in.IsPublic
	}
	if in.MaxMembers != nil {
		m := *in.MaxMembers
		if m < models.MinCapacity || m > models.MaxCapacity {
			return models.Group{}, apperr.NewValidation("capacity must be between %d and %d", models.MinCapacity, models.MaxCapacity)
		}
		if m < len(g.Members) {
			return models.Group{}, apperr.NewValidation("capacity %d is below the current member count %d", m, len(g.Members))
		}
		g.MaxMembers = m
	}

	if err := s.groups.ReplaceVersioned(ctx, g, g.Version); err != nil {
		if errors.Is(err, groupstore.ErrNoMatch) {
			return models.Group{}, apperr.NewConflict("group changed concurrently, retry")
		}
		return models.Group{}, apperr.NewStorage(err, "update group")
	}
	g.Version++
	return g, nil
}

// DeleteGroup removes the group and everything scoped to it. The
// cascade runs in a transaction where the deployment supports one and
// falls back to sequential deletes elsewhere; the sweep mops up any
// partial failure.
func (s *Service) DeleteGroup(ctx context.Context, groupID primitive.ObjectID) error {
	err := txn.WithTransaction(ctx, s.client, s.log, func(ctx context.Context) error {
		n, err := s.groups.Delete(ctx, groupID)
		if err != nil {
			return err
		}
		if n == 0 {
			return mongo.ErrNoDocuments
		}
		if _, err := s.submissions.DeleteByGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := s.messages.DeleteByGroup(ctx, groupID); err != nil {
			return err
		}
		// Targeted assignments stop naming the dead group.
		if _, err := s.assignments.PullGroup(ctx, groupID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NewNotFound("group not found")
		}
		return apperr.NewStorage(err, "delete group")
	}
	s.log.Info("group deleted", zap.String("group_id", groupID.Hex()))
	return nil
}

/* ───────────────────────── discovery ───────────────────────── */

// ListMyGroups returns the groups the user belongs to.
func (s *Service) ListMyGroups(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	groups, err := s.groups.ListByMember(ctx, userID)
	if err != nil {
		return nil, apperr.NewStorage(err, "list groups")
	}
	return groups, nil
}

// Discover returns public groups matching the filter, most recently
// active first.
func (s *Service) Discover(ctx context.Context, f groupstore.SearchFilter) ([]models.Group, error) {
	groups, err := s.groups.ListPublic(ctx, f, discoverLimit)
	if err != nil {
		return nil, apperr.NewStorage(err, "browse groups")
	}
	return groups, nil
}

/* ───────────────────────── join flow ───────────────────────── */

// RequestJoin queues a join request on a public group. The store's
// conditional write enforces the preconditions; a miss is re-read and
// turned into the precise refusal.
func (s *Service) RequestJoin(ctx context.Context, groupID, userID primitive.ObjectID, message string) error {
	req := models.JoinRequest{
		UserID:      userID,
		Message:     htmlsanitize.Strip(message),
		RequestedAt: time.Now().UTC(),
	}
	err := s.groups.AppendJoinRequest(ctx, groupID, req)
	if err == nil {
		return nil
	}
	if !errors.Is(err, groupstore.ErrNoMatch) {
		return apperr.NewStorage(err, "request join")
	}

	g, gerr := s.GetGroup(ctx, groupID)
	if gerr != nil {
		return gerr
	}
	switch {
	case !g.IsPublic:
		return apperr.NewForbidden("group is not open to join requests")
	case g.IsMember(userID):
		return apperr.NewConflict("already a member of this group")
	case g.HasJoinRequest(userID):
		return apperr.NewConflict("join request already pending")
	case g.IsFull():
		return apperr.NewConflict("group is full")
	default:
		// Healed between the write and the re-read; one retry settles it.
		if rerr := s.groups.AppendJoinRequest(ctx, groupID, req); rerr != nil {
			return apperr.NewConflict("could not queue join request, retry")
		}
		return nil
	}
}

// ApproveRequest turns a pending request into a membership. Capacity is
// checked at approval time; a full group leaves the request queued.
func (s *Service) ApproveRequest(ctx context.Context, groupID, userID primitive.ObjectID) error {
	// The requester can be deleted between asking and approval;
	// admitting a ghost only creates work for the next repair pass.
	alive, err := s.users.Exists(ctx, userID)
	if err != nil {
		return apperr.NewStorage(err, "approve join request")
	}
	if !alive {
		if rerr := s.groups.RemoveJoinRequest(ctx, groupID, userID); rerr != nil && !errors.Is(rerr, groupstore.ErrNoMatch) {
			s.log.Warn("failed to drop stale join request",
				zap.String("group_id", groupID.Hex()),
				zap.String("user_id", userID.Hex()),
				zap.Error(rerr))
		}
		return apperr.NewNotFound("requesting user no longer exists")
	}

	err = s.groups.PromoteJoinRequest(ctx, groupID, userID)
	if err == nil {
		s.log.Info("join request approved",
			zap.String("group_id", groupID.Hex()),
			zap.String("user_id", userID.Hex()))
		return nil
	}
	if !errors.Is(err, groupstore.ErrNoMatch) {
		return apperr.NewStorage(err, "approve join request")
	}

	g, gerr := s.GetGroup(ctx, groupID)
	if gerr != nil {
		return gerr
	}
	switch {
	case g.IsMember(userID):
		return apperr.NewConflict("user is already a member")
	case !g.HasJoinRequest(userID):
		return apperr.NewNotFound("no pending join request for this user")
	case g.IsFull():
		return apperr.NewConflict("group is full; the request stays pending")
	default:
		return apperr.NewConflict("could not approve request, retry")
	}
}

// RejectRequest drops a pending request.
func (s *Service) RejectRequest(ctx context.Context, groupID, userID primitive.ObjectID) error {
	err := s.groups.RemoveJoinRequest(ctx, groupID, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, groupstore.ErrNoMatch) {
		return apperr.NewStorage(err, "reject join request")
	}
	if _, gerr := s.GetGroup(ctx, groupID); gerr != nil {
		return gerr
	}
	return apperr.NewNotFound("no pending join request for this user")
}

// CancelRequest lets the requester withdraw their own pending request.
// Withdrawing a request that is not there is a no-op.
func (s *Service) CancelRequest(ctx context.Context, groupID, userID primitive.ObjectID) error {
	err := s.groups.RemoveJoinRequest(ctx, groupID, userID)
	if err != nil && !errors.Is(err, groupstore.ErrNoMatch) {
		return apperr.NewStorage(err, "cancel join request")
	}
	return nil
}

/* ───────────────────────── member management ───────────────────────── */

// AddMember lets a group admin add a student directly by email or
// student id, skipping the request queue.
func (s *Service) AddMember(ctx context.Context, groupID primitive.ObjectID, emailOrStudentID string) (models.User, error) {
	u, err := s.users.FindStudent(ctx, emailOrStudentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.User{}, apperr.NewNotFound("no student matches %q", emailOrStudentID)
		}
		return models.User{}, apperr.NewStorage(err, "look up student")
	}

	m := models.Membership{UserID: u.ID, Role: models.RoleMember, JoinedAt: time.Now().UTC()}
	err = s.groups.AppendMember(ctx, groupID, m)
	if err == nil {
		s.log.Info("member added",
			zap.String("group_id", groupID.Hex()),
			zap.String("user_id", u.ID.Hex()))
		return *u, nil
	}
	if !errors.Is(err, groupstore.ErrNoMatch) {
		return models.User{}, apperr.NewStorage(err, "add member")
	}

	g, gerr := s.GetGroup(ctx, groupID)
	if gerr != nil {
		return models.User{}, gerr
	}
	if g.IsMember(u.ID) {
		return models.User{}, apperr.NewConflict("%s is already a member", u.FullName)
	}
	if g.IsFull() {
		return models.User{}, apperr.NewConflict("group is full")
	}
	return models.User{}, apperr.NewConflict("could not add member, retry")
}

// RemoveMember removes a member or lets one leave. The store refuses to
// pull the creator regardless of who asks.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID primitive.ObjectID) error {
	err := s.groups.RemoveMember(ctx, groupID, userID)
	if err == nil {
		s.log.Info("member removed",
			zap.String("group_id", groupID.Hex()),
			zap.String("user_id", userID.Hex()))
		return nil
	}
	if !errors.Is(err, groupstore.ErrNoMatch) {
		return apperr.NewStorage(err, "remove member")
	}

	g, gerr := s.GetGroup(ctx, groupID)
	if gerr != nil {
		return gerr
	}
	if g.CreatorID == userID {
		return apperr.NewForbidden("the creator cannot be removed from the group")
	}
	return apperr.NewNotFound("user is not a member of this group")
}

/* ───────────────────────── announcements & resources ───────────────────────── */

// PostAnnouncement publishes an admin notice on the group.
func (s *Service) PostAnnouncement(ctx context.Context, groupID, authorID primitive.ObjectID, title, content string, pinned bool) (models.Announcement, error) {
	title = normalize.Name(title)
	if title == "" {
		return models.Announcement{}, apperr.NewValidation("announcement title is required")
	}
	a := models.Announcement{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Content:   htmlsanitize.Sanitize(content),
		CreatedBy: authorID,
		CreatedAt: time.Now().UTC(),
		IsPinned:  pinned,
	}
	if err := s.groups.AppendAnnouncement(ctx, groupID, a); err != nil {
		if errors.Is(err, groupstore.ErrNoMatch) {
			return models.Announcement{}, apperr.NewNotFound("group not found")
		}
		return models.Announcement{}, apperr.NewStorage(err, "post announcement")
	}
	return a, nil
}

// DeleteAnnouncement removes one announcement.
func (s *Service) DeleteAnnouncement(ctx context.Context, groupID, announcementID primitive.ObjectID) error {
	if err := s.groups.RemoveAnnouncement(ctx, groupID, announcementID); err != nil {
		if errors.Is(err, groupstore.ErrNoMatch) {
			return apperr.NewNotFound("announcement not found")
		}
		return apperr.NewStorage(err, "delete announcement")
	}
	return nil
}

// AddResource shares a link or file reference with the group.
func (s *Service) AddResource(ctx context.Context, groupID, uploaderID primitive.ObjectID, name, description, fileURL, fileType string) (models.Resource, error) {
	name = normalize.Name(name)
	if name == "" {
		return models.Resource{}, apperr.NewValidation("resource name is required")
	}
	if fileURL == "" {
		return models.Resource{}, apperr.NewValidation("resource URL is required")
	}
	res := models.Resource{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: htmlsanitize.Strip(description),
		FileURL:     fileURL,
		FileType:    fileType,
		UploadedBy:  uploaderID,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.groups.AppendResource(ctx, groupID, res); err != nil {
		if errors.Is(err, groupstore.ErrNoMatch) {
			return models.Resource{}, apperr.NewNotFound("group not found")
		}
		return models.Resource{}, apperr.NewStorage(err, "add resource")
	}
	return res, nil
}

// DeleteResource removes a shared resource.
func (s *Service) DeleteResource(ctx context.Context, groupID, resourceID primitive.ObjectID) error {
	if err := s.groups.RemoveResource(ctx, groupID, resourceID); err != nil {
		if errors.Is(err, groupstore.ErrNoMatch) {
			return apperr.NewNotFound("resource not found")
		}
		return apperr.NewStorage(err, "delete resource")
	}
	return nil
}

/* ───────────────────────── chat ───────────────────────── */

// PostMessage stores a chat message and counts it as group activity.
func (s *Service) PostMessage(ctx context.Context, groupID, senderID primitive.ObjectID, content string, replyTo *primitive.ObjectID) (models.GroupMessage, error) {
	content = htmlsanitize.Strip(content)
	if content == "" {
		return models.GroupMessage{}, apperr.NewValidation("message content is required")
	}
	if len(content) > models.MaxMessageLength {
		return models.GroupMessage{}, apperr.NewValidation("message exceeds %d characters", models.MaxMessageLength)
	}
	msg, err := s.messages.Create(ctx, models.GroupMessage{
		GroupID:  groupID,
		SenderID: senderID,
		Content:  content,
		ReplyTo:  replyTo,
	})
	if err != nil {
		return models.GroupMessage{}, apperr.NewStorage(err, "post message")
	}
	if err := s.groups.TouchActivity(ctx, groupID); err != nil && !errors.Is(err, groupstore.ErrNoMatch) {
		s.log.Warn("failed to record message activity",
			zap.String("group_id", groupID.Hex()),
			zap.Error(err))
	}
	return msg, nil
}

// ListMessages returns a page of chat history, oldest first.
func (s *Service) ListMessages(ctx context.Context, groupID primitive.ObjectID, before time.Time, limit int64) ([]models.GroupMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	msgs, err := s.messages.ListByGroup(ctx, groupID, before, limit)
	if err != nil {
		return nil, apperr.NewStorage(err, "list messages")
	}
	return msgs, nil
}

// RequesterDirectory resolves pending join requests to user records,
// mirroring MemberDirectory for the admissions view.
func (s *Service) RequesterDirectory(ctx context.Context, g *models.Group) (map[primitive.ObjectID]models.User, error) {
	ids := make([]primitive.ObjectID, 0, len(g.JoinRequests))
	for _, jr := range g.JoinRequests {
		ids = append(ids, jr.UserID)
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, apperr.NewStorage(err, "load requester directory")
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			users[id] = models.User{ID: id, FullName: fmt.Sprintf("former user %s", id.Hex()[:8])}
		}
	}
	return users, nil
}

// GroupStats is the activity snapshot shown on a group's detail page.
type GroupStats struct {
	Members        int   `json:"members"`
	Announcements  int   `json:"announcements"`
	Resources      int   `json:"resources"`
	Assignments    int64 `json:"assignments"`
	Messages       int64 `json:"messages"`
	MessagesToday  int64 `json:"messages_last_24h"`
	ActiveSenders  int   `json:"active_senders_last_7d"`
	ActivityCount  int64 `json:"activity_count"`
	PendingInvites int   `json:"pending_requests"`
}

// Stats assembles counts from the aggregate plus the message and
// assignment collections.
func (s *Service) Stats(ctx context.Context, g *models.Group) (GroupStats, error) {
	now := time.Now().UTC()
	total, err := s.messages.CountByGroup(ctx, g.ID, time.Time{})
	if err != nil {
		return GroupStats{}, apperr.NewStorage(err, "count messages")
	}
	recent, err := s.messages.CountByGroup(ctx, g.ID, now.Add(-24*time.Hour))
	if err != nil {
		return GroupStats{}, apperr.NewStorage(err, "count recent messages")
	}
	senders, err := s.messages.ActiveSenders(ctx, g.ID, now.Add(-7*24*time.Hour))
	if err != nil {
		return GroupStats{}, apperr.NewStorage(err, "count active senders")
	}
	assigned, err := s.assignments.CountForGroup(ctx, g.ID)
	if err != nil {
		return GroupStats{}, apperr.NewStorage(err, "count assignments")
	}
	return GroupStats{
		Members:        len(g.Members),
		Announcements:  len(g.Announcements),
		Resources:      len(g.Resources),
		Assignments:    assigned,
		Messages:       total,
		MessagesToday:  recent,
		ActiveSenders:  senders,
		ActivityCount:  g.ActivityCount,
		PendingInvites: len(g.JoinRequests),
	}, nil
}

// MemberDirectory resolves the member list to user records for display.
// Entries whose user vanished mid-flight are labeled rather than
// dropped; the next reconciliation removes them.
func (s *Service) MemberDirectory(ctx context.Context, g *models.Group) (map[primitive.ObjectID]models.User, error) {
	ids := make([]primitive.ObjectID, 0, len(g.Members))
	for _, m := range g.Members {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.GetMany(ctx, ids)
	if err != nil {
		return nil, apperr.NewStorage(err, "load member directory")
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			users[id] = models.User{ID: id, FullName: fmt.Sprintf("former member %s", id.Hex()[:8])}
		}
	}
	return users, nil
}
