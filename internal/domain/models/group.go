// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group categories.
const (
	CategoryStudy   = "study"
	CategoryProject = "project"
	CategoryClass   = "class"
	CategoryGeneral = "general"
)

// Membership roles inside a group.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Capacity bounds for MaxMembers.
const (
	MinCapacity     = 2
	MaxCapacity     = 100
	DefaultCapacity = 50
)

// ValidCategory reports whether c is one of the known group categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryStudy, CategoryProject, CategoryClass, CategoryGeneral:
		return true
	}
	return false
}

// Group is the membership aggregate root. Members, join requests,
// announcements, and resources are embedded on the document and the
// whole document is loaded, mutated, and written back as one unit.
//
// NOTE:
//   - The store enforces no foreign keys. CreatorID and every embedded
//     user_id can go stale when the referenced user is deleted; the
//     integrity package repairs them before the aggregate is acted on.
//   - Version is the optimistic-concurrency token. Every write bumps it;
//     read-modify-write cycles must condition on the value they read.
type Group struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`
	Tags        []string           `bson:"tags" json:"tags"`
	IsPublic    bool               `bson:"is_public" json:"is_public"`
	MaxMembers  int                `bson:"max_members" json:"max_members"`

	CreatorID primitive.ObjectID `bson:"creator_id" json:"creator_id"`

	Members       []Membership   `bson:"members" json:"members"`
	JoinRequests  []JoinRequest  `bson:"join_requests" json:"join_requests"`
	Announcements []Announcement `bson:"announcements" json:"announcements"`
	Resources     []Resource     `bson:"resources" json:"resources"`

	LastActivityAt time.Time `bson:"last_activity_at" json:"last_activity_at"`
	ActivityCount  int64     `bson:"activity_count" json:"activity_count"`

	Version   int64     `bson:"version" json:"-"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Membership is one entry in Group.Members. UserID is unique within a
// group's member list.
type Membership struct {
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role     string             `bson:"role" json:"role"` // admin | member
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}

// JoinRequest is one entry in Group.JoinRequests. A user appears at most
// once, and never while also present in Members.
type JoinRequest struct {
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Message     string             `bson:"message" json:"message"`
	RequestedAt time.Time          `bson:"requested_at" json:"requested_at"`
}

// Announcement is an admin-authored notice embedded on the group.
type Announcement struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Content   string             `bson:"content" json:"content"`
	CreatedBy primitive.ObjectID `bson:"created_by" json:"created_by"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	IsPinned  bool               `bson:"is_pinned" json:"is_pinned"`
}

// Resource is a shared file/link embedded on the group.
type Resource struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	FileURL     string             `bson:"file_url" json:"file_url"`
	FileType    string             `bson:"file_type" json:"file_type"`
	UploadedBy  primitive.ObjectID `bson:"uploaded_by" json:"uploaded_by"`
	UploadedAt  time.Time          `bson:"uploaded_at" json:"uploaded_at"`
}

// Member returns the membership entry for userID, or nil.
func (g *Group) Member(userID primitive.ObjectID) *Membership {
	for i := range g.Members {
		if g.Members[i].UserID == userID {
			return &g.Members[i]
		}
	}
	return nil
}

// IsMember reports whether userID appears in Members.
func (g *Group) IsMember(userID primitive.ObjectID) bool {
	return g.Member(userID) != nil
}

// IsAdmin reports whether userID appears in Members with the admin role.
func (g *Group) IsAdmin(userID primitive.ObjectID) bool {
	m := g.Member(userID)
	return m != nil && m.Role == RoleAdmin
}

// HasJoinRequest reports whether userID has a pending join request.
func (g *Group) HasJoinRequest(userID primitive.ObjectID) bool {
	for i := range g.JoinRequests {
		if g.JoinRequests[i].UserID == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether the member list has reached capacity.
func (g *Group) IsFull() bool {
	return len(g.Members) >= g.MaxMembers
}
