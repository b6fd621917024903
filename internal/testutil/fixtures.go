package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Email:        text.Fold(email),
		PasswordHash: "$2a$10$testhashtesthashtesthashtesthashtesthashtesthashtestha",
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateStudent creates a test user with the student role.
func (f *Fixtures) CreateStudent(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, "student")
}

// CreateAdmin creates a test user with the admin role.
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, "admin")
}

// CreateGroup creates a public test group whose creator is its sole
// admin member.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, creatorID primitive.ObjectID) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	group := models.Group{
		ID:          primitive.NewObjectID(),
		Name:        name,
		NameCI:      text.Fold(name),
		Description: "Test group description",
		Category:    models.CategoryGeneral,
		IsPublic:    true,
		MaxMembers:  models.DefaultCapacity,
		CreatorID:   creatorID,
		Members: []models.Membership{
			{UserID: creatorID, Role: models.RoleAdmin, JoinedAt: now},
		},
		LastActivityAt: now,
		ActivityCount:  1,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := f.db.Collection("groups").InsertOne(ctx, group)
	if err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}

	return group
}

// CreateGroupWithCapacity creates a public test group with a specific
// member limit.
func (f *Fixtures) CreateGroupWithCapacity(ctx context.Context, name string, creatorID primitive.ObjectID, maxMembers int) models.Group {
	f.t.Helper()

	g := f.CreateGroup(ctx, name, creatorID)
	_, err := f.db.Collection("groups").UpdateByID(ctx, g.ID,
		map[string]any{"$set": map[string]any{"max_members": maxMembers}})
	if err != nil {
		f.t.Fatalf("failed to set group capacity: %v", err)
	}
	g.MaxMembers = maxMembers
	return g
}

// AddMember appends a membership entry directly, bypassing the store.
func (f *Fixtures) AddMember(ctx context.Context, groupID, userID primitive.ObjectID, role string) {
	f.t.Helper()

	m := models.Membership{UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
	_, err := f.db.Collection("groups").UpdateByID(ctx, groupID,
		map[string]any{"$push": map[string]any{"members": m}})
	if err != nil {
		f.t.Fatalf("failed to add test member: %v", err)
	}
}

// CreateAssignment creates a test assignment visible to every group.
func (f *Fixtures) CreateAssignment(ctx context.Context, title string, createdBy primitive.ObjectID) models.Assignment {
	f.t.Helper()

	now := time.Now().UTC()
	a := models.Assignment{
		ID:          primitive.NewObjectID(),
		Title:       title,
		Description: "Test assignment description",
		DueDate:     now.Add(7 * 24 * time.Hour),
		CreatedBy:   createdBy,
		IsForAll:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := f.db.Collection("assignments").InsertOne(ctx, a)
	if err != nil {
		f.t.Fatalf("failed to create test assignment: %v", err)
	}

	return a
}

// CreateAssignmentForGroups creates a test assignment scoped to the
// given groups.
func (f *Fixtures) CreateAssignmentForGroups(ctx context.Context, title string, createdBy primitive.ObjectID, groupIDs ...primitive.ObjectID) models.Assignment {
	f.t.Helper()

	now := time.Now().UTC()
	a := models.Assignment{
		ID:             primitive.NewObjectID(),
		Title:          title,
		Description:    "Test assignment description",
		DueDate:        now.Add(7 * 24 * time.Hour),
		CreatedBy:      createdBy,
		IsForAll:       false,
		AssignedGroups: groupIDs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := f.db.Collection("assignments").InsertOne(ctx, a)
	if err != nil {
		f.t.Fatalf("failed to create test assignment: %v", err)
	}

	return a
}

// CreateSubmission inserts a submitted submission for the pair.
func (f *Fixtures) CreateSubmission(ctx context.Context, assignmentID, groupID, submittedBy primitive.ObjectID) models.Submission {
	f.t.Helper()

	now := time.Now().UTC()
	sub := models.Submission{
		ID:           primitive.NewObjectID(),
		AssignmentID: assignmentID,
		GroupID:      groupID,
		SubmittedBy:  submittedBy,
		Status:       models.StatusSubmitted,
		SubmittedAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := f.db.Collection("submissions").InsertOne(ctx, sub)
	if err != nil {
		f.t.Fatalf("failed to create test submission: %v", err)
	}

	return sub
}
