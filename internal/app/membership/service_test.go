package membership_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/cohortdesk/internal/app/membership"
	assignmentstore "github.com/dalemusser/cohortdesk/internal/app/store/assignments"
	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	messagestore "github.com/dalemusser/cohortdesk/internal/app/store/messages"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/integrity"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"github.com/dalemusser/cohortdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newService(db *mongo.Database) *membership.Service {
	groups := groupstore.New(db)
	users := userstore.New(db)
	submissions := submissionstore.New(db)
	messages := messagestore.New(db)
	rec := integrity.NewReconciler(groups, users, submissions, messages, zap.NewNop())
	return membership.NewService(db.Client(), groups, users, submissions, messages, assignmentstore.New(db), rec, zap.NewNop())
}

func TestCreateGroup_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")

	cases := []struct {
		name string
		in   membership.CreateGroupInput
	}{
		{"empty name", membership.CreateGroupInput{Category: models.CategoryStudy}},
		{"bad category", membership.CreateGroupInput{Name: "X", Category: "karaoke"}},
		{"capacity too small", membership.CreateGroupInput{Name: "X", Category: models.CategoryStudy, MaxMembers: 1}},
		{"capacity too large", membership.CreateGroupInput{Name: "X", Category: models.CategoryStudy, MaxMembers: 500}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateGroup(ctx, alice.ID, tc.in)
			if !errors.Is(err, apperr.Validation) {
				t.Errorf("got %v, want a validation error", err)
			}
		})
	}

	g, err := svc.CreateGroup(ctx, alice.ID, membership.CreateGroupInput{
		Name:        "  Algorithms  ",
		Description: `<p>weekly <script>alert(1)</script>sessions</p>`,
		Category:    models.CategoryStudy,
		Tags:        []string{"algo", "", "algo", "graphs"},
		IsPublic:    true,
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if g.Name != "Algorithms" {
		t.Errorf("Name: got %q", g.Name)
	}
	if g.MaxMembers != models.DefaultCapacity {
		t.Errorf("MaxMembers: got %d, want default", g.MaxMembers)
	}
	if len(g.Tags) != 2 {
		t.Errorf("Tags: got %v, want deduped pair", g.Tags)
	}
	if !g.IsAdmin(alice.ID) {
		t.Error("creator must be seeded as group admin")
	}
	if want := "<p>weekly sessions</p>"; g.Description != want {
		t.Errorf("Description: got %q, want %q", g.Description, want)
	}
}

func TestJoinFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	group := fixtures.CreateGroup(ctx, "Test Group", alice.ID)

	if err := svc.RequestJoin(ctx, group.ID, bob.ID, "hi"); err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}

	// Duplicate requests conflict.
	err := svc.RequestJoin(ctx, group.ID, bob.ID, "again")
	if !errors.Is(err, apperr.Conflict) {
		t.Errorf("duplicate request: got %v, want a conflict", err)
	}

	// Members requesting to join conflict too.
	err = svc.RequestJoin(ctx, group.ID, alice.ID, "")
	if !errors.Is(err, apperr.Conflict) {
		t.Errorf("member request: got %v, want a conflict", err)
	}

	if err := svc.ApproveRequest(ctx, group.ID, bob.ID); err != nil {
		t.Fatalf("ApproveRequest failed: %v", err)
	}
	g, err := svc.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if !g.IsMember(bob.ID) {
		t.Error("approved requester must be a member")
	}

	// Approving a request that no longer exists is a not-found,
	// approving for an existing member a conflict.
	err = svc.ApproveRequest(ctx, group.ID, bob.ID)
	if !errors.Is(err, apperr.Conflict) {
		t.Errorf("approve member: got %v, want a conflict", err)
	}
}

func TestRequestJoin_PrivateGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	group := fixtures.CreateGroup(ctx, "Hidden", alice.ID)
	_, err := db.Collection("groups").UpdateByID(ctx, group.ID,
		map[string]any{"$set": map[string]any{"is_public": false}})
	if err != nil {
		t.Fatalf("failed to hide group: %v", err)
	}

	err = svc.RequestJoin(ctx, group.ID, bob.ID, "")
	if !errors.Is(err, apperr.Forbidden) {
		t.Errorf("private group: got %v, want forbidden", err)
	}
}

func TestApproveRequest_FullGroupKeepsRequestQueued(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	cara := fixtures.CreateStudent(ctx, "Cara", "cara@test.com")
	group := fixtures.CreateGroupWithCapacity(ctx, "Tiny", alice.ID, models.MinCapacity)

	if err := svc.RequestJoin(ctx, group.ID, bob.ID, ""); err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	fixtures.AddMember(ctx, group.ID, cara.ID, models.RoleMember)

	err := svc.ApproveRequest(ctx, group.ID, bob.ID)
	if !errors.Is(err, apperr.Conflict) {
		t.Errorf("approve into full group: got %v, want a conflict", err)
	}

	g, err := svc.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if !g.HasJoinRequest(bob.ID) {
		t.Error("request must stay queued when approval hits a full group")
	}
}

func TestApproveRequest_DeletedRequesterIsDropped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	group := fixtures.CreateGroup(ctx, "Test Group", alice.ID)

	if err := svc.RequestJoin(ctx, group.ID, bob.ID, ""); err != nil {
		t.Fatalf("RequestJoin failed: %v", err)
	}
	if _, err := db.Collection("users").DeleteOne(ctx, map[string]any{"_id": bob.ID}); err != nil {
		t.Fatalf("failed to delete requester: %v", err)
	}

	err := svc.ApproveRequest(ctx, group.ID, bob.ID)
	if !errors.Is(err, apperr.NotFound) {
		t.Errorf("approve deleted requester: got %v, want not-found", err)
	}

	g, err := svc.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if g.IsMember(bob.ID) {
		t.Error("a deleted requester must not become a member")
	}
	if g.HasJoinRequest(bob.ID) {
		t.Error("the stale request should be dropped on approval")
	}
}

func TestRemoveMember_CreatorGuard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	group := fixtures.CreateGroup(ctx, "Test Group", alice.ID)
	fixtures.AddMember(ctx, group.ID, bob.ID, models.RoleMember)

	if err := svc.RemoveMember(ctx, group.ID, bob.ID); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	err := svc.RemoveMember(ctx, group.ID, alice.ID)
	if !errors.Is(err, apperr.Forbidden) {
		t.Errorf("remove creator: got %v, want forbidden", err)
	}
	err = svc.RemoveMember(ctx, group.ID, bob.ID)
	if !errors.Is(err, apperr.NotFound) {
		t.Errorf("remove non-member: got %v, want not found", err)
	}
}

func TestAddMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	group := fixtures.CreateGroup(ctx, "Test Group", alice.ID)

	added, err := svc.AddMember(ctx, group.ID, "BOB@test.com")
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if added.ID != bob.ID {
		t.Error("wrong user added")
	}

	_, err = svc.AddMember(ctx, group.ID, "bob@test.com")
	if !errors.Is(err, apperr.Conflict) {
		t.Errorf("re-add member: got %v, want a conflict", err)
	}
	_, err = svc.AddMember(ctx, group.ID, "nobody@test.com")
	if !errors.Is(err, apperr.NotFound) {
		t.Errorf("unknown student: got %v, want not found", err)
	}
}

func TestDeleteGroup_Cascades(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Prof", "prof@test.com")
	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	group := fixtures.CreateGroup(ctx, "Doomed", alice.ID)
	assignment := fixtures.CreateAssignment(ctx, "Homework", admin.ID)
	fixtures.CreateSubmission(ctx, assignment.ID, group.ID, alice.ID)
	if _, err := svc.PostMessage(ctx, group.ID, alice.ID, "hello", nil); err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}

	if err := svc.DeleteGroup(ctx, group.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}

	_, err := svc.GetGroup(ctx, group.ID)
	if !errors.Is(err, apperr.NotFound) {
		t.Errorf("deleted group lookup: got %v, want not found", err)
	}
	subs, err := submissionstore.New(db).ListByGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("submissions survived cascade: %d", len(subs))
	}
	msgs, err := messagestore.New(db).ListByGroup(ctx, group.ID, time.Time{}, 10)
	if err != nil {
		t.Fatalf("ListByGroup messages failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages survived cascade: %d", len(msgs))
	}

	err = svc.DeleteGroup(ctx, group.ID)
	if !errors.Is(err, apperr.NotFound) {
		t.Errorf("second delete: got %v, want not found", err)
	}
}

func TestPostMessage_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newService(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	group := fixtures.CreateGroup(ctx, "Chatty", alice.ID)

	_, err := svc.PostMessage(ctx, group.ID, alice.ID, "   ", nil)
	if !errors.Is(err, apperr.Validation) {
		t.Errorf("blank message: got %v, want validation error", err)
	}

	long := make([]byte, models.MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.PostMessage(ctx, group.ID, alice.ID, string(long), nil)
	if !errors.Is(err, apperr.Validation) {
		t.Errorf("oversized message: got %v, want validation error", err)
	}

	msg, err := svc.PostMessage(ctx, group.ID, alice.ID, "<b>hello</b>", nil)
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if msg.Content != "hello" {
		t.Errorf("chat content must be plain text, got %q", msg.Content)
	}

	g, err := svc.GetGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if g.ActivityCount != group.ActivityCount+1 {
		t.Errorf("ActivityCount: got %d, want %d", g.ActivityCount, group.ActivityCount+1)
	}
}
