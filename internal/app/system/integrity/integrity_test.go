package integrity_test

import (
	"testing"
	"time"

	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	messagestore "github.com/dalemusser/cohortdesk/internal/app/store/messages"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	"github.com/dalemusser/cohortdesk/internal/app/system/integrity"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"github.com/dalemusser/cohortdesk/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newReconciler(db *mongo.Database) (*integrity.Reconciler, *groupstore.Store) {
	groups := groupstore.New(db)
	return integrity.NewReconciler(
		groups,
		userstore.New(db),
		submissionstore.New(db),
		messagestore.New(db),
		zap.NewNop(),
	), groups
}

func TestReconcile_NoRepairNeeded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec, _ := newReconciler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	group := fixtures.CreateGroup(ctx, "Healthy Group", alice.ID)

	healed, res, err := rec.ReconcileGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ReconcileGroup failed: %v", err)
	}
	if res.Changed {
		t.Error("expected no repair on a healthy group")
	}
	if healed.Version != group.Version {
		t.Errorf("version changed on a healthy group: %d -> %d", group.Version, healed.Version)
	}
}

func TestReconcile_DropsDanglingMembersAndRequests(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec, _ := newReconciler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	group := fixtures.CreateGroup(ctx, "Test Group", alice.ID)
	fixtures.AddMember(ctx, group.ID, bob.ID, models.RoleMember)

	// A ghost member and a ghost request: their users never existed.
	ghost := primitive.NewObjectID()
	fixtures.AddMember(ctx, group.ID, ghost, models.RoleMember)
	_, err := db.Collection("groups").UpdateByID(ctx, group.ID,
		map[string]any{"$push": map[string]any{"join_requests": models.JoinRequest{
			UserID:      primitive.NewObjectID(),
			RequestedAt: time.Now().UTC(),
		}}})
	if err != nil {
		t.Fatalf("failed to plant ghost request: %v", err)
	}

	// Both post before the ghost's user disappears.
	messages := messagestore.New(db)
	for _, sender := range []primitive.ObjectID{bob.ID, ghost} {
		_, err := messages.Create(ctx, models.GroupMessage{
			ID:        primitive.NewObjectID(),
			GroupID:   group.ID,
			SenderID:  sender,
			Content:   "hello",
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatalf("failed to plant message: %v", err)
		}
	}

	healed, res, err := rec.ReconcileGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ReconcileGroup failed: %v", err)
	}
	if !res.Changed {
		t.Fatal("expected a repair")
	}
	if res.RemovedMembers != 1 || res.RemovedRequests != 1 {
		t.Errorf("removed members=%d requests=%d, want 1 and 1", res.RemovedMembers, res.RemovedRequests)
	}
	if len(healed.Members) != 2 {
		t.Errorf("members: got %d, want 2", len(healed.Members))
	}
	if len(healed.JoinRequests) != 0 {
		t.Errorf("requests: got %d, want 0", len(healed.JoinRequests))
	}
	if healed.CreatorID != alice.ID {
		t.Error("ownership must not move while the creator survives")
	}

	// The ghost's chat history goes with the membership; Bob's stays.
	remaining, err := messages.ListByGroup(ctx, group.ID, time.Now().UTC().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].SenderID != bob.ID {
		t.Errorf("messages after repair: got %d, want only Bob's", len(remaining))
	}
}

func TestReconcile_TransfersOwnershipToSurvivingAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec, groups := newReconciler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fixtures.CreateStudent(ctx, "Creator", "creator@test.com")
	coAdmin := fixtures.CreateStudent(ctx, "CoAdmin", "coadmin@test.com")
	member := fixtures.CreateStudent(ctx, "Member", "member@test.com")

	group := fixtures.CreateGroup(ctx, "Test Group", creator.ID)
	fixtures.AddMember(ctx, group.ID, coAdmin.ID, models.RoleAdmin)
	fixtures.AddMember(ctx, group.ID, member.ID, models.RoleMember)

	// The creator's account disappears.
	if _, err := userstore.New(db).Delete(ctx, creator.ID); err != nil {
		t.Fatalf("failed to delete creator: %v", err)
	}

	healed, res, err := rec.ReconcileGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ReconcileGroup failed: %v", err)
	}
	if res.NewCreatorID != coAdmin.ID {
		t.Errorf("new creator: got %s, want the surviving admin", res.NewCreatorID.Hex())
	}
	if healed.CreatorID != coAdmin.ID {
		t.Error("aggregate creator not updated")
	}
	if healed.IsMember(creator.ID) {
		t.Error("dead creator still in member list")
	}

	// Idempotent: a second pass changes nothing.
	_, res2, err := rec.ReconcileGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("second ReconcileGroup failed: %v", err)
	}
	if res2.Changed {
		t.Error("second pass must be a no-op")
	}

	// And the write is visible in the store.
	got, err := groups.GetByID(ctx, group.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.CreatorID != coAdmin.ID {
		t.Error("persisted creator not updated")
	}
}

func TestReconcile_PromotesLongestStandingMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec, _ := newReconciler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fixtures.CreateStudent(ctx, "Creator", "creator@test.com")
	early := fixtures.CreateStudent(ctx, "Early", "early@test.com")
	late := fixtures.CreateStudent(ctx, "Late", "late@test.com")

	group := fixtures.CreateGroup(ctx, "Test Group", creator.ID)

	// Plant members with explicit join times so seniority is fixed.
	base := time.Now().UTC().Add(-48 * time.Hour)
	_, err := db.Collection("groups").UpdateByID(ctx, group.ID,
		map[string]any{"$push": map[string]any{"members": map[string]any{"$each": []models.Membership{
			{UserID: late.ID, Role: models.RoleMember, JoinedAt: base.Add(time.Hour)},
			{UserID: early.ID, Role: models.RoleMember, JoinedAt: base},
		}}}})
	if err != nil {
		t.Fatalf("failed to plant members: %v", err)
	}

	if _, err := userstore.New(db).Delete(ctx, creator.ID); err != nil {
		t.Fatalf("failed to delete creator: %v", err)
	}

	healed, res, err := rec.ReconcileGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ReconcileGroup failed: %v", err)
	}
	if res.NewCreatorID != early.ID {
		t.Errorf("new creator: got %s, want the earliest member", res.NewCreatorID.Hex())
	}
	if !healed.IsAdmin(early.ID) {
		t.Error("promoted member must carry the admin role")
	}
}

func TestReconcile_DeletesGroupWithNoSurvivors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec, groups := newReconciler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	creator := fixtures.CreateStudent(ctx, "Creator", "creator@test.com")
	admin := fixtures.CreateAdmin(ctx, "Prof", "prof@test.com")
	group := fixtures.CreateGroup(ctx, "Doomed Group", creator.ID)
	assignment := fixtures.CreateAssignment(ctx, "Homework", admin.ID)
	fixtures.CreateSubmission(ctx, assignment.ID, group.ID, creator.ID)

	if _, err := userstore.New(db).Delete(ctx, creator.ID); err != nil {
		t.Fatalf("failed to delete creator: %v", err)
	}

	_, res, err := rec.ReconcileGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ReconcileGroup failed: %v", err)
	}
	if !res.Deleted {
		t.Fatal("expected the group to be deleted")
	}

	if _, err := groups.GetByID(ctx, group.ID); err == nil {
		t.Error("group still present after reconciliation")
	}
	subs, err := submissionstore.New(db).ListByGroup(ctx, group.ID)
	if err != nil {
		t.Fatalf("ListByGroup failed: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("submissions not cascaded: %d remain", len(subs))
	}
}

func TestSweepAll(t *testing.T) {
	db := testutil.SetupTestDB(t)
	rec, _ := newReconciler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	ghost := fixtures.CreateStudent(ctx, "Ghost", "ghost@test.com")

	fixtures.CreateGroup(ctx, "Healthy", alice.ID)
	broken := fixtures.CreateGroup(ctx, "Broken", alice.ID)
	fixtures.AddMember(ctx, broken.ID, ghost.ID, models.RoleMember)

	if _, err := userstore.New(db).Delete(ctx, ghost.ID); err != nil {
		t.Fatalf("failed to delete ghost: %v", err)
	}

	repaired, err := rec.SweepAll(ctx)
	if err != nil {
		t.Fatalf("SweepAll failed: %v", err)
	}
	if repaired != 1 {
		t.Errorf("repaired: got %d, want 1", repaired)
	}
}
