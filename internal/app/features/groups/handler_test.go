package groups

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/membership"
	"github.com/dalemusser/cohortdesk/internal/app/progress"
	assignmentstore "github.com/dalemusser/cohortdesk/internal/app/store/assignments"
	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	messagestore "github.com/dalemusser/cohortdesk/internal/app/store/messages"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	userstore "github.com/dalemusser/cohortdesk/internal/app/store/users"
	"github.com/dalemusser/cohortdesk/internal/app/system/integrity"
	"github.com/dalemusser/cohortdesk/internal/testutil"
)

func newTestHandler(db *mongo.Database) *Handler {
	groups := groupstore.New(db)
	users := userstore.New(db)
	submissions := submissionstore.New(db)
	messages := messagestore.New(db)
	assignments := assignmentstore.New(db)
	rec := integrity.NewReconciler(groups, users, submissions, messages, zap.NewNop())
	ms := membership.NewService(db.Client(), groups, users, submissions, messages, assignments, rec, zap.NewNop())
	ps := progress.NewService(assignments, submissions)
	return NewHandler(ms, ps, zap.NewNop())
}

func TestHandleCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")

	req := testutil.NewJSONRequest(http.MethodPost, "/",
		`{"name":"Algorithms Study","category":"study","is_public":true,"tags":["CS"]}`)
	req = testutil.WithUser(req, testutil.StudentUserWithID(alice.ID))
	rec := testutil.NewRecorder()
	h.HandleCreate(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusCreated)
	rec.AssertContains(t, `"Algorithms Study"`)
	rec.AssertContains(t, alice.ID.Hex())

	// Unknown category fails validation.
	req = testutil.NewJSONRequest(http.MethodPost, "/", `{"name":"X","category":"club"}`)
	req = testutil.WithUser(req, testutil.StudentUserWithID(alice.ID))
	rec = testutil.NewRecorder()
	h.HandleCreate(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeGroup_Visibility(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	g := fixtures.CreateGroup(ctx, "Algebra Circle", alice.ID)

	serve := func(u testutil.TestUser) *testutil.ResponseRecorder {
		req := testutil.NewAuthenticatedRequest(http.MethodGet, "/"+g.ID.Hex(), u)
		req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
		rec := testutil.NewRecorder()
		h.ServeGroup(rec.ResponseRecorder, req)
		return rec
	}

	// The member sees internals.
	rec := serve(testutil.StudentUserWithID(alice.ID))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"members"`)

	// A non-member of a public group sees listing fields only.
	rec = serve(testutil.StudentUserWithID(bob.ID))
	rec.AssertStatus(t, http.StatusOK)
	var pv struct {
		Name        string `json:"name"`
		MemberCount int    `json:"member_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pv); err != nil {
		t.Fatalf("decode public view: %v", err)
	}
	if pv.Name != "Algebra Circle" || pv.MemberCount != 1 {
		t.Errorf("public view: got %+v", pv)
	}
	if strings.Contains(rec.Body.String(), `"join_requests"`) {
		t.Error("public view leaked join requests")
	}

	// A private group is invisible to outsiders.
	priv := fixtures.CreateGroup(ctx, "Private Circle", alice.ID)
	if _, err := groupstore.New(db).Collection().UpdateByID(ctx, priv.ID,
		bson.M{"$set": bson.M{"is_public": false}}); err != nil {
		t.Fatalf("make group private: %v", err)
	}
	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/"+priv.ID.Hex(),
		testutil.StudentUserWithID(bob.ID))
	req = testutil.WithChiURLParam(req, "groupID", priv.ID.Hex())
	rec = testutil.NewRecorder()
	h.ServeGroup(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestJoinRequestEndpoints(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	g := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	// Bob asks to join.
	req := testutil.NewJSONRequest(http.MethodPost, "/"+g.ID.Hex()+"/join-requests",
		`{"message":"count me in"}`)
	req = testutil.WithUser(req, testutil.StudentUserWithID(bob.ID))
	req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
	rec := testutil.NewRecorder()
	h.HandleRequestJoin(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusAccepted)

	// The admin sees the pending request with requester details.
	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/join-requests",
		testutil.StudentUserWithID(alice.ID))
	req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
	rec = testutil.NewRecorder()
	h.ServeJoinRequests(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "count me in")
	rec.AssertContains(t, "bob@test.com")

	// Non-admins do not.
	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/join-requests",
		testutil.StudentUserWithID(bob.ID))
	req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
	rec = testutil.NewRecorder()
	h.ServeJoinRequests(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusForbidden)

	// Bob cannot approve his own request.
	approve := func(as testutil.TestUser) *testutil.ResponseRecorder {
		req := testutil.NewAuthenticatedRequest(http.MethodPost, "/approve", as)
		req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
		req = testutil.WithChiURLParam(req, "userID", bob.ID.Hex())
		rec := testutil.NewRecorder()
		h.HandleApproveRequest(rec.ResponseRecorder, req)
		return rec
	}
	approve(testutil.StudentUserWithID(bob.ID)).AssertStatus(t, http.StatusForbidden)

	// The group admin approves it.
	approve(testutil.StudentUserWithID(alice.ID)).AssertStatus(t, http.StatusNoContent)

	// Approving again conflicts; Bob is already a member.
	approve(testutil.StudentUserWithID(alice.ID)).AssertStatus(t, http.StatusConflict)
}

func TestHandleRemoveMember_CreatorGuard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	g := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	// Not even a platform admin removes the creator.
	req := testutil.NewAuthenticatedRequest(http.MethodDelete, "/members", testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
	req = testutil.WithChiURLParam(req, "userID", alice.ID.Hex())
	rec := testutil.NewRecorder()
	h.HandleRemoveMember(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestHandleLeave(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	g := fixtures.CreateGroup(ctx, "Study Group", alice.ID)
	fixtures.AddMember(ctx, g.ID, bob.ID, "member")

	leave := func(as testutil.TestUser) *testutil.ResponseRecorder {
		req := testutil.NewAuthenticatedRequest(http.MethodPost, "/leave", as)
		req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
		rec := testutil.NewRecorder()
		h.HandleLeave(rec.ResponseRecorder, req)
		return rec
	}

	// The creator cannot leave.
	rec := leave(testutil.StudentUserWithID(alice.ID))
	rec.AssertStatus(t, http.StatusForbidden)
	rec.AssertContains(t, "delete the group instead")

	// Bob can.
	leave(testutil.StudentUserWithID(bob.ID)).AssertStatus(t, http.StatusNoContent)
}

func TestMessageEndpoints(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	g := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	post := func(as testutil.TestUser, body string) *testutil.ResponseRecorder {
		req := testutil.NewJSONRequest(http.MethodPost, "/messages", body)
		req = testutil.WithUser(req, as)
		req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
		rec := testutil.NewRecorder()
		h.HandlePostMessage(rec.ResponseRecorder, req)
		return rec
	}

	post(testutil.StudentUserWithID(alice.ID), `{"content":"hello"}`).
		AssertStatus(t, http.StatusCreated)

	// Non-members cannot post.
	post(testutil.StudentUserWithID(bob.ID), `{"content":"let me in"}`).
		AssertStatus(t, http.StatusForbidden)

	// Listing returns the message to a member.
	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/messages",
		testutil.StudentUserWithID(alice.ID))
	req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
	rec := testutil.NewRecorder()
	h.ServeMessages(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "hello")

	// A bad cursor is rejected.
	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/messages?before=yesterday",
		testutil.StudentUserWithID(alice.ID))
	req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
	rec = testutil.NewRecorder()
	h.ServeMessages(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeProgress(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Prof", "prof@test.com")
	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	g := fixtures.CreateGroup(ctx, "Study Group", alice.ID)

	a1 := fixtures.CreateAssignment(ctx, "Essay", admin.ID)
	fixtures.CreateAssignment(ctx, "Quiz", admin.ID)
	fixtures.CreateSubmission(ctx, a1.ID, g.ID, alice.ID)

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/progress",
		testutil.StudentUserWithID(alice.ID))
	req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
	rec := testutil.NewRecorder()
	h.ServeProgress(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)

	var p struct {
		TotalAssignments int     `json:"total_assignments"`
		Submitted        int     `json:"submitted"`
		Percent          float64 `json:"percent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if p.TotalAssignments != 2 || p.Submitted != 1 || p.Percent != 50 {
		t.Errorf("progress: got %+v", p)
	}
}

func TestServeStats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Prof", "prof@test.com")
	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	bob := fixtures.CreateStudent(ctx, "Bob", "bob@test.com")
	g := fixtures.CreateGroup(ctx, "Study Group", alice.ID)
	other := fixtures.CreateGroup(ctx, "Other Group", bob.ID)
	fixtures.AddMember(ctx, g.ID, bob.ID, "member")

	// One assignment for everyone, one targeted here, one elsewhere.
	fixtures.CreateAssignment(ctx, "Essay", admin.ID)
	fixtures.CreateAssignmentForGroups(ctx, "Lab", admin.ID, g.ID)
	fixtures.CreateAssignmentForGroups(ctx, "Elsewhere", admin.ID, other.ID)

	for _, body := range []string{`{"content":"one"}`, `{"content":"two"}`} {
		req := testutil.NewJSONRequest(http.MethodPost, "/messages", body)
		req = testutil.WithUser(req, testutil.StudentUserWithID(alice.ID))
		req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
		rec := testutil.NewRecorder()
		h.HandlePostMessage(rec.ResponseRecorder, req)
		rec.AssertStatus(t, http.StatusCreated)
	}

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/stats",
		testutil.StudentUserWithID(bob.ID))
	req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
	rec := testutil.NewRecorder()
	h.ServeStats(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)

	var stats struct {
		Members       int   `json:"members"`
		Assignments   int64 `json:"assignments"`
		Messages      int64 `json:"messages"`
		MessagesToday int64 `json:"messages_last_24h"`
		ActiveSenders int   `json:"active_senders_last_7d"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Members != 2 || stats.Messages != 2 || stats.MessagesToday != 2 || stats.ActiveSenders != 1 {
		t.Errorf("stats: got %+v", stats)
	}
	if stats.Assignments != 2 {
		t.Errorf("assignments: got %d, want the for-all plus the targeted one", stats.Assignments)
	}

	// Outsiders do not get stats.
	outsider := fixtures.CreateStudent(ctx, "Eve", "eve@test.com")
	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/stats",
		testutil.StudentUserWithID(outsider.ID))
	req = testutil.WithChiURLParam(req, "groupID", g.ID.Hex())
	rec = testutil.NewRecorder()
	h.ServeStats(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusForbidden)
}
