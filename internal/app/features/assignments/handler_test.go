package assignments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/dalemusser/cohortdesk/internal/app/progress"
	assignmentstore "github.com/dalemusser/cohortdesk/internal/app/store/assignments"
	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	"github.com/dalemusser/cohortdesk/internal/app/submission"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"github.com/dalemusser/cohortdesk/internal/testutil"
	"github.com/dalemusser/waffle/pantry/storage"
)

// memFiles is an in-memory stand-in for the storage backend; these
// tests only care that cascades call Delete.
type memFiles struct{ paths map[string]bool }

func (m *memFiles) Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error {
	if m.paths == nil {
		m.paths = map[string]bool{}
	}
	m.paths[path] = true
	return nil
}

func (m *memFiles) Delete(ctx context.Context, path string) error {
	delete(m.paths, path)
	return nil
}

func newTestHandler(db *mongo.Database) *Handler {
	assignments := assignmentstore.New(db)
	submissions := submissionstore.New(db)
	groups := groupstore.New(db)
	svc := submission.NewService(groups, assignments, submissions, &memFiles{}, zap.NewNop())
	return NewHandler(assignments, groups, svc,
		progress.NewService(assignments, submissions), zap.NewNop())
}

func TestHandleCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)

	due := time.Now().Add(7 * 24 * time.Hour).UTC().Format(time.RFC3339)
	req := testutil.NewJSONRequest(http.MethodPost, "/",
		`{"title":"Sorting Essay","description":"<p>Compare two sorts<script>x</script></p>","due_date":"`+due+`","is_for_all":true}`)
	req = testutil.WithUser(req, testutil.AdminUser())
	rec := testutil.NewRecorder()
	h.HandleCreate(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusCreated)

	var a models.Assignment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode assignment: %v", err)
	}
	if !a.IsForAll {
		t.Error("expected a for-all assignment")
	}
	if a.Description != "<p>Compare two sorts</p>" {
		t.Errorf("description not sanitized: %q", a.Description)
	}

	cases := []struct {
		name string
		body string
	}{
		{"missing title", `{"due_date":"` + due + `","is_for_all":true}`},
		{"missing due date", `{"title":"X","is_for_all":true}`},
		{"targeted without groups", `{"title":"X","due_date":"` + due + `"}`},
		{"malformed group id", `{"title":"X","due_date":"` + due + `","assigned_groups":["nope"]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := testutil.NewJSONRequest(http.MethodPost, "/", tc.body)
			req = testutil.WithUser(req, testutil.AdminUser())
			rec := testutil.NewRecorder()
			h.HandleCreate(rec.ResponseRecorder, req)
			rec.AssertStatus(t, http.StatusBadRequest)
		})
	}
}

func TestServeList_StudentScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Prof", "prof@test.com")
	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	mine := fixtures.CreateGroup(ctx, "Mine", alice.ID)
	other := fixtures.CreateGroup(ctx, "Other", admin.ID)

	fixtures.CreateAssignment(ctx, "For Everyone", admin.ID)
	fixtures.CreateAssignmentForGroups(ctx, "For Mine", admin.ID, mine.ID)
	fixtures.CreateAssignmentForGroups(ctx, "For Other", admin.ID, other.ID)

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/",
		testutil.StudentUserWithID(alice.ID))
	rec := testutil.NewRecorder()
	h.ServeList(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)

	var list []models.Assignment
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("student list: got %d assignments, want 2", len(list))
	}
	for _, a := range list {
		if a.Title == "For Other" {
			t.Error("student saw an assignment scoped to another group")
		}
	}

	// The admin sees all three.
	req = testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.AdminUser())
	rec = testutil.NewRecorder()
	h.ServeList(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("admin list: got %d assignments, want 3", len(list))
	}
}

func TestHandleDelete_CascadesSubmissions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Prof", "prof@test.com")
	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	g := fixtures.CreateGroup(ctx, "Group", alice.ID)
	a := fixtures.CreateAssignment(ctx, "Essay", admin.ID)
	fixtures.CreateSubmission(ctx, a.ID, g.ID, alice.ID)

	req := testutil.NewAuthenticatedRequest(http.MethodDelete, "/"+a.ID.Hex(), testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "assignmentID", a.ID.Hex())
	rec := testutil.NewRecorder()
	h.HandleDelete(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusNoContent)

	if _, err := submissionstore.New(db).GetByPair(ctx, a.ID, g.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("expected the submission to be gone, got err=%v", err)
	}

	// Deleting again is a 404.
	rec = testutil.NewRecorder()
	h.HandleDelete(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestServeOverview(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(db)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Prof", "prof@test.com")
	alice := fixtures.CreateStudent(ctx, "Alice", "alice@test.com")
	g := fixtures.CreateGroup(ctx, "Group", alice.ID)
	a := fixtures.CreateAssignment(ctx, "Essay", admin.ID)
	fixtures.CreateSubmission(ctx, a.ID, g.ID, alice.ID)

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/overview", testutil.AdminUser())
	req = testutil.WithChiURLParam(req, "assignmentID", a.ID.Hex())
	rec := testutil.NewRecorder()
	h.ServeOverview(rec.ResponseRecorder, req)
	rec.AssertStatus(t, http.StatusOK)

	var ov struct {
		Graded   int `json:"graded"`
		Ungraded int `json:"ungraded"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if ov.Graded != 0 || ov.Ungraded != 1 {
		t.Errorf("overview: got %+v", ov)
	}
}
