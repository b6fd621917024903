// internal/app/store/submissions/submissionstore.go
//
// One submission per (assignment, group). The unique compound index on
// that pair makes the first submit win the race; resubmits go through a
// conditional update that refuses to touch a graded document.
package submissionstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/cohortdesk/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("submissions")}
}

var (
	// ErrDuplicate means a submission already exists for the
	// (assignment, group) pair.
	ErrDuplicate = errors.New("submission already exists for assignment and group")

	// ErrNoMatch means a conditional update matched nothing: the
	// submission is missing or already graded.
	ErrNoMatch = errors.New("submission update matched no document")
)

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Submission, error) {
	var sub models.Submission
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&sub); err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

func (s *Store) GetByPair(ctx context.Context, assignmentID, groupID primitive.ObjectID) (models.Submission, error) {
	var sub models.Submission
	filter := bson.M{"assignment_id": assignmentID, "group_id": groupID}
	if err := s.c.FindOne(ctx, filter).Decode(&sub); err != nil {
		return models.Submission{}, err
	}
	return sub, nil
}

// Create inserts the first submission for the pair. A concurrent first
// submit loses on the unique index and surfaces as ErrDuplicate.
func (s *Store) Create(ctx context.Context, sub models.Submission) (models.Submission, error) {
	now := time.Now().UTC()
	sub.ID = primitive.NewObjectID()
	if sub.Files == nil {
		sub.Files = []models.FileRef{}
	}
	sub.Status = models.StatusSubmitted
	sub.SubmittedAt = now
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, sub); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Submission{}, ErrDuplicate
		}
		return models.Submission{}, err
	}
	return sub, nil
}

// Resubmit replaces the content of an ungraded submission and returns
// the document as it was before the write, so the caller can release
// the replaced files. The attachment set is swapped only when new
// files are given. Grade fields are cleared: a resubmission starts
// review over.
func (s *Store) Resubmit(ctx context.Context, assignmentID, groupID, submittedBy primitive.ObjectID, notes string, files []models.FileRef) (models.Submission, error) {
	now := time.Now().UTC()
	filter := bson.M{
		"assignment_id": assignmentID,
		"group_id":      groupID,
		"status":        bson.M{"$ne": models.StatusGraded},
	}
	set := bson.M{
		"submitted_by":     submittedBy,
		"submission_notes": notes,
		"status":           models.StatusSubmitted,
		"submitted_at":     now,
		"updated_at":       now,
	}
	// A notes-only resubmit keeps the previous attachment set.
	if len(files) > 0 {
		set["files"] = files
	}
	update := bson.M{
		"$set": set,
		"$unset": bson.M{
			"grade":       "",
			"feedback":    "",
			"reviewed_by": "",
			"reviewed_at": "",
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var prev models.Submission
	if err := s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&prev); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Submission{}, ErrNoMatch
		}
		return models.Submission{}, err
	}
	return prev, nil
}

// Grade records a grade and moves the submission to its terminal
// status. A document that is already graded matches nothing.
func (s *Store) Grade(ctx context.Context, id primitive.ObjectID, grade float64, feedback string, reviewerID primitive.ObjectID) error {
	now := time.Now().UTC()
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$ne": models.StatusGraded},
	}
	update := bson.M{"$set": bson.M{
		"grade":       grade,
		"feedback":    feedback,
		"reviewed_by": reviewerID,
		"reviewed_at": now,
		"status":      models.StatusGraded,
		"updated_at":  now,
	}}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// ListByAssignment returns every group's submission for one
// assignment, newest first.
func (s *Store) ListByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Submission, error) {
	return s.find(ctx, bson.M{"assignment_id": assignmentID})
}

// ListByGroup returns all of a group's submissions, newest first.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Submission, error) {
	return s.find(ctx, bson.M{"group_id": groupID})
}

// DeleteByGroup removes all of a group's submissions during cascade
// delete. Callers list first when they need the file refs.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteByAssignment removes every submission for a deleted
// assignment.
func (s *Store) DeleteByAssignment(ctx context.Context, assignmentID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"assignment_id": assignmentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Submission
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
