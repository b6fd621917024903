// internal/app/store/assignments/assignmentstore.go
package assignmentstore

import (
	"context"
	"time"

	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("assignments")}
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Assignment, error) {
	var a models.Assignment
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		return models.Assignment{}, err
	}
	return a, nil
}

func (s *Store) Create(ctx context.Context, a models.Assignment) (models.Assignment, error) {
	now := time.Now().UTC()
	a.ID = primitive.NewObjectID()
	if a.AssignedGroups == nil {
		a.AssignedGroups = []primitive.ObjectID{}
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, a); err != nil {
		return models.Assignment{}, err
	}
	return a, nil
}

// Update rewrites the mutable fields of an assignment.
func (s *Store) Update(ctx context.Context, a models.Assignment) error {
	update := bson.M{"$set": bson.M{
		"title":           a.Title,
		"description":     a.Description,
		"due_date":        a.DueDate,
		"reference_link":  a.ReferenceLink,
		"is_for_all":      a.IsForAll,
		"assigned_groups": a.AssignedGroups,
		"updated_at":      time.Now().UTC(),
	}}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": a.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListAll returns every assignment, newest due date first.
func (s *Store) ListAll(ctx context.Context) ([]models.Assignment, error) {
	return s.find(ctx, bson.M{})
}

// ListForGroup returns the assignments that apply to a group: the
// broadcast ones plus those targeting the group directly.
func (s *Store) ListForGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Assignment, error) {
	filter := bson.M{"$or": []bson.M{
		{"is_for_all": true},
		{"assigned_groups": groupID},
	}}
	return s.find(ctx, filter)
}

// CountForGroup returns how many assignments apply to a group. The
// progress denominator.
func (s *Store) CountForGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	filter := bson.M{"$or": []bson.M{
		{"is_for_all": true},
		{"assigned_groups": groupID},
	}}
	return s.c.CountDocuments(ctx, filter)
}

// PullGroup removes a deleted group from every assignment's target
// list. Broadcast assignments are untouched.
func (s *Store) PullGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"assigned_groups": groupID},
		bson.M{
			"$pull": bson.M{"assigned_groups": groupID},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Assignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: -1}})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Assignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
