// internal/app/store/messages/messagestore.go
package messagestore

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
	return &Store{c: db.Collection("group_messages")}
}

func (s *Store) Create(ctx context.Context, m models.GroupMessage) (models.GroupMessage, error) {
	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.GroupMessage{}, err
	}
	return m, nil
}

// ListByGroup returns up to limit messages for a group, oldest first.
// When before is non-zero only messages created earlier are returned,
// which gives callers a simple backwards pagination cursor.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID, before time.Time, limit int64) ([]models.GroupMessage, error) {
	filter := bson.M{"group_id": groupID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var page []models.GroupMessage
	if err := cur.All(ctx, &page); err != nil {
		return nil, err
	}
	// Newest-first from the index, oldest-first to the caller.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// CountByGroup returns the total message count, and the count of
// messages created at or after since when since is non-zero.
func (s *Store) CountByGroup(ctx context.Context, groupID primitive.ObjectID, since time.Time) (int64, error) {
	filter := bson.M{"group_id": groupID}
	if !since.IsZero() {
		filter["created_at"] = bson.M{"$gte": since}
	}
	return s.c.CountDocuments(ctx, filter)
}

// ActiveSenders returns how many distinct users posted in the group
// since the given time.
func (s *Store) ActiveSenders(ctx context.Context, groupID primitive.ObjectID, since time.Time) (int, error) {
	ids, err := s.c.Distinct(ctx, "sender_id", bson.M{
		"group_id":   groupID,
		"created_at": bson.M{"$gte": since},
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DeleteByGroup removes a group's chat history during cascade delete.
func (s *Store) DeleteByGroup(ctx context.Context, groupID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// DeleteBySender removes a departed user's messages from every group.
func (s *Store) DeleteBySender(ctx context.Context, senderID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"sender_id": senderID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
