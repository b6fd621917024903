// internal/app/store/groups/groupstore.go
//
// The groups collection holds the membership aggregate: members, join
// requests, announcements, and resources are embedded arrays on one
// document. Every mutating method here is a single conditional UpdateOne
// whose filter restates its precondition (capacity, non-duplicate,
// request present), so concurrent writers cannot lose each other's array
// changes: the update either applies atomically or matches nothing.
// ErrNoMatch tells the caller the precondition did not hold; the service
// layer re-reads the aggregate to classify why.
//
// Whole-document writes (integrity repair) go through ReplaceVersioned,
// which is guarded by the version token instead.
package groupstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

// ErrNoMatch is returned when a conditional update matched no document:
// either the group is gone or the filter's precondition no longer holds.
var ErrNoMatch = errors.New("group update matched no document")

// Collection exposes the underlying collection for read-only composition
// (progress queries, sweep iteration).
func (s *Store) Collection() *mongo.Collection { return s.c }

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// Create inserts a new group. The caller has already validated capacity
// and category and set the creator as sole admin member.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.NameCI = text.Fold(g.Name)
	g.Version = 1
	g.LastActivityAt = now
	g.ActivityCount = 1
	g.CreatedAt = now
	g.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, g); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

// notFull is the capacity guard shared by the member-adding updates.
// It compares the live member array against the document's own capacity.
func notFull() bson.M {
	return bson.M{"$expr": bson.M{"$lt": bson.A{
		bson.M{"$size": "$members"},
		"$max_members",
	}}}
}

// touch returns the update fragments every activity-producing mutation
// shares: bump version and activity counter, refresh timestamps.
func touch(now time.Time) (set bson.M, inc bson.M) {
	set = bson.M{"updated_at": now, "last_activity_at": now}
	inc = bson.M{"version": 1, "activity_count": 1}
	return
}

// AppendJoinRequest adds a pending request iff the group is public, has
// room, and the user is neither a member nor already queued.
func (s *Store) AppendJoinRequest(ctx context.Context, groupID primitive.ObjectID, req models.JoinRequest) error {
	filter := bson.M{
		"_id":                   groupID,
		"is_public":             true,
		"members.user_id":       bson.M{"$ne": req.UserID},
		"join_requests.user_id": bson.M{"$ne": req.UserID},
	}
	for k, v := range notFull() {
		filter[k] = v
	}
	update := bson.M{
		"$push": bson.M{"join_requests": req},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// PromoteJoinRequest atomically moves a queued request into the member
// list. Capacity is re-checked here, at approval time, regardless of
// what held when the request was queued.
func (s *Store) PromoteJoinRequest(ctx context.Context, groupID, userID primitive.ObjectID) error {
	filter := bson.M{
		"_id":                   groupID,
		"join_requests.user_id": userID,
		"members.user_id":       bson.M{"$ne": userID},
	}
	for k, v := range notFull() {
		filter[k] = v
	}
	now := time.Now().UTC()
	set, inc := touch(now)
	update := bson.M{
		"$pull": bson.M{"join_requests": bson.M{"user_id": userID}},
		"$push": bson.M{"members": models.Membership{UserID: userID, Role: models.RoleMember, JoinedAt: now}},
		"$set":  set,
		"$inc":  inc,
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// RemoveJoinRequest drops a queued request without any membership side
// effect (reject).
func (s *Store) RemoveJoinRequest(ctx context.Context, groupID, userID primitive.ObjectID) error {
	filter := bson.M{"_id": groupID, "join_requests.user_id": userID}
	update := bson.M{
		"$pull": bson.M{"join_requests": bson.M{"user_id": userID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// AppendMember adds a member directly (admin add), with the same
// duplicate and capacity guards as approval. Any pending request from
// the same user is cleared in the same write.
func (s *Store) AppendMember(ctx context.Context, groupID primitive.ObjectID, m models.Membership) error {
	filter := bson.M{
		"_id":             groupID,
		"members.user_id": bson.M{"$ne": m.UserID},
	}
	for k, v := range notFull() {
		filter[k] = v
	}
	set, inc := touch(time.Now().UTC())
	update := bson.M{
		"$push": bson.M{"members": m},
		"$pull": bson.M{"join_requests": bson.M{"user_id": m.UserID}},
		"$set":  set,
		"$inc":  inc,
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// RemoveMember pulls a member from the list. The filter refuses to touch
// the current creator; ownership transfer is the only path off them.
func (s *Store) RemoveMember(ctx context.Context, groupID, userID primitive.ObjectID) error {
	filter := bson.M{
		"_id":             groupID,
		"members.user_id": userID,
		"creator_id":      bson.M{"$ne": userID},
	}
	update := bson.M{
		"$pull": bson.M{"members": bson.M{"user_id": userID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// AppendAnnouncement pushes an announcement and touches activity.
func (s *Store) AppendAnnouncement(ctx context.Context, groupID primitive.ObjectID, a models.Announcement) error {
	set, inc := touch(time.Now().UTC())
	update := bson.M{
		"$push": bson.M{"announcements": a},
		"$set":  set,
		"$inc":  inc,
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": groupID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// RemoveAnnouncement deletes one announcement by its embedded id.
func (s *Store) RemoveAnnouncement(ctx context.Context, groupID, announcementID primitive.ObjectID) error {
	filter := bson.M{"_id": groupID, "announcements._id": announcementID}
	update := bson.M{
		"$pull": bson.M{"announcements": bson.M{"_id": announcementID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// AppendResource pushes a shared resource and touches activity.
func (s *Store) AppendResource(ctx context.Context, groupID primitive.ObjectID, r models.Resource) error {
	set, inc := touch(time.Now().UTC())
	update := bson.M{
		"$push": bson.M{"resources": r},
		"$set":  set,
		"$inc":  inc,
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": groupID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// RemoveResource deletes one resource by its embedded id.
func (s *Store) RemoveResource(ctx context.Context, groupID, resourceID primitive.ObjectID) error {
	filter := bson.M{"_id": groupID, "resources._id": resourceID}
	update := bson.M{
		"$pull": bson.M{"resources": bson.M{"_id": resourceID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
		"$inc":  bson.M{"version": 1},
	}
	res, err := s.c.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// TouchActivity bumps the activity counter and refreshes
// last_activity_at (message sends).
func (s *Store) TouchActivity(ctx context.Context, groupID primitive.ObjectID) error {
	set, inc := touch(time.Now().UTC())
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": groupID}, bson.M{"$set": set, "$inc": inc})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// ReplaceVersioned writes repaired membership state, guarded by the
// version the caller read. Returns ErrNoMatch when the aggregate moved
// underneath the caller; integrity repair treats that as "someone else
// got here first" and leaves the next reader to re-heal.
func (s *Store) ReplaceVersioned(ctx context.Context, g models.Group, readVersion int64) error {
	g.Version = readVersion + 1
	g.UpdatedAt = time.Now().UTC()
	res, err := s.c.ReplaceOne(ctx, bson.M{"_id": g.ID, "version": readVersion}, g)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMatch
	}
	return nil
}

// DeleteVersioned removes a group only if it still carries the version
// the caller read. Used when repair finds zero valid members: a group
// that gained a member in the meantime has a newer version and is kept.
func (s *Store) DeleteVersioned(ctx context.Context, id primitive.ObjectID, readVersion int64) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "version": readVersion})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Delete removes a group by ID unconditionally (creator-initiated
// delete). Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByMember returns every group the user belongs to, most recently
// active first.
func (s *Store) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_activity_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"members.user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchFilter narrows ListPublic. Zero values mean "no constraint".
type SearchFilter struct {
	Query    string   // folded substring match on name/description
	Category string   // exact category
	Tags     []string // any-of tag match
}

// ListPublic returns discoverable groups, most recently active first,
// capped at limit.
func (s *Store) ListPublic(ctx context.Context, f SearchFilter, limit int64) ([]models.Group, error) {
	filter := bson.M{"is_public": true}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if len(f.Tags) > 0 {
		filter["tags"] = bson.M{"$in": f.Tags}
	}
	if q := text.Fold(f.Query); q != "" {
		quoted := primitive.Regex{Pattern: regexQuote(q)}
		filter["$or"] = []bson.M{
			{"name_ci": bson.M{"$regex": quoted}},
			{"description": bson.M{"$regex": primitive.Regex{Pattern: regexQuote(f.Query), Options: "i"}}},
			{"tags": q},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "last_activity_at", Value: -1}}).
		SetLimit(limit)
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Group
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllIDs streams every group id, for the integrity sweep.
func (s *Store) AllIDs(ctx context.Context) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []primitive.ObjectID
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.ID)
	}
	return out, cur.Err()
}

// regexQuote escapes regex metacharacters so user input matches
// literally.
func regexQuote(s string) string {
	const meta = `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		for j := 0; j < len(meta); j++ {
			if c == meta[j] {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, c)
	}
	return string(out)
}
