// internal/domain/models/groupmessage.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxMessageLength bounds group chat message content.
const MaxMessageLength = 2000

// GroupMessage is a fire-and-forget chat message scoped to a group.
// Delivery guarantees are out of scope; messages are stored and listed,
// nothing more.
type GroupMessage struct {
	ID       primitive.ObjectID  `bson:"_id" json:"id"`
	GroupID  primitive.ObjectID  `bson:"group_id" json:"group_id"`
	SenderID primitive.ObjectID  `bson:"sender_id" json:"sender_id"`
	Content  string              `bson:"content" json:"content"`
	ReplyTo  *primitive.ObjectID `bson:"reply_to,omitempty" json:"reply_to,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
