// internal/domain/models/assignment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Assignment is published by an admin, either to every group (IsForAll)
// or to an explicit list of groups.
type Assignment struct {
	ID            primitive.ObjectID   `bson:"_id" json:"id"`
	Title         string               `bson:"title" json:"title"`
	Description   string               `bson:"description" json:"description"`
	DueDate       time.Time            `bson:"due_date" json:"due_date"`
	ReferenceLink string               `bson:"reference_link,omitempty" json:"reference_link,omitempty"`
	CreatedBy     primitive.ObjectID   `bson:"created_by" json:"created_by"`
	IsForAll      bool                 `bson:"is_for_all" json:"is_for_all"`
	AssignedGroups []primitive.ObjectID `bson:"assigned_groups" json:"assigned_groups"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
