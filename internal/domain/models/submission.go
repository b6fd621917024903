// internal/domain/models/submission.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Submission statuses. "pending" is implicit: no document exists until
// the first submit, so it never appears on a stored record. "reviewed"
// is still recognized on legacy records and counts as submitted on
// every read path, but no operation transitions into it.
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusReviewed  = "reviewed"
	StatusGraded    = "graded"
)

// Grade bounds.
const (
	MinGrade = 0
	MaxGrade = 100
)

// Submission records one group's work on one assignment. Exactly one
// document may exist per (assignment_id, group_id) pair, enforced by a
// unique compound index. Once Status is graded the record is terminal.
type Submission struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	AssignmentID primitive.ObjectID `bson:"assignment_id" json:"assignment_id"`
	GroupID      primitive.ObjectID `bson:"group_id" json:"group_id"`
	SubmittedBy  primitive.ObjectID `bson:"submitted_by" json:"submitted_by"`

	Status          string    `bson:"status" json:"status"`
	SubmissionNotes string    `bson:"submission_notes" json:"submission_notes"`
	Files           []FileRef `bson:"files" json:"files"`

	Grade      *float64            `bson:"grade,omitempty" json:"grade,omitempty"`
	Feedback   string              `bson:"feedback,omitempty" json:"feedback,omitempty"`
	ReviewedBy *primitive.ObjectID `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time          `bson:"reviewed_at,omitempty" json:"reviewed_at,omitempty"`

	SubmittedAt time.Time `bson:"submitted_at" json:"submitted_at"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// FileRef points at one stored attachment. Path is an opaque storage
// key; only the storage backend knows how to resolve it.
type FileRef struct {
	Filename     string    `bson:"filename" json:"filename"`
	OriginalName string    `bson:"original_name" json:"original_name"`
	Path         string    `bson:"path" json:"path"`
	MimeType     string    `bson:"mime_type" json:"mime_type"`
	Size         int64     `bson:"size" json:"size"`
	UploadedAt   time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// CountsAsSubmitted reports whether status represents work that has been
// turned in (submitted, reviewed, or graded).
func CountsAsSubmitted(status string) bool {
	switch status {
	case StatusSubmitted, StatusReviewed, StatusGraded:
		return true
	}
	return false
}
