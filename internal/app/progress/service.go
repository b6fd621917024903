// Package progress aggregates completion figures: how far along a
// group is across its assignments, and how an assignment is doing
// across its groups. Figures are computed on demand from the
// submissions collection; nothing is cached or denormalized.
package progress

import (
	"context"
	"errors"
	"math"

	assignmentstore "github.com/dalemusser/cohortdesk/internal/app/store/assignments"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Service struct {
	assignments *assignmentstore.Store
	submissions *submissionstore.Store
}

func NewService(assignments *assignmentstore.Store, submissions *submissionstore.Store) *Service {
	return &Service{assignments: assignments, submissions: submissions}
}

// GroupProgress is a group's overall completion figure. Pending is the
// gap between what was assigned and what was turned in; percent is
// rounded to a whole number.
type GroupProgress struct {
	GroupID          primitive.ObjectID `json:"group_id"`
	TotalAssignments int                `json:"total_assignments"`
	Submitted        int                `json:"submitted"`
	Graded           int                `json:"graded"`
	Pending          int                `json:"pending"`
	Percent          int                `json:"percent"`
}

// AssignmentRow is one line of a group's progress board.
type AssignmentRow struct {
	Assignment models.Assignment `json:"assignment"`
	Status     string            `json:"status"`
	Grade      *float64          `json:"grade,omitempty"`
}

// ForGroup computes a group's completion across the assignments that
// apply to it. A group with nothing assigned is 0 percent complete,
// not a division error.
func (s *Service) ForGroup(ctx context.Context, groupID primitive.ObjectID) (GroupProgress, error) {
	applicable, err := s.assignments.ListForGroup(ctx, groupID)
	if err != nil {
		return GroupProgress{}, apperr.NewStorage(err, "list assignments")
	}
	p := GroupProgress{GroupID: groupID, TotalAssignments: len(applicable)}
	if len(applicable) == 0 {
		return p, nil
	}

	inScope := make(map[primitive.ObjectID]bool, len(applicable))
	for _, a := range applicable {
		inScope[a.ID] = true
	}
	subs, err := s.submissions.ListByGroup(ctx, groupID)
	if err != nil {
		return GroupProgress{}, apperr.NewStorage(err, "list submissions")
	}
	for _, sub := range subs {
		// Work for a retargeted or deleted assignment does not count.
		if !inScope[sub.AssignmentID] || !models.CountsAsSubmitted(sub.Status) {
			continue
		}
		p.Submitted++
		if sub.Status == models.StatusGraded {
			p.Graded++
		}
	}
	p.Pending = p.TotalAssignments - p.Submitted
	p.Percent = int(math.Round(float64(p.Submitted) / float64(p.TotalAssignments) * 100))
	return p, nil
}

// Board returns a group's per-assignment status rows, due-date order.
// Assignments without a submission document read as pending.
func (s *Service) Board(ctx context.Context, groupID primitive.ObjectID) ([]AssignmentRow, error) {
	applicable, err := s.assignments.ListForGroup(ctx, groupID)
	if err != nil {
		return nil, apperr.NewStorage(err, "list assignments")
	}
	subs, err := s.submissions.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, apperr.NewStorage(err, "list submissions")
	}
	byAssignment := make(map[primitive.ObjectID]models.Submission, len(subs))
	for _, sub := range subs {
		byAssignment[sub.AssignmentID] = sub
	}

	rows := make([]AssignmentRow, 0, len(applicable))
	for _, a := range applicable {
		row := AssignmentRow{Assignment: a, Status: models.StatusPending}
		if sub, ok := byAssignment[a.ID]; ok {
			row.Status = sub.Status
			row.Grade = sub.Grade
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AssignmentOverview is the instructor's view of one assignment.
type AssignmentOverview struct {
	Assignment   models.Assignment   `json:"assignment"`
	Submissions  []models.Submission `json:"submissions"`
	Graded       int                 `json:"graded"`
	Ungraded     int                 `json:"ungraded"`
	AverageGrade *float64            `json:"average_grade,omitempty"`
}

// ForAssignment summarizes an assignment's submissions across groups.
func (s *Service) ForAssignment(ctx context.Context, assignmentID primitive.ObjectID) (AssignmentOverview, error) {
	a, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return AssignmentOverview{}, apperr.NewNotFound("assignment not found")
		}
		return AssignmentOverview{}, apperr.NewStorage(err, "load assignment")
	}
	subs, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return AssignmentOverview{}, apperr.NewStorage(err, "list submissions")
	}

	ov := AssignmentOverview{Assignment: a, Submissions: subs}
	var sum float64
	for _, sub := range subs {
		if sub.Status == models.StatusGraded && sub.Grade != nil {
			ov.Graded++
			sum += *sub.Grade
		} else {
			ov.Ungraded++
		}
	}
	if ov.Graded > 0 {
		avg := math.Round(sum/float64(ov.Graded)*100) / 100
		ov.AverageGrade = &avg
	}
	return ov, nil
}
