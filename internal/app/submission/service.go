// Package submission runs the assignment submission workflow: one
// submission per (assignment, group), file attachments, resubmission
// until graded, and grading.
//
// File handling is files-first: attachments are written to storage
// before the database sees anything, and every stored file is rolled
// back when the write that would reference it fails. Storage rollback
// and replaced-file cleanup are best effort and never mask the error
// that triggered them.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	assignmentstore "github.com/dalemusser/cohortdesk/internal/app/store/assignments"
	groupstore "github.com/dalemusser/cohortdesk/internal/app/store/groups"
	submissionstore "github.com/dalemusser/cohortdesk/internal/app/store/submissions"
	"github.com/dalemusser/cohortdesk/internal/app/system/apperr"
	"github.com/dalemusser/cohortdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/cohortdesk/internal/app/system/limits"
	"github.com/dalemusser/cohortdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// FileStore is the slice of the storage backend this service needs.
// Any pantry storage.Store satisfies it.
type FileStore interface {
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
	Delete(ctx context.Context, path string) error
}

type Service struct {
	groups      *groupstore.Store
	assignments *assignmentstore.Store
	submissions *submissionstore.Store
	files       FileStore
	log         *zap.Logger
}

func NewService(groups *groupstore.Store, assignments *assignmentstore.Store, submissions *submissionstore.Store, files FileStore, log *zap.Logger) *Service {
	return &Service{
		groups:      groups,
		assignments: assignments,
		submissions: submissions,
		files:       files,
		log:         log,
	}
}

// FileUpload is one attachment arriving with a submit call.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// SubmitInput carries everything a submit needs.
type SubmitInput struct {
	AssignmentID primitive.ObjectID
	GroupID      primitive.ObjectID
	SubmittedBy  primitive.ObjectID
	Notes        string
	Files        []FileUpload
}

// Submit records a group's work for an assignment. The first submit for
// the pair creates the document; later submits replace its content
// until the submission is graded. The caller has already verified the
// submitter's membership.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (models.Submission, error) {
	if len(in.Files) > limits.MaxSubmissionFiles {
		return models.Submission{}, apperr.NewValidation("at most %d files per submission", limits.MaxSubmissionFiles)
	}

	a, err := s.assignments.GetByID(ctx, in.AssignmentID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Submission{}, apperr.NewNotFound("assignment not found")
		}
		return models.Submission{}, apperr.NewStorage(err, "load assignment")
	}
	if !appliesTo(a, in.GroupID) {
		return models.Submission{}, apperr.NewForbidden("assignment is not available to this group")
	}

	in.Notes = htmlsanitize.Strip(in.Notes)

	refs, err := s.uploadAll(ctx, in.Files)
	if err != nil {
		return models.Submission{}, err
	}

	created, err := s.submissions.Create(ctx, models.Submission{
		AssignmentID:    in.AssignmentID,
		GroupID:         in.GroupID,
		SubmittedBy:     in.SubmittedBy,
		SubmissionNotes: in.Notes,
		Files:           refs,
	})
	if err == nil {
		s.log.Info("submission created",
			zap.String("assignment_id", in.AssignmentID.Hex()),
			zap.String("group_id", in.GroupID.Hex()))
		return created, nil
	}
	if !errors.Is(err, submissionstore.ErrDuplicate) {
		s.rollback(ctx, refs)
		return models.Submission{}, apperr.NewStorage(err, "record submission")
	}

	// A submission exists for the pair: this is a resubmit.
	prev, err := s.submissions.Resubmit(ctx, in.AssignmentID, in.GroupID, in.SubmittedBy, in.Notes, refs)
	if err != nil {
		s.rollback(ctx, refs)
		if errors.Is(err, submissionstore.ErrNoMatch) {
			return models.Submission{}, apperr.NewConflict("submission is graded and can no longer change")
		}
		return models.Submission{}, apperr.NewStorage(err, "replace submission")
	}
	// Old attachments are released only when this resubmit brought
	// replacements; a notes-only resubmit keeps them.
	if len(refs) > 0 {
		s.releaseFiles(ctx, prev.Files)
	}

	sub, err := s.submissions.GetByPair(ctx, in.AssignmentID, in.GroupID)
	if err != nil {
		return models.Submission{}, apperr.NewStorage(err, "reload submission")
	}
	s.log.Info("submission replaced",
		zap.String("assignment_id", in.AssignmentID.Hex()),
		zap.String("group_id", in.GroupID.Hex()))
	return sub, nil
}

// Grade records a grade and closes the submission. Graded is terminal:
// a second grade call is refused, as is any later resubmit.
func (s *Service) Grade(ctx context.Context, submissionID primitive.ObjectID, grade float64, feedback string, reviewerID primitive.ObjectID) (models.Submission, error) {
	if grade < models.MinGrade || grade > models.MaxGrade {
		return models.Submission{}, apperr.NewValidation("grade must be between %v and %v", models.MinGrade, models.MaxGrade)
	}
	feedback = htmlsanitize.Sanitize(feedback)

	err := s.submissions.Grade(ctx, submissionID, grade, feedback, reviewerID)
	if err != nil {
		if errors.Is(err, submissionstore.ErrNoMatch) {
			if _, gerr := s.submissions.GetByID(ctx, submissionID); gerr != nil {
				return models.Submission{}, apperr.NewNotFound("submission not found")
			}
			return models.Submission{}, apperr.NewConflict("submission is already graded")
		}
		return models.Submission{}, apperr.NewStorage(err, "grade submission")
	}

	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return models.Submission{}, apperr.NewStorage(err, "reload submission")
	}
	s.log.Info("submission graded",
		zap.String("submission_id", submissionID.Hex()),
		zap.Float64("grade", grade))
	return sub, nil
}

// Status reports where a group stands on one assignment. When no
// document exists yet the pair is pending; no placeholder is written.
func (s *Service) Status(ctx context.Context, assignmentID, groupID primitive.ObjectID) (models.Submission, error) {
	sub, err := s.submissions.GetByPair(ctx, assignmentID, groupID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.Submission{}, apperr.NewStorage(err, "load submission")
	}
	return models.Submission{
		AssignmentID: assignmentID,
		GroupID:      groupID,
		Status:       models.StatusPending,
		Files:        []models.FileRef{},
	}, nil
}

// Get loads one submission by id.
func (s *Service) Get(ctx context.Context, submissionID primitive.ObjectID) (models.Submission, error) {
	sub, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Submission{}, apperr.NewNotFound("submission not found")
		}
		return models.Submission{}, apperr.NewStorage(err, "load submission")
	}
	return sub, nil
}

// ListForAssignment returns every group's submission for an assignment.
func (s *Service) ListForAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Submission, error) {
	subs, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, apperr.NewStorage(err, "list submissions")
	}
	return subs, nil
}

// ListForGroup returns all submissions a group has made.
func (s *Service) ListForGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Submission, error) {
	subs, err := s.submissions.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, apperr.NewStorage(err, "list submissions")
	}
	return subs, nil
}

// DeleteForAssignment removes every submission under a deleted
// assignment along with their stored attachments. File deletion is best
// effort once the records are gone.
func (s *Service) DeleteForAssignment(ctx context.Context, assignmentID primitive.ObjectID) (int64, error) {
	subs, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return 0, apperr.NewStorage(err, "list submissions for cascade")
	}
	removed, err := s.submissions.DeleteByAssignment(ctx, assignmentID)
	if err != nil {
		return 0, apperr.NewStorage(err, "delete submissions")
	}
	for _, sub := range subs {
		s.releaseFiles(ctx, sub.Files)
	}
	return removed, nil
}

// FindFile resolves an attachment by its stored filename. The handler
// decides how to serve it (direct for local storage, signed URL
// otherwise).
func (s *Service) FindFile(ctx context.Context, submissionID primitive.ObjectID, filename string) (models.Submission, models.FileRef, error) {
	sub, err := s.Get(ctx, submissionID)
	if err != nil {
		return models.Submission{}, models.FileRef{}, err
	}
	for _, f := range sub.Files {
		if f.Filename == filename {
			return sub, f, nil
		}
	}
	return models.Submission{}, models.FileRef{}, apperr.NewNotFound("no file %q on this submission", filename)
}

/* ───────────────────────── file plumbing ───────────────────────── */

// uploadAll stores every attachment, undoing the ones already written
// when a later one fails.
func (s *Service) uploadAll(ctx context.Context, files []FileUpload) ([]models.FileRef, error) {
	refs := make([]models.FileRef, 0, len(files))
	for _, f := range files {
		ref, err := s.uploadOne(ctx, f)
		if err != nil {
			s.rollback(ctx, refs)
			return nil, apperr.NewStorage(err, "store attachment %q", f.Name)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// uploadOne stores a file under submissions/YYYY/MM/uuid-filename.
func (s *Service) uploadOne(ctx context.Context, f FileUpload) (models.FileRef, error) {
	now := time.Now().UTC()
	unique := fmt.Sprintf("%s-%s", uuid.New().String()[:8], sanitizeFilename(f.Name))
	path := filepath.ToSlash(filepath.Join(
		fmt.Sprintf("submissions/%04d/%02d", now.Year(), now.Month()),
		unique,
	))

	opts := &storage.PutOptions{ContentType: f.ContentType}
	if err := s.files.Put(ctx, path, f.Reader, opts); err != nil {
		return models.FileRef{}, err
	}
	return models.FileRef{
		Filename:     unique,
		OriginalName: f.Name,
		Path:         path,
		MimeType:     f.ContentType,
		Size:         f.Size,
		UploadedAt:   now,
	}, nil
}

// rollback removes files stored for a submit that did not land.
func (s *Service) rollback(ctx context.Context, refs []models.FileRef) {
	for _, ref := range refs {
		if err := s.files.Delete(ctx, ref.Path); err != nil {
			s.log.Warn("failed to roll back stored file",
				zap.String("path", ref.Path),
				zap.Error(err))
		}
	}
}

// releaseFiles deletes the attachments a resubmit replaced.
func (s *Service) releaseFiles(ctx context.Context, refs []models.FileRef) {
	for _, ref := range refs {
		if err := s.files.Delete(ctx, ref.Path); err != nil {
			s.log.Warn("failed to delete replaced file",
				zap.String("path", ref.Path),
				zap.Error(err))
		}
	}
}

func appliesTo(a models.Assignment, groupID primitive.ObjectID) bool {
	if a.IsForAll {
		return true
	}
	for _, id := range a.AssignedGroups {
		if id == groupID {
			return true
		}
	}
	return false
}

// sanitizeFilename keeps attachment names safe for storage paths.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
