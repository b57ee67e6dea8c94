package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"hoiku-portal/internal/database"
	"hoiku-portal/internal/metrics"
	"hoiku-portal/internal/models"
	"hoiku-portal/internal/policy"
	"hoiku-portal/internal/storage"
	"hoiku-portal/internal/workflow"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SubmissionService drives a client's submission for a template through the
// status workflow.
type SubmissionService struct {
	db       *gorm.DB
	store    storage.Store
	machine  *workflow.Machine
	maxBytes int64
	now      func() time.Time
}

func NewSubmissionService(db *gorm.DB, store storage.Store, machine *workflow.Machine, maxBytes int64) *SubmissionService {
	return &SubmissionService{db: db, store: store, machine: machine, maxBytes: maxBytes, now: time.Now}
}

// GetOrCreate returns the submission for (templateID, clientID), creating it
// as not_submitted on first use. Concurrent first calls converge on one row.
func (s *SubmissionService) GetOrCreate(ctx context.Context, templateID, clientID uint) (*models.Submission, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Template{}).Where("id = ?", templateID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("find template: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("template %d: %w", templateID, ErrNotFound)
	}

	sub, err := s.findPair(db, templateID, clientID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find submission: %w", err)
	}

	fresh := models.Submission{
		TemplateID: templateID,
		ClientID:   clientID,
		Status:     models.StatusNotSubmitted,
		UpdatedAt:  s.now(),
	}
	// a concurrent insert of the same pair is not an error; re-read below
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "template_id"}, {Name: "client_id"}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	sub, err = s.findPair(db, templateID, clientID)
	if err != nil {
		return nil, fmt.Errorf("reload submission: %w", err)
	}
	return sub, nil
}

func (s *SubmissionService) findPair(db *gorm.DB, templateID, clientID uint) (*models.Submission, error) {
	var sub models.Submission
	err := db.Preload("Template").
		Where("template_id = ? AND client_id = ?", templateID, clientID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// Get loads a submission with its template and client.
func (s *SubmissionService) Get(ctx context.Context, id uint) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.WithContext(ctx).Preload("Template").Preload("Client").First(&sub, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("submission %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &sub, nil
}

// Submit stores a completed file from the submission's client and moves the
// submission to submitted. A previous reviewer comment is kept.
func (s *SubmissionService) Submit(ctx context.Context, caller *models.User, id uint, file *Upload) (*models.Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := policy.CanSubmit(caller, sub); !d.Allowed {
		return nil, forbidden(d)
	}
	next, err := s.machine.Next(sub.Status, workflow.ActionUpload)
	if err != nil {
		return nil, err
	}
	if err := file.validate(s.maxBytes); err != nil {
		recordRejected("submission", err)
		return nil, err
	}

	now := s.now()
	key := storage.SubmissionKey(caller.ID, now, file.Filename)
	counted := &countingReader{r: file.reader(s.maxBytes)}
	if err := s.store.Save(ctx, key, counted); err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			recordRejected("submission", err)
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("store submission file: %w", err)
	}

	prev := sub.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Submission{}).Where("id = ?", sub.ID).Updates(map[string]any{
			"filename":     key,
			"status":       next,
			"submitted_at": now,
			"updated_at":   now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		details := fmt.Sprintf("%s -> %s: %s", prev, next, key)
		return database.CreateAuditLog(tx, caller.ID, "submission", sub.ID, "upload", details)
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			slog.WarnContext(ctx, "failed to remove orphaned submission file", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("record submission: %w", err)
	}

	sub.Filename = &key
	sub.Status = next
	sub.SubmittedAt = &now
	sub.UpdatedAt = now

	metrics.UploadedBytes.WithLabelValues("submission").Add(float64(counted.n))
	metrics.StatusTransitions.WithLabelValues(string(prev), string(next)).Inc()
	slog.InfoContext(ctx, "submission uploaded",
		"submission_id", sub.ID, "client_id", caller.ID, "from", prev, "to", next)
	return sub, nil
}

// Review sets the status chosen by the template's owner and the comment.
func (s *SubmissionService) Review(ctx context.Context, caller *models.User, id uint, status models.SubmissionStatus, comment string) (*models.Submission, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := policy.CanReview(caller, sub, &sub.Template); !d.Allowed {
		return nil, forbidden(d)
	}
	action, err := workflow.ReviewAction(status)
	if err != nil {
		return nil, err
	}
	next, err := s.machine.Next(sub.Status, action)
	if err != nil {
		return nil, err
	}

	var commentVal *string
	if c := strings.TrimSpace(comment); c != "" {
		commentVal = &c
	}

	now := s.now()
	prev := sub.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Submission{}).Where("id = ?", sub.ID).Updates(map[string]any{
			"status":     next,
			"comment":    commentVal,
			"updated_at": now,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		details := fmt.Sprintf("%s -> %s", prev, next)
		if commentVal != nil {
			details += ": " + *commentVal
		}
		return database.CreateAuditLog(tx, caller.ID, "submission", sub.ID, "review", details)
	})
	if err != nil {
		return nil, fmt.Errorf("record review: %w", err)
	}

	sub.Status = next
	sub.Comment = commentVal
	sub.UpdatedAt = now

	metrics.StatusTransitions.WithLabelValues(string(prev), string(next)).Inc()
	slog.InfoContext(ctx, "submission reviewed",
		"submission_id", sub.ID, "reviewer_id", caller.ID, "from", prev, "to", next)
	return sub, nil
}

// ListForClient maps template id to the caller's submission for it.
func (s *SubmissionService) ListForClient(ctx context.Context, caller *models.User) (map[uint]models.Submission, error) {
	if caller == nil {
		return nil, forbidden(policy.RequireRole(caller, models.RoleClient))
	}
	var subs []models.Submission
	if err := s.db.WithContext(ctx).Where("client_id = ?", caller.ID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	out := make(map[uint]models.Submission, len(subs))
	for _, sub := range subs {
		out[sub.TemplateID] = sub
	}
	return out, nil
}

// OpenFile returns the uploaded file to its client or the reviewing master.
func (s *SubmissionService) OpenFile(ctx context.Context, caller *models.User, id uint) (*models.Submission, io.ReadCloser, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d := policy.CanReadSubmission(caller, sub, &sub.Template); !d.Allowed {
		return nil, nil, forbidden(d)
	}
	if !sub.HasFile() {
		return nil, nil, fmt.Errorf("submission %d has no file: %w", id, ErrNotFound)
	}
	rc, err := s.store.Open(ctx, *sub.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil, fmt.Errorf("submission %d file: %w", id, ErrNotFound)
		}
		return nil, nil, err
	}
	return sub, rc, nil
}

// History returns the upload and review trail of a submission.
func (s *SubmissionService) History(ctx context.Context, caller *models.User, id uint) ([]models.AuditLog, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := policy.CanReadSubmission(caller, sub, &sub.Template); !d.Allowed {
		return nil, forbidden(d)
	}
	return database.AuditTrail(s.db.WithContext(ctx), "submission", sub.ID)
}

// CanUpload reports whether the workflow accepts a new upload for sub.
func (s *SubmissionService) CanUpload(sub *models.Submission) bool {
	return s.machine.Allowed(sub.Status, workflow.ActionUpload)
}
