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

	"gorm.io/gorm"
)

type CreateTemplateInput struct {
	Title       string
	Description string
	Category    models.Category // optional
}

// TemplateService is the registry of templates published by masters.
type TemplateService struct {
	db       *gorm.DB
	store    storage.Store
	maxBytes int64
	now      func() time.Time
}

func NewTemplateService(db *gorm.DB, store storage.Store, maxBytes int64) *TemplateService {
	return &TemplateService{db: db, store: store, maxBytes: maxBytes, now: time.Now}
}

func (s *TemplateService) Create(ctx context.Context, caller *models.User, in CreateTemplateInput, file *Upload) (*models.Template, error) {
	if d := policy.RequireRole(caller, models.RoleMaster); !d.Allowed {
		return nil, forbidden(d)
	}

	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", ErrInvalidInput)
	}
	var category *models.Category
	if in.Category != "" {
		if !in.Category.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
		}
		c := in.Category
		category = &c
	}
	if err := file.validate(s.maxBytes); err != nil {
		recordRejected("template", err)
		return nil, err
	}

	key := storage.TemplateKey(s.now(), file.Filename)
	counted := &countingReader{r: file.reader(s.maxBytes)}
	if err := s.store.Save(ctx, key, counted); err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			recordRejected("template", err)
			return nil, ErrFileTooLarge
		}
		return nil, fmt.Errorf("store template file: %w", err)
	}

	tmpl := models.Template{
		Title:       title,
		Description: description,
		Filename:    key,
		Category:    category,
		OwnerID:     caller.ID,
		CreatedAt:   s.now(),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tmpl).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, caller.ID, "template", tmpl.ID, "create", tmpl.Title)
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			slog.WarnContext(ctx, "failed to remove orphaned template file", "key", key, "error", delErr)
		}
		return nil, fmt.Errorf("create template: %w", err)
	}

	metrics.UploadedBytes.WithLabelValues("template").Add(float64(counted.n))
	slog.InfoContext(ctx, "template created", "template_id", tmpl.ID, "owner_id", caller.ID, "file", key)
	return &tmpl, nil
}

// ListForMaster returns the caller's templates with their submissions.
func (s *TemplateService) ListForMaster(ctx context.Context, caller *models.User) ([]models.Template, error) {
	if d := policy.RequireRole(caller, models.RoleMaster); !d.Allowed {
		return nil, forbidden(d)
	}
	var templates []models.Template
	err := s.db.WithContext(ctx).
		Preload("Submissions", func(db *gorm.DB) *gorm.DB { return db.Order("updated_at desc") }).
		Preload("Submissions.Client").
		Where("owner_id = ?", caller.ID).
		Order("created_at desc, id desc").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// ListAll returns every template regardless of owner or category.
func (s *TemplateService) ListAll(ctx context.Context) ([]models.Template, error) {
	var templates []models.Template
	err := s.db.WithContext(ctx).
		Preload("Owner").
		Order("created_at desc, id desc").
		Find(&templates).Error
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

func (s *TemplateService) Get(ctx context.Context, id uint) (*models.Template, error) {
	var tmpl models.Template
	if err := s.db.WithContext(ctx).First(&tmpl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("template %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	return &tmpl, nil
}

// OpenFile returns the template and its stored file. Any authenticated user
// may download any template.
func (s *TemplateService) OpenFile(ctx context.Context, id uint) (*models.Template, io.ReadCloser, error) {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, tmpl.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil, fmt.Errorf("template %d file: %w", id, ErrNotFound)
		}
		return nil, nil, err
	}
	return tmpl, rc, nil
}

// Submissions lists every client's submission for a template owned by caller.
func (s *TemplateService) Submissions(ctx context.Context, caller *models.User, id uint) (*models.Template, []models.Submission, error) {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if d := policy.RequireOwnership(caller, tmpl); !d.Allowed {
		return nil, nil, forbidden(d)
	}
	var subs []models.Submission
	err = s.db.WithContext(ctx).
		Preload("Client").
		Where("template_id = ?", id).
		Order("updated_at desc, id desc").
		Find(&subs).Error
	if err != nil {
		return nil, nil, fmt.Errorf("list submissions: %w", err)
	}
	return tmpl, subs, nil
}

// Delete removes a template and all of its submissions in one transaction,
// then removes their files from storage.
func (s *TemplateService) Delete(ctx context.Context, caller *models.User, id uint) error {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if d := policy.RequireOwnership(caller, tmpl); !d.Allowed {
		return forbidden(d)
	}

	var keys []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subs []models.Submission
		if err := tx.Where("template_id = ?", id).Find(&subs).Error; err != nil {
			return err
		}
		for _, sub := range subs {
			if sub.HasFile() {
				keys = append(keys, *sub.Filename)
			}
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Template{}, id).Error; err != nil {
			return err
		}
		details := fmt.Sprintf("%s (%d submissions)", tmpl.Title, len(subs))
		return database.CreateAuditLog(tx, caller.ID, "template", id, "delete", details)
	})
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}

	keys = append(keys, tmpl.Filename)
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			slog.WarnContext(ctx, "failed to remove stored file", "key", key, "error", err)
		}
	}
	slog.InfoContext(ctx, "template deleted", "template_id", id, "files", len(keys))
	return nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func recordRejected(kind string, err error) {
	reason := "other"
	switch {
	case errors.Is(err, ErrInvalidFileType):
		reason = "file_type"
	case errors.Is(err, ErrFileTooLarge):
		reason = "too_large"
	case errors.Is(err, ErrMissingFile):
		reason = "missing"
	}
	metrics.RejectedUploads.WithLabelValues(kind, reason).Inc()
}
