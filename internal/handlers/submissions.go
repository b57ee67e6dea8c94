package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"hoiku-portal/internal/middleware"
	"hoiku-portal/internal/models"
	"hoiku-portal/internal/policy"
	"hoiku-portal/internal/services"

	"github.com/gin-gonic/gin"
)

// uploadPage loads everything the client's upload page shows.
func (h *Handlers) uploadPage(c *gin.Context, sub *models.Submission, errMsg string) (gin.H, error) {
	user := middleware.CurrentUser(c)
	history, err := h.submissions.History(c.Request.Context(), user, sub.ID)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"error":      errMsg,
		"template":   sub.Template,
		"submission": sub,
		"canUpload":  h.submissions.CanUpload(sub),
		"history":    history,
		"maxBytes":   h.maxBytes,
	}, nil
}

func (h *Handlers) ShowUpload(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	sub, err := h.submissions.GetOrCreate(c.Request.Context(), id, user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	data, err := h.uploadPage(c, sub, "")
	if err != nil {
		fail(c, err)
		return
	}
	render(c, http.StatusOK, "upload.html", data)
}

func (h *Handlers) Upload(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	sub, err := h.submissions.GetOrCreate(ctx, id, user.ID)
	if err != nil {
		fail(c, err)
		return
	}

	file, closeFile, err := formUpload(c)
	if err != nil {
		fail(c, err)
		return
	}
	defer closeFile()

	if _, err := h.submissions.Submit(ctx, user, sub.ID, file); err != nil {
		if services.IsValidation(err) {
			data, pageErr := h.uploadPage(c, sub, uploadMessage(err))
			if pageErr != nil {
				fail(c, pageErr)
				return
			}
			render(c, http.StatusBadRequest, "upload.html", data)
			return
		}
		fail(c, err)
		return
	}

	redirectWithFlash(c, "/", "success", "File uploaded.")
}

func uploadMessage(err error) string {
	if errors.Is(err, services.ErrInvalidTransition) {
		return "This submission is already confirmed."
	}
	return validationMessage(err)
}

type reviewForm struct {
	Status  string `form:"status" binding:"required"`
	Comment string `form:"comment"`
}

func (h *Handlers) reviewPage(c *gin.Context, sub *models.Submission, status models.SubmissionStatus, comment, errMsg string) (gin.H, error) {
	history, err := h.submissions.History(c.Request.Context(), middleware.CurrentUser(c), sub.ID)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"error":      errMsg,
		"submission": sub,
		"template":   sub.Template,
		"client":     sub.Client,
		"statuses":   models.ReviewStatuses(),
		"selected":   status,
		"comment":    comment,
		"history":    history,
	}, nil
}

func (h *Handlers) ShowReview(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	sub, err := h.reviewable(c, id)
	if err != nil {
		fail(c, err)
		return
	}

	selected := sub.Status
	if selected == "" || selected == models.StatusNotSubmitted || selected == models.StatusSubmitted {
		selected = models.StatusReviewing
	}
	data, err := h.reviewPage(c, sub, selected, sub.CommentText(), "")
	if err != nil {
		fail(c, err)
		return
	}
	render(c, http.StatusOK, "review.html", data)
}

func (h *Handlers) Review(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user := middleware.CurrentUser(c)

	var form reviewForm
	if err := c.ShouldBind(&form); err != nil && !isFieldError(err) {
		badForm(c, err)
		return
	}

	sub, err := h.submissions.Review(c.Request.Context(), user, id, models.SubmissionStatus(form.Status), form.Comment)
	if err != nil {
		if !services.IsValidation(err) {
			fail(c, err)
			return
		}
		current, getErr := h.reviewable(c, id)
		if getErr != nil {
			fail(c, getErr)
			return
		}
		data, pageErr := h.reviewPage(c, current, models.SubmissionStatus(form.Status), form.Comment, reviewMessage(err))
		if pageErr != nil {
			fail(c, pageErr)
			return
		}
		render(c, http.StatusBadRequest, "review.html", data)
		return
	}

	redirectWithFlash(c, fmt.Sprintf("/template/%d/submissions", sub.TemplateID), "success", "Status updated.")
}

func reviewMessage(err error) string {
	if errors.Is(err, services.ErrInvalidTransition) {
		return "The submission has no uploaded file yet."
	}
	return "Invalid status."
}

// reviewable loads a submission and checks that the caller may review it.
func (h *Handlers) reviewable(c *gin.Context, id uint) (*models.Submission, error) {
	sub, err := h.submissions.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if d := policy.CanReview(middleware.CurrentUser(c), sub, &sub.Template); !d.Allowed {
		return nil, fmt.Errorf("%s: %w", d.Reason, services.ErrForbidden)
	}
	return sub, nil
}

func (h *Handlers) DownloadSubmission(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	sub, rc, err := h.submissions.OpenFile(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	sendFile(c, *sub.Filename, rc)
}
