package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"hoiku-portal/internal/middleware"
	"hoiku-portal/internal/models"
	"hoiku-portal/internal/services"
	"hoiku-portal/internal/storage"

	"github.com/gin-gonic/gin"
)

type templateForm struct {
	Title       string `form:"title" binding:"required"`
	Description string `form:"description" binding:"required"`
	Category    string `form:"category" binding:"omitempty,oneof=hoikuen nintei_kodomoen youchien"`
}

func newTemplatePage(form templateForm, errMsg string) gin.H {
	return gin.H{
		"error":      errMsg,
		"form":       form,
		"categories": models.Categories(),
		"extensions": storage.AllowedExtensions(),
	}
}

func (h *Handlers) ShowNewTemplate(c *gin.Context) {
	render(c, http.StatusOK, "template_new.html", newTemplatePage(templateForm{}, ""))
}

func (h *Handlers) CreateTemplate(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var form templateForm
	if err := c.ShouldBind(&form); err != nil {
		if !isFieldError(err) {
			badForm(c, err)
			return
		}
		render(c, http.StatusBadRequest, "template_new.html", newTemplatePage(form, "Title and description are required."))
		return
	}

	file, closeFile, err := formUpload(c)
	if err != nil {
		fail(c, err)
		return
	}
	defer closeFile()

	_, err = h.templates.Create(c.Request.Context(), user, services.CreateTemplateInput{
		Title:       form.Title,
		Description: form.Description,
		Category:    models.Category(form.Category),
	}, file)
	if err != nil {
		if services.IsValidation(err) {
			render(c, http.StatusBadRequest, "template_new.html", newTemplatePage(form, validationMessage(err)))
			return
		}
		fail(c, err)
		return
	}

	redirectWithFlash(c, "/", "success", "Template created.")
}

func (h *Handlers) DownloadTemplate(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	tmpl, rc, err := h.templates.OpenFile(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	sendFile(c, tmpl.Filename, rc)
}

func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	if err := h.templates.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		fail(c, err)
		return
	}
	redirectWithFlash(c, "/", "success", "Template deleted.")
}

func (h *Handlers) TemplateSubmissions(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	tmpl, subs, err := h.templates.Submissions(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	render(c, http.StatusOK, "template_submissions.html", gin.H{
		"template":    tmpl,
		"submissions": subs,
	})
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidFileType):
		return "Invalid file type."
	case errors.Is(err, services.ErrMissingFile):
		return "Please choose a file."
	default:
		return fmt.Sprint(err)
	}
}
