package handlers

import (
	"net/http"

	"hoiku-portal/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Dashboard shows a master their own templates with submissions, and a
// client every template with their own progress.
func (h *Handlers) Dashboard(c *gin.Context) {
	user := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	if user.IsMaster() {
		templates, err := h.templates.ListForMaster(ctx, user)
		if err != nil {
			fail(c, err)
			return
		}
		render(c, http.StatusOK, "dashboard_master.html", gin.H{"templates": templates})
		return
	}

	templates, err := h.templates.ListAll(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	submissions, err := h.submissions.ListForClient(ctx, user)
	if err != nil {
		fail(c, err)
		return
	}
	render(c, http.StatusOK, "dashboard_client.html", gin.H{
		"templates":   templates,
		"submissions": submissions,
	})
}
