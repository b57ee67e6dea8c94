package handlers

import (
	"hoiku-portal/internal/services"
)

// Handlers serves the HTML pages. Every route delegates to a service, which
// applies the access policy before touching state.
type Handlers struct {
	users       *services.UserService
	templates   *services.TemplateService
	submissions *services.SubmissionService
	maxBytes    int64
}

func New(users *services.UserService, templates *services.TemplateService, submissions *services.SubmissionService, maxBytes int64) *Handlers {
	return &Handlers{
		users:       users,
		templates:   templates,
		submissions: submissions,
		maxBytes:    maxBytes,
	}
}
