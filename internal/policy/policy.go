// Package policy decides whether a caller may act on a resource. Checks are
// pure: they read the records they are given and never touch storage.
package policy

import (
	"fmt"

	"hoiku-portal/internal/models"
)

// Decision is the outcome of a policy check. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// RequireRole allows callers with the given role.
func RequireRole(caller *models.User, role models.UserRole) Decision {
	if caller == nil {
		return deny("not authenticated")
	}
	if caller.Role != role {
		return deny("role %s required", role)
	}
	return allow()
}

// RequireOwnership allows the master that owns tmpl.
func RequireOwnership(caller *models.User, tmpl *models.Template) Decision {
	if d := RequireRole(caller, models.RoleMaster); !d.Allowed {
		return d
	}
	if tmpl.OwnerID != caller.ID {
		return deny("template %d is owned by another user", tmpl.ID)
	}
	return allow()
}

// CanSubmit allows only the client the submission belongs to.
func CanSubmit(caller *models.User, sub *models.Submission) Decision {
	if caller == nil {
		return deny("not authenticated")
	}
	if sub.ClientID != caller.ID {
		return deny("submission %d belongs to another user", sub.ID)
	}
	return allow()
}

// CanReview allows the master owning the submission's template. tmpl must be
// the template the submission references.
func CanReview(caller *models.User, sub *models.Submission, tmpl *models.Template) Decision {
	if tmpl.ID != sub.TemplateID {
		return deny("submission %d does not reference template %d", sub.ID, tmpl.ID)
	}
	return RequireOwnership(caller, tmpl)
}

// CanReadSubmission allows the submitting client and the reviewing master.
func CanReadSubmission(caller *models.User, sub *models.Submission, tmpl *models.Template) Decision {
	if d := CanSubmit(caller, sub); d.Allowed {
		return d
	}
	return CanReview(caller, sub, tmpl)
}
