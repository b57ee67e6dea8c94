// Package workflow holds the submission status transition table.
package workflow

import (
	"errors"
	"fmt"

	"hoiku-portal/internal/models"
)

var (
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidStatus     = errors.New("status cannot be set by a reviewer")
)

type Action string

const (
	ActionUpload          Action = "upload"
	ActionMarkReviewing   Action = "mark_reviewing"
	ActionConfirm         Action = "confirm"
	ActionRequestResubmit Action = "request_resubmit"
)

type edge struct {
	from   models.SubmissionStatus
	action Action
}

// Machine resolves (status, action) pairs to the next status. Pairs missing
// from the table are refused.
type Machine struct {
	table map[edge]models.SubmissionStatus
}

type Option func(*Machine)

// LockConfirmed removes the re-upload edge out of confirmed.
func LockConfirmed() Option {
	return func(m *Machine) {
		delete(m.table, edge{models.StatusConfirmed, ActionUpload})
	}
}

// RequireUpload removes the review edges out of not_submitted, so a
// submission cannot be reviewed before its first file arrives.
func RequireUpload() Option {
	return func(m *Machine) {
		for _, a := range []Action{ActionMarkReviewing, ActionConfirm, ActionRequestResubmit} {
			delete(m.table, edge{models.StatusNotSubmitted, a})
		}
	}
}

func New(opts ...Option) *Machine {
	m := &Machine{table: defaultTable()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func defaultTable() map[edge]models.SubmissionStatus {
	all := []models.SubmissionStatus{
		models.StatusNotSubmitted,
		models.StatusSubmitted,
		models.StatusReviewing,
		models.StatusConfirmed,
		models.StatusResubmit,
	}

	t := make(map[edge]models.SubmissionStatus)
	for _, s := range all {
		t[edge{s, ActionUpload}] = models.StatusSubmitted
		t[edge{s, ActionMarkReviewing}] = models.StatusReviewing
		t[edge{s, ActionConfirm}] = models.StatusConfirmed
		t[edge{s, ActionRequestResubmit}] = models.StatusResubmit
	}
	return t
}

// Next returns the status reached by applying action in status from.
func (m *Machine) Next(from models.SubmissionStatus, action Action) (models.SubmissionStatus, error) {
	if from == "" {
		from = models.StatusNotSubmitted
	}
	to, ok := m.table[edge{from, action}]
	if !ok {
		return "", fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, from)
	}
	return to, nil
}

// Allowed reports whether action may be applied in status from.
func (m *Machine) Allowed(from models.SubmissionStatus, action Action) bool {
	_, err := m.Next(from, action)
	return err == nil
}

// ReviewAction maps a status chosen on the review form to its action.
func ReviewAction(target models.SubmissionStatus) (Action, error) {
	switch target {
	case models.StatusReviewing:
		return ActionMarkReviewing, nil
	case models.StatusConfirmed:
		return ActionConfirm, nil
	case models.StatusResubmit:
		return ActionRequestResubmit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
}
