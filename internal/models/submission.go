package models

import "time"

type SubmissionStatus string

const (
	StatusNotSubmitted SubmissionStatus = "not_submitted"
	StatusSubmitted    SubmissionStatus = "submitted"
	StatusReviewing    SubmissionStatus = "reviewing"
	StatusConfirmed    SubmissionStatus = "confirmed"
	StatusResubmit     SubmissionStatus = "resubmit"
)

var statusLabels = map[SubmissionStatus]string{
	StatusNotSubmitted: "未提出",
	StatusSubmitted:    "提出済み",
	StatusReviewing:    "確認中",
	StatusConfirmed:    "確認済み",
	StatusResubmit:     "再提出",
}

// Label returns the display text shown to users.
func (s SubmissionStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s SubmissionStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// ReviewStatuses are the statuses a reviewer may choose.
func ReviewStatuses() []SubmissionStatus {
	return []SubmissionStatus{StatusReviewing, StatusConfirmed, StatusResubmit}
}

// Submission tracks one client's progress against one template.
// (TemplateID, ClientID) is unique.
type Submission struct {
	ID         uint     `gorm:"primaryKey"`
	TemplateID uint     `gorm:"not null;uniqueIndex:idx_submission_template_client"`
	Template   Template
	ClientID   uint     `gorm:"not null;uniqueIndex:idx_submission_template_client"`
	Client     User

	Filename    *string          `gorm:"size:200"`
	Status      SubmissionStatus `gorm:"type:varchar(20);not null;default:not_submitted"`
	Comment     *string          `gorm:"type:text"`
	SubmittedAt *time.Time
	UpdatedAt   time.Time
}

func (s Submission) HasFile() bool {
	return s.Filename != nil && *s.Filename != ""
}

// CommentText returns the reviewer comment or an empty string.
func (s Submission) CommentText() string {
	if s.Comment == nil {
		return ""
	}
	return *s.Comment
}
