package models

import "time"

// Template is a document a master distributes to clients.
type Template struct {
	ID          uint      `gorm:"primaryKey"`
	Title       string    `gorm:"size:120;not null"`
	Description string    `gorm:"type:text;not null"`
	Filename    string    `gorm:"size:200;not null"` // storage key
	Category    *Category `gorm:"type:varchar(32)"`
	OwnerID     uint      `gorm:"not null;index"`
	Owner       User
	CreatedAt   time.Time

	Submissions []Submission `gorm:"constraint:OnDelete:CASCADE"`
}
