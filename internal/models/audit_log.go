package models

import "time"

type AuditLog struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	UserID uint `gorm:"index"`
	User   User

	Entity   string `gorm:"size:50;not null"` // "template", "submission", "user"
	EntityID uint   `gorm:"index"`
	Action   string `gorm:"size:50;not null"` // "create", "upload", "review", "delete"
	Details  string `gorm:"type:text"`
}
