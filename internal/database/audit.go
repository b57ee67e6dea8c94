package database

import (
	"hoiku-portal/internal/models"

	"gorm.io/gorm"
)

// CreateAuditLog appends an audit record using db, which may be a transaction.
func CreateAuditLog(db *gorm.DB, userID uint, entity string, entityID uint, action, details string) error {
	record := models.AuditLog{
		UserID:   userID,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  details,
	}
	return db.Create(&record).Error
}

// AuditTrail returns the audit records for one entity in insertion order.
func AuditTrail(db *gorm.DB, entity string, entityID uint) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := db.
		Preload("User").
		Where("entity = ? AND entity_id = ?", entity, entityID).
		Order("id asc").
		Find(&logs).Error
	return logs, err
}
