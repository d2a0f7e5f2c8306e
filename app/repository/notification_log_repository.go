package repository

import (
	"github.com/stationpay/mpesa-gateway/app/models"
	"gorm.io/gorm"
)

// notificationLogRepository implements the NotificationLogRepository interface
type notificationLogRepository struct {
	db *gorm.DB
}

// NewNotificationLogRepository creates a new notification log repository instance
func NewNotificationLogRepository(db *gorm.DB) NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

func (r *notificationLogRepository) Create(entry *models.NotificationLog) error {
	return r.db.Create(entry).Error
}
