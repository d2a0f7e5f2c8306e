package repository

import (
	"github.com/stationpay/mpesa-gateway/app/models"
	"gorm.io/gorm"
)

// stationRepository implements the StationRepository interface
type stationRepository struct {
	db *gorm.DB
}

// NewStationRepository creates a new station repository instance
func NewStationRepository(db *gorm.DB) StationRepository {
	return &stationRepository{db: db}
}

func (r *stationRepository) GetActiveByID(id uint) (*models.Station, error) {
	var station models.Station
	err := r.db.Where("id = ? AND is_active = ?", id, true).First(&station).Error
	if err != nil {
		return nil, err
	}
	return &station, nil
}
