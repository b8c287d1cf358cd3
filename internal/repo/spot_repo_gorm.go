package repo

import (
	"errors"

	"gorm.io/gorm"

	"parklot/internal/domain"
)

type SpotRepo struct{ db *gorm.DB }

func NewSpotRepo(db *gorm.DB) *SpotRepo { return &SpotRepo{db: db} }

func (r *SpotRepo) CountByLot(lotID uint) (int64, error) {
	var n int64
	err := r.db.Model(&domain.ParkingSpot{}).Where("lot_id = ?", lotID).Count(&n).Error
	return n, err
}

func (r *SpotRepo) CountByLotAndStatus(lotID uint, status domain.SpotStatus) (int64, error) {
	var n int64
	err := r.db.Model(&domain.ParkingSpot{}).
		Where("lot_id = ? AND status = ?", lotID, status).
		Count(&n).Error
	return n, err
}

func (r *SpotRepo) CountByStatus(status domain.SpotStatus) (int64, error) {
	var n int64
	err := r.db.Model(&domain.ParkingSpot{}).Where("status = ?", status).Count(&n).Error
	return n, err
}

func (r *SpotRepo) CountAll() (int64, error) {
	var n int64
	err := r.db.Model(&domain.ParkingSpot{}).Count(&n).Error
	return n, err
}

func (r *SpotRepo) FindByLot(lotID uint) ([]domain.ParkingSpot, error) {
	var spots []domain.ParkingSpot
	err := r.db.Where("lot_id = ?", lotID).Order("spot_number").Find(&spots).Error
	return spots, err
}

func (r *SpotRepo) FindByID(id uint) (*domain.ParkingSpot, error) {
	var s domain.ParkingSpot
	err := r.db.First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &s, err
}

func (r *SpotRepo) FindAvailableByLot(lotID uint) ([]domain.ParkingSpot, error) {
	var spots []domain.ParkingSpot
	err := r.db.
		Where("lot_id = ? AND status = ?", lotID, domain.SpotAvailable).
		Order("spot_number").
		Find(&spots).Error
	return spots, err
}
