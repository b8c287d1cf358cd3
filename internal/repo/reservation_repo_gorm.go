package repo

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"parklot/internal/domain"
)

type ReservationRepo struct{ db *gorm.DB }

func NewReservationRepo(db *gorm.DB) *ReservationRepo { return &ReservationRepo{db: db} }

func (r *ReservationRepo) FindByID(id uint) (*domain.Reservation, error) {
	var res domain.Reservation
	err := r.db.First(&res, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &res, err
}

func (r *ReservationRepo) FindActiveByUser(userID uint) (*domain.Reservation, error) {
	var res domain.Reservation
	err := r.db.First(&res, "user_id = ? AND is_active = ?", userID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &res, err
}

func (r *ReservationRepo) FindActiveBySpot(spotID uint) (*domain.Reservation, error) {
	var res domain.Reservation
	err := r.db.First(&res, "spot_id = ? AND is_active = ?", spotID, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &res, err
}

func (r *ReservationRepo) FindByUser(userID uint, offset, limit int) ([]domain.Reservation, int64, error) {
	q := r.db.Model(&domain.Reservation{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rs []domain.Reservation
	if err := q.Order("parking_time desc").Offset(offset).Limit(limit).Find(&rs).Error; err != nil {
		return nil, 0, err
	}
	return rs, total, nil
}

func (r *ReservationRepo) FindCompletedByUser(userID uint, limit int) ([]domain.Reservation, error) {
	var rs []domain.Reservation
	err := r.db.
		Where("user_id = ? AND is_active = ?", userID, false).
		Order("parking_time desc").
		Limit(limit).
		Find(&rs).Error
	return rs, err
}

func (r *ReservationRepo) FindAllByUser(userID uint) ([]domain.Reservation, error) {
	var rs []domain.Reservation
	err := r.db.Where("user_id = ?", userID).Order("parking_time").Find(&rs).Error
	return rs, err
}

func (r *ReservationRepo) FindCompletedSince(since time.Time) ([]domain.Reservation, error) {
	var rs []domain.Reservation
	err := r.db.
		Where("is_active = ? AND leaving_time IS NOT NULL AND leaving_time >= ?", false, since).
		Order("leaving_time").
		Find(&rs).Error
	return rs, err
}

func (r *ReservationRepo) CountActive() (int64, error) {
	var n int64
	err := r.db.Model(&domain.Reservation{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}
