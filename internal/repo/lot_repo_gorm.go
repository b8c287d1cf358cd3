package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"parklot/internal/domain"
)

type LotRepo struct{ db *gorm.DB }

func NewLotRepo(db *gorm.DB) *LotRepo { return &LotRepo{db: db} }

func (r *LotRepo) Create(lot *domain.ParkingLot) error { return r.db.Create(lot).Error }

func (r *LotRepo) FindByID(id uint) (*domain.ParkingLot, error) {
	var lot domain.ParkingLot
	err := r.db.First(&lot, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &lot, err
}

func (r *LotRepo) FindByIDs(ids []uint) ([]domain.ParkingLot, error) {
	var lots []domain.ParkingLot
	if len(ids) == 0 {
		return lots, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&lots).Error
	return lots, err
}

func (r *LotRepo) List() ([]domain.ParkingLot, error) {
	var lots []domain.ParkingLot
	err := r.db.Order("id").Find(&lots).Error
	return lots, err
}

func (r *LotRepo) Search(q string) ([]domain.ParkingLot, error) {
	like := "%" + strings.TrimSpace(q) + "%"
	var lots []domain.ParkingLot
	err := r.db.
		Where("name LIKE ? OR address LIKE ? OR pin_code LIKE ?", like, like, like).
		Order("id").
		Find(&lots).Error
	return lots, err
}

func (r *LotRepo) Update(lot *domain.ParkingLot) error { return r.db.Save(lot).Error }

func (r *LotRepo) Count() (int64, error) {
	var n int64
	err := r.db.Model(&domain.ParkingLot{}).Count(&n).Error
	return n, err
}
