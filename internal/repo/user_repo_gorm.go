package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"parklot/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(u *domain.User) error { return r.db.Create(u).Error }

func (r *UserRepo) FindByID(id uint) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &u, err
}

func (r *UserRepo) FindByEmail(email string) (*domain.User, error) {
	var u domain.User
	err := r.db.First(&u, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &u, err
}

func (r *UserRepo) ListNonAdmin(offset, limit int) ([]domain.User, int64, error) {
	q := r.db.Model(&domain.User{}).Where("is_admin = ?", false)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []domain.User
	if err := q.Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepo) Search(q string, limit int) ([]domain.User, error) {
	like := "%" + strings.TrimSpace(q) + "%"
	var users []domain.User
	err := r.db.
		Where("is_admin = ?", false).
		Where("name LIKE ? OR email LIKE ? OR address LIKE ? OR pin_code LIKE ?", like, like, like, like).
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *UserRepo) CountNonAdmin() (int64, error) {
	var n int64
	err := r.db.Model(&domain.User{}).Where("is_admin = ?", false).Count(&n).Error
	return n, err
}
