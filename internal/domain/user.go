package domain

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"uniqueIndex;size:120;not null" json:"email"`
	PasswordHash string    `gorm:"size:256;not null" json:"-"`
	Address      string    `gorm:"size:200" json:"address"`
	PinCode      string    `gorm:"size:20" json:"pinCode"`
	IsAdmin      bool      `gorm:"not null;default:false" json:"isAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (User) TableName() string { return "users" }

// Role maps the admin flag onto the role string carried in JWT claims.
func (u *User) Role() string {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

type UserRepository interface {
	Create(u *User) error
	FindByID(id uint) (*User, error)
	FindByEmail(email string) (*User, error)
	ListNonAdmin(offset, limit int) ([]User, int64, error)
	Search(q string, limit int) ([]User, error)
	CountNonAdmin() (int64, error)
}
