package domain

import "time"

type SpotStatus string

const (
	SpotAvailable SpotStatus = "A"
	SpotOccupied  SpotStatus = "O"
)

type ParkingLot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Price     float64   `gorm:"not null" json:"price"` // per hour
	Address   string    `gorm:"size:200;not null" json:"address"`
	PinCode   string    `gorm:"size:20;not null" json:"pinCode"`
	MaxSpots  int       `gorm:"not null" json:"maxSpots"`
	CreatedAt time.Time `json:"createdAt"`
}

func (ParkingLot) TableName() string { return "parking_lots" }

type ParkingSpot struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	LotID      uint       `gorm:"not null;uniqueIndex:idx_lot_spot_number" json:"lotId"`
	SpotNumber int        `gorm:"not null;uniqueIndex:idx_lot_spot_number" json:"spotNumber"`
	Status     SpotStatus `gorm:"type:varchar(1);not null;default:A" json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func (ParkingSpot) TableName() string { return "parking_spots" }

type Reservation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	SpotID        uint       `gorm:"not null;index:idx_spot_active" json:"spotId"`
	UserID        uint       `gorm:"not null;index:idx_user_active" json:"userId"`
	VehicleNumber string     `gorm:"size:20;not null" json:"vehicleNumber"`
	ParkingTime   time.Time  `gorm:"not null" json:"parkingTime"`
	LeavingTime   *time.Time `json:"leavingTime"`
	ParkingCost   *float64   `json:"parkingCost"`
	IsActive      bool       `gorm:"not null;default:true;index:idx_spot_active;index:idx_user_active" json:"isActive"`
}

func (Reservation) TableName() string { return "reservations" }

// StatusCount is the availability breakdown of one lot.
type StatusCount struct {
	Available int64 `json:"available"`
	Occupied  int64 `json:"occupied"`
}

type LotRepository interface {
	Create(lot *ParkingLot) error
	FindByID(id uint) (*ParkingLot, error)
	FindByIDs(ids []uint) ([]ParkingLot, error)
	List() ([]ParkingLot, error)
	Search(q string) ([]ParkingLot, error)
	Update(lot *ParkingLot) error
	Count() (int64, error)
}

type SpotRepository interface {
	CountByLot(lotID uint) (int64, error)
	CountByLotAndStatus(lotID uint, status SpotStatus) (int64, error)
	CountByStatus(status SpotStatus) (int64, error)
	CountAll() (int64, error)
	FindByLot(lotID uint) ([]ParkingSpot, error)
	FindByID(id uint) (*ParkingSpot, error)
	FindAvailableByLot(lotID uint) ([]ParkingSpot, error)
}

type ReservationRepository interface {
	FindByID(id uint) (*Reservation, error)
	FindActiveByUser(userID uint) (*Reservation, error)
	FindActiveBySpot(spotID uint) (*Reservation, error)
	FindByUser(userID uint, offset, limit int) ([]Reservation, int64, error)
	FindCompletedByUser(userID uint, limit int) ([]Reservation, error)
	FindAllByUser(userID uint) ([]Reservation, error)
	FindCompletedSince(since time.Time) ([]Reservation, error)
	CountActive() (int64, error)
}
