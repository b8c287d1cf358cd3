package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"parklot/internal/domain"
	"parklot/internal/repo"
)

var vehicleNumberRe = regexp.MustCompile(`^[A-Z0-9 -]+$`)

// BookingService is the allocation and billing core: it hands out spots,
// closes reservations and computes the charge. Reserve and Release are each a
// single transaction so a failure can never leave a spot and its reservation
// disagreeing.
type BookingService struct {
	db           *gorm.DB
	ident        *IdentityService
	reservations *repo.ReservationRepo
	loc          *time.Location // display timezone; storage stays UTC
	log          *zap.Logger
}

func NewBookingService(db *gorm.DB, ident *IdentityService, reservations *repo.ReservationRepo, loc *time.Location, log *zap.Logger) *BookingService {
	return &BookingService{db: db, ident: ident, reservations: reservations, loc: loc, log: log}
}

// Reserve assigns the lowest-numbered available spot in the lot to the user.
// Fails with ErrConflict when the user already holds an active reservation
// and ErrCapacity when the lot is full.
func (s *BookingService) Reserve(userID, lotID uint, vehicleNumber string) (*domain.Reservation, error) {
	if _, err := s.ident.RequireUser(userID); err != nil {
		return nil, err
	}
	vehicleNumber = strings.TrimSpace(vehicleNumber)
	if len(vehicleNumber) < 5 || len(vehicleNumber) > 20 || !vehicleNumberRe.MatchString(vehicleNumber) {
		return nil, fmt.Errorf("%w: vehicle number must be 5-20 uppercase letters, digits, spaces or hyphens", domain.ErrValidation)
	}

	var reservation *domain.Reservation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var lot domain.ParkingLot
		if err := tx.First(&lot, "id = ?", lotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: parking lot %d", domain.ErrNotFound, lotID)
			}
			return err
		}

		var active int64
		if err := tx.Model(&domain.Reservation{}).
			Where("user_id = ? AND is_active = ?", userID, true).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("%w: user already has an active reservation", domain.ErrConflict)
		}

		spot, err := s.claimSpot(tx, lotID)
		if err != nil {
			return err
		}

		reservation = &domain.Reservation{
			SpotID:        spot.ID,
			UserID:        userID,
			VehicleNumber: vehicleNumber,
			ParkingTime:   time.Now().UTC(),
			IsActive:      true,
		}
		return tx.Create(reservation).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("spot reserved",
		zap.Uint("user_id", userID),
		zap.Uint("lot_id", lotID),
		zap.Uint("spot_id", reservation.SpotID),
		zap.Uint("reservation_id", reservation.ID))
	return reservation, nil
}

// claimSpot walks the lot's available spots in number order and flips the
// first one to occupied with a guarded update. The status predicate on the
// UPDATE means a concurrent reserver can win at most one of them; losing a
// spot just moves us to the next candidate.
func (s *BookingService) claimSpot(tx *gorm.DB, lotID uint) (*domain.ParkingSpot, error) {
	var candidates []domain.ParkingSpot
	if err := tx.
		Where("lot_id = ? AND status = ?", lotID, domain.SpotAvailable).
		Order("spot_number").
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	for i := range candidates {
		res := tx.Model(&domain.ParkingSpot{}).
			Where("id = ? AND status = ?", candidates[i].ID, domain.SpotAvailable).
			Update("status", domain.SpotOccupied)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			candidates[i].Status = domain.SpotOccupied
			return &candidates[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no available spots in lot %d", domain.ErrCapacity, lotID)
}

// Release closes the user's active reservation: stamps the leaving time,
// bills round(hours x hourly price, 2) at the lot's current price, and frees
// the spot. All of it commits or none of it does.
func (s *BookingService) Release(userID uint) (*domain.Reservation, error) {
	if _, err := s.ident.RequireUser(userID); err != nil {
		return nil, err
	}

	var closed *domain.Reservation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var res domain.Reservation
		if err := tx.First(&res, "user_id = ? AND is_active = ?", userID, true).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: no active reservation to release", domain.ErrNotFound)
			}
			return err
		}

		var spot domain.ParkingSpot
		if err := tx.First(&spot, "id = ?", res.SpotID).Error; err != nil {
			return err
		}
		var lot domain.ParkingLot
		if err := tx.First(&lot, "id = ?", spot.LotID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		res.LeavingTime = &now
		cost := domain.CalculateCost(&res, lot.Price)
		res.ParkingCost = &cost
		res.IsActive = false

		upd := tx.Model(&domain.Reservation{}).
			Where("id = ? AND is_active = ?", res.ID, true).
			Updates(map[string]any{
				"leaving_time": now,
				"parking_cost": cost,
				"is_active":    false,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("%w: reservation already released", domain.ErrNotFound)
		}

		if err := tx.Model(&domain.ParkingSpot{}).
			Where("id = ?", spot.ID).
			Update("status", domain.SpotAvailable).Error; err != nil {
			return err
		}
		closed = &res
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("spot released",
		zap.Uint("user_id", userID),
		zap.Uint("reservation_id", closed.ID),
		zap.Float64("cost", *closed.ParkingCost))
	return closed, nil
}

const displayTimeLayout = "2006-01-02 15:04:05"

// ReservationDetail joins a reservation with its spot and lot for display.
// The local fields carry the timestamps rendered in the display timezone.
type ReservationDetail struct {
	Reservation      domain.Reservation `json:"reservation"`
	Spot             domain.ParkingSpot `json:"spot"`
	Lot              domain.ParkingLot  `json:"lot"`
	ParkingTimeLocal string             `json:"parkingTimeLocal"`
	LeavingTimeLocal string             `json:"leavingTimeLocal,omitempty"`
}

// Active returns the user's current reservation with spot and lot detail, or
// nil when they hold none.
func (s *BookingService) Active(userID uint) (*ReservationDetail, error) {
	res, err := s.reservations.FindActiveByUser(userID)
	if err != nil || res == nil {
		return nil, err
	}
	return s.detail(*res)
}

// History pages through the user's reservations, newest first, open and
// closed alike.
func (s *BookingService) History(userID uint, page, perPage int) ([]ReservationDetail, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 10
	}
	rs, total, err := s.reservations.FindByUser(userID, (page-1)*perPage, perPage)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ReservationDetail, 0, len(rs))
	for _, r := range rs {
		d, err := s.detail(r)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, nil
}

// RecentCompleted returns the user's latest closed reservations for the
// dashboard.
func (s *BookingService) RecentCompleted(userID uint, n int) ([]ReservationDetail, error) {
	if n <= 0 {
		n = 5
	}
	rs, err := s.reservations.FindCompletedByUser(userID, n)
	if err != nil {
		return nil, err
	}
	out := make([]ReservationDetail, 0, len(rs))
	for _, r := range rs {
		d, err := s.detail(r)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *BookingService) detail(r domain.Reservation) (*ReservationDetail, error) {
	var spot domain.ParkingSpot
	if err := s.db.First(&spot, "id = ?", r.SpotID).Error; err != nil {
		return nil, err
	}
	var lot domain.ParkingLot
	if err := s.db.First(&lot, "id = ?", spot.LotID).Error; err != nil {
		return nil, err
	}
	d := &ReservationDetail{Reservation: r, Spot: spot, Lot: lot}
	d.ParkingTimeLocal = domain.InDisplayTZ(r.ParkingTime, s.loc).Format(displayTimeLayout)
	if r.LeavingTime != nil {
		d.LeavingTimeLocal = domain.InDisplayTZ(*r.LeavingTime, s.loc).Format(displayTimeLayout)
	}
	return d, nil
}
