package service

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"parklot/internal/domain"
	"parklot/internal/repo"
)

// RegistryService manages parking lots and their spots. A lot always owns
// exactly MaxSpots spot rows numbered 1..MaxSpots; every mutation here keeps
// that equality inside a single transaction.
type RegistryService struct {
	db    *gorm.DB
	ident *IdentityService
	lots  *repo.LotRepo
	spots *repo.SpotRepo
	log   *zap.Logger
}

func NewRegistryService(db *gorm.DB, ident *IdentityService, lots *repo.LotRepo, spots *repo.SpotRepo, log *zap.Logger) *RegistryService {
	return &RegistryService{db: db, ident: ident, lots: lots, spots: spots, log: log}
}

type LotInput struct {
	Name     string  `json:"name" binding:"required,min=3,max=100"`
	Price    float64 `json:"price" binding:"required,gt=0"`
	Address  string  `json:"address" binding:"required,min=5,max=200"`
	PinCode  string  `json:"pinCode" binding:"required,min=6,max=10"`
	MaxSpots int     `json:"maxSpots" binding:"required,min=1"`
}

func validateLotInput(in LotInput) error {
	name := strings.TrimSpace(in.Name)
	addr := strings.TrimSpace(in.Address)
	pin := strings.TrimSpace(in.PinCode)
	switch {
	case len(name) < 3 || len(name) > 100:
		return fmt.Errorf("%w: lot name must be 3-100 characters", domain.ErrValidation)
	case in.Price <= 0:
		return fmt.Errorf("%w: hourly price must be positive", domain.ErrValidation)
	case len(addr) < 5 || len(addr) > 200:
		return fmt.Errorf("%w: address must be 5-200 characters", domain.ErrValidation)
	case len(pin) < 6 || len(pin) > 10:
		return fmt.Errorf("%w: PIN code must be 6-10 characters", domain.ErrValidation)
	case in.MaxSpots < 1:
		return fmt.Errorf("%w: a lot needs at least one spot", domain.ErrValidation)
	}
	return nil
}

// CreateLot creates a lot together with spots numbered 1..MaxSpots, all
// available. Admin only.
func (s *RegistryService) CreateLot(actorID uint, in LotInput) (*domain.ParkingLot, error) {
	if _, err := s.ident.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	if err := validateLotInput(in); err != nil {
		return nil, err
	}

	lot := &domain.ParkingLot{
		Name:     strings.TrimSpace(in.Name),
		Price:    in.Price,
		Address:  strings.TrimSpace(in.Address),
		PinCode:  strings.TrimSpace(in.PinCode),
		MaxSpots: in.MaxSpots,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(lot).Error; err != nil {
			return err
		}
		spots := make([]domain.ParkingSpot, 0, in.MaxSpots)
		for i := 1; i <= in.MaxSpots; i++ {
			spots = append(spots, domain.ParkingSpot{
				LotID:      lot.ID,
				SpotNumber: i,
				Status:     domain.SpotAvailable,
			})
		}
		return tx.Create(&spots).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("parking lot created",
		zap.Uint("lot_id", lot.ID),
		zap.String("name", lot.Name),
		zap.Int("spots", lot.MaxSpots))
	return lot, nil
}

// UpdateLot edits lot fields and resizes its spot set. Growing appends spots
// numbered past the highest existing one, so numbers surviving an earlier
// shrink are never reused; shrinking removes the highest-numbered available
// spots and refuses to touch occupied ones.
func (s *RegistryService) UpdateLot(actorID, lotID uint, in LotInput) (*domain.ParkingLot, error) {
	if _, err := s.ident.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	if err := validateLotInput(in); err != nil {
		return nil, err
	}

	var lot domain.ParkingLot
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&lot, "id = ?", lotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: parking lot %d", domain.ErrNotFound, lotID)
			}
			return err
		}

		var current int64
		if err := tx.Model(&domain.ParkingSpot{}).Where("lot_id = ?", lotID).Count(&current).Error; err != nil {
			return err
		}

		switch {
		case in.MaxSpots > int(current):
			var maxNum int
			if err := tx.Model(&domain.ParkingSpot{}).
				Where("lot_id = ?", lotID).
				Select("COALESCE(MAX(spot_number), 0)").
				Scan(&maxNum).Error; err != nil {
				return err
			}
			spots := make([]domain.ParkingSpot, 0, in.MaxSpots-int(current))
			for i := 1; i <= in.MaxSpots-int(current); i++ {
				spots = append(spots, domain.ParkingSpot{
					LotID:      lotID,
					SpotNumber: maxNum + i,
					Status:     domain.SpotAvailable,
				})
			}
			if err := tx.Create(&spots).Error; err != nil {
				return err
			}
		case in.MaxSpots < int(current):
			excess := int(current) - in.MaxSpots
			var removable []domain.ParkingSpot
			if err := tx.
				Where("lot_id = ? AND status = ?", lotID, domain.SpotAvailable).
				Order("spot_number desc").
				Limit(excess).
				Find(&removable).Error; err != nil {
				return err
			}
			if len(removable) < excess {
				return fmt.Errorf("%w: cannot shrink to %d spots, only %d of the %d to remove are available",
					domain.ErrCapacity, in.MaxSpots, len(removable), excess)
			}
			ids := make([]uint, 0, len(removable))
			for _, sp := range removable {
				ids = append(ids, sp.ID)
			}
			if err := tx.Delete(&domain.ParkingSpot{}, "id IN ?", ids).Error; err != nil {
				return err
			}
		}

		lot.Name = strings.TrimSpace(in.Name)
		lot.Price = in.Price
		lot.Address = strings.TrimSpace(in.Address)
		lot.PinCode = strings.TrimSpace(in.PinCode)
		lot.MaxSpots = in.MaxSpots
		return tx.Save(&lot).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("parking lot updated", zap.Uint("lot_id", lot.ID), zap.Int("max_spots", lot.MaxSpots))
	return &lot, nil
}

// DeleteLot removes a lot and all its spots. Refused while any spot is
// occupied. The spot cascade is explicit and shares the delete transaction.
func (s *RegistryService) DeleteLot(actorID, lotID uint) error {
	if _, err := s.ident.RequireAdmin(actorID); err != nil {
		return err
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var lot domain.ParkingLot
		if err := tx.First(&lot, "id = ?", lotID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: parking lot %d", domain.ErrNotFound, lotID)
			}
			return err
		}
		var occupied int64
		if err := tx.Model(&domain.ParkingSpot{}).
			Where("lot_id = ? AND status = ?", lotID, domain.SpotOccupied).
			Count(&occupied).Error; err != nil {
			return err
		}
		if occupied > 0 {
			return fmt.Errorf("%w: lot %d still has %d occupied spots", domain.ErrCapacity, lotID, occupied)
		}
		if err := tx.Delete(&domain.ParkingSpot{}, "lot_id = ?", lotID).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.ParkingLot{}, "id = ?", lotID).Error
	})
	if err == nil {
		s.log.Info("parking lot deleted", zap.Uint("lot_id", lotID))
	}
	return err
}

// CountByStatus returns the availability breakdown of one lot.
func (s *RegistryService) CountByStatus(lotID uint) (*domain.StatusCount, error) {
	lot, err := s.lots.FindByID(lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("%w: parking lot %d", domain.ErrNotFound, lotID)
	}
	avail, err := s.spots.CountByLotAndStatus(lotID, domain.SpotAvailable)
	if err != nil {
		return nil, err
	}
	occ, err := s.spots.CountByLotAndStatus(lotID, domain.SpotOccupied)
	if err != nil {
		return nil, err
	}
	return &domain.StatusCount{Available: avail, Occupied: occ}, nil
}

func (s *RegistryService) GetLot(lotID uint) (*domain.ParkingLot, error) {
	lot, err := s.lots.FindByID(lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("%w: parking lot %d", domain.ErrNotFound, lotID)
	}
	return lot, nil
}

func (s *RegistryService) ListLots() ([]domain.ParkingLot, error) { return s.lots.List() }

// ListLotAvailability returns every lot annotated with its free-spot count.
func (s *RegistryService) ListLotAvailability() ([]LotAvailability, error) {
	lots, err := s.lots.List()
	if err != nil {
		return nil, err
	}
	out := make([]LotAvailability, 0, len(lots))
	for _, lot := range lots {
		avail, err := s.spots.CountByLotAndStatus(lot.ID, domain.SpotAvailable)
		if err != nil {
			return nil, err
		}
		out = append(out, LotAvailability{Lot: lot, Available: avail})
	}
	return out, nil
}

// LotAvailability pairs a lot with its current free-spot count for search
// results and reserve pickers.
type LotAvailability struct {
	Lot       domain.ParkingLot `json:"lot"`
	Available int64             `json:"available"`
}

// SearchLots matches lots by name, address or PIN code and annotates each hit
// with its availability.
func (s *RegistryService) SearchLots(q string) ([]LotAvailability, error) {
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: empty search query", domain.ErrValidation)
	}
	lots, err := s.lots.Search(q)
	if err != nil {
		return nil, err
	}
	out := make([]LotAvailability, 0, len(lots))
	for _, lot := range lots {
		avail, err := s.spots.CountByLotAndStatus(lot.ID, domain.SpotAvailable)
		if err != nil {
			return nil, err
		}
		out = append(out, LotAvailability{Lot: lot, Available: avail})
	}
	return out, nil
}

// SpotDetail is one spot plus, when occupied, its active reservation and the
// holder, for the admin spot listing.
type SpotDetail struct {
	Spot        domain.ParkingSpot  `json:"spot"`
	Reservation *domain.Reservation `json:"reservation,omitempty"`
	Holder      *domain.User        `json:"holder,omitempty"`
}

// SpotsWithOccupant lists a lot's spots in number order with occupant info.
// Admin only.
func (s *RegistryService) SpotsWithOccupant(actorID, lotID uint) ([]SpotDetail, error) {
	if _, err := s.ident.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	if _, err := s.GetLot(lotID); err != nil {
		return nil, err
	}
	spots, err := s.spots.FindByLot(lotID)
	if err != nil {
		return nil, err
	}
	out := make([]SpotDetail, 0, len(spots))
	for _, sp := range spots {
		d := SpotDetail{Spot: sp}
		if sp.Status == domain.SpotOccupied {
			var res domain.Reservation
			err := s.db.First(&res, "spot_id = ? AND is_active = ?", sp.ID, true).Error
			if err == nil {
				d.Reservation = &res
				var holder domain.User
				if s.db.First(&holder, "id = ?", res.UserID).Error == nil {
					d.Holder = &holder
				}
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}
		out = append(out, d)
	}
	return out, nil
}
