package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"parklot/internal/core/cache"
	"parklot/internal/domain"
	"parklot/internal/repo"
)

// StatsService is the read side: occupancy, revenue series and per-user
// aggregates. Series are bucketed in Go from fetched rows so the same code
// runs unchanged on sqlite, mysql and postgres.
type StatsService struct {
	db           *gorm.DB
	ident        *IdentityService
	lots         *repo.LotRepo
	spots        *repo.SpotRepo
	users        *repo.UserRepo
	reservations *repo.ReservationRepo
	cache        *cache.Cache // optional; nil disables caching
	log          *zap.Logger
}

func NewStatsService(
	db *gorm.DB,
	ident *IdentityService,
	lots *repo.LotRepo,
	spots *repo.SpotRepo,
	users *repo.UserRepo,
	reservations *repo.ReservationRepo,
	c *cache.Cache,
	log *zap.Logger,
) *StatsService {
	return &StatsService{
		db: db, ident: ident,
		lots: lots, spots: spots, users: users, reservations: reservations,
		cache: c, log: log,
	}
}

const (
	parkingStatsTTL = 30 * time.Second
	revenueStatsTTL = time.Minute
)

// InvalidateAggregates drops the cached admin aggregates after a mutation so
// the next dashboard read reflects it before the TTL would.
func (s *StatsService) InvalidateAggregates(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, "stats:parking", "stats:revenue")
	}
}

type OccupancyBreakdown struct {
	Total         int64   `json:"total"`
	Available     int64   `json:"available"`
	Occupied      int64   `json:"occupied"`
	OccupancyRate float64 `json:"occupancyRate"`
}

type LotStats struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	OccupancyBreakdown
}

type ParkingStats struct {
	Overall OccupancyBreakdown `json:"overall"`
	Lots    []LotStats         `json:"lots"`
}

func rate(occupied, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(occupied) / float64(total) * 100
}

// ParkingStats reports overall and per-lot occupancy. Admin only; served
// through the redis read-through cache when one is configured.
func (s *StatsService) ParkingStats(ctx context.Context, actorID uint) (*ParkingStats, error) {
	if _, err := s.ident.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	if s.cache != nil {
		return cache.GetOrLoadJSON[ParkingStats](s.cache, ctx, "stats:parking", parkingStatsTTL, func(context.Context) (*ParkingStats, error) {
			return s.loadParkingStats()
		})
	}
	return s.loadParkingStats()
}

func (s *StatsService) loadParkingStats() (*ParkingStats, error) {
	total, err := s.spots.CountAll()
	if err != nil {
		return nil, err
	}
	avail, err := s.spots.CountByStatus(domain.SpotAvailable)
	if err != nil {
		return nil, err
	}
	occ, err := s.spots.CountByStatus(domain.SpotOccupied)
	if err != nil {
		return nil, err
	}

	lots, err := s.lots.List()
	if err != nil {
		return nil, err
	}
	out := &ParkingStats{
		Overall: OccupancyBreakdown{Total: total, Available: avail, Occupied: occ, OccupancyRate: rate(occ, total)},
		Lots:    make([]LotStats, 0, len(lots)),
	}
	for _, lot := range lots {
		lt, err := s.spots.CountByLot(lot.ID)
		if err != nil {
			return nil, err
		}
		la, err := s.spots.CountByLotAndStatus(lot.ID, domain.SpotAvailable)
		if err != nil {
			return nil, err
		}
		lo, err := s.spots.CountByLotAndStatus(lot.ID, domain.SpotOccupied)
		if err != nil {
			return nil, err
		}
		out.Lots = append(out.Lots, LotStats{
			ID:   lot.ID,
			Name: lot.Name,
			OccupancyBreakdown: OccupancyBreakdown{
				Total: lt, Available: la, Occupied: lo, OccupancyRate: rate(lo, lt),
			},
		})
	}
	return out, nil
}

type RevenuePoint struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Revenue float64 `json:"revenue"`
}

type MonthlyRevenue struct {
	Month   string  `json:"month"` // YYYY-MM
	Revenue float64 `json:"revenue"`
}

type RevenueStats struct {
	Daily   []RevenuePoint   `json:"daily"`   // trailing 30 days
	Monthly []MonthlyRevenue `json:"monthly"` // trailing 12 months, newest first
}

// RevenueStats aggregates completed-reservation revenue per day over the
// trailing 30 days and per month over the trailing 12 months. Admin only.
func (s *StatsService) RevenueStats(ctx context.Context, actorID uint) (*RevenueStats, error) {
	if _, err := s.ident.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	if s.cache != nil {
		return cache.GetOrLoadJSON[RevenueStats](s.cache, ctx, "stats:revenue", revenueStatsTTL, func(context.Context) (*RevenueStats, error) {
			return s.loadRevenueStats()
		})
	}
	return s.loadRevenueStats()
}

func (s *StatsService) loadRevenueStats() (*RevenueStats, error) {
	now := time.Now().UTC()

	yearAgo := now.AddDate(-1, 0, 0)
	rows, err := s.reservations.FindCompletedSince(yearAgo)
	if err != nil {
		return nil, err
	}

	thirtyDaysAgo := now.AddDate(0, 0, -30)
	daily := map[string]float64{}
	monthly := map[string]float64{}
	for _, r := range rows {
		if r.LeavingTime == nil || r.ParkingCost == nil {
			continue
		}
		monthly[r.LeavingTime.Format("2006-01")] += *r.ParkingCost
		if !r.LeavingTime.Before(thirtyDaysAgo) {
			daily[r.LeavingTime.Format("2006-01-02")] += *r.ParkingCost
		}
	}

	out := &RevenueStats{
		Daily:   make([]RevenuePoint, 0, len(daily)),
		Monthly: make([]MonthlyRevenue, 0, len(monthly)),
	}
	for d, v := range daily {
		out.Daily = append(out.Daily, RevenuePoint{Date: d, Revenue: v})
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })
	for m, v := range monthly {
		out.Monthly = append(out.Monthly, MonthlyRevenue{Month: m, Revenue: v})
	}
	sort.Slice(out.Monthly, func(i, j int) bool { return out.Monthly[i].Month > out.Monthly[j].Month })
	if len(out.Monthly) > 12 {
		out.Monthly = out.Monthly[:12]
	}
	return out, nil
}

type DashboardCounters struct {
	TotalLots          int64 `json:"totalLots"`
	TotalSpots         int64 `json:"totalSpots"`
	AvailableSpots     int64 `json:"availableSpots"`
	OccupiedSpots      int64 `json:"occupiedSpots"`
	TotalUsers         int64 `json:"totalUsers"`
	ActiveReservations int64 `json:"activeReservations"`
}

// Dashboard returns the admin landing-page counters.
func (s *StatsService) Dashboard(actorID uint) (*DashboardCounters, error) {
	if _, err := s.ident.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	var (
		c   DashboardCounters
		err error
	)
	if c.TotalLots, err = s.lots.Count(); err != nil {
		return nil, err
	}
	if c.TotalSpots, err = s.spots.CountAll(); err != nil {
		return nil, err
	}
	if c.AvailableSpots, err = s.spots.CountByStatus(domain.SpotAvailable); err != nil {
		return nil, err
	}
	if c.OccupiedSpots, err = s.spots.CountByStatus(domain.SpotOccupied); err != nil {
		return nil, err
	}
	if c.TotalUsers, err = s.users.CountNonAdmin(); err != nil {
		return nil, err
	}
	if c.ActiveReservations, err = s.reservations.CountActive(); err != nil {
		return nil, err
	}
	return &c, nil
}

type UserStats struct {
	UserID                uint    `json:"userId"`
	TotalReservations     int     `json:"totalReservations"`
	CompletedReservations int     `json:"completedReservations"`
	ActiveReservations    int     `json:"activeReservations"`
	TotalSpent            float64 `json:"totalSpent"`
	AvgDurationHours      float64 `json:"avgDurationHours"`
}

// UserStats aggregates one user's parking history. Allowed for admins and
// for the user themself.
func (s *StatsService) UserStats(actorID, userID uint) (*UserStats, error) {
	if _, err := s.ident.GetUser(actorID, userID); err != nil {
		return nil, err
	}
	rs, err := s.reservations.FindAllByUser(userID)
	if err != nil {
		return nil, err
	}
	out := &UserStats{UserID: userID, TotalReservations: len(rs)}
	var totalHours float64
	for _, r := range rs {
		if r.IsActive {
			out.ActiveReservations++
			continue
		}
		out.CompletedReservations++
		if r.ParkingCost != nil {
			out.TotalSpent += *r.ParkingCost
		}
		if r.LeavingTime != nil {
			totalHours += r.LeavingTime.Sub(r.ParkingTime).Seconds() / 3600
		}
	}
	if out.CompletedReservations > 0 {
		out.AvgDurationHours = totalHours / float64(out.CompletedReservations)
	}
	return out, nil
}

type MonthlyUsage struct {
	Month string  `json:"month"` // YYYY-MM
	Count int     `json:"count"`
	Cost  float64 `json:"cost"`
}

type FavoriteLot struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type UserSummary struct {
	TotalReservations int64          `json:"totalReservations"`
	TotalSpending     float64        `json:"totalSpending"`
	Monthly           []MonthlyUsage `json:"monthly"`   // up to 6 months
	FavoriteLots      []FavoriteLot  `json:"favorites"` // top 5 by visits
}

// UserSummary backs the user's personal summary page: lifetime spend,
// month-by-month usage and most-visited lots.
func (s *StatsService) UserSummary(userID uint) (*UserSummary, error) {
	rs, err := s.reservations.FindAllByUser(userID)
	if err != nil {
		return nil, err
	}

	out := &UserSummary{TotalReservations: int64(len(rs))}
	byMonth := map[string]*MonthlyUsage{}
	for _, r := range rs {
		if r.IsActive {
			continue
		}
		m := r.ParkingTime.Format("2006-01")
		u, ok := byMonth[m]
		if !ok {
			u = &MonthlyUsage{Month: m}
			byMonth[m] = u
		}
		u.Count++
		if r.ParkingCost != nil {
			u.Cost += *r.ParkingCost
			out.TotalSpending += *r.ParkingCost
		}
	}
	for _, u := range byMonth {
		out.Monthly = append(out.Monthly, *u)
	}
	sort.Slice(out.Monthly, func(i, j int) bool { return out.Monthly[i].Month < out.Monthly[j].Month })
	if len(out.Monthly) > 6 {
		out.Monthly = out.Monthly[len(out.Monthly)-6:]
	}

	err = s.db.Model(&domain.Reservation{}).
		Select("parking_lots.name AS name, COUNT(*) AS count").
		Joins("JOIN parking_spots ON parking_spots.id = reservations.spot_id").
		Joins("JOIN parking_lots ON parking_lots.id = parking_spots.lot_id").
		Where("reservations.user_id = ?", userID).
		Group("parking_lots.id, parking_lots.name").
		Order("count DESC").
		Limit(5).
		Scan(&out.FavoriteLots).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

type AvailableSpot struct {
	ID         uint `json:"id"`
	SpotNumber int  `json:"spotNumber"`
}

type LotAvailabilityDetail struct {
	LotID          uint            `json:"lotId"`
	LotName        string          `json:"lotName"`
	AvailableSpots []AvailableSpot `json:"availableSpots"`
	TotalAvailable int             `json:"totalAvailable"`
	PricePerHour   float64         `json:"pricePerHour"`
}

// AvailableSpots lists a lot's free spots. Public, no auth.
func (s *StatsService) AvailableSpots(lotID uint) (*LotAvailabilityDetail, error) {
	lot, err := s.lots.FindByID(lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, fmt.Errorf("%w: parking lot %d", domain.ErrNotFound, lotID)
	}
	spots, err := s.spots.FindAvailableByLot(lotID)
	if err != nil {
		return nil, err
	}
	out := &LotAvailabilityDetail{
		LotID:          lot.ID,
		LotName:        lot.Name,
		AvailableSpots: make([]AvailableSpot, 0, len(spots)),
		TotalAvailable: len(spots),
		PricePerHour:   lot.Price,
	}
	for _, sp := range spots {
		out.AvailableSpots = append(out.AvailableSpots, AvailableSpot{ID: sp.ID, SpotNumber: sp.SpotNumber})
	}
	return out, nil
}
