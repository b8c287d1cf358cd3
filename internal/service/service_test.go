package service

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"parklot/internal/domain"
	"parklot/internal/repo"
)

type testEnv struct {
	db       *gorm.DB
	ident    *IdentityService
	registry *RegistryService
	booking  *BookingService
	stats    *StatsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	// one in-memory database, one connection
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&domain.User{},
		&domain.ParkingLot{},
		&domain.ParkingSpot{},
		&domain.Reservation{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	log := zap.NewNop()
	users := repo.NewUserRepo(db)
	lots := repo.NewLotRepo(db)
	spots := repo.NewSpotRepo(db)
	reservations := repo.NewReservationRepo(db)

	ident := NewIdentityService(users, log)
	return &testEnv{
		db:       db,
		ident:    ident,
		registry: NewRegistryService(db, ident, lots, spots, log),
		booking:  NewBookingService(db, ident, reservations, time.UTC, log),
		stats:    NewStatsService(db, ident, lots, spots, users, reservations, nil, log),
	}
}

func (e *testEnv) admin(t *testing.T) *domain.User {
	t.Helper()
	if err := e.ident.Bootstrap("admin@parking.com", "Admin", "admin123"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	u, err := e.ident.Authenticate("admin@parking.com", "admin123")
	if err != nil {
		t.Fatalf("authenticate admin: %v", err)
	}
	return u
}

func (e *testEnv) user(t *testing.T, email string) *domain.User {
	t.Helper()
	u, err := e.ident.Register(RegisterInput{
		Name:     "Test User",
		Email:    email,
		Password: "secret1",
		Address:  "12 Main Street",
		PinCode:  "560001",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return u
}

func (e *testEnv) lot(t *testing.T, adminID uint, name string, price float64, maxSpots int) *domain.ParkingLot {
	t.Helper()
	l, err := e.registry.CreateLot(adminID, LotInput{
		Name:     name,
		Price:    price,
		Address:  "1 Station Road",
		PinCode:  "560001",
		MaxSpots: maxSpots,
	})
	if err != nil {
		t.Fatalf("create lot %s: %v", name, err)
	}
	return l
}
