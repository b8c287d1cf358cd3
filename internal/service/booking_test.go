package service

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"parklot/internal/domain"
)

func TestReserveAssignsLowestNumberedSpot(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Order Lot", 10, 3)

	u := e.user(t, "mia@example.com")
	res, err := e.booking.Reserve(u.ID, lot.ID, "KA01AB1234")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var spot domain.ParkingSpot
	if err := e.db.First(&spot, "id = ?", res.SpotID).Error; err != nil {
		t.Fatalf("load spot: %v", err)
	}
	if spot.SpotNumber != 1 {
		t.Errorf("assigned spot #%d, want #1", spot.SpotNumber)
	}
	if spot.Status != domain.SpotOccupied {
		t.Errorf("spot status = %q, want occupied", spot.Status)
	}
	if res.ParkingTime.Location() != time.UTC {
		t.Errorf("parking time not UTC: %v", res.ParkingTime)
	}

	// one active reservation per user
	if _, err := e.booking.Reserve(u.ID, lot.ID, "KA01AB1234"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second reserve: got %v, want ErrConflict", err)
	}

	// next user gets the next number
	u2 := e.user(t, "noah@example.com")
	res2, err := e.booking.Reserve(u2.ID, lot.ID, "KA02CD5678")
	if err != nil {
		t.Fatalf("reserve u2: %v", err)
	}
	var spot2 domain.ParkingSpot
	if err := e.db.First(&spot2, "id = ?", res2.SpotID).Error; err != nil {
		t.Fatalf("load spot: %v", err)
	}
	if spot2.SpotNumber != 2 {
		t.Errorf("u2 assigned spot #%d, want #2", spot2.SpotNumber)
	}
}

func TestReserveRejections(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Reject Lot", 10, 1)
	u := e.user(t, "olga@example.com")

	if _, err := e.booking.Reserve(u.ID, lot.ID, "ab"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("short vehicle number: got %v, want ErrValidation", err)
	}
	if _, err := e.booking.Reserve(u.ID, lot.ID, "ka01ab1234"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("lowercase vehicle number: got %v, want ErrValidation", err)
	}
	if _, err := e.booking.Reserve(admin.ID, lot.ID, "KA01AB1234"); !errors.Is(err, domain.ErrAuth) {
		t.Errorf("admin reserving: got %v, want ErrAuth", err)
	}
	if _, err := e.booking.Reserve(u.ID, 9999, "KA01AB1234"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown lot: got %v, want ErrNotFound", err)
	}
}

func TestReserveFullLot(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Tiny Lot", 10, 1)

	u1 := e.user(t, "pete@example.com")
	u2 := e.user(t, "quin@example.com")
	if _, err := e.booking.Reserve(u1.ID, lot.ID, "KA01AB1111"); err != nil {
		t.Fatalf("reserve u1: %v", err)
	}
	if _, err := e.booking.Reserve(u2.ID, lot.ID, "KA01AB2222"); !errors.Is(err, domain.ErrCapacity) {
		t.Errorf("full lot: got %v, want ErrCapacity", err)
	}

	// releasing frees the spot for the next reserver
	if _, err := e.booking.Release(u1.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := e.booking.Reserve(u2.ID, lot.ID, "KA01AB2222"); err != nil {
		t.Errorf("reserve after release: %v", err)
	}
}

func TestConcurrentReserveLastSpot(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Race Lot", 10, 1)

	u1 := e.user(t, "ana@example.com")
	u2 := e.user(t, "ben@example.com")

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, uid := range []uint{u1.ID, u2.ID} {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := e.booking.Reserve(id, lot.ID, "KA01AB1234")
			errs <- err
		}(uid)
	}
	wg.Wait()
	close(errs)

	var won, full int
	for err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrCapacity):
			full++
		default:
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}
	if won != 1 || full != 1 {
		t.Fatalf("got %d winners / %d capacity failures, want exactly 1/1", won, full)
	}

	// the single spot is assigned exactly once
	var occupied int64
	if err := e.db.Model(&domain.ParkingSpot{}).
		Where("lot_id = ? AND status = ?", lot.ID, domain.SpotOccupied).
		Count(&occupied).Error; err != nil {
		t.Fatalf("count spots: %v", err)
	}
	var active int64
	if err := e.db.Model(&domain.Reservation{}).
		Where("is_active = ?", true).
		Count(&active).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if occupied != 1 || active != 1 {
		t.Errorf("occupied spots = %d, active reservations = %d, want 1/1", occupied, active)
	}
}

func TestReleaseBillsAtCurrentPrice(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Billing Lot", 20, 1)

	u := e.user(t, "rita@example.com")
	res, err := e.booking.Reserve(u.ID, lot.ID, "KA01AB1234")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// pretend the car has been parked for 90 minutes
	backdated := time.Now().UTC().Add(-90 * time.Minute)
	if err := e.db.Model(&domain.Reservation{}).
		Where("id = ?", res.ID).
		Update("parking_time", backdated).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	closed, err := e.booking.Release(u.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if closed.ParkingCost == nil {
		t.Fatal("no parking cost recorded")
	}
	if math.Abs(*closed.ParkingCost-30.00) > 0.01 {
		t.Errorf("cost = %v, want 30.00 (1.5h x 20)", *closed.ParkingCost)
	}
	if closed.LeavingTime == nil || closed.IsActive {
		t.Errorf("reservation not closed: %+v", closed)
	}

	var spot domain.ParkingSpot
	if err := e.db.First(&spot, "id = ?", closed.SpotID).Error; err != nil {
		t.Fatalf("load spot: %v", err)
	}
	if spot.Status != domain.SpotAvailable {
		t.Errorf("spot status after release = %q, want available", spot.Status)
	}

	if _, err := e.booking.Release(u.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("double release: got %v, want ErrNotFound", err)
	}
}

func TestActiveAndHistory(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "History Lot", 10, 2)
	u := e.user(t, "sam@example.com")

	d, err := e.booking.Active(u.ID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if d != nil {
		t.Errorf("active with no reservation = %+v, want nil", d)
	}

	if _, err := e.booking.Reserve(u.ID, lot.ID, "KA01AB1234"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := e.booking.Release(u.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := e.booking.Reserve(u.ID, lot.ID, "KA01AB1234"); err != nil {
		t.Fatalf("reserve again: %v", err)
	}

	d, err = e.booking.Active(u.ID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if d == nil || !d.Reservation.IsActive || d.Lot.ID != lot.ID {
		t.Errorf("active detail = %+v", d)
	}

	items, total, err := e.booking.History(u.ID, 1, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("history total=%d len=%d, want 2/2", total, len(items))
	}
	// newest first: the open reservation leads
	if !items[0].Reservation.IsActive || items[1].Reservation.IsActive {
		t.Errorf("history order wrong: %+v", items)
	}

	recent, err := e.booking.RecentCompleted(u.ID, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Reservation.IsActive {
		t.Errorf("recent completed = %+v", recent)
	}
}
