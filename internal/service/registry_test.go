package service

import (
	"errors"
	"testing"

	"parklot/internal/domain"
)

func lotSpots(t *testing.T, e *testEnv, lotID uint) []domain.ParkingSpot {
	t.Helper()
	var spots []domain.ParkingSpot
	if err := e.db.Where("lot_id = ?", lotID).Order("spot_number").Find(&spots).Error; err != nil {
		t.Fatalf("load spots: %v", err)
	}
	return spots
}

func TestCreateLotCreatesNumberedSpots(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)

	lot := e.lot(t, admin.ID, "Central Mall", 15, 4)
	spots := lotSpots(t, e, lot.ID)
	if len(spots) != 4 {
		t.Fatalf("spots = %d, want 4", len(spots))
	}
	for i, sp := range spots {
		if sp.SpotNumber != i+1 {
			t.Errorf("spot[%d].SpotNumber = %d, want %d", i, sp.SpotNumber, i+1)
		}
		if sp.Status != domain.SpotAvailable {
			t.Errorf("spot %d not available: %q", sp.SpotNumber, sp.Status)
		}
	}

	u := e.user(t, "frank@example.com")
	_, err := e.registry.CreateLot(u.ID, LotInput{
		Name: "Nope Lot", Price: 10, Address: "2 Side Street", PinCode: "560002", MaxSpots: 1,
	})
	if !errors.Is(err, domain.ErrAuth) {
		t.Errorf("create by non-admin: got %v, want ErrAuth", err)
	}

	_, err = e.registry.CreateLot(admin.ID, LotInput{
		Name: "Bad", Price: -1, Address: "x", PinCode: "1", MaxSpots: 0,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("invalid input: got %v, want ErrValidation", err)
	}
}

func TestUpdateLotGrowAppendsSpots(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Grow Lot", 10, 4)

	in := LotInput{Name: "Grow Lot", Price: 12, Address: "1 Station Road", PinCode: "560001", MaxSpots: 6}
	updated, err := e.registry.UpdateLot(admin.ID, lot.ID, in)
	if err != nil {
		t.Fatalf("grow: %v", err)
	}
	if updated.MaxSpots != 6 || updated.Price != 12 {
		t.Errorf("updated lot = %+v", updated)
	}
	spots := lotSpots(t, e, lot.ID)
	if len(spots) != 6 {
		t.Fatalf("spots = %d, want 6", len(spots))
	}
	if spots[4].SpotNumber != 5 || spots[5].SpotNumber != 6 {
		t.Errorf("appended numbers = %d,%d, want 5,6", spots[4].SpotNumber, spots[5].SpotNumber)
	}
}

func TestUpdateLotShrinkRemovesHighestAvailable(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Shrink Lot", 10, 4)

	// lowest spot (#1) becomes occupied
	u := e.user(t, "gina@example.com")
	if _, err := e.booking.Reserve(u.ID, lot.ID, "KA01AB1234"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	in := LotInput{Name: "Shrink Lot", Price: 10, Address: "1 Station Road", PinCode: "560001", MaxSpots: 2}
	if _, err := e.registry.UpdateLot(admin.ID, lot.ID, in); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	spots := lotSpots(t, e, lot.ID)
	if len(spots) != 2 {
		t.Fatalf("spots = %d, want 2", len(spots))
	}
	// highest-numbered available spots go first, the occupied one stays
	if spots[0].SpotNumber != 1 || spots[0].Status != domain.SpotOccupied {
		t.Errorf("spot[0] = %+v, want occupied #1", spots[0])
	}
	if spots[1].SpotNumber != 2 {
		t.Errorf("spot[1].SpotNumber = %d, want 2", spots[1].SpotNumber)
	}
}

func TestUpdateLotShrinkToOccupiedCount(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Busy Lot", 10, 5)

	// spots #1 and #2 become occupied
	u1 := e.user(t, "nora@example.com")
	u2 := e.user(t, "omar@example.com")
	if _, err := e.booking.Reserve(u1.ID, lot.ID, "KA01AB1111"); err != nil {
		t.Fatalf("reserve u1: %v", err)
	}
	if _, err := e.booking.Reserve(u2.ID, lot.ID, "KA01AB2222"); err != nil {
		t.Fatalf("reserve u2: %v", err)
	}

	// shrinking 5 -> 2 removes 3 spots and there are 3 available, so it
	// succeeds even though the survivors are all occupied
	in := LotInput{Name: "Busy Lot", Price: 10, Address: "1 Station Road", PinCode: "560001", MaxSpots: 2}
	updated, err := e.registry.UpdateLot(admin.ID, lot.ID, in)
	if err != nil {
		t.Fatalf("shrink to occupied count: %v", err)
	}
	if updated.MaxSpots != 2 {
		t.Errorf("max spots = %d, want 2", updated.MaxSpots)
	}
	spots := lotSpots(t, e, lot.ID)
	if len(spots) != 2 {
		t.Fatalf("spots = %d, want 2", len(spots))
	}
	for _, sp := range spots {
		if sp.SpotNumber > 2 || sp.Status != domain.SpotOccupied {
			t.Errorf("surviving spot = %+v, want occupied #1/#2", sp)
		}
	}
}

func TestUpdateLotGrowAfterGappyShrink(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Gap Lot", 10, 5)

	// leave only the high-numbered spot occupied, then shrink around it
	if err := e.db.Model(&domain.ParkingSpot{}).
		Where("lot_id = ? AND spot_number = ?", lot.ID, 5).
		Update("status", domain.SpotOccupied).Error; err != nil {
		t.Fatalf("occupy #5: %v", err)
	}
	shrink := LotInput{Name: "Gap Lot", Price: 10, Address: "1 Station Road", PinCode: "560001", MaxSpots: 2}
	if _, err := e.registry.UpdateLot(admin.ID, lot.ID, shrink); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	spots := lotSpots(t, e, lot.ID)
	if len(spots) != 2 || spots[0].SpotNumber != 1 || spots[1].SpotNumber != 5 {
		t.Fatalf("spots after shrink = %+v, want #1 and #5", spots)
	}

	// growing again must number past the surviving #5, not collide with it
	grow := LotInput{Name: "Gap Lot", Price: 10, Address: "1 Station Road", PinCode: "560001", MaxSpots: 5}
	if _, err := e.registry.UpdateLot(admin.ID, lot.ID, grow); err != nil {
		t.Fatalf("grow over gap: %v", err)
	}
	spots = lotSpots(t, e, lot.ID)
	if len(spots) != 5 {
		t.Fatalf("spots after grow = %d, want 5", len(spots))
	}
	seen := map[int]bool{}
	for _, sp := range spots {
		if seen[sp.SpotNumber] {
			t.Fatalf("duplicate spot number %d", sp.SpotNumber)
		}
		seen[sp.SpotNumber] = true
	}
	for _, want := range []int{6, 7, 8} {
		if !seen[want] {
			t.Errorf("expected appended spot #%d, have %v", want, spots)
		}
	}
}

func TestUpdateLotShrinkRefusesOccupied(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Full Lot", 10, 2)

	u1 := e.user(t, "henry@example.com")
	u2 := e.user(t, "iris@example.com")
	if _, err := e.booking.Reserve(u1.ID, lot.ID, "KA01AB1111"); err != nil {
		t.Fatalf("reserve u1: %v", err)
	}
	if _, err := e.booking.Reserve(u2.ID, lot.ID, "KA01AB2222"); err != nil {
		t.Fatalf("reserve u2: %v", err)
	}

	in := LotInput{Name: "Full Lot", Price: 10, Address: "1 Station Road", PinCode: "560001", MaxSpots: 1}
	if _, err := e.registry.UpdateLot(admin.ID, lot.ID, in); !errors.Is(err, domain.ErrCapacity) {
		t.Errorf("shrink over occupied: got %v, want ErrCapacity", err)
	}
	// failed shrink must not remove anything
	if spots := lotSpots(t, e, lot.ID); len(spots) != 2 {
		t.Errorf("spots after failed shrink = %d, want 2", len(spots))
	}
}

func TestDeleteLotBlockedWhileOccupied(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Doomed Lot", 10, 2)

	u := e.user(t, "jack@example.com")
	if _, err := e.booking.Reserve(u.ID, lot.ID, "KA01AB3333"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := e.registry.DeleteLot(admin.ID, lot.ID); !errors.Is(err, domain.ErrCapacity) {
		t.Errorf("delete occupied lot: got %v, want ErrCapacity", err)
	}

	if _, err := e.booking.Release(u.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := e.registry.DeleteLot(admin.ID, lot.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if spots := lotSpots(t, e, lot.ID); len(spots) != 0 {
		t.Errorf("spots not cascaded, %d left", len(spots))
	}
	if _, err := e.registry.GetLot(lot.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted lot lookup: got %v, want ErrNotFound", err)
	}

	if err := e.registry.DeleteLot(admin.ID, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("delete unknown lot: got %v, want ErrNotFound", err)
	}
}

func TestCountByStatusAndSearch(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Airport Lot", 25, 3)

	u := e.user(t, "kate@example.com")
	if _, err := e.booking.Reserve(u.ID, lot.ID, "KA01AB4444"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	sc, err := e.registry.CountByStatus(lot.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if sc.Available != 2 || sc.Occupied != 1 {
		t.Errorf("status count = %+v, want 2 available / 1 occupied", sc)
	}

	hits, err := e.registry.SearchLots("airport")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Available != 2 {
		t.Errorf("search hits = %+v", hits)
	}
	if _, err := e.registry.SearchLots(" "); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank query: got %v, want ErrValidation", err)
	}
}

func TestSpotsWithOccupant(t *testing.T) {
	e := newTestEnv(t)
	admin := e.admin(t)
	lot := e.lot(t, admin.ID, "Detail Lot", 10, 2)

	u := e.user(t, "liam@example.com")
	if _, err := e.booking.Reserve(u.ID, lot.ID, "KA01AB5555"); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	details, err := e.registry.SpotsWithOccupant(admin.ID, lot.ID)
	if err != nil {
		t.Fatalf("spots with occupant: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("details = %d, want 2", len(details))
	}
	if details[0].Reservation == nil || details[0].Holder == nil || details[0].Holder.ID != u.ID {
		t.Errorf("occupied spot missing occupant info: %+v", details[0])
	}
	if details[1].Reservation != nil || details[1].Holder != nil {
		t.Errorf("free spot should carry no occupant: %+v", details[1])
	}

	if _, err := e.registry.SpotsWithOccupant(u.ID, lot.ID); !errors.Is(err, domain.ErrAuth) {
		t.Errorf("non-admin listing: got %v, want ErrAuth", err)
	}
}
