package domain

import (
	"math"
	"time"
)

// CalculateCost returns the charge for a reservation at the given hourly
// price, rounded to two decimals. Open reservations (no leaving time) cost 0.
//
// The caller passes the lot's price as it stands at release time; a price
// change during a stay is therefore billed entirely at the new rate.
func CalculateCost(r *Reservation, pricePerHour float64) float64 {
	if r == nil || r.LeavingTime == nil {
		return 0
	}
	hours := r.LeavingTime.Sub(r.ParkingTime).Seconds() / 3600
	return math.Round(hours*pricePerHour*100) / 100
}

// InDisplayTZ converts a stored UTC timestamp for presentation. Storage is
// always UTC; only rendering shifts zones.
func InDisplayTZ(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t.UTC()
	}
	return t.In(loc)
}
