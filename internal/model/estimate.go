package model

import (
	"fmt"
	"math"
)

// HourlyRateDKK is the standard rate including VAT.
const HourlyRateDKK = 349

// PriceEstimate is a rough quote derived from the parsed payload. It is
// advisory output for operators, never persisted with the lead.
type PriceEstimate struct {
	MinHours int    `json:"min_hours"`
	MaxHours int    `json:"max_hours"`
	Workers  int    `json:"workers"`
	MinPrice int    `json:"min_price_dkk"`
	MaxPrice int    `json:"max_price_dkk"`
	Display  string `json:"display"`
}

// EstimatePrice computes a price band from area and service type using the
// house rules: base hours by size bracket, multipliers for moving and deep
// cleans, a second worker above 150 m².
func EstimatePrice(p LeadPayload) PriceEstimate {
	hours := 2
	switch {
	case p.AreaSqm == 0:
		hours = 2
	case p.AreaSqm <= 80:
		hours = 2
	case p.AreaSqm <= 110:
		hours = 3
	case p.AreaSqm <= 140:
		hours = 4
	default:
		hours = (p.AreaSqm + 49) / 50
	}

	switch p.ServiceType {
	case ServiceMoveOut:
		hours = int(math.Ceil(float64(hours) * 2.5))
	case ServiceDeepClean:
		hours = int(math.Ceil(float64(hours) * 1.8))
	}

	workers := 1
	if p.AreaSqm > 150 {
		workers = 2
	}

	minPrice := hours * workers * HourlyRateDKK
	maxPrice := (hours + 1) * workers * HourlyRateDKK

	return PriceEstimate{
		MinHours: hours,
		MaxHours: hours + 1,
		Workers:  workers,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Display:  fmt.Sprintf("%d-%d kr (%d pers, %d-%dt)", minPrice, maxPrice, workers, hours, hours+1),
	}
}

// Canonical service types for the cleaning domain.
const (
	ServiceRecurring = "Fast Rengøring"
	ServiceMoveOut   = "Flytterengøring"
	ServiceDeepClean = "Hovedrengøring"
	ServiceOneOff    = "Engangsopgave"
)
