package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimatePrice_Brackets(t *testing.T) {
	tests := []struct {
		name      string
		sqm       int
		service   string
		wantHours int
		wantCrew  int
	}{
		{"small flat", 60, ServiceOneOff, 2, 1},
		{"mid flat", 100, ServiceOneOff, 3, 1},
		{"large flat", 130, ServiceOneOff, 4, 1},
		{"house over bracket", 200, ServiceOneOff, 4, 2},
		{"unknown size defaults low", 0, ServiceOneOff, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := EstimatePrice(LeadPayload{AreaSqm: tt.sqm, ServiceType: tt.service})
			assert.Equal(t, tt.wantHours, est.MinHours)
			assert.Equal(t, tt.wantCrew, est.Workers)
			assert.Equal(t, est.MinHours*est.Workers*HourlyRateDKK, est.MinPrice)
		})
	}
}

func TestEstimatePrice_ServiceMultipliers(t *testing.T) {
	tests := []struct {
		name      string
		sqm       int
		service   string
		wantHours int
	}{
		// 2h base: 2 x 2.5 = 5 exactly, 2 x 1.8 = 3.6 rounds up to 4.
		{"move-out small", 60, ServiceMoveOut, 5},
		{"deep clean small", 60, ServiceDeepClean, 4},
		// 3h base: 3 x 2.5 = 7.5 rounds up to 8, 3 x 1.8 = 5.4 rounds up to 6.
		{"move-out mid", 100, ServiceMoveOut, 8},
		{"deep clean mid", 100, ServiceDeepClean, 6},
		// 4h base: 4 x 2.5 = 10 exactly.
		{"move-out large", 130, ServiceMoveOut, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := EstimatePrice(LeadPayload{AreaSqm: tt.sqm, ServiceType: tt.service})
			assert.Equal(t, tt.wantHours, est.MinHours)
		})
	}

	oneOff := EstimatePrice(LeadPayload{AreaSqm: 100, ServiceType: ServiceOneOff})
	moveOut := EstimatePrice(LeadPayload{AreaSqm: 100, ServiceType: ServiceMoveOut})
	deep := EstimatePrice(LeadPayload{AreaSqm: 100, ServiceType: ServiceDeepClean})
	assert.Greater(t, moveOut.MinHours, deep.MinHours)
	assert.Greater(t, deep.MinHours, oneOff.MinHours)
}
