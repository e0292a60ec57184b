package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columbia = Coordinate{Lat: 34.0007, Lng: -81.0348}

func TestDistanceIdenticalIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Distance(columbia, columbia))
	assert.Equal(t, 0.0, Distance(Coordinate{}, Coordinate{}))
}

func TestDistanceSymmetric(t *testing.T) {
	points := []Coordinate{
		columbia,
		{Lat: 40.0, Lng: -75.0},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 51.5074, Lng: -0.1278},
		{Lat: 0, Lng: 179.9},
		{Lat: 0, Lng: -179.9},
		{Lat: 89.9, Lng: 10},
	}
	for _, a := range points {
		for _, b := range points {
			assert.Equal(t, Distance(a, b), Distance(b, a), "distance(%v,%v)", a, b)
		}
	}
}

func TestDistanceOneDegreeLongitudeAtEquator(t *testing.T) {
	d := Distance(Coordinate{Lat: 0, Lng: 0}, Coordinate{Lat: 0, Lng: 1})
	assert.InDelta(t, 111320, d, 111320*0.01)
	// 2πR/360
	assert.InDelta(t, 2*math.Pi*EarthRadiusMeters/360, d, 1e-6)
}

func TestDistanceSmallOffset(t *testing.T) {
	a := Coordinate{Lat: 34.0000, Lng: -81.0000}
	b := Coordinate{Lat: 34.0001, Lng: -81.0000}
	d := Distance(a, b)
	assert.Greater(t, d, 10.0)
	assert.Less(t, d, 15.0)
	assert.InDelta(t, 11.119, d, 0.01)
}

func TestDistanceAntipodalIsFinite(t *testing.T) {
	halfCircumference := math.Pi * EarthRadiusMeters
	for i := 0; i <= 20000; i++ {
		lat := -90 + float64(i)*180/20000
		a := Coordinate{Lat: lat, Lng: 10.123}
		b := Coordinate{Lat: -lat, Lng: -169.877}
		d := Distance(a, b)
		require.False(t, math.IsNaN(d) || math.IsInf(d, 0), "distance(%v,%v) = %v", a, b, d)
		require.GreaterOrEqual(t, d, 0.0)
		require.LessOrEqual(t, d, halfCircumference)
	}

	d := Distance(Coordinate{Lat: 0, Lng: 0}, Coordinate{Lat: 0, Lng: 180})
	assert.InDelta(t, halfCircumference, d, 1e-6)
}

func TestDistanceOutOfRangeStillNumeric(t *testing.T) {
	d := Distance(Coordinate{Lat: 120, Lng: 400}, Coordinate{Lat: 0, Lng: 0})
	assert.False(t, math.IsNaN(d))
	assert.GreaterOrEqual(t, d, 0.0)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		c    Coordinate
		ok   bool
	}{
		{"origin", Coordinate{}, true},
		{"columbia", columbia, true},
		{"north pole", Coordinate{Lat: 90, Lng: 0}, true},
		{"antimeridian", Coordinate{Lat: 0, Lng: -180}, true},
		{"lat too high", Coordinate{Lat: 90.0001, Lng: 0}, false},
		{"lng too low", Coordinate{Lat: 0, Lng: -180.5}, false},
		{"nan", Coordinate{Lat: math.NaN(), Lng: 0}, false},
		{"inf", Coordinate{Lat: 0, Lng: math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidCoordinate))
		})
	}
}

func TestFormatDistance(t *testing.T) {
	tests := []struct {
		meters float64
		want   string
	}{
		{0, "0m away"},
		{42.4, "42m away"},
		{999.4, "999m away"},
		{1000, "1.0km away"},
		{1349, "1.3km away"},
		{25500, "25.5km away"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDistance(tt.meters), "FormatDistance(%v)", tt.meters)
	}
}
