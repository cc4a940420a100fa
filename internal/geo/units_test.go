package geo

import (
	"math"
	"testing"
)

func TestFeetToMeters(t *testing.T) {
	cases := []struct {
		feet float64
		want float64
	}{
		{0, 0},
		{1, 0.3048},
		{5000, 1524.0},
		{-1000, -304.8},
	}
	for _, c := range cases {
		got := FeetToMeters(c.feet)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("FeetToMeters(%v)=%v want %v", c.feet, got, c.want)
		}
	}
}

func TestKnotsToMetersPerSecond(t *testing.T) {
	cases := []struct {
		knots float64
		want  float64
	}{
		{0, 0},
		{1, 0.514444},
		{100, 51.4444},
	}
	for _, c := range cases {
		got := KnotsToMetersPerSecond(c.knots)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("KnotsToMetersPerSecond(%v)=%v want %v", c.knots, got, c.want)
		}
	}
}
