package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateBMI(t *testing.T) {
	cases := []struct {
		name     string
		weightKg float64
		heightFt float64
		want     float64
	}{
		{"average adult", 70, 5.5, 24.91},
		{"tall adult", 80, 6, 23.92},
		{"underweight", 45, 5.5, 16.01},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, CalculateBMI(tc.weightKg, tc.heightFt), 0.01)
		})
	}
}

func TestAgeGroupBoundaries(t *testing.T) {
	cases := []struct {
		age  int
		want string
	}{
		{5, "child"},
		{12, "child"},
		{13, "teen"},
		{19, "teen"},
		{20, "adult"},
		{39, "adult"},
		{40, "middle_aged"},
		{59, "middle_aged"},
		{60, "senior"},
		{85, "senior"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, AgeGroup(tc.age), "age %d", tc.age)
	}
}
