package utils

import "math"

const feetToMeters = 0.3048

// CalculateBMI computes body mass index from weight in kilograms and height
// in feet, rounded to two decimals.
func CalculateBMI(weightKg, heightFt float64) float64 {
	heightM := heightFt * feetToMeters
	bmi := weightKg / (heightM * heightM)
	return math.Round(bmi*100) / 100
}

// AgeGroup buckets an age for the system-generated suggestion table.
func AgeGroup(age int) string {
	switch {
	case age < 13:
		return "child"
	case age < 20:
		return "teen"
	case age < 40:
		return "adult"
	case age < 60:
		return "middle_aged"
	default:
		return "senior"
	}
}
