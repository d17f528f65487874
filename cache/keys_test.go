package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopedKeyShapes(t *testing.T) {
	ks := NewKeys(PatientAppointments, "p1")

	assert.Equal(t, "patients:appointments:p1", ks.Root())
	assert.Equal(t, "patients:appointments:p1:a1", ks.Entity("a1"))
	assert.Equal(t, "patients:appointments:p1:page:3", ks.Page(3))
	assert.Equal(t, "patients:appointments:p1:total", ks.Total())
	assert.Equal(t, "patients:appointments:p1:upcoming", ks.Upcoming())
	assert.Equal(t, "patients:appointments:p1:prescription", ks.Prescription())
	assert.Equal(t, "patients:appointments:p1:page:*", ks.PagePattern())
}

func TestUnscopedKeyShapes(t *testing.T) {
	ks := NewKeys(Hospitals, "")

	assert.Equal(t, "hospitals", ks.Root())
	assert.Equal(t, "hospitals:h1", ks.Entity("h1"))
	assert.Equal(t, "hospitals:page:1", ks.Page(1))
	assert.Equal(t, "hospitals:total", ks.Total())
	assert.Equal(t, "hospitals:names", ks.Names())
	assert.Equal(t, "hospitals:locations", ks.Locations())
	assert.Equal(t, "hospitals:page:*", ks.PagePattern())
}

func TestHospitalScopedDoctorKeys(t *testing.T) {
	ks := NewKeys(Doctors, HospitalScope("h1"))

	assert.Equal(t, "doctors:hospital:h1:page:2", ks.Page(2))
	assert.Equal(t, "doctors:hospital:h1:total", ks.Total())
	assert.NotEqual(t, NewKeys(Doctors, "").Page(2), ks.Page(2))
}

func TestScopesDoNotCollide(t *testing.T) {
	a := NewKeys(PatientAppointments, "p1")
	b := NewKeys(PatientAppointments, "p2")

	assert.NotEqual(t, a.Page(1), b.Page(1))
	assert.NotEqual(t, a.Total(), b.Total())
}
