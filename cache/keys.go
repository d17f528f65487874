package cache

import "fmt"

// Collections used across the backend. Scope is always the encoded id of the
// owning entity (patient, appointment), keeping one namespace per owner.
const (
	PatientAppointments = "patients:appointments"
	PatientMonitorings  = "patients:monitorings"
	PatientMedications  = "patients:medications"
	DoctorAppointments  = "users:doctor:appointments"
	Doctors             = "doctors"
	Hospitals           = "hospitals"
	Meals               = "meals"
	Profiles            = "users:info"
)

// HospitalScope namespaces a collection under one hospital, e.g. the paged
// doctor listing for a single hospital.
func HospitalScope(hospitalID string) string {
	return "hospital:" + hospitalID
}

// Keys derives every cache key shape for one (collection, scope) pair so key
// construction lives in one place instead of string interpolation scattered
// across call sites.
type Keys struct {
	collection string
	scope      string
}

func NewKeys(collection, scope string) Keys {
	return Keys{collection: collection, scope: scope}
}

func (k Keys) prefix() string {
	if k.scope == "" {
		return k.collection
	}
	return k.collection + ":" + k.scope
}

// Root is the key for singleton records owned by the scope, e.g. a patient's
// health record.
func (k Keys) Root() string {
	return k.prefix()
}

// Entity is the direct-lookup key for a single entity under the scope.
func (k Keys) Entity(id string) string {
	return k.prefix() + ":" + id
}

// Page is the key for one page of the unfiltered baseline listing.
func (k Keys) Page(n int) string {
	return fmt.Sprintf("%s:page:%d", k.prefix(), n)
}

// Total is the sibling key holding the unfiltered listing's result count.
func (k Keys) Total() string {
	return k.prefix() + ":total"
}

// Upcoming is the derived shortcut key for upcoming appointments.
func (k Keys) Upcoming() string {
	return k.prefix() + ":upcoming"
}

// Prescription is the key for the medication plan attached to an
// appointment scope.
func (k Keys) Prescription() string {
	return k.prefix() + ":prescription"
}

// Names is the shortcut key for the collection's distinct display names.
func (k Keys) Names() string {
	return k.prefix() + ":names"
}

// Locations is the shortcut key for the collection's distinct cities.
func (k Keys) Locations() string {
	return k.prefix() + ":locations"
}

// PagePattern matches every cached page under the scope.
func (k Keys) PagePattern() string {
	return k.prefix() + ":page:*"
}
