package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func TestBuildAppointmentUpdateNumbersPlaceholders(t *testing.T) {
	id := uuid.New()
	req := AppointmentUpdateRequest{
		Status:          strPtr("cancelled"),
		AppointmentDate: strPtr("2026-09-15"),
		PatientNote:     strPtr("running late"),
	}

	set, args, err := buildAppointmentUpdate(req, id)
	require.NoError(t, err)

	assert.Equal(t,
		"updated_at = NOW(), status = $2, appointment_date = $3, patient_note = $4",
		set)
	require.Len(t, args, 4)
	assert.Equal(t, id, args[0])
	assert.Equal(t, "cancelled", args[1])
}

func TestBuildAppointmentUpdateRejectsBadDate(t *testing.T) {
	req := AppointmentUpdateRequest{AppointmentDate: strPtr("15/09/2026")}

	_, _, err := buildAppointmentUpdate(req, uuid.New())
	assert.Error(t, err)
}

func TestBuildHealthRecordUpdateIncludesRecomputedBMI(t *testing.T) {
	id := uuid.New()
	req := HealthRecordRequest{
		Weight: floatPtr(72),
		Height: floatPtr(5.8),
	}
	bmi := floatPtr(23.05)

	set, args := buildHealthRecordUpdate(req, bmi, id)

	assert.Equal(t,
		"updated_at = NOW(), weight = $2, height = $3, bmi = $4",
		set)
	require.Len(t, args, 4)
	assert.Equal(t, 23.05, args[3])
}

func TestHealthRecordRequestEmptiness(t *testing.T) {
	assert.True(t, HealthRecordRequest{}.isEmpty())
	assert.False(t, HealthRecordRequest{Weight: floatPtr(70)}.isEmpty())
	assert.False(t, HealthRecordRequest{PreviousDiabetesRecords: []string{}}.isEmpty())
}

func TestBuildMedicationUpdateSkipsAbsentFields(t *testing.T) {
	id := uuid.New()
	req := MedicationUpdateRequest{
		Hydration: strPtr("8 glasses of water"),
		Allergies: []string{"peanuts"},
	}

	set, args := buildMedicationUpdate(req, id)

	assert.Equal(t, "updated_at = NOW(), hydration = $2, allergies = $3", set)
	require.Len(t, args, 3)
	assert.JSONEq(t, `["peanuts"]`, string(args[2].([]byte)))
}

func TestSuggestionPlansCoverEveryAgeGroup(t *testing.T) {
	for _, group := range []string{"child", "teen", "adult", "middle_aged", "senior"} {
		plan, ok := suggestionPlans[group]
		require.True(t, ok, "missing plan for %s", group)
		assert.NotEmpty(t, plan.Medications, group)
		assert.NotEmpty(t, plan.Dietary, group)
		assert.NotEmpty(t, plan.Monitoring, group)
		assert.Positive(t, plan.EnergyGoal, group)
		assert.Positive(t, plan.BMIGoal, group)
	}
	assert.NotEmpty(t, generalExercises)
}

func TestDoctorFilterSQLJoinsCriteriaWithOR(t *testing.T) {
	where, args := doctorFilterSQL("rahman", []string{"City Hospital"}, []string{"Dhaka"}, 5)

	assert.Equal(t,
		" WHERE u.name ILIKE $1 OR d.experience >= $2 OR h.name = ANY($3) OR h.city = ANY($4)",
		where)
	require.Len(t, args, 4)
	assert.Equal(t, "%rahman%", args[0])
	assert.Equal(t, 5, args[1])
}

func TestDoctorFilterSQLEmptyWithoutCriteria(t *testing.T) {
	where, args := doctorFilterSQL("", nil, nil, 0)

	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestDoctorFilterSQLNumbersSparseCriteria(t *testing.T) {
	where, args := doctorFilterSQL("", nil, []string{"Sylhet", "Khulna"}, 0)

	assert.Equal(t, " WHERE h.city = ANY($1)", where)
	require.Len(t, args, 1)
	assert.Equal(t, []string{"Sylhet", "Khulna"}, args[0])
}

func TestCommaListTrimsAndDropsEmptyValues(t *testing.T) {
	assert.Equal(t, []string{"Dhaka", "Sylhet"}, commaList(" Dhaka , Sylhet ,, "))
	assert.Nil(t, commaList(""))
	assert.Nil(t, commaList(" , "))
}

func TestBuildProfileUpdateNumbersPlaceholders(t *testing.T) {
	id := uuid.New()
	req := ProfileUpdateRequest{
		Name:    strPtr("Anika Rahman"),
		Address: strPtr("12/4 Mirpur Road"),
	}

	set, args := buildProfileUpdate(req, id)

	assert.Equal(t, "updated_at = NOW(), name = $2, address = $3", set)
	require.Len(t, args, 3)
	assert.Equal(t, id, args[0])
	assert.Equal(t, "Anika Rahman", args[1])
}

func TestProfileUpdateRequestEmptiness(t *testing.T) {
	assert.True(t, ProfileUpdateRequest{}.isEmpty())
	assert.False(t, ProfileUpdateRequest{Gender: strPtr("female")}.isEmpty())
}
