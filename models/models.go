package models

import (
	"time"

	"github.com/google/uuid"
)

// Appointment represents a row in the appointments table.
type Appointment struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patient_id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	SerialNumber    int       `json:"serial_number"`
	Mode            string    `json:"mode"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	AppointmentDate time.Time `json:"appointment_date"`
	AppointmentTime string    `json:"appointment_time"`
	TestName        string    `json:"test_name"`
	ReferredBy      string    `json:"referred_by"`
	PurposeOfVisit  []string  `json:"purpose_of_visit"`
	PatientNote     string    `json:"patient_note"`
	DoctorNote      string    `json:"doctor_note"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// joined display fields
	DoctorName      string `json:"-"`
	HospitalID      uuid.UUID
	HospitalName    string
	HospitalAddress string
}

// HealthRecord represents a row in the health_records table.
type HealthRecord struct {
	ID                      uuid.UUID `json:"id"`
	PatientID               uuid.UUID `json:"patient_id"`
	Weight                  *float64  `json:"weight"`
	Height                  *float64  `json:"height"`
	BloodGroup              *string   `json:"blood_group"`
	SmokingStatus           *string   `json:"smoking_status"`
	PhysicalActivity        *string   `json:"physical_activity"`
	PreviousDiabetesRecords []string  `json:"previous_diabetes_records"`
	BloodPressureRecords    []byte    `json:"blood_pressure_records"`
	BloodGlucoseRecords     []byte    `json:"blood_glucose_records"`
	BodyTemperature         *float64  `json:"body_temperature"`
	BloodOxygen             *float64  `json:"blood_oxygen"`
	BMI                     *float64  `json:"bmi"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// Medication represents a row in the medications table.
type Medication struct {
	ID                     uuid.UUID  `json:"id"`
	PatientID              uuid.UUID  `json:"patient_id"`
	DoctorID               *uuid.UUID `json:"doctor_id"`
	AppointmentID          *uuid.UUID `json:"appointment_id"`
	PrimaryGoals           string     `json:"primary_goals"`
	Medications            []byte     `json:"medications"`
	Dietary                []byte     `json:"dietary"`
	Nutritions             []byte     `json:"nutritions"`
	EnergyGoal             *float64   `json:"energy_goal"`
	BMIGoal                *float64   `json:"bmi_goal"`
	Hydration              *string    `json:"hydration"`
	Sleep                  *string    `json:"sleep"`
	Exercises              []byte     `json:"exercises"`
	Monitoring             []byte     `json:"monitoring"`
	Expiry                 *float64   `json:"expiry"`
	Allergies              []string   `json:"allergies"`
	RecommendedIngredients []string   `json:"recommended_ingredients"`
	PreferredCuisine       *string    `json:"preferred_cuisine"`
	GeneratedBy            string     `json:"generated_by"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// Hospital represents a row in the hospitals table.
type Hospital struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	City           string    `json:"city"`
	ImgSrc         string    `json:"img_src"`
	Description    string    `json:"description"`
	Emails         []string  `json:"emails"`
	ContactNumbers []string  `json:"contact_numbers"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Doctor joins the doctors row with its users row and the hospital display
// fields, the shape the public browsing endpoints serve from.
type Doctor struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Gender          string    `json:"gender"`
	ImgSrc          string    `json:"img_src"`
	Description     string    `json:"description"`
	AvailableTimes  string    `json:"available_times"`
	Experience      int       `json:"experience"`
	Emails          []string  `json:"emails"`
	ContactNumbers  []string  `json:"contact_numbers"`
	HospitalID      uuid.UUID `json:"hospital_id"`
	HospitalName    string    `json:"-"`
	HospitalCity    string    `json:"-"`
	HospitalAddress string    `json:"-"`
}

// Meal represents a row in the meals table.
type Meal struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Ingredients []string  `json:"ingredients"`
	Time        string    `json:"time"`
	Calories    float64   `json:"calories"`
	Protein     float64   `json:"protein"`
	Fat         float64   `json:"fat"`
	Carbs       float64   `json:"carbs"`
	Blog        string    `json:"blog"`
	ImgSrc      string    `json:"img_src"`
	CookingType string    `json:"cooking_type"`
	Cuisine     string    `json:"cuisine"`
}

// User represents a row in the users table.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Gender    string    `json:"gender"`
	ImgSrc    string    `json:"img_src"`
	Address   string    `json:"address"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message represents a chat message document in MongoDB. Messages are
// append-only: created on send, never mutated, never deleted. The id fields
// hold the url-safe encoded form so documents and API payloads share one
// representation.
type Message struct {
	ID         string    `bson:"_id" json:"id"`
	SenderID   string    `bson:"sender_id" json:"sender_id"`
	ReceiverID string    `bson:"receiver_id,omitempty" json:"receiver_id,omitempty"`
	Type       string    `bson:"type" json:"type"` // help, direct or reply
	Content    string    `bson:"content" json:"content"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}
