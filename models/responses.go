package models

// Response shapes returned to clients and stored in the cache. Database UUIDs
// never leave the backend raw; every id field carries the URL-safe encoded
// form (see utils.EncodeID).

type DoctorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PatientRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DoctorAppointmentData is the appointment shape served to doctors: the
// consulting patient replaces the doctor/hospital display fields.
type DoctorAppointmentData struct {
	ID              string     `json:"id"`
	SerialNumber    int        `json:"serial_number"`
	Mode            string     `json:"mode"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	AppointmentDate string     `json:"appointment_date"`
	AppointmentTime string     `json:"appointment_time"`
	PurposeOfVisit  []string   `json:"purpose_of_visit"`
	TestName        string     `json:"test_name"`
	Patient         PatientRef `json:"patient"`
	PatientNote     string     `json:"patient_note"`
	DoctorNote      string     `json:"doctor_note"`
}

type HospitalRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// DoctorHospitalRef carries the hospital display fields embedded in a
// doctor's public shape.
type DoctorHospitalRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	City    string `json:"city"`
	Address string `json:"address"`
}

type DoctorData struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Gender         string            `json:"gender"`
	ImgSrc         string            `json:"img_src"`
	Description    string            `json:"description"`
	AvailableTimes string            `json:"available_times"`
	Experience     int               `json:"experience"`
	Emails         []string          `json:"emails"`
	ContactNumbers []string          `json:"contact_numbers"`
	Hospital       DoctorHospitalRef `json:"hospital"`
}

type AppointmentData struct {
	ID              string      `json:"id"`
	SerialNumber    int         `json:"serial_number"`
	Mode            string      `json:"mode"`
	Type            string      `json:"type"`
	Status          string      `json:"status"`
	AppointmentDate string      `json:"appointment_date"`
	AppointmentTime string      `json:"appointment_time"`
	PurposeOfVisit  []string    `json:"purpose_of_visit"`
	TestName        string      `json:"test_name"`
	ReferredBy      string      `json:"referred_by"`
	Doctor          DoctorRef   `json:"doctor"`
	Hospital        HospitalRef `json:"hospital"`
	PatientNote     string      `json:"patient_note"`
	DoctorNote      string      `json:"doctor_note"`
}

type HealthRecordData struct {
	ID                      string   `json:"id"`
	Weight                  *float64 `json:"weight"`
	Height                  *float64 `json:"height"`
	BloodGroup              *string  `json:"blood_group"`
	SmokingStatus           *string  `json:"smoking_status"`
	PhysicalActivity        *string  `json:"physical_activity"`
	PreviousDiabetesRecords []string `json:"previous_diabetes_records"`
	BloodPressureRecords    any      `json:"blood_pressure_records"`
	BloodGlucoseRecords     any      `json:"blood_glucose_records"`
	BodyTemperature         *float64 `json:"body_temperature"`
	BloodOxygen             *float64 `json:"blood_oxygen"`
	BMI                     *float64 `json:"bmi"`
}

type MedicationData struct {
	ID                     string   `json:"id"`
	PrimaryGoals           string   `json:"primary_goals"`
	Medications            any      `json:"medications"`
	Dietary                any      `json:"dietary"`
	Nutritions             any      `json:"nutritions"`
	EnergyGoal             *float64 `json:"energy_goal"`
	BMIGoal                *float64 `json:"bmi_goal"`
	Hydration              *string  `json:"hydration"`
	Sleep                  *string  `json:"sleep"`
	Exercises              any      `json:"exercises"`
	Monitoring             any      `json:"monitoring"`
	Expiry                 *float64 `json:"expiry"`
	Allergies              []string `json:"allergies"`
	RecommendedIngredients []string `json:"recommended_ingredients"`
	PreferredCuisine       *string  `json:"preferred_cuisine"`
	GeneratedBy            string   `json:"generated_by"`
}

type HospitalData struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Address        string   `json:"address"`
	City           string   `json:"city"`
	ImgSrc         string   `json:"img_src"`
	Description    string   `json:"description"`
	Emails         []string `json:"emails"`
	ContactNumbers []string `json:"contact_numbers"`
}

type MealData struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Time        string   `json:"time"`
	Calories    float64  `json:"calories"`
	Protein     float64  `json:"protein"`
	Fat         float64  `json:"fat"`
	Carbs       float64  `json:"carbs"`
	Blog        string   `json:"blog"`
	ImgSrc      string   `json:"img_src"`
	CookingType string   `json:"cooking_type"`
	Cuisine     string   `json:"cuisine"`
}

type MessageData struct {
	ID         string `json:"id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Type       string `json:"type"`
	Content    string `json:"content"`
	CreatedAt  string `json:"created_at"`
}

type UserData struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Name    string `json:"name"`
	Gender  string `json:"gender"`
	ImgSrc  string `json:"img_src"`
	Address string `json:"address"`
}
