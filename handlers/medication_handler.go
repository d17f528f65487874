package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/firedev99/glucoguide-backend/cache"
	"github.com/firedev99/glucoguide-backend/config"
	"github.com/firedev99/glucoguide-backend/models"
	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type MedicationHandler struct {
	config *config.Config
	cache  *cache.Cache
	logger *zap.Logger
	pgPool *pgxpool.Pool
}

func NewMedicationHandler(cfg *config.Config, c *cache.Cache, logger *zap.Logger, pgPool *pgxpool.Pool) *MedicationHandler {
	return &MedicationHandler{
		config: cfg,
		cache:  c,
		logger: logger,
		pgPool: pgPool,
	}
}

type GenerateMedicationRequest struct {
	Age int `json:"age"`
}

// MedicationUpdateRequest carries the optional fields of a medication plan
// partial update.
type MedicationUpdateRequest struct {
	PrimaryGoals           *string         `json:"primary_goals"`
	Medications            json.RawMessage `json:"medications"`
	Dietary                json.RawMessage `json:"dietary"`
	Nutritions             json.RawMessage `json:"nutritions"`
	EnergyGoal             *float64        `json:"energy_goal"`
	BMIGoal                *float64        `json:"bmi_goal"`
	Hydration              *string         `json:"hydration"`
	Sleep                  *string         `json:"sleep"`
	Exercises              json.RawMessage `json:"exercises"`
	Monitoring             json.RawMessage `json:"monitoring"`
	Allergies              []string        `json:"allergies"`
	RecommendedIngredients []string        `json:"recommended_ingredients"`
	PreferredCuisine       *string         `json:"preferred_cuisine"`
}

func (r MedicationUpdateRequest) isEmpty() bool {
	return r.PrimaryGoals == nil && r.Medications == nil && r.Dietary == nil &&
		r.Nutritions == nil && r.EnergyGoal == nil && r.BMIGoal == nil &&
		r.Hydration == nil && r.Sleep == nil && r.Exercises == nil &&
		r.Monitoring == nil && r.Allergies == nil &&
		r.RecommendedIngredients == nil && r.PreferredCuisine == nil
}

const medicationSelect = `
	SELECT id, patient_id, doctor_id, appointment_id, primary_goals,
	       COALESCE(medications, '[]'::jsonb), COALESCE(dietary, '[]'::jsonb),
	       COALESCE(nutritions, '{}'::jsonb), energy_goal, bmi_goal,
	       hydration, sleep, COALESCE(exercises, '[]'::jsonb),
	       COALESCE(monitoring, '[]'::jsonb), expiry,
	       COALESCE(allergies, '[]'::jsonb),
	       COALESCE(recommended_ingredients, '[]'::jsonb),
	       preferred_cuisine, generated_by, created_at
	FROM medications`

func scanMedication(row pgx.Row) (models.Medication, error) {
	var m models.Medication
	var allergiesRaw, ingredientsRaw []byte
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.AppointmentID,
		&m.PrimaryGoals, &m.Medications, &m.Dietary, &m.Nutritions,
		&m.EnergyGoal, &m.BMIGoal, &m.Hydration, &m.Sleep, &m.Exercises,
		&m.Monitoring, &m.Expiry, &allergiesRaw, &ingredientsRaw,
		&m.PreferredCuisine, &m.GeneratedBy, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(allergiesRaw, &m.Allergies); err != nil {
		return m, errors.Wrap(err, "malformed allergies column")
	}
	if err := json.Unmarshal(ingredientsRaw, &m.RecommendedIngredients); err != nil {
		return m, errors.Wrap(err, "malformed recommended_ingredients column")
	}
	return m, nil
}

func medicationData(m models.Medication) models.MedicationData {
	data := models.MedicationData{
		ID:                     utils.EncodeID(m.ID),
		PrimaryGoals:           m.PrimaryGoals,
		EnergyGoal:             m.EnergyGoal,
		BMIGoal:                m.BMIGoal,
		Hydration:              m.Hydration,
		Sleep:                  m.Sleep,
		Allergies:              m.Allergies,
		RecommendedIngredients: m.RecommendedIngredients,
		PreferredCuisine:       m.PreferredCuisine,
		GeneratedBy:            m.GeneratedBy,
	}

	data.Medications = decodeJSONB(m.Medications)
	data.Dietary = decodeJSONB(m.Dietary)
	data.Nutritions = decodeJSONB(m.Nutritions)
	data.Exercises = decodeJSONB(m.Exercises)
	data.Monitoring = decodeJSONB(m.Monitoring)

	// expiry is served as days remaining, counted from creation
	planDays := 30.0
	if m.Expiry != nil {
		planDays = *m.Expiry
	}
	deadline := m.CreatedAt.Add(time.Duration(planDays*24) * time.Hour)
	remaining := math.Ceil(time.Until(deadline).Hours() / 24)
	if remaining < 0 {
		remaining = 0
	}
	data.Expiry = &remaining

	return data
}

// GetPatientMedications returns the session patient's medication plan,
// cache-aside under the patient's singleton medication key.
func (h *MedicationHandler) GetPatientMedications(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.PatientMedications, utils.EncodeID(userID))

	data, err := cache.GetOrPopulate(ctx, h.cache, ks.Root(), false,
		func(ctx context.Context) (models.MedicationData, error) {
			row := h.pgPool.QueryRow(ctx,
				medicationSelect+" WHERE patient_id = $1 ORDER BY updated_at DESC LIMIT 1", userID)
			m, err := scanMedication(row)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.MedicationData{}, errNotFound
				}
				return models.MedicationData{}, err
			}
			return medicationData(m), nil
		})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return fetchSuccessful(c, "No medication record found", []any{})
		}
		h.logger.Error("failed to retrieve patient medications", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve medications",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved medications", data)
}

// GetAppointmentPrescription returns the medication plan a doctor attached
// to one appointment, cache-aside under the appointment's prescription key.
func (h *MedicationHandler) GetAppointmentPrescription(c *fiber.Ctx) error {
	appointmentID, err := utils.DecodeID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.PatientAppointments, c.Params("id"))

	data, err := cache.GetOrPopulate(ctx, h.cache, ks.Prescription(), false,
		func(ctx context.Context) (models.MedicationData, error) {
			row := h.pgPool.QueryRow(ctx,
				medicationSelect+" WHERE appointment_id = $1", appointmentID)
			m, err := scanMedication(row)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.MedicationData{}, errNotFound
				}
				return models.MedicationData{}, err
			}
			return medicationData(m), nil
		})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return fetchSuccessful(c, "No prescription found for this appointment", []any{})
		}
		h.logger.Error("failed to retrieve appointment prescription",
			zap.String("appointmentID", c.Params("id")),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve prescription",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved prescription", data)
}

// GenerateMedications builds a general-purpose suggestion plan for the
// session patient's age group and stores it as their medication record.
func (h *MedicationHandler) GenerateMedications(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req GenerateMedicationRequest
	if err := c.BodyParser(&req); err != nil || req.Age <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A valid age is required"})
	}

	plan := suggestionPlans[utils.AgeGroup(req.Age)]

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	medicationID := uuid.New()
	_, err = h.pgPool.Exec(ctx, `
		INSERT INTO medications
			(id, patient_id, primary_goals, medications, dietary, nutritions,
			 energy_goal, bmi_goal, hydration, sleep, exercises, monitoring,
			 expiry, generated_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'system')`,
		medicationID, userID, "General Purpose",
		mustJSON(plan.Medications), mustJSON(plan.Dietary), mustJSON(plan.Nutritions),
		plan.EnergyGoal, plan.BMIGoal, plan.Hydration, plan.Sleep,
		mustJSON(generalExercises), mustJSON(plan.Monitoring), 30.0)
	if err != nil {
		h.logger.Error("failed to store generated medications",
			zap.String("patientID", utils.EncodeID(userID)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate medications",
		})
	}

	data, err := h.refreshPatientMedications(ctx, userID, medicationID)
	if err != nil {
		h.logger.Error("failed to reload generated medications", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate medications",
		})
	}

	return createSuccessful(c, "Successfully generated medications", data)
}

// UpdateMedications partially updates the session patient's medication plan
// and refreshes the cached copy.
func (h *MedicationHandler) UpdateMedications(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req MedicationUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.isEmpty() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No field was provided while updating medications",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	var medicationID uuid.UUID
	err = h.pgPool.QueryRow(ctx,
		"SELECT id FROM medications WHERE patient_id = $1 ORDER BY updated_at DESC LIMIT 1", userID).
		Scan(&medicationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Patient medication record not found",
			})
		}
		h.logger.Error("failed to load medications for update", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update medications"})
	}

	set, args := buildMedicationUpdate(req, medicationID)
	if _, err := h.pgPool.Exec(ctx,
		"UPDATE medications SET "+set+" WHERE id = $1", args...); err != nil {
		h.logger.Error("failed to update medications",
			zap.String("patientID", utils.EncodeID(userID)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update medications",
		})
	}

	data, err := h.refreshPatientMedications(ctx, userID, medicationID)
	if err != nil {
		h.logger.Error("failed to reload updated medications", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update medications",
		})
	}

	return fetchSuccessful(c, "Successfully updated medications", data)
}

// refreshPatientMedications reloads the record and rewrites the patient's
// singleton medication key with the fresh shape.
func (h *MedicationHandler) refreshPatientMedications(ctx context.Context, patientID, medicationID uuid.UUID) (models.MedicationData, error) {
	row := h.pgPool.QueryRow(ctx, medicationSelect+" WHERE id = $1", medicationID)
	m, err := scanMedication(row)
	if err != nil {
		return models.MedicationData{}, err
	}
	data := medicationData(m)

	ks := cache.NewKeys(cache.PatientMedications, utils.EncodeID(patientID))
	if err := h.cache.SetJSON(ctx, ks.Root(), data); err != nil {
		h.logger.Warn("failed to refresh medication cache",
			zap.String("key", ks.Root()),
			zap.Error(err))
	}

	return data, nil
}

func buildMedicationUpdate(req MedicationUpdateRequest, id uuid.UUID) (string, []any) {
	clauses := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.PrimaryGoals != nil {
		add("primary_goals", *req.PrimaryGoals)
	}
	if req.Medications != nil {
		add("medications", []byte(req.Medications))
	}
	if req.Dietary != nil {
		add("dietary", []byte(req.Dietary))
	}
	if req.Nutritions != nil {
		add("nutritions", []byte(req.Nutritions))
	}
	if req.EnergyGoal != nil {
		add("energy_goal", *req.EnergyGoal)
	}
	if req.BMIGoal != nil {
		add("bmi_goal", *req.BMIGoal)
	}
	if req.Hydration != nil {
		add("hydration", *req.Hydration)
	}
	if req.Sleep != nil {
		add("sleep", *req.Sleep)
	}
	if req.Exercises != nil {
		add("exercises", []byte(req.Exercises))
	}
	if req.Monitoring != nil {
		add("monitoring", []byte(req.Monitoring))
	}
	if req.Allergies != nil {
		add("allergies", marshalOrNil(req.Allergies))
	}
	if req.RecommendedIngredients != nil {
		add("recommended_ingredients", marshalOrNil(req.RecommendedIngredients))
	}
	if req.PreferredCuisine != nil {
		add("preferred_cuisine", *req.PreferredCuisine)
	}

	return strings.Join(clauses, ", "), args
}

func decodeJSONB(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return decoded
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
