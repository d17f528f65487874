package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/firedev99/glucoguide-backend/cache"
	"github.com/firedev99/glucoguide-backend/config"
	"github.com/firedev99/glucoguide-backend/models"
	"github.com/firedev99/glucoguide-backend/registry"
	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type HealthHandler struct {
	config   *config.Config
	cache    *cache.Cache
	logger   *zap.Logger
	pgPool   *pgxpool.Pool
	registry *registry.Registry
}

func NewHealthHandler(cfg *config.Config, c *cache.Cache, logger *zap.Logger, pgPool *pgxpool.Pool, reg *registry.Registry) *HealthHandler {
	return &HealthHandler{
		config:   cfg,
		cache:    c,
		logger:   logger,
		pgPool:   pgPool,
		registry: reg,
	}
}

// HealthRecordRequest carries the optional fields used for both creating and
// partially updating a health record.
type HealthRecordRequest struct {
	Weight                  *float64        `json:"weight"`
	Height                  *float64        `json:"height"`
	BloodGroup              *string         `json:"blood_group"`
	SmokingStatus           *string         `json:"smoking_status"`
	PhysicalActivity        *string         `json:"physical_activity"`
	PreviousDiabetesRecords []string        `json:"previous_diabetes_records"`
	BloodPressureRecords    json.RawMessage `json:"blood_pressure_records"`
	BloodGlucoseRecords     json.RawMessage `json:"blood_glucose_records"`
	BodyTemperature         *float64        `json:"body_temperature"`
	BloodOxygen             *float64        `json:"blood_oxygen"`
}

func (r HealthRecordRequest) isEmpty() bool {
	return r.Weight == nil && r.Height == nil && r.BloodGroup == nil &&
		r.SmokingStatus == nil && r.PhysicalActivity == nil &&
		r.PreviousDiabetesRecords == nil && r.BloodPressureRecords == nil &&
		r.BloodGlucoseRecords == nil && r.BodyTemperature == nil && r.BloodOxygen == nil
}

const healthRecordSelect = `
	SELECT id, patient_id, weight, height, blood_group, smoking_status,
	       physical_activity, COALESCE(previous_diabetes_records, '[]'::jsonb),
	       COALESCE(blood_pressure_records, '[]'::jsonb),
	       COALESCE(blood_glucose_records, '[]'::jsonb),
	       body_temperature, blood_oxygen, bmi
	FROM health_records`

func scanHealthRecord(row pgx.Row) (models.HealthRecord, error) {
	var rec models.HealthRecord
	var diabetesRaw []byte
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.Weight, &rec.Height,
		&rec.BloodGroup, &rec.SmokingStatus, &rec.PhysicalActivity,
		&diabetesRaw, &rec.BloodPressureRecords, &rec.BloodGlucoseRecords,
		&rec.BodyTemperature, &rec.BloodOxygen, &rec.BMI)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(diabetesRaw, &rec.PreviousDiabetesRecords); err != nil {
		return rec, errors.Wrap(err, "malformed previous_diabetes_records column")
	}
	return rec, nil
}

func healthRecordData(rec models.HealthRecord) models.HealthRecordData {
	data := models.HealthRecordData{
		ID:                      utils.EncodeID(rec.ID),
		Weight:                  rec.Weight,
		Height:                  rec.Height,
		BloodGroup:              rec.BloodGroup,
		SmokingStatus:           rec.SmokingStatus,
		PhysicalActivity:        rec.PhysicalActivity,
		PreviousDiabetesRecords: rec.PreviousDiabetesRecords,
		BodyTemperature:         rec.BodyTemperature,
		BloodOxygen:             rec.BloodOxygen,
		BMI:                     rec.BMI,
	}
	// jsonb columns pass through as decoded JSON, not raw bytes
	data.BloodPressureRecords = decodeJSONB(rec.BloodPressureRecords)
	data.BloodGlucoseRecords = decodeJSONB(rec.BloodGlucoseRecords)
	return data
}

// GetHealthRecord returns the session patient's health record, cache-aside
// under the patient's monitoring key. A patient without a record yet gets an
// empty response instead of an error.
func (h *HealthHandler) GetHealthRecord(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.PatientMonitorings, utils.EncodeID(userID))

	data, err := cache.GetOrPopulate(ctx, h.cache, ks.Root(), false,
		func(ctx context.Context) (models.HealthRecordData, error) {
			row := h.pgPool.QueryRow(ctx, healthRecordSelect+" WHERE patient_id = $1", userID)
			rec, err := scanHealthRecord(row)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.HealthRecordData{}, errNotFound
				}
				return models.HealthRecordData{}, err
			}
			return healthRecordData(rec), nil
		})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return fetchSuccessful(c, "No health record found", []any{})
		}
		h.logger.Error("failed to retrieve health record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve health record",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved health record", data)
}

// CreateHealthRecord creates the session patient's health record, refreshes
// the monitoring cache key and pushes the fresh payload into the patient's
// monitoring room.
func (h *HealthHandler) CreateHealthRecord(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req HealthRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.isEmpty() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No field was provided while creating health record",
		})
	}

	var bmi *float64
	if req.Weight != nil && req.Height != nil {
		v := utils.CalculateBMI(*req.Weight, *req.Height)
		bmi = &v
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	recordID := uuid.New()
	_, err = h.pgPool.Exec(ctx, `
		INSERT INTO health_records
			(id, patient_id, weight, height, blood_group, smoking_status,
			 physical_activity, previous_diabetes_records, blood_pressure_records,
			 blood_glucose_records, body_temperature, blood_oxygen, bmi)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		recordID, userID, req.Weight, req.Height, req.BloodGroup,
		req.SmokingStatus, req.PhysicalActivity, marshalOrNil(req.PreviousDiabetesRecords),
		rawOrNil(req.BloodPressureRecords), rawOrNil(req.BloodGlucoseRecords),
		req.BodyTemperature, req.BloodOxygen, bmi)
	if err != nil {
		h.logger.Error("failed to create health record",
			zap.String("patientID", utils.EncodeID(userID)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create health record",
		})
	}

	data, err := h.refreshAndNotify(ctx, userID, recordID)
	if err != nil {
		h.logger.Error("failed to reload created health record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create health record",
		})
	}

	return createSuccessful(c, "Successfully created health record", data)
}

// UpdateHealthRecordByID partially updates a health record, recomputing BMI
// when possible, then refreshes the cache and notifies the monitoring room.
func (h *HealthHandler) UpdateHealthRecordByID(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	recordID, err := utils.DecodeID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid health record id"})
	}

	var req HealthRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.isEmpty() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No field was provided while updating health record",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	var ownerID uuid.UUID
	var currentWeight, currentHeight *float64
	err = h.pgPool.QueryRow(ctx,
		"SELECT patient_id, weight, height FROM health_records WHERE id = $1", recordID).
		Scan(&ownerID, &currentWeight, &currentHeight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Patient health record not found",
			})
		}
		h.logger.Error("failed to load health record for update", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update health record"})
	}
	if ownerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not allowed to modify this health record",
		})
	}

	// Recompute BMI whenever both sides are known, mixing new values with
	// whatever the record already holds.
	var bmi *float64
	switch {
	case req.Weight != nil && req.Height != nil:
		v := utils.CalculateBMI(*req.Weight, *req.Height)
		bmi = &v
	case req.Weight != nil && currentHeight != nil:
		v := utils.CalculateBMI(*req.Weight, *currentHeight)
		bmi = &v
	case req.Height != nil && currentWeight != nil:
		v := utils.CalculateBMI(*currentWeight, *req.Height)
		bmi = &v
	}

	set, args := buildHealthRecordUpdate(req, bmi, recordID)
	if _, err := h.pgPool.Exec(ctx,
		"UPDATE health_records SET "+set+" WHERE id = $1", args...); err != nil {
		h.logger.Error("failed to update health record",
			zap.String("recordID", c.Params("id")),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update health record",
		})
	}

	data, err := h.refreshAndNotify(ctx, userID, recordID)
	if err != nil {
		h.logger.Error("failed to reload updated health record", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update health record",
		})
	}

	return fetchSuccessful(c, "Successfully updated health record", data)
}

// refreshAndNotify reloads the record's fresh shape, rewrites the monitoring
// cache key and fans the payload out to the patient's monitoring room so
// open connections see the update without re-polling.
func (h *HealthHandler) refreshAndNotify(ctx context.Context, patientID, recordID uuid.UUID) (models.HealthRecordData, error) {
	row := h.pgPool.QueryRow(ctx, healthRecordSelect+" WHERE id = $1", recordID)
	rec, err := scanHealthRecord(row)
	if err != nil {
		return models.HealthRecordData{}, err
	}
	data := healthRecordData(rec)

	ks := cache.NewKeys(cache.PatientMonitorings, utils.EncodeID(patientID))
	if err := h.cache.SetJSON(ctx, ks.Root(), data); err != nil {
		h.logger.Warn("failed to refresh monitoring cache",
			zap.String("key", ks.Root()),
			zap.Error(err))
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return data, err
	}
	h.registry.BroadcastToRoom(utils.MonitoringRoom(patientID), payload)

	return data, nil
}

func buildHealthRecordUpdate(req HealthRecordRequest, bmi *float64, id uuid.UUID) (string, []any) {
	clauses := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.Weight != nil {
		add("weight", *req.Weight)
	}
	if req.Height != nil {
		add("height", *req.Height)
	}
	if req.BloodGroup != nil {
		add("blood_group", *req.BloodGroup)
	}
	if req.SmokingStatus != nil {
		add("smoking_status", *req.SmokingStatus)
	}
	if req.PhysicalActivity != nil {
		add("physical_activity", *req.PhysicalActivity)
	}
	if req.PreviousDiabetesRecords != nil {
		add("previous_diabetes_records", marshalOrNil(req.PreviousDiabetesRecords))
	}
	if req.BloodPressureRecords != nil {
		add("blood_pressure_records", []byte(req.BloodPressureRecords))
	}
	if req.BloodGlucoseRecords != nil {
		add("blood_glucose_records", []byte(req.BloodGlucoseRecords))
	}
	if req.BodyTemperature != nil {
		add("body_temperature", *req.BodyTemperature)
	}
	if req.BloodOxygen != nil {
		add("blood_oxygen", *req.BloodOxygen)
	}
	if bmi != nil {
		add("bmi", *bmi)
	}

	return strings.Join(clauses, ", "), args
}

func marshalOrNil(values []string) any {
	if values == nil {
		return nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	return data
}

func rawOrNil(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	return []byte(raw)
}
