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
	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Statuses in which an appointment can no longer be modified.
var terminalStatuses = map[string]bool{
	"completed": true,
	"missed":    true,
	"cancelled": true,
}

type AppointmentHandler struct {
	config *config.Config
	cache  *cache.Cache
	logger *zap.Logger
	pgPool *pgxpool.Pool
}

func NewAppointmentHandler(cfg *config.Config, c *cache.Cache, logger *zap.Logger, pgPool *pgxpool.Pool) *AppointmentHandler {
	return &AppointmentHandler{
		config: cfg,
		cache:  c,
		logger: logger,
		pgPool: pgPool,
	}
}

// AppointmentCreateRequest is the payload for booking a new appointment.
type AppointmentCreateRequest struct {
	DoctorID        string   `json:"doctor_id"`
	Mode            string   `json:"mode"`
	Type            string   `json:"type"`
	AppointmentDate string   `json:"appointment_date"`
	AppointmentTime string   `json:"appointment_time"`
	TestName        string   `json:"test_name"`
	PatientNote     string   `json:"patient_note"`
	PurposeOfVisit  []string `json:"purpose_of_visit"`
	ReferredBy      string   `json:"referred_by"`
}

// AppointmentUpdateRequest carries the optional fields of a partial update.
type AppointmentUpdateRequest struct {
	Mode            *string  `json:"mode"`
	Type            *string  `json:"type"`
	Status          *string  `json:"status"`
	AppointmentDate *string  `json:"appointment_date"`
	AppointmentTime *string  `json:"appointment_time"`
	TestName        *string  `json:"test_name"`
	PatientNote     *string  `json:"patient_note"`
	PurposeOfVisit  []string `json:"purpose_of_visit"`
}

func (r AppointmentUpdateRequest) isEmpty() bool {
	return r.Mode == nil && r.Type == nil && r.Status == nil &&
		r.AppointmentDate == nil && r.AppointmentTime == nil &&
		r.TestName == nil && r.PatientNote == nil && r.PurposeOfVisit == nil
}

const appointmentSelect = `
	SELECT a.id, a.patient_id, a.doctor_id, a.serial_number, a.mode, a.type,
	       a.status, a.appointment_date, a.appointment_time,
	       COALESCE(a.test_name, ''), COALESCE(a.referred_by, ''),
	       COALESCE(a.purpose_of_visit, '[]'::jsonb),
	       COALESCE(a.patient_note, ''), COALESCE(a.doctor_note, ''),
	       d.name, h.id, h.name, h.address
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	JOIN hospitals h ON h.id = d.hospital_id`

func scanAppointment(row pgx.Row) (models.Appointment, error) {
	var a models.Appointment
	var purposeRaw []byte
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.SerialNumber, &a.Mode,
		&a.Type, &a.Status, &a.AppointmentDate, &a.AppointmentTime,
		&a.TestName, &a.ReferredBy, &purposeRaw, &a.PatientNote, &a.DoctorNote,
		&a.DoctorName, &a.HospitalID, &a.HospitalName, &a.HospitalAddress)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(purposeRaw, &a.PurposeOfVisit); err != nil {
		return a, errors.Wrap(err, "malformed purpose_of_visit column")
	}
	return a, nil
}

// appointmentData builds the public response shape with opaque ids and the
// joined doctor/hospital display fields resolved.
func appointmentData(a models.Appointment) models.AppointmentData {
	return models.AppointmentData{
		ID:              utils.EncodeID(a.ID),
		SerialNumber:    a.SerialNumber,
		Mode:            a.Mode,
		Type:            a.Type,
		Status:          a.Status,
		AppointmentDate: a.AppointmentDate.Format(dateLayout),
		AppointmentTime: a.AppointmentTime,
		PurposeOfVisit:  a.PurposeOfVisit,
		TestName:        a.TestName,
		ReferredBy:      a.ReferredBy,
		Doctor: models.DoctorRef{
			ID:   utils.EncodeID(a.DoctorID),
			Name: a.DoctorName,
		},
		Hospital: models.HospitalRef{
			ID:      utils.EncodeID(a.HospitalID),
			Name:    a.HospitalName,
			Address: a.HospitalAddress,
		},
		PatientNote: a.PatientNote,
		DoctorNote:  a.DoctorNote,
	}
}

func (h *AppointmentHandler) loadAppointment(ctx context.Context, id uuid.UUID) (models.Appointment, error) {
	row := h.pgPool.QueryRow(ctx, appointmentSelect+" WHERE a.id = $1", id)
	return scanAppointment(row)
}

// CreateAppointment books a new appointment for the session patient,
// refreshes the appointment's direct-lookup cache key and invalidates every
// listing key under the patient's scope.
func (h *AppointmentHandler) CreateAppointment(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		h.logger.Error("userID not found in context")
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var req AppointmentCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	doctorID, err := utils.DecodeID(req.DoctorID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid doctor id"})
	}

	appointmentDate, err := time.Parse(dateLayout, req.AppointmentDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment date, expected YYYY-MM-DD"})
	}

	if req.AppointmentTime == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Appointment time is required"})
	}
	if req.Mode == "" {
		req.Mode = "in-person"
	}
	if req.Type == "" {
		req.Type = "consultation"
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	appointmentID := uuid.New()
	ks := cache.NewKeys(cache.PatientAppointments, utils.EncodeID(userID))

	data, err := cache.MutateAndInvalidate(ctx, h.cache, ks, utils.EncodeID(appointmentID),
		func(ctx context.Context) (models.AppointmentData, error) {
			purposeJSON, err := json.Marshal(req.PurposeOfVisit)
			if err != nil {
				return models.AppointmentData{}, err
			}

			// next serial number
			var serial int
			err = h.pgPool.QueryRow(ctx,
				"SELECT COALESCE(MAX(serial_number), 0) + 1 FROM appointments").Scan(&serial)
			if err != nil {
				return models.AppointmentData{}, err
			}

			_, err = h.pgPool.Exec(ctx, `
				INSERT INTO appointments
					(id, patient_id, doctor_id, serial_number, mode, type, status,
					 appointment_date, appointment_time, test_name, referred_by,
					 purpose_of_visit, patient_note)
				VALUES ($1, $2, $3, $4, $5, $6, 'requested', $7, $8,
				        NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''))`,
				appointmentID, userID, doctorID, serial, req.Mode, req.Type,
				appointmentDate, req.AppointmentTime, req.TestName, req.ReferredBy,
				purposeJSON, req.PatientNote)
			if err != nil {
				return models.AppointmentData{}, err
			}

			created, err := h.loadAppointment(ctx, appointmentID)
			if err != nil {
				return models.AppointmentData{}, err
			}
			return appointmentData(created), nil
		})
	if err != nil {
		h.logger.Error("failed to create appointment",
			zap.String("patientID", utils.EncodeID(userID)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Something went wrong while creating new appointment",
		})
	}

	h.logger.Info("appointment created",
		zap.String("appointmentID", data.ID),
		zap.Int("serial", data.SerialNumber))

	return createSuccessful(c, "Successfully booked a new appointment", data)
}

// GetAppointmentByID returns a single appointment, serving from the cache
// when possible.
func (h *AppointmentHandler) GetAppointmentByID(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	encodedID := c.Params("id")
	appointmentID, err := utils.DecodeID(encodedID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.PatientAppointments, utils.EncodeID(userID))

	data, err := cache.GetOrPopulate(ctx, h.cache, ks.Entity(encodedID), false,
		func(ctx context.Context) (models.AppointmentData, error) {
			a, err := h.loadAppointment(ctx, appointmentID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.AppointmentData{}, errNotFound
				}
				return models.AppointmentData{}, err
			}
			if a.PatientID != userID {
				return models.AppointmentData{}, errForbidden
			}
			return appointmentData(a), nil
		})
	if err != nil {
		return h.appointmentError(c, err, "Failed to retrieve appointment")
	}

	return fetchSuccessful(c, "Successfully retrieved appointment details", data)
}

// GetUpcomingAppointments serves the derived "upcoming" shortcut view.
func (h *AppointmentHandler) GetUpcomingAppointments(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.PatientAppointments, utils.EncodeID(userID))

	data, err := cache.GetOrPopulate(ctx, h.cache, ks.Upcoming(), false,
		func(ctx context.Context) ([]models.AppointmentData, error) {
			rows, err := h.pgPool.Query(ctx, appointmentSelect+`
				WHERE a.patient_id = $1 AND a.status IN ('upcoming', 'rescheduled')
				ORDER BY a.appointment_date`, userID)
			if err != nil {
				return nil, err
			}
			defer rows.Close()

			appointments := []models.AppointmentData{}
			for rows.Next() {
				a, err := scanAppointment(rows)
				if err != nil {
					return nil, err
				}
				appointments = append(appointments, appointmentData(a))
			}
			return appointments, rows.Err()
		})
	if err != nil {
		h.logger.Error("failed to retrieve upcoming appointments", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve upcoming appointments",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved upcoming appointments", data)
}

// GetAllAppointments returns the paginated listing for the session patient.
// Only the unfiltered baseline view is cached; a free-text search bypasses
// the cache in both directions.
func (h *AppointmentHandler) GetAllAppointments(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}
	q := strings.TrimSpace(c.Query("q"))
	offset := (page - 1) * limit

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.PatientAppointments, utils.EncodeID(userID))

	appointments, total, err := cache.ListOrPopulate(ctx, h.cache, ks, page, q != "",
		func(ctx context.Context) ([]models.AppointmentData, int, error) {
			filters := []string{"a.patient_id = $1"}
			args := []any{userID}
			if q != "" {
				args = append(args, "%"+q+"%")
				filters = append(filters,
					"(d.name ILIKE $2 OR h.name ILIKE $2 OR h.city ILIKE $2 OR h.address ILIKE $2)")
			}
			where := " WHERE " + strings.Join(filters, " AND ")

			var total int
			countQuery := `
				SELECT COUNT(a.id) FROM appointments a
				JOIN doctors d ON d.id = a.doctor_id
				JOIN hospitals h ON h.id = d.hospital_id` + where
			if err := h.pgPool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
				return nil, 0, err
			}

			listQuery := fmt.Sprintf("%s%s ORDER BY %s, a.appointment_date OFFSET $%d LIMIT $%d",
				appointmentSelect, where, statusOrderSQL(1), len(args)+1, len(args)+2)
			args = append(args, offset, limit)

			rows, err := h.pgPool.Query(ctx, listQuery, args...)
			if err != nil {
				return nil, 0, err
			}
			defer rows.Close()

			appointments := []models.AppointmentData{}
			for rows.Next() {
				a, err := scanAppointment(rows)
				if err != nil {
					return nil, 0, err
				}
				appointments = append(appointments, appointmentData(a))
			}
			return appointments, total, rows.Err()
		})
	if err != nil {
		h.logger.Error("failed to retrieve appointments",
			zap.Int("page", page),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve appointments",
		})
	}

	return fetchSuccessfulPage(c, "Successfully retrieved appointments", appointments, total)
}

// UpdateAppointmentByID applies a partial update, refreshes the direct-lookup
// key and invalidates the patient's listing keys.
func (h *AppointmentHandler) UpdateAppointmentByID(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	encodedID := c.Params("id")
	appointmentID, err := utils.DecodeID(encodedID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req AppointmentUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.isEmpty() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to update, no data was provided",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	// Fetch ownership and state before mutating.
	var ownerID uuid.UUID
	var status string
	err = h.pgPool.QueryRow(ctx,
		"SELECT patient_id, status FROM appointments WHERE id = $1", appointmentID).
		Scan(&ownerID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Failed to update, appointment not found",
			})
		}
		h.logger.Error("failed to load appointment for update", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update appointment"})
	}
	if ownerID != userID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not allowed to modify this appointment",
		})
	}
	if terminalStatuses[status] {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Updating this appointment is not allowed",
		})
	}

	set, args, err := buildAppointmentUpdate(req, appointmentID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ks := cache.NewKeys(cache.PatientAppointments, utils.EncodeID(userID))

	data, err := cache.MutateAndInvalidate(ctx, h.cache, ks, encodedID,
		func(ctx context.Context) (models.AppointmentData, error) {
			if _, err := h.pgPool.Exec(ctx,
				"UPDATE appointments SET "+set+" WHERE id = $1", args...); err != nil {
				return models.AppointmentData{}, err
			}
			updated, err := h.loadAppointment(ctx, appointmentID)
			if err != nil {
				return models.AppointmentData{}, err
			}
			return appointmentData(updated), nil
		})
	if err != nil {
		h.logger.Error("failed to update appointment",
			zap.String("appointmentID", encodedID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update appointment",
		})
	}

	return fetchSuccessful(c, "Successfully updated appointment", data)
}

// buildAppointmentUpdate renders the SET clause for the provided fields.
// args[0] is reserved for the appointment id.
func buildAppointmentUpdate(req AppointmentUpdateRequest, id uuid.UUID) (string, []any, error) {
	clauses := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.Mode != nil {
		add("mode", *req.Mode)
	}
	if req.Type != nil {
		add("type", *req.Type)
	}
	if req.Status != nil {
		add("status", *req.Status)
	}
	if req.AppointmentDate != nil {
		date, err := time.Parse(dateLayout, *req.AppointmentDate)
		if err != nil {
			return "", nil, fmt.Errorf("invalid appointment date, expected YYYY-MM-DD")
		}
		add("appointment_date", date)
	}
	if req.AppointmentTime != nil {
		add("appointment_time", *req.AppointmentTime)
	}
	if req.TestName != nil {
		add("test_name", *req.TestName)
	}
	if req.PatientNote != nil {
		add("patient_note", *req.PatientNote)
	}
	if req.PurposeOfVisit != nil {
		purposeJSON, err := json.Marshal(req.PurposeOfVisit)
		if err != nil {
			return "", nil, err
		}
		add("purpose_of_visit", purposeJSON)
	}

	return strings.Join(clauses, ", "), args, nil
}

func (h *AppointmentHandler) appointmentError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, errNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Appointment not found"})
	case errors.Is(err, errForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not allowed to view this resource",
		})
	default:
		h.logger.Error(fallback, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
	}
}
