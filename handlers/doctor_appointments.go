package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/firedev99/glucoguide-backend/cache"
	"github.com/firedev99/glucoguide-backend/models"
	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const doctorAppointmentSelect = `
	SELECT a.id, a.patient_id, a.serial_number, a.mode, a.type, a.status,
	       a.appointment_date, a.appointment_time,
	       COALESCE(a.test_name, ''),
	       COALESCE(a.purpose_of_visit, '[]'::jsonb),
	       COALESCE(a.patient_note, ''), COALESCE(a.doctor_note, ''),
	       p.name
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id`

func scanDoctorAppointment(row pgx.Row) (models.DoctorAppointmentData, error) {
	var data models.DoctorAppointmentData
	var id, patientID uuid.UUID
	var purposeRaw []byte
	var appointmentDate time.Time
	var patientName string

	err := row.Scan(&id, &patientID, &data.SerialNumber, &data.Mode, &data.Type,
		&data.Status, &appointmentDate, &data.AppointmentTime, &data.TestName,
		&purposeRaw, &data.PatientNote, &data.DoctorNote, &patientName)
	if err != nil {
		return data, err
	}
	if err := json.Unmarshal(purposeRaw, &data.PurposeOfVisit); err != nil {
		return data, errors.Wrap(err, "malformed purpose_of_visit column")
	}

	data.ID = utils.EncodeID(id)
	data.AppointmentDate = appointmentDate.Format(dateLayout)
	data.Patient = models.PatientRef{ID: utils.EncodeID(patientID), Name: patientName}
	return data, nil
}

// GetAppointmentRequests lists pending appointment requests for the session
// doctor. Requests change too often to be worth caching.
func (h *AppointmentHandler) GetAppointmentRequests(c *fiber.Ctx) error {
	doctorID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	rows, err := h.pgPool.Query(ctx, doctorAppointmentSelect+`
		WHERE a.doctor_id = $1 AND a.status = 'requested'
		ORDER BY a.appointment_date DESC`, doctorID)
	if err != nil {
		h.logger.Error("failed to retrieve appointment requests", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve appointment requests",
		})
	}
	defer rows.Close()

	requests := []models.DoctorAppointmentData{}
	for rows.Next() {
		data, err := scanDoctorAppointment(rows)
		if err != nil {
			h.logger.Error("failed to scan appointment request", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to retrieve appointment requests",
			})
		}
		requests = append(requests, data)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("failed to iterate appointment requests", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve appointment requests",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved appointment requests", requests)
}

// GetDoctorAppointments lists the session doctor's appointments with a
// selectable status-priority ordering (1-5), optional date ordering and a
// patient-name search. Only the default view (status option 1, latest-first,
// no search) is cached; everything else bypasses.
func (h *AppointmentHandler) GetDoctorAppointments(c *fiber.Ctx) error {
	doctorID, err := sessionUserID(c)
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
	status := c.QueryInt("status", 1)
	date := c.Query("date", "latest")
	q := strings.TrimSpace(c.Query("q"))
	offset := (page - 1) * limit

	// Cached pages always hold the default view, so any deviation from it
	// has to skip the cache.
	bypass := q != "" || status != 1 || date == "old"

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.DoctorAppointments, utils.EncodeID(doctorID))

	appointments, total, err := cache.ListOrPopulate(ctx, h.cache, ks, page, bypass,
		func(ctx context.Context) ([]models.DoctorAppointmentData, int, error) {
			filters := []string{"a.doctor_id = $1", "a.status <> 'requested'"}
			args := []any{doctorID}
			if q != "" {
				args = append(args, "%"+q+"%")
				filters = append(filters, fmt.Sprintf("p.name ILIKE $%d", len(args)))
			}
			where := " WHERE " + strings.Join(filters, " AND ")

			var total int
			countQuery := "SELECT COUNT(a.id) FROM appointments a JOIN patients p ON p.id = a.patient_id" + where
			if err := h.pgPool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
				return nil, 0, err
			}

			dateOrder := "a.appointment_date DESC"
			if date == "old" {
				dateOrder = "a.appointment_date ASC"
			}

			listQuery := fmt.Sprintf("%s%s ORDER BY %s, %s OFFSET $%d LIMIT $%d",
				doctorAppointmentSelect, where, statusOrderSQL(status), dateOrder,
				len(args)+1, len(args)+2)
			args = append(args, offset, limit)

			rows, err := h.pgPool.Query(ctx, listQuery, args...)
			if err != nil {
				return nil, 0, err
			}
			defer rows.Close()

			appointments := []models.DoctorAppointmentData{}
			for rows.Next() {
				data, err := scanDoctorAppointment(rows)
				if err != nil {
					return nil, 0, err
				}
				appointments = append(appointments, data)
			}
			return appointments, total, rows.Err()
		})
	if err != nil {
		h.logger.Error("failed to retrieve doctor appointments",
			zap.Int("page", page),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve appointments",
		})
	}

	return fetchSuccessfulPage(c, "Successfully retrieved appointments", appointments, total)
}

// UpdateAppointmentStatus lets the session doctor act on an appointment
// (accept a request, mark completed/missed), invalidating both the doctor's
// and the owning patient's cached listings.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *fiber.Ctx) error {
	doctorID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	encodedID := c.Params("id")
	appointmentID, err := utils.DecodeID(encodedID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	var req struct {
		Status     string `json:"status"`
		DoctorNote string `json:"doctor_note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.Status == "" && req.DoctorNote == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Failed to update, no data was provided",
		})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	var ownerDoctorID, patientID uuid.UUID
	err = h.pgPool.QueryRow(ctx,
		"SELECT doctor_id, patient_id FROM appointments WHERE id = $1", appointmentID).
		Scan(&ownerDoctorID, &patientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Failed to update, appointment not found",
			})
		}
		h.logger.Error("failed to load appointment for update", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update appointment"})
	}
	if ownerDoctorID != doctorID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You are not allowed to modify this appointment",
		})
	}

	ks := cache.NewKeys(cache.DoctorAppointments, utils.EncodeID(doctorID))

	data, err := cache.MutateAndInvalidate(ctx, h.cache, ks, encodedID,
		func(ctx context.Context) (models.DoctorAppointmentData, error) {
			_, err := h.pgPool.Exec(ctx, `
				UPDATE appointments
				SET status = COALESCE(NULLIF($2, ''), status),
				    doctor_note = COALESCE(NULLIF($3, ''), doctor_note),
				    updated_at = NOW()
				WHERE id = $1`, appointmentID, req.Status, req.DoctorNote)
			if err != nil {
				return models.DoctorAppointmentData{}, err
			}
			row := h.pgPool.QueryRow(ctx, doctorAppointmentSelect+" WHERE a.id = $1", appointmentID)
			return scanDoctorAppointment(row)
		})
	if err != nil {
		h.logger.Error("failed to update appointment status",
			zap.String("appointmentID", encodedID),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update appointment",
		})
	}

	// The owning patient's cached views are stale now as well.
	patientKeys := cache.NewKeys(cache.PatientAppointments, utils.EncodeID(patientID))
	if err := h.cache.Delete(ctx, patientKeys.Entity(encodedID)); err != nil {
		h.logger.Warn("failed to drop patient appointment key", zap.Error(err))
	}
	h.cache.Invalidate(ctx, patientKeys)

	return fetchSuccessful(c, "Successfully updated appointment", data)
}
