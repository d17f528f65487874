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
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DoctorHandler serves the public doctor-browsing surface: the global paged
// listing, single-doctor lookup and the per-hospital listing.
type DoctorHandler struct {
	config *config.Config
	cache  *cache.Cache
	logger *zap.Logger
	pgPool *pgxpool.Pool
}

func NewDoctorHandler(cfg *config.Config, c *cache.Cache, logger *zap.Logger, pgPool *pgxpool.Pool) *DoctorHandler {
	return &DoctorHandler{
		config: cfg,
		cache:  c,
		logger: logger,
		pgPool: pgPool,
	}
}

const doctorSelect = `
	SELECT d.id, u.name, COALESCE(u.gender, ''), COALESCE(u.img_src, ''),
	       d.description, d.available_times, d.experience,
	       COALESCE(d.emails, '[]'::jsonb),
	       COALESCE(d.contact_numbers, '[]'::jsonb),
	       h.id, h.name, h.city, h.address
	FROM doctors d
	JOIN users u ON u.id = d.id
	JOIN hospitals h ON h.id = d.hospital_id`

func scanDoctor(row pgx.Row) (models.Doctor, error) {
	var d models.Doctor
	var emailsRaw, contactsRaw []byte
	err := row.Scan(&d.ID, &d.Name, &d.Gender, &d.ImgSrc, &d.Description,
		&d.AvailableTimes, &d.Experience, &emailsRaw, &contactsRaw,
		&d.HospitalID, &d.HospitalName, &d.HospitalCity, &d.HospitalAddress)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(emailsRaw, &d.Emails); err != nil {
		return d, errors.Wrap(err, "malformed emails column")
	}
	if err := json.Unmarshal(contactsRaw, &d.ContactNumbers); err != nil {
		return d, errors.Wrap(err, "malformed contact_numbers column")
	}
	return d, nil
}

func doctorData(d models.Doctor) models.DoctorData {
	return models.DoctorData{
		ID:             utils.EncodeID(d.ID),
		Name:           d.Name,
		Gender:         d.Gender,
		ImgSrc:         d.ImgSrc,
		Description:    d.Description,
		AvailableTimes: d.AvailableTimes,
		Experience:     d.Experience,
		Emails:         d.Emails,
		ContactNumbers: d.ContactNumbers,
		Hospital: models.DoctorHospitalRef{
			ID:      utils.EncodeID(d.HospitalID),
			Name:    d.HospitalName,
			City:    d.HospitalCity,
			Address: d.HospitalAddress,
		},
	}
}

// doctorFilterSQL renders the search criteria as a WHERE clause. A doctor
// matches when ANY criterion holds, so broadening the search never narrows
// the result set.
func doctorFilterSQL(q string, hospitals, locations []string, experience int) (string, []any) {
	conds := []string{}
	args := []any{}

	if q != "" {
		args = append(args, "%"+q+"%")
		conds = append(conds, fmt.Sprintf("u.name ILIKE $%d", len(args)))
	}
	if experience > 0 {
		args = append(args, experience)
		conds = append(conds, fmt.Sprintf("d.experience >= $%d", len(args)))
	}
	if len(hospitals) > 0 {
		args = append(args, hospitals)
		conds = append(conds, fmt.Sprintf("h.name = ANY($%d)", len(args)))
	}
	if len(locations) > 0 {
		args = append(args, locations)
		conds = append(conds, fmt.Sprintf("h.city = ANY($%d)", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " OR "), args
}

// commaList splits a comma-separated query parameter into trimmed values.
func commaList(raw string) []string {
	var values []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// GetAllDoctors returns a page of doctors with their hospital display
// fields. The unfiltered baseline is cached per page with a sibling total;
// any search or filter parameter bypasses the cache in both directions.
func (h *DoctorHandler) GetAllDoctors(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}
	q := strings.TrimSpace(c.Query("q"))
	hospitals := commaList(c.Query("hospitals"))
	locations := commaList(c.Query("locations"))
	experience := c.QueryInt("experience", 0)

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.Doctors, "")
	bypass := q != "" || len(hospitals) > 0 || len(locations) > 0 || experience > 0

	data, total, err := cache.ListOrPopulate(ctx, h.cache, ks, page, bypass,
		func(ctx context.Context) ([]models.DoctorData, int, error) {
			where, args := doctorFilterSQL(q, hospitals, locations, experience)
			return h.loadDoctors(ctx, where, args, page, limit)
		})
	if err != nil {
		h.logger.Error("failed to retrieve doctors", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve doctors",
		})
	}

	return fetchSuccessfulPage(c, "Successfully retrieved doctors", data, total)
}

// GetDoctorsByHospitalID returns the paged doctor listing of one hospital,
// cached under the hospital's own scope so each hospital's pages invalidate
// independently.
func (h *DoctorHandler) GetDoctorsByHospitalID(c *fiber.Ctx) error {
	hospitalID, err := utils.DecodeID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid hospital id"})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.Doctors, cache.HospitalScope(c.Params("id")))

	data, total, err := cache.ListOrPopulate(ctx, h.cache, ks, page, false,
		func(ctx context.Context) ([]models.DoctorData, int, error) {
			args := []any{hospitalID}
			return h.loadDoctors(ctx, " WHERE d.hospital_id = $1", args, page, limit)
		})
	if err != nil {
		h.logger.Error("failed to retrieve hospital doctors",
			zap.String("hospitalID", c.Params("id")),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve doctors",
		})
	}

	return fetchSuccessfulPage(c, "Successfully retrieved doctors", data, total)
}

func (h *DoctorHandler) loadDoctors(ctx context.Context, where string, args []any, page, limit int) ([]models.DoctorData, int, error) {
	count := "SELECT COUNT(d.id) FROM doctors d JOIN users u ON u.id = d.id JOIN hospitals h ON h.id = d.hospital_id"

	var total int
	if err := h.pgPool.QueryRow(ctx, count+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	args = append(args, limit, offset)
	query := fmt.Sprintf("%s%s ORDER BY u.name LIMIT $%d OFFSET $%d",
		doctorSelect, where, len(args)-1, len(args))

	rows, err := h.pgPool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	data := []models.DoctorData{}
	for rows.Next() {
		doctor, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		data = append(data, doctorData(doctor))
	}
	return data, total, rows.Err()
}

// GetDoctorByID returns one doctor, cache-aside under their direct-lookup
// key.
func (h *DoctorHandler) GetDoctorByID(c *fiber.Ctx) error {
	doctorID, err := utils.DecodeID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid doctor id"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.Doctors, "")

	data, err := cache.GetOrPopulate(ctx, h.cache, ks.Entity(c.Params("id")), false,
		func(ctx context.Context) (models.DoctorData, error) {
			row := h.pgPool.QueryRow(ctx, doctorSelect+" WHERE d.id = $1", doctorID)
			doctor, err := scanDoctor(row)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.DoctorData{}, errNotFound
				}
				return models.DoctorData{}, err
			}
			return doctorData(doctor), nil
		})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Doctor not found"})
		}
		h.logger.Error("failed to retrieve doctor",
			zap.String("doctorID", c.Params("id")),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve doctor",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved doctor", data)
}
