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

type HospitalHandler struct {
	config *config.Config
	cache  *cache.Cache
	logger *zap.Logger
	pgPool *pgxpool.Pool
}

func NewHospitalHandler(cfg *config.Config, c *cache.Cache, logger *zap.Logger, pgPool *pgxpool.Pool) *HospitalHandler {
	return &HospitalHandler{
		config: cfg,
		cache:  c,
		logger: logger,
		pgPool: pgPool,
	}
}

const hospitalSelect = `
	SELECT id, name, address, city, COALESCE(img_src, ''),
	       COALESCE(description, ''), COALESCE(emails, '[]'::jsonb),
	       COALESCE(contact_numbers, '[]'::jsonb)
	FROM hospitals`

func scanHospital(row pgx.Row) (models.Hospital, error) {
	var h models.Hospital
	var emailsRaw, contactsRaw []byte
	err := row.Scan(&h.ID, &h.Name, &h.Address, &h.City, &h.ImgSrc,
		&h.Description, &emailsRaw, &contactsRaw)
	if err != nil {
		return h, err
	}
	if err := json.Unmarshal(emailsRaw, &h.Emails); err != nil {
		return h, errors.Wrap(err, "malformed emails column")
	}
	if err := json.Unmarshal(contactsRaw, &h.ContactNumbers); err != nil {
		return h, errors.Wrap(err, "malformed contact_numbers column")
	}
	return h, nil
}

func hospitalData(h models.Hospital) models.HospitalData {
	return models.HospitalData{
		ID:             utils.EncodeID(h.ID),
		Name:           h.Name,
		Address:        h.Address,
		City:           h.City,
		ImgSrc:         h.ImgSrc,
		Description:    h.Description,
		Emails:         h.Emails,
		ContactNumbers: h.ContactNumbers,
	}
}

// GetHospitalNames returns the distinct hospital names, cached under a
// dedicated shortcut key. The frontend uses it to build filter dropdowns.
func (h *HospitalHandler) GetHospitalNames(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.Hospitals, "")
	names, err := cache.GetOrPopulate(ctx, h.cache, ks.Names(), false,
		func(ctx context.Context) ([]string, error) {
			return h.distinctColumn(ctx, "name")
		})
	if err != nil {
		h.logger.Error("failed to retrieve hospital names", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve hospital names",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved hospital names", names)
}

// GetHospitalLocations returns the distinct hospital cities, cached under a
// dedicated shortcut key.
func (h *HospitalHandler) GetHospitalLocations(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.Hospitals, "")
	locations, err := cache.GetOrPopulate(ctx, h.cache, ks.Locations(), false,
		func(ctx context.Context) ([]string, error) {
			return h.distinctColumn(ctx, "city")
		})
	if err != nil {
		h.logger.Error("failed to retrieve hospital locations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve hospital locations",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved hospital locations", locations)
}

func (h *HospitalHandler) distinctColumn(ctx context.Context, column string) ([]string, error) {
	rows, err := h.pgPool.Query(ctx, "SELECT DISTINCT "+column+" FROM hospitals ORDER BY "+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// GetAllHospitals returns a page of hospitals. The unfiltered baseline view
// is cached per page with a sibling total; a name search or a location
// filter bypasses the cache in both directions.
func (h *HospitalHandler) GetAllHospitals(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}
	q := strings.TrimSpace(c.Query("q"))

	locations := commaList(c.Query("locations"))

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.Hospitals, "")
	bypass := q != "" || len(locations) > 0

	data, total, err := cache.ListOrPopulate(ctx, h.cache, ks, page, bypass,
		func(ctx context.Context) ([]models.HospitalData, int, error) {
			return h.loadHospitals(ctx, q, locations, page, limit)
		})
	if err != nil {
		h.logger.Error("failed to retrieve hospitals", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve hospitals",
		})
	}

	return fetchSuccessfulPage(c, "Successfully retrieved hospitals", data, total)
}

func (h *HospitalHandler) loadHospitals(ctx context.Context, q string, locations []string, page, limit int) ([]models.HospitalData, int, error) {
	where := ""
	args := []any{}
	conds := []string{}

	if q != "" {
		args = append(args, "%"+q+"%")
		conds = append(conds, "name ILIKE $1")
	}
	if len(locations) > 0 {
		args = append(args, locations)
		conds = append(conds, fmt.Sprintf("city = ANY($%d)", len(args)))
	}
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := h.pgPool.QueryRow(ctx, "SELECT COUNT(id) FROM hospitals"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	args = append(args, limit, offset)
	query := fmt.Sprintf("%s%s ORDER BY name LIMIT $%d OFFSET $%d",
		hospitalSelect, where, len(args)-1, len(args))

	rows, err := h.pgPool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	data := []models.HospitalData{}
	for rows.Next() {
		hospital, err := scanHospital(rows)
		if err != nil {
			return nil, 0, err
		}
		data = append(data, hospitalData(hospital))
	}
	return data, total, rows.Err()
}

// GetHospitalByID returns one hospital, cache-aside under its direct-lookup
// key.
func (h *HospitalHandler) GetHospitalByID(c *fiber.Ctx) error {
	hospitalID, err := utils.DecodeID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid hospital id"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.Hospitals, "")

	data, err := cache.GetOrPopulate(ctx, h.cache, ks.Entity(c.Params("id")), false,
		func(ctx context.Context) (models.HospitalData, error) {
			row := h.pgPool.QueryRow(ctx, hospitalSelect+" WHERE id = $1", hospitalID)
			hospital, err := scanHospital(row)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.HospitalData{}, errNotFound
				}
				return models.HospitalData{}, err
			}
			return hospitalData(hospital), nil
		})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Hospital not found"})
		}
		h.logger.Error("failed to retrieve hospital",
			zap.String("hospitalID", c.Params("id")),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve hospital",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved hospital", data)
}
