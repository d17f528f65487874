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

type MealHandler struct {
	config *config.Config
	cache  *cache.Cache
	logger *zap.Logger
	pgPool *pgxpool.Pool
}

func NewMealHandler(cfg *config.Config, c *cache.Cache, logger *zap.Logger, pgPool *pgxpool.Pool) *MealHandler {
	return &MealHandler{
		config: cfg,
		cache:  c,
		logger: logger,
		pgPool: pgPool,
	}
}

// mealPreferences is the slice of the patient's medication plan that shapes
// their meal listing.
type mealPreferences struct {
	RecommendedIngredients []string
	Allergies              []string
	PreferredCuisine       string
}

func (p mealPreferences) isEmpty() bool {
	return len(p.RecommendedIngredients) == 0 && len(p.Allergies) == 0 && p.PreferredCuisine == ""
}

const mealSelect = `
	SELECT id, name, category, COALESCE(description, ''),
	       COALESCE(ingredients, '[]'::jsonb), COALESCE(time, ''),
	       calories, protein, fat, carbs, COALESCE(blog, ''),
	       COALESCE(img_src, ''), COALESCE(cooking_type, ''),
	       COALESCE(cuisine, '')
	FROM meals`

func scanMeal(row pgx.Row) (models.Meal, error) {
	var m models.Meal
	var ingredientsRaw []byte
	err := row.Scan(&m.ID, &m.Name, &m.Category, &m.Description,
		&ingredientsRaw, &m.Time, &m.Calories, &m.Protein, &m.Fat,
		&m.Carbs, &m.Blog, &m.ImgSrc, &m.CookingType, &m.Cuisine)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(ingredientsRaw, &m.Ingredients); err != nil {
		return m, errors.Wrap(err, "malformed ingredients column")
	}
	return m, nil
}

func mealData(m models.Meal) models.MealData {
	return models.MealData{
		ID:          utils.EncodeID(m.ID),
		Name:        m.Name,
		Category:    m.Category,
		Description: m.Description,
		Ingredients: m.Ingredients,
		Time:        m.Time,
		Calories:    m.Calories,
		Protein:     m.Protein,
		Fat:         m.Fat,
		Carbs:       m.Carbs,
		Blog:        m.Blog,
		ImgSrc:      m.ImgSrc,
		CookingType: m.CookingType,
		Cuisine:     m.Cuisine,
	}
}

// GetAllMeals returns a page of meals for the session patient. The listing
// is personalized from the patient's medication plan: recommended
// ingredients are required, allergic ingredients excluded and the preferred
// cuisine pinned. A name search overrides every other filter. Only the
// anonymous unfiltered baseline is cached.
func (h *MealHandler) GetAllMeals(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 10)
	if limit < 1 || limit > 50 {
		limit = 10
	}
	q := strings.TrimSpace(c.Query("q"))
	category := strings.TrimSpace(c.Query("category"))

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	prefs := h.loadPreferences(ctx, userID)

	ks := cache.NewKeys(cache.Meals, "")
	bypass := q != "" || category != "" || !prefs.isEmpty()

	data, total, err := cache.ListOrPopulate(ctx, h.cache, ks, page, bypass,
		func(ctx context.Context) ([]models.MealData, int, error) {
			return h.loadMeals(ctx, q, category, prefs, page, limit)
		})
	if err != nil {
		h.logger.Error("failed to retrieve meals", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve meals",
		})
	}

	return fetchSuccessfulPage(c, "Successfully retrieved meals", data, total)
}

// loadPreferences pulls the dietary slice of the patient's medication plan.
// It prefers the cached plan; a patient without one simply gets no
// personalization.
func (h *MealHandler) loadPreferences(ctx context.Context, patientID uuid.UUID) mealPreferences {
	var prefs mealPreferences

	ks := cache.NewKeys(cache.PatientMedications, utils.EncodeID(patientID))
	var cached models.MedicationData
	if err := h.cache.GetJSON(ctx, ks.Root(), &cached); err == nil {
		prefs.RecommendedIngredients = cached.RecommendedIngredients
		prefs.Allergies = cached.Allergies
		if cached.PreferredCuisine != nil {
			prefs.PreferredCuisine = *cached.PreferredCuisine
		}
		return prefs
	}

	var cuisine *string
	var allergiesRaw, ingredientsRaw []byte
	err := h.pgPool.QueryRow(ctx, `
		SELECT COALESCE(allergies, '[]'::jsonb),
		       COALESCE(recommended_ingredients, '[]'::jsonb), preferred_cuisine
		FROM medications WHERE patient_id = $1
		ORDER BY updated_at DESC LIMIT 1`, patientID).
		Scan(&allergiesRaw, &ingredientsRaw, &cuisine)
	if err != nil {
		return prefs
	}

	json.Unmarshal(allergiesRaw, &prefs.Allergies)
	json.Unmarshal(ingredientsRaw, &prefs.RecommendedIngredients)
	if cuisine != nil {
		prefs.PreferredCuisine = *cuisine
	}
	return prefs
}

func (h *MealHandler) loadMeals(ctx context.Context, q, category string, prefs mealPreferences, page, limit int) ([]models.MealData, int, error) {
	args := []any{}
	conds := []string{}

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if q != "" {
		add("name ILIKE $%d", "%"+q+"%")
	} else {
		if category != "" {
			add("category = $%d", category)
		}
		for _, ingredient := range prefs.RecommendedIngredients {
			add("ingredients @> $%d", mustJSON([]string{ingredient}))
		}
		for _, ingredient := range prefs.Allergies {
			add("NOT (ingredients @> $%d)", mustJSON([]string{ingredient}))
		}
		if prefs.PreferredCuisine != "" {
			add("cuisine = $%d", prefs.PreferredCuisine)
		}
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := h.pgPool.QueryRow(ctx, "SELECT COUNT(id) FROM meals"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	args = append(args, limit, offset)
	query := fmt.Sprintf("%s%s ORDER BY name LIMIT $%d OFFSET $%d",
		mealSelect, where, len(args)-1, len(args))

	rows, err := h.pgPool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	data := []models.MealData{}
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			return nil, 0, err
		}
		data = append(data, mealData(meal))
	}
	return data, total, rows.Err()
}

// GetMealByID returns one meal, cache-aside under its direct-lookup key.
func (h *MealHandler) GetMealByID(c *fiber.Ctx) error {
	mealID, err := utils.DecodeID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid meal id"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	ks := cache.NewKeys(cache.Meals, "")

	data, err := cache.GetOrPopulate(ctx, h.cache, ks.Entity(c.Params("id")), false,
		func(ctx context.Context) (models.MealData, error) {
			row := h.pgPool.QueryRow(ctx, mealSelect+" WHERE id = $1", mealID)
			meal, err := scanMeal(row)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return models.MealData{}, errNotFound
				}
				return models.MealData{}, err
			}
			return mealData(meal), nil
		})
	if err != nil {
		if errors.Is(err, errNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Meal not found"})
		}
		h.logger.Error("failed to retrieve meal",
			zap.String("mealID", c.Params("id")),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve meal",
		})
	}

	return fetchSuccessful(c, "Successfully retrieved meal", data)
}
