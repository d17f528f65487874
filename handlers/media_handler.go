package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"time"

	"github.com/firedev99/glucoguide-backend/cache"
	"github.com/firedev99/glucoguide-backend/config"
	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
)

const (
	maxFileSize = 5 * 1024 * 1024 // 5MB
	avatarSize  = 512
	jpegQuality = 85
)

type MediaHandler struct {
	config      *config.Config
	cache       *cache.Cache
	logger      *zap.Logger
	pgPool      *pgxpool.Pool
	minioClient *minio.Client
}

func NewMediaHandler(cfg *config.Config, c *cache.Cache, logger *zap.Logger, pgPool *pgxpool.Pool, minioClient *minio.Client) *MediaHandler {
	return &MediaHandler{
		config:      cfg,
		cache:       c,
		logger:      logger,
		pgPool:      pgPool,
		minioClient: minioClient,
	}
}

// UploadProfilePic normalizes the uploaded image to a 512x512 JPEG, stores
// it and points the user's img_src at it.
func (h *MediaHandler) UploadProfilePic(c *fiber.Ctx) error {
	userID, err := sessionUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	file, err := c.FormFile("profilePic")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file uploaded"})
	}

	if file.Size > maxFileSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("File size exceeds maximum limit of %d MB", maxFileSize/(1024*1024)),
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Only JPG and PNG files are allowed",
		})
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error("failed to open uploaded file", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process uploaded file",
		})
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid image format"})
	}

	resized := resize.Resize(avatarSize, avatarSize, img, resize.Lanczos3)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		h.logger.Error("failed to encode image", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process image",
		})
	}

	filename := fmt.Sprintf("%s.jpg", uuid.New().String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	info, err := h.minioClient.PutObject(
		ctx,
		h.config.MinioBucket,
		filename,
		bytes.NewReader(buf.Bytes()),
		int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "image/jpeg"},
	)
	if err != nil || info.Size == 0 {
		h.logger.Error("failed to upload to minio",
			zap.String("bucket", h.config.MinioBucket),
			zap.String("filename", filename),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store image",
		})
	}

	imageURL := fmt.Sprintf("%s/%s/%s", h.config.MinioEndpoint, h.config.MinioBucket, filename)

	if _, err := h.pgPool.Exec(c.Context(),
		"UPDATE users SET img_src = $1, updated_at = NOW() WHERE id = $2",
		imageURL, userID); err != nil {
		h.logger.Error("failed to update profile picture url",
			zap.String("userID", utils.EncodeID(userID)),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile picture",
		})
	}

	ks := cache.NewKeys(cache.Profiles, utils.EncodeID(userID))
	if err := h.cache.Delete(c.Context(), ks.Root()); err != nil {
		h.logger.Warn("failed to drop cached profile", zap.Error(err))
	}

	return fetchSuccessful(c, "Profile picture updated successfully", fiber.Map{"url": imageURL})
}

// GetProfilePic streams a stored profile picture. Object storage reads are
// retried with exponential backoff before giving up.
func (h *MediaHandler) GetProfilePic(c *fiber.Ctx) error {
	filename := c.Params("filename")
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid filename"})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var obj *minio.Object
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		obj, err = h.minioClient.GetObject(ctx, h.config.MinioBucket, filename, minio.GetObjectOptions{})
		if err == nil {
			break
		}
		h.logger.Warn("attempt to get object from minio failed, retrying...",
			zap.String("filename", filename),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < 2 {
			time.Sleep(time.Duration(100*(2<<attempt)) * time.Millisecond)
		}
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve image",
		})
	}

	objInfo, err := obj.Stat()
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Image not found"})
		}
		h.logger.Error("failed to stat object",
			zap.String("filename", filename),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve image",
		})
	}

	c.Set("Content-Type", objInfo.ContentType)
	c.Set("Cache-Control", "public, max-age=86400")
	return c.SendStream(obj, int(objInfo.Size))
}
