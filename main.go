package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/firedev99/glucoguide-backend/cache"
	"github.com/firedev99/glucoguide-backend/config"
	"github.com/firedev99/glucoguide-backend/handlers"
	"github.com/firedev99/glucoguide-backend/middleware"
	"github.com/firedev99/glucoguide-backend/registry"
	"github.com/firedev99/glucoguide-backend/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	Fiber       *fiber.App
	Postgres    *pgxpool.Pool
	Redis       *redis.Client
	Mongo       *mongo.Client
	MinioClient *minio.Client
	Ctx         context.Context
	Config      *config.Config
	Logger      *zap.Logger
	Cache       *cache.Cache
	Registry    *registry.Registry
	Tokens      *utils.JwtTokenGenerator
}

func NewApp() (*App, error) {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	// Setup context with cancellation
	ctx := context.Background()

	// Initialize logger
	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %v", err)
	}

	// Setup PostgreSQL connection with retry logic
	var pgPool *pgxpool.Pool
	maxRetries := 5

	poolConfig, err := pgxpool.ParseConfig(cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pool config: %v", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	for i := 0; i < maxRetries; i++ {
		pgPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		if err == nil {
			if err = pgPool.Ping(ctx); err == nil {
				break
			}
			pgPool.Close()
		}
		logger.Warn("failed to connect to postgres, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("postgres connection failed after %d attempts: %v", maxRetries, err)
	}

	// Setup Redis connection with retry logic
	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis URL parsing failed: %v", err)
	}

	redisClient := redis.NewClient(redisOpt)
	for i := 0; i < maxRetries; i++ {
		_, err = redisClient.Ping(ctx).Result()
		if err == nil {
			break
		}
		logger.Warn("failed to connect to redis, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		return nil, fmt.Errorf("redis connection failed after %d attempts: %v", maxRetries, err)
	}

	// Setup MongoDB connection for chat storage
	mongoClient, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoDBURL))
	if err != nil {
		return nil, fmt.Errorf("mongodb connection failed: %v", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		logger.Warn("mongodb not reachable at startup", zap.Error(err))
	}

	// Setup MinIO connection with retry logic
	var minioClient *minio.Client
	for i := 0; i < maxRetries; i++ {
		minioClient, err = minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
			Secure: cfg.IsProduction(),
			Region: cfg.MinioRegion,
		})
		if err != nil {
			logger.Warn("failed to create minio client, retrying...",
				zap.Error(err),
				zap.Int("attempt", i+1))
			time.Sleep(time.Second * time.Duration(i+1))
			continue
		}
		break
	}
	if err != nil {
		return nil, fmt.Errorf("minio connection failed after %d attempts: %v", maxRetries, err)
	}

	// Create the media bucket if it doesn't exist
	exists, err := minioClient.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		logger.Error("failed to check bucket existence",
			zap.String("bucket", cfg.MinioBucket),
			zap.Error(err))
	} else if exists {
		logger.Info("bucket verified", zap.String("bucket", cfg.MinioBucket))
	} else {
		err = minioClient.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			logger.Error("failed to create bucket",
				zap.String("bucket", cfg.MinioBucket),
				zap.Error(err))
		} else {
			logger.Info("bucket created", zap.String("bucket", cfg.MinioBucket))
		}
	}

	// Fiber setup with improved error handling
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			logger.Error("request error",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.Int("status", code))
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	})

	// Panic recovery
	fiberApp.Use(middleware.Recovery(logger))

	// CORS configuration
	fiberApp.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		ExposeHeaders:    "Set-Cookie",
		MaxAge:           300,
	}))

	// Request logging middleware
	fiberApp.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		logger.Info("request completed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Duration("duration", duration),
			zap.Int("status", c.Response().StatusCode()),
		)
		return err
	})

	appCache := cache.New(cache.NewRedisStore(redisClient), logger)
	tokens := utils.NewJwtTokenGenerator(appCache, cfg.JWTSecret,
		time.Duration(cfg.SessionDuration)*time.Hour)

	return &App{
		Fiber:       fiberApp,
		Postgres:    pgPool,
		Redis:       redisClient,
		Mongo:       mongoClient,
		MinioClient: minioClient,
		Ctx:         ctx,
		Config:      cfg,
		Logger:      logger,
		Cache:       appCache,
		Registry:    registry.New(logger),
		Tokens:      tokens,
	}, nil
}

func (a *App) setupRoutes() error {
	authMiddleware := middleware.NewAuthMiddleware(a.Logger, a.Tokens)

	authHandler := handlers.NewAuthHandler(a.Config, a.Cache, a.Logger, a.Postgres, a.Tokens)
	appointmentHandler := handlers.NewAppointmentHandler(a.Config, a.Cache, a.Logger, a.Postgres)
	healthHandler := handlers.NewHealthHandler(a.Config, a.Cache, a.Logger, a.Postgres, a.Registry)
	medicationHandler := handlers.NewMedicationHandler(a.Config, a.Cache, a.Logger, a.Postgres)
	doctorHandler := handlers.NewDoctorHandler(a.Config, a.Cache, a.Logger, a.Postgres)
	hospitalHandler := handlers.NewHospitalHandler(a.Config, a.Cache, a.Logger, a.Postgres)
	mealHandler := handlers.NewMealHandler(a.Config, a.Cache, a.Logger, a.Postgres)
	chatHandler := handlers.NewChatHandler(a.Config, a.Logger, a.Mongo)
	mediaHandler := handlers.NewMediaHandler(a.Config, a.Cache, a.Logger, a.Postgres, a.MinioClient)
	wsHandler := handlers.NewWebSocketHandler(a.Logger, a.Registry, chatHandler)

	// Auth routes
	auth := a.Fiber.Group("/api/v1/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", authMiddleware.Handler(), authHandler.Logout)

	api := a.Fiber.Group("/api/v1", authMiddleware.Handler())

	// Profile
	api.Get("/users/profile", authHandler.GetProfile)
	api.Put("/users/profile", authHandler.UpdateProfile)
	api.Put("/users/profile/password", authHandler.ChangePassword)
	api.Post("/users/profile/picture", mediaHandler.UploadProfilePic)

	// Patient appointments
	patients := api.Group("/patients", authMiddleware.RequireRole("patient"))
	patients.Post("/appointments", appointmentHandler.CreateAppointment)
	patients.Get("/appointments", appointmentHandler.GetAllAppointments)
	patients.Get("/appointments/upcoming", appointmentHandler.GetUpcomingAppointments)
	patients.Get("/appointments/:id", appointmentHandler.GetAppointmentByID)
	patients.Patch("/appointments/:id", appointmentHandler.UpdateAppointmentByID)
	patients.Get("/appointments/:id/medications", medicationHandler.GetAppointmentPrescription)

	// Patient health records
	patients.Get("/monitorings", healthHandler.GetHealthRecord)
	patients.Post("/monitorings", healthHandler.CreateHealthRecord)
	patients.Patch("/monitorings/:id", healthHandler.UpdateHealthRecordByID)

	// Patient medications
	patients.Get("/medications", medicationHandler.GetPatientMedications)
	patients.Post("/medications/generate", medicationHandler.GenerateMedications)
	patients.Patch("/medications", medicationHandler.UpdateMedications)

	// Meals, personalized per patient
	patients.Get("/meals", mealHandler.GetAllMeals)
	patients.Get("/meals/:id", mealHandler.GetMealByID)

	// Doctor appointment management
	doctors := api.Group("/doctors", authMiddleware.RequireRole("doctor"))
	doctors.Get("/appointments", appointmentHandler.GetDoctorAppointments)
	doctors.Get("/appointments/requests", appointmentHandler.GetAppointmentRequests)
	doctors.Patch("/appointments/:id/status", appointmentHandler.UpdateAppointmentStatus)

	// Doctor browsing, visible to every authenticated role
	api.Get("/doctors", doctorHandler.GetAllDoctors)
	api.Get("/doctors/:id", doctorHandler.GetDoctorByID)

	// Hospitals, visible to every authenticated role
	api.Get("/hospitals", hospitalHandler.GetAllHospitals)
	api.Get("/hospitals/names", hospitalHandler.GetHospitalNames)
	api.Get("/hospitals/locations", hospitalHandler.GetHospitalLocations)
	api.Get("/hospitals/:id", hospitalHandler.GetHospitalByID)
	api.Get("/hospitals/:id/doctors", doctorHandler.GetDoctorsByHospitalID)

	// Chat history
	api.Get("/chats/help", chatHandler.GetHelpMessages)
	api.Get("/chats/direct/:id", chatHandler.GetDirectMessages)

	// Media, no auth so <img> tags can load avatars directly
	a.Fiber.Get("/api/v1/media/profile-pics/:filename", mediaHandler.GetProfilePic)

	// WebSocket routes
	ws := a.Fiber.Group("/ws", handlers.UpgradeRequired, authMiddleware.Handler())
	ws.Get("/monitoring/:roomID", wsHandler.MonitoringSocket())
	ws.Get("/chat", wsHandler.ChatSocket())
	ws.Get("/admin", authMiddleware.RequireRole("admin"), wsHandler.AdminSocket())

	return nil
}

func (a *App) Start() error {
	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.setupRoutes(); err != nil {
		return fmt.Errorf("failed to setup routes: %v", err)
	}

	// Start server in a goroutine
	go func() {
		if err := a.Fiber.Listen(":" + a.Config.ServerPort); err != nil {
			a.Logger.Fatal("failed to start server",
				zap.Error(err),
				zap.String("port", a.Config.ServerPort))
		}
	}()

	a.Logger.Info("server started",
		zap.String("port", a.Config.ServerPort))

	// Wait for interrupt signal
	<-sigChan
	a.Logger.Info("shutting down server...")

	// Cleanup
	if err := a.Fiber.Shutdown(); err != nil {
		a.Logger.Error("error during server shutdown",
			zap.Error(err))
	}
	a.Postgres.Close()
	if err := a.Redis.Close(); err != nil {
		a.Logger.Error("error closing redis connection",
			zap.Error(err))
	}
	if err := a.Mongo.Disconnect(context.Background()); err != nil {
		a.Logger.Error("error closing mongodb connection",
			zap.Error(err))
	}
	if err := a.Logger.Sync(); err != nil {
		log.Printf("error syncing logger: %v", err)
	}

	return nil
}

func main() {
	app, err := NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.Start(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
