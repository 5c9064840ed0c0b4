package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/campus-core-api/internal/config"
	"github.com/noah-isme/campus-core-api/internal/database"
	"github.com/noah-isme/campus-core-api/internal/handler"
	"github.com/noah-isme/campus-core-api/internal/middleware"
	"github.com/noah-isme/campus-core-api/internal/models"
	"github.com/noah-isme/campus-core-api/internal/repository"
	"github.com/noah-isme/campus-core-api/internal/router"
	"github.com/noah-isme/campus-core-api/internal/service"
	"github.com/noah-isme/campus-core-api/pkg/ai"
	cloud "github.com/noah-isme/campus-core-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Course{},
		&models.Enrollment{},
		&models.Student{},
		&models.Assignment{},
		&models.Question{},
		&models.QuestionOption{},
		&models.RubricCriterion{},
		&models.Submission{},
		&models.Answer{},
		&models.SubmissionGradeHistory{},
		&models.ActivityLog{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, submission events will not be published")
		natsConn = nil
	} else {
		defer natsConn.Close()
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	screener := buildScreener(cfg, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, validate, logger)
	events := service.NewSubmissionEvents(natsConn, cfg.EventSubject, redisClient, logger)

	gradingService := service.NewGradingService(submissionRepo, validate, activityService, events, logger)
	assignmentService := service.NewAssignmentService(assignmentRepo, rosterRepo, validate, activityService, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, rosterRepo, gradingService, uploader, screener, events, validate, logger)
	bulkGradeService := service.NewBulkGradeService(submissionRepo, assignmentRepo, rosterRepo, gradingService, activityService, events, logger)
	analyticsService := service.NewAnalyticsService(submissionRepo, assignmentRepo, rosterRepo, redisClient, cfg.AnalyticsCacheTTL, logger)

	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)
	submissionHandler := handler.NewSubmissionHandler(submissionService, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, bulkGradeService, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssignmentHandler: assignmentHandler,
		SubmissionHandler: submissionHandler,
		GradingHandler:    gradingHandler,
		AnalyticsHandler:  analyticsHandler,
		ActivityHandler:   activityHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildScreener(cfg config.Config, logger zerolog.Logger) ai.Screener {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Warn().Msg("openai api key missing, essay screening disabled")
			return nil
		}
		screener, err := ai.NewOpenAIScreener(ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Logger: logger})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to build openai screener, essay screening disabled")
			return nil
		}
		return screener
	case "anthropic":
		screener, err := ai.NewAnthropicScreener(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to build anthropic screener, essay screening disabled")
			return nil
		}
		return screener
	default:
		return nil
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
