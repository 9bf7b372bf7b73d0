package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"naval-battle-server/handlers"
	"naval-battle-server/middleware"
	"naval-battle-server/models"
	"naval-battle-server/services"
	"naval-battle-server/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, reading environment variables directly")
	}
	if lvl, err := zerolog.ParseLevel(utils.EnvStr("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	app := fiber.New(fiber.Config{
		AppName: "naval-battle-server",
	})

	app.Use(middleware.RequestIDMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Warn().Msg("ALLOWED_ORIGINS not set, using default: http://localhost:4200")
		allowedOriginsEnv = "http://localhost:4200"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal().Msg("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Game{},
		&models.GamePlayer{},
		&models.GameMove{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal().Msg("JWT_SECRET environment variable not set")
	}

	gameService := services.NewGameService(db)
	authService := services.NewAuthService(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Abandoned waiting lobbies are swept in the background. LOBBY_TTL_HOURS=0 disables.
	gameService.StartLobbyJanitor(time.Duration(utils.EnvInt("LOBBY_TTL_HOURS", 24)) * time.Hour)

	handlers.SetupAuthRoutes(app, authService)
	handlers.SetupGameRoutes(app, gameService)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "naval battle API running",
			"version": "1.0.0",
		})
	})

	port := utils.EnvStr("PORT", "3333")
	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()

	log.Info().Str("port", port).Str("origins", allowedOriginsString).Msg("server running")

	<-ctx.Done()
	log.Info().Msg("shutting down server")
	_ = app.Shutdown()
}
