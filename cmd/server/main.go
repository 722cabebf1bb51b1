package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"scholarfinder-back/internal/auth"
	"scholarfinder-back/internal/config"
	"scholarfinder-back/internal/database"
	"scholarfinder-back/internal/enrich"
	"scholarfinder-back/internal/handlers"
	"scholarfinder-back/internal/logging"
	"scholarfinder-back/internal/middleware"
	"scholarfinder-back/internal/models"
	"scholarfinder-back/internal/poller"
	"scholarfinder-back/internal/storage"
	"scholarfinder-back/internal/wizard"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := logging.New(cfg.Server.Environment)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.MigrateDB(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	minioClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		logger.Fatal("Failed to initialize MinIO client", zap.Error(err))
	}

	authManager := auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	enrichClient := enrich.NewClient(cfg.Enrich.BaseURL, cfg.Enrich.Timeout, cfg.Enrich.MaxRetries, logger)
	engine := wizard.NewEngine(db, enrichClient, logger)
	history := handlers.NewHistoryStore()

	// Background health poll feeding GET /admin/system/health.
	monitor := poller.NewHealthMonitor(
		poller.Check{Name: "database", Probe: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		poller.Check{Name: "object_storage", Probe: minioClient.Ping},
		poller.Check{Name: "enrichment_service", Probe: enrichClient.Ping},
	)
	healthPoller := poller.New(cfg.Health.PollInterval, monitor.Refresh, logger)
	healthPoller.Start(context.Background())
	defer healthPoller.Stop()

	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware())

	// Public routes
	public := r.Group("/api")
	{
		public.POST("/login", handlers.Login(db, authManager))
		public.POST("/accept-invite", handlers.AcceptInvite(db, authManager))
		public.POST("/logout", handlers.Logout)
	}

	// Authenticated routes
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(authManager))
	{
		protected.GET("/profile", handlers.GetProfile(db))

		scholar := protected.Group("/scholar")
		{
			scholar.POST("/processes/:id/upload", handlers.UploadManuscript(db, engine, enrichClient, minioClient, logger))
			scholar.GET("/processes/:id/manuscript", handlers.ManuscriptURL(db, minioClient))
			scholar.POST("/processes/:id/keyword-enhancement", handlers.EnhanceKeywords(db, engine))
			scholar.POST("/processes/:id/database-search", handlers.DatabaseSearch(db, engine, enrichClient))
			scholar.POST("/processes/:id/manual-search", handlers.ManualSearch(db, enrichClient))
			scholar.POST("/processes/:id/validate-authors", handlers.ValidateAuthors(db, engine, enrichClient))
			scholar.GET("/recommendations/:jobId", handlers.Recommendations(db, enrichClient))

			scholar.GET("/processes/:id/steps/:step", handlers.GetStepData(db, engine))
			scholar.PUT("/processes/:id/steps/:step", handlers.SaveStepData(db, engine))
			scholar.POST("/processes/:id/advance", handlers.AdvanceStep(db, engine))
			scholar.POST("/processes/:id/back", handlers.BackStep(db, engine))

			scholar.GET("/processes/:id/shortlist", handlers.GetShortlist(db))
			scholar.POST("/processes/:id/shortlist", handlers.AddReviewer(db, history))
			scholar.DELETE("/processes/:id/shortlist/:reviewerId", handlers.RemoveReviewer(db, history))
			scholar.POST("/processes/:id/shortlist/reorder", handlers.ReorderShortlist(db, history))
			scholar.POST("/processes/:id/shortlist/bulk-remove", handlers.BulkRemoveReviewers(db, history))
			scholar.GET("/processes/:id/shortlist/history", handlers.ShortlistHistory(db, history))
			scholar.POST("/processes/:id/shortlist/export", handlers.ExportShortlist(db))
		}
	}

	// Admin routes
	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthMiddleware(authManager))
	admin.Use(middleware.RequireRole(models.RoleAdmin, models.RoleManager))
	{
		admin.GET("/users", handlers.ListUsers(db))
		admin.POST("/users/invite", handlers.InviteUser(db))
		admin.PATCH("/users/:id/role", handlers.UpdateUserRole(db))
		admin.PATCH("/users/:id/status", handlers.UpdateUserStatus(db))
		admin.DELETE("/users/:id", handlers.DeleteUser(db))

		admin.GET("/processes", handlers.ListProcesses(db))
		admin.POST("/processes", handlers.CreateProcess(db))
		admin.PATCH("/processes/:id", handlers.UpdateProcess(db))
		admin.DELETE("/processes/:id", handlers.DeleteProcess(db))
		admin.POST("/processes/:id/reset-stage", handlers.ResetStage(db, engine, logger))

		admin.GET("/logs", handlers.ListLogs(db))
		admin.GET("/stats", handlers.GetStats(db))
		admin.GET("/system/health", handlers.SystemHealth(monitor))
		admin.GET("/system/alerts", handlers.ListAlerts(db))
		admin.PATCH("/system/alerts/:id/ack", handlers.AcknowledgeAlert(db))
		admin.POST("/export", handlers.Export(db))
	}

	logger.Info("Server starting", zap.String("port", cfg.Server.Port))
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
