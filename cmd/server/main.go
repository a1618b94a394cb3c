package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/huangang/ticketflow/backend/internal/config"
	"github.com/huangang/ticketflow/backend/internal/handlers"
	"github.com/huangang/ticketflow/backend/internal/middleware"
	"github.com/huangang/ticketflow/backend/internal/models"
	"github.com/huangang/ticketflow/backend/internal/services"
	"github.com/huangang/ticketflow/backend/internal/utils"
	"github.com/huangang/ticketflow/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger.Init(os.Getenv("LOG_LEVEL"))

	// Initialize JWT secret
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize system logger
	services.InitSystemLogger(models.GetDB())

	// The issue type mapping must cover every canonical label before the
	// service accepts any traffic.
	issueTypes, err := services.NewIssueTypeMap(cfg.Jira.IssueTypes)
	if err != nil {
		log.Fatalf("Invalid issue type configuration: %v", err)
	}

	// Wire up services
	classifier := services.NewClassifierService(&cfg.Classifier)
	jira := services.NewJiraService(&cfg.Jira)
	slack := services.NewSlackService(&cfg.Slack)
	tickets := services.NewTicketService(models.GetDB(), classifier, jira, slack, issueTypes)

	// Intake queue: async via Redis when enabled, otherwise in-process
	queue := services.InitTaskQueue(cfg)
	if syncQueue, ok := queue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(tickets.ProcessIntake)
	}
	defer queue.Close()

	var worker *services.Worker
	if queue.IsAsync() {
		worker = services.NewWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(tickets.ProcessIntake)
			if err := worker.Start(); err != nil {
				log.Fatalf("Failed to start worker: %v", err)
			}
			defer worker.Stop()
		}
	}

	// Start tracker status sync scheduler
	statusCron := services.StartStatusSyncScheduler(models.GetDB(), jira, cfg.Jira.SyncIntervalMin)
	defer statusCron.Stop()

	// Create default admin user
	authService := services.NewAuthService(models.GetDB(), &cfg.JWT)
	if err := authService.EnsureAdminUser(); err != nil {
		log.Printf("Warning: Failed to create admin user: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Create router
	r := gin.New()
	r.Use(logger.GinLogger(), logger.GinRecovery())

	// Disable redirect behaviors that cause issues with webhooks
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	// Apply CORS middleware
	r.Use(middleware.CORS())

	// Health check endpoint
	r.GET("/health", handlers.Health)

	// Slack endpoints (root level, rate limited)
	slackHandler := handlers.NewSlackHandler(queue, tickets, jira, slack)
	slackGroup := r.Group("/slack")
	slackGroup.Use(middleware.RateLimit(10, 20))
	{
		slackGroup.POST("/command", slackHandler.HandleCommand)
		slackGroup.POST("/actions", slackHandler.HandleActions)
		slackGroup.POST("/events", slackHandler.HandleEvents)
	}

	// API routes
	api := r.Group("/api")
	{
		authHandler := handlers.NewAuthHandler(authService)
		api.POST("/auth/login", authHandler.Login)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)

			ticketHandler := handlers.NewTicketHandler(tickets)
			protected.GET("/tickets", ticketHandler.List)
			protected.GET("/tickets/:id", ticketHandler.GetByID)

			systemLogHandler := handlers.NewSystemLogHandler(services.NewSystemLogService(models.GetDB()))
			protected.GET("/system-logs", systemLogHandler.List)
		}
	}

	// Start server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
