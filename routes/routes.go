package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"conecte/config"
	controller "conecte/controllers"
	"conecte/middleware"
	"conecte/store"
	"conecte/worker"
)

func SetupAuthRoutes(app *fiber.App, st store.Store) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)
	authController := controller.NewAuthController(st, authLogger)

	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth.Post("/login", authController.Login)
	auth.Post("/refresh", authController.RefreshToken)

	// Protected auth endpoints (require valid JWT)
	protectedAuth := auth.Group("", middleware.Protected(st))
	protectedAuth.Get("/me", authController.Me)
	protectedAuth.Put("/me", authController.UpdateProfile)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, st store.Store, registry *worker.Registry, runner *worker.Runner, slog *logrus.Logger) {
	configController := controller.NewConfigController(st, log.New(os.Stdout, "CONFIG: ", log.LstdFlags), slog)
	leadController := controller.NewLeadController(st, log.New(os.Stdout, "LEAD: ", log.LstdFlags))
	templateController := controller.NewTemplateController(st, log.New(os.Stdout, "TEMPLATE: ", log.LstdFlags))
	campaignController := controller.NewCampaignController(st, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	executionController := controller.NewCampaignExecutionController(st, registry, runner, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	trackingController := controller.NewTrackingController(st, log.New(os.Stdout, "TRACKING: ", log.LstdFlags))
	webhookController := controller.NewWebhookController(st, log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags), slog)
	formController := controller.NewFormController(st, log.New(os.Stdout, "FORM: ", log.LstdFlags))
	uploadController := controller.NewUploadController(config.AppConfig.UploadDir, log.New(os.Stdout, "UPLOAD: ", log.LstdFlags))

	// Public tracking endpoints hit from inside delivered emails
	app.Get("/api/t/o/:logId", trackingController.TrackOpen)
	app.Get("/api/t/c/:logId", trackingController.TrackClick)
	app.Get("/api/t/u/:logId", trackingController.Unsubscribe)

	// Provider webhook, public but keyed by provider message ids
	app.Post("/api/marketing/webhook/provider", webhookController.HandleProviderWebhook)

	// Public form endpoints
	app.Get("/api/forms/:id/view", formController.ViewForm)
	app.Post("/api/forms/:id/submit", formController.SubmitForm)

	// Gallery images served statically
	app.Static("/uploads", config.AppConfig.UploadDir)

	// Protected API surface
	api := app.Group("/api/marketing", middleware.Protected(st), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Config routes
	api.Get("/config", configController.GetConfig)
	api.Put("/config", configController.UpdateConfig)
	api.Post("/config/test", configController.TestConfig)

	// Lead routes
	lead := api.Group("/leads")
	lead.Get("/", leadController.GetLeads)
	lead.Post("/", leadController.CreateLead)
	lead.Put("/:id", leadController.UpdateLead)
	lead.Delete("/:id", leadController.DeleteLead)
	lead.Post("/import", leadController.ImportLeads)
	api.Get("/tags", leadController.GetTags)
	api.Get("/stats/performance", leadController.GetPerformanceStats)

	// Template routes
	template := api.Group("/templates")
	template.Get("/", templateController.GetTemplates)
	template.Get("/:id", templateController.GetTemplate)
	template.Post("/", templateController.SaveTemplate)
	template.Delete("/:id", templateController.DeleteTemplate)
	template.Post("/upload", templateController.UploadTemplate)

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Get("/:id/logs", campaignController.GetCampaignLogs)
	campaign.Post("/:id/start", executionController.StartCampaign)
	campaign.Post("/:id/stop", executionController.StopCampaign)
	campaign.Post("/:id/restart", executionController.RestartCampaign)

	// WebSocket route for campaign progress
	app.Get("/api/marketing/campaigns/progress",
		websocket.New(controller.HandleCampaignProgressWS(st, log.New(os.Stdout, "WS: ", log.LstdFlags))))

	// Form management routes
	form := api.Group("/forms")
	form.Get("/", formController.GetForms)
	form.Post("/", formController.SaveForm)
	form.Delete("/:id", formController.DeleteForm)

	// Gallery routes
	gallery := api.Group("/gallery")
	gallery.Post("/", uploadController.UploadImage)
	gallery.Get("/", uploadController.ListImages)
	gallery.Delete("/:filename", uploadController.DeleteImage)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, st store.Store, registry *worker.Registry, runner *worker.Runner, slog *logrus.Logger) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, st)
	SetupAPIRoutes(app, st, registry, runner, slog)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
