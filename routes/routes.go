package routes

import (
	"time"

	"collabforcause/config"
	controller "collabforcause/controllers"
	"collabforcause/lifecycle"
	"collabforcause/middleware"
	"collabforcause/models"
	"collabforcause/relay"
	"collabforcause/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the shared services the routes are built from.
type Deps struct {
	DB             *gorm.DB
	Hub            *relay.Hub
	Logger         *logrus.Logger
	LimiterStorage fiber.Storage
}

func requestLogger() fiber.Handler {
	return logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path} ${locals:requestid}\n",
	})
}

func SetupRoutes(app *fiber.App, d Deps) {
	if d.Logger == nil {
		d.Logger = utils.Log
	}
	engine := lifecycle.NewEngine(d.DB, d.Logger)

	authController := controller.NewAuthController(d.DB, d.Logger)
	projectController := controller.NewProjectController(d.DB, engine, d.Logger)
	taskController := controller.NewTaskController(d.DB, engine, d.Logger)
	contributionController := controller.NewContributionController(engine, d.Logger)
	messageController := controller.NewMessageController(d.DB, d.Logger)
	notificationController := controller.NewNotificationController(d.DB)

	app.Get("/health", func(c *fiber.Ctx) error {
		return utils.SuccessResponse(c, fiber.StatusOK, fiber.Map{
			"status": "running",
			"time":   time.Now().UTC(),
		})
	})

	api := app.Group("/api", requestLogger())
	protected := middleware.Protected(d.DB)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", middleware.AuthRateLimiter(config.AppConfig.RateLimitAuth, d.LimiterStorage), authController.Register)
	auth.Post("/login", middleware.AuthRateLimiter(config.AppConfig.RateLimitAuth, d.LimiterStorage), authController.Login)
	auth.Get("/me", protected, authController.Me)
	auth.Put("/update", protected, authController.UpdateProfile)

	// Project routes
	projects := api.Group("/projects")
	projects.Get("/", projectController.GetProjects)
	projects.Get("/:id", projectController.GetProject)
	projects.Post("/", protected, middleware.Authorize(models.RoleNGO), projectController.CreateProject)
	projects.Put("/:id", protected, middleware.Authorize(models.RoleNGO), projectController.UpdateProject)
	projects.Delete("/:id", protected, middleware.Authorize(models.RoleNGO), projectController.DeleteProject)

	// Task routes
	tasks := api.Group("/tasks")
	tasks.Get("/", taskController.GetTasks)
	tasks.Get("/:id", taskController.GetTask)
	tasks.Post("/", protected, middleware.Authorize(models.RoleNGO), taskController.CreateTask)
	tasks.Put("/:id", protected, taskController.UpdateTask)
	tasks.Delete("/:id", protected, middleware.Authorize(models.RoleNGO), taskController.DeleteTask)

	// Contribution routes
	contributions := api.Group("/contributions", protected)
	contributions.Get("/", contributionController.GetContributions)
	contributions.Get("/:id", contributionController.GetContribution)
	contributions.Post("/", middleware.Authorize(models.RoleVolunteer), contributionController.SubmitContribution)
	contributions.Put("/:id", middleware.Authorize(models.RoleNGO), contributionController.ReviewContribution)

	api.Get("/messages", protected, messageController.GetMessages)
	api.Get("/notifications", protected, notificationController.GetNotifications)

	if d.Hub != nil {
		if d.Hub.Sink == nil {
			d.Hub.Sink = messageController
		}
		relayController := controller.NewRelayController(d.Hub, d.Logger)
		app.Use("/ws", relayController.Upgrade)
		app.Get("/ws", relayController.Serve())
	}

	app.Use(func(c *fiber.Ctx) error {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Route not found")
	})

	d.Logger.WithField("operation", "routes.SetupRoutes").Info("routes initialized")
}
