package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/erik-bogdan/barni-backend/app/controllers"
	"github.com/erik-bogdan/barni-backend/app/models"
	"github.com/erik-bogdan/barni-backend/internal/pkg/cache"
	"github.com/erik-bogdan/barni-backend/internal/pkg/database"
	"github.com/erik-bogdan/barni-backend/internal/pkg/env"
	"github.com/erik-bogdan/barni-backend/internal/pkg/invoicing"
	"github.com/erik-bogdan/barni-backend/internal/pkg/jobqueue"
	"github.com/erik-bogdan/barni-backend/internal/pkg/payments"
	"github.com/erik-bogdan/barni-backend/internal/pkg/router"
	"github.com/erik-bogdan/barni-backend/internal/pkg/speech"
	"github.com/erik-bogdan/barni-backend/internal/pkg/storage"
	"github.com/erik-bogdan/barni-backend/internal/pkg/stories"
	"github.com/erik-bogdan/barni-backend/internal/pkg/textgen"
)

func main() {
	app := NewApplication()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("[App] Shutting down...")
		jobqueue.GetManager().Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Errorf("[App] Server stopped: %v", err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	if err := models.SeedDefaultPlans(database.GetDB()); err != nil {
		log.Warnf("[App] Failed to seed default plans: %v", err)
	}

	storiesService := setupServices()
	setupJobQueue(storiesService)

	app := fiber.New(fiber.Config{
		AppName:   "barni-backend",
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(recover.New(), logger.New())
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./docs/openapi.yml",
		Path:     "v1",
	}))

	router.InstallRouter(app)

	return app
}

// setupJobQueue registers the generation processors and starts the workers.
// A missing storage configuration disables cover images and audio uploads
// but never blocks text generation. The stories service settles exhausted
// jobs (status flip, refund, notification).
func setupJobQueue(storiesService *stories.Service) {
	var store jobqueue.MediaStore
	if cfg, err := storage.LoadConfig(); err != nil {
		log.Warnf("[App] Object storage disabled: %v", err)
	} else if client, err := storage.NewClient(cfg); err != nil {
		log.Warnf("[App] Object storage disabled: %v", err)
	} else {
		store = client
	}

	queue := jobqueue.GetManager().GetQueue()
	storyProcessor := jobqueue.NewStoryProcessor(textgen.NewClientFromEnv(), store, storiesService)
	queue.Register(jobqueue.JobTypeStoryGeneration, storyProcessor)
	queue.Register(jobqueue.JobTypeCoverGeneration, storyProcessor)
	queue.Register(jobqueue.JobTypeAudioGeneration, jobqueue.NewAudioProcessor(speech.NewClientFromEnv(), store, storiesService))

	jobqueue.GetManager().Start()
}

func setupServices() *stories.Service {
	var invoicer payments.Invoicer
	if client := invoicing.NewClientFromEnv(); client != nil {
		invoicer = client
	} else {
		log.Warnf("[App] Invoicing disabled: no API key configured")
	}

	paymentsService := payments.NewService(
		payments.NewRepository(database.GetDB()),
		env.GetEnv("PAYMENT_PROVIDER", "stripe"),
		[]payments.Provider{
			payments.NewStripeProviderFromEnv(),
			payments.NewBarionProviderFromEnv(),
		},
		invoicer,
	)

	storiesService := stories.NewService(database.GetDB(), queueEnqueuer{}, stories.CostsFromEnv())

	controllers.SetupServices(paymentsService, storiesService)
	return storiesService
}

// queueEnqueuer bridges the story service to the managed job queue.
type queueEnqueuer struct{}

func (queueEnqueuer) EnqueueStory(storyID uint, storyUUID, attemptID string, force bool) error {
	_, err := jobqueue.EnqueueStoryGeneration(storyID, storyUUID, attemptID, force)
	return err
}

func (queueEnqueuer) EnqueueAudio(storyID uint, storyUUID, voiceID, attemptID string) error {
	_, err := jobqueue.EnqueueAudioGeneration(storyID, storyUUID, voiceID, attemptID)
	return err
}

func (queueEnqueuer) EnqueueCover(storyID uint, storyUUID string) error {
	_, err := jobqueue.EnqueueCoverGeneration(storyID, storyUUID)
	return err
}
