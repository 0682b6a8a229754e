package app

import (
	"fmt"
	"net/http"

	bookingshandler "cowork/internal/bookings/handler"
	bookingsrepo "cowork/internal/bookings/repository"
	bookingservice "cowork/internal/bookings/service"
	bookingsvalidator "cowork/internal/bookings/validator"
	"cowork/internal/icalexport"
	"cowork/internal/icalsync"
	leasesrepo "cowork/internal/leases/repository"
	leaseservice "cowork/internal/leases/service"
	notificationsrepo "cowork/internal/notifications/repository"
	notificationservice "cowork/internal/notifications/service"
	spaceshandler "cowork/internal/spaces/handler"
	spacesrepo "cowork/internal/spaces/repository"
	spaceservice "cowork/internal/spaces/service"
	spacesvalidator "cowork/internal/spaces/validator"
	"cowork/internal/store/memory"
	"cowork/pkg/config"
	"cowork/pkg/contracts"
	"cowork/pkg/kafka"
	kafka_config "cowork/pkg/kafka/config"
	kafka_middleware "cowork/pkg/kafka/middleware"
)

// Components holds every service of the process, built over one storage
// driver.
type Components struct {
	Bookings   bookingsrepo.BookingRepository
	Spaces     spacesrepo.SpaceRepository
	Leases     leasesrepo.LeaseRepository
	Outbox     notificationsrepo.OutboxRepository
	LeaseMgr   *leaseservice.Manager
	Writer     *bookingservice.SpaceWriter
	BookingSvc bookingservice.BookingService
	SpaceSvc   spaceservice.SpaceService
	Worker     *icalsync.Worker
	Dispatcher *notificationservice.Dispatcher

	producer *kafka.Producer
}

// Build connects the configured storage and wires the services over it.
func Build(cfg *config.Config) (*Components, error) {
	c := &Components{}

	switch cfg.StorageDriver {
	case config.StorageMemory:
		store := memory.New()
		c.Bookings = store.Bookings()
		c.Spaces = store.Spaces()
		c.Leases = store.Leases()
		c.Outbox = store.Outbox()
		cfg.Log.Warn("Using in-memory storage; data is lost on restart")
	default:
		cfg.SetMongo()
		c.Bookings = bookingsrepo.NewMongoBookingRepository(cfg)
		c.Spaces = spacesrepo.NewMongoSpaceRepository(cfg)
		c.Leases = leasesrepo.NewMongoLeaseRepository(cfg)
		c.Outbox = notificationsrepo.NewMongoOutboxRepository(cfg)
	}

	c.LeaseMgr = leaseservice.NewManager(c.Leases, cfg)
	c.Writer = bookingservice.NewSpaceWriter(c.Bookings, c.Outbox, c.LeaseMgr, cfg.Log)
	c.BookingSvc = bookingservice.NewBookingService(
		c.Bookings,
		c.Spaces,
		c.Writer,
		bookingsvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)
	c.SpaceSvc = spaceservice.NewSpaceService(c.Spaces, spacesvalidator.NewSpaceValidator(), cfg)

	fetcher := icalsync.NewFetcher(&http.Client{}, cfg.FetchTimeout, cfg.FetchMaxBytes, cfg.Log)
	c.Worker = icalsync.NewWorker(c.Spaces, c.Bookings, c.Writer, c.LeaseMgr, fetcher, cfg)

	notifier, err := c.notifier(cfg)
	if err != nil {
		return nil, err
	}
	c.Dispatcher = notificationservice.NewDispatcher(c.Outbox, notifier, cfg)

	cfg.Log.Info("Services initialized",
		"storage_driver", cfg.StorageDriver,
		"notifier_driver", cfg.NotifierDriver,
	)
	return c, nil
}

func (c *Components) notifier(cfg *config.Config) (notificationservice.Notifier, error) {
	if cfg.NotifierDriver != config.NotifierKafka {
		return notificationservice.NewLogNotifier(cfg.Log), nil
	}

	kcfg, err := kafka_config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}
	producer, err := kafka.NewProducer(kcfg, kcfg.NotificationsTopic, kcfg.NotificationsDLQTopic, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if kcfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	c.producer = producer
	cfg.Log.Info("Kafka notifier configured", "topic", kcfg.NotificationsTopic, "dlq_topic", kcfg.NotificationsDLQTopic)
	return notificationservice.NewKafkaNotifier(producer), nil
}

// Handlers returns the public API routes.
func (c *Components) Handlers(cfg *config.Config) []contracts.Handler {
	return []contracts.Handler{
		spaceshandler.NewSpaceHandler(c.SpaceSvc, cfg.Log),
		bookingshandler.NewBookingHandler(c.BookingSvc, cfg.Log),
		icalexport.NewCalendarHandler(c.SpaceSvc, c.Bookings, cfg.Log),
		icalsync.NewSyncHandler(c.Worker, cfg.Log),
	}
}

// Scheduler builds the auto-sync scheduler and subscribes it to sync
// settings changes.
func (c *Components) Scheduler(cfg *config.Config) *icalsync.Scheduler {
	scheduler := icalsync.NewScheduler(c.Worker, c.Spaces, cfg)
	c.SpaceSvc.Subscribe(scheduler)
	return scheduler
}

func (c *Components) Close(cfg *config.Config) {
	if c.producer != nil {
		if err := c.producer.Close(); err != nil {
			cfg.Log.Warn("Failed to close kafka producer", "error", err)
		}
	}
	cfg.GracefulShutdown()
}
