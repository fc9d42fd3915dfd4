package main

import (
	bookinghandler "rentpay/internal/bookings/handler"
	"rentpay/internal/bookings/lock"
	bookingrepo "rentpay/internal/bookings/repository"
	bookingservice "rentpay/internal/bookings/service"
	bookingvalidator "rentpay/internal/bookings/validator"
	"rentpay/internal/payments/gateway"
	paymenthandler "rentpay/internal/payments/handler"
	"rentpay/internal/payments/notifier"
	paymentrepo "rentpay/internal/payments/repository"
	paymentservice "rentpay/internal/payments/service"
	paymentvalidator "rentpay/internal/payments/validator"
	"rentpay/pkg/app"
	"rentpay/pkg/config"
)

const ServiceName = "rentpay"

type services struct {
	bookings   bookingservice.BookingService
	payments   paymentservice.PaymentService
	dispatcher *notifier.AsyncDispatcher
}

func main() {
	cfg := config.Load(ServiceName)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	// Log all configuration values
	cfg.LogConfiguration()

	cfg.Log.Info("Starting RentPay service")
	cfg.SetMongo()
	cfg.SetNotifier()

	svcs := initServices(cfg)
	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(svcs.dispatcher.Close)
	serverApp.SetApp(
		bookinghandler.NewBookingHandler(svcs.bookings, cfg.Log),
		paymenthandler.NewPaymentHandler(svcs.payments, cfg.Log),
	)
	serverApp.Run()
}

func initServices(cfg *config.Config) *services {
	bookingRepo := bookingrepo.NewMongoBookingRepository(cfg)
	listingRepo := bookingrepo.NewMongoListingRepository(cfg)
	lockRepo := bookingrepo.NewBookingLockRepository(cfg)
	paymentRepo := paymentrepo.NewMongoPaymentRepository(cfg)

	locker := lock.NewMongoLocker(lockRepo, cfg.BookingLockTTL, cfg.BookingLockWait, cfg.Log)

	chapa := gateway.NewChapaClient(gateway.ChapaConfig{
		BaseURL:   cfg.ChapaBaseURL,
		SecretKey: cfg.ChapaSecretKey,
		Timeout:   cfg.GatewayTimeout,
	}, cfg.Log)

	dispatcher := notifier.NewAsyncDispatcher(initNotifier(cfg), cfg.NotifierBackend, cfg.NotifyTimeout, cfg.Log)

	bookingService := bookingservice.NewBookingService(
		bookingRepo,
		listingRepo,
		paymentRepo,
		locker,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)

	paymentService := paymentservice.NewPaymentService(
		paymentRepo,
		bookingRepo,
		locker,
		chapa,
		dispatcher,
		paymentvalidator.NewPaymentValidator(cfg.Log),
		cfg,
	)

	cfg.Log.Info("Services initialized",
		"database", cfg.MongoDatabaseName,
		"notifier_backend", cfg.NotifierBackend,
	)
	return &services{
		bookings:   bookingService,
		payments:   paymentService,
		dispatcher: dispatcher,
	}
}

func initNotifier(cfg *config.Config) notifier.Notifier {
	switch cfg.NotifierBackend {
	case config.NotifierAsynq:
		return notifier.NewAsynqNotifier(cfg.Client.Asynq, cfg.NotifyMaxRetry)
	default:
		return notifier.NewKafkaNotifier(cfg.Client.KafkaProducer, ServiceName)
	}
}
