package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stayfinder/internal/app/policies"
	authsvc "stayfinder/internal/app/services/auth"
	bookingsvc "stayfinder/internal/app/services/bookings"
	dashboardsvc "stayfinder/internal/app/services/dashboard"
	listingsvc "stayfinder/internal/app/services/listings"
	domainbooking "stayfinder/internal/domain/booking"
	domainlisting "stayfinder/internal/domain/listing"
	domainuser "stayfinder/internal/domain/user"
	"stayfinder/internal/infra/broker/kafka"
	"stayfinder/internal/infra/config"
	mongodb "stayfinder/internal/infra/db/mongo"
	ginserver "stayfinder/internal/infra/http/gin"
	"stayfinder/internal/infra/obs"
	stripeclient "stayfinder/internal/infra/payments/stripe"
	"stayfinder/internal/infra/security"
	"stayfinder/internal/infra/storage/memory"
	"stayfinder/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	stores := buildStores(ctx, cfg, logger)
	media := buildMedia(cfg, logger)
	events := buildEvents(cfg, logger)
	defer func() {
		if closer, ok := events.(*kafka.Publisher); ok && closer != nil {
			if err := closer.Close(); err != nil {
				logger.Warn("kafka publisher close failed", "error", err)
			}
		}
	}()

	var payments policies.PaymentsPort
	var verifier policies.WebhookVerifier
	if cfg.StripeConfigured() {
		sc := stripeclient.NewClient(stripeclient.Options{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			Currency:      cfg.Currency,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
		})
		payments = sc
		verifier = sc
	} else {
		logger.Warn("stripe keys not configured, payment endpoints disabled")
		payments = unavailablePayments{}
		verifier = unavailableVerifier{}
	}

	authService := &authsvc.Service{
		Users:      stores.users,
		Sessions:   stores.sessions,
		Passwords:  security.BcryptHasher{Cost: cfg.BcryptCost},
		Tokens:     security.RandomTokenGenerator{},
		Media:      media,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	bookingService := &bookingsvc.Service{
		Listings: stores.listings,
		Bookings: stores.bookings,
		Payments: payments,
		Verifier: verifier,
		Events:   events,
		Logger:   logger,
	}
	listingService := &listingsvc.Service{
		Listings: stores.listings,
		Bookings: stores.bookings,
		Payments: payments,
		Media:    media,
		Logger:   logger,
	}
	dashboardService := &dashboardsvc.Service{
		Listings: stores.listings,
		Bookings: stores.bookings,
	}

	handlers := ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Logger: logger},
		Listing:        ginserver.ListingHandler{Service: listingService, Logger: logger},
		Booking:        ginserver.BookingHandler{Service: bookingService, Logger: logger},
		Webhook:        ginserver.WebhookHandler{Service: bookingService, Logger: logger},
		Dashboard:      ginserver.DashboardHandler{Service: dashboardService, Logger: logger},
		AuthMiddleware: ginserver.AuthMiddleware{Service: authService, Logger: logger}.Handle,
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: stores.ready,
	}, handlers)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type stores struct {
	listings domainlisting.Repository
	bookings domainbooking.Repository
	users    domainuser.Repository
	sessions domainuser.SessionStore
	ready    func() error
}

// buildStores connects Mongo when configured and falls back to in-memory
// repositories otherwise, so the service still comes up in dev.
func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) stores {
	if cfg.MongoURI != "" {
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = client.Ping(pingCtx)
			cancel()
			if err == nil {
				if err := client.EnsureIndexes(ctx); err != nil {
					logger.Warn("index creation failed", "error", err)
				}
				logger.Info("mongo connected", "database", cfg.MongoDB)
				return stores{
					listings: mongodb.NewListingRepository(client.DB),
					bookings: mongodb.NewBookingRepository(client.DB),
					users:    mongodb.NewUserRepository(client.DB),
					sessions: mongodb.NewSessionStore(client.DB),
					ready: func() error {
						pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
						defer cancel()
						return client.Ping(pingCtx)
					},
				}
			}
		}
		logger.Warn("mongo unavailable, using in-memory stores", "error", err)
	} else {
		logger.Warn("MONGO_URI not set, using in-memory stores")
	}

	listings := memory.NewListingRepository()
	return stores{
		listings: listings,
		bookings: memory.NewBookingRepository(listings),
		users:    memory.NewUserRepository(),
		sessions: memory.NewSessionStore(),
		ready:    func() error { return nil },
	}
}

func buildMedia(cfg config.Config, logger *slog.Logger) policies.MediaStore {
	if cfg.S3Endpoint == "" {
		logger.Warn("S3_ENDPOINT not set, image uploads disabled")
		return s3.NoopUploader{}
	}
	client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger)
	if err != nil {
		logger.Warn("s3 client init failed, image uploads disabled", "error", err)
		return s3.NoopUploader{}
	}
	return client
}

func buildEvents(cfg config.Config, logger *slog.Logger) policies.EventPublisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("KAFKA_BROKERS not set, event publishing disabled")
		return nil
	}
	publisher, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, nil)
	if err != nil {
		logger.Warn("kafka publisher init failed, event publishing disabled", "error", err)
		return nil
	}
	logger.Info("kafka publisher connected", "brokers", cfg.KafkaBrokers)
	return publisher
}

type unavailablePayments struct{}

func (unavailablePayments) CreateCheckoutSession(context.Context, policies.CheckoutParams) (policies.CheckoutSession, error) {
	return policies.CheckoutSession{}, policies.ErrPaymentsUnavailable
}

func (unavailablePayments) Refund(context.Context, string) error {
	return policies.ErrPaymentsUnavailable
}

type unavailableVerifier struct{}

func (unavailableVerifier) VerifyEvent([]byte, string) (policies.PaymentEvent, error) {
	return policies.PaymentEvent{}, policies.ErrInvalidSignature
}
