package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/boutique-api/internal/admin"
	"github.com/vasiliy-maslov/boutique-api/internal/config"
	"github.com/vasiliy-maslov/boutique-api/internal/contact"
	"github.com/vasiliy-maslov/boutique-api/internal/db"
	"github.com/vasiliy-maslov/boutique-api/internal/events"
	boutiqueHttp "github.com/vasiliy-maslov/boutique-api/internal/handler/http"
	"github.com/vasiliy-maslov/boutique-api/internal/mail"
	"github.com/vasiliy-maslov/boutique-api/internal/order"
	"github.com/vasiliy-maslov/boutique-api/internal/product"
	"github.com/vasiliy-maslov/boutique-api/internal/stats"
	"github.com/vasiliy-maslov/boutique-api/internal/tracing"
	"github.com/vasiliy-maslov/boutique-api/internal/translate"
	"github.com/vasiliy-maslov/boutique-api/internal/upload"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	setupLogger(cfg)
	log.Info().Str("env", cfg.App.Env).Msg("Starting boutique-api...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.App.Name, cfg.OtelEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up tracing")
	}

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := pg.ApplyMigrations(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	transactor := db.NewTransactor(pg.Pool)

	productRepository := product.NewRepository(pg.Pool)
	ledger := product.NewLedger(pg.Pool, transactor)
	orderRepository := order.NewRepository(pg.Pool)
	userRepository := admin.NewRepository(pg.Pool)

	mailer := newMailer(cfg.SMTP)
	publisher := newPublisher(cfg.Kafka)

	productSvc := product.NewService(productRepository, transactor, newTranslator(cfg.Translate))
	orderSvc := order.NewService(orderRepository, productRepository, ledger, transactor, mailer, publisher)
	adminSvc := admin.NewService(userRepository, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	contactSvc := contact.NewService(mailer, cfg.SMTP.Inbox)
	uploadSvc := upload.NewService(newImageStorage(cfg.Cloudinary))

	statsDB := sqlx.NewDb(stdlib.OpenDBFromPool(pg.Pool), "pgx")
	statsSvc := stats.NewService(stats.NewRepository(statsDB), newExternalUsers(ctx, cfg.FirebaseCredentials))

	if err := adminSvc.EnsureAdmin(ctx, cfg.Auth.BootstrapUser, cfg.Auth.BootstrapPass); err != nil {
		log.Fatal().Err(err).Msg("Failed to bootstrap admin account")
	}

	router := boutiqueHttp.NewRouter(log.Logger, adminSvc, cfg.App.CORSOrigins, boutiqueHttp.Handlers{
		Orders:   boutiqueHttp.NewOrderHandler(orderSvc),
		Products: boutiqueHttp.NewProductHandler(productSvc),
		Auth:     boutiqueHttp.NewAuthHandler(adminSvc),
		Admin:    boutiqueHttp.NewAdminHandler(statsSvc, contactSvc, uploadSvc),
	})

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.App.Port).Msg("Could not listen")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close event publisher")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to flush traces")
	}
	if err := statsDB.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close stats database handle")
	}
	pg.Close()

	log.Info().Msg("boutique-api stopped gracefully.")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil || cfg.App.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logger := zerolog.New(os.Stdout)
	if !cfg.IsProduction() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	log.Logger = logger.With().Timestamp().Str("service", cfg.App.Name).Logger()
}

func newMailer(cfg config.SMTPConfig) order.Mailer {
	if cfg.Username == "" {
		log.Warn().Msg("SMTP credentials not set, outgoing mail is only logged")
		return mail.LogSender{}
	}
	sender, err := mail.NewSMTPSender(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure SMTP")
	}
	return sender
}

func newPublisher(cfg config.KafkaConfig) events.Publisher {
	if len(cfg.Brokers) == 0 {
		log.Info().Msg("No Kafka brokers configured, order events are not published")
		return events.NopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

func newTranslator(cfg config.TranslateConfig) product.Translator {
	if cfg.URL == "" {
		log.Warn().Msg("No translation service configured, catalog texts are kept in English")
		return translate.Passthrough{}
	}
	return translate.NewClient(cfg)
}

func newImageStorage(cloudinaryURL string) upload.Storage {
	if cloudinaryURL == "" {
		log.Warn().Msg("CLOUDINARY_URL not set, image uploads will fail")
		return upload.Unconfigured{}
	}
	storage, err := upload.NewCloudinaryStorage(cloudinaryURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure Cloudinary")
	}
	return storage
}

func newExternalUsers(ctx context.Context, credentials string) stats.ExternalUserCounter {
	if credentials == "" {
		return nil
	}
	users, err := stats.NewFirebaseUsers(ctx, credentials)
	if err != nil {
		log.Warn().Err(err).Msg("Firebase unavailable, storefront users are not counted")
		return nil
	}
	return users
}
