package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/secatt/adapters/auth"
	"github.com/layer-3/secatt/adapters/clock"
	"github.com/layer-3/secatt/adapters/events"
	"github.com/layer-3/secatt/adapters/identity"
	"github.com/layer-3/secatt/adapters/store"
	"github.com/layer-3/secatt/adapters/tokenizer"
	"github.com/layer-3/secatt/internal/config"
	"github.com/layer-3/secatt/ports"
	"github.com/layer-3/secatt/service"
	"github.com/layer-3/secatt/transport/http"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version  = "dev"
	revision = "none"

	databaseURL string
)

func main() {
	c := &cobra.Command{
		Use:     "secatt",
		Short:   "QR attendance session service",
		Version: fmt.Sprintf("%s - build %.7s - %s", version, revision, runtime.Version()),
		Args:    cobra.NoArgs,
	}
	c.AddCommand(serveCmd)
	c.AddCommand(keygenCmd)

	migrateCmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	c.AddCommand(migrateCmd)

	if err := c.Execute(); err != nil {
		logrus.Fatalf("%+v", err)
	}
}

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return errors.Wrap(err, "could not load configuration")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, newLogger(cfg))
		},
	}

	//
	keygenCmd = &cobra.Command{
		Use:   "keygen",
		Short: "Generate a QR token key for QR_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := tokenizer.GenerateKey()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tokenizer.EncodeKey(key))
			return err
		},
	}

	//
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the attendance tables in PostgreSQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseURL == "" {
				return errors.New("database url not set")
			}

			db, err := sql.Open("postgres", databaseURL)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			return store.NewPostgresStore(db).EnsureSchema(cmd.Context())
		},
	}
)

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Production() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	key, err := loadKey(cfg, log)
	if err != nil {
		return err
	}

	tk, err := tokenizer.NewAEADTokenizer(key)
	if err != nil {
		return errors.Wrap(err, "could not create tokenizer")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return errors.Wrap(err, "could not parse redis url")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	attendanceStore, closeStore, err := openStore(ctx, cfg, redisClient)
	if err != nil {
		return err
	}
	defer closeStore.Close()

	publisher, err := events.NewBackend(redisClient, events.NewLogrusAdapter(log))
	if err != nil {
		return errors.Wrap(err, "could not create event publisher")
	}
	defer publisher.Close()

	var verifier ports.IdentityVerifier
	if cfg.RFIDCards != "" {
		cards, err := identity.ParseCards(cfg.RFIDCards)
		if err != nil {
			return errors.Wrap(err, "could not parse RFID_CARDS")
		}
		verifier = identity.NewCardRegistry(cards)
	}

	clk := clock.NewSystemClock()
	qr := service.NewQRService(tk, clk, log, service.QROptions{
		DefaultTTL:      cfg.DefaultTTL(),
		MaxTTL:          cfg.MaxTTL(),
		RequireLocation: cfg.QRRequireLocation,
	})
	attendance := service.NewAttendanceService(qr, attendanceStore, events.NewWatermillPublisher(publisher), verifier, clk, log)

	go qr.RunSweeper(ctx, cfg.SweepInterval())

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := http.SetupRouter(attendance, auth.NewJWTVerifier([]byte(cfg.JWTSecret)), log, http.RouterOptions{
		BindLocation: cfg.QRBindLocation,
	})

	srv := &nethttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "store": cfg.StoreDriver}).Info("secatt listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadKey(cfg *config.Config, log logrus.FieldLogger) ([]byte, error) {
	if cfg.QRKey != "" {
		key, err := tokenizer.ParseKey(cfg.QRKey)
		return key, errors.Wrap(err, "invalid QR_KEY")
	}

	log.Warn("QR_KEY not set, generating an ephemeral key; QR codes will not survive a restart")
	key, err := tokenizer.GenerateKey()
	return key, errors.Wrap(err, "could not generate QR key")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (ports.AttendanceStore, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.StoreRedis:
		return store.NewRedisStore(redisClient, cfg.RecordTTL()), nopCloser{}, nil
	case config.StorePostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "could not open database")
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, errors.Wrap(err, "could not prepare database")
		}
		return pg, db, nil
	default:
		return store.NewMemoryStore(), nopCloser{}, nil
	}
}
