package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/doctoc/doctoc/internal/config"
	"github.com/doctoc/doctoc/internal/domain/booking"
	"github.com/doctoc/doctoc/internal/domain/directory"
	"github.com/doctoc/doctoc/internal/domain/scheduling"
	"github.com/doctoc/doctoc/internal/platform/auth"
	"github.com/doctoc/doctoc/internal/platform/cache"
	"github.com/doctoc/doctoc/internal/platform/medplatform"
	"github.com/doctoc/doctoc/internal/platform/middleware"
	"github.com/doctoc/doctoc/internal/platform/telemetry"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "doctoc-server",
		Short: "Patient appointment booking API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(datesCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func datesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dates",
		Short: "List the bookable dates of a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, _ := cmd.Flags().GetString("doctor")
			from, _ := cmd.Flags().GetString("from")
			if doctorID == "" {
				return fmt.Errorf("--doctor is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := newPlatformClient(cfg, zerolog.Nop())
			return printDates(cmd.Context(), cmd.OutOrStdout(), cfg, doctorSchedules{next: client}, doctorID, from, time.Now())
		},
	}
	cmd.Flags().String("doctor", "", "Doctor identifier")
	cmd.Flags().String("from", "", "Reference date (YYYY-MM-DD), defaults to today")
	return cmd
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Show the availability of a doctor on a date",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, _ := cmd.Flags().GetString("doctor")
			date, _ := cmd.Flags().GetString("date")
			if doctorID == "" || date == "" {
				return fmt.Errorf("--doctor and --date are required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := newPlatformClient(cfg, zerolog.Nop())
			return printSlots(cmd.Context(), cmd.OutOrStdout(), cfg, client, doctorID, date)
		},
	}
	cmd.Flags().String("doctor", "", "Doctor identifier")
	cmd.Flags().String("date", "", "Date (YYYY-MM-DD)")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a patient access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if userID == "" {
				return fmt.Errorf("--user is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(jwtConfig(cfg), auth.User{ID: userID, Email: email, Name: name}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("user", "", "Account identifier (token subject)")
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("name", "", "Account display name")
	cmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	return cmd
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
	}
}

func newPlatformClient(cfg *config.Config, logger zerolog.Logger) *medplatform.Client {
	return medplatform.New(cfg.PlatformBaseURL,
		medplatform.WithAPIKey(cfg.PlatformAPIKey),
		medplatform.WithTimeout(cfg.PlatformTimeout),
		medplatform.WithLogger(logger),
	)
}

func printDates(ctx context.Context, w io.Writer, cfg *config.Config, schedules booking.ScheduleProvider, doctorID, from string, now time.Time) error {
	loc := cfg.Location()
	ref := now.In(loc)
	if from != "" {
		t, err := scheduling.ParseDate(from, loc)
		if err != nil {
			return err
		}
		ref = t
	}
	sched, err := schedules.WeeklySchedule(ctx, cfg.OrganizationID, doctorID)
	if err != nil {
		return err
	}
	return writeJSON(w, scheduling.GenerateBookableDates(sched, cfg.BookingHorizonDays, ref))
}

type slotSource interface {
	booking.ScheduleProvider
	booking.BusyRangeProvider
}

func printSlots(ctx context.Context, w io.Writer, cfg *config.Config, src slotSource, doctorID, date string) error {
	dayKey, err := scheduling.DayKey(date)
	if err != nil {
		return err
	}
	sched, err := src.WeeklySchedule(ctx, cfg.OrganizationID, doctorID)
	if err != nil {
		return err
	}
	busy, err := src.BusyRanges(ctx, cfg.OrganizationID, dayKey)
	if err != nil {
		return err
	}
	calc := scheduling.Calculator{Location: cfg.Location(), StepMinutes: cfg.SlotStepMinutes}
	slots, err := calc.Slots(sched, date, busy)
	if err != nil {
		return err
	}
	return writeJSON(w, slots)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newScheduleStore picks Redis when REDIS_URL is set and an in-process map
// otherwise. An unreachable Redis fails startup rather than silently
// degrading to a per-instance cache.
func newScheduleStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Store, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("schedule cache: in-memory")
		return cache.NewMemoryStore(), func() {}, nil
	}
	rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("schedule cache: redis")
	return cache.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	loc := cfg.Location()

	ctx := context.Background()

	// Telemetry
	tel, err := telemetry.New(ctx, telemetry.TelemetryConfig{
		ServiceName:    "doctoc-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTelEndpoint,
		TracingEnabled: telemetry.BoolPtr(cfg.OTelEnabled),
		SampleRate:     cfg.OTelSamplingRatio,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}

	// Medical platform
	client := newPlatformClient(cfg, logger.With().Str("component", "medplatform").Logger())

	store, closeStore, err := newScheduleStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer closeStore()
	schedules := doctorSchedules{next: cache.NewScheduleCache(store, client, cfg.ScheduleCacheTTL, logger)}

	// Booking
	coordOpts := []booking.CoordinatorOption{
		booking.WithCoordinatorLogger(logger.With().Str("component", "coordinator").Logger()),
	}
	if cfg.LocationID == "" {
		coordOpts = append(coordOpts, booking.WithLocationLookup(locationLookup(client)))
	}
	coordinator := booking.NewCoordinator(booking.CoordinatorConfig{
		OrganizationID: cfg.OrganizationID,
		LocationID:     cfg.LocationID,
		Location:       loc,
	}, patientResolver{client: client}, appointmentCreator{client: client}, coordOpts...)

	sessions := booking.NewSessionStore(cfg.SessionTTL, time.Now)
	bookingSvc := booking.NewService(booking.Config{
		OrganizationID:  cfg.OrganizationID,
		Location:        loc,
		HorizonDays:     cfg.BookingHorizonDays,
		StepMinutes:     cfg.SlotStepMinutes,
		MaxMotiveLength: cfg.MaxMotiveLength,
	}, schedules, client, client, coordinator, sessions,
		booking.WithLogger(logger.With().Str("component", "booking").Logger()),
		booking.WithEventRecorder(tel),
	)

	directorySvc := directory.NewService(cfg.OrganizationID, doctorSource{client: client}, client, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(tel.TracingMiddleware())
	e.Use(middleware.Logger(logger))
	e.Use(tel.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/metrics", tel.PrometheusHandler())

	// API group: auth first so the rate limiter can key by user.
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		apiV1.Use(auth.DevAuthMiddleware(jwtConfig(cfg)))
	} else {
		apiV1.Use(auth.OptionalJWTMiddleware(jwtConfig(cfg)))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	booking.NewHandler(bookingSvc).RegisterRoutes(apiV1)
	directory.NewHandler(directorySvc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("org", cfg.OrganizationID).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("telemetry shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
