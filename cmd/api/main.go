package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"barberia-backend/internal/auth"
	"barberia-backend/internal/booking"
	"barberia-backend/internal/cache"
	"barberia-backend/internal/config"
	"barberia-backend/internal/db"
	"barberia-backend/internal/handlers"
	"barberia-backend/internal/jobs"
	"barberia-backend/internal/logging"
	"barberia-backend/internal/memstore"
	"barberia-backend/internal/middleware"
	"barberia-backend/internal/notifications"
	"barberia-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, logCloser := logging.NewServer(os.Stdout, cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		appts    booking.AppointmentRepository
		calendar booking.CalendarRepository
		catalog  booking.CatalogRepository
		users    auth.UserRepository
		sessions auth.SessionRepository
	)
	if cfg.MongoURI == "memory" && cfg.IsDevelopment() {
		store := memstore.New()
		appts, calendar, catalog, users, sessions = store, store, store, store, store
		logger.Warn("using in-memory store, data is lost on restart")
	} else {
		client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			logger.Error("mongo connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("mongo connected", slog.String("db", cfg.MongoDB))
		defer client.Disconnect(context.Background())

		if err := db.EnsureIndexes(ctx, cols); err != nil {
			logger.Error("index creation failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		bookingRepo := booking.NewRepository(cols.Appointments, cols.Schedules, cols.DaysOff, cols.Services)
		authRepo := auth.NewRepository(cols.Users, cols.Sessions)
		appts, calendar, catalog = bookingRepo, bookingRepo, bookingRepo
		users, sessions = authRepo, authRepo
	}

	var cacheStore cache.Cache
	var memCache *cache.Memory
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisCache.Close()
		if cfg.RedisURL != "" {
			logger.Info("redis connected (url)")
		} else {
			logger.Info("redis connected", slog.String("addr", cfg.RedisAddr))
		}
		cacheStore = redisCache
	} else {
		memCache = cache.NewMemory()
		cacheStore = memCache
		logger.Info("redis not configured, using process cache")
	}

	bookings := booking.NewService(appts, calendar, catalog, booking.Options{
		Location:    cfg.Timezone,
		StepMinutes: cfg.SlotStepMinutes,
		Cache:       cacheStore,
		CacheTTL:    cfg.CacheTTL(),
		Logger:      logger,
	})
	tokens := &auth.Manager{
		Secret: []byte(cfg.SessionSecret),
		Issuer: "barberia-backend",
	}
	authService := auth.NewService(users, sessions, tokens, cfg.SessionTTL(), logger)

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	server := &handlers.Server{
		Cfg:            cfg,
		Booking:        bookings,
		Auth:           authService,
		Val:            validation.New(),
		Log:            logger,
		BookingLimiter: middleware.NewRateLimiter(cfg.RateLimitBookings, window),
		LoginLimiter:   middleware.NewRateLimiter(cfg.RateLimitLogin, window),
	}

	mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.FrontendOrigin, cfg.BrevoSandbox)
	if mailer == nil {
		logger.Info("brevo mailer disabled")
	} else {
		server.Mailer = mailer
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	}

	background := []jobs.Job{
		{Name: "token-cleanup", Interval: time.Duration(cfg.TokenCleanupInterval) * time.Minute, Run: jobs.TokenCleanup(authService, logger)},
		{Name: "booking-limiter-sweep", Interval: window, Run: jobs.Sweep(server.BookingLimiter)},
		{Name: "login-limiter-sweep", Interval: window, Run: jobs.Sweep(server.LoginLimiter)},
	}
	if mailer != nil {
		background = append(background, jobs.Job{
			Name:     "reminders",
			Interval: time.Duration(cfg.ReminderIntervalMin) * time.Minute,
			Run:      jobs.Reminders(bookings, mailer, logger),
		})
	}
	if memCache != nil {
		background = append(background, jobs.Job{
			Name:     "cache-cleanup",
			Interval: time.Minute,
			Run: func(ctx context.Context) error {
				memCache.Cleanup()
				return nil
			},
		})
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigin))
	r.Use(chiMiddleware.Timeout(30 * time.Second))
	server.Mount(r)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	jobCtx, stopJobs := context.WithCancel(context.Background())
	runner := jobs.NewRunner(logger, background...)
	runner.Start(jobCtx)

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	stopJobs()
	runner.Wait()
}
