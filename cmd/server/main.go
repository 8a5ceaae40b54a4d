package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-booking/internal/config"
	"github.com/iliyamo/movie-booking/internal/database"
	"github.com/iliyamo/movie-booking/internal/handler"
	"github.com/iliyamo/movie-booking/internal/logging"
	"github.com/iliyamo/movie-booking/internal/middleware"
	"github.com/iliyamo/movie-booking/internal/notify"
	"github.com/iliyamo/movie-booking/internal/pricing"
	"github.com/iliyamo/movie-booking/internal/repository"
	"github.com/iliyamo/movie-booking/internal/router"
	"github.com/iliyamo/movie-booking/internal/service"
)

// redisPinger lets /readyz probe Redis like the database.
type redisPinger struct{ rdb *redis.Client }

func (p redisPinger) PingContext(ctx context.Context) error { return p.rdb.Ping(ctx).Err() }

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := logging.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("mysql")
	}
	defer db.Close()
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migrate")
		}
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable: passcodes kept in memory, rate limit and cache disabled")
	} else {
		defer rdb.Close()
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	email, sms := senders(cfg, log)
	gate, channels, memStore, err := buildGate(cfg, rdb, email, sms, log)
	if err != nil {
		log.WithError(err).Fatal("verification")
	}

	dispatcher, closeNotify, err := buildDispatcher(ctx, cfg, notify.NewDirect(log, email, sms), log)
	if err != nil {
		log.WithError(err).Fatal("notifications")
	}
	defer closeNotify()

	loc, err := time.LoadLocation(cfg.Booking.TimeZone)
	if err != nil {
		log.WithError(err).WithField("tz", cfg.Booking.TimeZone).Fatal("booking timezone")
	}

	var verifier service.ContactVerifier
	if cfg.Booking.RequireVerified {
		verifier = gate
	}
	bookings := service.NewBookingService(
		repository.NewBookingRepo(db),
		pricing.New(cfg.Booking.SeatRateCents),
		dispatcher,
		verifier,
		service.Options{
			NotifyTimeout:  cfg.Booking.NotifyTimeout,
			VerifyChannels: channels,
			Location:       loc,
			StatsRecent:    cfg.Booking.StatsRecent,
		},
		log,
	)

	sched, err := startJobs(cfg, tokens, memStore, log)
	if err != nil {
		log.WithError(err).Fatal("scheduler")
	}
	defer func() { _ = sched.Shutdown() }()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(echomw.Recover())

	deps := map[string]handler.Pinger{"mysql": db}
	if rdb != nil {
		deps["redis"] = redisPinger{rdb}
	}
	router.RegisterRoutes(e, deps)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg.Auth, users, tokens, log), cfg.Auth.JWTSecret)

	bookingHandler := handler.NewBookingHandler(bookings, log)
	router.RegisterBookings(e, bookingHandler, cfg.Auth.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb, log))
	router.RegisterAdmin(e, bookingHandler, cfg.Auth.JWTSecret, middleware.NewRedisCache(cfg.Cache, rdb, log))
	router.RegisterOTP(e, handler.NewOTPHandler(gate, channels, log), middleware.NewTokenBucket(cfg.RateLimit.ForOTP(), rdb, log))
	router.RegisterPublic(e, handler.NewPaymentHandler(cfg.Payment.UPIPayee, cfg.Payment.UPIName, cfg.Payment.QRSize, log))

	go func() {
		addr := ":" + cfg.Port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "notify": cfg.Notify.Transport}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
