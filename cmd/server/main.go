package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/train-station/internal/cache"
	"github.com/iliyamo/train-station/internal/config"
	"github.com/iliyamo/train-station/internal/database"
	"github.com/iliyamo/train-station/internal/handler"
	"github.com/iliyamo/train-station/internal/middleware"
	"github.com/iliyamo/train-station/internal/queue"
	"github.com/iliyamo/train-station/internal/repository"
	"github.com/iliyamo/train-station/internal/reservation"
	"github.com/iliyamo/train-station/internal/router"
)

func main() {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err == nil {
		log.Printf("loaded .env")
	}
	cfg := config.Load()

	db, err := database.Open(database.Options{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatalf("database: %v", err)
		}
		log.Printf("database schema is up to date")
	}

	// Redis is optional: without it the availability cache and the rate
	// limiter are disabled.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Printf("redis unavailable; caching and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	orders := repository.NewOrderRepo(db)
	opts := []reservation.Option{}
	if c := cache.NewAvailabilityCache(config.LoadCacheConfig(), rdb); c != nil {
		opts = append(opts, reservation.WithCache(c))
	}
	qcfg := config.LoadQueueConfig()
	if qcfg.EventsEnabled {
		opts = append(opts,
			reservation.WithPublisher(queue.NewPublisher(qcfg.URL, qcfg.PublishTimeout)),
			reservation.WithPublishTimeout(qcfg.PublishTimeout),
		)
		go queue.StartOrderConsumer(qcfg)
	}
	svc := reservation.NewService(orders, opts...)

	trainH := handler.NewTrainHandler(repository.NewTrainRepo(db))
	journeyH := handler.NewJourneyHandler(repository.NewJourneyRepo(db), svc)
	orderH := handler.NewOrderHandler(svc, orders)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())

	router.RegisterRoutes(e, handler.Health(db), trainH, journeyH)
	router.RegisterCustomer(e, orderH, cfg.JWTSecret, middleware.NewSeatLimiter(config.LoadRateLimitConfig(), rdb))
	router.RegisterAdmin(e, trainH, journeyH, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-stop.Done()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Orders committed just before shutdown still get their events.
	svc.Wait()
}
