package main // Entry point package

import (
	"context"
	"errors"
	"log" // Logging library
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"                  // .env loader for local runs
	"github.com/labstack/echo/v4"               // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/watch-party/internal/config"     // Internal config loader
	"github.com/iliyamo/watch-party/internal/database"   // MySQL connection and schema
	"github.com/iliyamo/watch-party/internal/handler"    // HTTP handlers
	"github.com/iliyamo/watch-party/internal/middleware" // cache and rate limit middleware
	"github.com/iliyamo/watch-party/internal/party"      // membership manager
	"github.com/iliyamo/watch-party/internal/queue"      // party event consumer
	"github.com/iliyamo/watch-party/internal/repository" // DB repositories
	"github.com/iliyamo/watch-party/internal/router"     // Internal router setup
	"github.com/iliyamo/watch-party/internal/service"    // event publisher
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load() // Load environment config

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			log.Fatalf("database: schema: %v", err)
		}
	}

	// Redis is optional; without it caching and rate limiting are pass-through.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	invalidator := middleware.NewCacheInvalidator(cacheCfg, rdb)

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	movies := repository.NewMovieRepo(db)
	tickets := repository.NewTicketRepo(db)
	parties := repository.NewPartyRepo(db)

	manager := party.NewManager(cfg.Party, party.NewSQLStore(parties), tickets, service.NewPartyEventPublisher(cfg.Queue))

	authH := handler.NewAuthHandler(cfg, users, tokens)
	movieH := handler.NewMovieHandler(movies, invalidator)
	ticketH := handler.NewTicketHandler(tickets, movies)
	partyH := handler.NewPartyHandler(manager, parties, invalidator, cfg.Party.DefaultParticipants)
	adminH := handler.NewAdminHandler(parties, movies, users, tickets, invalidator)

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterPublic(e, movieH, partyH, router.Caches{
		Movies:  middleware.NewRedisCache(cacheCfg, rdb, middleware.CacheGroupMovies),
		Parties: middleware.NewRedisCache(cacheCfg, rdb, middleware.CacheGroupParties),
	})
	router.RegisterClient(e, partyH, ticketH, movieH, cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadMembershipRateLimitConfig(), rdb))
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	if cfg.Queue.ConsumerEnabled {
		go func() {
			if err := queue.StartPartyConsumer(ctx, cfg.Queue); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("queue: consumer stopped: %v", err)
			}
		}()
	}

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
