// Command gateway runs the Ingest Gateway (spec §4.1): the HTTP entry
// point that validates uploads, writes to the Object Store, and
// dispatches work onto the Queue.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/lore-anchor/protect/internal/app"
	"github.com/lore-anchor/protect/internal/auth"
	"github.com/lore-anchor/protect/internal/catalog"
	"github.com/lore-anchor/protect/internal/config"
	"github.com/lore-anchor/protect/internal/database"
	"github.com/lore-anchor/protect/internal/logger"
	"github.com/lore-anchor/protect/internal/observability"
	"github.com/lore-anchor/protect/internal/queue"
	"github.com/lore-anchor/protect/internal/quota"
	"github.com/lore-anchor/protect/internal/router"
	"github.com/lore-anchor/protect/internal/storage"
)

func main() {
	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatal("Failed to load gateway configuration:", err)
	}

	logger.Init("lore-anchor-gateway", cfg.Env, logger.ParseLevelFromEnv())

	shutdownOTel, err := observability.InitOTel(context.Background(), "lore-anchor-gateway")
	if err != nil {
		log.Printf("Warning: failed to initialize OpenTelemetry: %v", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	repo := catalog.NewRepository(db)

	var q queue.Queue
	if cfg.DevMode {
		q = queue.NewMemQueue(256)
		log.Println("Dev mode: using in-memory queue stub")
	} else {
		redisQueue, err := queue.NewRedisQueue(cfg.RedisURL, cfg.QueueName, cfg.DeadLetterQueue)
		if err != nil {
			log.Fatal("Failed to connect to queue broker:", err)
		}
		q = redisQueue
	}

	var store storage.ObjectStore
	if cfg.DevMode && cfg.Storage.Bucket == "" {
		store = storage.NewMemStore()
		log.Println("Dev mode: using in-memory object store stub")
	} else {
		s3Store, err := storage.NewS3Store(cfg.Storage)
		if err != nil {
			log.Fatal("Failed to configure object store:", err)
		}
		store = s3Store
	}

	quotaChecker := quota.NewChecker(repo, cfg.FreeTierMonthly)
	verifier := auth.NewVerifier(cfg.AuthJWTSecret)
	appCtx := app.New(cfg, repo, q, store, quotaChecker, verifier)

	r := router.Setup(db, appCtx)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// The listen loop and the signal-triggered shutdown run as two
	// members of the same errgroup: when either returns an error, the
	// group's context is cancelled for the other, so a failed listener also
	// unblocks the signal wait below instead of hanging the process.
	g, gCtx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		log.Printf("Gateway starting on port %s (env=%s)", cfg.Port, cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			log.Println("Shutting down gateway...")
		case <-gCtx.Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	})

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Gateway exited with error:", err)
	}
	log.Println("Gateway exited")
}
