// Command worker runs the Protection Worker (spec §4.4): the long-lived
// consumer of Work Queue envelopes that executes the five-stage
// protection pipeline and writes terminal state back to the Catalog.
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

	"golang.org/x/sync/errgroup"

	"github.com/lore-anchor/protect/internal/catalog"
	"github.com/lore-anchor/protect/internal/config"
	"github.com/lore-anchor/protect/internal/database"
	"github.com/lore-anchor/protect/internal/logger"
	"github.com/lore-anchor/protect/internal/observability"
	"github.com/lore-anchor/protect/internal/perturb"
	"github.com/lore-anchor/protect/internal/provenance"
	"github.com/lore-anchor/protect/internal/queue"
	"github.com/lore-anchor/protect/internal/storage"
	"github.com/lore-anchor/protect/internal/worker"
)

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		log.Fatal("Failed to load worker configuration:", err)
	}

	logger.Init("lore-anchor-worker", cfg.Env, logger.ParseLevelFromEnv())

	shutdownOTel, err := observability.InitOTel(context.Background(), "lore-anchor-worker")
	if err != nil {
		log.Printf("Warning: failed to initialize OpenTelemetry: %v", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
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

	var signer *provenance.Signer
	if cfg.SigningCertPEM == "" || cfg.SigningKeyPEM == "" {
		// Only reachable when cfg.DevMode is true: config.LoadWorker
		// refuses to start otherwise (spec §9 Open Question).
		signer, err = provenance.NewDevSigner("dev-key")
		if err != nil {
			log.Fatal("Failed to mint dev signing key:", err)
		}
		log.Println("Dev mode: using an ephemeral, non-production signing key")
	} else {
		signer, err = provenance.NewSigner(cfg.SigningKeyPEM, "primary")
		if err != nil {
			log.Fatal("Failed to load signing key:", err)
		}
	}

	perturbCfg := worker.WarmUp(perturb.Config{
		Epsilon: cfg.PerturbationEpsilon,
		Steps:   cfg.PerturbationSteps,
		Variant: perturb.VariantGradient,
	})

	w := worker.New(worker.Config{
		Repo:          repo,
		Queue:         q,
		Store:         store,
		Signer:        signer,
		PerturbConfig: perturbCfg,
	})

	healthSrv := worker.HealthServer(w, ":"+cfg.HealthPort)

	// The health endpoint and the outer processing loop run as two
	// members of one errgroup so a crash in either is observed by the
	// same g.Wait() that gates process exit, while shutdown sequencing
	// (drain the loop, then stop serving health checks) stays explicit
	// below rather than folded into group cancellation.
	var g errgroup.Group
	g.Go(func() error {
		log.Printf("Worker health endpoint on port %s", cfg.HealthPort)
		if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	g.Go(func() error {
		w.Run(ctx)
		return nil
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutdown signal received, draining in-flight task")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := worker.Shutdown(shutdownCtx, healthSrv); err != nil {
		log.Printf("Health endpoint forced to shutdown: %v", err)
	}

	if err := g.Wait(); err != nil {
		log.Printf("Worker loop exited with error: %v", err)
	}
	log.Println("Worker exited")
}
