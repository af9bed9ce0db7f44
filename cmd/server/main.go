package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/ai-training/internal/config"
	"github.com/suPer8Hu/ai-training/internal/db"
	"github.com/suPer8Hu/ai-training/internal/httpapi"
	"github.com/suPer8Hu/ai-training/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-training/internal/store/rabbitmq"
	"github.com/suPer8Hu/ai-training/internal/store/redisstore"
	"github.com/suPer8Hu/ai-training/internal/trainer"
	"github.com/suPer8Hu/ai-training/internal/training"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDriver, cfg.DBDSN, &training.Module{})
	repo := training.NewRepo(gdb)
	queue := training.NewQueue(repo)

	// every variant trains through the simulator for now
	reg := trainer.NewRegistry()
	reg.SetFallback(trainer.SimulatedFactory(cfg.StepCost))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []training.WorkerOption{training.WithPollInterval(cfg.PollInterval)}

	// redis status cache (optional)
	var cache handlers.StatusCache
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.StatusCacheTTL)
	pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
	if err := rds.Ping(pingCtx); err != nil {
		log.Printf("redis unavailable addr=%s, status cache disabled: %v", cfg.RedisAddr, err)
		_ = rds.Close()
	} else {
		defer rds.Close()
		cache = rds
		opts = append(opts, training.WithNotifier(rds))
	}
	cancelPing()

	// rabbitMQ status events (optional)
	pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitEventsQueue)
	if err != nil {
		log.Printf("rabbit unavailable, status events disabled: %v", err)
	} else {
		defer pub.Close()
		opts = append(opts, training.WithNotifier(pub))
	}

	w := training.NewWorker(queue, repo, reg, opts...)
	restored, err := w.Recover(ctx, repo)
	if err != nil {
		log.Fatalf("recover training queue: %v", err)
	}
	log.Printf("training queue recovered, restored=%d", restored)

	svc := training.NewService(repo, queue)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(cfg, handlers.NewHandler(svc, cache)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerErr := make(chan error, 1)
	go func() { workerErr <- w.Run(ctx) }()

	go func() {
		log.Printf("http listening addr=%s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	var runErr error
	workerDone := false
	select {
	case <-ctx.Done():
	case runErr = <-workerErr:
		workerDone = true
		if runErr != nil {
			// the worker only returns early on a failed status write
			log.Fatalf("training worker halted: %v", runErr)
		}
	}
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}

	// an in-flight module still runs to a terminal status
	if !workerDone {
		if err := <-workerErr; err != nil {
			log.Printf("training worker stopped with error: %v", err)
		}
	}
}
