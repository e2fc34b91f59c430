package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/cache"
	"marketplace/internal/config"
	"marketplace/internal/database"
	"marketplace/internal/monitor"
	"marketplace/internal/notify"
	"marketplace/internal/redis"
	"marketplace/internal/repository"
	"marketplace/internal/search"
	"marketplace/internal/service/order"
	"marketplace/internal/service/pricing"
	"marketplace/internal/task"
	"marketplace/internal/worker"
	"marketplace/pkg/log"
	"marketplace/pkg/queue"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}

	if err := database.Init(cfg); err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close()

	if err := redis.Init(cfg); err != nil {
		log.WithError(err).Fatal("Failed to initialize redis")
	}
	defer redis.Close()

	appCache, err := cache.New(redis.GetClient(), cfg.Cache)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize cache")
	}

	var searchSvc *search.Service
	if cfg.Search.Enabled {
		searchSvc, err = search.New(cfg.Search)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize search")
		}
	}

	telegram, err := notify.NewTelegram(cfg.Telegram)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize telegram sender")
	}

	var broker queue.Broker
	switch cfg.Queue.Driver {
	case "memory":
		log.Warn("Using in-memory task broker; jobs do not survive restarts")
		broker = queue.NewMemoryBroker(cfg.Queue.VisibilityTimeout)
	default:
		broker = queue.NewRedisBroker(redis.GetClient(), cfg.Queue.Namespace, cfg.Queue.VisibilityTimeout)
	}
	defer broker.Close()

	dispatcher := task.NewDispatcher(broker)

	db := database.GetDB()
	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	cartRepo := repository.NewCartRepository(db)
	discountRepo := repository.NewDiscountRepository(db)

	calculator := pricing.NewCalculator(productRepo, discountRepo)
	orderSvc := order.NewService(orderRepo, calculator, dispatcher)

	handlers := worker.NewHandlers(
		orderSvc,
		orderRepo,
		userRepo,
		tenantRepo,
		productRepo,
		cartRepo,
		dispatcher,
		notify.LogMailer{},
		notify.LogSMSSender{},
		telegram,
		searchSvc,
		appCache,
	)

	pool := queue.NewWorkerPool(broker, queue.WorkerOptions{
		Retry: queue.RetryPolicy{
			MaxRetries: cfg.Queue.MaxRetries,
			Base:       cfg.Queue.BackoffBase,
			Max:        cfg.Queue.BackoffMax,
		},
		Concurrency: cfg.Queue.Concurrency,
		SoftLimit:   cfg.Queue.SoftTimeLimit,
		HardLimit:   cfg.Queue.HardTimeLimit,
		MaxTasks:    cfg.Queue.MaxTasksPerWorker,
	})
	pool.OnResult = monitor.ObserveTask
	handlers.Register(pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)

	scheduler := queue.NewScheduler(dispatcher.Enqueue)
	for _, entry := range task.Schedule() {
		if err := scheduler.Add(entry.Spec, entry.Task); err != nil {
			log.WithError(err).Fatalf("Failed to schedule task %s", entry.Task)
		}
	}
	scheduler.Start()

	go watchQueueDepth(ctx, broker)

	log.Info("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")
	scheduler.Stop()
	cancel()
	pool.Stop()
	log.Info("Worker exited")
}

// watchQueueDepth feeds the queue depth gauge every 15 seconds.
func watchQueueDepth(ctx context.Context, broker queue.Broker) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, queueName := range queue.Queues() {
				depth, err := broker.Len(ctx, queueName)
				if err != nil {
					continue
				}
				monitor.SetQueueDepth(queueName, depth)
			}
		}
	}
}
