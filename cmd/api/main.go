package main

import (
	"context"
	"fmt"
	"log"

	"github.com/seanyjeong/max-meeting-sub000/config"
	"github.com/seanyjeong/max-meeting-sub000/internal/handler"
	"github.com/seanyjeong/max-meeting-sub000/internal/progress"
	"github.com/seanyjeong/max-meeting-sub000/internal/queue"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	"github.com/seanyjeong/max-meeting-sub000/internal/server"
	"github.com/seanyjeong/max-meeting-sub000/internal/services"
	"github.com/seanyjeong/max-meeting-sub000/internal/storage"
	"github.com/seanyjeong/max-meeting-sub000/pkg/database"
	"github.com/seanyjeong/max-meeting-sub000/pkg/logger"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.LoadConfig()
	l := logger.New(cfg.AppMode)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	recordings := repository.NewRecordingRepository(db)
	segments := repository.NewSegmentRepository(db)
	tasks := repository.NewTaskRepository(db)
	logs := repository.NewProcessingLogRepository(db)

	chunkStore := storage.NewChunkStore()
	jobQueue := queue.NewRedisQueue(redisClient)
	broadcaster := progress.NewRedisBroadcaster(redisClient)
	hub := progress.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Relay worker-published events into the in-process hub for the
	// SSE/WebSocket subscribers of this API instance.
	bridge := progress.NewBridge(redisClient, hub, l)
	go bridge.Run(ctx)

	uploadService := services.NewUploadService(
		recordings, tasks, chunkStore, jobQueue, l, cfg.RecordingsPath, cfg.MaxChunkSize)
	recordingService := services.NewRecordingService(
		recordings, segments, tasks, logs, chunkStore, jobQueue, l, cfg.MaxRetries)

	handlers := &server.Handlers{
		Upload:    handler.NewUploadHandler(uploadService),
		Recording: handler.NewRecordingHandler(recordingService),
		Progress:  handler.NewProgressHandler(hub, broadcaster, recordings, l),
	}

	srv := server.New(cfg, l, db)
	srv.SetupRoutes(handlers)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
