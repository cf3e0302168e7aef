package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seanyjeong/max-meeting-sub000/config"
	"github.com/seanyjeong/max-meeting-sub000/internal/media"
	"github.com/seanyjeong/max-meeting-sub000/internal/orchestrator"
	"github.com/seanyjeong/max-meeting-sub000/internal/pipeline"
	"github.com/seanyjeong/max-meeting-sub000/internal/progress"
	"github.com/seanyjeong/max-meeting-sub000/internal/queue"
	"github.com/seanyjeong/max-meeting-sub000/internal/repository"
	"github.com/seanyjeong/max-meeting-sub000/internal/services"
	"github.com/seanyjeong/max-meeting-sub000/internal/stt"
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

	// One engine instance for the whole process; the model loads lazily
	// on the first transcription and is shared by all workers.
	engine := stt.NewWhisperEngine(cfg.WhisperModel, cfg.WhisperDevice)
	diarizer := stt.NewPyannoteDiarizer(cfg.HuggingFaceToken)
	broadcaster := progress.NewRedisBroadcaster(redisClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var archiver pipeline.FileArchiver
	if cfg.S3Bucket != "" {
		s3, err := storage.NewArchiver(ctx, storage.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
		if err != nil {
			log.Fatalf("Failed to configure archiver: %v", err)
		}
		archiver = s3
		l.Infof("archiving completed recordings to s3 bucket %s", cfg.S3Bucket)
	}

	pipe := pipeline.New(
		recordings, segments, logs,
		engine, diarizer, broadcaster,
		media.Prober{}, media.Extractor{},
		l,
		pipeline.Options{
			ChunkSeconds: float64(cfg.ChunkMinutes) * 60,
			Language:     cfg.Language,
			Archiver:     archiver,
		},
	)

	jobQueue := queue.NewRedisQueue(redisClient)
	orch := orchestrator.New(jobQueue, tasks, pipe, l, cfg.WorkerCount)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
		<-quit
		l.Infof("Quitting signal received.. draining workers")
		cancel()
	}()

	// Periodically sweep recordings stuck in uploading.
	uploadService := services.NewUploadService(
		recordings, tasks, storage.NewChunkStore(), jobQueue, l, cfg.RecordingsPath, cfg.MaxChunkSize)
	go sweepStaleUploads(ctx, uploadService, l)

	orch.Run(ctx)
	l.Infof("Worker stopped gracefully")
}

func sweepStaleUploads(ctx context.Context, uploads *services.UploadService, l *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := uploads.CleanupStaleUploads(ctx, 24*time.Hour); err != nil {
				l.Warnf("sweep stale uploads: %v", err)
			}
		}
	}
}
