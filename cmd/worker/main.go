package main

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
	"subclipper/internal/config"
	"subclipper/internal/db"
	"subclipper/internal/logging"
	"subclipper/internal/notify"
	"subclipper/internal/pipeline"
	"subclipper/internal/storage"
	"subclipper/internal/transcode"
	"subclipper/internal/worker"
	"subclipper/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	cfg, err := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db.InitDB(cfg.DatabaseURL)

	s3Client, err := storage.NewS3Client(context.Background(), cfg.StorageConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("could not configure object storage")
	}
	objects := storage.NewS3Store(s3Client, cfg.S3Bucket, cfg.S3PublicBaseURL)

	var notifier worker.ClipNotifier
	if cfg.TelegramToken != "" {
		bot, err := notify.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Error().Err(err).Msg("telegram notifications disabled")
		} else {
			notifier = notify.NewTelegram(bot, cfg.PublicSiteURL)
		}
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"high":    2,
				"default": 1,
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// 30s, 1m, 2m, 4m, ... capped at one hour.
				delay := 30 * time.Second
				maxDelay := time.Hour
				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}

				log.Warn().Err(err).Str("task", task.Type()).Int("attempt", n+1).Dur("retry_in", delay).Msg("task failed")
				return delay
			},
		},
	)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(
		transcode.NewClient(cfg.TranscodeConfig()),
		notifier,
		objects,
		pipeline.StoragePrefix(),
		cfg.ReconcileMinAge,
	)

	mux.HandleFunc(tasks.TypeCleanupAsset, taskHandler.HandleCleanupAssetTask)
	mux.HandleFunc(tasks.TypeNotifySubClip, taskHandler.HandleNotifySubClipTask)
	mux.HandleFunc(tasks.TypeReconcileStorage, taskHandler.HandleReconcileStorageTask)

	log.Info().Str("commit", CommitSHA).Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("could not run worker")
	}
}
